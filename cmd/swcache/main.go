// MIT License
//
// Copyright (c) 2023 kache.io
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// swcache is a worked example driving pkg/router/strategy/expiration from a
// YAML config, standing in for the browser service worker that would
// otherwise host this caching toolkit.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/kacheio/swcache/pkg/cachestore"
	"github.com/kacheio/swcache/pkg/config"
	"github.com/kacheio/swcache/pkg/metrics"
	"github.com/kacheio/swcache/pkg/router"
	"github.com/kacheio/swcache/pkg/tsindex"
	"github.com/kacheio/swcache/pkg/utils/logger"
)

const (
	configFileName = "swcache.yml"

	configFileOption          = "config.file"
	configAutoReloadOption    = "config.auto-reload"
	configWatchIntervalOption = "config.watch-interval"
)

func main() {
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)

	var configAutoReload bool
	flag.BoolVar(&configAutoReload, configAutoReloadOption, false, "")

	var configWatchInterval time.Duration
	flag.DurationVar(&configWatchInterval, configWatchIntervalOption, 10*time.Second, "")

	var configFile string
	flag.StringVar(&configFile, configFileOption, configFileName, "")

	flag.Parse()

	ldr, err := config.NewLoader(configFile, configAutoReload, configWatchInterval)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error loading config from %s: %v\n", configFile, err)
		os.Exit(1)
	}
	cfg := ldr.Config()

	if err := cfg.Validate(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error validating config:\n%v\n", err)
		os.Exit(1)
	}

	logger.InitLogger(cfg.Log)

	log.Info().Str("config", configFile).Msg("swcache starting")

	backend, err := cachestore.NewProvider(cfg.Scope, cfg.Store)
	if err != nil {
		log.Fatal().Err(err).Msg("initializing response store")
	}
	store := cachestore.NewStore(backend)

	var index *tsindex.Index
	if cfg.Expiration != nil {
		if cfg.Expiration.IndexPath != "" {
			index, err = tsindex.Open(cfg.Expiration.IndexPath)
		} else {
			index, err = tsindex.OpenInMemory()
		}
		if err != nil {
			log.Fatal().Err(err).Msg("initializing timestamp index")
		}
		defer index.Close()
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	r, err := router.Build(cfg, store, index, m)
	if err != nil {
		log.Fatal().Err(err).Msg("building router")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", r)

	done := make(chan struct{})
	for name, l := range cfg.Listeners {
		log.Info().Str("listener", name).Str("addr", l.Addr).Msg("listening")
		go func(addr string) {
			if err := http.ListenAndServe(addr, mux); err != nil {
				log.Fatal().Err(err).Str("addr", addr).Msg("listener failed")
			}
		}(l.Addr)
	}
	<-done
}
