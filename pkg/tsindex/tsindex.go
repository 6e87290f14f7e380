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

// Package tsindex implements the timestamp index: one on-disk store per
// cache name, primary-keyed by URL with a secondary index ascending by
// insertion/update time, used by the expiration plugin to find the
// least-recently-stored and oldest entries without scanning the response
// cache itself.
package tsindex

import (
	"encoding/binary"
	"errors"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const (
	// primaryPrefix namespaces the url -> timestamp records.
	primaryPrefix = "u:"

	// secondaryPrefix namespaces the be-uint64(timestamp)+url records that
	// give the ascending-by-timestamp scan order for free.
	secondaryPrefix = "t:"
)

// ErrNotFound is returned by DeleteByURL when the url has no record.
var ErrNotFound = errors.New("tsindex: url not found")

// Index is the timestamp index for a single cache name.
type Index struct {
	db *leveldb.DB
}

// Open opens (creating if absent) the on-disk index rooted at path.
func Open(path string) (*Index, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &Index{db: db}, nil
}

// OpenInMemory opens an in-memory index, used for tests and for worker
// contexts where durability across restarts is not required.
func OpenInMemory() (*Index, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return &Index{db: db}, nil
}

// Close releases the underlying database handle.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// Put upserts {url, timestamp}, replacing any existing record for url.
// The primary and secondary records are written in one batch, so a reader
// never observes a partially written record.
func (idx *Index) Put(url string, timestamp int64) error {
	batch := new(leveldb.Batch)

	if prev, err := idx.db.Get(primaryKey(url), nil); err == nil {
		prevTS := int64(binary.BigEndian.Uint64(prev))
		if prevTS != timestamp {
			batch.Delete(secondaryKey(prevTS, url))
		}
	} else if !errors.Is(err, leveldb.ErrNotFound) {
		return err
	}

	batch.Put(primaryKey(url), encodeTimestamp(timestamp))
	batch.Put(secondaryKey(timestamp, url), []byte(url))

	return idx.db.Write(batch, nil)
}

// DeleteByURL removes url's record from both the primary and secondary
// keyspaces in one batch. Returns ErrNotFound if url has no record.
func (idx *Index) DeleteByURL(url string) error {
	prev, err := idx.db.Get(primaryKey(url), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	prevTS := int64(binary.BigEndian.Uint64(prev))

	batch := new(leveldb.Batch)
	batch.Delete(primaryKey(url))
	batch.Delete(secondaryKey(prevTS, url))
	return idx.db.Write(batch, nil)
}

// IterateByTimestamp walks the secondary index in ascending timestamp order,
// calling cb(url, timestamp) for each record. Iteration stops early if cb
// returns false. Each call opens a fresh iterator (its own read snapshot),
// so concurrent writes never corrupt an in-progress scan and a scan never
// observes a write that started after the scan began.
func (idx *Index) IterateByTimestamp(cb func(url string, timestamp int64) bool) error {
	iter := idx.db.NewIterator(util.BytesPrefix([]byte(secondaryPrefix)), nil)
	defer iter.Release()

	for iter.Next() {
		key := iter.Key()
		ts, url := decodeSecondaryKey(key)
		if !cb(url, ts) {
			break
		}
	}
	return iter.Error()
}

// Count returns the total number of records in the index.
func (idx *Index) Count() (int, error) {
	iter := idx.db.NewIterator(util.BytesPrefix([]byte(primaryPrefix)), nil)
	defer iter.Release()

	n := 0
	for iter.Next() {
		n++
	}
	return n, iter.Error()
}

func primaryKey(url string) []byte {
	return append([]byte(primaryPrefix), url...)
}

func secondaryKey(timestamp int64, url string) []byte {
	key := make([]byte, len(secondaryPrefix)+8+len(url))
	n := copy(key, secondaryPrefix)
	binary.BigEndian.PutUint64(key[n:], uint64(timestamp))
	copy(key[n+8:], url)
	return key
}

func decodeSecondaryKey(key []byte) (timestamp int64, url string) {
	rest := key[len(secondaryPrefix):]
	timestamp = int64(binary.BigEndian.Uint64(rest[:8]))
	url = string(rest[8:])
	return timestamp, url
}

func encodeTimestamp(timestamp int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(timestamp))
	return b
}
