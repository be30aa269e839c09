/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package stream maps stream keys to their order-statistics trees.
//
// The table is split into shards selected by an xxhash of the key. Each
// shard guards its map with its own lock, and each Stream guards its tree
// with a read/write lock: Update takes the writer side, View the reader side.
package stream

import (
	"encoding/binary"
	"fmt"
	"slices"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/cespare/xxhash/v2"

	"github.com/cdftree/cdftree-go/common"
	"github.com/cdftree/cdftree-go/ostree"
)

// DefaultShards is the number of shards used when none is configured.
const DefaultShards = 16

// Key identifies one independent distribution.
type Key uint32

// TreeFactory builds the empty tree of a newly seen key.
type TreeFactory func(key Key) (*ostree.Tree, error)

// Stream is the tree of one key together with its lock.
type Stream struct {
	mu     sync.RWMutex
	key    Key
	tree   *ostree.Tree
	seeded func(Key)
}

// Key returns the key of the stream.
func (s *Stream) Key() Key {
	return s.key
}

// Update runs fn with exclusive access to the tree.
func (s *Stream) Update(fn func(tree *ostree.Tree) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := fn(s.tree)
	if !s.tree.IsEmpty() && s.seeded != nil {
		s.seeded(s.key)
		s.seeded = nil
	}
	return err
}

// View runs fn with shared access to the tree. A stream that holds no
// samples yet is reported as unknown.
func (s *Stream) View(fn func(tree *ostree.Tree) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.tree.IsEmpty() {
		return fmt.Errorf("key %d: %w", s.key, common.ErrUnknownKey)
	}
	return fn(s.tree)
}

type shard struct {
	mu      sync.RWMutex
	streams map[Key]*Stream
}

// Table is a sharded map from Key to Stream. Streams are created lazily and
// never removed.
type Table struct {
	shards  []shard
	newTree TreeFactory

	keysMu sync.RWMutex
	keys   *roaring.Bitmap
}

// Option configures a Table.
type Option func(*Table)

// WithShards sets the number of shards. Values below 1 are ignored.
func WithShards(n int) Option {
	return func(t *Table) {
		if n > 0 {
			t.shards = make([]shard, n)
		}
	}
}

// New creates an empty table that builds trees with newTree.
func New(newTree TreeFactory, opts ...Option) *Table {
	t := &Table{
		shards:  make([]shard, DefaultShards),
		newTree: newTree,
		keys:    roaring.New(),
	}
	for _, opt := range opts {
		opt(t)
	}
	for i := range t.shards {
		t.shards[i].streams = make(map[Key]*Stream)
	}
	return t
}

// GetOrCreate returns the stream of key, creating an empty one if needed.
func (t *Table) GetOrCreate(key Key) (*Stream, error) {
	sh := t.shardFor(key)

	sh.mu.RLock()
	s, ok := sh.streams[key]
	sh.mu.RUnlock()
	if ok {
		return s, nil
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()
	if s, ok := sh.streams[key]; ok {
		return s, nil
	}
	tree, err := t.newTree(key)
	if err != nil {
		return nil, fmt.Errorf("creating stream %d: %w", key, err)
	}
	s = &Stream{key: key, tree: tree, seeded: t.markSeeded}
	sh.streams[key] = s
	return s, nil
}

// Get returns the stream of key, or ErrUnknownKey if the key was never
// inserted into.
func (t *Table) Get(key Key) (*Stream, error) {
	sh := t.shardFor(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	s, ok := sh.streams[key]
	if !ok {
		return nil, fmt.Errorf("key %d: %w", key, common.ErrUnknownKey)
	}
	return s, nil
}

// Seeded returns true if the stream of key holds at least one sample.
func (t *Table) Seeded(key Key) bool {
	t.keysMu.RLock()
	defer t.keysMu.RUnlock()
	return t.keys.Contains(uint32(key))
}

// Keys returns the seeded keys in increasing order.
func (t *Table) Keys() []Key {
	t.keysMu.RLock()
	defer t.keysMu.RUnlock()
	keys := make([]Key, 0, t.keys.GetCardinality())
	it := t.keys.Iterator()
	for it.HasNext() {
		keys = append(keys, Key(it.Next()))
	}
	return keys
}

// Len returns the number of streams, seeded or not.
func (t *Table) Len() int {
	n := 0
	for i := range t.shards {
		sh := &t.shards[i]
		sh.mu.RLock()
		n += len(sh.streams)
		sh.mu.RUnlock()
	}
	return n
}

// Range calls fn for every stream in increasing key order until fn returns false.
func (t *Table) Range(fn func(s *Stream) bool) {
	var all []*Stream
	for i := range t.shards {
		sh := &t.shards[i]
		sh.mu.RLock()
		for _, s := range sh.streams {
			all = append(all, s)
		}
		sh.mu.RUnlock()
	}
	slices.SortFunc(all, func(a, b *Stream) int {
		switch {
		case a.key < b.key:
			return -1
		case a.key > b.key:
			return 1
		}
		return 0
	})
	for _, s := range all {
		if !fn(s) {
			return
		}
	}
}

func (t *Table) markSeeded(key Key) {
	t.keysMu.Lock()
	defer t.keysMu.Unlock()
	t.keys.Add(uint32(key))
}

func (t *Table) shardFor(key Key) *shard {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(key))
	return &t.shards[xxhash.Sum64(buf[:])%uint64(len(t.shards))]
}
