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

// Package cdftree keeps an exact empirical distribution per stream key and
// transforms batches of values to and from their CDF scores.
//
// An Engine owns one node pool for its whole lifetime window:
//
//	e := cdftree.NewEngine(cdftree.WithCapacity(1 << 16))
//	if err := e.InitMemory(); err != nil { ... }
//	defer e.FreeMemory()
//
//	_ = e.InsertSample(0, samples)
//	scores, _ := e.ValuesToFractions(0, values, false)   // new slice
//	raw, _ := e.FractionsToValues(0, scores, true)        // overwrites scores
//
// Forward transforms return count(samples <= x) / n for every x. Inverse
// transforms return the smallest sample whose rank fraction is at least q.
package cdftree

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cdftree/cdftree-go/arena"
	"github.com/cdftree/cdftree-go/ostree"
	"github.com/cdftree/cdftree-go/stream"
)

// Stats is a point-in-time summary of an initialized engine.
type Stats struct {
	Streams int
	Seeded  int
	Samples uint64
	Pool    arena.Stats
}

// Engine is the context object every operation runs against. It is inert
// until InitMemory and returns to that state after FreeMemory.
//
// All methods are safe for concurrent use. InitMemory and FreeMemory wait for
// running operations; inserts and transforms on one key are serialized
// against each other, transforms on one key may run together.
type Engine struct {
	mu    sync.RWMutex
	opts  options
	arena *arena.Arena
	table *stream.Table
}

// NewEngine creates an engine with the given options.
func NewEngine(opts ...Option) *Engine {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Engine{opts: o}
}

// InitMemory reserves the node pool and creates the stream table.
func (e *Engine) InitMemory() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.arena != nil {
		e.opts.logger.Debug("init rejected", "error", ErrAlreadyInitialized)
		return ErrAlreadyInitialized
	}
	if e.opts.capacity == 0 || e.opts.capacity > ostree.MaxCapacity {
		return fmt.Errorf("init memory: %w", ostree.ErrInvalidCapacity)
	}

	a, err := arena.New(e.opts.poolNodes)
	if err != nil {
		e.opts.logger.Error("init failed", "pool_nodes", e.opts.poolNodes, "error", err)
		return fmt.Errorf("init memory: %w", err)
	}
	e.arena = a
	e.table = stream.New(e.newTree, stream.WithShards(e.opts.shards))

	stats := a.Stats()
	e.opts.logger.Info("memory initialized",
		"pool_nodes", stats.Capacity,
		"pool_bytes", stats.BytesReserved,
		"off_heap", stats.OffHeap,
		"capacity", e.opts.capacity,
	)
	return nil
}

// FreeMemory releases the node pool and every stream.
func (e *Engine) FreeMemory() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.arena == nil {
		e.opts.logger.Debug("free rejected", "error", ErrAlreadyFreed)
		return ErrAlreadyFreed
	}
	used := e.arena.Len()
	err := e.arena.Free()
	e.arena = nil
	e.table = nil
	if err != nil {
		e.opts.logger.Error("free failed", "error", err)
		return fmt.Errorf("free memory: %w", err)
	}
	e.opts.logger.Info("memory freed", "pool_nodes_used", used)
	return nil
}

// IsInitialized returns true between InitMemory and FreeMemory.
func (e *Engine) IsInitialized() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.arena != nil
}

// InsertSample appends values to the distribution of key, creating the key
// on first use. The batch is inserted entirely or not at all.
func (e *Engine) InsertSample(key stream.Key, values []float32) (err error) {
	start := time.Now()
	defer func() {
		e.opts.metrics.RecordInsert(len(values), time.Since(start), err)
	}()

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.table == nil {
		return ErrNotInitialized
	}
	s, err := e.table.GetOrCreate(key)
	if err != nil {
		return err
	}
	err = s.Update(func(tree *ostree.Tree) error {
		return tree.Insert(values...)
	})
	if err != nil {
		e.opts.logger.WithKey(uint32(key)).Debug("insert rejected", "batch", len(values), "error", err)
		return fmt.Errorf("insert into key %d: %w", key, err)
	}
	return nil
}

// ValuesToFractions maps every value to the fraction of the key's samples
// that are less than or equal to it. With inPlace the results overwrite
// values and values is returned; otherwise values is left untouched and a
// new slice is returned.
func (e *Engine) ValuesToFractions(key stream.Key, values []float32, inPlace bool) ([]float32, error) {
	return e.ValuesToFractionsContext(context.Background(), key, values, inPlace)
}

// ValuesToFractionsContext is ValuesToFractions with a context that stops a
// fanned-out transform early. A cancelled in-place transform may have
// overwritten part of values.
func (e *Engine) ValuesToFractionsContext(ctx context.Context, key stream.Key, values []float32, inPlace bool) ([]float32, error) {
	return e.transform(ctx, Forward, key, values, inPlace, valuesToFractions)
}

// FractionsToValues maps every fraction q in [0, 1] to the smallest sample of
// the key whose rank fraction is at least q. The in-place contract is the
// same as for ValuesToFractions.
func (e *Engine) FractionsToValues(key stream.Key, fractions []float32, inPlace bool) ([]float32, error) {
	return e.FractionsToValuesContext(context.Background(), key, fractions, inPlace)
}

// FractionsToValuesContext is FractionsToValues with a context that stops a
// fanned-out transform early.
func (e *Engine) FractionsToValuesContext(ctx context.Context, key stream.Key, fractions []float32, inPlace bool) ([]float32, error) {
	return e.transform(ctx, Inverse, key, fractions, inPlace, fractionsToValues)
}

type mapFn func(ctx context.Context, tree *ostree.Tree, dst, src []float32, f fanOut) error

func (e *Engine) transform(ctx context.Context, kind TransformKind, key stream.Key, src []float32, inPlace bool, fn mapFn) (out []float32, err error) {
	start := time.Now()
	defer func() {
		e.opts.metrics.RecordTransform(kind, len(src), time.Since(start), err)
	}()

	err = e.view(key, func(tree *ostree.Tree) error {
		dst := outputBuffer(src, inPlace)
		if err := fn(ctx, tree, dst, src, fanOut{workers: e.opts.workers, threshold: e.opts.parallelThreshold}); err != nil {
			return err
		}
		out = dst
		return nil
	})
	if err != nil {
		e.opts.logger.WithKey(uint32(key)).Debug("transform rejected", "kind", kind.String(), "batch", len(src), "error", err)
		return nil, fmt.Errorf("%s transform on key %d: %w", kind, key, err)
	}
	return out, nil
}

// SearchPDF returns the fraction of the key's samples equal to x.
func (e *Engine) SearchPDF(key stream.Key, x float32) (pdf float64, err error) {
	err = e.view(key, func(tree *ostree.Tree) error {
		pdf, err = tree.PDF(x)
		return err
	})
	return pdf, err
}

// Count returns how many samples of the key equal x.
func (e *Engine) Count(key stream.Key, x float32) (count uint64, err error) {
	err = e.view(key, func(tree *ostree.Tree) error {
		count = tree.Count(x)
		return nil
	})
	return count, err
}

// MinElement returns the smallest sample of the key.
func (e *Engine) MinElement(key stream.Key) (v float32, err error) {
	err = e.view(key, func(tree *ostree.Tree) error {
		v, err = tree.Min()
		return err
	})
	return v, err
}

// MaxElement returns the largest sample of the key.
func (e *Engine) MaxElement(key stream.Key) (v float32, err error) {
	err = e.view(key, func(tree *ostree.Tree) error {
		v, err = tree.Max()
		return err
	})
	return v, err
}

// Len returns the number of samples of the key.
func (e *Engine) Len(key stream.Key) (n uint64, err error) {
	err = e.view(key, func(tree *ostree.Tree) error {
		n = tree.N()
		return nil
	})
	return n, err
}

// SortedView returns an immutable snapshot of the key's distribution that
// can be queried without holding any engine lock.
func (e *Engine) SortedView(key stream.Key) (view *ostree.SortedView, err error) {
	err = e.view(key, func(tree *ostree.Tree) error {
		view, err = tree.SortedView()
		return err
	})
	return view, err
}

// Describe returns the tree summary of the key.
func (e *Engine) Describe(key stream.Key, shouldPrintNodes bool) (summary string, err error) {
	err = e.view(key, func(tree *ostree.Tree) error {
		summary = tree.String(shouldPrintNodes)
		return nil
	})
	return summary, err
}

// Keys returns the keys holding at least one sample, in increasing order.
func (e *Engine) Keys() ([]stream.Key, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.table == nil {
		return nil, ErrNotInitialized
	}
	return e.table.Keys(), nil
}

// Stats returns a summary of streams and pool usage.
func (e *Engine) Stats() (Stats, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.table == nil {
		return Stats{}, ErrNotInitialized
	}
	stats := Stats{
		Streams: e.table.Len(),
		Seeded:  len(e.table.Keys()),
		Pool:    e.arena.Stats(),
	}
	var err error
	e.table.Range(func(s *stream.Stream) bool {
		err = s.View(func(tree *ostree.Tree) error {
			stats.Samples += tree.N()
			return nil
		})
		// streams left empty by a rejected insert hold nothing to count
		if errors.Is(err, ErrUnknownKey) {
			err = nil
		}
		return err == nil
	})
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	return stats, nil
}

// view runs fn under the engine read lock and the key's read lock.
func (e *Engine) view(key stream.Key, fn func(tree *ostree.Tree) error) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.table == nil {
		return ErrNotInitialized
	}
	s, err := e.table.Get(key)
	if err != nil {
		return err
	}
	return s.View(fn)
}

func (e *Engine) newTree(key stream.Key) (*ostree.Tree, error) {
	return ostree.New(e.arena, e.opts.capacity, ostree.WithSeed(e.opts.seed+uint64(key)))
}
