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

package arena

import (
	"fmt"
	"math"
	"sync/atomic"
	"unsafe"

	"github.com/cdftree/cdftree-go/common"
)

// Ref addresses a node inside an Arena.
type Ref uint32

// Nil is the reference that points at no node.
const Nil Ref = 0

// MaxNodes is the largest pool an Arena can address (slot 0 is reserved).
const MaxNodes int64 = math.MaxUint32 - 1

var (
	// ErrArenaExhausted is returned when the pool has fewer free nodes than requested.
	ErrArenaExhausted = fmt.Errorf("arena: pool exhausted: %w", common.ErrCapacityExceeded)
	// ErrArenaFreed is returned for any use of an arena after Free.
	ErrArenaFreed = fmt.Errorf("arena: already freed: %w", common.ErrInvalidLifecycle)
	errInvalidSize = fmt.Errorf("arena: number of nodes must be positive: %w", common.ErrInvalidInput)
)

// Node is one slot of the pool. It holds a sample value with its
// multiplicity, the total multiplicity of its subtree and the treap links.
type Node struct {
	Size     uint64
	Value    float32
	Count    uint32
	Priority uint32
	Left     Ref
	Right    Ref
}

// NodeBytes is the in-memory size of a Node.
const NodeBytes = int(unsafe.Sizeof(Node{}))

// Stats is a point-in-time view of the pool usage.
type Stats struct {
	Capacity      int  // nodes that can be handed out
	Used          int  // nodes handed out so far
	BytesReserved int  // bytes reserved for the pool
	OffHeap       bool // pool lives outside the Go heap
}

// Arena is a bump allocator over a fixed pool of nodes.
//
// Reserve may be called from several goroutines. Free must not run
// concurrently with any other method.
type Arena struct {
	nodes   []Node
	release func() error
	offHeap bool
	bytes   int
	next    atomic.Uint32
	freed   atomic.Bool
}

// New reserves a pool of numNodes nodes.
func New(numNodes int) (*Arena, error) {
	if numNodes <= 0 {
		return nil, errInvalidSize
	}
	if int64(numNodes) > MaxNodes {
		return nil, fmt.Errorf("arena: %d nodes exceed the addressable %d: %w", numNodes, MaxNodes, common.ErrOutOfMemory)
	}
	slots := numNodes + 1
	if slots > math.MaxInt/NodeBytes {
		return nil, fmt.Errorf("arena: %d nodes overflow the address space: %w", numNodes, common.ErrOutOfMemory)
	}
	nodes, release, offHeap, err := allocNodes(slots)
	if err != nil {
		return nil, fmt.Errorf("arena: reserving %d bytes: %w: %w", slots*NodeBytes, common.ErrOutOfMemory, err)
	}
	a := &Arena{
		nodes:   nodes,
		release: release,
		offHeap: offHeap,
		bytes:   slots * NodeBytes,
	}
	a.next.Store(1)
	return a, nil
}

// Reserve hands out n consecutive nodes and returns the first one.
// Either all n nodes are reserved or none.
func (a *Arena) Reserve(n int) (Ref, error) {
	if n < 0 {
		return Nil, errInvalidSize
	}
	for {
		if a.freed.Load() {
			return Nil, ErrArenaFreed
		}
		cur := a.next.Load()
		if uint64(cur)+uint64(n) > uint64(len(a.nodes)) {
			return Nil, fmt.Errorf("%w: requested %d, available %d", ErrArenaExhausted, n, len(a.nodes)-int(cur))
		}
		if n == 0 {
			return Nil, nil
		}
		if a.next.CompareAndSwap(cur, cur+uint32(n)) {
			return Ref(cur), nil
		}
	}
}

// Node returns the node addressed by ref. Using a ref that was not handed out
// by Reserve, or using any ref after Free, is a programming error.
func (a *Arena) Node(ref Ref) *Node {
	return &a.nodes[ref]
}

// Cap returns the number of nodes the pool can hand out.
func (a *Arena) Cap() int {
	if len(a.nodes) == 0 {
		return 0
	}
	return len(a.nodes) - 1
}

// Len returns the number of nodes handed out so far.
func (a *Arena) Len() int {
	return int(a.next.Load()) - 1
}

// Available returns the number of nodes that can still be reserved.
func (a *Arena) Available() int {
	if a.freed.Load() {
		return 0
	}
	return a.Cap() - a.Len()
}

// Stats returns the current pool usage.
func (a *Arena) Stats() Stats {
	return Stats{
		Capacity:      a.Cap(),
		Used:          a.Len(),
		BytesReserved: a.bytes,
		OffHeap:       a.offHeap,
	}
}

// Free releases the pool. Every Ref handed out becomes invalid.
func (a *Arena) Free() error {
	if !a.freed.CompareAndSwap(false, true) {
		return ErrArenaFreed
	}
	var err error
	if a.release != nil {
		err = a.release()
	}
	a.nodes = nil
	a.release = nil
	if err != nil {
		return fmt.Errorf("arena: releasing pool: %w", err)
	}
	return nil
}

// IsFreed returns true once Free has been called.
func (a *Arena) IsFreed() bool {
	return a.freed.Load()
}
