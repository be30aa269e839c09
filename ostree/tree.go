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

// Package ostree is an exact order-statistics tree over float32 samples.
//
// A Tree keeps every inserted sample (equal samples share one node carrying a
// multiplicity) in a treap whose nodes live in an arena.Arena. Each node is
// augmented with the total multiplicity of its subtree, which makes
//
//   - Insert          O(log n) per value
//   - Rank            count(values <= x) / n, O(log n)
//   - Select          the value at natural rank ceil(q*n), O(log n)
//
// in expectation. Priorities are a murmur3 hash of the node reference, so the
// shape of a tree is a deterministic function of its insertion sequence and seed.
//
// A Tree is not safe for concurrent use; callers serialize writers against
// readers (see package stream).
package ostree

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/twmb/murmur3"

	"github.com/cdftree/cdftree-go/arena"
	"github.com/cdftree/cdftree-go/common"
	"github.com/cdftree/cdftree-go/internal"
)

const (
	// MaxCapacity is the largest number of samples a single tree may hold.
	MaxCapacity = math.MaxUint32
	// DefaultSeed seeds the priority hash when no seed is configured.
	DefaultSeed = uint64(9001)
)

var (
	ErrEmpty              = errors.New("operation is undefined for an empty tree")
	ErrNaN                = fmt.Errorf("NaN is not an orderable sample: %w", common.ErrInvalidInput)
	ErrInvalidRank        = fmt.Errorf("normalized rank must be between 0 and 1 inclusive: %w", common.ErrInvalidInput)
	ErrInvalidWeight      = fmt.Errorf("weight must be positive: %w", common.ErrInvalidInput)
	ErrInvalidCapacity    = fmt.Errorf("capacity must be between 1 and %d: %w", uint64(MaxCapacity), common.ErrInvalidInput)
	ErrCapacityExceeded   = fmt.Errorf("tree capacity exceeded: %w", common.ErrCapacityExceeded)
	errNanInSplitPoints   = fmt.Errorf("NaN in split points: %w", common.ErrInvalidInput)
	errInvalidSplitPoints = fmt.Errorf("values must be unique and monotonically increasing: %w", common.ErrInvalidInput)
)

// Tree is an order-statistics tree with a fixed capacity.
type Tree struct {
	arena    *arena.Arena
	root     arena.Ref
	n        uint64
	capacity uint64
	distinct int
	min      float32
	max      float32
	seed     uint64
	lessFn   common.CompareFn[float32]
}

// Option configures a Tree.
type Option func(*Tree)

// WithSeed sets the seed of the priority hash.
func WithSeed(seed uint64) Option {
	return func(t *Tree) {
		t.seed = seed
	}
}

// New creates an empty tree that allocates its nodes from a and accepts at
// most capacity samples.
func New(a *arena.Arena, capacity uint64, opts ...Option) (*Tree, error) {
	if a == nil {
		return nil, fmt.Errorf("no arena provided: %w", common.ErrInvalidLifecycle)
	}
	if capacity == 0 || capacity > MaxCapacity {
		return nil, ErrInvalidCapacity
	}
	t := &Tree{
		arena:    a,
		capacity: capacity,
		seed:     DefaultSeed,
		min:      float32(math.Inf(1)),
		max:      float32(math.Inf(-1)),
		lessFn:   common.Float32Comparator(false),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Insert adds the values in order. If any value is NaN, or the values do not
// fit in the remaining capacity or the arena, nothing is inserted.
func (t *Tree) Insert(values ...float32) error {
	if len(values) == 0 {
		return nil
	}
	for i, v := range values {
		if common.IsNaN32(v) {
			return fmt.Errorf("value at index %d: %w", i, ErrNaN)
		}
	}
	if err := t.checkCapacity(uint64(len(values))); err != nil {
		return err
	}
	fresh, err := t.reserve(values)
	if err != nil {
		return err
	}
	for _, v := range values {
		t.root = t.insert(t.root, v, 1, &fresh)
		t.observe(v)
	}
	t.n += uint64(len(values))
	return nil
}

// InsertWeighted adds weight copies of value.
func (t *Tree) InsertWeighted(value float32, weight uint32) error {
	if weight == 0 {
		return ErrInvalidWeight
	}
	if common.IsNaN32(value) {
		return ErrNaN
	}
	if err := t.checkCapacity(uint64(weight)); err != nil {
		return err
	}
	fresh, err := t.reserve([]float32{value})
	if err != nil {
		return err
	}
	t.root = t.insert(t.root, value, weight, &fresh)
	t.observe(value)
	t.n += uint64(weight)
	return nil
}

// IsEmpty returns true if the tree holds no samples.
func (t *Tree) IsEmpty() bool {
	return t.n == 0
}

// N returns the number of samples inserted.
func (t *Tree) N() uint64 {
	return t.n
}

// Capacity returns the maximum number of samples the tree accepts.
func (t *Tree) Capacity() uint64 {
	return t.capacity
}

// Distinct returns the number of distinct values, which is the number of
// arena nodes the tree occupies.
func (t *Tree) Distinct() int {
	return t.distinct
}

// Min returns the smallest sample.
func (t *Tree) Min() (float32, error) {
	if t.IsEmpty() {
		return 0, ErrEmpty
	}
	return t.min, nil
}

// Max returns the largest sample.
func (t *Tree) Max() (float32, error) {
	if t.IsEmpty() {
		return 0, ErrEmpty
	}
	return t.max, nil
}

// CountLE returns the number of samples less than or equal to x.
func (t *Tree) CountLE(x float32) uint64 {
	var acc uint64
	ref := t.root
	for ref != arena.Nil {
		node := t.arena.Node(ref)
		if t.lessFn(x, node.Value) {
			ref = node.Left
		} else {
			acc += t.size(node.Left) + uint64(node.Count)
			ref = node.Right
		}
	}
	return acc
}

// CountLT returns the number of samples strictly less than x.
func (t *Tree) CountLT(x float32) uint64 {
	var acc uint64
	ref := t.root
	for ref != arena.Nil {
		node := t.arena.Node(ref)
		if t.lessFn(node.Value, x) {
			acc += t.size(node.Left) + uint64(node.Count)
			ref = node.Right
		} else {
			ref = node.Left
		}
	}
	return acc
}

// Count returns the multiplicity of x.
func (t *Tree) Count(x float32) uint64 {
	ref := t.find(x)
	if ref == arena.Nil {
		return 0
	}
	return uint64(t.arena.Node(ref).Count)
}

// Rank returns the fraction of samples less than or equal to x.
func (t *Tree) Rank(x float32) (float64, error) {
	if t.IsEmpty() {
		return 0, ErrEmpty
	}
	if common.IsNaN32(x) {
		return 0, ErrNaN
	}
	return float64(t.CountLE(x)) / float64(t.n), nil
}

// PDF returns the fraction of samples equal to x.
func (t *Tree) PDF(x float32) (float64, error) {
	if t.IsEmpty() {
		return 0, ErrEmpty
	}
	if common.IsNaN32(x) {
		return 0, ErrNaN
	}
	return float64(t.Count(x)) / float64(t.n), nil
}

// Select returns the sample at natural rank ceil(rank*n), clamped to [1, n].
// Select(i/n) returns the i-th smallest sample, and any rank strictly between
// (i-1)/n and i/n resolves to the i-th smallest as well.
func (t *Tree) Select(rank float64) (float32, error) {
	if t.IsEmpty() {
		return 0, ErrEmpty
	}
	if !internal.IsNormalizedRank(rank) {
		return 0, ErrInvalidRank
	}
	k := internal.NaturalRank(rank, t.n, true)
	k = internal.ClampInt64(k, 1, int64(t.n))
	return t.kth(uint64(k)), nil
}

// SelectFloat32 is Select for a single precision rank, tolerant of the
// rounding float32(i/n) carries.
func (t *Tree) SelectFloat32(rank float32) (float32, error) {
	if t.IsEmpty() {
		return 0, ErrEmpty
	}
	if !internal.IsNormalizedRank(float64(rank)) {
		return 0, ErrInvalidRank
	}
	k := internal.NaturalRankFloat32(rank, t.n)
	k = internal.ClampInt64(k, 1, int64(t.n))
	return t.kth(uint64(k)), nil
}

// KthSmallest returns the k-th smallest sample, counting from 1.
func (t *Tree) KthSmallest(k uint64) (float32, error) {
	if t.IsEmpty() {
		return 0, ErrEmpty
	}
	if k == 0 || k > t.n {
		return 0, fmt.Errorf("k must be between 1 and %d: %d: %w", t.n, k, common.ErrInvalidInput)
	}
	return t.kth(k), nil
}

// CDF returns the ranks of the split points followed by 1.
func (t *Tree) CDF(splitPoints []float32) ([]float64, error) {
	if t.IsEmpty() {
		return nil, ErrEmpty
	}
	if err := validateSplitPoints(splitPoints); err != nil {
		return nil, err
	}
	ranks := make([]float64, 0, len(splitPoints)+1)
	for _, sp := range splitPoints {
		ranks = append(ranks, float64(t.CountLE(sp))/float64(t.n))
	}
	ranks = append(ranks, 1)
	return ranks, nil
}

// PMF returns the fraction of samples falling into each interval delimited
// by the split points: (-inf, sp0], (sp0, sp1], ..., (spN, +inf).
func (t *Tree) PMF(splitPoints []float32) ([]float64, error) {
	buckets, err := t.CDF(splitPoints)
	if err != nil {
		return nil, err
	}
	for i := len(splitPoints); i > 0; i-- {
		buckets[i] -= buckets[i-1]
	}
	return buckets, nil
}

// ForEach calls fn with every distinct value and its multiplicity in
// increasing order, until fn returns false.
func (t *Tree) ForEach(fn func(value float32, count uint64) bool) {
	stack := make([]arena.Ref, 0, 64)
	ref := t.root
	for ref != arena.Nil || len(stack) > 0 {
		for ref != arena.Nil {
			stack = append(stack, ref)
			ref = t.arena.Node(ref).Left
		}
		ref = stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		node := t.arena.Node(ref)
		if !fn(node.Value, uint64(node.Count)) {
			return
		}
		ref = node.Right
	}
}

// String returns a human-readable summary of the tree.
func (t *Tree) String(shouldPrintNodes bool) string {
	var sb strings.Builder
	sb.WriteString("### Order statistics tree summary:\n")
	sb.WriteString(fmt.Sprintf("   Capacity           : %d\n", t.capacity))
	sb.WriteString(fmt.Sprintf("   Samples            : %d\n", t.n))
	sb.WriteString(fmt.Sprintf("   Distinct values    : %d\n", t.distinct))
	sb.WriteString(fmt.Sprintf("   Height             : %d\n", t.height(t.root)))
	if !t.IsEmpty() {
		sb.WriteString(fmt.Sprintf("   Min                : %v\n", t.min))
		sb.WriteString(fmt.Sprintf("   Max                : %v\n", t.max))
	}
	sb.WriteString("### End order statistics tree summary\n")

	if shouldPrintNodes && !t.IsEmpty() {
		sb.WriteString("Nodes:\n")
		i := 0
		t.ForEach(func(value float32, count uint64) bool {
			sb.WriteString(fmt.Sprintf("%d: %v, %d\n", i, value, count))
			i++
			return true
		})
	}
	return sb.String()
}

func (t *Tree) checkCapacity(extra uint64) error {
	if t.n+extra > t.capacity {
		return fmt.Errorf("%w: %d samples held, %d offered, capacity %d", ErrCapacityExceeded, t.n, extra, t.capacity)
	}
	return nil
}

// reserve takes from the arena one node per value that is not yet in the tree.
func (t *Tree) reserve(values []float32) (arena.Ref, error) {
	var fresh map[float32]struct{}
	for _, v := range values {
		if t.find(v) != arena.Nil {
			continue
		}
		if fresh == nil {
			fresh = make(map[float32]struct{})
		}
		fresh[v] = struct{}{}
	}
	ref, err := t.arena.Reserve(len(fresh))
	if err != nil {
		return arena.Nil, err
	}
	return ref, nil
}

func (t *Tree) observe(v float32) {
	t.min = min(t.min, v)
	t.max = max(t.max, v)
}

func (t *Tree) find(x float32) arena.Ref {
	ref := t.root
	for ref != arena.Nil {
		node := t.arena.Node(ref)
		switch {
		case t.lessFn(x, node.Value):
			ref = node.Left
		case t.lessFn(node.Value, x):
			ref = node.Right
		default:
			return ref
		}
	}
	return arena.Nil
}

// insert adds weight copies of value below ref and returns the new subtree
// root. A new node takes the ref in fresh, which is then advanced.
func (t *Tree) insert(ref arena.Ref, value float32, weight uint32, fresh *arena.Ref) arena.Ref {
	if ref == arena.Nil {
		ref = *fresh
		*fresh++
		*t.arena.Node(ref) = arena.Node{
			Value:    value,
			Count:    weight,
			Size:     uint64(weight),
			Priority: t.priority(ref),
		}
		t.distinct++
		return ref
	}

	node := t.arena.Node(ref)
	switch {
	case t.lessFn(value, node.Value):
		node.Left = t.insert(node.Left, value, weight, fresh)
		t.pull(ref)
		if t.arena.Node(node.Left).Priority > node.Priority {
			ref = t.rotateRight(ref)
		}
	case t.lessFn(node.Value, value):
		node.Right = t.insert(node.Right, value, weight, fresh)
		t.pull(ref)
		if t.arena.Node(node.Right).Priority > node.Priority {
			ref = t.rotateLeft(ref)
		}
	default:
		node.Count += weight
		node.Size += uint64(weight)
	}
	return ref
}

func (t *Tree) kth(k uint64) float32 {
	ref := t.root
	for ref != arena.Nil {
		node := t.arena.Node(ref)
		leftSize := t.size(node.Left)
		switch {
		case k <= leftSize:
			ref = node.Left
		case k <= leftSize+uint64(node.Count):
			return node.Value
		default:
			k -= leftSize + uint64(node.Count)
			ref = node.Right
		}
	}
	// unreachable while sizes are consistent and 1 <= k <= n
	return t.max
}

func (t *Tree) size(ref arena.Ref) uint64 {
	if ref == arena.Nil {
		return 0
	}
	return t.arena.Node(ref).Size
}

// pull recomputes the subtree size of ref from its children.
func (t *Tree) pull(ref arena.Ref) {
	node := t.arena.Node(ref)
	node.Size = uint64(node.Count) + t.size(node.Left) + t.size(node.Right)
}

func (t *Tree) rotateRight(ref arena.Ref) arena.Ref {
	node := t.arena.Node(ref)
	l := node.Left
	left := t.arena.Node(l)
	node.Left = left.Right
	left.Right = ref
	t.pull(ref)
	t.pull(l)
	return l
}

func (t *Tree) rotateLeft(ref arena.Ref) arena.Ref {
	node := t.arena.Node(ref)
	r := node.Right
	right := t.arena.Node(r)
	node.Right = right.Left
	right.Left = ref
	t.pull(ref)
	t.pull(r)
	return r
}

func (t *Tree) priority(ref arena.Ref) uint32 {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(ref))
	return uint32(murmur3.SeedSum64(t.seed, buf[:]) >> 32)
}

func (t *Tree) height(ref arena.Ref) int {
	if ref == arena.Nil {
		return 0
	}
	node := t.arena.Node(ref)
	return 1 + max(t.height(node.Left), t.height(node.Right))
}

func validateSplitPoints(values []float32) error {
	for i, v := range values {
		if common.IsNaN32(v) {
			return errNanInSplitPoints
		}
		if i < len(values)-1 && !(v < values[i+1]) {
			return errInvalidSplitPoints
		}
	}
	return nil
}
