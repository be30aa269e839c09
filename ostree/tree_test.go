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

package ostree

import (
	"math"
	"math/rand"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/cdftree/cdftree-go/arena"
	"github.com/cdftree/cdftree-go/common"
)

func newTestTree(t *testing.T, numNodes int, capacity uint64, opts ...Option) (*Tree, *arena.Arena) {
	t.Helper()
	a, err := arena.New(numNodes)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Free() })
	tree, err := New(a, capacity, opts...)
	require.NoError(t, err)
	return tree, a
}

// linspace mirrors numpy.linspace(start, stop, num, dtype=float32).
func linspace(start, stop float64, num int) []float32 {
	out := make([]float32, num)
	step := (stop - start) / float64(num-1)
	for i := range out {
		out[i] = float32(start + float64(i)*step)
	}
	out[num-1] = float32(stop)
	return out
}

// checkInvariants walks the whole tree and verifies ordering, heap priorities
// and subtree sizes.
func checkInvariants(t *testing.T, tree *Tree) {
	t.Helper()
	var walk func(ref arena.Ref, lo, hi *float32) (uint64, int)
	walk = func(ref arena.Ref, lo, hi *float32) (uint64, int) {
		if ref == arena.Nil {
			return 0, 0
		}
		node := tree.arena.Node(ref)
		if lo != nil {
			require.Less(t, *lo, node.Value, "in-order must be strictly increasing")
		}
		if hi != nil {
			require.Less(t, node.Value, *hi, "in-order must be strictly increasing")
		}
		require.Greater(t, node.Count, uint32(0))
		if node.Left != arena.Nil {
			require.LessOrEqual(t, tree.arena.Node(node.Left).Priority, node.Priority)
		}
		if node.Right != arena.Nil {
			require.LessOrEqual(t, tree.arena.Node(node.Right).Priority, node.Priority)
		}
		value := node.Value
		leftSize, leftNodes := walk(node.Left, lo, &value)
		rightSize, rightNodes := walk(node.Right, &value, hi)
		require.Equal(t, uint64(node.Count)+leftSize+rightSize, node.Size, "subtree size")
		return node.Size, 1 + leftNodes + rightNodes
	}
	size, nodes := walk(tree.root, nil, nil)
	require.Equal(t, tree.N(), size)
	require.Equal(t, tree.Distinct(), nodes)
}

func TestNew(t *testing.T) {
	a, err := arena.New(4)
	require.NoError(t, err)
	defer a.Free()

	t.Run("Valid", func(t *testing.T) {
		tree, err := New(a, 10)
		assert.NoError(t, err)
		assert.True(t, tree.IsEmpty())
		assert.Equal(t, uint64(10), tree.Capacity())
		assert.Equal(t, uint64(0), tree.N())
	})

	t.Run("Zero Capacity", func(t *testing.T) {
		_, err := New(a, 0)
		assert.ErrorIs(t, err, ErrInvalidCapacity)
		assert.ErrorIs(t, err, common.ErrInvalidInput)
	})

	t.Run("Capacity Too Large", func(t *testing.T) {
		_, err := New(a, MaxCapacity+1)
		assert.ErrorIs(t, err, ErrInvalidCapacity)
	})

	t.Run("No Arena", func(t *testing.T) {
		_, err := New(nil, 10)
		assert.ErrorIs(t, err, common.ErrInvalidLifecycle)
	})
}

func TestTree_Insert(t *testing.T) {
	t.Run("Batch", func(t *testing.T) {
		tree, _ := newTestTree(t, 64, 64)
		require.NoError(t, tree.Insert(3, 1, 2))
		assert.Equal(t, uint64(3), tree.N())
		assert.Equal(t, 3, tree.Distinct())
		minVal, err := tree.Min()
		assert.NoError(t, err)
		assert.Equal(t, float32(1), minVal)
		maxVal, err := tree.Max()
		assert.NoError(t, err)
		assert.Equal(t, float32(3), maxVal)
		checkInvariants(t, tree)
	})

	t.Run("Empty Batch", func(t *testing.T) {
		tree, _ := newTestTree(t, 4, 4)
		assert.NoError(t, tree.Insert())
		assert.True(t, tree.IsEmpty())
	})

	t.Run("Duplicates Share A Node", func(t *testing.T) {
		tree, a := newTestTree(t, 4, 16)
		require.NoError(t, tree.Insert(2, 2, 2, 1, 2))
		assert.Equal(t, uint64(5), tree.N())
		assert.Equal(t, 2, tree.Distinct())
		assert.Equal(t, 2, a.Len())
		assert.Equal(t, uint64(4), tree.Count(2))
		assert.Equal(t, uint64(0), tree.Count(3))
		checkInvariants(t, tree)
	})

	t.Run("Signed Zeros Are Equal", func(t *testing.T) {
		tree, _ := newTestTree(t, 4, 4)
		negZero := float32(math.Copysign(0, -1))
		require.NoError(t, tree.Insert(0, negZero))
		assert.Equal(t, 1, tree.Distinct())
		assert.Equal(t, uint64(2), tree.Count(0))
	})

	t.Run("Infinities", func(t *testing.T) {
		tree, _ := newTestTree(t, 4, 4)
		posInf := float32(math.Inf(1))
		negInf := float32(math.Inf(-1))
		require.NoError(t, tree.Insert(posInf, 0, negInf))
		rank, err := tree.Rank(0)
		assert.NoError(t, err)
		assert.InDelta(t, 2.0/3.0, rank, 1e-12)
		v, err := tree.Select(1)
		assert.NoError(t, err)
		assert.Equal(t, posInf, v)
	})

	t.Run("NaN Rejects Whole Batch", func(t *testing.T) {
		tree, a := newTestTree(t, 8, 8)
		nan := float32(math.NaN())
		err := tree.Insert(1, 2, nan, 4)
		assert.ErrorIs(t, err, ErrNaN)
		assert.ErrorIs(t, err, common.ErrInvalidInput)
		assert.True(t, tree.IsEmpty())
		assert.Equal(t, 0, a.Len())
	})

	t.Run("Capacity Exceeded Leaves Tree Unchanged", func(t *testing.T) {
		tree, a := newTestTree(t, 16, 4)
		require.NoError(t, tree.Insert(1, 2, 3))
		err := tree.Insert(4, 5)
		assert.ErrorIs(t, err, ErrCapacityExceeded)
		assert.ErrorIs(t, err, common.ErrCapacityExceeded)
		assert.Equal(t, uint64(3), tree.N())
		assert.Equal(t, 3, a.Len())
		require.NoError(t, tree.Insert(4))
		assert.Equal(t, uint64(4), tree.N())
		assert.ErrorIs(t, tree.Insert(4), common.ErrCapacityExceeded)
		checkInvariants(t, tree)
	})

	t.Run("Arena Exhausted Leaves Tree Unchanged", func(t *testing.T) {
		tree, a := newTestTree(t, 3, 100)
		require.NoError(t, tree.Insert(1, 2))
		err := tree.Insert(3, 4)
		assert.ErrorIs(t, err, arena.ErrArenaExhausted)
		assert.ErrorIs(t, err, common.ErrCapacityExceeded)
		assert.Equal(t, uint64(2), tree.N())
		assert.Equal(t, 2, a.Len())
		// existing values need no new nodes
		require.NoError(t, tree.Insert(1, 2, 2, 3))
		assert.Equal(t, uint64(6), tree.N())
		checkInvariants(t, tree)
	})

	t.Run("Random Inserts Keep Invariants", func(t *testing.T) {
		const n = 5000
		tree, _ := newTestTree(t, n, n)
		rng := rand.New(rand.NewSource(42))
		for i := 0; i < n/100; i++ {
			batch := make([]float32, 100)
			for j := range batch {
				batch[j] = float32(rng.Intn(2000)) / 8
			}
			require.NoError(t, tree.Insert(batch...))
		}
		checkInvariants(t, tree)
		// expected treap height is logarithmic; 64 is far beyond it for 5000 keys
		assert.Less(t, tree.height(tree.root), 64)
	})

	t.Run("Sorted Inserts Stay Balanced", func(t *testing.T) {
		const n = 4096
		tree, _ := newTestTree(t, n, n)
		for i := 0; i < n; i++ {
			require.NoError(t, tree.Insert(float32(i)))
		}
		checkInvariants(t, tree)
		assert.Less(t, tree.height(tree.root), 64)
	})
}

func TestTree_InsertWeighted(t *testing.T) {
	weighted, _ := newTestTree(t, 8, 100)
	repeated, _ := newTestTree(t, 8, 100)

	require.NoError(t, weighted.InsertWeighted(1, 3))
	require.NoError(t, weighted.InsertWeighted(5, 2))
	require.NoError(t, weighted.InsertWeighted(1, 1))
	require.NoError(t, repeated.Insert(1, 1, 1, 5, 5, 1))

	assert.Equal(t, repeated.N(), weighted.N())
	for _, x := range []float32{0, 1, 2, 5, 6} {
		assert.Equal(t, repeated.CountLE(x), weighted.CountLE(x))
	}
	checkInvariants(t, weighted)

	t.Run("Zero Weight", func(t *testing.T) {
		assert.ErrorIs(t, weighted.InsertWeighted(1, 0), ErrInvalidWeight)
	})

	t.Run("NaN", func(t *testing.T) {
		assert.ErrorIs(t, weighted.InsertWeighted(float32(math.NaN()), 1), ErrNaN)
	})

	t.Run("Over Capacity", func(t *testing.T) {
		err := weighted.InsertWeighted(7, 95)
		assert.ErrorIs(t, err, ErrCapacityExceeded)
		assert.Equal(t, uint64(6), weighted.N())
	})
}

func TestTree_Rank(t *testing.T) {
	t.Run("Evenly Spaced Values", func(t *testing.T) {
		data := linspace(-4, 5, 20)
		tree, _ := newTestTree(t, 32, 32)
		require.NoError(t, tree.Insert(data...))

		for i, v := range data {
			rank, err := tree.Rank(v)
			require.NoError(t, err)
			assert.InDelta(t, float64(i+1)/20, rank, 1e-12)
		}
	})

	t.Run("Ties Are Inclusive", func(t *testing.T) {
		tree, _ := newTestTree(t, 8, 8)
		require.NoError(t, tree.Insert(1, 2, 2, 2, 3))
		rank, err := tree.Rank(2)
		assert.NoError(t, err)
		assert.InDelta(t, 0.8, rank, 1e-12)
		assert.Equal(t, uint64(1), tree.CountLT(2))
	})

	t.Run("Outside Range", func(t *testing.T) {
		tree, _ := newTestTree(t, 8, 8)
		require.NoError(t, tree.Insert(1, 2, 3))
		rank, err := tree.Rank(0.5)
		assert.NoError(t, err)
		assert.Equal(t, 0.0, rank)
		rank, err = tree.Rank(10)
		assert.NoError(t, err)
		assert.Equal(t, 1.0, rank)
	})

	t.Run("Empty", func(t *testing.T) {
		tree, _ := newTestTree(t, 8, 8)
		_, err := tree.Rank(1)
		assert.ErrorIs(t, err, ErrEmpty)
	})

	t.Run("NaN", func(t *testing.T) {
		tree, _ := newTestTree(t, 8, 8)
		require.NoError(t, tree.Insert(1))
		_, err := tree.Rank(float32(math.NaN()))
		assert.ErrorIs(t, err, ErrNaN)
	})

	t.Run("Matches Empirical CDF", func(t *testing.T) {
		const n = 2000
		tree, _ := newTestTree(t, n, n)
		rng := rand.New(rand.NewSource(7))
		samples := make([]float64, n)
		values := make([]float32, n)
		for i := range values {
			values[i] = float32(rng.NormFloat64())
			samples[i] = float64(values[i])
		}
		require.NoError(t, tree.Insert(values...))
		slices.Sort(samples)

		for i := 0; i < 200; i++ {
			q := float32(rng.NormFloat64() * 1.5)
			rank, err := tree.Rank(q)
			require.NoError(t, err)
			assert.InDelta(t, stat.CDF(float64(q), stat.Empirical, samples, nil), rank, 1e-9)
		}
	})
}

func TestTree_PDF(t *testing.T) {
	tree, _ := newTestTree(t, 8, 8)
	require.NoError(t, tree.Insert(1, 2, 2, 3))
	pdf, err := tree.PDF(2)
	assert.NoError(t, err)
	assert.InDelta(t, 0.5, pdf, 1e-12)
	pdf, err = tree.PDF(4)
	assert.NoError(t, err)
	assert.Equal(t, 0.0, pdf)
}

func TestTree_Select(t *testing.T) {
	t.Run("Round Trip On Rank Boundaries", func(t *testing.T) {
		data := linspace(-4, 5, 20)
		tree, _ := newTestTree(t, 32, 32)
		require.NoError(t, tree.Insert(data...))

		for i, v := range data {
			got, err := tree.Select(float64(i+1) / 20)
			require.NoError(t, err)
			assert.Equal(t, v, got, "rank %d/20", i+1)

			q := float32(i+1) / 20
			got, err = tree.SelectFloat32(q)
			require.NoError(t, err)
			assert.Equal(t, v, got, "rank %v", q)
		}
	})

	t.Run("Ranks Below A Boundary Resolve Upward", func(t *testing.T) {
		data := linspace(-4, 5, 20)
		queries := linspace(1.0/20-1.0/40, 1, 20)
		tree, _ := newTestTree(t, 32, 32)
		require.NoError(t, tree.Insert(data...))

		for i, q := range queries {
			got, err := tree.Select(float64(q))
			require.NoError(t, err)
			assert.Equal(t, data[i], got, "rank %v", q)
		}
	})

	t.Run("Zero Rank Is Minimum", func(t *testing.T) {
		tree, _ := newTestTree(t, 8, 8)
		require.NoError(t, tree.Insert(4, 2, 9))
		got, err := tree.Select(0)
		assert.NoError(t, err)
		assert.Equal(t, float32(2), got)
	})

	t.Run("Duplicates", func(t *testing.T) {
		tree, _ := newTestTree(t, 8, 8)
		require.NoError(t, tree.Insert(1, 2, 2, 2, 3))
		for _, tc := range []struct {
			rank     float64
			expected float32
		}{
			{0.2, 1}, {0.21, 2}, {0.4, 2}, {0.8, 2}, {0.81, 3}, {1, 3},
		} {
			got, err := tree.Select(tc.rank)
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, got, "rank %v", tc.rank)
		}
	})

	t.Run("Invalid Rank", func(t *testing.T) {
		tree, _ := newTestTree(t, 8, 8)
		require.NoError(t, tree.Insert(1))
		for _, rank := range []float64{-0.1, 1.1, math.NaN()} {
			_, err := tree.Select(rank)
			assert.ErrorIs(t, err, ErrInvalidRank)
			assert.ErrorIs(t, err, common.ErrInvalidInput)
		}
	})

	t.Run("Empty", func(t *testing.T) {
		tree, _ := newTestTree(t, 8, 8)
		_, err := tree.Select(0.5)
		assert.ErrorIs(t, err, ErrEmpty)
	})

	t.Run("Matches Empirical Quantile", func(t *testing.T) {
		const n = 1000
		tree, _ := newTestTree(t, n, n)
		rng := rand.New(rand.NewSource(11))
		samples := make([]float64, n)
		values := make([]float32, n)
		for i := range values {
			values[i] = float32(rng.ExpFloat64())
			samples[i] = float64(values[i])
		}
		require.NoError(t, tree.Insert(values...))
		slices.Sort(samples)

		for i := 1; i <= n; i += 7 {
			// midway between rank marks, away from rounding at the boundaries
			p := (float64(i) - 0.5) / n
			got, err := tree.Select(p)
			require.NoError(t, err)
			assert.Equal(t, stat.Quantile(p, stat.Empirical, samples, nil), float64(got))
		}
	})
}

func TestTree_KthSmallest(t *testing.T) {
	tree, _ := newTestTree(t, 8, 8)
	require.NoError(t, tree.Insert(5, 1, 3))
	for k, expected := range []float32{1, 3, 5} {
		got, err := tree.KthSmallest(uint64(k + 1))
		assert.NoError(t, err)
		assert.Equal(t, expected, got)
	}
	_, err := tree.KthSmallest(0)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	_, err = tree.KthSmallest(4)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestTree_CDFAndPMF(t *testing.T) {
	tree, _ := newTestTree(t, 16, 16)
	require.NoError(t, tree.Insert(1, 2, 3, 4, 5, 6, 7, 8, 9, 10))

	cdf, err := tree.CDF([]float32{2, 5, 9.5})
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff([]float64{0.2, 0.5, 0.9, 1}, cdf, cmpopts.EquateApprox(0, 1e-12)))

	pmf, err := tree.PMF([]float32{2, 5, 9.5})
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff([]float64{0.2, 0.3, 0.4, 0.1}, pmf, cmpopts.EquateApprox(0, 1e-12)))

	_, err = tree.CDF([]float32{3, 2})
	assert.ErrorIs(t, err, errInvalidSplitPoints)
	_, err = tree.CDF([]float32{float32(math.NaN())})
	assert.ErrorIs(t, err, errNanInSplitPoints)

	empty, _ := newTestTree(t, 4, 4)
	_, err = empty.PMF([]float32{1})
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestTree_SortedView(t *testing.T) {
	const n = 1500
	tree, _ := newTestTree(t, n, n)
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < n; i++ {
		require.NoError(t, tree.Insert(float32(rng.Intn(300))))
	}

	view, err := tree.SortedView()
	require.NoError(t, err)
	assert.Equal(t, uint64(n), view.N())
	assert.Len(t, view.Values(), tree.Distinct())
	assert.True(t, slices.IsSorted(view.Values()))
	assert.Equal(t, uint64(n), view.CumulativeWeights()[len(view.CumulativeWeights())-1])

	for i := 0; i < 300; i++ {
		x := float32(rng.Intn(320)) - 10
		want, err := tree.Rank(x)
		require.NoError(t, err)
		got, err := view.Rank(x, true)
		require.NoError(t, err)
		assert.Equal(t, want, got)

		exclusive, err := view.Rank(x, false)
		require.NoError(t, err)
		assert.Equal(t, float64(tree.CountLT(x))/n, exclusive)

		q := rng.Float64()
		wantValue, err := tree.Select(q)
		require.NoError(t, err)
		gotValue, err := view.Quantile(q, true)
		require.NoError(t, err)
		assert.Equal(t, wantValue, gotValue, "rank %v", q)
	}

	t.Run("Exclusive Quantile", func(t *testing.T) {
		small, _ := newTestTree(t, 8, 8)
		require.NoError(t, small.Insert(10, 20, 30, 40))
		v, err := small.SortedView()
		require.NoError(t, err)
		got, err := v.Quantile(0.5, false)
		assert.NoError(t, err)
		assert.Equal(t, float32(30), got)
		got, err = v.Quantile(1, false)
		assert.NoError(t, err)
		assert.Equal(t, float32(40), got)
		_, err = v.Quantile(2, true)
		assert.ErrorIs(t, err, ErrInvalidRank)
	})

	t.Run("Empty", func(t *testing.T) {
		empty, _ := newTestTree(t, 4, 4)
		_, err := empty.SortedView()
		assert.ErrorIs(t, err, ErrEmpty)
	})
}

func TestTree_ForEachStopsEarly(t *testing.T) {
	tree, _ := newTestTree(t, 8, 8)
	require.NoError(t, tree.Insert(4, 3, 2, 1))
	var seen []float32
	tree.ForEach(func(value float32, count uint64) bool {
		seen = append(seen, value)
		return len(seen) < 2
	})
	assert.Equal(t, []float32{1, 2}, seen)
}

func TestTree_String(t *testing.T) {
	tree, _ := newTestTree(t, 8, 8)
	require.NoError(t, tree.Insert(1, 2, 2))
	summary := tree.String(true)
	assert.Contains(t, summary, "### Order statistics tree summary:")
	assert.Contains(t, summary, "Samples            : 3")
	assert.Contains(t, summary, "Distinct values    : 2")
	assert.Contains(t, summary, "1: 2, 2")
	assert.NotContains(t, tree.String(false), "Nodes:")
}

func TestTree_SameSeedSameShape(t *testing.T) {
	first, _ := newTestTree(t, 64, 64, WithSeed(1))
	second, _ := newTestTree(t, 64, 64, WithSeed(1))
	values := []float32{5, 3, 8, 1, 4, 7, 9, 2, 6}
	require.NoError(t, first.Insert(values...))
	require.NoError(t, second.Insert(values...))
	assert.Equal(t, first.String(false), second.String(false))
	assert.Equal(t, first.root, second.root)
}
