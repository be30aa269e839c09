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
	"github.com/cdftree/cdftree-go/common"
	"github.com/cdftree/cdftree-go/internal"
)

// SortedView is an immutable snapshot of a tree: the distinct values in
// increasing order and their cumulative weights. It answers the same
// queries as the tree by binary search and may be shared between goroutines.
type SortedView struct {
	values     []float32
	cumWeights []uint64
	totalN     uint64
	lessFn     common.CompareFn[float32]
}

// SortedView snapshots the current contents of the tree.
func (t *Tree) SortedView() (*SortedView, error) {
	if t.IsEmpty() {
		return nil, ErrEmpty
	}
	values := make([]float32, 0, t.distinct)
	cumWeights := make([]uint64, 0, t.distinct)
	var subtotal uint64
	t.ForEach(func(value float32, count uint64) bool {
		subtotal += count
		values = append(values, value)
		cumWeights = append(cumWeights, subtotal)
		return true
	})
	return &SortedView{
		values:     values,
		cumWeights: cumWeights,
		totalN:     t.n,
		lessFn:     t.lessFn,
	}, nil
}

// N returns the number of samples in the snapshot.
func (s *SortedView) N() uint64 {
	return s.totalN
}

// Values returns the distinct values in increasing order.
func (s *SortedView) Values() []float32 {
	return s.values
}

// CumulativeWeights returns, for each distinct value, the number of samples
// less than or equal to it.
func (s *SortedView) CumulativeWeights() []uint64 {
	return s.cumWeights
}

// Rank returns the fraction of samples <= x (inclusive) or < x (exclusive).
func (s *SortedView) Rank(x float32, inclusive bool) (float64, error) {
	if common.IsNaN32(x) {
		return 0, ErrNaN
	}
	crit := internal.InequalityLT
	if inclusive {
		crit = internal.InequalityLE
	}
	index := internal.FindWithInequality(s.values, 0, len(s.values)-1, x, crit, s.lessFn)
	if index == -1 {
		return 0, nil
	}
	return float64(s.cumWeights[index]) / float64(s.totalN), nil
}

// Quantile returns the value at the given normalized rank. The inclusive
// criterion matches Tree.Select.
func (s *SortedView) Quantile(rank float64, inclusive bool) (float32, error) {
	if !internal.IsNormalizedRank(rank) {
		return 0, ErrInvalidRank
	}
	naturalRank := internal.NaturalRank(rank, s.totalN, inclusive)
	crit := internal.InequalityGT
	if inclusive {
		crit = internal.InequalityGE
	}
	index := internal.FindWithInequality(s.cumWeights, 0, len(s.cumWeights)-1, uint64(max(naturalRank, 0)), crit, func(a, b uint64) bool {
		return a < b
	})
	if index == -1 {
		return s.values[len(s.values)-1], nil
	}
	return s.values[index], nil
}
