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

package internal

import (
	"sort"

	"github.com/cdftree/cdftree-go/common"
)

type Inequality int64

const (
	// InequalityLT finds the last item strictly less than the value.
	InequalityLT Inequality = iota
	// InequalityLE finds the last item less than or equal to the value.
	InequalityLE
	// InequalityGE finds the first item greater than or equal to the value.
	InequalityGE
	// InequalityGT finds the first item strictly greater than the value.
	InequalityGT
)

// FindWithInequality searches the sorted range arr[low:high+1] and returns the
// index selected by crit, or -1 if no item in the range satisfies it.
func FindWithInequality[C comparable](arr []C, low int, high int, v C, crit Inequality, lessFn common.CompareFn[C]) int {
	if len(arr) == 0 || low > high {
		return -1
	}
	span := arr[low : high+1]
	switch crit {
	case InequalityLT:
		// first index with item >= v, step back one
		i := sort.Search(len(span), func(i int) bool { return !lessFn(span[i], v) })
		return offsetOrMissing(low, i-1, len(span))
	case InequalityLE:
		i := sort.Search(len(span), func(i int) bool { return lessFn(v, span[i]) })
		return offsetOrMissing(low, i-1, len(span))
	case InequalityGE:
		i := sort.Search(len(span), func(i int) bool { return !lessFn(span[i], v) })
		return offsetOrMissing(low, i, len(span))
	case InequalityGT:
		i := sort.Search(len(span), func(i int) bool { return lessFn(v, span[i]) })
		return offsetOrMissing(low, i, len(span))
	default:
		panic("invalid inequality")
	}
}

func offsetOrMissing(low int, i int, length int) int {
	if i < 0 || i >= length {
		return -1
	}
	return low + i
}
