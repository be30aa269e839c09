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

package cdftree

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/cdftree/cdftree-go/common"
	"github.com/cdftree/cdftree-go/internal"
	"github.com/cdftree/cdftree-go/ostree"
)

// fanOut describes how an element-wise map is split across goroutines.
type fanOut struct {
	workers   int
	threshold int
}

// outputBuffer returns src itself for in-place transforms, a new slice otherwise.
func outputBuffer(src []float32, inPlace bool) []float32 {
	if inPlace {
		return src
	}
	return make([]float32, len(src))
}

// valuesToFractions writes the rank fraction of src[i] to dst[i].
// All inputs are validated before the first write.
func valuesToFractions(ctx context.Context, tree *ostree.Tree, dst, src []float32, f fanOut) error {
	for i, v := range src {
		if common.IsNaN32(v) {
			return fmt.Errorf("value at index %d: %w", i, ostree.ErrNaN)
		}
	}
	return f.mapRange(ctx, len(src), func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			rank, err := tree.Rank(src[i])
			if err != nil {
				return err
			}
			dst[i] = float32(rank)
		}
		return nil
	})
}

// fractionsToValues writes the sample at rank fraction src[i] to dst[i].
// All inputs are validated before the first write.
func fractionsToValues(ctx context.Context, tree *ostree.Tree, dst, src []float32, f fanOut) error {
	for i, q := range src {
		if !internal.IsNormalizedRank(float64(q)) {
			return fmt.Errorf("fraction %v at index %d: %w", q, i, ostree.ErrInvalidRank)
		}
	}
	return f.mapRange(ctx, len(src), func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			value, err := tree.SelectFloat32(src[i])
			if err != nil {
				return err
			}
			dst[i] = value
		}
		return nil
	})
}

// mapRange calls fn over [0, n) in contiguous chunks, one goroutine per chunk
// when n reaches the threshold.
func (f fanOut) mapRange(ctx context.Context, n int, fn func(lo, hi int) error) error {
	if f.workers < 2 || n < f.threshold || n < 2 {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(0, n)
	}
	workers := min(f.workers, n)
	chunk := (n + workers - 1) / workers

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(lo, hi)
		})
	}
	return g.Wait()
}
