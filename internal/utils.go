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
	"math"
)

const (
	// tailRoundingFactor trims float noise from q*n before rounding it to a
	// natural rank, so that q = i/n maps back onto rank i.
	tailRoundingFactor = 1e7
)

// NaturalRank converts a normalized rank in [0, 1] to a natural rank in [0, totalN].
// Inclusive rounds up, exclusive rounds down.
func NaturalRank(normalizedRank float64, totalN uint64, inclusive bool) int64 {
	naturalRank := normalizedRank * float64(totalN)
	if totalN <= tailRoundingFactor {
		naturalRank = math.Round(naturalRank*tailRoundingFactor) / tailRoundingFactor
	}
	if inclusive {
		return int64(math.Ceil(naturalRank))
	}
	return int64(math.Floor(naturalRank))
}

// NaturalRankFloat32 is the inclusive NaturalRank of a single precision rank.
// A rank that is exactly float32(i/n) maps onto i, any other rank rounds up.
func NaturalRankFloat32(normalizedRank float32, totalN uint64) int64 {
	naturalRank := float64(normalizedRank) * float64(totalN)
	nearest := math.Round(naturalRank)
	if float32(nearest/float64(totalN)) == normalizedRank {
		return int64(nearest)
	}
	return int64(math.Ceil(naturalRank))
}

// IsNormalizedRank returns true if rank is a number between 0 and 1 inclusive.
func IsNormalizedRank(rank float64) bool {
	return rank >= 0 && rank <= 1
}

// ClampInt64 limits v to [lo, hi].
func ClampInt64(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
