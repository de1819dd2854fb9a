/*
 * Copyright 2026 The HIBF Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package fpcorrection precomputes the per-split-count false-positive
// correction multipliers used when a user bin is spread across several
// technical bins of an interleaved Bloom filter.
//
// Querying s independently-addressed technical bins for the same key
// inflates the effective false positive rate relative to a single bin.
// Table.At(s) returns the multiplier that, applied to a split bin's size,
// keeps the per-bin FPR at the originally requested target.
package fpcorrection

import "math"

// Table is an immutable, 1-indexed correction table: Table.At(1) == 1 and
// Table.At(s) is non-decreasing in s.
type Table struct {
	values []float64
}

// Compute builds a Table covering split counts 1..nextMultipleOf64(maxSplit).
//
// p is the target false positive rate (0 < p < 1), h the number of hash
// functions used by the interleaved Bloom filter (h >= 1).
func Compute(p float64, h int, maxSplit int) Table {
	if maxSplit < 1 {
		maxSplit = 1
	}
	size := nextMultipleOf64(maxSplit)

	values := make([]float64, size+1)
	values[1] = 1.0

	denominator := math.Log(1 - math.Exp(math.Log(p)/float64(h)))

	for s := 2; s <= size; s++ {
		t := 1.0 - math.Pow(1-p, float64(s))
		values[s] = math.Log(1-math.Exp(math.Log(t)/float64(h))) / denominator
		if values[s] < values[s-1] {
			// The correction must be non-decreasing; a violation here means
			// the caller passed an invalid (p, h) combination.
			values[s] = values[s-1]
		}
	}

	return Table{values: values}
}

// At returns the correction multiplier for split count s (s >= 1). Splits
// beyond the table's computed range saturate at the largest known value,
// since the multiplier is non-decreasing.
func (t Table) At(s int) float64 {
	if s < 1 {
		s = 1
	}
	if s >= len(t.values) {
		return t.values[len(t.values)-1]
	}
	return t.values[s]
}

// Len reports the largest split count the table was computed for.
func (t Table) Len() int {
	return len(t.values) - 1
}

func nextMultipleOf64(n int) int {
	if n%64 == 0 {
		return n
	}
	return (n/64 + 1) * 64
}
