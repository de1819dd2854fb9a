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

package layout

import (
	"math"
	"sort"

	"github.com/seqbin/hibf/fpcorrection"
)

// cell is a traceback entry: either "split user bin i across s = j - param
// technical bins" (isSplit true, param holds j') or "merge user bins
// (param, i] into one technical bin" (isSplit false, param holds i').
type cell struct {
	isSplit bool
	param   int
}

// placement is one traceback-derived decision at a single level of the
// binning tree, in increasing technical-bin-index order.
type placement struct {
	isSplit                    bool
	userBinStart, userBinEnd   int // bins[userBinStart:userBinEnd]
	startIndex, numBins        int
	value   float64 // the corrected/alpha-weighted contribution the DP minimised
	rawSize uint64  // the uncorrected estimate recorded in the layout text
}

// pathPrefix accumulates the per-level path segments inherited from
// enclosing merged bins; it is empty at the root.
type pathPrefix struct {
	binIndices   []int
	numberOfBins []int
	sizes        []uint64
}

func (p pathPrefix) extend(binIndex, numBins int, size uint64) pathPrefix {
	return pathPrefix{
		binIndices:   append(append([]int{}, p.binIndices...), binIndex),
		numberOfBins: append(append([]int{}, p.numberOfBins...), numBins),
		sizes:        append(append([]uint64{}, p.sizes...), size),
	}
}

// Run computes the hierarchical binning layout for bins under cfg.
//
// If bins is empty, Run returns an empty Layout with MaxBinID 0 and no
// error (EmptyInput, per spec — not a failure). An invalid cfg is reported
// as *InvalidConfigError before any placement work begins.
func Run(bins []UserBin, cfg PackConfig) (*Layout, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(bins) == 0 {
		return &Layout{MaxBinID: 0}, nil
	}

	ordered := bins
	if cfg.SortBins {
		ordered = sortByCardinalityDescending(bins)
	}

	maxSplit := cfg.Bins
	if lowLevelBinCount > maxSplit {
		maxSplit = lowLevelBinCount
	}
	table := fpcorrection.Compute(cfg.FalsePositiveRate, cfg.NumHashFunctions, maxSplit)

	w := &writer{}
	maxBinID := runLevel(ordered, cfg, pathPrefix{}, w, table)
	w.writeHeader("HIGH_LEVEL_IBF", maxBinID)

	return &Layout{
		MaxBinID: maxBinID,
		Records:  w.all,
		Text:     w.headers.String() + w.records.String(),
	}, nil
}

// runLevel lays out bins into cfg.Bins technical bins at one level of the
// tree, recursing into merged bins as needed. It returns the index, within
// this level's own IBF, of the technical bin with the largest content — the
// value the caller uses to size that IBF and to report max_bin_id.
func runLevel(bins []UserBin, cfg PackConfig, prev pathPrefix, w *writer, table fpcorrection.Table) int {
	n := len(bins)
	t := cfg.Bins

	M, L := dp(bins, cfg, table)
	placements := traceback(L, bins, cfg, table, n, t)
	assignBinIndices(placements)

	maxBinIndex, maxVal := 0, -1.0
	for _, p := range placements {
		if p.value > maxVal {
			maxVal = p.value
			maxBinIndex = p.startIndex
		}
	}
	_ = M // M is only needed to derive L; kept for readability during traceback debugging.

	for _, p := range placements {
		if p.isSplit {
			b := bins[p.userBinStart]
			w.writeRecord(LayoutRecord{
				Filenames:     b.Filenames,
				BinIndices:    append(append([]int{}, prev.binIndices...), p.startIndex),
				NumberOfBins:  append(append([]int{}, prev.numberOfBins...), p.numBins),
				EstMaxTbSizes: append(append([]uint64{}, prev.sizes...), p.rawSize),
			})
			continue
		}

		childPrev := prev.extend(p.startIndex, 1, p.rawSize)
		childCfg := cfg
		childCfg.Bins = lowLevelBinCount
		childBins := bins[p.userBinStart:p.userBinEnd]
		childMaxBinID := runLevel(childBins, childCfg, childPrev, w, table)
		w.writeHeader(mergedBinTag(p.startIndex), childMaxBinID)
	}

	return maxBinIndex
}

// dp fills the (n+1)x(t+1) minimum-max-technical-bin-cardinality tables
// described in spec.md §4.2.
func dp(bins []UserBin, cfg PackConfig, table fpcorrection.Table) (M [][]float64, L [][]cell) {
	n := len(bins)
	t := cfg.Bins

	M = make([][]float64, n+1)
	L = make([][]cell, n+1)
	// M[0][0] = 0; M[0][j] = +Inf for j >= 1, so no technical bin is left
	// unused by the placements traceback reconstructs.
	M[0] = make([]float64, t+1)
	L[0] = make([]cell, t+1)
	for j := 1; j <= t; j++ {
		M[0][j] = math.Inf(1)
	}

	for i := 1; i <= n; i++ {
		M[i] = make([]float64, t+1)
		L[i] = make([]cell, t+1)
		M[i][0] = math.Inf(1)

		count := bins[i-1].KmerCount

		for j := 1; j <= t; j++ {
			best, bestCell := math.Inf(1), cell{}

			// Split option: fewer splits preferred among ties, so walk s
			// (= j - j') from 1 upward by decreasing j'.
			for jprime := j - 1; jprime >= i-1 && jprime >= 0; jprime-- {
				s := j - jprime
				size := splitSize(count, s, table)
				cand := math.Max(M[i-1][jprime], size)
				if cand < best {
					best, bestCell = cand, cell{isSplit: true, param: jprime}
				}
			}

			// Merge option: smaller merge groups preferred among ties, so
			// walk i' from i-1 down to 0.
			for iprime := i - 1; iprime >= 0; iprime-- {
				merged := mergedSize(bins, iprime, i, cfg)
				cand := math.Max(M[iprime][j-1], cfg.Alpha*float64(merged))
				if cand < best {
					best, bestCell = cand, cell{isSplit: false, param: iprime}
				}
			}

			M[i][j] = best
			L[i][j] = bestCell
		}
	}

	return M, L
}

// traceback reconstructs the placements chosen by dp for M[i][j].
//
// The DP's own column index is not the technical-bin index: M[i][j]
// describes "the first i (sorted) user bins packed into the first j
// columns" in the abstract, but the physical bin each decision lands on
// only falls out once every decision is known, because each step peels
// the LAST user bin (or the last contiguous merge group) off the tail of
// the remaining problem and hands it the next unclaimed technical bin.
// Concretely: the decision made at (i, j) — before recursing into the
// smaller subproblem (i-1, j') or (i', j-1) — claims bins starting right
// after wherever the previous (i.e. the next-outer) decision left off, and
// the very first decision made (at the top, M[n][t]) claims bin 0.
//
// So traceback walks from (n, t) down to (0, *) — the same direction the
// recurrence was defined in — and returns placements in that order: the
// tail decision (the last user bin or merge group) first, at bin 0. Since
// each step recurses on the REMAINDER (the smaller subproblem covering
// the earlier user bins), and the remainder is exactly what gets the
// LATER technical bins, walking (n,t) -> (0,*) and recording each
// decision as we go produces the placements already in increasing
// technical-bin order (spec.md §4.2) — assignBinIndices below just turns
// that order into concrete indices via a running counter.
func traceback(L [][]cell, bins []UserBin, cfg PackConfig, table fpcorrection.Table, i, j int) []placement {
	if i == 0 {
		return nil
	}

	c := L[i][j]
	if c.isSplit {
		jprime := c.param
		s := j - jprime
		raw := ceilDiv(bins[i-1].KmerCount, uint64(s))
		cur := placement{
			isSplit:      true,
			userBinStart: i - 1,
			userBinEnd:   i,
			numBins:      s,
			value:        float64(raw) * table.At(s),
			rawSize:      raw,
		}
		rest := traceback(L, bins, cfg, table, i-1, jprime)
		return append([]placement{cur}, rest...)
	}

	iprime := c.param
	merged := mergedSize(bins, iprime, i, cfg)
	cur := placement{
		isSplit:      false,
		userBinStart: iprime,
		userBinEnd:   i,
		numBins:      1,
		value:        cfg.Alpha * float64(merged),
		rawSize:      merged,
	}
	rest := traceback(L, bins, cfg, table, iprime, j-1)
	return append([]placement{cur}, rest...)
}

// assignBinIndices turns the decision order traceback produces into
// concrete technical-bin indices: the first placement claims bin 0, and
// each subsequent one starts where the last left off.
func assignBinIndices(placements []placement) {
	next := 0
	for i := range placements {
		placements[i].startIndex = next
		next += placements[i].numBins
	}
}

func splitSize(count uint64, s int, table fpcorrection.Table) float64 {
	if count == 0 {
		return 0
	}
	return float64(ceilDiv(count, uint64(s))) * table.At(s)
}

func mergedSize(bins []UserBin, iprime, i int, cfg PackConfig) uint64 {
	group := bins[iprime:i]
	if cfg.UnionEstimator != nil {
		return cfg.UnionEstimator(group)
	}
	var sum uint64
	for _, b := range group {
		sum += b.KmerCount
	}
	return sum
}

func ceilDiv(a, b uint64) uint64 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

func sortByCardinalityDescending(bins []UserBin) []UserBin {
	out := append([]UserBin{}, bins...)
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].KmerCount > out[b].KmerCount
	})
	return out
}
