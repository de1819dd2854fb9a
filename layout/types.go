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

// Package layout implements the hierarchical binning algorithm: a dynamic
// program that packs user bins of known k-mer cardinality into a tree of
// interleaved Bloom filters under a fixed technical-bin budget, and the
// textual layout format that records the resulting placement.
package layout

// UserBin is one logical grouping of input sequence files, immutable once
// loaded. KmerCount is an estimated distinct-k-mer cardinality.
type UserBin struct {
	Filenames        []string
	KmerCount        uint64
	ExtraInformation []string
}

// UnionEstimator, when set on a PackConfig, replaces the sum-of-cardinalities
// upper bound used to estimate a merged bin's size with a (presumably
// tighter) union-cardinality estimate, e.g. from a HyperLogLog sketch. The
// slice passed is the contiguous run of user bins being considered for a
// single merged technical bin.
type UnionEstimator func(bins []UserBin) uint64

// PackConfig holds the options recognized by the hierarchical binning DP.
type PackConfig struct {
	// Bins is T, the number of technical bins available at this level.
	Bins int
	// Alpha penalises merging user bins into a lower-level IBF, since a
	// merged bin induces extra query cost. Must be >= 1.
	Alpha float64
	// FalsePositiveRate is the target per-bin FPR, 0 < p < 1.
	FalsePositiveRate float64
	// NumHashFunctions is h, the number of hash functions the eventual IBF
	// will use. Must be >= 1.
	NumHashFunctions int
	// K is the k-mer length used downstream by the builder. Must be >= 1.
	// HierarchicalBinning itself never hashes sequences; K is only
	// validated here and is not written into the layout.
	K int
	// SortBins, when true (the default), sorts user bins by descending
	// k-mer cardinality before running the DP. The sort is stable, so ties
	// preserve input order, and it never mutates the caller's UserBin slice.
	SortBins bool
	// UnionEstimator optionally overrides the merged-bin size estimate.
	UnionEstimator UnionEstimator
}

// DefaultPackConfig returns the configuration chopper-style tools default to.
func DefaultPackConfig() PackConfig {
	return PackConfig{
		Bins:              64,
		Alpha:             1.2,
		FalsePositiveRate: 0.05,
		NumHashFunctions:  2,
		K:                 19,
		SortBins:          true,
	}
}

// lowLevelBinCount is the fixed technical-bin budget every recursive call
// into a merged bin's own sub-layout uses. Unlike the root call (whose Bins
// is caller-supplied), every merged bin is subdivided into the same number
// of low-level technical bins regardless of its own cardinality — this is
// the constant the three reference scenarios in the test suite were built
// against (see DESIGN.md, "Open Question resolutions", #3).
const lowLevelBinCount = 64

// Validate checks the InvalidConfig preconditions of spec.md §7. It does not
// check Bins against the number of user bins — that is an EmptyInput /
// placement concern handled by Run.
func (c PackConfig) Validate() error {
	switch {
	case c.Bins < 1:
		return &InvalidConfigError{Field: "bins", Reason: "must be >= 1"}
	case c.K < 1:
		return &InvalidConfigError{Field: "k", Reason: "must be >= 1"}
	case c.FalsePositiveRate <= 0 || c.FalsePositiveRate >= 1:
		return &InvalidConfigError{Field: "false_positive_rate", Reason: "must be in (0, 1)"}
	case c.NumHashFunctions < 1:
		return &InvalidConfigError{Field: "num_hash_functions", Reason: "must be >= 1"}
	}
	return nil
}

// LayoutRecord is one line of the textual layout: a user bin's placement
// path from the root IBF down to the technical bin(s) it occupies.
type LayoutRecord struct {
	Filenames []string
	// BinIndices is a path of technical-bin indices, one per level, the
	// root first.
	BinIndices []int
	// NumberOfBins mirrors BinIndices: how many consecutive technical bins
	// this record occupies at each level. Inner levels are always 1 (a
	// single merged bin); the leaf level may be >= 1 (a split bin).
	NumberOfBins []int
	// EstMaxTbSizes is the raw (uncorrected) per-level size estimate: the
	// merged-bin cardinality at inner levels, ceil(count/s) at the leaf.
	EstMaxTbSizes []uint64
}

// Layout is the result of running the hierarchical binning DP: the root
// IBF's max-bin index plus the full set of user-bin placements.
type Layout struct {
	MaxBinID int
	Records  []LayoutRecord
	// Text is the rendered layout file, ready to write or hand to
	// layoutreader.Parse.
	Text string
}
