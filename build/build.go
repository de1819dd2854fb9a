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

// Package build walks a parsed layout tree and produces the sized,
// populated interleaved Bloom filters it describes: the IbfBuilder of
// spec.md §4.4.
package build

import (
	"io"
	"math"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/seqbin/hibf/ibf"
	"github.com/seqbin/hibf/kmer"
	"github.com/seqbin/hibf/layoutreader"
	"github.com/seqbin/hibf/seqio"
)

// Config holds the parameters the builder needs beyond what the layout
// tree already encodes: the k-mer length and the IBF sizing parameters.
type Config struct {
	K                 int
	NumHashFunctions  int
	FalsePositiveRate float64
	Verbose           bool
	Logger            *logrus.Logger
}

func (c Config) validate() error {
	switch {
	case c.K < 1:
		return &InvalidConfigError{Field: "k", Reason: "must be >= 1"}
	case c.NumHashFunctions < 1:
		return &InvalidConfigError{Field: "num_hash_functions", Reason: "must be >= 1"}
	case c.FalsePositiveRate <= 0 || c.FalsePositiveRate >= 1:
		return &InvalidConfigError{Field: "false_positive_rate", Reason: "must be in (0, 1)"}
	}
	return nil
}

// Result is the builder's output: the constructed IBFs (the root at index
// 0, every other IBF after it in post-order), and the per-IBF
// technical-bin-to-child-IBF mapping table.
type Result struct {
	IBFs       []*ibf.Filter
	IBFMapping [][]int
}

// Builder walks a layoutreader.Tree and populates IBFs from the sequence
// files its leaf records name.
type Builder struct {
	cfg     Config
	tree    *layoutreader.Tree
	ibfs    []*ibf.Filter
	mapping [][]int
}

// New returns a Builder for tree under cfg.
func New(tree *layoutreader.Tree, cfg Config) (*Builder, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return &Builder{cfg: cfg, tree: tree}, nil
}

// Build runs the full post-order traversal and returns the constructed
// IBFs plus their mapping table. ibf_mapping[0] always describes the root
// (high-level) IBF, which is pre-reserved at ibfs[0] before the traversal
// begins (spec.md §4.4's root special case, resolved this way per
// DESIGN.md's Open Question #1).
func (b *Builder) Build() (*Result, error) {
	b.ibfs = make([]*ibf.Filter, 1)
	b.mapping = make([][]int, 1)

	parentKmers, err := b.buildNode(b.tree.Root, true)
	if err != nil {
		return nil, err
	}

	if b.cfg.Verbose {
		b.cfg.Logger.WithFields(logrus.Fields{
			"ibf_count":      len(b.ibfs),
			"root_kmer_size": humanize.Comma(int64(len(parentKmers))),
		}).Info("hibf build complete")
	}

	return &Result{IBFs: b.ibfs, IBFMapping: b.mapping}, nil
}

// buildNode implements the per-node algorithm of spec.md §4.4 step by
// step, returning the union of every k-mer inserted anywhere in this
// node's subtree (the value a parent merges into its own parent_kmers).
func (b *Builder) buildNode(nodeIdx int, isRoot bool) (kmer.Set, error) {
	node := &b.tree.Nodes[nodeIdx]

	binCount := node.NumberOfTechnicalBins
	if binCount < 1 {
		binCount = 1
	}

	ibfPositions := make([]int, binCount)
	for i := range ibfPositions {
		ibfPositions[i] = -1
	}

	// Step 1: max-bin k-mers, either from the favourite child's produced
	// union or by hashing the max-bin record's own sequences.
	var maxBinKmers kmer.Set
	numberOfMaxBinTbs := 1

	if node.FavouriteChild != -1 {
		childKmers, err := b.buildNode(node.FavouriteChild, false)
		if err != nil {
			return nil, err
		}
		maxBinKmers = childKmers
		ibfPositions[node.MaxBinIndex] = len(b.ibfs) - 1
	} else if len(node.RemainingRecords) > 0 {
		rec := node.RemainingRecords[0]
		hashes, err := b.hashFilenames(rec.Filenames)
		if err != nil {
			return nil, err
		}
		maxBinKmers = kmer.NewSet(hashes)
		numberOfMaxBinTbs = rec.LeafNumberOfBins()
	} else {
		maxBinKmers = kmer.Set{}
	}

	// Step 2: size and construct this node's IBF.
	binSize, err := computeBinSize(b.cfg.FalsePositiveRate, b.cfg.NumHashFunctions, ceilDivInt(len(maxBinKmers), numberOfMaxBinTbs))
	if err != nil {
		return nil, err
	}
	filter := ibf.New(binCount, binSize, b.cfg.NumHashFunctions)

	if b.cfg.Verbose {
		b.cfg.Logger.WithFields(logrus.Fields{
			"node":          node.Tag,
			"bin_count":     binCount,
			"bin_size_bits": humanize.Comma(int64(filter.BinSizeBits())),
		}).Debug("sizing ibf node")
	}

	// Step 3+4: insert the max bin, merge into parentKmers.
	if node.FavouriteChild != -1 || len(node.RemainingRecords) > 0 {
		insertChunked(filter, maxBinKmers, node.MaxBinIndex, numberOfMaxBinTbs)
	}
	parentKmers := maxBinKmers.Union(kmer.Set{})

	// Step 5: non-favourite children.
	for _, bin := range sortedKeys(node.Children) {
		if bin == node.MaxBinIndex && node.FavouriteChild != -1 {
			continue
		}
		childKmers, err := b.buildNode(node.Children[bin], false)
		if err != nil {
			return nil, err
		}
		insertChunked(filter, childKmers, bin, 1)
		ibfPositions[bin] = len(b.ibfs) - 1
		parentKmers = parentKmers.Union(childKmers)
	}

	// Step 6: remaining leaf records other than the max-bin one.
	startAt := 0
	if node.FavouriteChild == -1 && len(node.RemainingRecords) > 0 {
		startAt = 1
	}
	for _, rec := range node.RemainingRecords[startAt:] {
		hashes, err := b.hashFilenames(rec.Filenames)
		if err != nil {
			return nil, err
		}
		set := kmer.NewSet(hashes)
		insertChunked(filter, set, rec.LeafBinIndex(), rec.LeafNumberOfBins())
		parentKmers = parentKmers.Union(set)
	}

	// Step 7: append (or, at the root, install) this IBF; fill remaining
	// -1 positions with the index just assigned.
	pos := len(b.ibfs)
	if isRoot {
		b.ibfs[0] = filter
		pos = 0
	} else {
		b.ibfs = append(b.ibfs, filter)
	}
	for i, v := range ibfPositions {
		if v == -1 {
			ibfPositions[i] = pos
		}
	}
	if isRoot {
		b.mapping[0] = ibfPositions
	} else {
		b.mapping = append(b.mapping, ibfPositions)
	}

	return parentKmers, nil
}

func (b *Builder) hashFilenames(filenames []string) ([]uint64, error) {
	var hashes []uint64
	for _, fn := range filenames {
		h, err := hashOneFile(fn, b.cfg.K)
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, h...)
	}
	return hashes, nil
}

// hashOneFile mmaps fn for the duration of the scan and always unmaps it
// before returning, whether or not hashing succeeded.
func hashOneFile(fn string, k int) ([]uint64, error) {
	r, err := seqio.Open(fn)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var hashes []uint64
	for {
		seq, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", fn)
		}
		hashes = append(hashes, kmer.Hash(seq.Seq, k)...)
	}
	return hashes, nil
}

// insertChunked splits kmers' sorted hashes into numBins consecutive
// chunks and inserts chunk c into technical bin startBin+c, mirroring
// create_ibfs_from_chopper_pack.hpp's kmers_per_chunk split.
func insertChunked(filter *ibf.Filter, kmers kmer.Set, startBin, numBins int) {
	if len(kmers) == 0 || numBins < 1 {
		return
	}
	sorted := kmers.Sorted()
	chunkSize := ceilDivInt(len(sorted), numBins)

	for c := 0; c < numBins; c++ {
		start := c * chunkSize
		if start >= len(sorted) {
			break
		}
		end := start + chunkSize
		if end > len(sorted) {
			end = len(sorted)
		}
		for _, h := range sorted[start:end] {
			filter.Emplace(h, startBin+c)
		}
	}
}

// computeBinSize solves spec.md §4.4's compute_bin_size in closed form:
// the minimal m (rounded up to a multiple of 64) with
// (1 - exp(-h*n/m))^h <= p.
func computeBinSize(p float64, h int, n int) (int, error) {
	if n <= 0 {
		return 64, nil
	}
	denominator := -math.Log(1 - math.Pow(p, 1/float64(h)))
	if denominator <= 0 || math.IsInf(denominator, 0) || math.IsNaN(denominator) {
		return 0, &SizeOverflowError{Cardinality: uint64(n), Reason: "false positive rate too small for the requested hash count"}
	}
	m := math.Ceil(float64(h) * float64(n) / denominator)
	if math.IsInf(m, 0) || m > float64(1<<40) {
		return 0, &SizeOverflowError{Cardinality: uint64(n), Reason: "bin size exceeds the addressable limit"}
	}
	return roundUpTo64(int(m)), nil
}

func roundUpTo64(n int) int {
	if n%64 == 0 {
		return n
	}
	return (n/64 + 1) * 64
}

func ceilDivInt(a, b int) int {
	if b <= 0 {
		return a
	}
	return (a + b - 1) / b
}

func sortedKeys(m map[int]int) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
