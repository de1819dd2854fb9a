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

package build

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cespare/xxhash/v2"

	"github.com/seqbin/hibf/ibf"
	"github.com/seqbin/hibf/layout"
	"github.com/seqbin/hibf/layoutreader"
)

func writeFasta(t *testing.T, dir, name, seq string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(">"+name+"\n"+seq+"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestBuildProducesOneIBFMappingPerIBF(t *testing.T) {
	dir := t.TempDir()

	seqs := []string{
		"ACGTACGTACGTACGTACGTACGTACGT",
		"TTTTACGTACGTACGTTTTTACGTACGT",
		"GGGGACGTACGTACGTGGGGACGTACGT",
		"CCCCACGTACGTACGTCCCCACGTACGT",
	}
	var bins []layout.UserBin
	for i, seq := range seqs {
		name := "seq" + string(rune('0'+i))
		path := writeFasta(t, dir, name+".fasta", seq)
		bins = append(bins, layout.UserBin{Filenames: []string{path}, KmerCount: uint64(len(seq))})
	}

	cfg := layout.DefaultPackConfig()
	cfg.Bins = 2 // force at least one merge

	l, err := layout.Run(bins, cfg)
	if err != nil {
		t.Fatalf("layout.Run: %v", err)
	}

	tree, err := layoutreader.Parse(l.Text)
	if err != nil {
		t.Fatalf("layoutreader.Parse: %v", err)
	}

	builder, err := New(tree, Config{K: 4, NumHashFunctions: 2, FalsePositiveRate: 0.05})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result, err := builder.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(result.IBFMapping) != len(result.IBFs) {
		t.Fatalf("mapping count %d != ibf count %d", len(result.IBFMapping), len(result.IBFs))
	}

	// Invariant 6: walking ibf_mapping from the root reaches every IBF
	// position exactly once.
	reached := map[int]bool{0: true}
	var walk func(i int)
	walk = func(i int) {
		for _, child := range result.IBFMapping[i] {
			if child == i {
				continue
			}
			if reached[child] {
				continue
			}
			reached[child] = true
			walk(child)
		}
	}
	walk(0)

	if len(reached) != len(result.IBFs) {
		t.Fatalf("reached %d of %d constructed IBFs via ibf_mapping", len(reached), len(result.IBFs))
	}
}

func TestComputeBinSizeRoundsUpTo64(t *testing.T) {
	m, err := computeBinSize(0.05, 2, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m%64 != 0 {
		t.Fatalf("bin size %d is not a multiple of 64", m)
	}
}

func TestComputeBinSizeZeroCardinality(t *testing.T) {
	m, err := computeBinSize(0.05, 2, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m != 64 {
		t.Fatalf("expected the minimal 64-bit bin size for zero cardinality, got %d", m)
	}
}

// TestComputeBinSizeAchievesTargetFalsePositiveRate is Scenario F: size a
// single technical bin via computeBinSize(p=0.05, h=2, n=1000), fill it with
// 1000 distinct k-mer hashes, and check the empirical false positive rate
// among disjoint keys stays close to p.
func TestComputeBinSizeAchievesTargetFalsePositiveRate(t *testing.T) {
	const p = 0.05
	const h = 2
	const inserted = 1000

	m, err := computeBinSize(p, h, inserted)
	if err != nil {
		t.Fatalf("computeBinSize: %v", err)
	}

	f := ibf.New(1, m, h)
	for i := 0; i < inserted; i++ {
		f.Emplace(xxhash.Sum64String(binSizeTestKey(i)), 0)
	}

	const trials = 20000
	falsePositives := 0
	for i := inserted; i < inserted+trials; i++ {
		if f.IsSet(xxhash.Sum64String(binSizeTestKey(i)), 0) {
			falsePositives++
		}
	}

	rate := float64(falsePositives) / float64(trials)
	const tolerance = 0.02 // +/- 2 percentage points around the 5% target
	if rate > p+tolerance {
		t.Fatalf("empirical false positive rate %v exceeds target %v by more than %v", rate, p, tolerance)
	}
}

func binSizeTestKey(i int) string {
	const alphabet = "ACGT"
	b := make([]byte, 16)
	for j := range b {
		b[j] = alphabet[(i>>uint(2*j))&3]
	}
	return string(b)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	tree := &layoutreader.Tree{Nodes: []layoutreader.IbfNode{{Children: map[int]int{}, FavouriteChild: -1}}}
	if _, err := New(tree, Config{K: 0, NumHashFunctions: 2, FalsePositiveRate: 0.05}); err == nil {
		t.Fatal("expected an error for K < 1")
	}
}
