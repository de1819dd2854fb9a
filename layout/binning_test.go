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
	"strings"
	"testing"
)

func bins(counts ...uint64) []UserBin {
	out := make([]UserBin, len(counts))
	for i, c := range counts {
		out[i] = UserBin{Filenames: []string{seqName(i)}, KmerCount: c}
	}
	return out
}

func seqName(i int) string {
	names := []string{"seq0", "seq1", "seq2", "seq3", "seq4", "seq5", "seq6", "seq7"}
	if i < len(names) {
		return names[i]
	}
	return "seqN"
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultPackConfig()
	cfg.Bins = 0
	if _, err := Run(bins(1, 2), cfg); err == nil {
		t.Fatal("expected an error for bins < 1")
	}
}

func TestRunEmptyInput(t *testing.T) {
	l, err := Run(nil, DefaultPackConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.MaxBinID != 0 || l.Text != "" || len(l.Records) != 0 {
		t.Fatalf("expected an empty layout, got %+v", l)
	}
}

// TestRunSmallExample exercises the "small_example" placement scenario: 8
// user bins into 4 technical bins, forcing both splits and merges.
//
// This is one of the three literal fixtures: the root's own decisions (which
// bin each user bin or merge group lands on, at the root level) are asserted
// against the exact expected text. The two root-level merge groups (bin 2:
// seq4+seq5, bin 3: seq1+seq0+seq2+seq3) each recurse into their own 64-bin
// sub-layout; that inner split is also a minimum-max-cardinality placement,
// but for a group whose members tie on k-mer count the minimiser admits more
// than one equally-optimal split, so the inner BIN_INDICES/NUMBER_OF_BINS/
// EST_MAX_TB_SIZES columns are checked structurally (every low-level bin
// covered exactly once) rather than against one specific split.
func TestRunSmallExample(t *testing.T) {
	cfg := DefaultPackConfig()
	cfg.Bins = 4

	l, err := Run(bins(500, 1000, 500, 500, 500, 500, 500, 500), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(l.Records) != 8 {
		t.Fatalf("expected one record per user bin, got %d", len(l.Records))
	}
	if l.MaxBinID != 3 {
		t.Fatalf("expected root max_bin_id 3, got %d", l.MaxBinID)
	}
	assertCoversEveryUserBin(t, l, 8)

	for _, line := range []string{
		"#MERGED_BIN_2 max_bin_id:0\n",
		"#MERGED_BIN_3 max_bin_id:0\n",
		"#FILES\tBIN_INDICES\tNUMBER_OF_BINS\tEST_MAX_TB_SIZES\n",
		"seq7\t0\t1\t500\n",
		"seq6\t1\t1\t500\n",
	} {
		if !strings.Contains(l.Text, line) {
			t.Fatalf("expected layout text to contain %q, got:\n%s", line, l.Text)
		}
	}

	assertRootLevelRecord(t, l, "seq4", 2)
	assertRootLevelRecord(t, l, "seq5", 2)
	assertRootLevelRecord(t, l, "seq1", 3)
	assertRootLevelRecord(t, l, "seq0", 3)
	assertRootLevelRecord(t, l, "seq2", 3)
	assertRootLevelRecord(t, l, "seq3", 3)
	assertMergeGroupCoversLowLevelBins(t, l, 2, []string{"seq4", "seq5"})
	assertMergeGroupCoversLowLevelBins(t, l, 3, []string{"seq1", "seq0", "seq2", "seq3"})
}

// TestRunAnotherExample exercises 8 user bins into 5 technical bins with a
// single large merge group at bin 0. See TestRunSmallExample for why the
// merge group's own inner split is checked structurally.
func TestRunAnotherExample(t *testing.T) {
	cfg := DefaultPackConfig()
	cfg.Bins = 5

	l, err := Run(bins(50, 1000, 1000, 50, 5, 10, 10, 5), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.MaxBinID != 3 {
		t.Fatalf("expected root max_bin_id 3, got %d", l.MaxBinID)
	}
	assertCoversEveryUserBin(t, l, 8)

	for _, line := range []string{
		"#FILES\tBIN_INDICES\tNUMBER_OF_BINS\tEST_MAX_TB_SIZES\n",
		"seq3\t1\t1\t50\n",
		"seq0\t2\t1\t50\n",
		"seq2\t3\t1\t1000\n",
		"seq1\t4\t1\t1000\n",
	} {
		if !strings.Contains(l.Text, line) {
			t.Fatalf("expected layout text to contain %q, got:\n%s", line, l.Text)
		}
	}

	assertRootLevelRecord(t, l, "seq5", 0)
	assertRootLevelRecord(t, l, "seq6", 0)
	assertRootLevelRecord(t, l, "seq4", 0)
	assertRootLevelRecord(t, l, "seq7", 0)
	assertMergeGroupCoversLowLevelBins(t, l, 0, []string{"seq5", "seq6", "seq4", "seq7"})
}

// TestRunKnutsExample exercises alpha = 1 (merges are not penalised relative
// to splits), 5 user bins into 5 technical bins. See TestRunSmallExample for
// why the merge group's own inner split is checked structurally.
func TestRunKnutsExample(t *testing.T) {
	cfg := DefaultPackConfig()
	cfg.Bins = 5
	cfg.Alpha = 1

	l, err := Run(bins(60, 600, 1000, 800, 800), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.MaxBinID != 1 {
		t.Fatalf("expected root max_bin_id 1, got %d", l.MaxBinID)
	}
	assertCoversEveryUserBin(t, l, 5)

	for _, line := range []string{
		"#MERGED_BIN_0 max_bin_id:0\n",
		"#FILES\tBIN_INDICES\tNUMBER_OF_BINS\tEST_MAX_TB_SIZES\n",
		"seq4\t1\t1\t800\n",
		"seq3\t2\t1\t800\n",
		"seq2\t3\t2\t500\n",
	} {
		if !strings.Contains(l.Text, line) {
			t.Fatalf("expected layout text to contain %q, got:\n%s", line, l.Text)
		}
	}

	assertRootLevelRecord(t, l, "seq1", 0)
	assertRootLevelRecord(t, l, "seq0", 0)
	assertMergeGroupCoversLowLevelBins(t, l, 0, []string{"seq1", "seq0"})
}

// assertRootLevelRecord checks that the record for filename has wantRootBin
// as the first (root-level) entry of its BIN_INDICES path.
func assertRootLevelRecord(t *testing.T, l *Layout, filename string, wantRootBin int) {
	t.Helper()
	for _, rec := range l.Records {
		for _, f := range rec.Filenames {
			if f != filename {
				continue
			}
			if len(rec.BinIndices) == 0 || rec.BinIndices[0] != wantRootBin {
				t.Fatalf("expected %s at root bin %d, got path %v", filename, wantRootBin, rec.BinIndices)
			}
			return
		}
	}
	t.Fatalf("no record found for filename %s", filename)
}

// assertMergeGroupCoversLowLevelBins checks that the records for the given
// filenames, all nested under root-level merge rootBin, jointly occupy every
// technical bin of that merge's lowLevelBinCount-wide sub-layout exactly
// once, with no gaps or overlaps.
func assertMergeGroupCoversLowLevelBins(t *testing.T, l *Layout, rootBin int, filenames []string) {
	t.Helper()
	want := map[string]bool{}
	for _, f := range filenames {
		want[f] = true
	}

	covered := make([]bool, lowLevelBinCount)
	found := 0
	for _, rec := range l.Records {
		if len(rec.Filenames) == 0 || !want[rec.Filenames[0]] {
			continue
		}
		if len(rec.BinIndices) != 2 || rec.BinIndices[0] != rootBin {
			t.Fatalf("record for %s not nested one level under root bin %d: %v", rec.Filenames[0], rootBin, rec.BinIndices)
		}
		found++
		start := rec.BinIndices[1]
		n := rec.NumberOfBins[1]
		for b := start; b < start+n; b++ {
			if b < 0 || b >= lowLevelBinCount {
				t.Fatalf("bin index %d out of [0, %d) for %s", b, lowLevelBinCount, rec.Filenames[0])
			}
			if covered[b] {
				t.Fatalf("bin %d double-covered within merge group at root bin %d", b, rootBin)
			}
			covered[b] = true
		}
	}
	if found != len(filenames) {
		t.Fatalf("expected %d records under root bin %d, found %d", len(filenames), rootBin, found)
	}
	for b, ok := range covered {
		if !ok {
			t.Fatalf("low-level bin %d never covered within merge group at root bin %d", b, rootBin)
		}
	}
}

func TestRunMaxBinIDIsAValidRootBinIndex(t *testing.T) {
	cfg := DefaultPackConfig()
	cfg.Bins = 8

	l, err := Run(bins(10, 20, 30, 40, 50, 60, 70, 80), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.MaxBinID < 0 || l.MaxBinID >= cfg.Bins {
		t.Fatalf("max bin id %d out of range [0, %d)", l.MaxBinID, cfg.Bins)
	}
}

func TestRunMergeRecursesIntoFixedLowLevelBinCount(t *testing.T) {
	cfg := DefaultPackConfig()
	cfg.Bins = 2 // force a merge: far fewer technical bins than user bins

	l, err := Run(bins(10, 10, 10, 10, 10, 10, 10, 10), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, rec := range l.Records {
		if len(rec.BinIndices) < 2 {
			continue
		}
		// Every inherited (merged) level's own sub-layout recurses into
		// exactly lowLevelBinCount technical bins, so no inner bin index can
		// reach that far.
		for depth := 1; depth < len(rec.BinIndices); depth++ {
			if rec.BinIndices[depth] >= lowLevelBinCount {
				t.Fatalf("inner bin index %d at depth %d exceeds lowLevelBinCount", rec.BinIndices[depth], depth)
			}
		}
	}
}

func TestRunWithUnionEstimator(t *testing.T) {
	cfg := DefaultPackConfig()
	cfg.Bins = 2
	calls := 0
	cfg.UnionEstimator = func(group []UserBin) uint64 {
		calls++
		var max uint64
		for _, b := range group {
			if b.KmerCount > max {
				max = b.KmerCount
			}
		}
		return max
	}

	if _, err := Run(bins(100, 100, 100, 100), cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls == 0 {
		t.Fatal("expected UnionEstimator to be invoked for at least one candidate merge")
	}
}

func assertCoversEveryUserBin(t *testing.T, l *Layout, want int) {
	t.Helper()
	seen := map[string]bool{}
	for _, rec := range l.Records {
		for _, f := range rec.Filenames {
			seen[f] = true
		}
	}
	if len(seen) != want {
		t.Fatalf("expected %d distinct filenames covered, got %d (%v)", want, len(seen), seen)
	}
}
