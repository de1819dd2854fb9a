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

// Package kmer extracts ungapped k-mers from nucleotide sequences and
// hashes each one to a single uint64, the unit of insertion the build
// package feeds into an ibf.Filter.
package kmer

import (
	"sort"

	"github.com/cespare/xxhash/v2"
)

// validBase reports whether b is one of the four recognized nucleotide
// letters (upper or lower case). Anything else resets the current window.
func validBase(b byte) bool {
	switch b {
	case 'A', 'C', 'G', 'T', 'a', 'c', 'g', 't':
		return true
	default:
		return false
	}
}

// Hash computes the hash of every length-k ungapped window of seq, in
// left-to-right order, skipping any window that contains a non-ACGT byte.
// The returned order is an implementation detail: only the resulting set
// of hashes, not their order, is part of the insertion contract (spec.md
// §4.4's max-bin chunking only requires a deterministic order, not any
// particular one).
func Hash(seq []byte, k int) []uint64 {
	if k < 1 || len(seq) < k {
		return nil
	}

	out := make([]uint64, 0, len(seq)-k+1)

	for i := 0; i <= len(seq)-k; i++ {
		window := seq[i : i+k]
		if !windowValid(window) {
			continue
		}
		out = append(out, xxhash.Sum64(window))
	}

	return out
}

func windowValid(window []byte) bool {
	for _, b := range window {
		if !validBase(b) {
			return false
		}
	}
	return true
}

// Set is a deduplicated, order-independent collection of k-mer hashes, the
// unit the build package's per-node insertion and union collection operate
// on.
type Set map[uint64]struct{}

// NewSet builds a Set from one or more hash slices, merging duplicates.
func NewSet(hashLists ...[]uint64) Set {
	s := Set{}
	for _, hashes := range hashLists {
		for _, h := range hashes {
			s[h] = struct{}{}
		}
	}
	return s
}

// Union returns a new Set containing every hash present in s or other.
func (s Set) Union(other Set) Set {
	out := make(Set, len(s)+len(other))
	for h := range s {
		out[h] = struct{}{}
	}
	for h := range other {
		out[h] = struct{}{}
	}
	return out
}

// Sorted returns s's hashes in ascending order. build.Builder chunks a
// max-bin's k-mers over this ordering so that a given input always produces
// the same chunk assignment (spec.md §9's determinism resolution), even
// though the contract only guarantees the resulting set of insertions, not
// the iteration order that produced them.
func (s Set) Sorted() []uint64 {
	out := make([]uint64, 0, len(s))
	for h := range s {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
