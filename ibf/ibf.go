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

// Package ibf implements the interleaved Bloom filter primitive consumed by
// the build package: a fixed-size bit-matrix construct with one bin-sized
// bit plane per hash function, addressed by (bin, position).
package ibf

import (
	"encoding/binary"

	farm "github.com/dgryski/go-farm"
)

// Filter is a fixed-size interleaved Bloom filter: bin_count consecutive
// bins, each bin_size_bits wide, queried through hash_function_count
// independently-addressed planes.
type Filter struct {
	binCount    int
	binSizeBits int
	hashFuncs   int
	planes      [][]uint64 // one []uint64 bitset per hash function
}

// New constructs an empty Filter. binSizeBits is rounded up to a multiple
// of 64 so each plane is a whole number of uint64 words.
func New(binCount, binSizeBits, hashFunctionCount int) *Filter {
	if binCount < 1 {
		binCount = 1
	}
	if binSizeBits < 1 {
		binSizeBits = 1
	}
	if hashFunctionCount < 1 {
		hashFunctionCount = 1
	}
	binSizeBits = roundUpTo64(binSizeBits)

	words := (binCount * binSizeBits) / 64
	planes := make([][]uint64, hashFunctionCount)
	for i := range planes {
		planes[i] = make([]uint64, words)
	}

	return &Filter{
		binCount:    binCount,
		binSizeBits: binSizeBits,
		hashFuncs:   hashFunctionCount,
		planes:      planes,
	}
}

// BinCount reports the technical-bin count this filter was constructed
// with.
func (f *Filter) BinCount() int { return f.binCount }

// BinSizeBits reports the (64-aligned) per-bin width in bits.
func (f *Filter) BinSizeBits() int { return f.binSizeBits }

// Emplace inserts hash into the given technical bin across every hash
// plane. Each plane gets an independent position within the bin derived by
// double hashing: hash supplies the first term, and an independent mixing
// of hash (via farm.Fingerprint64) supplies the step, so the h positions
// spread across the bin's width rather than sharing one linear stride.
func (f *Filter) Emplace(hash uint64, bin int) {
	if bin < 0 || bin >= f.binCount {
		return
	}

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], hash)
	step := farm.Fingerprint64(buf[:])

	base := bin * f.binSizeBits
	width := uint64(f.binSizeBits)

	for i := 0; i < f.hashFuncs; i++ {
		pos := (hash + uint64(i)*step) % width
		bitIndex := uint64(base) + pos
		f.planes[i][bitIndex/64] |= 1 << (bitIndex % 64)
	}
}

// IsSet reports whether hash's bit is present in bin across every hash
// plane. It is not part of the core build contract (§4.5 only requires
// Emplace) but is useful for tests and for callers that want to sanity
// check an inserted key.
func (f *Filter) IsSet(hash uint64, bin int) bool {
	if bin < 0 || bin >= f.binCount {
		return false
	}

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], hash)
	step := farm.Fingerprint64(buf[:])

	base := bin * f.binSizeBits
	width := uint64(f.binSizeBits)

	for i := 0; i < f.hashFuncs; i++ {
		pos := (hash + uint64(i)*step) % width
		bitIndex := uint64(base) + pos
		if f.planes[i][bitIndex/64]&(1<<(bitIndex%64)) == 0 {
			return false
		}
	}
	return true
}

func roundUpTo64(n int) int {
	if n%64 == 0 {
		return n
	}
	return (n/64 + 1) * 64
}
