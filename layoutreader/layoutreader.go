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

// Package layoutreader parses the textual layout produced by the layout
// package back into a tree of IbfNodes ready for the build package's
// post-order traversal.
package layoutreader

import (
	"bufio"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Record is one user bin's placement, as carried from the layout text into
// an IbfNode's RemainingRecords.
type Record struct {
	Filenames     []string
	BinIndices    []int
	NumberOfBins  []int
	EstMaxTbSizes []uint64
}

// LeafBinIndex and LeafNumberOfBins describe this record's placement within
// the IbfNode it belongs to (the last element of BinIndices/NumberOfBins).
func (r Record) LeafBinIndex() int    { return r.BinIndices[len(r.BinIndices)-1] }
func (r Record) LeafNumberOfBins() int { return r.NumberOfBins[len(r.NumberOfBins)-1] }

// IbfNode is one IBF's worth of placement information: its technical-bin
// count, which bin dictates its size, and what occupies every bin.
type IbfNode struct {
	Tag                   string
	MaxBinIndex           int
	NumberOfTechnicalBins int

	// FavouriteChild is the arena index (into Tree.Nodes) of the child
	// occupying MaxBinIndex, or -1 if that bin holds a leaf record instead.
	FavouriteChild int

	// Children maps a parent_bin_index in this node to the arena index of
	// the child IbfNode recursively laid out there.
	Children map[int]int

	// RemainingRecords are the leaf placements at this level, sorted by
	// leaf bin index ascending, except that if FavouriteChild is -1 the
	// first entry is always the record occupying MaxBinIndex.
	RemainingRecords []Record
}

// Tree is the arena of IbfNodes produced by Parse. Nodes are addressed by
// integer index rather than pointers, the same convention the rest of the
// module's tree-shaped data uses.
type Tree struct {
	Nodes []IbfNode
	Root  int
}

// MalformedLayoutError reports a structural problem in the layout text:
// a line that doesn't parse, or a node whose bins don't exactly partition
// [0, T_n).
type MalformedLayoutError struct {
	Reason string
}

func (e *MalformedLayoutError) Error() string {
	return "malformed layout: " + e.Reason
}

type buildNode struct {
	children map[int]*buildNode // parent_bin_index -> child
	records  []Record
}

func newBuildNode() *buildNode {
	return &buildNode{children: map[int]*buildNode{}}
}

// Parse reads layout text (header lines, a column-header line, then record
// lines) and returns the resulting IbfNode tree.
func Parse(text string) (*Tree, error) {
	var headers []string
	var records []Record

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	sawColumnHeader := false
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "#FILES\t"):
			sawColumnHeader = true
		case strings.HasPrefix(line, "#"):
			headers = append(headers, line)
		default:
			if !sawColumnHeader {
				return nil, &MalformedLayoutError{Reason: "record line before column header: " + line}
			}
			rec, err := parseRecordLine(line)
			if err != nil {
				return nil, errors.Wrap(err, "malformed layout")
			}
			records = append(records, rec)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading layout text")
	}
	if len(records) == 0 {
		return &Tree{Nodes: []IbfNode{{Children: map[int]int{}, FavouriteChild: -1}}, Root: 0}, nil
	}

	root := newBuildNode()
	for _, rec := range records {
		if err := insertRecord(root, rec, 0); err != nil {
			return nil, err
		}
	}

	var arena []IbfNode
	postOrderAssign(root, &arena)

	if len(headers) != len(arena) {
		return nil, &MalformedLayoutError{
			Reason: "header count " + strconv.Itoa(len(headers)) + " does not match node count " + strconv.Itoa(len(arena)),
		}
	}
	for i, h := range headers {
		tag, maxBinID, err := parseHeaderLine(h)
		if err != nil {
			return nil, err
		}
		arena[i].Tag = tag
		arena[i].MaxBinIndex = maxBinID
		if child, ok := arena[i].Children[maxBinID]; ok {
			arena[i].FavouriteChild = child
		} else {
			arena[i].FavouriteChild = -1
			promoteMaxBinRecord(&arena[i])
		}
	}

	tree := &Tree{Nodes: arena, Root: len(arena) - 1}
	if err := validate(tree, tree.Root); err != nil {
		return nil, err
	}
	return tree, nil
}

// insertRecord walks rec's ancestor path (all but the last bin index),
// creating merged-bin nodes as needed, then appends rec to the node the
// path terminates at.
func insertRecord(root *buildNode, rec Record, _ int) error {
	node := root
	for depth := 0; depth < len(rec.BinIndices)-1; depth++ {
		idx := rec.BinIndices[depth]
		child, ok := node.children[idx]
		if !ok {
			child = newBuildNode()
			node.children[idx] = child
		}
		node = child
	}
	node.records = append(node.records, rec)
	return nil
}

// postOrderAssign flattens the build tree into arena in post-order
// (children visited in ascending parent_bin_index order, node itself
// last), matching the order layout.Run emits header lines in.
func postOrderAssign(n *buildNode, arena *[]IbfNode) int {
	keys := make([]int, 0, len(n.children))
	for k := range n.children {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	children := map[int]int{}
	for _, k := range keys {
		childIdx := postOrderAssign(n.children[k], arena)
		children[k] = childIdx
	}

	records := append([]Record{}, n.records...)
	sort.SliceStable(records, func(a, b int) bool {
		return records[a].LeafBinIndex() < records[b].LeafBinIndex()
	})

	*arena = append(*arena, IbfNode{
		Children:         children,
		RemainingRecords: records,
		FavouriteChild:   -1,
	})
	return len(*arena) - 1
}

func promoteMaxBinRecord(node *IbfNode) {
	for i, rec := range node.RemainingRecords {
		if rec.LeafBinIndex() == node.MaxBinIndex {
			copy(node.RemainingRecords[1:i+1], node.RemainingRecords[:i])
			node.RemainingRecords[0] = rec
			return
		}
	}
}

// validate checks the per-node partition invariant from spec.md §3: the
// union of child bins and record bins must cover [0, T_n) exactly once.
func validate(t *Tree, idx int) error {
	node := &t.Nodes[idx]

	covered := map[int]bool{}
	maxExtent := 0

	for bin, child := range node.Children {
		if covered[bin] {
			return &MalformedLayoutError{Reason: "technical bin " + strconv.Itoa(bin) + " occupied twice"}
		}
		covered[bin] = true
		if bin+1 > maxExtent {
			maxExtent = bin + 1
		}
		if err := validate(t, child); err != nil {
			return err
		}
	}
	for _, rec := range node.RemainingRecords {
		start, n := rec.LeafBinIndex(), rec.LeafNumberOfBins()
		for b := start; b < start+n; b++ {
			if covered[b] {
				return &MalformedLayoutError{Reason: "technical bin " + strconv.Itoa(b) + " occupied twice"}
			}
			covered[b] = true
		}
		if start+n > maxExtent {
			maxExtent = start + n
		}
	}

	for b := 0; b < maxExtent; b++ {
		if !covered[b] {
			return &MalformedLayoutError{Reason: "technical bin " + strconv.Itoa(b) + " left uncovered"}
		}
	}
	node.NumberOfTechnicalBins = maxExtent

	favouriteOrRecordAtMax := false
	if _, ok := node.Children[node.MaxBinIndex]; ok {
		favouriteOrRecordAtMax = true
	}
	if len(node.RemainingRecords) > 0 && node.RemainingRecords[0].LeafBinIndex() == node.MaxBinIndex {
		favouriteOrRecordAtMax = true
	}
	if maxExtent > 0 && !favouriteOrRecordAtMax {
		return &MalformedLayoutError{Reason: "max_bin_id not occupied by any child or record"}
	}

	return nil
}

func parseHeaderLine(line string) (tag string, maxBinID int, err error) {
	rest := strings.TrimPrefix(line, "#")
	parts := strings.SplitN(rest, " max_bin_id:", 2)
	if len(parts) != 2 {
		return "", 0, &MalformedLayoutError{Reason: "bad header line: " + line}
	}
	id, convErr := strconv.Atoi(parts[1])
	if convErr != nil {
		return "", 0, &MalformedLayoutError{Reason: "bad max_bin_id in header: " + line}
	}
	return parts[0], id, nil
}

func parseRecordLine(line string) (Record, error) {
	fields := strings.Split(line, "\t")
	if len(fields) != 4 {
		return Record{}, &MalformedLayoutError{Reason: "expected 4 tab-separated fields: " + line}
	}

	binIndices, err := splitInts(fields[1])
	if err != nil {
		return Record{}, err
	}
	numberOfBins, err := splitInts(fields[2])
	if err != nil {
		return Record{}, err
	}
	sizes, err := splitUint64s(fields[3])
	if err != nil {
		return Record{}, err
	}
	if len(binIndices) != len(numberOfBins) || len(binIndices) != len(sizes) {
		return Record{}, &MalformedLayoutError{Reason: "path field length mismatch: " + line}
	}

	return Record{
		Filenames:     strings.Split(fields[0], ";"),
		BinIndices:    binIndices,
		NumberOfBins:  numberOfBins,
		EstMaxTbSizes: sizes,
	}, nil
}

func splitInts(s string) ([]int, error) {
	parts := strings.Split(s, ";")
	out := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, &MalformedLayoutError{Reason: "bad integer path element: " + p}
		}
		out[i] = v
	}
	return out, nil
}

func splitUint64s(s string) ([]uint64, error) {
	parts := strings.Split(s, ";")
	out := make([]uint64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return nil, &MalformedLayoutError{Reason: "bad size path element: " + p}
		}
		out[i] = v
	}
	return out, nil
}
