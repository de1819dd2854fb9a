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
	"strconv"
	"strings"
)

// writer accumulates the two halves of a textual layout as they are
// produced: the `#`-prefixed header lines (one per IBF, root last) and the
// tab-separated record lines (one per user bin), per spec.md §6's grammar.
type writer struct {
	headers    strings.Builder
	records    strings.Builder
	wroteTitle bool
	all        []LayoutRecord
}

const recordColumnHeader = "#FILES\tBIN_INDICES\tNUMBER_OF_BINS\tEST_MAX_TB_SIZES\n"

func (w *writer) writeHeader(tag string, maxBinID int) {
	w.headers.WriteString("#")
	w.headers.WriteString(tag)
	w.headers.WriteString(" max_bin_id:")
	w.headers.WriteString(strconv.Itoa(maxBinID))
	w.headers.WriteString("\n")
}

func (w *writer) writeRecord(rec LayoutRecord) {
	if !w.wroteTitle {
		w.records.WriteString(recordColumnHeader)
		w.wroteTitle = true
	}
	w.records.WriteString(strings.Join(rec.Filenames, ";"))
	w.records.WriteString("\t")
	w.records.WriteString(joinInts(rec.BinIndices))
	w.records.WriteString("\t")
	w.records.WriteString(joinInts(rec.NumberOfBins))
	w.records.WriteString("\t")
	w.records.WriteString(joinUint64s(rec.EstMaxTbSizes))
	w.records.WriteString("\n")

	w.all = append(w.all, rec)
}

func mergedBinTag(binIndex int) string {
	return "MERGED_BIN_" + strconv.Itoa(binIndex)
}

func joinInts(vs []int) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ";")
}

func joinUint64s(vs []uint64) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.FormatUint(v, 10)
	}
	return strings.Join(parts, ";")
}
