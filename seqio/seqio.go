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

// Package seqio streams sequences out of FASTA/FASTQ input files. The core
// build pipeline only depends on the Sequence/Reader interface here — the
// file format itself is an external collaborator, per spec.md §1.
package seqio

import (
	"bufio"
	"bytes"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// Sequence is one record's name and raw nucleotide bytes. Quality scores
// (FASTQ) are discarded — the core only ever consumes the sequence field.
type Sequence struct {
	Name string
	Seq  []byte
}

// Reader streams Sequences out of one input file, one record at a time
// (spec.md §5: a bounded per-file working set, not the whole file buffered
// as decoded records). Close releases the underlying mapping and must be
// called once the caller is done with the file.
type Reader interface {
	Next() (Sequence, error)
	Close() error
}

// fileReader is the concrete Reader returned by Open.
type fileReader struct {
	scanner *bufio.Scanner
	format  format
	pending []byte // a look-ahead line already consumed from scanner
	data    []byte // the mapping backing scanner, released by Close
}

type format int

const (
	formatFASTA format = iota
	formatFASTQ
)

// MissingInputFileError reports a file named in a UserBin that could not be
// opened.
type MissingInputFileError struct {
	Path string
	Err  error
}

func (e *MissingInputFileError) Error() string {
	return "missing input file " + e.Path + ": " + e.Err.Error()
}

func (e *MissingInputFileError) Unwrap() error { return e.Err }

// UnreadableSequenceError reports a file that opened but whose content does
// not parse as FASTA or FASTQ.
type UnreadableSequenceError struct {
	Path   string
	Reason string
}

func (e *UnreadableSequenceError) Error() string {
	return "unreadable sequence file " + e.Path + ": " + e.Reason
}

// Open mmaps path (falling back to an ordinary read on platforms without a
// mmap implementation, see mmap_other.go) and returns a Reader over its
// records. Format is auto-detected from the first non-empty byte: '>' for
// FASTA, '@' for FASTQ.
func Open(path string) (Reader, error) {
	data, err := mmapFile(path)
	if err != nil {
		return nil, &MissingInputFileError{Path: path, Err: err}
	}
	r, err := newReader(path, data)
	if err != nil {
		munmapFile(data)
		return nil, err
	}
	return r, nil
}

func newReader(path string, data []byte) (*fileReader, error) {
	trimmed := bytes.TrimLeft(data, "\r\n\t ")
	if len(trimmed) == 0 {
		return nil, &UnreadableSequenceError{Path: path, Reason: "empty file"}
	}

	var f format
	switch trimmed[0] {
	case '>':
		f = formatFASTA
	case '@':
		f = formatFASTQ
	default:
		return nil, &UnreadableSequenceError{Path: path, Reason: "unrecognized leading byte, expected '>' or '@'"}
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<24)

	return &fileReader{scanner: scanner, format: f, data: data}, nil
}

// Next returns the next Sequence, or io.EOF once the file is exhausted.
func (r *fileReader) Next() (Sequence, error) {
	if r.format == formatFASTQ {
		return r.nextFASTQ()
	}
	return r.nextFASTA()
}

// Close releases the mapping backing r. It is safe to call exactly once;
// calling Next after Close is undefined, matching the teacher's z.Buffer.
func (r *fileReader) Close() error {
	return munmapFile(r.data)
}

func (r *fileReader) nextLine() (string, bool) {
	if r.pending != nil {
		line := string(r.pending)
		r.pending = nil
		return line, true
	}
	if !r.scanner.Scan() {
		return "", false
	}
	return r.scanner.Text(), true
}

func (r *fileReader) nextFASTA() (Sequence, error) {
	line, ok := r.nextLine()
	if !ok {
		return Sequence{}, io.EOF
	}
	if !strings.HasPrefix(line, ">") {
		return Sequence{}, &UnreadableSequenceError{Reason: "expected '>' record header, got: " + line}
	}
	name := strings.TrimPrefix(line, ">")

	var seq bytes.Buffer
	for {
		next, ok := r.nextLine()
		if !ok {
			break
		}
		if strings.HasPrefix(next, ">") {
			r.pending = []byte(next)
			break
		}
		seq.WriteString(next)
	}

	return Sequence{Name: name, Seq: seq.Bytes()}, nil
}

func (r *fileReader) nextFASTQ() (Sequence, error) {
	header, ok := r.nextLine()
	if !ok {
		return Sequence{}, io.EOF
	}
	if !strings.HasPrefix(header, "@") {
		return Sequence{}, &UnreadableSequenceError{Reason: "expected '@' record header, got: " + header}
	}
	seqLine, ok := r.nextLine()
	if !ok {
		return Sequence{}, errors.New("truncated FASTQ record: missing sequence line")
	}
	plusLine, ok := r.nextLine()
	if !ok || !strings.HasPrefix(plusLine, "+") {
		return Sequence{}, errors.New("truncated FASTQ record: missing '+' separator line")
	}
	if _, ok := r.nextLine(); !ok {
		return Sequence{}, errors.New("truncated FASTQ record: missing quality line")
	}

	return Sequence{Name: strings.TrimPrefix(header, "@"), Seq: []byte(seqLine)}, nil
}
