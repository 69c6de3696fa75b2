// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package reference

import (
	"bytes"
	"io"
	"sync"

	"github.com/grailbio/base/tsv"
	"github.com/pkg/errors"
)

// faiEntry is one line of a .fai index: "<name>\t<length>\t<byte
// offset>\t<bases per line>\t<bytes per line>".
type faiEntry struct {
	Name      string `tsv:"name"`
	Length    int    `tsv:"length"`
	Offset    int64  `tsv:"offset"`
	LineBases int    `tsv:"linebases"`
	LineWidth int    `tsv:"linewidth"`
}

type indexedFasta struct {
	seqs     map[string]faiEntry
	seqNames []string

	mu     sync.Mutex
	reader io.ReadSeeker
	buf    []byte
}

// readFai parses a .fai index.
func readFai(index io.Reader) ([]faiEntry, error) {
	r := tsv.NewReader(index)
	var entries []faiEntry
	for {
		var ent faiEntry
		err := r.Read(&ent)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "reference: invalid FASTA index")
		}
		if ent.LineBases <= 0 || ent.LineWidth < ent.LineBases {
			return nil, errors.Errorf("reference: invalid FASTA index line for %s", ent.Name)
		}
		entries = append(entries, ent)
	}
	return entries, nil
}

// NewIndexedFasta returns a Provider that performs random lookups into fa
// using the given .fai index, without reading the data into memory.
func NewIndexedFasta(fa io.ReadSeeker, index io.Reader) (Provider, error) {
	entries, err := readFai(index)
	if err != nil {
		return nil, err
	}
	f := &indexedFasta{
		seqs:   make(map[string]faiEntry, len(entries)),
		reader: fa,
	}
	for _, ent := range entries {
		f.seqs[ent.Name] = ent
		f.seqNames = append(f.seqNames, ent.Name)
	}
	return f, nil
}

// Len implements Provider.
func (f *indexedFasta) Len(chrom string) (int, error) {
	ent, ok := f.seqs[chrom]
	if !ok {
		return 0, errors.Errorf("reference: sequence not found in index: %s", chrom)
	}
	return ent.Length, nil
}

// SeqNames implements Provider.
func (f *indexedFasta) SeqNames() []string {
	return f.seqNames
}

// Window implements Provider.
func (f *indexedFasta) Window(chrom string, start, end int) (*Window, error) {
	ent, ok := f.seqs[chrom]
	if !ok {
		return nil, errors.Errorf("reference: sequence not found in index: %s", chrom)
	}
	start, end, err := clip(chrom, start, end, ent.Length)
	if err != nil {
		return nil, err
	}
	// 0-based half-open from here on.
	begin0, end0 := start-1, end
	lineBases, lineWidth := ent.LineBases, ent.LineWidth
	offset := ent.Offset + int64(begin0/lineBases*lineWidth+begin0%lineBases)
	last := ent.Offset + int64((end0-1)/lineBases*lineWidth+(end0-1)%lineBases)
	n := int(last-offset) + 1

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.reader.Seek(offset, io.SeekStart); err != nil {
		return nil, errors.Wrapf(err, "reference: seek to %d", offset)
	}
	if cap(f.buf) < n {
		f.buf = make([]byte, n)
	}
	f.buf = f.buf[:n]
	if _, err := io.ReadFull(f.reader, f.buf); err != nil {
		return nil, errors.Wrapf(err, "reference: read %s:%d-%d (bad index?)", chrom, start, end)
	}
	bases := make([]byte, 0, end0-begin0)
	linePos := begin0 % lineBases
	for _, b := range f.buf {
		if linePos < lineBases {
			bases = append(bases, b)
		}
		linePos++
		if linePos == lineWidth {
			linePos = 0
		}
	}
	if len(bases) != end0-begin0 {
		return nil, errors.Errorf("reference: read %d bases for %s:%d-%d, expected %d (bad index?)",
			len(bases), chrom, start, end, end0-begin0)
	}
	return NewWindow(chrom, start, bytes.ToUpper(bases))
}
