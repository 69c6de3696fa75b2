// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package reference provides access to reference genome sequence, backed by
// (optionally indexed) FASTA files.  See http://www.htslib.org/doc/faidx.html.
//
// Sequence names are the stretch of characters after '>' up to the first
// space; '>chr1 A viral sequence' is named 'chr1'.  Bases are returned
// upper-cased.
package reference

import (
	"bufio"
	"bytes"
	"io"

	"github.com/pkg/errors"
)

const bufferInitSize = 1024 * 1024 * 300 // 300 MB

// Provider returns windows of reference sequence.  Implementations are safe
// for concurrent use.
type Provider interface {
	// Window returns the bases at [start, end] (1-based, inclusive) of chrom.
	// The range is clipped to the sequence; it is an error for the clipped
	// range to be empty.
	Window(chrom string, start, end int) (*Window, error)

	// Len returns the length of chrom.
	Len(chrom string) (int, error)

	// SeqNames returns the names of all sequences, in file order.
	SeqNames() []string
}

// clip clamps [start, end] to [1, length].
func clip(chrom string, start, end, length int) (int, int, error) {
	if start < 1 {
		start = 1
	}
	if end > length {
		end = length
	}
	if start > end {
		return 0, 0, errors.Errorf("reference: empty range %d-%d for sequence %s with length %d", start, end, chrom, length)
	}
	return start, end, nil
}

type fasta struct {
	seqs     map[string][]byte
	seqNames []string
}

// NewFasta returns a Provider that holds all the FASTA data from the given
// reader in memory.
func NewFasta(r io.Reader) (Provider, error) {
	f := &fasta{seqs: make(map[string][]byte)}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, bufferInitSize)
	var (
		seqName string
		seq     []byte
		started bool
	)
	finish := func() {
		if started {
			f.seqs[seqName] = bytes.ToUpper(seq)
			f.seqNames = append(f.seqNames, seqName)
		}
	}
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' {
			finish()
			fields := bytes.Fields(line[1:])
			if len(fields) == 0 {
				return nil, errors.Errorf("reference: malformed FASTA header %q", line)
			}
			seqName = string(fields[0])
			if _, ok := f.seqs[seqName]; ok {
				return nil, errors.Errorf("reference: duplicate sequence %s", seqName)
			}
			seq = nil
			started = true
			continue
		}
		if !started {
			return nil, errors.Errorf("reference: malformed FASTA file, bases before first header")
		}
		seq = append(seq, line...)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reference: couldn't read FASTA data")
	}
	finish()
	return f, nil
}

// Window implements Provider.
func (f *fasta) Window(chrom string, start, end int) (*Window, error) {
	s, ok := f.seqs[chrom]
	if !ok {
		return nil, errors.Errorf("reference: sequence not found: %s", chrom)
	}
	start, end, err := clip(chrom, start, end, len(s))
	if err != nil {
		return nil, err
	}
	return NewWindow(chrom, start, s[start-1:end])
}

// Len implements Provider.
func (f *fasta) Len(chrom string) (int, error) {
	s, ok := f.seqs[chrom]
	if !ok {
		return 0, errors.Errorf("reference: sequence not found: %s", chrom)
	}
	return len(s), nil
}

// SeqNames implements Provider.
func (f *fasta) SeqNames() []string {
	return f.seqNames
}
