// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package reference

import (
	"context"
	"fmt"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/sam"
)

// Load reads the (optionally compressed) FASTA at path into memory.
func Load(ctx context.Context, path string) (p Provider, err error) {
	var in file.File
	if in, err = file.Open(ctx, path); err != nil {
		return
	}
	defer file.CloseAndReport(ctx, in, &err)
	reader, _ := compress.NewReader(in.Reader(ctx))
	defer func() {
		if e := reader.Close(); e != nil && err == nil {
			err = e
		}
	}()
	return NewFasta(reader)
}

// Indexed is a Provider backed by an open FASTA file and its .fai index.
type Indexed struct {
	Provider
	in file.File
}

// Close closes the underlying FASTA file.
func (x *Indexed) Close(ctx context.Context) error {
	return x.in.Close(ctx)
}

// OpenIndexed opens the uncompressed FASTA at path for random access through
// path + ".fai".  The caller must Close the result.
func OpenIndexed(ctx context.Context, path string) (x *Indexed, err error) {
	idx, err := file.Open(ctx, path+".fai")
	if err != nil {
		return nil, err
	}
	defer file.CloseAndReport(ctx, idx, &err)
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	p, err := NewIndexedFasta(in.Reader(ctx), idx.Reader(ctx))
	if err != nil {
		_ = in.Close(ctx)
		return nil, err
	}
	return &Indexed{Provider: p, in: in}, nil
}

// Open returns an indexed Provider when path + ".fai" exists, and otherwise
// loads path into memory.  The returned close function must be called when
// done.
func Open(ctx context.Context, path string) (Provider, func(context.Context) error, error) {
	if _, err := file.Stat(ctx, path+".fai"); err == nil {
		x, err := OpenIndexed(ctx, path)
		if err != nil {
			return nil, nil, err
		}
		return x, x.Close, nil
	}
	p, err := Load(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	return p, func(context.Context) error { return nil }, nil
}

// CheckHeader verifies that every reference in a BAM header which is also in
// p has a consistent length.  References missing on either side only produce
// warnings.
func CheckHeader(p Provider, headerRefs []*sam.Reference) error {
	nMissingFromFa := 0
	for _, ref := range headerRefs {
		refLen, err := p.Len(ref.Name())
		if err != nil {
			nMissingFromFa++
			continue
		}
		if refLen != ref.Len() {
			return fmt.Errorf("reference.CheckHeader: inconsistent lengths for contig %s (%d in BAM header, %d in .fa)", ref.Name(), ref.Len(), refLen)
		}
	}
	if nMissingFromFa != 0 {
		log.Printf("reference.CheckHeader: warning: %d reference(s) present in BAM header but missing from .fa", nMissingFromFa)
	}
	if n := len(p.SeqNames()) + nMissingFromFa - len(headerRefs); n != 0 {
		log.Printf("reference.CheckHeader: warning: %d reference(s) present in .fa but missing from BAM header", n)
	}
	return nil
}
