// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package variant

import (
	"context"
	"io"
	"sort"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
	"github.com/pkg/errors"
)

// TsvRow is one line of a variant list.
type TsvRow struct {
	Chrom string `tsv:"#CHROM"`
	Pos   int    `tsv:"POS"`
	Ref   string `tsv:"REF"`
	Alt   string `tsv:"ALT"`
}

// Read parses a variant list with a "#CHROM POS REF ALT" header.  Extra
// columns are ignored.
func Read(r io.Reader) ([]Simple, error) {
	reader := tsv.NewReader(r)
	reader.HasHeaderRow = true
	reader.UseHeaderNames = true
	var vars []Simple
	for {
		var row TsvRow
		if err := reader.Read(&row); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.Wrap(err, "variant.Read")
		}
		v := New(row.Chrom, row.Pos, row.Ref, row.Alt)
		if err := v.Validate(); err != nil {
			return nil, err
		}
		vars = append(vars, v)
	}
	return vars, nil
}

// LoadTSV reads the (optionally compressed) variant list at path.
func LoadTSV(ctx context.Context, path string) (vars []Simple, err error) {
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
	return Read(reader)
}

// GroupByChrom splits vars by chromosome, sorting each group by position and
// allele.  chroms lists the chromosomes in order of first appearance.
func GroupByChrom(vars []Simple) (chroms []string, byChrom map[string][]Simple) {
	byChrom = make(map[string][]Simple)
	for _, v := range vars {
		if _, ok := byChrom[v.Chrom]; !ok {
			chroms = append(chroms, v.Chrom)
		}
		byChrom[v.Chrom] = append(byChrom[v.Chrom], v)
	}
	for _, group := range byChrom {
		sort.SliceStable(group, func(i, j int) bool {
			return Less(group[i], group[j])
		})
	}
	return chroms, byChrom
}

// Less orders variants on the same chromosome by position, then ref, then
// alt.
func Less(a, b Simple) bool {
	if a.Position != b.Position {
		return a.Position < b.Position
	}
	if a.Ref != b.Ref {
		return a.Ref < b.Ref
	}
	return a.Alt < b.Alt
}
