// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package evidence

import (
	"context"
	"io"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/somatic/variant"
	"github.com/klauspost/compress/gzip"
)

// Result is the evidence for one candidate.
type Result struct {
	Variant variant.Simple
	// Context is the matched context as "left-core-right", or empty if no
	// read yielded a context.
	Context string
	// ContextSupport is the number of reads which built Context.
	ContextSupport int
	// NumContexts is the number of distinct contexts built.
	NumContexts int

	Full, PartialCore, Core, Ref, None int

	// Depth is the number of reads overlapping the candidate.
	Depth int
	// DepthLimited is set if reads were left unclassified because of
	// MaxReadDepth.
	DepthLimited bool
	// AltMeanNM is the mean edit distance of the alt-supporting reads.
	AltMeanNM float64
}

// AltSupport returns the number of reads supporting the alt allele.
func (r Result) AltSupport() int {
	return r.Full + r.PartialCore + r.Core
}

const header = "#CHROM\tPOS\tREF\tALT\tCONTEXT\tCONTEXT_SUPPORT\tNUM_CONTEXTS\tFULL\tPARTIAL_CORE\tCORE\tREF_SUPPORT\tNONE\tDEPTH\tDEPTH_LIMITED\tALT_MEAN_NM"

// TsvRow is one line of the evidence TSV.
type TsvRow struct {
	Chrom          string  `tsv:"#CHROM"`
	Pos            int     `tsv:"POS"`
	Ref            string  `tsv:"REF"`
	Alt            string  `tsv:"ALT"`
	Context        string  `tsv:"CONTEXT"`
	ContextSupport int     `tsv:"CONTEXT_SUPPORT"`
	NumContexts    int     `tsv:"NUM_CONTEXTS"`
	Full           int     `tsv:"FULL"`
	PartialCore    int     `tsv:"PARTIAL_CORE"`
	Core           int     `tsv:"CORE"`
	RefSupport     int     `tsv:"REF_SUPPORT"`
	None           int     `tsv:"NONE"`
	Depth          int     `tsv:"DEPTH"`
	DepthLimited   int     `tsv:"DEPTH_LIMITED"`
	AltMeanNM      float64 `tsv:"ALT_MEAN_NM"`
}

// WriteTSV writes results as a TSV with a header line.  An empty context is
// written as ".".
func WriteTSV(w io.Writer, results []Result) error {
	tw := tsv.NewWriter(w)
	tw.WriteString(header)
	if err := tw.EndLine(); err != nil {
		return err
	}
	for _, r := range results {
		bases := r.Context
		if bases == "" {
			bases = "."
		}
		limited := "0"
		if r.DepthLimited {
			limited = "1"
		}
		tw.WriteString(r.Variant.Chrom)
		tw.WriteInt64(int64(r.Variant.Position))
		tw.WriteString(r.Variant.Ref)
		tw.WriteString(r.Variant.Alt)
		tw.WriteString(bases)
		tw.WriteInt64(int64(r.ContextSupport))
		tw.WriteInt64(int64(r.NumContexts))
		tw.WriteInt64(int64(r.Full))
		tw.WriteInt64(int64(r.PartialCore))
		tw.WriteInt64(int64(r.Core))
		tw.WriteInt64(int64(r.Ref))
		tw.WriteInt64(int64(r.None))
		tw.WriteInt64(int64(r.Depth))
		tw.WriteString(limited)
		tw.WriteFloat64(r.AltMeanNM, 'f', 3)
		if err := tw.EndLine(); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// ReadTSV reads rows written by WriteTSV.
func ReadTSV(r io.Reader) ([]TsvRow, error) {
	tr := tsv.NewReader(r)
	tr.HasHeaderRow = true
	tr.UseHeaderNames = true
	var rows []TsvRow
	for {
		var row TsvRow
		err := tr.Read(&row)
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
}

// WriteFile writes results to path as a TSV, gzipped if path ends in ".gz".
func WriteFile(ctx context.Context, path string, results []Result) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "evidence: create", path)
	}
	defer file.CloseAndReport(ctx, out, &err)
	if !strings.HasSuffix(path, ".gz") {
		return WriteTSV(out.Writer(ctx), results)
	}
	gz := gzip.NewWriter(out.Writer(ctx))
	if err = WriteTSV(gz, results); err != nil {
		gz.Close() // nolint: errcheck
		return err
	}
	return gz.Close()
}
