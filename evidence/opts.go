// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package evidence counts, for each candidate somatic variant, the reads
// whose read context supports the variant or the reference.
//
// For each candidate, a context is built from every read that appears to
// carry the alt allele.  The most frequently built context (ties go to the
// first one seen) is then matched against every read overlapping the
// candidate, and the match classes are tallied.  Reads are streamed in
// coordinate order; per-candidate state lives in a circular.Window and is
// finalized as soon as no later read can overlap the candidate.
package evidence

import (
	"github.com/grailbio/base/errors"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/somatic/readcontext"
)

// Opts configures evidence counting.
type Opts struct {
	// Context configures context building and matching.
	Context readcontext.Opts
	// MaxCandidateContexts is the number of distinct contexts kept per
	// variant.  Later distinct contexts are dropped.
	MaxCandidateContexts int
	// MaxReadDepth is the number of reads per variant that are classified.
	// Reads beyond it still count toward the depth.  0 means no limit.
	MaxReadDepth int
	// MaxReadSpan is the longest reference span of a read, soft clips
	// included.  Longer reads are skipped.
	MaxReadSpan int
	// MinMapQ is the minimum mapping quality of a read.
	MinMapQ byte
	// FlagExclude drops reads with any of these flags set.
	FlagExclude sam.Flags
	// RecomputeNM recomputes each read's edit distance against the
	// reference instead of trusting the NM tag.  The edit distance is
	// always computed for reads without an NM tag.
	RecomputeNM bool
	// QueueLength is the number of reads buffered for each chromosome.
	QueueLength int
}

// DefaultOpts is the default configuration.
var DefaultOpts = Opts{
	Context:              readcontext.DefaultOpts,
	MaxCandidateContexts: 25,
	MaxReadDepth:         1000,
	MaxReadSpan:          1000,
	MinMapQ:              1,
	FlagExclude:          sam.Unmapped | sam.Secondary | sam.QCFail | sam.Duplicate | sam.Supplementary,
	QueueLength:          1024,
}

func (o *Opts) validate() error {
	switch {
	case o.MaxCandidateContexts < 1:
		return errors.E(errors.Invalid, "evidence: MaxCandidateContexts must be positive")
	case o.MaxReadDepth < 0:
		return errors.E(errors.Invalid, "evidence: MaxReadDepth must be nonnegative")
	case o.MaxReadSpan < 1:
		return errors.E(errors.Invalid, "evidence: MaxReadSpan must be positive")
	case o.Context.FlankSize < 0:
		return errors.E(errors.Invalid, "evidence: negative flank size")
	}
	if o.QueueLength < 0 {
		o.QueueLength = 0
	}
	return nil
}

// keep reports whether rec passes the read filters.  Records whose cigar does
// not describe their sequence, such as those stored without SEQ, are dropped.
func (o *Opts) keep(rec *sam.Record) bool {
	if rec.Flags&o.FlagExclude != 0 || rec.MapQ < o.MinMapQ || rec.Ref == nil || rec.Pos < 0 || len(rec.Cigar) == 0 {
		return false
	}
	_, readLen := rec.Cigar.Lengths()
	return readLen == rec.Seq.Length
}
