// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package readcontext

import (
	"fmt"

	"github.com/grailbio/somatic/variant"
)

// ReadMatch classifies a read against a read context, from weakest to
// strongest evidence.
type ReadMatch int

const (
	// MatchNone means the read neither supports the variant nor the
	// reference.
	MatchNone ReadMatch = iota
	// MatchRef means the read matches the reference over the core.
	MatchRef
	// MatchPartialCore means the read matches the core where it covers it,
	// but ends inside the core or a flank.
	MatchPartialCore
	// MatchCore means the core matches but a flank has a high-quality
	// mismatch.
	MatchCore
	// MatchFull means the core and both flanks match.
	MatchFull
)

var readMatchNames = [...]string{"NONE", "REF", "PARTIAL_CORE", "CORE", "FULL"}

// String implements fmt.Stringer.
func (m ReadMatch) String() string {
	if m < 0 || int(m) >= len(readMatchNames) {
		return fmt.Sprintf("ReadMatch(%d)", int(m))
	}
	return readMatchNames[m]
}

// SupportsAlt returns true for the matches which count as evidence for the
// variant.
func (m ReadMatch) SupportsAlt() bool {
	return m >= MatchPartialCore
}

// MatchResult is a classification plus the number of flank bases compared on
// each side.
type MatchResult struct {
	Match      ReadMatch
	LeftFlank  int
	RightFlank int
}

// Matcher classifies reads against one read context.  It is safe for
// concurrent use.
type Matcher struct {
	ctx    *VariantReadContext
	bases  IndexedBases
	params matchParams
	// coverLength bases starting at the read's anchor must be present.
	coverLength int

	refBases        []byte
	refVarOffset    int
	refStrictLength int
}

// strictLength returns the number of read bases, starting at the anchor,
// which define the alt allele.
func strictLength(v variant.Simple) int {
	if v.IsDelete() {
		// The anchor plus the first base after the deletion.
		return 2
	}
	return len(v.Alt)
}

// refStrictLength returns the number of reference bases, starting at the
// variant position, which define the ref allele.
func refStrictLength(v variant.Simple) int {
	if v.IsInsert() {
		return 2
	}
	return len(v.Ref)
}

// NewMatcher returns a Matcher for ctx.  The context's annotations must be
// in place: they are read once here.
func NewMatcher(ctx *VariantReadContext, opts Opts) *Matcher {
	v := ctx.Variant()
	hom, hasHom := ctx.Homology()
	lowQualFactor := opts.CoreLowQualFactor
	if lowQualFactor <= 0 {
		lowQualFactor = CoreLowQualFactor
	}
	m := &Matcher{
		ctx:   ctx,
		bases: ctx.IndexedBases(),
		params: matchParams{
			wildcardsInCore: !v.IsIndel() && !hasHom,
			strictLength:    strictLength(v),
			matchingQual:    opts.MatchingBaseQual,
			lowQualFactor:   lowQualFactor,
			qualModel:       ctx.QualityModel(),
		},
		refBases:        ctx.RefBases(),
		refVarOffset:    v.Position - ctx.CorePositionStart(),
		refStrictLength: refStrictLength(v),
	}
	m.coverLength = m.params.strictLength + hom.Length
	if ext, ok := ctx.ExtendedRefBases(); ok {
		m.refBases = ext
	}
	return m
}

// Context returns the matcher's read context.
func (m *Matcher) Context() *VariantReadContext {
	return m.ctx
}

// CoversVariant returns true if read extends far enough around readIndex
// (the read index aligned to the variant's first base) to show the alt
// allele.
func (m *Matcher) CoversVariant(read *Read, readIndex int) bool {
	return readIndex >= 0 && readIndex+m.coverLength-1 < len(read.Bases)
}

// DetermineReadMatch classifies read, with readIndex aligned to the
// variant's first base.
func (m *Matcher) DetermineReadMatch(read *Read, readIndex int) ReadMatch {
	return m.Match(read, readIndex).Match
}

// MatchedFlankLengths returns the number of flank bases of read compared on
// each side of the core.
func (m *Matcher) MatchedFlankLengths(read *Read, readIndex int) (left, right int) {
	r := m.Match(read, readIndex)
	return r.LeftFlank, r.RightFlank
}

// Match classifies read and reports the compared flank lengths.
func (m *Matcher) Match(read *Read, readIndex int) MatchResult {
	if !m.CoversVariant(read, readIndex) {
		return MatchResult{Match: MatchNone}
	}
	other := anchoredAt(m.ctx.Variant().Position, readIndex, read.Bases)
	c := m.bases.compare(&other, read.Quals, &m.params)
	res := MatchResult{LeftFlank: c.leftFlank, RightFlank: c.rightFlank}
	if res.LeftFlank < 0 {
		res.LeftFlank = 0
	}
	if res.RightFlank < 0 {
		res.RightFlank = 0
	}
	switch {
	case c.core == coreNone:
		if m.matchesRef(read, readIndex) {
			res.Match = MatchRef
		} else {
			res.Match = MatchNone
		}
	case c.core == corePartial:
		res.Match = MatchPartialCore
	case c.leftFlank < 0 || c.rightFlank < 0:
		res.Match = MatchCore
	case c.leftFlank == m.bases.LeftFlankLength() && c.rightFlank == m.bases.RightFlankLength():
		res.Match = MatchFull
	default:
		res.Match = MatchPartialCore
	}
	return res
}

// matchesRef compares read against the reference core, aligned so that
// readIndex falls on the variant position.  Bases defining the ref allele
// must be present, high quality and equal to the reference.  Elsewhere the
// core tolerance applies, and reference bases beyond the read are skipped.
func (m *Matcher) matchesRef(read *Read, readIndex int) bool {
	strictLo, strictHi := readIndex, readIndex+m.refStrictLength-1
	if strictLo < 0 || strictHi >= len(read.Bases) {
		return false
	}
	refStart := readIndex - m.refVarOffset
	permitted := 1 + len(m.refBases)/m.params.lowQualFactor
	mismatches := 0
	for i, refBase := range m.refBases {
		ri := refStart + i
		if ri < 0 || ri >= len(read.Bases) {
			continue
		}
		strict := ri >= strictLo && ri <= strictHi
		q := m.params.qual(read.Bases, read.Quals, ri)
		if strict && q < m.params.matchingQual {
			return false
		}
		if read.Bases[ri] == refBase {
			continue
		}
		if strict || q >= m.params.matchingQual {
			return false
		}
		mismatches++
		if mismatches > permitted {
			return false
		}
	}
	return true
}
