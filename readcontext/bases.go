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
)

// BaseMatch is the result of comparing two IndexedBases around their
// anchors.
type BaseMatch int

const (
	// BaseMatchNone means the cores differ.
	BaseMatchNone BaseMatch = iota
	// BaseMatchCore means the cores agree but neither flank fully does.
	BaseMatchCore
	// BaseMatchPartial means the cores and exactly one flank agree.
	BaseMatchPartial
	// BaseMatchFull means the cores and both flanks agree.
	BaseMatchFull
)

var baseMatchNames = [...]string{"NONE", "CORE", "PARTIAL", "FULL"}

// String implements fmt.Stringer.
func (m BaseMatch) String() string {
	if m < 0 || int(m) >= len(baseMatchNames) {
		return fmt.Sprintf("BaseMatch(%d)", int(m))
	}
	return baseMatchNames[m]
}

// IndexedBases is a base sequence with a distinguished anchor (Index, at
// reference position Position), a core around the anchor and a flank on each
// side of the core.  All indices are into Bases and satisfy
//
//   0 <= LeftFlankIndex <= LeftCoreIndex <= Index <= RightCoreIndex <= RightFlankIndex < len(Bases)
//
// The flanks are FlankSize long unless clipped by the ends of Bases.
type IndexedBases struct {
	Position        int
	Index           int
	LeftCoreIndex   int
	RightCoreIndex  int
	LeftFlankIndex  int
	RightFlankIndex int
	FlankSize       int
	Bases           []byte
}

// NewIndexedBases returns an IndexedBases, deriving the flank bounds.
func NewIndexedBases(position, index, leftCoreIndex, rightCoreIndex, flankSize int, bases []byte) (IndexedBases, error) {
	b := IndexedBases{
		Position:        position,
		Index:           index,
		LeftCoreIndex:   leftCoreIndex,
		RightCoreIndex:  rightCoreIndex,
		LeftFlankIndex:  leftCoreIndex - flankSize,
		RightFlankIndex: rightCoreIndex + flankSize,
		FlankSize:       flankSize,
		Bases:           bases,
	}
	if b.LeftFlankIndex < 0 {
		b.LeftFlankIndex = 0
	}
	if b.RightFlankIndex > len(bases)-1 {
		b.RightFlankIndex = len(bases) - 1
	}
	if !(flankSize >= 0 && b.LeftFlankIndex <= leftCoreIndex && leftCoreIndex <= index && index <= rightCoreIndex &&
		rightCoreIndex <= b.RightFlankIndex && b.RightFlankIndex < len(bases)) {
		return IndexedBases{}, fmt.Errorf("readcontext: invalid indexed bases: flank %d, core %d-%d, index %d, length %d",
			flankSize, leftCoreIndex, rightCoreIndex, index, len(bases))
	}
	return b, nil
}

// anchoredAt wraps bases for comparison against a context, with index
// aligned to the context's anchor.
func anchoredAt(position, index int, bases []byte) IndexedBases {
	return IndexedBases{
		Position:        position,
		Index:           index,
		LeftCoreIndex:   index,
		RightCoreIndex:  index,
		LeftFlankIndex:  index,
		RightFlankIndex: index,
		Bases:           bases,
	}
}

// IndexOf returns the index of reference position pos, assuming no indels
// between pos and Position.
func (b *IndexedBases) IndexOf(pos int) int {
	return b.Index + pos - b.Position
}

// PositionOf is the inverse of IndexOf.
func (b *IndexedBases) PositionOf(index int) int {
	return b.Position + index - b.Index
}

// Base returns the base at reference position pos.
func (b *IndexedBases) Base(pos int) (byte, bool) {
	i := b.IndexOf(pos)
	if i < 0 || i >= len(b.Bases) {
		return 0, false
	}
	return b.Bases[i], true
}

// CoreLength returns the number of core bases.
func (b *IndexedBases) CoreLength() int {
	return b.RightCoreIndex - b.LeftCoreIndex + 1
}

// LeftFlankLength returns the number of bases in the left flank.
func (b *IndexedBases) LeftFlankLength() int {
	return b.LeftCoreIndex - b.LeftFlankIndex
}

// RightFlankLength returns the number of bases in the right flank.
func (b *IndexedBases) RightFlankLength() int {
	return b.RightFlankIndex - b.RightCoreIndex
}

// CoreString returns the core bases.
func (b *IndexedBases) CoreString() string {
	return string(b.Bases[b.LeftCoreIndex : b.RightCoreIndex+1])
}

// LeftFlankString returns the left flank bases.
func (b *IndexedBases) LeftFlankString() string {
	return string(b.Bases[b.LeftFlankIndex:b.LeftCoreIndex])
}

// RightFlankString returns the right flank bases.
func (b *IndexedBases) RightFlankString() string {
	return string(b.Bases[b.RightCoreIndex+1 : b.RightFlankIndex+1])
}

// FullString returns the flanks and core.
func (b *IndexedBases) FullString() string {
	return string(b.Bases[b.LeftFlankIndex : b.RightFlankIndex+1])
}

// TrinucleotideContext returns the bases at pos-1, pos and pos+1.
func (b *IndexedBases) TrinucleotideContext(pos int) ([]byte, bool) {
	i := b.IndexOf(pos)
	if i < 1 || i+1 >= len(b.Bases) {
		return nil, false
	}
	return b.Bases[i-1 : i+2], true
}

// String implements fmt.Stringer.
func (b *IndexedBases) String() string {
	return fmt.Sprintf("%s-%s-%s", b.LeftFlankString(), b.CoreString(), b.RightFlankString())
}

type coreMatch int

const (
	coreNone coreMatch = iota
	corePartial
	coreFull
)

// matchParams controls a comparison.
type matchParams struct {
	wildcardsInCore bool
	// strictLength bases starting at the anchor must match exactly.
	strictLength  int
	matchingQual  byte
	lowQualFactor int
	qualModel     QualityModel
}

func (p *matchParams) qual(bases, quals []byte, i int) byte {
	if p.qualModel == nil {
		return RawQualModel{}.BaseQual(bases, quals, i)
	}
	return p.qualModel.BaseQual(bases, quals, i)
}

// comparison is the detailed result of comparing b against other.
type comparison struct {
	core coreMatch
	// leftFlank and rightFlank count the flank bases compared, or are -1 on
	// a high-quality flank mismatch.
	leftFlank, rightFlank int
}

// compare aligns other to b at their anchors and compares b's core and
// flanks against other.
//
// In the core, bases outside other are trimmed (yielding corePartial), but
// the strict bases must all be present.  Up to 1 + coreLength/lowQualFactor
// mismatches are excused if each is below matchingQual and outside the
// strict bases.  In the flanks, low-quality mismatches are unlimited and any
// high-quality mismatch fails the flank.
func (b *IndexedBases) compare(other *IndexedBases, quals []byte, p *matchParams) comparison {
	var res comparison
	offset := other.Index - b.Index
	coreStart := b.LeftCoreIndex + offset
	coreEnd := b.RightCoreIndex + offset
	strictStart := other.Index
	strictEnd := other.Index + p.strictLength - 1
	lo, hi := coreStart, coreEnd
	if lo < 0 {
		lo = 0
	}
	if hi > len(other.Bases)-1 {
		hi = len(other.Bases) - 1
	}
	if strictStart < lo || strictEnd > hi {
		return res
	}

	permitted := 1 + b.CoreLength()/p.lowQualFactor
	mismatches := 0
	for oi := lo; oi <= hi; oi++ {
		x, y := b.Bases[oi-offset], other.Bases[oi]
		if x == y {
			continue
		}
		if p.wildcardsInCore && (x == Wildcard || y == Wildcard) {
			continue
		}
		if oi >= strictStart && oi <= strictEnd {
			return res
		}
		if p.qual(other.Bases, quals, oi) >= p.matchingQual {
			return res
		}
		mismatches++
		if mismatches > permitted {
			return res
		}
	}
	res.core = coreFull
	if lo > coreStart || hi < coreEnd {
		res.core = corePartial
	}
	res.leftFlank = b.compareFlank(other, quals, p, offset, b.LeftCoreIndex-1, b.LeftFlankIndex, -1)
	res.rightFlank = b.compareFlank(other, quals, p, offset, b.RightCoreIndex+1, b.RightFlankIndex, 1)
	return res
}

// compareFlank compares b.Bases from index start to stop inclusive, stepping
// by step, against the corresponding bases of other.
func (b *IndexedBases) compareFlank(other *IndexedBases, quals []byte, p *matchParams, offset, start, stop, step int) int {
	n := 0
	for bi := start; (step < 0 && bi >= stop) || (step > 0 && bi <= stop); bi += step {
		oi := bi + offset
		if oi < 0 || oi >= len(other.Bases) {
			break
		}
		if b.Bases[bi] != other.Bases[oi] && p.qual(other.Bases, quals, oi) >= p.matchingQual {
			return -1
		}
		n++
	}
	return n
}

// MatchAtPosition compares b against other, aligned at their anchors.  The
// strictLength bases starting at other's anchor must match exactly; other
// core mismatches may be excused when otherQuals marks them low quality
// (below MatchingBaseQual).  wildcardsInCore lets an N on either side match
// any core base.
func (b *IndexedBases) MatchAtPosition(other IndexedBases, wildcardsInCore bool, otherQuals []byte, strictLength int) BaseMatch {
	c := b.compare(&other, otherQuals, &matchParams{
		wildcardsInCore: wildcardsInCore,
		strictLength:    strictLength,
		matchingQual:    MatchingBaseQual,
		lowQualFactor:   CoreLowQualFactor,
	})
	if c.core == coreNone {
		return BaseMatchNone
	}
	// A flank with a high-quality mismatch (-1) is not full.
	leftFull := c.leftFlank == b.LeftFlankLength()
	rightFull := c.rightFlank == b.RightFlankLength()
	switch {
	case c.core == coreFull && leftFull && rightFull:
		return BaseMatchFull
	case leftFull || rightFull:
		return BaseMatchPartial
	}
	return BaseMatchCore
}
