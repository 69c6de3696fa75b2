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

	"github.com/grailbio/hts/sam"
	"github.com/grailbio/somatic/variant"
)

// leadingClip returns the number of soft-clipped bases at the start of
// cigar.
func leadingClip(cigar sam.Cigar) int {
	n := 0
	for _, co := range cigar {
		switch co.Type() {
		case sam.CigarHardClipped:
		case sam.CigarSoftClipped:
			n += co.Len()
		default:
			return n
		}
	}
	return n
}

// trailingClip returns the number of soft-clipped bases at the end of cigar.
func trailingClip(cigar sam.Cigar) int {
	n := 0
	for i := len(cigar) - 1; i >= 0; i-- {
		switch cigar[i].Type() {
		case sam.CigarHardClipped:
		case sam.CigarSoftClipped:
			n += cigar[i].Len()
		default:
			return n
		}
	}
	return n
}

// positionAt returns the reference position of read index idx under an
// alignment starting at pos.  Soft-clipped bases get the positions they
// would have had if aligned.  Inserted bases take the next aligned position
// if roundUp is set, and the previous one otherwise.
func positionAt(pos int, cigar sam.Cigar, idx int, roundUp bool) (int, error) {
	posInRef := pos - leadingClip(cigar)
	posInRead := 0
	for _, co := range cigar {
		cLen := co.Len()
		switch co.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch, sam.CigarSoftClipped:
			if idx < posInRead+cLen {
				return posInRef + idx - posInRead, nil
			}
			posInRef += cLen
			posInRead += cLen
		case sam.CigarInsertion:
			if idx < posInRead+cLen {
				if roundUp {
					return posInRef, nil
				}
				return posInRef - 1, nil
			}
			posInRead += cLen
		case sam.CigarDeletion, sam.CigarSkipped:
			posInRef += cLen
		case sam.CigarHardClipped, sam.CigarPadded:
		default:
			return 0, fmt.Errorf("positionAt: unexpected CIGAR code %v", co)
		}
	}
	return 0, fmt.Errorf("positionAt: read index %d past end of alignment %v", idx, cigar)
}

// skipsBetween returns true if cigar has a skipped-region (N) operation
// between read indices start and end.
func skipsBetween(cigar sam.Cigar, start, end int) bool {
	posInRead := 0
	for _, co := range cigar {
		switch co.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch, sam.CigarSoftClipped, sam.CigarInsertion:
			posInRead += co.Len()
		case sam.CigarSkipped:
			if posInRead > start && posInRead <= end {
				return true
			}
		}
	}
	return false
}

// alignedSpan is the reference footprint of a context.
type alignedSpan struct {
	alignmentStart, alignmentEnd       int
	corePositionStart, corePositionEnd int
}

// alignReadSpan maps the flank and core boundaries of a context (read
// indices) to reference positions.  An error means the alignment walk
// produced an inverted span.
func alignReadSpan(pos int, cigar sam.Cigar, flankStart, coreStart, coreEnd, flankEnd int) (span alignedSpan, err error) {
	if span.alignmentStart, err = positionAt(pos, cigar, flankStart, true); err != nil {
		return
	}
	if span.corePositionStart, err = positionAt(pos, cigar, coreStart, true); err != nil {
		return
	}
	if span.corePositionEnd, err = positionAt(pos, cigar, coreEnd, false); err != nil {
		return
	}
	if span.alignmentEnd, err = positionAt(pos, cigar, flankEnd, false); err != nil {
		return
	}
	if span.alignmentStart > span.corePositionStart || span.corePositionStart > span.corePositionEnd ||
		span.corePositionEnd > span.alignmentEnd {
		err = fmt.Errorf("alignReadSpan: inverted span %d-%d-%d-%d for read indices %d-%d-%d-%d, cigar %v",
			span.alignmentStart, span.corePositionStart, span.corePositionEnd, span.alignmentEnd,
			flankStart, coreStart, coreEnd, flankEnd, cigar)
	}
	return
}

// trimCigar returns the part of cigar covering read indices [start, end].
// Deletions and skips are kept when they fall between two kept bases; clips
// outside the range are dropped.
func trimCigar(cigar sam.Cigar, start, end int) sam.Cigar {
	var trimmed sam.Cigar
	posInRead := 0
	for _, co := range cigar {
		cLen := co.Len()
		switch co.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch, sam.CigarSoftClipped, sam.CigarInsertion:
			lo, hi := posInRead, posInRead+cLen-1
			if lo < start {
				lo = start
			}
			if hi > end {
				hi = end
			}
			if lo <= hi {
				trimmed = append(trimmed, sam.NewCigarOp(co.Type(), hi-lo+1))
			}
			posInRead += cLen
		case sam.CigarDeletion, sam.CigarSkipped:
			if posInRead > start && posInRead <= end {
				trimmed = append(trimmed, co)
			}
		}
	}
	return trimmed
}

// convertSoftClipInsert rewrites an alignment in which the aligner
// soft-clipped an insertion instead of reporting it.  The insertion must sit
// at the inner edge of a leading or trailing soft clip, with its anchor at
// varIndex.  It returns the rewritten cigar and alignment start.
func convertSoftClipInsert(read *Read, v variant.Simple, varIndex int) (sam.Cigar, int, bool) {
	if !v.IsInsert() {
		return nil, 0, false
	}
	inserted := v.IndelBases()
	insLen := len(inserted)
	if clip := leadingClip(read.Cigar); clip > insLen && varIndex == clip-insLen-1 && read.Pos == v.Position+1 &&
		string(read.Bases[clip-insLen:clip]) == inserted {
		var cigar sam.Cigar
		replaced := false
		for _, co := range read.Cigar {
			if co.Type() == sam.CigarSoftClipped && !replaced {
				cigar = append(cigar,
					sam.NewCigarOp(sam.CigarMatch, clip-insLen),
					sam.NewCigarOp(sam.CigarInsertion, insLen))
				replaced = true
				continue
			}
			cigar = append(cigar, co)
		}
		return cigar, read.Pos - (clip - insLen), true
	}
	if clip := trailingClip(read.Cigar); clip > insLen && varIndex == len(read.Bases)-clip-1 && read.End() == v.Position &&
		string(read.Bases[varIndex+1:varIndex+1+insLen]) == inserted {
		cigar := make(sam.Cigar, len(read.Cigar))
		copy(cigar, read.Cigar)
		for i := len(cigar) - 1; i >= 0; i-- {
			if cigar[i].Type() == sam.CigarSoftClipped {
				tail := append(sam.Cigar{
					sam.NewCigarOp(sam.CigarInsertion, insLen),
					sam.NewCigarOp(sam.CigarMatch, clip-insLen),
				}, cigar[i+1:]...)
				cigar = append(cigar[:i:i], tail...)
				break
			}
		}
		return cigar, read.Pos, true
	}
	return nil, 0, false
}
