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
	"github.com/grailbio/hts/sam"
)

// CoreBounds holds the read indices of a context under construction.
type CoreBounds struct {
	FlankStart int
	CoreStart  int
	VarIndex   int
	CoreEnd    int
	FlankEnd   int
}

// CoreExtender widens the core of a context under construction, for
// platforms whose errors need more than the default core.
type CoreExtender interface {
	// ExtendCore adjusts b for read, aligned by cigar starting at pos.  The
	// flanks must be recomputed from the new core using flankSize.  It
	// returns false if no context can be built from this read.
	ExtendCore(read *Read, cigar sam.Cigar, pos int, b *CoreBounds, flankSize int) bool
}

const (
	unalignedInsert = -1
	unalignedClip   = -2
)

// alignedPositions returns the reference position of each of the n read
// bases aligned by cigar starting at pos.  Inserted bases are marked
// unalignedInsert and soft-clipped bases unalignedClip.
func alignedPositions(cigar sam.Cigar, pos, n int) []int {
	positions := make([]int, n)
	posInRef, posInRead := pos, 0
	for _, co := range cigar {
		cLen := co.Len()
		switch co.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
			for i := 0; i < cLen && posInRead+i < n; i++ {
				positions[posInRead+i] = posInRef + i
			}
			posInRef += cLen
			posInRead += cLen
		case sam.CigarInsertion, sam.CigarSoftClipped:
			mark := unalignedInsert
			if co.Type() == sam.CigarSoftClipped {
				mark = unalignedClip
			}
			for i := 0; i < cLen && posInRead+i < n; i++ {
				positions[posInRead+i] = mark
			}
			posInRead += cLen
		case sam.CigarDeletion, sam.CigarSkipped:
			posInRef += cLen
		}
	}
	return positions
}

// HomopolymerExtender moves each core boundary outward until it neither
// splits a homopolymer nor falls inside an insertion.  Core boundaries may not
// land in soft-clipped bases.
type HomopolymerExtender struct{}

// ExtendCore implements CoreExtender.
func (HomopolymerExtender) ExtendCore(read *Read, cigar sam.Cigar, pos int, b *CoreBounds, flankSize int) bool {
	bases := read.Bases
	refPos := alignedPositions(cigar, pos, len(bases))
	start, end := b.CoreStart, b.CoreEnd
	for start > 0 && (bases[start-1] == bases[start] || refPos[start] == unalignedInsert || refPos[start-1] == unalignedInsert) {
		start--
	}
	for end < len(bases)-1 && (bases[end+1] == bases[end] || refPos[end] == unalignedInsert || refPos[end+1] == unalignedInsert) {
		end++
	}
	if refPos[start] == unalignedClip || refPos[end] == unalignedClip {
		return false
	}
	if start == b.CoreStart && end == b.CoreEnd {
		return true
	}
	flankStart, flankEnd := start-flankSize, end+flankSize
	if flankStart < 0 || flankEnd >= len(bases) {
		return false
	}
	*b = CoreBounds{
		FlankStart: flankStart,
		CoreStart:  start,
		VarIndex:   b.VarIndex,
		CoreEnd:    end,
		FlankEnd:   flankEnd,
	}
	return true
}
