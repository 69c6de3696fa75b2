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
	"github.com/grailbio/somatic/reference"
)

// Read is an aligned read, in the form contexts are built from and matched
// against.  Reads are not modified after construction.
type Read struct {
	Name string
	// Pos is the 1-based reference position of the first aligned
	// (non-clipped) base.
	Pos   int
	Cigar sam.Cigar
	// Bases are ASCII, upper-case; soft-clipped bases are included.
	Bases []byte
	// Quals are Phred scores, parallel to Bases.  Nil means all bases are
	// high quality.
	Quals []byte
	// NumMutations is the edit distance to the reference (NM tag), or -1 if
	// unknown.
	NumMutations int
}

var nmTag = sam.NewTag("NM")

// ReadFromSAM adapts a BAM record.  The record's sequence is expanded, and its
// 0-based position is converted to 1-based.
func ReadFromSAM(r *sam.Record) *Read {
	read := &Read{
		Name:         r.Name,
		Pos:          r.Pos + 1,
		Cigar:        r.Cigar,
		Bases:        r.Seq.Expand(),
		Quals:        r.Qual,
		NumMutations: -1,
	}
	if aux := r.AuxFields.Get(nmTag); aux != nil {
		switch nm := aux.Value().(type) {
		case int8:
			read.NumMutations = int(nm)
		case uint8:
			read.NumMutations = int(nm)
		case int16:
			read.NumMutations = int(nm)
		case uint16:
			read.NumMutations = int(nm)
		case int32:
			read.NumMutations = int(nm)
		case uint32:
			read.NumMutations = int(nm)
		}
	}
	return read
}

// Valid reports whether the cigar describes exactly the read's bases, and the
// qualities, if any, are parallel to them.  A record stored without SEQ is
// not valid.
func (r *Read) Valid() bool {
	if len(r.Cigar) == 0 {
		return false
	}
	_, readLen := r.Cigar.Lengths()
	return readLen == len(r.Bases) && (r.Quals == nil || len(r.Quals) == len(r.Bases))
}

// Len returns the number of bases in the read.
func (r *Read) Len() int {
	return len(r.Bases)
}

// Qual returns the quality of base i.
func (r *Read) Qual(i int) byte {
	if r.Quals == nil {
		return 0xff
	}
	return r.Quals[i]
}

// End returns the 1-based reference position of the last aligned base.
func (r *Read) End() int {
	refLen, _ := r.Cigar.Lengths()
	return r.Pos + refLen - 1
}

// UnclippedStart returns the position the first base would have if the
// leading soft clip were aligned.
func (r *Read) UnclippedStart() int {
	return r.Pos - leadingClip(r.Cigar)
}

// UnclippedEnd returns the position the last base would have if the trailing
// soft clip were aligned.
func (r *Read) UnclippedEnd() int {
	return r.End() + trailingClip(r.Cigar)
}

// IndexAt returns the read index of the base aligned to reference position
// pos.  ok is false if pos is outside the alignment, or deleted or skipped in
// the read.
func (r *Read) IndexAt(pos int) (idx int, ok bool) {
	posInRef, posInRead := r.Pos, 0
	for _, co := range r.Cigar {
		cLen := co.Len()
		switch co.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
			if pos >= posInRef && pos < posInRef+cLen {
				return posInRead + pos - posInRef, true
			}
			posInRef += cLen
			posInRead += cLen
		case sam.CigarInsertion, sam.CigarSoftClipped:
			posInRead += cLen
		case sam.CigarDeletion, sam.CigarSkipped:
			if pos >= posInRef && pos < posInRef+cLen {
				return 0, false
			}
			posInRef += cLen
		}
	}
	return 0, false
}

// ComputeNumMutations returns the edit distance between the aligned part of
// the read and the reference: mismatching aligned bases plus inserted and
// deleted lengths.  N bases on either side are not counted as mismatches.
// ok is false if ref does not cover the alignment or the read is not Valid.
func ComputeNumMutations(r *Read, ref *reference.Window) (nm int, ok bool) {
	if !r.Valid() || !ref.Contains(r.Pos) || !ref.Contains(r.End()) {
		return 0, false
	}
	posInRef, posInRead := r.Pos, 0
	for _, co := range r.Cigar {
		cLen := co.Len()
		switch co.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
			for i := 0; i < cLen; i++ {
				readBase, refBase := r.Bases[posInRead+i], ref.Base(posInRef+i)
				if readBase != refBase && readBase != 'N' && refBase != 'N' {
					nm++
				}
			}
			posInRef += cLen
			posInRead += cLen
		case sam.CigarInsertion:
			nm += cLen
			posInRead += cLen
		case sam.CigarSoftClipped:
			posInRead += cLen
		case sam.CigarDeletion:
			nm += cLen
			posInRef += cLen
		case sam.CigarSkipped:
			posInRef += cLen
		}
	}
	return nm, true
}
