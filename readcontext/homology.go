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
	"github.com/grailbio/somatic/reference"
	"github.com/grailbio/somatic/variant"
)

// Microhomology is the run of bases following an indel that repeats the
// indel's own bases.  Such an indel can be placed anywhere across the run, so
// a context must cover all of it.
type Microhomology struct {
	Bases  string
	Length int
}

// homologyAt compares bases from start onward against indel, repeated
// cyclically, and returns the matching run.
func homologyAt(indel string, bases []byte, start int) (Microhomology, bool) {
	if len(indel) == 0 || start < 0 {
		return Microhomology{}, false
	}
	n := 0
	for start+n < len(bases) && bases[start+n] == indel[n%len(indel)] {
		n++
	}
	if n == 0 {
		return Microhomology{}, false
	}
	return Microhomology{Bases: string(bases[start : start+n]), Length: n}, true
}

// FindHomology returns the microhomology of indel v in bases carrying its alt
// allele, where varIndex is the index of the anchor base.
func FindHomology(v variant.Simple, bases []byte, varIndex int) (Microhomology, bool) {
	if !v.IsIndel() || varIndex < 0 {
		return Microhomology{}, false
	}
	start := varIndex + 1
	if v.IsInsert() {
		start += len(v.IndelBases())
	}
	return homologyAt(v.IndelBases(), bases, start)
}

// FindVariantHomology returns the longer of the read-based homology and, for
// deletions, the homology following the deleted bases in the reference.
func FindVariantHomology(v variant.Simple, readBases []byte, readIndex int, ref *reference.Window) (Microhomology, bool) {
	hom, ok := FindHomology(v, readBases, readIndex)
	if v.IsDelete() && ref != nil && ref.Contains(v.Position) {
		refHom, refOK := homologyAt(v.IndelBases(), ref.Bases, ref.Index(v.Position)+len(v.Ref))
		if refOK && (!ok || refHom.Length > hom.Length) {
			return refHom, true
		}
	}
	return hom, ok
}
