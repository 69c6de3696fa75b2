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
	"sync"

	"github.com/grailbio/hts/sam"
	"github.com/grailbio/somatic/variant"
)

// VariantReadContext is the read context of a variant, built from one read
// carrying it.  Read indices are local to ReadBases: the left flank starts
// at 0 and the right flank ends at len(ReadBases)-1.  Except for the
// write-once annotations, a VariantReadContext does not change after
// construction; byte slices returned by accessors must not be modified.
type VariantReadContext struct {
	variant  variant.Simple
	readName string

	alignmentStart, alignmentEnd       int
	corePositionStart, corePositionEnd int

	readBases []byte
	refBases  []byte
	cigar     sam.Cigar

	coreIndexStart, varIndex, coreIndexEnd int

	homology     Microhomology
	hasHomology  bool
	maxRepeat    RepeatInfo
	hasMaxRepeat bool
	allRepeats   []RepeatInfo

	annotations annotations
}

// annotations are attached once after construction.
type annotations struct {
	mu sync.Mutex

	extendedRefBases    []byte
	hasExtendedRefBases bool
	qualModel           QualityModel
	maxRefRepeat        RepeatInfo
	hasMaxRefRepeat     bool
}

// Variant returns the variant the context was built for.
func (c *VariantReadContext) Variant() variant.Simple { return c.variant }

// ReadName returns the name of the read the context was built from.
func (c *VariantReadContext) ReadName() string { return c.readName }

// AlignmentStart returns the reference position of the first context base.
func (c *VariantReadContext) AlignmentStart() int { return c.alignmentStart }

// AlignmentEnd returns the reference position of the last context base.
func (c *VariantReadContext) AlignmentEnd() int { return c.alignmentEnd }

// CorePositionStart returns the reference position of the first core base.
func (c *VariantReadContext) CorePositionStart() int { return c.corePositionStart }

// CorePositionEnd returns the reference position of the last core base.
func (c *VariantReadContext) CorePositionEnd() int { return c.corePositionEnd }

// ReadBases returns the context bases: left flank, core, right flank.
func (c *VariantReadContext) ReadBases() []byte { return c.readBases }

// RefBases returns the reference bases over the core's reference span.
func (c *VariantReadContext) RefBases() []byte { return c.refBases }

// Cigar returns the alignment of the context bases.
func (c *VariantReadContext) Cigar() sam.Cigar { return c.cigar }

// CoreIndexStart returns the index of the first core base.
func (c *VariantReadContext) CoreIndexStart() int { return c.coreIndexStart }

// VarIndex returns the index of the variant's first (anchor) base.
func (c *VariantReadContext) VarIndex() int { return c.varIndex }

// CoreIndexEnd returns the index of the last core base.
func (c *VariantReadContext) CoreIndexEnd() int { return c.coreIndexEnd }

// CoreLength returns the number of core bases.
func (c *VariantReadContext) CoreLength() int { return c.coreIndexEnd - c.coreIndexStart + 1 }

// LeftFlankLength returns the number of left flank bases.
func (c *VariantReadContext) LeftFlankLength() int { return c.coreIndexStart }

// RightFlankLength returns the number of right flank bases.
func (c *VariantReadContext) RightFlankLength() int { return len(c.readBases) - 1 - c.coreIndexEnd }

// CoreString returns the core bases.
func (c *VariantReadContext) CoreString() string {
	return string(c.readBases[c.coreIndexStart : c.coreIndexEnd+1])
}

// LeftFlankString returns the left flank bases.
func (c *VariantReadContext) LeftFlankString() string {
	return string(c.readBases[:c.coreIndexStart])
}

// RightFlankString returns the right flank bases.
func (c *VariantReadContext) RightFlankString() string {
	return string(c.readBases[c.coreIndexEnd+1:])
}

// ReadBasesString returns all context bases.
func (c *VariantReadContext) ReadBasesString() string { return string(c.readBases) }

// RefBasesString returns the reference core bases.
func (c *VariantReadContext) RefBasesString() string { return string(c.refBases) }

// Homology returns the microhomology of an indel.
func (c *VariantReadContext) Homology() (Microhomology, bool) { return c.homology, c.hasHomology }

// HomologyString returns the microhomology bases, or "".
func (c *VariantReadContext) HomologyString() string { return c.homology.Bases }

// MaxRepeat returns the repeat with the highest count touching the core.
// Its Index is local to ReadBases.
func (c *VariantReadContext) MaxRepeat() (RepeatInfo, bool) { return c.maxRepeat, c.hasMaxRepeat }

// RepeatUnit returns the unit of MaxRepeat, or "".
func (c *VariantReadContext) RepeatUnit() string { return c.maxRepeat.Bases }

// RepeatCount returns the count of MaxRepeat, or 0.
func (c *VariantReadContext) RepeatCount() int { return c.maxRepeat.Count }

// AllRepeats returns every distinct repeat found inside the context.
func (c *VariantReadContext) AllRepeats() []RepeatInfo { return c.allRepeats }

// IndexedBases returns the context bases as an IndexedBases anchored at the
// variant.
func (c *VariantReadContext) IndexedBases() IndexedBases {
	return IndexedBases{
		Position:        c.variant.Position,
		Index:           c.varIndex,
		LeftCoreIndex:   c.coreIndexStart,
		RightCoreIndex:  c.coreIndexEnd,
		LeftFlankIndex:  0,
		RightFlankIndex: len(c.readBases) - 1,
		FlankSize:       c.LeftFlankLength(),
		Bases:           c.readBases,
	}
}

// String implements fmt.Stringer.
func (c *VariantReadContext) String() string {
	return fmt.Sprintf("%v %s-%s-%s %d-%d", c.variant, c.LeftFlankString(), c.CoreString(), c.RightFlankString(),
		c.alignmentStart, c.alignmentEnd)
}

func errAnnotationSet(name string, c *VariantReadContext) error {
	return fmt.Errorf("readcontext: %s already set for %v", name, c.variant)
}

// SetExtendedRefBases records the reference bases over the core extended by
// an insertion's length.  It fails if already set.
func (c *VariantReadContext) SetExtendedRefBases(bases []byte) error {
	a := &c.annotations
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.hasExtendedRefBases {
		return errAnnotationSet("extended ref bases", c)
	}
	a.extendedRefBases, a.hasExtendedRefBases = bases, true
	return nil
}

// ExtendedRefBases returns the extended reference bases, if set.
func (c *VariantReadContext) ExtendedRefBases() ([]byte, bool) {
	a := &c.annotations
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.extendedRefBases, a.hasExtendedRefBases
}

// SetQualityModel records the quality model used when matching reads
// against the context.  It fails if already set.
func (c *VariantReadContext) SetQualityModel(m QualityModel) error {
	a := &c.annotations
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.qualModel != nil {
		return errAnnotationSet("quality model", c)
	}
	a.qualModel = m
	return nil
}

// QualityModel returns the quality model, or nil if unset.
func (c *VariantReadContext) QualityModel() QualityModel {
	a := &c.annotations
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.qualModel
}

// SetMaxRefRepeat records the longest reference repeat at the variant.  It
// fails if already set.
func (c *VariantReadContext) SetMaxRefRepeat(r RepeatInfo) error {
	a := &c.annotations
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.hasMaxRefRepeat {
		return errAnnotationSet("max ref repeat", c)
	}
	a.maxRefRepeat, a.hasMaxRefRepeat = r, true
	return nil
}

// MaxRefRepeat returns the longest reference repeat, if set.
func (c *VariantReadContext) MaxRefRepeat() (RepeatInfo, bool) {
	a := &c.annotations
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.maxRefRepeat, a.hasMaxRefRepeat
}
