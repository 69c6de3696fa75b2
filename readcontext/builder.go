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
	"math"

	"github.com/grailbio/base/log"
	"github.com/grailbio/somatic/reference"
	"github.com/grailbio/somatic/variant"
)

// Builder builds VariantReadContexts.  A Builder holds no mutable state and
// is safe for concurrent use.
type Builder struct {
	opts      Opts
	extender  CoreExtender
	qualModel QualityModel
}

// NewBuilder returns a Builder for opts.  Ultima reads get a
// HomopolymerExtender.
func NewBuilder(opts Opts) *Builder {
	if opts.CoreLowQualFactor <= 0 {
		opts.CoreLowQualFactor = CoreLowQualFactor
	}
	b := &Builder{
		opts:      opts,
		qualModel: QualityModelFor(opts.Technology),
	}
	if opts.Technology == Ultima {
		b.extender = HomopolymerExtender{}
	}
	return b
}

// WithCoreExtender returns a copy of b which uses e (nil to disable core
// extension).
func (b *Builder) WithCoreExtender(e CoreExtender) *Builder {
	nb := *b
	nb.extender = e
	return &nb
}

// Opts returns the builder's configuration.
func (b *Builder) Opts() Opts {
	return b.opts
}

// Build builds the read context of v from read, where varIndex is the read
// index of v's first base (the anchor base for indels) and ref covers the
// read's alignment.  ok is false if no valid context can be built from this
// read; that is an ordinary outcome and is not logged.
func (b *Builder) Build(v variant.Simple, read *Read, varIndex int, ref *reference.Window) (ctx *VariantReadContext, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Error.Printf("readcontext.Builder: variant(%v) read(%s): %v", v, readName(read), r)
			ctx, ok = nil, false
		}
	}()
	ctx, err := b.build(v, read, varIndex, ref)
	if err != nil {
		log.Error.Printf("readcontext.Builder: variant(%v) read(%s): %v", v, read.Name, err)
		return nil, false
	}
	return ctx, ctx != nil
}

func readName(read *Read) string {
	if read == nil {
		return "<nil>"
	}
	return read.Name
}

// build returns nil, nil when the read can't support a context, and an error
// on internal inconsistencies.
func (b *Builder) build(v variant.Simple, read *Read, varIndex int, ref *reference.Window) (*VariantReadContext, error) {
	bases := read.Bases
	if ref == nil || varIndex < 0 || varIndex >= len(bases) {
		return nil, nil
	}
	if read.Quals != nil && len(read.Quals) != len(bases) {
		return nil, fmt.Errorf("%d quals for %d bases", len(read.Quals), len(bases))
	}

	var (
		hom    Microhomology
		hasHom bool
	)
	if v.IsIndel() {
		hom, hasHom = FindVariantHomology(v, bases, varIndex, ref)
	}
	coreStart := varIndex - MinCoreDistance
	coreEnd := varIndex + len(v.Alt) - 1 + MinCoreDistance
	if hasHom {
		coreEnd += hom.Length
	}
	if coreStart < 0 || coreEnd >= len(bases) {
		return nil, nil
	}

	cigar, pos := read.Cigar, read.Pos
	if v.IsInsert() && (varIndex < leadingClip(cigar) || varIndex+1 >= len(bases)-trailingClip(cigar)) {
		var converted bool
		if cigar, pos, converted = convertSoftClipInsert(read, v, varIndex); !converted {
			return nil, nil
		}
	}

	var (
		maxRepeat    RepeatInfo
		hasMaxRepeat bool
		repeats      []RepeatInfo
	)
	if rb, found := FindRepeatBoundaries(bases, coreStart, coreEnd, b.opts.MaxRepeatUnitLength, b.opts.MinRepeatCount); found {
		coreStart, coreEnd = rb.LowerIndex, rb.UpperIndex
		maxRepeat, hasMaxRepeat, repeats = rb.MaxRepeat, true, rb.AllRepeats
	}

	bounds := CoreBounds{
		FlankStart: coreStart - b.opts.FlankSize,
		CoreStart:  coreStart,
		VarIndex:   varIndex,
		CoreEnd:    coreEnd,
		FlankEnd:   coreEnd + b.opts.FlankSize,
	}
	if bounds.FlankStart < 0 || bounds.FlankEnd >= len(bases) {
		return nil, nil
	}
	span, err := alignReadSpan(pos, cigar, bounds.FlankStart, bounds.CoreStart, bounds.CoreEnd, bounds.FlankEnd)
	if err != nil {
		return nil, err
	}

	if b.extender != nil {
		orig := bounds
		if !b.extender.ExtendCore(read, cigar, pos, &bounds, b.opts.FlankSize) {
			return nil, nil
		}
		if bounds != orig {
			if bounds.FlankStart < 0 || bounds.FlankStart > bounds.CoreStart || bounds.CoreStart > varIndex ||
				varIndex > bounds.CoreEnd || bounds.CoreEnd > bounds.FlankEnd || bounds.FlankEnd >= len(bases) {
				return nil, fmt.Errorf("core extender produced invalid bounds %+v", bounds)
			}
			if span, err = alignReadSpan(pos, cigar, bounds.FlankStart, bounds.CoreStart, bounds.CoreEnd, bounds.FlankEnd); err != nil {
				return nil, err
			}
		}
	}
	if skipsBetween(cigar, bounds.CoreStart, bounds.CoreEnd) {
		return nil, nil
	}

	refCore, found := ref.Range(span.corePositionStart, span.corePositionEnd)
	if !found {
		return nil, nil
	}
	ctx := &VariantReadContext{
		variant:           v,
		readName:          read.Name,
		alignmentStart:    span.alignmentStart,
		alignmentEnd:      span.alignmentEnd,
		corePositionStart: span.corePositionStart,
		corePositionEnd:   span.corePositionEnd,
		readBases:         append([]byte(nil), bases[bounds.FlankStart:bounds.FlankEnd+1]...),
		refBases:          append([]byte(nil), refCore...),
		cigar:             trimCigar(cigar, bounds.FlankStart, bounds.FlankEnd),
		coreIndexStart:    bounds.CoreStart - bounds.FlankStart,
		varIndex:          varIndex - bounds.FlankStart,
		coreIndexEnd:      bounds.CoreEnd - bounds.FlankStart,
		homology:          hom,
		hasHomology:       hasHom,
	}
	for _, r := range repeats {
		if local := r.Shift(-bounds.FlankStart); local.Index >= 0 && local.EndIndex() < len(ctx.readBases) {
			ctx.allRepeats = append(ctx.allRepeats, local)
		}
	}
	if hasMaxRepeat {
		ctx.maxRepeat, ctx.hasMaxRepeat = maxRepeat.Shift(-bounds.FlankStart), true
	}

	if !b.valid(ctx, read, bounds, ref) {
		return nil, nil
	}
	if err := b.annotate(ctx, ref); err != nil {
		return nil, err
	}
	return ctx, nil
}

// valid checks flank completeness, base qualities over the context, and
// reference padding around the variant.
func (b *Builder) valid(ctx *VariantReadContext, read *Read, bounds CoreBounds, ref *reference.Window) bool {
	minFlank := int(math.Ceil(b.opts.MinFlankFraction * float64(b.opts.FlankSize)))
	if ctx.LeftFlankLength() < minFlank || ctx.RightFlankLength() < minFlank {
		return false
	}
	if read.Quals != nil {
		for i := bounds.FlankStart; i <= bounds.FlankEnd; i++ {
			if read.Quals[i] < b.opts.MinContextBaseQual {
				return false
			}
		}
	}
	v := ctx.variant
	return ref.Contains(v.Position-1) && ref.Contains(v.End()+1)
}

// annotate attaches the write-once annotations.
func (b *Builder) annotate(ctx *VariantReadContext, ref *reference.Window) error {
	v := ctx.variant
	if v.IsInsert() && len(v.IndelBases()) >= b.opts.LongInsertLength {
		end := ctx.corePositionEnd + len(v.IndelBases())
		if end > ref.End {
			end = ref.End
		}
		if ext, ok := ref.Range(ctx.corePositionStart, end); ok {
			if err := ctx.SetExtendedRefBases(append([]byte(nil), ext...)); err != nil {
				return err
			}
		}
	}
	if err := ctx.SetQualityModel(b.qualModel); err != nil {
		return err
	}
	if r, ok := FindRefRepeat(ref, v, b.opts.MaxRepeatUnitLength, b.opts.MinRepeatCount); ok {
		if err := ctx.SetMaxRefRepeat(r); err != nil {
			return err
		}
	}
	return nil
}
