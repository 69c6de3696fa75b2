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

// Package readcontext builds and matches read contexts for small somatic
// variants.
//
// A read context is the stretch of read sequence around a variant that is
// needed to recognize it unambiguously: a core (the variant bases, a
// minimal margin, any microhomology and any repeat the variant touches)
// surrounded by two fixed-length flanks.  A context is built once from a
// read carrying the variant; every other read overlapping the variant is
// then classified against it (see Matcher).
package readcontext

import (
	"fmt"
	"strings"
)

// Wildcard is the read base which matches anything inside a core when
// wildcards are enabled.
const Wildcard = 'N'

const (
	// MinCoreDistance is the number of bases kept on either side of the
	// variant bases in the initial core.
	MinCoreDistance = 2
	// DefaultFlankSize is the default length of each flank.
	DefaultFlankSize = 10
	// MaxRepeatUnitLength is the longest repeat unit searched for.
	MaxRepeatUnitLength = 5
	// MinRepeatCount is the minimum number of consecutive unit copies which
	// form a repeat.
	MinRepeatCount = 3
	// CoreLowQualFactor sets the core mismatch allowance: up to
	// 1 + coreLength/CoreLowQualFactor low-quality mismatches.
	CoreLowQualFactor = 8
	// MatchingBaseQual is the quality at or above which a mismatching base
	// can't be excused.
	MatchingBaseQual = 20
	// LongInsertLength is the inserted length at or above which a context
	// also keeps the extended reference bases.
	LongInsertLength = 10
)

// Technology identifies the sequencing platform of the reads.
type Technology int

const (
	// Illumina reads use per-base qualities as reported.
	Illumina Technology = iota
	// Ultima reads are flow-based: homopolymer lengths are the dominant
	// error mode, cores are widened to whole homopolymers and base
	// qualities are taken over homopolymer runs.
	Ultima
)

// Opts controls context construction and matching.
type Opts struct {
	// FlankSize is the length of each flank.
	FlankSize int
	// MaxRepeatUnitLength and MinRepeatCount bound the repeat search used to
	// widen the core.
	MaxRepeatUnitLength int
	MinRepeatCount      int
	// MatchingBaseQual: mismatches at or above this quality are never
	// excused.
	MatchingBaseQual byte
	// CoreLowQualFactor: see the package constant.
	CoreLowQualFactor int
	// MinContextBaseQual is the minimum base quality required at every
	// position of a newly built context.
	MinContextBaseQual byte
	// MinFlankFraction is the fraction of FlankSize each flank of a built
	// context must reach.
	MinFlankFraction float64
	// LongInsertLength: see the package constant.
	LongInsertLength int
	// Technology selects the core extender and quality model.
	Technology Technology
}

// DefaultOpts is the default configuration.
var DefaultOpts = Opts{
	FlankSize:           DefaultFlankSize,
	MaxRepeatUnitLength: MaxRepeatUnitLength,
	MinRepeatCount:      MinRepeatCount,
	MatchingBaseQual:    MatchingBaseQual,
	CoreLowQualFactor:   CoreLowQualFactor,
	MinContextBaseQual:  1,
	MinFlankFraction:    1.0,
	LongInsertLength:    LongInsertLength,
	Technology:          Illumina,
}

// String implements fmt.Stringer.
func (t Technology) String() string {
	switch t {
	case Illumina:
		return "illumina"
	case Ultima:
		return "ultima"
	}
	return fmt.Sprintf("Technology(%d)", int(t))
}

// ParseTechnology parses a technology name, case-insensitively.
func ParseTechnology(s string) (Technology, error) {
	switch strings.ToLower(s) {
	case "illumina":
		return Illumina, nil
	case "ultima":
		return Ultima, nil
	}
	return Illumina, fmt.Errorf("readcontext: unknown technology %q", s)
}
