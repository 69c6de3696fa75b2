// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package variant defines small variants (SNVs, MNVs and indels) in VCF
// style: a 1-based position, a REF allele and an ALT allele.  Indels carry a
// shared leading anchor base.
package variant

import (
	"fmt"
	"strings"
)

// Type classifies a variant.
type Type int

const (
	// SNV is a single-base substitution.
	SNV Type = iota
	// MNV is a multi-base substitution.
	MNV
	// Insertion adds bases after the anchor.
	Insertion
	// Deletion removes bases after the anchor.
	Deletion
)

var typeNames = [...]string{"SNV", "MNV", "INS", "DEL"}

// String implements fmt.Stringer.
func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return fmt.Sprintf("Type(%d)", int(t))
	}
	return typeNames[t]
}

// Simple is a small variant.
type Simple struct {
	Chrom    string
	Position int
	Ref      string
	Alt      string
}

// New returns a Simple with upper-cased alleles.
func New(chrom string, pos int, ref, alt string) Simple {
	return Simple{Chrom: chrom, Position: pos, Ref: strings.ToUpper(ref), Alt: strings.ToUpper(alt)}
}

// Validate checks the alleles.
func (v Simple) Validate() error {
	if v.Position < 1 {
		return fmt.Errorf("variant %v: position must be >= 1", v)
	}
	if v.Ref == "" || v.Alt == "" {
		return fmt.Errorf("variant %v: empty allele", v)
	}
	if v.Ref == v.Alt {
		return fmt.Errorf("variant %v: ref and alt are equal", v)
	}
	for _, allele := range []string{v.Ref, v.Alt} {
		for i := 0; i < len(allele); i++ {
			switch allele[i] {
			case 'A', 'C', 'G', 'T', 'N':
			default:
				return fmt.Errorf("variant %v: invalid base %q", v, allele[i])
			}
		}
	}
	if v.IsIndel() {
		if len(v.Ref) != 1 && len(v.Alt) != 1 {
			return fmt.Errorf("variant %v: complex indels are not supported", v)
		}
		if v.Ref[0] != v.Alt[0] {
			return fmt.Errorf("variant %v: indel must be anchored by a shared leading base", v)
		}
	}
	return nil
}

// Type returns the variant class.
func (v Simple) Type() Type {
	switch {
	case len(v.Ref) == len(v.Alt):
		if len(v.Ref) == 1 {
			return SNV
		}
		return MNV
	case len(v.Ref) < len(v.Alt):
		return Insertion
	default:
		return Deletion
	}
}

// IsIndel returns true for insertions and deletions.
func (v Simple) IsIndel() bool {
	return len(v.Ref) != len(v.Alt)
}

// IsInsert returns true for insertions.
func (v Simple) IsInsert() bool {
	return len(v.Alt) > len(v.Ref)
}

// IsDelete returns true for deletions.
func (v Simple) IsDelete() bool {
	return len(v.Ref) > len(v.Alt)
}

// IndelLength is len(Alt) - len(Ref): positive for insertions, negative for
// deletions.
func (v Simple) IndelLength() int {
	return len(v.Alt) - len(v.Ref)
}

// IndelBases returns the inserted or deleted bases, excluding the anchor.
func (v Simple) IndelBases() string {
	switch {
	case v.IsInsert():
		return v.Alt[len(v.Ref):]
	case v.IsDelete():
		return v.Ref[len(v.Alt):]
	}
	return ""
}

// End returns the last reference position covered by Ref.
func (v Simple) End() int {
	return v.Position + len(v.Ref) - 1
}

// Key returns a string identifying the variant, suitable as a map key.
func (v Simple) Key() string {
	return v.String()
}

// String implements fmt.Stringer.
func (v Simple) String() string {
	return fmt.Sprintf("%s:%d %s>%s", v.Chrom, v.Position, v.Ref, v.Alt)
}
