// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package reference

import (
	"fmt"

	"github.com/grailbio/base/errors"
)

// Window is a contiguous stretch of reference sequence.  Start and End are
// 1-based inclusive positions, and Bases[i] is the base at Start+i.
type Window struct {
	Chrom string
	Start int
	End   int
	Bases []byte
}

// NewWindow returns a Window covering [start, start+len(bases)).
func NewWindow(chrom string, start int, bases []byte) (*Window, error) {
	if start < 1 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("reference window %s:%d: start must be >= 1", chrom, start))
	}
	if len(bases) == 0 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("reference window %s:%d: no bases", chrom, start))
	}
	return &Window{
		Chrom: chrom,
		Start: start,
		End:   start + len(bases) - 1,
		Bases: bases,
	}, nil
}

// Len returns the number of bases in the window.
func (w *Window) Len() int {
	return len(w.Bases)
}

// Contains returns true iff pos lies inside the window.
func (w *Window) Contains(pos int) bool {
	return pos >= w.Start && pos <= w.End
}

// Index returns the offset of pos in Bases.  The result is out of range when
// pos is outside the window.
func (w *Window) Index(pos int) int {
	return pos - w.Start
}

// Base returns the base at pos, or 'N' if pos is outside the window.
func (w *Window) Base(pos int) byte {
	if !w.Contains(pos) {
		return 'N'
	}
	return w.Bases[pos-w.Start]
}

// Range returns the bases at [start, end] (1-based, inclusive).  ok is false
// if the range is empty or not fully contained in the window.
func (w *Window) Range(start, end int) (bases []byte, ok bool) {
	if start > end || !w.Contains(start) || !w.Contains(end) {
		return nil, false
	}
	return w.Bases[start-w.Start : end-w.Start+1], true
}

// String implements fmt.Stringer.
func (w *Window) String() string {
	return fmt.Sprintf("%s:%d-%d", w.Chrom, w.Start, w.End)
}
