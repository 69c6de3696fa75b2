// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package evidence

import (
	"bytes"
	"strconv"
	"testing"

	"github.com/grailbio/hts/sam"
	"github.com/grailbio/somatic/readcontext"
	"github.com/grailbio/somatic/reference"
	"github.com/grailbio/testutil/assert"
)

// testRef contains no repeat of a 1-5 base unit with 3 or more copies.
const testRef = "GCTAAGACAATTACATAACATACACGTCAGCACGAACTTGTTGGCCAGTGTGAATCGCTTAAGGTTAAGTAAGTGTGATGCATACGCCTTACTTGCTGTGTCCACCATCGGACTGGCATT"

const highQual = 37

func testOpts() Opts {
	opts := DefaultOpts
	opts.MaxReadSpan = 200
	return opts
}

func newTestWindow(t *testing.T, bases string) *reference.Window {
	w, err := reference.NewWindow("chr1", 1, []byte(bases))
	assert.NoError(t, err)
	return w
}

func newTestRead(t *testing.T, name string, pos int, cigar, bases string) *readcontext.Read {
	c, err := sam.ParseCigar([]byte(cigar))
	assert.NoError(t, err)
	return &readcontext.Read{
		Name:         name,
		Pos:          pos,
		Cigar:        c,
		Bases:        []byte(bases),
		Quals:        bytes.Repeat([]byte{highQual}, len(bases)),
		NumMutations: -1,
	}
}

// refRead returns an unmutated read covering [start, end] of testRef.
func refRead(t *testing.T, start, end int) *readcontext.Read {
	return newTestRead(t, "ref", start, strconv.Itoa(end-start+1)+"M", testRef[start-1:end])
}

// altRead returns a read covering 21-100 of testRef with base b at pos, at
// quality q.
func altRead(t *testing.T, name string, pos int, b, q byte) *readcontext.Read {
	r := refRead(t, 21, 100)
	r.Name = name
	r.Bases[pos-21] = b
	r.Quals[pos-21] = q
	return r
}

func flip(b byte) byte {
	if b == 'A' {
		return 'C'
	}
	return 'A'
}
