// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package evidence

import (
	"testing"

	"github.com/grailbio/somatic/readcontext"
	"github.com/grailbio/somatic/variant"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

const snvContext = "GTGTGAATCG-CTCAA-GGTTAAGTAA"

func countReads(t *testing.T, opts Opts, vars []variant.Simple, reads ...*readcontext.Read) []Result {
	c := NewCounter("chr1", vars, newTestWindow(t, testRef), opts)
	for _, r := range reads {
		c.Add(r)
	}
	results := c.Finish()
	assert.EQ(t, len(results), len(vars))
	return results
}

func TestCounterSNV(t *testing.T) {
	v := variant.New("chr1", 60, "T", "C")
	var reads []*readcontext.Read
	for i := 0; i < 3; i++ {
		r := altRead(t, "alt", 60, 'C', highQual)
		r.NumMutations = 1 + i
		reads = append(reads, r)
	}
	reads = append(reads, refRead(t, 21, 100), refRead(t, 21, 100), altRead(t, "lowq", 60, 'A', 10))

	res := countReads(t, testOpts(), []variant.Simple{v}, reads...)[0]
	expect.EQ(t, res.Variant, v)
	expect.EQ(t, res.Context, snvContext)
	expect.EQ(t, res.ContextSupport, 3)
	expect.EQ(t, res.NumContexts, 1)
	expect.EQ(t, res.Full, 3)
	expect.EQ(t, res.PartialCore, 0)
	expect.EQ(t, res.Core, 0)
	expect.EQ(t, res.Ref, 2)
	expect.EQ(t, res.None, 1)
	expect.EQ(t, res.AltSupport(), 3)
	expect.EQ(t, res.Depth, 6)
	expect.False(t, res.DepthLimited)
	expect.EQ(t, res.AltMeanNM, 2.0)
}

func TestCounterDepthLimit(t *testing.T) {
	v := variant.New("chr1", 60, "T", "C")
	opts := testOpts()
	opts.MaxReadDepth = 2
	res := countReads(t, opts, []variant.Simple{v},
		altRead(t, "a1", 60, 'C', highQual),
		altRead(t, "a2", 60, 'C', highQual),
		altRead(t, "a3", 60, 'C', highQual),
		refRead(t, 21, 100),
		refRead(t, 21, 100))[0]
	expect.EQ(t, res.Full, 2)
	expect.EQ(t, res.Ref, 0)
	expect.EQ(t, res.Depth, 5)
	expect.True(t, res.DepthLimited)
}

func TestCounterPicksMostSupportedContext(t *testing.T) {
	v := variant.New("chr1", 60, "T", "C")
	// A high-quality flank difference yields a second context.
	other := func() *readcontext.Read {
		r := altRead(t, "other", 60, 'C', highQual)
		r.Bases[30] = flip(r.Bases[30])
		return r
	}
	const otherContext = "GTGAGAATCG-CTCAA-GGTTAAGTAA"

	res := countReads(t, testOpts(), []variant.Simple{v},
		other(), altRead(t, "a1", 60, 'C', highQual), altRead(t, "a2", 60, 'C', highQual))[0]
	expect.EQ(t, res.Context, snvContext)
	expect.EQ(t, res.ContextSupport, 2)
	expect.EQ(t, res.NumContexts, 2)
	expect.EQ(t, res.Full, 2)
	expect.EQ(t, res.Core, 1)

	// Ties go to the first context seen.
	res = countReads(t, testOpts(), []variant.Simple{v}, other(), altRead(t, "a1", 60, 'C', highQual))[0]
	expect.EQ(t, res.Context, otherContext)
	expect.EQ(t, res.Full, 1)
	expect.EQ(t, res.Core, 1)

	// Contexts beyond the limit are counted but not kept.
	opts := testOpts()
	opts.MaxCandidateContexts = 1
	res = countReads(t, opts, []variant.Simple{v}, other(), altRead(t, "a1", 60, 'C', highQual), altRead(t, "a2", 60, 'C', highQual))[0]
	expect.EQ(t, res.Context, otherContext)
	expect.EQ(t, res.ContextSupport, 1)
	expect.EQ(t, res.NumContexts, 2)
}

func TestCounterMultipleAllelesAtPosition(t *testing.T) {
	vars := []variant.Simple{
		variant.New("chr1", 60, "T", "C"),
		variant.New("chr1", 60, "T", "G"),
		variant.New("chr1", 115, "G", "C"),
	}
	results := countReads(t, testOpts(), vars,
		altRead(t, "c1", 60, 'C', highQual),
		altRead(t, "c2", 60, 'C', highQual),
		altRead(t, "g1", 60, 'G', highQual))

	expect.EQ(t, results[0].Full, 2)
	expect.EQ(t, results[0].None, 1)
	expect.EQ(t, results[1].Full, 1)
	expect.EQ(t, results[1].None, 2)
	for _, r := range results[:2] {
		expect.EQ(t, r.Depth, 3)
	}
	// No read reaches the last candidate.
	expect.EQ(t, results[2], Result{Variant: vars[2]})
}

func TestCounterFinalizesPassedCandidates(t *testing.T) {
	v := variant.New("chr1", 30, "G", "C")
	opts := testOpts()
	opts.MaxReadSpan = 16
	c := NewCounter("chr1", []variant.Simple{v, variant.New("chr1", 110, "G", "A")}, newTestWindow(t, testRef), opts)
	c.Add(refRead(t, 25, 40))
	c.Add(refRead(t, 105, 115))
	// The first candidate is evicted as soon as the window moves on.
	expect.EQ(t, c.results[0].Depth, 1)
	results := c.Finish()
	expect.EQ(t, results[1].Depth, 1)
	expect.EQ(t, c.window.NumIgnored(), 0)
}

func TestCounterSkipsLongReads(t *testing.T) {
	v := variant.New("chr1", 60, "T", "C")
	opts := testOpts()
	opts.MaxReadSpan = 50
	res := countReads(t, opts, []variant.Simple{v}, altRead(t, "long", 60, 'C', highQual))[0]
	expect.EQ(t, res.Depth, 0)
}

func TestCounterSkipsReadsWithoutBases(t *testing.T) {
	v := variant.New("chr1", 60, "T", "C")
	opts := testOpts()
	opts.RecomputeNM = true
	noSeq := refRead(t, 21, 100)
	noSeq.Bases, noSeq.Quals = nil, nil
	short := altRead(t, "short", 60, 'C', highQual)
	short.Bases = short.Bases[:40]
	short.Quals = short.Quals[:40]

	c := NewCounter("chr1", []variant.Simple{v}, newTestWindow(t, testRef), opts)
	for _, r := range []*readcontext.Read{noSeq, short, altRead(t, "alt", 60, 'C', highQual)} {
		c.Add(r)
	}
	res := c.Finish()[0]
	expect.EQ(t, c.nSkipped, 2)
	expect.EQ(t, res.Full, 1)
	expect.EQ(t, res.Depth, 1)
}

func TestAlignedIndexAndCarriesAlt(t *testing.T) {
	t6 := testRef[:55] + "ATTTTTTG" + testRef[55:]
	snv := variant.New("chr1", 60, "T", "C")
	del := variant.New("chr1", 48, "GTG", "G")
	ins := variant.New("chr1", 56, "A", "AT")
	clipIns := variant.New("chr1", 70, "T", "TGAC")
	tests := []struct {
		name  string
		v     variant.Simple
		read  *readcontext.Read
		index int
		alt   bool
	}{
		{"snv alt", snv, altRead(t, "a", 60, 'C', highQual), 39, true},
		{"snv ref", snv, refRead(t, 21, 100), 39, false},
		{"deletion alt", del, newTestRead(t, "d", 21, "28M2D50M", testRef[20:48]+testRef[50:100]), 27, true},
		{"deletion ref", del, refRead(t, 21, 100), 27, false},
		{"insertion alt", ins, newTestRead(t, "i", 21, "36M1I54M", t6[20:56]+"T"+t6[56:110]), 35, true},
		{"insertion ref", ins, newTestRead(t, "r", 21, "90M", t6[20:110]), 35, false},
		{"insertion in leading clip", clipIns, newTestRead(t, "c", 71, "5S10M", "ATGACCCCCCCCCCC"), 1, true},
		{"position deleted", snv, newTestRead(t, "x", 21, "39M2D39M", testRef[20:59]+testRef[61:100]), -1, false},
		{"position not covered", snv, refRead(t, 70, 100), -1, false},
	}
	for _, tt := range tests {
		idx := alignedIndex(tt.read, tt.v)
		expect.EQ(t, idx, tt.index, tt.name)
		if idx >= 0 {
			expect.EQ(t, carriesAlt(tt.read, tt.v, idx), tt.alt, tt.name)
		}
	}
}
