// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package evidence

import (
	"bytes"

	"github.com/biogo/store/llrb"
	"github.com/dgryski/go-farm"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/somatic/circular"
	"github.com/grailbio/somatic/readcontext"
	"github.com/grailbio/somatic/reference"
	"github.com/grailbio/somatic/variant"
)

// candidateNode lists the variants at one position.
type candidateNode struct {
	pos      int
	variants []int // indices into Counter.variants
}

// Compare implements llrb.Comparable.
func (n *candidateNode) Compare(c llrb.Comparable) int {
	return n.pos - c.(*candidateNode).pos
}

type observation struct {
	read      *readcontext.Read
	readIndex int
}

type candidateContext struct {
	ctx     *readcontext.VariantReadContext
	support int
}

type variantState struct {
	idx      int
	reads    []observation
	contexts []*candidateContext
	// byHash maps a context hash to its candidate, or to nil if the context
	// was dropped.
	byHash map[uint64]*candidateContext
}

// positionState is the circular.Window payload of a candidate position.
type positionState struct {
	variants     []*variantState
	limitSet     bool
	depthLimited bool
}

// Counter accumulates evidence for the candidates of one chromosome.  Reads
// must be added in order of alignment start.  A Counter is not safe for
// concurrent use.
type Counter struct {
	chrom    string
	opts     Opts
	builder  *readcontext.Builder
	ref      *reference.Window
	variants []variant.Simple
	index    llrb.Tree
	window   *circular.Window
	results  []Result

	nReads, nSkipped int
}

// NewCounter returns a Counter for variants, which must all be on chrom.
// ref must cover every read that will be added.
func NewCounter(chrom string, variants []variant.Simple, ref *reference.Window, opts Opts) *Counter {
	c := &Counter{
		chrom:    chrom,
		opts:     opts,
		builder:  readcontext.NewBuilder(opts.Context),
		ref:      ref,
		variants: variants,
		results:  make([]Result, len(variants)),
	}
	// A read can start up to MaxReadSpan before the latest position touched
	// by an earlier read, and touch positions up to MaxReadSpan before its
	// own start.
	c.window = circular.NewWindow(circular.WindowOpts{
		Capacity:       4 * opts.MaxReadSpan,
		RecentreOffset: 2 * opts.MaxReadSpan,
	}, c.evict)
	for i, v := range variants {
		if v.Chrom != chrom {
			log.Panicf("evidence.NewCounter: variant %v not on %s", v, chrom)
		}
		c.results[i] = Result{Variant: v}
		if node := c.index.Get(&candidateNode{pos: v.Position}); node != nil {
			n := node.(*candidateNode)
			n.variants = append(n.variants, i)
			continue
		}
		c.index.Insert(&candidateNode{pos: v.Position, variants: []int{i}})
	}
	return c
}

// AddRecord converts rec and adds it.  The edit distance is recomputed if
// requested or missing.
func (c *Counter) AddRecord(rec *sam.Record) {
	read := readcontext.ReadFromSAM(rec)
	if c.opts.RecomputeNM || read.NumMutations < 0 {
		if nm, ok := readcontext.ComputeNumMutations(read, c.ref); ok {
			read.NumMutations = nm
		}
	}
	c.Add(read)
}

// Add adds a read.  Reads that are not Valid are skipped.
func (c *Counter) Add(read *readcontext.Read) {
	if !read.Valid() {
		c.nSkipped++
		log.Debug.Printf("evidence: %s: skipping read %s: cigar %v does not match %d bases", c.chrom, read.Name, read.Cigar, len(read.Bases))
		return
	}
	start, end := read.UnclippedStart(), read.UnclippedEnd()
	if end-start+1 > c.opts.MaxReadSpan {
		c.nSkipped++
		log.Debug.Printf("evidence: %s: skipping read %s spanning %d-%d", c.chrom, read.Name, start, end)
		return
	}
	c.nReads++
	c.index.DoRange(func(item llrb.Comparable) bool {
		c.addAt(item.(*candidateNode), read)
		return false
	}, &candidateNode{pos: start}, &candidateNode{pos: end + 1})
}

func (c *Counter) addAt(node *candidateNode, read *readcontext.Read) {
	payload, ok := c.window.GetOrCreatePayload(node.pos, func() interface{} {
		ps := &positionState{}
		for _, i := range node.variants {
			ps.variants = append(ps.variants, &variantState{
				idx:    i,
				byHash: make(map[uint64]*candidateContext),
			})
		}
		return ps
	})
	if !ok {
		return
	}
	ps := payload.(*positionState)
	if !ps.limitSet && c.opts.MaxReadDepth > 0 {
		c.window.RegisterDepthLimit(node.pos, c.opts.MaxReadDepth)
		ps.limitSet = true
	}
	exceeded, _ := c.window.ExceedsDepthLimit(node.pos)
	c.window.RegisterDepth(node.pos)
	if exceeded {
		ps.depthLimited = true
		return
	}
	for _, vs := range ps.variants {
		c.observe(vs, read)
	}
}

func (c *Counter) observe(vs *variantState, read *readcontext.Read) {
	v := c.variants[vs.idx]
	readIndex := alignedIndex(read, v)
	vs.reads = append(vs.reads, observation{read: read, readIndex: readIndex})
	if readIndex < 0 || !carriesAlt(read, v, readIndex) {
		return
	}
	ctx, ok := c.builder.Build(v, read, readIndex, c.ref)
	if !ok {
		return
	}
	h := farm.Hash64WithSeed(ctx.ReadBases(), uint64(ctx.CoreIndexStart())<<32|uint64(ctx.CoreIndexEnd()))
	if cc, ok := vs.byHash[h]; ok {
		if cc != nil {
			cc.support++
		}
		return
	}
	if len(vs.contexts) >= c.opts.MaxCandidateContexts {
		vs.byHash[h] = nil
		return
	}
	cc := &candidateContext{ctx: ctx, support: 1}
	vs.byHash[h] = cc
	vs.contexts = append(vs.contexts, cc)
}

// alignedIndex returns the read index of v's first base, or -1.  An
// insertion at the inner edge of a leading soft clip is indexed as if the
// clip were aligned.
func alignedIndex(read *readcontext.Read, v variant.Simple) int {
	if idx, ok := read.IndexAt(v.Position); ok {
		return idx
	}
	if v.IsInsert() && read.Pos == v.Position+1 {
		clip := read.Pos - read.UnclippedStart()
		if idx := clip - len(v.IndelBases()) - 1; idx >= 0 {
			return idx
		}
	}
	return -1
}

// carriesAlt reports whether read shows v's alt allele at readIndex.
func carriesAlt(read *readcontext.Read, v variant.Simple, readIndex int) bool {
	bases := read.Bases
	switch {
	case v.IsInsert():
		ins := v.IndelBases()
		lo, hi := readIndex+1, readIndex+1+len(ins)
		if hi > len(bases) || string(bases[lo:hi]) != ins {
			return false
		}
		next, ok := read.IndexAt(v.Position + 1)
		return !ok || next == hi
	case v.IsDelete():
		next, ok := read.IndexAt(v.End() + 1)
		return ok && next == readIndex+1
	}
	hi := readIndex + len(v.Alt)
	if hi > len(bases) || !bytes.Equal(bases[readIndex:hi], []byte(v.Alt)) {
		return false
	}
	// The alt bases must be aligned contiguously.
	last, ok := read.IndexAt(v.End())
	return ok && last == hi-1
}

// bestContext returns the context with the most support, preferring the
// first seen on ties.
func bestContext(contexts []*candidateContext) *candidateContext {
	var best *candidateContext
	for _, cc := range contexts {
		if best == nil || cc.support > best.support {
			best = cc
		}
	}
	return best
}

func (c *Counter) evict(pos, depth int, payload interface{}) {
	ps, ok := payload.(*positionState)
	if !ok {
		return
	}
	for _, vs := range ps.variants {
		c.finish(vs, depth, ps.depthLimited)
	}
}

// finish classifies the reads of vs against its best context.
func (c *Counter) finish(vs *variantState, depth int, depthLimited bool) {
	res := &c.results[vs.idx]
	res.Depth = depth
	res.DepthLimited = depthLimited
	res.NumContexts = len(vs.byHash)
	best := bestContext(vs.contexts)
	if best == nil {
		vs.reads = nil
		return
	}
	ib := best.ctx.IndexedBases()
	res.Context = ib.String()
	res.ContextSupport = best.support
	m := readcontext.NewMatcher(best.ctx, c.opts.Context)
	nmSum, nmCount := 0, 0
	for _, o := range vs.reads {
		match := m.DetermineReadMatch(o.read, o.readIndex)
		switch match {
		case readcontext.MatchFull:
			res.Full++
		case readcontext.MatchPartialCore:
			res.PartialCore++
		case readcontext.MatchCore:
			res.Core++
		case readcontext.MatchRef:
			res.Ref++
		default:
			res.None++
		}
		if match.SupportsAlt() && o.read.NumMutations >= 0 {
			nmSum += o.read.NumMutations
			nmCount++
		}
	}
	if nmCount > 0 {
		res.AltMeanNM = float64(nmSum) / float64(nmCount)
	}
	vs.reads = nil
}

// Finish finalizes every candidate and returns the results, in the order the
// variants were given to NewCounter.
func (c *Counter) Finish() []Result {
	c.window.EvictAll()
	if n := c.window.NumIgnored(); n > 0 {
		log.Printf("evidence: %s: warning: %d candidate touches ignored; reads may be unsorted", c.chrom, n)
	}
	log.Debug.Printf("evidence: %s: %d reads, %d skipped, %d candidates", c.chrom, c.nReads, c.nSkipped, len(c.variants))
	return c.results
}
