// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package evidence

import (
	"context"
	"fmt"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/somatic/reference"
	"github.com/grailbio/somatic/variant"
)

// newCounters returns one Counter per chromosome carrying candidates, each
// with a reference window wide enough for every read that can overlap a
// candidate.
func newCounters(refs reference.Provider, candidates []variant.Simple, opts Opts) ([]string, []*Counter, error) {
	chroms, byChrom := variant.GroupByChrom(candidates)
	counters := make([]*Counter, len(chroms))
	for i, chrom := range chroms {
		vars := byChrom[chrom]
		start, end := vars[0].Position, vars[0].End()
		for _, v := range vars {
			if v.End() > end {
				end = v.End()
			}
		}
		ref, err := refs.Window(chrom, start-2*opts.MaxReadSpan, end+2*opts.MaxReadSpan)
		if err != nil {
			return nil, nil, errors.E(err, "evidence: reference window for", chrom)
		}
		counters[i] = NewCounter(chrom, vars, ref, opts)
	}
	return chroms, counters, nil
}

// Count counts evidence for candidates over recs, which are read until
// io.EOF.  recs must be coordinate-sorted.  Each chromosome is processed by
// its own goroutine while records are being read.
func Count(ctx context.Context, recs RecordReader, refs reference.Provider, candidates []variant.Simple, opts Opts) ([]Result, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	for _, v := range candidates {
		if err := v.Validate(); err != nil {
			return nil, err
		}
	}
	chroms, counters, err := newCounters(refs, candidates, opts)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]int, len(chroms))
	queues := make([]chan *sam.Record, len(chroms))
	for i, chrom := range chroms {
		byName[chrom] = i
		queues[i] = make(chan *sam.Record, opts.QueueLength)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var (
		perChrom  = make([][]Result, len(chroms))
		workerErr errors.Once
	)
	err = traverse.Each(len(chroms)+1, func(i int) error {
		if i < len(chroms) {
			if err := consume(counters[i], queues[i], cancel); err != nil {
				workerErr.Set(err)
				return err
			}
			perChrom[i] = counters[i].Finish()
			log.Printf("evidence: %s: %d candidates, %d reads", chroms[i], len(perChrom[i]), counters[i].nReads)
			return nil
		}
		defer func() {
			for _, q := range queues {
				close(q)
			}
		}()
		return dispatch(ctx, recs, byName, queues, &opts)
	})
	// A failed worker cancels the dispatcher; report the cause.
	if err := workerErr.Err(); err != nil {
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	var results []Result
	for _, r := range perChrom {
		results = append(results, r...)
	}
	return results, nil
}

// consume adds the records of queue to c.  After a failure it calls cancel and
// discards the rest of the queue, so the sender never blocks on it.
func consume(c *Counter, queue <-chan *sam.Record, cancel func()) (err error) {
	var name string
	defer func() {
		if e := recover(); e != nil {
			err = errors.E(fmt.Sprintf("evidence: %s: adding read %s: %v", c.chrom, name, e))
		}
		if err != nil {
			cancel()
			for range queue {
			}
		}
	}()
	for rec := range queue {
		name = rec.Name
		c.AddRecord(rec)
	}
	return nil
}

// RecordReader is implemented by *bam.Reader.
type RecordReader interface {
	Read() (*sam.Record, error)
}

// dispatch routes the records passing the filters to the queue of their
// chromosome.
func dispatch(ctx context.Context, recs RecordReader, byName map[string]int, queues []chan *sam.Record, opts *Opts) error {
	var (
		prevRef *sam.Reference
		prevPos = -1
		nRead   int
	)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := recs.Read()
		if err == io.EOF {
			log.Debug.Printf("evidence: read %d records", nRead)
			return nil
		}
		if err != nil {
			return errors.E(err, "evidence: reading records")
		}
		nRead++
		if !opts.keep(rec) {
			continue
		}
		if rec.Ref == prevRef && rec.Pos < prevPos {
			return errors.E(errors.Invalid, "evidence: records are not coordinate-sorted at", rec.Name)
		}
		prevRef, prevPos = rec.Ref, rec.Pos
		i, ok := byName[rec.Ref.Name()]
		if !ok {
			continue
		}
		select {
		case queues[i] <- rec:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Run counts evidence for candidates over the coordinate-sorted BAM at
// bamPath.
func Run(ctx context.Context, bamPath string, refs reference.Provider, candidates []variant.Simple, opts Opts) ([]Result, error) {
	in, err := file.Open(ctx, bamPath)
	if err != nil {
		return nil, errors.E(err, "evidence: open", bamPath)
	}
	var once errors.Once
	results, err := runFile(ctx, in, refs, candidates, opts)
	once.Set(err)
	once.Set(in.Close(ctx))
	if err := once.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func runFile(ctx context.Context, in file.File, refs reference.Provider, candidates []variant.Simple, opts Opts) ([]Result, error) {
	br, err := bam.NewReader(in.Reader(ctx), 1)
	if err != nil {
		return nil, errors.E(err, "evidence: reading BAM header of", in.Name())
	}
	var (
		once    errors.Once
		results []Result
	)
	if err = reference.CheckHeader(refs, br.Header().Refs()); err == nil {
		log.Printf("evidence: counting %d candidates in %s", len(candidates), in.Name())
		results, err = Count(ctx, br, refs, candidates, opts)
	}
	once.Set(err)
	once.Set(br.Close())
	return results, once.Err()
}
