// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package evidence

import (
	"context"
	"io"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/somatic/reference"
	"github.com/grailbio/somatic/variant"
	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/require"
)

func reverse(s string) string {
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}

var testRef2 = reverse(testRef)

func newRecord(t *testing.T, name string, ref *sam.Reference, pos int, bases string, flags sam.Flags, mapq byte) *sam.Record {
	co := []sam.CigarOp{sam.NewCigarOp(sam.CigarMatch, len(bases))}
	qual := make([]byte, len(bases))
	for i := range qual {
		qual[i] = highQual
	}
	rec, err := sam.NewRecord(name, ref, nil, pos-1, -1, 0, mapq, co, []byte(bases), qual, nil)
	require.NoError(t, err)
	rec.Flags = flags
	return rec
}

func withBase(s string, i int, b byte) string {
	bs := []byte(s)
	bs[i] = b
	return string(bs)
}

// writeTestData writes a reference FASTA and a sorted BAM under dir.
func writeTestData(ctx context.Context, t *testing.T, dir string) (faPath, bamPath string) {
	chr1, err := sam.NewReference("chr1", "", "", len(testRef), nil, nil)
	require.NoError(t, err)
	chr2, err := sam.NewReference("chr2", "", "", len(testRef2), nil, nil)
	require.NoError(t, err)
	header, err := sam.NewHeader(nil, []*sam.Reference{chr1, chr2})
	require.NoError(t, err)

	alt1 := withBase(testRef[20:100], 39, 'C')
	alt2 := withBase(testRef2[20:100], 39, 'C')
	recs := []*sam.Record{
		newRecord(t, "alt1", chr1, 21, alt1, 0, 60),
		newRecord(t, "alt2", chr1, 21, alt1, 0, 60),
		newRecord(t, "dup", chr1, 21, alt1, sam.Duplicate, 60),
		newRecord(t, "lowmapq", chr1, 21, alt1, 0, 0),
		newRecord(t, "ref1", chr1, 22, testRef[21:101], 0, 60),
		newRecord(t, "alt3", chr2, 21, alt2, 0, 60),
	}

	bamPath = filepath.Join(dir, "test.bam")
	out, err := file.Create(ctx, bamPath)
	require.NoError(t, err)
	w, err := bam.NewWriter(out.Writer(ctx), header, 1)
	require.NoError(t, err)
	for _, rec := range recs {
		require.NoError(t, w.Write(rec))
	}
	require.NoError(t, w.Close())
	require.NoError(t, out.Close(ctx))

	faPath = filepath.Join(dir, "test.fa")
	fa := ">chr1\n" + testRef[:60] + "\n" + testRef[60:] + "\n>chr2\n" + testRef2 + "\n"
	require.NoError(t, ioutil.WriteFile(faPath, []byte(fa), 0644))
	return faPath, bamPath
}

func TestRun(t *testing.T) {
	ctx := vcontext.Background()
	dir, cleanup := testutil.TempDir(t, "", "evidence")
	defer testutil.NoCleanupOnError(t, cleanup, "tmpdir:", dir)
	faPath, bamPath := writeTestData(ctx, t, dir)

	refs, err := reference.Load(ctx, faPath)
	require.NoError(t, err)
	// Candidates needn't be sorted.
	candidates := []variant.Simple{
		variant.New("chr2", 60, testRef2[59:60], "C"),
		variant.New("chr1", 60, "T", "C"),
		variant.New("chr3", 10, "A", "C"),
	}
	_, err = Run(ctx, bamPath, refs, candidates, DefaultOpts)
	require.Error(t, err, "chr3 is not in the reference")

	results, err := Run(ctx, bamPath, refs, candidates[:2], DefaultOpts)
	require.NoError(t, err)
	require.Len(t, results, 2)

	r := results[0]
	require.Equal(t, candidates[0], r.Variant)
	require.Equal(t, 1, r.Full)
	require.Equal(t, 1, r.Depth)

	r = results[1]
	require.Equal(t, candidates[1], r.Variant)
	require.Equal(t, snvContext, r.Context)
	require.Equal(t, 2, r.Full)
	require.Equal(t, 1, r.Ref)
	require.Equal(t, 3, r.Depth)
	// Recomputed from the reference, since the records have no NM tag.
	require.Equal(t, 1.0, r.AltMeanNM)
}

func TestRunMissingBAM(t *testing.T) {
	ctx := vcontext.Background()
	refs, err := reference.NewFasta(strings.NewReader(">chr1\n" + testRef + "\n"))
	require.NoError(t, err)
	_, err = Run(ctx, "/nonexistent/test.bam", refs, nil, DefaultOpts)
	require.Error(t, err)
}

type sliceReader []*sam.Record

func (r *sliceReader) Read() (*sam.Record, error) {
	if len(*r) == 0 {
		return nil, io.EOF
	}
	rec := (*r)[0]
	*r = (*r)[1:]
	return rec, nil
}

func TestCountRejectsUnsortedRecords(t *testing.T) {
	chr1, err := sam.NewReference("chr1", "", "", len(testRef), nil, nil)
	require.NoError(t, err)
	_, err = sam.NewHeader(nil, []*sam.Reference{chr1})
	require.NoError(t, err)
	refs, err := reference.NewFasta(strings.NewReader(">chr1\n" + testRef + "\n"))
	require.NoError(t, err)

	recs := sliceReader{
		newRecord(t, "b", chr1, 30, testRef[29:60], 0, 60),
		newRecord(t, "a", chr1, 21, testRef[20:60], 0, 60),
	}
	_, err = Count(vcontext.Background(), &recs, refs, []variant.Simple{variant.New("chr1", 40, testRef[39:40], "A")}, DefaultOpts)
	require.Error(t, err)
	require.Contains(t, err.Error(), "not coordinate-sorted")
}

func TestCountSkipsRecordsWithoutSequence(t *testing.T) {
	chr1, err := sam.NewReference("chr1", "", "", len(testRef), nil, nil)
	require.NoError(t, err)
	_, err = sam.NewHeader(nil, []*sam.Reference{chr1})
	require.NoError(t, err)
	refs, err := reference.NewFasta(strings.NewReader(">chr1\n" + testRef + "\n"))
	require.NoError(t, err)

	// SEQ "*".
	noSeq := newRecord(t, "noseq", chr1, 21, testRef[20:100], 0, 60)
	noSeq.Seq, noSeq.Qual = sam.Seq{}, nil
	alt := withBase(testRef[20:100], 39, 'C')
	recs := sliceReader{
		noSeq,
		newRecord(t, "alt1", chr1, 21, alt, 0, 60),
		newRecord(t, "alt2", chr1, 21, alt, 0, 60),
		newRecord(t, "ref1", chr1, 22, testRef[21:101], 0, 60),
	}
	opts := DefaultOpts
	opts.RecomputeNM = true
	opts.QueueLength = 0
	results, err := Count(vcontext.Background(), &recs, refs, []variant.Simple{variant.New("chr1", 60, "T", "C")}, opts)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, 2, results[0].Full)
	require.Equal(t, 1, results[0].Ref)
	require.Equal(t, 3, results[0].Depth)
	require.Equal(t, 1.0, results[0].AltMeanNM)
}

func TestConsumeDiscardsQueueAfterFailure(t *testing.T) {
	c := NewCounter("chr1", nil, newTestWindow(t, testRef), testOpts())
	queue := make(chan *sam.Record, 3)
	for i := 0; i < cap(queue); i++ {
		queue <- nil
	}
	close(queue)
	cancelled := false
	err := consume(c, queue, func() { cancelled = true })
	require.Error(t, err)
	require.Contains(t, err.Error(), "evidence: chr1")
	require.True(t, cancelled)
	require.Len(t, queue, 0)
}

func TestCountValidatesInput(t *testing.T) {
	refs, err := reference.NewFasta(strings.NewReader(">chr1\n" + testRef + "\n"))
	require.NoError(t, err)
	var recs sliceReader

	opts := DefaultOpts
	opts.MaxCandidateContexts = 0
	_, err = Count(vcontext.Background(), &recs, refs, nil, opts)
	require.Error(t, err)

	_, err = Count(vcontext.Background(), &recs, refs, []variant.Simple{variant.New("chr1", 40, "A", "A")}, DefaultOpts)
	require.Error(t, err)

	results, err := Count(vcontext.Background(), &recs, refs, []variant.Simple{variant.New("chr1", 40, testRef[39:40], "A")}, DefaultOpts)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, 0, results[0].Depth)
}
