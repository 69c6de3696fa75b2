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
	"testing"

	"github.com/grailbio/hts/sam"
	"github.com/grailbio/somatic/variant"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func TestClips(t *testing.T) {
	c := parseCigar(t, "2H3S10M4S1H")
	expect.EQ(t, leadingClip(c), 3)
	expect.EQ(t, trailingClip(c), 4)
	c = parseCigar(t, "10M")
	expect.EQ(t, leadingClip(c), 0)
	expect.EQ(t, trailingClip(c), 0)
}

func TestPositionAt(t *testing.T) {
	cigar := parseCigar(t, "3S5M2I4M3D5M")
	tests := []struct {
		idx     int
		roundUp bool
		want    int
	}{
		{0, false, 97},
		{2, true, 99},
		{3, false, 100},
		{7, false, 104},
		{8, true, 105},
		{8, false, 104},
		{9, false, 104},
		{10, false, 105},
		{13, false, 108},
		{14, false, 112},
		{18, true, 116},
	}
	for _, tt := range tests {
		got, err := positionAt(100, cigar, tt.idx, tt.roundUp)
		assert.NoError(t, err)
		expect.EQ(t, got, tt.want, "%+v", tt)
	}
	_, err := positionAt(100, cigar, 19, false)
	assert.NotNil(t, err)
	expect.HasSubstr(t, err.Error(), "past end of alignment")
}

func TestTrimCigar(t *testing.T) {
	cigar := parseCigar(t, "3S5M2I4M3D5M")
	tests := []struct {
		start, end int
		want       string
	}{
		{0, 18, "3S5M2I4M3D5M"},
		{5, 15, "3M2I4M3D2M"},
		{0, 4, "3S2M"},
		{10, 13, "4M"},
		{14, 18, "5M"},
		{8, 9, "2I"},
	}
	for _, tt := range tests {
		expect.EQ(t, trimCigar(cigar, tt.start, tt.end).String(), tt.want, "%+v", tt)
	}
}

func TestSkipsBetween(t *testing.T) {
	cigar := parseCigar(t, "10M100N10M")
	expect.True(t, skipsBetween(cigar, 5, 15))
	expect.False(t, skipsBetween(cigar, 0, 9))
	expect.False(t, skipsBetween(cigar, 10, 15))
	expect.False(t, skipsBetween(parseCigar(t, "10M2D10M"), 5, 15))
}

func TestAlignReadSpan(t *testing.T) {
	cigar := parseCigar(t, "5M2I5M")
	span, err := alignReadSpan(100, cigar, 0, 3, 8, 11)
	assert.NoError(t, err)
	expect.EQ(t, span, alignedSpan{
		alignmentStart:    100,
		alignmentEnd:      109,
		corePositionStart: 103,
		corePositionEnd:   106,
	})

	// A core consisting only of inserted bases has no reference footprint.
	_, err = alignReadSpan(100, cigar, 5, 5, 6, 6)
	assert.NotNil(t, err)
	expect.HasSubstr(t, err.Error(), "inverted span")
}

func TestConvertSoftClipInsert(t *testing.T) {
	v := variant.New("chr1", 70, "T", "TGAC")
	tests := []struct {
		name     string
		pos      int
		cigar    string
		bases    string
		varIndex int
		ok       bool
		want     string
		wantPos  int
	}{
		{"leading", 71, "5S10M", "ATGACCCCCCCCCCC", 1, true, "2M3I10M", 69},
		{"trailing", 61, "10M5S", "CCCCCCCCCTGACAA", 9, true, "10M3I2M", 61},
		{"leading wrong anchor", 71, "5S10M", "ATGACCCCCCCCCCC", 0, false, "", 0},
		{"leading wrong bases", 71, "5S10M", "ATGTCCCCCCCCCCC", 1, false, "", 0},
		{"leading wrong position", 72, "5S10M", "ATGACCCCCCCCCCC", 1, false, "", 0},
		{"clip too short", 71, "3S10M", "GACCCCCCCCCCC", -1, false, "", 0},
		{"trailing wrong end", 62, "10M5S", "CCCCCCCCCTGACAA", 9, false, "", 0},
	}
	for _, tt := range tests {
		read := newTestRead(t, tt.name, tt.pos, tt.cigar, tt.bases)
		cigar, pos, ok := convertSoftClipInsert(read, v, tt.varIndex)
		expect.EQ(t, ok, tt.ok, tt.name)
		if !tt.ok {
			continue
		}
		expect.EQ(t, cigar.String(), tt.want, tt.name)
		expect.EQ(t, pos, tt.wantPos, tt.name)
		_, readLen := cigar.Lengths()
		expect.EQ(t, readLen, len(tt.bases), tt.name)
	}

	read := newTestRead(t, "snv", 71, "5S10M", "ATGACCCCCCCCCCC")
	_, _, ok := convertSoftClipInsert(read, variant.New("chr1", 70, "T", "G"), 1)
	expect.False(t, ok)
}

func TestAlignedPositions(t *testing.T) {
	got := alignedPositions(parseCigar(t, "2S2M1I1D2M"), 10, 7)
	expect.EQ(t, got, []int{unalignedClip, unalignedClip, 10, 11, unalignedInsert, 13, 14})
}

func TestCigarOpsHelper(t *testing.T) {
	// parseCigar is shared by the tests; make sure it produces real ops.
	c := parseCigar(t, "4M1I")
	expect.EQ(t, c, sam.Cigar{sam.NewCigarOp(sam.CigarMatch, 4), sam.NewCigarOp(sam.CigarInsertion, 1)})
}
