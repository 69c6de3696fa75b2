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
	"bytes"
	"strconv"
	"testing"

	"github.com/grailbio/hts/sam"
	"github.com/grailbio/somatic/reference"
	"github.com/grailbio/testutil/assert"
)

// testRef contains no repeat of a 1-5 base unit with 3 or more copies.
const testRef = "GCTAAGACAATTACATAACATACACGTCAGCACGAACTTGTTGGCCAGTGTGAATCGCTTAAGGTTAAGTAAGTGTGATGCATACGCCTTACTTGCTGTGTCCACCATCGGACTGGCATT"

// testRefT6 is testRef with "ATTTTTTG" inserted after position 55, so that
// position 56 is an A followed by six Ts.
var testRefT6 = testRef[:55] + "ATTTTTTG" + testRef[55:]

const highQual = 37

func newTestWindow(t *testing.T, bases string) *reference.Window {
	w, err := reference.NewWindow("chr1", 1, []byte(bases))
	assert.NoError(t, err)
	return w
}

func parseCigar(t *testing.T, s string) sam.Cigar {
	c, err := sam.ParseCigar([]byte(s))
	assert.NoError(t, err)
	return c
}

func newTestRead(t *testing.T, name string, pos int, cigar, bases string) *Read {
	return &Read{
		Name:         name,
		Pos:          pos,
		Cigar:        parseCigar(t, cigar),
		Bases:        []byte(bases),
		Quals:        bytes.Repeat([]byte{highQual}, len(bases)),
		NumMutations: -1,
	}
}

// refRead returns an unmutated read covering [start, end] of ref.
func refRead(t *testing.T, ref string, start, end int) *Read {
	return newTestRead(t, "ref", start, strconv.Itoa(end-start+1)+"M", ref[start-1:end])
}

// snvRead returns a read covering [start, end] of ref with alt at pos.
func snvRead(t *testing.T, ref string, start, end, pos int, alt byte) *Read {
	r := refRead(t, ref, start, end)
	r.Name = "alt"
	r.Bases[pos-start] = alt
	return r
}

// withBase returns a copy of r with base i set to b at quality q.
func withBase(r *Read, i int, b, q byte) *Read {
	c := *r
	c.Bases = append([]byte(nil), r.Bases...)
	c.Quals = append([]byte(nil), r.Quals...)
	c.Bases[i] = b
	c.Quals[i] = q
	return &c
}

// truncated returns a copy of r keeping only the first n bases, with a
// simple match cigar.
func truncated(r *Read, n int) *Read {
	c := *r
	c.Bases = r.Bases[:n]
	c.Quals = r.Quals[:n]
	c.Cigar = sam.Cigar{sam.NewCigarOp(sam.CigarMatch, n)}
	return &c
}
