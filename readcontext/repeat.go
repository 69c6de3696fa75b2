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
	"fmt"
	"strings"

	"github.com/grailbio/somatic/reference"
	"github.com/grailbio/somatic/variant"
)

// RepeatInfo describes Count consecutive copies of the unit Bases starting at
// Index.
type RepeatInfo struct {
	Index int
	Bases string
	Count int
}

// Length returns the number of bases spanned by the repeat.
func (r RepeatInfo) Length() int {
	return len(r.Bases) * r.Count
}

// EndIndex returns the index of the last base of the repeat.
func (r RepeatInfo) EndIndex() int {
	return r.Index + r.Length() - 1
}

// Shift returns the repeat moved by offset.
func (r RepeatInfo) Shift(offset int) RepeatInfo {
	r.Index += offset
	return r
}

// String implements fmt.Stringer.
func (r RepeatInfo) String() string {
	return fmt.Sprintf("%dx%s@%d", r.Count, r.Bases, r.Index)
}

func (r RepeatInfo) contains(o RepeatInfo) bool {
	return r.Index <= o.Index && o.EndIndex() <= r.EndIndex()
}

// RepeatBoundaries is the result of a repeat search around a required range.
type RepeatBoundaries struct {
	// LowerIndex and UpperIndex enclose the required range and every repeat
	// that determines the boundary, plus one base of padding where
	// available.
	LowerIndex, UpperIndex int
	// MaxRepeat has the highest count among AllRepeats.
	MaxRepeat  RepeatInfo
	AllRepeats []RepeatInfo
}

// FindMultiBaseRepeat checks for a repeat of the unitLength bases at index,
// extending upward.  It requires at least minCount copies.
func FindMultiBaseRepeat(bases []byte, index, unitLength, minCount int) (RepeatInfo, bool) {
	if unitLength < 1 || index < 0 || index+unitLength > len(bases) {
		return RepeatInfo{}, false
	}
	unit := bases[index : index+unitLength]
	count := 1
	for next := index + unitLength; next+unitLength <= len(bases); next += unitLength {
		if !bytes.Equal(bases[next:next+unitLength], unit) {
			break
		}
		count++
	}
	if count < minCount {
		return RepeatInfo{}, false
	}
	return RepeatInfo{Index: index, Bases: string(unit), Count: count}, true
}

// ExtendRepeatLower extends repeat toward index 0 while whole units keep
// matching.
func ExtendRepeatLower(repeat RepeatInfo, bases []byte) RepeatInfo {
	unitLength := len(repeat.Bases)
	for repeat.Index-unitLength >= 0 && string(bases[repeat.Index-unitLength:repeat.Index]) == repeat.Bases {
		repeat.Index -= unitLength
		repeat.Count++
	}
	return repeat
}

// isReducible returns true if unit is itself a repeat of a shorter unit, e.g.
// "TT" or "ACAC".
func isReducible(unit string) bool {
	for sub := 1; sub < len(unit); sub++ {
		if len(unit)%sub == 0 && strings.Repeat(unit[:sub], len(unit)/sub) == unit {
			return true
		}
	}
	return false
}

// FindRepeatBoundaries searches for repeats overlapping bases[requiredStart,
// requiredEnd].  The search starts maxUnitLength*minCount bases before
// requiredStart so that a repeat ending inside the range is seen from its
// start.  ok is false when no repeat is found.
func FindRepeatBoundaries(bases []byte, requiredStart, requiredEnd, maxUnitLength, minCount int) (RepeatBoundaries, bool) {
	searchStart := requiredStart - maxUnitLength*minCount
	if searchStart < 0 {
		searchStart = 0
	}
	var all []RepeatInfo
	for index := searchStart; index <= requiredEnd && index < len(bases); index++ {
		for unitLength := 1; unitLength <= maxUnitLength; unitLength++ {
			repeat, ok := FindMultiBaseRepeat(bases, index, unitLength, minCount)
			if !ok || isReducible(repeat.Bases) {
				continue
			}
			repeat = ExtendRepeatLower(repeat, bases)
			if repeat.EndIndex() < requiredStart || repeat.Index > requiredEnd {
				continue
			}
			seen := false
			for _, other := range all {
				if len(other.Bases) == unitLength && other.contains(repeat) {
					seen = true
					break
				}
			}
			if !seen {
				all = append(all, repeat)
			}
		}
	}
	if len(all) == 0 {
		return RepeatBoundaries{}, false
	}

	best := 0
	for i, r := range all {
		if r.Count > all[best].Count || (r.Count == all[best].Count && r.Length() > all[best].Length()) {
			best = i
		}
	}
	// A second repeat only matters if it reaches further toward requiredEnd
	// than the best one does.
	upperEnd := all[best].EndIndex()
	for _, r := range all {
		if r.EndIndex() > upperEnd {
			upperEnd = r.EndIndex()
		}
	}

	lower := all[best].Index - 1
	if lower > requiredStart {
		lower = requiredStart
	}
	if lower < 0 {
		lower = 0
	}
	upper := upperEnd + 1
	if upper < requiredEnd {
		upper = requiredEnd
	}
	if upper > len(bases)-1 {
		upper = len(bases) - 1
	}
	return RepeatBoundaries{
		LowerIndex: lower,
		UpperIndex: upper,
		MaxRepeat:  all[best],
		AllRepeats: all,
	}, true
}

// FindRefRepeat returns the longest repeat in the reference touching the
// bases replaced by v.
func FindRefRepeat(ref *reference.Window, v variant.Simple, maxUnitLength, minCount int) (RepeatInfo, bool) {
	if !ref.Contains(v.Position) {
		return RepeatInfo{}, false
	}
	start := ref.Index(v.Position)
	end := start + len(v.Ref)
	if end > ref.Len()-1 {
		end = ref.Len() - 1
	}
	rb, ok := FindRepeatBoundaries(ref.Bases, start, end, maxUnitLength, minCount)
	if !ok {
		return RepeatInfo{}, false
	}
	return rb.MaxRepeat, true
}
