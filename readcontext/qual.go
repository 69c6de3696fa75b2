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

// QualityModel gives the effective quality of a read base during matching.
type QualityModel interface {
	// BaseQual returns the quality of bases[i].  quals may be nil, meaning
	// every base is high quality.
	BaseQual(bases, quals []byte, i int) byte
}

// RawQualModel uses reported base qualities unchanged.
type RawQualModel struct{}

// BaseQual implements QualityModel.
func (RawQualModel) BaseQual(bases, quals []byte, i int) byte {
	if quals == nil {
		return 0xff
	}
	return quals[i]
}

// HomopolymerQualModel assigns every base of a homopolymer run the lowest
// quality in the run.  Flow-based platforms report length errors spread over
// a run, so a single low base puts the whole run in doubt.
type HomopolymerQualModel struct{}

// BaseQual implements QualityModel.
func (HomopolymerQualModel) BaseQual(bases, quals []byte, i int) byte {
	if quals == nil {
		return 0xff
	}
	q := quals[i]
	for j := i - 1; j >= 0 && bases[j] == bases[i]; j-- {
		if quals[j] < q {
			q = quals[j]
		}
	}
	for j := i + 1; j < len(bases) && bases[j] == bases[i]; j++ {
		if quals[j] < q {
			q = quals[j]
		}
	}
	return q
}

// QualityModelFor returns the quality model for reads from t.
func QualityModelFor(t Technology) QualityModel {
	if t == Ultima {
		return HomopolymerQualModel{}
	}
	return RawQualModel{}
}
