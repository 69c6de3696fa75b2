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

package main

/*
bio-readcontext reports, for each candidate somatic variant, the number of
reads in a coordinate-sorted BAM whose read context supports the variant or
the reference.

The candidate list is a TSV with a "#CHROM POS REF ALT" header, optionally
compressed.  The output TSV is gzipped when its path ends in .gz.
*/

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/somatic/evidence"
	"github.com/grailbio/somatic/readcontext"
	"github.com/grailbio/somatic/reference"
	"github.com/grailbio/somatic/variant"
)

var (
	flankSize            = flag.Int("flank-size", readcontext.DefaultOpts.FlankSize, "Number of bases on each side of the core")
	maxRepeatUnitLength  = flag.Int("max-repeat-unit", readcontext.DefaultOpts.MaxRepeatUnitLength, "Longest repeat unit which widens the core")
	minRepeatCount       = flag.Int("min-repeat-count", readcontext.DefaultOpts.MinRepeatCount, "Minimum number of copies for a repeat to widen the core")
	matchingBaseQual     = flag.Int("matching-base-qual", int(readcontext.DefaultOpts.MatchingBaseQual), "Mismatches at or above this base quality are never excused")
	minContextBaseQual   = flag.Int("min-context-base-qual", int(readcontext.DefaultOpts.MinContextBaseQual), "Reads with a context base below this quality do not build contexts")
	minFlankFraction     = flag.Float64("min-flank-fraction", readcontext.DefaultOpts.MinFlankFraction, "Fraction of -flank-size that each flank of a built context must reach")
	technology           = flag.String("technology", readcontext.DefaultOpts.Technology.String(), "Sequencing technology; 'illumina' and 'ultima' supported")
	maxCandidateContexts = flag.Int("max-contexts", evidence.DefaultOpts.MaxCandidateContexts, "Maximum number of distinct contexts kept per variant")
	maxReadDepth         = flag.Int("max-read-depth", evidence.DefaultOpts.MaxReadDepth, "Maximum number of reads classified per variant; 0 = unlimited")
	maxReadSpan          = flag.Int("max-read-span", evidence.DefaultOpts.MaxReadSpan, "Upper bound on size of reference-genome region a read maps to, soft clips included")
	mapq                 = flag.Int("mapq", int(evidence.DefaultOpts.MinMapQ), "Reads with MAPQ below this level are skipped")
	flagExclude          = flag.Int("flag-exclude", int(evidence.DefaultOpts.FlagExclude), "Reads with a FLAG bit intersecting this value are skipped")
	recomputeNM          = flag.Bool("recompute-nm", evidence.DefaultOpts.RecomputeNM, "Recompute edit distances against the reference instead of using NM tags")
	outPath              = flag.String("out", "bio-readcontext.tsv", "Output path")
)

func bioReadContextUsage() {
	fmt.Printf("Usage: %s [OPTIONS] bampath fapath variantpath\n", os.Args[0])
	fmt.Printf("Other options:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = bioReadContextUsage
	shutdown := grail.Init()
	defer shutdown()

	positionalArgs := flag.Args()
	if len(positionalArgs) != 3 {
		log.Fatalf("Expected bampath, fapath and variantpath; please check flag syntax: '%s'", strings.Join(positionalArgs, " "))
	}
	ctx := vcontext.Background()

	tech, err := readcontext.ParseTechnology(*technology)
	if err != nil {
		log.Fatalf("%v", err)
	}
	opts := evidence.DefaultOpts
	opts.Context.FlankSize = *flankSize
	opts.Context.MaxRepeatUnitLength = *maxRepeatUnitLength
	opts.Context.MinRepeatCount = *minRepeatCount
	opts.Context.MatchingBaseQual = byte(*matchingBaseQual)
	opts.Context.MinContextBaseQual = byte(*minContextBaseQual)
	opts.Context.MinFlankFraction = *minFlankFraction
	opts.Context.Technology = tech
	opts.MaxCandidateContexts = *maxCandidateContexts
	opts.MaxReadDepth = *maxReadDepth
	opts.MaxReadSpan = *maxReadSpan
	opts.MinMapQ = byte(*mapq)
	opts.FlagExclude = sam.Flags(*flagExclude)
	opts.RecomputeNM = *recomputeNM

	refs, closeRefs, err := reference.Open(ctx, positionalArgs[1])
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer func() {
		if err := closeRefs(ctx); err != nil {
			log.Error.Printf("closing %s: %v", positionalArgs[1], err)
		}
	}()
	candidates, err := variant.LoadTSV(ctx, positionalArgs[2])
	if err != nil {
		log.Fatalf("%v", err)
	}
	log.Printf("loaded %d candidates from %s", len(candidates), positionalArgs[2])
	results, err := evidence.Run(ctx, positionalArgs[0], refs, candidates, opts)
	if err != nil {
		log.Panicf("%v", err)
	}
	if err := evidence.WriteFile(ctx, *outPath, results); err != nil {
		log.Panicf("%v", err)
	}
	log.Debug.Printf("exiting")
}
