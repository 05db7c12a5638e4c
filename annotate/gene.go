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
package annotate

import (
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/regionannot/interval"
)

// Mode selects which part of a gene model a region must overlap.
type Mode int

const (
	// ExonMode matches regions against individual exons.
	ExonMode Mode = iota
	// GeneMode matches regions against the whole transcript span, introns
	// included.
	GeneMode
)

// ParseMode converts a command-line mode name ("exon" or "gene") to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "exon":
		return ExonMode, nil
	case "gene":
		return GeneMode, nil
	}
	return ExonMode, errors.E(errors.Invalid, fmt.Sprintf("annotate.ParseMode: unknown mode %q; 'exon' and 'gene' supported", s))
}

func (m Mode) String() string {
	switch m {
	case ExonMode:
		return "exon"
	case GeneMode:
		return "gene"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Gene is a single gene or transcript model.
type Gene struct {
	// Name is the display identifier used in annotation labels, e.g. "KRAS".
	Name  string
	Chrom string
	// TxStart and TxEnd bound the transcript, 0-based half-open.
	TxStart, TxEnd interval.PosType
	Exons          []interval.Interval
}

// Intervals returns the intervals of g that are indexed in mode m: every exon
// in ExonMode, or the transcript span in GeneMode.  Exons on a chromosome other
// than g.Chrom, and invalid transcript spans, are errors.
func (g *Gene) Intervals(m Mode) ([]interval.Interval, error) {
	switch m {
	case ExonMode:
		for _, e := range g.Exons {
			if e.Chrom() != g.Chrom {
				return nil, errors.E(errors.Invalid, fmt.Sprintf("annotate: exon %s of gene %s is not on %s", e, g.Name, g.Chrom))
			}
		}
		return g.Exons, nil
	case GeneMode:
		iv, err := interval.New(g.Chrom, g.TxStart, g.TxEnd)
		if err != nil {
			return nil, errors.E(err, fmt.Sprintf("annotate: gene %s", g.Name))
		}
		return []interval.Interval{iv}, nil
	}
	return nil, errors.E(errors.Invalid, fmt.Sprintf("annotate: unsupported mode %v", m))
}

// Region is a single region to annotate.
type Region struct {
	// Name is the display name written in the first output column.
	Name     string
	Interval interval.Interval
}
