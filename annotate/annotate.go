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
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/biogo/store/llrb"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/regionannot/interval"
)

// NoMatch is the label of a region which overlaps no gene, or lies on a
// chromosome without gene data.
const NoMatch = "."

// Opts controls annotation.
type Opts struct {
	// Mode selects exon-level or whole-gene matching.
	Mode Mode
	// Padding is the number of bases added to both sides of each region before
	// searching.  It does not change the region as reported.
	Padding int
	// Parallelism is the maximum number of chromosomes processed at once; 0 =
	// runtime.NumCPU().
	Parallelism int
}

// DefaultOpts are the default annotation options.
var DefaultOpts = Opts{
	Mode:        ExonMode,
	Padding:     0,
	Parallelism: 0,
}

// Row is one line of annotation output.
type Row struct {
	Name  string
	Label string
}

// Annotator labels regions with the names of the genes they overlap.  It keeps
// one interval.Index per chromosome, built the first time the chromosome is
// queried and reused afterwards.  Thread-safe.
type Annotator struct {
	opts  Opts
	genes map[string][]*Gene

	mu      sync.Mutex
	indexes map[string]*interval.Index
	// missing records chromosomes already reported as absent from the gene
	// data, so each is logged once.
	missing map[string]bool
}

// NewAnnotator creates an Annotator over genes, which maps chromosome name to
// the gene models on that chromosome.  Every gene must be filed under its own
// Chrom.  genes must not be modified afterwards.
func NewAnnotator(genes map[string][]*Gene, opts Opts) (*Annotator, error) {
	if opts.Padding < 0 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("annotate.NewAnnotator: negative padding %d", opts.Padding))
	}
	if opts.Padding >= interval.PosTypeMax {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("annotate.NewAnnotator: padding %d out of range", opts.Padding))
	}
	if opts.Mode != ExonMode && opts.Mode != GeneMode {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("annotate.NewAnnotator: unsupported mode %v", opts.Mode))
	}
	for chrom, gs := range genes {
		for _, g := range gs {
			if g == nil {
				return nil, errors.E(errors.Invalid, fmt.Sprintf("annotate.NewAnnotator: nil gene under %s", chrom))
			}
			if g.Chrom != chrom {
				return nil, errors.E(errors.Invalid, fmt.Sprintf("annotate.NewAnnotator: gene %s on %s is filed under %s", g.Name, g.Chrom, chrom))
			}
		}
	}
	return &Annotator{
		opts:    opts,
		genes:   genes,
		indexes: map[string]*interval.Index{},
		missing: map[string]bool{},
	}, nil
}

// index returns the index for chrom, building it if necessary.  It returns nil
// if there is no gene data for chrom, including an empty gene list.
func (a *Annotator) index(chrom string) (*interval.Index, error) {
	a.mu.Lock()
	idx, ok := a.indexes[chrom]
	a.mu.Unlock()
	if ok {
		return idx, nil
	}
	genes := a.genes[chrom]
	if len(genes) == 0 {
		return nil, nil
	}
	var entries []interval.Entry
	for _, g := range genes {
		ivs, err := g.Intervals(a.opts.Mode)
		if err != nil {
			return nil, err
		}
		for _, iv := range ivs {
			entries = append(entries, interval.Entry{Interval: iv, Payload: g.Name})
		}
	}
	t0 := time.Now()
	built, err := interval.Build(entries)
	if err != nil {
		return nil, errors.E(err, fmt.Sprintf("annotate: building %s index", chrom))
	}
	log.Debug.Printf("annotate: %s index built, %d key(s) for %d gene(s) in %v", chrom, built.Len(), len(genes), time.Since(t0))
	return a.store(chrom, built), nil
}

// store caches idx for chrom unless another goroutine got there first, and
// returns the cached index.
func (a *Annotator) store(chrom string, idx *interval.Index) *interval.Index {
	a.mu.Lock()
	defer a.mu.Unlock()
	if prev, ok := a.indexes[chrom]; ok {
		return prev
	}
	a.indexes[chrom] = idx
	return idx
}

func (a *Annotator) reportMissing(chrom string, nRegion int) {
	a.mu.Lock()
	reported := a.missing[chrom]
	a.missing[chrom] = true
	a.mu.Unlock()
	if !reported {
		log.Printf("annotate: no gene data for chromosome %s; labeling its %d region(s) '%s'", chrom, nRegion, NoMatch)
	}
}

// Label returns the sorted, comma-separated, deduplicated names of the genes
// in idx overlapping q, or NoMatch.
func Label(idx *interval.Index, q interval.Interval) string {
	names := map[string]struct{}{}
	for it := idx.Overlaps(q); it.Scan(); {
		for _, p := range it.Payloads() {
			names[p.(string)] = struct{}{}
		}
	}
	if len(names) == 0 {
		return NoMatch
	}
	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

// regionKey orders the regions of one chromosome by (start, stop, input
// order) for use in llrb.
type regionKey struct {
	start, stop interval.PosType
	idx         int
}

// Compare compares two regionKey objects for use in llrb.
func (k regionKey) Compare(c2 llrb.Comparable) int {
	k2 := c2.(regionKey)
	if diff := int(k.start) - int(k2.start); diff != 0 {
		return diff
	}
	if diff := int(k.stop) - int(k2.stop); diff != 0 {
		return diff
	}
	return k.idx - k2.idx
}

type chromJob struct {
	chrom   string
	regions llrb.Tree
}

// Annotate labels each region with the genes it overlaps.  The returned rows
// are in the same order as regions.  Chromosomes are processed in parallel, in
// the order they first appear; within a chromosome, regions are visited in
// coordinate order.
//
// A region on a chromosome without gene data is labeled NoMatch.  Any error
// building a chromosome's index (e.g. an invalid gene interval) aborts the
// whole call, and no rows are returned.
func (a *Annotator) Annotate(ctx context.Context, regions []Region) ([]Row, error) {
	var jobs []*chromJob
	jobByChrom := map[string]*chromJob{}
	for i, r := range regions {
		chrom := r.Interval.Chrom()
		job, ok := jobByChrom[chrom]
		if !ok {
			job = &chromJob{chrom: chrom}
			jobByChrom[chrom] = job
			jobs = append(jobs, job)
		}
		job.regions.Insert(regionKey{r.Interval.Start(), r.Interval.Stop(), i})
	}
	parallelism := a.opts.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}
	padding := interval.PosType(a.opts.Padding)
	labels := make([]string, len(regions))

	log.Printf("annotate: %d region(s) on %d chromosome(s), mode %v, padding %d", len(regions), len(jobs), a.opts.Mode, a.opts.Padding)
	err := traverse.Limit(parallelism).Each(len(jobs), func(jobIdx int) error {
		if err := ctx.Err(); err != nil {
			return errors.E(errors.Canceled, err)
		}
		job := jobs[jobIdx]
		idx, err := a.index(job.chrom)
		if err != nil {
			return err
		}
		if idx == nil {
			a.reportMissing(job.chrom, job.regions.Len())
			job.regions.Do(func(c llrb.Comparable) bool {
				labels[c.(regionKey).idx] = NoMatch
				return false
			})
			return nil
		}
		job.regions.Do(func(c llrb.Comparable) bool {
			i := c.(regionKey).idx
			labels[i] = Label(idx, regions[i].Interval.Pad(padding))
			return false
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	rows := make([]Row, len(regions))
	for i, r := range regions {
		rows[i] = Row{Name: r.Name, Label: labels[i]}
	}
	return rows, nil
}
