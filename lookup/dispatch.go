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
package lookup

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/sync/multierror"
	"github.com/grailbio/base/traverse"
)

// DispatchOpts controls how Dispatch schedules lookups.
type DispatchOpts struct {
	// Parallelism is the maximum number of concurrent lookups; 0 =
	// runtime.NumCPU().  Lookups are usually I/O-bound, so a larger value is
	// often appropriate.
	Parallelism int
	// BatchSize is the number of queries handed to a worker at once for a
	// single source; 0 = 64.
	BatchSize int
}

// DefaultDispatchOpts are the default options for Dispatch.
var DefaultDispatchOpts = DispatchOpts{
	Parallelism: 0,
	BatchSize:   64,
}

// Failure describes a single (query, source) lookup which did not succeed.
type Failure struct {
	Query *Query
	// QueryIndex is the position of Query in the batch passed to Dispatch.
	QueryIndex int
	Source     string
	Err        error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s from %s: %v", f.Query.InterbaseCoordinates(), f.Source, f.Err)
}

// Result is the outcome of a Dispatch call.
type Result struct {
	// Queries is the batch passed to Dispatch, in the original order.  Each
	// query holds the results of every successful lookup made for it.
	Queries []*Query
	// Failures lists the failed or skipped (query, source) pairs, sorted by
	// query index and then by source order.
	Failures []Failure
	// Canceled is set if the context was cancelled before every lookup was
	// issued.  The skipped pairs are in Failures.
	Canceled bool
}

// Populated returns the queries for which every source succeeded.
func (r *Result) Populated() []*Query {
	failed := make(map[int]bool, len(r.Failures))
	for _, f := range r.Failures {
		failed[f.QueryIndex] = true
	}
	qs := make([]*Query, 0, len(r.Queries)-len(failed))
	for i, q := range r.Queries {
		if !failed[i] {
			qs = append(qs, q)
		}
	}
	return qs
}

// Err returns an error summarizing every failure, or nil if there were none.
func (r *Result) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := multierror.NewMultiError(len(r.Failures))
	for _, f := range r.Failures {
		errs.Add(f)
	}
	return errs.Err()
}

// unit is the dispatch granularity: one source against a contiguous slice of
// the query batch.
type unit struct {
	sourceIdx        int
	startIdx, endIdx int
}

// Dispatch looks up every query in every source exactly once and records each
// source's lines on the query via AddResult.  It returns once every lookup has
// either completed or failed.
//
// A failed lookup only affects its own (query, source) pair; it is reported in
// Result.Failures.  If ctx is cancelled, no new lookups are started, the pairs
// never looked up are reported as errors.Canceled failures and
// Result.Canceled is set; this is not treated as an error.  The returned error
// is only non-nil for invalid arguments.
func Dispatch(ctx context.Context, queries []*Query, sources []NamedSource, opts DispatchOpts) (*Result, error) {
	seen := make(map[string]bool, len(sources))
	for i, s := range sources {
		if s.Name == "" {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("lookup.Dispatch: source %d has no name", i))
		}
		if s.Source == nil {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("lookup.Dispatch: source %s is nil", s.Name))
		}
		if seen[s.Name] {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("lookup.Dispatch: duplicate source name %s", s.Name))
		}
		seen[s.Name] = true
	}
	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultDispatchOpts.BatchSize
	}

	var units []unit
	for si := range sources {
		for start := 0; start < len(queries); start += batchSize {
			end := start + batchSize
			if end > len(queries) {
				end = len(queries)
			}
			units = append(units, unit{sourceIdx: si, startIdx: start, endIdx: end})
		}
	}

	var (
		mu       sync.Mutex
		failures []Failure
		canceled bool
	)
	addFailure := func(f Failure) {
		mu.Lock()
		failures = append(failures, f)
		mu.Unlock()
	}

	log.Printf("lookup.Dispatch: %d queries x %d sources in %d units (parallelism %d)",
		len(queries), len(sources), len(units), parallelism)
	t0 := time.Now()
	err := traverse.Limit(parallelism).Each(len(units), func(unitIdx int) error {
		u := units[unitIdx]
		src := sources[u.sourceIdx]
		for qi := u.startIdx; qi < u.endIdx; qi++ {
			q := queries[qi]
			if cerr := ctx.Err(); cerr != nil {
				mu.Lock()
				canceled = true
				mu.Unlock()
				addFailure(Failure{Query: q, QueryIndex: qi, Source: src.Name,
					Err: errors.E(errors.Canceled, cerr, "lookup not issued")})
				continue
			}
			lines, lerr := src.Source.Lookup(ctx, q.Interval())
			if lerr != nil {
				log.Debug.Printf("lookup.Dispatch: %s from %s failed: %v", q.InterbaseCoordinates(), src.Name, lerr)
				addFailure(Failure{Query: q, QueryIndex: qi, Source: src.Name, Err: lerr})
				continue
			}
			q.AddResult(src.Name, lines)
		}
		log.Debug.Printf("lookup.Dispatch: %s done for %s", src.Name, JoinedInterbaseCoordinates(queries[u.startIdx:u.endIdx]))
		return nil
	})
	if err != nil {
		return nil, err
	}

	sourceOrder := make(map[string]int, len(sources))
	for i, s := range sources {
		sourceOrder[s.Name] = i
	}
	sort.Slice(failures, func(i, j int) bool {
		if failures[i].QueryIndex != failures[j].QueryIndex {
			return failures[i].QueryIndex < failures[j].QueryIndex
		}
		return sourceOrder[failures[i].Source] < sourceOrder[failures[j].Source]
	})
	log.Printf("lookup.Dispatch: %d lookups, %d failed, canceled=%v, in %v",
		len(queries)*len(sources), len(failures), canceled, time.Since(t0))
	return &Result{Queries: queries, Failures: failures, Canceled: canceled}, nil
}
