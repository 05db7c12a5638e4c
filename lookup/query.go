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
	"sort"
	"strings"
	"sync"

	"github.com/grailbio/regionannot/interval"
)

// Query is a single genomic interval whose overlap results from several
// independent sources are accumulated in one place.  AddResult is thread-safe;
// everything else only reads the query interval or takes the same lock.
type Query struct {
	iv interval.Interval

	mu      sync.Mutex
	results map[string][]string // source name -> raw result lines
}

// NewQuery creates a query for the interbase interval [start, stop) on chrom.
// It fails with an interval.IsInvalid error if stop <= start.
func NewQuery(chrom string, start, stop interval.PosType) (*Query, error) {
	iv, err := interval.New(chrom, start, stop)
	if err != nil {
		return nil, err
	}
	return NewQueryFromInterval(iv), nil
}

// NewQueryFromInterval creates a query for iv.
func NewQueryFromInterval(iv interval.Interval) *Query {
	return &Query{iv: iv, results: map[string][]string{}}
}

// Interval returns the query interval.
func (q *Query) Interval() interval.Interval { return q.iv }

// AddResult records lines as the result set for source.  An earlier result set
// for the same source is replaced, not appended to.
func (q *Query) AddResult(source string, lines []string) {
	q.mu.Lock()
	q.results[source] = lines
	q.mu.Unlock()
}

// Result returns the lines recorded for source, and whether any were
// recorded.
func (q *Query) Result(source string) ([]string, bool) {
	q.mu.Lock()
	lines, ok := q.results[source]
	q.mu.Unlock()
	return lines, ok
}

// Sources returns the names of the sources with a recorded result, sorted.
func (q *Query) Sources() []string {
	q.mu.Lock()
	names := make([]string, 0, len(q.results))
	for name := range q.results {
		names = append(names, name)
	}
	q.mu.Unlock()
	sort.Strings(names)
	return names
}

// NumSources returns the number of sources with a recorded result.
func (q *Query) NumSources() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.results)
}

// TabixCoordinates returns the query's "chrom:first-last" 1-based inclusive
// form, e.g. "chr1:101-200" for [100, 200).
func (q *Query) TabixCoordinates() string { return q.iv.Tabix() }

// InterbaseCoordinates returns the query's "chrom:start-stop" 0-based
// half-open form.
func (q *Query) InterbaseCoordinates() string { return q.iv.Interbase() }

// JoinedInterbaseCoordinates returns the comma-separated interbase coordinates
// of qs.  It is meant for log and error messages.
func JoinedInterbaseCoordinates(qs []*Query) string {
	var sb strings.Builder
	for i, q := range qs {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(q.InterbaseCoordinates())
	}
	return sb.String()
}
