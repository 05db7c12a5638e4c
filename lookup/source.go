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
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/regionannot/interval"
)

// Source is the only capability Dispatch needs from a data source: return the
// raw lines overlapping iv.  Implementations may block on I/O, and must be
// safe for concurrent use.
type Source interface {
	Lookup(ctx context.Context, iv interval.Interval) ([]string, error)
}

// SourceFunc adapts an ordinary function to the Source interface.
type SourceFunc func(ctx context.Context, iv interval.Interval) ([]string, error)

// Lookup implements Source.
func (f SourceFunc) Lookup(ctx context.Context, iv interval.Interval) ([]string, error) {
	return f(ctx, iv)
}

// NamedSource pairs a Source with the identifier its results are recorded
// under.
type NamedSource struct {
	Name   string
	Source Source
}

type timeoutSource struct {
	src     Source
	timeout time.Duration
}

// WithTimeout returns a Source which fails any lookup on src that takes longer
// than d with an errors.Timeout error.  The abandoned lookup keeps running
// until src notices the cancelled context.
func WithTimeout(src Source, d time.Duration) Source {
	return &timeoutSource{src: src, timeout: d}
}

type lookupResult struct {
	lines []string
	err   error
}

// Lookup implements Source.
func (s *timeoutSource) Lookup(ctx context.Context, iv interval.Interval) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	ch := make(chan lookupResult, 1)
	go func() {
		lines, err := s.src.Lookup(ctx, iv)
		ch <- lookupResult{lines, err}
	}()
	var r lookupResult
	select {
	case r = <-ch:
		if r.err == nil {
			return r.lines, nil
		}
	case <-ctx.Done():
		r.err = ctx.Err()
	}
	if ctx.Err() == context.DeadlineExceeded {
		return nil, errors.E(errors.Timeout, fmt.Sprintf("lookup %s timed out after %v", iv, s.timeout))
	}
	if ctx.Err() != nil {
		return nil, errors.E(errors.Canceled, ctx.Err(), fmt.Sprintf("lookup %s", iv))
	}
	return nil, r.err
}
