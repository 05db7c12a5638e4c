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
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
	gunsafe "github.com/grailbio/base/unsafe"
	"github.com/grailbio/regionannot/encoding/bed"
	"github.com/grailbio/regionannot/interval"
	"github.com/klauspost/compress/gzip"
)

// BEDSource is a Source backed by a tab-delimited "chrom start stop ..." file
// loaded into memory.  Lookup returns the raw lines of every record
// overlapping the query, in coordinate order.  It is read-only after
// construction, so it is safe for concurrent use.
type BEDSource struct {
	indexes map[string]*interval.Index
	nLines  int
}

// NewBEDSource loads a BEDSource from r.  The input need not be sorted.  Blank
// lines and "#", "track" or "browser" lines are skipped; any other line with an
// invalid interval is an error.
func NewBEDSource(r io.Reader) (*BEDSource, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	var tokens [3][]byte
	entries := map[string][]interval.Entry{}
	var chroms []string
	lineIdx := 0
	for scanner.Scan() {
		lineIdx++
		curLine := scanner.Bytes()
		if bed.IsHeaderLine(curLine) {
			continue
		}
		nToken := bed.Tokens(tokens[:], curLine)
		if nToken == 0 {
			continue
		}
		if nToken != 3 {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("lookup.NewBEDSource: line %d has fewer tokens than expected", lineIdx))
		}
		start, err := interval.ParsePos(gunsafe.BytesToString(tokens[1]))
		if err != nil {
			return nil, errors.E(err, fmt.Sprintf("lookup.NewBEDSource: line %d", lineIdx))
		}
		stop, err := interval.ParsePos(gunsafe.BytesToString(tokens[2]))
		if err != nil {
			return nil, errors.E(err, fmt.Sprintf("lookup.NewBEDSource: line %d", lineIdx))
		}
		chrom := string(tokens[0])
		iv, err := interval.New(chrom, start, stop)
		if err != nil {
			return nil, errors.E(err, fmt.Sprintf("lookup.NewBEDSource: line %d", lineIdx))
		}
		if _, ok := entries[chrom]; !ok {
			chroms = append(chroms, chrom)
		}
		entries[chrom] = append(entries[chrom], interval.Entry{Interval: iv, Payload: string(curLine)})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	s := &BEDSource{indexes: make(map[string]*interval.Index, len(chroms))}
	for _, chrom := range chroms {
		idx, err := interval.Build(entries[chrom])
		if err != nil {
			return nil, err
		}
		s.indexes[chrom] = idx
		s.nLines += idx.NumPayloads()
	}
	return s, nil
}

// OpenBEDSource is a wrapper for NewBEDSource that takes a path instead of an
// io.Reader.  Gzipped input is detected by the path extension.
func OpenBEDSource(ctx context.Context, path string) (s *BEDSource, err error) {
	var infile file.File
	if infile, err = file.Open(ctx, path); err != nil {
		return
	}
	defer func() {
		if cerr := infile.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	reader := io.Reader(infile.Reader(ctx))
	switch fileio.DetermineType(path) {
	case fileio.Gzip:
		if reader, err = gzip.NewReader(reader); err != nil {
			return
		}
	}
	if s, err = NewBEDSource(reader); err != nil {
		return nil, errors.E(err, path)
	}
	log.Printf("lookup.OpenBEDSource: loaded %d record(s) on %d chromosome(s) from %s", s.nLines, len(s.indexes), path)
	return
}

// Len returns the number of records loaded.
func (s *BEDSource) Len() int { return s.nLines }

// Lookup implements Source.
func (s *BEDSource) Lookup(ctx context.Context, iv interval.Interval) ([]string, error) {
	idx := s.indexes[iv.Chrom()]
	if idx == nil {
		return nil, nil
	}
	var lines []string
	for it := idx.Overlaps(iv); it.Scan(); {
		for _, p := range it.Payloads() {
			lines = append(lines, p.(string))
		}
	}
	return lines, nil
}
