// Package bed reads region BED files: "chrom start stop [name ...]" lines in
// 0-based half-open coordinates, optionally preceded by a single header line.
package bed

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
	gunsafe "github.com/grailbio/base/unsafe"
	"github.com/grailbio/regionannot/annotate"
	"github.com/grailbio/regionannot/interval"
	"github.com/klauspost/compress/gzip"
)

// Tokens identifies up to the first len(tokens) tokens from curLine,
// returning the number of tokens saved.  Any (group of) characters <= ' ' is
// treated as a delimiter.
func Tokens(tokens [][]byte, curLine []byte) int {
	posEnd := 0
	lineLen := len(curLine)
	for tokenIdx := range tokens {
		// These simple loops are better than any of the standard library
		// string-split functions for the handful of tokens we need.
		pos := posEnd
		for ; pos != lineLen; pos++ {
			if curLine[pos] > ' ' {
				break
			}
		}
		if pos == lineLen {
			return tokenIdx
		}
		posEnd = pos
		for ; posEnd != lineLen; posEnd++ {
			if curLine[posEnd] <= ' ' {
				break
			}
		}
		tokens[tokenIdx] = curLine[pos:posEnd]
	}
	return len(tokens)
}

var (
	trackPrefix   = []byte("track")
	browserPrefix = []byte("browser")
)

// IsHeaderLine returns whether line is a comment, "track" or "browser" line.
func IsHeaderLine(line []byte) bool {
	return (len(line) > 0 && line[0] == '#') ||
		bytes.HasPrefix(line, trackPrefix) || bytes.HasPrefix(line, browserPrefix)
}

// File is the parsed content of a region BED file.
type File struct {
	// Header is the first line of the file, verbatim, if HasHeader is set.
	Header    string
	HasHeader bool
	Regions   []annotate.Region
}

// looksLikeHeader returns whether the first line is a header: either an
// explicit comment/track line, or a line whose coordinate columns are not
// integers (e.g. "chrom\tstart\tend\tname").
func looksLikeHeader(line []byte, tokens [][]byte) bool {
	if IsHeaderLine(line) {
		return true
	}
	if Tokens(tokens, line) < 3 {
		return false
	}
	if _, err := strconv.ParseInt(gunsafe.BytesToString(tokens[1]), 10, 64); err != nil {
		return true
	}
	if _, err := strconv.ParseInt(gunsafe.BytesToString(tokens[2]), 10, 64); err != nil {
		return true
	}
	return false
}

var tab = []byte{'\t'}

// nameField returns the fourth column of a tab-delimited line, which may
// contain spaces.  Lines without tabs fall back to the whitespace token.
func nameField(line, token []byte) []byte {
	if bytes.IndexByte(line, '\t') < 0 {
		return token
	}
	fields := bytes.SplitN(line, tab, 5)
	if len(fields) < 4 {
		return token
	}
	if name := bytes.TrimSpace(fields[3]); len(name) > 0 {
		return name
	}
	return token
}

// Read parses a region BED from r.  The name of a region is its fourth column,
// or its interbase coordinates if there is none.  Only the first line may be a
// header; later comment lines and blank lines are skipped.
func Read(r io.Reader) (*File, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	var tokens [4][]byte
	f := &File{}
	lineIdx := 0
	for scanner.Scan() {
		lineIdx++
		curLine := scanner.Bytes()
		if lineIdx == 1 && looksLikeHeader(curLine, tokens[:3]) {
			f.Header = string(curLine)
			f.HasHeader = true
			continue
		}
		if IsHeaderLine(curLine) {
			continue
		}
		nToken := Tokens(tokens[:], curLine)
		if nToken == 0 {
			continue
		}
		if nToken < 3 {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("bed.Read: line %d has fewer tokens than expected", lineIdx))
		}
		start, err := interval.ParsePos(gunsafe.BytesToString(tokens[1]))
		if err != nil {
			return nil, errors.E(err, fmt.Sprintf("bed.Read: line %d", lineIdx))
		}
		stop, err := interval.ParsePos(gunsafe.BytesToString(tokens[2]))
		if err != nil {
			return nil, errors.E(err, fmt.Sprintf("bed.Read: line %d", lineIdx))
		}
		iv, err := interval.New(string(tokens[0]), start, stop)
		if err != nil {
			return nil, errors.E(err, fmt.Sprintf("bed.Read: line %d", lineIdx))
		}
		name := iv.Interbase()
		if nToken == 4 {
			name = string(nameField(curLine, tokens[3]))
		}
		f.Regions = append(f.Regions, annotate.Region{Name: name, Interval: iv})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return f, nil
}

// ReadPath is a wrapper for Read that takes a path instead of an io.Reader.
// Gzipped input is detected by the path extension.
func ReadPath(ctx context.Context, path string) (bf *File, err error) {
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
	if bf, err = Read(reader); err != nil {
		return nil, errors.E(err, path)
	}
	log.Printf("bed.ReadPath: %d region(s) loaded from %s", len(bf.Regions), path)
	return
}
