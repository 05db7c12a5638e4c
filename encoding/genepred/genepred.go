// Package genepred reads UCSC gene tables (genePred, and refGene which adds a
// leading "bin" column) into annotate.Gene records.
package genepred

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

// Format identifies the column layout of a gene table.
type Format int

const (
	// GenePred is the basic layout: name, chrom, strand, txStart, txEnd,
	// cdsStart, cdsEnd, exonCount, exonStarts, exonEnds, and optionally score,
	// name2, ....
	GenePred Format = iota
	// RefGene is GenePred with a leading bin column, as in UCSC refGene.txt.
	RefGene
)

// ParseFormat converts a command-line format name ("genepred" or "refgene")
// to a Format.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "genepred":
		return GenePred, nil
	case "refgene":
		return RefGene, nil
	}
	return GenePred, errors.E(errors.Invalid, fmt.Sprintf("genepred.ParseFormat: unknown format %q; 'genepred' and 'refgene' supported", s))
}

func (f Format) String() string {
	switch f {
	case GenePred:
		return "genepred"
	case RefGene:
		return "refgene"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// Column offsets relative to the name column.
const (
	colName = iota
	colChrom
	colStrand
	colTxStart
	colTxEnd
	colCdsStart
	colCdsEnd
	colExonCount
	colExonStarts
	colExonEnds
	colScore
	colName2
	nRequiredCol = colExonEnds + 1
)

func parsePos(field []byte, lineIdx int, what string) (interval.PosType, error) {
	v, err := strconv.Atoi(gunsafe.BytesToString(field))
	if err != nil {
		return 0, errors.E(errors.Invalid, err, fmt.Sprintf("genepred: line %d: bad %s", lineIdx, what))
	}
	if v < 0 || v >= interval.PosTypeMax {
		return 0, errors.E(errors.Invalid, fmt.Sprintf("genepred: line %d: %s %d out of range", lineIdx, what, v))
	}
	return interval.PosType(v), nil
}

// parsePosList parses a comma-separated list with an optional trailing comma,
// e.g. "100,200,".
func parsePosList(field []byte, lineIdx int, what string) ([]interval.PosType, error) {
	field = bytes.TrimSuffix(field, []byte{','})
	if len(field) == 0 {
		return nil, nil
	}
	parts := bytes.Split(field, []byte{','})
	result := make([]interval.PosType, len(parts))
	for i, p := range parts {
		v, err := parsePos(p, lineIdx, what)
		if err != nil {
			return nil, err
		}
		result[i] = v
	}
	return result, nil
}

func parseGene(fields [][]byte, lineIdx int) (*annotate.Gene, error) {
	g := &annotate.Gene{
		Name:  string(fields[colName]),
		Chrom: string(fields[colChrom]),
	}
	if len(fields) > colName2 && len(fields[colName2]) > 0 {
		g.Name = string(fields[colName2])
	}
	var err error
	if g.TxStart, err = parsePos(fields[colTxStart], lineIdx, "txStart"); err != nil {
		return nil, err
	}
	if g.TxEnd, err = parsePos(fields[colTxEnd], lineIdx, "txEnd"); err != nil {
		return nil, err
	}
	exonCount, err := strconv.Atoi(gunsafe.BytesToString(fields[colExonCount]))
	if err != nil {
		return nil, errors.E(errors.Invalid, err, fmt.Sprintf("genepred: line %d: bad exonCount", lineIdx))
	}
	starts, err := parsePosList(fields[colExonStarts], lineIdx, "exonStarts")
	if err != nil {
		return nil, err
	}
	ends, err := parsePosList(fields[colExonEnds], lineIdx, "exonEnds")
	if err != nil {
		return nil, err
	}
	if len(starts) != exonCount || len(ends) != exonCount {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("genepred: line %d: exonCount %d does not match %d start(s) and %d end(s)",
			lineIdx, exonCount, len(starts), len(ends)))
	}
	g.Exons = make([]interval.Interval, exonCount)
	for i := range starts {
		if g.Exons[i], err = interval.New(g.Chrom, starts[i], ends[i]); err != nil {
			return nil, errors.E(err, fmt.Sprintf("genepred: line %d: exon %d of %s", lineIdx, i, g.Name))
		}
	}
	return g, nil
}

// Read parses a gene table from r, returning the genes grouped by chromosome
// in file order.  Blank lines and "#" lines are skipped.  Any malformed line
// fails the whole read.
func Read(r io.Reader, format Format) (map[string][]*annotate.Gene, error) {
	var skip int
	switch format {
	case GenePred:
	case RefGene:
		skip = 1
	default:
		return nil, errors.E(errors.Invalid, fmt.Sprintf("genepred.Read: unsupported format %v", format))
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	genes := map[string][]*annotate.Gene{}
	lineIdx := 0
	for scanner.Scan() {
		lineIdx++
		curLine := scanner.Bytes()
		if len(curLine) == 0 || curLine[0] == '#' {
			continue
		}
		fields := bytes.Split(curLine, []byte{'\t'})
		if len(fields) < skip+nRequiredCol {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("genepred.Read: line %d has %d column(s), expected at least %d",
				lineIdx, len(fields), skip+nRequiredCol))
		}
		g, err := parseGene(fields[skip:], lineIdx)
		if err != nil {
			return nil, err
		}
		genes[g.Chrom] = append(genes[g.Chrom], g)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return genes, nil
}

// ReadPath is a wrapper for Read that takes a path instead of an io.Reader.
// Gzipped input is detected by the path extension.
func ReadPath(ctx context.Context, path string, format Format) (genes map[string][]*annotate.Gene, err error) {
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
	if genes, err = Read(reader, format); err != nil {
		return nil, errors.E(err, path)
	}
	nGene := 0
	for _, g := range genes {
		nGene += len(g)
	}
	log.Printf("genepred.ReadPath: %d gene record(s) on %d chromosome(s) loaded from %s", nGene, len(genes), path)
	return
}
