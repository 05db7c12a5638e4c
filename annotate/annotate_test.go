package annotate

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/regionannot/interval"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func iv(t testing.TB, chrom string, start, stop interval.PosType) interval.Interval {
	i, err := interval.New(chrom, start, stop)
	assert.NoError(t, err)
	return i
}

func gene(t testing.TB, name, chrom string, exons ...[2]interval.PosType) *Gene {
	g := &Gene{Name: name, Chrom: chrom}
	for i, e := range exons {
		if i == 0 || e[0] < g.TxStart {
			g.TxStart = e[0]
		}
		if e[1] > g.TxEnd {
			g.TxEnd = e[1]
		}
		g.Exons = append(g.Exons, iv(t, chrom, e[0], e[1]))
	}
	return g
}

func annotate(t *testing.T, genes map[string][]*Gene, opts Opts, regions []Region) []Row {
	a, err := NewAnnotator(genes, opts)
	assert.NoError(t, err)
	rows, err := a.Annotate(context.Background(), regions)
	assert.NoError(t, err)
	assert.EQ(t, len(rows), len(regions))
	return rows
}

func TestAnnotateSortedLabels(t *testing.T) {
	region := []Region{{Name: "r", Interval: iv(t, "chr1", 100, 200)}}
	g1 := gene(t, "G1", "chr1", [2]interval.PosType{50, 150})
	g2 := gene(t, "G2", "chr1", [2]interval.PosType{180, 250})
	for _, order := range [][]*Gene{{g1, g2}, {g2, g1}} {
		rows := annotate(t, map[string][]*Gene{"chr1": order}, DefaultOpts, region)
		expect.EQ(t, rows, []Row{{"r", "G1,G2"}})
	}
}

func TestAnnotateDedup(t *testing.T) {
	// Two transcripts of the same gene, and a gene with two overlapping exons.
	genes := map[string][]*Gene{"chr1": {
		gene(t, "A", "chr1", [2]interval.PosType{100, 200}),
		gene(t, "A", "chr1", [2]interval.PosType{100, 200}, [2]interval.PosType{300, 400}),
		gene(t, "B", "chr1", [2]interval.PosType{150, 250}, [2]interval.PosType{300, 350}),
	}}
	rows := annotate(t, genes, DefaultOpts, []Region{
		{Name: "r1", Interval: iv(t, "chr1", 180, 320)},
		{Name: "r2", Interval: iv(t, "chr1", 360, 380)},
		{Name: "r3", Interval: iv(t, "chr1", 260, 300)},
	})
	expect.EQ(t, rows, []Row{{"r1", "A,B"}, {"r2", "A"}, {"r3", NoMatch}})
}

func TestAnnotateMissingChromosome(t *testing.T) {
	genes := map[string][]*Gene{"chr1": {gene(t, "G1", "chr1", [2]interval.PosType{100, 200})}}
	rows := annotate(t, genes, Opts{Parallelism: 1}, []Region{
		{Name: "a", Interval: iv(t, "chrUn", 100, 200)},
		{Name: "b", Interval: iv(t, "chr1", 150, 151)},
		{Name: "c", Interval: iv(t, "chrUn", 0, 1)},
	})
	expect.EQ(t, rows, []Row{{"a", NoMatch}, {"b", "G1"}, {"c", NoMatch}})
}

func TestAnnotatePadding(t *testing.T) {
	genes := map[string][]*Gene{"chr1": {gene(t, "G", "chr1", [2]interval.PosType{420, 440})}}
	regions := []Region{{Name: "r", Interval: iv(t, "chr1", 500, 600)}}
	expect.EQ(t, annotate(t, genes, DefaultOpts, regions), []Row{{"r", NoMatch}})
	expect.EQ(t, annotate(t, genes, Opts{Padding: 100}, regions), []Row{{"r", "G"}})
	// Padding [500,600) by 60 gives [440,660), which still misses [420,440).
	expect.EQ(t, annotate(t, genes, Opts{Padding: 60}, regions), []Row{{"r", NoMatch}})
	expect.EQ(t, annotate(t, genes, Opts{Padding: 61}, regions), []Row{{"r", "G"}})

	// Padding near position 0 is clamped.
	genes = map[string][]*Gene{"chr1": {gene(t, "H", "chr1", [2]interval.PosType{0, 5})}}
	regions = []Region{{Name: "s", Interval: iv(t, "chr1", 10, 20)}}
	expect.EQ(t, annotate(t, genes, Opts{Padding: 1000}, regions), []Row{{"s", "H"}})
}

func TestAnnotateGeneMode(t *testing.T) {
	genes := map[string][]*Gene{"chr1": {
		gene(t, "G", "chr1", [2]interval.PosType{100, 200}, [2]interval.PosType{800, 900}),
	}}
	regions := []Region{{Name: "intron", Interval: iv(t, "chr1", 400, 500)}}
	expect.EQ(t, annotate(t, genes, Opts{Mode: ExonMode}, regions), []Row{{"intron", NoMatch}})
	expect.EQ(t, annotate(t, genes, Opts{Mode: GeneMode}, regions), []Row{{"intron", "G"}})
}

func TestAnnotateInvalidGene(t *testing.T) {
	bad := &Gene{Name: "BAD", Chrom: "chr2", TxStart: 500, TxEnd: 400}
	genes := map[string][]*Gene{
		"chr1": {gene(t, "G1", "chr1", [2]interval.PosType{100, 200})},
		"chr2": {bad},
	}
	a, err := NewAnnotator(genes, Opts{Mode: GeneMode})
	assert.NoError(t, err)
	rows, err := a.Annotate(context.Background(), []Region{
		{Name: "ok", Interval: iv(t, "chr1", 150, 160)},
		{Name: "bad", Interval: iv(t, "chr2", 450, 460)},
	})
	expect.True(t, errors.Is(errors.Invalid, err), err)
	expect.EQ(t, len(rows), 0)

	// An exon on the wrong chromosome is rejected too.
	genes = map[string][]*Gene{"chr1": {{Name: "X", Chrom: "chr1", Exons: []interval.Interval{iv(t, "chr3", 1, 2)}}}}
	a, err = NewAnnotator(genes, DefaultOpts)
	assert.NoError(t, err)
	_, err = a.Annotate(context.Background(), []Region{{Name: "r", Interval: iv(t, "chr1", 1, 2)}})
	expect.True(t, errors.Is(errors.Invalid, err), err)
}

func TestNewAnnotatorInvalid(t *testing.T) {
	_, err := NewAnnotator(nil, Opts{Padding: -1})
	expect.True(t, errors.Is(errors.Invalid, err), err)
	_, err = NewAnnotator(nil, Opts{Mode: Mode(7)})
	expect.True(t, errors.Is(errors.Invalid, err), err)

	// A chr2 gene filed under chr1.
	misfiled := map[string][]*Gene{"chr1": {gene(t, "G2", "chr2", [2]interval.PosType{100, 200})}}
	for _, mode := range []Mode{ExonMode, GeneMode} {
		_, err = NewAnnotator(misfiled, Opts{Mode: mode})
		expect.True(t, errors.Is(errors.Invalid, err), err)
	}
	_, err = NewAnnotator(map[string][]*Gene{"chr1": {nil}}, DefaultOpts)
	expect.True(t, errors.Is(errors.Invalid, err), err)
}

func TestAnnotateEmptyGeneList(t *testing.T) {
	genes := map[string][]*Gene{
		"chr1": {gene(t, "G1", "chr1", [2]interval.PosType{100, 200})},
		"chr2": {},
	}
	a, err := NewAnnotator(genes, DefaultOpts)
	assert.NoError(t, err)
	rows, err := a.Annotate(context.Background(), []Region{
		{Name: "a", Interval: iv(t, "chr2", 100, 200)},
		{Name: "b", Interval: iv(t, "chr1", 150, 160)},
	})
	assert.NoError(t, err)
	expect.EQ(t, rows, []Row{{"a", NoMatch}, {"b", "G1"}})
	// chr2 is reported like an absent chromosome, and no index is cached.
	expect.True(t, a.missing["chr2"])
	expect.EQ(t, len(a.indexes), 1)
}

func TestAnnotateCanceled(t *testing.T) {
	genes := map[string][]*Gene{"chr1": {gene(t, "G1", "chr1", [2]interval.PosType{100, 200})}}
	a, err := NewAnnotator(genes, DefaultOpts)
	assert.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rows, err := a.Annotate(ctx, []Region{{Name: "r", Interval: iv(t, "chr1", 150, 160)}})
	expect.True(t, errors.Is(errors.Canceled, err), err)
	expect.EQ(t, len(rows), 0)
}

func TestAnnotateManyChromosomes(t *testing.T) {
	const nChrom = 24
	genes := map[string][]*Gene{}
	var regions []Region
	var want []Row
	for c := 0; c < nChrom; c++ {
		chrom := fmt.Sprintf("chr%d", c+1)
		for g := 0; g < 50; g++ {
			start := interval.PosType(g * 1000)
			genes[chrom] = append(genes[chrom], gene(t, fmt.Sprintf("%s_g%d", chrom, g), chrom, [2]interval.PosType{start, start + 100}))
		}
	}
	// Interleave chromosomes and go backwards within each, so output order
	// must be restored from input order.
	for g := 49; g >= 0; g-- {
		for c := 0; c < nChrom; c++ {
			chrom := fmt.Sprintf("chr%d", c+1)
			start := interval.PosType(g*1000 + 50)
			name := fmt.Sprintf("%s:%d", chrom, g)
			regions = append(regions, Region{Name: name, Interval: iv(t, chrom, start, start+1)})
			want = append(want, Row{name, fmt.Sprintf("%s_g%d", chrom, g)})
		}
	}
	for _, parallelism := range []int{1, 4, 0} {
		a, err := NewAnnotator(genes, Opts{Parallelism: parallelism})
		assert.NoError(t, err)
		rows, err := a.Annotate(context.Background(), regions)
		assert.NoError(t, err)
		expect.EQ(t, rows, want)
		// A second call reuses the cached indexes.
		rows, err = a.Annotate(context.Background(), regions[:3])
		assert.NoError(t, err)
		expect.EQ(t, rows, want[:3])
		expect.EQ(t, len(a.indexes), nChrom)
	}
}

func TestLabel(t *testing.T) {
	idx, err := interval.Build([]interval.Entry{
		{Interval: iv(t, "chr1", 10, 20), Payload: "b"},
		{Interval: iv(t, "chr1", 15, 30), Payload: "a"},
		{Interval: iv(t, "chr1", 10, 20), Payload: "b"},
	})
	assert.NoError(t, err)
	expect.EQ(t, Label(idx, iv(t, "chr1", 0, 11)), "b")
	expect.EQ(t, Label(idx, iv(t, "chr1", 19, 20)), "a,b")
	expect.EQ(t, Label(idx, iv(t, "chr1", 30, 40)), NoMatch)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("gene")
	assert.NoError(t, err)
	expect.EQ(t, m, GeneMode)
	m, err = ParseMode("exon")
	assert.NoError(t, err)
	expect.EQ(t, m, ExonMode)
	_, err = ParseMode("transcript")
	expect.True(t, errors.Is(errors.Invalid, err), err)
	expect.EQ(t, GeneMode.String(), "gene")
}

func TestWriteRows(t *testing.T) {
	rows := []Row{{"r1", "A,B"}, {"r2", NoMatch}}
	var buf bytes.Buffer
	assert.NoError(t, WriteRows(&buf, "#chrom\tstart\tend\tname", true, rows))
	expect.EQ(t, buf.String(), "#chrom\tstart\tend\tname\nr1\tA,B\nr2\t.\n")

	buf.Reset()
	assert.NoError(t, WriteRows(&buf, "", false, rows))
	expect.EQ(t, buf.String(), "r1\tA,B\nr2\t.\n")
}
