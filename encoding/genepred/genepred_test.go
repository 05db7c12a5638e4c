package genepred

import (
	"strings"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/regionannot/interval"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

const refGeneText = `585	NR_046018	chr1	+	11873	14409	14409	14409	3	11873,12612,13220,	12227,12721,14409,	0	DDX11L1	unk	unk	-1,-1,-1,
# comment
1	NM_001005484	chr1	+	69090	70008	69090	70008	1	69090,	70008,	0	OR4F5	cmpl	cmpl	0,
9	NM_004985	chr12	-	25205245	25250929	25209794	25245384	5	25205245,25225613,25227233,25245273,25250750,	25209911,25225773,25227412,25245395,25250929,	0	KRAS	cmpl	cmpl	0,0,0,0,-1,
`

func TestReadRefGene(t *testing.T) {
	genes, err := Read(strings.NewReader(refGeneText), RefGene)
	assert.NoError(t, err)
	assert.EQ(t, len(genes), 2)
	assert.EQ(t, len(genes["chr1"]), 2)
	g := genes["chr1"][0]
	expect.EQ(t, g.Name, "DDX11L1")
	expect.EQ(t, g.Chrom, "chr1")
	expect.EQ(t, g.TxStart, interval.PosType(11873))
	expect.EQ(t, g.TxEnd, interval.PosType(14409))
	assert.EQ(t, len(g.Exons), 3)
	expect.EQ(t, g.Exons[1].Interbase(), "chr1:12612-12721")
	expect.EQ(t, genes["chr1"][1].Name, "OR4F5")

	kras := genes["chr12"][0]
	expect.EQ(t, kras.Name, "KRAS")
	expect.EQ(t, len(kras.Exons), 5)
}

func TestReadGenePred(t *testing.T) {
	// No bin column, no name2: the transcript name is used.
	text := "NM_1\tchr2\t-\t100\t500\t100\t500\t2\t100,400\t200,500\n"
	genes, err := Read(strings.NewReader(text), GenePred)
	assert.NoError(t, err)
	g := genes["chr2"][0]
	expect.EQ(t, g.Name, "NM_1")
	expect.EQ(t, len(g.Exons), 2)
	expect.EQ(t, g.Exons[0].Interbase(), "chr2:100-200")

	// The same line read as refGene is one column short.
	_, err = Read(strings.NewReader(text), RefGene)
	expect.True(t, errors.Is(errors.Invalid, err), err)
}

func TestReadErrors(t *testing.T) {
	for _, line := range []string{
		"NM_1\tchr2\t-\tx\t500\t100\t500\t1\t100,\t200,",
		"NM_1\tchr2\t-\t100\t500\t100\t500\t2\t100,\t200,",
		"NM_1\tchr2\t-\t100\t500\t100\t500\t1\t300,\t200,",
		"NM_1\tchr2\t-\t100\t500\t100\t500\tone\t100,\t200,",
		"NM_1\tchr2\t-\t100",
	} {
		_, err := Read(strings.NewReader(line+"\n"), GenePred)
		expect.True(t, errors.Is(errors.Invalid, err), line, err)
	}
	_, err := Read(strings.NewReader(""), Format(5))
	expect.True(t, errors.Is(errors.Invalid, err), err)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("refgene")
	assert.NoError(t, err)
	expect.EQ(t, f, RefGene)
	expect.EQ(t, f.String(), "refgene")
	_, err = ParseFormat("gtf")
	expect.True(t, errors.Is(errors.Invalid, err), err)
}
