package lookup

import (
	"context"
	"strings"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/regionannot/interval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sourceText = `track name=variants
chr1	500	600	rs3
chr1	100	200	rs1
chr2	100	200	rs9
chr1	150	160	rs2

chr1	100	200	rs1b
`

func TestBEDSource(t *testing.T) {
	s, err := NewBEDSource(strings.NewReader(sourceText))
	require.NoError(t, err)
	assert.Equal(t, 5, s.Len())

	lookup := func(chrom string, start, stop interval.PosType) []string {
		iv, err := interval.New(chrom, start, stop)
		require.NoError(t, err)
		lines, err := s.Lookup(context.Background(), iv)
		require.NoError(t, err)
		return lines
	}
	assert.Equal(t, []string{
		"chr1\t100\t200\trs1", "chr1\t100\t200\trs1b", "chr1\t150\t160\trs2"}, lookup("chr1", 155, 156))
	assert.Equal(t, []string{
		"chr1\t100\t200\trs1", "chr1\t100\t200\trs1b", "chr1\t150\t160\trs2", "chr1\t500\t600\trs3"}, lookup("chr1", 0, 1000))
	assert.Empty(t, lookup("chr1", 200, 500))
	assert.Equal(t, []string{"chr2\t100\t200\trs9"}, lookup("chr2", 199, 200))
	assert.Empty(t, lookup("chr3", 0, 1000))
}

func TestBEDSourceErrors(t *testing.T) {
	for _, in := range []string{
		"chr1\t100\n",
		"chr1\t200\t100\n",
		"chr1\tx\t100\n",
		"chr1\t4294967300\t10\n",
		"chr1\t0\t2147483647\n",
	} {
		_, err := NewBEDSource(strings.NewReader(in))
		assert.True(t, errors.Is(errors.Invalid, err), "%q: %v", in, err)
	}
}
