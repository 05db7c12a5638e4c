package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hts/bgzf"
	"github.com/grailbio/regionannot/annotate"
	"github.com/grailbio/regionannot/encoding/bed"
	"github.com/grailbio/regionannot/encoding/genepred"
	"github.com/grailbio/regionannot/lookup"
	"v.io/x/lib/cmdline"
)

// writeOutput calls write with a writer for path, or for stdout if path is
// empty.  Paths ending in .gz are bgzf-compressed.  If writing or closing
// fails, path is removed.
func writeOutput(ctx context.Context, env *cmdline.Env, path string, parallelism int, write func(io.Writer) error) (err error) {
	if path == "" {
		return write(env.Stdout)
	}
	var dst file.File
	if dst, err = file.Create(ctx, path); err != nil {
		return
	}
	defer func() {
		file.CloseAndReport(ctx, dst, &err)
		if err == nil {
			return
		}
		if rerr := file.Remove(ctx, path); rerr != nil {
			log.Error.Printf("could not remove partial output %s: %v", path, rerr)
		}
	}()
	w := dst.Writer(ctx)
	if fileio.DetermineType(path) == fileio.Gzip {
		if parallelism <= 0 {
			parallelism = 1
		}
		bgzfWriter := bgzf.NewWriter(w, parallelism)
		defer func() {
			if e := bgzfWriter.Close(); e != nil && err == nil {
				err = e
			}
		}()
		w = bgzfWriter
	}
	return write(w)
}

func newCmdAnnotate() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "annotate",
		Short:    "Label each region with the genes it overlaps",
		ArgsName: "regions.bed",
		Long: `
Writes one "name<TAB>label" line per input region, in input order.  The label
is a sorted, comma-separated list of overlapping gene names, or '.' if there
are none.  A header line in the region BED is copied to the output first.`,
	}
	genesPath := cmd.Flags.String("genes", "", "UCSC gene table path (required)")
	geneFormat := cmd.Flags.String("gene-format", genepred.GenePred.String(), "Gene table layout; 'genepred' and 'refgene' supported")
	mode := cmd.Flags.String("mode", annotate.DefaultOpts.Mode.String(), "Match against 'exon' intervals or whole 'gene' spans")
	padding := cmd.Flags.Int("padding", annotate.DefaultOpts.Padding, "Number of bases added to both sides of each region before matching")
	parallelism := cmd.Flags.Int("parallelism", annotate.DefaultOpts.Parallelism, "Maximum number of chromosomes processed at once; 0 = runtime.NumCPU()")
	outPath := cmd.Flags.String("out", "", "Output path; stdout if empty.  A .gz suffix selects bgzf compression")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("annotate takes one region BED path, but got %v", argv)
		}
		if *genesPath == "" {
			return fmt.Errorf("annotate: -genes is required")
		}
		format, err := genepred.ParseFormat(*geneFormat)
		if err != nil {
			return err
		}
		m, err := annotate.ParseMode(*mode)
		if err != nil {
			return err
		}
		opts := annotate.Opts{Mode: m, Padding: *padding, Parallelism: *parallelism}
		return runAnnotate(vcontext.Background(), env, argv[0], *genesPath, format, *outPath, opts)
	})
	return cmd
}

func runAnnotate(ctx context.Context, env *cmdline.Env, regionsPath, genesPath string, format genepred.Format, outPath string, opts annotate.Opts) error {
	regions, err := bed.ReadPath(ctx, regionsPath)
	if err != nil {
		return err
	}
	genes, err := genepred.ReadPath(ctx, genesPath, format)
	if err != nil {
		return err
	}
	a, err := annotate.NewAnnotator(genes, opts)
	if err != nil {
		return err
	}
	rows, err := a.Annotate(ctx, regions.Regions)
	if err != nil {
		return err
	}
	if err = writeOutput(ctx, env, outPath, opts.Parallelism, func(w io.Writer) error {
		return annotate.WriteRows(w, regions.Header, regions.HasHeader, rows)
	}); err != nil {
		return err
	}
	log.Printf("annotate: %d row(s) written to %s", len(rows), outputName(outPath))
	return nil
}

func outputName(path string) string {
	if path == "" {
		return "stdout"
	}
	return path
}

// sourceFlag collects repeated -source name=path flags.
type sourceFlag []string

func (f *sourceFlag) String() string { return strings.Join(*f, ",") }

func (f *sourceFlag) Set(v string) error {
	if strings.IndexByte(v, '=') <= 0 {
		return fmt.Errorf("source %q must be of the form name=path", v)
	}
	*f = append(*f, v)
	return nil
}

func newCmdQuery() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "query",
		Short:    "Collect the records overlapping each region from several sources",
		ArgsName: "regions.bed",
		Long: `
Each -source is a tab-delimited "chrom start stop ..." file (optionally
gzipped).  Writes one "region<TAB>source<TAB>record" line per overlapping record,
grouped by region in input order and by source in flag order.`,
	}
	var sources sourceFlag
	cmd.Flags.Var(&sources, "source", "Data source as name=path; may be repeated")
	parallelism := cmd.Flags.Int("parallelism", 32, "Maximum number of concurrent lookups; 0 = runtime.NumCPU()")
	batchSize := cmd.Flags.Int("batch-size", lookup.DefaultDispatchOpts.BatchSize, "Number of regions looked up per work unit")
	timeout := cmd.Flags.Duration("timeout", 0, "Per-lookup timeout; 0 = none")
	allowPartial := cmd.Flags.Bool("allow-partial", false, "Write the output even if some lookups failed")
	outPath := cmd.Flags.String("out", "", "Output path; stdout if empty.  A .gz suffix selects bgzf compression")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("query takes one region BED path, but got %v", argv)
		}
		if len(sources) == 0 {
			return fmt.Errorf("query: at least one -source is required")
		}
		opts := lookup.DispatchOpts{Parallelism: *parallelism, BatchSize: *batchSize}
		return runQuery(vcontext.Background(), env, argv[0], sources, *timeout, *allowPartial, *outPath, opts)
	})
	return cmd
}

func runQuery(ctx context.Context, env *cmdline.Env, regionsPath string, sourceSpecs []string, timeout time.Duration,
	allowPartial bool, outPath string, opts lookup.DispatchOpts) error {
	regions, err := bed.ReadPath(ctx, regionsPath)
	if err != nil {
		return err
	}
	sources := make([]lookup.NamedSource, len(sourceSpecs))
	for i, spec := range sourceSpecs {
		eqPos := strings.IndexByte(spec, '=')
		name, path := spec[:eqPos], spec[eqPos+1:]
		s, err := lookup.OpenBEDSource(ctx, path)
		if err != nil {
			return err
		}
		var src lookup.Source = s
		if timeout > 0 {
			src = lookup.WithTimeout(src, timeout)
		}
		sources[i] = lookup.NamedSource{Name: name, Source: src}
	}
	queries := make([]*lookup.Query, len(regions.Regions))
	for i, r := range regions.Regions {
		queries[i] = lookup.NewQueryFromInterval(r.Interval)
	}
	result, err := lookup.Dispatch(ctx, queries, sources, opts)
	if err != nil {
		return err
	}
	for _, f := range result.Failures {
		log.Error.Printf("query: %v", f)
	}
	if len(result.Failures) > 0 && !allowPartial {
		return fmt.Errorf("query: %d lookup(s) failed; rerun with -allow-partial to keep partial results", len(result.Failures))
	}
	return writeOutput(ctx, env, outPath, 1, func(w io.Writer) error {
		tsvw := tsv.NewWriter(w)
		for _, q := range result.Queries {
			for _, s := range sources {
				lines, _ := q.Result(s.Name)
				for _, line := range lines {
					tsvw.WriteString(q.InterbaseCoordinates())
					tsvw.WriteString(s.Name)
					tsvw.WriteString(line)
					if err := tsvw.EndLine(); err != nil {
						return err
					}
				}
			}
		}
		return tsvw.Flush()
	})
}

func main() {
	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(
		&cmdline.Command{
			Name:     "bio-region-annot",
			Short:    "Genomic region annotation and multi-source overlap lookup",
			LookPath: false,
			Children: []*cmdline.Command{
				newCmdAnnotate(),
				newCmdQuery(),
			},
		})
}
