package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/relgate/internal/bench"
)

// BenchOptions holds flags for the bench command.
type BenchOptions struct {
	*RootOptions
	Table bool
}

// NewBenchCommand creates the bench command.
func NewBenchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BenchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run the benchmark harness and store its output",
		Long: `Run the configured benchmark harness and store its raw output as the
benchmark results file, which "relgate sync" renders into the README.

Example:
  relgate bench
  relgate bench --table`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Table, "table", false, "print the rendered comparison table")

	return cmd
}

func runBench(opts *BenchOptions, cmd *cobra.Command) error {
	p, err := loadProject(opts.RootOptions, cmd)
	if err != nil {
		return err
	}

	slog.Info("running benchmarks")
	raw, err := p.tool.RunBenchmarks(commandContext(cmd))
	if err != nil {
		return WrapExitError(ExitFailure, "benchmark harness failed", err)
	}

	records, err := bench.ParseReport(raw, p.cfg.Benchmark.Layout)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to parse benchmark output", err)
	}

	view := benchView{Records: len(records)}
	if results := p.cfg.Benchmark.Results; results != "" {
		if err := p.cfg.Files().WriteFile(results, raw); err != nil {
			return WrapExitError(ExitCommandError, "failed to write benchmark results", err)
		}
		view.Results = results
		slog.Info("benchmark results written", "path", results, "records", len(records))
	}
	if opts.Table {
		view.Table = bench.Render(records, p.cfg.Benchmark.Matrix)
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	return formatter.Success(view)
}

// benchView renders the result of a benchmark run.
type benchView struct {
	Results string `json:"results,omitempty"`
	Records int    `json:"records"`
	Table   string `json:"table,omitempty"`
}

func (v benchView) WriteText(w io.Writer, verbose bool) {
	if v.Table != "" {
		fmt.Fprint(w, v.Table)
		fmt.Fprintln(w)
	}
	if v.Results != "" {
		fmt.Fprintf(w, "Wrote %d benchmark record(s) to %s\n", v.Records, v.Results)
	} else {
		fmt.Fprintf(w, "Parsed %d benchmark record(s)\n", v.Records)
	}
}
