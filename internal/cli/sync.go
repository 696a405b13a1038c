package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/relgate/internal/docsync"
)

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize the README with the package",
		Long: `Rewrite the README's marker blocks from the package metadata, the example
sources and the benchmark results. Blocks whose markers are missing are
reported and left alone. The file is only written when something changed.

This is the first gate of "relgate publish", run on its own.

Example:
  relgate sync
  relgate sync --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(rootOpts, cmd)
		},
	}

	return cmd
}

func runSync(opts *RootOptions, cmd *cobra.Command) error {
	p, err := loadProject(opts, cmd)
	if err != nil {
		return err
	}

	report, err := p.docs.SyncFile(commandContext(cmd))
	if err != nil {
		return WrapExitError(ExitFailure, "documentation sync failed", err)
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	return formatter.Success(syncView{Document: p.cfg.Document, Report: report})
}

// syncView renders a sync report.
type syncView struct {
	Document string `json:"document"`
	*docsync.Report
}

func (v syncView) WriteText(w io.Writer, verbose bool) {
	fmt.Fprintf(w, "%s at version %s\n", v.Document, v.Version)
	for _, b := range v.Blocks {
		line := fmt.Sprintf("  %-9s %s", b.Status, b.Block)
		if b.Detail != "" && (verbose || b.Status == docsync.StatusNotFound) {
			line += ": " + b.Detail
		}
		fmt.Fprintln(w, line)
	}
	if v.Changed {
		fmt.Fprintf(w, "Updated %s.\n", v.Document)
	} else {
		fmt.Fprintf(w, "%s is up to date.\n", v.Document)
	}
}
