package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/relgate/internal/ledger"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	RunID string
	Limit int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show journaled release runs",
		Long: `List release runs from the ledger, newest first, or show every gate and
step of one run. Use this after a failed "relgate publish --push" to see
which irreversible steps already happened.

Example:
  relgate history
  relgate history --limit 5
  relgate history --run 0192b9a4-6f1e-7c3a-9d2b-5e8f0a1b2c3d`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.RunID, "run", "", "show the checks of one run")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of runs to list (0 for all)")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	p, err := loadProject(opts.RootOptions, cmd)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	l, err := p.openLedger(ctx)
	if err != nil {
		return err
	}
	if l == nil {
		return NewExitError(ExitCommandError, "run ledger is not available: disabled in the config or no git directory")
	}
	defer func() {
		if closeErr := l.Close(); closeErr != nil {
			slog.Error("error closing ledger", "error", closeErr)
		}
	}()

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	if opts.RunID != "" {
		detail, err := l.Run(ctx, opts.RunID)
		if errors.Is(err, ledger.ErrRunNotFound) {
			return NewExitError(ExitCommandError, fmt.Sprintf("no run with ID %s", opts.RunID))
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read run", err)
		}
		return formatter.Success(runDetailView{detail})
	}

	runs, err := l.Runs(ctx, opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}
	return formatter.Success(runListView(runs))
}

// runListView renders the run list.
type runListView []ledger.RunSummary

func (v runListView) MarshalJSON() ([]byte, error) {
	if v == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]ledger.RunSummary(v))
}

func (v runListView) WriteText(w io.Writer, verbose bool) {
	if len(v) == 0 {
		fmt.Fprintln(w, "No release runs recorded.")
		return
	}
	for _, r := range v {
		line := fmt.Sprintf("%s  %-7s  %-17s", r.ID, r.Mode, r.State)
		if r.Tag != "" {
			line += "  " + r.Tag
		}
		if verbose && r.Reason != "" {
			line += "  " + r.Reason
		}
		fmt.Fprintln(w, line)
	}
}

// runDetailView renders one run with its checks.
type runDetailView struct {
	*ledger.RunDetail
}

func (v runDetailView) WriteText(w io.Writer, verbose bool) {
	fmt.Fprintf(w, "Release run %s (%s)\n", v.ID, v.Mode)
	if v.Tag != "" {
		fmt.Fprintf(w, "Version %s, tag %s\n", v.Version, v.Tag)
	}
	fmt.Fprintf(w, "State: %s\n", v.State)
	if v.Reason != "" {
		fmt.Fprintf(w, "Reason: %s\n", v.Reason)
	}
	fmt.Fprintln(w)
	writeChecks(w, v.Checks, verbose)
}
