package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/relgate/internal/gate"
)

// PublishOptions holds flags for the publish command.
type PublishOptions struct {
	*RootOptions
	Push bool
}

// NewPublishCommand creates the publish command.
func NewPublishCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PublishOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Run the release gates, then validate or publish",
		Long: `Run the release gates, then validate or publish the package.

Gates, in order: synchronize the README, require a clean working tree,
require the release tag to be absent locally and on the remote, build the
examples, run the tests. The first failing gate aborts the run.

Without --push this is a dry run: the package is validated with the
registry and nothing leaves the machine. With --push the branch is pushed,
the tag is created and pushed, and the package is published. A failure
part-way through is not rolled back; "relgate history" shows which steps
completed.

Example:
  relgate publish
  relgate publish --push
  relgate publish --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublish(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Push, "push", false, "push, tag and publish (default is a dry run)")

	return cmd
}

func runPublish(opts *PublishOptions, cmd *cobra.Command) error {
	p, err := loadProject(opts.RootOptions, cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var rec gate.Recorder = gate.NopRecorder{}
	l, err := p.openLedger(ctx)
	if err != nil {
		return err
	}
	if l != nil {
		defer func() {
			if closeErr := l.Close(); closeErr != nil {
				slog.Error("error closing ledger", "error", closeErr)
			}
		}()
		rec = l
	}

	gk := &gate.Gatekeeper{
		Docs:      p.docs,
		VCS:       p.git,
		Builder:   p.tool,
		Registry:  p.tool,
		TagPrefix: p.cfg.TagPrefix,
		Recorder:  rec,
		IDs:       opts.RunIDs,
	}

	out, runErr := gk.Run(ctx, gate.ModeFor(opts.Push))
	if out == nil {
		return WrapExitError(ExitCommandError, "failed to start release run", runErr)
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	view := outcomeView{out}
	if runErr != nil {
		code, msg := errorParts(runErr)
		if err := formatter.Error(code, msg, view); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("release run %s aborted", out.RunID))
	}
	return formatter.Success(view)
}

// errorParts splits a run error into its code and the rest of the message.
func errorParts(err error) (string, string) {
	code := string(gate.CodeOf(err))
	if code == "" {
		return "RUN_FAILED", err.Error()
	}
	return code, strings.TrimPrefix(err.Error(), code+": ")
}

// outcomeView renders a gatekeeper outcome.
type outcomeView struct {
	*gate.Outcome
}

func (v outcomeView) WriteText(w io.Writer, verbose bool) {
	fmt.Fprintf(w, "Release run %s (%s)\n", v.RunID, v.Mode)
	if v.Tag != "" {
		fmt.Fprintf(w, "Version %s, tag %s\n", v.Version, v.Tag)
	}
	fmt.Fprintln(w)
	writeChecks(w, v.Checks, verbose)
	fmt.Fprintln(w)

	switch v.State {
	case gate.StatePublished:
		fmt.Fprintf(w, "Published %s.\n", v.Tag)
	case gate.StateDryRunSucceeded:
		fmt.Fprintln(w, "Dry run succeeded. Run with --push to publish.")
	default:
		fmt.Fprintf(w, "State: %s\n", v.State)
	}
}

func writeChecks(w io.Writer, checks []gate.Check, verbose bool) {
	if len(checks) == 0 {
		fmt.Fprintln(w, "  (no checks recorded)")
		return
	}
	for _, c := range checks {
		mark := "✓"
		if c.Status == gate.CheckStatusFail {
			mark = "✗"
		}
		line := fmt.Sprintf("  %s %-4s %s", mark, c.Phase, c.Name)
		// Failure messages always show; pass details only when verbose.
		if c.Message != "" && (verbose || c.Status == gate.CheckStatusFail) {
			line += ": " + c.Message
		}
		fmt.Fprintln(w, line)
	}
}
