// Package toolchain runs the external tools a release depends on: git for
// version control and the project's build tool for metadata, builds, tests,
// benchmarks and publishing.
//
// Every call blocks until the child process exits. A non-zero exit status
// becomes a *CommandError; cancelling the context kills the child.
package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// CommandError reports a command that exited non-zero.
type CommandError struct {
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s: exit status %d", strings.Join(e.Args, " "), e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + lastLine(s)
	}
	return msg
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Executor runs commands.
type Executor interface {
	// Output runs args and returns its standard output.
	Output(ctx context.Context, args ...string) ([]byte, error)

	// Run runs args for effect. Quiet runs discard output; loud runs stream
	// it to the operator.
	Run(ctx context.Context, quiet bool, args ...string) error
}

// Runner executes commands in Dir. Loud output goes to Stdout and Stderr,
// which default to the process's own.
type Runner struct {
	Dir    string
	Env    []string // appended to the inherited environment
	Stdout io.Writer
	Stderr io.Writer
}

// NewRunner creates a Runner for dir.
func NewRunner(dir string) *Runner {
	return &Runner{Dir: dir}
}

func (r *Runner) Output(ctx context.Context, args ...string) ([]byte, error) {
	var stdout bytes.Buffer
	if err := r.exec(ctx, args, &stdout, nil); err != nil {
		return nil, err
	}
	return stdout.Bytes(), nil
}

func (r *Runner) Run(ctx context.Context, quiet bool, args ...string) error {
	if quiet {
		return r.exec(ctx, args, io.Discard, nil)
	}
	return r.exec(ctx, args, r.stdout(), r.stderr())
}

func (r *Runner) stdout() io.Writer {
	if r.Stdout != nil {
		return r.Stdout
	}
	return os.Stdout
}

func (r *Runner) stderr() io.Writer {
	if r.Stderr != nil {
		return r.Stderr
	}
	return os.Stderr
}

// exec runs args. Stderr is always captured for the CommandError and, when
// stderr is non-nil, also streamed to it.
func (r *Runner) exec(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return errors.New("toolchain: empty command")
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = r.Dir
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}

	var captured bytes.Buffer
	cmd.Stdout = stdout
	cmd.Stderr = &captured
	if stderr != nil {
		cmd.Stderr = io.MultiWriter(&captured, stderr)
	}

	err := cmd.Run()
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", args[0], ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &CommandError{
			Args:     append([]string(nil), args...),
			ExitCode: exitErr.ExitCode(),
			Stderr:   captured.String(),
		}
	}
	return fmt.Errorf("%s: %w", args[0], err)
}
