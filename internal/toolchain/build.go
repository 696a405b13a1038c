package toolchain

import (
	"context"
	"strings"

	"github.com/roach88/relgate/internal/gate"
)

// Commands are the build tool invocations, each an argv.
type Commands struct {
	Metadata      []string `yaml:"metadata" json:"metadata"`
	BuildExamples []string `yaml:"build_examples" json:"build_examples"`
	Test          []string `yaml:"test" json:"test"`
	Publish       []string `yaml:"publish" json:"publish"`
	Bench         []string `yaml:"bench" json:"bench"`

	// QuietFlag is appended to quiet builds and test runs.
	QuietFlag string `yaml:"quiet_flag" json:"quiet_flag"`

	// DryRunFlag is appended to Publish for registry validation.
	DryRunFlag string `yaml:"dry_run_flag" json:"dry_run_flag"`
}

// CargoCommands drives a Rust crate with cargo.
func CargoCommands() Commands {
	return Commands{
		Metadata:      []string{"cargo", "pkgid"},
		BuildExamples: []string{"cargo", "build", "--examples"},
		Test:          []string{"cargo", "test"},
		Publish:       []string{"cargo", "publish"},
		Bench:         []string{"cargo", "run", "--example", "bench", "--release"},
		QuietFlag:     "--quiet",
		DryRunFlag:    "--dry-run",
	}
}

// BuildTool implements the build, test, registry and metadata collaborators.
type BuildTool struct {
	Exec     Executor
	Commands Commands
}

// NewBuildTool creates a BuildTool.
func NewBuildTool(exec Executor, cmds Commands) *BuildTool {
	return &BuildTool{Exec: exec, Commands: cmds}
}

// PackageID returns the package identity string, e.g. "path+file:///src/pkg#0.3.1".
func (t *BuildTool) PackageID(ctx context.Context) (string, error) {
	b, err := t.Exec.Output(ctx, t.Commands.Metadata...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func (t *BuildTool) BuildExamples(ctx context.Context, quiet bool) error {
	return t.Exec.Run(ctx, quiet, t.withQuiet(t.Commands.BuildExamples, quiet)...)
}

func (t *BuildTool) RunTests(ctx context.Context, quiet bool) error {
	return t.Exec.Run(ctx, quiet, t.withQuiet(t.Commands.Test, quiet)...)
}

// Publish uploads the package, or only validates it when dryRun is set.
// Output is always streamed.
func (t *BuildTool) Publish(ctx context.Context, dryRun bool) error {
	args := append([]string(nil), t.Commands.Publish...)
	if dryRun && t.Commands.DryRunFlag != "" {
		args = append(args, t.Commands.DryRunFlag)
	}
	return t.Exec.Run(ctx, false, args...)
}

// RunBenchmarks runs the benchmark harness and returns its raw output.
func (t *BuildTool) RunBenchmarks(ctx context.Context) ([]byte, error) {
	return t.Exec.Output(ctx, t.Commands.Bench...)
}

func (t *BuildTool) withQuiet(args []string, quiet bool) []string {
	out := append([]string(nil), args...)
	if quiet && t.Commands.QuietFlag != "" {
		out = append(out, t.Commands.QuietFlag)
	}
	return out
}

var (
	_ gate.Builder  = (*BuildTool)(nil)
	_ gate.Registry = (*BuildTool)(nil)
)
