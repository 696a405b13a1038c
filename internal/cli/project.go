package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/relgate/internal/config"
	"github.com/roach88/relgate/internal/docsync"
	"github.com/roach88/relgate/internal/ledger"
	"github.com/roach88/relgate/internal/toolchain"
	"github.com/roach88/relgate/internal/version"
)

// project bundles the collaborators every command builds from the config.
type project struct {
	cfg  *config.Config
	tool *toolchain.BuildTool
	git  *toolchain.Git
	docs *docsync.Synchronizer
}

func loadProject(opts *RootOptions, cmd *cobra.Command) (*project, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	exec := opts.Executor
	if exec == nil {
		runner := toolchain.NewRunner(cfg.Dir)
		// Child output stays off stdout so --format json remains parseable.
		runner.Stdout = cmd.ErrOrStderr()
		runner.Stderr = cmd.ErrOrStderr()
		exec = runner
	}

	tool := toolchain.NewBuildTool(exec, cfg.Commands)
	return &project{
		cfg:  cfg,
		tool: tool,
		git:  toolchain.NewGit(exec, cfg.Remote),
		docs: docsync.New(&version.Resolver{Source: tool}, cfg.Files(), cfg.SyncOptions()),
	}, nil
}

// openLedger opens the run journal. It returns nil when journaling is
// disabled, or when the ledger belongs in a git directory that git cannot
// locate.
func (p *project) openLedger(ctx context.Context) (*ledger.Ledger, error) {
	path, ok := p.ledgerPath(ctx)
	if !ok {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to create ledger directory", err)
	}
	l, err := ledger.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("failed to open ledger %s", path), err)
	}
	return l, nil
}

func (p *project) ledgerPath(ctx context.Context) (string, bool) {
	rel, inGitDir := strings.CutPrefix(filepath.ToSlash(p.cfg.Ledger), config.GitDirPrefix)
	if !inGitDir {
		path := p.cfg.Resolve(p.cfg.Ledger)
		return path, path != ""
	}

	gitDir, err := p.git.CommonDir(ctx)
	if err != nil {
		slog.Warn("cannot locate git directory, run journaling disabled", "error", err)
		return "", false
	}
	return filepath.Join(p.cfg.Resolve(gitDir), filepath.FromSlash(rel)), true
}

// commandContext returns the command's context, or Background when the
// command was executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
