package toolchain

import (
	"bytes"
	"context"
	"errors"
	"strings"

	"github.com/roach88/relgate/internal/gate"
)

// Git implements gate.VCS with the git command line.
type Git struct {
	Exec   Executor
	Remote string
}

// NewGit creates a Git that pushes to remote.
func NewGit(exec Executor, remote string) *Git {
	return &Git{Exec: exec, Remote: remote}
}

func (g *Git) git(ctx context.Context, arg ...string) ([]byte, error) {
	return g.Exec.Output(ctx, append([]string{"git"}, arg...)...)
}

// Status returns the porcelain status listing; empty means clean.
func (g *Git) Status(ctx context.Context) (string, error) {
	b, err := g.git(ctx, "status", "--porcelain")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// TagExists checks the local tag store or the remote's advertised tags.
func (g *Git) TagExists(ctx context.Context, name string, scope gate.TagScope) (bool, error) {
	var (
		b   []byte
		err error
	)
	switch scope {
	case gate.ScopeRemote:
		b, err = g.git(ctx, "ls-remote", "--tags", g.Remote, "refs/tags/"+name)
	default:
		b, err = g.git(ctx, "tag", "--list", name)
	}
	if err != nil {
		return false, err
	}
	return len(bytes.TrimSpace(b)) > 0, nil
}

// CommonDir returns the git directory shared by all worktrees. In a linked
// worktree or a submodule .git is a file, so only git knows the path. A
// relative result is relative to the working directory of the query.
func (g *Git) CommonDir(ctx context.Context) (string, error) {
	b, err := g.git(ctx, "rev-parse", "--git-common-dir")
	if err != nil {
		return "", err
	}
	dir := strings.TrimSpace(string(b))
	if dir == "" {
		return "", errors.New("git rev-parse --git-common-dir: empty output")
	}
	return dir, nil
}

func (g *Git) Push(ctx context.Context) error {
	return g.Exec.Run(ctx, false, "git", "push", g.Remote)
}

// CreateTag creates an annotated tag at HEAD.
func (g *Git) CreateTag(ctx context.Context, name string) error {
	return g.Exec.Run(ctx, false, "git", "tag", "-m", name, name)
}

func (g *Git) PushTags(ctx context.Context) error {
	return g.Exec.Run(ctx, false, "git", "push", g.Remote, "--tags")
}

var _ gate.VCS = (*Git)(nil)
