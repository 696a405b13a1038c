package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relgate/internal/gate"
	"github.com/roach88/relgate/internal/testutil"
)

// scriptedExec answers commands from canned outputs and records them.
type scriptedExec struct {
	tr      *testutil.Tracer
	outputs map[string]string
	fail    map[string]error
}

func newScriptedExec() *scriptedExec {
	s := &scriptedExec{tr: &testutil.Tracer{}, outputs: map[string]string{}, fail: map[string]error{}}
	s.outputs["cargo pkgid"] = "path+file:///src/my_crate#my_crate@1.2.3\n"
	return s
}

func (s *scriptedExec) Output(_ context.Context, args ...string) ([]byte, error) {
	key := strings.Join(args, " ")
	s.tr.Record(key)
	if err := s.fail[key]; err != nil {
		return nil, err
	}
	return []byte(s.outputs[key]), nil
}

func (s *scriptedExec) Run(_ context.Context, quiet bool, args ...string) error {
	key := strings.Join(args, " ")
	s.tr.Record(key)
	return s.fail[key]
}

const testReadme = `# my_crate

<!--install instruction start-->
<!--install instruction end-->

<!--readme_example.rs start-->
<!--readme_example.rs end-->
`

const testBenchOutput = `running 2 tests
test create_empty_sparse_set ... bench:          12 ns/iter (+/- 1)
test create_empty_vec        ... bench:           3 ns/iter (+/- 0)
`

func setupProject(t *testing.T, config string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "examples"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte(testReadme), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "examples", "readme_example.rs"), []byte("fn main() {}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".relgate.yaml"), []byte(config), 0o644))
	return dir
}

const testConfig = `package: my_crate
ledger: ledger.db
benchmark:
  results: bench_output.txt
`

func execute(t *testing.T, opts *RootOptions, dir string, args ...string) (string, error) {
	t.Helper()
	stdout := &bytes.Buffer{}
	cmd := NewRootCommandWithOptions(opts)
	cmd.SetOut(stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--config", filepath.Join(dir, ".relgate.yaml")}, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func TestPublish_DryRun(t *testing.T) {
	dir := setupProject(t, testConfig)
	fx := newScriptedExec()
	opts := &RootOptions{Executor: fx, RunIDs: gate.NewFixedGenerator("run-1")}

	out, err := execute(t, opts, dir, "publish")
	require.NoError(t, err)
	assert.Contains(t, out, "Release run run-1 (dry_run)")
	assert.Contains(t, out, "Version 1.2.3, tag v1.2.3")
	assert.Contains(t, out, "Dry run succeeded")

	assert.True(t, fx.tr.Has("cargo publish --dry-run"))
	assert.False(t, fx.tr.Has("git push origin"))

	readme, err := os.ReadFile(filepath.Join(dir, "README.md"))
	require.NoError(t, err)
	assert.Contains(t, string(readme), `my_crate = "1.2"`)
	assert.Contains(t, string(readme), "```rust\nfn main() {}\n```")
}

func TestPublish_PushRunsStepsInOrder(t *testing.T) {
	dir := setupProject(t, testConfig)
	fx := newScriptedExec()
	opts := &RootOptions{Executor: fx, RunIDs: gate.NewFixedGenerator("run-1")}

	out, err := execute(t, opts, dir, "publish", "--push")
	require.NoError(t, err)
	assert.Contains(t, out, "Published v1.2.3.")

	push := fx.tr.Index("git push origin")
	tag := fx.tr.Index("git tag -m v1.2.3 v1.2.3")
	pushTags := fx.tr.Index("git push origin --tags")
	publish := fx.tr.Index("cargo publish")
	require.True(t, push >= 0 && tag >= 0 && pushTags >= 0 && publish >= 0, "calls: %v", fx.tr.Calls())
	assert.Less(t, push, tag)
	assert.Less(t, tag, pushTags)
	assert.Less(t, pushTags, publish)
	assert.False(t, fx.tr.Has("cargo publish --dry-run"))
}

func TestPublish_DirtyTreeFails(t *testing.T) {
	dir := setupProject(t, testConfig)
	fx := newScriptedExec()
	fx.outputs["git status --porcelain"] = " M src/lib.rs\n"
	opts := &RootOptions{Executor: fx, RunIDs: gate.NewFixedGenerator("run-1")}

	out, err := execute(t, opts, dir, "publish")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ gate clean_tree")
	assert.Contains(t, out, "Error [UNCOMMITTED_CHANGES]: working tree has uncommitted changes")
	assert.False(t, fx.tr.Has("cargo build --examples --quiet"))
}

func TestPublish_JSONFailure(t *testing.T) {
	dir := setupProject(t, testConfig)
	fx := newScriptedExec()
	fx.outputs["git ls-remote --tags origin refs/tags/v1.2.3"] = "abc123\trefs/tags/v1.2.3\n"
	opts := &RootOptions{Executor: fx, RunIDs: gate.NewFixedGenerator("run-1")}

	out, err := execute(t, opts, dir, "--format", "json", "publish")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			RunID string `json:"run_id"`
			State string `json:"state"`
			Tag   string `json:"tag"`
		} `json:"data"`
		Error *CLIError `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "run-1", resp.Data.RunID)
	assert.Equal(t, "aborted", resp.Data.State)
	assert.Equal(t, "v1.2.3", resp.Data.Tag)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "DUPLICATE_TAG", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "(remote)")
}

func TestPublish_BadConfig(t *testing.T) {
	dir := setupProject(t, "remote: \"\"\n")

	_, err := execute(t, &RootOptions{Executor: newScriptedExec()}, dir, "publish")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load config")
}

func TestPublish_JournalsToHistory(t *testing.T) {
	dir := setupProject(t, testConfig)
	fx := newScriptedExec()
	fx.fail["cargo test --quiet"] = errors.New("exit status 101")
	opts := &RootOptions{Executor: fx, RunIDs: gate.NewFixedGenerator("run-1", "run-2")}

	_, err := execute(t, opts, dir, "publish")
	require.Error(t, err)

	delete(fx.fail, "cargo test --quiet")
	_, err = execute(t, opts, dir, "publish")
	require.NoError(t, err)

	out, err := execute(t, opts, dir, "history")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "run-2"), lines[0])
	assert.Contains(t, lines[0], "dry_run_succeeded")
	assert.True(t, strings.HasPrefix(lines[1], "run-1"), lines[1])
	assert.Contains(t, lines[1], "aborted")

	out, err = execute(t, opts, dir, "history", "--run", "run-1")
	require.NoError(t, err)
	assert.Contains(t, out, "State: aborted")
	assert.Contains(t, out, "✓ gate build_examples")
	assert.Contains(t, out, "✗ gate tests")

	// The failed quiet test run is repeated loudly for diagnostics.
	assert.True(t, fx.tr.Has("cargo test"))
}

func TestHistory_JSON(t *testing.T) {
	dir := setupProject(t, testConfig)
	opts := &RootOptions{Executor: newScriptedExec(), RunIDs: gate.NewFixedGenerator("run-1")}

	out, err := execute(t, opts, dir, "--format", "json", "history")
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   []json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Empty(t, resp.Data)
}

func TestHistory_UnknownRun(t *testing.T) {
	dir := setupProject(t, testConfig)

	_, err := execute(t, &RootOptions{Executor: newScriptedExec()}, dir, "history", "--run", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no run with ID nope")
}

func TestHistory_LedgerDisabled(t *testing.T) {
	dir := setupProject(t, "ledger: \"\"\n")

	_, err := execute(t, &RootOptions{Executor: newScriptedExec()}, dir, "history")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSync_UpdatesThenReportsUpToDate(t *testing.T) {
	dir := setupProject(t, testConfig)
	opts := &RootOptions{Executor: newScriptedExec()}

	out, err := execute(t, opts, dir, "sync")
	require.NoError(t, err)
	assert.Contains(t, out, "README.md at version 1.2.3")
	assert.Contains(t, out, "updated   install instruction")
	assert.Contains(t, out, "not_found badges")
	assert.Contains(t, out, "Updated README.md.")

	out, err = execute(t, opts, dir, "sync")
	require.NoError(t, err)
	assert.Contains(t, out, "README.md is up to date.")
}

func TestSync_MetadataFailure(t *testing.T) {
	dir := setupProject(t, testConfig)
	fx := newScriptedExec()
	fx.outputs["cargo pkgid"] = "not a package id"

	_, err := execute(t, &RootOptions{Executor: fx}, dir, "sync")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "documentation sync failed")
}

func TestBench_WritesResultsAndTable(t *testing.T) {
	dir := setupProject(t, testConfig)
	fx := newScriptedExec()
	fx.outputs["cargo run --example bench --release"] = testBenchOutput

	out, err := execute(t, &RootOptions{Executor: fx}, dir, "bench", "--table")
	require.NoError(t, err)
	assert.Contains(t, out, "| Benchmark | `SparseSet<String>` |")
	assert.Contains(t, out, "| Create empty | 12 ns ±1 | 3 ns ±0 |")
	assert.Contains(t, out, "Wrote 2 benchmark record(s) to bench_output.txt")

	raw, err := os.ReadFile(filepath.Join(dir, "bench_output.txt"))
	require.NoError(t, err)
	assert.Equal(t, testBenchOutput, string(raw))
}

func TestBench_HarnessFailure(t *testing.T) {
	dir := setupProject(t, testConfig)
	fx := newScriptedExec()
	fx.fail["cargo run --example bench --release"] = errors.New("exit status 101")

	_, err := execute(t, &RootOptions{Executor: fx}, dir, "bench")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	_, statErr := os.Stat(filepath.Join(dir, "bench_output.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

// In a linked worktree or submodule .git is a file pointing elsewhere.
func setupWorktree(t *testing.T) string {
	t.Helper()
	dir := setupProject(t, "package: my_crate\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".git"), []byte("gitdir: /src/main/.git/worktrees/wt\n"), 0o644))
	return dir
}

func TestPublish_WorktreeJournalsInCommonGitDir(t *testing.T) {
	dir := setupWorktree(t)
	common := t.TempDir()
	fx := newScriptedExec()
	fx.outputs["git rev-parse --git-common-dir"] = common + "\n"
	opts := &RootOptions{Executor: fx, RunIDs: gate.NewFixedGenerator("run-1")}

	out, err := execute(t, opts, dir, "publish")
	require.NoError(t, err)
	assert.Contains(t, out, "Dry run succeeded")

	_, err = os.Stat(filepath.Join(common, "relgate.db"))
	require.NoError(t, err)

	out, err = execute(t, opts, dir, "history")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "run-1"), out)
	assert.Contains(t, out, "dry_run_succeeded")
}

func TestPublish_RelativeGitDirResolvesAgainstProject(t *testing.T) {
	dir := setupProject(t, "package: my_crate\n")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))
	fx := newScriptedExec()
	fx.outputs["git rev-parse --git-common-dir"] = ".git\n"
	opts := &RootOptions{Executor: fx, RunIDs: gate.NewFixedGenerator("run-1")}

	_, err := execute(t, opts, dir, "publish")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, ".git", "relgate.db"))
	require.NoError(t, err)
}

func TestPublish_UnknownGitDirSkipsJournaling(t *testing.T) {
	dir := setupWorktree(t)
	fx := newScriptedExec()
	fx.fail["git rev-parse --git-common-dir"] = errors.New("exit status 128")
	opts := &RootOptions{Executor: fx, RunIDs: gate.NewFixedGenerator("run-1")}

	out, err := execute(t, opts, dir, "publish")
	require.NoError(t, err)
	assert.Contains(t, out, "Dry run succeeded")
	assert.True(t, fx.tr.Has("cargo publish --dry-run"))

	_, err = execute(t, opts, dir, "history")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "run ledger is not available")
}

func TestBench_RewriteKeepsResultsPermissions(t *testing.T) {
	dir := setupProject(t, testConfig)
	path := filepath.Join(dir, "bench_output.txt")
	require.NoError(t, os.WriteFile(path, []byte("stale\n"), 0o600))
	fx := newScriptedExec()
	fx.outputs["cargo run --example bench --release"] = testBenchOutput

	_, err := execute(t, &RootOptions{Executor: fx}, dir, "bench")
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, testBenchOutput, string(raw))
}
