package ledger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relgate/internal/docsync"
	"github.com/roach88/relgate/internal/gate"
	"github.com/roach88/relgate/internal/version"
)

func openTemp(t *testing.T) (*Ledger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	l, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l, path
}

func TestOpen_CreatesDatabase(t *testing.T) {
	_, path := openTemp(t)

	_, err := os.Stat(path)
	require.NoError(t, err)
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	for i := 0; i < 3; i++ {
		l, err := Open(path)
		require.NoError(t, err, "iteration %d", i)
		require.NoError(t, l.Close())
	}

	l, err := Open(path)
	require.NoError(t, err)
	defer l.Close()

	var userVersion int
	require.NoError(t, l.db.QueryRow("PRAGMA user_version").Scan(&userVersion))
	assert.Equal(t, currentSchemaVersion, userVersion)
}

func TestOpen_RejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	l, err := Open(path)
	require.NoError(t, err)
	_, err = l.db.Exec("PRAGMA user_version = 99")
	require.NoError(t, err)
	require.NoError(t, l.Close())

	_, err = Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported")
}

func TestLedger_RecordsRun(t *testing.T) {
	ctx := context.Background()
	l, _ := openTemp(t)

	require.NoError(t, l.BeginRun(ctx, "run-1", gate.ModeLive))
	require.NoError(t, l.RecordCheck(ctx, "run-1", gate.Check{Phase: gate.PhaseGate, Name: gate.GateDocSync, Status: gate.CheckStatusPass, Message: "version 0.14.2"}))
	require.NoError(t, l.RecordCheck(ctx, "run-1", gate.Check{Phase: gate.PhaseStep, Name: gate.StepPush, Status: gate.CheckStatusFail, Message: "PUSH_FAILURE: push failed"}))
	require.NoError(t, l.FinishRun(ctx, &gate.Outcome{
		RunID:   "run-1",
		Mode:    gate.ModeLive,
		Version: version.Version{Major: 0, Minor: 14, Patch: 2},
		Tag:     "v0.14.2",
		State:   gate.StateAborted,
		Reason:  "PUSH_FAILURE: push failed",
	}))

	d, err := l.Run(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, gate.ModeLive, d.Mode)
	assert.Equal(t, "0.14.2", d.Version)
	assert.Equal(t, "v0.14.2", d.Tag)
	assert.Equal(t, gate.StateAborted, d.State)
	assert.Equal(t, "PUSH_FAILURE: push failed", d.Reason)
	require.Len(t, d.Checks, 2)
	assert.Equal(t, gate.GateDocSync, d.Checks[0].Name)
	assert.Equal(t, gate.StepPush, d.Checks[1].Name)
	assert.Equal(t, gate.CheckStatusFail, d.Checks[1].Status)
}

func TestLedger_AbortBeforeVersionLeavesVersionEmpty(t *testing.T) {
	ctx := context.Background()
	l, _ := openTemp(t)

	require.NoError(t, l.BeginRun(ctx, "run-1", gate.ModeDryRun))
	require.NoError(t, l.FinishRun(ctx, &gate.Outcome{RunID: "run-1", State: gate.StateAborted, Reason: "DOC_SYNC"}))

	d, err := l.Run(ctx, "run-1")
	require.NoError(t, err)
	assert.Empty(t, d.Version)
	assert.Empty(t, d.Checks)
}

func TestLedger_UnknownRun(t *testing.T) {
	ctx := context.Background()
	l, _ := openTemp(t)

	_, err := l.Run(ctx, "missing")
	assert.True(t, errors.Is(err, ErrRunNotFound))

	err = l.FinishRun(ctx, &gate.Outcome{RunID: "missing", State: gate.StatePublished})
	assert.True(t, errors.Is(err, ErrRunNotFound))

	err = l.RecordCheck(ctx, "missing", gate.Check{Phase: gate.PhaseGate, Name: gate.GateTests, Status: gate.CheckStatusPass})
	assert.Error(t, err, "foreign key should reject checks for unknown runs")
}

func TestLedger_RunsNewestFirstWithLimit(t *testing.T) {
	ctx := context.Background()
	l, _ := openTemp(t)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, l.BeginRun(ctx, id, gate.ModeDryRun))
	}

	runs, err := l.Runs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{runs[0].ID, runs[1].ID, runs[2].ID})
	assert.Equal(t, gate.StateRunning, runs[0].State)

	runs, err = l.Runs(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
}

func TestLedger_SeqResumesAfterReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")

	l, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, l.BeginRun(ctx, "first", gate.ModeDryRun))
	require.NoError(t, l.RecordCheck(ctx, "first", gate.Check{Phase: gate.PhaseGate, Name: gate.GateDocSync, Status: gate.CheckStatusPass}))
	require.NoError(t, l.Close())

	l, err = Open(path)
	require.NoError(t, err)
	defer l.Close()
	assert.Equal(t, int64(2), l.clock.Current())

	require.NoError(t, l.BeginRun(ctx, "second", gate.ModeDryRun))
	runs, err := l.Runs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "second", runs[0].ID)
	assert.Equal(t, int64(3), runs[0].Seq)
}

func TestLedger_NormalizesMessages(t *testing.T) {
	ctx := context.Background()
	l, _ := openTemp(t)

	// "e" + combining acute accent composes to U+00E9.
	require.NoError(t, l.BeginRun(ctx, "run-1", gate.ModeDryRun))
	require.NoError(t, l.RecordCheck(ctx, "run-1", gate.Check{Phase: gate.PhaseGate, Name: gate.GateTests, Status: gate.CheckStatusFail, Message: "cafe\u0301"}))

	d, err := l.Run(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, d.Checks, 1)
	assert.Equal(t, "caf\u00e9", d.Checks[0].Message)
}

func TestLedger_RecordsGatekeeperRun(t *testing.T) {
	ctx := context.Background()
	l, _ := openTemp(t)

	gk := &gate.Gatekeeper{
		Docs:      stubDocs{v: version.Version{Major: 1, Minor: 2, Patch: 3}},
		VCS:       &stubVCS{},
		Builder:   stubBuilder{},
		Registry:  stubRegistry{},
		TagPrefix: "v",
		Recorder:  l,
		IDs:       gate.NewFixedGenerator("run-x"),
	}
	out, err := gk.Run(ctx, gate.ModeDryRun)
	require.NoError(t, err)
	assert.Equal(t, gate.StateDryRunSucceeded, out.State)

	d, err := l.Run(ctx, "run-x")
	require.NoError(t, err)
	assert.Equal(t, gate.StateDryRunSucceeded, d.State)
	assert.Equal(t, "1.2.3", d.Version)
	assert.Equal(t, "v1.2.3", d.Tag)
	assert.Len(t, d.Checks, len(out.Checks))
}

type stubDocs struct{ v version.Version }

func (s stubDocs) SyncFile(context.Context) (*docsync.Report, error) {
	return &docsync.Report{Version: s.v}, nil
}

type stubVCS struct{}

func (*stubVCS) Status(context.Context) (string, error) { return "", nil }

func (*stubVCS) TagExists(context.Context, string, gate.TagScope) (bool, error) { return false, nil }

func (*stubVCS) Push(context.Context) error { return nil }

func (*stubVCS) CreateTag(context.Context, string) error { return nil }

func (*stubVCS) PushTags(context.Context) error { return nil }

type stubBuilder struct{}

func (stubBuilder) BuildExamples(context.Context, bool) error { return nil }

func (stubBuilder) RunTests(context.Context, bool) error { return nil }

type stubRegistry struct{}

func (stubRegistry) Publish(context.Context, bool) error { return nil }
