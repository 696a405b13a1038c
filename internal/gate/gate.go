package gate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/relgate/internal/docsync"
	"github.com/roach88/relgate/internal/version"
)

// Mode selects between validation only and a real publish.
type Mode string

const (
	ModeDryRun Mode = "dry_run"
	ModeLive   Mode = "live"
)

// ModeFor maps the CLI's push flag to a Mode.
func ModeFor(push bool) Mode {
	if push {
		return ModeLive
	}
	return ModeDryRun
}

// State is the terminal state of a run.
type State string

const (
	StateRunning         State = "running"
	StatePublished       State = "published"
	StateDryRunSucceeded State = "dry_run_succeeded"
	StateAborted         State = "aborted"
)

// TagScope selects where tag existence is checked.
type TagScope string

const (
	ScopeLocal  TagScope = "local"
	ScopeRemote TagScope = "remote"
)

// Phase separates read-only gates from side-effecting steps.
type Phase string

const (
	PhaseGate Phase = "gate"
	PhaseStep Phase = "step"
)

// Gate and step names, in execution order.
const (
	GateDocSync   = "doc_sync"
	GateCleanTree = "clean_tree"
	GateLocalTag  = "tag_absent_local"
	GateRemoteTag = "tag_absent_remote"
	GateBuild     = "build_examples"
	GateTests     = "tests"
	StepValidate  = "registry_validate"
	StepPush      = "push"
	StepCreateTag = "create_tag"
	StepPushTags  = "push_tags"
	StepPublish   = "publish"
)

// Check statuses.
const (
	CheckStatusPass = "pass"
	CheckStatusFail = "fail"
)

// DocSyncer refreshes the living document on disk.
type DocSyncer interface {
	SyncFile(ctx context.Context) (*docsync.Report, error)
}

// VCS is the version-control collaborator.
type VCS interface {
	// Status lists pending changes; empty means clean.
	Status(ctx context.Context) (string, error)
	TagExists(ctx context.Context, name string, scope TagScope) (bool, error)
	Push(ctx context.Context) error
	CreateTag(ctx context.Context, name string) error
	PushTags(ctx context.Context) error
}

// Builder compiles examples and runs tests. Quiet runs suppress output;
// loud runs stream it for diagnostics.
type Builder interface {
	BuildExamples(ctx context.Context, quiet bool) error
	RunTests(ctx context.Context, quiet bool) error
}

// Registry publishes the package. A dry run validates without uploading.
type Registry interface {
	Publish(ctx context.Context, dryRun bool) error
}

// Check is the outcome of one gate or step.
type Check struct {
	Phase   Phase  `json:"phase"`
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Outcome describes a finished run.
type Outcome struct {
	RunID   string          `json:"run_id"`
	Mode    Mode            `json:"mode"`
	Version version.Version `json:"version"`
	Tag     string          `json:"tag,omitempty"`
	State   State           `json:"state"`
	Reason  string          `json:"reason,omitempty"`
	Checks  []Check         `json:"checks"`
	Err     error           `json:"-"`
}

// Recorder journals a run as it progresses.
type Recorder interface {
	BeginRun(ctx context.Context, runID string, mode Mode) error
	RecordCheck(ctx context.Context, runID string, c Check) error
	FinishRun(ctx context.Context, o *Outcome) error
}

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) BeginRun(context.Context, string, Mode) error { return nil }

func (NopRecorder) RecordCheck(context.Context, string, Check) error { return nil }

func (NopRecorder) FinishRun(context.Context, *Outcome) error { return nil }

// Gatekeeper wires the collaborators of a release run.
type Gatekeeper struct {
	Docs     DocSyncer
	VCS      VCS
	Builder  Builder
	Registry Registry

	// TagPrefix is prepended to the version to form the tag name.
	TagPrefix string

	Recorder Recorder
	IDs      RunIDGenerator
}

// Run executes the gates and, depending on mode, the validation or publish
// sequence. The returned error is the abort reason (also in Outcome.Err);
// a nil Outcome means the run could not start.
func (g *Gatekeeper) Run(ctx context.Context, mode Mode) (*Outcome, error) {
	ids := g.IDs
	if ids == nil {
		ids = UUIDv7Generator{}
	}
	rec := g.Recorder
	if rec == nil {
		rec = NopRecorder{}
	}

	r := &run{
		g:   g,
		rec: rec,
		out: &Outcome{RunID: ids.Generate(), Mode: mode, State: StateRunning},
	}
	if err := rec.BeginRun(ctx, r.out.RunID, mode); err != nil {
		return nil, fmt.Errorf("begin run: %w", err)
	}
	slog.Info("release run started", "run", r.out.RunID, "mode", mode)

	if err := r.execute(ctx); err != nil {
		r.out.State = StateAborted
		r.out.Reason = err.Error()
		r.out.Err = err
	}

	if err := rec.FinishRun(context.WithoutCancel(ctx), r.out); err != nil {
		slog.Warn("failed to journal run outcome", "run", r.out.RunID, "error", err)
	}
	slog.Info("release run finished", "run", r.out.RunID, "state", r.out.State)
	return r.out, r.out.Err
}

type run struct {
	g   *Gatekeeper
	rec Recorder
	out *Outcome
}

func (r *run) execute(ctx context.Context) error {
	if err := r.gates(ctx); err != nil {
		return err
	}
	if r.out.Mode == ModeDryRun {
		return r.validate(ctx)
	}
	return r.publish(ctx)
}

func (r *run) gates(ctx context.Context) error {
	g := r.g

	report, err := g.Docs.SyncFile(ctx)
	if err != nil {
		return r.fail(ctx, PhaseGate, GateDocSync, newError(ErrCodeDocSync, "documentation sync failed", err))
	}
	r.out.Version = report.Version
	r.out.Tag = g.TagPrefix + report.Version.String()
	r.pass(ctx, PhaseGate, GateDocSync, "version "+report.Version.String())

	status, err := g.VCS.Status(ctx)
	if err != nil {
		return r.fail(ctx, PhaseGate, GateCleanTree, newError(ErrCodeVCSQuery, "could not read working tree status", err))
	}
	if strings.TrimSpace(status) != "" {
		return r.fail(ctx, PhaseGate, GateCleanTree, newError(ErrCodeUncommittedChanges,
			"working tree has uncommitted changes, commit them first", nil))
	}
	r.pass(ctx, PhaseGate, GateCleanTree, "")

	for _, scope := range []TagScope{ScopeLocal, ScopeRemote} {
		name := GateLocalTag
		if scope == ScopeRemote {
			name = GateRemoteTag
		}
		exists, err := g.VCS.TagExists(ctx, r.out.Tag, scope)
		if err != nil {
			return r.fail(ctx, PhaseGate, name, newError(ErrCodeVCSQuery, "could not check tag "+r.out.Tag, err))
		}
		if exists {
			e := newError(ErrCodeDuplicateTag, fmt.Sprintf("tag %s already exists, bump the version", r.out.Tag), nil)
			e.Scope = string(scope)
			return r.fail(ctx, PhaseGate, name, e)
		}
		r.pass(ctx, PhaseGate, name, "")
	}

	if err := g.Builder.BuildExamples(ctx, true); err != nil {
		r.diagnose("build", func() error { return g.Builder.BuildExamples(ctx, false) })
		return r.fail(ctx, PhaseGate, GateBuild, newError(ErrCodeBuildFailure, "examples failed to build", err))
	}
	r.pass(ctx, PhaseGate, GateBuild, "")

	if err := g.Builder.RunTests(ctx, true); err != nil {
		r.diagnose("tests", func() error { return g.Builder.RunTests(ctx, false) })
		return r.fail(ctx, PhaseGate, GateTests, newError(ErrCodeTestFailure, "tests failed", err))
	}
	r.pass(ctx, PhaseGate, GateTests, "")
	return nil
}

// diagnose repeats a failed quiet run loudly so its output reaches the
// operator. Its result does not change the outcome.
func (r *run) diagnose(what string, loud func() error) {
	slog.Info("re-running for diagnostics", "what", what)
	if err := loud(); err != nil {
		slog.Debug("diagnostic run failed", "what", what, "error", err)
	}
}

func (r *run) validate(ctx context.Context) error {
	if err := r.g.Registry.Publish(ctx, true); err != nil {
		return r.fail(ctx, PhaseStep, StepValidate, newError(ErrCodePublish, "registry validation failed", err))
	}
	r.pass(ctx, PhaseStep, StepValidate, "dry run, pass --push to publish")
	r.out.State = StateDryRunSucceeded
	return nil
}

func (r *run) publish(ctx context.Context) error {
	g := r.g
	steps := []struct {
		name string
		do   func() error
		code ErrorCode
		msg  string
	}{
		{StepPush, func() error { return g.VCS.Push(ctx) }, ErrCodePushFailure, "push failed"},
		{StepCreateTag, func() error { return g.VCS.CreateTag(ctx, r.out.Tag) }, ErrCodeTagCreation, "could not create tag " + r.out.Tag},
		{StepPushTags, func() error { return g.VCS.PushTags(ctx) }, ErrCodePushFailure, "pushing tags failed"},
		{StepPublish, func() error { return g.Registry.Publish(ctx, false) }, ErrCodePublish, "publish failed"},
	}

	for _, s := range steps {
		slog.Info("executing publish step", "step", s.name)
		if err := s.do(); err != nil {
			e := newError(s.code, s.msg, err)
			e.Scope = s.name
			return r.fail(ctx, PhaseStep, s.name, e)
		}
		r.pass(ctx, PhaseStep, s.name, "")
	}
	r.out.State = StatePublished
	return nil
}

func (r *run) pass(ctx context.Context, phase Phase, name, msg string) {
	r.record(ctx, Check{Phase: phase, Name: name, Status: CheckStatusPass, Message: msg})
}

func (r *run) fail(ctx context.Context, phase Phase, name string, err *Error) error {
	r.record(ctx, Check{Phase: phase, Name: name, Status: CheckStatusFail, Message: err.Error()})
	return err
}

// record journals c even when ctx is already cancelled.
func (r *run) record(ctx context.Context, c Check) {
	r.out.Checks = append(r.out.Checks, c)
	if err := r.rec.RecordCheck(context.WithoutCancel(ctx), r.out.RunID, c); err != nil {
		slog.Warn("failed to journal check", "run", r.out.RunID, "check", c.Name, "error", err)
	}
}
