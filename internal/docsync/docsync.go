// Package docsync keeps the project README in step with the code.
//
// A sync pass rewrites a fixed set of marker blocks:
//
//   - install instruction: dependency snippet pinned to major.minor
//   - badges: registry and docs badges linking the exact version
//   - {example}.{ext}: the trimmed source of examples/{example}.{ext}
//   - benchmark table: rendered from the raw benchmark results, if present
//
// A missing block or a missing benchmark results file is logged and skipped.
// Unreadable or undecodable inputs and metadata failures abort the pass.
package docsync

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/roach88/relgate/internal/bench"
	"github.com/roach88/relgate/internal/document"
	"github.com/roach88/relgate/internal/version"
)

// Fixed blocks.
var (
	InstallBlock   = document.Named("install instruction")
	BadgesBlock    = document.Named("badges")
	BenchmarkBlock = document.Named("benchmark table")
)

// VersionResolver yields the version of the package being released.
type VersionResolver interface {
	Resolve(ctx context.Context) (version.Version, error)
}

// Options controls what a sync pass reads and how it renders.
type Options struct {
	Package  string
	Document string

	ExamplesDir string
	Extension   string // without the dot, e.g. "rs"
	Fence       string // code fence language, e.g. "rust"

	// FirstExampleOnly stops after the first example block that was found.
	// Older tooling behaved this way; keep it for output comparisons.
	FirstExampleOnly bool

	// BenchmarkResults is the raw harness output file. Empty disables the
	// benchmark table.
	BenchmarkResults string
	BenchmarkLayout  bench.Layout
	Matrix           bench.Matrix
}

// BlockStatus is the outcome for one block.
type BlockStatus string

const (
	StatusUpdated   BlockStatus = "updated"
	StatusUnchanged BlockStatus = "unchanged"
	StatusNotFound  BlockStatus = "not_found"
	StatusSkipped   BlockStatus = "skipped"
)

// BlockResult records what happened to a block.
type BlockResult struct {
	Block  string      `json:"block"`
	Status BlockStatus `json:"status"`
	Detail string      `json:"detail,omitempty"`
}

// Report summarizes a sync pass.
type Report struct {
	Version version.Version `json:"version"`
	Blocks  []BlockResult   `json:"blocks"`
	Changed bool            `json:"changed"`
}

// Status returns the recorded status of a block.
func (r *Report) Status(block string) (BlockStatus, bool) {
	for _, b := range r.Blocks {
		if b.Block == block {
			return b.Status, true
		}
	}
	return "", false
}

func (r *Report) add(block string, status BlockStatus, detail string) {
	r.Blocks = append(r.Blocks, BlockResult{Block: block, Status: status, Detail: detail})
	if status == StatusUpdated {
		r.Changed = true
	}
}

// Synchronizer rewrites the document's marker blocks.
type Synchronizer struct {
	Resolver VersionResolver
	Files    Files
	Options  Options
}

// New creates a Synchronizer.
func New(resolver VersionResolver, files Files, opts Options) *Synchronizer {
	return &Synchronizer{Resolver: resolver, Files: files, Options: opts}
}

// SyncFile reads the configured document, synchronizes it and writes it back
// if anything changed.
func (s *Synchronizer) SyncFile(ctx context.Context) (*Report, error) {
	raw, err := s.Files.ReadFile(s.Options.Document)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.Options.Document, err)
	}
	text, err := document.Decode(s.Options.Document, raw)
	if err != nil {
		return nil, err
	}

	out, report, err := s.Sync(ctx, document.Document(text))
	if err != nil {
		return nil, err
	}

	if string(out) == text {
		report.Changed = false
		return report, nil
	}
	report.Changed = true
	data := []byte(out)
	if document.HasBOM(raw) {
		data = append([]byte(document.BOM), data...)
	}
	if err := s.Files.WriteFile(s.Options.Document, data); err != nil {
		return nil, fmt.Errorf("write %s: %w", s.Options.Document, err)
	}
	slog.Info("document updated", "path", s.Options.Document)
	return report, nil
}

// Sync returns doc with every recognized block refreshed.
func (s *Synchronizer) Sync(ctx context.Context, doc document.Document) (document.Document, *Report, error) {
	v, err := s.Resolver.Resolve(ctx)
	if err != nil {
		return doc, nil, err
	}
	slog.Info("resolved version", "version", v.String())

	report := &Report{Version: v}

	doc = s.apply(doc, report, InstallBlock, InstallSnippet(s.Options.Package, v))
	doc = s.apply(doc, report, BadgesBlock, BadgeLinks(s.Options.Package, v))

	doc, err = s.syncExamples(doc, report)
	if err != nil {
		return doc, nil, err
	}

	doc, err = s.syncBenchmarks(doc, report)
	if err != nil {
		return doc, nil, err
	}

	return doc, report, nil
}

func (s *Synchronizer) apply(doc document.Document, report *Report, b document.Block, content string) document.Document {
	old, ok := document.Contents(doc, b)
	if !ok {
		slog.Warn("block not found", "block", b.Name)
		report.add(b.Name, StatusNotFound, "")
		return doc
	}
	if old == content {
		report.add(b.Name, StatusUnchanged, "")
		return doc
	}
	out, _ := document.ReplaceBlock(doc, b, content)
	slog.Debug("block updated", "block", b.Name)
	report.add(b.Name, StatusUpdated, "")
	return out
}

func (s *Synchronizer) syncExamples(doc document.Document, report *Report) (document.Document, error) {
	ext := "." + s.Options.Extension
	names := document.FindBlocks(doc, ext)
	slog.Debug("found example blocks", "examples", names)

	for _, name := range names {
		b := document.Named(name + ext)
		if _, _, ok := document.Locate(doc, b); !ok {
			slog.Warn("block not found", "block", b.Name)
			report.add(b.Name, StatusNotFound, "")
			continue
		}

		src := path.Join(s.Options.ExamplesDir, name+ext)
		raw, err := s.Files.ReadFile(src)
		if err != nil {
			return doc, fmt.Errorf("read example %s: %w", src, err)
		}
		code, err := document.Decode(src, raw)
		if err != nil {
			return doc, err
		}

		doc = s.apply(doc, report, b, CodeFence(s.Options.Fence, code))
		if s.Options.FirstExampleOnly {
			break
		}
	}
	return doc, nil
}

func (s *Synchronizer) syncBenchmarks(doc document.Document, report *Report) (document.Document, error) {
	name := BenchmarkBlock.Name
	results := s.Options.BenchmarkResults
	if results == "" {
		report.add(name, StatusSkipped, "no benchmark results configured")
		return doc, nil
	}

	exists, err := s.Files.Exists(results)
	if err != nil {
		return doc, fmt.Errorf("stat %s: %w", results, err)
	}
	if !exists {
		slog.Info("benchmark results not found, skipping benchmark table", "path", results)
		report.add(name, StatusSkipped, results+" not found")
		return doc, nil
	}

	if _, _, ok := document.Locate(doc, BenchmarkBlock); !ok {
		slog.Warn("block not found", "block", name)
		report.add(name, StatusNotFound, "")
		return doc, nil
	}

	raw, err := s.Files.ReadFile(results)
	if err != nil {
		return doc, fmt.Errorf("read %s: %w", results, err)
	}
	records, err := bench.ParseReport(raw, s.Options.BenchmarkLayout)
	if err != nil {
		return doc, err
	}
	slog.Debug("parsed benchmark results", "records", len(records))

	table := bench.Render(records, s.Options.Matrix)
	return s.apply(doc, report, BenchmarkBlock, "\n"+strings.TrimSpace(table)+"\n"), nil
}

// InstallSnippet is the dependency declaration pinned to major.minor.
func InstallSnippet(pkg string, v version.Version) string {
	return fmt.Sprintf("\n```toml\n[dependencies]\n%s = \"%s\"\n```\n", pkg, v.Short())
}

// BadgeLinks links the registry page and API docs of the exact version.
func BadgeLinks(pkg string, v version.Version) string {
	return fmt.Sprintf("\n[![crates.io](https://img.shields.io/crates/v/%[1]s.svg)](https://crates.io/crates/%[1]s/%[2]s)"+
		" [![docs.rs](https://docs.rs/%[1]s/badge.svg)](https://docs.rs/%[1]s/%[2]s)\n", pkg, v.String())
}

// CodeFence wraps trimmed source in a fenced code block.
func CodeFence(lang, code string) string {
	return "\n```" + lang + "\n" + strings.TrimSpace(code) + "\n```\n"
}
