// Package config loads .relgate.yaml.
//
// The file is optional. Keys that are present override the built-in
// defaults, which describe a cargo crate published from the repository
// root. Unknown keys are rejected, and the merged result is validated
// against an embedded CUE schema.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/relgate/internal/bench"
	"github.com/roach88/relgate/internal/docsync"
	"github.com/roach88/relgate/internal/toolchain"
)

// GitDirPrefix marks a project path as relative to the git directory.
const GitDirPrefix = ".git/"

// DefaultFile is looked up in the working directory when no path is given.
const DefaultFile = ".relgate.yaml"

//go:embed schema.cue
var schemaCUE string

// Config is the release configuration of one project.
type Config struct {
	Package  string `yaml:"package" json:"package"`
	Document string `yaml:"document" json:"document"`
	Remote   string `yaml:"remote" json:"remote"`

	// TagPrefix is prepended to the version to name release tags.
	TagPrefix string `yaml:"tag_prefix" json:"tag_prefix"`

	// Ledger is the run journal database. Empty disables journaling. A
	// path under GitDirPrefix lives in the repository's git directory,
	// wherever git keeps it.
	Ledger string `yaml:"ledger" json:"ledger"`

	Examples  Examples           `yaml:"examples" json:"examples"`
	Benchmark Benchmark          `yaml:"benchmark" json:"benchmark"`
	Commands  toolchain.Commands `yaml:"commands" json:"commands"`

	// Dir is the project root: the directory holding the config file, or
	// the working directory when there is none.
	Dir string `yaml:"-" json:"-"`
}

// Examples locates the example sources embedded in the document.
type Examples struct {
	Dir       string `yaml:"dir" json:"dir"`
	Extension string `yaml:"extension" json:"extension"`
	Fence     string `yaml:"fence" json:"fence"`
	FirstOnly bool   `yaml:"first_only" json:"first_only"`
}

// Benchmark configures the harness output file and the published table.
type Benchmark struct {
	// Results is the raw harness output. Empty disables the table.
	Results string       `yaml:"results" json:"results"`
	Layout  bench.Layout `yaml:"layout" json:"layout"`
	Matrix  bench.Matrix `yaml:"matrix" json:"matrix"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Package:   "sparse_set_container",
		Document:  "README.md",
		Remote:    "origin",
		TagPrefix: "v",
		// Inside the git directory so the journal never dirties the tree.
		Ledger: GitDirPrefix + "relgate.db",
		Examples: Examples{
			Dir:       "examples",
			Extension: "rs",
			Fence:     "rust",
		},
		Benchmark: Benchmark{
			Results: "bench_output.txt",
			Layout:  bench.BencherLayout,
			Matrix:  bench.DefaultMatrix(),
		},
		Commands: toolchain.CargoCommands(),
		Dir:      ".",
	}
}

// Load reads the config at path. An empty path means DefaultFile, which
// may be absent; an explicit path must exist.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			cfg := Default()
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Dir = filepath.Dir(path)
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ValidationError reports the first schema violation.
type ValidationError struct {
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return "invalid config: " + e.Message
	}
	return fmt.Sprintf("invalid config: %s: %s", e.Path, e.Message)
}

// Validate checks the config against the embedded schema.
func (c *Config) Validate() error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compiling config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	val := ctx.Encode(c)
	if err := val.Err(); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := def.Unify(val).Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}
	return nil
}

func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &ValidationError{Message: err.Error()}
	}

	first := errs[0]
	path := first.Path()
	// Drop the leading "#Config" selector.
	if len(path) > 0 && path[0] == "#Config" {
		path = path[1:]
	}
	format, args := first.Msg()
	return &ValidationError{
		Path:    strings.Join(path, "."),
		Message: fmt.Sprintf(format, args...),
	}
}

// Resolve makes a project-relative path absolute against Dir. Empty stays
// empty.
func (c *Config) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Dir, path)
}

// Files returns the project's file store.
func (c *Config) Files() docsync.DirFiles {
	return docsync.DirFiles{Root: c.Dir}
}

// SyncOptions returns the documentation synchronizer settings.
func (c *Config) SyncOptions() docsync.Options {
	return docsync.Options{
		Package:          c.Package,
		Document:         c.Document,
		ExamplesDir:      c.Examples.Dir,
		Extension:        c.Examples.Extension,
		Fence:            c.Examples.Fence,
		FirstExampleOnly: c.Examples.FirstOnly,
		BenchmarkResults: c.Benchmark.Results,
		BenchmarkLayout:  c.Benchmark.Layout,
		Matrix:           c.Benchmark.Matrix,
	}
}
