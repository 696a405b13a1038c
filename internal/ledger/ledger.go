// Package ledger journals release runs to SQLite.
//
// Publish steps cannot be rolled back, so after a failed live run the
// operator needs to know exactly which steps completed. The ledger records
// every gate and step outcome as it happens, keyed by run ID.
package ledger

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/relgate/internal/gate"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - runs and checks tables
const currentSchemaVersion = 1

// ErrRunNotFound is returned when a run ID is unknown.
var ErrRunNotFound = errors.New("run not found")

// Ledger is a SQLite-backed gate.Recorder.
type Ledger struct {
	db    *sql.DB
	clock *Clock
}

// Open creates or opens the ledger database at path.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to ledger: %w", err)
	}

	// Single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	var last int64
	err = db.QueryRow(`SELECT COALESCE(MAX(seq), 0) FROM (
		SELECT seq FROM runs UNION ALL SELECT seq FROM checks
	)`).Scan(&last)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read last seq: %w", err)
	}

	return &Ledger{db: db, clock: NewClockAt(last)}, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("ledger schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// BeginRun inserts a run in the running state.
func (l *Ledger) BeginRun(ctx context.Context, runID string, mode gate.Mode) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (id, seq, mode, state) VALUES (?, ?, ?, ?)`,
		runID, l.clock.Next(), string(mode), string(gate.StateRunning))
	if err != nil {
		return fmt.Errorf("insert run %s: %w", runID, err)
	}
	return nil
}

// RecordCheck appends a gate or step outcome to a run.
func (l *Ledger) RecordCheck(ctx context.Context, runID string, c gate.Check) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO checks (seq, run_id, phase, name, status, message) VALUES (?, ?, ?, ?, ?, ?)`,
		l.clock.Next(), runID, string(c.Phase), c.Name, c.Status, norm.NFC.String(c.Message))
	if err != nil {
		return fmt.Errorf("insert check %s for run %s: %w", c.Name, runID, err)
	}
	return nil
}

// FinishRun stores the terminal state of a run.
func (l *Ledger) FinishRun(ctx context.Context, o *gate.Outcome) error {
	res, err := l.db.ExecContext(ctx,
		`UPDATE runs SET version = ?, tag = ?, state = ?, reason = ? WHERE id = ?`,
		versionString(o), o.Tag, string(o.State), norm.NFC.String(o.Reason), o.RunID)
	if err != nil {
		return fmt.Errorf("update run %s: %w", o.RunID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update run %s: %w", o.RunID, err)
	}
	if n == 0 {
		return fmt.Errorf("update run %s: %w", o.RunID, ErrRunNotFound)
	}
	return nil
}

// A run aborted during doc sync has no version.
func versionString(o *gate.Outcome) string {
	if o.Tag == "" {
		return ""
	}
	return o.Version.String()
}

var _ gate.Recorder = (*Ledger)(nil)
