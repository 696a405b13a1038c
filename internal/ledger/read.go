package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/relgate/internal/gate"
)

// RunSummary is a journaled run.
type RunSummary struct {
	ID      string     `json:"id"`
	Seq     int64      `json:"seq"`
	Mode    gate.Mode  `json:"mode"`
	Version string     `json:"version,omitempty"`
	Tag     string     `json:"tag,omitempty"`
	State   gate.State `json:"state"`
	Reason  string     `json:"reason,omitempty"`
}

// RunDetail is a run with its checks in execution order.
type RunDetail struct {
	RunSummary
	Checks []gate.Check `json:"checks"`
}

// Runs lists the most recent runs first, at most limit of them (all when
// limit <= 0).
func (l *Ledger) Runs(ctx context.Context, limit int) ([]RunSummary, error) {
	query := `SELECT id, seq, mode, version, tag, state, reason FROM runs ORDER BY seq DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.Seq, &r.Mode, &r.Version, &r.Tag, &r.State, &r.Reason); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Run loads one run and its checks.
func (l *Ledger) Run(ctx context.Context, id string) (*RunDetail, error) {
	d := &RunDetail{}
	err := l.db.QueryRowContext(ctx,
		`SELECT id, seq, mode, version, tag, state, reason FROM runs WHERE id = ?`, id,
	).Scan(&d.ID, &d.Seq, &d.Mode, &d.Version, &d.Tag, &d.State, &d.Reason)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query run %s: %w", id, err)
	}

	rows, err := l.db.QueryContext(ctx,
		`SELECT phase, name, status, message FROM checks WHERE run_id = ? ORDER BY seq ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("query checks for run %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var c gate.Check
		if err := rows.Scan(&c.Phase, &c.Name, &c.Status, &c.Message); err != nil {
			return nil, fmt.Errorf("scan check: %w", err)
		}
		d.Checks = append(d.Checks, c)
	}
	return d, rows.Err()
}
