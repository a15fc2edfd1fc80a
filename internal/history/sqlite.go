package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/panelopt/panelopt/internal/solver"
)

const createEvaluations = `CREATE TABLE IF NOT EXISTS evaluations (
	run_id     TEXT    NOT NULL,
	seq        INTEGER NOT NULL,
	outputs    TEXT    NOT NULL,
	design     TEXT    NOT NULL,
	created_at TEXT    NOT NULL,
	PRIMARY KEY (run_id, seq)
)`

// SQLiteSink mirrors the history into an SQLite table so several runs can be
// queried together.
type SQLiteSink struct {
	db    *sql.DB
	runID string
	now   func() time.Time
}

// OpenSQLite opens (or creates) the database at path. Use ":memory:" for a
// throwaway database.
func OpenSQLite(ctx context.Context, path, runID string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, createEvaluations); err != nil {
		db.Close()
		return nil, fmt.Errorf("create evaluations table: %w", err)
	}
	return &SQLiteSink{db: db, runID: runID, now: time.Now}, nil
}

// Append implements Sink. Re-appending an evaluation already stored for the
// run is a no-op.
func (s *SQLiteSink) Append(e Entry) error {
	_, err := s.db.ExecContext(context.Background(),
		`INSERT OR IGNORE INTO evaluations (run_id, seq, outputs, design, created_at) VALUES (?, ?, ?, ?, ?)`,
		s.runID, e.Sequence, strings.Join(e.Fields, ","), solver.FormatRecord(e.Design),
		s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert evaluation %d: %w", e.Sequence, err)
	}
	return nil
}

// Count returns the number of evaluations stored for the run.
func (s *SQLiteSink) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM evaluations WHERE run_id = ?`, s.runID).Scan(&n)
	return n, err
}

// Runs lists the run ids present in the database.
func (s *SQLiteSink) Runs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT run_id FROM evaluations ORDER BY run_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Entries loads the stored evaluations of the run in sequence order.
func (s *SQLiteSink) Entries(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, outputs, design FROM evaluations WHERE run_id = ? ORDER BY seq`, s.runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			outputs string
			design  string
		)
		if err := rows.Scan(&e.Sequence, &outputs, &design); err != nil {
			return nil, err
		}
		e.Fields = solver.SplitRecord(outputs)
		if design != "" {
			if e.Design, err = solver.ParseRecord(design); err != nil {
				return nil, fmt.Errorf("evaluation %d design: %w", e.Sequence, err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close implements Sink.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
