// Package store persists scenario results in a local SQLite database,
// optionally encrypted with SQLCipher.
package store

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kuitang/clinicprobe/internal/errs"
	"github.com/kuitang/clinicprobe/internal/runner"
	"github.com/kuitang/clinicprobe/internal/scenario"
)

const (
	// MaxOpenConns bounds the pool. SQLite is single-writer, so high
	// connection counts are counterproductive.
	MaxOpenConns = 4

	// MaxIdleConns is the number of idle connections kept open
	MaxIdleConns = 2

	// KeySize is the SQLCipher key size in bytes
	KeySize = 32
)

// Run is one stored scenario run.
type Run struct {
	RunID        string
	SuiteID      string
	Scenario     string
	Fingerprint  string
	Outcome      runner.Outcome
	Code         errs.Code
	Message      string
	SoftFailures int
	FinalURL     string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Passed reports whether the run passed.
func (r Run) Passed() bool {
	return r.Outcome == runner.Passed
}

// Store is the results database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the results database at path. A non-empty key
// opens it encrypted; the same key must be used on every open.
func Open(path string, key []byte) (*Store, error) {
	if path == "" {
		return nil, errors.New("store: path cannot be empty")
	}
	if len(key) != 0 && len(key) != KeySize {
		return nil, fmt.Errorf("store: key must be exactly %d bytes, got %d", KeySize, len(key))
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("store: create data directory: %w", err)
		}
	}

	dsn := path
	if len(key) > 0 {
		dsn = fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", path, hex.EncodeToString(key))
	}
	dsn = appendSQLiteParams(dsn, sqliteCommonParams())

	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(MaxOpenConns)
	db.SetMaxIdleConns(MaxIdleConns)

	// Reading the schema fails when the key is wrong.
	var tables int
	if err := db.QueryRow("SELECT count(*) FROM sqlite_master").Scan(&tables); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: verify %s (wrong key?): %w", path, err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: initialize schema: %w", err)
	}
	return &Store{db: db}, nil
}

// DB returns the underlying sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordResult stores res and its steps under suiteID.
func (s *Store) RecordResult(ctx context.Context, suiteID string, res runner.Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, suite_id, scenario, fingerprint, outcome, code, message,
		                  soft_failures, final_url, started_at, finished_at)
		VALUES (?, ?, ?, lower(hex(sha3(?, 256))), ?, ?, ?, ?, ?, ?, ?)`,
		res.RunID, suiteID, res.Scenario, fingerprintSource(res.Steps),
		string(res.Outcome), string(res.Code), res.Message,
		res.SoftFailures, res.FinalURL, res.StartedAt.UnixNano(), res.FinishedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("store: insert run %s: %w", res.RunID, err)
	}

	for _, sr := range res.Steps {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO step_results (run_id, step_index, kind, description, value, status,
			                          soft_failures, duration_ns, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			res.RunID, sr.Index, string(sr.Kind), sr.Description, sr.Value, string(sr.Status),
			sr.SoftFailures, int64(sr.Duration), sr.Error,
		)
		if err != nil {
			return fmt.Errorf("store: insert step %d of run %s: %w", sr.Index, res.RunID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit run %s: %w", res.RunID, err)
	}
	return nil
}

// fingerprintSource is the text hashed into a run's fingerprint.
func fingerprintSource(steps []runner.StepResult) string {
	parts := make([]string, len(steps))
	for i, sr := range steps {
		parts[i] = sr.Description
	}
	return strings.Join(parts, "\n")
}

const runColumns = `run_id, suite_id, scenario, fingerprint, outcome, code, message,
	soft_failures, final_url, started_at, finished_at`

// RecentRuns returns up to limit runs of any scenario, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: recent runs: %w", err)
	}
	return scanRuns(rows)
}

// History returns up to limit runs of scenarioName, newest first.
func (s *Store) History(ctx context.Context, scenarioName string, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE scenario = ? ORDER BY started_at DESC, run_id LIMIT ?`,
		scenarioName, limit)
	if err != nil {
		return nil, fmt.Errorf("store: history of %s: %w", scenarioName, err)
	}
	return scanRuns(rows)
}

// Steps returns the stored steps of a run in order.
func (s *Store) Steps(ctx context.Context, runID string) ([]runner.StepResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT step_index, kind, description, value, status, soft_failures, duration_ns, error
		FROM step_results WHERE run_id = ? ORDER BY step_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("store: steps of %s: %w", runID, err)
	}
	defer rows.Close()

	var out []runner.StepResult
	for rows.Next() {
		var sr runner.StepResult
		var kind, status string
		var dur int64
		if err := rows.Scan(&sr.Index, &kind, &sr.Description, &sr.Value, &status, &sr.SoftFailures, &dur, &sr.Error); err != nil {
			return nil, fmt.Errorf("store: scan step: %w", err)
		}
		sr.Kind = scenario.Kind(kind)
		sr.Status = runner.StepStatus(status)
		sr.Duration = time.Duration(dur)
		out = append(out, sr)
	}
	return out, rows.Err()
}

// IsFlaky reports whether the last window runs of scenarioName with its
// current step list disagree on the outcome. Fewer than two runs are never
// flaky.
func (s *Store) IsFlaky(ctx context.Context, scenarioName string, window int) (bool, error) {
	if window < 2 {
		return false, nil
	}
	var distinct, total int
	err := s.db.QueryRowContext(ctx, `
		WITH latest AS (
			SELECT fingerprint FROM runs WHERE scenario = ?
			ORDER BY started_at DESC, run_id LIMIT 1
		), recent AS (
			SELECT outcome FROM runs
			WHERE scenario = ? AND fingerprint = (SELECT fingerprint FROM latest)
			ORDER BY started_at DESC, run_id LIMIT ?
		)
		SELECT count(DISTINCT outcome), count(*) FROM recent`,
		scenarioName, scenarioName, window,
	).Scan(&distinct, &total)
	if err != nil {
		return false, fmt.Errorf("store: flakiness of %s: %w", scenarioName, err)
	}
	return total >= 2 && distinct > 1, nil
}

func scanRuns(rows *sql.Rows) ([]Run, error) {
	defer rows.Close()
	var out []Run
	for rows.Next() {
		var r Run
		var outcome, code string
		var started, finished int64
		if err := rows.Scan(&r.RunID, &r.SuiteID, &r.Scenario, &r.Fingerprint, &outcome, &code,
			&r.Message, &r.SoftFailures, &r.FinalURL, &started, &finished); err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		r.Outcome = runner.Outcome(outcome)
		r.Code = errs.Code(code)
		r.StartedAt = time.Unix(0, started).UTC()
		r.FinishedAt = time.Unix(0, finished).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func sqliteCommonParams() string {
	// WAL + NORMAL gives good throughput for concurrent scenario writers.
	return "_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on"
}

func appendSQLiteParams(dsn, params string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&" + params
	}
	return dsn + "?" + params
}
