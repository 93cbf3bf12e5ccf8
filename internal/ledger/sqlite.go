package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

var _ Recorder = (*SQLite)(nil)

// SQLite stores the ledger in a SQLite database file.
type SQLite struct {
	db *sql.DB
	mu sync.Mutex
}

// OpenSQLite opens (or creates) the database at path and runs migrations.
func OpenSQLite(ctx context.Context, path string, log *zap.Logger) (*SQLite, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	l := &SQLite{db: db}
	if err := l.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info("ledger opened", zap.String("path", path))
	return l, nil
}

func (l *SQLite) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at  INTEGER NOT NULL,
			finished_at INTEGER,
			format      TEXT NOT NULL,
			total       INTEGER NOT NULL,
			succeeded   INTEGER,
			skipped     INTEGER,
			failed      INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS outcomes (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id      INTEGER NOT NULL REFERENCES runs(id),
			ticker      TEXT NOT NULL,
			status      TEXT NOT NULL,
			object_key  TEXT,
			error       TEXT,
			recorded_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_outcomes_run ON outcomes(run_id, status)`,
	}

	for _, s := range stmts {
		if _, err := l.db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:30], err)
		}
	}
	return nil
}

func (l *SQLite) BeginRun(ctx context.Context, format string, total int) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	res, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (started_at, format, total) VALUES (?,?,?)`,
		time.Now().Unix(), format, total,
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	return res.LastInsertId()
}

func (l *SQLite) RecordOutcome(ctx context.Context, runID int64, o Outcome) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO outcomes (run_id, ticker, status, object_key, error, recorded_at)
		VALUES (?,?,?,?,?,?)`,
		runID, o.Ticker, string(o.Status), o.Key, o.Err, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert outcome %s: %w", o.Ticker, err)
	}
	return nil
}

func (l *SQLite) FinishRun(ctx context.Context, runID int64, s Stats) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, succeeded = ?, skipped = ?, failed = ? WHERE id = ?`,
		time.Now().Unix(), s.Succeeded, s.Skipped, s.Failed, runID,
	)
	if err != nil {
		return fmt.Errorf("finish run %d: %w", runID, err)
	}
	return nil
}

func (l *SQLite) LastFailures(ctx context.Context) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var runID int64
	err := l.db.QueryRowContext(ctx, `SELECT id FROM runs ORDER BY id DESC LIMIT 1`).Scan(&runID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query last run: %w", err)
	}

	rows, err := l.db.QueryContext(ctx,
		`SELECT ticker FROM outcomes WHERE run_id = ? AND status = ? ORDER BY id`,
		runID, string(StatusFailed),
	)
	if err != nil {
		return nil, fmt.Errorf("query failures: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Runs returns up to limit recorded runs, newest first.
func (l *SQLite) Runs(ctx context.Context, limit int) ([]Run, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := l.db.QueryContext(ctx,
		`SELECT id, started_at, COALESCE(finished_at, 0), format, total,
			COALESCE(succeeded, 0), COALESCE(skipped, 0), COALESCE(failed, 0)
		FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r                 Run
			started, finished int64
		)
		if err := rows.Scan(&r.ID, &started, &finished, &r.Format, &r.Stats.Total,
			&r.Stats.Succeeded, &r.Stats.Skipped, &r.Stats.Failed); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = time.Unix(started, 0)
		if finished > 0 {
			r.FinishedAt = time.Unix(finished, 0)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (l *SQLite) Close() error {
	return l.db.Close()
}
