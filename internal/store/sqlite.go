package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/taskrouter/internal/model"
)

// SQLiteStore implements BenchmarkStore using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS benchmark_entries (
	backend_id            TEXT PRIMARY KEY,
	total_tasks           INTEGER NOT NULL DEFAULT 0,
	successful_tasks      INTEGER NOT NULL DEFAULT 0,
	avg_quality           REAL NOT NULL DEFAULT 0,
	avg_quality_error     REAL NOT NULL DEFAULT 0,
	avg_cost_error        REAL NOT NULL DEFAULT 0,
	avg_latency_error     REAL NOT NULL DEFAULT 0,
	reliability_score     REAL NOT NULL DEFAULT 0,
	prediction_confidence REAL NOT NULL DEFAULT 0,
	sample_count          INTEGER NOT NULL DEFAULT 0,
	updated_at            DATETIME NOT NULL DEFAULT (datetime('now'))
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteSelectEntry = `
SELECT backend_id, total_tasks, successful_tasks, avg_quality, avg_quality_error,
       avg_cost_error, avg_latency_error, reliability_score, prediction_confidence,
       sample_count, updated_at
FROM benchmark_entries WHERE backend_id = ?`

func (s *SQLiteStore) Get(ctx context.Context, backendID string) (*model.BenchmarkEntry, error) {
	row := s.db.QueryRowContext(ctx, sqliteSelectEntry, backendID)
	e, err := scanSQLiteEntry(row)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: get entry")
	}
	return e, nil
}

// Record folds the outcome into the backend's entry inside a transaction.
// The read-modify-write upgrades to a write lock at the upsert; a concurrent
// writer holding the lock is waited out by the connection's busy_timeout.
func (s *SQLiteStore) Record(ctx context.Context, outcome model.OutcomeRecord) (*model.BenchmarkEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, sqliteSelectEntry, outcome.SelectedBackend)
	e, err := scanSQLiteEntry(row)
	if err != nil {
		if !eris.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrap(err, "sqlite: read entry")
		}
		e = &model.BenchmarkEntry{BackendID: outcome.SelectedBackend}
	}

	applyOutcome(e, outcome)

	_, err = tx.ExecContext(ctx, `
INSERT INTO benchmark_entries (
	backend_id, total_tasks, successful_tasks, avg_quality, avg_quality_error,
	avg_cost_error, avg_latency_error, reliability_score, prediction_confidence,
	sample_count, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(backend_id) DO UPDATE SET
	total_tasks = excluded.total_tasks,
	successful_tasks = excluded.successful_tasks,
	avg_quality = excluded.avg_quality,
	avg_quality_error = excluded.avg_quality_error,
	avg_cost_error = excluded.avg_cost_error,
	avg_latency_error = excluded.avg_latency_error,
	reliability_score = excluded.reliability_score,
	prediction_confidence = excluded.prediction_confidence,
	sample_count = excluded.sample_count,
	updated_at = excluded.updated_at`,
		e.BackendID, e.TotalTasks, e.SuccessfulTasks, e.AvgQuality, e.AvgQualityError,
		e.AvgCostError, e.AvgLatencyError, e.ReliabilityScore, e.PredictionConfidence,
		e.SampleCount, e.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: upsert entry")
	}
	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit")
	}
	return e, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]model.BenchmarkEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT backend_id, total_tasks, successful_tasks, avg_quality, avg_quality_error,
       avg_cost_error, avg_latency_error, reliability_score, prediction_confidence,
       sample_count, updated_at
FROM benchmark_entries ORDER BY backend_id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list entries")
	}
	defer rows.Close()

	var out []model.BenchmarkEntry
	for rows.Next() {
		var e model.BenchmarkEntry
		var updatedAt time.Time
		err := rows.Scan(
			&e.BackendID, &e.TotalTasks, &e.SuccessfulTasks, &e.AvgQuality, &e.AvgQualityError,
			&e.AvgCostError, &e.AvgLatencyError, &e.ReliabilityScore, &e.PredictionConfidence,
			&e.SampleCount, &updatedAt,
		)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan entry")
		}
		e.UpdatedAt = updatedAt
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate entries")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteEntry(row rowScanner) (*model.BenchmarkEntry, error) {
	var e model.BenchmarkEntry
	var updatedAt time.Time
	err := row.Scan(
		&e.BackendID, &e.TotalTasks, &e.SuccessfulTasks, &e.AvgQuality, &e.AvgQualityError,
		&e.AvgCostError, &e.AvgLatencyError, &e.ReliabilityScore, &e.PredictionConfidence,
		&e.SampleCount, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.UpdatedAt = updatedAt
	return &e, nil
}
