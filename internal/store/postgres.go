package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/taskrouter/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses, satisfied by pgxmock
// in tests.
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresStore implements BenchmarkStore using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS benchmark_entries (
	backend_id            TEXT PRIMARY KEY,
	total_tasks           BIGINT NOT NULL DEFAULT 0,
	successful_tasks      BIGINT NOT NULL DEFAULT 0,
	avg_quality           DOUBLE PRECISION NOT NULL DEFAULT 0,
	avg_quality_error     DOUBLE PRECISION NOT NULL DEFAULT 0,
	avg_cost_error        DOUBLE PRECISION NOT NULL DEFAULT 0,
	avg_latency_error     DOUBLE PRECISION NOT NULL DEFAULT 0,
	reliability_score     DOUBLE PRECISION NOT NULL DEFAULT 0,
	prediction_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	sample_count          BIGINT NOT NULL DEFAULT 0,
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

const pgSelectEntry = `
SELECT backend_id, total_tasks, successful_tasks, avg_quality, avg_quality_error,
       avg_cost_error, avg_latency_error, reliability_score, prediction_confidence,
       sample_count, updated_at
FROM benchmark_entries WHERE backend_id = $1`

func (s *PostgresStore) Get(ctx context.Context, backendID string) (*model.BenchmarkEntry, error) {
	row := s.pool.QueryRow(ctx, pgSelectEntry, backendID)
	e, err := scanPGEntry(row)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get entry")
	}
	return e, nil
}

// Record reads, folds and writes the backend's entry inside one transaction
// with a row lock, serializing concurrent updates per backend.
func (s *PostgresStore) Record(ctx context.Context, outcome model.OutcomeRecord) (*model.BenchmarkEntry, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin")
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, pgSelectEntry+" FOR UPDATE", outcome.SelectedBackend)
	e, err := scanPGEntry(row)
	if err != nil {
		if !eris.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrap(err, "postgres: read entry")
		}
		e = &model.BenchmarkEntry{BackendID: outcome.SelectedBackend}
	}

	applyOutcome(e, outcome)

	_, err = tx.Exec(ctx, `
INSERT INTO benchmark_entries (
	backend_id, total_tasks, successful_tasks, avg_quality, avg_quality_error,
	avg_cost_error, avg_latency_error, reliability_score, prediction_confidence,
	sample_count, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (backend_id) DO UPDATE SET
	total_tasks = EXCLUDED.total_tasks,
	successful_tasks = EXCLUDED.successful_tasks,
	avg_quality = EXCLUDED.avg_quality,
	avg_quality_error = EXCLUDED.avg_quality_error,
	avg_cost_error = EXCLUDED.avg_cost_error,
	avg_latency_error = EXCLUDED.avg_latency_error,
	reliability_score = EXCLUDED.reliability_score,
	prediction_confidence = EXCLUDED.prediction_confidence,
	sample_count = EXCLUDED.sample_count,
	updated_at = EXCLUDED.updated_at`,
		e.BackendID, e.TotalTasks, e.SuccessfulTasks, e.AvgQuality, e.AvgQualityError,
		e.AvgCostError, e.AvgLatencyError, e.ReliabilityScore, e.PredictionConfidence,
		e.SampleCount, e.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: upsert entry")
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit")
	}
	return e, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]model.BenchmarkEntry, error) {
	rows, err := s.pool.Query(ctx, `
SELECT backend_id, total_tasks, successful_tasks, avg_quality, avg_quality_error,
       avg_cost_error, avg_latency_error, reliability_score, prediction_confidence,
       sample_count, updated_at
FROM benchmark_entries ORDER BY backend_id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list entries")
	}
	defer rows.Close()

	var out []model.BenchmarkEntry
	for rows.Next() {
		e, err := scanPGEntry(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan entry")
		}
		out = append(out, *e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate entries")
}

func scanPGEntry(row pgx.Row) (*model.BenchmarkEntry, error) {
	var e model.BenchmarkEntry
	err := row.Scan(
		&e.BackendID, &e.TotalTasks, &e.SuccessfulTasks, &e.AvgQuality, &e.AvgQualityError,
		&e.AvgCostError, &e.AvgLatencyError, &e.ReliabilityScore, &e.PredictionConfidence,
		&e.SampleCount, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
