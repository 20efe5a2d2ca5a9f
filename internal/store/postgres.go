package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
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
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS reports (
	id           TEXT PRIMARY KEY,
	start_date   TEXT NOT NULL,
	end_date     TEXT NOT NULL,
	connectors   JSONB NOT NULL,
	markdown     TEXT NOT NULL,
	partial      BOOLEAN NOT NULL DEFAULT false,
	degraded     JSONB,
	generated_at TIMESTAMPTZ NOT NULL,
	exec_seconds INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_reports_generated_at ON reports (generated_at DESC);
`

// Migrate creates the reports table if needed.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

// SaveReport inserts or replaces a report by ID.
func (s *PostgresStore) SaveReport(ctx context.Context, r *Report) error {
	connectors, err := json.Marshal(r.Connectors)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal connectors")
	}
	degraded, err := json.Marshal(r.Degraded)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal degraded")
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO reports (id, start_date, end_date, connectors, markdown, partial, degraded, generated_at, exec_seconds)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			markdown = EXCLUDED.markdown,
			partial = EXCLUDED.partial,
			degraded = EXCLUDED.degraded,
			generated_at = EXCLUDED.generated_at,
			exec_seconds = EXCLUDED.exec_seconds`,
		r.ID, r.StartDate, r.EndDate, connectors, r.Markdown, r.Partial, degraded, r.GeneratedAt, r.ExecSeconds,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: save report %s", r.ID)
	}
	return nil
}

// GetReport fetches one report by ID.
func (s *PostgresStore) GetReport(ctx context.Context, id string) (*Report, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, start_date, end_date, connectors, markdown, partial, degraded, generated_at, exec_seconds
		FROM reports WHERE id = $1`, id)

	r, err := scanReport(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "%s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get report %s", id)
	}
	return r, nil
}

// ListReports returns reports newest first.
func (s *PostgresStore) ListReports(ctx context.Context, filter ReportFilter) ([]Report, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, start_date, end_date, connectors, markdown, partial, degraded, generated_at, exec_seconds
		FROM reports ORDER BY generated_at DESC LIMIT $1 OFFSET $2`,
		limit, max(filter.Offset, 0))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list reports")
	}
	defer rows.Close()

	var reports []Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan report")
		}
		reports = append(reports, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: list reports")
	}
	return reports, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanReport(row pgx.Row) (*Report, error) {
	var r Report
	var connectors, degraded []byte
	if err := row.Scan(&r.ID, &r.StartDate, &r.EndDate, &connectors, &r.Markdown, &r.Partial, &degraded, &r.GeneratedAt, &r.ExecSeconds); err != nil {
		return nil, err
	}
	if len(connectors) > 0 {
		if err := json.Unmarshal(connectors, &r.Connectors); err != nil {
			return nil, eris.Wrap(err, "unmarshal connectors")
		}
	}
	if len(degraded) > 0 {
		if err := json.Unmarshal(degraded, &r.Degraded); err != nil {
			return nil, eris.Wrap(err, "unmarshal degraded")
		}
	}
	return &r, nil
}
