package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
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
CREATE TABLE IF NOT EXISTS reports (
	id           TEXT PRIMARY KEY,
	start_date   TEXT NOT NULL,
	end_date     TEXT NOT NULL,
	connectors   TEXT NOT NULL,
	markdown     TEXT NOT NULL,
	partial      INTEGER NOT NULL DEFAULT 0,
	degraded     TEXT,
	generated_at DATETIME NOT NULL,
	exec_seconds INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_reports_generated_at ON reports (generated_at DESC);
`

// Migrate creates the reports table if needed.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(err, "sqlite: migrate")
	}
	return nil
}

// SaveReport inserts or replaces a report by ID.
func (s *SQLiteStore) SaveReport(ctx context.Context, r *Report) error {
	connectors, err := json.Marshal(r.Connectors)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal connectors")
	}
	degraded, err := json.Marshal(r.Degraded)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal degraded")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO reports (id, start_date, end_date, connectors, markdown, partial, degraded, generated_at, exec_seconds)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StartDate, r.EndDate, string(connectors), r.Markdown, r.Partial, string(degraded), r.GeneratedAt.UTC(), r.ExecSeconds,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save report %s", r.ID)
	}
	return nil
}

// GetReport fetches one report by ID.
func (s *SQLiteStore) GetReport(ctx context.Context, id string) (*Report, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, start_date, end_date, connectors, markdown, partial, degraded, generated_at, exec_seconds
		FROM reports WHERE id = ?`, id)

	r, err := scanSQLiteReport(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "%s", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get report %s", id)
	}
	return r, nil
}

// ListReports returns reports newest first.
func (s *SQLiteStore) ListReports(ctx context.Context, filter ReportFilter) ([]Report, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, start_date, end_date, connectors, markdown, partial, degraded, generated_at, exec_seconds
		FROM reports ORDER BY generated_at DESC LIMIT ? OFFSET ?`,
		limit, filter.Offset)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list reports")
	}
	defer rows.Close()

	var reports []Report
	for rows.Next() {
		r, err := scanSQLiteReport(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan report")
		}
		reports = append(reports, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: list reports")
	}
	return reports, nil
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanSQLiteReport(scan func(dest ...any) error) (*Report, error) {
	var r Report
	var connectors, degraded string
	var generatedAt time.Time
	if err := scan(&r.ID, &r.StartDate, &r.EndDate, &connectors, &r.Markdown, &r.Partial, &degraded, &generatedAt, &r.ExecSeconds); err != nil {
		return nil, err
	}
	r.GeneratedAt = generatedAt
	if connectors != "" {
		if err := json.Unmarshal([]byte(connectors), &r.Connectors); err != nil {
			return nil, eris.Wrap(err, "unmarshal connectors")
		}
	}
	if degraded != "" && degraded != "null" {
		if err := json.Unmarshal([]byte(degraded), &r.Degraded); err != nil {
			return nil, eris.Wrap(err, "unmarshal degraded")
		}
	}
	return &r, nil
}
