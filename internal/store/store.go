// Package store persists generated reports so the API can serve report
// history without regenerating. Three drivers exist: postgres for shared
// deployments, sqlite for single-host installs, memory for tests and
// ephemeral use.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
)

// ErrNotFound is returned when a report ID has no stored report.
var ErrNotFound = eris.New("store: report not found")

// Report is one persisted report-generation result.
type Report struct {
	ID          string    `json:"id"`
	StartDate   string    `json:"startDate"`
	EndDate     string    `json:"endDate"`
	Connectors  []string  `json:"connectors"`
	Markdown    string    `json:"markdown"`
	Partial     bool      `json:"partial"`
	Degraded    []string  `json:"degraded,omitempty"`
	GeneratedAt time.Time `json:"generatedAt"`
	ExecSeconds int       `json:"executionTimeSeconds"`
}

// ReportFilter narrows ListReports.
type ReportFilter struct {
	Limit  int
	Offset int
}

// Store is the report persistence interface.
type Store interface {
	SaveReport(ctx context.Context, r *Report) error
	GetReport(ctx context.Context, id string) (*Report, error)
	ListReports(ctx context.Context, filter ReportFilter) ([]Report, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open constructs a Store for the configured driver. An empty driver or
// "memory" yields the in-memory store.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, dsn)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}
