package db

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Run statuses for the scrape_runs audit table.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
	RunStatusBlocked   = "blocked"
)

// Queries wraps the audit-table statements. The worker only ever inserts
// and updates; reads belong to downstream tooling.
type Queries struct {
	pool *pgxpool.Pool
}

// NewQueries creates a Queries bound to a pool.
func NewQueries(pool *pgxpool.Pool) *Queries {
	return &Queries{pool: pool}
}

// CreateScrapeRunParams holds the fields for a new scrape_runs row.
type CreateScrapeRunParams struct {
	ID        string
	Target    string
	Query     string
	Status    string
	CreatedAt time.Time
}

// CreateScrapeRun records the start of a job.
func (q *Queries) CreateScrapeRun(ctx context.Context, params CreateScrapeRunParams) error {
	_, err := q.pool.Exec(ctx,
		`INSERT INTO scrape_runs (id, target, query, status, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		params.ID, params.Target, params.Query, params.Status, params.CreatedAt,
	)
	return err
}

// UpdateScrapeRunParams holds the fields recorded when a job finishes.
type UpdateScrapeRunParams struct {
	ID           string
	Status       string
	ProductCount int
	Error        pgtype.Text
	FinishedAt   time.Time
}

// UpdateScrapeRun records the outcome of a job.
func (q *Queries) UpdateScrapeRun(ctx context.Context, params UpdateScrapeRunParams) error {
	_, err := q.pool.Exec(ctx,
		`UPDATE scrape_runs
		 SET status = $2, product_count = $3, error = $4, finished_at = $5
		 WHERE id = $1`,
		params.ID, params.Status, params.ProductCount, params.Error, params.FinishedAt,
	)
	return err
}

// CreateScrapeLogParams holds the fields for a new scrape_logs row.
type CreateScrapeLogParams struct {
	ID        string
	RunID     pgtype.Text
	EventType string
	Message   pgtype.Text
	Details   json.RawMessage
	CreatedAt time.Time
}

// CreateScrapeLog stores one log event.
func (q *Queries) CreateScrapeLog(ctx context.Context, params CreateScrapeLogParams) error {
	_, err := q.pool.Exec(ctx,
		`INSERT INTO scrape_logs (id, run_id, event_type, message, details, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		params.ID, params.RunID, params.EventType, params.Message, params.Details, params.CreatedAt,
	)
	return err
}
