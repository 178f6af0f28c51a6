package scrapers

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog/log"
	"github.com/shelfwatch/ingestion-worker/common/db"
	"github.com/shelfwatch/ingestion-worker/common/logger"
	"github.com/shelfwatch/ingestion-worker/common/messaging"
	"github.com/shelfwatch/ingestion-worker/common/models"
)

// Service runs one scrape job end to end: audit row, dispatch, publish.
// It implements messaging.JobHandler. Every failure mode is recorded and
// returned as a plain error; the service itself never panics the worker.
type Service struct {
	dispatcher *Dispatcher
	queries    *db.Queries
	logs       *logger.LogService
	publisher  messaging.ProductPublisher
}

// NewService wires the job service. queries, logs and publisher may each be
// nil, in which case the corresponding side effect is skipped.
func NewService(dispatcher *Dispatcher, queries *db.Queries, logs *logger.LogService, publisher messaging.ProductPublisher) *Service {
	return &Service{
		dispatcher: dispatcher,
		queries:    queries,
		logs:       logs,
		publisher:  publisher,
	}
}

// Handle processes one scrape job. Partial results are published even when
// the scrape ends in an error, so a block on page five still yields the
// first four pages downstream.
func (s *Service) Handle(ctx context.Context, job *models.ScrapeJob) error {
	runID := uuid.Must(uuid.NewV7()).String()

	s.recordRunStart(ctx, runID, job)

	products, scrapeErr := s.dispatcher.Dispatch(ctx, job)

	status := db.RunStatusCompleted
	switch {
	case scrapeErr == nil:
		if s.logs != nil {
			_ = s.logs.RunCompleted(ctx, runID, len(products))
		}
	case errors.Is(scrapeErr, ErrBlocked):
		status = db.RunStatusBlocked
		if s.logs != nil {
			_ = s.logs.RunBlocked(ctx, runID, job.Target)
		}
	default:
		status = db.RunStatusFailed
		if s.logs != nil {
			_ = s.logs.RunFailed(ctx, runID, len(products), scrapeErr)
		}
	}

	if len(products) > 0 && s.publisher != nil {
		batch := &models.ProductBatch{
			RunID:     runID,
			Target:    job.Target,
			Query:     job.Query,
			Products:  products,
			ScrapedAt: time.Now().UTC(),
		}
		if err := s.publisher.Publish(ctx, batch); err != nil {
			log.Error().Err(err).Str("runID", runID).Msg("Failed to publish product batch")
			if scrapeErr == nil {
				status = db.RunStatusFailed
				scrapeErr = err
			}
		}
	}

	s.recordRunFinish(ctx, runID, status, len(products), scrapeErr)

	return scrapeErr
}

func (s *Service) recordRunStart(ctx context.Context, runID string, job *models.ScrapeJob) {
	log.Info().
		Str("runID", runID).
		Str("target", job.Target).
		Str("query", job.Query).
		Msg("Starting scrape run")

	if s.queries != nil {
		err := s.queries.CreateScrapeRun(ctx, db.CreateScrapeRunParams{
			ID:        runID,
			Target:    job.Target,
			Query:     job.Query,
			Status:    db.RunStatusRunning,
			CreatedAt: time.Now(),
		})
		if err != nil {
			log.Error().Err(err).Str("runID", runID).Msg("Failed to record scrape run start")
		}
	}
	if s.logs != nil {
		_ = s.logs.RunStarted(ctx, runID, job.Target, job.Query)
	}
}

func (s *Service) recordRunFinish(ctx context.Context, runID, status string, productCount int, cause error) {
	event := log.Info()
	if status != db.RunStatusCompleted {
		event = log.Warn().Err(cause)
	}
	event.
		Str("runID", runID).
		Str("status", status).
		Int("products", productCount).
		Msg("Scrape run finished")

	if s.queries == nil {
		return
	}

	var errText pgtype.Text
	if cause != nil {
		errText = pgtype.Text{String: cause.Error(), Valid: true}
	}
	err := s.queries.UpdateScrapeRun(ctx, db.UpdateScrapeRunParams{
		ID:           runID,
		Status:       status,
		ProductCount: productCount,
		Error:        errText,
		FinishedAt:   time.Now(),
	})
	if err != nil {
		log.Error().Err(err).Str("runID", runID).Msg("Failed to record scrape run outcome")
	}
}
