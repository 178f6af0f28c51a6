package logger

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shelfwatch/ingestion-worker/common/db"
)

// ScrapeLogHook implements zerolog.Hook and mirrors Info+ events into the
// scrape_logs table so operators can audit a run without shell access.
type ScrapeLogHook struct {
	db *db.DB
}

// NewScrapeLogHook creates a new log hook
func NewScrapeLogHook(db *db.DB) *ScrapeLogHook {
	return &ScrapeLogHook{
		db: db,
	}
}

// Run implements zerolog.Hook.Run
func (h *ScrapeLogHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	if level < zerolog.InfoLevel {
		return
	}

	event := LogEvent{
		Message:   msg,
		EventType: level.String(),
	}

	// Asynchronous so logging never blocks the pipeline.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := h.logToDatabase(ctx, event); err != nil {
			// Plain logger here to avoid recursing through the hook.
			log.Error().Err(err).Msg("Failed to log to database via hook")
		}
	}()
}

func (h *ScrapeLogHook) logToDatabase(ctx context.Context, event LogEvent) error {
	var detailsJSON json.RawMessage
	if event.Details != nil {
		var err error
		detailsJSON, err = json.Marshal(event.Details)
		if err != nil {
			detailsJSON = json.RawMessage("{}")
		}
	} else {
		detailsJSON = json.RawMessage("{}")
	}

	return h.db.Queries.CreateScrapeLog(ctx, db.CreateScrapeLogParams{
		ID:        uuid.New().String(),
		RunID:     pgtype.Text{String: event.RunID, Valid: event.RunID != ""},
		EventType: event.EventType,
		Message:   pgtype.Text{String: event.Message, Valid: event.Message != ""},
		Details:   detailsJSON,
		CreatedAt: time.Now(),
	})
}

// LogEvent represents a log event
type LogEvent struct {
	RunID     string
	EventType string
	Message   string
	Details   interface{}
}

// InitializeLogging attaches the database hook to the global logger.
func InitializeLogging(db *db.DB) {
	hook := NewScrapeLogHook(db)
	log.Logger = log.Logger.Hook(hook)
}

// LogService provides structured run-lifecycle logging to the database.
type LogService struct {
	db *db.DB
}

// NewLogService creates a new log service
func NewLogService(db *db.DB) *LogService {
	return &LogService{
		db: db,
	}
}

// Log creates a log entry in the database
func (s *LogService) Log(ctx context.Context, event LogEvent) error {
	var detailsJSON json.RawMessage
	if event.Details != nil {
		var err error
		detailsJSON, err = json.Marshal(event.Details)
		if err != nil {
			log.Error().Err(err).Msg("Failed to marshal log details")
			detailsJSON = json.RawMessage("{}")
		}
	} else {
		detailsJSON = json.RawMessage("{}")
	}

	params := db.CreateScrapeLogParams{
		ID:        uuid.New().String(),
		RunID:     pgtype.Text{String: event.RunID, Valid: event.RunID != ""},
		EventType: event.EventType,
		Message:   pgtype.Text{String: event.Message, Valid: event.Message != ""},
		Details:   detailsJSON,
		CreatedAt: time.Now(),
	}

	if err := s.db.Queries.CreateScrapeLog(ctx, params); err != nil {
		log.Error().Err(err).Msg("Failed to insert log into database")
		return err
	}

	return nil
}

// RunStarted logs the start of a scrape run
func (s *LogService) RunStarted(ctx context.Context, runID, target, query string) error {
	return s.Log(ctx, LogEvent{
		RunID:     runID,
		EventType: "run.started",
		Message:   "Scrape run started",
		Details: map[string]interface{}{
			"target": target,
			"query":  query,
		},
	})
}

// RunCompleted logs the completion of a scrape run
func (s *LogService) RunCompleted(ctx context.Context, runID string, productCount int) error {
	return s.Log(ctx, LogEvent{
		RunID:     runID,
		EventType: "run.completed",
		Message:   "Scrape run completed",
		Details: map[string]interface{}{
			"product_count": productCount,
		},
	})
}

// RunFailed logs a failed scrape run, keeping the partial product count.
func (s *LogService) RunFailed(ctx context.Context, runID string, productCount int, cause error) error {
	return s.Log(ctx, LogEvent{
		RunID:     runID,
		EventType: "run.failed",
		Message:   "Scrape run failed",
		Details: map[string]interface{}{
			"product_count": productCount,
			"error":         cause.Error(),
		},
	})
}

// RunBlocked logs a run aborted by an anti-automation challenge.
func (s *LogService) RunBlocked(ctx context.Context, runID, target string) error {
	return s.Log(ctx, LogEvent{
		RunID:     runID,
		EventType: "run.blocked",
		Message:   "Scrape run blocked by anti-automation challenge",
		Details: map[string]interface{}{
			"target": target,
		},
	})
}
