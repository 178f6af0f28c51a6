package diagnostics

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shelfwatch/ingestion-worker/common/redis"
	"github.com/shelfwatch/ingestion-worker/common/storage"
)

// Incident kinds recorded for operator attention.
const (
	KindBlocked     = "blocked"
	KindScrapeError = "scrape_error"
)

// incidentTTL keeps diagnostics around long enough for an operator to act
// on them without letting redis grow unbounded.
const incidentTTL = 72 * time.Hour

// Incident is the operator-facing record of a blocked or failed scrape.
type Incident struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Target     string    `json:"target"`
	Query      string    `json:"query"`
	PageTitle  string    `json:"page_title,omitempty"`
	Screenshot string    `json:"screenshot,omitempty"`
	PageHTML   string    `json:"page_html,omitempty"`
	Error      string    `json:"error,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Recorder captures page evidence for blocked or failed scrapes: the
// screenshot and HTML go to artifact storage, the incident record to redis
// keyed by target and query so the newest incident per query wins.
type Recorder struct {
	storage storage.StorageService
	redis   *redis.RedisClient
	bucket  string
}

// NewRecorder creates a diagnostics recorder. Both storage and redis may be
// nil (e.g. in tests); capture then degrades to logging only.
func NewRecorder(storageService storage.StorageService, redisClient *redis.RedisClient, bucket string) *Recorder {
	return &Recorder{
		storage: storageService,
		redis:   redisClient,
		bucket:  bucket,
	}
}

// Capture stores the evidence of one incident. screenshot and pageHTML may
// be empty when the page was already gone. Capture never returns an error
// to the scrape path; a diagnostic that fails to persist is only logged.
func (r *Recorder) Capture(ctx context.Context, kind, target, query string, screenshot, pageHTML []byte, cause error) {
	incident := Incident{
		ID:         uuid.New().String(),
		Kind:       kind,
		Target:     target,
		Query:      query,
		OccurredAt: time.Now().UTC(),
	}
	if cause != nil {
		incident.Error = cause.Error()
	}
	if len(pageHTML) > 0 {
		incident.PageTitle = pageTitle(pageHTML)
	}

	if r.storage != nil && r.bucket != "" {
		prefix := fmt.Sprintf("diagnostics/%s/%s", target, incident.ID)
		if len(screenshot) > 0 {
			object, err := r.storage.Upload(ctx, r.bucket, prefix+".png", screenshot, "image/png")
			if err != nil {
				log.Error().Err(err).Str("target", target).Msg("Failed to upload diagnostic screenshot")
			} else {
				incident.Screenshot = object
			}
		}
		if len(pageHTML) > 0 {
			object, err := r.storage.Upload(ctx, r.bucket, prefix+".html", pageHTML, "text/html")
			if err != nil {
				log.Error().Err(err).Str("target", target).Msg("Failed to upload diagnostic page HTML")
			} else {
				incident.PageHTML = object
			}
		}
	}

	if r.redis != nil {
		payload, err := json.Marshal(incident)
		if err == nil {
			key := IncidentKey(target, query)
			if err := r.redis.Set(ctx, key, payload, incidentTTL); err != nil {
				log.Error().Err(err).Str("key", key).Msg("Failed to record diagnostic incident")
			}
		}
	}

	log.Warn().
		Str("kind", kind).
		Str("target", target).
		Str("query", query).
		Str("incidentID", incident.ID).
		Str("pageTitle", incident.PageTitle).
		Msg("Diagnostic incident captured")
}

// IncidentKey returns the redis key for the latest incident of a query.
func IncidentKey(target, query string) string {
	return fmt.Sprintf("diagnostics:%s:%s", strings.ToLower(target), strings.ToLower(query))
}

// pageTitle extracts the <title> of a captured page, best effort.
func pageTitle(pageHTML []byte) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(pageHTML)))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}
