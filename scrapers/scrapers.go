package scrapers

import (
	"context"
	"errors"

	"github.com/shelfwatch/ingestion-worker/common/models"
)

var (
	// ErrUnknownTarget marks a job naming a store no strategy handles.
	// It is a soft error: the job is dropped, the worker keeps running.
	ErrUnknownTarget = errors.New("unknown scrape target")

	// ErrBlocked marks a scrape aborted by an anti-automation challenge.
	// Retrying immediately would only burn the session further, so the
	// query is abandoned for this run.
	ErrBlocked = errors.New("blocked by anti-automation challenge")
)

// Strategy scrapes one retailer. Implementations own their transport
// (plain HTTP or a browser session) and return canonical products.
type Strategy interface {
	// Store identifies the retailer this strategy scrapes.
	Store() models.Store

	// Setup prepares long-lived resources such as a browser instance.
	Setup(ctx context.Context) error

	// Teardown releases whatever Setup acquired.
	Teardown(ctx context.Context) error

	// Scrape runs the query to exhaustion across all result pages.
	// On error the returned slice holds the products collected so far.
	Scrape(ctx context.Context, job *models.ScrapeJob) ([]models.Product, error)
}
