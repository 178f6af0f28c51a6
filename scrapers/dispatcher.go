package scrapers

import (
	"context"
	"fmt"
	"strings"

	"github.com/shelfwatch/ingestion-worker/common/models"
)

// Dispatcher routes a job to the strategy registered for its target.
type Dispatcher struct {
	strategies map[string]Strategy
}

// NewDispatcher registers the given strategies, keyed by store name.
func NewDispatcher(strategies ...Strategy) *Dispatcher {
	d := &Dispatcher{
		strategies: make(map[string]Strategy, len(strategies)),
	}
	for _, s := range strategies {
		d.strategies[strings.ToLower(string(s.Store()))] = s
	}
	return d
}

// Dispatch matches the job target case-insensitively and runs the scrape.
// An unrecognized target yields an empty product list and ErrUnknownTarget.
func (d *Dispatcher) Dispatch(ctx context.Context, job *models.ScrapeJob) ([]models.Product, error) {
	strategy, ok := d.strategies[strings.ToLower(job.Target)]
	if !ok {
		return []models.Product{}, fmt.Errorf("%w: %q", ErrUnknownTarget, job.Target)
	}
	return strategy.Scrape(ctx, job)
}
