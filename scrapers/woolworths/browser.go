package woolworths

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog/log"
	"github.com/shelfwatch/ingestion-worker/common/models"
)

const (
	homepageURL  = "https://www.woolworths.com.au"
	searchAPIURL = "https://www.woolworths.com.au/apis/ui/Search/products"
)

// searchScript performs the search call inside the page so it carries the
// session cookies and origin the API demands.
const searchScript = `async (url, body) => {
	const response = await fetch(url, {
		method: 'POST',
		headers: { 'Content-Type': 'application/json' },
		body: body,
	});
	if (!response.ok) {
		throw new Error('search API responded with status ' + response.status);
	}
	return response.json();
}`

// session abstracts the browser so pagination, classification and
// enrichment are testable without Chrome.
type session interface {
	establish(ctx context.Context) error
	fetchPage(ctx context.Context, query string, filters []models.Filter, pageNumber int) (*searchResponse, error)
	close()
}

type rodSession struct {
	page    *rod.Page
	timeout time.Duration
}

func newRodSession(browser *rod.Browser, userAgent string, timeout time.Duration) (*rodSession, error) {
	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("creating page: %w", err)
	}
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: userAgent}); err != nil {
		return nil, fmt.Errorf("setting user agent: %w", err)
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width: 1920, Height: 1080, DeviceScaleFactor: 1,
	}); err != nil {
		return nil, fmt.Errorf("setting viewport: %w", err)
	}
	return &rodSession{page: page, timeout: timeout}, nil
}

// establish loads the homepage once so the in-page API calls run with a
// real session behind them.
func (s *rodSession) establish(ctx context.Context) error {
	page := s.page.Context(ctx)
	if err := page.Timeout(s.timeout).Navigate(homepageURL); err != nil {
		return fmt.Errorf("establishing session: %w", err)
	}
	return nil
}

func (s *rodSession) fetchPage(ctx context.Context, query string, filters []models.Filter, pageNumber int) (*searchResponse, error) {
	if filters == nil {
		filters = []models.Filter{}
	}
	body, err := json.Marshal(searchRequest{
		SearchTerm: query,
		PageNumber: pageNumber,
		PageSize:   pageSize,
		SortType:   "TraderRelevance",
		Filters:    filters,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding search request: %w", err)
	}

	page := s.page.Context(ctx)
	res, err := page.Timeout(s.timeout).Eval(searchScript, searchAPIURL, string(body))
	if err != nil {
		return nil, fmt.Errorf("fetching search page %d: %w", pageNumber, err)
	}

	var decoded searchResponse
	if err := json.Unmarshal([]byte(res.Value.JSON("", "")), &decoded); err != nil {
		return nil, fmt.Errorf("decoding search page %d: %w", pageNumber, err)
	}
	return &decoded, nil
}

func (s *rodSession) close() {
	if s.page != nil {
		if err := s.page.Close(); err != nil {
			log.Debug().Err(err).Msg("Failed to close page")
		}
	}
}
