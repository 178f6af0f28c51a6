package coles

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/shelfwatch/ingestion-worker/common/config"
	"github.com/shelfwatch/ingestion-worker/common/diagnostics"
	"github.com/shelfwatch/ingestion-worker/common/models"
	"github.com/shelfwatch/ingestion-worker/common/pagination"
	"github.com/shelfwatch/ingestion-worker/scrapers"
)

const (
	imageBaseURL = "https://productimages.coles.com.au/productimages"

	// pageSize is the raw result count of a full search page. A shorter
	// page, measured before ad tiles are filtered out, is the last one.
	pageSize = 48
)

// Scraper pulls products from the Coles search pages through a browser.
// The site sits behind an anti-automation WAF, so every page load can end
// in a challenge instead of results; that aborts the query.
type Scraper struct {
	cfg  config.Config
	diag *diagnostics.Recorder

	browser    *rod.Browser
	newSession func(ctx context.Context) (session, error)
}

// NewScraper creates a Coles browser scraper.
func NewScraper(cfg config.Config, diag *diagnostics.Recorder) *Scraper {
	s := &Scraper{
		cfg:  cfg,
		diag: diag,
	}
	s.newSession = func(ctx context.Context) (session, error) {
		if s.browser == nil {
			if err := s.Setup(ctx); err != nil {
				return nil, err
			}
		}
		return newRodSession(s.browser, cfg.Scraper.UserAgent, cfg.Scraper.PageTimeout)
	}
	return s
}

// Store implements scrapers.Strategy.
func (s *Scraper) Store() models.Store {
	return models.StoreColes
}

// Setup launches the shared browser instance.
func (s *Scraper) Setup(ctx context.Context) error {
	log.Info().Msg("Launching browser for Coles scraper")

	url := launcher.New().
		Headless(s.cfg.Scraper.Headless).
		NoSandbox(true).
		MustLaunch()

	s.browser = rod.New().ControlURL(url).MustConnect()

	log.Info().Msg("Coles browser ready")
	return nil
}

// Teardown closes the browser.
func (s *Scraper) Teardown(ctx context.Context) error {
	if s.browser != nil {
		s.browser.MustClose()
		s.browser = nil
	}
	return nil
}

// Scrape walks the search pages for the query until a short page, a
// no-results marker, or a WAF challenge ends the run. A challenge returns
// scrapers.ErrBlocked along with whatever pages were collected before it.
func (s *Scraper) Scrape(ctx context.Context, job *models.ScrapeJob) ([]models.Product, error) {
	log.Info().Str("query", job.Query).Msg("Starting Coles browser scrape")

	sess, err := s.newSession(ctx)
	if err != nil {
		return []models.Product{}, fmt.Errorf("starting Coles session: %w", err)
	}
	defer sess.close()

	if err := sess.prime(ctx); err != nil {
		// A failed homepage visit is not fatal; the search pages may
		// still load.
		log.Warn().Err(err).Msg("Failed to prime Coles session")
	}

	fetch := func(ctx context.Context, pageNumber, offset int) (pagination.Page[searchResult], error) {
		res, err := sess.searchPage(ctx, job.Query, pageNumber)
		if err != nil {
			s.capture(ctx, sess, diagnostics.KindScrapeError, job, err)
			return pagination.Page[searchResult]{}, err
		}

		if res.blocked {
			err := fmt.Errorf("%w: coles search page %d", scrapers.ErrBlocked, pageNumber)
			s.capture(ctx, sess, diagnostics.KindBlocked, job, err)
			return pagination.Page[searchResult]{}, err
		}
		if res.noResults {
			log.Info().Int("page", pageNumber).Msg("Coles reported no results")
			return pagination.Page[searchResult]{TotalCount: -1}, nil
		}

		var decoded searchResponse
		if err := json.Unmarshal(res.payload, &decoded); err != nil {
			err = fmt.Errorf("decoding search page %d: %w", pageNumber, err)
			s.capture(ctx, sess, diagnostics.KindScrapeError, job, err)
			return pagination.Page[searchResult]{}, err
		}

		log.Debug().Int("page", pageNumber).Int("results", len(decoded.Results)).Msg("Fetched Coles result page")
		return pagination.Page[searchResult]{
			Records:    decoded.Results,
			TotalCount: -1,
		}, nil
	}

	// Terminate on raw page length: ads count toward a full page even
	// though they are filtered out below.
	results, scrapeErr := pagination.Run(ctx, fetch, pagination.NewCountBound[searchResult](pageSize))

	products := lo.FilterMap(results, func(r searchResult, _ int) (models.Product, bool) {
		if r.Type != "PRODUCT" {
			return models.Product{}, false
		}
		return normalize(r), true
	})
	if products == nil {
		products = []models.Product{}
	}
	if scrapeErr != nil {
		return products, scrapeErr
	}

	log.Info().Str("query", job.Query).Int("products", len(products)).Msg("Coles scrape complete")
	return products, nil
}

func (s *Scraper) capture(ctx context.Context, sess session, kind string, job *models.ScrapeJob, cause error) {
	if s.diag == nil {
		return
	}
	screenshot, pageHTML := sess.evidence()
	s.diag.Capture(ctx, kind, job.Target, job.Query, screenshot, pageHTML, cause)
}

// normalize maps one BFF product record onto the canonical schema.
func normalize(r searchResult) models.Product {
	gtin := r.ID.String()
	if gtin == "" {
		gtin = models.NotAvailable
	}
	name := r.Name
	if name == "" {
		name = models.NotAvailable
	}
	brand := r.Brand
	if brand == "" {
		brand = models.NotAvailable
	}
	size := r.Size
	if size == "" {
		size = models.NotAvailable
	}

	imageURL := ""
	if len(r.ImageUris) > 0 && r.ImageUris[0].URI != "" {
		imageURL = imageBaseURL + r.ImageUris[0].URI
	}

	return models.Product{
		GTIN:     gtin,
		Name:     name,
		Brand:    brand,
		Price:    r.Pricing.Now.OrElse(0),
		ImageURL: imageURL,
		Size:     size,
		Store:    models.StoreColes,
		// The search response carries no usable category taxonomy.
		Categories: []string{},
	}
}
