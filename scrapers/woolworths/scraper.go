package woolworths

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/shelfwatch/ingestion-worker/common/config"
	"github.com/shelfwatch/ingestion-worker/common/models"
	"github.com/shelfwatch/ingestion-worker/common/pagination"
	"github.com/shelfwatch/ingestion-worker/common/work"
)

// pageSize is the requested records per search page. The API does not
// report a total count, so pagination stops on an empty page, a stale
// fingerprint, or a short page.
const pageSize = 36

// enriched pairs a normalized product with the raw barcode that
// fingerprints its page. Barcodes can be absent; those records never enter
// the fingerprint set.
type enriched struct {
	barcode string
	product models.Product
}

// Scraper pulls products through the Woolworths search API, called from
// inside a real browser page so the request carries a valid session. Each
// result page also carries the facet aggregations the category classifier
// feeds on.
type Scraper struct {
	cfg config.Config

	browser    *rod.Browser
	newSession func(ctx context.Context) (session, error)
}

// NewScraper creates a Woolworths browser scraper.
func NewScraper(cfg config.Config) *Scraper {
	s := &Scraper{cfg: cfg}
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
	return models.StoreWoolworths
}

// Setup launches the shared browser instance.
func (s *Scraper) Setup(ctx context.Context) error {
	log.Info().Msg("Launching browser for Woolworths scraper")

	url := launcher.New().
		Headless(s.cfg.Scraper.Headless).
		NoSandbox(true).
		MustLaunch()

	s.browser = rod.New().ControlURL(url).MustConnect()

	log.Info().Msg("Woolworths browser ready")
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

// Scrape walks the search pages until the API stops advancing: an empty
// page, a page whose barcodes are all repeats of the previous one, or a
// short page ends the run. Every page is classified with the keyword map
// built from that page's own aggregations.
func (s *Scraper) Scrape(ctx context.Context, job *models.ScrapeJob) ([]models.Product, error) {
	log.Info().
		Str("query", job.Query).
		Int("filters", len(job.Filters)).
		Msg("Starting Woolworths browser scrape")

	sess, err := s.newSession(ctx)
	if err != nil {
		return []models.Product{}, fmt.Errorf("starting Woolworths session: %w", err)
	}
	defer sess.close()

	if err := sess.establish(ctx); err != nil {
		return []models.Product{}, err
	}

	fetch := func(ctx context.Context, pageNumber, offset int) (pagination.Page[enriched], error) {
		resp, err := sess.fetchPage(ctx, job.Query, job.Filters, pageNumber)
		if err != nil {
			return pagination.Page[enriched]{}, err
		}

		records := resp.flatten()
		log.Debug().Int("page", pageNumber).Int("records", len(records)).Msg("Fetched Woolworths result page")
		if len(records) == 0 {
			return pagination.Page[enriched]{TotalCount: -1}, nil
		}

		keywords := buildCategoryKeywordMap(resp.Aggregations, resp.FacetFilters)
		products := s.enrich(ctx, records, keywords)

		return pagination.Page[enriched]{
			Records: lo.Map(records, func(r rawProduct, i int) enriched {
				return enriched{barcode: r.Barcode, product: products[i]}
			}),
			TotalCount: -1,
		}, nil
	}

	term := pagination.NewFingerprintBound(func(e enriched) string { return e.barcode }, pageSize)
	results, scrapeErr := pagination.Run(ctx, fetch, term)

	products := lo.Map(results, func(e enriched, _ int) models.Product { return e.product })
	if products == nil {
		products = []models.Product{}
	}
	if scrapeErr != nil {
		return products, fmt.Errorf("scraping Woolworths: %w", scrapeErr)
	}

	log.Info().Str("query", job.Query).Int("products", len(products)).Msg("Woolworths scrape complete")
	return products, nil
}

// indexed carries a normalized product back to its page position so the
// parallel enrichment cannot reorder a page.
type indexed struct {
	position int
	product  models.Product
}

// enrich classifies and normalizes one page of records through a worker
// pool sized to the page.
func (s *Scraper) enrich(ctx context.Context, records []rawProduct, keywords keywordMap) []models.Product {
	products := make([]models.Product, len(records))

	pool, err := work.NewWorkerPool[indexed](len(records), len(records))
	if err != nil {
		for i, r := range records {
			products[i] = normalize(r, keywords)
		}
		return products
	}
	pool.Start(ctx, "woolworths-enrich")
	defer pool.Stop()

	queued := 0
	for i, r := range records {
		i, r := i, r
		task, err := work.NewTask(func(ctx context.Context) (indexed, error) {
			return indexed{position: i, product: normalize(r, keywords)}, nil
		})
		if err != nil {
			products[i] = normalize(r, keywords)
			continue
		}
		if err := pool.AddTask(ctx, task); err != nil {
			products[i] = normalize(r, keywords)
			continue
		}
		queued++
	}

	for received := 0; received < queued; received++ {
		res, ok := <-pool.Results()
		if !ok {
			break
		}
		if res.Error != nil {
			log.Warn().Err(res.Error).Msg("Enrichment task failed")
			continue
		}
		products[res.Result.position] = res.Result.product
	}

	return products
}

// normalize maps one raw record onto the canonical schema, classified
// against the page's keyword map.
func normalize(r rawProduct, keywords keywordMap) models.Product {
	gtin := r.Barcode
	if gtin == "" {
		gtin = models.NotAvailable
	}
	brand := r.Brand
	if brand == "" {
		brand = models.NotAvailable
	}

	return models.Product{
		GTIN:       gtin,
		Name:       r.DisplayName,
		Brand:      brand,
		Price:      r.Price.OrElse(0),
		ImageURL:   r.MediumImageFile,
		Size:       r.PackageSize,
		Store:      models.StoreWoolworths,
		Categories: assignCategories(r, keywords),
	}
}
