package aldi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/shelfwatch/ingestion-worker/common/config"
	"github.com/shelfwatch/ingestion-worker/common/models"
	"github.com/shelfwatch/ingestion-worker/common/pagination"
)

const (
	defaultAPIURL = "https://api.aldi.com.au/v3/product-search"
	pageSize      = 30
	imageWidth    = "300"
)

// Scraper pulls products from the public ALDI search API. No browser is
// needed: the API is unauthenticated and paginates by offset.
type Scraper struct {
	apiURL    string
	userAgent string
	client    *http.Client
}

// NewScraper creates an ALDI API scraper.
func NewScraper(cfg config.Config) *Scraper {
	return &Scraper{
		apiURL:    defaultAPIURL,
		userAgent: cfg.Scraper.UserAgent,
		client: &http.Client{
			Timeout: cfg.Scraper.RequestTimeout,
		},
	}
}

// Store implements scrapers.Strategy.
func (s *Scraper) Store() models.Store {
	return models.StoreAldi
}

// Setup implements scrapers.Strategy. The API scraper has nothing to prepare.
func (s *Scraper) Setup(ctx context.Context) error {
	return nil
}

// Teardown implements scrapers.Strategy.
func (s *Scraper) Teardown(ctx context.Context) error {
	return nil
}

// Scrape walks the search API offset by offset until the reported total
// count is reached.
func (s *Scraper) Scrape(ctx context.Context, job *models.ScrapeJob) ([]models.Product, error) {
	log.Info().Str("query", job.Query).Msg("Starting ALDI API scrape")

	fetch := func(ctx context.Context, pageNumber, offset int) (pagination.Page[models.Product], error) {
		resp, err := s.fetchPage(ctx, job.Query, offset)
		if err != nil {
			return pagination.Page[models.Product]{}, err
		}

		log.Debug().
			Int("page", pageNumber).
			Int("offset", offset).
			Int("records", len(resp.Data)).
			Int("totalCount", resp.Meta.Pagination.TotalCount).
			Msg("Fetched ALDI result page")

		return pagination.Page[models.Product]{
			Records: lo.Map(resp.Data, func(p apiProduct, _ int) models.Product {
				return normalize(p)
			}),
			TotalCount: resp.Meta.Pagination.TotalCount,
		}, nil
	}

	products, err := pagination.Run(ctx, fetch, pagination.NewCountBound[models.Product](pageSize))
	if products == nil {
		products = []models.Product{}
	}
	if err != nil {
		return products, fmt.Errorf("scraping ALDI: %w", err)
	}

	log.Info().Str("query", job.Query).Int("products", len(products)).Msg("ALDI scrape complete")
	return products, nil
}

func (s *Scraper) fetchPage(ctx context.Context, query string, offset int) (*apiResponse, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(pageSize))
	params.Set("offset", strconv.Itoa(offset))
	params.Set("sort", "relevance")
	params.Set("currency", "AUD")
	params.Set("serviceType", "walk-in")
	params.Set("testVariant", "A")
	params.Set("servicePoint", "G107")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching offset %d: %w", offset, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d at offset %d", resp.StatusCode, offset)
	}

	var decoded apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decoding response at offset %d: %w", offset, err)
	}
	return &decoded, nil
}

var (
	slugStripPattern = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugSpacePattern = regexp.MustCompile(`\s+`)
)

// slugify turns a product name into the URL slug the image CDN expects,
// e.g. "My Product Name!" becomes "my-product-name".
func slugify(name string) string {
	s := strings.ToLower(name)
	s = slugStripPattern.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	return slugSpacePattern.ReplaceAllString(s, "-")
}

// normalize maps one API record onto the canonical product schema. Image
// URLs arrive as templates with {width} and {slug} placeholders.
func normalize(p apiProduct) models.Product {
	imageURL := ""
	if len(p.Assets) > 0 && p.Assets[0].URL != "" {
		imageURL = strings.NewReplacer(
			"{width}", imageWidth,
			"{slug}", slugify(p.Name),
		).Replace(p.Assets[0].URL)
	}

	brand := p.BrandName
	if brand == "" {
		brand = "ALDI"
	}

	size := p.SellingSize
	if size == "" {
		size = models.NotAvailable
	}

	return models.Product{
		GTIN:     p.SKU,
		Name:     p.Name,
		Brand:    brand,
		Price:    p.Price.Amount.OrElse(0) / 100,
		ImageURL: imageURL,
		Size:     size,
		Store:    models.StoreAldi,
		// The search API carries no category data.
		Categories: []string{},
	}
}
