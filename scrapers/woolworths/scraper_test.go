package woolworths

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/samber/mo"
	"github.com/shelfwatch/ingestion-worker/common/models"
)

type fakeSession struct {
	pages       []*searchResponse
	errs        []error
	calls       int
	established bool
	closed      bool
}

func (f *fakeSession) establish(ctx context.Context) error {
	f.established = true
	return nil
}

func (f *fakeSession) fetchPage(ctx context.Context, query string, filters []models.Filter, pageNumber int) (*searchResponse, error) {
	f.calls++
	if f.calls > len(f.pages) {
		return nil, fmt.Errorf("unexpected fetch of page %d", pageNumber)
	}
	if len(f.errs) >= f.calls && f.errs[f.calls-1] != nil {
		return nil, f.errs[f.calls-1]
	}
	return f.pages[f.calls-1], nil
}

func (f *fakeSession) close() { f.closed = true }

func newTestScraper(sess session) *Scraper {
	return &Scraper{
		newSession: func(ctx context.Context) (session, error) {
			return sess, nil
		},
	}
}

// responsePage builds a page of count records with barcodes start..start+count-1,
// split across two groups the way the real API nests them.
func responsePage(start, count int) *searchResponse {
	records := make([]rawProduct, count)
	for i := range records {
		records[i] = rawProduct{
			Barcode:         fmt.Sprintf("93%06d", start+i),
			DisplayName:     fmt.Sprintf("Product %d", start+i),
			Brand:           "Brandy",
			Price:           mo.Some(4.5),
			MediumImageFile: "https://cdn.example.com/medium.jpg",
			PackageSize:     "500g",
		}
	}
	mid := count / 2
	return &searchResponse{
		Products: []productGroup{
			{Products: records[:mid]},
			{Products: records[mid:]},
		},
	}
}

func TestScrapeStopsOnRepeatedPage(t *testing.T) {
	sess := &fakeSession{pages: []*searchResponse{
		responsePage(0, pageSize),
		responsePage(0, pageSize),
		responsePage(100, pageSize),
	}}
	s := newTestScraper(sess)

	products, err := s.Scrape(context.Background(), &models.ScrapeJob{Target: "woolworths", Query: "milk"})
	if err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}
	if len(products) != pageSize {
		t.Errorf("Scrape() returned %d products, want %d with the repeated page discarded", len(products), pageSize)
	}
	if sess.calls != 2 {
		t.Errorf("fetched %d pages, want 2 (page 3 must not be fetched)", sess.calls)
	}
	if !sess.established {
		t.Error("session was not established before fetching")
	}
	if !sess.closed {
		t.Error("session was not closed")
	}
}

func TestScrapeShortPageEndsPagination(t *testing.T) {
	sess := &fakeSession{pages: []*searchResponse{
		responsePage(0, pageSize),
		responsePage(100, 10),
	}}
	s := newTestScraper(sess)

	products, err := s.Scrape(context.Background(), &models.ScrapeJob{Target: "woolworths", Query: "milk"})
	if err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}
	if len(products) != pageSize+10 {
		t.Errorf("Scrape() returned %d products, want %d", len(products), pageSize+10)
	}
	if sess.calls != 2 {
		t.Errorf("fetched %d pages, want 2", sess.calls)
	}
}

func TestScrapeEmptyFirstPage(t *testing.T) {
	sess := &fakeSession{pages: []*searchResponse{{}}}
	s := newTestScraper(sess)

	products, err := s.Scrape(context.Background(), &models.ScrapeJob{Target: "woolworths", Query: "unobtainium"})
	if err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}
	if len(products) != 0 {
		t.Errorf("Scrape() returned %d products, want 0", len(products))
	}
}

func TestScrapePreservesPageOrder(t *testing.T) {
	sess := &fakeSession{pages: []*searchResponse{responsePage(0, 10)}}
	s := newTestScraper(sess)

	products, err := s.Scrape(context.Background(), &models.ScrapeJob{Target: "woolworths", Query: "milk"})
	if err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}
	if len(products) != 10 {
		t.Fatalf("Scrape() returned %d products, want 10", len(products))
	}
	for i, p := range products {
		want := fmt.Sprintf("Product %d", i)
		if p.Name != want {
			t.Fatalf("product %d name = %q, want %q (parallel enrichment reordered the page)", i, p.Name, want)
		}
	}
}

func TestScrapeClassifiesFromPageAggregations(t *testing.T) {
	page := responsePage(0, 2)
	page.FacetFilters = []string{"Full Fat"}
	page.Aggregations = []aggregation{
		{
			Name: "Lifestyle",
			ResultsGrouped: []resultGroup{
				{Filters: []groupFilter{{Name: "Gluten Free"}}},
			},
		},
	}
	page.Products[0].Products[0].AdditionalAttributes.Description = "full cream milk"
	page.Products[1].Products[0].AdditionalAttributes.LifestyleAndDietaryStatement = "gluten free"

	sess := &fakeSession{pages: []*searchResponse{page}}
	s := newTestScraper(sess)

	products, err := s.Scrape(context.Background(), &models.ScrapeJob{Target: "woolworths", Query: "milk"})
	if err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}

	if len(products[0].Categories) != 1 || products[0].Categories[0] != "Full Fat" {
		t.Errorf("product 0 categories = %v, want [Full Fat]", products[0].Categories)
	}
	if len(products[1].Categories) != 1 || products[1].Categories[0] != "Gluten Free" {
		t.Errorf("product 1 categories = %v, want [Gluten Free]", products[1].Categories)
	}
}

func TestScrapeReturnsPartialResultsOnFetchError(t *testing.T) {
	wantErr := errors.New("search API responded with status 500")
	sess := &fakeSession{
		pages: []*searchResponse{responsePage(0, pageSize), nil},
		errs:  []error{nil, wantErr},
	}
	s := newTestScraper(sess)

	products, err := s.Scrape(context.Background(), &models.ScrapeJob{Target: "woolworths", Query: "milk"})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Scrape() error = %v, want the fetch error", err)
	}
	if len(products) != pageSize {
		t.Errorf("Scrape() returned %d products, want the %d from page one", len(products), pageSize)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	keywords := keywordMap{"Full Fat": {"full fat", "full cream", "whole milk"}}
	r := rawProduct{
		Barcode:         "9300000000001",
		DisplayName:     "Full Cream Milk 2L",
		Brand:           "Dairy Farmers",
		Price:           mo.Some(3.1),
		MediumImageFile: "https://cdn.example.com/medium.jpg",
		PackageSize:     "2L",
	}

	first := normalize(r, keywords)
	second := normalize(r, keywords)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("normalize() is not idempotent: %+v vs %+v", first, second)
	}
}

func TestNormalizeFallbacks(t *testing.T) {
	p := normalize(rawProduct{DisplayName: "Mystery Item"}, keywordMap{})

	if p.GTIN != models.NotAvailable {
		t.Errorf("gtin = %q, want %q", p.GTIN, models.NotAvailable)
	}
	if p.Brand != models.NotAvailable {
		t.Errorf("brand = %q, want %q", p.Brand, models.NotAvailable)
	}
	if p.Price != 0 {
		t.Errorf("price = %v, want 0 for a missing price", p.Price)
	}
	if p.Store != models.StoreWoolworths {
		t.Errorf("store = %q, want %q", p.Store, models.StoreWoolworths)
	}
	if p.Categories == nil || len(p.Categories) != 0 {
		t.Errorf("categories = %v, want empty non-nil slice", p.Categories)
	}
}
