package aldi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/shelfwatch/ingestion-worker/common/config"
	"github.com/shelfwatch/ingestion-worker/common/models"
)

func newTestScraper(apiURL string) *Scraper {
	s := NewScraper(config.DefaultConfig())
	s.apiURL = apiURL
	return s
}

func pageJSON(offset, count, totalCount int) string {
	records := ""
	for i := 0; i < count; i++ {
		if i > 0 {
			records += ","
		}
		records += fmt.Sprintf(`{
			"sku": "sku-%d",
			"name": "Product %d",
			"brandName": "Brandy",
			"price": {"amount": 250},
			"assets": [{"url": "https://cdn.example.com/{width}/{slug}.jpg"}],
			"sellingSize": "1L"
		}`, offset+i, offset+i)
	}
	return fmt.Sprintf(`{
		"data": [%s],
		"meta": {"pagination": {"offset": %d, "limit": 30, "totalCount": %d}}
	}`, records, offset, totalCount)
}

func TestScrapeWalksAllPages(t *testing.T) {
	const totalCount = 45

	var offsets []int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if got := q.Get("q"); got != "milk" {
			t.Errorf("query param q = %q, want milk", got)
		}
		if got := q.Get("limit"); got != "30" {
			t.Errorf("query param limit = %q, want 30", got)
		}
		for param, want := range map[string]string{
			"sort":         "relevance",
			"currency":     "AUD",
			"serviceType":  "walk-in",
			"testVariant":  "A",
			"servicePoint": "G107",
		} {
			if got := q.Get(param); got != want {
				t.Errorf("query param %s = %q, want %q", param, got, want)
			}
		}

		offset, _ := strconv.Atoi(q.Get("offset"))
		offsets = append(offsets, offset)

		count := pageSize
		if remaining := totalCount - offset; remaining < count {
			count = remaining
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, pageJSON(offset, count, totalCount))
	}))
	defer server.Close()

	s := newTestScraper(server.URL)
	products, err := s.Scrape(context.Background(), &models.ScrapeJob{Target: "aldi", Query: "milk"})
	if err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}

	if len(products) != totalCount {
		t.Errorf("Scrape() returned %d products, want %d", len(products), totalCount)
	}
	wantOffsets := []int{0, 30}
	if len(offsets) != len(wantOffsets) {
		t.Fatalf("fetched offsets %v, want %v", offsets, wantOffsets)
	}
	for i, want := range wantOffsets {
		if offsets[i] != want {
			t.Errorf("fetch %d at offset %d, want %d", i, offsets[i], want)
		}
	}

	for _, p := range products {
		if p.Store != models.StoreAldi {
			t.Fatalf("product store = %q, want %q", p.Store, models.StoreAldi)
		}
		if len(p.Categories) != 0 {
			t.Fatalf("product categories = %v, want empty", p.Categories)
		}
	}
	if products[0].Price != 2.5 {
		t.Errorf("product price = %v, want 2.5 (cents converted to dollars)", products[0].Price)
	}
}

func TestScrapeStopsOnEmptyResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data": [], "meta": {"pagination": {"offset": 0, "limit": 30, "totalCount": 0}}}`)
	}))
	defer server.Close()

	s := newTestScraper(server.URL)
	products, err := s.Scrape(context.Background(), &models.ScrapeJob{Target: "aldi", Query: "unobtainium"})
	if err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}
	if len(products) != 0 {
		t.Errorf("Scrape() returned %d products, want 0", len(products))
	}
}

func TestScrapeReturnsPartialResultsOnServerError(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls > 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, pageJSON(0, pageSize, 90))
	}))
	defer server.Close()

	s := newTestScraper(server.URL)
	products, err := s.Scrape(context.Background(), &models.ScrapeJob{Target: "aldi", Query: "milk"})
	if err == nil {
		t.Fatal("Scrape() error = nil, want error from the failed second page")
	}
	if len(products) != pageSize {
		t.Errorf("Scrape() returned %d products, want the %d from the first page", len(products), pageSize)
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases", "Full Cream Milk", "full-cream-milk"},
		{"strips special characters", "My Product Name!", "my-product-name"},
		{"collapses whitespace", "  Choc   Chip  ", "choc-chip"},
		{"keeps hyphens and digits", "2-Minute Noodles", "2-minute-noodles"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := slugify(tt.in); got != tt.want {
				t.Errorf("slugify(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeFallbacks(t *testing.T) {
	p := normalize(apiProduct{
		SKU:  "123",
		Name: "Oat Milk 1L",
	})

	if p.Brand != "ALDI" {
		t.Errorf("brand = %q, want ALDI fallback", p.Brand)
	}
	if p.Size != models.NotAvailable {
		t.Errorf("size = %q, want %q", p.Size, models.NotAvailable)
	}
	if p.Price != 0 {
		t.Errorf("price = %v, want 0 for a missing amount", p.Price)
	}
	if p.ImageURL != "" {
		t.Errorf("imageURL = %q, want empty with no assets", p.ImageURL)
	}
}

func TestNormalizeImageTemplate(t *testing.T) {
	p := normalize(apiProduct{
		SKU:    "123",
		Name:   "Oat Milk 1L!",
		Assets: []apiAsset{{URL: "https://cdn.example.com/{width}/{slug}.jpg"}},
	})

	want := "https://cdn.example.com/300/oat-milk-1l.jpg"
	if p.ImageURL != want {
		t.Errorf("imageURL = %q, want %q", p.ImageURL, want)
	}
}
