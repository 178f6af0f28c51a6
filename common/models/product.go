package models

import (
	"encoding/json"
	"time"
)

// Store identifies the retailer a product was scraped from.
type Store string

const (
	StoreWoolworths Store = "Woolworths"
	StoreColes      Store = "Coles"
	StoreAldi       Store = "Aldi"
)

// NotAvailable is the sentinel used for string fields the source omits.
const NotAvailable = "N/A"

// Product is the canonical product record, one schema regardless of source.
// A zero Price is not distinguishable from a missing price; GTIN is an
// opaque source identifier and must not be assumed unique across stores.
type Product struct {
	GTIN       string   `json:"gtin"`
	Name       string   `json:"name"`
	Brand      string   `json:"brand"`
	Price      float64  `json:"price"`
	ImageURL   string   `json:"image_url"`
	Size       string   `json:"size"`
	Store      Store    `json:"store"`
	Categories []string `json:"categories"`
}

// ProductBatch is the outbound payload handed to the downstream publisher.
type ProductBatch struct {
	RunID     string    `json:"run_id"`
	Target    string    `json:"target"`
	Query     string    `json:"query"`
	Products  []Product `json:"products"`
	ScrapedAt time.Time `json:"scraped_at"`
}

// ToJson serializes the batch for publishing
func (b *ProductBatch) ToJson() ([]byte, error) {
	return json.Marshal(b)
}
