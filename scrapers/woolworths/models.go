package woolworths

import (
	"github.com/samber/mo"
	"github.com/shelfwatch/ingestion-worker/common/models"
)

// searchRequest is the POST body of the in-page search API call. Field
// casing follows the API contract exactly.
type searchRequest struct {
	SearchTerm string          `json:"SearchTerm"`
	PageNumber int             `json:"PageNumber"`
	PageSize   int             `json:"PageSize"`
	SortType   string          `json:"SortType"`
	Filters    []models.Filter `json:"Filters"`
}

// rawProduct is one product record of the search response. The response
// nests these inside per-group wrappers; see searchResponse.
type rawProduct struct {
	Barcode              string               `json:"Barcode"`
	DisplayName          string               `json:"DisplayName"`
	Brand                string               `json:"Brand"`
	Price                mo.Option[float64]   `json:"Price"`
	MediumImageFile      string               `json:"MediumImageFile"`
	PackageSize          string               `json:"PackageSize"`
	AdditionalAttributes additionalAttributes `json:"AdditionalAttributes"`
}

// additionalAttributes holds the free-text fields the classifier scans.
type additionalAttributes struct {
	Description                  string `json:"description"`
	SapSegmentName               string `json:"sapsegmentname"`
	PiesSubCategoryNamesJSON     string `json:"piessubcategorynamesjson"`
	LifestyleAndDietaryStatement string `json:"lifestyleanddietarystatement"`
	AllergyStatement             string `json:"allergystatement"`
}

type productGroup struct {
	Products []rawProduct `json:"Products"`
}

type aggregation struct {
	Name           string        `json:"Name"`
	ResultsGrouped []resultGroup `json:"ResultsGrouped"`
}

type resultGroup struct {
	Filters []groupFilter `json:"Filters"`
}

type groupFilter struct {
	Name string `json:"Name"`
}

type searchResponse struct {
	Products     []productGroup `json:"Products"`
	Aggregations []aggregation  `json:"Aggregations"`
	FacetFilters []string       `json:"FacetFilters"`
}

// flatten collapses the grouped product wrappers into one flat record list.
func (r *searchResponse) flatten() []rawProduct {
	var records []rawProduct
	for _, group := range r.Products {
		records = append(records, group.Products...)
	}
	return records
}
