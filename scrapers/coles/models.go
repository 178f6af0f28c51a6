package coles

import (
	"encoding/json"

	"github.com/samber/mo"
)

// searchResult is one entry of the BFF search response. The results array
// mixes products with ad tiles and banners, distinguished by _type.
type searchResult struct {
	Type    string      `json:"_type"`
	ID      json.Number `json:"id"`
	Name    string      `json:"name"`
	Brand   string      `json:"brand"`
	Size    string      `json:"size"`
	Pricing struct {
		Now mo.Option[float64] `json:"now"`
	} `json:"pricing"`
	ImageUris []struct {
		URI string `json:"uri"`
	} `json:"imageUris"`
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}
