package aldi

import "github.com/samber/mo"

// apiProduct mirrors one record of the product-search API response.
type apiProduct struct {
	SKU         string     `json:"sku"`
	Name        string     `json:"name"`
	BrandName   string     `json:"brandName"`
	Price       apiPrice   `json:"price"`
	Assets      []apiAsset `json:"assets"`
	SellingSize string     `json:"sellingSize"`
}

// apiPrice carries the amount in cents. The API occasionally omits it, so
// the field decodes into an Option rather than a bare float.
type apiPrice struct {
	Amount mo.Option[float64] `json:"amount"`
}

type apiAsset struct {
	URL string `json:"url"`
}

type apiResponse struct {
	Data []apiProduct `json:"data"`
	Meta struct {
		Pagination struct {
			Offset     int `json:"offset"`
			Limit      int `json:"limit"`
			TotalCount int `json:"totalCount"`
		} `json:"pagination"`
	} `json:"meta"`
}
