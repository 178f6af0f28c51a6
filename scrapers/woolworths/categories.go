package woolworths

import (
	"sort"
	"strings"

	"github.com/samber/lo"
)

// knownSynonyms expands facet terms that products rarely spell out
// verbatim in their descriptions.
var knownSynonyms = map[string][]string{
	"Full Fat": {"full fat", "full cream", "whole milk"},
}

// classifierAggregations are the facet groups worth mining for category
// terms; the rest (price bands, specials) would only add noise.
var classifierAggregations = []string{"Allergens", "Lifestyle"}

// keywordMap maps a category label to the lowercase keywords that assign it.
type keywordMap map[string][]string

// buildCategoryKeywordMap derives the classification vocabulary for one
// result page from the facet filters already applied to the search plus the
// allergen and lifestyle aggregations the API reports alongside it.
func buildCategoryKeywordMap(aggregations []aggregation, facetFilters []string) keywordMap {
	terms := make(map[string]struct{})
	for _, f := range facetFilters {
		if f != "" {
			terms[f] = struct{}{}
		}
	}
	for _, agg := range aggregations {
		if !lo.Contains(classifierAggregations, agg.Name) {
			continue
		}
		for _, group := range agg.ResultsGrouped {
			for _, filter := range group.Filters {
				if filter.Name != "" {
					terms[filter.Name] = struct{}{}
				}
			}
		}
	}

	m := make(keywordMap, len(terms))
	for term := range terms {
		if synonyms, ok := knownSynonyms[term]; ok {
			m[term] = synonyms
		} else {
			m[term] = []string{strings.ToLower(term)}
		}
	}
	return m
}

// assignCategories matches the keyword map against the product's name and
// free-text attributes. Output is sorted so repeated runs over the same
// record always agree.
func assignCategories(p rawProduct, keywords keywordMap) []string {
	searchable := strings.ToLower(strings.Join([]string{
		p.DisplayName,
		p.AdditionalAttributes.Description,
		p.AdditionalAttributes.SapSegmentName,
		p.AdditionalAttributes.PiesSubCategoryNamesJSON,
		p.AdditionalAttributes.LifestyleAndDietaryStatement,
		p.AdditionalAttributes.AllergyStatement,
	}, " "))

	var assigned []string
	for category, terms := range keywords {
		for _, term := range terms {
			if strings.Contains(searchable, term) {
				assigned = append(assigned, category)
				break
			}
		}
	}

	// A name that says low fat wins over a description that merely
	// mentions full cream.
	if lo.Contains(assigned, "Low Fat") && lo.Contains(assigned, "Full Fat") {
		name := strings.ToLower(p.DisplayName)
		if strings.Contains(name, "low fat") || strings.Contains(name, "skim") || strings.Contains(name, "lite") {
			assigned = lo.Without(assigned, "Full Fat")
		}
	}

	if assigned == nil {
		return []string{}
	}
	sort.Strings(assigned)
	return assigned
}
