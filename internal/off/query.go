// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package off

import (
	"net/url"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Search defaults.
const (
	DefaultPageSize  = 24
	MaxPageSize      = 100
	DefaultSortBy    = "unique_scans_n"
	DefaultLimitKcal = 1200
	mealPlanSize     = 4
	mealPlanPageSize = 100
)

var sortOrders = []string{"unique_scans_n", "popularity", "product_name", "created_t", "last_modified_t", "nutriscore_score"}

// SortOrders lists the accepted Query.SortBy values, default first.
func SortOrders() []string { return slices.Clone(sortOrders) }

// Query is a smart search request.
type Query struct {
	Terms          string   `json:"terms,omitempty"`
	Category       string   `json:"category,omitempty"`
	Vegan          bool     `json:"vegan,omitempty"`
	MaxSugar       *float64 `json:"maxSugar,omitempty"`
	NutriGrades    []string `json:"nutriGrades,omitempty"`
	OnlyMontenegro bool     `json:"onlyMontenegro,omitempty"`
	Page           int      `json:"page,omitempty"`
	PageSize       int      `json:"pageSize,omitempty"`
	SortBy         string   `json:"sortBy,omitempty"`
}

// SearchResult is one page of search results after filtering. Count is the
// upstream estimate before filtering.
type SearchResult struct {
	Count    int       `json:"count"`
	Page     int       `json:"page"`
	PageSize int       `json:"pageSize"`
	Products []Product `json:"products"`
}

// MealPlanRequest asks for a small set of products within a kcal budget.
type MealPlanRequest struct {
	LimitKcal int      `json:"limitKcal,omitempty"`
	Vegan     bool     `json:"vegan,omitempty"`
	MaxSugar  *float64 `json:"maxSugar,omitempty"`
}

// MealPlan is the chosen products and their summed kcal per 100 g.
type MealPlan struct {
	LimitKcal int       `json:"limitKcal"`
	TotalKcal float64   `json:"totalKcal"`
	Products  []Product `json:"products"`
}

// normalizeTerm folds case and strips diacritics so that equivalent user
// input shares one cache entry: "Čokolada " and "cokolada" match.
func normalizeTerm(s string) string {
	// chains carry state, so one per call
	folder := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC, cases.Fold())
	out, _, err := transform.String(folder, strings.TrimSpace(s))
	if err != nil {
		return strings.ToLower(strings.TrimSpace(s))
	}
	return strings.Join(strings.Fields(out), " ")
}

// normalize returns q with defaults applied and inputs canonicalised.
func (q Query) normalize() Query {
	q.Terms = normalizeTerm(q.Terms)
	q.Category = normalizeTerm(q.Category)
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	q.PageSize = min(q.PageSize, MaxPageSize)
	if !slices.Contains(sortOrders, q.SortBy) {
		q.SortBy = DefaultSortBy
	}

	var grades []string
	for _, g := range q.NutriGrades {
		g = strings.ToLower(strings.TrimSpace(g))
		if len(g) == 1 && g[0] >= 'a' && g[0] <= 'e' && !slices.Contains(grades, g) {
			grades = append(grades, g)
		}
	}
	slices.Sort(grades)
	q.NutriGrades = grades
	return q
}

// params builds the /cgi/search.pl query. Category and vegan are filtered
// upstream; sugar, grades and availability are applied to the results.
func (q Query) params() url.Values {
	v := url.Values{}
	v.Set("search_simple", "1")
	v.Set("action", "process")
	v.Set("json", "1")
	v.Set("page_size", strconv.Itoa(q.PageSize))
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("sort_by", q.SortBy)
	if q.Terms != "" {
		v.Set("search_terms", q.Terms)
	}
	n := 0
	addTag := func(tagType, value string) {
		i := strconv.Itoa(n)
		v.Set("tagtype_"+i, tagType)
		v.Set("tag_contains_"+i, "contains")
		v.Set("tag_"+i, value)
		n++
	}
	if q.Category != "" {
		addTag("categories", q.Category)
	}
	if q.Vegan {
		addTag("labels", "en:vegan")
	}
	return v
}

// keep reports whether p passes the post filters.
func (q Query) keep(p Product) bool {
	if q.MaxSugar != nil {
		if !p.Nutriments.Sugars.Valid || p.Nutriments.Sugars.Value > *q.MaxSugar {
			return false
		}
	}
	if len(q.NutriGrades) > 0 && !slices.Contains(q.NutriGrades, NutriScoreGrade(p)) {
		return false
	}
	if q.OnlyMontenegro && AvailableInMontenegro(p) != "YES" {
		return false
	}
	return true
}

// buildMealPlan walks products in order, skipping those without kcal, over
// the sugar cap or not vegan when asked, and adds each one that still fits
// the budget until four are chosen. Products with no sugar value pass the
// sugar cap here, unlike in Search.
func buildMealPlan(products []Product, req MealPlanRequest) MealPlan {
	plan := MealPlan{LimitKcal: req.LimitKcal, Products: []Product{}}
	for _, p := range products {
		kcal := p.Nutriments.EnergyKcal
		if !kcal.Valid || kcal.Value == 0 {
			continue
		}
		sugar := p.Nutriments.Sugars
		if req.MaxSugar != nil && sugar.Valid && sugar.Value > *req.MaxSugar {
			continue
		}
		if req.Vegan && !IsVegan(p) {
			continue
		}
		if plan.TotalKcal+kcal.Value <= float64(req.LimitKcal) {
			plan.Products = append(plan.Products, p)
			plan.TotalKcal += kcal.Value
		}
		if len(plan.Products) >= mealPlanSize {
			break
		}
	}
	return plan
}
