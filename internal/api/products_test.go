// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"github.com/ManuGH/nutriscan/internal/off"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func float(v float64) *float64 { return &v }

func TestParseQuery(t *testing.T) {
	got, err := parseQuery(url.Values{
		"q":          {"čokolada"},
		"category":   {"snacks"},
		"vegan":      {"on"},
		"montenegro": {"true"},
		"maxSugar":   {"4,5"},
		"grade":      {"a,b", "c"},
		"page":       {"2"},
		"pageSize":   {"10"},
		"sort":       {"popularity"},
	})
	require.NoError(t, err)
	want := off.Query{
		Terms:          "čokolada",
		Category:       "snacks",
		Vegan:          true,
		OnlyMontenegro: true,
		MaxSugar:       float(4.5),
		NutriGrades:    []string{"a", "b", "c"},
		Page:           2,
		PageSize:       10,
		SortBy:         "popularity",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("parseQuery mismatch (-want +got):\n%s", diff)
	}

	for _, bad := range []url.Values{
		{"vegan": {"maybe"}},
		{"maxSugar": {"-1"}},
		{"page": {"x"}},
		{"pageSize": {"-3"}},
	} {
		_, err := parseQuery(bad)
		assert.Error(t, err, bad.Encode())
	}
}

func TestSearch(t *testing.T) {
	var seen off.Query
	products := &fakeProducts{search: func(q off.Query) (off.SearchResult, error) {
		seen = q
		return off.SearchResult{Count: 1, Page: 1, PageSize: 24, Products: []off.Product{{
			Code:            "123",
			ProductName:     "Čokolada",
			NutritionGrades: "B",
			CountriesTags:   []string{"en:montenegro"},
			ImageURL:        "https://images.openfoodfacts.org/1.jpg",
			Nutriments:      off.Nutriments{EnergyKcal: off.Num(530), Sugars: off.Num(48)},
		}}}, nil
	}}
	env := newTestEnv(t, testConfig(), func(d *Deps) { d.Products = products })

	resp := env.do(t, http.MethodGet, "/api/search?category=snacks&grade=b", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[searchResponse](t, resp)

	assert.Equal(t, "snacks", seen.Category)
	assert.Equal(t, []string{"b"}, seen.NutriGrades)
	require.Len(t, body.Products, 1)
	p := body.Products[0]
	assert.Equal(t, "b", p.Grade)
	assert.Equal(t, "YES", p.Montenegro)
	assert.Equal(t, "https://images.openfoodfacts.org/1.jpg", p.ImageURL)
	require.NotNil(t, p.Kcal)
	assert.InDelta(t, 530, *p.Kcal, 1e-9)
	assert.Nil(t, p.Fat)
}

func TestSearch_BadParameter(t *testing.T) {
	env := newTestEnv(t, testConfig(), func(d *Deps) { d.Products = &fakeProducts{} })
	resp := env.do(t, http.MethodGet, "/api/search?maxSugar=lots", nil, "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, codeInvalidParameter, decode[errorResponse](t, resp).Error)
}

func TestUpstreamErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{&off.OFFError{Sentinel: off.ErrTimeout, Operation: "search"}, http.StatusGatewayTimeout, codeUpstreamTimeout},
		{&off.OFFError{Sentinel: off.ErrUpstreamUnavailable, Operation: "search", Err: off.ErrCircuitOpen}, http.StatusServiceUnavailable, codeUpstreamUnavailable},
		{&off.OFFError{Sentinel: off.ErrUpstreamUnavailable, Operation: "search"}, http.StatusServiceUnavailable, codeUpstreamUnavailable},
		{&off.OFFError{Sentinel: off.ErrUpstreamError, Operation: "search", Status: 502}, http.StatusBadGateway, codeUpstreamError},
		{&off.OFFError{Sentinel: off.ErrUpstreamBadResponse, Operation: "search"}, http.StatusBadGateway, codeUpstreamError},
		{&off.OFFError{Sentinel: off.ErrNotFound, Operation: "product"}, http.StatusNotFound, codeNotFound},
		{fmt.Errorf("lookup: %w", off.ErrInvalidBarcode), http.StatusBadRequest, codeInvalidBarcode},
	}
	for _, tt := range tests {
		t.Run(tt.code+"/"+tt.err.Error(), func(t *testing.T) {
			products := &fakeProducts{search: func(off.Query) (off.SearchResult, error) {
				return off.SearchResult{}, tt.err
			}}
			env := newTestEnv(t, testConfig(), func(d *Deps) { d.Products = products })

			resp := env.do(t, http.MethodGet, "/api/search", nil, "")
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, decode[errorResponse](t, resp).Error)
		})
	}
}

func TestMealPlan(t *testing.T) {
	var seen off.MealPlanRequest
	products := &fakeProducts{mealPlan: func(req off.MealPlanRequest) (off.MealPlan, error) {
		seen = req
		return off.MealPlan{LimitKcal: 800, TotalKcal: 650, Products: []off.Product{
			{Code: "a", Nutriments: off.Nutriments{EnergyKcal: off.Num(400)}},
			{Code: "b", Nutriments: off.Nutriments{EnergyKcal: off.Num(250)}},
		}}, nil
	}}
	env := newTestEnv(t, testConfig(), func(d *Deps) { d.Products = products })

	resp := env.do(t, http.MethodGet, "/api/mealplan?limitKcal=800&vegan=true&maxSugar=10", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[mealPlanResponse](t, resp)

	assert.Equal(t, off.MealPlanRequest{LimitKcal: 800, Vegan: true, MaxSugar: float(10)}, seen)
	assert.Equal(t, 800, body.LimitKcal)
	assert.InDelta(t, 650, body.TotalKcal, 1e-9)
	assert.Len(t, body.Products, 2)
}

func TestProduct(t *testing.T) {
	products := &fakeProducts{product: func(code string) (off.Product, error) {
		if code != goodEAN {
			return off.Product{}, &off.OFFError{Sentinel: off.ErrNotFound, Operation: "product"}
		}
		return off.Product{
			Code:          code,
			ProductName:   "Hazelnut spread",
			LabelsTags:    []string{"en:vegan"},
			NovaGroup:     off.Num(4),
			Allergens:     "en:milk,en:nuts",
			CountriesTags: []string{"en:montenegro", "en:serbia"},
			Nutriments: off.Nutriments{
				SaturatedFat: off.Num(10.6),
				Proteins:     off.Num(6.3),
				Salt:         off.Num(0.107),
			},
		}, nil
	}}
	env := newTestEnv(t, testConfig(), func(d *Deps) { d.Products = products })

	resp := env.do(t, http.MethodGet, "/api/products/"+goodEAN, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	p := decode[productView](t, resp)
	assert.Equal(t, "Hazelnut spread", p.Name)
	assert.True(t, p.Vegan)
	assert.Equal(t, "YES", p.Montenegro)
	assert.Equal(t, 4, p.Nova)
	assert.Equal(t, []string{"milk", "nuts"}, p.Allergens)
	assert.Equal(t, []string{"montenegro", "serbia"}, p.Countries)
	require.NotNil(t, p.SaturatedFat)
	assert.InDelta(t, 10.6, *p.SaturatedFat, 1e-9)
	require.NotNil(t, p.Salt)
	assert.InDelta(t, 0.107, *p.Salt, 1e-9)
	assert.Nil(t, p.Sugars)

	resp = env.do(t, http.MethodGet, "/api/products/0000", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestProduct_UnknownDetailsOmitted(t *testing.T) {
	products := &fakeProducts{product: func(code string) (off.Product, error) {
		return off.Product{Code: code, ProductName: "Mineral water"}, nil
	}}
	env := newTestEnv(t, testConfig(), func(d *Deps) { d.Products = products })

	resp := env.do(t, http.MethodGet, "/api/products/"+goodEAN, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw := decode[map[string]any](t, resp)
	for _, key := range []string{"nova", "allergens", "countries", "saturatedFat"} {
		assert.NotContains(t, raw, key)
	}
	assert.Equal(t, "?", raw["montenegro"])
}

func TestProductsDisabled(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	for _, path := range []string{"/api/search", "/api/mealplan", "/api/products/123"} {
		resp := env.do(t, http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
		assert.Equal(t, codeFeatureDisabled, decode[errorResponse](t, resp).Error)
	}
}
