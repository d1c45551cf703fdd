// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ManuGH/nutriscan/internal/off"
	"github.com/ManuGH/nutriscan/internal/web"
	"github.com/go-chi/chi/v5"
)

// productView is the flattened product shape the search and scan pages render.
type productView struct {
	Code       string   `json:"code"`
	Name       string   `json:"name"`
	Brands     string   `json:"brands,omitempty"`
	Grade      string   `json:"grade"`
	ImageURL   string   `json:"imageUrl,omitempty"`
	Montenegro string   `json:"montenegro"`
	Countries  []string `json:"countries,omitempty"`
	Vegan      bool     `json:"vegan"`
	Nova       int      `json:"nova,omitempty"`
	Allergens  []string `json:"allergens,omitempty"`

	Kcal         *float64 `json:"kcal,omitempty"`
	Sugars       *float64 `json:"sugars,omitempty"`
	Fat          *float64 `json:"fat,omitempty"`
	SaturatedFat *float64 `json:"saturatedFat,omitempty"`
	Proteins     *float64 `json:"proteins,omitempty"`
	Salt         *float64 `json:"salt,omitempty"`
}

type searchResponse struct {
	Count    int           `json:"count"`
	Page     int           `json:"page"`
	PageSize int           `json:"pageSize"`
	Products []productView `json:"products"`
}

type mealPlanResponse struct {
	LimitKcal int           `json:"limitKcal"`
	TotalKcal float64       `json:"totalKcal"`
	Products  []productView `json:"products"`
}

func viewOf(p off.Product) productView {
	n := p.Nutriments
	return productView{
		Code:       p.Code,
		Name:       p.ProductName,
		Brands:     p.Brands,
		Grade:      off.NutriScoreGrade(p),
		ImageURL:   off.ImageURL(p),
		Montenegro: off.AvailableInMontenegro(p),
		Countries:  off.CountryList(p),
		Vegan:      off.IsVegan(p),
		Nova:       off.NovaGroup(p),
		Allergens:  off.AllergenList(p),

		Kcal:         ptr(n.EnergyKcal),
		Sugars:       ptr(n.Sugars),
		Fat:          ptr(n.Fat),
		SaturatedFat: ptr(n.SaturatedFat),
		Proteins:     ptr(n.Proteins),
		Salt:         ptr(n.Salt),
	}
}

func viewsOf(ps []off.Product) []productView {
	out := make([]productView, 0, len(ps))
	for _, p := range ps {
		out = append(out, viewOf(p))
	}
	return out
}

func ptr(n off.Number) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Value
	return &v
}

func (s *Server) handleSearchPage(w http.ResponseWriter, r *http.Request) {
	s.ui.Render(w, r, web.PageSearch, web.PageData{
		Title:      "Search",
		SortOrders: off.SortOrders(),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.deps.Products == nil {
		writeError(w, r, http.StatusNotFound, codeFeatureDisabled, "product search is disabled")
		return
	}
	q, err := parseQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, http.StatusBadRequest, codeInvalidParameter, err.Error())
		return
	}
	res, err := s.deps.Products.Search(r.Context(), q)
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{
		Count:    res.Count,
		Page:     res.Page,
		PageSize: res.PageSize,
		Products: viewsOf(res.Products),
	})
}

func (s *Server) handleMealPlan(w http.ResponseWriter, r *http.Request) {
	if s.deps.Products == nil {
		writeError(w, r, http.StatusNotFound, codeFeatureDisabled, "product search is disabled")
		return
	}
	req, err := parseMealPlan(r.URL.Query())
	if err != nil {
		writeError(w, r, http.StatusBadRequest, codeInvalidParameter, err.Error())
		return
	}
	plan, err := s.deps.Products.MealPlan(r.Context(), req)
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mealPlanResponse{
		LimitKcal: plan.LimitKcal,
		TotalKcal: plan.TotalKcal,
		Products:  viewsOf(plan.Products),
	})
}

func (s *Server) handleProduct(w http.ResponseWriter, r *http.Request) {
	if s.deps.Products == nil {
		writeError(w, r, http.StatusNotFound, codeFeatureDisabled, "product search is disabled")
		return
	}
	p, err := s.deps.Products.Product(r.Context(), chi.URLParam(r, "barcode"))
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(p))
}

// parseQuery reads the search parameters. Grades may be repeated or
// comma separated.
func parseQuery(v url.Values) (off.Query, error) {
	q := off.Query{
		Terms:    v.Get("q"),
		Category: v.Get("category"),
		SortBy:   v.Get("sort"),
	}
	var err error
	if q.Vegan, err = boolParam(v, "vegan"); err != nil {
		return q, err
	}
	if q.OnlyMontenegro, err = boolParam(v, "montenegro"); err != nil {
		return q, err
	}
	if q.MaxSugar, err = floatParam(v, "maxSugar"); err != nil {
		return q, err
	}
	if q.Page, err = intParam(v, "page"); err != nil {
		return q, err
	}
	if q.PageSize, err = intParam(v, "pageSize"); err != nil {
		return q, err
	}
	for _, g := range v["grade"] {
		for part := range strings.SplitSeq(g, ",") {
			if part = strings.TrimSpace(part); part != "" {
				q.NutriGrades = append(q.NutriGrades, part)
			}
		}
	}
	return q, nil
}

func parseMealPlan(v url.Values) (off.MealPlanRequest, error) {
	var req off.MealPlanRequest
	var err error
	if req.LimitKcal, err = intParam(v, "limitKcal"); err != nil {
		return req, err
	}
	if req.Vegan, err = boolParam(v, "vegan"); err != nil {
		return req, err
	}
	if req.MaxSugar, err = floatParam(v, "maxSugar"); err != nil {
		return req, err
	}
	return req, nil
}

// boolParam accepts strconv booleans plus the checkbox value "on".
func boolParam(v url.Values, key string) (bool, error) {
	s := v.Get(key)
	if s == "" {
		return false, nil
	}
	if s == "on" {
		return true, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("%s: not a boolean: %q", key, s)
	}
	return b, nil
}

func intParam(v url.Values, key string) (int, error) {
	s := v.Get(key)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s: not a non-negative integer: %q", key, s)
	}
	return n, nil
}

func floatParam(v url.Values, key string) (*float64, error) {
	s := strings.ReplaceAll(v.Get(key), ",", ".")
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return nil, fmt.Errorf("%s: not a non-negative number: %q", key, v.Get(key))
	}
	return &f, nil
}
