// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"net/http"
	"strings"

	xglog "github.com/ManuGH/nutriscan/internal/log"
	"github.com/ManuGH/nutriscan/internal/metrics"
	"github.com/ManuGH/nutriscan/internal/nutrition"
	"github.com/ManuGH/nutriscan/internal/web"
)

type validationResponse struct {
	Valid    bool                    `json:"valid"`
	Fields   []nutrition.FieldResult `json:"fields"`
	Styles   map[string]string       `json:"styles"`
	Message  string                  `json:"message,omitempty"`
	Redirect string                  `json:"redirect,omitempty"`
}

func (s *Server) nutritionFields() []string {
	if fields := s.deps.Config.Get().Nutrition.Fields; len(fields) > 0 {
		return fields
	}
	return nutrition.DefaultFields
}

func (s *Server) handleNutritionPage(w http.ResponseWriter, r *http.Request) {
	s.ui.Render(w, r, web.PageNutrition, web.PageData{
		Title:  "Nutrition",
		Fields: s.nutritionFields(),
	})
}

// handleNutritionSubmit gates the nutrition form. Invalid submissions get
// 422 with per-field markers. Valid ones are redirected to the configured
// action (303), or acknowledged with 204. Script clients asking for JSON
// get the redirect target in the body instead.
func (s *Server) handleNutritionSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, r, http.StatusBadRequest, codeInvalidParameter, "malformed form body")
		return
	}

	values := nutrition.MapValues{}
	for name, vs := range r.PostForm {
		if len(vs) > 0 {
			values[name] = vs[0]
		}
	}
	// border style per field, last mark wins
	styles := map[string]string{}
	ok, results := nutrition.ValidateFields(s.nutritionFields(), values, nutrition.MarkerFunc(func(field, style string) {
		styles[field] = style
	}))
	invalid := nutrition.InvalidFields(results)
	metrics.RecordValidation(ok, invalid)

	if !ok {
		logger := xglog.WithComponentFromContext(r.Context(), "nutrition")
		logger.Debug().
			Str(xglog.FieldEvent, "nutrition.validation_failed").
			Strs("fields", invalid).
			Msg("nutrition form rejected")
		writeJSON(w, http.StatusUnprocessableEntity, validationResponse{
			Fields:  results,
			Styles:  styles,
			Message: nutrition.AggregateMessage,
		})
		return
	}

	action := s.deps.Config.Get().Nutrition.ActionURL
	switch {
	case wantsJSON(r):
		writeJSON(w, http.StatusOK, validationResponse{Valid: true, Fields: results, Styles: styles, Redirect: action})
	case action != "":
		http.Redirect(w, r, action, http.StatusSeeOther)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
