// SPDX-License-Identifier: MIT

package api

import (
	"net/http"

	"github.com/ManuGH/nutriscan/internal/history"
)

const defaultRecentLimit = 20

func (s *Server) handleRecentScans(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeError(w, r, http.StatusNotFound, codeFeatureDisabled, "scan history is disabled")
		return
	}
	limit, err := intParam(r.URL.Query(), "limit")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, codeInvalidParameter, err.Error())
		return
	}
	if limit == 0 {
		limit = defaultRecentLimit
	}
	scans, err := s.deps.History.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, codeInternal, "cannot read scan history")
		return
	}
	if scans == nil {
		scans = []history.ScanRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"scans": scans})
}
