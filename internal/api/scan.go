// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ManuGH/nutriscan/internal/capture"
	xglog "github.com/ManuGH/nutriscan/internal/log"
	"github.com/ManuGH/nutriscan/internal/page"
	"github.com/ManuGH/nutriscan/internal/web"
)

// multipartOverhead is allowed on top of MaxUploadBytes for form framing.
const multipartOverhead = 64 << 10

// pageFor resolves the caller's page from its cookie, creating one when the
// cookie is missing or stale, and (re)issues the cookie.
func (s *Server) pageFor(w http.ResponseWriter, r *http.Request) (*page.Page, error) {
	var id string
	if c, err := r.Cookie(page.CookieName); err == nil {
		id = c.Value
	}
	p, created, err := s.deps.Pages.GetOrCreate(id)
	if err != nil {
		return nil, err
	}
	if created || p.ID() != id {
		http.SetCookie(w, &http.Cookie{
			Name:     page.CookieName,
			Value:    p.ID(),
			Path:     "/",
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return p, nil
}

func (s *Server) withPage(fn func(w http.ResponseWriter, r *http.Request, p *page.Page)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := s.pageFor(w, r)
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, codeInternal, "cannot create page")
			return
		}
		fn(w, r.WithContext(p.Context(r.Context())), p)
	}
}

func (s *Server) handleScanPage(w http.ResponseWriter, r *http.Request) {
	if _, err := s.pageFor(w, r); err != nil {
		writeError(w, r, http.StatusInternalServerError, codeInternal, "cannot create page")
		return
	}
	s.ui.Render(w, r, web.PageScan, web.PageData{
		Title:   "Scan",
		InputID: s.deps.Config.Get().Capture.InputID,
	})
}

func (s *Server) handleScanState(w http.ResponseWriter, _ *http.Request, p *page.Page) {
	writeJSON(w, http.StatusOK, p.State())
}

func (s *Server) handleScanCamera(w http.ResponseWriter, r *http.Request, p *page.Page) {
	if _, err := p.Controller().StartCameraCapture(r.Context()); err != nil {
		writeSessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p.State())
}

func (s *Server) handleScanUploadRequest(w http.ResponseWriter, r *http.Request, p *page.Page) {
	p.Controller().StartFileCapture(r.Context())
	writeJSON(w, http.StatusOK, p.State())
}

// handleScanFile decodes the uploaded multipart "file". A request without a
// file is a cancelled picker and leaves the page unchanged.
func (s *Server) handleScanFile(w http.ResponseWriter, r *http.Request, p *page.Page) {
	limit := s.deps.Config.Get().Capture.MaxUploadBytes
	if r.ContentLength > limit+multipartOverhead {
		writeError(w, r, http.StatusRequestEntityTooLarge, codeFileTooLarge,
			fmt.Sprintf("image exceeds %d bytes", limit))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, err := readUpload(r, limit)
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr), errors.Is(err, errUploadTooLarge):
		writeError(w, r, http.StatusRequestEntityTooLarge, codeFileTooLarge,
			fmt.Sprintf("image exceeds %d bytes", limit))
		return
	case err != nil:
		writeError(w, r, http.StatusBadRequest, codeInvalidParameter, err.Error())
		return
	}

	if _, err := p.Controller().HandleFileSelected(r.Context(), file); err != nil {
		writeSessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p.State())
}

var errUploadTooLarge = errors.New("upload too large")

// readUpload returns the "file" part, or nil when the form carries none.
func readUpload(r *http.Request, limit int64) (*capture.File, error) {
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, fmt.Errorf("parse upload: %w", err)
	}
	f, hdr, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	defer func() { _ = f.Close() }()

	if hdr.Size > limit {
		return nil, errUploadTooLarge
	}
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, errUploadTooLarge
	}
	return &capture.File{
		Name:        hdr.Filename,
		ContentType: hdr.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func writeSessionError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, capture.ErrClosed) {
		writeError(w, r, http.StatusGone, codePageClosed, "page expired, reload to continue")
		return
	}
	logger := xglog.WithComponentFromContext(r.Context(), "api")
	logger.Error().Err(err).Str(xglog.FieldEvent, "api.session_error").Msg("capture session failed to start")
	writeError(w, r, http.StatusInternalServerError, codeInternal, "capture session failed to start")
}
