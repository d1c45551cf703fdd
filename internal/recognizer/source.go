// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package recognizer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// FrameSource yields successive frames of one capture device.
type FrameSource interface {
	Frame(ctx context.Context) (image.Image, error)
}

var imageExts = []string{".png", ".jpg", ".jpeg", ".gif", ".webp"}

// snapshotSource polls an HTTP endpoint returning a still image per request,
// the interface most IP cameras expose.
type snapshotSource struct {
	client   *http.Client
	url      string
	maxBytes int64
}

func (s *snapshotSource) Frame(ctx context.Context) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("fetch snapshot: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, ErrTooLarge
	}
	img, _, err := decodeBytes(data)
	return img, err
}

// directorySource replays the images of a directory in name order, looping.
type directorySource struct {
	dir string

	mu   sync.Mutex
	next int
}

func (s *directorySource) files() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !slices.Contains(imageExts, strings.ToLower(filepath.Ext(e.Name()))) {
			continue
		}
		out = append(out, filepath.Join(s.dir, e.Name()))
	}
	return out, nil
}

func (s *directorySource) Frame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	files, err := s.files()
	if err != nil {
		return nil, fmt.Errorf("list frames: %w", err)
	}
	if len(files) == 0 {
		return nil, errors.New("no frames in directory")
	}

	s.mu.Lock()
	path := files[s.next%len(files)]
	s.next++
	s.mu.Unlock()

	// #nosec G304 -- frame directories are operator configured
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}
	img, _, err := decodeBytes(data)
	return img, err
}
