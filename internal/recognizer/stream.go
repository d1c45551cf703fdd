// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package recognizer

import (
	"context"
	"sync"
	"time"

	"github.com/ManuGH/nutriscan/internal/capture"
	"github.com/ManuGH/nutriscan/internal/log"
	"github.com/ManuGH/nutriscan/internal/metrics"
	"github.com/rs/zerolog"
)

// stream polls one device until a barcode decodes or it is stopped.
type stream struct {
	deviceID  string
	source    FrameSource
	interval  time.Duration
	region    int
	timeout   time.Duration
	onDecoded func(string)
	logger    zerolog.Logger

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

var _ capture.Subscription = (*stream)(nil)

func (s *stream) run(ctx context.Context) {
	defer close(s.done)
	metrics.IncActiveStreams()
	defer metrics.DecActiveStreams()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if text, ok := s.tick(ctx); ok {
			s.onDecoded(text)
			return
		}
	}
}

// tick fetches and scans one frame. Panics from the decoders count as a miss.
func (s *stream) tick(ctx context.Context) (text string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Msg("frame decode panicked")
			text, ok = "", false
		}
	}()

	fctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	frame, err := s.source.Frame(fctx)
	if err != nil {
		if ctx.Err() == nil {
			metrics.RecordFrame(s.deviceID, false)
			s.logger.Debug().Err(err).Msg("frame fetch failed")
		}
		return "", false
	}
	metrics.RecordFrame(s.deviceID, true)

	d, err := decodeBarcode(cropCenter(frame, s.region), false)
	if err != nil {
		metrics.RecordDecodeAttempt("stream", "not_found")
		return "", false
	}
	metrics.RecordDecodeAttempt("stream", "decoded")
	s.logger.Info().Str(log.FieldFormat, d.Format).Msg("barcode decoded from stream")
	return d.Text, true
}

// Stop ends the stream and waits for its goroutine.
func (s *stream) Stop() {
	s.stopOnce.Do(s.cancel)
	<-s.done
}
