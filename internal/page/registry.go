// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package page

import (
	"sync"
	"time"

	"github.com/ManuGH/nutriscan/internal/cache"
	xglog "github.com/ManuGH/nutriscan/internal/log"
	"github.com/ManuGH/nutriscan/internal/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CookieName carries the page id.
const CookieName = "nutriscan_page"

// Factory builds the page for a new id.
type Factory func(id string) (*Page, error)

// Registry keeps the pages of live browser tabs. A page idle for longer
// than the TTL is evicted and closed.
type Registry struct {
	ttl     time.Duration
	factory Factory
	pages   *cache.Memory[*Page]
	logger  zerolog.Logger

	mu sync.Mutex // serialises lookup-or-create
}

// NewRegistry creates a registry. A positive cleanupInterval starts the
// eviction janitor; Close stops it.
func NewRegistry(ttl, cleanupInterval time.Duration, factory Factory) *Registry {
	r := &Registry{
		ttl:     ttl,
		factory: factory,
		pages:   cache.NewMemory[*Page](cleanupInterval),
		logger:  xglog.WithComponent("page"),
	}
	r.pages.OnEvict(func(id string, p *Page) {
		p.Close()
		metrics.SetActivePages(r.pages.Len())
		r.logger.Debug().Str(xglog.FieldPageID, id).Str(xglog.FieldEvent, "page.evicted").Msg("page evicted")
	})
	return r
}

// Get returns a live page and extends its lifetime.
func (r *Registry) Get(id string) (*Page, bool) {
	if id == "" {
		return nil, false
	}
	return r.pages.Touch(id)
}

// GetOrCreate returns the page for id, creating one under a fresh id when
// id is empty or unknown. created reports whether a new page was made.
func (r *Registry) GetOrCreate(id string) (p *Page, created bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.Get(id); ok {
		return p, false, nil
	}
	p, err = r.factory(uuid.NewString())
	if err != nil {
		return nil, false, err
	}
	r.pages.Set(p.ID(), p, r.ttl)
	metrics.SetActivePages(r.pages.Len())
	r.logger.Debug().Str(xglog.FieldPageID, p.ID()).Str(xglog.FieldEvent, "page.created").Msg("page created")
	return p, true, nil
}

// Len returns the number of pages held.
func (r *Registry) Len() int { return r.pages.Len() }

// Sweep evicts expired pages now.
func (r *Registry) Sweep() int { return r.pages.DeleteExpired() }

// Close closes every page and stops the janitor.
func (r *Registry) Close() {
	r.pages.Stop()
	r.pages.Drain()
	metrics.SetActivePages(0)
}
