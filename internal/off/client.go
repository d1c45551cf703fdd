// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package off is a client for the Open Food Facts product database, with
// the smart search and meal plan features built on top of it.
package off

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ManuGH/nutriscan/internal/cache"
	xglog "github.com/ManuGH/nutriscan/internal/log"
	"github.com/ManuGH/nutriscan/internal/metrics"
	"github.com/ManuGH/nutriscan/internal/platform/httpx"
	"github.com/ManuGH/nutriscan/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

const (
	upstreamName = "openfoodfacts"
	maxBodyBytes = 16 << 20
)

// Config configures a Client.
type Config struct {
	BaseURL          string
	UserAgent        string
	Timeout          time.Duration
	SearchTTL        time.Duration
	ProductTTL       time.Duration
	FailureThreshold int
	ResetTimeout     time.Duration
}

// Client talks to Open Food Facts. Responses are cached in a cache.Store
// and concurrent identical requests share one upstream call.
type Client struct {
	base       string
	http       *http.Client
	breaker    *CircuitBreaker
	store      cache.Store
	group      singleflight.Group
	searchTTL  time.Duration
	productTTL time.Duration
	logger     zerolog.Logger
	tracer     trace.Tracer
}

// New creates a client. A nil store disables caching.
func New(cfg Config, store cache.Store) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if store == nil {
		store = cache.NewNoopStore()
	}
	opts := []httpx.Option{httpx.WithTracing(upstreamName)}
	if cfg.UserAgent != "" {
		opts = append(opts, httpx.WithUserAgent(cfg.UserAgent))
	}
	return &Client{
		base:       strings.TrimRight(cfg.BaseURL, "/"),
		http:       httpx.NewClient(cfg.Timeout, opts...),
		breaker:    NewCircuitBreaker(upstreamName, cfg.FailureThreshold, cfg.ResetTimeout, countsAsFailure),
		store:      store,
		searchTTL:  cfg.SearchTTL,
		productTTL: cfg.ProductTTL,
		logger:     xglog.WithComponent("off"),
		tracer:     telemetry.Tracer("nutriscan/off"),
	}
}

// Breaker exposes the circuit breaker state for health reporting.
func (c *Client) Breaker() *CircuitBreaker { return c.breaker }

type productResponse struct {
	Status  int     `json:"status"`
	Product Product `json:"product"`
}

type searchResponse struct {
	Count    json.Number `json:"count"`
	Page     json.Number `json:"page"`
	Products []Product   `json:"products"`
}

// Product looks up a product by barcode.
func (c *Client) Product(ctx context.Context, barcode string) (Product, error) {
	barcode = strings.TrimSpace(barcode)
	if !validBarcode(barcode) {
		return Product{}, fmt.Errorf("%w: %q", ErrInvalidBarcode, barcode)
	}
	ctx, span := c.tracer.Start(ctx, "off.Product")
	defer span.End()
	span.SetAttributes(attribute.String(telemetry.UpstreamOperationKey, "product"))

	body, _, err := c.cached(ctx, "product", "off:product:"+barcode, c.productTTL,
		"/api/v0/product/"+url.PathEscape(barcode)+".json", nil)
	if err != nil {
		telemetry.RecordError(span, err)
		return Product{}, err
	}

	var resp productResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Product{}, &OFFError{Sentinel: ErrUpstreamBadResponse, Operation: "product", Err: err}
	}
	if resp.Status != 1 {
		return Product{}, &OFFError{Sentinel: ErrNotFound, Operation: "product"}
	}
	if resp.Product.Code == "" {
		resp.Product.Code = barcode
	}
	return resp.Product, nil
}

// Search runs a smart search and applies the post filters.
func (c *Client) Search(ctx context.Context, q Query) (SearchResult, error) {
	q = q.normalize()
	params := q.params()

	ctx, span := c.tracer.Start(ctx, "off.Search")
	defer span.End()

	key := "off:search:" + params.Encode()
	resp, hit, err := c.search(ctx, "search", key, params)
	span.SetAttributes(telemetry.SearchAttributes("search", q.Category, q.Page, hit)...)
	if err != nil {
		telemetry.RecordError(span, err)
		return SearchResult{}, err
	}

	out := SearchResult{Page: q.Page, PageSize: q.PageSize, Products: []Product{}}
	if n, err := resp.Count.Int64(); err == nil {
		out.Count = int(n)
	}
	for _, p := range resp.Products {
		if q.keep(p) {
			out.Products = append(out.Products, p)
		}
	}
	if resp.Count == "" {
		out.Count = len(out.Products)
	}
	c.logger.Debug().
		Str(xglog.FieldQuery, key).
		Int("upstream", len(resp.Products)).
		Int("kept", len(out.Products)).
		Msg("search completed")
	return out, nil
}

// MealPlan picks up to four meal products within req.LimitKcal.
func (c *Client) MealPlan(ctx context.Context, req MealPlanRequest) (MealPlan, error) {
	if req.LimitKcal <= 0 {
		req.LimitKcal = DefaultLimitKcal
	}
	ctx, span := c.tracer.Start(ctx, "off.MealPlan")
	defer span.End()
	span.SetAttributes(attribute.Int("mealplan.limit_kcal", req.LimitKcal))

	params := url.Values{}
	params.Set("search_terms", "meal")
	params.Set("search_simple", "1")
	params.Set("action", "process")
	params.Set("json", "1")
	params.Set("page_size", fmt.Sprint(mealPlanPageSize))

	resp, _, err := c.search(ctx, "mealplan", "off:mealplan:"+params.Encode(), params)
	if err != nil {
		telemetry.RecordError(span, err)
		return MealPlan{}, err
	}
	return buildMealPlan(resp.Products, req), nil
}

func (c *Client) search(ctx context.Context, op, key string, params url.Values) (searchResponse, bool, error) {
	body, hit, err := c.cached(ctx, op, key, c.searchTTL, "/cgi/search.pl", params)
	if err != nil {
		return searchResponse{}, false, err
	}
	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		c.store.Delete(ctx, key)
		return searchResponse{}, hit, &OFFError{Sentinel: ErrUpstreamBadResponse, Operation: op, Err: err}
	}
	return resp, hit, nil
}

// cached returns the body for key from the store, or fetches and stores it.
// hit reports a cache hit.
func (c *Client) cached(ctx context.Context, op, key string, ttl time.Duration, path string, params url.Values) (body []byte, hit bool, err error) {
	if body, ok := c.store.Get(ctx, key); ok {
		metrics.RecordCacheLookup(upstreamName, true)
		return body, true, nil
	}
	metrics.RecordCacheLookup(upstreamName, false)

	v, err, shared := c.group.Do(key, func() (any, error) {
		// The shared call must not die with the first caller's request.
		body, err := c.fetch(context.WithoutCancel(ctx), op, path, params)
		if err != nil {
			return nil, err
		}
		if ttl > 0 {
			c.store.Set(ctx, key, body, ttl)
		}
		return body, nil
	})
	if err != nil {
		return nil, false, err
	}
	if shared {
		c.logger.Debug().Str("operation", op).Msg("joined in-flight upstream request")
	}
	return v.([]byte), false, nil
}

func (c *Client) fetch(ctx context.Context, op, path string, params url.Values) ([]byte, error) {
	u := c.base + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	start := time.Now()
	var body []byte
	err := c.breaker.Execute(func() error {
		var err error
		body, err = c.get(ctx, op, u)
		return err
	})
	if errors.Is(err, ErrCircuitOpen) {
		err = &OFFError{Sentinel: ErrUpstreamUnavailable, Operation: op, Err: err}
	}
	metrics.RecordUpstreamRequest(upstreamName, op, outcome(err), time.Since(start))
	if err != nil {
		c.logger.Warn().
			Err(err).
			Str(xglog.FieldUpstream, upstreamName).
			Str("operation", op).
			Msg("upstream request failed")
		return nil, err
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, op, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &OFFError{Sentinel: ErrUpstreamBadResponse, Operation: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransport(op, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &OFFError{Sentinel: ErrNotFound, Operation: op, Status: resp.StatusCode}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &OFFError{Sentinel: ErrRateLimited, Operation: op, Status: resp.StatusCode}
	case resp.StatusCode >= 500:
		return nil, &OFFError{Sentinel: ErrUpstreamError, Operation: op, Status: resp.StatusCode}
	case resp.StatusCode != http.StatusOK:
		return nil, &OFFError{Sentinel: ErrUpstreamBadResponse, Operation: op, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, classifyTransport(op, err)
	}
	if len(body) > maxBodyBytes {
		return nil, &OFFError{Sentinel: ErrUpstreamBadResponse, Operation: op, Err: errors.New("response too large")}
	}
	return body, nil
}

func classifyTransport(op string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &OFFError{Sentinel: ErrTimeout, Operation: op, Err: err}
	}
	return &OFFError{Sentinel: ErrUpstreamUnavailable, Operation: op, Err: err}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

func validBarcode(s string) bool {
	if len(s) < 4 || len(s) > 14 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
