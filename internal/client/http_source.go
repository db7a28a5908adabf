package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/devrev/catalogd/internal/errors"
	"github.com/devrev/catalogd/internal/metrics"
	"github.com/devrev/catalogd/internal/model"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// HTTPSourceConfig holds configuration for the HTTP catalog client
type HTTPSourceConfig struct {
	BaseURL           string
	Timeout           time.Duration
	MaxAttempts       int
	RetryBaseDelay    time.Duration
	MaxRetryDelay     time.Duration
	RequestsPerSecond float64
	Burst             int
}

// HTTPCatalogSource talks JSON to the remote listing API
type HTTPCatalogSource struct {
	cfg        HTTPSourceConfig
	baseURL    *url.URL
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

type optionsResponse struct {
	Options []model.Option `json:"options"`
}

type searchRequest struct {
	Filters map[string]interface{} `json:"filters"`
	Limit   int                    `json:"limit"`
}

type searchResponse struct {
	Entries    []model.CatalogEntry `json:"entries"`
	TotalCount int                  `json:"total_count"`
}

type rangeFilter struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// NewHTTPCatalogSource creates a new HTTP catalog client
func NewHTTPCatalogSource(cfg HTTPSourceConfig, m *metrics.Metrics, logger *zap.Logger) (*HTTPCatalogSource, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid remote base url %q", cfg.BaseURL)
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 200 * time.Millisecond
	}
	if cfg.MaxRetryDelay <= 0 {
		cfg.MaxRetryDelay = 5 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &HTTPCatalogSource{
		cfg:        cfg,
		baseURL:    base,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, burst),
		metrics:    m,
		logger:     logger,
	}, nil
}

// ListOptions fetches GET {base}/options/{dimension}?{ancestor}={value}...
func (c *HTTPCatalogSource) ListOptions(ctx context.Context, d model.Dimension, ancestors model.AncestorPath) ([]model.Option, error) {
	u := *c.baseURL
	u.Path = c.baseURL.Path + "/options/" + url.PathEscape(string(d))
	q := url.Values{}
	for _, e := range ancestors {
		q.Set(string(e.Dimension), e.Value.String())
	}
	u.RawQuery = q.Encode()

	var resp optionsResponse
	err := c.withRetry(ctx, "list_options", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return errors.InternalError("failed to build options request", err)
		}
		return c.do(req, &resp)
	})
	if err != nil {
		return nil, err
	}
	return resp.Options, nil
}

// Search posts the filter state to POST {base}/search
func (c *HTTPCatalogSource) Search(ctx context.Context, state *model.FilterState, limit int) (*model.SearchResult, error) {
	body, err := json.Marshal(searchRequest{Filters: EncodeFilters(state), Limit: limit})
	if err != nil {
		return nil, errors.InternalError("failed to encode search request", err)
	}

	u := *c.baseURL
	u.Path = c.baseURL.Path + "/search"

	var resp searchResponse
	err = c.withRetry(ctx, "search", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
		if err != nil {
			return errors.InternalError("failed to build search request", err)
		}
		req.Header.Set("Content-Type", "application/json")
		return c.do(req, &resp)
	})
	if err != nil {
		return nil, err
	}

	entries := resp.Entries
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	total := resp.TotalCount
	if total < len(entries) {
		total = len(entries)
	}
	return &model.SearchResult{Entries: entries, TotalCount: total}, nil
}

// EncodeFilters renders a filter state as the JSON filter object of a search request
func EncodeFilters(state *model.FilterState) map[string]interface{} {
	out := make(map[string]interface{}, state.Len())
	for d, v := range state.Values() {
		switch val := v.(type) {
		case model.StringValue:
			out[string(d)] = val.ID
		case model.EnumValue:
			out[string(d)] = val.Code
		case model.RangeValue:
			out[string(d)] = rangeFilter{Min: val.Min, Max: val.Max}
		case model.AnyValue:
			// never stored in a state
		}
	}
	return out
}

// do executes one attempt and classifies the outcome
func (c *HTTPCatalogSource) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.NetworkError("remote catalog request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		io.Copy(io.Discard, resp.Body)
		return errors.RateLimited(parseRetryAfter(resp.Header.Get("Retry-After")))
	case resp.StatusCode >= 400:
		io.Copy(io.Discard, resp.Body)
		return errors.NetworkError(fmt.Sprintf("remote catalog returned %d", resp.StatusCode), nil).
			WithDetail("status", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.NetworkError("failed to decode remote catalog response", err).
			WithDetail("status", resp.StatusCode)
	}
	return nil
}

// withRetry runs attempt with exponential backoff on retryable failures
func (c *HTTPCatalogSource) withRetry(ctx context.Context, operation string, attempt func() error) error {
	var lastErr error
	for i := 0; i < c.cfg.MaxAttempts; i++ {
		if i > 0 {
			delay := c.backoff(i, lastErr)
			c.metrics.RemoteRetriesTotal.WithLabelValues(operation).Inc()
			c.logger.Debug("Retrying remote catalog call",
				zap.String("operation", operation),
				zap.Int("attempt", i+1),
				zap.Duration("delay", delay),
				zap.Error(lastErr))

			select {
			case <-ctx.Done():
				return errors.NetworkError("remote catalog call cancelled", ctx.Err())
			case <-time.After(delay):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return errors.NetworkError("remote catalog call cancelled", err)
		}

		err := attempt()
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil || !isRetryable(err) {
			return err
		}
	}

	c.logger.Warn("Remote catalog call failed after retries",
		zap.String("operation", operation),
		zap.Int("attempts", c.cfg.MaxAttempts),
		zap.Error(lastErr))
	return lastErr
}

// backoff doubles the base delay per attempt; a Retry-After hint is a floor
func (c *HTTPCatalogSource) backoff(attempt int, lastErr error) time.Duration {
	delay := c.cfg.RetryBaseDelay * time.Duration(1<<uint(attempt-1))
	if hint, ok := errors.RetryAfter(lastErr); ok && hint > delay {
		delay = hint
	}
	if delay > c.cfg.MaxRetryDelay {
		delay = c.cfg.MaxRetryDelay
	}
	return delay
}

// isRetryable determines if an error is retryable
func isRetryable(err error) bool {
	switch errors.GetCode(err) {
	case errors.ErrCodeRateLimited:
		return true
	case errors.ErrCodeNetwork:
		v, ok := errors.Detail(err, "status")
		if !ok {
			return true
		}
		status, _ := v.(int)
		return status >= 500
	default:
		return false
	}
}

func parseRetryAfter(h string) time.Duration {
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
