// Package oracle reads the off-chain NAV computed by the oracle API.
package oracle

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"navfund/internal/metrics"
	"navfund/pkg/errors"
	"navfund/pkg/logger"
)

const navEndpoint = "/api/nav"

// NavReport is the oracle's current NAV per share.
type NavReport struct {
	NavCents        uint64          `json:"nav_cents"`
	NavUSD          float64         `json:"nav_usd"`
	Timestamp       int64           `json:"timestamp"` // unix seconds
	MonthlyYieldUSD float64         `json:"monthly_yield_usd"`
	Breakdown       json.RawMessage `json:"breakdown,omitempty"`
}

// ComputedAt returns the report timestamp.
func (r NavReport) ComputedAt() time.Time {
	return time.Unix(r.Timestamp, 0).UTC()
}

// Config configures the oracle client
type Config struct {
	BaseURL           string
	RequestsPerSecond float64
	Timeout           time.Duration
}

// Client is an HTTP client for the oracle API. Calls share one rate limiter.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	log     *logger.Logger
}

// NewClient creates a new oracle client
func NewClient(cfg Config, log *logger.Logger) *Client {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		log:     log.With("component", "oracle_client"),
	}
}

// FetchNav returns the oracle's current NAV. A zero NAV is rejected with ErrInvalidNavPrice.
func (c *Client) FetchNav(ctx context.Context) (report *NavReport, err error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "oracle rate limiter")
	}

	start := time.Now()
	defer func() {
		metrics.RecordOracleAPICall(navEndpoint, time.Since(start), err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+navEndpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build oracle request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrUnavailable, "oracle request: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrap(err, "read oracle response")
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(body, &apiErr)
		return nil, errors.Wrapf(errors.ErrUnavailable, "oracle returned %d: %s", resp.StatusCode, apiErr.Error)
	}

	var r NavReport
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "decode oracle response: %v", err)
	}
	if r.NavCents == 0 {
		return nil, errors.Wrap(errors.ErrInvalidNavPrice, "oracle reported zero NAV")
	}

	c.log.Debugw("Fetched NAV", "nav_cents", r.NavCents, "computed_at", r.ComputedAt())
	return &r, nil
}
