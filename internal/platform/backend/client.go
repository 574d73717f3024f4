// Package backend talks to the upstream odds backend: its REST API for
// balances, bet submission, hidden items and fixtures, and its trade-feed
// WebSocket.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultRatePerSec = 10
	defaultBurst      = 5
	defaultMaxRetries = 3
	baseRetryWait     = 500 * time.Millisecond

	apiKeyHeader = "X-API-Key"
)

// ClientConfig configures a Client. Zero values take defaults.
type ClientConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	RatePerSec float64
	Burst      int
	MaxRetries int
}

// Client is the REST client for the upstream backend, with client-side rate
// limiting and retries on 429 and 5xx.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	retryWait  time.Duration
	logger     *slog.Logger
}

// NewClient creates a backend REST client.
//
// BaseURL is the backend root, e.g. "http://localhost:8000".
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = defaultRatePerSec
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaultBurst
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
		maxRetries: cfg.MaxRetries,
		retryWait:  baseRetryWait,
		logger:     logger.With(slog.String("component", "backend")),
	}
}

// GetBalance returns the stored balance for a bookmaker.
func (c *Client) GetBalance(ctx context.Context, bookmakerKey string) (domain.Balance, error) {
	path := fmt.Sprintf("/api/v1/bookmakers/key/%s/balance", url.PathEscape(bookmakerKey))

	var resp APIBalance
	if err := c.do(ctx, http.MethodGet, path, nil, &resp, true); err != nil {
		return domain.Balance{}, fmt.Errorf("backend: get balance %s: %w", bookmakerKey, err)
	}
	if resp.Balance == nil {
		return domain.Balance{}, fmt.Errorf("backend: get balance %s: %w", bookmakerKey, domain.ErrNotFound)
	}

	return domain.Balance{
		Bookmaker: bookmakerKey,
		Balance:   *resp.Balance,
		Currency:  resp.Currency,
		FetchedAt: time.Now().UTC(),
	}, nil
}

// SubmitBet places a bet. Only rate-limit responses are retried, so a bet is
// never submitted twice after an ambiguous failure.
func (c *Client) SubmitBet(ctx context.Context, req domain.BetRequest, clientRef string) (domain.BetReceipt, error) {
	payload := APIBetCreate{
		EventID:      req.EventID,
		BookmakerKey: req.BookmakerKey,
		MarketKey:    req.Market,
		Selection:    req.Selection,
		Stake:        req.Stake,
		Price:        req.Price,
		TrueOdds:     req.TrueOdds,
		ClientRef:    clientRef,
	}
	if req.PresetID != 0 {
		id := req.PresetID
		payload.PresetID = &id
	}

	var resp APIBet
	if err := c.do(ctx, http.MethodPost, "/api/v1/bets", payload, &resp, false); err != nil {
		return domain.BetReceipt{}, fmt.Errorf("backend: submit bet: %w", err)
	}

	receipt := domain.BetReceipt{
		ExternalID: strconv.FormatInt(resp.ID, 10),
		Status:     betStatus(resp.Status),
		PlacedAt:   resp.PlacedAt.Time,
	}
	if resp.ExternalID != nil && *resp.ExternalID != "" {
		receipt.ExternalID = *resp.ExternalID
	}
	if receipt.PlacedAt.IsZero() {
		receipt.PlacedAt = time.Now().UTC()
	}
	return receipt, nil
}

// HideItem records a suppression rule for a preset.
func (c *Client) HideItem(ctx context.Context, presetID int64, item domain.HiddenItem) error {
	path := fmt.Sprintf("/api/v1/presets/%d/hidden-items", presetID)
	payload := APIHiddenItemCreate{
		EventID:       item.EventID,
		MarketKey:     item.MarketKey,
		SelectionNorm: item.SelectionNorm,
		ExpiryAt:      item.ExpiryAt.UTC(),
	}
	if err := c.do(ctx, http.MethodPost, path, payload, nil, false); err != nil {
		return fmt.Errorf("backend: hide item for preset %d: %w", presetID, err)
	}
	return nil
}

// Fixtures returns the upcoming and recently started fixtures.
func (c *Client) Fixtures(ctx context.Context) ([]domain.Fixture, error) {
	var rows []APIFixture
	if err := c.do(ctx, http.MethodGet, "/api/fixtures/list", nil, &rows, true); err != nil {
		return nil, fmt.Errorf("backend: fixtures: %w", err)
	}

	fixtures := make([]domain.Fixture, 0, len(rows))
	for i := range rows {
		fixtures = append(fixtures, rows[i].ToDomain())
	}
	return fixtures, nil
}

// do sends a JSON request with rate limiting. When retryable is set,
// transport errors and 5xx responses are retried with exponential backoff;
// 429 is always retried.
func (c *Client) do(ctx context.Context, method, path string, body, out any, retryable bool) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		payload = b
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, attempt-1); err != nil {
				return err
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		status, respBody, err := c.send(ctx, method, path, payload)
		if err != nil {
			lastErr = fmt.Errorf("%w: %v", domain.ErrUpstream, err)
			if !retryable || ctx.Err() != nil {
				return lastErr
			}
			continue
		}

		switch {
		case status == http.StatusTooManyRequests:
			c.logger.WarnContext(ctx, "rate limited by backend",
				slog.String("path", path),
				slog.Int("attempt", attempt+1),
			)
			lastErr = checkHTTPStatus(status, respBody)
			continue
		case status >= 500:
			lastErr = checkHTTPStatus(status, respBody)
			if !retryable {
				return lastErr
			}
			continue
		}

		if err := checkHTTPStatus(status, respBody); err != nil {
			return err
		}
		if out == nil || len(respBody) == 0 {
			return nil
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries: %w", c.maxRetries, lastErr)
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// sleep waits 2^attempt * retryWait or until ctx is done.
func (c *Client) sleep(ctx context.Context, attempt int) error {
	wait := time.Duration(math.Pow(2, float64(attempt))) * c.retryWait
	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch {
	case statusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case statusCode == http.StatusUnauthorized, statusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case statusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	case statusCode == http.StatusBadRequest, statusCode == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", domain.ErrInvalidBet, bodyStr)
	default:
		return fmt.Errorf("%w: HTTP %d: %s", domain.ErrUpstream, statusCode, bodyStr)
	}
}
