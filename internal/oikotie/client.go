// Package oikotie is the client for the upstream card search API.
package oikotie

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/oikotie-tools/apartment-radar/internal/metrics"
	"github.com/oikotie-tools/apartment-radar/internal/models"
)

const (
	cardsPath = "/api/cards"
	htmlPath  = "/myytavat-asunnot"
)

var (
	// ErrUpstreamUnavailable covers network failures, non-2xx responses, and
	// malformed payloads.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrAuthRejected means upstream refused the request as unauthenticated.
	// The client retries such a call once with fresh credentials before
	// surfacing ErrUpstreamUnavailable.
	ErrAuthRejected = errors.New("upstream rejected credentials")
)

// Client performs authenticated paginated fetches against the card API.
type Client struct {
	httpClient *http.Client
	cardsURL   string
	creds      CredentialProvider
	timeout    time.Duration
	log        *slog.Logger
}

// New builds a Client rooted at baseURL. Credentials are scraped from the
// listing HTML page unless a provider is injected with WithCredentials.
func New(baseURL string, timeout time.Duration, log *slog.Logger) *Client {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	httpClient := &http.Client{}
	base := strings.TrimRight(baseURL, "/")

	return &Client{
		httpClient: httpClient,
		cardsURL:   base + cardsPath,
		creds:      NewHTMLCredentials(httpClient, base+htmlPath, 10*time.Minute),
		timeout:    timeout,
		log:        log,
	}
}

// WithCredentials swaps the credential provider. Used by tests and callers
// with an out-of-band token source.
func (c *Client) WithCredentials(creds CredentialProvider) *Client {
	c.creds = creds
	return c
}

type searchResponse struct {
	Cards []json.RawMessage `json:"cards"`
	Found int               `json:"found"`
}

// Count issues a zero-limit probe with the given native-filter parameters and
// returns the upstream-reported match count. The count reflects only the
// native filters, so it is an upper bound once client-only predicates apply.
func (c *Client) Count(ctx context.Context, native url.Values) (int, error) {
	params := clone(native)
	params.Set("limit", "0")
	params.Set("offset", "0")

	res, err := c.do(ctx, "count", params)
	if err != nil {
		return 0, err
	}
	return res.Found, nil
}

// FetchBatch performs one paginated call and returns the raw records in
// upstream order.
func (c *Client) FetchBatch(ctx context.Context, native url.Values, offset, limit int, sortBy string) ([]models.RawRecord, error) {
	params := clone(native)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))
	if sortBy != "" {
		params.Set("sortBy", sortBy)
	}

	res, err := c.do(ctx, "fetch_batch", params)
	if err != nil {
		return nil, err
	}

	records := make([]models.RawRecord, len(res.Cards))
	for i, card := range res.Cards {
		records[i] = models.RawRecord(card)
	}
	return records, nil
}

// do executes one call with the credential headers attached. An auth
// rejection triggers exactly one credential refresh and retry.
func (c *Client) do(ctx context.Context, op string, params url.Values) (*searchResponse, error) {
	res, err := c.doOnce(ctx, params)
	if errors.Is(err, ErrAuthRejected) {
		c.log.Warn("upstream rejected credentials, re-acquiring", slog.String("op", op))
		c.creds.Invalidate()
		res, err = c.doOnce(ctx, params)
	}

	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(op, "error").Inc()
		if errors.Is(err, ErrAuthRejected) {
			return nil, fmt.Errorf("%w: %s", ErrUpstreamUnavailable, err)
		}
		return nil, err
	}

	metrics.UpstreamRequests.WithLabelValues(op, "ok").Inc()
	return res, nil
}

func (c *Client) doOnce(ctx context.Context, params url.Values) (*searchResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	headers, err := c.creds.Headers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: acquire credentials: %s", ErrUpstreamUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cardsURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUpstreamUnavailable, err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %s", ErrAuthRejected, res.Status)
	case res.StatusCode < 200 || res.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, fmt.Errorf("%w: status %s: %s", ErrUpstreamUnavailable, res.Status, strings.TrimSpace(string(body)))
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode search response: %s", ErrUpstreamUnavailable, err)
	}
	return &parsed, nil
}

func clone(v url.Values) url.Values {
	out := make(url.Values, len(v)+3)
	for key, values := range v {
		out[key] = append([]string(nil), values...)
	}
	return out
}
