// Package scrapeapi fetches pages through a hosted scraping API that renders
// a page and returns its main content as markdown.
package scrapeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/user/crawl-tracker/internal/repository"
)

const scrapePath = "/v1/scrape"

// maxErrorBody caps how much of an error response is kept for the message.
const maxErrorBody = 512

type scrapeRequest struct {
	URL             string            `json:"url"`
	Formats         []string          `json:"formats"`
	OnlyMainContent bool              `json:"onlyMainContent"`
	FastMode        bool              `json:"fastMode"`
	Headers         map[string]string `json:"headers,omitempty"`
	Timeout         int64             `json:"timeout,omitempty"` // milliseconds
}

type scrapeResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Data    struct {
		Markdown string `json:"markdown"`
		Metadata struct {
			Title      string `json:"title"`
			StatusCode int    `json:"statusCode"`
		} `json:"metadata"`
	} `json:"data"`
}

// Client implements repository.PageFetcher against the scrape API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	limiter    *rate.Limiter
}

type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimit paces outgoing requests. A non-positive rate disables pacing.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		burst := int(perSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// NewClient creates a scrape API client.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch asks the API to scrape req.URL. The deadline on ctx bounds the call.
func (c *Client) Fetch(ctx context.Context, req repository.FetchRequest) (*repository.FetchResult, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: %v", repository.ErrFetchTimeout, err)
		}
	}

	body := scrapeRequest{
		URL:             req.URL,
		Formats:         []string{req.Format},
		OnlyMainContent: req.OnlyMainContent,
		FastMode:        req.FastMode,
		Headers:         req.Headers,
	}
	if deadline, ok := ctx.Deadline(); ok {
		body.Timeout = time.Until(deadline).Milliseconds()
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode scrape request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+scrapePath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build scrape request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classify(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &repository.FetchResult{ResponseCode: resp.StatusCode},
			fmt.Errorf("%w: scrape api returned %d: %s", repository.ErrFetchRejected, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out scrapeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, classify(ctx, fmt.Errorf("decode scrape response: %w", err))
	}

	result := &repository.FetchResult{
		Content:      out.Data.Markdown,
		Title:        out.Data.Metadata.Title,
		ResponseCode: out.Data.Metadata.StatusCode,
	}
	if !out.Success {
		msg := out.Error
		if msg == "" {
			msg = "scrape unsuccessful"
		}
		return result, fmt.Errorf("%w: %s", repository.ErrFetchRejected, msg)
	}
	return result, nil
}

// classify maps transport failures onto the fetch sentinel errors.
func classify(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", repository.ErrFetchTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", repository.ErrFetchTimeout, err)
	}
	return fmt.Errorf("%w: %v", repository.ErrFetchTransport, err)
}
