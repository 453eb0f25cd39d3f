// Package scraper fetches and parses the external listing sites. Each site
// is one Collector behind a narrow contract, so a markup change on one site
// never risks another's parsing. All collectors share a Client that enforces
// a per-request timeout, a fixed polite delay between requests and a small
// retry budget for transient failures.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cenkalti/backoff/v4"

	"github.com/tkonno/koyama-events/internal/event"
)

const (
	DefaultUserAgent = "koyama-events/1.0 (github.com/tkonno/koyama-events)"
	DefaultTimeout   = 15 * time.Second
	DefaultDelay     = 500 * time.Millisecond

	maxFetchRetries = 2
)

// Collector extracts candidate events from one external listing site.
// Implementations skip malformed single items and keep going; they return an
// error only for a total failure (site unreachable, listing unparseable).
type Collector interface {
	// ID is the stable source identifier stored on every event.
	ID() string
	// Name is the human-readable site name for logs.
	Name() string
	// ScrapeEvents fetches the site's listing and detail pages and returns
	// whatever partial candidates the site exposes.
	ScrapeEvents(ctx context.Context) ([]event.Candidate, error)
}

// Client is the shared HTTP layer for collectors.
type Client struct {
	http      *http.Client
	userAgent string
	delay     time.Duration
	log       *slog.Logger
}

// ClientOptions overrides Client defaults; zero values keep them.
type ClientOptions struct {
	UserAgent string
	Timeout   time.Duration
	Delay     time.Duration
}

// NewClient creates a Client with the given options.
func NewClient(opts ClientOptions, log *slog.Logger) *Client {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Delay == 0 {
		opts.Delay = DefaultDelay
	}
	return &Client{
		http:      &http.Client{Timeout: opts.Timeout},
		userAgent: opts.UserAgent,
		delay:     opts.Delay,
		log:       log,
	}
}

// HTTPClient exposes the underlying client for test interception.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// Document fetches url and parses it as HTML. Transient failures are retried
// with constant backoff; after each attempt the polite inter-request delay
// applies, so consecutive Document calls never hammer a site.
func (c *Client) Document(ctx context.Context, url string) (*goquery.Document, error) {
	var doc *goquery.Document

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("User-Agent", c.userAgent)

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", url, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return backoff.Permanent(err)
			}
			return err
		}

		doc, err = goquery.NewDocumentFromReader(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("parse %s: %w", url, err))
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Second), maxFetchRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}

	select {
	case <-time.After(c.delay):
	case <-ctx.Done():
		return doc, ctx.Err()
	}
	return doc, nil
}
