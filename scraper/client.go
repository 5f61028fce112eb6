package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aluiziolira/go-scrape-venues/config"
	"github.com/gocolly/colly/v2"
)

const (
	phaseSitemap    = "sitemap"
	phaseDetail     = "detail"
	phaseListing    = "listing"
	phasePricing    = "pricing"
	phaseAttachment = "attachment"
)

// Client owns the colly collector whose HTTP backend is shared by every
// fetch of a run. Each request runs on a clone so callbacks stay local.
type Client struct {
	cfg       *config.Config
	collector *colly.Collector
	headers   http.Header
	Metrics   *Metrics

	requestCount int64
	errorCount   int64
	retryCount   int64

	mu           sync.Mutex
	failedURLs   []string
	errorsByType map[string]int
}

// NewClient builds a client configured from cfg.
func NewClient(cfg *config.Config) (*Client, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
		colly.MaxBodySize(cfg.MaxBodySize),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = true
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: cfg.Concurrency * 2,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	// Attachment downloads run inside a detail fetch, so leave room for them.
	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.Concurrency * 2,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	return &Client{
		cfg:          cfg,
		collector:    collector,
		headers:      cfg.Headers(),
		Metrics:      NewMetrics(),
		errorsByType: make(map[string]int),
	}, nil
}

// SetTransport replaces the HTTP transport, e.g. with a mock in tests.
func (c *Client) SetTransport(rt http.RoundTripper) {
	c.collector.WithTransport(rt)
}

// Config returns the configuration the client was built with.
func (c *Client) Config() *config.Config {
	return c.cfg
}

type page struct {
	URL    string
	Status int
	Body   []byte
	resp   *colly.Response
}

// get issues one GET request. Non-2xx statuses and transport failures are
// returned as NetworkError.
func (c *Client) get(ctx context.Context, rawURL, phase string) (*page, error) {
	if err := ctx.Err(); err != nil {
		return nil, NetworkError{URL: rawURL, Err: err}
	}

	collector := c.collector.Clone()
	if phase == phaseAttachment {
		// colly truncates bodies past the limit without an error.
		collector.MaxBodySize = 0
	}

	var (
		resp    *colly.Response
		respErr error
	)
	collector.OnRequest(func(r *colly.Request) {
		for key, values := range c.headers {
			for i, v := range values {
				if i == 0 {
					r.Headers.Set(key, v)
				} else {
					r.Headers.Add(key, v)
				}
			}
		}
	})
	collector.OnResponse(func(r *colly.Response) {
		resp = r
	})
	collector.OnError(func(r *colly.Response, err error) {
		resp = r
		respErr = err
	})

	current := atomic.AddInt64(&c.requestCount, 1)
	c.Metrics.IncRequest(phase)
	if current%50 == 0 {
		slog.Debug("scraper request progress",
			slog.Int64("requests", current),
			slog.String("url", rawURL),
		)
	}

	start := time.Now()
	visitErr := collector.Visit(rawURL)
	c.Metrics.ObserveDuration(phase, time.Since(start))

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	if respErr == nil {
		respErr = visitErr
	}
	if respErr == nil && resp == nil {
		respErr = errors.New("no response")
	}
	if respErr == nil && status >= http.StatusBadRequest {
		respErr = fmt.Errorf("http status %d", status)
	}
	if respErr != nil {
		classified := classifyError(respErr, status)
		c.recordError(rawURL, classified)
		return nil, NetworkError{URL: rawURL, Status: status, Err: classified}
	}

	return &page{URL: rawURL, Status: status, Body: resp.Body, resp: resp}, nil
}

// getWithRetry retries retryable failures with capped exponential backoff.
func (c *Client) getWithRetry(ctx context.Context, rawURL, phase string) (*page, error) {
	for attempt := 0; ; attempt++ {
		p, err := c.get(ctx, rawURL, phase)
		if err == nil {
			return p, nil
		}
		if attempt >= c.cfg.MaxRetries || !retryable(err) {
			c.markFailed(rawURL)
			return nil, err
		}

		atomic.AddInt64(&c.retryCount, 1)
		c.Metrics.IncRetries()
		delay := backoff(c.cfg.RetryBackoff, c.cfg.RetryBackoffMax, attempt+1)
		slog.Debug("retrying request",
			slog.String("url", rawURL),
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay),
			slog.Any("error", err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			c.markFailed(rawURL)
			return nil, err
		case <-timer.C:
		}
	}
}

func backoff(base, max time.Duration, attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if max > 0 && delay > max {
		delay = max
	}
	return delay
}

func (c *Client) recordError(rawURL string, err error) {
	atomic.AddInt64(&c.errorCount, 1)
	category := errorTypeLabel(err)

	c.mu.Lock()
	c.errorsByType[category]++
	c.mu.Unlock()

	c.Metrics.IncError(category)
	slog.Debug("request error",
		slog.String("url", rawURL),
		slog.String("category", category),
		slog.Any("error", err),
	)
}

func (c *Client) markFailed(rawURL string) {
	c.mu.Lock()
	c.failedURLs = append(c.failedURLs, rawURL)
	c.mu.Unlock()
}

// Stats is a snapshot of the client's request counters.
type Stats struct {
	RequestCount int
	ErrorCount   int
	RetryCount   int
	FailedURLs   []string
	ErrorsByType map[string]int
}

// Stats returns a copy of the current counters.
func (c *Client) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	failed := make([]string, len(c.failedURLs))
	copy(failed, c.failedURLs)
	byType := make(map[string]int, len(c.errorsByType))
	for k, v := range c.errorsByType {
		byType[k] = v
	}

	return Stats{
		RequestCount: int(atomic.LoadInt64(&c.requestCount)),
		ErrorCount:   int(atomic.LoadInt64(&c.errorCount)),
		RetryCount:   int(atomic.LoadInt64(&c.retryCount)),
		FailedURLs:   failed,
		ErrorsByType: byType,
	}
}

func classifyError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}

	if statusCode != 0 {
		wrapped := err
		if wrapped == nil {
			wrapped = fmt.Errorf("http status %d", statusCode)
		}
		switch statusCode {
		case http.StatusForbidden:
			return ErrForbidden{Err: wrapped}
		case http.StatusNotFound:
			return ErrNotFound{Err: wrapped}
		case http.StatusTooManyRequests:
			return ErrRateLimited{Err: wrapped}
		}
	}

	if err == nil {
		return nil
	}
	return err
}
