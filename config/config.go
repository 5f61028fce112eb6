package config

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds scraper configuration.
type Config struct {
	BaseURL         string
	SitemapPath     string
	Concurrency     int
	Delay           time.Duration
	Timeout         time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	RetryBackoffMax time.Duration
	MaxBodySize     int
	Limit           int
	Force           bool
	OutputDir       string
	AttachmentsDir  string
	UserAgent       string
	AcceptLanguage  string
	Country         string
	TitleSuffix     string
	DedupeMaxSize   int
	MetricsAddr     string
	Verbose         bool
}

// DefaultConfig returns defaults for the BlissfulBrides target.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:         "https://www.blissfulbrides.sg",
		SitemapPath:     "/sitemap.xml",
		Concurrency:     10,
		Delay:           0,
		Timeout:         30 * time.Second,
		MaxRetries:      2,
		RetryBackoff:    500 * time.Millisecond,
		RetryBackoffMax: 5 * time.Second,
		MaxBodySize:     50 << 20,
		Limit:           0,
		Force:           false,
		OutputDir:       "data/bb",
		AttachmentsDir:  "",
		UserAgent:       "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		AcceptLanguage:  "en-SG,en;q=0.9",
		Country:         "Singapore",
		TitleSuffix:     " - Blissful Brides Singapore",
		DedupeMaxSize:   100000,
		MetricsAddr:     "",
		Verbose:         false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if c.SitemapPath == "" {
		return fmt.Errorf("sitemap path cannot be empty")
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.Delay > 0 && c.Concurrency > 1 {
		return fmt.Errorf("delay (%s) and concurrency (%d) are mutually exclusive: use concurrency 1 with a delay", c.Delay, c.Concurrency)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.MaxBodySize < 0 {
		return fmt.Errorf("max body size cannot be negative")
	}
	if c.Limit < 0 {
		return fmt.Errorf("limit cannot be negative")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output dir cannot be empty")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}

	return nil
}

// SitemapURL is the absolute location of the sitemap document.
func (c *Config) SitemapURL() string {
	return strings.TrimSuffix(c.BaseURL, "/") + "/" + strings.TrimPrefix(c.SitemapPath, "/")
}

// AttachmentsRoot returns the directory price lists are downloaded into.
func (c *Config) AttachmentsRoot() string {
	if c.AttachmentsDir != "" {
		return c.AttachmentsDir
	}
	return filepath.Join(c.OutputDir, "price-lists")
}

// OutputBase returns the extension-less output path for an entity type.
func (c *Config) OutputBase(name string) string {
	return filepath.Join(c.OutputDir, name)
}

// Headers builds the header set sent with every request.
func (c *Config) Headers() http.Header {
	h := make(http.Header)
	h.Set("User-Agent", c.UserAgent)
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if c.AcceptLanguage != "" {
		h.Set("Accept-Language", c.AcceptLanguage)
	}
	return h
}

// EnvInt reads an integer environment variable. ok is false when unset.
func EnvInt(key string) (value int, ok bool, err error) {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return 0, false, nil
	}
	value, err = strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, true, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

// EnvString reads a non-empty string environment variable.
func EnvString(key string) (string, bool) {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return "", false
	}
	return strings.TrimSpace(raw), true
}
