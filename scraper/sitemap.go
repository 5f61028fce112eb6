package scraper

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// FetchMatching fetches the sitemap and returns every location containing
// pattern, deduplicated in first-seen order. Retrieval or XML failures are
// returned as NetworkError; an empty result is not an error.
func (c *Client) FetchMatching(ctx context.Context, pattern string) ([]string, error) {
	sitemapURL := c.cfg.SitemapURL()
	p, err := c.get(ctx, sitemapURL, phaseSitemap)
	if err != nil {
		return nil, err
	}

	locs, err := parseLocations(bytes.NewReader(p.Body))
	if err != nil {
		c.recordError(sitemapURL, ParseError{URL: sitemapURL, Err: err})
		return nil, NetworkError{URL: sitemapURL, Status: p.Status, Err: ParseError{URL: sitemapURL, Err: err}}
	}

	urls := FilterURLs(locs, pattern)
	slog.Info("sitemap urls matched",
		slog.String("pattern", pattern),
		slog.Int("matched", len(urls)),
		slog.Int("total", len(locs)),
	)
	return urls, nil
}

// parseLocations collects the text of every <loc> element, which covers both
// urlset and sitemapindex documents.
func parseLocations(r io.Reader) ([]string, error) {
	decoder := xml.NewDecoder(r)
	var (
		locs       []string
		sawElement bool
	)
	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode sitemap: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		sawElement = true
		if start.Name.Local != "loc" {
			continue
		}
		var loc string
		if err := decoder.DecodeElement(&loc, &start); err != nil {
			return nil, fmt.Errorf("decode loc: %w", err)
		}
		if loc = strings.TrimSpace(loc); loc != "" {
			locs = append(locs, loc)
		}
	}
	if !sawElement {
		return nil, errors.New("sitemap has no root element")
	}
	return locs, nil
}

// FilterURLs keeps the entries containing pattern, dropping repeats.
func FilterURLs(locs []string, pattern string) []string {
	seen := make(map[string]struct{}, len(locs))
	out := make([]string, 0, len(locs))
	for _, loc := range locs {
		if !strings.Contains(loc, pattern) {
			continue
		}
		if _, ok := seen[loc]; ok {
			continue
		}
		seen[loc] = struct{}{}
		out = append(out, loc)
	}
	return out
}
