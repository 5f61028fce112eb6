package scraper

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jarcoal/httpmock"
)

const sitemapDoc = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>http://example.test/detail/3/gamma-hall/</loc></url>
  <url><loc>http://example.test/wedding-market-place/9/gown/</loc></url>
  <url><loc>http://example.test/detail/1/alpha-hall/</loc></url>
  <url><loc> http://example.test/detail/3/gamma-hall/ </loc></url>
  <url><loc>http://example.test/articles/tips/</loc></url>
  <url><loc>http://example.test/detail/2/beta-hall/</loc></url>
</urlset>`

func TestFetchMatchingDedupesInOrder(t *testing.T) {
	client, transport := newTestClient(t, nil)
	transport.RegisterResponder("GET", testBase+"/sitemap.xml", xmlResponder(sitemapDoc))

	urls, err := client.FetchMatching(context.Background(), VenueSegment)
	if err != nil {
		t.Fatalf("fetch matching: %v", err)
	}

	want := []string{
		"http://example.test/detail/3/gamma-hall/",
		"http://example.test/detail/1/alpha-hall/",
		"http://example.test/detail/2/beta-hall/",
	}
	if diff := cmp.Diff(want, urls); diff != "" {
		t.Fatalf("urls mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchMatchingEmptyIsNotError(t *testing.T) {
	client, transport := newTestClient(t, nil)
	transport.RegisterResponder("GET", testBase+"/sitemap.xml", xmlResponder(sitemapDoc))

	urls, err := client.FetchMatching(context.Background(), "/no-such-route/")
	if err != nil {
		t.Fatalf("fetch matching: %v", err)
	}
	if len(urls) != 0 {
		t.Fatalf("urls = %v, want none", urls)
	}
}

func TestFetchMatchingSitemapIndex(t *testing.T) {
	client, transport := newTestClient(t, nil)
	index := `<sitemapindex><sitemap><loc>http://example.test/detail/5/x/</loc></sitemap></sitemapindex>`
	transport.RegisterResponder("GET", testBase+"/sitemap.xml", xmlResponder(index))

	urls, err := client.FetchMatching(context.Background(), VenueSegment)
	if err != nil {
		t.Fatalf("fetch matching: %v", err)
	}
	if len(urls) != 1 {
		t.Fatalf("urls = %v", urls)
	}
}

func TestFetchMatchingFailures(t *testing.T) {
	tests := []struct {
		name      string
		responder httpmock.Responder
		wantParse bool
	}{
		{name: "server error", responder: httpmock.NewStringResponder(http.StatusInternalServerError, "")},
		{name: "malformed xml", responder: xmlResponder("<urlset><url><loc>http://example.test/detail/1/a/</url>"), wantParse: true},
		{name: "empty body", responder: xmlResponder(""), wantParse: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, transport := newTestClient(t, nil)
			transport.RegisterResponder("GET", testBase+"/sitemap.xml", tt.responder)

			_, err := client.FetchMatching(context.Background(), VenueSegment)
			var netErr NetworkError
			if !errors.As(err, &netErr) {
				t.Fatalf("expected NetworkError, got %v", err)
			}
			var parseErr ParseError
			if got := errors.As(err, &parseErr); got != tt.wantParse {
				t.Fatalf("parse error = %v, want %v (%v)", got, tt.wantParse, err)
			}
		})
	}
}

func TestFilterURLs(t *testing.T) {
	locs := []string{"a/detail/1", "b", "a/detail/1", "c/detail/2", "c/detail/2", "a/detail/1"}
	got := FilterURLs(locs, "/detail/")
	want := []string{"a/detail/1", "c/detail/2"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("FilterURLs mismatch (-want +got):\n%s", diff)
	}

	seen := make(map[string]bool)
	for _, u := range got {
		if seen[u] {
			t.Fatalf("duplicate %q", u)
		}
		seen[u] = true
	}
}

func TestParseLocationsTrims(t *testing.T) {
	locs, err := parseLocations(strings.NewReader("<urlset><url><loc>\n  http://x/detail/1/ \n</loc></url></urlset>"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(locs) != 1 || locs[0] != "http://x/detail/1/" {
		t.Fatalf("locs = %q", locs)
	}
}
