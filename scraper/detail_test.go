package scraper

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-scrape-venues/config"
	"github.com/aluiziolira/go-scrape-venues/models"
	"github.com/google/go-cmp/cmp"
	"github.com/jarcoal/httpmock"
)

const venueURL = testBase + "/detail/1234/grand-ballroom/"

const venuePage = `<html>
<head>
  <title>Grand Ballroom - Blissful Brides Singapore</title>
  <meta name="description" content="A ballroom by the bay.">
  <meta property="og:image" content="http://cdn.example.test/ballroom.jpg">
  <script>var capacity = "pax 999";</script>
</head>
<body>
  <ol class="breadcrumb">
    <li><a href="/">Home</a></li>
    <li><a href="/venues/hotels/">Hotel Ballrooms</a></li>
  </ol>
  <h1>Grand Ballroom - Blissful Brides Singapore</h1>
  <a href="tel:+65 6000 0000">Call</a>
  <a href="tel: +65 6123 4567">Call now</a>
  <a href="mailto:events@ballroom.sg">Email</a>
  <dl>
    <dt>Address</dt><dd>Somewhere Far Away, Malaysia</dd>
    <dt>Venue Address</dt><dd>1 Bayfront Avenue, Singapore 018971</dd>
  </dl>
  <p>Seating up to 300 guests</p>
  <a href="/contact">Website</a>
  <a href="https://ballroom.sg">Website</a>
</body>
</html>`

func parseDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return doc
}

func TestParseVenue(t *testing.T) {
	cfg := config.DefaultConfig()
	got := ParseVenue(parseDoc(t, venuePage), venueURL, cfg.TitleSuffix, cfg.Country)

	want := &models.Venue{
		ID:          models.StringPtr("1234"),
		Slug:        models.StringPtr("grand-ballroom"),
		URL:         venueURL,
		Name:        models.StringPtr("Grand Ballroom"),
		Description: models.StringPtr("A ballroom by the bay."),
		ImageURL:    models.StringPtr("http://cdn.example.test/ballroom.jpg"),
		Category:    models.StringPtr("Hotel Ballrooms"),
		Phone:       models.StringPtr("+65 6123 4567"),
		Email:       models.StringPtr("events@ballroom.sg"),
		Address:     models.StringPtr("1 Bayfront Avenue, Singapore 018971"),
		Website:     models.StringPtr("https://ballroom.sg"),
		Capacity:    models.StringPtr("Seating up to 300 guests"),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("venue mismatch (-want +got):\n%s", diff)
	}
}

func TestParseVenueEmptyPage(t *testing.T) {
	got := ParseVenue(parseDoc(t, "<html><body></body></html>"), venueURL, "", "Singapore")

	want := &models.Venue{
		ID:   models.StringPtr("1234"),
		Slug: models.StringPtr("grand-ballroom"),
		URL:  venueURL,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("venue mismatch (-want +got):\n%s", diff)
	}
}

func TestParseVenueWithoutIdentifier(t *testing.T) {
	got := ParseVenue(parseDoc(t, "<html><head><title>Hall</title></head></html>"), testBase+"/venues/hall/", "", "")
	if got.ID != nil || got.Slug != nil {
		t.Fatalf("expected nil id and slug, got %v %v", got.ID, got.Slug)
	}
	if got.Name == nil || *got.Name != "Hall" {
		t.Fatalf("title fallback not used: %v", got.Name)
	}
}

func TestAddressRejectsLongText(t *testing.T) {
	long := strings.Repeat("x", 600) + " Singapore"
	doc := parseDoc(t, "<dl><dt>Address</dt><dd>"+long+"</dd></dl>")
	if _, ok := addressText(doc, "Singapore"); ok {
		t.Fatalf("overlong address accepted")
	}
}

func TestCapacityRequiresNumber(t *testing.T) {
	doc := parseDoc(t, "<p>Seating arrangements available</p><p>Max capacity: 120 pax</p>")
	got, ok := capacityText(doc)
	if !ok || got != "Max capacity: 120 pax" {
		t.Fatalf("capacity = %q %v", got, ok)
	}
}

const listingURL = testBase + "/public/banquet/grand-ballroom/wedding-banquet-price-list/"

const listingPage = `<html><body>
  <a href="weekday.pdf">Weekday</a>
  <a href="weekend.pdf">Weekend</a>
  <a href="weekday.pdf">Weekday again</a>
  <a href="#">Nothing</a>
  <a href="/brochure.PDF?v=2">Brochure</a>
  <a href="/gallery/">Gallery</a>
</body></html>`

func pdfResponder() httpmock.Responder {
	resp := httpmock.NewBytesResponse(200, []byte("%PDF-1.4 test"))
	resp.Header.Set("Content-Type", "application/pdf")
	return httpmock.ResponderFromResponse(resp)
}

func TestPDFLinks(t *testing.T) {
	got := PDFLinks(parseDoc(t, listingPage), listingURL)
	want := []string{
		listingURL + "weekday.pdf",
		listingURL + "weekend.pdf",
		testBase + "/brochure.PDF?v=2",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("pdf links mismatch (-want +got):\n%s", diff)
	}
}

func TestVenueFetcherDownloadsPriceLists(t *testing.T) {
	client, transport := newTestClient(t, nil)
	transport.RegisterResponder("GET", venueURL, htmlResponder(venuePage))
	transport.RegisterResponder("GET", listingURL, htmlResponder(listingPage))
	transport.RegisterResponder("GET", listingURL+"weekday.pdf", pdfResponder())
	transport.RegisterResponder("GET", listingURL+"weekend.pdf", httpmock.NewStringResponder(http.StatusNotFound, ""))
	transport.RegisterResponder("GET", testBase+"/brochure.PDF?v=2", pdfResponder())

	root := client.cfg.AttachmentsRoot()
	existing := filepath.Join(root, "1234-grand-ballroom", "brochure.PDF")
	if err := os.MkdirAll(filepath.Dir(existing), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(existing, []byte("cached"), 0o644); err != nil {
		t.Fatalf("write existing: %v", err)
	}

	venue, err := NewVenueFetcher(client, nil).Fetch(context.Background(), venueURL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	wantPDFs := []string{listingURL + "weekday.pdf", testBase + "/brochure.PDF?v=2"}
	if diff := cmp.Diff(wantPDFs, venue.PriceListPDFs); diff != "" {
		t.Fatalf("pdfs mismatch (-want +got):\n%s", diff)
	}
	if !venue.HasPriceList || venue.PriceListCnt != 2 {
		t.Fatalf("has=%v count=%d, want true/2", venue.HasPriceList, venue.PriceListCnt)
	}

	calls := transport.GetCallCountInfo()
	if got := calls["GET "+testBase+"/brochure.PDF?v=2"]; got != 0 {
		t.Fatalf("existing attachment downloaded %d times", got)
	}
	data, err := os.ReadFile(filepath.Join(root, "1234-grand-ballroom", "weekday.pdf"))
	if err != nil {
		t.Fatalf("read downloaded pdf: %v", err)
	}
	if !strings.HasPrefix(string(data), "%PDF") {
		t.Fatalf("unexpected pdf content %q", data)
	}
	if _, err := os.Stat(filepath.Join(root, "1234-grand-ballroom", "weekend.pdf")); !os.IsNotExist(err) {
		t.Fatalf("failed download left a file behind: %v", err)
	}
}

func TestDownloadIgnoresPageBodyLimit(t *testing.T) {
	client, transport := newTestClient(t, func(cfg *config.Config) {
		cfg.MaxBodySize = 8
	})
	body := []byte(strings.Repeat("%PDF", 8))
	transport.RegisterResponder("GET", testBase+"/files/big.pdf",
		httpmock.NewBytesResponder(http.StatusOK, body))

	att := models.Attachment{URL: testBase + "/files/big.pdf", Path: filepath.Join(t.TempDir(), "big.pdf")}
	if err := NewAttachmentFetcher(client, t.TempDir()).Download(context.Background(), att); err != nil {
		t.Fatalf("download: %v", err)
	}
	data, err := os.ReadFile(att.Path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(data) != len(body) {
		t.Fatalf("saved %d of %d bytes", len(data), len(body))
	}
}

func TestDownloadRejectsShortBody(t *testing.T) {
	client, transport := newTestClient(t, nil)
	transport.RegisterResponder("GET", testBase+"/files/short.pdf", func(req *http.Request) (*http.Response, error) {
		resp := httpmock.NewBytesResponse(http.StatusOK, []byte("%PDF-1.4"))
		resp.Header.Set("Content-Length", "64")
		return resp, nil
	})

	att := models.Attachment{URL: testBase + "/files/short.pdf", Path: filepath.Join(t.TempDir(), "short.pdf")}
	err := NewAttachmentFetcher(client, t.TempDir()).Download(context.Background(), att)
	var attErr AttachmentError
	if !errors.As(err, &attErr) {
		t.Fatalf("expected AttachmentError, got %v", err)
	}
	if _, err := os.Stat(att.Path); !os.IsNotExist(err) {
		t.Fatalf("truncated attachment saved: %v", err)
	}
}

func TestVenueFetcherWithoutListingPage(t *testing.T) {
	client, transport := newTestClient(t, nil)
	transport.RegisterResponder("GET", venueURL, htmlResponder("<html><body><h1>Hall</h1></body></html>"))
	transport.RegisterResponder("GET", listingURL, httpmock.NewStringResponder(http.StatusNotFound, ""))

	venue, err := NewVenueFetcher(client, nil).Fetch(context.Background(), venueURL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if venue.HasPriceList || venue.PriceListCnt != 0 || venue.PriceListPDFs != nil {
		t.Fatalf("expected no price lists, got %+v", venue)
	}
}

func TestVenueFetcherJoinsPricing(t *testing.T) {
	client, transport := newTestClient(t, nil)
	transport.RegisterResponder("GET", venueURL, htmlResponder("<html><body><h1>Hall</h1></body></html>"))
	transport.RegisterResponder("GET", listingURL, htmlResponder("<html></html>"))

	pricing := map[string]models.Pricing{
		"1234": {ID: "1234", Rating: 4.5, LunchFrom: models.StringPtr("$1,200+")},
		"9999": {ID: "9999", Rating: 1},
	}
	venue, err := NewVenueFetcher(client, pricing).Fetch(context.Background(), venueURL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if venue.Rating == nil || *venue.Rating != 4.5 {
		t.Fatalf("rating = %v", venue.Rating)
	}
	if venue.Pricing == nil || venue.Pricing.ID != "1234" {
		t.Fatalf("pricing = %+v", venue.Pricing)
	}
}

func TestVenueFetcherPageFailure(t *testing.T) {
	client, transport := newTestClient(t, nil)
	transport.RegisterResponder("GET", venueURL, httpmock.NewStringResponder(http.StatusInternalServerError, ""))

	venue, err := NewVenueFetcher(client, nil).Fetch(context.Background(), venueURL)
	if venue != nil {
		t.Fatalf("expected nil venue, got %+v", venue)
	}
	var netErr NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
}

func TestPackageFetcher(t *testing.T) {
	client, transport := newTestClient(t, nil)
	pkgURL := testBase + "/wedding-market-place/55/gown-package/"
	transport.RegisterResponder("GET", pkgURL, htmlResponder(`<html><head>
		<meta name="description" content="Two gowns and a suit."></head>
		<body><h1> Gown  Package </h1></body></html>`))

	pkg, err := NewPackageFetcher(client).Fetch(context.Background(), pkgURL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	want := &models.Package{
		ID:          models.StringPtr("55"),
		Slug:        models.StringPtr("gown-package"),
		URL:         pkgURL,
		Title:       models.StringPtr("Gown Package"),
		Description: models.StringPtr("Two gowns and a suit."),
	}
	if diff := cmp.Diff(want, pkg); diff != "" {
		t.Fatalf("package mismatch (-want +got):\n%s", diff)
	}
}
