package scraper

import (
	"bytes"
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-scrape-venues/models"
	"github.com/aluiziolira/go-scrape-venues/parser"
)

// Route segments that carry the entity identifier.
const (
	VenueSegment   = "/detail/"
	PackageSegment = "/wedding-market-place/"
)

// VenueFetcher turns venue detail pages into records, downloading price
// lists and joining pricing rows along the way.
type VenueFetcher struct {
	client      *Client
	attachments *AttachmentFetcher
	pricing     map[string]models.Pricing
}

// NewVenueFetcher builds a fetcher. pricing may be nil; it is only read.
func NewVenueFetcher(client *Client, pricing map[string]models.Pricing) *VenueFetcher {
	return &VenueFetcher{
		client:      client,
		attachments: NewAttachmentFetcher(client, client.cfg.AttachmentsRoot()),
		pricing:     pricing,
	}
}

// Fetch retrieves one venue page. The returned error is always a
// NetworkError or ParseError for the page itself; field misses and
// attachment failures never fail the record.
func (f *VenueFetcher) Fetch(ctx context.Context, rawURL string) (*models.Venue, error) {
	p, err := f.client.getWithRetry(ctx, rawURL, phaseDetail)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(p.Body))
	if err != nil {
		return nil, ParseError{URL: rawURL, Err: fmt.Errorf("parse html: %w", err)}
	}

	venue := ParseVenue(doc, rawURL, f.client.cfg.TitleSuffix, f.client.cfg.Country)

	if venue.ID != nil && venue.Slug != nil {
		pdfs := f.attachments.FetchPriceLists(ctx, *venue.ID, *venue.Slug)
		if len(pdfs) > 0 {
			venue.PriceListPDFs = pdfs
		}
		venue.HasPriceList = len(pdfs) > 0
		venue.PriceListCnt = len(pdfs)
	}

	if f.pricing != nil && venue.ID != nil {
		if row, ok := f.pricing[*venue.ID]; ok {
			venue.ApplyPricing(row)
		}
	}

	f.client.Metrics.IncItems("venues")
	return venue, nil
}

// ParseVenue extracts every venue field available on the page.
func ParseVenue(doc *goquery.Document, rawURL, titleSuffix, country string) *models.Venue {
	venue := &models.Venue{URL: rawURL}

	if id, slug := parser.PathIdentifier(rawURL, VenueSegment); id != "" {
		venue.ID = models.StringPtr(id)
		if slug != "" {
			venue.Slug = models.StringPtr(slug)
		}
	}

	if name, ok := pageName(doc, titleSuffix); ok {
		venue.Name = models.StringPtr(name)
	}
	if desc, ok := metaContent(doc, `meta[name="description"]`); ok {
		venue.Description = models.StringPtr(desc)
	}
	if image, ok := metaContent(doc, `meta[property="og:image"]`); ok {
		venue.ImageURL = models.StringPtr(image)
	}
	if category, ok := breadcrumbCategory(doc); ok {
		venue.Category = models.StringPtr(category)
	}

	phone, email := contactLinks(doc)
	if phone != "" {
		venue.Phone = models.StringPtr(phone)
	}
	if email != "" {
		venue.Email = models.StringPtr(email)
	}

	if address, ok := addressText(doc, country); ok {
		venue.Address = models.StringPtr(address)
	}
	if website, ok := websiteLink(doc); ok {
		venue.Website = models.StringPtr(website)
	}
	if capacity, ok := capacityText(doc); ok {
		venue.Capacity = models.StringPtr(capacity)
	}

	return venue
}

// PackageFetcher turns marketplace package pages into records.
type PackageFetcher struct {
	client *Client
}

// NewPackageFetcher builds a marketplace fetcher.
func NewPackageFetcher(client *Client) *PackageFetcher {
	return &PackageFetcher{client: client}
}

// Fetch retrieves one marketplace package page.
func (f *PackageFetcher) Fetch(ctx context.Context, rawURL string) (*models.Package, error) {
	p, err := f.client.getWithRetry(ctx, rawURL, phaseDetail)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(p.Body))
	if err != nil {
		return nil, ParseError{URL: rawURL, Err: fmt.Errorf("parse html: %w", err)}
	}

	f.client.Metrics.IncItems("marketplace")
	return ParsePackage(doc, rawURL), nil
}

// ParsePackage extracts the marketplace package fields.
func ParsePackage(doc *goquery.Document, rawURL string) *models.Package {
	pkg := &models.Package{URL: rawURL}

	if id, slug := parser.PathIdentifier(rawURL, PackageSegment); id != "" {
		pkg.ID = models.StringPtr(id)
		if slug != "" {
			pkg.Slug = models.StringPtr(slug)
		}
	}
	if heading := doc.Find("h1").First(); heading.Length() > 0 {
		pkg.Title = models.StringPtr(parser.NormalizeSpace(heading.Text()))
	}
	if desc, ok := metaContent(doc, `meta[name="description"]`); ok {
		pkg.Description = models.StringPtr(desc)
	}
	return pkg
}
