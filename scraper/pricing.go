package scraper

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-scrape-venues/models"
	"github.com/aluiziolira/go-scrape-venues/parser"
)

// PricingPath is the banquet price list page holding the pricing table.
const PricingPath = "/wedding-banquet-price-list"

// Column positions in the pricing table.
const (
	colVendor = iota
	colLunch
	colDinner
	colTables
	colPriceLists
)

// ErrNoTable is wrapped in a ParseError when the pricing page has no table.
var ErrNoTable = errors.New("no table found")

// FetchPricing returns the pricing table indexed by venue identifier. Any
// failure degrades to an empty mapping.
func (c *Client) FetchPricing(ctx context.Context) map[string]models.Pricing {
	rows, err := c.FetchPricingRows(ctx)
	if err != nil {
		slog.Warn("pricing table unavailable, continuing without pricing", slog.Any("error", err))
		return map[string]models.Pricing{}
	}

	byID := make(map[string]models.Pricing, len(rows))
	for _, row := range rows {
		if _, dup := byID[row.ID]; dup {
			continue
		}
		byID[row.ID] = row
	}
	return byID
}

// FetchPricingRows fetches the pricing page and parses its table.
func (c *Client) FetchPricingRows(ctx context.Context) ([]models.Pricing, error) {
	pageURL := strings.TrimSuffix(c.cfg.BaseURL, "/") + PricingPath
	slog.Info("fetching pricing table", slog.String("url", pageURL))

	p, err := c.get(ctx, pageURL, phasePricing)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(p.Body))
	if err != nil {
		return nil, ParseError{URL: pageURL, Err: err}
	}

	rows, err := ParsePricingTable(doc, pageURL)
	if err != nil {
		return nil, err
	}
	slog.Info("pricing rows parsed", slog.Int("rows", len(rows)))
	return rows, nil
}

// ParsePricingTable reads every row that links to a venue detail page.
func ParsePricingTable(doc *goquery.Document, pageURL string) ([]models.Pricing, error) {
	table := doc.Find("table.table").First()
	if table.Length() == 0 {
		table = doc.Find("table").First()
	}
	if table.Length() == 0 {
		return nil, ParseError{URL: pageURL, Err: ErrNoTable}
	}

	base, _ := url.Parse(pageURL)
	var rows []models.Pricing
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() <= colTables {
			return
		}
		row, ok := parsePricingRow(cells, base)
		if !ok {
			return
		}
		rows = append(rows, row)
	})
	return rows, nil
}

func parsePricingRow(cells *goquery.Selection, base *url.URL) (models.Pricing, bool) {
	vendor := cells.Eq(colVendor)

	link := vendor.Find(`a[href*="` + VenueSegment + `"]`).First()
	href := strings.TrimSpace(link.AttrOr("href", ""))
	id, _ := parser.PathIdentifier(href, VenueSegment)
	if id == "" {
		return models.Pricing{}, false
	}

	row := models.Pricing{ID: id}
	row.ProfileURL = models.StringPtr(resolve(base, href))

	if name := vendorName(vendor); name != "" {
		row.Name = models.StringPtr(name)
	}

	rating := vendor.Find("input#merchant_score").First()
	if rating.Length() == 0 {
		rating = vendor.Find("input[value]").First()
	}
	row.Rating = parser.ParseRating(rating.AttrOr("value", ""))

	if from, days, ok := parser.SplitPrice(cells.Eq(colLunch).Text()); ok {
		row.LunchFrom = models.StringPtr(from)
		row.LunchDays = models.StringPtr(days)
	} else if days != "" {
		row.LunchDays = models.StringPtr(days)
	}
	if from, days, ok := parser.SplitPrice(cells.Eq(colDinner).Text()); ok {
		row.DinnerFrom = models.StringPtr(from)
		row.DinnerDays = models.StringPtr(days)
	} else if days != "" {
		row.DinnerDays = models.StringPtr(days)
	}

	if tables, ok := parser.SplitTables(cells.Eq(colTables).Text()); ok {
		row.TablesRange = models.StringPtr(tables.Range)
		min, max := tables.Min, tables.Max
		row.TablesMin = &min
		row.TablesMax = &max
		row.TablesDays = models.StringPtr(tables.Days)
	} else if tables.Days != "" {
		row.TablesDays = models.StringPtr(tables.Days)
	}

	if cells.Length() > colPriceLists {
		cells.Eq(colPriceLists).Find("a[href]").Each(func(_ int, a *goquery.Selection) {
			href := strings.TrimSpace(a.AttrOr("href", ""))
			if href == "" || href == "#" {
				return
			}
			row.PriceLists = append(row.PriceLists, resolve(base, href))
		})
	}

	return row, true
}

func vendorName(vendor *goquery.Selection) string {
	if strong := vendor.Find("strong").First(); strong.Length() > 0 {
		return parser.NormalizeSpace(strong.Text())
	}
	var name string
	vendor.Find("p[style]").EachWithBreak(func(_ int, p *goquery.Selection) bool {
		if strings.Contains(p.AttrOr("style", ""), "font-size: 18px") {
			name = parser.NormalizeSpace(p.Text())
			return false
		}
		return true
	})
	return name
}

func resolve(base *url.URL, href string) string {
	if base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
