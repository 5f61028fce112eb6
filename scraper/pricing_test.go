package scraper

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/aluiziolira/go-scrape-venues/models"
	"github.com/google/go-cmp/cmp"
	"github.com/jarcoal/httpmock"
)

const pricingPage = `<html><body>
<table class="table">
  <tr><th>Vendor</th><th>Lunch</th><th>Dinner</th><th>Tables</th><th>Price list</th></tr>
  <tr>
    <td>
      <a href="/detail/1234/grand-ballroom/"><strong>Grand Ballroom</strong></a>
      <input id="merchant_score" type="hidden" value="4.5">
    </td>
    <td>$1,200+ (Fri only)</td>
    <td>$1,800+ Sat &amp; Sun</td>
    <td>10 - 20 (Fri only)</td>
    <td><a href="/files/grand.pdf">PDF</a><a href="#">-</a></td>
  </tr>
  <tr>
    <td><p style="font-size: 18px">Orphan Hall</p></td>
    <td>$900</td><td>$1,000</td><td>5 - 8</td>
  </tr>
  <tr>
    <td>
      <a href="http://example.test/detail/77/river-room"></a>
      <p style="font-size: 18px"> River  Room </p>
      <input type="hidden" value="bad">
    </td>
    <td>Enquire</td><td></td><td>Call us</td>
  </tr>
  <tr>
    <td><a href="/detail/1234/grand-ballroom/"><strong>Duplicate</strong></a></td>
    <td>$1</td><td>$2</td><td>1 - 2</td>
  </tr>
</table>
</body></html>`

func intPtr(v int) *int { return &v }

func TestParsePricingTable(t *testing.T) {
	pageURL := testBase + PricingPath
	rows, err := ParsePricingTable(parseDoc(t, pricingPage), pageURL)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}

	want := models.Pricing{
		ID:          "1234",
		Name:        models.StringPtr("Grand Ballroom"),
		ProfileURL:  models.StringPtr(testBase + "/detail/1234/grand-ballroom/"),
		Rating:      4.5,
		LunchFrom:   models.StringPtr("$1,200+"),
		LunchDays:   models.StringPtr("(Fri only)"),
		DinnerFrom:  models.StringPtr("$1,800+"),
		DinnerDays:  models.StringPtr("Sat & Sun"),
		TablesRange: models.StringPtr("10 - 20"),
		TablesMin:   intPtr(10),
		TablesMax:   intPtr(20),
		TablesDays:  models.StringPtr("(Fri only)"),
		PriceLists:  []string{testBase + "/files/grand.pdf"},
	}
	if diff := cmp.Diff(want, rows[0]); diff != "" {
		t.Fatalf("row mismatch (-want +got):\n%s", diff)
	}

	river := rows[1]
	if river.ID != "77" || river.Name == nil || *river.Name != "River Room" {
		t.Fatalf("unexpected second row %+v", river)
	}
	if river.Rating != 0 {
		t.Fatalf("unparsable rating = %v, want 0", river.Rating)
	}
	if river.LunchFrom != nil || river.TablesRange != nil {
		t.Fatalf("price fields set without numbers: %+v", river)
	}
	if river.TablesDays == nil || *river.TablesDays != "Call us" {
		t.Fatalf("tables qualifier = %v", river.TablesDays)
	}
}

func TestParsePricingRowFridayOnly(t *testing.T) {
	doc := parseDoc(t, `<table><tr>
		<td><a href="/detail/42/hall/">Hall</a><input value="4.5"></td>
		<td>$1,200+ (Fri only)</td><td>$1,800+ (Fri only)</td><td>10 - 20 (Fri only)</td>
	</tr></table>`)

	rows, err := ParsePricingTable(doc, testBase+PricingPath)
	if err != nil || len(rows) != 1 {
		t.Fatalf("rows = %v, err = %v", rows, err)
	}
	row := rows[0]
	if row.Rating != 4.5 {
		t.Fatalf("rating = %v", row.Rating)
	}
	checks := map[string]*string{
		"$1,200+":    row.LunchFrom,
		"(Fri only)": row.LunchDays,
		"$1,800+":    row.DinnerFrom,
		"10 - 20":    row.TablesRange,
	}
	for want, got := range checks {
		if got == nil || *got != want {
			t.Fatalf("field = %v, want %q", got, want)
		}
	}
	if row.Name != nil {
		t.Fatalf("name = %q, want nil without strong or styled paragraph", *row.Name)
	}
}

func TestParsePricingRowNonFiniteRating(t *testing.T) {
	for _, value := range []string{"NaN", "Inf", "-infinity"} {
		doc := parseDoc(t, `<table><tr>
			<td><a href="/detail/42/hall/">Hall</a><input id="merchant_score" value="`+value+`"></td>
			<td>$1</td><td>$2</td><td>1 - 2</td>
		</tr></table>`)
		rows, err := ParsePricingTable(doc, testBase+PricingPath)
		if err != nil || len(rows) != 1 {
			t.Fatalf("rows = %v, err = %v", rows, err)
		}
		if rows[0].Rating != 0 {
			t.Fatalf("rating for %q = %v, want 0", value, rows[0].Rating)
		}
	}
}

func TestParsePricingTableWithoutTable(t *testing.T) {
	_, err := ParsePricingTable(parseDoc(t, "<html><body><p>Nothing here</p></body></html>"), testBase+PricingPath)
	var parseErr ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if !errors.Is(err, ErrNoTable) {
		t.Fatalf("expected ErrNoTable, got %v", err)
	}
}

func TestFetchPricingKeepsFirstRow(t *testing.T) {
	client, transport := newTestClient(t, nil)
	transport.RegisterResponder("GET", testBase+PricingPath, htmlResponder(pricingPage))

	byID := client.FetchPricing(context.Background())
	if len(byID) != 2 {
		t.Fatalf("pricing entries = %d, want 2", len(byID))
	}
	if got := byID["1234"].Name; got == nil || *got != "Grand Ballroom" {
		t.Fatalf("duplicate id overwrote first row: %v", got)
	}
}

func TestFetchPricingDegradesToEmpty(t *testing.T) {
	tests := []struct {
		name      string
		responder httpmock.Responder
	}{
		{name: "server error", responder: httpmock.NewStringResponder(http.StatusServiceUnavailable, "")},
		{name: "no table", responder: htmlResponder("<html><body></body></html>")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, transport := newTestClient(t, nil)
			transport.RegisterResponder("GET", testBase+PricingPath, tt.responder)

			byID := client.FetchPricing(context.Background())
			if byID == nil || len(byID) != 0 {
				t.Fatalf("pricing = %v, want empty map", byID)
			}
		})
	}
}
