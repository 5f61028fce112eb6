// Package models defines data structures for the scraper.
package models

// Record is implemented by every entity the pipeline persists.
type Record interface {
	// RecordID returns the cache/join identifier, or "" when none was derived.
	RecordID() string
}

// Venue is a venue detail page. Pointer fields are nil when the page did not
// carry the field and are then omitted from the output document.
type Venue struct {
	ID            *string  `json:"id"`
	Slug          *string  `json:"slug"`
	URL           string   `json:"url"`
	Name          *string  `json:"name,omitempty"`
	Description   *string  `json:"description,omitempty"`
	ImageURL      *string  `json:"image_url,omitempty"`
	Category      *string  `json:"category,omitempty"`
	Phone         *string  `json:"phone,omitempty"`
	Email         *string  `json:"email,omitempty"`
	PriceListPDFs []string `json:"price_list_pdfs,omitempty"`
	HasPriceList  bool     `json:"has_price_list"`
	PriceListCnt  int      `json:"price_list_count"`
	Address       *string  `json:"address,omitempty"`
	Website       *string  `json:"website,omitempty"`
	Capacity      *string  `json:"capacity,omitempty"`
	Rating        *float64 `json:"rating,omitempty"`
	Pricing       *Pricing `json:"pricing,omitempty"`
}

// RecordID implements Record.
func (v *Venue) RecordID() string {
	if v == nil || v.ID == nil {
		return ""
	}
	return *v.ID
}

// ApplyPricing merges a pricing row into the venue.
func (v *Venue) ApplyPricing(p Pricing) {
	rating := p.Rating
	v.Rating = &rating
	v.Pricing = &p
}

// Pricing is one row of the banquet price list table.
type Pricing struct {
	ID          string   `json:"id"`
	Name        *string  `json:"name,omitempty"`
	ProfileURL  *string  `json:"profile_url,omitempty"`
	Rating      float64  `json:"rating"`
	LunchFrom   *string  `json:"lunch_from,omitempty"`
	LunchDays   *string  `json:"lunch_days,omitempty"`
	DinnerFrom  *string  `json:"dinner_from,omitempty"`
	DinnerDays  *string  `json:"dinner_days,omitempty"`
	TablesRange *string  `json:"tables_range,omitempty"`
	TablesMin   *int     `json:"tables_min,omitempty"`
	TablesMax   *int     `json:"tables_max,omitempty"`
	TablesDays  *string  `json:"tables_days,omitempty"`
	PriceLists  []string `json:"price_lists,omitempty"`
}

// RecordID implements Record.
func (p *Pricing) RecordID() string {
	if p == nil {
		return ""
	}
	return p.ID
}

// Package is a marketplace package detail page.
type Package struct {
	ID          *string `json:"id"`
	Slug        *string `json:"slug"`
	URL         string  `json:"url"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

// RecordID implements Record.
func (p *Package) RecordID() string {
	if p == nil || p.ID == nil {
		return ""
	}
	return *p.ID
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
