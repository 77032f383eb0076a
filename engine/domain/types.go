// Package domain defines the search, listing and detail records that flow
// through a scrape, plus the typed errors the pipeline reports.
package domain

import "strings"

// SearchParams describes one search. It is read-only for the lifetime of a
// scrape. Nil pointers mean "not set" and fall back to permissive defaults
// when the search payload is built. JSON keys match the saved-search format.
type SearchParams struct {
	Make   string `json:"make,omitempty"`
	Model  string `json:"model,omitempty"`
	Trim   string `json:"trim,omitempty"`
	Colour string `json:"color,omitempty"`

	YearMin     *int `json:"yearMin,omitempty"`
	YearMax     *int `json:"yearMax,omitempty"`
	PriceMin    *int `json:"priceMin,omitempty"`
	PriceMax    *int `json:"priceMax,omitempty"`
	OdometerMin *int `json:"odometerMin,omitempty"`
	OdometerMax *int `json:"odometerMax,omitempty"`

	Address   string `json:"address,omitempty"`
	Proximity *int   `json:"proximity,omitempty"` // -1 means unlimited

	IsNew      *bool `json:"isNew,omitempty"`
	IsUsed     *bool `json:"isUsed,omitempty"`
	IsDamaged  *bool `json:"isDamaged,omitempty"`
	WithPhotos *bool `json:"withPhotos,omitempty"`

	Drivetrain      string `json:"drivetrain,omitempty"`
	Transmission    string `json:"transmission,omitempty"`
	BodyType        string `json:"bodyType,omitempty"`
	NumDoors        *int   `json:"numDoors,omitempty"`
	SeatingCapacity *int   `json:"seatingCapacity,omitempty"`

	Exclusions []string `json:"exclusions,omitempty"`
	Inclusion  string   `json:"inclusion,omitempty"`

	// ResultsPerPage overrides the page size. Zero uses the scraper default.
	ResultsPerPage int `json:"top,omitempty"`
}

// Int returns a pointer to n, for building SearchParams literals.
func Int(n int) *int { return &n }

// Bool returns a pointer to b, for building SearchParams literals.
func Bool(b bool) *bool { return &b }

// IntOr dereferences p or returns def.
func IntOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

// BoolOr dereferences p or returns def.
func BoolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// ListingResult is one summary row from a search results page. Empty
// strings mean the field was absent in the markup.
type ListingResult struct {
	Link     string `json:"link"`
	Title    string `json:"title,omitempty"`
	Price    string `json:"price,omitempty"`
	Mileage  string `json:"mileage,omitempty"`
	Location string `json:"location,omitempty"`
}

// Key is the identity used for de-duplication within a scrape.
func (l ListingResult) Key() string { return LinkKey(l.Link) }

// LinkKey normalises a listing link for identity comparisons.
func LinkKey(link string) string { return strings.ToLower(strings.TrimSpace(link)) }

// Matches reports whether the title or location contains keyword,
// ignoring case. An empty keyword matches everything.
func (l ListingResult) Matches(keyword string) bool {
	kw := strings.ToLower(strings.TrimSpace(keyword))
	if kw == "" {
		return true
	}
	return strings.Contains(strings.ToLower(l.Title), kw) ||
		strings.Contains(strings.ToLower(l.Location), kw)
}

// VehicleDetails is one parsed detail page. Every field except Link is
// optional and empty when the page did not carry it.
type VehicleDetails struct {
	Link            string `json:"link"`
	Make            string `json:"make,omitempty"`
	Model           string `json:"model,omitempty"`
	Year            string `json:"year,omitempty"`
	Trim            string `json:"trim,omitempty"`
	Price           string `json:"price,omitempty"`
	Drivetrain      string `json:"drivetrain,omitempty"`
	Kilometres      string `json:"kilometres,omitempty"`
	Status          string `json:"status,omitempty"`
	BodyType        string `json:"bodyType,omitempty"`
	Engine          string `json:"engine,omitempty"`
	Cylinder        string `json:"cylinder,omitempty"`
	Transmission    string `json:"transmission,omitempty"`
	ExteriorColour  string `json:"exteriorColour,omitempty"`
	Doors           string `json:"doors,omitempty"`
	FuelType        string `json:"fuelType,omitempty"`
	CityFuelEconomy string `json:"cityFuelEconomy,omitempty"`
	HwyFuelEconomy  string `json:"hwyFuelEconomy,omitempty"`
}
