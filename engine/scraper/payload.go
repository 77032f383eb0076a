package scraper

import "github.com/Integer-Conversion-Error/AutoScraper/engine/domain"

// Permissive defaults for unset search bounds.
const (
	DefaultAddress   = "Kanata, ON"
	DefaultProximity = -1
	DefaultPriceMin  = 0
	DefaultPriceMax  = 999999
	DefaultYearMin   = 1950
	DefaultYearMax   = 2050
)

// BuildPayload renders the search request body for one page. Unset numeric
// bounds and flags fall back to permissive values; unset text filters are
// omitted.
func BuildPayload(p domain.SearchParams, page, perPage int) map[string]any {
	address := p.Address
	if address == "" {
		address = DefaultAddress
	}
	body := map[string]any{
		"Address":       address,
		"Proximity":     domain.IntOr(p.Proximity, DefaultProximity),
		"Make":          p.Make,
		"PriceMin":      domain.IntOr(p.PriceMin, DefaultPriceMin),
		"PriceMax":      domain.IntOr(p.PriceMax, DefaultPriceMax),
		"Skip":          page * perPage,
		"Top":           perPage,
		"IsNew":         domain.BoolOr(p.IsNew, true),
		"IsUsed":        domain.BoolOr(p.IsUsed, true),
		"WithPhotos":    domain.BoolOr(p.WithPhotos, true),
		"WithPrice":     true,
		"YearMin":       domain.IntOr(p.YearMin, DefaultYearMin),
		"YearMax":       domain.IntOr(p.YearMax, DefaultYearMax),
		"micrositeType": 1,
		"IsDamaged":     domain.BoolOr(p.IsDamaged, false),
	}
	if p.Make == "" {
		body["Make"] = nil
	}
	setString(body, "Model", p.Model)
	setString(body, "Trim", p.Trim)
	setString(body, "Colours", p.Colour)
	setString(body, "Drivetrain", p.Drivetrain)
	setString(body, "Transmissions", p.Transmission)
	setString(body, "BodyType", p.BodyType)
	setInt(body, "OdometerMin", p.OdometerMin)
	setInt(body, "OdometerMax", p.OdometerMax)
	setInt(body, "NumberOfDoors", p.NumDoors)
	setInt(body, "SeatingCapacity", p.SeatingCapacity)
	return body
}

func setString(body map[string]any, key, v string) {
	if v != "" {
		body[key] = v
	}
}

func setInt(body map[string]any, key string, v *int) {
	if v != nil {
		body[key] = *v
	}
}

// pageSize picks the per-request page size.
func (s *Scraper) pageSize(p domain.SearchParams) int {
	if p.ResultsPerPage > 0 {
		return p.ResultsPerPage
	}
	return s.opts.ResultsPerPage
}
