package domain

import (
	"fmt"
	"strings"
)

// Bounds accepted for search params. They mirror what the search form allows.
const (
	MinYear           = 1900
	MaxYear           = 2100
	MaxResultsPerPage = 100
)

// Validate checks SearchParams for contradictory or out-of-range values.
// It does not require any field to be set.
func (p SearchParams) Validate() error {
	if err := checkRange("year", p.YearMin, p.YearMax, ErrYearRange); err != nil {
		return err
	}
	for _, y := range []*int{p.YearMin, p.YearMax} {
		if y != nil && (*y < MinYear || *y > MaxYear) {
			return NewValidationError("year", fmt.Sprint(*y), ErrYearRange)
		}
	}
	if err := checkRange("price", p.PriceMin, p.PriceMax, ErrPriceRange); err != nil {
		return err
	}
	if err := checkRange("odometer", p.OdometerMin, p.OdometerMax, ErrOdometerRange); err != nil {
		return err
	}
	if p.Proximity != nil && *p.Proximity < -1 {
		return NewValidationError("proximity", fmt.Sprint(*p.Proximity), ErrProximity)
	}
	if p.ResultsPerPage < 0 || p.ResultsPerPage > MaxResultsPerPage {
		return NewValidationError("top", fmt.Sprint(p.ResultsPerPage), ErrPageSize)
	}
	return nil
}

func checkRange(field string, lo, hi *int, sentinel error) error {
	if lo != nil && *lo < 0 {
		return NewValidationError(field+"Min", fmt.Sprint(*lo), sentinel)
	}
	if hi != nil && *hi < 0 {
		return NewValidationError(field+"Max", fmt.Sprint(*hi), sentinel)
	}
	if lo != nil && hi != nil && *lo > *hi {
		return NewValidationError(field, fmt.Sprintf("%d-%d", *lo, *hi), sentinel)
	}
	return nil
}

// CleanTerms trims keyword terms and drops empty ones.
func CleanTerms(terms []string) []string {
	var out []string
	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
