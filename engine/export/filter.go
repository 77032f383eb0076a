package export

import (
	"strings"

	"github.com/Integer-Conversion-Error/AutoScraper/engine/domain"
	"github.com/Integer-Conversion-Error/AutoScraper/pkg/fn"
)

// FilterDetails drops records with any cell containing an exclusion term,
// then keeps only records with some cell containing inclusion. Both
// comparisons ignore case; empty terms are ignored.
func FilterDetails(details []domain.VehicleDetails, exclusions []string, inclusion string) []domain.VehicleDetails {
	excl := fn.Map(domain.CleanTerms(exclusions), strings.ToLower)
	incl := strings.ToLower(strings.TrimSpace(inclusion))

	return fn.Filter(details, func(d domain.VehicleDetails) bool {
		cells := fn.Map(Record(d), strings.ToLower)
		for _, term := range excl {
			if anyContains(cells, term) {
				return false
			}
		}
		return incl == "" || anyContains(cells, incl)
	})
}

func anyContains(cells []string, term string) bool {
	for _, c := range cells {
		if strings.Contains(c, term) {
			return true
		}
	}
	return false
}
