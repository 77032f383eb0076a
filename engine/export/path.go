package export

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Integer-Conversion-Error/AutoScraper/engine/domain"
)

// OutputPath derives the CSV location for a search:
// <root>/<Make>_<Model>/<yearMin>-<yearMax>_<priceMin>-<priceMax>_<timestamp>.csv
func OutputPath(root string, p domain.SearchParams, at time.Time) string {
	dir := fmt.Sprintf("%s_%s", orDefault(p.Make, "UnknownMake"), orDefault(p.Model, "UnknownModel"))
	name := fmt.Sprintf("%s-%s_%s-%s_%s.csv",
		bound(p.YearMin), bound(p.YearMax),
		bound(p.PriceMin), bound(p.PriceMax),
		at.Format("20060102_150405"))
	return filepath.Join(root, dir, name)
}

func orDefault(v, def string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return def
	}
	return safe(v)
}

func bound(p *int) string {
	if p == nil {
		return "Any"
	}
	return fmt.Sprint(*p)
}

var unsafeChars = strings.NewReplacer("/", "-", `\`, "-", ":", "-", "..", "-")

// safe keeps user values from escaping their directory.
func safe(v string) string { return unsafeChars.Replace(v) }
