package extract

import (
	"sort"
	"strconv"
	"strings"

	"github.com/Integer-Conversion-Error/AutoScraper/engine/domain"
)

// Title is what a listing headline such as "2019 Honda Civic LX" says
// about the vehicle. Fields the title does not carry are empty.
type Title struct {
	Year  string
	Make  string
	Model string
	Trim  string
}

// makeNames maps lower-case spellings seen in headlines to canonical makes.
var makeNames = map[string]string{
	"acura": "Acura", "alfa romeo": "Alfa Romeo", "audi": "Audi", "bmw": "BMW",
	"buick": "Buick", "cadillac": "Cadillac", "chevrolet": "Chevrolet", "chevy": "Chevrolet",
	"chrysler": "Chrysler", "dodge": "Dodge", "fiat": "Fiat", "ford": "Ford",
	"genesis": "Genesis", "gmc": "GMC", "honda": "Honda", "hyundai": "Hyundai",
	"infiniti": "Infiniti", "jaguar": "Jaguar", "jeep": "Jeep", "kia": "Kia",
	"land rover": "Land Rover", "lexus": "Lexus", "lincoln": "Lincoln", "lucid": "Lucid",
	"mazda": "Mazda", "mercedes-benz": "Mercedes-Benz", "mercedes": "Mercedes-Benz",
	"mini": "MINI", "mitsubishi": "Mitsubishi", "nissan": "Nissan", "polestar": "Polestar",
	"porsche": "Porsche", "ram": "Ram", "rivian": "Rivian", "subaru": "Subaru",
	"tesla": "Tesla", "toyota": "Toyota", "volkswagen": "Volkswagen", "vw": "Volkswagen",
	"volvo": "Volvo",
}

// multiWordModels lists models whose name spans more than one word, so the
// trim is not mistaken for the second half of the model.
var multiWordModels = map[string][]string{
	"BMW":           {"2 Series", "3 Series", "4 Series", "5 Series", "7 Series"},
	"Chrysler":      {"Grand Caravan"},
	"Dodge":         {"Grand Caravan"},
	"Ford":          {"Transit Connect", "Mustang Mach-E"},
	"Hyundai":       {"Santa Fe", "Santa Cruz", "Ioniq 5", "Ioniq 6"},
	"Jeep":          {"Grand Cherokee", "Grand Wagoneer"},
	"Land Rover":    {"Range Rover Sport", "Range Rover Evoque", "Range Rover Velar", "Range Rover"},
	"Mercedes-Benz": {"AMG GT"},
	"Mitsubishi":    {"Eclipse Cross", "Outlander Sport"},
	"Tesla":         {"Model 3", "Model S", "Model X", "Model Y"},
	"Toyota":        {"Land Cruiser", "Corolla Cross", "Grand Highlander"},
}

// makeKeys holds makeNames keys longest first so "land rover" wins over
// any single-word prefix.
var makeKeys = func() []string {
	keys := make([]string, 0, len(makeNames))
	for k := range makeNames {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}()

// ParseTitle splits a listing headline into year, make, model and trim.
// Model and trim are only reported once the make is recognised.
func ParseTitle(s string) Title {
	var t Title
	rest := strings.Join(strings.Fields(s), " ")

	if head, tail, _ := strings.Cut(rest, " "); isModelYear(head) {
		t.Year, rest = head, tail
	}

	lower := strings.ToLower(rest)
	for _, k := range makeKeys {
		if hasWordPrefix(lower, k) {
			t.Make = makeNames[k]
			rest = strings.TrimSpace(rest[len(k):])
			break
		}
	}
	if t.Make == "" || rest == "" {
		return t
	}

	lower = strings.ToLower(rest)
	for _, m := range multiWordModels[t.Make] {
		if hasWordPrefix(lower, strings.ToLower(m)) {
			t.Model = m
			t.Trim = strings.TrimSpace(rest[len(m):])
			return t
		}
	}
	t.Model, t.Trim, _ = strings.Cut(rest, " ")
	return t
}

// FillFromTitle copies year, make, model and trim from a listing headline
// into d wherever the detail page left them empty.
func FillFromTitle(d domain.VehicleDetails, title string) domain.VehicleDetails {
	t := ParseTitle(title)
	fill := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	fill(&d.Year, t.Year)
	fill(&d.Make, t.Make)
	// A model from the title only makes sense next to the make it came with.
	if strings.EqualFold(d.Make, t.Make) {
		fill(&d.Model, t.Model)
		if strings.EqualFold(d.Model, t.Model) {
			fill(&d.Trim, t.Trim)
		}
	}
	return d
}

func isModelYear(s string) bool {
	if len(s) != 4 {
		return false
	}
	y, err := strconv.Atoi(s)
	return err == nil && y >= domain.MinYear && y <= domain.MaxYear
}

// hasWordPrefix reports whether s starts with prefix followed by a space
// or the end of s.
func hasWordPrefix(s, prefix string) bool {
	return strings.HasPrefix(s, prefix) && (len(s) == len(prefix) || s[len(prefix)] == ' ')
}
