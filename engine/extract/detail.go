package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Integer-Conversion-Error/AutoScraper/engine/domain"
)

const (
	scriptMarker = "__TRADER__"
	dataPrefix   = "pageData: "
)

// ExtractDetailJSON finds the page data object embedded in a detail page
// and maps it onto VehicleDetails. Scripts whose object is unbalanced or
// not valid JSON are skipped; if none yields an object the result is an
// *domain.ExtractionError.
func ExtractDetailJSON(html, sourceURL string) (domain.VehicleDetails, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return domain.VehicleDetails{}, &domain.ExtractionError{URL: sourceURL, Reason: err.Error()}
	}

	var (
		data   map[string]any
		reason = "no " + scriptMarker + " page data script"
	)
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		body := s.Text()
		if !strings.Contains(body, scriptMarker) || !strings.Contains(body, "pageData") {
			return true
		}
		start := strings.Index(body, dataPrefix)
		if start < 0 {
			return true
		}
		obj, ok := BalancedObject(body[start+len(dataPrefix):])
		if !ok {
			reason = "page data object is not brace balanced"
			return true
		}
		parsed, err := decodeObject(obj)
		if err != nil {
			reason = fmt.Sprintf("page data is not valid JSON: %v", err)
			return true
		}
		data = parsed
		return false
	})
	if data == nil {
		return domain.VehicleDetails{}, &domain.ExtractionError{URL: sourceURL, Reason: reason}
	}
	return mapDetails(data, sourceURL), nil
}

// BalancedObject returns the first {...} object in s, tracking brace depth
// character by character. Braces inside JSON strings are counted too; the
// embedding markup is trusted not to carry unbalanced ones there.
func BalancedObject(s string) (string, bool) {
	depth := 0
	start := -1
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			if start < 0 {
				start = i
			}
			depth++
		case '}':
			if start < 0 {
				continue
			}
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

func decodeObject(raw string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}

func mapDetails(data map[string]any, link string) domain.VehicleDetails {
	d := domain.VehicleDetails{Link: link}

	hero, _ := data["HeroViewModel"].(map[string]any)
	d.Make = str(hero["Make"])
	d.Model = str(hero["Model"])
	d.Year = str(hero["Year"])
	d.Trim = str(hero["Trim"])
	d.Price = str(hero["Price"])
	d.Kilometres = str(hero["mileage"])
	d.Drivetrain = str(hero["drivetrain"])

	specsVM, _ := data["Specifications"].(map[string]any)
	specs, _ := specsVM["Specs"].([]any)
	for _, raw := range specs {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		key, value := str(item["Key"]), str(item["Value"])
		switch key {
		case "Status":
			d.Status = value
		case "Body Type":
			d.BodyType = value
		case "Engine":
			d.Engine = value
		case "Cylinder":
			d.Cylinder = value
		case "Transmission":
			d.Transmission = value
		case "Exterior Colour":
			d.ExteriorColour = value
		case "Doors":
			d.Doors = value
		case "Fuel Type":
			d.FuelType = value
		case "City Fuel Economy":
			d.CityFuelEconomy = fuelEconomy(value)
		case "Hwy Fuel Economy":
			d.HwyFuelEconomy = fuelEconomy(value)
		}
	}
	return d
}

// fuelEconomy keeps the figure before the unit, e.g. "8.1L/100km" -> "8.1".
func fuelEconomy(v string) string {
	if i := strings.IndexByte(v, 'L'); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSpace(v)
}

// str renders scalar JSON values as text. Objects, arrays and null are absent.
func str(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case json.Number:
		return x.String()
	case bool:
		if x {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}
