// Package extract turns search-result fragments and detail pages into
// domain records. It does no I/O.
package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Integer-Conversion-Error/AutoScraper/engine/domain"
)

// Origin is used to absolutise relative listing links.
const Origin = "https://www.autotrader.ca"

// Selectors for one listing block in the search results fragment.
const (
	selItem     = "div.result-item"
	selLink     = "a.inner-link"
	selTitle    = "span.title-with-trim"
	selPrice    = "span.price-amount"
	selMileage  = "span.odometer-proximity"
	selLocation = "span.proximity-text"
)

// ParseListingFragment parses a search results fragment, resolving relative
// links against Origin.
func ParseListingFragment(fragment string, exclusions []string) []domain.ListingResult {
	return ParseListingFragmentFrom(Origin, fragment, exclusions)
}

// ParseListingFragmentFrom parses fragment in document order. Blocks whose
// title contains an exclusion term (any case) are skipped, as are blocks
// without a usable link. Missing optional fields are left empty.
func ParseListingFragmentFrom(origin, fragment string, exclusions []string) []domain.ListingResult {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil
	}
	base, _ := url.Parse(origin)
	terms := lowerTerms(exclusions)

	var out []domain.ListingResult
	doc.Find(selItem).Each(func(_ int, item *goquery.Selection) {
		title := firstText(item, selTitle)
		if containsAny(strings.ToLower(title), terms) {
			return
		}
		href, ok := item.Find(selLink).First().Attr("href")
		if !ok {
			return
		}
		link := resolve(base, href)
		if link == "" {
			return
		}
		out = append(out, domain.ListingResult{
			Link:     link,
			Title:    title,
			Price:    firstText(item, selPrice),
			Mileage:  firstText(item, selMileage),
			Location: firstText(item, selLocation),
		})
	})
	return out
}

func firstText(s *goquery.Selection, sel string) string {
	return strings.TrimSpace(s.Find(sel).First().Text())
}

func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil && !ref.IsAbs() {
		ref = base.ResolveReference(ref)
	}
	// Only web links can be fetched; javascript: and mailto: anchors are not listings.
	if ref.Scheme != "http" && ref.Scheme != "https" || ref.Host == "" {
		return ""
	}
	return ref.String()
}

func lowerTerms(terms []string) []string {
	clean := domain.CleanTerms(terms)
	for i, t := range clean {
		clean[i] = strings.ToLower(t)
	}
	return clean
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
