package scraper

import (
	"context"
	"fmt"

	"github.com/Integer-Conversion-Error/AutoScraper/engine/domain"
	"github.com/Integer-Conversion-Error/AutoScraper/pkg/fn"
)

// FetchListings fetches every search page for params and returns the
// de-duplicated listings that pass the inclusion keyword. Page 0 decides
// the page count and its failure is fatal; later pages are fetched
// concurrently and a failed one is logged and skipped.
func (s *Scraper) FetchListings(ctx context.Context, params domain.SearchParams) ([]domain.ListingResult, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	first, err := s.FetchPage(ctx, 0, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrFirstPage, err)
	}
	s.log.Info("first search page fetched", "listings", len(first.Listings), "max_page", first.MaxPage)

	all := first.Listings
	if first.MaxPage > 1 {
		rest := make([]int, 0, first.MaxPage-1)
		for p := 1; p < first.MaxPage; p++ {
			rest = append(rest, p)
		}
		// One task per page; the site's own pagination bounds the count.
		pages := fn.ParMapResult(rest, 0, func(p int) fn.Result[Page] {
			return fn.FromPair(s.FetchPage(ctx, p, params))
		})
		fetched, failed := fn.Partition(pages)
		for _, err := range failed {
			s.log.Warn("skipping search page", "err", err)
		}
		for _, page := range fetched {
			s.log.Debug("search page fetched", "page", page.String())
			all = append(all, page.Listings...)
		}
	}

	return MergeListings(all, params.Inclusion), nil
}

// MergeListings drops repeated links (case-insensitive, first occurrence
// wins) and keeps only listings whose title or location contains
// inclusion, when inclusion is set.
func MergeListings(listings []domain.ListingResult, inclusion string) []domain.ListingResult {
	unique := fn.UniqueBy(listings, domain.ListingResult.Key)
	return fn.Filter(unique, func(l domain.ListingResult) bool { return l.Matches(inclusion) })
}
