package scraper

import (
	"context"
	"errors"

	"github.com/Integer-Conversion-Error/AutoScraper/engine/domain"
	"github.com/Integer-Conversion-Error/AutoScraper/engine/extract"
	"github.com/Integer-Conversion-Error/AutoScraper/pkg/fn"
	"github.com/Integer-Conversion-Error/AutoScraper/pkg/metrics"
)

// DetailReport is the outcome of FetchAllDetails. Details are in
// completion order. Failed counts every listing without details,
// including the Panicked ones.
type DetailReport struct {
	Details  []domain.VehicleDetails
	Failed   int
	Panicked int
	Errors   []error
}

type detailOutcome struct {
	details domain.VehicleDetails
	err     error
}

// FetchAllDetails fetches the detail page of every listing with at most
// Options.DetailConcurrency fetches in flight. It returns once every fetch
// has finished; a panicking fetch is recovered and counted as a failure.
// Once ctx is done, fetches that have not started fail immediately.
// With Options.FillFromTitle, fields a detail page leaves empty are filled
// from the listing title.
func (s *Scraper) FetchAllDetails(ctx context.Context, listings []domain.ListingResult) DetailReport {
	total := len(listings)
	var rep DetailReport
	if total == 0 {
		s.log.Info("no listings to fetch details for")
		return rep
	}

	results := fn.ParStream(listings, s.opts.DetailConcurrency, func(l domain.ListingResult) detailOutcome {
		out := s.runDetail(ctx, l.Link)
		if out.err == nil && s.opts.FillFromTitle {
			out.details = extract.FillFromTitle(out.details, l.Title)
		}
		return out
	})

	completed := 0
	for out := range results {
		completed++
		if out.err != nil {
			rep.Failed++
			rep.Errors = append(rep.Errors, out.err)
			if errors.Is(out.err, domain.ErrTaskPanic) {
				rep.Panicked++
			}
		} else {
			rep.Details = append(rep.Details, out.details)
		}
		if completed%s.opts.ProgressEvery == 0 || completed == total {
			s.report(Progress{Completed: completed, Total: total, Failed: rep.Failed})
		}
	}
	return rep
}

// runDetail fetches one listing, converting a panic into a PanicError.
func (s *Scraper) runDetail(ctx context.Context, link string) (out detailOutcome) {
	if err := ctx.Err(); err != nil {
		return detailOutcome{err: &domain.DetailError{URL: link, Err: err}}
	}
	done := s.opts.Metrics.DetailStarted()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("detail task panicked", "url", link, "panic", r)
			out = detailOutcome{err: &domain.PanicError{URL: link, Value: r}}
		}
		switch {
		case out.err == nil:
			done(metrics.ResultOK)
		case errors.Is(out.err, domain.ErrTaskPanic):
			done(metrics.ResultPanic)
		default:
			done(metrics.ResultFailed)
		}
	}()
	d, err := s.fetch(ctx, link)
	return detailOutcome{details: d, err: err}
}

func (s *Scraper) report(p Progress) {
	if s.breaker != nil {
		st := s.breaker.State()
		p.Breaker = st.String()
		s.opts.Metrics.BreakerState(int64(st))
	}
	s.log.Info("detail progress", "completed", p.Completed, "total", p.Total, "failed", p.Failed, "breaker", p.Breaker)
	if s.opts.OnProgress != nil {
		s.opts.OnProgress(p)
	}
}

// Result is a full scrape: the listings found and their fetched details.
type Result struct {
	Listings []domain.ListingResult
	DetailReport
}

// Scrape runs FetchListings then FetchAllDetails. It returns
// domain.ErrNoListings when the search matched nothing.
func (s *Scraper) Scrape(ctx context.Context, params domain.SearchParams) (Result, error) {
	listings, err := s.FetchListings(ctx, params)
	if err != nil {
		return Result{}, err
	}
	if len(listings) == 0 {
		return Result{}, domain.ErrNoListings
	}
	s.log.Info("fetching details", "listings", len(listings), "concurrency", s.opts.DetailConcurrency)
	rep := s.FetchAllDetails(ctx, listings)
	return Result{Listings: listings, DetailReport: rep}, nil
}
