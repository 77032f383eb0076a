package metrics

import "time"

// Result label values shared by the page and detail counters.
const (
	ResultOK     = "ok"
	ResultFailed = "failed"
	ResultPanic  = "panic"
)

// Scrape bundles the instruments a scrape run reports into. A nil *Scrape
// is valid and records nothing.
type Scrape struct {
	pages          *CounterVec
	details        *CounterVec
	pageRetries    *Counter
	rateLimited    *Counter
	detailDuration *Histogram
	inflight       *Gauge
	breaker        *Gauge
}

// NewScrape registers the scrape families on r.
func NewScrape(r *Registry) *Scrape {
	return &Scrape{
		pages: r.CounterVec("autoscraper_pages_total", "Search pages fetched by outcome.",
			"result", ResultOK, ResultFailed),
		details: r.CounterVec("autoscraper_details_total", "Detail pages fetched by outcome.",
			"result", ResultOK, ResultFailed, ResultPanic),
		pageRetries:    r.Counter("autoscraper_page_retries_total", "Search page attempts that were retried."),
		rateLimited:    r.Counter("autoscraper_rate_limited_total", "Detail responses that signalled throttling."),
		detailDuration: r.Histogram("autoscraper_detail_duration_seconds", "Wall time per detail fetch including backoff.", nil),
		inflight:       r.Gauge("autoscraper_inflight_details", "Detail fetches currently running."),
		breaker:        r.Gauge("autoscraper_breaker_state", "Detail circuit state: 0 closed, 1 open, 2 half-open."),
	}
}

// Page counts a finished search page fetch.
func (s *Scrape) Page(result string) {
	if s == nil {
		return
	}
	s.pages.With(result).Inc()
}

// PageRetry counts one retried search page attempt.
func (s *Scrape) PageRetry() {
	if s == nil {
		return
	}
	s.pageRetries.Inc()
}

// RateLimit counts one throttled detail response.
func (s *Scrape) RateLimit() {
	if s == nil {
		return
	}
	s.rateLimited.Inc()
}

// BreakerState records the detail circuit state.
func (s *Scrape) BreakerState(state int64) {
	if s == nil {
		return
	}
	s.breaker.Set(state)
}

// DetailStarted marks a detail fetch in flight and returns the function
// that records its outcome and duration.
func (s *Scrape) DetailStarted() func(result string) {
	if s == nil {
		return func(string) {}
	}
	start := time.Now()
	s.inflight.Inc()
	return func(result string) {
		s.inflight.Dec()
		s.detailDuration.Since(start)
		s.details.With(result).Inc()
	}
}
