package scraper

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Integer-Conversion-Error/AutoScraper/pkg/fn"
	"github.com/Integer-Conversion-Error/AutoScraper/pkg/metrics"
)

// DefaultUserAgent is sent on every request unless overridden.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Options configures a Scraper.
type Options struct {
	// BaseURL is the site origin. Search requests go to BaseURL+SearchPath
	// and relative listing links resolve against it.
	BaseURL string
	// ResultsPerPage is used when SearchParams does not override it.
	ResultsPerPage int

	PageRetry   fn.RetryOpts
	DetailRetry fn.RetryOpts
	// DetailConcurrency caps in-flight detail fetches.
	DetailConcurrency int

	// RequestsPerSecond paces detail fetches. Zero disables pacing.
	RequestsPerSecond float64
	Burst             int
	// BreakerThreshold is the number of consecutive throttled detail
	// responses that open the circuit. Zero disables the breaker.
	BreakerThreshold int
	BreakerTimeout   time.Duration

	UserAgent string
	// ProxyURL routes every request through an HTTP proxy when set.
	ProxyURL string
	// Timeout bounds a single HTTP exchange, not a whole retry chain.
	Timeout time.Duration
	// HTTPClient replaces the client New would build.
	HTTPClient *http.Client

	// FillFromTitle copies year, make, model and trim from the listing
	// title into details whose page left them empty.
	FillFromTitle bool

	// ProgressEvery is how many completed detail fetches pass between
	// progress reports. The final completion always reports.
	ProgressEvery int
	OnProgress    func(Progress)

	Logger  *slog.Logger
	Metrics *metrics.Scrape
}

// DefaultOptions returns the tuning used against the live site.
func DefaultOptions() Options {
	return Options{
		BaseURL:        "https://www.autotrader.ca",
		ResultsPerPage: 100,
		PageRetry: fn.RetryOpts{
			MaxAttempts: 5,
			InitialWait: 500 * time.Millisecond,
		},
		DetailRetry: fn.RetryOpts{
			MaxAttempts: 12,
			InitialWait: 250 * time.Millisecond,
			MaxWait:     10 * time.Second,
		},
		DetailConcurrency: 50,
		Burst:             5,
		BreakerTimeout:    30 * time.Second,
		UserAgent:         DefaultUserAgent,
		Timeout:           30 * time.Second,
		ProgressEvery:     20,
	}
}

// Progress is a snapshot of a detail fetch run.
type Progress struct {
	Completed int
	Total     int
	Failed    int
	// Breaker is the detail circuit state, empty when no breaker is set.
	Breaker string
}
