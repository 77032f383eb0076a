// Package scraper fetches search pages and listing detail pages, retrying
// transient failures, and aggregates them into listing and detail sets.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Integer-Conversion-Error/AutoScraper/engine/domain"
	"github.com/Integer-Conversion-Error/AutoScraper/pkg/resilience"
)

// SearchPath is the search endpoint relative to the base URL.
const SearchPath = "/Refinement/Search"

// Scraper runs searches and detail fetches against one site. It is safe for
// concurrent use; every request shares one HTTP client.
type Scraper struct {
	opts    Options
	base    string
	client  *http.Client
	pacer   *resilience.Pacer
	breaker *resilience.Breaker
	log     *slog.Logger

	// fetch is the per-listing detail fetch; tests swap it.
	fetch func(ctx context.Context, link string) (domain.VehicleDetails, error)
}

// New builds a Scraper. Zero-valued options fall back to DefaultOptions.
func New(opts Options) (*Scraper, error) {
	def := DefaultOptions()
	if opts.BaseURL == "" {
		opts.BaseURL = def.BaseURL
	}
	if opts.ResultsPerPage <= 0 {
		opts.ResultsPerPage = def.ResultsPerPage
	}
	if opts.PageRetry.MaxAttempts <= 0 {
		opts.PageRetry = def.PageRetry
	}
	if opts.DetailRetry.MaxAttempts <= 0 {
		opts.DetailRetry = def.DetailRetry
	}
	if opts.DetailConcurrency <= 0 {
		opts.DetailConcurrency = def.DetailConcurrency
	}
	if opts.UserAgent == "" {
		opts.UserAgent = def.UserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = def.ProgressEvery
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("scraper: invalid base url %q", opts.BaseURL)
	}

	client := opts.HTTPClient
	if client == nil {
		client, err = newHTTPClient(opts)
		if err != nil {
			return nil, err
		}
	}

	s := &Scraper{
		opts:   opts,
		base:   base.String(),
		client: client,
		pacer:  resilience.NewPacer(opts.RequestsPerSecond, opts.Burst),
		log:    opts.Logger,
	}
	if opts.BreakerThreshold > 0 {
		s.breaker = resilience.NewBreaker(resilience.BreakerOpts{
			FailThreshold: opts.BreakerThreshold,
			Timeout:       opts.BreakerTimeout,
			IsFailure:     func(err error) bool { return errors.Is(err, domain.ErrRateLimited) },
		})
	}
	s.fetch = s.FetchDetail
	return s, nil
}

func newHTTPClient(opts Options) (*http.Client, error) {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.MaxIdleConnsPerHost = opts.DetailConcurrency
	if opts.ProxyURL != "" {
		proxy, err := url.Parse(opts.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("scraper: invalid proxy url: %w", err)
		}
		tr.Proxy = http.ProxyURL(proxy)
	}
	return &http.Client{
		Timeout:   opts.Timeout,
		Transport: otelhttp.NewTransport(tr),
	}, nil
}

// HTTPClient returns the shared client, for collaborators that talk to the
// same site.
func (s *Scraper) HTTPClient() *http.Client { return s.client }

// BaseURL returns the normalised site origin.
func (s *Scraper) BaseURL() string { return s.base }

// UserAgent returns the user agent sent on every request.
func (s *Scraper) UserAgent() string { return s.opts.UserAgent }

// setHeaders applies the browser-like headers the site expects.
func (s *Scraper) setHeaders(req *http.Request, accept string) {
	req.Header.Set("User-Agent", s.opts.UserAgent)
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", s.base+"/")
}

// readBody reads at most limit bytes so a runaway response cannot exhaust
// memory.
func readBody(r io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, maxBodyBytes))
}

const maxBodyBytes = 16 << 20

// transient reports whether an error from client.Do is worth another
// attempt. Requests the client refuses to send, such as an unsupported
// scheme, fail the same way every time.
func transient(err error) bool {
	var ue *url.Error
	if !errors.As(err, &ue) {
		return true
	}
	var ne net.Error
	return errors.As(ue.Err, &ne) ||
		errors.Is(ue.Err, io.EOF) ||
		errors.Is(ue.Err, io.ErrUnexpectedEOF) ||
		errors.Is(ue.Err, syscall.ECONNRESET)
}
