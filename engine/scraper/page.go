package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Integer-Conversion-Error/AutoScraper/engine/domain"
	"github.com/Integer-Conversion-Error/AutoScraper/engine/extract"
	"github.com/Integer-Conversion-Error/AutoScraper/pkg/fn"
	"github.com/Integer-Conversion-Error/AutoScraper/pkg/metrics"
)

// Page is one parsed page of search results.
type Page struct {
	Index    int
	Listings []domain.ListingResult
	// MaxPage is the total page count the site reported, at least 1.
	MaxPage int
}

// envelope is the search endpoint response. SearchResultsDataJson is itself
// a JSON document encoded as a string.
type envelope struct {
	AdsHtml               string `json:"AdsHtml"`
	SearchResultsDataJson string `json:"SearchResultsDataJson"`
}

type searchMeta struct {
	MaxPage *int `json:"maxPage"`
}

// errEmptyAnomaly marks a page that carried neither listings nor usable
// pagination metadata. It is retried like a transport failure.
var errEmptyAnomaly = errors.New("envelope has no listings and no pagination metadata")

// FetchPage fetches and parses one search page, retrying per
// Options.PageRetry. Exhaustion yields a *domain.FetchError.
func (s *Scraper) FetchPage(ctx context.Context, page int, params domain.SearchParams) (Page, error) {
	stage := fn.TracedStage("scraper.FetchPage",
		func(p int) []attribute.KeyValue { return []attribute.KeyValue{attribute.Int("page", p)} },
		func(ctx context.Context, page int) fn.Result[Page] { return s.fetchPage(ctx, page, params) })
	return stage(ctx, page).Unwrap()
}

func (s *Scraper) fetchPage(ctx context.Context, page int, params domain.SearchParams) fn.Result[Page] {
	opts := s.opts.PageRetry
	opts.OnRetry = func(attempt int, wait time.Duration, err error) {
		s.opts.Metrics.PageRetry()
		s.log.Warn("search page attempt failed", "page", page, "attempt", attempt, "wait", wait, "err", err)
	}

	result, attempts := fn.Retry(ctx, opts, func(ctx context.Context, attempt int) fn.Result[Page] {
		return s.pageAttempt(ctx, page, params)
	})
	if err := result.Error(); err != nil {
		s.opts.Metrics.Page(metrics.ResultFailed)
		s.log.Error("search page failed", "page", page, "attempts", attempts, "err", err)
		return fn.Err[Page](&domain.FetchError{Page: page, Attempts: attempts, Err: err})
	}
	s.opts.Metrics.Page(metrics.ResultOK)
	return result
}

func (s *Scraper) pageAttempt(ctx context.Context, page int, params domain.SearchParams) fn.Result[Page] {
	payload, err := json.Marshal(BuildPayload(params, page, s.pageSize(params)))
	if err != nil {
		return fn.Err[Page](fn.Permanent(err))
	}
	s.log.Debug("search request", "page", page, "payload", string(payload))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.base+SearchPath, bytes.NewReader(payload))
	if err != nil {
		return fn.Err[Page](fn.Permanent(err))
	}
	s.setHeaders(req, "application/json, text/plain, */*")
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		if !transient(err) {
			return fn.Err[Page](fn.Permanent(err))
		}
		return fn.Err[Page](err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fn.Errf[Page]("http %d from %s", resp.StatusCode, req.URL)
	}
	body, err := readBody(resp.Body)
	if err != nil {
		return fn.Err[Page](err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fn.Errf[Page]("decode envelope: %w", err)
	}
	return parseEnvelope(s.base, page, env, params.Exclusions)
}

// parseEnvelope turns a decoded envelope into a Page. A page with valid
// metadata but no listings is a legitimate empty result; no listings and
// no usable metadata is an anomaly worth retrying.
func parseEnvelope(origin string, page int, env envelope, exclusions []string) fn.Result[Page] {
	listings := extract.ParseListingFragmentFrom(origin, env.AdsHtml, exclusions)

	maxPage, metaOK := parseMaxPage(env.SearchResultsDataJson)
	if !metaOK {
		if len(listings) == 0 {
			return fn.Err[Page](errEmptyAnomaly)
		}
		maxPage = 1
	}
	return fn.Ok(Page{Index: page, Listings: listings, MaxPage: maxPage})
}

// parseMaxPage reads maxPage from the metadata string. ok is false when the
// string is empty or not JSON; a JSON document without maxPage counts as 1.
func parseMaxPage(raw string) (int, bool) {
	if raw == "" {
		return 0, false
	}
	var meta searchMeta
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return 0, false
	}
	if meta.MaxPage == nil || *meta.MaxPage < 1 {
		return 1, true
	}
	return *meta.MaxPage, true
}

// String helps log lines read naturally.
func (p Page) String() string {
	return fmt.Sprintf("page %d (%d listings of %d pages)", p.Index, len(p.Listings), p.MaxPage)
}
