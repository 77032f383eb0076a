package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Integer-Conversion-Error/AutoScraper/engine/domain"
	"github.com/Integer-Conversion-Error/AutoScraper/engine/extract"
	"github.com/Integer-Conversion-Error/AutoScraper/pkg/fn"
	"github.com/Integer-Conversion-Error/AutoScraper/pkg/resilience"
)

// BlockMarkers are phrases the site serves with status 200 when it is
// throttling instead of returning 429.
var BlockMarkers = []string{"Request unsuccessful.", "Too Many Requests"}

// throttled is a retryable rate-limit signal from one attempt.
type throttled struct{ signal string }

func (t *throttled) Error() string { return "throttled: " + t.signal }
func (t *throttled) Unwrap() error { return domain.ErrRateLimited }

// FetchDetail fetches one listing's detail page and extracts its data.
// Throttling (429 or a block page) and transport errors are retried per
// Options.DetailRetry; other HTTP statuses and extraction problems fail on
// the first attempt. If the last attempt was throttled the error is a
// *domain.RateLimitError, otherwise a *domain.DetailError.
func (s *Scraper) FetchDetail(ctx context.Context, link string) (domain.VehicleDetails, error) {
	stage := fn.TracedStage("scraper.FetchDetail",
		func(u string) []attribute.KeyValue { return []attribute.KeyValue{attribute.String("url", u)} },
		s.fetchDetail)
	return stage(ctx, link).Unwrap()
}

func (s *Scraper) fetchDetail(ctx context.Context, link string) fn.Result[domain.VehicleDetails] {
	opts := s.opts.DetailRetry
	opts.OnRetry = func(attempt int, wait time.Duration, err error) {
		s.log.Warn("detail attempt failed", "url", link, "attempt", attempt, "wait", wait, "err", err)
	}

	result, attempts := fn.Retry(ctx, opts, func(ctx context.Context, attempt int) fn.Result[domain.VehicleDetails] {
		if err := s.pacer.Wait(ctx); err != nil {
			return fn.Err[domain.VehicleDetails](fn.Permanent(err))
		}
		r := resilience.CallResult(s.breaker, ctx, func(ctx context.Context) fn.Result[domain.VehicleDetails] {
			return s.detailAttempt(ctx, link)
		})
		if errors.Is(r.Error(), resilience.ErrCircuitOpen) {
			return fn.Err[domain.VehicleDetails](&throttled{signal: "circuit open"})
		}
		return r
	})

	err := result.Error()
	if err == nil {
		return result
	}
	var th *throttled
	if errors.As(err, &th) {
		s.log.Error("detail rate limited", "url", link, "attempts", attempts)
		return fn.Err[domain.VehicleDetails](&domain.RateLimitError{URL: link, Attempts: attempts, Signal: th.signal})
	}
	s.log.Error("detail failed", "url", link, "attempts", attempts, "err", err)
	return fn.Err[domain.VehicleDetails](&domain.DetailError{URL: link, Attempts: attempts, Err: err})
}

func (s *Scraper) detailAttempt(ctx context.Context, link string) fn.Result[domain.VehicleDetails] {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return fn.Err[domain.VehicleDetails](fn.Permanent(err))
	}
	s.setHeaders(req, "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil || !transient(err) {
			return fn.Err[domain.VehicleDetails](fn.Permanent(err))
		}
		return fn.Err[domain.VehicleDetails](err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		s.opts.Metrics.RateLimit()
		return fn.Err[domain.VehicleDetails](&throttled{signal: "429"})
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fn.Err[domain.VehicleDetails](fn.Permanent(fmt.Errorf("http %d from %s", resp.StatusCode, link)))
	}

	body, err := readBody(resp.Body)
	if err != nil {
		return fn.Err[domain.VehicleDetails](fn.Permanent(fmt.Errorf("read body: %w", err)))
	}
	html := string(body)
	for _, m := range BlockMarkers {
		if strings.Contains(html, m) {
			s.opts.Metrics.RateLimit()
			return fn.Err[domain.VehicleDetails](&throttled{signal: m})
		}
	}

	details, err := extract.ExtractDetailJSON(html, link)
	if err != nil {
		return fn.Err[domain.VehicleDetails](fn.Permanent(err))
	}
	return fn.Ok(details)
}
