package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.waits = append(r.waits, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *sleepRecorder) total() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum time.Duration
	for _, w := range r.waits {
		sum += w
	}
	return sum
}

func (r *sleepRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.waits)
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// newTestScraper points a Scraper at handler with backoff sleeps recorded
// instead of slept.
func newTestScraper(t *testing.T, handler http.Handler, tweak func(*Options)) (*Scraper, *httptest.Server, *sleepRecorder) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	rec := &sleepRecorder{}
	opts := DefaultOptions()
	opts.BaseURL = srv.URL
	opts.PageRetry.Sleep = rec.sleep
	opts.DetailRetry.Sleep = rec.sleep
	opts.Logger = quietLogger()
	if tweak != nil {
		tweak(&opts)
	}
	s, err := New(opts)
	if err != nil {
		t.Fatal(err)
	}
	return s, srv, rec
}

func item(href, title string) string {
	return fmt.Sprintf(`<div class="result-item"><a class="inner-link" href="%s"><span class="title-with-trim">%s</span></a>`+
		`<span class="price-amount">$20,000</span><span class="proximity-text">Ottawa, ON</span></div>`, href, title)
}

func envelopeJSON(ads, meta string) []byte {
	b, _ := json.Marshal(map[string]string{"AdsHtml": ads, "SearchResultsDataJson": meta})
	return b
}

// searchRequest decodes the page index out of a search POST.
func searchRequest(t *testing.T, r *http.Request) (page int, body map[string]any) {
	t.Helper()
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		t.Errorf("decode search body: %v", err)
		return 0, nil
	}
	skip, _ := body["Skip"].(float64)
	top, _ := body["Top"].(float64)
	if top == 0 {
		return 0, body
	}
	return int(skip / top), body
}

func detailPage(make, model string) string {
	return `<html><script>window.__TRADER__ = { pageData: {"HeroViewModel":{"Make":"` + make +
		`","Model":"` + model + `","Year":2020},"Specifications":{"Specs":[{"Key":"Doors","Value":"4"}]}} };</script></html>`
}
