package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCounterAndGauge(t *testing.T) {
	r := New()
	c := r.Counter("test_total", "A test counter")
	c.Inc()
	c.Add(4)
	if c.Value() != 5 {
		t.Fatalf("expected 5, got %d", c.Value())
	}
	if r.Counter("test_total", "") != c {
		t.Fatal("expected same counter instance")
	}

	g := r.Gauge("test_gauge", "A test gauge")
	g.Set(2)
	g.Inc()
	g.Dec()
	g.Dec()
	if g.Value() != 1 {
		t.Fatalf("expected 1, got %d", g.Value())
	}
}

func TestHistogramRender(t *testing.T) {
	r := New()
	h := r.Histogram("fetch_seconds", "Fetch time", []float64{1, 0.1})
	h.Observe(0.05)
	h.Observe(0.5)
	h.Observe(5)

	out := r.Render()
	for _, want := range []string{
		"# TYPE fetch_seconds histogram",
		`fetch_seconds_bucket{le="0.1"} 1`,
		`fetch_seconds_bucket{le="1"} 2`,
		`fetch_seconds_bucket{le="+Inf"} 3`,
		"fetch_seconds_count 3",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestCounterVec(t *testing.T) {
	r := New()
	v := r.CounterVec("jobs_total", "Jobs by outcome.", "result", "ok", "failed")
	v.With("ok").Inc()
	v.With(`we"ird`).Inc()
	if r.CounterVec("jobs_total", "", "result").With("ok") != v.With("ok") {
		t.Fatal("expected same series instance")
	}

	out := r.Render()
	for _, want := range []string{
		"# HELP jobs_total Jobs by outcome.",
		"# TYPE jobs_total counter",
		`jobs_total{result="failed"} 0`,
		`jobs_total{result="ok"} 1`,
		`jobs_total{result="we\"ird"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
	// Series render sorted by label value.
	if strings.Index(out, `result="failed"`) > strings.Index(out, `result="ok"`) {
		t.Fatalf("series out of order:\n%s", out)
	}
}

func TestRegisterConflictPanics(t *testing.T) {
	r := New()
	r.Counter("dup", "")
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	r.Gauge("dup", "")
}

func TestRenderKeepsRegistrationOrder(t *testing.T) {
	r := New()
	r.Gauge("zeta", "")
	r.Counter("alpha_total", "")
	out := r.Render()
	if strings.Index(out, "zeta") > strings.Index(out, "alpha_total") {
		t.Fatalf("families out of order:\n%s", out)
	}
}

func TestScrapeInstruments(t *testing.T) {
	r := New()
	s := NewScrape(r)
	s.Page(ResultOK)
	s.Page(ResultOK)
	s.PageRetry()
	s.RateLimit()
	s.BreakerState(1)
	done := s.DetailStarted()
	if s.inflight.Value() != 1 {
		t.Fatal("inflight not tracked")
	}
	done(ResultPanic)
	if s.inflight.Value() != 0 {
		t.Fatal("inflight not released")
	}

	out := r.Render()
	for _, want := range []string{
		`autoscraper_pages_total{result="ok"} 2`,
		`autoscraper_pages_total{result="failed"} 0`,
		`autoscraper_details_total{result="panic"} 1`,
		`autoscraper_details_total{result="ok"} 0`,
		"autoscraper_page_retries_total 1",
		"autoscraper_rate_limited_total 1",
		"autoscraper_breaker_state 1",
		"autoscraper_detail_duration_seconds_count 1",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestNilScrapeIsNoop(t *testing.T) {
	var s *Scrape
	s.Page(ResultFailed)
	s.PageRetry()
	s.RateLimit()
	s.BreakerState(2)
	s.DetailStarted()(ResultOK)
}

func TestHandler(t *testing.T) {
	r := New()
	r.Counter("served_total", "").Inc()
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain") {
		t.Fatalf("content type %q", rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Body.String(), "served_total 1") {
		t.Fatalf("body: %s", rec.Body.String())
	}
}
