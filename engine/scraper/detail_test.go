package scraper

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/Integer-Conversion-Error/AutoScraper/engine/domain"
)

func TestFetchDetailSuccessSendsBrowserHeaders(t *testing.T) {
	s, srv, _ := newTestScraper(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != DefaultUserAgent || r.Header.Get("Accept-Language") != "en-US,en;q=0.9" {
			t.Errorf("headers = %v", r.Header)
		}
		if r.Header.Get("Referer") == "" {
			t.Error("missing Referer")
		}
		w.Write([]byte(detailPage("Honda", "Civic")))
	}), nil)

	d, err := s.FetchDetail(context.Background(), srv.URL+"/a/1")
	if err != nil {
		t.Fatal(err)
	}
	want := domain.VehicleDetails{Link: srv.URL + "/a/1", Make: "Honda", Model: "Civic", Year: "2020", Doors: "4"}
	if diff := cmp.Diff(want, d); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestFetchDetailNotFoundFailsImmediately(t *testing.T) {
	var hits atomic.Int32
	s, srv, rec := newTestScraper(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}), nil)

	_, err := s.FetchDetail(context.Background(), srv.URL+"/a/gone")
	var de *domain.DetailError
	if !errors.As(err, &de) || de.Attempts != 1 {
		t.Fatalf("got %v", err)
	}
	if errors.Is(err, domain.ErrRateLimited) {
		t.Fatal("404 must not look like throttling")
	}
	if hits.Load() != 1 || rec.count() != 0 {
		t.Fatalf("hits=%d sleeps=%d", hits.Load(), rec.count())
	}
}

func TestFetchDetail429ExhaustsAsRateLimit(t *testing.T) {
	var hits atomic.Int32
	s, srv, rec := newTestScraper(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}), nil)

	_, err := s.FetchDetail(context.Background(), srv.URL+"/a/1")
	var rl *domain.RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if rl.Attempts != 12 || rl.Signal != "429" || hits.Load() != 12 {
		t.Fatalf("attempts=%d signal=%q hits=%d", rl.Attempts, rl.Signal, hits.Load())
	}
	want := []time.Duration{
		250 * time.Millisecond, 500 * time.Millisecond, time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
		10 * time.Second, 10 * time.Second, 10 * time.Second, 10 * time.Second, 10 * time.Second,
	}
	if diff := cmp.Diff(want, rec.waits); diff != "" {
		t.Fatalf("backoff mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchDetailBlockPageIsThrottling(t *testing.T) {
	for _, marker := range BlockMarkers {
		t.Run(marker, func(t *testing.T) {
			var hits atomic.Int32
			s, srv, _ := newTestScraper(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if hits.Add(1) <= 3 {
					w.Write([]byte("<html><body><h1>" + marker + "</h1></body></html>"))
					return
				}
				w.Write([]byte(detailPage("Toyota", "Corolla")))
			}), nil)

			d, err := s.FetchDetail(context.Background(), srv.URL+"/a/1")
			if err != nil {
				t.Fatal(err)
			}
			if d.Make != "Toyota" || hits.Load() != 4 {
				t.Fatalf("details=%+v hits=%d", d, hits.Load())
			}
		})
	}
}

func TestFetchDetailExtractionFailureNotRetried(t *testing.T) {
	var hits atomic.Int32
	s, srv, _ := newTestScraper(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("<html><body>no data</body></html>"))
	}), nil)

	_, err := s.FetchDetail(context.Background(), srv.URL+"/a/1")
	var ee *domain.ExtractionError
	if !errors.As(err, &ee) || ee.URL != srv.URL+"/a/1" || !errors.Is(err, domain.ErrDetailFetch) {
		t.Fatalf("got %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("hits = %d", hits.Load())
	}
}

func TestFetchDetailBreakerShortCircuits(t *testing.T) {
	var hits atomic.Int32
	s, srv, _ := newTestScraper(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}), func(o *Options) {
		o.BreakerThreshold = 3
		o.BreakerTimeout = time.Hour
	})

	_, err := s.FetchDetail(context.Background(), srv.URL+"/a/1")
	var rl *domain.RateLimitError
	if !errors.As(err, &rl) || rl.Attempts != 12 {
		t.Fatalf("got %v", err)
	}
	if hits.Load() != 3 {
		t.Fatalf("breaker let %d requests through, want 3", hits.Load())
	}
}

func TestFetchDetailCancelledContext(t *testing.T) {
	s, srv, _ := newTestScraper(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.FetchDetail(ctx, srv.URL+"/a/1")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v", err)
	}
}

func TestFetchDetailUnsupportedSchemeNotRetried(t *testing.T) {
	s, _, rec := newTestScraper(t, http.NotFoundHandler(), nil)

	_, err := s.FetchDetail(context.Background(), "javascript:void(0)")
	var de *domain.DetailError
	if !errors.As(err, &de) || de.Attempts != 1 {
		t.Fatalf("got %v", err)
	}
	if rec.count() != 0 {
		t.Fatalf("slept %d times for a link that can never be fetched", rec.count())
	}
}

func TestFetchDetailDroppedConnectionRetried(t *testing.T) {
	var hits atomic.Int32
	s, srv, rec := newTestScraper(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 2 {
			conn, _, err := w.(http.Hijacker).Hijack()
			if err != nil {
				t.Error(err)
				return
			}
			conn.Close()
			return
		}
		w.Write([]byte(detailPage("Honda", "Civic")))
	}), nil)

	d, err := s.FetchDetail(context.Background(), srv.URL+"/a/1")
	if err != nil {
		t.Fatal(err)
	}
	if d.Make != "Honda" || rec.count() < 1 {
		t.Fatalf("detail=%+v sleeps=%d", d, rec.count())
	}
}

func TestTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"bad scheme", &url.Error{Op: "Get", URL: "javascript:void(0)", Err: errors.New(`unsupported protocol scheme "javascript"`)}, false},
		{"eof", &url.Error{Op: "Get", URL: "http://x", Err: io.EOF}, true},
		{"dial", &url.Error{Op: "Get", URL: "http://x", Err: &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}}, true},
		{"reset", &url.Error{Op: "Get", URL: "http://x", Err: syscall.ECONNRESET}, true},
		{"unknown", errors.New("boom"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := transient(tt.err); got != tt.want {
				t.Fatalf("transient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
