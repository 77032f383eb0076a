package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Integer-Conversion-Error/AutoScraper/engine/domain"
	"github.com/Integer-Conversion-Error/AutoScraper/engine/export"
	"github.com/Integer-Conversion-Error/AutoScraper/engine/scraper"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// stubSite serves one search page with the given listings and a detail page
// for each, except links in broken which answer 404.
func stubSite(t *testing.T, titles map[string]string, broken map[string]bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /Refinement/Search", func(w http.ResponseWriter, r *http.Request) {
		var ads strings.Builder
		for path, title := range titles {
			fmt.Fprintf(&ads, `<div class="result-item"><a class="inner-link" href="%s"><span class="title-with-trim">%s</span></a></div>`, path, title)
		}
		b, _ := json.Marshal(map[string]string{"AdsHtml": ads.String(), "SearchResultsDataJson": `{"maxPage":1}`})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(b)
	})
	mux.HandleFunc("GET /a/", func(w http.ResponseWriter, r *http.Request) {
		if broken[r.URL.Path] {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, `<html><script>window.__TRADER__ = { pageData: {"HeroViewModel":{"Make":"Honda","Model":"Civic","Year":2019,"Trim":"%s"}} };</script></html>`,
			strings.TrimPrefix(r.URL.Path, "/a/"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(base, out string) Config {
	return Config{
		Params:      domain.SearchParams{Make: "Honda", Model: "Civic"},
		OutDir:      out,
		BaseURL:     base,
		Concurrency: 4,
		Burst:       1,
		HTTPTimeout: 5 * time.Second,
		Timeout:     time.Minute,
	}
}

func TestRunWritesCSV(t *testing.T) {
	srv := stubSite(t, map[string]string{"/a/lx": "Civic LX", "/a/ex": "Civic EX", "/a/si": "Civic Si"}, map[string]bool{"/a/si": true})
	out := t.TempDir()

	var stdout bytes.Buffer
	if err := run(testConfig(srv.URL, out), quietLogger(), &stdout); err != nil {
		t.Fatal(err)
	}

	path := strings.TrimSpace(stdout.String())
	if filepath.Dir(path) != filepath.Join(out, "Honda_Civic") {
		t.Fatalf("csv path = %q", path)
	}
	got, err := export.ReadCSV(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("rows = %d, want 2", len(got))
	}
	trims := map[string]bool{}
	for _, d := range got {
		trims[d.Trim] = true
	}
	if !trims["lx"] || !trims["ex"] {
		t.Errorf("trims = %v", trims)
	}
}

func TestRunAppliesDetailFilter(t *testing.T) {
	srv := stubSite(t, map[string]string{"/a/lx": "Civic LX", "/a/ex": "Civic EX"}, nil)
	cfg := testConfig(srv.URL, t.TempDir())
	cfg.Params.Exclusions = []string{"ex"}

	var stdout bytes.Buffer
	if err := run(cfg, quietLogger(), &stdout); err != nil {
		t.Fatal(err)
	}
	got, err := export.ReadCSV(strings.TrimSpace(stdout.String()))
	if err != nil {
		t.Fatal(err)
	}
	// The title filter drops "Civic EX" before details are fetched.
	if len(got) != 1 || got[0].Trim != "lx" {
		t.Errorf("rows = %+v", got)
	}
}

func TestRunNoListings(t *testing.T) {
	srv := stubSite(t, nil, nil)
	out := t.TempDir()

	var stdout bytes.Buffer
	if err := run(testConfig(srv.URL, out), quietLogger(), &stdout); err != nil {
		t.Fatalf("no listings should not be an error: %v", err)
	}
	if got := strings.TrimSpace(stdout.String()); got != "no listings found" {
		t.Errorf("stdout = %q", got)
	}
	if matches, _ := filepath.Glob(filepath.Join(out, "*", "*.csv")); len(matches) != 0 {
		t.Errorf("unexpected csv files: %v", matches)
	}
}

func TestRunAllDetailsFailed(t *testing.T) {
	srv := stubSite(t, map[string]string{"/a/x": "Civic"}, map[string]bool{"/a/x": true})
	out := t.TempDir()

	var stdout bytes.Buffer
	err := run(testConfig(srv.URL, out), quietLogger(), &stdout)
	if !errors.Is(err, errNothingScraped) {
		t.Fatalf("err = %v, want errNothingScraped", err)
	}
	if stdout.Len() != 0 {
		t.Errorf("no path should be reported, got %q", stdout.String())
	}
}

func TestRunListModels(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /Home/Refine", func(w http.ResponseWriter, r *http.Request) {
		if r.UserAgent() != scraper.DefaultUserAgent {
			t.Errorf("user agent = %q, want the scraper's", r.UserAgent())
		}
		_, _ = w.Write([]byte(`{"Models":{"Civic":10,"Accord":4,"Status":1}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cfg := testConfig(srv.URL, t.TempDir())
	cfg.List = "models"

	var stdout bytes.Buffer
	if err := run(cfg, quietLogger(), &stdout); err != nil {
		t.Fatal(err)
	}
	if got := stdout.String(); got != "Accord\nCivic\n" {
		t.Errorf("stdout = %q", got)
	}
}
