package main

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/Integer-Conversion-Error/AutoScraper/engine/domain"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"AUTOSCRAPER_PARAMS", "AUTOSCRAPER_OUT", "AUTOSCRAPER_BASE_URL", "AUTOSCRAPER_USER_AGENT",
		"AUTOSCRAPER_PROXY", "AUTOSCRAPER_CONCURRENCY", "AUTOSCRAPER_RPS", "AUTOSCRAPER_BURST",
		"AUTOSCRAPER_BREAKER", "AUTOSCRAPER_HTTP_TIMEOUT", "AUTOSCRAPER_TIMEOUT", "LOG_LEVEL", "LOG_JSON",
		"NATS_URL", "NATS_SUBJECT", "NEO4J_URL", "NEO4J_USER", "NEO4J_PASS", "NEO4J_DB", "METRICS_PORT",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := loadConfig(nil, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.OutDir != "Results" || cfg.Concurrency != 50 || cfg.Timeout != 30*time.Minute {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.FillFromTitle {
		t.Error("title fill should be opt-in")
	}
	if cfg.NATSSubject != "autoscraper.details" || cfg.LogLevel != slog.LevelInfo {
		t.Errorf("unexpected defaults: subject=%q level=%v", cfg.NATSSubject, cfg.LogLevel)
	}
	if diff := cmp.Diff(domain.SearchParams{}, cfg.Params); diff != "" {
		t.Errorf("params (-want +got):\n%s", diff)
	}
}

func TestLoadConfigEnvFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("AUTOSCRAPER_CONCURRENCY", "8")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("NATS_URL", "nats://localhost:4222")

	cfg, err := loadConfig([]string{"-concurrency", "12"}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Concurrency != 12 {
		t.Errorf("flag should beat env: concurrency = %d", cfg.Concurrency)
	}
	if cfg.LogLevel != slog.LevelDebug || cfg.NATSURL != "nats://localhost:4222" {
		t.Errorf("env not applied: level=%v nats=%q", cfg.LogLevel, cfg.NATSURL)
	}
}

func TestLoadConfigSearchFlags(t *testing.T) {
	clearEnv(t)
	cfg, err := loadConfig([]string{
		"-make", "Honda", "-model", " Civic ",
		"-year-min", "2015", "-year-max", "2020",
		"-price-max", "30000", "-proximity", "-1",
		"-used", "-new=false",
		"-exclude", "accident, ,salvage",
		"-inclusion", "hybrid", "-top", "50",
	}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	want := domain.SearchParams{
		Make:           "Honda",
		Model:          "Civic",
		YearMin:        domain.Int(2015),
		YearMax:        domain.Int(2020),
		PriceMax:       domain.Int(30000),
		Proximity:      domain.Int(-1),
		IsUsed:         domain.Bool(true),
		IsNew:          domain.Bool(false),
		Exclusions:     []string{"accident", "salvage"},
		Inclusion:      "hybrid",
		ResultsPerPage: 50,
	}
	if diff := cmp.Diff(want, cfg.Params); diff != "" {
		t.Errorf("params (-want +got):\n%s", diff)
	}
}

func TestLoadConfigParamsFileOverriddenByFlags(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "search.json")
	saved := `{"make":"Toyota","model":"RAV4","yearMin":2018,"priceMax":40000,"isDamaged":false,"exclusions":["lease"],"top":25}`
	if err := os.WriteFile(path, []byte(saved), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig([]string{"-params", path, "-model", "Corolla", "-price-max", "25000"}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	want := domain.SearchParams{
		Make:           "Toyota",
		Model:          "Corolla",
		YearMin:        domain.Int(2018),
		PriceMax:       domain.Int(25000),
		IsDamaged:      domain.Bool(false),
		Exclusions:     []string{"lease"},
		ResultsPerPage: 25,
	}
	if diff := cmp.Diff(want, cfg.Params); diff != "" {
		t.Errorf("params (-want +got):\n%s", diff)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	clearEnv(t)
	missing := filepath.Join(t.TempDir(), "nope.json")
	tests := []struct {
		name string
		args []string
		is   error
	}{
		{"inverted years", []string{"-year-min", "2020", "-year-max", "2010"}, domain.ErrYearRange},
		{"page size", []string{"-top", "500"}, domain.ErrPageSize},
		{"bad int", []string{"-price-min", "cheap"}, nil},
		{"bad level", []string{"-log-level", "loud"}, nil},
		{"unknown list", []string{"-list", "engines"}, nil},
		{"models without make", []string{"-list", "models"}, nil},
		{"trims without model", []string{"-list", "trims", "-make", "Ford"}, nil},
		{"missing params file", []string{"-params", missing}, os.ErrNotExist},
		{"stray args", []string{"honda"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig(tt.args, io.Discard)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.is != nil && !errors.Is(err, tt.is) {
				t.Errorf("err = %v, want %v", err, tt.is)
			}
		})
	}
}

func TestLoadConfigListSkipsSearchValidation(t *testing.T) {
	clearEnv(t)
	cfg, err := loadConfig([]string{"-list", "colours", "-make", "Ford", "-model", "F-150", "-top", "500"}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.List != "colours" {
		t.Errorf("list = %q", cfg.List)
	}
}

func TestScraperOptionsFillFromTitle(t *testing.T) {
	clearEnv(t)
	cfg, err := loadConfig([]string{"-fill-from-title"}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if !scraperOptions(cfg, nil, nil).FillFromTitle {
		t.Fatal("-fill-from-title not passed to the scraper")
	}
}
