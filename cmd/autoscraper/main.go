// Command autoscraper searches AutoTrader.ca, fetches every matching
// listing's detail page and writes the vehicles to a CSV file. Results can
// also be published to NATS and stored in Neo4j.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/nats-io/nats.go"

	"github.com/Integer-Conversion-Error/AutoScraper/engine/catalog"
	"github.com/Integer-Conversion-Error/AutoScraper/engine/domain"
	"github.com/Integer-Conversion-Error/AutoScraper/engine/export"
	"github.com/Integer-Conversion-Error/AutoScraper/engine/graph"
	"github.com/Integer-Conversion-Error/AutoScraper/engine/scraper"
	"github.com/Integer-Conversion-Error/AutoScraper/pkg/metrics"
	"github.com/Integer-Conversion-Error/AutoScraper/pkg/mid"
	"github.com/Integer-Conversion-Error/AutoScraper/pkg/natsutil"
)

// errNothingScraped means listings were found but no detail page succeeded.
var errNothingScraped = errors.New("no vehicle details fetched")

func main() {
	_ = godotenv.Load()

	cfg, err := loadConfig(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, "autoscraper:", err)
		os.Exit(2)
	}

	logger := newLogger(os.Stderr, cfg)
	slog.SetDefault(logger)

	if err := run(cfg, logger, os.Stdout); err != nil {
		logger.Error("autoscraper failed", "err", err)
		os.Exit(1)
	}
}

func newLogger(w io.Writer, cfg Config) *slog.Logger {
	if cfg.LogJSON {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: cfg.LogLevel}))
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      cfg.LogLevel,
		TimeFormat: time.TimeOnly,
	}))
}

func run(cfg Config, logger *slog.Logger, stdout io.Writer) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	reg := metrics.New()
	if cfg.MetricsPort > 0 {
		shutdown := serveMetrics(cfg.MetricsPort, reg, logger)
		defer shutdown()
	}

	s, err := scraper.New(scraperOptions(cfg, logger, metrics.NewScrape(reg)))
	if err != nil {
		return err
	}

	if cfg.List != "" {
		return listCatalog(ctx, cfg, s, logger, stdout)
	}

	start := time.Now()
	res, err := s.Scrape(ctx, cfg.Params)
	if errors.Is(err, domain.ErrNoListings) {
		logger.Warn("no listings found", "make", cfg.Params.Make, "model", cfg.Params.Model)
		fmt.Fprintln(stdout, "no listings found")
		return nil
	}
	if err != nil {
		return fmt.Errorf("fetch listings: %w", err)
	}

	details := export.FilterDetails(res.Details, cfg.Params.Exclusions, cfg.Params.Inclusion)
	logger.Info("scrape finished",
		"listings", len(res.Listings),
		"details", len(res.Details),
		"kept", len(details),
		"failed", res.Failed,
		"panicked", res.Panicked,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	if len(res.Details) == 0 {
		return fmt.Errorf("%w: %d listings, %d failed", errNothingScraped, len(res.Listings), res.Failed)
	}

	path := export.OutputPath(cfg.OutDir, cfg.Params, time.Now())
	if err := export.WriteCSV(details, path); err != nil {
		return err
	}
	logger.Info("csv written", "path", path, "rows", len(details))
	fmt.Fprintln(stdout, path)

	// Sinks below are best effort; the CSV is the primary output.
	if cfg.NATSURL != "" {
		publishDetails(ctx, cfg, details, logger)
	}
	if cfg.Neo4jURL != "" {
		storeDetails(ctx, cfg, details, logger)
	}
	return nil
}

func scraperOptions(cfg Config, logger *slog.Logger, m *metrics.Scrape) scraper.Options {
	opts := scraper.DefaultOptions()
	opts.BaseURL = cfg.BaseURL
	if cfg.UserAgent != "" {
		opts.UserAgent = cfg.UserAgent
	}
	opts.ProxyURL = cfg.ProxyURL
	opts.DetailConcurrency = cfg.Concurrency
	opts.RequestsPerSecond = cfg.RequestsPerSecond
	opts.Burst = cfg.Burst
	opts.BreakerThreshold = cfg.BreakerThreshold
	opts.Timeout = cfg.HTTPTimeout
	opts.FillFromTitle = cfg.FillFromTitle
	opts.Logger = logger
	opts.Metrics = m
	return opts
}

func listCatalog(ctx context.Context, cfg Config, s *scraper.Scraper, logger *slog.Logger, stdout io.Writer) error {
	c := catalog.New(catalog.Config{
		BaseURL:    s.BaseURL(),
		HTTPClient: s.HTTPClient(),
		UserAgent:  s.UserAgent(),
		Logger:     logger,
	})
	p := cfg.Params

	var (
		values []string
		err    error
	)
	switch cfg.List {
	case "makes":
		values, err = c.Makes(ctx, cfg.PopularOnly)
	case "models":
		values, err = c.Models(ctx, p.Make)
	case "trims":
		values, err = c.Trims(ctx, p.Make, p.Model)
	case "colours":
		values, err = c.Colours(ctx, p.Make, p.Model, p.Trim)
	}
	if err != nil {
		return fmt.Errorf("list %s: %w", cfg.List, err)
	}
	if len(values) > 0 {
		fmt.Fprintln(stdout, strings.Join(values, "\n"))
	}
	return nil
}

func publishDetails(ctx context.Context, cfg Config, details []domain.VehicleDetails, logger *slog.Logger) {
	nc, err := nats.Connect(cfg.NATSURL, nats.Name("autoscraper"))
	if err != nil {
		logger.Error("nats connect", "url", cfg.NATSURL, "err", err)
		return
	}
	defer nc.Close()

	sent := 0
	for _, d := range details {
		if err := natsutil.PublishWithID(ctx, nc, cfg.NATSSubject, domain.LinkKey(d.Link), d); err != nil {
			logger.Warn("nats publish", "url", d.Link, "err", err)
			continue
		}
		sent++
	}
	if err := nc.FlushWithContext(ctx); err != nil {
		logger.Warn("nats flush", "err", err)
	}
	logger.Info("published details", "subject", cfg.NATSSubject, "sent", sent, "total", len(details))
}

func storeDetails(ctx context.Context, cfg Config, details []domain.VehicleDetails, logger *slog.Logger) {
	store, err := graph.Connect(ctx, cfg.Neo4jURL, cfg.Neo4jUser, cfg.Neo4jPass, cfg.Neo4jDB)
	if err != nil {
		logger.Error("neo4j connect", "url", cfg.Neo4jURL, "err", err)
		return
	}
	defer store.Close(context.Background())

	if err := store.EnsureSchema(ctx); err != nil {
		logger.Error("neo4j schema", "err", err)
		return
	}
	saved, err := store.SaveAll(ctx, details)
	if err != nil {
		logger.Warn("neo4j save", "saved", saved, "total", len(details), "err", err)
		return
	}
	logger.Info("stored details", "saved", saved)
}

func serveMetrics(port int, reg *metrics.Registry, logger *slog.Logger) (shutdown func()) {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", reg.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mid.Chain(mux, mid.Recover(logger), mid.OTel("autoscraper")),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
	go func() {
		logger.Info("metrics listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "err", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
