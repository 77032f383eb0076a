package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Integer-Conversion-Error/AutoScraper/engine/domain"
)

// Config holds everything the CLI needs for one invocation.
type Config struct {
	Params     domain.SearchParams
	ParamsFile string
	OutDir     string

	// List switches the command into catalog lookup mode.
	List        string
	PopularOnly bool

	FillFromTitle bool

	BaseURL           string
	UserAgent         string
	ProxyURL          string
	Concurrency       int
	RequestsPerSecond float64
	Burst             int
	BreakerThreshold  int
	HTTPTimeout       time.Duration
	Timeout           time.Duration

	LogLevel slog.Level
	LogJSON  bool

	NATSURL     string
	NATSSubject string

	Neo4jURL  string
	Neo4jUser string
	Neo4jPass string
	Neo4jDB   string

	MetricsPort int
}

var listKinds = []string{"makes", "models", "trims", "colours"}

type paramApply func(*domain.SearchParams)

// loadConfig parses args. Infrastructure flags default from the environment.
// Search flags override values loaded from -params.
func loadConfig(args []string, stderr io.Writer) (Config, error) {
	var cfg Config
	fs := flag.NewFlagSet("autoscraper", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&cfg.ParamsFile, "params", envOr("AUTOSCRAPER_PARAMS", ""), "JSON file with saved search parameters")
	fs.StringVar(&cfg.OutDir, "out", envOr("AUTOSCRAPER_OUT", "Results"), "root directory for CSV output")
	fs.StringVar(&cfg.List, "list", "", "list catalog values instead of scraping: "+strings.Join(listKinds, "|"))
	fs.BoolVar(&cfg.PopularOnly, "popular", false, "with -list makes, only popular makes")
	fs.BoolVar(&cfg.FillFromTitle, "fill-from-title", false, "fill year, make, model and trim from the listing title when the detail page omits them")

	fs.StringVar(&cfg.BaseURL, "base-url", envOr("AUTOSCRAPER_BASE_URL", "https://www.autotrader.ca"), "site origin")
	fs.StringVar(&cfg.UserAgent, "user-agent", envOr("AUTOSCRAPER_USER_AGENT", ""), "override the browser user agent")
	fs.StringVar(&cfg.ProxyURL, "proxy", envOr("AUTOSCRAPER_PROXY", ""), "HTTP proxy URL")
	fs.IntVar(&cfg.Concurrency, "concurrency", envInt("AUTOSCRAPER_CONCURRENCY", 50), "max in-flight detail fetches")
	fs.Float64Var(&cfg.RequestsPerSecond, "rps", envFloat("AUTOSCRAPER_RPS", 0), "detail requests per second (0 = unpaced)")
	fs.IntVar(&cfg.Burst, "burst", envInt("AUTOSCRAPER_BURST", 5), "pacer burst")
	fs.IntVar(&cfg.BreakerThreshold, "breaker", envInt("AUTOSCRAPER_BREAKER", 0), "consecutive rate limits that open the circuit (0 = off)")
	fs.DurationVar(&cfg.HTTPTimeout, "http-timeout", envDuration("AUTOSCRAPER_HTTP_TIMEOUT", 30*time.Second), "per-request timeout")
	fs.DurationVar(&cfg.Timeout, "timeout", envDuration("AUTOSCRAPER_TIMEOUT", 30*time.Minute), "overall deadline (0 = none)")

	level := fs.String("log-level", envOr("LOG_LEVEL", "info"), "debug|info|warn|error")
	fs.BoolVar(&cfg.LogJSON, "log-json", envOr("LOG_JSON", "") == "true", "emit JSON logs")

	fs.StringVar(&cfg.NATSURL, "nats", envOr("NATS_URL", ""), "NATS URL; publish each vehicle when set")
	fs.StringVar(&cfg.NATSSubject, "nats-subject", envOr("NATS_SUBJECT", "autoscraper.details"), "NATS subject")
	fs.StringVar(&cfg.Neo4jURL, "neo4j-url", envOr("NEO4J_URL", ""), "Neo4j URL; store listings when set")
	fs.StringVar(&cfg.Neo4jUser, "neo4j-user", envOr("NEO4J_USER", "neo4j"), "Neo4j username")
	fs.StringVar(&cfg.Neo4jPass, "neo4j-pass", envOr("NEO4J_PASS", ""), "Neo4j password")
	fs.StringVar(&cfg.Neo4jDB, "neo4j-db", envOr("NEO4J_DB", ""), "Neo4j database")
	fs.IntVar(&cfg.MetricsPort, "metrics-port", envInt("METRICS_PORT", 0), "serve /metrics on this port (0 = off)")

	var overrides []paramApply
	add := func(a paramApply) { overrides = append(overrides, a) }
	registerSearchFlags(fs, add)

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if fs.NArg() > 0 {
		return Config{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(*level)); err != nil {
		return Config{}, fmt.Errorf("log-level: %w", err)
	}

	if cfg.ParamsFile != "" {
		p, err := readParams(cfg.ParamsFile)
		if err != nil {
			return Config{}, err
		}
		cfg.Params = p
	}
	for _, apply := range overrides {
		apply(&cfg.Params)
	}
	cfg.Params.Exclusions = domain.CleanTerms(cfg.Params.Exclusions)

	if err := cfg.check(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) check() error {
	if c.List != "" {
		switch c.List {
		case "makes":
		case "models":
			if c.Params.Make == "" {
				return fmt.Errorf("-list models needs -make")
			}
		case "trims", "colours":
			if c.Params.Make == "" || c.Params.Model == "" {
				return fmt.Errorf("-list %s needs -make and -model", c.List)
			}
		default:
			return fmt.Errorf("unknown -list %q, want one of %s", c.List, strings.Join(listKinds, "|"))
		}
		return nil
	}
	return c.Params.Validate()
}

// registerSearchFlags binds one flag per SearchParams field. Values are
// parsed during fs.Parse and applied after the params file is loaded.
func registerSearchFlags(fs *flag.FlagSet, add func(paramApply)) {
	str := func(name, usage string, field func(*domain.SearchParams) *string) {
		fs.Func(name, usage, func(v string) error {
			add(func(p *domain.SearchParams) { *field(p) = strings.TrimSpace(v) })
			return nil
		})
	}
	num := func(name, usage string, field func(*domain.SearchParams) **int) {
		fs.Func(name, usage, func(v string) error {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return err
			}
			add(func(p *domain.SearchParams) { *field(p) = domain.Int(n) })
			return nil
		})
	}
	boolean := func(name, usage string, field func(*domain.SearchParams) **bool) {
		fs.BoolFunc(name, usage, func(v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return err
			}
			add(func(p *domain.SearchParams) { *field(p) = domain.Bool(b) })
			return nil
		})
	}

	str("make", "vehicle make", func(p *domain.SearchParams) *string { return &p.Make })
	str("model", "vehicle model", func(p *domain.SearchParams) *string { return &p.Model })
	str("trim", "trim level", func(p *domain.SearchParams) *string { return &p.Trim })
	str("colour", "exterior colour", func(p *domain.SearchParams) *string { return &p.Colour })
	str("address", "search origin, e.g. \"Kanata, ON\"", func(p *domain.SearchParams) *string { return &p.Address })
	str("drivetrain", "drivetrain, e.g. AWD", func(p *domain.SearchParams) *string { return &p.Drivetrain })
	str("transmission", "transmission, e.g. Automatic", func(p *domain.SearchParams) *string { return &p.Transmission })
	str("body-type", "body type, e.g. SUV", func(p *domain.SearchParams) *string { return &p.BodyType })
	str("inclusion", "keep only listings whose title contains this keyword", func(p *domain.SearchParams) *string { return &p.Inclusion })

	num("year-min", "minimum model year", func(p *domain.SearchParams) **int { return &p.YearMin })
	num("year-max", "maximum model year", func(p *domain.SearchParams) **int { return &p.YearMax })
	num("price-min", "minimum price", func(p *domain.SearchParams) **int { return &p.PriceMin })
	num("price-max", "maximum price", func(p *domain.SearchParams) **int { return &p.PriceMax })
	num("odometer-min", "minimum kilometres", func(p *domain.SearchParams) **int { return &p.OdometerMin })
	num("odometer-max", "maximum kilometres", func(p *domain.SearchParams) **int { return &p.OdometerMax })
	num("proximity", "search radius in km (-1 = unlimited)", func(p *domain.SearchParams) **int { return &p.Proximity })
	num("doors", "number of doors", func(p *domain.SearchParams) **int { return &p.NumDoors })
	num("seats", "seating capacity", func(p *domain.SearchParams) **int { return &p.SeatingCapacity })

	boolean("new", "include new vehicles", func(p *domain.SearchParams) **bool { return &p.IsNew })
	boolean("used", "include used vehicles", func(p *domain.SearchParams) **bool { return &p.IsUsed })
	boolean("damaged", "include damaged vehicles", func(p *domain.SearchParams) **bool { return &p.IsDamaged })
	boolean("photos", "only listings with photos", func(p *domain.SearchParams) **bool { return &p.WithPhotos })

	fs.Func("exclude", "comma-separated title keywords to exclude", func(v string) error {
		terms := strings.Split(v, ",")
		add(func(p *domain.SearchParams) { p.Exclusions = terms })
		return nil
	})
	fs.Func("top", "results per page (max 100)", func(v string) error {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return err
		}
		add(func(p *domain.SearchParams) { p.ResultsPerPage = n })
		return nil
	})
}

func readParams(path string) (domain.SearchParams, error) {
	var p domain.SearchParams
	b, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read params: %w", err)
	}
	if err := json.Unmarshal(b, &p); err != nil {
		return p, fmt.Errorf("decode params %s: %w", path, err)
	}
	return p, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return fallback
}
