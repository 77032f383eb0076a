// Package catalog looks up the makes, models, trims and colours the site
// offers, for building valid searches.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/Integer-Conversion-Error/AutoScraper/pkg/fn"
)

// Endpoints relative to the base URL.
const (
	HomeRefinePath       = "/Home/Refine"
	RefinementRefinePath = "/Refinement/Refine"
)

// Config configures a Client.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	UserAgent  string
	Retry      fn.RetryOpts
	Logger     *slog.Logger
}

// Client queries the site's refinement endpoints.
type Client struct {
	base      string
	http      *http.Client
	userAgent string
	retry     fn.RetryOpts
	log       *slog.Logger
}

// New creates a Client. A nil HTTPClient gets a 30s-timeout default.
func New(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = fn.DefaultRetry
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		base:      strings.TrimRight(cfg.BaseURL, "/"),
		http:      cfg.HTTPClient,
		userAgent: cfg.UserAgent,
		retry:     cfg.Retry,
		log:       cfg.Logger,
	}
}

// Makes scrapes the make selector on the home page. popularOnly picks the
// short "Popular Makes" group instead of "All Makes".
func (c *Client) Makes(ctx context.Context, popularOnly bool) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	label := "All Makes"
	if popularOnly {
		label = "Popular Makes"
	}

	opts := []colly.CollectorOption{colly.StdlibContext(ctx)}
	if c.userAgent != "" {
		opts = append(opts, colly.UserAgent(c.userAgent))
	}
	col := colly.NewCollector(opts...)
	col.WithTransport(c.http.Transport)
	col.SetRequestTimeout(c.http.Timeout)

	var makes []string
	var visitErr error
	col.OnHTML(fmt.Sprintf("optgroup[label='%s'] > option", label), func(e *colly.HTMLElement) {
		if m := strings.TrimSpace(e.Text); m != "" {
			makes = append(makes, m)
		}
	})
	col.OnError(func(r *colly.Response, err error) {
		visitErr = fmt.Errorf("catalog: home page: http %d: %w", r.StatusCode, err)
	})
	if err := col.Visit(c.base + "/"); err != nil && visitErr == nil {
		visitErr = fmt.Errorf("catalog: home page: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if visitErr != nil {
		return nil, visitErr
	}
	if len(makes) == 0 {
		c.log.Warn("no makes found", "group", label)
	}
	sort.Strings(makes)
	return makes, nil
}

// Models lists the models of make.
func (c *Client) Models(ctx context.Context, make string) ([]string, error) {
	body := refinePayload(make)
	body["Model"] = nil
	return c.refineKeys(ctx, HomeRefinePath, "Models", body)
}

// Trims lists the trims of make and model.
func (c *Client) Trims(ctx context.Context, make, model string) ([]string, error) {
	body := refinePayload(make)
	body["Model"] = model
	return c.refineKeys(ctx, RefinementRefinePath, "Trims", body)
}

// Colours lists exterior colours of make and model, optionally narrowed
// to trim.
func (c *Client) Colours(ctx context.Context, make, model, trim string) ([]string, error) {
	body := refinePayload(make)
	body["Model"] = model
	if trim != "" {
		body["Trim"] = trim
	} else {
		body["Trim"] = nil
	}
	return c.refineKeys(ctx, RefinementRefinePath, "ExteriorColour", body)
}

func refinePayload(make string) map[string]any {
	return map[string]any{
		"IsDealer":         true,
		"IsPrivate":        true,
		"InMarketType":     "basicSearch",
		"Address":          "Rockland",
		"Proximity":        -1,
		"Make":             make,
		"IsNew":            true,
		"IsUsed":           true,
		"IsCpo":            true,
		"IsDamaged":        false,
		"WithPhotos":       true,
		"WithPrice":        true,
		"HasDigitalRetail": false,
	}
}

// refineKeys posts body to path and returns the sorted keys of the object
// under field, without the "Status" pseudo-entry.
func (c *Client) refineKeys(ctx context.Context, path, field string, body map[string]any) ([]string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	res, _ := fn.Retry(ctx, c.retry, func(ctx context.Context, _ int) fn.Result[map[string]json.RawMessage] {
		return c.post(ctx, path, payload)
	})
	resp, err := res.Unwrap()
	if err != nil {
		return nil, fmt.Errorf("catalog: %s: %w", path, err)
	}

	raw, ok := resp[field]
	if !ok {
		return nil, fmt.Errorf("catalog: %s: response has no %q object", path, field)
	}
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil || entries == nil {
		return nil, fmt.Errorf("catalog: %s: %q is not an object", path, field)
	}
	keys := make([]string, 0, len(entries))
	for k := range entries {
		if strings.EqualFold(k, "status") {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (c *Client) post(ctx context.Context, path string, payload []byte) fn.Result[map[string]json.RawMessage] {
	type out = map[string]json.RawMessage
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return fn.Err[out](fn.Permanent(err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fn.Err[out](err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return fn.Err[out](fn.Permanent(fmt.Errorf("http %d", resp.StatusCode)))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fn.Errf[out]("http %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fn.Err[out](err)
	}
	var m out
	if err := json.Unmarshal(data, &m); err != nil {
		return fn.Err[out](fn.Permanent(fmt.Errorf("decode: %w", err)))
	}
	return fn.Ok(m)
}
