// Package metrics keeps the instruments a scrape run reports into and
// renders them in the Prometheus text exposition format.
//
// Metrics are grouped into families. A family has one name, one type and at
// most one label, which is all a scrape run needs to split outcomes.
package metrics

import (
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DetailBuckets are the histogram bounds in seconds used when none are
// given. Detail fetches can sit in backoff for minutes, hence the long tail.
var DetailBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300}

type kind string

const (
	kindCounter   kind = "counter"
	kindGauge     kind = "gauge"
	kindHistogram kind = "histogram"
)

// Counter only goes up.
type Counter struct{ v atomic.Int64 }

func (c *Counter) Inc()         { c.v.Add(1) }
func (c *Counter) Add(n int64)  { c.v.Add(n) }
func (c *Counter) Value() int64 { return c.v.Load() }

// Gauge holds a value that can move both ways.
type Gauge struct{ v atomic.Int64 }

func (g *Gauge) Set(n int64)  { g.v.Store(n) }
func (g *Gauge) Inc()         { g.v.Add(1) }
func (g *Gauge) Dec()         { g.v.Add(-1) }
func (g *Gauge) Value() int64 { return g.v.Load() }

// Histogram counts observations into cumulative buckets.
type Histogram struct {
	mu    sync.Mutex
	upper []float64
	cum   []uint64
	sum   float64
	count uint64
}

func newHistogram(buckets []float64) *Histogram {
	upper := slices.Clone(buckets)
	slices.Sort(upper)
	return &Histogram{upper: upper, cum: make([]uint64, len(upper))}
}

// Observe records v in every bucket whose bound is at least v.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sum += v
	h.count++
	for i := len(h.upper) - 1; i >= 0 && v <= h.upper[i]; i-- {
		h.cum[i]++
	}
}

// Since observes the seconds elapsed since t.
func (h *Histogram) Since(t time.Time) { h.Observe(time.Since(t).Seconds()) }

func (h *Histogram) write(b *strings.Builder, name, pair string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	le := func(bound string) string {
		if pair == "" {
			return `{le="` + bound + `"}`
		}
		return "{" + pair + `,le="` + bound + `"}`
	}
	for i, bound := range h.upper {
		fmt.Fprintf(b, "%s_bucket%s %d\n", name, le(strconv.FormatFloat(bound, 'g', -1, 64)), h.cum[i])
	}
	fmt.Fprintf(b, "%s_bucket%s %d\n", name, le("+Inf"), h.count)
	fmt.Fprintf(b, "%s_sum%s %g\n", name, braces(pair), h.sum)
	fmt.Fprintf(b, "%s_count%s %d\n", name, braces(pair), h.count)
}

// family is every series sharing one metric name, keyed by label value.
// Unlabelled families hold a single series under "".
type family struct {
	name    string
	help    string
	kind    kind
	label   string
	buckets []float64

	mu     sync.Mutex
	series map[string]any
}

func (f *family) get(value string) any {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.series[value]; ok {
		return m
	}
	var m any
	switch f.kind {
	case kindCounter:
		m = &Counter{}
	case kindGauge:
		m = &Gauge{}
	default:
		m = newHistogram(f.buckets)
	}
	f.series[value] = m
	return m
}

// pair renders the label of one series as k="v", or "" when unlabelled.
func (f *family) pair(value string) string {
	if f.label == "" {
		return ""
	}
	return f.label + "=" + strconv.Quote(value)
}

func (f *family) write(b *strings.Builder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.help != "" {
		fmt.Fprintf(b, "# HELP %s %s\n", f.name, f.help)
	}
	fmt.Fprintf(b, "# TYPE %s %s\n", f.name, f.kind)
	for _, value := range slices.Sorted(maps.Keys(f.series)) {
		pair := f.pair(value)
		switch m := f.series[value].(type) {
		case *Counter:
			fmt.Fprintf(b, "%s%s %d\n", f.name, braces(pair), m.Value())
		case *Gauge:
			fmt.Fprintf(b, "%s%s %d\n", f.name, braces(pair), m.Value())
		case *Histogram:
			m.write(b, f.name, pair)
		}
	}
}

func braces(pair string) string {
	if pair == "" {
		return ""
	}
	return "{" + pair + "}"
}

// Registry holds metric families in registration order.
type Registry struct {
	mu       sync.Mutex
	families []*family
	byName   map[string]*family
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{byName: make(map[string]*family)}
}

// register returns the family called name, creating it on first use.
// Registering a name again with another type or label is a programming
// error and panics.
func (r *Registry) register(name, help string, k kind, label string, buckets []float64) *family {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.byName[name]; ok {
		if f.kind != k || f.label != label {
			panic(fmt.Sprintf("metrics: %s registered as %s{%s}, not %s{%s}", name, f.kind, f.label, k, label))
		}
		return f
	}
	f := &family{name: name, help: help, kind: k, label: label, buckets: buckets, series: make(map[string]any)}
	r.families = append(r.families, f)
	r.byName[name] = f
	return f
}

// Counter returns the unlabelled counter called name.
func (r *Registry) Counter(name, help string) *Counter {
	return r.register(name, help, kindCounter, "", nil).get("").(*Counter)
}

// Gauge returns the unlabelled gauge called name.
func (r *Registry) Gauge(name, help string) *Gauge {
	return r.register(name, help, kindGauge, "", nil).get("").(*Gauge)
}

// Histogram returns the histogram called name. Nil buckets mean
// DetailBuckets.
func (r *Registry) Histogram(name, help string, buckets []float64) *Histogram {
	if buckets == nil {
		buckets = DetailBuckets
	}
	return r.register(name, help, kindHistogram, "", buckets).get("").(*Histogram)
}

// CounterVec is a counter family split by one label.
type CounterVec struct{ f *family }

// CounterVec returns the counter family called name split by label. The
// listed values are created up front so they render as zero before their
// first increment.
func (r *Registry) CounterVec(name, help, label string, values ...string) *CounterVec {
	f := r.register(name, help, kindCounter, label, nil)
	for _, v := range values {
		f.get(v)
	}
	return &CounterVec{f: f}
}

// With returns the counter for one label value.
func (v *CounterVec) With(value string) *Counter { return v.f.get(value).(*Counter) }

// Render returns every family in the Prometheus text exposition format.
func (r *Registry) Render() string {
	r.mu.Lock()
	families := slices.Clone(r.families)
	r.mu.Unlock()

	var b strings.Builder
	for _, f := range families {
		f.write(&b)
	}
	return b.String()
}

// Handler serves Render as a /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(r.Render()))
	})
}
