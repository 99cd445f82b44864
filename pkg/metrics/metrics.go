// Package metrics keeps process counters and histograms and renders them in
// the Prometheus text exposition format.
package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
)

type kind string

const (
	kindCounter   kind = "counter"
	kindGauge     kind = "gauge"
	kindHistogram kind = "histogram"
)

type metric interface {
	write(buf *bytes.Buffer, name string)
}

type descriptor struct {
	name   string
	help   string
	kind   kind
	metric metric
}

// Registry owns a set of named metrics. Registering an existing name returns
// the metric already registered under it.
type Registry struct {
	mu    sync.Mutex
	order []*descriptor
	index map[string]*descriptor
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{index: make(map[string]*descriptor)}
}

// Counter returns the monotonically increasing counter registered as name.
func (r *Registry) Counter(name, help string) *Counter {
	return register(r, name, help, kindCounter, func() *Counter { return &Counter{} })
}

// Gauge returns the gauge registered as name.
func (r *Registry) Gauge(name, help string) *Gauge {
	return register(r, name, help, kindGauge, func() *Gauge { return &Gauge{} })
}

// Histogram returns the histogram registered as name. Buckets are upper
// bounds in ascending order and only apply on first registration.
func (r *Registry) Histogram(name, help string, buckets []float64) *Histogram {
	return register(r, name, help, kindHistogram, func() *Histogram {
		return &Histogram{
			buckets: append([]float64(nil), buckets...),
			counts:  make([]uint64, len(buckets)),
		}
	})
}

func register[M metric](r *Registry, name, help string, k kind, build func() M) M {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d, ok := r.index[name]; ok {
		if m, ok := d.metric.(M); ok {
			return m
		}
		panic(fmt.Sprintf("metrics: %s already registered as %s", name, d.kind))
	}

	m := build()
	d := &descriptor{name: name, help: help, kind: k, metric: m}
	r.order = append(r.order, d)
	r.index[name] = d
	return m
}

// Render writes every metric in registration order.
func (r *Registry) Render() string {
	r.mu.Lock()
	descs := append([]*descriptor(nil), r.order...)
	r.mu.Unlock()

	var buf bytes.Buffer
	for _, d := range descs {
		fmt.Fprintf(&buf, "# HELP %s %s\n", d.name, d.help)
		fmt.Fprintf(&buf, "# TYPE %s %s\n", d.name, d.kind)
		d.metric.write(&buf, d.name)
	}
	return buf.String()
}

// Handler exposes the registry in Prometheus text format.
func (r *Registry) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(r.Render()))
	}
}

// Counter is a monotonically increasing count.
type Counter struct {
	value atomic.Uint64
}

// Inc adds one.
func (c *Counter) Inc() { c.value.Add(1) }

// Add adds n.
func (c *Counter) Add(n uint64) { c.value.Add(n) }

// Value returns the current count.
func (c *Counter) Value() uint64 { return c.value.Load() }

func (c *Counter) write(buf *bytes.Buffer, name string) {
	fmt.Fprintf(buf, "%s %d\n", name, c.value.Load())
}

// Gauge is a value that can go up and down.
type Gauge struct {
	value atomic.Int64
}

// Set replaces the value.
func (g *Gauge) Set(v int64) { g.value.Store(v) }

// Add adjusts the value by delta.
func (g *Gauge) Add(delta int64) { g.value.Add(delta) }

// Value returns the current value.
func (g *Gauge) Value() int64 { return g.value.Load() }

func (g *Gauge) write(buf *bytes.Buffer, name string) {
	fmt.Fprintf(buf, "%s %d\n", name, g.value.Load())
}

// Histogram counts observations into fixed buckets.
type Histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

// Observe records one value in the first bucket that bounds it.
func (h *Histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			break
		}
	}
}

// Count returns the number of observations.
func (h *Histogram) Count() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

func (h *Histogram) write(buf *bytes.Buffer, name string) {
	h.mu.Lock()
	buckets := append([]float64(nil), h.buckets...)
	counts := append([]uint64(nil), h.counts...)
	sum, count := h.sum, h.count
	h.mu.Unlock()

	var cumulative uint64
	for i, bound := range buckets {
		cumulative += counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
