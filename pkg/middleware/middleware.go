package middleware

import (
	"net/http"
	"slices"
	"time"

	"github.com/JaimeStill/pulse/pkg/metrics"
)

// System manages an ordered stack of HTTP middleware. The first
// middleware added is the outermost.
type System interface {
	Use(mw func(http.Handler) http.Handler)
	Apply(handler http.Handler) http.Handler
}

type stack []func(http.Handler) http.Handler

// New creates an empty middleware System.
func New() System {
	return &stack{}
}

func (s *stack) Use(fn func(http.Handler) http.Handler) {
	*s = append(*s, fn)
}

func (s *stack) Apply(handler http.Handler) http.Handler {
	for _, mw := range slices.Backward(*s) {
		handler = mw(handler)
	}
	return handler
}

// Metrics returns middleware that counts requests and server errors,
// tracks requests in flight, and observes request latency.
func Metrics(reg *metrics.Registry) func(http.Handler) http.Handler {
	requests := reg.Counter("http_requests_total", "HTTP requests served.")
	failures := reg.Counter("http_server_errors_total", "HTTP requests answered with a 5xx status.")
	inflight := reg.Gauge("http_requests_in_flight", "HTTP requests currently being served.")
	latency := reg.Histogram("http_request_seconds", "HTTP request latency.",
		[]float64{0.005, 0.025, 0.1, 0.5, 1, 5})

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			inflight.Add(1)
			defer inflight.Add(-1)

			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			requests.Inc()
			if rec.status >= http.StatusInternalServerError {
				failures.Inc()
			}
			latency.Observe(time.Since(start).Seconds())
		})
	}
}
