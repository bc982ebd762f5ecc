// Package metrics provides Prometheus instrumentation for the tracker.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RefreshesTotal counts portfolio refreshes by outcome.
	RefreshesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chainguardian_refreshes_total",
		Help: "Total number of portfolio refreshes",
	}, []string{"outcome"})

	// RefreshDuration tracks how long a full refresh takes.
	RefreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "chainguardian_refresh_duration_seconds",
		Help:    "Portfolio refresh duration in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	// OracleRequests counts external data source calls by source and outcome.
	OracleRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chainguardian_oracle_requests_total",
		Help: "External market data requests",
	}, []string{"source", "outcome"})

	// Positions tracks the number of open positions in the latest snapshot.
	Positions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chainguardian_open_positions",
		Help: "Number of open positions",
	})

	// ProfitTakeSignals tracks the number of active profit-take signals.
	ProfitTakeSignals = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chainguardian_profit_take_signals",
		Help: "Number of positions above their profit-take threshold",
	})

	// SentimentIndex is the latest fear and greed value, -1 when unknown.
	SentimentIndex = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chainguardian_sentiment_index",
		Help: "Latest fear and greed index value",
	})

	// StreamClients tracks connected SSE clients.
	StreamClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chainguardian_stream_clients",
		Help: "Number of connected stream clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, route and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chainguardian_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chainguardian_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// route pattern keeps label cardinality bounded
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses working through the wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
