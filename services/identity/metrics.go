package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// serviceMetrics holds the Prometheus instruments for the identity service,
// registered on their own registry so multiple instances never collide.
// Outcomes: "new", "returning", "rejected", "error".
type serviceMetrics struct {
	registry *prometheus.Registry

	identifyTotal    *prometheus.CounterVec
	identifySeconds  prometheus.Histogram
	scoreTotal       *prometheus.CounterVec
	httpRequestTotal *prometheus.CounterVec
}

func newServiceMetrics() *serviceMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &serviceMetrics{
		registry: reg,
		identifyTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "identity_identify_total",
			Help: "Identify requests by reconciliation outcome.",
		}, []string{"outcome"}),
		identifySeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "identity_identify_duration_seconds",
			Help:    "End-to-end identify latency.",
			Buckets: prometheus.DefBuckets,
		}),
		scoreTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "identity_score_total",
			Help: "Behavioral score requests by recommendation.",
		}, []string{"recommendation"}),
		httpRequestTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "identity_http_requests_total",
			Help: "HTTP requests by path and status.",
		}, []string{"path", "status"}),
	}
}

func (m *serviceMetrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sr := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(sr, r)
		m.httpRequestTotal.WithLabelValues(r.URL.Path, strconv.Itoa(sr.status)).Inc()
	})
}

func (m *serviceMetrics) observeIdentify(outcome string, start time.Time) {
	m.identifyTotal.WithLabelValues(outcome).Inc()
	m.identifySeconds.Observe(time.Since(start).Seconds())
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
