package otelobs

import (
	"log"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// HTTPTraceLogMiddleware emits one access line per request with the trace and
// span IDs when a span is active, and mirrors them into Trace-Id/Span-Id
// response headers for correlation.
func HTTPTraceLogMiddleware(next http.Handler) http.Handler {
	if next == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(404) })
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w, status: 200}
		next.ServeHTTP(sr, r)

		traceID, spanID := "-", "-"
		if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
			traceID = sc.TraceID().String()
			spanID = sc.SpanID().String()
			sr.Header().Set("Trace-Id", traceID)
			sr.Header().Set("Span-Id", spanID)
		}
		log.Printf("access method=%s path=%s status=%d dur_ms=%d trace_id=%s span_id=%s",
			r.Method, r.URL.Path, sr.status, time.Since(start).Milliseconds(), traceID, spanID)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}
