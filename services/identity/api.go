package main

import (
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"revisit/pkg/behavior"
	"revisit/pkg/fingerprint"
	"revisit/pkg/ratelimit"
	"revisit/pkg/reconcile"
	"revisit/pkg/store"
)

const maxBodyBytes = 1 << 20

// Server exposes the identify and score operations over HTTP.
type Server struct {
	decider *reconcile.Decider
	limiter *ratelimit.Limiter
	metrics *serviceMetrics
}

func NewServer(d *reconcile.Decider, limiter *ratelimit.Limiter) *Server {
	return &Server{decider: d, limiter: limiter, metrics: newServiceMetrics()}
}

// rateLimited throttles the identity endpoints per client IP. Health and
// metrics stay unthrottled.
func (s *Server) rateLimited(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && strings.HasPrefix(r.URL.Path, "/identity/") {
			if !s.limiter.Allow(r.Context(), clientIP(r)) {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, ok := strings.Cut(fwd, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(fwd)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// handleIdentify accepts a fingerprint submission and answers with the
// visitor decision.
func (s *Server) handleIdentify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	start := time.Now()

	var sub reconcile.Submission
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		s.metrics.observeIdentify("rejected", start)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := s.decider.Identify(r.Context(), sub)
	switch {
	case errors.Is(err, fingerprint.ErrNoUsableSignals):
		s.metrics.observeIdentify("rejected", start)
		writeError(w, http.StatusBadRequest, "no usable signal groups in submission")
		return
	case errors.Is(err, store.ErrUnavailable):
		s.metrics.observeIdentify("error", start)
		log.Printf("[identity] identify failed: %v", err)
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	case err != nil:
		s.metrics.observeIdentify("error", start)
		log.Printf("[identity] identify failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	outcome := "returning"
	if res.IsNewVisitor {
		outcome = "new"
	}
	s.metrics.observeIdentify(outcome, start)
	writeJSON(w, http.StatusOK, res)
}

type scoreRequest struct {
	SessionID string           `json:"session_id,omitempty"`
	Events    []behavior.Event `json:"events"`
}

// handleScore runs the behavioral statistics engine standalone, without
// touching fingerprint storage.
func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req scoreRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	verdict := behavior.Analyze(req.Events, behavior.DefaultConfig())
	s.metrics.scoreTotal.WithLabelValues(verdict.Recommendation).Inc()
	writeJSON(w, http.StatusOK, verdict)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[identity] encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
