package http

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().
		Set("ok", true).
		Set("backend", s.opts.Backend).
		Set("demo", !s.opts.AuthRequired).
		Set("uptime", time.Since(s.appMetrics.uptime).Round(time.Second).String()).
		Write(w)
}

// handleReady checks that the store answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.store == nil {
		checks["store"] = "not_configured"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else if err := s.store.Ping(ctx); err != nil {
		checks["store"] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}
	if s.tokens != nil {
		checks["sessions"] = map[string]any{
			"active": s.tokens.Registry().Len(),
			"status": "ok",
		}
	}

	NewJSONResponse().
		Status(httpStatus).
		Set("status", status).
		Set("timestamp", time.Now().Format(time.RFC3339)).
		Set("checks", checks).
		Write(w)
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.traceMiddleware.GetMetrics()
	sessions := 0
	if s.tokens != nil {
		sessions = s.tokens.Registry().Len()
	}

	w.WriteHeader(http.StatusOK)

	metric := func(name, help, kind string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s %s\n", name, kind)
		fmt.Fprintf(w, "%s %v\n\n", name, value)
	}

	metric("http_requests_total", "Total number of HTTP requests", "counter", traceMetrics.TotalRequests)
	metric("http_client_errors_total", "Responses with a 4xx status", "counter", traceMetrics.ClientErrors)
	metric("http_server_errors_total", "Responses with a 5xx status", "counter", traceMetrics.ServerErrors)
	metric("http_response_time_avg_microseconds", "Average response time", "gauge", traceMetrics.AverageResponseTime)
	metric("ledger_mutations_total", "Successful ledger mutations", "counter", atomic.LoadInt64(&s.appMetrics.mutationsOK))
	metric("ledger_mutation_errors_total", "Failed ledger mutations", "counter", atomic.LoadInt64(&s.appMetrics.mutationsError))
	if s.ledgers != nil {
		cs := s.ledgers.CacheStats()
		metric("ledger_cache_hits_total", "Ledger snapshot cache hits", "counter", cs.Hits)
		metric("ledger_cache_misses_total", "Ledger snapshot cache misses", "counter", cs.Misses)
		metric("ledger_cache_evictions_total", "Ledger snapshots evicted for space", "counter", cs.Evictions)
		metric("ledger_cache_entries", "Ledger snapshots currently cached", "gauge", cs.Size)
	}
	metric("auth_logins_total", "Successful logins", "counter", atomic.LoadInt64(&s.appMetrics.logins))
	metric("auth_login_failures_total", "Rejected logins", "counter", atomic.LoadInt64(&s.appMetrics.loginFailures))
	metric("auth_registrations_total", "Accounts registered", "counter", atomic.LoadInt64(&s.appMetrics.registrations))
	metric("auth_active_sessions", "Live bearer sessions", "gauge", sessions)
	metric("rate_limit_hits_total", "Requests rejected by the rate limiter", "counter", rateLimitMetrics.Rejected)
	metric("active_rate_limit_clients", "Currently tracked rate limit clients", "gauge", rateLimitMetrics.ClientCount)
	metric("suspicious_requests_total", "Total suspicious requests detected", "counter", securityMetrics.SuspiciousRequests)
	metric("uptime_seconds", "Application uptime in seconds", "gauge", fmt.Sprintf("%.0f", time.Since(s.appMetrics.uptime).Seconds()))
}
