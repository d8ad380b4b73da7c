package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Health status constants for health check responses.
const (
	healthStatusOK           = "ok"
	healthStatusNotReady     = "not ready"
	healthStatusFailing      = "failing"
	healthStatusShuttingDown = "shutting down"
)

// DefaultFailureThreshold is the number of consecutive failed poll cycles
// after which the poller reports itself not ready.
const DefaultFailureThreshold = 3

// HealthChecker tracks the poll loop and serves health endpoints.
type HealthChecker struct {
	shuttingDown atomic.Bool
	startTime    time.Time
	threshold    int

	mu                  sync.Mutex
	lastCycle           time.Time
	lastError           string
	cycles              int
	consecutiveFailures int
}

// NewHealthChecker creates a new HealthChecker. A threshold of zero uses
// DefaultFailureThreshold.
func NewHealthChecker(threshold int) *HealthChecker {
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	return &HealthChecker{
		startTime: time.Now(),
		threshold: threshold,
	}
}

// RecordCycle records the result of a finished poll cycle.
func (h *HealthChecker) RecordCycle(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.cycles++
	h.lastCycle = time.Now()
	if err != nil {
		h.lastError = err.Error()
		h.consecutiveFailures++
		return
	}
	h.lastError = ""
	h.consecutiveFailures = 0
}

// SetShuttingDown marks the process as stopping.
func (h *HealthChecker) SetShuttingDown() {
	h.shuttingDown.Store(true)
}

// IsReady reports whether at least one cycle has run and the poller is
// not failing repeatedly.
func (h *HealthChecker) IsReady() bool {
	status, _ := h.status()
	return status == healthStatusOK
}

func (h *HealthChecker) status() (string, int) {
	if h.shuttingDown.Load() {
		return healthStatusShuttingDown, http.StatusServiceUnavailable
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	switch {
	case h.cycles == 0:
		return healthStatusNotReady, http.StatusServiceUnavailable
	case h.consecutiveFailures >= h.threshold:
		return healthStatusFailing, http.StatusServiceUnavailable
	}
	return healthStatusOK, http.StatusOK
}

// HealthResponse represents the JSON response for health endpoints.
type HealthResponse struct {
	Status string `json:"status"`
}

// DetailedHealthResponse provides comprehensive health information.
type DetailedHealthResponse struct {
	Status              string `json:"status"`
	Uptime              string `json:"uptime"`
	Cycles              int    `json:"cycles"`
	LastCycle           string `json:"last_cycle,omitempty"`
	LastError           string `json:"last_error,omitempty"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
}

// LivenessHandler returns an HTTP handler for the /healthz endpoint.
// It succeeds while the process is running.
func (h *HealthChecker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeHealth(w, http.StatusOK, HealthResponse{Status: healthStatusOK})
	})
}

// ReadinessHandler returns an HTTP handler for the /readyz endpoint.
func (h *HealthChecker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		status, code := h.status()
		writeHealth(w, code, HealthResponse{Status: status})
	})
}

// DetailedHealthHandler returns an HTTP handler for the /healthz/detailed endpoint.
func (h *HealthChecker) DetailedHealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		status, code := h.status()

		h.mu.Lock()
		resp := DetailedHealthResponse{
			Status:              status,
			Uptime:              time.Since(h.startTime).Truncate(time.Second).String(),
			Cycles:              h.cycles,
			LastError:           h.lastError,
			ConsecutiveFailures: h.consecutiveFailures,
		}
		if !h.lastCycle.IsZero() {
			resp.LastCycle = h.lastCycle.UTC().Format(time.RFC3339)
		}
		h.mu.Unlock()

		writeHealth(w, code, resp)
	})
}

// RegisterHealthEndpoints registers health check endpoints on the given mux.
func (h *HealthChecker) RegisterHealthEndpoints(mux *http.ServeMux) {
	mux.Handle("/healthz", h.LivenessHandler())
	mux.Handle("/readyz", h.ReadinessHandler())
	mux.Handle("/healthz/detailed", h.DetailedHealthHandler())
}

func writeHealth(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
