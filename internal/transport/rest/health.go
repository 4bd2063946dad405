package rest

import (
	"context"
	"net/http"
	"time"
)

// Pinger is a dependency that can report its own health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Component is a named dependency probed by /health. Optional components
// report "degraded" instead of taking the service down.
type Component struct {
	Name     string
	Pinger   Pinger
	Optional bool
}

// HealthHandler serves health check endpoints.
type HealthHandler struct {
	db         Pinger
	components []Component
	version    string
}

// NewHealthHandler creates a HealthHandler. db gates readiness; extra
// components only show up in /health.
func NewHealthHandler(db Pinger, version string, extra ...Component) *HealthHandler {
	comps := append([]Component{{Name: "database", Pinger: db}}, extra...)
	return &HealthHandler{db: db, components: comps, version: version}
}

// HealthResponse is the JSON response for /health and /ready.
type HealthResponse struct {
	Status     string                `json:"status"`
	Version    string                `json:"version,omitempty"`
	Components map[string]CompStatus `json:"components,omitempty"`
	Timestamp  time.Time             `json:"timestamp"`
}

// CompStatus is the status of an individual component.
type CompStatus struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
}

// Live is the liveness probe. Always returns 200.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
	})
}

// Ready is the readiness probe. Pings DB: 200 if OK, 503 if not.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status:    "down",
			Timestamp: time.Now(),
		})
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
	})
}

// Health pings every component with latency measurement and includes the
// version. A failed required component yields 503; a failed optional one
// marks the service degraded but still answers 200.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	components := make(map[string]CompStatus, len(h.components))
	overallStatus := "ok"

	for _, c := range h.components {
		start := time.Now()
		err := c.Pinger.Ping(ctx)
		latency := time.Since(start)

		switch {
		case err == nil:
			components[c.Name] = CompStatus{Status: "ok", Latency: latency.String()}
		case c.Optional:
			components[c.Name] = CompStatus{Status: "down"}
			if overallStatus == "ok" {
				overallStatus = "degraded"
			}
		default:
			components[c.Name] = CompStatus{Status: "down"}
			overallStatus = "down"
		}
	}

	status := http.StatusOK
	if overallStatus == "down" {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, HealthResponse{
		Status:     overallStatus,
		Version:    h.version,
		Components: components,
		Timestamp:  time.Now(),
	})
}
