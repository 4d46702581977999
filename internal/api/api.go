// Package api serves the small JSON API that sits beside the game build: the
// health check, a live view of the service lifecycle, and metrics.
package api

import (
	"net/http"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ahamlinman/webglhost/internal/lifecycle"
	"github.com/ahamlinman/webglhost/internal/watch"
)

const (
	HealthPath          = "/api/health"
	LifecycleSocketPath = "/api/sockets/lifecycle"
	MetricsPath         = "/metrics"

	// HealthMarker appears in every successful health response. The startup
	// self-check looks for it to confirm that it reached this service.
	HealthMarker = "WebGL host is running"
)

// Version is reported by the health check. It may be overridden at build time
// with -ldflags "-X github.com/ahamlinman/webglhost/internal/api.Version=...".
var Version = "1.0.0"

// Handler serves the API endpoints.
type Handler struct {
	state   *watch.Value[lifecycle.State]
	metrics *metrics.Set
	log     *zap.Logger

	// now is replaced in tests.
	now func() time.Time
}

// NewHandler creates a Handler reporting the lifecycle state held by state,
// and the metrics registered in set.
func NewHandler(state *watch.Value[lifecycle.State], set *metrics.Set, logger *zap.Logger) *Handler {
	return &Handler{
		state:   state,
		metrics: set,
		log:     logger,
		now:     time.Now,
	}
}

// Register adds the API routes to r.
func (h *Handler) Register(r chi.Router) {
	r.Get(HealthPath, h.handleHealth)
	r.Get(LifecycleSocketPath, h.handleLifecycleSocket)
	r.Get(MetricsPath, h.handleMetrics)
}

type healthMsg struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// TimestampFormat is ISO 8601 in UTC with millisecond precision.
const TimestampFormat = "2006-01-02T15:04:05.000Z07:00"

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, healthMsg{
		Message:   HealthMarker + "!",
		Timestamp: h.now().UTC().Format(TimestampFormat),
		Version:   Version,
	})
}

func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	h.metrics.WritePrometheus(w)
	metrics.WriteProcessMetrics(w)
}
