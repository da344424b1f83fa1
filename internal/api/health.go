package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// Pinger is satisfied by store.Repository.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyChecker reports whether the analysis backend can take calls.
type ReadyChecker interface {
	Ready() bool
}

// HealthHandler reports dependency status.
type HealthHandler struct {
	db           Pinger
	analyzer     ReadyChecker
	analyzerName string
	sessions     func() int
}

// NewHealthHandler creates a health handler. analyzer may be nil.
func NewHealthHandler(db Pinger, analyzer ReadyChecker, analyzerName string, sessions func() int) *HealthHandler {
	return &HealthHandler{db: db, analyzer: analyzer, analyzerName: analyzerName, sessions: sessions}
}

// RegisterRoutes registers the health route.
func (h *HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/health", h.Health)
}

// Health answers 200 when the database responds and 503 otherwise. A
// degraded analyzer does not fail the check; coaching falls back.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	dbStatus := "ok"
	if err := h.db.Ping(ctx); err != nil {
		status = http.StatusServiceUnavailable
		dbStatus = err.Error()
	}

	analyzerStatus := "disabled"
	if h.analyzer != nil {
		analyzerStatus = "ok"
		if !h.analyzer.Ready() {
			analyzerStatus = "degraded"
		}
	}

	body := map[string]interface{}{
		"database": dbStatus,
		"analyzer": map[string]string{"backend": h.analyzerName, "status": analyzerStatus},
	}
	if h.sessions != nil {
		body["active_sessions"] = h.sessions()
	}
	JSON(w, status, body)
}
