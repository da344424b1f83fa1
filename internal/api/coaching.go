package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/motion-coach/internal/coaching"
	"github.com/ashureev/motion-coach/internal/identity"
	"github.com/ashureev/motion-coach/internal/quota"
)

// QuotaReporter reports a user's analysis usage.
type QuotaReporter interface {
	Usage(ctx context.Context, userID string) (quota.Usage, error)
}

// CoachingHandler serves the coaching session endpoints.
type CoachingHandler struct {
	engine *coaching.Engine
	quota  QuotaReporter
	starts *RateLimiter
	logger *slog.Logger
}

// NewCoachingHandler creates a coaching handler. quota may be nil, in which
// case /api/me/quota answers 404.
func NewCoachingHandler(engine *coaching.Engine, quota QuotaReporter, starts *RateLimiter, logger *slog.Logger) *CoachingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CoachingHandler{engine: engine, quota: quota, starts: starts, logger: logger}
}

// RegisterRoutes registers coaching routes.
func (h *CoachingHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/coaching", func(r chi.Router) {
		r.Post("/start", h.Start)
		r.Post("/stop", h.Stop)
		r.Post("/frame", h.Frame)
		r.Get("/state", h.State)
	})
	r.Get("/api/me/quota", h.Quota)
}

type startRequest struct {
	ActivityType string `json:"activity_type"`
}

// Start begins or resets the caller's coaching session.
func (h *CoachingHandler) Start(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req startRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	if h.starts != nil && !h.starts.Allow(userID) {
		h.logger.Warn("Session start rate limited", "user_id", userID)
		Error(w, http.StatusTooManyRequests, "too many session starts, slow down")
		return
	}

	info, err := h.engine.Start(userID, req.ActivityType)
	if err != nil {
		h.writeEngineError(w, userID, err)
		return
	}

	h.logger.Debug("Start request served", "user_id", userID, "session_id", info.SessionID)
	JSON(w, http.StatusOK, info)
}

// Stop ends the caller's session and returns its summary.
func (h *CoachingHandler) Stop(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	summary, found := h.engine.Stop(userID)
	JSON(w, http.StatusOK, map[string]interface{}{
		"found":   found,
		"summary": summary,
	})
}

// Frame processes one inbound pose event for the caller.
func (h *CoachingHandler) Frame(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var ev coaching.Event
	if err := decodeJSON(w, r, &ev); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	// The body's user_id is never trusted over the identity cookie.
	ev.UserID = userID

	res, err := h.engine.Process(r.Context(), ev)
	if err != nil {
		h.writeEngineError(w, userID, err)
		return
	}
	JSON(w, http.StatusOK, res)
}

// State returns the caller's session snapshot.
func (h *CoachingHandler) State(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	snap, ok := h.engine.State(userID)
	if !ok {
		Error(w, http.StatusNotFound, "no active session")
		return
	}
	JSON(w, http.StatusOK, snap)
}

// Quota returns the caller's analysis usage.
func (h *CoachingHandler) Quota(w http.ResponseWriter, r *http.Request) {
	if h.quota == nil {
		Error(w, http.StatusNotFound, "quota tracking disabled")
		return
	}
	userID := identity.UserIDFromContext(r.Context())
	usage, err := h.quota.Usage(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to load quota usage", "user_id", userID, "error", err)
		Error(w, http.StatusServiceUnavailable, "quota unavailable")
		return
	}
	JSON(w, http.StatusOK, usage)
}

func (h *CoachingHandler) writeEngineError(w http.ResponseWriter, userID string, err error) {
	if errors.Is(err, coaching.ErrInvalidEvent) {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	h.logger.Error("Coaching request failed", "user_id", userID, "error", err)
	Error(w, http.StatusInternalServerError, "internal error")
}
