// Package coaching is the live coaching core: per-user session state, the
// feedback scheduler and the orchestrator that talks to the analysis
// collaborator.
package coaching

import (
	"context"
	"errors"
	"time"

	"github.com/ashureev/motion-coach/internal/domain"
	"github.com/ashureev/motion-coach/internal/motion"
)

// ErrInvalidEvent is returned for events that cannot be attributed to a user.
var ErrInvalidEvent = errors.New("invalid coaching event")

// FeedbackType labels what an outbound result carries.
type FeedbackType string

const (
	FeedbackSetup       FeedbackType = "setup"
	FeedbackMonitoring  FeedbackType = "monitoring"
	FeedbackBatch       FeedbackType = "batch_analysis"
	FeedbackRep         FeedbackType = "rep_completed"
	FeedbackHold        FeedbackType = "hold_check"
	FeedbackFallback    FeedbackType = "heuristic_fallback"
	FeedbackRateLimited FeedbackType = "rate_limited"
)

// Analyzer is the external vision-language collaborator.
type Analyzer interface {
	Analyze(ctx context.Context, frames []domain.Frame, prompt string) (string, error)
}

// Admitter decides whether a user may trigger another analysis. It is
// called once per fired decision; an admitter that meters usage counts the
// call when it admits it.
type Admitter interface {
	CanProceed(ctx context.Context, userID string) (bool, string)
}

type allowAll struct{}

func (allowAll) CanProceed(context.Context, string) (bool, string) { return true, "" }

// Event is one inbound pose observation.
type Event struct {
	UserID       string           `json:"user_id"`
	ActivityType string           `json:"activity_type"`
	TimestampMs  int64            `json:"timestamp_ms"`
	Landmarks    motion.Landmarks `json:"landmarks"`
	Frame        string           `json:"frame,omitempty"`
}

// Result is the outbound answer to one event.
type Result struct {
	RepCount              int          `json:"rep_count"`
	Phase                 Phase        `json:"phase"`
	MovementCompleted     bool         `json:"movement_completed"`
	ShouldProvideFeedback bool         `json:"should_provide_feedback"`
	Feedback              *string      `json:"feedback"`
	FeedbackType          FeedbackType `json:"feedback_type"`
	RateLimited           bool         `json:"rate_limited"`
	Reason                string       `json:"reason,omitempty"`
}

// SessionInfo describes a session returned by Start.
type SessionInfo struct {
	SessionID       string   `json:"session_id"`
	ActivityType    string   `json:"activity_type"`
	Category        string   `json:"category"`
	Strategy        Strategy `json:"strategy"`
	IntervalSeconds float64  `json:"interval_seconds"`
}

// Summary is returned when a session stops.
type Summary struct {
	SessionID        string  `json:"session_id"`
	ActivityType     string  `json:"activity_type"`
	RepCount         int     `json:"rep_count"`
	DurationSeconds  float64 `json:"duration_seconds"`
	FeedbackCount    int     `json:"feedback_count"`
	FallbackCount    int     `json:"fallback_count"`
	RateLimitedCount int     `json:"rate_limited_count"`
}

func summarize(s Snapshot, now time.Time) Summary {
	return Summary{
		SessionID:        s.SessionID,
		ActivityType:     s.ActivityType,
		RepCount:         s.RepCount,
		DurationSeconds:  now.Sub(s.StartedAt).Seconds(),
		FeedbackCount:    s.FeedbackCount,
		FallbackCount:    s.FallbackCount,
		RateLimitedCount: s.RateLimitedCount,
	}
}
