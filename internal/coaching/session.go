package coaching

import (
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/motion-coach/internal/motion"
)

// Phase is the coarse position of a session in its lifecycle.
type Phase string

const (
	PhaseSetup      Phase = "setup"
	PhaseMonitoring Phase = "monitoring"
	PhaseFeedback   Phase = "feedback"
)

// Session is the live coaching state of one user. All fields are guarded by
// mu; the store only owns the map entry.
type Session struct {
	mu sync.Mutex

	ID       string
	UserID   string
	Activity motion.Activity
	Strategy Strategy

	Phase              Phase
	RepCount           int
	RepsSinceLastBatch int
	LastCoachingAt     time.Time
	LastBatchAt        time.Time
	LastFeedbackText   string

	Frames  *FrameBuffer
	Tracker *motion.Tracker

	StartedAt        time.Time
	LastEventAt      time.Time
	FeedbackCount    int
	FallbackCount    int
	RateLimitedCount int
}

func newSession(id, userID string, activity motion.Activity, now time.Time, logger *slog.Logger) *Session {
	return &Session{
		ID:          id,
		UserID:      userID,
		Activity:    activity,
		Strategy:    StrategyFor(activity.Kind),
		Phase:       PhaseSetup,
		LastBatchAt: now,
		Frames:      NewFrameBuffer(FrameBufferCapacity),
		Tracker:     motion.NewTracker(activity, logger.With("user_id", userID)),
		StartedAt:   now,
		LastEventAt: now,
	}
}

// transition moves the session along setup -> monitoring -> feedback ->
// monitoring. Any other move is refused.
func (s *Session) transition(to Phase) bool {
	switch {
	case s.Phase == PhaseSetup && to == PhaseMonitoring,
		s.Phase == PhaseMonitoring && to == PhaseFeedback,
		s.Phase == PhaseFeedback && to == PhaseMonitoring:
		s.Phase = to
		return true
	}
	return false
}

// Snapshot is a read-only copy of session state.
type Snapshot struct {
	SessionID          string    `json:"session_id"`
	UserID             string    `json:"user_id"`
	ActivityType       string    `json:"activity_type"`
	Strategy           Strategy  `json:"strategy"`
	Phase              Phase     `json:"phase"`
	RepCount           int       `json:"rep_count"`
	RepsSinceLastBatch int       `json:"reps_since_last_batch"`
	BufferedFrames     int       `json:"buffered_frames"`
	LastFeedback       string    `json:"last_feedback,omitempty"`
	LastCoachingAt     time.Time `json:"last_coaching_at,omitempty"`
	LastBatchAt        time.Time `json:"last_batch_at"`
	StartedAt          time.Time `json:"started_at"`
	LastEventAt        time.Time `json:"last_event_at"`
	FeedbackCount      int       `json:"feedback_count"`
	FallbackCount      int       `json:"fallback_count"`
	RateLimitedCount   int       `json:"rate_limited_count"`
}

// Snapshot copies the session under its lock.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		SessionID:          s.ID,
		UserID:             s.UserID,
		ActivityType:       s.Activity.Name,
		Strategy:           s.Strategy,
		Phase:              s.Phase,
		RepCount:           s.RepCount,
		RepsSinceLastBatch: s.RepsSinceLastBatch,
		BufferedFrames:     s.Frames.Len(),
		LastFeedback:       s.LastFeedbackText,
		LastCoachingAt:     s.LastCoachingAt,
		LastBatchAt:        s.LastBatchAt,
		StartedAt:          s.StartedAt,
		LastEventAt:        s.LastEventAt,
		FeedbackCount:      s.FeedbackCount,
		FallbackCount:      s.FallbackCount,
		RateLimitedCount:   s.RateLimitedCount,
	}
}
