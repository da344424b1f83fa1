package coaching

import (
	"time"

	"github.com/ashureev/motion-coach/internal/domain"
)

// Gate reasons recorded on a Decision.
const (
	ReasonSetup       = "setup"
	ReasonInterval    = "interval"
	ReasonRepTrigger  = "rep_trigger"
	ReasonTimeTrigger = "time_trigger"
)

// Decision is the scheduler's verdict for one event.
type Decision struct {
	Fire         bool
	Batch        bool
	Reason       string
	FeedbackType FeedbackType
}

// Scheduler applies the interval and batch gates. It never blocks and never
// touches rep counting.
type Scheduler struct {
	policy *PolicySource
}

// NewScheduler creates a scheduler reading its knobs from policy.
func NewScheduler(policy *PolicySource) *Scheduler {
	if policy == nil {
		policy = NewPolicySource(DefaultPolicy())
	}
	return &Scheduler{policy: policy}
}

// Decide inspects session state without changing it. The caller must hold
// the session lock.
func (sc *Scheduler) Decide(s *Session, completed bool, now time.Time) Decision {
	if s.Phase == PhaseSetup {
		return Decision{Fire: true, Reason: ReasonSetup, FeedbackType: FeedbackSetup}
	}

	p := sc.policy.Load()

	switch s.Strategy {
	case StrategyRepGroups:
		if !completed || s.Frames.Len() == 0 {
			return Decision{}
		}
		switch {
		case s.RepsSinceLastBatch >= p.BatchReps:
			return Decision{Fire: true, Batch: true, Reason: ReasonRepTrigger, FeedbackType: FeedbackBatch}
		case now.Sub(s.LastBatchAt) > p.BatchWindow:
			return Decision{Fire: true, Batch: true, Reason: ReasonTimeTrigger, FeedbackType: FeedbackBatch}
		}
		return Decision{}

	case StrategyContinuousHold:
		if sc.intervalElapsed(s, p, now) {
			return Decision{Fire: true, Reason: ReasonInterval, FeedbackType: FeedbackHold}
		}
		return Decision{}

	default:
		// per_swing, per_attempt and general: one check per completed movement.
		if completed && sc.intervalElapsed(s, p, now) {
			return Decision{Fire: true, Reason: ReasonInterval, FeedbackType: FeedbackRep}
		}
		return Decision{}
	}
}

// Commit applies the side effects of a fired decision and returns the
// frames to analyze. The caller must hold the session lock.
func (sc *Scheduler) Commit(s *Session, d Decision, now time.Time) []domain.Frame {
	if !d.Fire {
		return nil
	}
	s.LastCoachingAt = now

	if !d.Batch {
		return s.Frames.TakeLastN(1)
	}

	frames := s.Frames.TakeLastN(sc.policy.Load().BatchFrames)
	s.RepsSinceLastBatch = 0
	s.Frames.Clear()
	s.LastBatchAt = now
	return frames
}

func (sc *Scheduler) intervalElapsed(s *Session, p Policy, now time.Time) bool {
	if s.LastCoachingAt.IsZero() {
		return true
	}
	return now.Sub(s.LastCoachingAt) >= p.IntervalFor(s.Activity.Kind)
}
