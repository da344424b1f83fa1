package motion

import "log/slog"

// Detector turns a stream of samples into completion signals. Detectors are
// not safe for concurrent use; callers serialize access per session.
//
// On malformed input Observe returns false and an error wrapping
// ErrMalformedLandmarks, and leaves its state unchanged.
type Detector interface {
	Observe(s Sample) (bool, error)
}

// NewDetector returns a fresh detector for an activity family.
func NewDetector(kind Kind) Detector {
	switch kind {
	case KindPlank:
		return NewHoldDetector(DefaultHoldEvery, PlankPose, true)
	case KindWallSit:
		return NewHoldDetector(DefaultHoldEvery, WallSitPose, true)
	case KindGolf, KindTennis:
		return NewSwingDetector()
	case KindBasketball:
		return NewShotDetector()
	case KindSquat:
		return NewDepthDetector()
	case KindPushup:
		return NewPushupDetector()
	case KindJumpingJack:
		return NewTwoPhaseDetector()
	case KindGeneric:
		return NewHoldDetector(DefaultActiveEvery, ActivePose, false)
	}
	return NewHoldDetector(DefaultActiveEvery, ActivePose, false)
}

// Tracker wraps a session's detector and absorbs malformed input.
type Tracker struct {
	activity Activity
	detector Detector
	logger   *slog.Logger
}

// NewTracker creates a tracker for an activity.
func NewTracker(activity Activity, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		activity: activity,
		detector: NewDetector(activity.Kind),
		logger:   logger,
	}
}

// Activity returns the tracked activity.
func (t *Tracker) Activity() Activity { return t.activity }

// Observe reports whether a movement just completed. Malformed samples are
// logged and count as "not completed".
func (t *Tracker) Observe(s Sample) bool {
	done, err := t.detector.Observe(s)
	if err != nil {
		t.logger.Warn("Ignoring malformed pose sample",
			"activity", t.activity.Name,
			"kind", t.activity.Kind.String(),
			"landmarks", len(s.Landmarks),
			"error", err)
		return false
	}
	return done
}
