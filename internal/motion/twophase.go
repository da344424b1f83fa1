package motion

import (
	"fmt"
	"math"
)

// Phase of a two-phase exercise.
type Phase int

const (
	PhaseDown Phase = iota
	PhaseUp
)

func (p Phase) String() string {
	if p == PhaseUp {
		return "up"
	}
	return "down"
}

const (
	legsWideRatio     = 1.5
	legsTogetherRatio = 1.2
)

// TwoPhaseDetector counts jumping-jack style reps. A rep completes on the
// return to the rest pose, never on the way out.
type TwoPhaseDetector struct {
	phase Phase
}

// NewTwoPhaseDetector returns a detector in the rest (down) phase.
func NewTwoPhaseDetector() *TwoPhaseDetector {
	return &TwoPhaseDetector{}
}

// Phase returns the current phase.
func (d *TwoPhaseDetector) Phase() Phase { return d.phase }

// Observe feeds one sample.
func (d *TwoPhaseDetector) Observe(s Sample) (bool, error) {
	pts, err := s.Landmarks.pick(LeftShoulder, RightShoulder, LeftWrist, RightWrist, LeftAnkle, RightAnkle)
	if err != nil {
		return false, err
	}
	ls, rs, lw, rw, la, ra := pts[0], pts[1], pts[2], pts[3], pts[4], pts[5]

	shoulderWidth := math.Abs(ls.X - rs.X)
	if shoulderWidth < 1e-6 {
		return false, fmt.Errorf("%w: zero shoulder width", ErrMalformedLandmarks)
	}
	ankleWidth := math.Abs(la.X - ra.X)

	topShoulder := math.Min(ls.Y, rs.Y)
	armsUp := lw.Y < topShoulder && rw.Y < topShoulder
	legsWide := ankleWidth > legsWideRatio*shoulderWidth
	legsTogether := ankleWidth < legsTogetherRatio*shoulderWidth

	switch d.phase {
	case PhaseDown:
		if armsUp && legsWide {
			d.phase = PhaseUp
		}
	case PhaseUp:
		if !armsUp && legsTogether {
			d.phase = PhaseDown
			return true, nil
		}
	}
	return false, nil
}
