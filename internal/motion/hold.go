package motion

import (
	"fmt"
	"math"
	"time"
)

const (
	// DefaultHoldEvery is the time-in-pose between plank and wall-sit signals.
	DefaultHoldEvery = 10 * time.Second
	// DefaultActiveEvery is the active time between generic movement signals.
	DefaultActiveEvery = 8 * time.Second

	// maxHoldStep caps the time credited between two samples so a stalled
	// stream does not count as holding.
	maxHoldStep = time.Second

	minActiveLandmarks = 10
)

// PoseCheck reports whether a snapshot is in the target pose.
type PoseCheck func(Landmarks) (bool, error)

// HoldDetector accumulates elapsed time spent in a pose and signals once per
// completed interval.
type HoldDetector struct {
	every        time.Duration
	inPose       PoseCheck
	resetOnBreak bool

	held     time.Duration
	lastAt   time.Time
	tracking bool
}

// NewHoldDetector builds a hold detector. When resetOnBreak is false, leaving
// the pose pauses the accumulator instead of clearing it.
func NewHoldDetector(every time.Duration, inPose PoseCheck, resetOnBreak bool) *HoldDetector {
	if every <= 0 {
		every = DefaultHoldEvery
	}
	return &HoldDetector{every: every, inPose: inPose, resetOnBreak: resetOnBreak}
}

// Held returns the accumulated time toward the next signal.
func (d *HoldDetector) Held() time.Duration { return d.held }

// Observe feeds one sample.
func (d *HoldDetector) Observe(s Sample) (bool, error) {
	in, err := d.inPose(s.Landmarks)
	if err != nil {
		return false, err
	}
	if !in {
		if d.resetOnBreak {
			d.held = 0
		}
		d.tracking = false
		return false, nil
	}

	if d.tracking && s.At.After(d.lastAt) {
		step := s.At.Sub(d.lastAt)
		if step > maxHoldStep {
			step = maxHoldStep
		}
		d.held += step
	}
	d.tracking = true
	d.lastAt = s.At

	if d.held >= d.every {
		d.held -= d.every
		return true, nil
	}
	return false, nil
}

// PlankPose checks that shoulders and hips sit on one horizontal line.
func PlankPose(ls Landmarks) (bool, error) {
	pts, err := ls.pick(LeftShoulder, RightShoulder, LeftHip, RightHip)
	if err != nil {
		return false, err
	}
	return math.Abs(mean(pts[0].Y, pts[1].Y)-mean(pts[2].Y, pts[3].Y)) < 0.1, nil
}

// WallSitPose checks that hips are level with knees.
func WallSitPose(ls Landmarks) (bool, error) {
	pts, err := ls.pick(LeftHip, RightHip, LeftKnee, RightKnee)
	if err != nil {
		return false, err
	}
	return math.Abs(mean(pts[0].Y, pts[1].Y)-mean(pts[2].Y, pts[3].Y)) < 0.1, nil
}

// ActivePose treats any snapshot with enough visible joints as activity.
func ActivePose(ls Landmarks) (bool, error) {
	if n := ls.countValid(); n < minActiveLandmarks {
		return false, fmt.Errorf("%w: %d usable landmarks, need %d", ErrMalformedLandmarks, n, minActiveLandmarks)
	}
	return true, nil
}
