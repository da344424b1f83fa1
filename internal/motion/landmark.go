// Package motion turns pose landmark snapshots into movement completion
// signals. Each activity family owns a small state machine; detectors never
// share state across sessions.
package motion

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrMalformedLandmarks is returned when a detector cannot read the joints it
// needs from a snapshot.
var ErrMalformedLandmarks = errors.New("malformed landmarks")

// Pose landmark indices (33-point body model).
const (
	Nose          = 0
	LeftShoulder  = 11
	RightShoulder = 12
	LeftWrist     = 15
	RightWrist    = 16
	LeftHip       = 23
	RightHip      = 24
	LeftKnee      = 25
	RightKnee     = 26
	LeftAnkle     = 27
	RightAnkle    = 28
)

// Landmark is a single joint position in normalized image coordinates.
// Y grows downward.
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z,omitempty"`
	Visibility float64 `json:"visibility,omitempty"`
}

func (l Landmark) valid() bool {
	return isFinite(l.X) && isFinite(l.Y)
}

// Landmarks is an ordered snapshot keyed by body-part index.
type Landmarks []Landmark

// Sample is one observation fed to a detector.
type Sample struct {
	Landmarks Landmarks
	At        time.Time
}

// pick returns the requested joints or ErrMalformedLandmarks if any is absent
// or carries non-finite coordinates.
func (ls Landmarks) pick(indices ...int) ([]Landmark, error) {
	out := make([]Landmark, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= len(ls) {
			return nil, fmt.Errorf("%w: index %d missing (have %d)", ErrMalformedLandmarks, idx, len(ls))
		}
		if !ls[idx].valid() {
			return nil, fmt.Errorf("%w: index %d not finite", ErrMalformedLandmarks, idx)
		}
		out[i] = ls[idx]
	}
	return out, nil
}

// countValid returns how many landmarks carry finite coordinates.
func (ls Landmarks) countValid() int {
	n := 0
	for _, l := range ls {
		if l.valid() {
			n++
		}
	}
	return n
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func mean(a, b float64) float64 {
	return (a + b) / 2
}
