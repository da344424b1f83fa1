// Package motiontest builds synthetic pose snapshots for detector tests.
package motiontest

import (
	"time"

	"github.com/ashureev/motion-coach/internal/motion"
)

// Signal levels for squat cycles, in kneeY - hipY units.
const (
	StandingSignal = 0.15
	DeepSignal     = -0.12
	ShallowSignal  = -0.05
)

// Standing returns a full 33-point upright pose.
func Standing() motion.Landmarks {
	ls := make(motion.Landmarks, 33)
	for i := range ls {
		ls[i] = motion.Landmark{X: 0.5, Y: 0.5, Visibility: 1}
	}
	ls[motion.Nose] = motion.Landmark{X: 0.5, Y: 0.15, Visibility: 1}
	ls[motion.LeftShoulder] = motion.Landmark{X: 0.45, Y: 0.3, Visibility: 1}
	ls[motion.RightShoulder] = motion.Landmark{X: 0.55, Y: 0.3, Visibility: 1}
	ls[motion.LeftWrist] = motion.Landmark{X: 0.44, Y: 0.52, Visibility: 1}
	ls[motion.RightWrist] = motion.Landmark{X: 0.56, Y: 0.52, Visibility: 1}
	ls[motion.LeftHip] = motion.Landmark{X: 0.47, Y: 0.55, Visibility: 1}
	ls[motion.RightHip] = motion.Landmark{X: 0.53, Y: 0.55, Visibility: 1}
	ls[motion.LeftKnee] = motion.Landmark{X: 0.47, Y: 0.70, Visibility: 1}
	ls[motion.RightKnee] = motion.Landmark{X: 0.53, Y: 0.70, Visibility: 1}
	ls[motion.LeftAnkle] = motion.Landmark{X: 0.48, Y: 0.9, Visibility: 1}
	ls[motion.RightAnkle] = motion.Landmark{X: 0.52, Y: 0.9, Visibility: 1}
	return ls
}

// Squat returns a pose whose kneeY - hipY equals signal.
func Squat(signal float64) motion.Landmarks {
	ls := Standing()
	hipY := 0.6
	ls[motion.LeftHip].Y = hipY
	ls[motion.RightHip].Y = hipY
	ls[motion.LeftKnee].Y = hipY + signal
	ls[motion.RightKnee].Y = hipY + signal
	return ls
}

// Repeat returns n copies of a snapshot.
func Repeat(ls motion.Landmarks, n int) []motion.Landmarks {
	out := make([]motion.Landmarks, n)
	for i := range out {
		out[i] = ls
	}
	return out
}

// SquatStart is the warm-up that fills the smoothing window while standing.
func SquatStart() []motion.Landmarks {
	return Repeat(Squat(StandingSignal), 6)
}

// SquatCycle descends to depth, holds, and stands back up. Fed after
// SquatStart or a previous cycle, the rep completes on the fourth standing
// sample.
func SquatCycle(depth float64) []motion.Landmarks {
	out := Repeat(Squat(depth), 6)
	return append(out, Repeat(Squat(StandingSignal), 6)...)
}

// JumpingJack returns the open (arms up, legs wide) or closed pose.
func JumpingJack(open bool) motion.Landmarks {
	ls := Standing()
	if open {
		ls[motion.LeftWrist].Y = 0.1
		ls[motion.RightWrist].Y = 0.1
		ls[motion.LeftAnkle].X = 0.3
		ls[motion.RightAnkle].X = 0.7
	}
	return ls
}

// Plank returns a horizontal body when straight is true, otherwise a piked one.
func Plank(straight bool) motion.Landmarks {
	ls := Standing()
	ls[motion.LeftShoulder].Y = 0.5
	ls[motion.RightShoulder].Y = 0.5
	if straight {
		ls[motion.LeftHip].Y = 0.52
		ls[motion.RightHip].Y = 0.52
	} else {
		ls[motion.LeftHip].Y = 0.25
		ls[motion.RightHip].Y = 0.25
	}
	return ls
}

// Samples timestamps snapshots starting at start, step apart.
func Samples(start time.Time, step time.Duration, poses []motion.Landmarks) []motion.Sample {
	out := make([]motion.Sample, len(poses))
	for i, p := range poses {
		out[i] = motion.Sample{Landmarks: p, At: start.Add(time.Duration(i) * step)}
	}
	return out
}
