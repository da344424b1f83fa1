package motion

import "math"

// ThresholdDetector fires once each time a single-frame condition becomes
// true, and re-arms when the condition clears.
type ThresholdDetector struct {
	indices []int
	met     func(pts []Landmark) bool
	armed   bool
}

func newThresholdDetector(met func([]Landmark) bool, indices ...int) *ThresholdDetector {
	return &ThresholdDetector{indices: indices, met: met, armed: true}
}

// NewPushupDetector fires when the wrists drop more than 0.05 below the
// shoulders.
func NewPushupDetector() *ThresholdDetector {
	return newThresholdDetector(func(p []Landmark) bool {
		shoulderY := mean(p[0].Y, p[1].Y)
		wristY := mean(p[2].Y, p[3].Y)
		return wristY-shoulderY > 0.05
	}, LeftShoulder, RightShoulder, LeftWrist, RightWrist)
}

// NewShotDetector fires when the wrists come back down more than 0.1 below
// the nose after a shot.
func NewShotDetector() *ThresholdDetector {
	return newThresholdDetector(func(p []Landmark) bool {
		wristY := mean(p[1].Y, p[2].Y)
		return wristY > p[0].Y+0.1
	}, Nose, LeftWrist, RightWrist)
}

// NewSwingDetector fires when the hands pass through shoulder height.
func NewSwingDetector() *ThresholdDetector {
	return newThresholdDetector(func(p []Landmark) bool {
		shoulderY := mean(p[0].Y, p[1].Y)
		wristY := mean(p[2].Y, p[3].Y)
		return math.Abs(wristY-shoulderY) < 0.15
	}, LeftShoulder, RightShoulder, LeftWrist, RightWrist)
}

// Observe feeds one sample.
func (d *ThresholdDetector) Observe(s Sample) (bool, error) {
	pts, err := s.Landmarks.pick(d.indices...)
	if err != nil {
		return false, err
	}
	if !d.met(pts) {
		d.armed = true
		return false, nil
	}
	if d.armed {
		d.armed = false
		return true, nil
	}
	return false, nil
}
