package motion

// DepthState is a position in the depth-cycle state machine.
type DepthState int

const (
	Standing DepthState = iota
	Descending
	Bottom
	Ascending
)

func (s DepthState) String() string {
	switch s {
	case Standing:
		return "standing"
	case Descending:
		return "descending"
	case Bottom:
		return "bottom"
	case Ascending:
		return "ascending"
	}
	return "unknown"
}

// Depth-cycle thresholds on the smoothed (kneeY - hipY) signal.
const (
	descendBelow   = 0.02
	bottomBelow    = -0.08
	ascendMargin   = 0.03
	standAbove     = 0.05
	depthHistorySz = 5
)

// DepthDetector counts squat-style reps. The signal is kneeY - hipY
// smoothed over the last five samples; positive means hips above knees.
type DepthDetector struct {
	state    DepthState
	minDepth float64
	history  []float64
}

// NewDepthDetector returns a detector in the standing state.
func NewDepthDetector() *DepthDetector {
	return &DepthDetector{history: make([]float64, 0, depthHistorySz)}
}

// State returns the current cycle position.
func (d *DepthDetector) State() DepthState { return d.state }

// MinDepth returns the deepest smoothed signal of the current cycle.
func (d *DepthDetector) MinDepth() float64 { return d.minDepth }

// Observe feeds one sample and reports whether a full, deep enough cycle
// just finished.
func (d *DepthDetector) Observe(s Sample) (bool, error) {
	pts, err := s.Landmarks.pick(LeftHip, RightHip, LeftKnee, RightKnee, LeftAnkle, RightAnkle)
	if err != nil {
		return false, err
	}
	hipY := mean(pts[0].Y, pts[1].Y)
	kneeY := mean(pts[2].Y, pts[3].Y)

	avg := d.push(kneeY - hipY)

	switch d.state {
	case Standing:
		if avg < descendBelow {
			d.state = Descending
			d.minDepth = avg
		}
	case Descending:
		d.track(avg)
		if avg < bottomBelow {
			d.state = Bottom
		} else if avg > descendBelow {
			d.state = Ascending
		}
	case Bottom:
		d.track(avg)
		if avg > d.minDepth+ascendMargin {
			d.state = Ascending
		}
	case Ascending:
		d.track(avg)
		if avg > standAbove {
			deep := d.minDepth < bottomBelow
			d.reset()
			return deep, nil
		}
	}
	return false, nil
}

func (d *DepthDetector) push(v float64) float64 {
	if len(d.history) == depthHistorySz {
		copy(d.history, d.history[1:])
		d.history = d.history[:depthHistorySz-1]
	}
	d.history = append(d.history, v)

	var sum float64
	for _, h := range d.history {
		sum += h
	}
	return sum / float64(len(d.history))
}

func (d *DepthDetector) track(avg float64) {
	if avg < d.minDepth {
		d.minDepth = avg
	}
}

func (d *DepthDetector) reset() {
	d.state = Standing
	d.minDepth = 0
	d.history = d.history[:0]
}
