package coaching

import (
	"sync/atomic"
	"time"

	"github.com/ashureev/motion-coach/internal/motion"
)

// Strategy selects prompt framing and which gates apply.
type Strategy string

const (
	StrategyContinuousHold Strategy = "continuous_hold"
	StrategyPerSwing       Strategy = "per_swing"
	StrategyRepGroups      Strategy = "rep_groups"
	StrategyPerAttempt     Strategy = "per_attempt"
	StrategyGeneral        Strategy = "general"
)

// StrategyFor maps an activity family to its feedback strategy.
func StrategyFor(kind motion.Kind) Strategy {
	switch kind {
	case motion.KindPlank, motion.KindWallSit:
		return StrategyContinuousHold
	case motion.KindGolf, motion.KindTennis:
		return StrategyPerSwing
	case motion.KindBasketball:
		return StrategyPerAttempt
	case motion.KindSquat, motion.KindPushup, motion.KindJumpingJack:
		return StrategyRepGroups
	case motion.KindGeneric:
		return StrategyGeneral
	}
	return StrategyGeneral
}

const (
	// FrameBufferCapacity is the per-session frame ring size.
	FrameBufferCapacity = 100
	// MaxAnalysisFrames bounds how many frames one analysis request carries.
	MaxAnalysisFrames = 5

	minAnalysisTimeout = 10 * time.Second
	maxAnalysisTimeout = 30 * time.Second
)

// Policy holds the scheduling knobs. Intervals are keyed by motion.Kind
// name ("squat", "wall sit", ...).
type Policy struct {
	Intervals       map[string]time.Duration `mapstructure:"intervals"`
	DefaultInterval time.Duration            `mapstructure:"default_interval"`
	BatchReps       int                      `mapstructure:"batch_reps"`
	BatchWindow     time.Duration            `mapstructure:"batch_window"`
	BatchFrames     int                      `mapstructure:"batch_frames"`
	AnalysisTimeout time.Duration            `mapstructure:"analysis_timeout"`
}

// DefaultPolicy returns the built-in coaching cadence.
func DefaultPolicy() Policy {
	return Policy{
		Intervals: map[string]time.Duration{
			motion.KindBasketball.String():  3 * time.Second,
			motion.KindSquat.String():       2500 * time.Millisecond,
			motion.KindPushup.String():      2500 * time.Millisecond,
			motion.KindJumpingJack.String(): 2500 * time.Millisecond,
			motion.KindTennis.String():      4 * time.Second,
			motion.KindGolf.String():        5 * time.Second,
			motion.KindPlank.String():       8 * time.Second,
			motion.KindWallSit.String():     8 * time.Second,
		},
		DefaultInterval: 3 * time.Second,
		BatchReps:       5,
		BatchWindow:     7000 * time.Millisecond,
		BatchFrames:     MaxAnalysisFrames,
		AnalysisTimeout: 20 * time.Second,
	}
}

// IntervalFor returns the minimum spacing between feedback for a family.
func (p Policy) IntervalFor(kind motion.Kind) time.Duration {
	if d, ok := p.Intervals[kind.String()]; ok && d > 0 {
		return d
	}
	return p.DefaultInterval
}

// Normalized fills unset fields from DefaultPolicy and clamps values into
// their supported ranges.
func (p Policy) Normalized() Policy {
	def := DefaultPolicy()

	intervals := make(map[string]time.Duration, len(def.Intervals))
	for k, v := range def.Intervals {
		intervals[k] = v
	}
	for k, v := range p.Intervals {
		if v > 0 {
			intervals[motion.Normalize(k)] = v
		}
	}
	p.Intervals = intervals

	if p.DefaultInterval <= 0 {
		p.DefaultInterval = def.DefaultInterval
	}
	if p.BatchReps <= 0 {
		p.BatchReps = def.BatchReps
	}
	if p.BatchWindow <= 0 {
		p.BatchWindow = def.BatchWindow
	}
	if p.BatchFrames <= 0 || p.BatchFrames > MaxAnalysisFrames {
		p.BatchFrames = MaxAnalysisFrames
	}
	switch {
	case p.AnalysisTimeout <= 0:
		p.AnalysisTimeout = def.AnalysisTimeout
	case p.AnalysisTimeout < minAnalysisTimeout:
		p.AnalysisTimeout = minAnalysisTimeout
	case p.AnalysisTimeout > maxAnalysisTimeout:
		p.AnalysisTimeout = maxAnalysisTimeout
	}
	return p
}

// PolicySource hands out the current policy and accepts hot reloads.
type PolicySource struct {
	v atomic.Pointer[Policy]
}

// NewPolicySource creates a source holding p.
func NewPolicySource(p Policy) *PolicySource {
	src := &PolicySource{}
	src.Store(p)
	return src
}

// Load returns the current policy.
func (s *PolicySource) Load() Policy {
	if p := s.v.Load(); p != nil {
		return *p
	}
	return DefaultPolicy()
}

// Store replaces the current policy.
func (s *PolicySource) Store(p Policy) {
	s.v.Store(&p)
}
