package coaching

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/motion-coach/internal/motion"
)

func monitoringSession(activity string, now time.Time) *Session {
	s := newSession("live_test", "u1", motion.Classify(activity), now, discardLogger)
	s.Phase = PhaseMonitoring
	return s
}

func TestScheduler_BatchGateRepTrigger(t *testing.T) {
	t.Parallel()

	sc := NewScheduler(nil)
	start := time.Unix(1_700_000_000, 0)
	s := monitoringSession("squat", start)
	for i := 0; i < 8; i++ {
		s.Frames.Push(testDomainFrame(i))
	}

	s.RepsSinceLastBatch = 4
	assert.False(t, sc.Decide(s, true, start.Add(2*time.Second)).Fire)

	s.RepsSinceLastBatch = 5
	now := start.Add(3 * time.Second)
	d := sc.Decide(s, true, now)
	require.True(t, d.Fire)
	assert.True(t, d.Batch)
	assert.Equal(t, ReasonRepTrigger, d.Reason)
	assert.Equal(t, FeedbackBatch, d.FeedbackType)

	frames := sc.Commit(s, d, now)
	assert.Len(t, frames, MaxAnalysisFrames)
	assert.Equal(t, "jpeg-7", string(frames[len(frames)-1].Data))
	assert.Zero(t, s.RepsSinceLastBatch)
	assert.Zero(t, s.Frames.Len())
	assert.Equal(t, now, s.LastBatchAt)
}

func TestScheduler_BatchGateTimeTrigger(t *testing.T) {
	t.Parallel()

	sc := NewScheduler(nil)
	start := time.Unix(1_700_000_000, 0)
	s := monitoringSession("push-up", start)
	s.Frames.Push(testDomainFrame(1))
	s.RepsSinceLastBatch = 1

	assert.False(t, sc.Decide(s, true, start.Add(7*time.Second)).Fire, "window is exclusive")

	d := sc.Decide(s, true, start.Add(7*time.Second+time.Millisecond))
	require.True(t, d.Fire)
	assert.Equal(t, ReasonTimeTrigger, d.Reason)
}

func TestScheduler_BatchGateNeedsFramesAndCompletion(t *testing.T) {
	t.Parallel()

	sc := NewScheduler(nil)
	start := time.Unix(1_700_000_000, 0)
	s := monitoringSession("jumping jacks", start)
	s.RepsSinceLastBatch = 9

	assert.False(t, sc.Decide(s, true, start.Add(time.Minute)).Fire, "empty buffer must not fire")

	s.Frames.Push(testDomainFrame(1))
	assert.False(t, sc.Decide(s, false, start.Add(time.Minute)).Fire, "batch only evaluated on a rep")
	assert.True(t, sc.Decide(s, true, start.Add(time.Minute)).Fire)
}

func TestScheduler_IntervalGateForSwings(t *testing.T) {
	t.Parallel()

	sc := NewScheduler(nil)
	start := time.Unix(1_700_000_000, 0)
	s := monitoringSession("Golf drive", start)
	s.Frames.Push(testDomainFrame(1))

	d := sc.Decide(s, true, start)
	require.True(t, d.Fire, "first swing is always eligible")
	frames := sc.Commit(s, d, start)
	assert.Len(t, frames, 1)
	assert.Equal(t, 1, s.Frames.Len(), "single-frame feedback keeps the buffer")

	assert.False(t, sc.Decide(s, true, start.Add(4*time.Second)).Fire, "golf interval is 5s")
	assert.False(t, sc.Decide(s, false, start.Add(6*time.Second)).Fire, "no swing, no feedback")
	assert.True(t, sc.Decide(s, true, start.Add(5*time.Second)).Fire)
}

func TestScheduler_HoldCadenceIgnoresCompletion(t *testing.T) {
	t.Parallel()

	sc := NewScheduler(nil)
	start := time.Unix(1_700_000_000, 0)
	s := monitoringSession("plank", start)
	s.LastCoachingAt = start

	assert.False(t, sc.Decide(s, true, start.Add(7*time.Second)).Fire)
	d := sc.Decide(s, false, start.Add(8*time.Second))
	require.True(t, d.Fire)
	assert.Equal(t, FeedbackHold, d.FeedbackType)
}

func TestScheduler_SetupAlwaysFires(t *testing.T) {
	t.Parallel()

	sc := NewScheduler(nil)
	s := newSession("live_test", "u1", motion.Classify("tennis"), time.Now(), discardLogger)

	d := sc.Decide(s, false, time.Now())
	assert.True(t, d.Fire)
	assert.Equal(t, FeedbackSetup, d.FeedbackType)
}

func TestStrategyFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		activity string
		want     Strategy
	}{
		{"Plank", StrategyContinuousHold},
		{"wall_sit", StrategyContinuousHold},
		{"tennis serve", StrategyPerSwing},
		{"basketball free throw", StrategyPerAttempt},
		{"goblet squat", StrategyRepGroups},
		{"Push Ups", StrategyRepGroups},
		{"jumping-jacks", StrategyRepGroups},
		{"yoga flow", StrategyGeneral},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StrategyFor(motion.Classify(tt.activity).Kind), tt.activity)
	}
}

func TestPolicy_Normalized(t *testing.T) {
	t.Parallel()

	p := Policy{
		Intervals:       map[string]time.Duration{"Squat": 4 * time.Second},
		BatchFrames:     12,
		AnalysisTimeout: time.Second,
	}.Normalized()

	assert.Equal(t, 4*time.Second, p.IntervalFor(motion.KindSquat))
	assert.Equal(t, 5*time.Second, p.IntervalFor(motion.KindGolf))
	assert.Equal(t, 3*time.Second, p.IntervalFor(motion.KindGeneric))
	assert.Equal(t, MaxAnalysisFrames, p.BatchFrames)
	assert.Equal(t, 10*time.Second, p.AnalysisTimeout)
	assert.Equal(t, 5, p.BatchReps)
	assert.Equal(t, 7*time.Second, p.BatchWindow)

	src := NewPolicySource(DefaultPolicy())
	src.Store(p)
	assert.Equal(t, 4*time.Second, src.Load().IntervalFor(motion.KindSquat))
}
