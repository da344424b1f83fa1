package coaching

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/motion-coach/internal/domain"
	"github.com/ashureev/motion-coach/internal/motion"
)

// Engine runs inbound events through detection, scheduling and feedback.
type Engine struct {
	sessions  *SessionStore
	scheduler *Scheduler
	orch      *Orchestrator
	admit     Admitter
	policy    *PolicySource
	logger    *slog.Logger
	clock     func() time.Time
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithClock overrides the wall clock used by the gates.
func WithClock(clock func() time.Time) EngineOption {
	return func(e *Engine) { e.clock = clock }
}

// WithAdmitter installs the rate-limit collaborator.
func WithAdmitter(a Admitter) EngineOption {
	return func(e *Engine) {
		if a != nil {
			e.admit = a
		}
	}
}

// NewEngine wires the coaching core.
func NewEngine(sessions *SessionStore, policy *PolicySource, orch *Orchestrator, logger *slog.Logger, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if policy == nil {
		policy = NewPolicySource(DefaultPolicy())
	}
	if sessions == nil {
		sessions = NewSessionStore(logger)
	}
	if orch == nil {
		orch = NewOrchestrator(nil, OrchestratorConfig{}, logger)
	}
	e := &Engine{
		sessions:  sessions,
		scheduler: NewScheduler(policy),
		orch:      orch,
		admit:     allowAll{},
		policy:    policy,
		logger:    logger,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Sessions exposes the session store.
func (e *Engine) Sessions() *SessionStore { return e.sessions }

// Start resets or creates the user's session.
func (e *Engine) Start(userID, activityType string) (SessionInfo, error) {
	if strings.TrimSpace(userID) == "" {
		return SessionInfo{}, fmt.Errorf("%w: missing user id", ErrInvalidEvent)
	}
	activity := motion.Classify(activityType)
	sess := e.sessions.Start(userID, activity, e.clock())

	return SessionInfo{
		SessionID:       sess.ID,
		ActivityType:    activity.Name,
		Category:        activity.Kind.String(),
		Strategy:        sess.Strategy,
		IntervalSeconds: e.policy.Load().IntervalFor(activity.Kind).Seconds(),
	}, nil
}

// Stop destroys the user's session. found is false when none existed.
func (e *Engine) Stop(userID string) (summary Summary, found bool) {
	sess, ok := e.sessions.Stop(userID)
	if !ok {
		return Summary{}, false
	}
	summary = summarize(sess.Snapshot(), e.clock())
	e.logger.Info("Coaching session stopped",
		"user_id", userID,
		"session_id", summary.SessionID,
		"rep_count", summary.RepCount,
		"feedback_count", summary.FeedbackCount,
		"fallback_count", summary.FallbackCount)
	return summary, true
}

// State returns a snapshot of the user's session.
func (e *Engine) State(userID string) (Snapshot, bool) {
	sess := e.sessions.Get(userID)
	if sess == nil {
		return Snapshot{}, false
	}
	return sess.Snapshot(), true
}

// Pending is an event whose detection and gating are already committed.
// When it carries a feedback request, Finish produces the feedback.
type Pending struct {
	Result Result

	sess *Session
	req  *Request
}

// NeedsFeedback reports whether Finish will call the orchestrator.
func (p Pending) NeedsFeedback() bool { return p.req != nil }

// Process handles one inbound event: Commit followed by Finish.
func (e *Engine) Process(ctx context.Context, ev Event) (Result, error) {
	p, err := e.Commit(ctx, ev)
	if err != nil {
		return Result{}, err
	}
	return e.Finish(ctx, p), nil
}

// Commit runs detection and the gates for one event and commits the
// resulting session state. Callers that need per-user ordering must call
// Commit in arrival order; the analysis call happens later in Finish, so a
// slow analyzer never holds back the next Commit.
//
// The session lock is released around the rate-limit check, which may hit
// the database. The decision is re-evaluated once the lock is retaken.
func (e *Engine) Commit(ctx context.Context, ev Event) (Pending, error) {
	if strings.TrimSpace(ev.UserID) == "" {
		return Pending{}, fmt.Errorf("%w: missing user id", ErrInvalidEvent)
	}

	now := e.clock()
	sampleAt := now
	if ev.TimestampMs > 0 {
		sampleAt = time.UnixMilli(ev.TimestampMs)
	}

	sess := e.sessions.Acquire(ev.UserID, ev.ActivityType, now)
	frame, hasFrame := e.decodeFrame(ev, sampleAt)

	sess.mu.Lock()
	sess.LastEventAt = now
	if hasFrame {
		sess.Frames.Push(frame)
	}

	res := Result{Phase: sess.Phase, FeedbackType: FeedbackMonitoring}

	if sess.Phase == PhaseMonitoring {
		if sess.Tracker.Observe(motion.Sample{Landmarks: ev.Landmarks, At: sampleAt}) {
			sess.RepCount++
			sess.RepsSinceLastBatch++
			res.MovementCompleted = true
		}
	}

	decision := e.scheduler.Decide(sess, res.MovementCompleted, now)
	if !decision.Fire {
		e.finishCommitLocked(sess, &res)
		sess.mu.Unlock()
		return Pending{Result: res, sess: sess}, nil
	}
	sess.mu.Unlock()

	allowed, reason := e.admit.CanProceed(ctx, sess.UserID)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	// Another event may have committed feedback while the lock was free.
	decision = e.scheduler.Decide(sess, res.MovementCompleted, now)
	var req *Request
	if decision.Fire {
		if allowed {
			req = e.admitLocked(sess, decision, now, &res)
		} else {
			e.denyLocked(sess, reason, &res)
		}
	}
	e.finishCommitLocked(sess, &res)
	return Pending{Result: res, sess: sess, req: req}, nil
}

// Finish produces the feedback for a committed event, if it needs any, and
// records the outcome on the session.
func (e *Engine) Finish(ctx context.Context, p Pending) Result {
	res := p.Result
	if p.req == nil {
		return res
	}
	req := p.req
	sess := p.sess

	reply := e.orch.Produce(ctx, *req)

	sess.mu.Lock()
	sess.LastFeedbackText = reply.Text
	sess.FeedbackCount++
	if reply.Fallback() {
		sess.FallbackCount++
	}
	sess.mu.Unlock()

	text := reply.Text
	res.ShouldProvideFeedback = true
	res.Feedback = &text
	if reply.Fallback() {
		res.FeedbackType = FeedbackFallback
	}

	e.logger.Debug("Coaching feedback produced",
		"user_id", req.UserID,
		"activity", req.Activity.Name,
		"feedback_type", res.FeedbackType,
		"outcome", reply.Outcome.String(),
		"rep_count", res.RepCount,
		"latency_ms", reply.Latency.Milliseconds())

	return res
}

// finishCommitLocked moves a fresh session out of setup and stamps the rep
// count. Called with sess.mu held.
func (e *Engine) finishCommitLocked(sess *Session, res *Result) {
	if sess.Phase == PhaseSetup {
		sess.transition(PhaseMonitoring)
	}
	res.RepCount = sess.RepCount
}

func (e *Engine) denyLocked(sess *Session, reason string, res *Result) {
	sess.RateLimitedCount++
	res.RateLimited = true
	res.Reason = reason
	res.FeedbackType = FeedbackRateLimited
	e.logger.Info("Feedback suppressed by rate limit", "user_id", sess.UserID, "reason", reason)
}

// admitLocked commits the gate and builds the analysis request. Called with
// sess.mu held.
func (e *Engine) admitLocked(sess *Session, d Decision, now time.Time, res *Result) *Request {
	frames := e.scheduler.Commit(sess, d, now)
	res.FeedbackType = d.FeedbackType

	if sess.Phase == PhaseMonitoring {
		sess.transition(PhaseFeedback)
		res.Phase = PhaseFeedback
		// The response is produced outside the lock; later events resume
		// monitoring immediately.
		sess.transition(PhaseMonitoring)
	}

	return &Request{
		UserID:       sess.UserID,
		Activity:     sess.Activity,
		Strategy:     sess.Strategy,
		Setup:        d.FeedbackType == FeedbackSetup,
		Prompt:       BuildPrompt(sess.Activity, sess.Strategy, d, sess.RepCount, len(frames)),
		Frames:       frames,
		RepCount:     sess.RepCount,
		LastFeedback: sess.LastFeedbackText,
	}
}

func (e *Engine) decodeFrame(ev Event, at time.Time) (domain.Frame, bool) {
	if ev.Frame == "" {
		return domain.Frame{}, false
	}
	frame, err := domain.DecodeFrame(ev.Frame, at)
	if err != nil {
		e.logger.Warn("Dropping undecodable frame", "user_id", ev.UserID, "error", err)
		return domain.Frame{}, false
	}
	return frame, true
}
