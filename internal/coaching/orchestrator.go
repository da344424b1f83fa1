package coaching

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/ashureev/motion-coach/internal/domain"
	"github.com/ashureev/motion-coach/internal/motion"
)

var (
	errAnalyzerDisabled = errors.New("analyzer disabled")
	errAtCapacity       = errors.New("analysis capacity exhausted")
)

// Outcome classifies how an analysis call ended.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeTimedOut
	OutcomeFailed
	OutcomeEmpty
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeTimedOut:
		return "timed_out"
	case OutcomeFailed:
		return "failed"
	case OutcomeEmpty:
		return "empty"
	}
	return "unknown"
}

// Request is what the orchestrator needs to produce one piece of feedback.
type Request struct {
	UserID       string
	Activity     motion.Activity
	Strategy     Strategy
	Setup        bool
	Prompt       string
	Frames       []domain.Frame
	RepCount     int
	LastFeedback string
}

// Reply is the orchestrator's answer. Text is never empty.
type Reply struct {
	Text    string
	Outcome Outcome
	Err     error
	Latency time.Duration
}

// Fallback reports whether Text is heuristic rather than analyzer output.
func (r Reply) Fallback() bool { return r.Outcome != OutcomeOK }

// OrchestratorConfig bounds analysis calls.
type OrchestratorConfig struct {
	Timeout       time.Duration
	MaxConcurrent int64
}

// Orchestrator calls the analyzer with a hard timeout and substitutes
// heuristic text on any failure.
type Orchestrator struct {
	analyzer Analyzer
	timeout  func() time.Duration
	sem      *semaphore.Weighted
	logger   *slog.Logger
}

// NewOrchestrator creates an orchestrator. A nil analyzer always falls back.
func NewOrchestrator(analyzer Analyzer, cfg OrchestratorConfig, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 16
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultPolicy().AnalysisTimeout
	}
	return &Orchestrator{
		analyzer: analyzer,
		timeout:  func() time.Duration { return timeout },
		sem:      semaphore.NewWeighted(cfg.MaxConcurrent),
		logger:   logger,
	}
}

// UsePolicyTimeout makes the orchestrator follow policy reloads.
func (o *Orchestrator) UsePolicyTimeout(policy *PolicySource) {
	o.timeout = func() time.Duration { return policy.Load().AnalysisTimeout }
}

type analysisResult struct {
	text string
	err  error
}

// Produce runs one analysis. It returns as soon as the analyzer answers or
// the timeout expires; a timed out call is cancelled and left to finish on
// its own. There is no retry.
func (o *Orchestrator) Produce(ctx context.Context, req Request) Reply {
	start := time.Now()

	frames := req.Frames
	if len(frames) > MaxAnalysisFrames {
		frames = frames[len(frames)-MaxAnalysisFrames:]
	}

	if o.analyzer == nil {
		return o.fallback(req, OutcomeFailed, errAnalyzerDisabled, start)
	}
	if !o.sem.TryAcquire(1) {
		return o.fallback(req, OutcomeFailed, errAtCapacity, start)
	}

	callCtx, cancel := context.WithTimeout(ctx, o.timeout())
	defer cancel()

	done := make(chan analysisResult, 1)
	go func() {
		defer o.sem.Release(1)
		text, err := o.analyzer.Analyze(callCtx, frames, req.Prompt)
		done <- analysisResult{text: text, err: err}
	}()

	select {
	case res := <-done:
		switch {
		case res.err != nil && errors.Is(res.err, context.DeadlineExceeded):
			return o.fallback(req, OutcomeTimedOut, res.err, start)
		case res.err != nil:
			return o.fallback(req, OutcomeFailed, res.err, start)
		}
		text := strings.TrimSpace(res.text)
		if text == "" {
			return o.fallback(req, OutcomeEmpty, nil, start)
		}
		return Reply{Text: text, Outcome: OutcomeOK, Latency: time.Since(start)}

	case <-callCtx.Done():
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return o.fallback(req, OutcomeTimedOut, callCtx.Err(), start)
		}
		return o.fallback(req, OutcomeFailed, callCtx.Err(), start)
	}
}

func (o *Orchestrator) fallback(req Request, outcome Outcome, err error, start time.Time) Reply {
	var text string
	if req.Setup {
		text = SetupFallback()
	} else {
		text = Fallback(req.Activity.Kind, req.Strategy, req.RepCount, req.LastFeedback)
	}

	o.logger.Warn("Analysis unavailable, using heuristic feedback",
		"user_id", req.UserID,
		"activity", req.Activity.Name,
		"outcome", outcome.String(),
		"rep_count", req.RepCount,
		"error", err)

	return Reply{Text: text, Outcome: outcome, Err: err, Latency: time.Since(start)}
}
