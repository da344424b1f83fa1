package coaching

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/motion-coach/internal/domain"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeAnalyzer struct {
	mu      sync.Mutex
	text    string
	err     error
	frames  []int
	prompts []string
}

func (f *fakeAnalyzer) Analyze(_ context.Context, frames []domain.Frame, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, len(frames))
	f.prompts = append(f.prompts, prompt)
	return f.text, f.err
}

func (f *fakeAnalyzer) calls() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.frames...)
}

// blockingAnalyzer parks every call until release is closed or the context
// ends.
type blockingAnalyzer struct {
	entered chan struct{}
	release chan struct{}
}

func newBlockingAnalyzer() *blockingAnalyzer {
	return &blockingAnalyzer{entered: make(chan struct{}, 16), release: make(chan struct{})}
}

func (b *blockingAnalyzer) Analyze(ctx context.Context, _ []domain.Frame, _ string) (string, error) {
	b.entered <- struct{}{}
	select {
	case <-b.release:
		return "Keep going.", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

type denyAdmitter struct{ reason string }

func (d denyAdmitter) CanProceed(context.Context, string) (bool, string) { return false, d.reason }

type countingAdmitter struct {
	mu    sync.Mutex
	calls int
}

func (c *countingAdmitter) CanProceed(context.Context, string) (bool, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return true, ""
}

func (c *countingAdmitter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// parkingAdmitter holds the first CanProceed call until release is closed
// and admits every later call immediately.
type parkingAdmitter struct {
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newParkingAdmitter() *parkingAdmitter {
	return &parkingAdmitter{entered: make(chan struct{}), release: make(chan struct{})}
}

func (p *parkingAdmitter) CanProceed(ctx context.Context, _ string) (bool, string) {
	first := false
	p.once.Do(func() { first = true })
	if !first {
		return true, ""
	}
	close(p.entered)
	select {
	case <-p.release:
	case <-ctx.Done():
	}
	return true, ""
}

func testFrame(i int) string {
	return base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("jpeg-%d", i)))
}

func testDomainFrame(i int) domain.Frame {
	return domain.Frame{Data: []byte(fmt.Sprintf("jpeg-%d", i)), MIMEType: "image/jpeg"}
}

func newTestEngine(an Analyzer, clock *fakeClock, opts ...EngineOption) *Engine {
	var orch *Orchestrator
	if an != nil {
		orch = NewOrchestrator(an, OrchestratorConfig{Timeout: time.Second}, discardLogger)
	}
	opts = append([]EngineOption{WithClock(clock.Now)}, opts...)
	return NewEngine(nil, nil, orch, discardLogger, opts...)
}
