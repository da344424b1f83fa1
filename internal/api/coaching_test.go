package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/motion-coach/internal/coaching"
	"github.com/ashureev/motion-coach/internal/identity"
	"github.com/ashureev/motion-coach/internal/motion/motiontest"
	"github.com/ashureev/motion-coach/internal/quota"
)

type fakeQuota struct {
	usage quota.Usage
	err   error
}

func (f fakeQuota) Usage(context.Context, string) (quota.Usage, error) { return f.usage, f.err }

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type fakeReady bool

func (f fakeReady) Ready() bool { return bool(f) }

func withTestUser(userID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(identity.WithUser(r.Context(), userID)))
		})
	}
}

func newTestRouter(t *testing.T, q QuotaReporter, starts *RateLimiter) (http.Handler, *coaching.Engine) {
	t.Helper()
	engine := coaching.NewEngine(nil, nil, nil, nil)
	r := chi.NewRouter()
	r.Use(withTestUser("anon_test"))
	NewCoachingHandler(engine, q, starts, nil).RegisterRoutes(r)
	return r, engine
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, path, &buf))
	return rr
}

func TestCoachingStartStateStop(t *testing.T) {
	h, _ := newTestRouter(t, nil, nil)

	rr := doJSON(t, h, http.MethodPost, "/api/coaching/start", map[string]string{"activity_type": "Golf"})
	if rr.Code != http.StatusOK {
		t.Fatalf("start status = %d: %s", rr.Code, rr.Body.String())
	}
	var info coaching.SessionInfo
	if err := json.NewDecoder(rr.Body).Decode(&info); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(info.SessionID, "live_") || info.Strategy != coaching.StrategyPerSwing || info.IntervalSeconds != 5 {
		t.Fatalf("unexpected session info: %+v", info)
	}

	rr = doJSON(t, h, http.MethodGet, "/api/coaching/state", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("state status = %d", rr.Code)
	}

	rr = doJSON(t, h, http.MethodPost, "/api/coaching/stop", nil)
	var stopped struct {
		Found   bool             `json:"found"`
		Summary coaching.Summary `json:"summary"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&stopped); err != nil {
		t.Fatal(err)
	}
	if !stopped.Found || stopped.Summary.SessionID != info.SessionID {
		t.Fatalf("unexpected stop response: %+v", stopped)
	}

	rr = doJSON(t, h, http.MethodGet, "/api/coaching/state", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("state after stop = %d, want 404", rr.Code)
	}

	rr = doJSON(t, h, http.MethodPost, "/api/coaching/stop", nil)
	if err := json.NewDecoder(rr.Body).Decode(&stopped); err != nil {
		t.Fatal(err)
	}
	if rr.Code != http.StatusOK || stopped.Found {
		t.Fatalf("stopping twice should be ok with found=false, got %d %+v", rr.Code, stopped)
	}
}

func TestCoachingFrameUsesIdentityUser(t *testing.T) {
	h, engine := newTestRouter(t, nil, nil)

	ev := coaching.Event{
		UserID:       "someone-else",
		ActivityType: "squat",
		TimestampMs:  time.Now().UnixMilli(),
		Landmarks:    motiontest.Standing(),
	}
	rr := doJSON(t, h, http.MethodPost, "/api/coaching/frame", ev)
	if rr.Code != http.StatusOK {
		t.Fatalf("frame status = %d: %s", rr.Code, rr.Body.String())
	}

	var res coaching.Result
	if err := json.NewDecoder(rr.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if !res.ShouldProvideFeedback || res.Feedback == nil {
		t.Fatalf("first event should produce setup feedback: %+v", res)
	}

	if _, ok := engine.State("anon_test"); !ok {
		t.Fatal("session should be keyed by the identity user")
	}
	if _, ok := engine.State("someone-else"); ok {
		t.Fatal("body user_id must not be trusted")
	}
}

func TestCoachingFrameRejectsBadBody(t *testing.T) {
	h, _ := newTestRouter(t, nil, nil)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/coaching/frame", strings.NewReader("{not json")))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestCoachingStartRateLimited(t *testing.T) {
	starts := NewRateLimiter(1, time.Minute)
	defer starts.Stop()
	h, _ := newTestRouter(t, nil, starts)

	if rr := doJSON(t, h, http.MethodPost, "/api/coaching/start", map[string]string{"activity_type": "squat"}); rr.Code != http.StatusOK {
		t.Fatalf("first start = %d", rr.Code)
	}
	if rr := doJSON(t, h, http.MethodPost, "/api/coaching/start", map[string]string{"activity_type": "squat"}); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second start = %d, want 429", rr.Code)
	}
}

func TestCoachingQuota(t *testing.T) {
	h, _ := newTestRouter(t, fakeQuota{usage: quota.Usage{AnalysesToday: 4, DailyLimit: 10, CanAnalyze: true}}, nil)
	rr := doJSON(t, h, http.MethodGet, "/api/me/quota", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("quota status = %d", rr.Code)
	}
	var got quota.Usage
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.AnalysesToday != 4 || got.DailyLimit != 10 {
		t.Fatalf("unexpected usage: %+v", got)
	}

	h, _ = newTestRouter(t, fakeQuota{err: errors.New("db down")}, nil)
	if rr := doJSON(t, h, http.MethodGet, "/api/me/quota", nil); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("quota error status = %d, want 503", rr.Code)
	}

	h, _ = newTestRouter(t, nil, nil)
	if rr := doJSON(t, h, http.MethodGet, "/api/me/quota", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("disabled quota status = %d, want 404", rr.Code)
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		db         error
		analyzer   ReadyChecker
		wantStatus int
		wantAI     string
	}{
		{"healthy", nil, fakeReady(true), http.StatusOK, "ok"},
		{"degraded analyzer", nil, fakeReady(false), http.StatusOK, "degraded"},
		{"no analyzer", nil, nil, http.StatusOK, "disabled"},
		{"db down", errors.New("closed"), fakeReady(true), http.StatusServiceUnavailable, "ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := chi.NewRouter()
			NewHealthHandler(fakePinger{tt.db}, tt.analyzer, "gemini", func() int { return 3 }).RegisterRoutes(r)

			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			var body struct {
				Analyzer       map[string]string `json:"analyzer"`
				ActiveSessions int               `json:"active_sessions"`
			}
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body.Analyzer["status"] != tt.wantAI || body.ActiveSessions != 3 {
				t.Fatalf("unexpected body: %+v", body)
			}
		})
	}
}
