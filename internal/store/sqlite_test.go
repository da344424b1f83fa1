package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/motion-coach/internal/domain"
)

func newTestSQLite(t *testing.T) Repository {
	t.Helper()
	repo, err := NewSQLite(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestSQLiteUpsertAndGetUser(t *testing.T) {
	repo := newTestSQLite(t)
	ctx := context.Background()

	got, err := repo.GetUser(ctx, "missing")
	if err != nil || got != nil {
		t.Fatalf("GetUser(missing) = %v, %v; want nil, nil", got, err)
	}

	now := time.Unix(1_700_000_000, 0)
	if err := repo.UpsertUser(ctx, &domain.User{
		UserID: "u1", Username: "anon-u1",
		LastSeenAt: now, CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("UpsertUser() error = %v", err)
	}

	got, err = repo.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if got.Username != "anon-u1" || !got.LastSeenAt.Equal(now) || got.IsBanned {
		t.Fatalf("unexpected user: %+v", got)
	}
	if !got.LastAnalysisAt.IsZero() {
		t.Fatalf("LastAnalysisAt = %v, want zero", got.LastAnalysisAt)
	}

	later := now.Add(time.Hour)
	if err := repo.UpdateLastSeen(ctx, "u1", later); err != nil {
		t.Fatalf("UpdateLastSeen() error = %v", err)
	}
	got, _ = repo.GetUser(ctx, "u1")
	if !got.LastSeenAt.Equal(later) {
		t.Fatalf("LastSeenAt = %v, want %v", got.LastSeenAt, later)
	}
}

func TestSQLiteReserveAnalysisCountsAndRollsOver(t *testing.T) {
	repo := newTestSQLite(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 10, 14, 20, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if _, err := repo.ReserveAnalysis(ctx, "u1", domain.QuotaLimits{}, base.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("ReserveAnalysis() error = %v", err)
		}
	}

	u, err := repo.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if u.AnalysesToday != 3 || u.AnalysesHour != 3 {
		t.Fatalf("counts = %d/%d, want 3/3", u.AnalysesToday, u.AnalysesHour)
	}
	if !u.LastAnalysisAt.Equal(base.Add(2 * time.Minute)) {
		t.Fatalf("LastAnalysisAt = %v", u.LastAnalysisAt)
	}

	res, err := repo.ReserveAnalysis(ctx, "u1", domain.QuotaLimits{}, base.Add(time.Hour))
	if err != nil || !res.Allowed {
		t.Fatalf("ReserveAnalysis() = %+v, %v", res, err)
	}
	u = res.User
	if u.AnalysesToday != 4 || u.AnalysesHour != 1 {
		t.Fatalf("after hour rollover counts = %d/%d, want 4/1", u.AnalysesToday, u.AnalysesHour)
	}

	res, err = repo.ReserveAnalysis(ctx, "u1", domain.QuotaLimits{}, base.Add(24*time.Hour))
	if err != nil || !res.Allowed {
		t.Fatalf("ReserveAnalysis() = %+v, %v", res, err)
	}
	u = res.User
	if u.AnalysesToday != 1 || u.AnalysesHour != 1 {
		t.Fatalf("after day rollover counts = %d/%d, want 1/1", u.AnalysesToday, u.AnalysesHour)
	}
}

func TestSQLiteReserveAnalysisConcurrent(t *testing.T) {
	repo := newTestSQLite(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 10, 14, 20, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.ReserveAnalysis(ctx, "busy", domain.QuotaLimits{}, at); err != nil {
				t.Errorf("ReserveAnalysis() error = %v", err)
			}
		}()
	}
	wg.Wait()

	u, err := repo.GetUser(ctx, "busy")
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if u.AnalysesToday != 20 {
		t.Fatalf("AnalysesToday = %d, want 20", u.AnalysesToday)
	}
}

func TestSQLiteReserveAnalysisNeverOvershootsLimit(t *testing.T) {
	repo := newTestSQLite(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 10, 14, 20, 0, 0, time.UTC)
	limits := domain.QuotaLimits{Daily: 5, Hourly: 5}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
		reasons []string
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := repo.ReserveAnalysis(ctx, "racer", limits, at)
			if err != nil {
				t.Errorf("ReserveAnalysis() error = %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if res.Allowed {
				allowed++
			} else {
				reasons = append(reasons, res.Reason)
			}
		}()
	}
	wg.Wait()

	if allowed != 5 {
		t.Fatalf("allowed = %d, want 5", allowed)
	}
	for _, r := range reasons {
		if r != "Daily limit of 5 analyses reached" {
			t.Fatalf("unexpected denial reason %q", r)
		}
	}
	u, _ := repo.GetUser(ctx, "racer")
	if u.AnalysesToday != 5 {
		t.Fatalf("AnalysesToday = %d, want 5", u.AnalysesToday)
	}
}

func TestSQLiteSetBanned(t *testing.T) {
	repo := newTestSQLite(t)
	ctx := context.Background()

	if err := repo.SetBanned(ctx, "ghost", true); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("SetBanned(ghost) error = %v, want ErrUserNotFound", err)
	}

	if _, err := repo.ReserveAnalysis(ctx, "u1", domain.QuotaLimits{}, time.Now()); err != nil {
		t.Fatalf("ReserveAnalysis() error = %v", err)
	}
	if err := repo.SetBanned(ctx, "u1", true); err != nil {
		t.Fatalf("SetBanned() error = %v", err)
	}
	u, _ := repo.GetUser(ctx, "u1")
	if !u.IsBanned {
		t.Fatal("expected user to be banned")
	}
	if err := repo.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
}
