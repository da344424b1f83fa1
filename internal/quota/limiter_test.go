package quota

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/motion-coach/internal/domain"
	"github.com/ashureev/motion-coach/internal/store"
)

type fakeRepo struct {
	mu     sync.Mutex
	users  map[string]*domain.User
	getErr error
}

var _ store.Repository = (*fakeRepo)(nil)

func newFakeRepo() *fakeRepo { return &fakeRepo{users: map[string]*domain.User{}} }

func (r *fakeRepo) GetUser(_ context.Context, userID string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	u, ok := r.users[userID]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *fakeRepo) UpsertUser(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *user
	r.users[user.UserID] = &cp
	return nil
}

func (r *fakeRepo) UpdateLastSeen(context.Context, string, time.Time) error { return nil }

func (r *fakeRepo) ReserveAnalysis(_ context.Context, userID string, limits domain.QuotaLimits, at time.Time) (store.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return store.Reservation{}, r.getErr
	}
	u, ok := r.users[userID]
	if !ok {
		u = &domain.User{UserID: userID}
	}
	if allowed, reason := u.CanAnalyze(limits, at); !allowed {
		cp := *u
		return store.Reservation{User: &cp, Reason: reason}, nil
	}
	r.users[userID] = u
	u.RecordAnalysis(at)
	cp := *u
	return store.Reservation{User: &cp, Allowed: true}, nil
}

func (r *fakeRepo) SetBanned(_ context.Context, userID string, banned bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[userID].IsBanned = banned
	return nil
}

func (r *fakeRepo) Ping(context.Context) error { return nil }
func (r *fakeRepo) Close() error               { return nil }

func newTestLimiter(repo *fakeRepo, limits domain.QuotaLimits, now *time.Time) *Limiter {
	l := NewLimiter(repo, limits, nil)
	l.now = func() time.Time { return *now }
	return l
}

func TestLimiter_DenialReasonsInOrder(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)
	repo := newFakeRepo()
	l := newTestLimiter(repo, domain.QuotaLimits{Daily: 3, Hourly: 2, MinSpacing: 10 * time.Second}, &now)
	ctx := context.Background()

	ok, reason := l.CanProceed(ctx, "u1")
	assert.True(t, ok, "unknown user has no usage")
	assert.Empty(t, reason)

	now = now.Add(4 * time.Second)
	ok, reason = l.CanProceed(ctx, "u1")
	assert.False(t, ok)
	assert.Equal(t, "Please wait 6 seconds before next analysis", reason)

	now = now.Add(10 * time.Second)
	ok, _ = l.CanProceed(ctx, "u1")
	require.True(t, ok)
	now = now.Add(time.Minute)
	ok, reason = l.CanProceed(ctx, "u1")
	assert.False(t, ok)
	assert.Equal(t, "Hourly limit of 2 analyses reached", reason)

	now = now.Add(time.Hour)
	ok, _ = l.CanProceed(ctx, "u1")
	assert.True(t, ok, "hourly window rolled over")

	now = now.Add(time.Minute)
	ok, reason = l.CanProceed(ctx, "u1")
	assert.False(t, ok)
	assert.Equal(t, "Daily limit of 3 analyses reached", reason)

	require.NoError(t, repo.SetBanned(ctx, "u1", true))
	ok, reason = l.CanProceed(ctx, "u1")
	assert.False(t, ok)
	assert.Equal(t, "Account is banned", reason)
}

func TestLimiter_DeniedCallsAreNotCounted(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)
	repo := newFakeRepo()
	l := newTestLimiter(repo, domain.QuotaLimits{Daily: 2}, &now)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		l.CanProceed(ctx, "u1")
	}

	u, err := l.Usage(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, u.AnalysesToday)
	assert.False(t, u.CanAnalyze)
}

func TestLimiter_StoreErrorDenies(t *testing.T) {
	t.Parallel()

	now := time.Now()
	repo := newFakeRepo()
	repo.getErr = errors.New("connection refused")
	l := newTestLimiter(repo, domain.QuotaLimits{Daily: 10, Hourly: 10}, &now)

	ok, reason := l.CanProceed(context.Background(), "u1")
	assert.False(t, ok)
	assert.Equal(t, ReasonUnavailable, reason)

	_, err := l.Usage(context.Background(), "u1")
	assert.Error(t, err)
}

func TestLimiter_Usage(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)
	repo := newFakeRepo()
	l := newTestLimiter(repo, domain.QuotaLimits{Daily: 50, Hourly: 20, MinSpacing: 2 * time.Second}, &now)
	ctx := context.Background()

	u, err := l.Usage(ctx, "fresh")
	require.NoError(t, err)
	assert.Zero(t, u.AnalysesToday)
	assert.True(t, u.CanAnalyze)

	ok, _ := l.CanProceed(ctx, "fresh")
	require.True(t, ok)
	u, err = l.Usage(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, 1, u.AnalysesToday)
	assert.Equal(t, 1, u.AnalysesHour)
	assert.Equal(t, 50, u.DailyLimit)
	assert.Equal(t, 2.0, u.MinSpacingSecs)
	assert.False(t, u.CanAnalyze)
	assert.Contains(t, u.Reason, "Please wait")
}
