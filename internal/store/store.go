// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ashureev/motion-coach/internal/domain"
)

// ErrUserNotFound is returned by writes that target an unknown user.
var ErrUserNotFound = errors.New("user not found")

// Repository defines the interface for persisting users and their analysis
// quota counters.
type Repository interface {
	// GetUser retrieves a user by their user ID. It returns nil, nil when the
	// user does not exist.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// UpsertUser creates or updates a user record. Quota counters are only
	// written on insert.
	UpsertUser(ctx context.Context, user *domain.User) error

	// UpdateLastSeen updates the last_seen_at timestamp for a user.
	UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error

	// ReserveAnalysis checks the user's quota against limits and, when the
	// analysis is allowed, counts it in the same transaction, so concurrent
	// reservations cannot overshoot a limit. Unknown users are created. A
	// denied reservation writes nothing.
	ReserveAnalysis(ctx context.Context, userID string, limits domain.QuotaLimits, at time.Time) (Reservation, error)

	// SetBanned flags or clears a user's ban.
	SetBanned(ctx context.Context, userID string, banned bool) error

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

// Reservation is the outcome of ReserveAnalysis. User reflects the stored
// counters after the call.
type Reservation struct {
	User    *domain.User
	Allowed bool
	Reason  string
}

// reserve applies the quota rules to user in memory. Stores call it inside
// their transaction.
func reserve(user *domain.User, limits domain.QuotaLimits, at time.Time) Reservation {
	if ok, reason := user.CanAnalyze(limits, at); !ok {
		return Reservation{User: user, Reason: reason}
	}
	user.RecordAnalysis(at)
	return Reservation{User: user, Allowed: true}
}

func newUser(userID string, now time.Time) *domain.User {
	return &domain.User{
		UserID:     userID,
		Username:   userID,
		LastSeenAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func millisOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func timeFromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
