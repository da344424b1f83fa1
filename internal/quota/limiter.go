// Package quota enforces per-user analysis quotas stored in the repository.
package quota

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/motion-coach/internal/domain"
	"github.com/ashureev/motion-coach/internal/store"
)

// ReasonUnavailable is the denial reason when the store cannot answer.
const ReasonUnavailable = "quota check unavailable"

// Limiter admits analysis calls against the user's stored counters.
type Limiter struct {
	repo   store.Repository
	limits domain.QuotaLimits
	logger *slog.Logger
	now    func() time.Time
}

// NewLimiter creates a limiter over repo.
func NewLimiter(repo store.Repository, limits domain.QuotaLimits, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{repo: repo, limits: limits, logger: logger, now: time.Now}
}

// CanProceed reports whether userID may run another analysis now. An
// admitted call is counted in the same store transaction as the check, so
// concurrent calls for one user cannot overshoot a limit. Unknown users have
// no usage yet; their first admitted call creates them.
func (l *Limiter) CanProceed(ctx context.Context, userID string) (bool, string) {
	res, err := l.repo.ReserveAnalysis(ctx, userID, l.limits, l.now())
	if err != nil {
		l.logger.Warn("Quota check failed", "user_id", userID, "error", err)
		return false, ReasonUnavailable
	}
	if !res.Allowed {
		l.logger.Debug("Analysis quota exhausted", "user_id", userID, "reason", res.Reason)
	}
	return res.Allowed, res.Reason
}

// Usage is the quota view returned to clients.
type Usage struct {
	AnalysesToday  int     `json:"analyses_today"`
	DailyLimit     int     `json:"daily_limit"`
	AnalysesHour   int     `json:"analyses_this_hour"`
	HourlyLimit    int     `json:"hourly_limit"`
	MinSpacingSecs float64 `json:"min_spacing_seconds"`
	CanAnalyze     bool    `json:"can_analyze"`
	Reason         string  `json:"reason,omitempty"`
}

// Usage reports userID's current counters against the limits.
func (l *Limiter) Usage(ctx context.Context, userID string) (Usage, error) {
	user, err := l.repo.GetUser(ctx, userID)
	if err != nil {
		return Usage{}, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		user = &domain.User{UserID: userID}
	}

	now := l.now()
	ok, reason := user.CanAnalyze(l.limits, now)
	daily, hourly := user.Counts(now)
	return Usage{
		AnalysesToday:  daily,
		DailyLimit:     l.limits.Daily,
		AnalysesHour:   hourly,
		HourlyLimit:    l.limits.Hourly,
		MinSpacingSecs: l.limits.MinSpacing.Seconds(),
		CanAnalyze:     ok,
		Reason:         reason,
	}, nil
}
