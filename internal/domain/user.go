// Package domain contains core domain types for the motion coaching service.
package domain

import (
	"fmt"
	"time"
)

// User represents a user together with their analysis quota counters.
type User struct {
	UserID         string    `json:"user_id"`
	Username       string    `json:"username"`
	IsBanned       bool      `json:"is_banned"`
	AnalysesToday  int       `json:"analyses_today"`
	AnalysesHour   int       `json:"analyses_this_hour"`
	LastAnalysisAt time.Time `json:"last_analysis_at,omitempty"`
	LastSeenAt     time.Time `json:"last_seen_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// QuotaLimits configures how many analyses a user may request.
// A zero value for any field disables that check.
type QuotaLimits struct {
	Daily      int
	Hourly     int
	MinSpacing time.Duration
}

// CanAnalyze reports whether the user may run another analysis at now and,
// when not, a human readable reason.
func (u *User) CanAnalyze(limits QuotaLimits, now time.Time) (bool, string) {
	if u.IsBanned {
		return false, "Account is banned"
	}

	daily, hourly := u.windowedCounts(now)
	if limits.Daily > 0 && daily >= limits.Daily {
		return false, fmt.Sprintf("Daily limit of %d analyses reached", limits.Daily)
	}
	if limits.Hourly > 0 && hourly >= limits.Hourly {
		return false, fmt.Sprintf("Hourly limit of %d analyses reached", limits.Hourly)
	}

	if limits.MinSpacing > 0 && !u.LastAnalysisAt.IsZero() {
		wait := u.LastAnalysisAt.Add(limits.MinSpacing).Sub(now)
		if wait > 0 {
			return false, fmt.Sprintf("Please wait %d seconds before next analysis", int(wait.Seconds()+0.999))
		}
	}

	return true, ""
}

// RecordAnalysis bumps the quota counters, rolling the windows over when the
// previous analysis happened in an earlier day or hour.
func (u *User) RecordAnalysis(now time.Time) {
	u.AnalysesToday, u.AnalysesHour = u.windowedCounts(now)
	u.AnalysesToday++
	u.AnalysesHour++
	u.LastAnalysisAt = now
	u.UpdatedAt = now
}

// Counts returns the daily and hourly counters as seen at now, after any
// window rollover.
func (u *User) Counts(now time.Time) (daily, hourly int) {
	return u.windowedCounts(now)
}

func (u *User) windowedCounts(now time.Time) (daily, hourly int) {
	if u.LastAnalysisAt.IsZero() {
		return 0, 0
	}
	last := u.LastAnalysisAt.UTC()
	cur := now.UTC()

	daily = u.AnalysesToday
	hourly = u.AnalysesHour
	if last.YearDay() != cur.YearDay() || last.Year() != cur.Year() {
		return 0, 0
	}
	if last.Hour() != cur.Hour() {
		hourly = 0
	}
	return daily, hourly
}
