package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ashureev/motion-coach/internal/domain"
	"github.com/ashureev/motion-coach/internal/shared"
)

// PostgresStore implements Repository on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to databaseURL and ensures the schema exists.
func NewPostgres(ctx context.Context, databaseURL string) (Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		is_banned BOOLEAN NOT NULL DEFAULT FALSE,
		analyses_today INTEGER NOT NULL DEFAULT 0,
		analyses_hour INTEGER NOT NULL DEFAULT 0,
		last_analysis_at BIGINT NOT NULL DEFAULT 0,
		last_seen_at BIGINT NOT NULL,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_users_last_seen ON users(last_seen_at);
	`)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const pgUserColumns = `user_id, username, is_banned, analyses_today, analyses_hour,
	last_analysis_at, last_seen_at, created_at, updated_at`

func scanPgUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	var today, hour int32
	var lastAnalysis, lastSeen, createdAt, updatedAt int64

	err := row.Scan(
		&user.UserID, &user.Username, &user.IsBanned,
		&today, &hour,
		&lastAnalysis, &lastSeen, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.AnalysesToday = int(today)
	user.AnalysesHour = int(hour)
	user.LastAnalysisAt = timeFromMillis(lastAnalysis)
	user.LastSeenAt = time.Unix(lastSeen, 0)
	user.CreatedAt = time.Unix(createdAt, 0)
	user.UpdatedAt = time.Unix(updatedAt, 0)
	return &user, nil
}

// GetUser retrieves a user by their user ID.
func (s *PostgresStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := scanPgUser(s.pool.QueryRow(ctx, `SELECT `+pgUserColumns+` FROM users WHERE user_id = $1`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}
	return user, nil
}

// UpsertUser creates or updates a user record.
func (s *PostgresStore) UpsertUser(ctx context.Context, user *domain.User) error {
	_, err := s.pool.Exec(ctx, `
	INSERT INTO users (user_id, username, is_banned, analyses_today, analyses_hour,
		last_analysis_at, last_seen_at, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (user_id) DO UPDATE SET
		username = EXCLUDED.username,
		last_seen_at = EXCLUDED.last_seen_at,
		updated_at = EXCLUDED.updated_at`,
		user.UserID, user.Username, user.IsBanned,
		int32(user.AnalysesToday), int32(user.AnalysesHour), millisOrZero(user.LastAnalysisAt),
		user.LastSeenAt.Unix(), user.CreatedAt.Unix(), user.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// UpdateLastSeen updates the last_seen_at timestamp for a user.
func (s *PostgresStore) UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE users SET last_seen_at = $1, updated_at = $2 WHERE user_id = $3`,
		lastSeen.Unix(), time.Now().Unix(), userID)
	if err != nil {
		return fmt.Errorf("update last_seen: %w", err)
	}
	return nil
}

// ReserveAnalysis locks the user row, checks the quota, bumps the counters
// and commits. Serialization failures and deadlocks are retried.
func (s *PostgresStore) ReserveAnalysis(ctx context.Context, userID string, limits domain.QuotaLimits, at time.Time) (Reservation, error) {
	var out Reservation
	err := shared.RetryOnConflict(ctx, shared.DefaultRetryPolicy, func() error {
		return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			_, err := tx.Exec(ctx, `
			INSERT INTO users (user_id, username, last_seen_at, created_at, updated_at)
			VALUES ($1, $1, $2, $2, $2)
			ON CONFLICT (user_id) DO NOTHING`, userID, at.Unix())
			if err != nil {
				return fmt.Errorf("ensure user: %w", err)
			}

			user, err := scanPgUser(tx.QueryRow(ctx,
				`SELECT `+pgUserColumns+` FROM users WHERE user_id = $1 FOR UPDATE`, userID))
			if err != nil {
				return fmt.Errorf("lock user row: %w", err)
			}

			out = reserve(user, limits, at)
			if !out.Allowed {
				return nil
			}

			_, err = tx.Exec(ctx, `
			UPDATE users SET analyses_today = $1, analyses_hour = $2,
				last_analysis_at = $3, updated_at = $4
			WHERE user_id = $5`,
				int32(user.AnalysesToday), int32(user.AnalysesHour),
				millisOrZero(user.LastAnalysisAt), user.UpdatedAt.Unix(), userID)
			if err != nil {
				return fmt.Errorf("update quota: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return Reservation{}, fmt.Errorf("reserve analysis for %s: %w", userID, err)
	}
	return out, nil
}

// SetBanned flags or clears a user's ban.
func (s *PostgresStore) SetBanned(ctx context.Context, userID string, banned bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET is_banned = $1, updated_at = $2 WHERE user_id = $3`,
		banned, time.Now().Unix(), userID)
	if err != nil {
		return fmt.Errorf("update is_banned: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
