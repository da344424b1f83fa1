package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ashureev/motion-coach/internal/domain"
	"github.com/ashureev/motion-coach/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	writeMu sync.Mutex // serializes quota read-modify-write to keep SQLITE_BUSY rare
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		is_banned INTEGER NOT NULL DEFAULT 0,
		analyses_today INTEGER NOT NULL DEFAULT 0,
		analyses_hour INTEGER NOT NULL DEFAULT 0,
		last_analysis_at INTEGER NOT NULL DEFAULT 0,
		last_seen_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_users_last_seen ON users(last_seen_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const sqliteUserColumns = `user_id, username, is_banned, analyses_today, analyses_hour,
	last_analysis_at, last_seen_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var user domain.User
	var lastAnalysis, lastSeen, createdAt, updatedAt int64

	err := row.Scan(
		&user.UserID, &user.Username, &user.IsBanned,
		&user.AnalysesToday, &user.AnalysesHour,
		&lastAnalysis, &lastSeen, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.LastAnalysisAt = timeFromMillis(lastAnalysis)
	user.LastSeenAt = time.Unix(lastSeen, 0)
	user.CreatedAt = time.Unix(createdAt, 0)
	user.UpdatedAt = time.Unix(updatedAt, 0)
	return &user, nil
}

// GetUser retrieves a user by their user ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteUserColumns+` FROM users WHERE user_id = ?`, userID)

	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}
	return user, nil
}

// UpsertUser creates or updates a user record.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *domain.User) error {
	query := `
	INSERT INTO users (user_id, username, is_banned, analyses_today, analyses_hour,
		last_analysis_at, last_seen_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		username = excluded.username,
		last_seen_at = excluded.last_seen_at,
		updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		user.UserID, user.Username, user.IsBanned,
		user.AnalysesToday, user.AnalysesHour, millisOrZero(user.LastAnalysisAt),
		user.LastSeenAt.Unix(), user.CreatedAt.Unix(), user.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// UpdateLastSeen updates the last_seen_at timestamp for a user.
func (s *SQLiteStore) UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error {
	query := `UPDATE users SET last_seen_at = ?, updated_at = ? WHERE user_id = ?`
	result, err := s.db.ExecContext(ctx, query, lastSeen.Unix(), time.Now().Unix(), userID)
	if err != nil {
		return fmt.Errorf("update last_seen: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateLastSeen affected 0 rows", "user_id", userID)
	}

	return nil
}

// ReserveAnalysis checks and bumps the quota counters inside one
// transaction. Write conflicts are retried with backoff.
func (s *SQLiteStore) ReserveAnalysis(ctx context.Context, userID string, limits domain.QuotaLimits, at time.Time) (Reservation, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var out Reservation
	err := shared.RetryOnConflict(ctx, shared.DefaultRetryPolicy, func() error {
		r, err := s.reserveOnce(ctx, userID, limits, at)
		if err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return Reservation{}, fmt.Errorf("reserve analysis for %s: %w", userID, err)
	}
	return out, nil
}

func (s *SQLiteStore) reserveOnce(ctx context.Context, userID string, limits domain.QuotaLimits, at time.Time) (Reservation, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Reservation{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	user, err := scanUser(tx.QueryRowContext(ctx, `SELECT `+sqliteUserColumns+` FROM users WHERE user_id = ?`, userID))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		user = newUser(userID, at)
	case err != nil:
		return Reservation{}, fmt.Errorf("scan user row: %w", err)
	}

	res := reserve(user, limits, at)
	if !res.Allowed {
		return res, nil
	}

	_, err = tx.ExecContext(ctx, `
	INSERT INTO users (user_id, username, is_banned, analyses_today, analyses_hour,
		last_analysis_at, last_seen_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		analyses_today = excluded.analyses_today,
		analyses_hour = excluded.analyses_hour,
		last_analysis_at = excluded.last_analysis_at,
		updated_at = excluded.updated_at`,
		user.UserID, user.Username, user.IsBanned,
		user.AnalysesToday, user.AnalysesHour, millisOrZero(user.LastAnalysisAt),
		user.LastSeenAt.Unix(), user.CreatedAt.Unix(), user.UpdatedAt.Unix(),
	)
	if err != nil {
		return Reservation{}, fmt.Errorf("update quota: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Reservation{}, fmt.Errorf("commit: %w", err)
	}
	return res, nil
}

// SetBanned flags or clears a user's ban.
func (s *SQLiteStore) SetBanned(ctx context.Context, userID string, banned bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET is_banned = ?, updated_at = ? WHERE user_id = ?`,
		banned, time.Now().Unix(), userID)
	if err != nil {
		return fmt.Errorf("update is_banned: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
