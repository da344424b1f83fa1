package coaching

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/motion-coach/internal/motion"
)

// SessionStore owns the per-user session map. The store lock only guards
// the map; session contents are guarded by each session's own lock, so
// different users never contend beyond the lookup.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	logger   *slog.Logger
	newID    func() string
}

// NewSessionStore creates an empty store.
func NewSessionStore(logger *slog.Logger) *SessionStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionStore{
		sessions: make(map[string]*Session),
		logger:   logger,
		newID: func() string {
			return "live_" + uuid.NewString()
		},
	}
}

// Start creates a fresh session for userID, replacing any existing one.
func (st *SessionStore) Start(userID string, activity motion.Activity, now time.Time) *Session {
	sess := newSession(st.newID(), userID, activity, now, st.logger)

	st.mu.Lock()
	_, replaced := st.sessions[userID]
	st.sessions[userID] = sess
	st.mu.Unlock()

	st.logger.Info("Coaching session started",
		"user_id", userID,
		"session_id", sess.ID,
		"activity", activity.Name,
		"strategy", sess.Strategy,
		"replaced", replaced)
	return sess
}

// Acquire returns the user's session, creating it on first use. A session
// for a different activity is replaced.
func (st *SessionStore) Acquire(userID, activityName string, now time.Time) *Session {
	activity := motion.Classify(activityName)

	st.mu.RLock()
	sess, ok := st.sessions[userID]
	st.mu.RUnlock()
	if ok && (activity.Name == "" || sess.Activity.Name == activity.Name) {
		return sess
	}

	st.mu.Lock()
	// Re-check: another event for this user may have created it.
	if sess, ok = st.sessions[userID]; ok && (activity.Name == "" || sess.Activity.Name == activity.Name) {
		st.mu.Unlock()
		return sess
	}
	prev := sess
	sess = newSession(st.newID(), userID, activity, now, st.logger)
	st.sessions[userID] = sess
	st.mu.Unlock()

	if prev != nil {
		st.logger.Info("Activity changed, restarting coaching session",
			"user_id", userID,
			"from", prev.Activity.Name,
			"to", activity.Name)
	} else {
		st.logger.Debug("Coaching session created lazily", "user_id", userID, "activity", activity.Name)
	}
	return sess
}

// Get returns the user's session or nil.
func (st *SessionStore) Get(userID string) *Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.sessions[userID]
}

// Stop removes and returns the user's session.
func (st *SessionStore) Stop(userID string) (*Session, bool) {
	st.mu.Lock()
	sess, ok := st.sessions[userID]
	delete(st.sessions, userID)
	st.mu.Unlock()
	return sess, ok
}

// Len returns the number of live sessions.
func (st *SessionStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Sweep evicts sessions that have seen no event for idle and returns the
// evicted user IDs.
func (st *SessionStore) Sweep(idle time.Duration, now time.Time) []string {
	st.mu.RLock()
	candidates := make([]*Session, 0, len(st.sessions))
	for _, sess := range st.sessions {
		candidates = append(candidates, sess)
	}
	st.mu.RUnlock()

	var evicted []string
	for _, sess := range candidates {
		sess.mu.Lock()
		last := sess.LastEventAt
		sess.mu.Unlock()
		if now.Sub(last) < idle {
			continue
		}

		st.mu.Lock()
		if st.sessions[sess.UserID] == sess {
			delete(st.sessions, sess.UserID)
			evicted = append(evicted, sess.UserID)
		}
		st.mu.Unlock()
	}
	return evicted
}
