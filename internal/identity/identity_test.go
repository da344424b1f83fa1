package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/ashureev/motion-coach/internal/store"
)

func newRepo(t *testing.T) store.Repository {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "id.db"))
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestMiddlewareIssuesCookieAndCreatesUser(t *testing.T) {
	repo := newRepo(t)

	var seen string
	h := Middleware(repo, true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserIDFromContext(r.Context())
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/coaching/state", nil))

	if !isValidAnonID(seen) {
		t.Fatalf("user id %q is not a valid anon id", seen)
	}
	cookies := rr.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != AnonCookieName || cookies[0].Value != seen {
		t.Fatalf("unexpected cookies: %+v", cookies)
	}
	if cookies[0].Secure {
		t.Fatal("dev cookie should not be Secure")
	}

	u, err := repo.GetUser(context.Background(), seen)
	if err != nil || u == nil {
		t.Fatalf("GetUser() = %v, %v; want created user", u, err)
	}
}

func TestMiddlewareReusesValidCookie(t *testing.T) {
	repo := newRepo(t)
	id := "anon_0123456789abcdef0123456789abcdef"

	var seen string
	h := Middleware(repo, false)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = UserIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AnonCookieName, Value: id})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if seen != id {
		t.Fatalf("user id = %q, want %q", seen, id)
	}
	if c := rr.Result().Cookies(); len(c) != 1 || !c[0].Secure {
		t.Fatalf("expected refreshed secure cookie, got %+v", c)
	}
}

func TestMiddlewareRejectsForgedCookie(t *testing.T) {
	repo := newRepo(t)

	var seen string
	h := Middleware(repo, true)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = UserIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AnonCookieName, Value: "admin"})
	h.ServeHTTP(httptest.NewRecorder(), req)

	if seen == "admin" || !isValidAnonID(seen) {
		t.Fatalf("forged cookie accepted: %q", seen)
	}
}

func TestEnsureUserRefreshesLastSeen(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	id := "anon_ffffffffffffffffffffffffffffffff"
	start := time.Unix(1_700_000_000, 0)

	if err := ensureUser(ctx, repo, id, start); err != nil {
		t.Fatalf("ensureUser() error = %v", err)
	}
	if err := ensureUser(ctx, repo, id, start.Add(time.Minute)); err != nil {
		t.Fatalf("ensureUser() error = %v", err)
	}
	u, _ := repo.GetUser(ctx, id)
	if !u.LastSeenAt.Equal(start) {
		t.Fatalf("LastSeenAt = %v, want unchanged %v", u.LastSeenAt, start)
	}

	later := start.Add(10 * time.Minute)
	if err := ensureUser(ctx, repo, id, later); err != nil {
		t.Fatalf("ensureUser() error = %v", err)
	}
	u, _ = repo.GetUser(ctx, id)
	if !u.LastSeenAt.Equal(later) {
		t.Fatalf("LastSeenAt = %v, want %v", u.LastSeenAt, later)
	}
	if u.Username != "anon-ffffffff" {
		t.Fatalf("Username = %q", u.Username)
	}
}
