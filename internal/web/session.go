package web

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/justestif/moodarc/internal/db"
	"github.com/justestif/moodarc/internal/logging"
	"github.com/justestif/moodarc/internal/spotify"
)

const sessionCookieName = "moodarc_session"

// Session represents an authenticated user session.
type Session struct {
	ID        string
	Token     *oauth2.Token
	User      spotify.Profile
	CreatedAt time.Time
}

// SessionManager stores sessions server-side. The cookie only carries the ID.
type SessionManager interface {
	Create(ctx context.Context, token *oauth2.Token, user spotify.Profile) (*Session, error)
	Get(ctx context.Context, id string) *Session
	Delete(ctx context.Context, id string)
	UpdateToken(ctx context.Context, id string, token *oauth2.Token)
	DeleteExpired(ctx context.Context) (int64, error)
}

// ============================================================================
// In-Memory Session Store (for development/testing)
// ============================================================================

// SessionStore manages user sessions in memory.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
}

// NewSessionStore creates a new in-memory session store.
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
	}
}

// Create generates a new session with the given token and user info.
func (s *SessionStore) Create(_ context.Context, token *oauth2.Token, user spotify.Profile) (*Session, error) {
	id, err := generateSessionID()
	if err != nil {
		return nil, err
	}

	session := &Session{
		ID:        id,
		Token:     token,
		User:      user,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	s.sessions[id] = session
	s.mu.Unlock()

	return session, nil
}

// Get retrieves a session by ID. Expired sessions are not returned.
func (s *SessionStore) Get(_ context.Context, id string) *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok || time.Since(session.CreatedAt) > s.ttl {
		return nil
	}

	cp := *session
	return &cp
}

// Delete removes a session by ID.
func (s *SessionStore) Delete(_ context.Context, id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// UpdateToken updates the OAuth token for a session.
func (s *SessionStore) UpdateToken(_ context.Context, id string, token *oauth2.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session, ok := s.sessions[id]; ok {
		session.Token = token
	}
}

// DeleteExpired drops sessions older than the TTL.
func (s *SessionStore) DeleteExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, session := range s.sessions {
		if time.Since(session.CreatedAt) > s.ttl {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

// ============================================================================
// Database-Backed Session Store
// ============================================================================

// DBSessionStore manages user sessions in PostgreSQL.
type DBSessionStore struct {
	database *db.DB
	ttl      time.Duration
}

// NewDBSessionStore creates a new database-backed session store.
func NewDBSessionStore(database *db.DB, ttl time.Duration) *DBSessionStore {
	return &DBSessionStore{database: database, ttl: ttl}
}

// Create upserts the user and stores a new session atomically.
func (s *DBSessionStore) Create(ctx context.Context, token *oauth2.Token, user spotify.Profile) (*Session, error) {
	id, err := generateSessionID()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	err = s.database.StartSession(ctx,
		&db.User{
			ID:          user.ID,
			DisplayName: user.DisplayName,
			Email:       user.Email,
		},
		&db.Session{
			ID:           id,
			UserID:       user.ID,
			AccessToken:  token.AccessToken,
			RefreshToken: token.RefreshToken,
			TokenExpiry:  token.Expiry,
			CreatedAt:    now,
			ExpiresAt:    now.Add(s.ttl),
		})
	if err != nil {
		return nil, err
	}

	return &Session{ID: id, Token: token, User: user, CreatedAt: now}, nil
}

// Get retrieves a session by ID from the database.
func (s *DBSessionStore) Get(ctx context.Context, id string) *Session {
	dbSession, user, err := s.database.Sessions().Get(ctx, id)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			logging.Ctx(ctx).Error().Err(err).Msg("loading session")
		}
		return nil
	}

	return &Session{
		ID: dbSession.ID,
		Token: &oauth2.Token{
			AccessToken:  dbSession.AccessToken,
			RefreshToken: dbSession.RefreshToken,
			Expiry:       dbSession.TokenExpiry,
			TokenType:    "Bearer",
		},
		User: spotify.Profile{
			ID:          user.ID,
			DisplayName: user.DisplayName,
			Email:       user.Email,
		},
		CreatedAt: dbSession.CreatedAt,
	}
}

// Delete removes a session from the database.
func (s *DBSessionStore) Delete(ctx context.Context, id string) {
	if err := s.database.Sessions().Delete(ctx, id); err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("deleting session")
	}
}

// UpdateToken updates the OAuth token for a session in the database.
func (s *DBSessionStore) UpdateToken(ctx context.Context, id string, token *oauth2.Token) {
	if err := s.database.Sessions().UpdateToken(ctx, id, token.AccessToken, token.RefreshToken, token.Expiry); err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("updating session token")
	}
}

// DeleteExpired removes sessions past their expiry.
func (s *DBSessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	return s.database.Sessions().DeleteExpired(ctx)
}

// ============================================================================
// Cookies
// ============================================================================

// sessionCookies writes and reads the session cookie, signing the ID with the
// configured secret so forged IDs are rejected before any store lookup.
type sessionCookies struct {
	secret []byte
	ttl    time.Duration
	secure bool
}

func (c sessionCookies) sign(id string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(id))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Set stores the signed session ID on the response.
func (c sessionCookies) Set(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    id + "." + c.sign(id),
		Path:     "/",
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(c.ttl.Seconds()),
	})
}

// Read returns the session ID from a validly signed cookie.
func (c sessionCookies) Read(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return "", false
	}
	id, sig, ok := strings.Cut(cookie.Value, ".")
	if !ok || id == "" {
		return "", false
	}
	if !hmac.Equal([]byte(sig), []byte(c.sign(id))) {
		return "", false
	}
	return id, true
}

// Clear removes the session cookie.
func (c sessionCookies) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   c.secure,
		MaxAge:   -1,
	})
}

// generateSessionID creates a cryptographically random session ID.
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// sweepSessions deletes expired sessions every interval until ctx is done.
func sweepSessions(ctx context.Context, sessions SessionManager, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sessions.DeleteExpired(ctx)
			if err != nil {
				logging.Warn().Err(err).Msg("sweeping expired sessions")
				continue
			}
			if n > 0 {
				logging.Debug().Int64("removed", n).Msg("swept expired sessions")
			}
		}
	}
}

// Ensure both stores implement SessionManager.
var (
	_ SessionManager = (*SessionStore)(nil)
	_ SessionManager = (*DBSessionStore)(nil)
)
