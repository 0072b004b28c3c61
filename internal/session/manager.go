// Package session owns the auth collaborator boundary of the coordination
// layer: it resolves the Supabase session, reports the auth readiness gate
// exactly once per resolved state change, and enforces the sign-out
// ordering that keeps a previous identity's pending state from leaking
// into a new session.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/campuslink/appcore/infra/supabase"
	"github.com/campuslink/appcore/internal/cache"
	"github.com/campuslink/appcore/internal/deeplink"
	"github.com/campuslink/appcore/internal/events"
	"github.com/campuslink/appcore/internal/realtime"
)

// Manager resolves and tears down auth sessions against the coordination
// layer's stores.
type Manager struct {
	mu  sync.Mutex
	log zerolog.Logger
	rec events.Recorder

	auth     *supabase.AuthClient
	queue    *deeplink.Queue
	registry *realtime.Registry
	cache    *cache.Store

	clientID string
	current  *supabase.Session
	userID   string
}

// Option configures a Manager.
type Option func(*Manager)

// WithRecorder attaches a coordination event recorder.
func WithRecorder(rec events.Recorder) Option {
	return func(m *Manager) {
		if rec != nil {
			m.rec = rec
		}
	}
}

// NewManager creates a session manager over the given stores.
func NewManager(log zerolog.Logger, auth *supabase.AuthClient, queue *deeplink.Queue, registry *realtime.Registry, store *cache.Store, opts ...Option) *Manager {
	m := &Manager{
		log:      log.With().Str("component", "session").Logger(),
		rec:      events.Discard{},
		auth:     auth,
		queue:    queue,
		registry: registry,
		cache:    store,
		clientID: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Resolve restores a session from a stored refresh token and reports the
// resolved auth state. An empty or unusable token resolves to signed-out;
// the app still starts, it just cannot auto-navigate deep links.
func (m *Manager) Resolve(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		m.queue.SetAuthReady(false)
		return nil
	}

	session, err := m.auth.RefreshToken(ctx, refreshToken)
	if err != nil {
		m.log.Warn().Err(err).Msg("session restore failed, resolving signed-out")
		m.queue.SetAuthReady(false)
		return nil
	}

	return m.adopt(session)
}

// SignIn authenticates with email/password and reports the auth gate.
func (m *Manager) SignIn(ctx context.Context, email, password string) error {
	session, err := m.auth.SignInWithPassword(ctx, email, password)
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	return m.adopt(session)
}

// HandleCallback completes authentication from an auth-callback deep link.
// The deep-link queue never buffers these URLs; they arrive here directly
// from the shell, so a stale OS redelivery cannot re-run the exchange
// against an already-adopted session.
func (m *Manager) HandleCallback(ctx context.Context, rawURL, codeVerifier string) error {
	params, err := supabase.ParseCallback(rawURL)
	if err != nil {
		return fmt.Errorf("parse callback: %w", err)
	}

	var session *supabase.Session
	if params.Code != "" {
		session, err = m.auth.ExchangeCode(ctx, params.Code, codeVerifier)
		if err != nil {
			return fmt.Errorf("exchange code: %w", err)
		}
	} else {
		session = &supabase.Session{
			AccessToken:  params.AccessToken,
			RefreshToken: params.RefreshToken,
		}
	}

	return m.adopt(session)
}

// SignOut revokes the session and clears every piece of coordination state
// before any new session can report: pending deep link, readiness gates,
// live channels and cached queries.
func (m *Manager) SignOut(ctx context.Context) error {
	m.mu.Lock()
	current := m.current
	m.current = nil
	m.userID = ""
	m.mu.Unlock()

	var signOutErr error
	if current != nil {
		if err := m.auth.SignOut(ctx, current.AccessToken); err != nil {
			// Local teardown still proceeds; the refresh token expires
			// server-side regardless.
			m.log.Warn().Err(err).Msg("remote sign-out failed")
			signOutErr = err
		}
	}

	m.queue.Reset()
	m.registry.Close()
	m.cache.Flush()
	m.rec.Record(events.Event{Type: events.SessionCleared})
	m.log.Info().Msg("session cleared")

	return signOutErr
}

// UserID returns the signed-in user's id, or empty.
func (m *Manager) UserID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userID
}

// Session returns the current session, or nil.
func (m *Manager) Session() *supabase.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// ClientID returns the per-process client instance id.
func (m *Manager) ClientID() string {
	return m.clientID
}

func (m *Manager) adopt(session *supabase.Session) error {
	userID, err := subjectOf(session)
	if err != nil {
		m.queue.SetAuthReady(false)
		return fmt.Errorf("adopt session: %w", err)
	}

	m.mu.Lock()
	m.current = session
	m.userID = userID
	m.mu.Unlock()

	m.queue.SetAuthReady(true)
	m.rec.Record(events.Event{
		Type:     events.SessionAdopted,
		Metadata: map[string]string{"user_id": userID},
	})
	m.log.Info().Str("user_id", userID).Msg("session adopted")
	return nil
}

// subjectOf resolves the user id from the session payload or, failing
// that, from the access token's sub claim. The token is not verified
// here: verification is the backend's job, the client only needs the id
// for channel names and cache keys.
func subjectOf(session *supabase.Session) (string, error) {
	if session.User != nil && session.User.ID != "" {
		return session.User.ID, nil
	}

	token, _, err := jwt.NewParser().ParseUnverified(session.AccessToken, jwt.MapClaims{})
	if err != nil {
		return "", fmt.Errorf("parse access token: %w", err)
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("access token has no subject")
	}
	return sub, nil
}
