package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/auth"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/realtime"
)

// Manager owns one Store per authenticated session and resolves bearer tokens
// to Identities. Stores that revoked themselves in the background are reaped
// lazily when next touched.
type Manager struct {
	cfg       Config
	provider  *auth.Provider
	profiles  ProfileStore
	companies CompanyStatusStore
	feed      *realtime.Feed
	logger    *slog.Logger

	mu     sync.Mutex
	stores map[string]*Store
	closed bool
}

func NewManager(cfg Config, provider *auth.Provider, profiles ProfileStore, companies CompanyStatusStore, feed *realtime.Feed, logger *slog.Logger) *Manager {
	cfg.normalize()
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:       cfg,
		provider:  provider,
		profiles:  profiles,
		companies: companies,
		feed:      feed,
		logger:    logger,
		stores:    make(map[string]*Store),
	}
}

// Login runs the full login flow: password check, pre-flight rejection rules,
// then a dedicated Store whose loader resolves the Identity in background.
func (m *Manager) Login(ctx context.Context, email, password string) LoginResult {
	store := m.newStore()

	res := store.Login(ctx, email, password)
	if !res.Success {
		store.Close()
		return res
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		store.Close()
		store.Logout(ctx)
		return LoginResult{Success: false, Error: LoginErrInvalidCredentials}
	}
	m.stores[res.Session.ID] = store
	m.mu.Unlock()

	return res
}

func (m *Manager) newStore() *Store {
	return NewStore(m.cfg, Deps{
		Provider:  m.provider,
		Profiles:  m.profiles,
		Companies: m.companies,
		Feed:      m.feed,
		Logger:    m.logger,
		Notify:    m.recordNotice,
	})
}

func (m *Manager) recordNotice(n Notice) {
	m.logger.Info("session revoked", "code", n.Code, "message", n.Message)
}

// Identity resolves a bearer access token to the current Identity. A session
// whose Store revoked itself reads as not found, and the dead Store is reaped.
func (m *Manager) Identity(token string) (Identity, error) {
	id, _, err := m.Resolve(token)
	return id, err
}

// Resolve is Identity plus the owning session id, for callers that key
// per-session state (notification feeds, SSE streams) off the token.
func (m *Manager) Resolve(token string) (Identity, string, error) {
	sess, err := m.provider.SessionForToken(token)
	if err != nil {
		return Identity{}, "", err
	}

	m.mu.Lock()
	store, ok := m.stores[sess.ID]
	m.mu.Unlock()
	if !ok {
		return Identity{}, "", auth.ErrSessionNotFound
	}

	id, ok := store.Current()
	if !ok {
		m.reap(sess.ID)
		return Identity{}, "", auth.ErrSessionNotFound
	}
	return id, sess.ID, nil
}

// Store returns the live Store bound to a session id.
func (m *Manager) Store(sessionID string) (*Store, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	store, ok := m.stores[sessionID]
	return store, ok
}

// Refresh rotates the token pair. The bound Store picks the TOKEN_REFRESHED
// event up on its own.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (*auth.Session, error) {
	return m.provider.RefreshSession(ctx, refreshToken)
}

// Logout signs the session out and reaps its Store.
func (m *Manager) Logout(ctx context.Context, sessionID string) {
	m.mu.Lock()
	store, ok := m.stores[sessionID]
	m.mu.Unlock()

	if ok {
		store.Logout(ctx)
		m.reap(sessionID)
		return
	}

	// No Store (already reaped): still honor the sign-out remotely.
	if err := m.provider.SignOut(ctx, sessionID); err != nil {
		m.logger.Warn("sign-out without bound store failed", "session_id", sessionID, "error", err)
	}
}

// RefreshProfile forces the loader to re-verify against the row store.
func (m *Manager) RefreshProfile(ctx context.Context, sessionID string) {
	m.mu.Lock()
	store, ok := m.stores[sessionID]
	m.mu.Unlock()
	if ok {
		store.RefreshProfile(ctx)
	}
}

func (m *Manager) reap(sessionID string) {
	m.mu.Lock()
	store, ok := m.stores[sessionID]
	if ok {
		delete(m.stores, sessionID)
	}
	m.mu.Unlock()

	if ok {
		store.Close()
	}
}

// Close tears down every live Store.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	stores := make([]*Store, 0, len(m.stores))
	for id, s := range m.stores {
		stores = append(stores, s)
		delete(m.stores, id)
	}
	m.mu.Unlock()

	for _, s := range stores {
		s.Close()
	}
}
