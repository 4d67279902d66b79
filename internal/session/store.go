package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/auth"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/company"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/obs"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/realtime"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/user"
)

const (
	preflightTimeout = 5 * time.Second
	statusTimeout    = 5 * time.Second
)

// Store is the single source of truth for one session's Identity. It is
// populated exclusively by the profile loader, which runs on every auth
// state-change event, and can be forced back to empty by the company watcher.
//
// A Store handles one login; the Manager creates one per authenticated
// session. Provider calls are never made while holding the store mutex, so
// synchronous event delivery from the provider cannot deadlock.
type Store struct {
	cfg       Config
	provider  AuthAPI
	profiles  ProfileStore
	companies CompanyStatusStore
	feed      *realtime.Feed
	logger    *slog.Logger
	notify    NoticeFunc

	ctx        context.Context
	cancel     context.CancelFunc
	unsubAuth  func()
	verifyWG   sync.WaitGroup
	watcherWG  sync.WaitGroup

	mu         sync.Mutex
	identity   *Identity
	loading    bool
	raw        *auth.Session
	sessionID  string
	companySub *realtime.Subscription
	closed     bool
}

// Deps bundles the collaborators a Store needs.
type Deps struct {
	Provider  AuthAPI
	Profiles  ProfileStore
	Companies CompanyStatusStore
	Feed      *realtime.Feed
	Logger    *slog.Logger
	Notify    NoticeFunc
}

// NewStore registers exactly one auth state-change listener and starts the
// periodic company-status poll. Both are released by Close.
func NewStore(cfg Config, deps Deps) *Store {
	cfg.normalize()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	notify := deps.Notify
	if notify == nil {
		notify = func(n Notice) {
			logger.Warn("session notice", "code", n.Code, "message", n.Message)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		cfg:       cfg,
		provider:  deps.Provider,
		profiles:  deps.Profiles,
		companies: deps.Companies,
		feed:      deps.Feed,
		logger:    logger,
		notify:    notify,
		ctx:       ctx,
		cancel:    cancel,
		loading:   true,
	}

	s.unsubAuth = deps.Provider.OnAuthStateChange(s.onAuthChange)
	s.startPoll()
	return s
}

// Current returns the resolved Identity, if any.
func (s *Store) Current() (Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return Identity{}, false
	}
	return *s.identity, true
}

// Loading reports whether the initial profile resolution is still in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

func (s *Store) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

// SessionID returns the bound auth session id, or empty if unbound/revoked.
func (s *Store) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// Login authenticates and runs the pre-flight status checks. On a pre-flight
// rejection the freshly established external session is reversed before the
// failure is reported. Pre-flight checks that cannot be evaluated count as a
// pass; the loader reconciles afterwards.
func (s *Store) Login(ctx context.Context, email, password string) LoginResult {
	sess, err := s.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		s.setLoading(false)
		return LoginResult{Success: false, Error: LoginErrInvalidCredentials}
	}

	// The provider broadcasts SIGNED_IN to every registered listener, so the
	// event stream can carry another caller's concurrent login. An unbound
	// store therefore never adopts a session from an event; it binds here,
	// to the session this call returned, and kicks off its own loader.
	s.mu.Lock()
	s.sessionID = sess.ID
	s.mu.Unlock()
	s.loadProfile(sess)

	pctx, cancel := context.WithTimeout(ctx, preflightTimeout)
	defer cancel()

	profile, perr := s.profiles.GetByID(pctx, sess.UserID)
	if perr != nil {
		s.logger.Warn("login pre-flight profile fetch failed, passing through",
			"user_id", sess.UserID, "error", perr)
		return LoginResult{Success: true, Session: sess}
	}

	if !profile.IsActive() {
		s.reverseSignIn(sess)
		return LoginResult{Success: false, Error: LoginErrAccountRestricted}
	}

	if profile.CompanyID != "" && !profile.IsSystemAdministrator() {
		status, cerr := s.companies.GetStatus(pctx, profile.CompanyID)
		if cerr != nil {
			s.logger.Warn("login pre-flight company check failed, passing through",
				"company_id", profile.CompanyID, "error", cerr)
		} else if status != company.StatusActive {
			s.reverseSignIn(sess)
			return LoginResult{Success: false, Error: LoginErrCompanyInactive}
		}
	}

	return LoginResult{Success: true, Session: sess}
}

// Logout requests remote sign-out, then clears the Identity unconditionally:
// local revocation must not depend on the remote call succeeding.
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	sessionID := s.sessionID
	s.mu.Unlock()

	if sessionID != "" {
		if err := s.provider.SignOut(ctx, sessionID); err != nil {
			s.logger.Warn("remote sign-out failed, clearing local session anyway",
				"session_id", sessionID, "error", err)
		}
	}

	s.clearLocal()
}

// RefreshProfile re-runs the loader against the held raw session, for manual
// cache-busting after a profile edit elsewhere.
func (s *Store) RefreshProfile(ctx context.Context) {
	s.mu.Lock()
	raw := s.raw
	s.mu.Unlock()

	if raw == nil {
		return
	}
	s.loadProfile(raw)
}

// Close tears the store down: auth listener deregistered, poll stopped,
// company subscription closed. In-flight verification is allowed to finish.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	sub := s.companySub
	s.companySub = nil
	s.mu.Unlock()

	s.unsubAuth()
	s.cancel()
	if sub != nil {
		sub.Close()
	}
	s.watcherWG.Wait()
	s.verifyWG.Wait()
}

func (s *Store) reverseSignIn(sess *auth.Session) {
	if err := s.provider.SignOut(context.Background(), sess.ID); err != nil {
		s.logger.Warn("failed to reverse sign-in", "session_id", sess.ID, "error", err)
	}
	s.clearLocal()
}

func (s *Store) clearLocal() {
	s.mu.Lock()
	s.identity = nil
	s.raw = nil
	s.sessionID = ""
	s.loading = false
	sub := s.companySub
	s.companySub = nil
	s.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
}

func (s *Store) onAuthChange(evt auth.StateChange) {
	if evt.Session == nil {
		return
	}

	switch evt.Type {
	case auth.EventSignedIn:
		// Binding happens in Login, never here: the event stream is shared
		// across stores and may carry a stranger's sign-in.
		s.mu.Lock()
		match := s.sessionID != "" && evt.Session.ID == s.sessionID
		s.mu.Unlock()
		if !match {
			return
		}
		s.loadProfile(evt.Session)

	case auth.EventTokenRefreshed:
		s.mu.Lock()
		match := evt.Session.ID == s.sessionID
		s.mu.Unlock()
		if !match {
			return
		}
		s.loadProfile(evt.Session)

	case auth.EventSignedOut:
		s.mu.Lock()
		match := s.sessionID != "" && evt.Session.ID == s.sessionID
		s.mu.Unlock()
		if !match {
			return
		}
		s.clearLocal()
	}
}

// loadProfile is the two-phase loader. Phase one publishes an optimistic
// Identity synthesized from session metadata without any network wait, unless
// the anti-clobber guard applies: a verified, non-default role for the same
// user must not be overwritten by a later, weaker metadata snapshot delivered
// on routine token refresh. Phase two always runs in the background.
func (s *Store) loadProfile(sess *auth.Session) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.raw = sess

	keepVerified := s.identity != nil &&
		s.identity.UserID == sess.UserID &&
		s.identity.Verified &&
		s.identity.Role != user.DefaultRole
	if !keepVerified {
		s.identity = optimisticIdentity(sess)
	}
	s.loading = true
	s.mu.Unlock()

	s.verifyWG.Add(1)
	go func() {
		defer s.verifyWG.Done()
		s.verify(sess)
	}()
}

// verify is phase two: fetch the authoritative profile (bounded, retried
// once), then either revoke access or publish the verified Identity and
// re-establish the company-status subscription.
func (s *Store) verify(sess *auth.Session) {
	defer s.setLoading(false)

	profile := s.fetchProfileWithRetry(sess.UserID)
	if profile == nil {
		// Fail open: the optimistic Identity stays for display continuity.
		return
	}

	if s.superseded(sess) {
		return
	}

	if !profile.IsActive() {
		s.revokeIfCurrent(sess, false, noticeAccountNotActive)
		return
	}

	watchCompany := profile.CompanyID != "" && !profile.IsSystemAdministrator()
	if watchCompany {
		sctx, cancel := context.WithTimeout(s.ctx, statusTimeout)
		status, err := s.companies.GetStatus(sctx, profile.CompanyID)
		cancel()
		if err != nil {
			// Skip the termination check for this cycle; the periodic
			// poll retries naturally.
			s.logger.Warn("company status fetch failed during verification",
				"company_id", profile.CompanyID, "error", err)
		} else if status != company.StatusActive {
			s.revokeIfCurrent(sess, true, noticeCompanyDeactivated)
			return
		}
	}

	s.mu.Lock()
	if s.closed || s.raw == nil || s.raw.ID != sess.ID {
		s.mu.Unlock()
		return
	}
	s.identity = verifiedIdentity(profile)
	s.mu.Unlock()

	if watchCompany {
		s.watchCompany(profile.CompanyID)
	} else {
		s.watchCompany("")
	}
}

func (s *Store) fetchProfileWithRetry(userID string) *user.Profile {
	profile, err := s.fetchProfile(userID)
	if err == nil {
		return profile
	}
	s.logger.Warn("profile verification fetch failed, retrying once",
		"user_id", userID, "error", err)

	select {
	case <-time.After(s.cfg.ProfileRetryBackoff):
	case <-s.ctx.Done():
		return nil
	}

	profile, err = s.fetchProfile(userID)
	if err != nil {
		s.logger.Warn("profile verification retry failed, keeping optimistic identity",
			"user_id", userID, "error", err)
		return nil
	}
	return profile
}

func (s *Store) fetchProfile(userID string) (*user.Profile, error) {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.ProfileFetchTimeout)
	defer cancel()

	profile, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, errors.New("profile fetch timed out")
		}
		return nil, err
	}
	return profile, nil
}

func (s *Store) superseded(sess *auth.Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed || s.raw == nil || s.raw.ID != sess.ID
}

// revokeIfCurrent clears the Identity for the given session and optionally
// forces the external sign-out. Idempotent: a second trigger against an
// already-absent Identity is a no-op, so redundant push/pull revocations
// invoke sign-out exactly once.
func (s *Store) revokeIfCurrent(sess *auth.Session, signOut bool, n Notice) {
	s.mu.Lock()
	if s.identity == nil || s.raw == nil || s.raw.ID != sess.ID {
		s.mu.Unlock()
		return
	}
	s.identity = nil
	s.raw = nil
	sessionID := s.sessionID
	s.sessionID = ""
	sub := s.companySub
	s.companySub = nil
	s.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
	if signOut && sessionID != "" {
		if err := s.provider.SignOut(context.Background(), sessionID); err != nil {
			s.logger.Warn("forced sign-out failed", "session_id", sessionID, "error", err)
		}
	}
	obs.CountRevocation(n.Code)
	s.notify(n)
}
