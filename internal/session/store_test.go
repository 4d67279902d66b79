package session_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/auth"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/company"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/realtime"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/session"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/user"
)

func TestSession(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Session Suite")
}

// Mock auth provider for testing. Events are delivered synchronously on the
// caller's goroutine, matching the real provider.
type mockAuthAPI struct {
	mu           sync.Mutex
	listeners    map[int]auth.Listener
	nextListener int

	session      *auth.Session
	concurrent   *auth.Session
	signInError  error
	signOutError error
	signOutCalls []string
}

func newMockAuthAPI() *mockAuthAPI {
	return &mockAuthAPI{listeners: make(map[int]auth.Listener)}
}

func (m *mockAuthAPI) SignInWithPassword(ctx context.Context, email, password string) (*auth.Session, error) {
	if m.signInError != nil {
		return nil, m.signInError
	}
	// A broadcast provider delivers every sign-in to every listener; emit a
	// stranger's event first when one is staged.
	if m.concurrent != nil {
		m.emit(auth.StateChange{Type: auth.EventSignedIn, Session: m.concurrent})
	}
	sess := m.session
	m.emit(auth.StateChange{Type: auth.EventSignedIn, Session: sess})
	return sess, nil
}

func (m *mockAuthAPI) SignOut(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	m.signOutCalls = append(m.signOutCalls, sessionID)
	m.mu.Unlock()
	if m.signOutError != nil {
		return m.signOutError
	}
	m.emit(auth.StateChange{Type: auth.EventSignedOut, Session: &auth.Session{ID: sessionID}})
	return nil
}

func (m *mockAuthAPI) OnAuthStateChange(fn auth.Listener) func() {
	m.mu.Lock()
	id := m.nextListener
	m.nextListener++
	m.listeners[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

func (m *mockAuthAPI) emit(evt auth.StateChange) {
	m.mu.Lock()
	fns := make([]auth.Listener, 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn(evt)
	}
}

func (m *mockAuthAPI) signOutCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.signOutCalls)
}

// Mock profile store for testing.
type mockProfileStore struct {
	mu       sync.Mutex
	profiles map[string]*user.Profile
	getError error
	failures int
	calls    int
}

func newMockProfileStore() *mockProfileStore {
	return &mockProfileStore{profiles: make(map[string]*user.Profile)}
}

func (m *mockProfileStore) GetByID(ctx context.Context, id string) (*user.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failures > 0 {
		m.failures--
		return nil, errors.New("transient database error")
	}
	if m.getError != nil {
		return nil, m.getError
	}
	p, ok := m.profiles[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (m *mockProfileStore) set(p *user.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.ID] = p
}

func (m *mockProfileStore) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Mock company status store for testing.
type mockCompanyStore struct {
	mu       sync.Mutex
	statuses map[string]company.Status
	getError error
}

func newMockCompanyStore() *mockCompanyStore {
	return &mockCompanyStore{statuses: make(map[string]company.Status)}
}

func (m *mockCompanyStore) GetStatus(ctx context.Context, id string) (company.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getError != nil {
		return "", m.getError
	}
	status, ok := m.statuses[id]
	if !ok {
		return "", company.ErrNotFound
	}
	return status, nil
}

func (m *mockCompanyStore) set(id string, status company.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[id] = status
}

type noticeRecorder struct {
	mu      sync.Mutex
	notices []session.Notice
}

func (r *noticeRecorder) record(n session.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *noticeRecorder) codes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.notices))
	for i, n := range r.notices {
		out[i] = n.Code
	}
	return out
}

var _ = Describe("SessionStore", func() {
	var (
		authAPI   *mockAuthAPI
		profiles  *mockProfileStore
		companies *mockCompanyStore
		feed      *realtime.Feed
		notices   *noticeRecorder
		store     *session.Store
		logger    *slog.Logger
	)

	const (
		userID    = "user-1"
		companyID = "company-1"
		sessionID = "sess-1"
	)

	newSession := func() *auth.Session {
		return &auth.Session{
			ID:     sessionID,
			UserID: userID,
			Email:  "agent@b1g.local",
			Metadata: auth.Metadata{
				Role:      string(user.RoleAdmin),
				Name:      "Agent One",
				CompanyID: companyID,
			},
		}
	}

	newStore := func(cfg session.Config) *session.Store {
		return session.NewStore(cfg, session.Deps{
			Provider:  authAPI,
			Profiles:  profiles,
			Companies: companies,
			Feed:      feed,
			Logger:    logger,
			Notify:    notices.record,
		})
	}

	BeforeEach(func() {
		authAPI = newMockAuthAPI()
		profiles = newMockProfileStore()
		companies = newMockCompanyStore()
		feed = realtime.NewFeed(nil)
		notices = &noticeRecorder{}
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

		authAPI.session = newSession()
		profiles.set(&user.Profile{
			ID:        userID,
			Email:     "agent@b1g.local",
			Name:      "Agent One",
			Role:      user.RoleAdmin,
			Status:    user.StatusActive,
			CompanyID: companyID,
		})
		companies.set(companyID, company.StatusActive)
	})

	AfterEach(func() {
		if store != nil {
			store.Close()
			store = nil
		}
	})

	Describe("Login", func() {
		Context("when credentials and statuses are valid", func() {
			It("should succeed and publish a verified identity", func() {
				// Given
				store = newStore(session.Config{})

				// When
				result := store.Login(context.Background(), "agent@b1g.local", "password1")

				// Then
				Expect(result.Success).To(BeTrue())
				Expect(result.Session).ToNot(BeNil())
				Expect(result.Session.ID).To(Equal(sessionID))

				Eventually(func() bool {
					identity, ok := store.Current()
					return ok && identity.Verified
				}).Should(BeTrue())

				identity, ok := store.Current()
				Expect(ok).To(BeTrue())
				Expect(identity.UserID).To(Equal(userID))
				Expect(identity.Role).To(Equal(user.RoleAdmin))
				Expect(identity.Status).To(Equal(user.StatusActive))
				Eventually(store.Loading).Should(BeFalse())
			})
		})

		Context("when credentials are wrong", func() {
			It("should report invalid credentials and hold no identity", func() {
				// Given
				authAPI.signInError = auth.ErrInvalidCredentials
				store = newStore(session.Config{})

				// When
				result := store.Login(context.Background(), "agent@b1g.local", "wrong")

				// Then
				Expect(result.Success).To(BeFalse())
				Expect(result.Error).To(Equal(session.LoginErrInvalidCredentials))
				_, ok := store.Current()
				Expect(ok).To(BeFalse())
			})
		})

		Context("when the profile is inactive", func() {
			It("should reverse the sign-in and report account restricted", func() {
				// Given
				profiles.set(&user.Profile{
					ID:     userID,
					Email:  "agent@b1g.local",
					Role:   user.RoleAdmin,
					Status: user.StatusInactive,
				})
				store = newStore(session.Config{})

				// When
				result := store.Login(context.Background(), "agent@b1g.local", "password1")

				// Then
				Expect(result.Success).To(BeFalse())
				Expect(result.Error).To(Equal(session.LoginErrAccountRestricted))
				Expect(authAPI.signOutCount()).To(BeNumerically(">=", 1))
				_, ok := store.Current()
				Expect(ok).To(BeFalse())
			})
		})

		Context("when the company is inactive", func() {
			It("should reverse the sign-in and report company inactive", func() {
				// Given
				companies.set(companyID, company.StatusInactive)
				store = newStore(session.Config{})

				// When
				result := store.Login(context.Background(), "agent@b1g.local", "password1")

				// Then
				Expect(result.Success).To(BeFalse())
				Expect(result.Error).To(Equal(session.LoginErrCompanyInactive))
				Expect(authAPI.signOutCount()).To(BeNumerically(">=", 1))
			})
		})

		Context("when the pre-flight profile fetch fails", func() {
			It("should pass the login through", func() {
				// Given
				profiles.getError = errors.New("database unavailable")
				store = newStore(session.Config{})

				// When
				result := store.Login(context.Background(), "agent@b1g.local", "password1")

				// Then
				Expect(result.Success).To(BeTrue())
				Expect(authAPI.signOutCount()).To(BeZero())
			})
		})

		Context("when the pre-flight company check fails", func() {
			It("should pass the login through", func() {
				// Given
				companies.getError = errors.New("database unavailable")
				store = newStore(session.Config{})

				// When
				result := store.Login(context.Background(), "agent@b1g.local", "password1")

				// Then
				Expect(result.Success).To(BeTrue())
			})
		})
	})

	Describe("session binding", func() {
		It("should bind its own session, not a stranger's sign-in delivered during login", func() {
			// Given another user's sign-in broadcast ahead of ours
			profiles.set(&user.Profile{
				ID:     "user-2",
				Email:  "other@b1g.local",
				Role:   user.RoleFinance,
				Status: user.StatusActive,
			})
			authAPI.concurrent = &auth.Session{
				ID:     "sess-2",
				UserID: "user-2",
				Email:  "other@b1g.local",
				Metadata: auth.Metadata{
					Role: string(user.RoleFinance),
					Name: "Other Agent",
				},
			}
			store = newStore(session.Config{})

			// When
			result := store.Login(context.Background(), "agent@b1g.local", "password1")

			// Then the store holds our session and our identity only
			Expect(result.Success).To(BeTrue())
			Expect(store.SessionID()).To(Equal(sessionID))
			Eventually(func() bool {
				identity, ok := store.Current()
				return ok && identity.Verified
			}).Should(BeTrue())
			Consistently(func() string {
				identity, _ := store.Current()
				return identity.UserID
			}, 100*time.Millisecond).Should(Equal(userID))
		})

		It("should stay empty when a sign-in for someone else arrives before login", func() {
			// Given an idle store that has not logged in
			store = newStore(session.Config{})

			// When another session's sign-in is broadcast
			authAPI.emit(auth.StateChange{Type: auth.EventSignedIn, Session: newSession()})

			// Then the store does not adopt it
			Consistently(func() bool {
				_, ok := store.Current()
				return ok
			}, 100*time.Millisecond).Should(BeFalse())
			Expect(store.SessionID()).To(BeEmpty())
		})
	})

	Describe("profile loading", func() {
		It("should publish an optimistic identity before verification completes", func() {
			// Given a profile store that never answers in time
			profiles.getError = errors.New("slow backend")
			store = newStore(session.Config{ProfileRetryBackoff: 10 * time.Millisecond})

			// When
			store.Login(context.Background(), "agent@b1g.local", "password1")

			// Then the metadata projection is available immediately
			identity, ok := store.Current()
			Expect(ok).To(BeTrue())
			Expect(identity.Verified).To(BeFalse())
			Expect(identity.Role).To(Equal(user.RoleAdmin))
			Expect(identity.Name).To(Equal("Agent One"))
			Expect(identity.Status).To(Equal(user.StatusActive))
		})

		It("should fall back to the default role for unknown metadata roles", func() {
			// Given
			sess := newSession()
			sess.Metadata.Role = "cfo"
			authAPI.session = sess
			profiles.getError = errors.New("slow backend")
			store = newStore(session.Config{ProfileRetryBackoff: 10 * time.Millisecond})

			// When
			store.Login(context.Background(), "agent@b1g.local", "password1")

			// Then
			identity, ok := store.Current()
			Expect(ok).To(BeTrue())
			Expect(identity.Role).To(Equal(user.DefaultRole))
		})

		It("should keep the optimistic identity when verification fails twice", func() {
			// Given
			profiles.getError = errors.New("transient database error")
			store = newStore(session.Config{ProfileRetryBackoff: 10 * time.Millisecond})

			// When
			store.Login(context.Background(), "agent@b1g.local", "password1")

			// Then: fail open, no revocation
			Eventually(store.Loading).Should(BeFalse())
			Eventually(profiles.callCount).Should(BeNumerically(">=", 2))
			identity, ok := store.Current()
			Expect(ok).To(BeTrue())
			Expect(identity.Verified).To(BeFalse())
			Expect(notices.codes()).To(BeEmpty())
		})

		It("should recover on the retry when the first fetch fails", func() {
			// Given
			profiles.failures = 1
			store = newStore(session.Config{ProfileRetryBackoff: 10 * time.Millisecond})

			// When
			store.Login(context.Background(), "agent@b1g.local", "password1")

			// Then
			Eventually(func() bool {
				identity, ok := store.Current()
				return ok && identity.Verified
			}).Should(BeTrue())
		})

		It("should overwrite the optimistic identity with the verified profile", func() {
			// Given metadata that disagrees with the profile row
			sess := newSession()
			sess.Metadata.Role = string(user.RoleMobileSales)
			profiles.set(&user.Profile{
				ID:        userID,
				Email:     "agent@b1g.local",
				Name:      "Agent One",
				Role:      user.RoleManager,
				Status:    user.StatusActive,
				CompanyID: companyID,
				Position:  "Senior",
			})
			authAPI.session = sess
			store = newStore(session.Config{})

			// When
			store.Login(context.Background(), "agent@b1g.local", "password1")

			// Then the profile row wins
			Eventually(func() user.Role {
				identity, _ := store.Current()
				return identity.Role
			}).Should(Equal(user.RoleManager))
			identity, _ := store.Current()
			Expect(identity.Verified).To(BeTrue())
			Expect(identity.Position).To(Equal("Senior"))
		})

		It("should not clobber a verified elevated role on token refresh", func() {
			// Given a verified admin identity
			store = newStore(session.Config{})
			store.Login(context.Background(), "agent@b1g.local", "password1")
			Eventually(func() bool {
				identity, ok := store.Current()
				return ok && identity.Verified
			}).Should(BeTrue())

			// When a token refresh replays stale default-role metadata and
			// re-verification hangs
			profiles.getError = errors.New("slow backend")
			refreshed := newSession()
			refreshed.Metadata.Role = string(user.DefaultRole)
			authAPI.emit(auth.StateChange{Type: auth.EventTokenRefreshed, Session: refreshed})

			// Then the verified role survives
			identity, ok := store.Current()
			Expect(ok).To(BeTrue())
			Expect(identity.Verified).To(BeTrue())
			Expect(identity.Role).To(Equal(user.RoleAdmin))
		})

		It("should replace the identity when a different user signs in on refresh", func() {
			// Given a verified identity
			store = newStore(session.Config{})
			store.Login(context.Background(), "agent@b1g.local", "password1")
			Eventually(func() bool {
				identity, ok := store.Current()
				return ok && identity.Verified
			}).Should(BeTrue())

			// When the same session suddenly carries another user
			other := newSession()
			other.UserID = "user-2"
			other.Email = "other@b1g.local"
			profiles.set(&user.Profile{
				ID:     "user-2",
				Email:  "other@b1g.local",
				Role:   user.RoleFinance,
				Status: user.StatusActive,
			})
			authAPI.emit(auth.StateChange{Type: auth.EventTokenRefreshed, Session: other})

			// Then the guard does not apply across users
			Eventually(func() string {
				identity, _ := store.Current()
				return identity.UserID
			}).Should(Equal("user-2"))
		})
	})

	Describe("background revocation", func() {
		It("should clear the identity without sign-out when the profile goes inactive", func() {
			// Given
			store = newStore(session.Config{})
			store.Login(context.Background(), "agent@b1g.local", "password1")
			Eventually(func() bool {
				identity, ok := store.Current()
				return ok && identity.Verified
			}).Should(BeTrue())

			// When the profile is restricted and re-verification runs
			profiles.set(&user.Profile{
				ID:     userID,
				Email:  "agent@b1g.local",
				Role:   user.RoleAdmin,
				Status: user.StatusInactive,
			})
			before := authAPI.signOutCount()
			store.RefreshProfile(context.Background())

			// Then
			Eventually(func() bool {
				_, ok := store.Current()
				return ok
			}).Should(BeFalse())
			Eventually(notices.codes).Should(ContainElement("account_restricted"))
			Expect(authAPI.signOutCount()).To(Equal(before))
		})

		It("should revoke and sign out when the company change feed reports deactivation", func() {
			// Given
			store = newStore(session.Config{})
			store.Login(context.Background(), "agent@b1g.local", "password1")
			Eventually(func() bool {
				identity, ok := store.Current()
				return ok && identity.Verified
			}).Should(BeTrue())

			// When
			feed.Publish(realtime.ChangeEvent{
				Table:  company.Table,
				Action: realtime.ActionUpdate,
				New:    map[string]any{"id": companyID, "status": string(company.StatusInactive)},
			})

			// Then
			Eventually(func() bool {
				_, ok := store.Current()
				return ok
			}).Should(BeFalse())
			Eventually(notices.codes).Should(ContainElement("company_inactive"))
			Expect(authAPI.signOutCount()).To(Equal(1))
		})

		It("should ignore change feed events for other companies", func() {
			// Given
			store = newStore(session.Config{})
			store.Login(context.Background(), "agent@b1g.local", "password1")
			Eventually(func() bool {
				identity, ok := store.Current()
				return ok && identity.Verified
			}).Should(BeTrue())

			// When
			feed.Publish(realtime.ChangeEvent{
				Table:  company.Table,
				Action: realtime.ActionUpdate,
				New:    map[string]any{"id": "company-2", "status": string(company.StatusInactive)},
			})

			// Then
			Consistently(func() bool {
				_, ok := store.Current()
				return ok
			}).Should(BeTrue())
		})

		It("should revoke via the poll when the push channel missed the change", func() {
			// Given a fast poll and no push event
			store = newStore(session.Config{CompanyPollInterval: 20 * time.Millisecond})
			store.Login(context.Background(), "agent@b1g.local", "password1")
			Eventually(func() bool {
				identity, ok := store.Current()
				return ok && identity.Verified
			}).Should(BeTrue())

			// When
			companies.set(companyID, company.StatusInactive)

			// Then
			Eventually(func() bool {
				_, ok := store.Current()
				return ok
			}).Should(BeFalse())
			Eventually(notices.codes).Should(ContainElement("company_inactive"))
		})

		It("should sign out exactly once when push and poll both fire", func() {
			// Given
			store = newStore(session.Config{CompanyPollInterval: 20 * time.Millisecond})
			store.Login(context.Background(), "agent@b1g.local", "password1")
			Eventually(func() bool {
				identity, ok := store.Current()
				return ok && identity.Verified
			}).Should(BeTrue())

			// When both channels observe the deactivation
			companies.set(companyID, company.StatusInactive)
			feed.Publish(realtime.ChangeEvent{
				Table:  company.Table,
				Action: realtime.ActionUpdate,
				New:    map[string]any{"id": companyID, "status": string(company.StatusInactive)},
			})

			// Then revocation is idempotent
			Eventually(func() bool {
				_, ok := store.Current()
				return ok
			}).Should(BeFalse())
			Consistently(authAPI.signOutCount, 100*time.Millisecond).Should(Equal(1))
		})

		It("should not watch company status for system administrators", func() {
			// Given
			sess := newSession()
			sess.Metadata.Role = string(user.RoleSystemAdministrator)
			profiles.set(&user.Profile{
				ID:        userID,
				Email:     "agent@b1g.local",
				Role:      user.RoleSystemAdministrator,
				Status:    user.StatusActive,
				CompanyID: companyID,
			})
			authAPI.session = sess
			store = newStore(session.Config{CompanyPollInterval: 20 * time.Millisecond})
			store.Login(context.Background(), "agent@b1g.local", "password1")
			Eventually(func() bool {
				identity, ok := store.Current()
				return ok && identity.Verified
			}).Should(BeTrue())

			// When the company is deactivated
			companies.set(companyID, company.StatusInactive)
			feed.Publish(realtime.ChangeEvent{
				Table:  company.Table,
				Action: realtime.ActionUpdate,
				New:    map[string]any{"id": companyID, "status": string(company.StatusInactive)},
			})

			// Then the session survives
			Consistently(func() bool {
				_, ok := store.Current()
				return ok
			}).Should(BeTrue())
		})

		It("should keep the session when a status check errors", func() {
			// Given
			store = newStore(session.Config{CompanyPollInterval: 20 * time.Millisecond})
			store.Login(context.Background(), "agent@b1g.local", "password1")
			Eventually(func() bool {
				identity, ok := store.Current()
				return ok && identity.Verified
			}).Should(BeTrue())

			// When the status store starts failing
			companies.getError = errors.New("database unavailable")

			// Then the check is skipped, not treated as inactive
			Consistently(func() bool {
				_, ok := store.Current()
				return ok
			}, 100*time.Millisecond).Should(BeTrue())
		})
	})

	Describe("Logout", func() {
		It("should clear the identity even when remote sign-out fails", func() {
			// Given
			store = newStore(session.Config{})
			store.Login(context.Background(), "agent@b1g.local", "password1")
			Eventually(func() bool {
				_, ok := store.Current()
				return ok
			}).Should(BeTrue())
			authAPI.signOutError = errors.New("network down")

			// When
			store.Logout(context.Background())

			// Then
			_, ok := store.Current()
			Expect(ok).To(BeFalse())
			Expect(store.SessionID()).To(BeEmpty())
		})

		It("should clear the identity on an external SIGNED_OUT event", func() {
			// Given
			store = newStore(session.Config{})
			store.Login(context.Background(), "agent@b1g.local", "password1")
			Eventually(func() bool {
				_, ok := store.Current()
				return ok
			}).Should(BeTrue())

			// When
			authAPI.emit(auth.StateChange{Type: auth.EventSignedOut, Session: &auth.Session{ID: sessionID}})

			// Then
			_, ok := store.Current()
			Expect(ok).To(BeFalse())
		})

		It("should ignore SIGNED_OUT events for other sessions", func() {
			// Given
			store = newStore(session.Config{})
			store.Login(context.Background(), "agent@b1g.local", "password1")
			Eventually(func() bool {
				_, ok := store.Current()
				return ok
			}).Should(BeTrue())

			// When
			authAPI.emit(auth.StateChange{Type: auth.EventSignedOut, Session: &auth.Session{ID: "sess-other"}})

			// Then
			_, ok := store.Current()
			Expect(ok).To(BeTrue())
		})
	})

	Describe("Close", func() {
		It("should release the company subscription and auth listener", func() {
			// Given
			store = newStore(session.Config{})
			store.Login(context.Background(), "agent@b1g.local", "password1")
			Eventually(feed.SubscriberCount).Should(Equal(1))

			// When
			store.Close()

			// Then
			Expect(feed.SubscriberCount()).To(BeZero())
			store = nil
		})
	})
})
