package session_test

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"

	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/auth"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/company"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/realtime"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/session"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/user"
)

// In-memory credential store backing a real auth provider.
type memoryCredStore struct {
	rows map[string]*memoryCred
}

type memoryCred struct {
	userID string
	email  string
	hash   string
	meta   auth.Metadata
}

func newMemoryCredStore() *memoryCredStore {
	return &memoryCredStore{rows: make(map[string]*memoryCred)}
}

func (s *memoryCredStore) GetByEmail(email string) (string, string, auth.Metadata, error) {
	for _, row := range s.rows {
		if row.email == email {
			return row.userID, row.hash, row.meta, nil
		}
	}
	return "", "", auth.Metadata{}, auth.ErrInvalidCredentials
}

func (s *memoryCredStore) Create(userID, email, passwordHash string, meta auth.Metadata) error {
	for _, row := range s.rows {
		if row.email == email {
			return auth.ErrDuplicateEmail
		}
	}
	s.rows[userID] = &memoryCred{userID: userID, email: email, hash: passwordHash, meta: meta}
	return nil
}

func (s *memoryCredStore) UpdatePassword(userID, passwordHash string) error {
	row, ok := s.rows[userID]
	if !ok {
		return auth.ErrInvalidCredentials
	}
	row.hash = passwordHash
	return nil
}

var _ = Describe("SessionManager", func() {
	var (
		provider  *auth.Provider
		profiles  *mockProfileStore
		companies *mockCompanyStore
		feed      *realtime.Feed
		manager   *session.Manager
	)

	const (
		email     = "agent@b1g.local"
		password  = "password1"
		companyID = "company-1"
	)

	var userID string

	BeforeEach(func() {
		creds := newMemoryCredStore()
		tokens := auth.NewJWTTokenGenerator("access", "refresh", 15*time.Minute, 7*24*time.Hour)
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		provider = auth.NewProvider(creds, tokens, bcrypt.MinCost, logger)

		var err error
		userID, err = provider.CreateUser(context.Background(), email, password, auth.Metadata{
			Role:      string(user.RoleAdmin),
			Name:      "Agent One",
			CompanyID: companyID,
		})
		Expect(err).ToNot(HaveOccurred())

		profiles = newMockProfileStore()
		profiles.set(&user.Profile{
			ID:        userID,
			Email:     email,
			Name:      "Agent One",
			Role:      user.RoleAdmin,
			Status:    user.StatusActive,
			CompanyID: companyID,
		})
		companies = newMockCompanyStore()
		companies.set(companyID, company.StatusActive)
		feed = realtime.NewFeed(nil)

		manager = session.NewManager(session.Config{}, provider, profiles, companies, feed, logger)
	})

	AfterEach(func() {
		manager.Close()
	})

	Describe("Login and Resolve", func() {
		It("should resolve the access token to the session identity", func() {
			// Given
			res := manager.Login(context.Background(), email, password)
			Expect(res.Success).To(BeTrue())

			// When
			identity, sessionID, err := manager.Resolve(res.Session.AccessToken)

			// Then
			Expect(err).ToNot(HaveOccurred())
			Expect(identity.UserID).To(Equal(userID))
			Expect(sessionID).To(Equal(res.Session.ID))
		})

		It("should keep logins on separate stores", func() {
			// Given two concurrent sessions for the same user
			first := manager.Login(context.Background(), email, password)
			second := manager.Login(context.Background(), email, password)
			Expect(first.Success).To(BeTrue())
			Expect(second.Success).To(BeTrue())
			Expect(first.Session.ID).ToNot(Equal(second.Session.ID))

			// When the first logs out
			manager.Logout(context.Background(), first.Session.ID)

			// Then the second still resolves
			_, _, err := manager.Resolve(first.Session.AccessToken)
			Expect(err).To(HaveOccurred())
			_, _, err = manager.Resolve(second.Session.AccessToken)
			Expect(err).ToNot(HaveOccurred())
		})

		It("should resolve each token to its own user under concurrent logins", func() {
			// Given several users provisioned up front
			type account struct {
				id    string
				email string
			}
			accounts := make([]account, 4)
			for i := range accounts {
				addr := fmt.Sprintf("agent%d@b1g.local", i)
				id, err := provider.CreateUser(context.Background(), addr, password, auth.Metadata{
					Role:      string(user.RoleAdmin),
					Name:      addr,
					CompanyID: companyID,
				})
				Expect(err).ToNot(HaveOccurred())
				profiles.set(&user.Profile{
					ID:        id,
					Email:     addr,
					Role:      user.RoleAdmin,
					Status:    user.StatusActive,
					CompanyID: companyID,
				})
				accounts[i] = account{id: id, email: addr}
			}

			// When the logins race, the provider broadcasts every SIGNED_IN
			// to every store
			for round := 0; round < 25; round++ {
				results := make([]session.LoginResult, len(accounts))
				var wg sync.WaitGroup
				for i := range accounts {
					wg.Add(1)
					go func(i int) {
						defer wg.Done()
						results[i] = manager.Login(context.Background(), accounts[i].email, password)
					}(i)
				}
				wg.Wait()

				// Then every token resolves to the user that logged in with it
				for i, res := range results {
					Expect(res.Success).To(BeTrue())
					identity, _, err := manager.Resolve(res.Session.AccessToken)
					Expect(err).ToNot(HaveOccurred())
					Expect(identity.UserID).To(Equal(accounts[i].id))
					manager.Logout(context.Background(), res.Session.ID)
				}
			}
		})

		It("should reject tokens of unknown sessions", func() {
			_, _, err := manager.Resolve("garbage")
			Expect(err).To(HaveOccurred())
		})

		It("should not register a store for a failed login", func() {
			res := manager.Login(context.Background(), email, "wrong")
			Expect(res.Success).To(BeFalse())
			Expect(feed.SubscriberCount()).To(BeZero())
		})
	})

	Describe("background revocation through Resolve", func() {
		It("should read a revoked session as not found and reap its store", func() {
			// Given a verified session
			res := manager.Login(context.Background(), email, password)
			Expect(res.Success).To(BeTrue())
			store, ok := manager.Store(res.Session.ID)
			Expect(ok).To(BeTrue())
			Eventually(func() bool {
				identity, ok := store.Current()
				return ok && identity.Verified
			}).Should(BeTrue())

			// When the company is deactivated via the change feed
			feed.Publish(realtime.ChangeEvent{
				Table:  company.Table,
				Action: realtime.ActionUpdate,
				New:    map[string]any{"id": companyID, "status": string(company.StatusInactive)},
			})

			// Then the token stops resolving and the store is reaped
			Eventually(func() error {
				_, _, err := manager.Resolve(res.Session.AccessToken)
				return err
			}).Should(HaveOccurred())
			_, ok = manager.Store(res.Session.ID)
			Expect(ok).To(BeFalse())
		})
	})

	Describe("Refresh", func() {
		It("should rotate tokens while the store keeps its identity", func() {
			// Given
			res := manager.Login(context.Background(), email, password)
			Expect(res.Success).To(BeTrue())
			store, _ := manager.Store(res.Session.ID)
			Eventually(func() bool {
				identity, ok := store.Current()
				return ok && identity.Verified
			}).Should(BeTrue())

			// When
			refreshed, err := manager.Refresh(context.Background(), res.Session.RefreshToken)

			// Then
			Expect(err).ToNot(HaveOccurred())
			Expect(refreshed.ID).To(Equal(res.Session.ID))
			identity, _, err := manager.Resolve(refreshed.AccessToken)
			Expect(err).ToNot(HaveOccurred())
			Expect(identity.UserID).To(Equal(userID))
		})
	})

	Describe("Logout", func() {
		It("should drop the session remotely and locally", func() {
			// Given
			res := manager.Login(context.Background(), email, password)
			Expect(res.Success).To(BeTrue())

			// When
			manager.Logout(context.Background(), res.Session.ID)

			// Then
			_, ok := provider.GetSession(res.Session.ID)
			Expect(ok).To(BeFalse())
			_, ok = manager.Store(res.Session.ID)
			Expect(ok).To(BeFalse())
		})

		It("should tolerate logging out an unknown session", func() {
			manager.Logout(context.Background(), "no-such-session")
		})
	})
})
