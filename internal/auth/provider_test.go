package auth_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"

	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/auth"
)

func TestAuth(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Auth Provider Suite")
}

// Mock credential store for testing.
type mockCredentialStore struct {
	byEmail map[string]*credRow
	byID    map[string]*credRow
}

type credRow struct {
	userID string
	hash   string
	meta   auth.Metadata
}

func newMockCredentialStore() *mockCredentialStore {
	return &mockCredentialStore{
		byEmail: make(map[string]*credRow),
		byID:    make(map[string]*credRow),
	}
}

func (m *mockCredentialStore) GetByEmail(email string) (string, string, auth.Metadata, error) {
	row, ok := m.byEmail[email]
	if !ok {
		return "", "", auth.Metadata{}, auth.ErrInvalidCredentials
	}
	return row.userID, row.hash, row.meta, nil
}

func (m *mockCredentialStore) Create(userID, email, passwordHash string, meta auth.Metadata) error {
	if _, ok := m.byEmail[email]; ok {
		return auth.ErrDuplicateEmail
	}
	row := &credRow{userID: userID, hash: passwordHash, meta: meta}
	m.byEmail[email] = row
	m.byID[userID] = row
	return nil
}

func (m *mockCredentialStore) UpdatePassword(userID, passwordHash string) error {
	row, ok := m.byID[userID]
	if !ok {
		return auth.ErrInvalidCredentials
	}
	row.hash = passwordHash
	return nil
}

type eventRecorder struct {
	events []auth.StateChange
}

func (r *eventRecorder) record(evt auth.StateChange) {
	r.events = append(r.events, evt)
}

func (r *eventRecorder) types() []auth.EventType {
	out := make([]auth.EventType, len(r.events))
	for i, evt := range r.events {
		out[i] = evt.Type
	}
	return out
}

var _ = Describe("Provider", func() {
	var (
		creds    *mockCredentialStore
		tokens   *auth.JWTTokenGenerator
		provider *auth.Provider
		events   *eventRecorder
		unsub    func()
	)

	const (
		email    = "agent@b1g.local"
		password = "password1"
	)

	BeforeEach(func() {
		creds = newMockCredentialStore()
		tokens = auth.NewJWTTokenGenerator("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour)
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		provider = auth.NewProvider(creds, tokens, bcrypt.MinCost, logger)
		events = &eventRecorder{}
		unsub = provider.OnAuthStateChange(events.record)

		_, err := provider.CreateUser(context.Background(), email, password, auth.Metadata{
			Role:      "admin",
			Name:      "Agent One",
			CompanyID: "company-1",
		})
		Expect(err).ToNot(HaveOccurred())
	})

	AfterEach(func() {
		unsub()
	})

	Describe("SignInWithPassword", func() {
		It("should establish a session carrying the signup metadata", func() {
			// When
			sess, err := provider.SignInWithPassword(context.Background(), email, password)

			// Then
			Expect(err).ToNot(HaveOccurred())
			Expect(sess.ID).ToNot(BeEmpty())
			Expect(sess.Email).To(Equal(email))
			Expect(sess.AccessToken).ToNot(BeEmpty())
			Expect(sess.RefreshToken).ToNot(BeEmpty())
			Expect(sess.Metadata.Role).To(Equal("admin"))
			Expect(sess.Metadata.CompanyID).To(Equal("company-1"))
		})

		It("should emit SIGNED_IN before returning", func() {
			// When
			sess, err := provider.SignInWithPassword(context.Background(), email, password)

			// Then
			Expect(err).ToNot(HaveOccurred())
			Expect(events.types()).To(Equal([]auth.EventType{auth.EventSignedIn}))
			Expect(events.events[0].Session.ID).To(Equal(sess.ID))
		})

		It("should reject a wrong password", func() {
			_, err := provider.SignInWithPassword(context.Background(), email, "nope")
			Expect(err).To(MatchError(auth.ErrInvalidCredentials))
			Expect(events.events).To(BeEmpty())
		})

		It("should reject an unknown email", func() {
			_, err := provider.SignInWithPassword(context.Background(), "ghost@b1g.local", password)
			Expect(err).To(MatchError(auth.ErrInvalidCredentials))
		})
	})

	Describe("SignOut", func() {
		It("should drop the session and emit SIGNED_OUT", func() {
			// Given
			sess, err := provider.SignInWithPassword(context.Background(), email, password)
			Expect(err).ToNot(HaveOccurred())

			// When
			Expect(provider.SignOut(context.Background(), sess.ID)).To(Succeed())

			// Then
			_, ok := provider.GetSession(sess.ID)
			Expect(ok).To(BeFalse())
			Expect(events.types()).To(Equal([]auth.EventType{auth.EventSignedIn, auth.EventSignedOut}))
		})

		It("should treat an unknown session id as a no-op", func() {
			Expect(provider.SignOut(context.Background(), "no-such-session")).To(Succeed())
			Expect(events.events).To(BeEmpty())
		})
	})

	Describe("SessionForToken", func() {
		It("should resolve a live session from its access token", func() {
			// Given
			sess, err := provider.SignInWithPassword(context.Background(), email, password)
			Expect(err).ToNot(HaveOccurred())

			// When
			resolved, err := provider.SessionForToken(sess.AccessToken)

			// Then
			Expect(err).ToNot(HaveOccurred())
			Expect(resolved.ID).To(Equal(sess.ID))
		})

		It("should fail for a token of a signed-out session", func() {
			// Given
			sess, err := provider.SignInWithPassword(context.Background(), email, password)
			Expect(err).ToNot(HaveOccurred())
			Expect(provider.SignOut(context.Background(), sess.ID)).To(Succeed())

			// When
			_, err = provider.SessionForToken(sess.AccessToken)

			// Then
			Expect(err).To(MatchError(auth.ErrSessionNotFound))
		})

		It("should fail for garbage tokens", func() {
			_, err := provider.SessionForToken("not-a-jwt")
			Expect(err).To(MatchError(auth.ErrInvalidToken))
		})
	})

	Describe("RefreshSession", func() {
		It("should rotate the pair and replay the metadata snapshot", func() {
			// Given
			sess, err := provider.SignInWithPassword(context.Background(), email, password)
			Expect(err).ToNot(HaveOccurred())

			// When
			refreshed, err := provider.RefreshSession(context.Background(), sess.RefreshToken)

			// Then
			Expect(err).ToNot(HaveOccurred())
			Expect(refreshed.ID).To(Equal(sess.ID))
			Expect(refreshed.AccessToken).ToNot(Equal(sess.AccessToken))
			Expect(refreshed.RefreshToken).ToNot(Equal(sess.RefreshToken))
			Expect(refreshed.Metadata).To(Equal(sess.Metadata))
			Expect(events.types()).To(Equal([]auth.EventType{auth.EventSignedIn, auth.EventTokenRefreshed}))
		})

		It("should reject the refresh token of a dead session", func() {
			// Given
			sess, err := provider.SignInWithPassword(context.Background(), email, password)
			Expect(err).ToNot(HaveOccurred())
			Expect(provider.SignOut(context.Background(), sess.ID)).To(Succeed())

			// When
			_, err = provider.RefreshSession(context.Background(), sess.RefreshToken)

			// Then
			Expect(err).To(MatchError(auth.ErrSessionNotFound))
		})
	})

	Describe("UpdateUser", func() {
		It("should change the password for a live session", func() {
			// Given
			sess, err := provider.SignInWithPassword(context.Background(), email, password)
			Expect(err).ToNot(HaveOccurred())

			// When
			Expect(provider.UpdateUser(context.Background(), sess.ID, "password2")).To(Succeed())

			// Then
			_, err = provider.SignInWithPassword(context.Background(), email, "password2")
			Expect(err).ToNot(HaveOccurred())
			_, err = provider.SignInWithPassword(context.Background(), email, password)
			Expect(err).To(MatchError(auth.ErrInvalidCredentials))
		})

		It("should fail without a live session", func() {
			err := provider.UpdateUser(context.Background(), "no-such-session", "password2")
			Expect(err).To(MatchError(auth.ErrSessionNotFound))
		})
	})

	Describe("CreateUser", func() {
		It("should reject duplicate emails", func() {
			_, err := provider.CreateUser(context.Background(), email, "other", auth.Metadata{})
			Expect(err).To(MatchError(auth.ErrDuplicateEmail))
		})
	})

	Describe("JWTTokenGenerator", func() {
		It("should validate both halves of the pair with their own secrets", func() {
			access, err := tokens.GenerateAccessToken("u1", email, "s1")
			Expect(err).ToNot(HaveOccurred())
			refresh, err := tokens.GenerateRefreshToken("u1", email, "s1")
			Expect(err).ToNot(HaveOccurred())

			for _, token := range []string{access, refresh} {
				claims, err := tokens.ValidateToken(token)
				Expect(err).ToNot(HaveOccurred())
				Expect(claims.UserID).To(Equal("u1"))
				Expect(claims.SessionID).To(Equal("s1"))
			}
		})

		It("should reject expired tokens", func() {
			shortLived := auth.NewJWTTokenGenerator("a", "r", time.Nanosecond, time.Nanosecond)
			token, err := shortLived.GenerateAccessToken("u1", email, "s1")
			Expect(err).ToNot(HaveOccurred())

			_, err = shortLived.ValidateToken(token)
			Expect(err).To(MatchError(auth.ErrTokenExpired))
		})

		It("should reject tokens signed with other secrets", func() {
			token, err := tokens.GenerateAccessToken("u1", email, "s1")
			Expect(err).ToNot(HaveOccurred())

			other := auth.NewJWTTokenGenerator("different", "secrets", 15*time.Minute, 7*24*time.Hour)
			_, err = other.ValidateToken(token)
			Expect(err).To(MatchError(auth.ErrInvalidToken))
		})
	})
})
