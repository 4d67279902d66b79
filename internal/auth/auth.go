package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Metadata is the advisory bag captured at signup. It is attached to sessions
// so callers can render something immediately, but verified profile data
// always supersedes it.
type Metadata struct {
	Role      string `json:"role,omitempty"`
	Name      string `json:"name,omitempty"`
	CompanyID string `json:"company_id,omitempty"`
}

// Session is the raw authenticated session: opaque tokens plus the user id,
// email and signup metadata.
type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	Metadata     Metadata  `json:"metadata"`
}

type EventType string

const (
	EventSignedIn       EventType = "SIGNED_IN"
	EventTokenRefreshed EventType = "TOKEN_REFRESHED"
	EventSignedOut      EventType = "SIGNED_OUT"
)

// StateChange is delivered to OnAuthStateChange listeners. Session is nil for
// sign-out events where the session is already gone.
type StateChange struct {
	Type    EventType
	Session *Session
}

// Listener receives auth state changes. Listeners are invoked synchronously in
// registration order and must not block.
type Listener func(StateChange)

// CredentialStore is the persistence boundary for auth users.
type CredentialStore interface {
	GetByEmail(email string) (userID, passwordHash string, meta Metadata, err error)
	Create(userID, email, passwordHash string, meta Metadata) error
	UpdatePassword(userID, passwordHash string) error
}

// TokenGenerator creates and validates token pairs.
type TokenGenerator interface {
	GenerateAccessToken(userID, email, sessionID string) (string, error)
	GenerateRefreshToken(userID, email, sessionID string) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
}

// Claims represents JWT token claims.
type Claims struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

type JWTTokenGenerator struct {
	AccessTokenSecret  []byte
	RefreshTokenSecret []byte
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
}

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrSessionNotFound    = errors.New("session not found")
	ErrDuplicateEmail     = errors.New("email already registered")
)
