package session

import (
	"context"
	"time"

	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/auth"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/company"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/user"
)

// Identity is the resolved application user currently bound to a session.
// Verified is false while the identity is still the optimistic projection of
// signup metadata and true once the profile store has confirmed it.
type Identity struct {
	UserID    string      `json:"user_id"`
	Email     string      `json:"email"`
	Name      string      `json:"name,omitempty"`
	Role      user.Role   `json:"role"`
	Status    user.Status `json:"status"`
	CompanyID string      `json:"company_id,omitempty"`
	Position  string      `json:"position,omitempty"`
	Verified  bool        `json:"verified"`
}

type LoginErrorCode string

const (
	LoginErrInvalidCredentials LoginErrorCode = "invalid_credentials"
	LoginErrAccountRestricted  LoginErrorCode = "account_restricted"
	LoginErrCompanyInactive    LoginErrorCode = "company_inactive"
)

// LoginResult is the discriminated outcome of a login attempt.
type LoginResult struct {
	Success bool           `json:"success"`
	Error   LoginErrorCode `json:"error,omitempty"`
	Session *auth.Session  `json:"session,omitempty"`
}

// Notice is a human-readable message surfaced when background verification
// concludes access must be revoked. Raw errors are never surfaced this way.
type Notice struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type NoticeFunc func(Notice)

var (
	noticeAccountNotActive = Notice{
		Code:    "account_restricted",
		Message: "Your account is not active. Contact your administrator.",
	}
	noticeCompanyDeactivated = Notice{
		Code:    "company_inactive",
		Message: "Your company has been deactivated.",
	}
)

// AuthAPI is the auth collaborator surface consumed by the session store.
type AuthAPI interface {
	SignInWithPassword(ctx context.Context, email, password string) (*auth.Session, error)
	SignOut(ctx context.Context, sessionID string) error
	OnAuthStateChange(fn auth.Listener) func()
}

// ProfileStore fetches verified profiles from the row store.
type ProfileStore interface {
	GetByID(ctx context.Context, id string) (*user.Profile, error)
}

// CompanyStatusStore fetches the tenant enablement flag.
type CompanyStatusStore interface {
	GetStatus(ctx context.Context, id string) (company.Status, error)
}

// Config tunes the profile loader and company watcher. Zero values take the
// documented defaults (10s fetch timeout, 1s retry backoff, 60s poll).
type Config struct {
	ProfileFetchTimeout time.Duration
	ProfileRetryBackoff time.Duration
	CompanyPollInterval time.Duration
}

func (c *Config) normalize() {
	if c.ProfileFetchTimeout <= 0 {
		c.ProfileFetchTimeout = 10 * time.Second
	}
	if c.ProfileRetryBackoff <= 0 {
		c.ProfileRetryBackoff = time.Second
	}
	if c.CompanyPollInterval <= 0 {
		c.CompanyPollInterval = 60 * time.Second
	}
}

func optimisticIdentity(sess *auth.Session) *Identity {
	return &Identity{
		UserID:    sess.UserID,
		Email:     sess.Email,
		Name:      sess.Metadata.Name,
		Role:      user.ParseRole(sess.Metadata.Role),
		Status:    user.StatusActive,
		CompanyID: sess.Metadata.CompanyID,
		Verified:  false,
	}
}

func verifiedIdentity(p *user.Profile) *Identity {
	return &Identity{
		UserID:    p.ID,
		Email:     p.Email,
		Name:      p.Name,
		Role:      p.Role,
		Status:    p.Status,
		CompanyID: p.CompanyID,
		Position:  p.Position,
		Verified:  true,
	}
}
