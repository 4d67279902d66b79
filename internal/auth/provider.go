package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Provider implements the auth collaborator surface: password sign-in,
// sign-out, session lookup and a state-change event stream. Sessions live in
// memory; credentials live in the CredentialStore.
type Provider struct {
	creds      CredentialStore
	tokens     TokenGenerator
	bcryptCost int
	logger     *slog.Logger

	mu           sync.RWMutex
	sessions     map[string]*Session
	listeners    map[int]Listener
	nextListener int
}

func NewProvider(creds CredentialStore, tokens TokenGenerator, bcryptCost int, logger *slog.Logger) *Provider {
	if bcryptCost <= 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		creds:      creds,
		tokens:     tokens,
		bcryptCost: bcryptCost,
		logger:     logger,
		sessions:   make(map[string]*Session),
		listeners:  make(map[int]Listener),
	}
}

// NewJWTTokenGenerator creates a new JWT token generator.
func NewJWTTokenGenerator(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *JWTTokenGenerator {
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 24 * 7 * time.Hour
	}
	return &JWTTokenGenerator{
		AccessTokenSecret:  []byte(accessSecret),
		RefreshTokenSecret: []byte(refreshSecret),
		AccessTokenTTL:     accessTTL,
		RefreshTokenTTL:    refreshTTL,
	}
}

// OnAuthStateChange registers a listener and returns an unsubscribe func.
func (p *Provider) OnAuthStateChange(fn Listener) func() {
	p.mu.Lock()
	id := p.nextListener
	p.nextListener++
	p.listeners[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

func (p *Provider) emit(evt StateChange) {
	p.mu.RLock()
	fns := make([]Listener, 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.RUnlock()

	for _, fn := range fns {
		fn(evt)
	}
}

// SignInWithPassword verifies credentials and establishes a session. A
// SIGNED_IN event is emitted before returning.
func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	userID, storedHash, meta, err := p.creds.GetByEmail(email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	sess, err := p.establishSession(userID, email, meta)
	if err != nil {
		return nil, err
	}

	p.emit(StateChange{Type: EventSignedIn, Session: sess})
	return sess, nil
}

func (p *Provider) establishSession(userID, email string, meta Metadata) (*Session, error) {
	sessionID := uuid.NewString()

	accessToken, err := p.tokens.GenerateAccessToken(userID, email, sessionID)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}
	refreshToken, err := p.tokens.GenerateRefreshToken(userID, email, sessionID)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	sess := &Session{
		ID:           sessionID,
		UserID:       userID,
		Email:        email,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Metadata:     meta,
	}

	p.mu.Lock()
	p.sessions[sessionID] = sess
	p.mu.Unlock()

	return sess, nil
}

// SignOut removes the session and emits SIGNED_OUT. Unknown session ids are
// not an error: local revocation must always win.
func (p *Provider) SignOut(ctx context.Context, sessionID string) error {
	p.mu.Lock()
	sess, ok := p.sessions[sessionID]
	if ok {
		delete(p.sessions, sessionID)
	}
	p.mu.Unlock()

	if !ok {
		return nil
	}

	p.emit(StateChange{Type: EventSignedOut, Session: sess})
	return nil
}

// GetSession returns the live session for the given id.
func (p *Provider) GetSession(sessionID string) (*Session, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	sess, ok := p.sessions[sessionID]
	return sess, ok
}

// SessionForToken validates an access token and resolves its live session.
func (p *Provider) SessionForToken(tokenString string) (*Session, error) {
	claims, err := p.tokens.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}

	p.mu.RLock()
	sess, ok := p.sessions[claims.SessionID]
	p.mu.RUnlock()

	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// RefreshSession rotates the token pair for the session carried by the refresh
// token. The session keeps its signup-time metadata snapshot; the
// TOKEN_REFRESHED event therefore replays advisory metadata that may be stale
// relative to the verified profile.
func (p *Provider) RefreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	claims, err := p.tokens.ValidateToken(refreshToken)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	sess, ok := p.sessions[claims.SessionID]
	if !ok {
		p.mu.Unlock()
		return nil, ErrSessionNotFound
	}

	accessToken, err := p.tokens.GenerateAccessToken(sess.UserID, sess.Email, sess.ID)
	if err != nil {
		p.mu.Unlock()
		return nil, err
	}
	newRefreshToken, err := p.tokens.GenerateRefreshToken(sess.UserID, sess.Email, sess.ID)
	if err != nil {
		p.mu.Unlock()
		return nil, err
	}

	sess.AccessToken = accessToken
	sess.RefreshToken = newRefreshToken
	snapshot := *sess
	p.mu.Unlock()

	p.emit(StateChange{Type: EventTokenRefreshed, Session: &snapshot})
	return &snapshot, nil
}

// CreateUser registers a credential row with advisory metadata. Used by the
// privileged provisioning boundary only.
func (p *Provider) CreateUser(ctx context.Context, email, password string, meta Metadata) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	userID := uuid.NewString()
	if err := p.creds.Create(userID, email, string(hash), meta); err != nil {
		return "", err
	}
	return userID, nil
}

// UpdateUser changes the password for the session's user.
func (p *Provider) UpdateUser(ctx context.Context, sessionID, newPassword string) error {
	p.mu.RLock()
	sess, ok := p.sessions[sessionID]
	p.mu.RUnlock()
	if !ok {
		return ErrSessionNotFound
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), p.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return p.creds.UpdatePassword(sess.UserID, string(hash))
}

// GenerateAccessToken creates a new access token.
func (j *JWTTokenGenerator) GenerateAccessToken(userID, email, sessionID string) (string, error) {
	return j.sign(userID, email, sessionID, j.AccessTokenSecret, j.AccessTokenTTL)
}

// GenerateRefreshToken creates a new refresh token.
func (j *JWTTokenGenerator) GenerateRefreshToken(userID, email, sessionID string) (string, error) {
	return j.sign(userID, email, sessionID, j.RefreshTokenSecret, j.RefreshTokenTTL)
}

func (j *JWTTokenGenerator) sign(userID, email, sessionID string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:    userID,
		Email:     email,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			// iat/exp have second granularity; the jti keeps two tokens
			// rotated within the same second from being byte-identical.
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   userID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ValidateToken validates a JWT token and returns claims.
func (j *JWTTokenGenerator) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		// Refresh tokens outlive the access TTL; pick the secret by remaining
		// lifetime the same way tokens were issued.
		if claims, ok := token.Claims.(*Claims); ok && claims.ExpiresAt != nil {
			if time.Until(claims.ExpiresAt.Time) > j.AccessTokenTTL {
				return j.RefreshTokenSecret, nil
			}
		}
		return j.AccessTokenSecret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrInvalidToken
}
