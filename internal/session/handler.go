package session

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	internal "github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/auth"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/transport"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/pkg/logger"
)

// loginLimiter throttles credential attempts per client address. Entries are
// never many (one per active client) so the map is left to grow.
type loginLimiter struct {
	perMinute int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newLoginLimiter(perMinute int) *loginLimiter {
	if perMinute <= 0 {
		perMinute = 10
	}
	return &loginLimiter{
		perMinute: perMinute,
		limiters:  make(map[string]*rate.Limiter),
	}
}

func (l *loginLimiter) allow(key string) bool {
	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(float64(l.perMinute)/60.0), l.perMinute)
		l.limiters[key] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

type Handler struct {
	*transport.BaseHandler
	Manager *Manager
	limiter *loginLimiter
}

func NewHandler(m *Manager, loginRatePerMinute int) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Manager:     m,
		limiter:     newLoginLimiter(loginRatePerMinute),
	}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if !h.limiter.allow(clientAddr(r)) {
		h.WriteError(w, http.StatusTooManyRequests, "too many login attempts, slow down")
		return
	}

	var dto LoginDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := dto.Validate(); err != nil {
		h.WriteAppError(w, err)
		return
	}

	res := h.Manager.Login(r.Context(), dto.Email, dto.Password)
	if !res.Success {
		h.Logger.Warn("login rejected", "email", dto.Email, "reason", res.Error)
		h.WriteAppError(w, loginError(res.Error))
		return
	}

	identity, _ := h.identityForSession(res.Session.ID)
	h.WriteJSON(w, http.StatusOK, LoginResponseDTO{
		TokenPairDTO: TokenPairDTO{
			AccessToken:  res.Session.AccessToken,
			RefreshToken: res.Session.RefreshToken,
			TokenType:    "Bearer",
		},
		Identity: identity,
	})
}

func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var dto RefreshTokenDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := dto.Validate(); err != nil {
		h.WriteAppError(w, err)
		return
	}

	sess, err := h.Manager.Refresh(r.Context(), dto.RefreshToken)
	if err != nil {
		h.Logger.Error("token refresh failed", "error", err)
		h.WriteAppError(w, internal.ErrInvalidToken)
		return
	}

	h.WriteJSON(w, http.StatusOK, TokenPairDTO{
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
		TokenType:    "Bearer",
	})
}

// Logout always answers 204: revocation is local-first, so even an expired or
// unknown token clears whatever state the server still holds for it.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token := h.ExtractTokenFromHeader(r)
	if token == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if sess, err := h.Manager.provider.SessionForToken(token); err == nil {
		h.Manager.Logout(r.Context(), sess.ID)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	token := h.ExtractTokenFromHeader(r)
	if token == "" {
		h.WriteAppError(w, internal.ErrInvalidToken)
		return
	}

	identity, err := h.Manager.Identity(token)
	if err != nil {
		h.writeAuthError(w, err)
		return
	}

	loading := false
	if sess, serr := h.Manager.provider.SessionForToken(token); serr == nil {
		if store, ok := h.Manager.Store(sess.ID); ok {
			loading = store.Loading()
		}
	}

	h.WriteJSON(w, http.StatusOK, IdentityResponseDTO{Identity: identity, Loading: loading})
}

func (h *Handler) RefreshProfile(w http.ResponseWriter, r *http.Request) {
	token := h.ExtractTokenFromHeader(r)
	if token == "" {
		h.WriteAppError(w, internal.ErrInvalidToken)
		return
	}

	sess, err := h.Manager.provider.SessionForToken(token)
	if err != nil {
		h.writeAuthError(w, err)
		return
	}

	h.Manager.RefreshProfile(r.Context(), sess.ID)
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	token := h.ExtractTokenFromHeader(r)
	if token == "" {
		h.WriteAppError(w, internal.ErrInvalidToken)
		return
	}

	sess, err := h.Manager.provider.SessionForToken(token)
	if err != nil {
		h.writeAuthError(w, err)
		return
	}

	var dto ChangePasswordDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if verr := dto.Validate(); verr != nil {
		h.WriteAppError(w, verr)
		return
	}

	if err := h.Manager.provider.UpdateUser(r.Context(), sess.ID, dto.NewPassword); err != nil {
		h.Logger.Error("password change failed", "session_id", sess.ID, "error", err)
		h.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		h.WriteAppError(w, internal.ErrTokenExpired)
	case errors.Is(err, auth.ErrSessionNotFound):
		h.WriteAppError(w, internal.NewUnauthorizedError("Session is no longer active", internal.ErrCodeSessionNotFound))
	default:
		h.WriteAppError(w, internal.ErrInvalidToken)
	}
}

func (h *Handler) identityForSession(sessionID string) (Identity, bool) {
	store, ok := h.Manager.Store(sessionID)
	if !ok {
		return Identity{}, false
	}
	return store.Current()
}

func clientAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i > 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
