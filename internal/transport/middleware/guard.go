package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/permission"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/session"
)

type guardCtxKey string

const (
	identityCtxKey  guardCtxKey = "identity"
	sessionIDCtxKey guardCtxKey = "sessionID"
)

// IdentityFromContext returns the authenticated Identity set by Authenticate.
func IdentityFromContext(ctx context.Context) (session.Identity, bool) {
	id, ok := ctx.Value(identityCtxKey).(session.Identity)
	return id, ok
}

// SessionIDFromContext returns the auth session id set by Authenticate.
func SessionIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(sessionIDCtxKey).(string); ok {
		return id
	}
	return ""
}

// Authenticate resolves the bearer token to an Identity and stores it in the
// request context. Sessions revoked in the background resolve as not found,
// so a terminated company or restricted account reads as 401 here.
func Authenticate(m *session.Manager, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeGuardError(w, http.StatusUnauthorized, "missing authorization token")
				return
			}

			identity, sessionID, err := m.Resolve(token)
			if err != nil {
				logger.Warn("bearer token rejected", "path", r.URL.Path, "error", err)
				writeGuardError(w, http.StatusUnauthorized, "invalid or expired session")
				return
			}

			ctx := context.WithValue(r.Context(), identityCtxKey, identity)
			ctx = context.WithValue(ctx, sessionIDCtxKey, sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRoute gates a mounted subtree on the permission resolver. The route
// key is the logical page/feature name, not the raw URL.
func RequireRoute(route string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				writeGuardError(w, http.StatusUnauthorized, "missing authorization token")
				return
			}

			if !permission.Allows(identity.Role, route) {
				logger.Warn("route denied",
					"route", route,
					"role", identity.Role,
					"user_id", identity.UserID)
				writeGuardError(w, http.StatusForbidden, "role is not allowed on this route")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireServiceKey gates the provisioning surface on a shared admin key
// carried in X-Service-Key.
func RequireServiceKey(key string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := r.Header.Get("X-Service-Key")
			if key == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(key)) != 1 {
				logger.Warn("service key rejected", "path", r.URL.Path)
				writeGuardError(w, http.StatusUnauthorized, "invalid service key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || h[:7] != "Bearer " {
		return ""
	}
	return h[7:]
}

func writeGuardError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"code":    status,
		"message": message,
	})
}
