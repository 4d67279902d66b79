package middleware

import (
	"net/http"

	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/pkg/logger"

	"github.com/google/uuid"
)

// RequestID tags every request with a correlation id, honoring one supplied
// by the caller in X-Request-ID.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}

		ctx := internal.ContextWithRequestID(r.Context(), id)
		ctx = logger.With(ctx, "request_id", id)

		w.Header().Set("X-Request-ID", id)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
