package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/filipexyz/keygate/internal/domain"
)

type contextKey string

const identityContextKey contextKey = "identity"

// Identity extracts the caller's identity from the X-Identity header. The
// execution substrate verifies signatures upstream; this layer only parses
// the 32-byte hex identity it vouched for. Requests without the header pass
// through — owner-gated handlers reject them via RequireIdentity.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("X-Identity")
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		id, err := domain.ParseIdentity(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid identity header")
			return
		}
		ctx := context.WithValue(r.Context(), identityContextKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetIdentity retrieves the caller identity from the request context.
func GetIdentity(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(domain.Identity)
	return id, ok
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
