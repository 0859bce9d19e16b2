package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/filipexyz/keygate/internal/domain"
	"github.com/filipexyz/keygate/internal/middleware"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeEngineError maps domain sentinels onto HTTP statuses. Unknown errors
// are reported as 500 without leaking internals.
func writeEngineError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidRateLimit),
		errors.Is(err, domain.ErrNameTooLong),
		errors.Is(err, domain.ErrDescriptionTooLong),
		errors.Is(err, domain.ErrInvalidKeyIndex),
		errors.Is(err, domain.ErrTooManyScopes),
		errors.Is(err, domain.ErrExpiryInPast),
		errors.Is(err, domain.ErrKeyProjectMismatch):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidKey),
		errors.Is(err, domain.ErrKeyExpired):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrInsufficientScope):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrRecordExists),
		errors.Is(err, domain.ErrProjectHasKeys),
		errors.Is(err, domain.ErrUsageCounterOpen),
		errors.Is(err, domain.ErrMaxKeysReached),
		errors.Is(err, domain.ErrKeyNotActive),
		errors.Is(err, domain.ErrKeyNotSuspended):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrRateLimitExceeded):
		status = http.StatusTooManyRequests
	}
	if status == http.StatusInternalServerError {
		slog.Error("engine operation failed", "error", err)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

// requireIdentity pulls the caller identity off the request or rejects with
// 401. Owner-gated handlers call this; verify and reads do not.
func requireIdentity(w http.ResponseWriter, r *http.Request) (domain.Identity, bool) {
	id, ok := middleware.GetIdentity(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing X-Identity header")
		return domain.Identity{}, false
	}
	return id, true
}
