package core

import (
	"net/http"
	"strings"

	"ridecast/internal/types"
)

// authExemptPaths are reachable without an API key. Operational endpoints
// only; everything under /v1 requires a key.
var authExemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// APIKeyMiddleware enforces bearer API-key authentication on all routes
// except the exempt operational paths. A nil Keys verifier disables
// enforcement entirely, which keeps handler tests free of key plumbing.
func (s *Server) APIKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Keys == nil {
			next.ServeHTTP(w, r)
			return
		}
		if _, exempt := authExemptPaths[r.URL.Path]; exempt {
			next.ServeHTTP(w, r)
			return
		}

		presented := extractBearerToken(r)
		if presented == "" {
			Error(w, r, types.NewAppError(types.ErrCodeAuthKeyMissing, "missing API key", nil))
			return
		}

		keyID, err := s.Keys.Verify(presented)
		if err != nil {
			Error(w, r, err)
			return
		}

		ctx := types.WithAPIKeyID(r.Context(), keyID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractBearerToken pulls the credential out of an Authorization header of
// the form "Bearer <token>". The scheme comparison is case-insensitive.
func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}

	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
