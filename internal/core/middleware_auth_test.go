package core

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ridecast/internal/types"
)

type fakeKeyVerifier struct {
	keyID string
	err   error
}

func (f *fakeKeyVerifier) Verify(string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.keyID, nil
}

// okHandler records whether it ran and what key ID the middleware stored.
type okHandler struct {
	called bool
	keyID  string
	hasKey bool
}

func (h *okHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.called = true
	h.keyID, h.hasKey = types.GetAPIKeyID(r.Context())
	w.WriteHeader(http.StatusOK)
}

func TestAPIKeyMiddleware_NilVerifierDisablesAuth(t *testing.T) {
	s := newTestServer(t)
	next := &okHandler{}

	req := httptest.NewRequest(http.MethodGet, "/v1/riders", nil)
	rec := httptest.NewRecorder()
	s.APIKeyMiddleware(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, next.called)
	assert.False(t, next.hasKey)
}

func TestAPIKeyMiddleware_ExemptPathsSkipVerification(t *testing.T) {
	s := newTestServer(t)
	s.Keys = &fakeKeyVerifier{err: types.NewAppError(types.ErrCodeAuthKeyInvalid, "invalid API key", nil)}

	for _, path := range []string{"/health", "/metrics"} {
		t.Run(path, func(t *testing.T) {
			next := &okHandler{}
			req := httptest.NewRequest(http.MethodGet, path, nil)
			rec := httptest.NewRecorder()
			s.APIKeyMiddleware(next).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.True(t, next.called)
		})
	}
}

func TestAPIKeyMiddleware_MissingCredentialRejected(t *testing.T) {
	s := newTestServer(t)
	s.Keys = &fakeKeyVerifier{keyID: "key-1"}

	tests := []struct {
		name   string
		header string
	}{
		{name: "no header", header: ""},
		{name: "wrong scheme", header: "Basic abc123"},
		{name: "scheme without token", header: "Bearer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := &okHandler{}
			req := httptest.NewRequest(http.MethodGet, "/v1/riders", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			s.APIKeyMiddleware(next).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, string(types.ErrCodeAuthKeyMissing), decodeAPIError(t, rec).Code)
			assert.False(t, next.called)
		})
	}
}

func TestAPIKeyMiddleware_InvalidKeyRejectedWithVerifierError(t *testing.T) {
	s := newTestServer(t)
	s.Keys = &fakeKeyVerifier{err: types.NewAppError(types.ErrCodeAuthKeyInvalid, "invalid API key", nil)}

	next := &okHandler{}
	req := httptest.NewRequest(http.MethodGet, "/v1/riders", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-key")
	rec := httptest.NewRecorder()
	s.APIKeyMiddleware(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, string(types.ErrCodeAuthKeyInvalid), decodeAPIError(t, rec).Code)
	assert.False(t, next.called)
}

func TestAPIKeyMiddleware_ValidKeyStoresKeyID(t *testing.T) {
	s := newTestServer(t)
	s.Keys = &fakeKeyVerifier{keyID: "key-42"}

	next := &okHandler{}
	req := httptest.NewRequest(http.MethodGet, "/v1/riders", nil)
	req.Header.Set("Authorization", "Bearer rk_live_abc")
	rec := httptest.NewRecorder()
	s.APIKeyMiddleware(next).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, next.hasKey)
	assert.Equal(t, "key-42", next.keyID)
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{name: "absent", header: "", want: ""},
		{name: "standard", header: "Bearer rk_live_abc", want: "rk_live_abc"},
		{name: "lowercase scheme", header: "bearer rk_live_abc", want: "rk_live_abc"},
		{name: "uppercase scheme", header: "BEARER rk_live_abc", want: "rk_live_abc"},
		{name: "padded token trimmed", header: "Bearer  rk_live_abc ", want: "rk_live_abc"},
		{name: "wrong scheme", header: "Basic rk_live_abc", want: ""},
		{name: "scheme only", header: "Bearer ", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/riders", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.want, extractBearerToken(req))
		})
	}
}
