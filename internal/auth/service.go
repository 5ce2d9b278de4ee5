// Package auth verifies inbound API keys for the rider profile API.
// Keys are provisioned out of band: operators generate a secret, store its
// bcrypt hash in configuration, and hand the "<key-id>.<secret>" pair to the
// caller. Plaintext secrets are never stored.
package auth

import (
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"ridecast/internal/types"
)

// bcryptCost is the cost factor expected of provisioned key hashes.
const bcryptCost = 12

// APIKeyService checks presented keys against the configured hash map.
type APIKeyService struct {
	hashes map[string]string
	logger *slog.Logger

	// placeholder is a valid bcrypt hash compared against when the key ID
	// is unknown, so unknown IDs cost the same as wrong secrets.
	placeholder []byte
}

// NewAPIKeyService creates an APIKeyService over keyID -> bcrypt hash
// pairs. If logger is nil, slog.Default() is used.
func NewAPIKeyService(keys map[string]string, logger *slog.Logger) *APIKeyService {
	if logger == nil {
		logger = slog.Default()
	}
	placeholder, err := bcrypt.GenerateFromPassword([]byte("ridecast-equalizer"), bcryptCost)
	if err != nil {
		// GenerateFromPassword only fails on an out-of-range cost.
		panic(err)
	}
	if len(keys) == 0 {
		logger.Warn("no API keys configured; every authenticated request will be rejected")
	}
	return &APIKeyService{
		hashes:      keys,
		logger:      logger,
		placeholder: placeholder,
	}
}

// Verify parses a presented "<key-id>.<secret>" credential and compares the
// secret against the configured hash for that key ID. It returns the key ID
// the caller authenticated as, or ErrCodeAuthKeyInvalid.
func (s *APIKeyService) Verify(presented string) (string, error) {
	keyID, secret, found := strings.Cut(presented, ".")
	if !found || keyID == "" || secret == "" {
		return "", types.NewAppError(types.ErrCodeAuthKeyInvalid, "malformed API key", nil)
	}

	hash, ok := s.hashes[keyID]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(s.placeholder, []byte(secret))
		s.logger.Warn("unknown API key id", slog.String("key_id", keyID))
		return "", types.NewAppError(types.ErrCodeAuthKeyInvalid, "invalid API key", nil)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)); err != nil {
		s.logger.Warn("API key verification failed", slog.String("key_id", keyID))
		return "", types.NewAppError(types.ErrCodeAuthKeyInvalid, "invalid API key", nil)
	}

	return keyID, nil
}

// HashKey produces the bcrypt hash of a key secret at the provisioning
// cost. Operators use this to mint the configuration value for a new key.
func HashKey(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
