package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// APIKeyConfig configures the API key authenticator.
type APIKeyConfig struct {
	// HeaderName is the header containing the API key.
	// Default: "X-API-Key"
	HeaderName string
}

// APIKeyAuthenticator validates API keys against a fixed set.
// Only SHA-256 hashes of the keys are retained.
type APIKeyAuthenticator struct {
	config APIKeyConfig
	hashes []string
}

// NewAPIKeyAuthenticator creates an authenticator accepting keys.
// Blank keys are ignored.
func NewAPIKeyAuthenticator(config APIKeyConfig, keys ...string) *APIKeyAuthenticator {
	if config.HeaderName == "" {
		config.HeaderName = "X-API-Key"
	}

	hashes := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		hashes = append(hashes, HashAPIKey(k))
	}

	return &APIKeyAuthenticator{config: config, hashes: hashes}
}

// Name returns "api_key".
func (a *APIKeyAuthenticator) Name() string {
	return "api_key"
}

// Supports returns true if the request contains an API key header.
func (a *APIKeyAuthenticator) Supports(_ context.Context, req *AuthRequest) bool {
	return req.GetHeader(a.config.HeaderName) != ""
}

// Authenticate validates the API key.
func (a *APIKeyAuthenticator) Authenticate(_ context.Context, req *AuthRequest) (*AuthResult, error) {
	apiKey := strings.TrimSpace(req.GetHeader(a.config.HeaderName))
	if apiKey == "" {
		return AuthFailure(ErrMissingCredentials, "api_key"), nil
	}

	keyHash := HashAPIKey(apiKey)
	match := false
	for _, h := range a.hashes {
		if ConstantTimeCompare(h, keyHash) {
			match = true
		}
	}
	if !match {
		return AuthFailure(ErrInvalidCredentials, "api_key"), nil
	}

	return AuthSuccess(&Identity{
		Principal: "key:" + keyHash[:12],
		Method:    AuthMethodAPIKey,
		Claims:    map[string]any{"key_id": keyHash[:12]},
	}), nil
}

// HashAPIKey hashes an API key using SHA-256.
func HashAPIKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

// ConstantTimeCompare performs constant-time comparison of two strings.
func ConstantTimeCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

var _ Authenticator = (*APIKeyAuthenticator)(nil)
