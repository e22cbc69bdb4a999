package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

type failingAuthenticator struct{}

func (failingAuthenticator) Name() string                                 { return "failing" }
func (failingAuthenticator) Supports(context.Context, *AuthRequest) bool { return true }
func (failingAuthenticator) Authenticate(context.Context, *AuthRequest) (*AuthResult, error) {
	return nil, errors.New("backend down")
}

func TestChain(t *testing.T) {
	chain := NewChain(
		NewAPIKeyAuthenticator(APIKeyConfig{}, "diag-key"),
		nil,
		NewJWTAuthenticator(JWTConfig{Secret: testSecret}),
	)
	if chain.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", chain.Len())
	}

	token, _ := SignToken(testSecret, "", "oncall", time.Minute)

	tests := []struct {
		name       string
		headers    map[string]string
		wantAuth   bool
		wantMethod string
		wantErr    error
	}{
		{name: "api key", headers: map[string]string{"X-API-Key": "diag-key"}, wantAuth: true, wantMethod: "api_key"},
		{name: "jwt", headers: map[string]string{"Authorization": "Bearer " + token}, wantAuth: true, wantMethod: "jwt"},
		{name: "bad key then jwt", headers: map[string]string{"X-API-Key": "nope", "Authorization": "Bearer " + token}, wantAuth: true, wantMethod: "jwt"},
		{name: "bad key", headers: map[string]string{"X-API-Key": "nope"}, wantErr: ErrInvalidCredentials},
		{name: "nothing", headers: nil, wantErr: ErrMissingCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for k, v := range tt.headers {
				h.Set(k, v)
			}
			result, err := chain.Authenticate(context.Background(), &AuthRequest{Headers: h})
			if err != nil {
				t.Fatalf("Authenticate() error = %v", err)
			}
			if result.Authenticated != tt.wantAuth {
				t.Fatalf("Authenticated = %v, want %v", result.Authenticated, tt.wantAuth)
			}
			if tt.wantAuth && result.Method != tt.wantMethod {
				t.Errorf("Method = %q, want %q", result.Method, tt.wantMethod)
			}
			if tt.wantErr != nil && result.Error != tt.wantErr {
				t.Errorf("Error = %v, want %v", result.Error, tt.wantErr)
			}
		})
	}
}

func TestChain_PropagatesInternalError(t *testing.T) {
	chain := NewChain(failingAuthenticator{})
	if _, err := chain.Authenticate(context.Background(), &AuthRequest{}); err == nil {
		t.Error("Authenticate() error = nil, want error")
	}
}
