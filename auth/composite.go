package auth

import "context"

// Chain tries authenticators in order and returns the first success.
type Chain struct {
	authenticators []Authenticator
}

// NewChain creates a chain. Nil authenticators are skipped.
func NewChain(auths ...Authenticator) *Chain {
	c := &Chain{}
	for _, a := range auths {
		if a != nil {
			c.authenticators = append(c.authenticators, a)
		}
	}
	return c
}

// Len returns the number of authenticators in the chain.
func (c *Chain) Len() int { return len(c.authenticators) }

// Name returns "chain".
func (c *Chain) Name() string {
	return "chain"
}

// Supports returns true if any authenticator supports the request.
func (c *Chain) Supports(ctx context.Context, req *AuthRequest) bool {
	for _, a := range c.authenticators {
		if a.Supports(ctx, req) {
			return true
		}
	}
	return false
}

// Authenticate tries each supporting authenticator in sequence.
func (c *Chain) Authenticate(ctx context.Context, req *AuthRequest) (*AuthResult, error) {
	var last *AuthResult
	for _, a := range c.authenticators {
		if !a.Supports(ctx, req) {
			continue
		}

		result, err := a.Authenticate(ctx, req)
		if err != nil {
			return nil, err
		}
		if result.Authenticated {
			return result, nil
		}
		last = result
	}

	if last != nil {
		return last, nil
	}
	return AuthFailure(ErrMissingCredentials, ""), nil
}

var _ Authenticator = (*Chain)(nil)
