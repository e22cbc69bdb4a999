package secret

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptySecret indicates a reference resolved to an empty value.
var ErrEmptySecret = errors.New("secret resolved to empty value")

// Resolver resolves secret references using registered providers.
//
// Values with the prefix "secretref:" are resolved via providers.
// Other values are returned after strict environment expansion.
type Resolver struct {
	providers map[string]Provider
}

// NewResolver creates a resolver. With no providers it registers the env
// and file providers.
func NewResolver(providers ...Provider) *Resolver {
	if len(providers) == 0 {
		providers = []Provider{EnvProvider{}, FileProvider{}}
	}
	r := &Resolver{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		if p == nil {
			continue
		}
		r.providers[p.Name()] = p
	}
	return r
}

// ResolveValue resolves environment variables and a secret ref in value.
func (r *Resolver) ResolveValue(ctx context.Context, value string) (string, error) {
	expanded, err := ExpandEnvStrict(value)
	if err != nil {
		return "", err
	}
	if providerName, ref, ok := ParseSecretRef(expanded); ok {
		return r.resolveRef(ctx, providerName, ref)
	}
	return expanded, nil
}

// Require checks that every reference resolves to a non-empty value.
// A bare name is treated as an environment variable. All failures are
// reported together; secret values never appear in the error.
func (r *Resolver) Require(ctx context.Context, refs []string) error {
	var errs []error
	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		value := ref
		if !strings.HasPrefix(ref, refPrefix) && !strings.Contains(ref, "$") {
			value = "${" + ref + "}"
		}
		resolved, err := r.ResolveValue(ctx, value)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ref, err))
			continue
		}
		if resolved == "" {
			errs = append(errs, fmt.Errorf("%s: %w", ref, ErrEmptySecret))
		}
	}
	return errors.Join(errs...)
}

const refPrefix = "secretref:"

// ParseSecretRef parses a full secret reference of the form:
//
//	secretref:<provider>:<ref>
func ParseSecretRef(value string) (provider string, ref string, ok bool) {
	if !strings.HasPrefix(value, refPrefix) {
		return "", "", false
	}
	parts := strings.SplitN(strings.TrimPrefix(value, refPrefix), ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func (r *Resolver) resolveRef(ctx context.Context, providerName string, ref string) (string, error) {
	provider, ok := r.providers[providerName]
	if !ok || provider == nil {
		return "", fmt.Errorf("secret provider %q is not registered", providerName)
	}
	return provider.Resolve(ctx, ref)
}
