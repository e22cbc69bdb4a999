// Package secret resolves credentials referenced from configuration.
//
// It supports:
//   - Strict environment expansion (see ExpandEnvStrict)
//   - Pluggable secret providers (see Provider, EnvProvider, FileProvider)
//   - Checking that a set of credentials is present (see Resolver.Require)
//
// References use the prefix "secretref:":
//   - Environment: secretref:env:STRIPE_SECRET_KEY
//   - Mounted file: secretref:file:/run/secrets/openai_api_key
//
// Plain values are expanded with ExpandEnvStrict. A bare variable name
// passed to Require is treated as "${NAME}".
package secret
