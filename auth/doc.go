// Package auth authenticates operator requests to the diagnostic endpoints.
//
// Two authenticators are provided: [APIKeyAuthenticator] matches a hashed
// X-API-Key header against configured keys, and [JWTAuthenticator] verifies
// an HMAC-signed bearer token. A [Chain] tries them in order and
// [Middleware] rejects unauthenticated requests with 401.
package auth
