package main

import (
	"net/http"

	"golang.org/x/time/rate"

	"github.com/jonwraymond/healthmon/auth"
	"github.com/jonwraymond/healthmon/config"
	"github.com/jonwraymond/healthmon/health"
	"github.com/jonwraymond/healthmon/observe"
)

// monitorAPI is what the router needs from the monitor.
type monitorAPI interface {
	health.Reporter
	health.ForceChecker
}

func newRouter(cfg *config.Config, m monitorAPI, metrics http.Handler, log observe.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	health.RegisterHandlers(mux, m)

	if a := newAuthenticator(cfg.Diagnostics); a != nil {
		limiter := rate.NewLimiter(rate.Limit(cfg.Diagnostics.Rate), cfg.Diagnostics.Burst)
		mux.Handle("POST /health/check",
			auth.Middleware(a, log, health.RateLimit(limiter, health.ForceCheckHandler(m))))
	}

	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}

	return mux
}

// newAuthenticator returns nil when no diagnostic credential is configured.
func newAuthenticator(dc config.DiagnosticsConfig) auth.Authenticator {
	if !dc.Enabled() {
		return nil
	}

	var auths []auth.Authenticator
	if len(dc.APIKeys) > 0 {
		auths = append(auths, auth.NewAPIKeyAuthenticator(auth.APIKeyConfig{}, dc.APIKeys...))
	}
	if dc.JWT.Secret != "" {
		auths = append(auths, auth.NewJWTAuthenticator(auth.JWTConfig{
			Secret: []byte(dc.JWT.Secret),
			Issuer: dc.JWT.Issuer,
		}))
	}
	return auth.NewChain(auths...)
}
