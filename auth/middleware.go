package auth

import (
	"encoding/json"
	"net/http"

	"github.com/jonwraymond/healthmon/observe"
)

// Middleware rejects requests that a does not authenticate with 401 and
// attaches the identity to the request context otherwise.
func Middleware(a Authenticator, logger observe.Logger, next http.Handler) http.Handler {
	if logger == nil {
		logger = observe.NopLogger()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		result, err := a.Authenticate(ctx, NewAuthRequest(r))
		if err != nil {
			logger.Error(ctx, "authentication error",
				observe.Field{Key: "path", Value: r.URL.Path},
				observe.Field{Key: "error", Value: err},
			)
			writeError(w, http.StatusInternalServerError, "authentication unavailable")
			return
		}
		if !result.Authenticated {
			logger.Warn(ctx, "authentication rejected",
				observe.Field{Key: "path", Value: r.URL.Path},
				observe.Field{Key: "method", Value: result.Method},
				observe.Field{Key: "error", Value: result.Error},
			)
			w.Header().Set("WWW-Authenticate", `Bearer realm="healthmon"`)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, result.Identity)))
	})
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
