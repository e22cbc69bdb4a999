package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Reporter exposes the published snapshot.
type Reporter interface {
	Status() Snapshot
	ServiceHealth(name string) (Result, error)
}

// ForceChecker runs an on-demand cycle.
type ForceChecker interface {
	ForceCheck(ctx context.Context) Snapshot
}

var (
	_ Reporter     = (*Monitor)(nil)
	_ ForceChecker = (*Monitor)(nil)
)

// LivenessHandler returns an HTTP handler for liveness probes.
// This is a simple check that the process is serving.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

// ReadinessHandler returns an HTTP handler for readiness probes.
// It reads the published snapshot and never probes.
func ReadinessHandler(rep Reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := rep.Status()

		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(statusCode(snap.Status))

		switch snap.Status {
		case StatusHealthy:
			_, _ = w.Write([]byte("OK"))
		case StatusDegraded:
			_, _ = w.Write([]byte("DEGRADED"))
		default:
			_, _ = w.Write([]byte("DOWN"))
		}
	}
}

// HealthResponse is the JSON response for a snapshot.
type HealthResponse struct {
	Status    string          `json:"status"`
	Timestamp string          `json:"timestamp"`
	Checks    []CheckResponse `json:"checks"`
}

// CheckResponse is the JSON response for a single dependency.
type CheckResponse struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
	CheckedAt string `json:"checked_at"`
	Error     string `json:"error,omitempty"`
}

// NewHealthResponse converts a snapshot into its JSON form.
func NewHealthResponse(snap Snapshot) HealthResponse {
	response := HealthResponse{
		Status:    snap.Status.String(),
		Timestamp: snap.Timestamp.UTC().Format(time.RFC3339Nano),
		Checks:    make([]CheckResponse, 0, len(snap.Results)),
	}
	for _, r := range snap.Results {
		response.Checks = append(response.Checks, newCheckResponse(r))
	}
	return response
}

func newCheckResponse(r Result) CheckResponse {
	return CheckResponse{
		Name:      r.Name,
		Status:    r.Status.String(),
		Message:   r.Message,
		LatencyMS: r.Latency.Milliseconds(),
		CheckedAt: r.Timestamp.UTC().Format(time.RFC3339Nano),
		Error:     r.ErrorString(),
	}
}

// DetailedHandler returns an HTTP handler that renders the current snapshot.
func DetailedHandler(rep Reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := rep.Status()
		writeJSON(w, statusCode(snap.Status), NewHealthResponse(snap))
	}
}

// ServiceHandler returns an HTTP handler for one dependency named by the
// {name} path value.
func ServiceHandler(rep Reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := rep.ServiceHealth(r.PathValue("name"))
		if err != nil {
			code := http.StatusInternalServerError
			if errors.Is(err, ErrDependencyNotFound) {
				code = http.StatusNotFound
			}
			writeJSON(w, code, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, statusCode(result.Status), newCheckResponse(result))
	}
}

// ForceCheckHandler returns an HTTP handler that runs a cycle on demand and
// renders the resulting snapshot.
func ForceCheckHandler(fc ForceChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := fc.ForceCheck(r.Context())
		writeJSON(w, statusCode(snap.Status), NewHealthResponse(snap))
	}
}

// RateLimit rejects requests with 429 once limiter is exhausted.
func RateLimit(limiter *rate.Limiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, map[string]string{
				"error": "too many diagnostic requests",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RegisterHandlers registers the read-only health handlers on mux.
// The force-check endpoint is registered separately so callers can wrap it.
func RegisterHandlers(mux *http.ServeMux, rep Reporter) {
	mux.HandleFunc("GET /healthz", LivenessHandler())
	mux.HandleFunc("GET /readyz", ReadinessHandler(rep))
	mux.HandleFunc("GET /health", DetailedHandler(rep))
	mux.HandleFunc("GET /health/{name}", ServiceHandler(rep))
}

func statusCode(s Status) int {
	switch s {
	case StatusHealthy, StatusDegraded:
		return http.StatusOK
	default:
		return http.StatusServiceUnavailable
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
