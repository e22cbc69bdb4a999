package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPCheckerConfig configures an HTTP endpoint checker.
type HTTPCheckerConfig struct {
	// URL is the endpoint to probe.
	URL string

	// Method is the HTTP method.
	// Default: GET
	Method string

	// Client is the HTTP client used for probes.
	// Default: a client without its own timeout; the probe context bounds it.
	Client *http.Client
}

// HTTPChecker probes a dependency reachable over HTTP.
// A 2xx response is healthy, any other response is degraded,
// and a transport failure is down.
type HTTPChecker struct {
	name   string
	config HTTPCheckerConfig
}

// NewHTTPChecker creates a new HTTP checker.
func NewHTTPChecker(name string, config HTTPCheckerConfig) *HTTPChecker {
	if config.Method == "" {
		config.Method = http.MethodGet
	}
	if config.Client == nil {
		config.Client = &http.Client{}
	}
	return &HTTPChecker{name: name, config: config}
}

// Name returns the dependency name.
func (c *HTTPChecker) Name() string {
	return c.name
}

// URL returns the probed endpoint.
func (c *HTTPChecker) URL() string {
	return c.config.URL
}

// Check performs one request against the endpoint.
func (c *HTTPChecker) Check(ctx context.Context) Result {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, c.config.Method, c.config.URL, nil)
	if err != nil {
		return Down("invalid request", err).WithLatency(time.Since(start))
	}

	resp, err := c.config.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Down("request timed out", fmt.Errorf("%w: %v", ErrCheckTimeout, err)).WithLatency(time.Since(start))
		}
		return Down("request failed", err).WithLatency(time.Since(start))
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	latency := time.Since(start)
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return Healthy(fmt.Sprintf("status %d", resp.StatusCode)).WithLatency(latency)
	}

	return Degraded(
		fmt.Sprintf("status %d", resp.StatusCode),
		fmt.Errorf("%w: unexpected status %d", ErrCheckFailed, resp.StatusCode),
	).WithLatency(latency)
}

var _ Checker = (*HTTPChecker)(nil)
