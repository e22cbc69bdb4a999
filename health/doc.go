// Package health monitors the dependencies a service relies on.
//
// A Monitor owns a fixed list of Checkers, probes all of them on a fixed
// cadence, and publishes the outcome as an immutable Snapshot. Readers
// (HTTP handlers, readiness gates) only ever load the latest Snapshot; they
// never wait on network I/O.
//
// # Core Concepts
//
// A Checker probes one dependency and classifies it as healthy, degraded or
// down. The Prober runs every Checker concurrently under a hard timeout and
// turns timeouts, transport errors and panics into down results, so one
// unreachable dependency never aborts the cycle for the others.
//
// The overall status follows a strict precedence: any down result makes the
// snapshot down, otherwise any degraded result makes it degraded, otherwise
// it is healthy.
//
// # Basic Usage
//
//	prober, err := health.NewProber(health.ProberConfig{Timeout: 5 * time.Second}, []health.Checker{
//	    health.NewHTTPChecker("billing", health.HTTPCheckerConfig{URL: "https://api.example.com/health"}),
//	    health.NewSQLChecker("database", db),
//	    health.NewRedisChecker("cache", rdb),
//	})
//	if err != nil {
//	    return err
//	}
//
//	mon := health.NewMonitor(prober,
//	    health.WithInterval(30*time.Second),
//	    health.WithRecoverer(dispatcher),
//	)
//	mon.Start(ctx)
//	defer mon.Shutdown()
//
//	if !mon.IsHealthy() {
//	    snap := mon.Status()
//	    log.Printf("overall: %s", snap.Status)
//	}
//
// # HTTP Endpoints
//
//	mux := http.NewServeMux()
//	health.RegisterHandlers(mux, mon)
//	mux.Handle("POST /health/check", health.ForceCheckHandler(mon))
package health
