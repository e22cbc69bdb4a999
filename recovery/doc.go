// Package recovery runs best-effort remediation for dependencies that a
// health probe found down.
//
// A [Registry] maps dependency names to a [Strategy]. The [Dispatcher]
// implements health.Recoverer: it looks up the strategy, bounds the attempt
// with a timeout and a concurrency limit, contains panics, and logs every
// outcome. Nothing a strategy does changes the result of the cycle that
// triggered it; only the next probe can observe a repair.
//
// Built-in strategies:
//   - [Credentials] re-validates required environment variables and secret
//     references.
//   - [Reconnect] retries a connect function with exponential backoff behind
//     a circuit breaker.
//   - [Backoff] waits so the next probe retries later.
//   - [Noop] does nothing.
//
// Use [New] to build a strategy from its configured kind.
package recovery
