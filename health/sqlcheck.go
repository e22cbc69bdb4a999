package health

import (
	"context"
	"time"
)

// Pinger is the subset of *sql.DB used by SQLChecker.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// SQLChecker probes a database connection pool.
type SQLChecker struct {
	name string
	db   Pinger
}

// NewSQLChecker creates a checker that pings db.
func NewSQLChecker(name string, db Pinger) *SQLChecker {
	return &SQLChecker{name: name, db: db}
}

// Name returns the dependency name.
func (c *SQLChecker) Name() string {
	return c.name
}

// Check pings the database. A ping failure is down.
func (c *SQLChecker) Check(ctx context.Context) Result {
	start := time.Now()
	if err := c.db.PingContext(ctx); err != nil {
		return Down("database ping failed", err).WithLatency(time.Since(start))
	}
	return Healthy("database reachable").WithLatency(time.Since(start))
}

var _ Checker = (*SQLChecker)(nil)
