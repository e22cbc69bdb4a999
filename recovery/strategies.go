package recovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sony/gobreaker"

	"github.com/jonwraymond/healthmon/health"
	"github.com/jonwraymond/healthmon/secret"
)

// Strategy kinds accepted by New.
const (
	KindCredentials = "credentials"
	KindReconnect   = "reconnect"
	KindBackoff     = "backoff"
	KindNone        = "none"
)

// CredentialResolver checks that secret references resolve.
type CredentialResolver interface {
	Require(ctx context.Context, refs []string) error
}

// Credentials re-validates the credentials a dependency needs.
type Credentials struct {
	resolver CredentialResolver
	refs     []string
}

// NewCredentials creates a credentials strategy over refs. A nil resolver
// uses the env and file providers.
func NewCredentials(resolver CredentialResolver, refs []string) *Credentials {
	if resolver == nil {
		resolver = secret.NewResolver()
	}
	return &Credentials{resolver: resolver, refs: append([]string(nil), refs...)}
}

// Name returns KindCredentials.
func (c *Credentials) Name() string { return KindCredentials }

// Recover fails with ErrMissingCredentials when any reference is unresolved.
func (c *Credentials) Recover(ctx context.Context, _ health.Result) error {
	if err := c.resolver.Require(ctx, c.refs); err != nil {
		return fmt.Errorf("%w: %w", ErrMissingCredentials, err)
	}
	return nil
}

// ConnectFunc opens and verifies a connection to a dependency.
type ConnectFunc func(ctx context.Context) error

// DialTCP returns a ConnectFunc that dials addr and closes the connection.
func DialTCP(addr string) ConnectFunc {
	return func(ctx context.Context) error {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return err
		}
		return conn.Close()
	}
}

// ReconnectConfig configures the reconnect strategy.
type ReconnectConfig struct {
	// MaxTries bounds connect attempts within one recovery.
	// Default: 3
	MaxTries uint

	// InitialInterval is the first backoff delay.
	// Default: 100ms
	InitialInterval time.Duration

	// MaxInterval caps the backoff delay.
	// Default: 2s
	MaxInterval time.Duration

	// FailureThreshold is the number of consecutive failed recoveries that
	// opens the circuit.
	// Default: 3
	FailureThreshold uint32

	// OpenTimeout is how long the circuit stays open.
	// Default: 1 minute
	OpenTimeout time.Duration
}

func (c *ReconnectConfig) applyDefaults() {
	if c.MaxTries == 0 {
		c.MaxTries = 3
	}
	if c.InitialInterval <= 0 {
		c.InitialInterval = 100 * time.Millisecond
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = 2 * time.Second
	}
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 3
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = time.Minute
	}
}

// Reconnect re-attempts a connection with exponential backoff. A circuit
// breaker per strategy stops attempts for a dependency that keeps failing.
type Reconnect struct {
	connect ConnectFunc
	config  ReconnectConfig
	breaker *gobreaker.CircuitBreaker
}

// NewReconnect creates a reconnect strategy for dependency.
func NewReconnect(dependency string, connect ConnectFunc, config ReconnectConfig) *Reconnect {
	config.applyDefaults()
	threshold := config.FailureThreshold
	return &Reconnect{
		connect: connect,
		config:  config,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        dependency,
			MaxRequests: 1,
			Timeout:     config.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
		}),
	}
}

// Name returns KindReconnect.
func (r *Reconnect) Name() string { return KindReconnect }

// State reports the circuit state: closed, half-open or open.
func (r *Reconnect) State() string { return r.breaker.State().String() }

// Recover runs the connect function until it succeeds or tries run out.
func (r *Reconnect) Recover(ctx context.Context, _ health.Result) error {
	if r.connect == nil {
		return errors.New("recovery: reconnect has no connect function")
	}

	_, err := r.breaker.Execute(func() (interface{}, error) {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = r.config.InitialInterval
		b.MaxInterval = r.config.MaxInterval

		return backoff.Retry(ctx, func() (struct{}, error) {
			if err := r.connect(ctx); err != nil {
				if ctx.Err() != nil {
					return struct{}{}, backoff.Permanent(err)
				}
				return struct{}{}, err
			}
			return struct{}{}, nil
		}, backoff.WithBackOff(b), backoff.WithMaxTries(r.config.MaxTries))
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s", ErrCircuitOpen, r.breaker.Name())
	}
	return err
}

// Backoff waits before the next probe retries the dependency.
type Backoff struct {
	delay time.Duration
}

// NewBackoff creates a backoff strategy. Non-positive delays use 1 second.
func NewBackoff(delay time.Duration) *Backoff {
	if delay <= 0 {
		delay = time.Second
	}
	return &Backoff{delay: delay}
}

// Name returns KindBackoff.
func (b *Backoff) Name() string { return KindBackoff }

// Recover waits for the delay or until ctx is done.
func (b *Backoff) Recover(ctx context.Context, _ health.Result) error {
	timer := time.NewTimer(b.delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Noop does nothing.
type Noop struct{}

// Name returns KindNone.
func (Noop) Name() string { return KindNone }

// Recover returns nil.
func (Noop) Recover(context.Context, health.Result) error { return nil }

// Params carries what a strategy factory may need for one dependency.
type Params struct {
	Dependency  string
	RequiredEnv []string
	Resolver    CredentialResolver
	Connect     ConnectFunc
	Reconnect   ReconnectConfig
	Delay       time.Duration
}

// Factory builds a strategy from params.
type Factory func(Params) (Strategy, error)

var factories = map[string]Factory{
	KindCredentials: func(p Params) (Strategy, error) {
		return NewCredentials(p.Resolver, p.RequiredEnv), nil
	},
	KindReconnect: func(p Params) (Strategy, error) {
		if p.Connect == nil {
			return nil, fmt.Errorf("recovery: reconnect for %q needs a connect function", p.Dependency)
		}
		return NewReconnect(p.Dependency, p.Connect, p.Reconnect), nil
	},
	KindBackoff: func(p Params) (Strategy, error) {
		return NewBackoff(p.Delay), nil
	},
	KindNone: func(Params) (Strategy, error) {
		return Noop{}, nil
	},
}

// New builds the strategy of the given kind.
func New(kind string, p Params) (Strategy, error) {
	f, ok := factories[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, kind)
	}
	return f(p)
}

// Kinds returns the accepted strategy kinds.
func Kinds() []string {
	return []string{KindCredentials, KindReconnect, KindBackoff, KindNone}
}
