package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/jonwraymond/healthmon/config"
	"github.com/jonwraymond/healthmon/health"
	"github.com/jonwraymond/healthmon/recovery"
	"github.com/jonwraymond/healthmon/secret"
)

// dependencies holds the checkers and strategies built from configuration
// together with the clients they share.
type dependencies struct {
	checkers []health.Checker
	registry *recovery.Registry
	closers  []io.Closer
}

// Close releases every client opened for the dependencies.
func (d *dependencies) Close() error {
	var errs []error
	for _, c := range d.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func buildDependencies(cfg *config.Config, reconnect recovery.ReconnectConfig) (*dependencies, error) {
	deps := &dependencies{registry: recovery.NewRegistry()}
	resolver := secret.NewResolver()
	client := &http.Client{}

	for _, dc := range cfg.Dependencies {
		checker, connect, err := deps.newChecker(dc, client)
		if err != nil {
			_ = deps.Close()
			return nil, fmt.Errorf("dependency %q: %w", dc.Name, err)
		}
		deps.checkers = append(deps.checkers, checker)

		strategy, err := recovery.New(dc.Recovery, recovery.Params{
			Dependency:  dc.Name,
			RequiredEnv: dc.RequiredEnv,
			Resolver:    resolver,
			Connect:     connect,
			Reconnect:   reconnect,
			Delay:       cfg.Recovery.BackoffDelay,
		})
		if err != nil {
			_ = deps.Close()
			return nil, fmt.Errorf("dependency %q: %w", dc.Name, err)
		}
		if err := deps.registry.Register(dc.Name, strategy); err != nil {
			_ = deps.Close()
			return nil, err
		}
	}

	return deps, nil
}

// newChecker builds the checker for dc and the connect function a
// reconnect strategy would use for it.
func (d *dependencies) newChecker(dc config.DependencyConfig, client *http.Client) (health.Checker, recovery.ConnectFunc, error) {
	switch dc.Kind {
	case config.KindHTTP:
		addr, err := dc.Address()
		if err != nil {
			return nil, nil, err
		}
		checker := health.NewHTTPChecker(dc.Name, health.HTTPCheckerConfig{URL: dc.Target, Client: client})
		return checker, recovery.DialTCP(addr), nil

	case config.KindPostgres:
		db, err := sql.Open("postgres", dc.Target)
		if err != nil {
			return nil, nil, err
		}
		d.closers = append(d.closers, db)
		return health.NewSQLChecker(dc.Name, db), db.PingContext, nil

	case config.KindRedis:
		rdb := redis.NewClient(&redis.Options{Addr: dc.Target})
		d.closers = append(d.closers, rdb)
		connect := func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}
		return health.NewRedisChecker(dc.Name, rdb), connect, nil

	default:
		return nil, nil, fmt.Errorf("unknown dependency kind %q", dc.Kind)
	}
}
