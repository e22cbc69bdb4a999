// Command healthmon probes the configured dependencies on a fixed interval,
// attempts recovery for the ones found down, and serves the aggregated
// health over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonwraymond/healthmon/config"
	"github.com/jonwraymond/healthmon/health"
	"github.com/jonwraymond/healthmon/observe"
	"github.com/jonwraymond/healthmon/recovery"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "healthmon: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	obs, err := observe.NewObserver(ctx, cfg.ObserverConfig(version))
	if err != nil {
		return fmt.Errorf("create observer: %w", err)
	}
	inst, err := observe.InstrumentsFromObserver(obs)
	if err != nil {
		return fmt.Errorf("create instruments: %w", err)
	}
	log := inst.Logger

	deps, err := buildDependencies(cfg, recovery.ReconnectConfig{})
	if err != nil {
		return err
	}
	defer deps.Close()

	dispatcher := recovery.NewDispatcher(deps.registry, recovery.DispatcherConfig{
		Timeout:       cfg.Recovery.Timeout,
		MaxConcurrent: cfg.Recovery.MaxConcurrent,
	}, inst)

	prober, err := health.NewProber(health.ProberConfig{
		Timeout:       cfg.Monitor.Timeout,
		MaxConcurrent: cfg.Monitor.MaxConcurrent,
	}, deps.checkers,
		health.WithProbeMetrics(inst.Metrics),
		health.WithProbeTracer(inst.Tracer),
	)
	if err != nil {
		return fmt.Errorf("create prober: %w", err)
	}

	monitor := health.NewMonitor(prober,
		health.WithInterval(cfg.Monitor.Interval),
		health.WithRecoverer(dispatcher),
		health.WithLogger(log),
		health.WithMetrics(inst.Metrics),
		health.WithTracer(inst.Tracer),
	)
	monitor.Start(ctx)

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           newRouter(cfg, monitor, obs.MetricsHandler(), log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	srvErrCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "http server listening", observe.Field{Key: "address", Value: cfg.Server.Address})
		srvErrCh <- srv.ListenAndServe()
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info(context.Background(), "shutting down")
	case err := <-srvErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	monitor.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "http server shutdown failed", observe.Field{Key: "error", Value: err})
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "telemetry shutdown failed", observe.Field{Key: "error", Value: err})
	}

	return runErr
}
