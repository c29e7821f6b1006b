package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/apexflow/pumpselect/internal/catalog"
	"github.com/apexflow/pumpselect/internal/engine"
	"github.com/apexflow/pumpselect/internal/resilience"
)

func initStore(ctx context.Context) (catalog.Store, error) {
	var base catalog.Store
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.Path
		if path == "" {
			path = "pumpselect.db"
		}
		s, err := catalog.NewSQLite(path)
		if err != nil {
			return nil, err
		}
		base = s
	case "postgres":
		s, err := catalog.NewPostgres(ctx, cfg.Store.DatabaseURL, &catalog.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
		if err != nil {
			return nil, err
		}
		base = s
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}

	retryCfg := resilience.FromConfig(
		cfg.Retry.MaxAttempts,
		cfg.Retry.InitialBackoffMs,
		cfg.Retry.MaxBackoffMs,
		cfg.Retry.Multiplier,
		cfg.Retry.JitterFraction,
	)
	breakerCfg := resilience.FromCircuitConfig(cfg.Retry.FailureThreshold, cfg.Retry.ResetTimeoutSecs)
	breakerCfg.ShouldTrip = resilience.IsTransient
	breaker := resilience.NewCircuitBreaker(breakerCfg)
	return catalog.WithRetry(base, retryCfg, breaker), nil
}

func initEngine(store catalog.Store) *engine.Engine {
	return engine.New(store, engine.Options{
		Workers: cfg.Engine.Workers,
		Timeout: time.Duration(cfg.Engine.TimeoutSecs) * time.Second,
	})
}
