package catalog

import (
	"context"

	"github.com/apexflow/pumpselect/internal/model"
	"github.com/apexflow/pumpselect/internal/resilience"
)

// RetryingStore decorates a Store with retry and circuit breaking on the
// selection-path reads. Writes pass through untouched: traces are
// append-only and admin upserts surface their errors to the operator.
type RetryingStore struct {
	inner   Store
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
}

// WithRetry wraps store so transient database failures are retried and
// sustained outages fail fast.
func WithRetry(store Store, retry resilience.RetryConfig, breaker *resilience.CircuitBreaker) *RetryingStore {
	if breaker == nil {
		cfg := resilience.DefaultCircuitBreakerConfig()
		// Not-found and validation errors are the caller's problem, not a
		// database outage; they must not trip the breaker.
		cfg.ShouldTrip = resilience.IsTransient
		breaker = resilience.NewCircuitBreaker(cfg)
	}
	return &RetryingStore{inner: store, retry: retry, breaker: breaker}
}

func read[T any](ctx context.Context, s *RetryingStore, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg := s.retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger("catalog", op)
	}
	return resilience.ExecuteVal(ctx, s.breaker, func(ctx context.Context) (T, error) {
		return resilience.DoVal(ctx, cfg, fn)
	})
}

func (s *RetryingStore) GetPump(ctx context.Context, code string) (*model.Pump, error) {
	return read(ctx, s, "get_pump", func(ctx context.Context) (*model.Pump, error) {
		return s.inner.GetPump(ctx, code)
	})
}

func (s *RetryingStore) ListCandidatePumps(ctx context.Context, filter PumpFilter) ([]model.Pump, error) {
	return read(ctx, s, "list_candidate_pumps", func(ctx context.Context) ([]model.Pump, error) {
		return s.inner.ListCandidatePumps(ctx, filter)
	})
}

func (s *RetryingStore) GetConstants(ctx context.Context) (model.ConstantSet, error) {
	return read(ctx, s, "get_constants", func(ctx context.Context) (model.ConstantSet, error) {
		return s.inner.GetConstants(ctx)
	})
}

func (s *RetryingStore) GetActiveProfile(ctx context.Context) (*model.ApplicationProfile, error) {
	return read(ctx, s, "get_active_profile", func(ctx context.Context) (*model.ApplicationProfile, error) {
		return s.inner.GetActiveProfile(ctx)
	})
}

func (s *RetryingStore) ListProfiles(ctx context.Context) ([]model.ApplicationProfile, error) {
	return read(ctx, s, "list_profiles", func(ctx context.Context) ([]model.ApplicationProfile, error) {
		return s.inner.ListProfiles(ctx)
	})
}

func (s *RetryingStore) GetActiveBrainConfig(ctx context.Context) (*model.BrainConfiguration, error) {
	return read(ctx, s, "get_active_brain_config", func(ctx context.Context) (*model.BrainConfiguration, error) {
		return s.inner.GetActiveBrainConfig(ctx)
	})
}

func (s *RetryingStore) GetActiveCorrections(ctx context.Context, pumpCode string) ([]model.DataCorrection, error) {
	return read(ctx, s, "get_active_corrections", func(ctx context.Context) ([]model.DataCorrection, error) {
		return s.inner.GetActiveCorrections(ctx, pumpCode)
	})
}

func (s *RetryingStore) GetTrace(ctx context.Context, id string) (*model.DecisionTrace, error) {
	return read(ctx, s, "get_trace", func(ctx context.Context) (*model.DecisionTrace, error) {
		return s.inner.GetTrace(ctx, id)
	})
}

func (s *RetryingStore) ListTraces(ctx context.Context, filter TraceFilter) ([]model.DecisionTrace, error) {
	return read(ctx, s, "list_traces", func(ctx context.Context) ([]model.DecisionTrace, error) {
		return s.inner.ListTraces(ctx, filter)
	})
}

func (s *RetryingStore) SaveTrace(ctx context.Context, trace *model.DecisionTrace) error {
	return s.inner.SaveTrace(ctx, trace)
}

func (s *RetryingStore) SavePump(ctx context.Context, pump model.Pump) error {
	return s.inner.SavePump(ctx, pump)
}

// ImportPumps exposes the wrapped store's bulk-load path through the
// retry wrapper so import commands keep it when the store is decorated.
func (s *RetryingStore) ImportPumps(ctx context.Context, pumps []model.Pump) (int64, error) {
	return ImportPumps(ctx, s.inner, pumps)
}

func (s *RetryingStore) SaveProfile(ctx context.Context, profile model.ApplicationProfile) error {
	return s.inner.SaveProfile(ctx, profile)
}

func (s *RetryingStore) SaveBrainConfig(ctx context.Context, cfg model.BrainConfiguration) error {
	return s.inner.SaveBrainConfig(ctx, cfg)
}

func (s *RetryingStore) SaveCorrection(ctx context.Context, c model.DataCorrection) error {
	return s.inner.SaveCorrection(ctx, c)
}

func (s *RetryingStore) SaveConstant(ctx context.Context, c model.EngineeringConstant) error {
	return s.inner.SaveConstant(ctx, c)
}

func (s *RetryingStore) Migrate(ctx context.Context) error {
	return s.inner.Migrate(ctx)
}

func (s *RetryingStore) Close() error {
	return s.inner.Close()
}
