// Package catalog provides the record-store contracts for pumps, curves,
// configuration entities and decision traces, with SQLite and Postgres
// implementations.
package catalog

import (
	"context"

	"github.com/apexflow/pumpselect/internal/model"
)

// PumpFilter narrows ListCandidatePumps. Zero values mean "no constraint".
type PumpFilter struct {
	Application string   `json:"application,omitempty"`
	MinFlowM3H  float64  `json:"min_flow_m3h,omitempty"`
	MaxFlowM3H  float64  `json:"max_flow_m3h,omitempty"`
	Codes       []string `json:"codes,omitempty"`
	Limit       int      `json:"limit,omitempty"`
}

// TraceFilter narrows ListTraces.
type TraceFilter struct {
	SessionID string `json:"session_id,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
}

// Store is the persistence contract for the selection engine. The engine
// only reads catalog and configuration rows and appends decision traces;
// configuration rows are written by the external admin workflow (and by
// seeding / import commands here).
type Store interface {
	// Catalog reads.
	GetPump(ctx context.Context, code string) (*model.Pump, error)
	ListCandidatePumps(ctx context.Context, filter PumpFilter) ([]model.Pump, error)
	GetConstants(ctx context.Context) (model.ConstantSet, error)

	// Configuration reads.
	GetActiveProfile(ctx context.Context) (*model.ApplicationProfile, error)
	GetActiveBrainConfig(ctx context.Context) (*model.BrainConfiguration, error)
	GetActiveCorrections(ctx context.Context, pumpCode string) ([]model.DataCorrection, error)
	ListProfiles(ctx context.Context) ([]model.ApplicationProfile, error)

	// Decision traces: append-only.
	SaveTrace(ctx context.Context, trace *model.DecisionTrace) error
	GetTrace(ctx context.Context, id string) (*model.DecisionTrace, error)
	ListTraces(ctx context.Context, filter TraceFilter) ([]model.DecisionTrace, error)

	// Admin-side writes, used by seeding and import commands.
	SavePump(ctx context.Context, pump model.Pump) error
	SaveProfile(ctx context.Context, profile model.ApplicationProfile) error
	SaveBrainConfig(ctx context.Context, cfg model.BrainConfiguration) error
	SaveCorrection(ctx context.Context, c model.DataCorrection) error
	SaveConstant(ctx context.Context, c model.EngineeringConstant) error

	// Lifecycle.
	Migrate(ctx context.Context) error
	Close() error
}

// BulkImporter is implemented by stores with a fast bulk-load path for
// whole catalog files. Callers fall back to per-pump SavePump when the
// store does not provide one. Returns the number of curve rows written.
type BulkImporter interface {
	ImportPumps(ctx context.Context, pumps []model.Pump) (int64, error)
}

// ImportPumps loads a batch of pumps through the store's bulk path when it
// has one, or pump by pump otherwise.
func ImportPumps(ctx context.Context, store Store, pumps []model.Pump) (int64, error) {
	if imp, ok := store.(BulkImporter); ok {
		return imp.ImportPumps(ctx, pumps)
	}
	var n int64
	for _, p := range pumps {
		if err := store.SavePump(ctx, p); err != nil {
			return n, err
		}
		n += int64(len(p.Curves))
	}
	return n, nil
}
