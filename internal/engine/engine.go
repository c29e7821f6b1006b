// Package engine evaluates catalog pumps against a hydraulic duty point
// and produces a ranked, tiered recommendation with a full decision trace.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/apexflow/pumpselect/internal/catalog"
	"github.com/apexflow/pumpselect/internal/model"
	"github.com/apexflow/pumpselect/internal/snapshot"
)

// Options tunes the orchestrator.
type Options struct {
	// Workers bounds the per-candidate fan-out. Defaults to 8.
	Workers int
	// Timeout bounds one selection run. Zero means no engine-imposed
	// deadline beyond the caller's context.
	Timeout time.Duration
}

// SelectionRequest is one duty point plus run parameters.
type SelectionRequest struct {
	DutyFlowM3H float64 `json:"duty_flow_m3h"`
	DutyHeadM   float64 `json:"duty_head_m"`
	NPSHaM      float64 `json:"npsha_m"`

	FluidDensityKGM3  float64 `json:"fluid_density_kgm3,omitempty"`
	FluidViscosityCST float64 `json:"fluid_viscosity_cst,omitempty"`
	Application       string  `json:"application,omitempty"`
	MaxResults        int     `json:"max_results,omitempty"`
	SessionID         string  `json:"session_id,omitempty"`
}

// SelectionResult is the caller-facing outcome of one run. The trace holds
// the complete ranking; Ranked is truncated to MaxResults.
type SelectionResult struct {
	Ranked   []model.RankedCandidate `json:"ranked_candidates"`
	Selected string                  `json:"selected,omitempty"`
	TraceID  string                  `json:"trace_id"`
	Partial  bool                    `json:"partial"`
	Warnings []string                `json:"warnings,omitempty"`
}

// Engine orchestrates selection runs against a catalog store.
type Engine struct {
	store catalog.Store
	opts  Options
}

// New creates an Engine.
func New(store catalog.Store, opts Options) *Engine {
	if opts.Workers <= 0 {
		opts.Workers = 8
	}
	return &Engine{store: store, opts: opts}
}

// Select evaluates every candidate pump against the duty point, ranks the
// survivors, records a decision trace, and returns the ranking. Only a
// configuration error aborts the run; every per-candidate failure is
// absorbed into the ranking as a rejection.
func (e *Engine) Select(ctx context.Context, req SelectionRequest) (*SelectionResult, error) {
	if req.DutyFlowM3H <= 0 || req.DutyHeadM <= 0 {
		return nil, eris.Errorf("engine: invalid duty point (%.2f m3/h, %.2f m)", req.DutyFlowM3H, req.DutyHeadM)
	}
	start := time.Now()

	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	pumps, err := e.store.ListCandidatePumps(ctx, catalog.PumpFilter{
		Application: req.Application,
	})
	if err != nil {
		return nil, eris.Wrap(err, "engine: list candidate pumps")
	}

	constants, err := e.store.GetConstants(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "engine: load engineering constants")
	}
	if len(constants) == 0 {
		constants = model.DefaultConstants()
	}

	codes := make([]string, len(pumps))
	for i, p := range pumps {
		codes[i] = p.Code
	}
	snap, err := snapshot.Resolve(ctx, e.store, constants, codes, time.Now())
	if err != nil {
		return nil, eris.Wrap(err, "engine: resolve config snapshot")
	}

	ev := &Evaluator{
		Snap:     snap,
		DutyFlow: req.DutyFlowM3H,
		DutyHead: req.DutyHeadM,
		NPSHaM:   req.NPSHaM,
	}

	// Fan out per candidate; results land by catalog index so the later
	// sort sees a deterministic order whatever the completion order was.
	results := make([]Candidate, len(pumps))
	var correctionsApplied []string
	corrCh := make(chan []string, len(pumps))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i, pump := range pumps {
		g.Go(func() error {
			if gctx.Err() != nil {
				// Timed out before this candidate ran; leave it
				// NotEvaluated for the partial result.
				results[i] = Candidate{Pump: pump, State: StateNotEvaluated}
				return nil
			}
			p := pump
			if cs := snap.CorrectionsFor(p.Code); len(cs) > 0 {
				p = clonePump(p)
				if applied := snapshot.ApplyCorrections(&p, cs); len(applied) > 0 {
					corrCh <- applied
				}
			}
			results[i] = ev.Evaluate(p)
			return nil
		})
	}
	_ = g.Wait() // evaluation absorbs its own failures
	close(corrCh)
	for applied := range corrCh {
		correctionsApplied = append(correctionsApplied, applied...)
	}

	var warnings []string
	partial := false
	if ctx.Err() != nil {
		partial = true
		warnings = append(warnings, "evaluation timed out; ranking computed from completed candidates only")
	}

	ranked := Rank(results, snap.Profile, snap.Flag(snapshot.FlagLogExcluded))

	trace := &model.DecisionTrace{
		ID:                 uuid.New().String(),
		SessionID:          req.SessionID,
		DutyFlow:           req.DutyFlowM3H,
		DutyHead:           req.DutyHeadM,
		NPSHaM:             req.NPSHaM,
		SnapshotJSON:       snap.JSON(),
		CorrectionsApplied: correctionsApplied,
		Rankings:           ranked,
		Rationale:          rationale(ranked, len(pumps)),
		ElapsedMS:          time.Since(start).Milliseconds(),
		Warnings:           warnings,
		Partial:            partial,
		CreatedAt:          time.Now().UTC(),
	}
	if top := topPick(ranked); top != "" {
		trace.SelectedPump = top
	}

	// Append-only, strictly after ranking. Use a fresh context so a run
	// timeout cannot truncate the audit write.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := e.store.SaveTrace(saveCtx, trace); err != nil {
		return nil, eris.Wrap(err, "engine: save decision trace")
	}

	zap.L().Info("engine: selection complete",
		zap.String("trace_id", trace.ID),
		zap.Float64("duty_flow_m3h", req.DutyFlowM3H),
		zap.Float64("duty_head_m", req.DutyHeadM),
		zap.Int("candidates", len(pumps)),
		zap.Int("ranked", len(ranked)),
		zap.String("selected", trace.SelectedPump),
		zap.Bool("partial", partial),
		zap.Int64("elapsed_ms", trace.ElapsedMS),
	)

	visible := ranked
	if req.MaxResults > 0 && len(visible) > req.MaxResults {
		visible = visible[:req.MaxResults]
	}
	return &SelectionResult{
		Ranked:   visible,
		Selected: trace.SelectedPump,
		TraceID:  trace.ID,
		Partial:  partial,
		Warnings: warnings,
	}, nil
}

// Explain returns the immutable trace of a past run.
func (e *Engine) Explain(ctx context.Context, traceID string) (*model.DecisionTrace, error) {
	trace, err := e.store.GetTrace(ctx, traceID)
	if err != nil {
		return nil, eris.Wrapf(err, "engine: explain %s", traceID)
	}
	return trace, nil
}

// topPick returns the best non-rejected candidate, or "".
func topPick(ranked []model.RankedCandidate) string {
	for _, r := range ranked {
		if r.RejectionReason == nil && r.Tier != model.TierExcluded {
			return r.PumpCode
		}
	}
	return ""
}

// rationale renders a short human-readable summary for the trace.
func rationale(ranked []model.RankedCandidate, evaluated int) string {
	var scored, rejected int
	for _, r := range ranked {
		if r.RejectionReason != nil {
			rejected++
		} else {
			scored++
		}
	}
	top := topPick(ranked)
	if top == "" {
		return fmt.Sprintf("no candidate met the duty point (%d evaluated, %d rejected)", evaluated, rejected)
	}
	var b strings.Builder
	for _, r := range ranked {
		if r.PumpCode != top {
			continue
		}
		fmt.Fprintf(&b, "%s selected with score %.1f (%s tier)", top, r.Score, r.Tier)
		if r.TrimPct > 0 {
			fmt.Fprintf(&b, ", trimmed %.1f%%", r.TrimPct)
		}
		fmt.Fprintf(&b, "; %d candidates scored, %d rejected", scored, rejected)
		break
	}
	return b.String()
}

// clonePump deep-copies a pump so corrections never touch the catalog row.
func clonePump(p model.Pump) model.Pump {
	out := p
	out.Curves = make([]model.Curve, len(p.Curves))
	for i, c := range p.Curves {
		out.Curves[i] = c
		out.Curves[i].Points = make([]model.CurvePoint, len(c.Points))
		copy(out.Curves[i].Points, c.Points)
	}
	return out
}
