package engine

import (
	"fmt"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/apexflow/pumpselect/internal/affinity"
	"github.com/apexflow/pumpselect/internal/curve"
	"github.com/apexflow/pumpselect/internal/model"
	"github.com/apexflow/pumpselect/internal/snapshot"
)

// State is the evaluation stage a candidate has reached.
type State string

const (
	StateNotEvaluated  State = "not_evaluated"
	StateCurveSelected State = "curve_selected"
	StateInterpolated  State = "interpolated"
	StateProjected     State = "projected"
	StateValidated     State = "validated"
	StateScored        State = "scored"
	StateRejected      State = "rejected"
)

// Candidate carries one pump through the evaluation state machine.
type Candidate struct {
	Pump  model.Pump
	State State

	ImpellerMM  float64
	SpeedRPM    float64
	TrimPct     float64
	SpeedVaried bool

	// Duty is the estimated performance at the duty flow, after any
	// projection.
	Duty          curve.Point
	EffBEPFlowM3H float64
	HeadMarginPct float64
	NPSHMarginM   float64

	// NPSHDemoted marks a candidate retained as a near-miss despite an
	// NPSH margin below the minimum.
	NPSHDemoted bool

	Breakdown       model.ScoreBreakdown
	RejectionReason string
	RejectionErr    error
}

// Rejected reports whether the candidate reached the terminal rejected state.
func (c *Candidate) Rejected() bool { return c.State == StateRejected }

func (c *Candidate) reject(err error, format string, args ...any) {
	c.State = StateRejected
	c.RejectionErr = err
	c.RejectionReason = fmt.Sprintf(format, args...)
}

// Evaluator runs the per-pump state machine against one duty point under
// one immutable config snapshot. Safe for concurrent use: it holds no
// mutable state of its own.
type Evaluator struct {
	Snap     *snapshot.Snapshot
	DutyFlow float64
	DutyHead float64
	NPSHaM   float64
}

// Evaluate drives one pump NotEvaluated -> ... -> Scored, or into the
// Rejected terminal. All failures are absorbed into the candidate; the
// batch never sees an error from here.
func (e *Evaluator) Evaluate(pump model.Pump) Candidate {
	cand := Candidate{Pump: pump, State: StateNotEvaluated}
	k := e.Snap.Constants
	prof := e.Snap.Profile
	maxExtrap := k.MustGet(model.ConstMaxExtrapolationPct)

	if err := pump.Spec.Validate(); err != nil {
		cand.reject(model.ErrCurveData, "invalid specification: %v", err)
		return cand
	}

	// NotEvaluated -> CurveSelected: probe every stock curve at the duty
	// flow and pick the tightest one that still makes the duty head.
	type probed struct {
		idx int
		pt  curve.Point
	}
	var candidates []probed
	var malformed int
	for i, c := range pump.Curves {
		pt, err := curve.AtFlow(c, e.DutyFlow, maxExtrap)
		if err != nil {
			if eris.Is(err, model.ErrCurveData) {
				malformed++
				zap.L().Warn("engine: skipping malformed curve",
					zap.String("pump", pump.Code),
					zap.Float64("impeller_mm", c.ImpellerMM),
					zap.Error(err),
				)
			}
			continue
		}
		candidates = append(candidates, probed{i, pt})
	}
	if len(candidates) == 0 {
		if malformed > 0 && malformed == len(pump.Curves) {
			cand.reject(model.ErrCurveData, "all %d curves malformed", malformed)
		} else {
			cand.reject(model.ErrOutOfEnvelope, "duty flow %.1f m3/h outside every tested curve", e.DutyFlow)
		}
		return cand
	}

	chosen := probed{idx: -1}
	maxHead := math.Inf(-1)
	for _, p := range candidates {
		if p.pt.HeadM > maxHead {
			maxHead = p.pt.HeadM
		}
		if p.pt.HeadM >= e.DutyHead && (chosen.idx == -1 || p.pt.HeadM < chosen.pt.HeadM) {
			chosen = p
		}
	}
	if chosen.idx == -1 {
		cand.reject(model.ErrOutOfEnvelope,
			"max achievable head %.1f m below duty head %.1f m", maxHead, e.DutyHead)
		return cand
	}
	selected := pump.Curves[chosen.idx]
	cand.State = StateCurveSelected

	// CurveSelected -> Interpolated.
	cand.Duty = chosen.pt
	cand.ImpellerMM = selected.ImpellerMM
	cand.SpeedRPM = selected.SpeedRPM
	cand.State = StateInterpolated

	// Interpolated -> Projected: trim or slow down when the tightest
	// stock curve still over-delivers beyond the acceptable margin.
	overPct := headMarginOf(chosen.pt.HeadM, e.DutyHead)
	switch {
	case overPct <= prof.AcceptableHeadMarginMaxPct:
		cand.EffBEPFlowM3H = e.effectiveBEPFlow(pump, selected)

	case pump.Spec.VariableDiameter:
		if !e.projectTrim(&cand, selected) {
			return cand
		}

	case pump.Spec.VariableSpeed:
		if !e.projectSpeed(&cand, selected) {
			return cand
		}

	default:
		cand.reject(model.ErrOutOfEnvelope,
			"head margin %.1f%% exceeds acceptable %.1f%% and trimming disabled",
			overPct, prof.AcceptableHeadMarginMaxPct)
		return cand
	}
	cand.State = StateProjected

	// Projected -> Validated: NPSH safety margin.
	cand.NPSHMarginM = e.NPSHaM - cand.Duty.NPSHrM
	if cand.NPSHMarginM < prof.NPSHMinimumMarginM {
		if prof.AllowNearMissNPSH {
			cand.NPSHDemoted = true
		} else {
			cand.reject(model.ErrNPSHViolation,
				"NPSH margin %.2f m below minimum %.2f m", cand.NPSHMarginM, prof.NPSHMinimumMarginM)
			return cand
		}
	}
	cand.HeadMarginPct = headMarginOf(cand.Duty.HeadM, e.DutyHead)
	cand.State = StateValidated

	// Validated -> Scored.
	opRatio := 100.0
	if cand.EffBEPFlowM3H > 0 {
		opRatio = 100 * e.DutyFlow / cand.EffBEPFlowM3H
	}
	cand.Breakdown = Score(ScoringInput{
		OperatingRatioPct: opRatio,
		EfficiencyPct:     cand.Duty.EfficiencyPct,
		HeadMarginPct:     cand.HeadMarginPct,
		NPSHMarginM:       cand.NPSHMarginM,
		TrimPct:           cand.TrimPct,
		SpeedVaried:       cand.SpeedVaried,
	}, prof)
	cand.State = StateScored
	return cand
}

// projectTrim finds the impeller trim that brings the selected curve down
// onto the duty point, projects performance to the trimmed diameter, and
// migrates the BEP. Returns false after rejecting the candidate.
func (e *Evaluator) projectTrim(cand *Candidate, selected model.Curve) bool {
	k := e.Snap.Constants
	prof := e.Snap.Profile
	maxExtrap := k.MustGet(model.ConstMaxExtrapolationPct)
	spec := cand.Pump.Spec

	r, err := e.solveTrimRatio(selected)
	if err != nil {
		cand.reject(model.ErrTrimOutOfRange, "required trim unattainable: %v", eris.Cause(err))
		return false
	}

	trimPct := (1 - r) * 100
	trimmedMM := selected.ImpellerMM * r
	if trimPct > prof.MaxAcceptableTrimPct {
		cand.reject(model.ErrTrimOutOfRange,
			"required trim %.1f%% exceeds acceptable %.1f%%", trimPct, prof.MaxAcceptableTrimPct)
		return false
	}
	if spec.MinImpellerMM > 0 && trimmedMM < spec.MinImpellerMM {
		cand.reject(model.ErrTrimOutOfRange,
			"trimmed diameter %.0f mm below minimum %.0f mm", trimmedMM, spec.MinImpellerMM)
		return false
	}

	srcFlow := e.DutyFlow / math.Pow(r, k.MustGet(model.ConstFlowDiameterExp))
	srcPt, err := curve.AtFlow(selected, srcFlow, maxExtrap)
	if err != nil {
		cand.reject(model.ErrTrimOutOfRange, "trim source point: %v", eris.Cause(err))
		return false
	}

	geom := affinity.Geometry{DiameterMM: selected.ImpellerMM, SpeedRPM: selected.SpeedRPM}
	trimmed := affinity.Geometry{DiameterMM: trimmedMM, SpeedRPM: selected.SpeedRPM}
	proj, err := affinity.Project(affinity.OperatingPoint{
		FlowM3H:       srcPt.FlowM3H,
		HeadM:         srcPt.HeadM,
		EfficiencyPct: srcPt.EfficiencyPct,
		NPSHrM:        srcPt.NPSHrM,
	}, geom, trimmed, k)
	if err != nil {
		cand.reject(model.ErrTrimOutOfRange, "%v", eris.Cause(err))
		return false
	}

	bep, err := affinity.MigrateBEP(affinity.BEP{
		FlowM3H:       spec.BEPFlowM3H,
		HeadM:         spec.BEPHeadM,
		EfficiencyPct: e.catalogBEPEfficiency(cand.Pump, selected),
	}, r, e.DutyFlow, spec.Construction, k)
	if err != nil {
		cand.reject(model.ErrTrimOutOfRange, "%v", eris.Cause(err))
		return false
	}

	cand.Duty = curve.Point{
		FlowM3H:       e.DutyFlow,
		HeadM:         proj.HeadM,
		EfficiencyPct: bep.EfficiencyPct,
		NPSHrM:        proj.NPSHrM,
	}
	cand.TrimPct = trimPct
	cand.ImpellerMM = trimmedMM
	cand.EffBEPFlowM3H = bep.FlowM3H
	return true
}

// projectSpeed slows the pump down onto the duty point for variable-speed
// specifications. Returns false after rejecting the candidate.
func (e *Evaluator) projectSpeed(cand *Candidate, selected model.Curve) bool {
	k := e.Snap.Constants
	maxExtrap := k.MustGet(model.ConstMaxExtrapolationPct)
	spec := cand.Pump.Spec

	s, err := e.solveSpeedRatio(selected, spec)
	if err != nil {
		cand.reject(model.ErrSpeedOutOfRange, "required speed unattainable: %v", eris.Cause(err))
		return false
	}
	newSpeed := selected.SpeedRPM * s
	if newSpeed < spec.MinSpeedRPM || (spec.MaxSpeedRPM > 0 && newSpeed > spec.MaxSpeedRPM) {
		cand.reject(model.ErrSpeedOutOfRange,
			"required speed %.0f rpm outside [%.0f, %.0f]", newSpeed, spec.MinSpeedRPM, spec.MaxSpeedRPM)
		return false
	}

	srcFlow := e.DutyFlow / math.Pow(s, k.MustGet(model.ConstFlowSpeedExp))
	srcPt, err := curve.AtFlow(selected, srcFlow, maxExtrap)
	if err != nil {
		cand.reject(model.ErrSpeedOutOfRange, "speed source point: %v", eris.Cause(err))
		return false
	}

	geom := affinity.Geometry{DiameterMM: selected.ImpellerMM, SpeedRPM: selected.SpeedRPM}
	slowed := affinity.Geometry{DiameterMM: selected.ImpellerMM, SpeedRPM: newSpeed}
	proj, err := affinity.Project(affinity.OperatingPoint{
		FlowM3H:       srcPt.FlowM3H,
		HeadM:         srcPt.HeadM,
		EfficiencyPct: srcPt.EfficiencyPct,
		NPSHrM:        srcPt.NPSHrM,
	}, geom, slowed, k)
	if err != nil {
		cand.reject(model.ErrSpeedOutOfRange, "%v", eris.Cause(err))
		return false
	}

	cand.Duty = curve.Point{
		FlowM3H:       e.DutyFlow,
		HeadM:         proj.HeadM,
		EfficiencyPct: srcPt.EfficiencyPct,
		NPSHrM:        proj.NPSHrM,
	}
	cand.SpeedRPM = newSpeed
	cand.SpeedVaried = true
	cand.EffBEPFlowM3H = e.effectiveBEPFlow(cand.Pump, selected) * math.Pow(s, k.MustGet(model.ConstFlowSpeedExp))
	return true
}

// solveTrimRatio finds r = D_trim/D_full so that the projected curve passes
// through the duty point. The residual is monotone increasing in r, so a
// bisection converges regardless of the exponent bracket switch.
func (e *Evaluator) solveTrimRatio(c model.Curve) (float64, error) {
	k := e.Snap.Constants
	maxExtrap := k.MustGet(model.ConstMaxExtrapolationPct)
	eQd := k.MustGet(model.ConstFlowDiameterExp)
	smallThresh := k.MustGet(model.ConstSmallTrimThresholdPct)
	eHSmall := k.MustGet(model.ConstHeadDiameterExpSmall)
	eHLarge := k.MustGet(model.ConstHeadDiameterExpLarge)

	residual := func(r float64) (float64, error) {
		srcFlow := e.DutyFlow / math.Pow(r, eQd)
		pt, err := curve.AtFlow(c, srcFlow, maxExtrap)
		if err != nil {
			return 0, err
		}
		eH := eHLarge
		if (1-r)*100 < smallThresh {
			eH = eHSmall
		}
		return pt.HeadM*math.Pow(r, eH) - e.DutyHead, nil
	}

	// Deep trims push the source flow beyond the curve's extrapolation
	// limit; back the lower bound off until it is evaluable.
	lo := 1 - k.MustGet(model.ConstMaxTrimPct)/100
	var fLo float64
	for {
		v, err := residual(lo)
		if err == nil {
			fLo = v
			break
		}
		if !eris.Is(err, model.ErrOutOfRange) {
			return 0, err
		}
		lo += 0.005
		if lo >= 1 {
			return 0, eris.Wrap(model.ErrTrimOutOfRange, "engine: no evaluable trim ratio")
		}
	}
	if fLo > 0 {
		return 0, eris.Wrapf(model.ErrTrimOutOfRange,
			"engine: still %.2f m over duty head at maximum trim", fLo)
	}

	hi := 1.0
	for i := 0; i < 80; i++ {
		mid := (lo + hi) / 2
		v, err := residual(mid)
		if err != nil {
			// Mid landed outside the curve; shrink towards the full
			// diameter where evaluation is known to succeed.
			lo = mid
			continue
		}
		if v > 0 {
			hi = mid
		} else {
			lo = mid
		}
		if hi-lo < 1e-6 {
			break
		}
	}
	return (lo + hi) / 2, nil
}

// solveSpeedRatio finds s = N2/N1 that lands the curve on the duty point.
func (e *Evaluator) solveSpeedRatio(c model.Curve, spec model.Specification) (float64, error) {
	k := e.Snap.Constants
	maxExtrap := k.MustGet(model.ConstMaxExtrapolationPct)
	eQn := k.MustGet(model.ConstFlowSpeedExp)
	eHn := k.MustGet(model.ConstHeadSpeedExp)

	residual := func(s float64) (float64, error) {
		srcFlow := e.DutyFlow / math.Pow(s, eQn)
		pt, err := curve.AtFlow(c, srcFlow, maxExtrap)
		if err != nil {
			return 0, err
		}
		return pt.HeadM*math.Pow(s, eHn) - e.DutyHead, nil
	}

	lo := 0.5
	if c.SpeedRPM > 0 && spec.MinSpeedRPM > 0 {
		lo = spec.MinSpeedRPM / c.SpeedRPM
	}
	var fLo float64
	for {
		v, err := residual(lo)
		if err == nil {
			fLo = v
			break
		}
		if !eris.Is(err, model.ErrOutOfRange) {
			return 0, err
		}
		lo += 0.01
		if lo >= 1 {
			return 0, eris.Wrap(model.ErrSpeedOutOfRange, "engine: no evaluable speed ratio")
		}
	}
	if fLo > 0 {
		return 0, eris.Wrapf(model.ErrSpeedOutOfRange,
			"engine: still %.2f m over duty head at minimum speed", fLo)
	}

	hi := 1.0
	for i := 0; i < 80; i++ {
		mid := (lo + hi) / 2
		v, err := residual(mid)
		if err != nil {
			lo = mid
			continue
		}
		if v > 0 {
			hi = mid
		} else {
			lo = mid
		}
		if hi-lo < 1e-6 {
			break
		}
	}
	return (lo + hi) / 2, nil
}

// effectiveBEPFlow returns the specification BEP flow, falling back to the
// peak-efficiency tested point when the spec does not publish one.
func (e *Evaluator) effectiveBEPFlow(pump model.Pump, c model.Curve) float64 {
	if pump.Spec.BEPFlowM3H > 0 {
		return pump.Spec.BEPFlowM3H
	}
	var bestFlow, bestEff float64
	for _, p := range c.SortedPoints() {
		if p.EfficiencyPct > bestEff {
			bestEff = p.EfficiencyPct
			bestFlow = p.FlowM3H
		}
	}
	return bestFlow
}

// catalogBEPEfficiency estimates the efficiency at the catalog BEP from the
// full-diameter curve.
func (e *Evaluator) catalogBEPEfficiency(pump model.Pump, c model.Curve) float64 {
	maxExtrap := e.Snap.Constants.MustGet(model.ConstMaxExtrapolationPct)
	if pump.Spec.BEPFlowM3H > 0 {
		if pt, err := curve.AtFlow(c, pump.Spec.BEPFlowM3H, maxExtrap); err == nil {
			return pt.EfficiencyPct
		}
	}
	var bestEff float64
	for _, p := range c.Points {
		if p.EfficiencyPct > bestEff {
			bestEff = p.EfficiencyPct
		}
	}
	return bestEff
}

func headMarginOf(headM, dutyHeadM float64) float64 {
	if dutyHeadM <= 0 {
		return 0
	}
	return (headM - dutyHeadM) / dutyHeadM * 100
}
