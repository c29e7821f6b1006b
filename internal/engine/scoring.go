package engine

import (
	"math"

	"github.com/apexflow/pumpselect/internal/model"
)

// ScoringInput is the operating condition of a validated candidate.
type ScoringInput struct {
	// OperatingRatioPct is 100 * duty flow / effective BEP flow, where the
	// effective BEP is the migrated one when the impeller was trimmed.
	OperatingRatioPct float64
	EfficiencyPct     float64
	HeadMarginPct     float64
	NPSHMarginM       float64
	TrimPct           float64
	SpeedVaried       bool
}

// Score turns a validated candidate into a weighted composite in [0,100]
// with a per-component breakdown. Pure function of its inputs; the
// composite is monotonic non-increasing in trim depth and in distance
// from BEP.
func Score(in ScoringInput, p model.ApplicationProfile) model.ScoreBreakdown {
	b := model.ScoreBreakdown{
		BEP:        bepScore(in.OperatingRatioPct, p),
		Efficiency: efficiencyScore(in.EfficiencyPct, p),
		HeadMargin: headMarginScore(in.HeadMarginPct, p),
		NPSH:       npshScore(in.NPSHMarginM, p),
	}

	composite := (p.Weights.BEP*b.BEP +
		p.Weights.Efficiency*b.Efficiency +
		p.Weights.HeadMargin*b.HeadMargin +
		p.Weights.NPSH*b.NPSH) / 100

	if excess := in.TrimPct - p.TrimPenaltyFreePct; excess > 0 {
		b.TrimPenalty = p.TrimmingPenaltyFactor * excess
	}
	if in.SpeedVaried {
		b.SpeedPenalty = p.SpeedVariationPenaltyFactor
	}

	b.Composite = clamp(composite-b.TrimPenalty-b.SpeedPenalty, 0, 100)
	return b
}

// bepScore is 100 inside the optimal band of operating ratio and decays
// linearly to 0 at the outer band.
func bepScore(ratioPct float64, p model.ApplicationProfile) float64 {
	switch {
	case ratioPct >= p.BEPOptimalMinPct && ratioPct <= p.BEPOptimalMaxPct:
		return 100
	case ratioPct < p.BEPOptimalMinPct:
		span := p.BEPOptimalMinPct - p.BEPOuterMinPct
		if span <= 0 || ratioPct <= p.BEPOuterMinPct {
			return 0
		}
		return 100 * (ratioPct - p.BEPOuterMinPct) / span
	default:
		span := p.BEPOuterMaxPct - p.BEPOptimalMaxPct
		if span <= 0 || ratioPct >= p.BEPOuterMaxPct {
			return 0
		}
		return 100 * (p.BEPOuterMaxPct - ratioPct) / span
	}
}

// efficiencyScore is piecewise linear through the profile brackets:
// min acceptable -> 0, fair -> 40, good -> 70, excellent -> 100.
func efficiencyScore(effPct float64, p model.ApplicationProfile) float64 {
	knots := []struct{ eff, score float64 }{
		{p.EffMinAcceptablePct, 0},
		{p.EffFairPct, 40},
		{p.EffGoodPct, 70},
		{p.EffExcellentPct, 100},
	}
	if effPct <= knots[0].eff {
		return 0
	}
	if effPct >= knots[len(knots)-1].eff {
		return 100
	}
	for i := 1; i < len(knots); i++ {
		if effPct <= knots[i].eff {
			lo, hi := knots[i-1], knots[i]
			span := hi.eff - lo.eff
			if span <= 0 {
				return hi.score
			}
			return lo.score + (hi.score-lo.score)*(effPct-lo.eff)/span
		}
	}
	return 100
}

// headMarginScore is 100 within the optimal margin and decays linearly to
// 0 at the acceptable maximum. A negative margin means the duty head is
// not met at all and scores 0.
func headMarginScore(marginPct float64, p model.ApplicationProfile) float64 {
	switch {
	case marginPct < 0:
		return 0
	case marginPct <= p.OptimalHeadMarginMaxPct:
		return 100
	case marginPct >= p.AcceptableHeadMarginMaxPct:
		return 0
	default:
		span := p.AcceptableHeadMarginMaxPct - p.OptimalHeadMarginMaxPct
		return 100 * (p.AcceptableHeadMarginMaxPct - marginPct) / span
	}
}

// npshScore is 100 at or above the excellent margin with a floor of 0 at
// the minimum margin.
func npshScore(marginM float64, p model.ApplicationProfile) float64 {
	switch {
	case marginM >= p.NPSHExcellentMarginM:
		return 100
	case marginM <= p.NPSHMinimumMarginM:
		return 0
	default:
		span := p.NPSHExcellentMarginM - p.NPSHMinimumMarginM
		return 100 * (marginM - p.NPSHMinimumMarginM) / span
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
