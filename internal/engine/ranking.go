package engine

import (
	"sort"

	"go.uber.org/zap"

	"github.com/apexflow/pumpselect/internal/model"
)

// Rank sorts scored candidates by composite descending, assigns tiers, and
// appends the retained rejections. Ties break by lower trim, then higher
// NPSH margin, then pump code, so the order is deterministic regardless of
// evaluation completion order.
func Rank(cands []Candidate, prof model.ApplicationProfile, logExcluded bool) []model.RankedCandidate {
	var scored []*Candidate
	var rejected []*Candidate
	for i := range cands {
		switch cands[i].State {
		case StateScored:
			scored = append(scored, &cands[i])
		case StateRejected:
			rejected = append(rejected, &cands[i])
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Breakdown.Composite != b.Breakdown.Composite {
			return a.Breakdown.Composite > b.Breakdown.Composite
		}
		if a.TrimPct != b.TrimPct {
			return a.TrimPct < b.TrimPct
		}
		if a.NPSHMarginM != b.NPSHMarginM {
			return a.NPSHMarginM > b.NPSHMarginM
		}
		return a.Pump.Code < b.Pump.Code
	})

	out := make([]model.RankedCandidate, 0, len(scored)+len(rejected))
	nearMisses := 0
	for _, c := range scored {
		tier := tierOf(c, prof)
		if tier == model.TierNearMiss {
			nearMisses++
			if nearMisses > prof.NearMissCount {
				tier = model.TierExcluded
			}
		}
		if tier == model.TierExcluded && logExcluded {
			zap.L().Info("engine: candidate excluded",
				zap.String("pump", c.Pump.Code),
				zap.Float64("score", c.Breakdown.Composite),
			)
		}
		out = append(out, model.RankedCandidate{
			PumpCode:      c.Pump.Code,
			Score:         c.Breakdown.Composite,
			Breakdown:     c.Breakdown,
			Tier:          tier,
			ImpellerMM:    c.ImpellerMM,
			TrimPct:       c.TrimPct,
			SpeedRPM:      c.SpeedRPM,
			HeadM:         c.Duty.HeadM,
			EfficiencyPct: c.Duty.EfficiencyPct,
			NPSHMarginM:   c.NPSHMarginM,
		})
	}

	// Rejections ride along for "why not X" explainability, up to the cap.
	rejCap := prof.RejectedCap
	for i, c := range rejected {
		if rejCap > 0 && i >= rejCap {
			break
		}
		reason := c.RejectionReason
		out = append(out, model.RankedCandidate{
			PumpCode:        c.Pump.Code,
			Tier:            model.TierExcluded,
			TrimPct:         c.TrimPct,
			NPSHMarginM:     c.NPSHMarginM,
			RejectionReason: &reason,
		})
	}

	return out
}

// tierOf classifies a scored candidate. An NPSH-demoted candidate never
// rises above near-miss, whatever its composite.
func tierOf(c *Candidate, prof model.ApplicationProfile) model.Tier {
	if c.NPSHDemoted {
		if c.Breakdown.Composite < prof.DiagnosticFloor {
			return model.TierExcluded
		}
		return model.TierNearMiss
	}
	switch {
	case c.Breakdown.Composite >= prof.TopRecommendationThreshold:
		return model.TierTop
	case c.Breakdown.Composite >= prof.AcceptableOptionThreshold:
		return model.TierAcceptable
	case c.Breakdown.Composite >= prof.DiagnosticFloor:
		return model.TierNearMiss
	default:
		return model.TierExcluded
	}
}
