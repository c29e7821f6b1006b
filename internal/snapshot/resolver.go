package snapshot

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/apexflow/pumpselect/internal/model"
)

// Source is the read-side contract the resolver needs from the record
// store. The store mutates only through the external admin workflow; the
// resolver just reads whatever is current at resolve time.
type Source interface {
	GetActiveProfile(ctx context.Context) (*model.ApplicationProfile, error)
	GetActiveBrainConfig(ctx context.Context) (*model.BrainConfiguration, error)
	GetActiveCorrections(ctx context.Context, pumpCode string) ([]model.DataCorrection, error)
}

// Resolve merges, in order: the active application profile, the scoring and
// constant overrides of the production+active brain configuration, and the
// active time-valid corrections for the given pumps. A missing profile or
// a weight-invariant violation aborts the run as a configuration error.
func Resolve(ctx context.Context, src Source, constants model.ConstantSet, pumpCodes []string, now time.Time) (*Snapshot, error) {
	prof, err := src.GetActiveProfile(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "snapshot: get active profile")
	}
	if prof == nil {
		return nil, model.ErrNoActiveProfile
	}
	profile := *prof

	snap := &Snapshot{
		Constants:   constants,
		LogicFlags:  map[string]bool{},
		ResolvedAt:  now,
		corrections: map[string][]model.DataCorrection{},
	}

	bc, err := src.GetActiveBrainConfig(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "snapshot: get active brain config")
	}
	if bc != nil {
		snap.BrainConfigID = bc.ID
		for key, val := range bc.ScoringOverrides {
			if !applyScoringOverride(&profile, key, val) {
				zap.L().Warn("snapshot: unknown scoring override skipped",
					zap.String("brain_config", bc.ID),
					zap.String("key", key),
				)
			}
		}
		for name, val := range bc.ConstantOverrides {
			next, oErr := snap.Constants.WithOverride(name, val)
			if oErr != nil {
				zap.L().Warn("snapshot: constant override skipped",
					zap.String("brain_config", bc.ID),
					zap.String("constant", name),
					zap.Error(oErr),
				)
				continue
			}
			snap.Constants = next
		}
		for name, val := range bc.LogicFlags {
			snap.LogicFlags[name] = val
		}
		if v, ok := bc.LogicFlags[FlagAllowNearMissNPSH]; ok {
			profile.AllowNearMissNPSH = v
		}
	}

	if err := profile.Validate(); err != nil {
		return nil, eris.Wrap(err, "snapshot: resolved profile invalid")
	}
	snap.Profile = profile

	for _, code := range pumpCodes {
		cs, cErr := src.GetActiveCorrections(ctx, code)
		if cErr != nil {
			return nil, eris.Wrapf(cErr, "snapshot: corrections for %s", code)
		}
		var valid []model.DataCorrection
		for _, c := range cs {
			if c.AppliesAt(now) {
				valid = append(valid, c)
			}
		}
		if len(valid) > 0 {
			snap.corrections[code] = valid
		}
	}

	return snap, nil
}

// applyScoringOverride writes one override into the profile. Returns false
// for unrecognized keys; the caller logs and continues, since a stale key in
// an approved bundle must not take the whole run down.
func applyScoringOverride(p *model.ApplicationProfile, key string, val float64) bool {
	switch key {
	case "weights.bep":
		p.Weights.BEP = val
	case "weights.efficiency":
		p.Weights.Efficiency = val
	case "weights.head_margin":
		p.Weights.HeadMargin = val
	case "weights.npsh":
		p.Weights.NPSH = val
	case "bep_optimal_min_pct":
		p.BEPOptimalMinPct = val
	case "bep_optimal_max_pct":
		p.BEPOptimalMaxPct = val
	case "bep_outer_min_pct":
		p.BEPOuterMinPct = val
	case "bep_outer_max_pct":
		p.BEPOuterMaxPct = val
	case "eff_min_acceptable_pct":
		p.EffMinAcceptablePct = val
	case "eff_fair_pct":
		p.EffFairPct = val
	case "eff_good_pct":
		p.EffGoodPct = val
	case "eff_excellent_pct":
		p.EffExcellentPct = val
	case "optimal_head_margin_max_pct":
		p.OptimalHeadMarginMaxPct = val
	case "acceptable_head_margin_max_pct":
		p.AcceptableHeadMarginMaxPct = val
	case "npsh_excellent_margin_m":
		p.NPSHExcellentMarginM = val
	case "npsh_minimum_margin_m":
		p.NPSHMinimumMarginM = val
	case "max_acceptable_trim_pct":
		p.MaxAcceptableTrimPct = val
	case "trim_penalty_free_pct":
		p.TrimPenaltyFreePct = val
	case "trimming_penalty_factor":
		p.TrimmingPenaltyFactor = val
	case "speed_variation_penalty_factor":
		p.SpeedVariationPenaltyFactor = val
	case "top_recommendation_threshold":
		p.TopRecommendationThreshold = val
	case "acceptable_option_threshold":
		p.AcceptableOptionThreshold = val
	case "diagnostic_floor":
		p.DiagnosticFloor = val
	case "near_miss_count":
		p.NearMissCount = int(val)
	case "rejected_cap":
		p.RejectedCap = int(val)
	default:
		return false
	}
	return true
}
