package model

import (
	"math"

	"github.com/rotisserie/eris"
)

// weightTolerance is the allowed deviation of the weight sum from 100.
const weightTolerance = 0.01

// ProfileWeights holds the four scoring weights. They must sum to 100
// within tolerance; a profile violating this aborts the run.
type ProfileWeights struct {
	BEP        float64 `json:"bep" yaml:"bep"`
	Efficiency float64 `json:"efficiency" yaml:"efficiency"`
	HeadMargin float64 `json:"head_margin" yaml:"head_margin"`
	NPSH       float64 `json:"npsh" yaml:"npsh"`
}

// Sum returns the total weight.
func (w ProfileWeights) Sum() float64 {
	return w.BEP + w.Efficiency + w.HeadMargin + w.NPSH
}

// ApplicationProfile bundles the weights and thresholds that turn a
// validated candidate into a score and a tier. Exactly one profile is
// active per run.
type ApplicationProfile struct {
	ID          string         `json:"id" yaml:"id"`
	Name        string         `json:"name" yaml:"name"`
	Application string         `json:"application" yaml:"application"`
	Active      bool           `json:"active" yaml:"active"`
	Weights     ProfileWeights `json:"weights" yaml:"weights"`

	// BEP proximity bands, as operating ratio percentages (100 = at BEP).
	BEPOptimalMinPct float64 `json:"bep_optimal_min_pct" yaml:"bep_optimal_min_pct"`
	BEPOptimalMaxPct float64 `json:"bep_optimal_max_pct" yaml:"bep_optimal_max_pct"`
	BEPOuterMinPct   float64 `json:"bep_outer_min_pct" yaml:"bep_outer_min_pct"`
	BEPOuterMaxPct   float64 `json:"bep_outer_max_pct" yaml:"bep_outer_max_pct"`

	// Efficiency brackets, percentage points.
	EffMinAcceptablePct float64 `json:"eff_min_acceptable_pct" yaml:"eff_min_acceptable_pct"`
	EffFairPct          float64 `json:"eff_fair_pct" yaml:"eff_fair_pct"`
	EffGoodPct          float64 `json:"eff_good_pct" yaml:"eff_good_pct"`
	EffExcellentPct     float64 `json:"eff_excellent_pct" yaml:"eff_excellent_pct"`

	// Head margin bands, percent above duty head.
	OptimalHeadMarginMaxPct    float64 `json:"optimal_head_margin_max_pct" yaml:"optimal_head_margin_max_pct"`
	AcceptableHeadMarginMaxPct float64 `json:"acceptable_head_margin_max_pct" yaml:"acceptable_head_margin_max_pct"`

	// NPSH margin bands, metres.
	NPSHExcellentMarginM float64 `json:"npsh_excellent_margin_m" yaml:"npsh_excellent_margin_m"`
	NPSHMinimumMarginM   float64 `json:"npsh_minimum_margin_m" yaml:"npsh_minimum_margin_m"`

	// Trim and speed handling.
	MaxAcceptableTrimPct        float64 `json:"max_acceptable_trim_pct" yaml:"max_acceptable_trim_pct"`
	TrimPenaltyFreePct          float64 `json:"trim_penalty_free_pct" yaml:"trim_penalty_free_pct"`
	TrimmingPenaltyFactor       float64 `json:"trimming_penalty_factor" yaml:"trimming_penalty_factor"`
	SpeedVariationPenaltyFactor float64 `json:"speed_variation_penalty_factor" yaml:"speed_variation_penalty_factor"`

	// Tiering.
	TopRecommendationThreshold float64 `json:"top_recommendation_threshold" yaml:"top_recommendation_threshold"`
	AcceptableOptionThreshold  float64 `json:"acceptable_option_threshold" yaml:"acceptable_option_threshold"`
	DiagnosticFloor            float64 `json:"diagnostic_floor" yaml:"diagnostic_floor"`
	NearMissCount              int     `json:"near_miss_count" yaml:"near_miss_count"`
	RejectedCap                int     `json:"rejected_cap" yaml:"rejected_cap"`

	// AllowNearMissNPSH retains NPSH-violating candidates as near-misses
	// instead of rejecting them outright.
	AllowNearMissNPSH bool `json:"allow_near_miss_npsh" yaml:"allow_near_miss_npsh"`
}

// Validate checks the weight invariant and threshold ordering.
func (p ApplicationProfile) Validate() error {
	if math.Abs(p.Weights.Sum()-100) > weightTolerance {
		return eris.Wrapf(ErrWeightsInvalid, "profile %s: weights sum to %.4f", p.Name, p.Weights.Sum())
	}
	if p.BEPOuterMinPct > p.BEPOptimalMinPct || p.BEPOptimalMinPct > p.BEPOptimalMaxPct || p.BEPOptimalMaxPct > p.BEPOuterMaxPct {
		return eris.Errorf("model: profile %s: BEP bands out of order", p.Name)
	}
	if !(p.EffMinAcceptablePct <= p.EffFairPct && p.EffFairPct <= p.EffGoodPct && p.EffGoodPct <= p.EffExcellentPct) {
		return eris.Errorf("model: profile %s: efficiency brackets out of order", p.Name)
	}
	if p.OptimalHeadMarginMaxPct > p.AcceptableHeadMarginMaxPct {
		return eris.Errorf("model: profile %s: head margin bands out of order", p.Name)
	}
	if p.NPSHMinimumMarginM > p.NPSHExcellentMarginM {
		return eris.Errorf("model: profile %s: NPSH margin bands out of order", p.Name)
	}
	if p.AcceptableOptionThreshold > p.TopRecommendationThreshold {
		return eris.Errorf("model: profile %s: tier cutoffs out of order", p.Name)
	}
	return nil
}

// DefaultProfile returns the general-service profile seeded with every new
// catalog. Weights sum to 100.
func DefaultProfile() ApplicationProfile {
	return ApplicationProfile{
		ID:          "profile-general-service",
		Name:        "general-service",
		Application: "general",
		Active:      true,
		Weights: ProfileWeights{
			BEP:        30,
			Efficiency: 30,
			HeadMargin: 20,
			NPSH:       20,
		},
		BEPOptimalMinPct: 90,
		BEPOptimalMaxPct: 110,
		BEPOuterMinPct:   50,
		BEPOuterMaxPct:   140,

		EffMinAcceptablePct: 40,
		EffFairPct:          55,
		EffGoodPct:          65,
		EffExcellentPct:     75,

		OptimalHeadMarginMaxPct:    5,
		AcceptableHeadMarginMaxPct: 15,

		NPSHExcellentMarginM: 1.5,
		NPSHMinimumMarginM:   0.5,

		MaxAcceptableTrimPct:        12,
		TrimPenaltyFreePct:          2,
		TrimmingPenaltyFactor:       0.5,
		SpeedVariationPenaltyFactor: 3,

		TopRecommendationThreshold: 85,
		AcceptableOptionThreshold:  70,
		DiagnosticFloor:            40,
		NearMissCount:              5,
		RejectedCap:                20,
		AllowNearMissNPSH:          false,
	}
}
