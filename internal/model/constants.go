package model

import "github.com/rotisserie/eris"

// EngineeringConstant is a named, categorized physical parameter. Every
// exponent and threshold used by the projection formulas lives here; the
// formulas themselves never hardcode a value.
type EngineeringConstant struct {
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Value    float64 `json:"value"`
	Unit     string  `json:"unit,omitempty"`
	Locked   bool    `json:"locked"`
}

// ConstantSet is an immutable lookup of engineering constants by name.
type ConstantSet map[string]EngineeringConstant

// Constant categories.
const (
	CategoryAffinity      = "affinity"
	CategoryBEPMigration  = "bep_migration"
	CategoryInterpolation = "interpolation"
	CategoryNPSH          = "npsh"
)

// Names of the constants the engine reads. Grouped by the formula that
// consumes them.
const (
	ConstFlowDiameterExp       = "flow_diameter_exponent"
	ConstFlowSpeedExp          = "flow_speed_exponent"
	ConstHeadDiameterExpSmall  = "head_diameter_exponent_small_trim"
	ConstHeadDiameterExpLarge  = "head_diameter_exponent_large_trim"
	ConstHeadSpeedExp          = "head_speed_exponent"
	ConstPowerDiameterExp      = "power_diameter_exponent"
	ConstPowerSpeedExp         = "power_speed_exponent"
	ConstSmallTrimThresholdPct = "small_trim_threshold_pct"
	ConstMaxTrimPct            = "max_trim_pct"

	ConstBEPFlowExp      = "bep_flow_exponent"
	ConstBEPHeadExp      = "bep_head_exponent"
	ConstBEPHeadExpSmall = "bep_head_exponent_small_trim"
	ConstBEPEffSlope     = "bep_efficiency_penalty_slope"
	ConstVolutePenalty   = "volute_efficiency_penalty"
	ConstDiffuserPenalty = "diffuser_efficiency_penalty"

	ConstMaxExtrapolationPct = "max_extrapolation_pct"

	ConstNPSHDegradationThresholdPct = "npsh_degradation_threshold_pct"
	ConstNPSHDegradationFactor       = "npsh_degradation_factor"
)

// Get returns the value of a named constant.
func (s ConstantSet) Get(name string) (float64, error) {
	c, ok := s[name]
	if !ok {
		return 0, eris.Errorf("model: engineering constant %q not defined", name)
	}
	return c.Value, nil
}

// MustGet returns the value of a named constant, panicking if absent. Only
// called with names guaranteed present by DefaultConstants; absence is a
// programming error, not a data error.
func (s ConstantSet) MustGet(name string) float64 {
	v, err := s.Get(name)
	if err != nil {
		panic(err)
	}
	return v
}

// WithOverride returns a copy of the set with one value replaced. Locked
// constants cannot be overridden.
func (s ConstantSet) WithOverride(name string, value float64) (ConstantSet, error) {
	c, ok := s[name]
	if !ok {
		return nil, eris.Errorf("model: cannot override unknown constant %q", name)
	}
	if c.Locked {
		return nil, eris.Errorf("model: constant %q is locked", name)
	}
	out := make(ConstantSet, len(s))
	for k, v := range s {
		out[k] = v
	}
	c.Value = value
	out[name] = c
	return out, nil
}

// DefaultConstants returns the canonical engineering constant table. The
// historical catalog carried two near-duplicate tables with diverging BEP
// migration exponents; this table is the single source and uses the 2.9
// small-trim head exponent. Values are never averaged across sources.
func DefaultConstants() ConstantSet {
	mk := func(name, category string, value float64, unit string, locked bool) EngineeringConstant {
		return EngineeringConstant{Name: name, Category: category, Value: value, Unit: unit, Locked: locked}
	}
	list := []EngineeringConstant{
		mk(ConstFlowDiameterExp, CategoryAffinity, 1.0, "", true),
		mk(ConstFlowSpeedExp, CategoryAffinity, 1.0, "", true),
		mk(ConstHeadDiameterExpSmall, CategoryAffinity, 2.0, "", false),
		mk(ConstHeadDiameterExpLarge, CategoryAffinity, 2.2, "", false),
		mk(ConstHeadSpeedExp, CategoryAffinity, 2.0, "", true),
		mk(ConstPowerDiameterExp, CategoryAffinity, 3.0, "", false),
		mk(ConstPowerSpeedExp, CategoryAffinity, 3.0, "", true),
		mk(ConstSmallTrimThresholdPct, CategoryAffinity, 5.0, "%", false),
		mk(ConstMaxTrimPct, CategoryAffinity, 15.0, "%", false),

		mk(ConstBEPFlowExp, CategoryBEPMigration, 1.2, "", false),
		mk(ConstBEPHeadExp, CategoryBEPMigration, 2.2, "", false),
		mk(ConstBEPHeadExpSmall, CategoryBEPMigration, 2.9, "", false),
		mk(ConstBEPEffSlope, CategoryBEPMigration, 0.25, "pct/pct", false),
		mk(ConstVolutePenalty, CategoryBEPMigration, 20.0, "pct", false),
		mk(ConstDiffuserPenalty, CategoryBEPMigration, 45.0, "pct", false),

		mk(ConstMaxExtrapolationPct, CategoryInterpolation, 0.10, "fraction", false),

		mk(ConstNPSHDegradationThresholdPct, CategoryNPSH, 10.0, "%", false),
		mk(ConstNPSHDegradationFactor, CategoryNPSH, 1.15, "", false),
	}
	set := make(ConstantSet, len(list))
	for _, c := range list {
		set[c.Name] = c
	}
	return set
}
