// Package affinity projects pump performance across impeller diameter and
// speed using exponent-based scaling laws, and models the migration of the
// best-efficiency point under trim.
package affinity

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/apexflow/pumpselect/internal/model"
)

// Geometry identifies an impeller diameter / shaft speed pair.
type Geometry struct {
	DiameterMM float64 `json:"diameter_mm"`
	SpeedRPM   float64 `json:"speed_rpm"`
}

// OperatingPoint is a performance point subject to projection.
type OperatingPoint struct {
	FlowM3H       float64 `json:"flow_m3h"`
	HeadM         float64 `json:"head_m"`
	PowerKW       float64 `json:"power_kw"`
	EfficiencyPct float64 `json:"efficiency_pct"`
	NPSHrM        float64 `json:"npshr_m"`
}

// TrimPct returns the trim depth in percent when projecting from one
// diameter to another. Positive for a reduction, negative for the reverse
// direction of the same projection.
func TrimPct(fromMM, toMM float64) float64 {
	if fromMM <= 0 {
		return 0
	}
	return (1 - toMM/fromMM) * 100
}

// Project scales p from geometry `from` to geometry `to`. The head-diameter
// exponent switches between the small-trim and large-trim values at the
// configured threshold; trims beyond the maximum fail rather than clamp.
// NPSHr is degraded by the configured factor once trim passes the NPSH
// degradation threshold. Deterministic; every exponent comes from k.
func Project(p OperatingPoint, from, to Geometry, k model.ConstantSet) (OperatingPoint, error) {
	if from.DiameterMM <= 0 || to.DiameterMM <= 0 {
		return OperatingPoint{}, eris.Errorf("affinity: non-positive diameter (%.1f -> %.1f)", from.DiameterMM, to.DiameterMM)
	}
	if from.SpeedRPM <= 0 || to.SpeedRPM <= 0 {
		return OperatingPoint{}, eris.Errorf("affinity: non-positive speed (%.0f -> %.0f)", from.SpeedRPM, to.SpeedRPM)
	}

	trim := TrimPct(from.DiameterMM, to.DiameterMM)
	depth := math.Abs(trim)
	maxTrim := k.MustGet(model.ConstMaxTrimPct)
	if depth > maxTrim {
		return OperatingPoint{}, eris.Wrapf(model.ErrTrimOutOfRange,
			"affinity: trim %.1f%% exceeds %.1f%%", depth, maxTrim)
	}

	headDiaExp := k.MustGet(model.ConstHeadDiameterExpLarge)
	if depth < k.MustGet(model.ConstSmallTrimThresholdPct) {
		headDiaExp = k.MustGet(model.ConstHeadDiameterExpSmall)
	}

	dr := to.DiameterMM / from.DiameterMM
	nr := to.SpeedRPM / from.SpeedRPM

	out := OperatingPoint{
		FlowM3H: p.FlowM3H *
			math.Pow(dr, k.MustGet(model.ConstFlowDiameterExp)) *
			math.Pow(nr, k.MustGet(model.ConstFlowSpeedExp)),
		HeadM: p.HeadM *
			math.Pow(dr, headDiaExp) *
			math.Pow(nr, k.MustGet(model.ConstHeadSpeedExp)),
		PowerKW: p.PowerKW *
			math.Pow(dr, k.MustGet(model.ConstPowerDiameterExp)) *
			math.Pow(nr, k.MustGet(model.ConstPowerSpeedExp)),
		EfficiencyPct: p.EfficiencyPct,
		NPSHrM:        p.NPSHrM,
	}

	// Trim degrades suction performance; an enlargement back does not
	// recover it.
	if trim > k.MustGet(model.ConstNPSHDegradationThresholdPct) {
		out.NPSHrM *= k.MustGet(model.ConstNPSHDegradationFactor)
	}

	return out, nil
}
