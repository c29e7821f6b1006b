package affinity

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/apexflow/pumpselect/internal/model"
)

// BEP is a best-efficiency point.
type BEP struct {
	FlowM3H       float64 `json:"flow_m3h"`
	HeadM         float64 `json:"head_m"`
	EfficiencyPct float64 `json:"efficiency_pct"`
}

// QBP ratio clamp bounds, percent of migrated BEP flow. Values far outside
// this band say more about bad data than about the pump.
const (
	qbpRatioMin = 50
	qbpRatioMax = 200
)

// MigrateBEP shifts a catalog BEP for an impeller trimmed to trimRatio
// (D_trim/D_full) and charges the efficiency penalties: the off-BEP
// operation penalty against the duty flow, and the construction-dependent
// trim penalty. Callers invoke this only for pumps whose specification
// allows variable diameter or speed; fixed pumps evaluate the catalog
// curve as-is.
func MigrateBEP(bep BEP, trimRatio, dutyFlowM3H float64, construction model.ConstructionType, k model.ConstantSet) (BEP, error) {
	if trimRatio <= 0 || trimRatio > 1 {
		return BEP{}, eris.Errorf("affinity: trim ratio %.3f outside (0,1]", trimRatio)
	}
	trimDepthPct := (1 - trimRatio) * 100
	if trimDepthPct > k.MustGet(model.ConstMaxTrimPct) {
		return BEP{}, eris.Wrapf(model.ErrTrimOutOfRange, "affinity: BEP migration at %.1f%% trim", trimDepthPct)
	}

	headExp := k.MustGet(model.ConstBEPHeadExp)
	if trimDepthPct < k.MustGet(model.ConstSmallTrimThresholdPct) {
		headExp = k.MustGet(model.ConstBEPHeadExpSmall)
	}

	out := BEP{
		FlowM3H: bep.FlowM3H * math.Pow(trimRatio, k.MustGet(model.ConstBEPFlowExp)),
		HeadM:   bep.HeadM * math.Pow(trimRatio, headExp),
	}
	if out.FlowM3H <= 0 {
		return BEP{}, eris.Errorf("affinity: migrated BEP flow %.3f", out.FlowM3H)
	}

	// Off-BEP operation penalty against the duty flow.
	qbpRatio := 100 * dutyFlowM3H / out.FlowM3H
	if qbpRatio < qbpRatioMin {
		qbpRatio = qbpRatioMin
	}
	if qbpRatio > qbpRatioMax {
		qbpRatio = qbpRatioMax
	}
	offBEPPenalty := math.Max(0, (qbpRatio-110)*k.MustGet(model.ConstBEPEffSlope))

	var factor float64
	switch construction {
	case model.ConstructionVolute:
		factor = k.MustGet(model.ConstVolutePenalty)
	case model.ConstructionDiffuser:
		factor = k.MustGet(model.ConstDiffuserPenalty)
	}
	trimPenalty := factor * (1 - trimRatio)

	eff := bep.EfficiencyPct - offBEPPenalty - trimPenalty
	out.EfficiencyPct = math.Min(100, math.Max(0, eff))
	return out, nil
}
