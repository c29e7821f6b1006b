package model

import (
	"sort"

	"github.com/rotisserie/eris"
)

// ConstructionType identifies the casing construction of a pump, which
// determines the efficiency penalty applied when the impeller is trimmed.
type ConstructionType int

const (
	ConstructionVolute ConstructionType = iota
	ConstructionDiffuser
)

// String returns the catalog label for the construction type.
func (t ConstructionType) String() string {
	switch t {
	case ConstructionVolute:
		return "volute"
	case ConstructionDiffuser:
		return "diffuser"
	}
	return "unknown"
}

// ParseConstructionType maps a catalog label to a ConstructionType.
func ParseConstructionType(s string) (ConstructionType, error) {
	switch s {
	case "volute", "":
		return ConstructionVolute, nil
	case "diffuser":
		return ConstructionDiffuser, nil
	}
	return ConstructionVolute, eris.Errorf("model: unknown construction type %q", s)
}

// Pump is a catalog pump: identity plus its operating envelope and the
// tested performance curves for each available impeller diameter.
type Pump struct {
	Code         string        `json:"code" yaml:"code"`
	Manufacturer string        `json:"manufacturer" yaml:"manufacturer"`
	PumpType     string        `json:"pump_type" yaml:"pump_type"`
	Series       string        `json:"series" yaml:"series"`
	Spec         Specification `json:"specification" yaml:"specification"`
	Curves       []Curve       `json:"curves" yaml:"curves"`
}

// Specification describes a pump's operating envelope.
type Specification struct {
	MinFlowM3H       float64          `json:"min_flow_m3h" yaml:"min_flow_m3h"`
	MaxFlowM3H       float64          `json:"max_flow_m3h" yaml:"max_flow_m3h"`
	MinHeadM         float64          `json:"min_head_m" yaml:"min_head_m"`
	MaxHeadM         float64          `json:"max_head_m" yaml:"max_head_m"`
	MaxPowerKW       float64          `json:"max_power_kw" yaml:"max_power_kw"`
	BEPFlowM3H       float64          `json:"bep_flow_m3h" yaml:"bep_flow_m3h"`
	BEPHeadM         float64          `json:"bep_head_m" yaml:"bep_head_m"`
	NPSHrAtBEPM      float64          `json:"npshr_at_bep_m" yaml:"npshr_at_bep_m"`
	MinImpellerMM    float64          `json:"min_impeller_mm" yaml:"min_impeller_mm"`
	MaxImpellerMM    float64          `json:"max_impeller_mm" yaml:"max_impeller_mm"`
	MinSpeedRPM      float64          `json:"min_speed_rpm" yaml:"min_speed_rpm"`
	MaxSpeedRPM      float64          `json:"max_speed_rpm" yaml:"max_speed_rpm"`
	VariableSpeed    bool             `json:"variable_speed" yaml:"variable_speed"`
	VariableDiameter bool             `json:"variable_diameter" yaml:"variable_diameter"`
	Construction     ConstructionType `json:"construction" yaml:"construction"`
}

// Validate checks the envelope invariants: min <= max on every range and
// the BEP inside the max bounds.
func (s Specification) Validate() error {
	type rng struct {
		name     string
		min, max float64
	}
	for _, r := range []rng{
		{"flow", s.MinFlowM3H, s.MaxFlowM3H},
		{"head", s.MinHeadM, s.MaxHeadM},
		{"impeller", s.MinImpellerMM, s.MaxImpellerMM},
		{"speed", s.MinSpeedRPM, s.MaxSpeedRPM},
	} {
		if r.min > r.max {
			return eris.Errorf("model: specification %s range inverted (%.2f > %.2f)", r.name, r.min, r.max)
		}
	}
	if s.BEPFlowM3H > s.MaxFlowM3H {
		return eris.Errorf("model: BEP flow %.2f outside max flow %.2f", s.BEPFlowM3H, s.MaxFlowM3H)
	}
	if s.BEPHeadM > s.MaxHeadM {
		return eris.Errorf("model: BEP head %.2f outside max head %.2f", s.BEPHeadM, s.MaxHeadM)
	}
	return nil
}

// CurvePoint is one tested point on a performance curve.
type CurvePoint struct {
	FlowM3H       float64 `json:"flow_m3h" yaml:"flow_m3h"`
	HeadM         float64 `json:"head_m" yaml:"head_m"`
	EfficiencyPct float64 `json:"efficiency_pct" yaml:"efficiency_pct"`
	NPSHrM        float64 `json:"npshr_m" yaml:"npshr_m"`
}

// Curve holds the tested points for one (pump, impeller diameter) pair.
type Curve struct {
	PumpCode   string       `json:"pump_code" yaml:"pump_code"`
	ImpellerMM float64      `json:"impeller_mm" yaml:"impeller_mm"`
	SpeedRPM   float64      `json:"speed_rpm" yaml:"speed_rpm"`
	Points     []CurvePoint `json:"points" yaml:"points"`
}

// MaxFlow returns the largest tested flow on the curve, or 0 when empty.
func (c Curve) MaxFlow() float64 {
	var max float64
	for _, p := range c.Points {
		if p.FlowM3H > max {
			max = p.FlowM3H
		}
	}
	return max
}

// SortedPoints returns the curve points sorted ascending by flow with
// duplicate-flow points averaged. Tested data has arrived unsorted before;
// every consumer normalizes through here rather than trusting ingestion.
func (c Curve) SortedPoints() []CurvePoint {
	if len(c.Points) == 0 {
		return nil
	}
	pts := make([]CurvePoint, len(c.Points))
	copy(pts, c.Points)
	sort.Slice(pts, func(i, j int) bool { return pts[i].FlowM3H < pts[j].FlowM3H })

	out := pts[:0:0]
	for i := 0; i < len(pts); {
		j := i + 1
		sum := pts[i]
		for j < len(pts) && pts[j].FlowM3H == pts[i].FlowM3H {
			sum.HeadM += pts[j].HeadM
			sum.EfficiencyPct += pts[j].EfficiencyPct
			sum.NPSHrM += pts[j].NPSHrM
			j++
		}
		n := float64(j - i)
		sum.HeadM /= n
		sum.EfficiencyPct /= n
		sum.NPSHrM /= n
		out = append(out, sum)
		i = j
	}
	return out
}
