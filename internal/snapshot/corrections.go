package snapshot

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/apexflow/pumpselect/internal/model"
)

// ApplyCorrections substitutes vetted corrected values into a pump record
// before interpolation. The pump is the caller's private copy; the catalog
// row is never touched. Returns a description of each correction applied,
// for the decision trace.
//
// Recognized field paths:
//
//	specification.<field>                      e.g. specification.bep_flow_m3h
//	curve.<impeller_mm>.point.<idx>.<field>    e.g. curve.217.point.3.head_m
func ApplyCorrections(pump *model.Pump, corrections []model.DataCorrection) []string {
	var applied []string
	for _, c := range corrections {
		if c.PumpCode != pump.Code {
			continue
		}
		if applyOne(pump, c) {
			applied = append(applied, fmt.Sprintf("%s %s=%g (%s)", c.PumpCode, c.FieldPath, c.CorrectedValue, c.ID))
		} else {
			zap.L().Warn("snapshot: correction skipped, unresolvable field path",
				zap.String("correction", c.ID),
				zap.String("pump", c.PumpCode),
				zap.String("field_path", c.FieldPath),
			)
		}
	}
	return applied
}

func applyOne(pump *model.Pump, c model.DataCorrection) bool {
	parts := strings.Split(c.FieldPath, ".")
	switch parts[0] {
	case "specification":
		if len(parts) != 2 {
			return false
		}
		return applySpecField(&pump.Spec, parts[1], c.CorrectedValue)
	case "curve":
		if len(parts) != 5 || parts[2] != "point" {
			return false
		}
		impeller, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return false
		}
		idx, err := strconv.Atoi(parts[3])
		if err != nil {
			return false
		}
		for ci := range pump.Curves {
			if pump.Curves[ci].ImpellerMM != impeller {
				continue
			}
			if idx < 0 || idx >= len(pump.Curves[ci].Points) {
				return false
			}
			return applyPointField(&pump.Curves[ci].Points[idx], parts[4], c.CorrectedValue)
		}
		return false
	}
	return false
}

func applySpecField(s *model.Specification, field string, v float64) bool {
	switch field {
	case "min_flow_m3h":
		s.MinFlowM3H = v
	case "max_flow_m3h":
		s.MaxFlowM3H = v
	case "min_head_m":
		s.MinHeadM = v
	case "max_head_m":
		s.MaxHeadM = v
	case "max_power_kw":
		s.MaxPowerKW = v
	case "bep_flow_m3h":
		s.BEPFlowM3H = v
	case "bep_head_m":
		s.BEPHeadM = v
	case "npshr_at_bep_m":
		s.NPSHrAtBEPM = v
	case "min_impeller_mm":
		s.MinImpellerMM = v
	case "max_impeller_mm":
		s.MaxImpellerMM = v
	case "min_speed_rpm":
		s.MinSpeedRPM = v
	case "max_speed_rpm":
		s.MaxSpeedRPM = v
	default:
		return false
	}
	return true
}

func applyPointField(p *model.CurvePoint, field string, v float64) bool {
	switch field {
	case "flow_m3h":
		p.FlowM3H = v
	case "head_m":
		p.HeadM = v
	case "efficiency_pct":
		p.EfficiencyPct = v
	case "npshr_m":
		p.NPSHrM = v
	default:
		return false
	}
	return true
}
