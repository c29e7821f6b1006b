package catalog

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/apexflow/pumpselect/internal/model"
)

// Seed loads the built-in demonstration catalog: a small family of
// end-suction pumps, the default application profile (active), and the
// canonical engineering constant table. Safe to run repeatedly.
func Seed(ctx context.Context, store Store) error {
	for _, p := range seedPumps() {
		if err := store.SavePump(ctx, p); err != nil {
			return eris.Wrapf(err, "seed: pump %s", p.Code)
		}
	}

	prof := model.DefaultProfile()
	prof.Active = true
	if err := store.SaveProfile(ctx, prof); err != nil {
		return eris.Wrap(err, "seed: default profile")
	}

	for _, c := range model.DefaultConstants() {
		if err := store.SaveConstant(ctx, c); err != nil {
			return eris.Wrapf(err, "seed: constant %s", c.Name)
		}
	}

	zap.L().Info("catalog seeded",
		zap.Int("pumps", len(seedPumps())),
		zap.String("profile", prof.Name))
	return nil
}

// seedPumps returns the demonstration pump family. Curve data follows
// typical end-suction test sheets at 2950 rpm: head falling monotonically
// with flow, efficiency peaking at the best efficiency point, NPSHr
// rising toward runout.
func seedPumps() []model.Pump {
	return []model.Pump{
		{
			Code:         "APX-65-160",
			Manufacturer: "ApexFlow",
			PumpType:     "end_suction",
			Series:       "APX",
			Spec: model.Specification{
				MinFlowM3H: 10, MaxFlowM3H: 70,
				MinHeadM: 8, MaxHeadM: 36,
				MaxPowerKW:  11,
				BEPFlowM3H:  45, BEPHeadM: 28, NPSHrAtBEPM: 2.4,
				MinImpellerMM: 139, MaxImpellerMM: 169,
				MinSpeedRPM: 1450, MaxSpeedRPM: 2950,
				VariableDiameter: true,
				Construction:     model.ConstructionVolute,
			},
			Curves: []model.Curve{
				{
					PumpCode: "APX-65-160", ImpellerMM: 169, SpeedRPM: 2950,
					Points: []model.CurvePoint{
						{FlowM3H: 10, HeadM: 34.5, EfficiencyPct: 38, NPSHrM: 1.6},
						{FlowM3H: 20, HeadM: 33.2, EfficiencyPct: 55, NPSHrM: 1.8},
						{FlowM3H: 30, HeadM: 31.4, EfficiencyPct: 66, NPSHrM: 2.0},
						{FlowM3H: 40, HeadM: 29.0, EfficiencyPct: 72, NPSHrM: 2.2},
						{FlowM3H: 45, HeadM: 27.6, EfficiencyPct: 73.5, NPSHrM: 2.4},
						{FlowM3H: 55, HeadM: 24.1, EfficiencyPct: 70, NPSHrM: 3.1},
						{FlowM3H: 65, HeadM: 19.8, EfficiencyPct: 62, NPSHrM: 4.3},
					},
				},
				{
					PumpCode: "APX-65-160", ImpellerMM: 154, SpeedRPM: 2950,
					Points: []model.CurvePoint{
						{FlowM3H: 10, HeadM: 28.4, EfficiencyPct: 36, NPSHrM: 1.6},
						{FlowM3H: 20, HeadM: 27.2, EfficiencyPct: 53, NPSHrM: 1.8},
						{FlowM3H: 30, HeadM: 25.5, EfficiencyPct: 64, NPSHrM: 2.0},
						{FlowM3H: 40, HeadM: 23.1, EfficiencyPct: 70, NPSHrM: 2.3},
						{FlowM3H: 50, HeadM: 19.9, EfficiencyPct: 68, NPSHrM: 3.0},
						{FlowM3H: 58, HeadM: 16.6, EfficiencyPct: 61, NPSHrM: 3.9},
					},
				},
			},
		},
		{
			Code:         "APX-80-200",
			Manufacturer: "ApexFlow",
			PumpType:     "end_suction",
			Series:       "APX",
			Spec: model.Specification{
				MinFlowM3H: 30, MaxFlowM3H: 160,
				MinHeadM: 10, MaxHeadM: 58,
				MaxPowerKW:  30,
				BEPFlowM3H:  100, BEPHeadM: 45, NPSHrAtBEPM: 3.0,
				MinImpellerMM: 174, MaxImpellerMM: 209,
				MinSpeedRPM: 1450, MaxSpeedRPM: 2950,
				VariableDiameter: true,
				Construction:     model.ConstructionVolute,
			},
			Curves: []model.Curve{
				{
					PumpCode: "APX-80-200", ImpellerMM: 209, SpeedRPM: 2950,
					Points: []model.CurvePoint{
						{FlowM3H: 30, HeadM: 55.8, EfficiencyPct: 42, NPSHrM: 2.0},
						{FlowM3H: 55, HeadM: 53.6, EfficiencyPct: 59, NPSHrM: 2.3},
						{FlowM3H: 80, HeadM: 50.1, EfficiencyPct: 70, NPSHrM: 2.6},
						{FlowM3H: 100, HeadM: 46.3, EfficiencyPct: 76, NPSHrM: 3.0},
						{FlowM3H: 120, HeadM: 41.4, EfficiencyPct: 74, NPSHrM: 3.7},
						{FlowM3H: 140, HeadM: 35.2, EfficiencyPct: 67, NPSHrM: 4.9},
						{FlowM3H: 155, HeadM: 29.6, EfficiencyPct: 58, NPSHrM: 6.2},
					},
				},
				{
					PumpCode: "APX-80-200", ImpellerMM: 190, SpeedRPM: 2950,
					Points: []model.CurvePoint{
						{FlowM3H: 30, HeadM: 45.9, EfficiencyPct: 40, NPSHrM: 2.0},
						{FlowM3H: 55, HeadM: 43.8, EfficiencyPct: 57, NPSHrM: 2.3},
						{FlowM3H: 80, HeadM: 40.5, EfficiencyPct: 68, NPSHrM: 2.7},
						{FlowM3H: 100, HeadM: 36.7, EfficiencyPct: 72, NPSHrM: 3.2},
						{FlowM3H: 120, HeadM: 31.8, EfficiencyPct: 69, NPSHrM: 4.1},
						{FlowM3H: 138, HeadM: 26.4, EfficiencyPct: 60, NPSHrM: 5.5},
					},
				},
				{
					PumpCode: "APX-80-200", ImpellerMM: 174, SpeedRPM: 2950,
					Points: []model.CurvePoint{
						{FlowM3H: 30, HeadM: 38.4, EfficiencyPct: 38, NPSHrM: 2.1},
						{FlowM3H: 55, HeadM: 36.5, EfficiencyPct: 55, NPSHrM: 2.4},
						{FlowM3H: 80, HeadM: 33.5, EfficiencyPct: 65, NPSHrM: 2.9},
						{FlowM3H: 100, HeadM: 29.9, EfficiencyPct: 68, NPSHrM: 3.5},
						{FlowM3H: 118, HeadM: 25.6, EfficiencyPct: 63, NPSHrM: 4.6},
					},
				},
			},
		},
		{
			Code:         "APX-100-250",
			Manufacturer: "ApexFlow",
			PumpType:     "end_suction",
			Series:       "APX",
			Spec: model.Specification{
				MinFlowM3H: 50, MaxFlowM3H: 280,
				MinHeadM: 12, MaxHeadM: 90,
				MaxPowerKW:  75,
				BEPFlowM3H:  180, BEPHeadM: 70, NPSHrAtBEPM: 3.8,
				MinImpellerMM: 219, MaxImpellerMM: 259,
				MinSpeedRPM: 980, MaxSpeedRPM: 2950,
				VariableSpeed:    true,
				VariableDiameter: true,
				Construction:     model.ConstructionDiffuser,
			},
			Curves: []model.Curve{
				{
					PumpCode: "APX-100-250", ImpellerMM: 259, SpeedRPM: 2950,
					Points: []model.CurvePoint{
						{FlowM3H: 50, HeadM: 87.2, EfficiencyPct: 45, NPSHrM: 2.5},
						{FlowM3H: 100, HeadM: 83.5, EfficiencyPct: 62, NPSHrM: 2.9},
						{FlowM3H: 150, HeadM: 77.4, EfficiencyPct: 74, NPSHrM: 3.4},
						{FlowM3H: 180, HeadM: 72.1, EfficiencyPct: 78, NPSHrM: 3.8},
						{FlowM3H: 220, HeadM: 63.4, EfficiencyPct: 75, NPSHrM: 4.8},
						{FlowM3H: 260, HeadM: 52.0, EfficiencyPct: 65, NPSHrM: 6.7},
					},
				},
				{
					PumpCode: "APX-100-250", ImpellerMM: 235, SpeedRPM: 2950,
					Points: []model.CurvePoint{
						{FlowM3H: 50, HeadM: 71.6, EfficiencyPct: 43, NPSHrM: 2.5},
						{FlowM3H: 100, HeadM: 68.1, EfficiencyPct: 60, NPSHrM: 3.0},
						{FlowM3H: 150, HeadM: 62.3, EfficiencyPct: 71, NPSHrM: 3.6},
						{FlowM3H: 190, HeadM: 55.5, EfficiencyPct: 73, NPSHrM: 4.3},
						{FlowM3H: 230, HeadM: 46.3, EfficiencyPct: 66, NPSHrM: 5.8},
					},
				},
			},
		},
		{
			Code:         "VSX-125-315",
			Manufacturer: "ApexFlow",
			PumpType:     "end_suction",
			Series:       "VSX",
			Spec: model.Specification{
				MinFlowM3H: 80, MaxFlowM3H: 420,
				MinHeadM: 15, MaxHeadM: 130,
				MaxPowerKW:  160,
				BEPFlowM3H:  280, BEPHeadM: 100, NPSHrAtBEPM: 4.5,
				MinImpellerMM: 315, MaxImpellerMM: 315,
				MinSpeedRPM: 740, MaxSpeedRPM: 1480,
				VariableSpeed: true,
				Construction:  model.ConstructionVolute,
			},
			Curves: []model.Curve{
				{
					PumpCode: "VSX-125-315", ImpellerMM: 315, SpeedRPM: 1480,
					Points: []model.CurvePoint{
						{FlowM3H: 80, HeadM: 124.8, EfficiencyPct: 48, NPSHrM: 2.8},
						{FlowM3H: 150, HeadM: 119.3, EfficiencyPct: 64, NPSHrM: 3.3},
						{FlowM3H: 220, HeadM: 110.6, EfficiencyPct: 76, NPSHrM: 3.9},
						{FlowM3H: 280, HeadM: 100.4, EfficiencyPct: 80, NPSHrM: 4.5},
						{FlowM3H: 340, HeadM: 86.9, EfficiencyPct: 76, NPSHrM: 5.6},
						{FlowM3H: 400, HeadM: 69.8, EfficiencyPct: 64, NPSHrM: 7.8},
					},
				},
			},
		},
		// Low-head transfer pump. At its 217 mm trim the curve drops to
		// single-digit heads near runout, which once tripped NaN handling
		// downstream; it stays in the seed set as a regression fixture.
		{
			Code:         "LFT-150-125",
			Manufacturer: "ApexFlow",
			PumpType:     "end_suction",
			Series:       "LFT",
			Spec: model.Specification{
				MinFlowM3H: 40, MaxFlowM3H: 140,
				MinHeadM: 4, MaxHeadM: 16,
				MaxPowerKW:  7.5,
				BEPFlowM3H:  90, BEPHeadM: 11, NPSHrAtBEPM: 2.8,
				MinImpellerMM: 184, MaxImpellerMM: 217,
				MinSpeedRPM: 960, MaxSpeedRPM: 960,
				VariableDiameter: true,
				Construction:     model.ConstructionVolute,
			},
			Curves: []model.Curve{
				{
					PumpCode: "LFT-150-125", ImpellerMM: 217, SpeedRPM: 960,
					Points: []model.CurvePoint{
						{FlowM3H: 40, HeadM: 14.6, EfficiencyPct: 44, NPSHrM: 1.9},
						{FlowM3H: 60, HeadM: 13.8, EfficiencyPct: 56, NPSHrM: 2.2},
						{FlowM3H: 80, HeadM: 12.4, EfficiencyPct: 63, NPSHrM: 2.6},
						{FlowM3H: 95, HeadM: 11.0, EfficiencyPct: 64, NPSHrM: 3.0},
						{FlowM3H: 110, HeadM: 9.2, EfficiencyPct: 59, NPSHrM: 3.6},
						{FlowM3H: 125.9, HeadM: 6.3, EfficiencyPct: 48, NPSHrM: 4.5},
					},
				},
				{
					PumpCode: "LFT-150-125", ImpellerMM: 198, SpeedRPM: 960,
					Points: []model.CurvePoint{
						{FlowM3H: 40, HeadM: 11.9, EfficiencyPct: 42, NPSHrM: 1.9},
						{FlowM3H: 60, HeadM: 11.1, EfficiencyPct: 54, NPSHrM: 2.2},
						{FlowM3H: 80, HeadM: 9.8, EfficiencyPct: 60, NPSHrM: 2.7},
						{FlowM3H: 100, HeadM: 7.9, EfficiencyPct: 55, NPSHrM: 3.4},
						{FlowM3H: 115, HeadM: 5.9, EfficiencyPct: 45, NPSHrM: 4.2},
					},
				},
			},
		},
	}
}
