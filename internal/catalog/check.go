package catalog

import (
	"context"
	"fmt"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/apexflow/pumpselect/internal/model"
)

// IssueKind identifies the kind of catalog data problem.
type IssueKind string

const (
	IssueSpecInvalid      IssueKind = "spec_invalid"
	IssueCurveTooSparse   IssueKind = "curve_too_sparse"
	IssueCurveNonFinite   IssueKind = "curve_non_finite"
	IssueHeadNotFalling   IssueKind = "head_not_falling"
	IssueCurveOutsideSpec IssueKind = "curve_outside_spec"
	IssueWeightsInvalid   IssueKind = "weights_invalid"
)

// Issue is one data-quality finding against a catalog record.
type Issue struct {
	Kind     IssueKind `json:"kind"`
	Severity string    `json:"severity"`
	PumpCode string    `json:"pump_code,omitempty"`
	Profile  string    `json:"profile,omitempty"`
	Message  string    `json:"message"`
}

// CheckReport summarizes a full catalog scan.
type CheckReport struct {
	PumpsChecked    int     `json:"pumps_checked"`
	CurvesChecked   int     `json:"curves_checked"`
	ProfilesChecked int     `json:"profiles_checked"`
	Issues          []Issue `json:"issues"`
}

// Check scans every pump and profile in the store for data problems that
// would degrade or abort a selection run: inverted envelopes, sparse or
// non-monotone curves, profiles whose weights no longer sum to 100.
func Check(ctx context.Context, store Store) (*CheckReport, error) {
	pumps, err := store.ListCandidatePumps(ctx, PumpFilter{})
	if err != nil {
		return nil, eris.Wrap(err, "check: list pumps")
	}
	profiles, err := store.ListProfiles(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "check: list profiles")
	}

	report := &CheckReport{PumpsChecked: len(pumps), ProfilesChecked: len(profiles)}

	for _, p := range pumps {
		if err := p.Spec.Validate(); err != nil {
			report.Issues = append(report.Issues, Issue{
				Kind: IssueSpecInvalid, Severity: "high", PumpCode: p.Code,
				Message: err.Error(),
			})
		}
		for _, c := range p.Curves {
			report.CurvesChecked++
			report.Issues = append(report.Issues, checkCurve(p.Code, p.Spec, c)...)
		}
	}

	for _, prof := range profiles {
		if err := prof.Validate(); err != nil {
			report.Issues = append(report.Issues, Issue{
				Kind: IssueWeightsInvalid, Severity: "high", Profile: prof.Name,
				Message: err.Error(),
			})
		}
	}

	zap.L().Info("catalog check complete",
		zap.Int("pumps", report.PumpsChecked),
		zap.Int("curves", report.CurvesChecked),
		zap.Int("issues", len(report.Issues)))
	return report, nil
}

func checkCurve(pumpCode string, spec model.Specification, c model.Curve) []Issue {
	var issues []Issue
	label := fmt.Sprintf("%.0f mm", c.ImpellerMM)

	pts := c.SortedPoints()
	if len(pts) < 2 {
		issues = append(issues, Issue{
			Kind: IssueCurveTooSparse, Severity: "high", PumpCode: pumpCode,
			Message: fmt.Sprintf("curve %s has %d points, need at least 2", label, len(pts)),
		})
		return issues
	}

	for i, pt := range pts {
		for _, f := range []struct {
			name string
			v    float64
		}{
			{"flow", pt.FlowM3H}, {"head", pt.HeadM},
			{"efficiency", pt.EfficiencyPct}, {"npshr", pt.NPSHrM},
		} {
			name, v := f.name, f.v
			if math.IsNaN(v) || math.IsInf(v, 0) {
				issues = append(issues, Issue{
					Kind: IssueCurveNonFinite, Severity: "high", PumpCode: pumpCode,
					Message: fmt.Sprintf("curve %s point %d has non-finite %s", label, i, name),
				})
			}
		}
	}

	// Head should fall monotonically with flow on a stable curve. A rise
	// mid-curve usually means a transcription error in the test sheet.
	for i := 1; i < len(pts); i++ {
		if pts[i].HeadM > pts[i-1].HeadM {
			issues = append(issues, Issue{
				Kind: IssueHeadNotFalling, Severity: "medium", PumpCode: pumpCode,
				Message: fmt.Sprintf("curve %s head rises between %.1f and %.1f m3/h",
					label, pts[i-1].FlowM3H, pts[i].FlowM3H),
			})
			break
		}
	}

	if spec.MaxImpellerMM > 0 && (c.ImpellerMM < spec.MinImpellerMM || c.ImpellerMM > spec.MaxImpellerMM) {
		issues = append(issues, Issue{
			Kind: IssueCurveOutsideSpec, Severity: "medium", PumpCode: pumpCode,
			Message: fmt.Sprintf("curve %s outside impeller range %.0f-%.0f mm",
				label, spec.MinImpellerMM, spec.MaxImpellerMM),
		})
	}

	return issues
}
