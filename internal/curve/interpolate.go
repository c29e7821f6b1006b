// Package curve estimates head, efficiency and NPSHr at arbitrary flow
// from the discrete tested points of a performance curve.
package curve

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/apexflow/pumpselect/internal/model"
)

// Point is a continuous estimate at one flow.
type Point struct {
	FlowM3H       float64 `json:"flow_m3h"`
	HeadM         float64 `json:"head_m"`
	EfficiencyPct float64 `json:"efficiency_pct"`
	NPSHrM        float64 `json:"npshr_m"`
}

// AtFlow evaluates the curve at the target flow. Points are sorted and
// duplicate flows averaged before fitting; curves with at least three
// points get a least-squares polynomial fit per channel, smaller curves a
// linear fit. The flow must lie in [0, maxFlow*(1+maxExtrapolationPct)].
//
// Pure function: no caching, no mutation of the input curve.
func AtFlow(c model.Curve, flow, maxExtrapolationPct float64) (Point, error) {
	if !isFinite(flow) || flow < 0 {
		return Point{}, eris.Wrapf(model.ErrOutOfRange, "curve %s/%g: flow %v", c.PumpCode, c.ImpellerMM, flow)
	}

	pts := c.SortedPoints()
	if len(pts) < 2 {
		return Point{}, eris.Wrapf(model.ErrCurveData, "curve %s/%g: %d usable points", c.PumpCode, c.ImpellerMM, len(pts))
	}
	for _, p := range pts {
		if !isFinite(p.FlowM3H) || !isFinite(p.HeadM) || !isFinite(p.EfficiencyPct) || !isFinite(p.NPSHrM) {
			return Point{}, eris.Wrapf(model.ErrCurveData, "curve %s/%g: non-finite point", c.PumpCode, c.ImpellerMM)
		}
	}

	maxFlow := pts[len(pts)-1].FlowM3H
	if maxFlow <= 0 {
		return Point{}, eris.Wrapf(model.ErrCurveData, "curve %s/%g: max flow %.3f", c.PumpCode, c.ImpellerMM, maxFlow)
	}
	limit := maxFlow * (1 + maxExtrapolationPct)
	if flow > limit {
		return Point{}, eris.Wrapf(model.ErrOutOfRange,
			"curve %s/%g: flow %.2f beyond %.2f", c.PumpCode, c.ImpellerMM, flow, limit)
	}

	xs := make([]float64, len(pts))
	heads := make([]float64, len(pts))
	effs := make([]float64, len(pts))
	npshrs := make([]float64, len(pts))
	for i, p := range pts {
		// Normalize flow to [0,1] to keep the normal equations conditioned.
		xs[i] = p.FlowM3H / maxFlow
		heads[i] = p.HeadM
		effs[i] = p.EfficiencyPct
		npshrs[i] = p.NPSHrM
	}
	x := flow / maxFlow

	head, err := fitEval(xs, heads, x, headDegree(len(pts)))
	if err != nil {
		return Point{}, eris.Wrapf(model.ErrCurveData, "curve %s/%g: head fit: %v", c.PumpCode, c.ImpellerMM, err)
	}
	eff, err := fitEval(xs, effs, x, quadraticDegree(len(pts)))
	if err != nil {
		return Point{}, eris.Wrapf(model.ErrCurveData, "curve %s/%g: efficiency fit: %v", c.PumpCode, c.ImpellerMM, err)
	}
	npshr, err := fitNPSHr(xs, npshrs, x)
	if err != nil {
		return Point{}, eris.Wrapf(model.ErrCurveData, "curve %s/%g: npshr fit: %v", c.PumpCode, c.ImpellerMM, err)
	}

	out := Point{
		FlowM3H:       flow,
		HeadM:         head,
		EfficiencyPct: clamp(eff, 0, 100),
		NPSHrM:        math.Max(npshr, 0),
	}
	if !isFinite(out.HeadM) || !isFinite(out.EfficiencyPct) || !isFinite(out.NPSHrM) {
		return Point{}, eris.Wrapf(model.ErrCurveData, "curve %s/%g: non-finite fit result", c.PumpCode, c.ImpellerMM)
	}
	return out, nil
}

// headDegree picks cubic for well-populated curves, quadratic otherwise.
func headDegree(n int) int {
	switch {
	case n >= 5:
		return 3
	case n >= 3:
		return 2
	default:
		return 1
	}
}

func quadraticDegree(n int) int {
	if n >= 3 {
		return 2
	}
	return 1
}

// fitNPSHr fits NPSHr over the points that actually carry a reading.
// Vendor curves often publish NPSHr for only part of the flow range; zero
// entries mean "not tested", not "zero metres".
func fitNPSHr(xs, ys []float64, x float64) (float64, error) {
	var fx, fy []float64
	for i := range ys {
		if ys[i] > 0 {
			fx = append(fx, xs[i])
			fy = append(fy, ys[i])
		}
	}
	if len(fx) == 0 {
		return 0, nil
	}
	if len(fx) == 1 {
		return fy[0], nil
	}
	return fitEval(fx, fy, x, quadraticDegree(len(fx)))
}

// fitEval fits a least-squares polynomial of the given degree and
// evaluates it at x.
func fitEval(xs, ys []float64, x float64, degree int) (float64, error) {
	if degree >= len(xs) {
		degree = len(xs) - 1
	}
	coeffs, err := polyfit(xs, ys, degree)
	if err != nil {
		return 0, err
	}
	return evalPoly(coeffs, x), nil
}

// polyfit solves the normal equations for a least-squares polynomial fit.
// Degrees here are at most 3, so a dense Gaussian elimination with partial
// pivoting is plenty.
func polyfit(xs, ys []float64, degree int) ([]float64, error) {
	n := degree + 1

	// Build X^T X and X^T y from power sums.
	a := make([][]float64, n)
	b := make([]float64, n)
	for i := range a {
		a[i] = make([]float64, n)
	}
	for k := range xs {
		pow := 1.0
		powers := make([]float64, 2*n-1)
		for d := 0; d < 2*n-1; d++ {
			powers[d] = pow
			pow *= xs[k]
		}
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				a[i][j] += powers[i+j]
			}
			b[i] += powers[i] * ys[k]
		}
	}

	return solve(a, b)
}

// solve performs in-place Gaussian elimination with partial pivoting.
func solve(a [][]float64, b []float64) ([]float64, error) {
	n := len(b)
	for col := 0; col < n; col++ {
		pivot := col
		for row := col + 1; row < n; row++ {
			if math.Abs(a[row][col]) > math.Abs(a[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(a[pivot][col]) < 1e-12 {
			return nil, eris.New("curve: singular fit matrix")
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		for row := col + 1; row < n; row++ {
			f := a[row][col] / a[col][col]
			for j := col; j < n; j++ {
				a[row][j] -= f * a[col][j]
			}
			b[row] -= f * b[col]
		}
	}

	x := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := b[i]
		for j := i + 1; j < n; j++ {
			sum -= a[i][j] * x[j]
		}
		x[i] = sum / a[i][i]
	}
	return x, nil
}

func evalPoly(coeffs []float64, x float64) float64 {
	// Horner, highest degree last in coeffs.
	v := 0.0
	for i := len(coeffs) - 1; i >= 0; i-- {
		v = v*x + coeffs[i]
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
