package curve

import (
	"math"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apexflow/pumpselect/internal/model"
)

// quadCurve builds a five-point curve whose channels are exact polynomials,
// so the least-squares fit must reproduce them.
func quadCurve() model.Curve {
	c := model.Curve{PumpCode: "APX-65-160", ImpellerMM: 169, SpeedRPM: 2900}
	for _, q := range []float64{20, 40, 60, 80, 100} {
		c.Points = append(c.Points, model.CurvePoint{
			FlowM3H:       q,
			HeadM:         40 - 0.002*q*q,
			EfficiencyPct: 80 - 0.01*(q-70)*(q-70),
			NPSHrM:        2 + 0.02*q,
		})
	}
	return c
}

func TestAtFlow_RecoversPolynomialChannels(t *testing.T) {
	c := quadCurve()

	pt, err := AtFlow(c, 50, 0.10)
	require.NoError(t, err)
	assert.InDelta(t, 35.0, pt.HeadM, 1e-6)
	assert.InDelta(t, 76.0, pt.EfficiencyPct, 1e-6)
	assert.InDelta(t, 3.0, pt.NPSHrM, 1e-6)
	assert.Equal(t, 50.0, pt.FlowM3H)
}

func TestAtFlow_ExactTestedPoint(t *testing.T) {
	c := quadCurve()

	pt, err := AtFlow(c, 80, 0.10)
	require.NoError(t, err)
	assert.InDelta(t, 27.2, pt.HeadM, 1e-6)
	assert.InDelta(t, 79.0, pt.EfficiencyPct, 1e-6)
}

func TestAtFlow_UnsortedPointsHandled(t *testing.T) {
	c := quadCurve()
	// Vendor files arrive in arbitrary order.
	c.Points[0], c.Points[3] = c.Points[3], c.Points[0]
	c.Points[1], c.Points[4] = c.Points[4], c.Points[1]

	pt, err := AtFlow(c, 50, 0.10)
	require.NoError(t, err)
	assert.InDelta(t, 35.0, pt.HeadM, 1e-6)
}

func TestAtFlow_ExtrapolationLimit(t *testing.T) {
	c := quadCurve() // max tested flow 100

	_, err := AtFlow(c, 109, 0.10)
	assert.NoError(t, err)

	_, err = AtFlow(c, 111, 0.10)
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrOutOfRange))
}

func TestAtFlow_NegativeFlow(t *testing.T) {
	_, err := AtFlow(quadCurve(), -1, 0.10)
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrOutOfRange))
}

func TestAtFlow_TooFewPoints(t *testing.T) {
	c := model.Curve{
		PumpCode:   "APX-65-160",
		ImpellerMM: 169,
		Points:     []model.CurvePoint{{FlowM3H: 50, HeadM: 30, EfficiencyPct: 60}},
	}
	_, err := AtFlow(c, 40, 0.10)
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrCurveData))
}

func TestAtFlow_NonFinitePoint(t *testing.T) {
	c := quadCurve()
	c.Points[2].HeadM = math.NaN()

	_, err := AtFlow(c, 50, 0.10)
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrCurveData))
}

func TestAtFlow_NPSHrFitsNonzeroSubset(t *testing.T) {
	// Vendors publish NPSHr for the upper flow range only; zeros mean "not
	// tested" and must not drag the fit down.
	c := model.Curve{PumpCode: "APX-80-200", ImpellerMM: 209, SpeedRPM: 2900}
	for _, q := range []float64{20, 40, 60, 80, 100} {
		npshr := 0.0
		if q >= 60 {
			npshr = 2 + 0.02*q
		}
		c.Points = append(c.Points, model.CurvePoint{
			FlowM3H:       q,
			HeadM:         40 - 0.002*q*q,
			EfficiencyPct: 60,
			NPSHrM:        npshr,
		})
	}

	pt, err := AtFlow(c, 70, 0.10)
	require.NoError(t, err)
	assert.InDelta(t, 3.4, pt.NPSHrM, 1e-6)
}

func TestAtFlow_NPSHrAllZero(t *testing.T) {
	c := quadCurve()
	for i := range c.Points {
		c.Points[i].NPSHrM = 0
	}
	pt, err := AtFlow(c, 50, 0.10)
	require.NoError(t, err)
	assert.Equal(t, 0.0, pt.NPSHrM)
}

func TestAtFlow_EfficiencyClamped(t *testing.T) {
	c := quadCurve()
	// Extrapolating the efficiency parabola far past its vertex goes
	// negative; the estimate must clamp instead.
	pt, err := AtFlow(c, 5, 0.10)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, pt.EfficiencyPct, 0.0)
	assert.LessOrEqual(t, pt.EfficiencyPct, 100.0)
}

func TestAtFlow_LowHeadCurveStaysFinite(t *testing.T) {
	// Regression shape: a dense, nearly flat low-head curve ending at a
	// fractional flow. The fit must stay finite across the whole range.
	c := model.Curve{PumpCode: "LFT-150-125", ImpellerMM: 217, SpeedRPM: 960}
	flows := []float64{15.7, 31.5, 47.2, 62.9, 78.7, 94.4, 110.1, 125.9}
	heads := []float64{9.8, 9.6, 9.3, 8.9, 8.4, 7.8, 7.1, 6.3}
	for i := range flows {
		c.Points = append(c.Points, model.CurvePoint{
			FlowM3H:       flows[i],
			HeadM:         heads[i],
			EfficiencyPct: 40 + float64(i),
			NPSHrM:        2 + 0.02*flows[i],
		})
	}

	for _, q := range []float64{15.7, 60, 100, 125.9, 130} {
		pt, err := AtFlow(c, q, 0.10)
		require.NoError(t, err, "flow %.1f", q)
		assert.False(t, math.IsNaN(pt.HeadM) || math.IsInf(pt.HeadM, 0), "flow %.1f", q)
		assert.Greater(t, pt.HeadM, 0.0, "flow %.1f", q)
	}
}
