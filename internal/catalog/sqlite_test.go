package catalog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apexflow/pumpselect/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLite(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func fixturePump(code string) model.Pump {
	return model.Pump{
		Code:         code,
		Manufacturer: "ApexFlow",
		PumpType:     "end-suction",
		Series:       "APX",
		Spec: model.Specification{
			MinFlowM3H:       10,
			MaxFlowM3H:       120,
			MaxHeadM:         45,
			BEPFlowM3H:       80,
			BEPHeadM:         32,
			MinImpellerMM:    140,
			MaxImpellerMM:    169,
			VariableDiameter: true,
		},
		Curves: []model.Curve{
			{PumpCode: code, ImpellerMM: 154, SpeedRPM: 2900, Points: []model.CurvePoint{
				{FlowM3H: 40, HeadM: 30, EfficiencyPct: 55, NPSHrM: 2.2},
				{FlowM3H: 80, HeadM: 26, EfficiencyPct: 68, NPSHrM: 3.0},
			}},
			{PumpCode: code, ImpellerMM: 169, SpeedRPM: 2900, Points: []model.CurvePoint{
				{FlowM3H: 40, HeadM: 38, EfficiencyPct: 58, NPSHrM: 2.4},
				{FlowM3H: 80, HeadM: 33, EfficiencyPct: 71, NPSHrM: 3.3},
				{FlowM3H: 110, HeadM: 26, EfficiencyPct: 64, NPSHrM: 4.1},
			}},
		},
	}
}

func TestSQLite_PumpRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.SavePump(ctx, fixturePump("APX-65-160")))

	got, err := st.GetPump(ctx, "APX-65-160")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "ApexFlow", got.Manufacturer)
	assert.Equal(t, 80.0, got.Spec.BEPFlowM3H)
	require.Len(t, got.Curves, 2)
	// Largest diameter first.
	assert.Equal(t, 169.0, got.Curves[0].ImpellerMM)
	assert.Equal(t, 154.0, got.Curves[1].ImpellerMM)
	assert.Len(t, got.Curves[0].Points, 3)
}

func TestSQLite_GetPumpMissing(t *testing.T) {
	st := newTestStore(t)

	got, err := st.GetPump(context.Background(), "NO-SUCH-PUMP")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_SavePumpUpserts(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	pump := fixturePump("APX-65-160")
	require.NoError(t, st.SavePump(ctx, pump))

	pump.Spec.BEPFlowM3H = 85
	pump.Curves[1].Points[0].HeadM = 39
	require.NoError(t, st.SavePump(ctx, pump))

	got, err := st.GetPump(ctx, "APX-65-160")
	require.NoError(t, err)
	assert.Equal(t, 85.0, got.Spec.BEPFlowM3H)
	require.Len(t, got.Curves, 2) // re-import must not duplicate curves
	assert.Equal(t, 39.0, got.Curves[0].Points[0].HeadM)
}

func TestSQLite_ListCandidatePumps(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	a := fixturePump("APX-65-160")
	b := fixturePump("APX-80-200")
	b.PumpType = "split-case"
	c := fixturePump("LFT-150-125")
	c.Spec.MinFlowM3H = 200
	c.Spec.MaxFlowM3H = 400
	for _, p := range []model.Pump{a, b, c} {
		require.NoError(t, st.SavePump(ctx, p))
	}

	all, err := st.ListCandidatePumps(ctx, PumpFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byType, err := st.ListCandidatePumps(ctx, PumpFilter{Application: "split-case"})
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, "APX-80-200", byType[0].Code)

	byCodes, err := st.ListCandidatePumps(ctx, PumpFilter{Codes: []string{"APX-65-160", "LFT-150-125"}})
	require.NoError(t, err)
	assert.Len(t, byCodes, 2)

	// A duty around 80 m3/h excludes the 200-400 envelope.
	inEnvelope, err := st.ListCandidatePumps(ctx, PumpFilter{MinFlowM3H: 80, MaxFlowM3H: 80})
	require.NoError(t, err)
	for _, p := range inEnvelope {
		assert.NotEqual(t, "LFT-150-125", p.Code)
	}

	limited, err := st.ListCandidatePumps(ctx, PumpFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLite_ActiveProfile(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	got, err := st.GetActiveProfile(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	inactive := model.DefaultProfile()
	inactive.ID = "profile-hvac"
	inactive.Name = "hvac"
	inactive.Active = false
	require.NoError(t, st.SaveProfile(ctx, inactive))

	got, err = st.GetActiveProfile(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	active := model.DefaultProfile()
	require.NoError(t, st.SaveProfile(ctx, active))

	got, err = st.GetActiveProfile(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "general-service", got.Name)

	all, err := st.ListProfiles(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSQLite_ActiveBrainConfig(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	got, err := st.GetActiveBrainConfig(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	// Approved but not production: invisible to the resolver.
	require.NoError(t, st.SaveBrainConfig(ctx, model.BrainConfiguration{
		ID: "bc-staging", Version: 1, Status: model.BrainConfigApproved, Active: true,
	}))
	// Production and active but still draft: also invisible.
	require.NoError(t, st.SaveBrainConfig(ctx, model.BrainConfiguration{
		ID: "bc-draft", Version: 2, Status: model.BrainConfigDraft, Production: true, Active: true,
	}))

	got, err = st.GetActiveBrainConfig(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, st.SaveBrainConfig(ctx, model.BrainConfiguration{
		ID: "bc-live", Version: 3, Status: model.BrainConfigApproved, Production: true, Active: true,
		ScoringOverrides: map[string]float64{"max_acceptable_trim_pct": 10},
	}))

	got, err = st.GetActiveBrainConfig(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "bc-live", got.ID)
	assert.Equal(t, 10.0, got.ScoringOverrides["max_acceptable_trim_pct"])
}

func TestSQLite_ActiveCorrections(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveCorrection(ctx, model.DataCorrection{
		ID: "c-live", PumpCode: "APX-65-160", FieldPath: "specification.bep_flow_m3h",
		CorrectedValue: 75, Status: model.CorrectionActivated,
	}))
	require.NoError(t, st.SaveCorrection(ctx, model.DataCorrection{
		ID: "c-pending", PumpCode: "APX-65-160", FieldPath: "specification.bep_head_m",
		CorrectedValue: 30, Status: model.CorrectionProposed,
	}))
	require.NoError(t, st.SaveCorrection(ctx, model.DataCorrection{
		ID: "c-other", PumpCode: "APX-80-200", FieldPath: "specification.bep_flow_m3h",
		CorrectedValue: 90, Status: model.CorrectionActivated,
	}))

	got, err := st.GetActiveCorrections(ctx, "APX-65-160")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c-live", got[0].ID)
}

func TestSQLite_ConstantsRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	empty, err := st.GetConstants(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	for _, c := range model.DefaultConstants() {
		require.NoError(t, st.SaveConstant(ctx, c))
	}

	got, err := st.GetConstants(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2.9, got.MustGet(model.ConstBEPHeadExpSmall))
	lockedExp := got[model.ConstFlowDiameterExp]
	assert.True(t, lockedExp.Locked)
}

func TestSQLite_TraceRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	trace := &model.DecisionTrace{
		ID:           "trace-1",
		SessionID:    "sess-9",
		DutyFlow:     80,
		DutyHead:     32,
		SnapshotJSON: []byte(`{"profile":{}}`),
		Rankings: []model.RankedCandidate{
			{PumpCode: "APX-65-160", Score: 88.5, Tier: model.TierTop},
		},
		SelectedPump: "APX-65-160",
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, st.SaveTrace(ctx, trace))

	got, err := st.GetTrace(ctx, "trace-1")
	require.NoError(t, err)
	assert.Equal(t, "sess-9", got.SessionID)
	assert.Equal(t, "APX-65-160", got.SelectedPump)
	require.Len(t, got.Rankings, 1)
	assert.InDelta(t, 88.5, got.Rankings[0].Score, 1e-9)
}

func TestSQLite_GetTraceMissing(t *testing.T) {
	st := newTestStore(t)

	_, err := st.GetTrace(context.Background(), "no-such-trace")
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrTraceNotFound))
}

func TestSQLite_ListTraces(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"t-old", "t-mid", "t-new"} {
		require.NoError(t, st.SaveTrace(ctx, &model.DecisionTrace{
			ID:           id,
			SessionID:    "sess-a",
			SnapshotJSON: []byte(`{}`),
			CreatedAt:    base.Add(time.Duration(i) * time.Hour),
		}))
	}
	require.NoError(t, st.SaveTrace(ctx, &model.DecisionTrace{
		ID:           "t-other",
		SessionID:    "sess-b",
		SnapshotJSON: []byte(`{}`),
		CreatedAt:    base.Add(10 * time.Hour),
	}))

	bySession, err := st.ListTraces(ctx, TraceFilter{SessionID: "sess-a"})
	require.NoError(t, err)
	require.Len(t, bySession, 3)
	// Newest first.
	assert.Equal(t, "t-new", bySession[0].ID)
	assert.Equal(t, "t-old", bySession[2].ID)

	limited, err := st.ListTraces(ctx, TraceFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "t-other", limited[0].ID)
}

func TestImportPumps_FallbackLoop(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	// SQLite has no bulk path, so the import walks SavePump pump by pump.
	n, err := ImportPumps(ctx, st, []model.Pump{fixturePump("APX-65-160"), fixturePump("APX-80-200")})
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	got, err := st.GetPump(ctx, "APX-80-200")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, got.Curves, 2)

	// Re-import replaces rather than duplicates the curves.
	n, err = ImportPumps(ctx, st, []model.Pump{fixturePump("APX-65-160")})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	got, err = st.GetPump(ctx, "APX-65-160")
	require.NoError(t, err)
	require.Len(t, got.Curves, 2)
}
