package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apexflow/pumpselect/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresWithPool(mock), mock
}

func TestPostgresStore_GetPump_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT code, manufacturer, pump_type, series, spec FROM pumps WHERE code = \$1`).
		WithArgs("APX-00-000").
		WillReturnError(pgx.ErrNoRows)

	p, err := s.GetPump(context.Background(), "APX-00-000")
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetPump_WithCurves(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	specJSON := []byte(`{"min_flow_m3h":10,"max_flow_m3h":70,"bep_flow_m3h":45,"bep_head_m":28,"construction":"volute"}`)
	mock.ExpectQuery(`SELECT code, manufacturer, pump_type, series, spec FROM pumps WHERE code = \$1`).
		WithArgs("APX-65-160").
		WillReturnRows(pgxmock.NewRows([]string{"code", "manufacturer", "pump_type", "series", "spec"}).
			AddRow("APX-65-160", "ApexFlow", "end_suction", "APX", specJSON))

	pointsJSON := []byte(`[{"flow_m3h":20,"head_m":33.2,"efficiency_pct":55,"npshr_m":1.8},{"flow_m3h":45,"head_m":27.6,"efficiency_pct":73.5,"npshr_m":2.4}]`)
	mock.ExpectQuery(`SELECT pump_code, impeller_mm, speed_rpm, points FROM curves WHERE pump_code = \$1 ORDER BY impeller_mm DESC`).
		WithArgs("APX-65-160").
		WillReturnRows(pgxmock.NewRows([]string{"pump_code", "impeller_mm", "speed_rpm", "points"}).
			AddRow("APX-65-160", 169.0, 2950.0, pointsJSON).
			AddRow("APX-65-160", 154.0, 2950.0, pointsJSON))

	p, err := s.GetPump(context.Background(), "APX-65-160")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "ApexFlow", p.Manufacturer)
	assert.Equal(t, 45.0, p.Spec.BEPFlowM3H)
	assert.Equal(t, model.ConstructionVolute, p.Spec.Construction)
	require.Len(t, p.Curves, 2)
	assert.Equal(t, 169.0, p.Curves[0].ImpellerMM)
	assert.Equal(t, 154.0, p.Curves[1].ImpellerMM)
	require.Len(t, p.Curves[0].Points, 2)
	assert.Equal(t, 73.5, p.Curves[0].Points[1].EfficiencyPct)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetPump_BadSpecJSON(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT code, manufacturer, pump_type, series, spec FROM pumps`).
		WithArgs("APX-65-160").
		WillReturnRows(pgxmock.NewRows([]string{"code", "manufacturer", "pump_type", "series", "spec"}).
			AddRow("APX-65-160", "", "", "", []byte(`{not json`)))

	_, err := s.GetPump(context.Background(), "APX-65-160")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal spec")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListCandidatePumps_Filters(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT code FROM pumps WHERE true AND pump_type = \$1 AND \(spec->>'max_flow_m3h'\)::float8 >= \$2 ORDER BY code LIMIT \$3`).
		WithArgs("end_suction", 80.0, 5).
		WillReturnRows(pgxmock.NewRows([]string{"code"}))

	pumps, err := s.ListCandidatePumps(context.Background(), PumpFilter{
		Application: "end_suction",
		MinFlowM3H:  80,
		Limit:       5,
	})
	require.NoError(t, err)
	assert.Empty(t, pumps)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetActiveProfile_None(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT data FROM profiles WHERE active = true`).
		WillReturnError(pgx.ErrNoRows)

	prof, err := s.GetActiveProfile(context.Background())
	require.NoError(t, err)
	assert.Nil(t, prof)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetActiveBrainConfig_RequiresApproved(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT data FROM brain_configs WHERE production = true AND active = true AND status = \$1`).
		WithArgs("approved").
		WillReturnRows(pgxmock.NewRows([]string{"data"}).
			AddRow([]byte(`{"id":"bc-7","version":7,"status":"approved","production":true,"active":true}`)))

	bc, err := s.GetActiveBrainConfig(context.Background())
	require.NoError(t, err)
	require.NotNil(t, bc)
	assert.Equal(t, 7, bc.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetActiveCorrections(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT data FROM corrections WHERE pump_code = \$1 AND status = \$2`).
		WithArgs("LFT-150-125", "activated").
		WillReturnRows(pgxmock.NewRows([]string{"data"}).
			AddRow([]byte(`{"id":"corr-1","pump_code":"LFT-150-125","field_path":"specification.bep_head_m","corrected_value":11.0,"status":"activated"}`)))

	out, err := s.GetActiveCorrections(context.Background(), "LFT-150-125")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "corr-1", out[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetTrace_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT data FROM traces WHERE id = \$1`).
		WithArgs("missing-trace").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetTrace(context.Background(), "missing-trace")
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrTraceNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveTrace(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO traces`).
		WithArgs("tr-1", "sess-1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SaveTrace(context.Background(), &model.DecisionTrace{
		ID:        "tr-1",
		SessionID: "sess-1",
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListTraces_DefaultLimit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT data FROM traces WHERE true ORDER BY created_at DESC LIMIT \$1`).
		WithArgs(50).
		WillReturnRows(pgxmock.NewRows([]string{"data"}).
			AddRow([]byte(`{"id":"tr-9"}`)))

	out, err := s.ListTraces(context.Background(), TraceFilter{})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "tr-9", out[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SavePump_Transactional(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO pumps .+ ON CONFLICT`).
		WithArgs("APX-65-160", "ApexFlow", "end_suction", "APX", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO curves .+ ON CONFLICT`).
		WithArgs(pgxmock.AnyArg(), "APX-65-160", 169.0, 2950.0, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := s.SavePump(context.Background(), model.Pump{
		Code:         "APX-65-160",
		Manufacturer: "ApexFlow",
		PumpType:     "end_suction",
		Series:       "APX",
		Curves: []model.Curve{
			{PumpCode: "APX-65-160", ImpellerMM: 169, SpeedRPM: 2950, Points: []model.CurvePoint{
				{FlowM3H: 45, HeadM: 27.6, EfficiencyPct: 73.5, NPSHrM: 2.4},
			}},
		},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveConstant(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO constants .+ ON CONFLICT`).
		WithArgs("max_trim_pct", "affinity", 15.0, "%", false).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SaveConstant(context.Background(), model.EngineeringConstant{
		Name: "max_trim_pct", Category: "affinity", Value: 15.0, Unit: "%",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ImportPumps_BulkPath(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	// Pump rows run through the temp-table upsert, then the curves for the
	// imported codes are cleared and COPYed in one batch.
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_pumps"`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_pumps"},
		[]string{"code", "manufacturer", "pump_type", "series", "spec"}).
		WillReturnResult(1)
	mock.ExpectExec(`INSERT INTO "pumps" .+ ON CONFLICT`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectExec(`DELETE FROM curves WHERE pump_code = ANY\(\$1\)`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectCopyFrom(pgx.Identifier{"curves"},
		[]string{"id", "pump_code", "impeller_mm", "speed_rpm", "points"}).
		WillReturnResult(2)

	n, err := s.ImportPumps(context.Background(), []model.Pump{{
		Code:         "APX-65-160",
		Manufacturer: "ApexFlow",
		PumpType:     "end_suction",
		Series:       "APX",
		Curves: []model.Curve{
			{PumpCode: "APX-65-160", ImpellerMM: 169, SpeedRPM: 2950, Points: []model.CurvePoint{
				{FlowM3H: 45, HeadM: 27.6, EfficiencyPct: 73.5, NPSHrM: 2.4},
			}},
			{PumpCode: "APX-65-160", ImpellerMM: 154, SpeedRPM: 2950, Points: []model.CurvePoint{
				{FlowM3H: 40, HeadM: 23.1, EfficiencyPct: 70, NPSHrM: 2.3},
			}},
		},
	}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ImportPumps_Empty(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	n, err := s.ImportPumps(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
