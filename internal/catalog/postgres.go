package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/apexflow/pumpselect/internal/db"
	"github.com/apexflow/pumpselect/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot selection-path reads.
var preparedStatements = map[string]string{
	"get_pump":           `SELECT code, manufacturer, pump_type, series, spec FROM pumps WHERE code = $1`,
	"get_curves":         `SELECT pump_code, impeller_mm, speed_rpm, points FROM curves WHERE pump_code = $1 ORDER BY impeller_mm DESC`,
	"get_active_profile": `SELECT data FROM profiles WHERE active = true LIMIT 1`,
	"get_corrections":    `SELECT data FROM corrections WHERE pump_code = $1 AND status = $2`,
	"insert_trace":       `INSERT INTO traces (id, session_id, created_at, data) VALUES ($1, $2, $3, $4)`,
	"get_trace":          `SELECT data FROM traces WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Tests inject a pgxmock pool
// through here.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying database pool for subsystems that need
// direct query access (e.g., bulk catalog imports).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS pumps (
	code         TEXT PRIMARY KEY,
	manufacturer TEXT NOT NULL DEFAULT '',
	pump_type    TEXT NOT NULL DEFAULT '',
	series       TEXT NOT NULL DEFAULT '',
	spec         JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS curves (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	pump_code   TEXT NOT NULL REFERENCES pumps(code),
	impeller_mm DOUBLE PRECISION NOT NULL,
	speed_rpm   DOUBLE PRECISION NOT NULL,
	points      JSONB NOT NULL,
	UNIQUE (pump_code, impeller_mm)
);

CREATE TABLE IF NOT EXISTS profiles (
	id     TEXT PRIMARY KEY,
	name   TEXT NOT NULL,
	active BOOLEAN NOT NULL DEFAULT false,
	data   JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS brain_configs (
	id         TEXT PRIMARY KEY,
	version    INTEGER NOT NULL,
	status     TEXT NOT NULL,
	production BOOLEAN NOT NULL DEFAULT false,
	active     BOOLEAN NOT NULL DEFAULT false,
	data       JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS corrections (
	id        TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	pump_code TEXT NOT NULL,
	status    TEXT NOT NULL,
	data      JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS constants (
	name     TEXT PRIMARY KEY,
	category TEXT NOT NULL,
	value    DOUBLE PRECISION NOT NULL,
	unit     TEXT NOT NULL DEFAULT '',
	locked   BOOLEAN NOT NULL DEFAULT false
);

CREATE TABLE IF NOT EXISTS traces (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	data       JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_curves_pump_code ON curves(pump_code);
CREATE INDEX IF NOT EXISTS idx_profiles_active ON profiles(active);
CREATE INDEX IF NOT EXISTS idx_corrections_pump_code ON corrections(pump_code, status);
CREATE INDEX IF NOT EXISTS idx_traces_session ON traces(session_id);
CREATE INDEX IF NOT EXISTS idx_traces_created ON traces(created_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) GetPump(ctx context.Context, code string) (*model.Pump, error) {
	var p model.Pump
	var specJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT code, manufacturer, pump_type, series, spec FROM pumps WHERE code = $1`, code,
	).Scan(&p.Code, &p.Manufacturer, &p.PumpType, &p.Series, &specJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get pump %s", code)
	}
	if err := json.Unmarshal(specJSON, &p.Spec); err != nil {
		return nil, eris.Wrapf(err, "postgres: unmarshal spec for %s", code)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT pump_code, impeller_mm, speed_rpm, points FROM curves WHERE pump_code = $1 ORDER BY impeller_mm DESC`,
		code,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: curves for %s", code)
	}
	defer rows.Close()

	for rows.Next() {
		var c model.Curve
		var pointsJSON []byte
		if err := rows.Scan(&c.PumpCode, &c.ImpellerMM, &c.SpeedRPM, &pointsJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan curve")
		}
		if err := json.Unmarshal(pointsJSON, &c.Points); err != nil {
			return nil, eris.Wrapf(err, "postgres: unmarshal points for %s/%.0f", code, c.ImpellerMM)
		}
		p.Curves = append(p.Curves, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate curves")
	}
	return &p, nil
}

func (s *PostgresStore) ListCandidatePumps(ctx context.Context, filter PumpFilter) ([]model.Pump, error) {
	query := `SELECT code FROM pumps WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Application != "" {
		query += fmt.Sprintf(` AND pump_type = $%d`, argIdx)
		args = append(args, filter.Application)
		argIdx++
	}
	if len(filter.Codes) > 0 {
		query += fmt.Sprintf(` AND code = ANY($%d)`, argIdx)
		args = append(args, filter.Codes)
		argIdx++
	}
	if filter.MinFlowM3H > 0 {
		query += fmt.Sprintf(` AND (spec->>'max_flow_m3h')::float8 >= $%d`, argIdx)
		args = append(args, filter.MinFlowM3H)
		argIdx++
	}
	if filter.MaxFlowM3H > 0 {
		query += fmt.Sprintf(` AND (spec->>'min_flow_m3h')::float8 <= $%d`, argIdx)
		args = append(args, filter.MaxFlowM3H)
		argIdx++
	}
	query += ` ORDER BY code`
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, argIdx)
		args = append(args, filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list pumps")
	}
	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "postgres: scan pump code")
		}
		codes = append(codes, code)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, eris.Wrap(err, "postgres: iterate pumps")
	}
	rows.Close()

	var pumps []model.Pump
	for _, code := range codes {
		p, err := s.GetPump(ctx, code)
		if err != nil {
			return nil, err
		}
		if p != nil {
			pumps = append(pumps, *p)
		}
	}
	return pumps, nil
}

func (s *PostgresStore) GetConstants(ctx context.Context) (model.ConstantSet, error) {
	rows, err := s.pool.Query(ctx, `SELECT name, category, value, unit, locked FROM constants`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get constants")
	}
	defer rows.Close()

	set := model.ConstantSet{}
	for rows.Next() {
		var c model.EngineeringConstant
		if err := rows.Scan(&c.Name, &c.Category, &c.Value, &c.Unit, &c.Locked); err != nil {
			return nil, eris.Wrap(err, "postgres: scan constant")
		}
		set[c.Name] = c
	}
	return set, eris.Wrap(rows.Err(), "postgres: iterate constants")
}

func (s *PostgresStore) GetActiveProfile(ctx context.Context) (*model.ApplicationProfile, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM profiles WHERE active = true LIMIT 1`).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get active profile")
	}
	var p model.ApplicationProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal profile")
	}
	return &p, nil
}

func (s *PostgresStore) ListProfiles(ctx context.Context) ([]model.ApplicationProfile, error) {
	rows, err := s.pool.Query(ctx, `SELECT data FROM profiles ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list profiles")
	}
	defer rows.Close()

	var out []model.ApplicationProfile
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan profile")
		}
		var p model.ApplicationProfile
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal profile")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate profiles")
}

func (s *PostgresStore) GetActiveBrainConfig(ctx context.Context) (*model.BrainConfiguration, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM brain_configs WHERE production = true AND active = true AND status = $1 LIMIT 1`,
		string(model.BrainConfigApproved),
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get active brain config")
	}
	var bc model.BrainConfiguration
	if err := json.Unmarshal(data, &bc); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal brain config")
	}
	return &bc, nil
}

func (s *PostgresStore) GetActiveCorrections(ctx context.Context, pumpCode string) ([]model.DataCorrection, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM corrections WHERE pump_code = $1 AND status = $2`,
		pumpCode, string(model.CorrectionActivated),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: corrections for %s", pumpCode)
	}
	defer rows.Close()

	var out []model.DataCorrection
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan correction")
		}
		var c model.DataCorrection
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal correction")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate corrections")
}

func (s *PostgresStore) SaveTrace(ctx context.Context, trace *model.DecisionTrace) error {
	data, err := json.Marshal(trace)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal trace")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO traces (id, session_id, created_at, data) VALUES ($1, $2, $3, $4)`,
		trace.ID, trace.SessionID, trace.CreatedAt.UTC(), data,
	)
	return eris.Wrapf(err, "postgres: insert trace %s", trace.ID)
}

func (s *PostgresStore) GetTrace(ctx context.Context, id string) (*model.DecisionTrace, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM traces WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(model.ErrTraceNotFound, "postgres: trace %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get trace %s", id)
	}
	var t model.DecisionTrace
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, eris.Wrapf(err, "postgres: unmarshal trace %s", id)
	}
	return &t, nil
}

func (s *PostgresStore) ListTraces(ctx context.Context, filter TraceFilter) ([]model.DecisionTrace, error) {
	query := `SELECT data FROM traces WHERE true`
	args := []any{}
	argIdx := 1

	if filter.SessionID != "" {
		query += fmt.Sprintf(` AND session_id = $%d`, argIdx)
		args = append(args, filter.SessionID)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list traces")
	}
	defer rows.Close()

	var out []model.DecisionTrace
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan trace")
		}
		var t model.DecisionTrace
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal trace")
		}
		out = append(out, t)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate traces")
}

func (s *PostgresStore) SavePump(ctx context.Context, pump model.Pump) error {
	specJSON, err := json.Marshal(pump.Spec)
	if err != nil {
		return eris.Wrapf(err, "postgres: marshal spec for %s", pump.Code)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx, `
		INSERT INTO pumps (code, manufacturer, pump_type, series, spec) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (code) DO UPDATE SET manufacturer = $2, pump_type = $3, series = $4, spec = $5`,
		pump.Code, pump.Manufacturer, pump.PumpType, pump.Series, specJSON,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: upsert pump %s", pump.Code)
	}

	for _, c := range pump.Curves {
		pointsJSON, err := json.Marshal(c.Points)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal points for %s/%.0f", pump.Code, c.ImpellerMM)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO curves (id, pump_code, impeller_mm, speed_rpm, points) VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (pump_code, impeller_mm) DO UPDATE SET speed_rpm = $4, points = $5`,
			uuid.New().String(), pump.Code, c.ImpellerMM, c.SpeedRPM, pointsJSON,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: upsert curve %s/%.0f", pump.Code, c.ImpellerMM)
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit pump")
}

// ImportPumps bulk-loads a manufacturer catalog file. Pump rows go through
// the multi-row upsert; curve rows for the imported pumps are replaced
// wholesale and COPYed in one batch, which is the fast path for files that
// run to thousands of curve points. Returns the number of curve rows
// written.
func (s *PostgresStore) ImportPumps(ctx context.Context, pumps []model.Pump) (int64, error) {
	if len(pumps) == 0 {
		return 0, nil
	}

	pumpRows := make([][]any, len(pumps))
	codes := make([]string, len(pumps))
	var curveRows [][]any
	for i, p := range pumps {
		specJSON, err := json.Marshal(p.Spec)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: marshal spec for %s", p.Code)
		}
		pumpRows[i] = []any{p.Code, p.Manufacturer, p.PumpType, p.Series, specJSON}
		codes[i] = p.Code
		for _, c := range p.Curves {
			pointsJSON, err := json.Marshal(c.Points)
			if err != nil {
				return 0, eris.Wrapf(err, "postgres: marshal points for %s/%.0f", p.Code, c.ImpellerMM)
			}
			curveRows = append(curveRows, []any{uuid.New().String(), p.Code, c.ImpellerMM, c.SpeedRPM, pointsJSON})
		}
	}

	if _, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "pumps",
		Columns:      []string{"code", "manufacturer", "pump_type", "series", "spec"},
		ConflictKeys: []string{"code"},
	}, pumpRows); err != nil {
		return 0, eris.Wrap(err, "postgres: import pumps")
	}

	if _, err := s.pool.Exec(ctx, `DELETE FROM curves WHERE pump_code = ANY($1)`, codes); err != nil {
		return 0, eris.Wrap(err, "postgres: clear curves for import")
	}
	return db.CopyFrom(ctx, s.pool, "curves",
		[]string{"id", "pump_code", "impeller_mm", "speed_rpm", "points"}, curveRows)
}

func (s *PostgresStore) SaveProfile(ctx context.Context, profile model.ApplicationProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return eris.Wrapf(err, "postgres: marshal profile %s", profile.Name)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO profiles (id, name, active, data) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = $2, active = $3, data = $4`,
		profile.ID, profile.Name, profile.Active, data,
	)
	return eris.Wrapf(err, "postgres: upsert profile %s", profile.Name)
}

func (s *PostgresStore) SaveBrainConfig(ctx context.Context, cfg model.BrainConfiguration) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return eris.Wrapf(err, "postgres: marshal brain config %s", cfg.ID)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO brain_configs (id, version, status, production, active, data) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET version = $2, status = $3, production = $4, active = $5, data = $6`,
		cfg.ID, cfg.Version, string(cfg.Status), cfg.Production, cfg.Active, data,
	)
	return eris.Wrapf(err, "postgres: upsert brain config %s", cfg.ID)
}

func (s *PostgresStore) SaveCorrection(ctx context.Context, c model.DataCorrection) error {
	data, err := json.Marshal(c)
	if err != nil {
		return eris.Wrapf(err, "postgres: marshal correction %s", c.ID)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO corrections (id, pump_code, status, data) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET pump_code = $2, status = $3, data = $4`,
		c.ID, c.PumpCode, string(c.Status), data,
	)
	return eris.Wrapf(err, "postgres: upsert correction %s", c.ID)
}

func (s *PostgresStore) SaveConstant(ctx context.Context, c model.EngineeringConstant) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO constants (name, category, value, unit, locked) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO UPDATE SET category = $2, value = $3, unit = $4, locked = $5`,
		c.Name, c.Category, c.Value, c.Unit, c.Locked,
	)
	return eris.Wrapf(err, "postgres: upsert constant %s", c.Name)
}
