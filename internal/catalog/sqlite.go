package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/apexflow/pumpselect/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS pumps (
	code         TEXT PRIMARY KEY,
	manufacturer TEXT NOT NULL DEFAULT '',
	pump_type    TEXT NOT NULL DEFAULT '',
	series       TEXT NOT NULL DEFAULT '',
	spec         TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS curves (
	id          TEXT PRIMARY KEY,
	pump_code   TEXT NOT NULL REFERENCES pumps(code),
	impeller_mm REAL NOT NULL,
	speed_rpm   REAL NOT NULL,
	points      TEXT NOT NULL,
	UNIQUE (pump_code, impeller_mm)
);

CREATE TABLE IF NOT EXISTS profiles (
	id     TEXT PRIMARY KEY,
	name   TEXT NOT NULL,
	active INTEGER NOT NULL DEFAULT 0,
	data   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS brain_configs (
	id         TEXT PRIMARY KEY,
	version    INTEGER NOT NULL,
	status     TEXT NOT NULL,
	production INTEGER NOT NULL DEFAULT 0,
	active     INTEGER NOT NULL DEFAULT 0,
	data       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS corrections (
	id        TEXT PRIMARY KEY,
	pump_code TEXT NOT NULL,
	status    TEXT NOT NULL,
	data      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS constants (
	name     TEXT PRIMARY KEY,
	category TEXT NOT NULL,
	value    REAL NOT NULL,
	unit     TEXT NOT NULL DEFAULT '',
	locked   INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS traces (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	data       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_curves_pump_code ON curves(pump_code);
CREATE INDEX IF NOT EXISTS idx_profiles_active ON profiles(active);
CREATE INDEX IF NOT EXISTS idx_corrections_pump_code ON corrections(pump_code, status);
CREATE INDEX IF NOT EXISTS idx_traces_session ON traces(session_id);
CREATE INDEX IF NOT EXISTS idx_traces_created ON traces(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetPump(ctx context.Context, code string) (*model.Pump, error) {
	var p model.Pump
	var specJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT code, manufacturer, pump_type, series, spec FROM pumps WHERE code = ?`, code,
	).Scan(&p.Code, &p.Manufacturer, &p.PumpType, &p.Series, &specJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get pump %s", code)
	}
	if err := json.Unmarshal([]byte(specJSON), &p.Spec); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal spec for %s", code)
	}
	curves, err := s.curvesFor(ctx, code)
	if err != nil {
		return nil, err
	}
	p.Curves = curves
	return &p, nil
}

func (s *SQLiteStore) curvesFor(ctx context.Context, pumpCode string) ([]model.Curve, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT pump_code, impeller_mm, speed_rpm, points FROM curves WHERE pump_code = ? ORDER BY impeller_mm DESC`,
		pumpCode,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: curves for %s", pumpCode)
	}
	defer rows.Close()

	var curves []model.Curve
	for rows.Next() {
		var c model.Curve
		var pointsJSON string
		if err := rows.Scan(&c.PumpCode, &c.ImpellerMM, &c.SpeedRPM, &pointsJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan curve")
		}
		if err := json.Unmarshal([]byte(pointsJSON), &c.Points); err != nil {
			return nil, eris.Wrapf(err, "sqlite: unmarshal points for %s/%.0f", pumpCode, c.ImpellerMM)
		}
		curves = append(curves, c)
	}
	return curves, eris.Wrap(rows.Err(), "sqlite: iterate curves")
}

func (s *SQLiteStore) ListCandidatePumps(ctx context.Context, filter PumpFilter) ([]model.Pump, error) {
	query := `SELECT code FROM pumps`
	var conds []string
	var args []any
	if filter.Application != "" {
		conds = append(conds, "pump_type = ?")
		args = append(args, filter.Application)
	}
	if len(filter.Codes) > 0 {
		ph := strings.Repeat("?,", len(filter.Codes))
		conds = append(conds, "code IN ("+ph[:len(ph)-1]+")")
		for _, c := range filter.Codes {
			args = append(args, c)
		}
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY code"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list pumps")
	}
	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "sqlite: scan pump code")
		}
		codes = append(codes, code)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, eris.Wrap(err, "sqlite: iterate pumps")
	}
	rows.Close()

	var pumps []model.Pump
	for _, code := range codes {
		p, err := s.GetPump(ctx, code)
		if err != nil {
			return nil, err
		}
		if p == nil {
			continue
		}
		// Flow envelope filtering happens here rather than in SQL; the
		// envelope lives inside the spec document.
		if filter.MinFlowM3H > 0 && p.Spec.MaxFlowM3H < filter.MinFlowM3H {
			continue
		}
		if filter.MaxFlowM3H > 0 && p.Spec.MinFlowM3H > filter.MaxFlowM3H {
			continue
		}
		pumps = append(pumps, *p)
	}
	return pumps, nil
}

func (s *SQLiteStore) GetConstants(ctx context.Context) (model.ConstantSet, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, category, value, unit, locked FROM constants`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get constants")
	}
	defer rows.Close()

	set := model.ConstantSet{}
	for rows.Next() {
		var c model.EngineeringConstant
		if err := rows.Scan(&c.Name, &c.Category, &c.Value, &c.Unit, &c.Locked); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan constant")
		}
		set[c.Name] = c
	}
	return set, eris.Wrap(rows.Err(), "sqlite: iterate constants")
}

func (s *SQLiteStore) GetActiveProfile(ctx context.Context) (*model.ApplicationProfile, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM profiles WHERE active = 1 LIMIT 1`).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get active profile")
	}
	var p model.ApplicationProfile
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal profile")
	}
	return &p, nil
}

func (s *SQLiteStore) ListProfiles(ctx context.Context) ([]model.ApplicationProfile, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM profiles ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list profiles")
	}
	defer rows.Close()

	var out []model.ApplicationProfile
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan profile")
		}
		var p model.ApplicationProfile
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal profile")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate profiles")
}

func (s *SQLiteStore) GetActiveBrainConfig(ctx context.Context) (*model.BrainConfiguration, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM brain_configs WHERE production = 1 AND active = 1 AND status = ? LIMIT 1`,
		string(model.BrainConfigApproved),
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get active brain config")
	}
	var bc model.BrainConfiguration
	if err := json.Unmarshal([]byte(data), &bc); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal brain config")
	}
	return &bc, nil
}

func (s *SQLiteStore) GetActiveCorrections(ctx context.Context, pumpCode string) ([]model.DataCorrection, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM corrections WHERE pump_code = ? AND status = ?`,
		pumpCode, string(model.CorrectionActivated),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: corrections for %s", pumpCode)
	}
	defer rows.Close()

	var out []model.DataCorrection
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan correction")
		}
		var c model.DataCorrection
		if err := json.Unmarshal([]byte(data), &c); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal correction")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate corrections")
}

func (s *SQLiteStore) SaveTrace(ctx context.Context, trace *model.DecisionTrace) error {
	data, err := json.Marshal(trace)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal trace")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO traces (id, session_id, created_at, data) VALUES (?, ?, ?, ?)`,
		trace.ID, trace.SessionID, trace.CreatedAt.UTC(), string(data),
	)
	return eris.Wrapf(err, "sqlite: insert trace %s", trace.ID)
}

func (s *SQLiteStore) GetTrace(ctx context.Context, id string) (*model.DecisionTrace, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM traces WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(model.ErrTraceNotFound, "sqlite: trace %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get trace %s", id)
	}
	var t model.DecisionTrace
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal trace %s", id)
	}
	return &t, nil
}

func (s *SQLiteStore) ListTraces(ctx context.Context, filter TraceFilter) ([]model.DecisionTrace, error) {
	query := `SELECT data FROM traces`
	var args []any
	if filter.SessionID != "" {
		query += " WHERE session_id = ?"
		args = append(args, filter.SessionID)
	}
	query += " ORDER BY created_at DESC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list traces")
	}
	defer rows.Close()

	var out []model.DecisionTrace
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan trace")
		}
		var t model.DecisionTrace
		if err := json.Unmarshal([]byte(data), &t); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal trace")
		}
		out = append(out, t)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate traces")
}

func (s *SQLiteStore) SavePump(ctx context.Context, pump model.Pump) error {
	specJSON, err := json.Marshal(pump.Spec)
	if err != nil {
		return eris.Wrapf(err, "sqlite: marshal spec for %s", pump.Code)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO pumps (code, manufacturer, pump_type, series, spec) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET manufacturer=excluded.manufacturer,
			pump_type=excluded.pump_type, series=excluded.series, spec=excluded.spec`,
		pump.Code, pump.Manufacturer, pump.PumpType, pump.Series, string(specJSON),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: upsert pump %s", pump.Code)
	}

	for _, c := range pump.Curves {
		pointsJSON, err := json.Marshal(c.Points)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal points for %s/%.0f", pump.Code, c.ImpellerMM)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO curves (id, pump_code, impeller_mm, speed_rpm, points) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(pump_code, impeller_mm) DO UPDATE SET speed_rpm=excluded.speed_rpm, points=excluded.points`,
			uuid.New().String(), pump.Code, c.ImpellerMM, c.SpeedRPM, string(pointsJSON),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: upsert curve %s/%.0f", pump.Code, c.ImpellerMM)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit pump")
}

func (s *SQLiteStore) SaveProfile(ctx context.Context, profile model.ApplicationProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return eris.Wrapf(err, "sqlite: marshal profile %s", profile.Name)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO profiles (id, name, active, data) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name, active=excluded.active, data=excluded.data`,
		profile.ID, profile.Name, boolInt(profile.Active), string(data),
	)
	return eris.Wrapf(err, "sqlite: upsert profile %s", profile.Name)
}

func (s *SQLiteStore) SaveBrainConfig(ctx context.Context, cfg model.BrainConfiguration) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return eris.Wrapf(err, "sqlite: marshal brain config %s", cfg.ID)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO brain_configs (id, version, status, production, active, data) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET version=excluded.version, status=excluded.status,
			production=excluded.production, active=excluded.active, data=excluded.data`,
		cfg.ID, cfg.Version, string(cfg.Status), boolInt(cfg.Production), boolInt(cfg.Active), string(data),
	)
	return eris.Wrapf(err, "sqlite: upsert brain config %s", cfg.ID)
}

func (s *SQLiteStore) SaveCorrection(ctx context.Context, c model.DataCorrection) error {
	data, err := json.Marshal(c)
	if err != nil {
		return eris.Wrapf(err, "sqlite: marshal correction %s", c.ID)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO corrections (id, pump_code, status, data) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET pump_code=excluded.pump_code, status=excluded.status, data=excluded.data`,
		c.ID, c.PumpCode, string(c.Status), string(data),
	)
	return eris.Wrapf(err, "sqlite: upsert correction %s", c.ID)
}

func (s *SQLiteStore) SaveConstant(ctx context.Context, c model.EngineeringConstant) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO constants (name, category, value, unit, locked) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET category=excluded.category, value=excluded.value,
			unit=excluded.unit, locked=excluded.locked`,
		c.Name, c.Category, c.Value, c.Unit, boolInt(c.Locked),
	)
	return eris.Wrapf(err, "sqlite: upsert constant %s", c.Name)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
