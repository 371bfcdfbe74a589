package repository

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// schemaV1 defines the forecast snapshot schema. Deal fields arrive from CRM
// sync as text and are coerced on read.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS deals (
	id           TEXT NOT NULL,
	org_id       TEXT NOT NULL,
	amount       TEXT NOT NULL DEFAULT '',
	stage        TEXT NOT NULL DEFAULT '',
	health_score TEXT NOT NULL DEFAULT '',
	owner_id     TEXT NOT NULL DEFAULT '',
	owner_name   TEXT NOT NULL DEFAULT '',
	partner_name TEXT NOT NULL DEFAULT '',
	create_ts    TEXT NOT NULL DEFAULT '',
	close_date   TEXT NOT NULL DEFAULT '',
	product      TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (org_id, id)
);

CREATE TABLE IF NOT EXISTS quota_periods (
	id             TEXT NOT NULL,
	org_id         TEXT NOT NULL,
	period_start   TEXT NOT NULL,
	period_end     TEXT NOT NULL,
	fiscal_year    INTEGER NOT NULL DEFAULT 0,
	fiscal_quarter INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (org_id, id)
);
CREATE INDEX IF NOT EXISTS idx_periods_org_start ON quota_periods(org_id, period_start);

CREATE TABLE IF NOT EXISTS quotas (
	org_id          TEXT NOT NULL,
	quota_period_id TEXT NOT NULL,
	role_level      TEXT NOT NULL,
	owner_ref       TEXT NOT NULL DEFAULT '',
	amount          TEXT NOT NULL DEFAULT '',
	UNIQUE(org_id, quota_period_id, role_level, owner_ref)
);

CREATE TABLE IF NOT EXISTS stage_probabilities (
	org_id    TEXT PRIMARY KEY,
	commit_p  REAL,
	best_case REAL,
	pipeline  REAL
);

CREATE TABLE IF NOT EXISTS health_rules (
	id                   TEXT NOT NULL,
	org_id               TEXT NOT NULL,
	mapped_bucket        TEXT NOT NULL,
	min_score            REAL NOT NULL DEFAULT 0,
	max_score            REAL NOT NULL DEFAULT 0,
	suppression          INTEGER NOT NULL DEFAULT 0,
	probability_modifier REAL,
	PRIMARY KEY (org_id, id)
);

CREATE TABLE IF NOT EXISTS reps (
	org_id     TEXT NOT NULL,
	rep_id     TEXT NOT NULL,
	name       TEXT NOT NULL DEFAULT '',
	manager_id TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (org_id, rep_id)
);
CREATE INDEX IF NOT EXISTS idx_reps_manager ON reps(org_id, manager_id);

CREATE TABLE IF NOT EXISTS daily_rollups (
	day          TEXT NOT NULL,
	org_id       TEXT NOT NULL,
	workflow     TEXT NOT NULL,
	stage        TEXT NOT NULL,
	deal_count   INTEGER NOT NULL DEFAULT 0,
	total_amount REAL NOT NULL DEFAULT 0,
	p50_amount   REAL NOT NULL DEFAULT 0,
	p90_amount   REAL NOT NULL DEFAULT 0,
	avg_health   REAL,
	updated_at   INTEGER NOT NULL DEFAULT 0,
	UNIQUE(day, org_id, workflow, stage)
);
`

// NewDB opens a SQLite database at the given path with recommended pragmas
// and runs the V1 schema migration.
func NewDB(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite has a single writer.
	db.SetMaxOpenConns(1)

	if err := Migrate(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return db, nil
}

// Migrate applies the schema. It is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schemaV1)
	return err
}
