package repository

// Rules are stored per tenant with a monotonically increasing sequence so
// listing preserves insertion order. Upserts keep the original sequence.

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS rules (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	tenant_id   TEXT NOT NULL,
	id          TEXT NOT NULL,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	condition   TEXT NOT NULL,
	action      TEXT NOT NULL,
	priority    INTEGER NOT NULL DEFAULT 0,
	enabled     INTEGER NOT NULL DEFAULT 1,
	severity    TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (tenant_id, id)
);

CREATE INDEX IF NOT EXISTS idx_rules_tenant_enabled ON rules (tenant_id, enabled);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS rules (
	seq         BIGSERIAL PRIMARY KEY,
	tenant_id   TEXT NOT NULL,
	id          TEXT NOT NULL,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	condition   TEXT NOT NULL,
	action      TEXT NOT NULL,
	priority    INTEGER NOT NULL DEFAULT 0,
	enabled     BOOLEAN NOT NULL DEFAULT TRUE,
	severity    TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (tenant_id, id)
);

CREATE INDEX IF NOT EXISTS idx_rules_tenant_enabled ON rules (tenant_id, enabled);
`
