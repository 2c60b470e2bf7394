package roster

import "github.com/mcdev12/fieldofplay/go/internal/dbconfig"

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS lifting_groups (
    id UUID PRIMARY KEY,
    name TEXT NOT NULL,
    platform TEXT NOT NULL,
    weigh_in_time TIMESTAMPTZ,
    competition_time TIMESTAMPTZ
)`,
	`CREATE TABLE IF NOT EXISTS athletes (
    id UUID PRIMARY KEY,
    group_id UUID NOT NULL REFERENCES lifting_groups(id) ON DELETE CASCADE,
    lot_number INTEGER NOT NULL,
    first_name TEXT NOT NULL DEFAULT '',
    last_name TEXT NOT NULL,
    team TEXT,
    category TEXT,
    entry_total INTEGER NOT NULL DEFAULT 0,
    body_weight DOUBLE PRECISION,
    withdrawn BOOLEAN NOT NULL DEFAULT FALSE,
    attempts JSONB,
    updated_at TIMESTAMPTZ
)`,
	`CREATE INDEX IF NOT EXISTS athletes_group_id_idx ON athletes (group_id)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS lifting_groups (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    platform TEXT NOT NULL,
    weigh_in_time TIMESTAMP,
    competition_time TIMESTAMP
)`,
	`CREATE TABLE IF NOT EXISTS athletes (
    id TEXT PRIMARY KEY,
    group_id TEXT NOT NULL REFERENCES lifting_groups(id) ON DELETE CASCADE,
    lot_number INTEGER NOT NULL,
    first_name TEXT NOT NULL DEFAULT '',
    last_name TEXT NOT NULL,
    team TEXT,
    category TEXT,
    entry_total INTEGER NOT NULL DEFAULT 0,
    body_weight REAL,
    withdrawn BOOLEAN NOT NULL DEFAULT 0,
    attempts BLOB,
    updated_at TIMESTAMP
)`,
	`CREATE INDEX IF NOT EXISTS athletes_group_id_idx ON athletes (group_id)`,
}

func schemaFor(driver string) []string {
	if driver == dbconfig.DriverSQLite {
		return sqliteSchema
	}
	return postgresSchema
}
