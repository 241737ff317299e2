package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Migrate creates the tables if they do not exist yet. It is safe to run on
// every start-up.
func Migrate(ctx context.Context, db *sql.DB, d Dialect) error {
	r := strings.NewReplacer(
		"{float}", d.FloatType(),
		"{ts}", d.TimestampType(),
		"{slot_key}", SlotConstraint,
		"{name_key}", NameConstraint,
	)
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, r.Replace(stmt)); err != nil {
			return fmt.Errorf("sqlstore: schema statement %d: %w", i+1, err)
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id         TEXT PRIMARY KEY,
		created_at {ts} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS avatars (
		id            TEXT PRIMARY KEY,
		user_id       TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name          TEXT NOT NULL,
		name_key      TEXT NOT NULL,
		slot          INTEGER NOT NULL CHECK (slot >= 1),
		gender        TEXT NOT NULL,
		age_range     TEXT NOT NULL,
		creation_mode TEXT NOT NULL,
		source        TEXT NOT NULL,
		created_at    {ts} NOT NULL,
		updated_at    {ts} NOT NULL,
		CONSTRAINT {slot_key} UNIQUE (user_id, slot),
		CONSTRAINT {name_key} UNIQUE (user_id, name_key)
	)`,
	`CREATE TABLE IF NOT EXISTS avatar_basic_measurements (
		avatar_id       TEXT NOT NULL REFERENCES avatars(id) ON DELETE CASCADE,
		measurement_key TEXT NOT NULL,
		value           {float} NOT NULL,
		PRIMARY KEY (avatar_id, measurement_key)
	)`,
	`CREATE TABLE IF NOT EXISTS avatar_body_measurements (
		avatar_id       TEXT NOT NULL REFERENCES avatars(id) ON DELETE CASCADE,
		measurement_key TEXT NOT NULL,
		value           {float} NOT NULL,
		PRIMARY KEY (avatar_id, measurement_key)
	)`,
	`CREATE TABLE IF NOT EXISTS avatar_morph_targets (
		avatar_id TEXT NOT NULL REFERENCES avatars(id) ON DELETE CASCADE,
		morph_id  TEXT NOT NULL,
		value     {float} NOT NULL,
		PRIMARY KEY (avatar_id, morph_id)
	)`,
	`CREATE TABLE IF NOT EXISTS avatar_quick_mode (
		avatar_id      TEXT PRIMARY KEY REFERENCES avatars(id) ON DELETE CASCADE,
		body_shape     TEXT NOT NULL,
		athletic_level TEXT NOT NULL,
		measurements   TEXT NOT NULL DEFAULT '{}',
		updated_at     {ts} NOT NULL
	)`,
}
