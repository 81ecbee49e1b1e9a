package corestore

import (
	"context"
	"database/sql"
	"fmt"
)

// SchemaVersion is the current corestore schema version, tracked the way
// the teacher's internal/store/schema.go tracks its graph schema: a
// schema_version table holding PRAGMA-style integer versions, migrated
// forward sequentially on open.
const SchemaVersion = 1

const schemaV1 = `
CREATE TABLE IF NOT EXISTS observations (
    id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    text TEXT NOT NULL,
    credibility REAL NOT NULL DEFAULT 0,
    clarity REAL NOT NULL DEFAULT 0,
    extraction_confidence REAL NOT NULL DEFAULT 0,
    reinforcement_count INTEGER NOT NULL DEFAULT 0,
    decay_rate REAL NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    last_seen_at TEXT NOT NULL,
    prompt_ids TEXT,    -- JSON array
    embedding TEXT,     -- JSON array of float32, null until the gateway fills it in
    is_active INTEGER NOT NULL DEFAULT 1,
    deleted_by_user INTEGER NOT NULL DEFAULT 0,
    deleted_at TEXT,
    report_reason TEXT,
    PRIMARY KEY (user_id, id)
);
CREATE INDEX IF NOT EXISTS idx_observations_user_active ON observations(user_id, is_active);

CREATE TABLE IF NOT EXISTS prompts (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    text TEXT NOT NULL,
    timestamp TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_prompts_user ON prompts(user_id);

CREATE TABLE IF NOT EXISTS profiles (
    user_id TEXT PRIMARY KEY,
    behavior_clusters TEXT NOT NULL,  -- JSON array of models.Cluster
    archetype TEXT,                   -- JSON models.Archetype, null if none
    analysis_metadata TEXT NOT NULL,  -- JSON models.AnalysisMetadata
    settings TEXT NOT NULL,           -- JSON models.Settings
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS pending_deletions (
    user_id TEXT PRIMARY KEY REFERENCES profiles(user_id) ON DELETE CASCADE,
    deletion_id TEXT NOT NULL,
    complete_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pending_deletions_complete_at ON pending_deletions(complete_at);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);
`

// InitSchema creates the schema on a fresh database or migrates an
// existing one forward to SchemaVersion, mirroring the teacher's
// store.InitSchema control flow.
func InitSchema(ctx context.Context, db *sql.DB) error {
	currentVersion, err := getSchemaVersion(ctx, db)
	if err != nil {
		return createSchema(ctx, db)
	}
	if currentVersion < SchemaVersion {
		return migrateSchema(ctx, db, currentVersion)
	}
	return nil
}

func getSchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version sql.NullInt64
	err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&version)
	if err != nil {
		return 0, err
	}
	if !version.Valid {
		return 0, fmt.Errorf("no schema version recorded")
	}
	return int(version.Int64), nil
}

func createSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_version (version, applied_at) VALUES (?, datetime('now'))`, SchemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}

// migrateSchema applies sequential migrations from currentVersion to
// SchemaVersion. There is only one version today; this is the seam
// future migrations attach to, following the teacher's pattern of one
// migrateVxToVy function per step.
func migrateSchema(ctx context.Context, db *sql.DB, currentVersion int) error {
	if currentVersion >= SchemaVersion {
		return nil
	}
	return fmt.Errorf("no migration path from schema version %d to %d", currentVersion, SchemaVersion)
}
