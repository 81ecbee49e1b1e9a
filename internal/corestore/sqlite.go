package corestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure Go driver, no cgo

	"github.com/cbie/core/internal/models"
)

// SQLiteStore implements ObservationRepository, PromptRepository, and
// ProfileRepository on top of modernc.org/sqlite, grounded on the
// teacher's internal/store/sqlite.go: same WAL/foreign_keys pragma
// string, the same connection pool tuning, and the same
// PRAGMA-tracked-by-table schema_version migration idiom from
// internal/store/schema.go. Nested structures (clusters, settings,
// metadata, embeddings) are stored as JSON text columns rather than
// normalized across tables, since they are always read and written
// whole per profile or observation.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if necessary) the database at
// dataDir/cbie.db, applies the schema, and returns a ready store.
func NewSQLiteStore(dataDir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("corestore: create data dir: %w", err)
	}
	dbPath := filepath.Join(dataDir, "cbie.db")

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("corestore: open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("corestore: init schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ObservationStore() ObservationRepository { return &sqliteObservationRepo{s.db} }
func (s *SQLiteStore) PromptStore() PromptRepository           { return &sqlitePromptRepo{s.db} }
func (s *SQLiteStore) ProfileStore() ProfileRepository         { return &sqliteProfileRepo{s.db} }

const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// --- observations ---------------------------------------------------

type sqliteObservationRepo struct{ db *sql.DB }

func marshalJSON(v interface{}) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func (r *sqliteObservationRepo) scanRow(row interface{ Scan(...any) error }) (models.Observation, error) {
	var o models.Observation
	var promptIDsJSON, embeddingJSON, deletedAt, reportReason sql.NullString
	var createdAt, lastSeenAt string
	var isActive, deletedByUser int

	err := row.Scan(
		&o.ID, &o.UserID, &o.Text,
		&o.Credibility, &o.Clarity, &o.ExtractionConfidence,
		&o.ReinforcementCount, &o.DecayRate,
		&createdAt, &lastSeenAt,
		&promptIDsJSON, &embeddingJSON,
		&isActive, &deletedByUser, &deletedAt, &reportReason,
	)
	if err != nil {
		return models.Observation{}, err
	}

	if o.CreatedAt, err = parseTime(createdAt); err != nil {
		return models.Observation{}, fmt.Errorf("parse created_at: %w", err)
	}
	if o.LastSeenAt, err = parseTime(lastSeenAt); err != nil {
		return models.Observation{}, fmt.Errorf("parse last_seen_at: %w", err)
	}
	if promptIDsJSON.Valid {
		if err := json.Unmarshal([]byte(promptIDsJSON.String), &o.PromptIDs); err != nil {
			return models.Observation{}, fmt.Errorf("unmarshal prompt_ids: %w", err)
		}
	}
	if embeddingJSON.Valid {
		if err := json.Unmarshal([]byte(embeddingJSON.String), &o.Embedding); err != nil {
			return models.Observation{}, fmt.Errorf("unmarshal embedding: %w", err)
		}
	}
	o.IsActive = isActive != 0
	o.DeletedByUser = deletedByUser != 0
	if deletedAt.Valid {
		t, err := parseTime(deletedAt.String)
		if err != nil {
			return models.Observation{}, fmt.Errorf("parse deleted_at: %w", err)
		}
		o.DeletedAt = &t
	}
	o.ReportReason = reportReason.String
	return o, nil
}

const observationColumns = `id, user_id, text, credibility, clarity, extraction_confidence,
	reinforcement_count, decay_rate, created_at, last_seen_at,
	prompt_ids, embedding, is_active, deleted_by_user, deleted_at, report_reason`

func (r *sqliteObservationRepo) ListActive(ctx context.Context, userID string) ([]models.Observation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+observationColumns+` FROM observations WHERE user_id = ? AND is_active = 1`, userID)
	if err != nil {
		return nil, fmt.Errorf("corestore: list active observations: %w", err)
	}
	defer rows.Close()

	var out []models.Observation
	for rows.Next() {
		o, err := r.scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("corestore: scan observation: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *sqliteObservationRepo) Get(ctx context.Context, userID, observationID string) (*models.Observation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+observationColumns+` FROM observations WHERE user_id = ? AND id = ?`, userID, observationID)
	o, err := r.scanRow(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("corestore: get observation: %w", err)
	}
	return &o, nil
}

func (r *sqliteObservationRepo) Put(ctx context.Context, obs models.Observation) error {
	if obs.ID == "" || obs.UserID == "" {
		return fmt.Errorf("%w: observation requires id and user_id", ErrValidation)
	}
	promptIDs, err := marshalJSON(obs.PromptIDs)
	if err != nil {
		return fmt.Errorf("corestore: marshal prompt_ids: %w", err)
	}
	var embedding sql.NullString
	if obs.Embedding != nil {
		embedding, err = marshalJSON(obs.Embedding)
		if err != nil {
			return fmt.Errorf("corestore: marshal embedding: %w", err)
		}
	}
	var deletedAt sql.NullString
	if obs.DeletedAt != nil {
		deletedAt = sql.NullString{String: formatTime(*obs.DeletedAt), Valid: true}
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO observations (
			id, user_id, text, credibility, clarity, extraction_confidence,
			reinforcement_count, decay_rate, created_at, last_seen_at,
			prompt_ids, embedding, is_active, deleted_by_user, deleted_at, report_reason
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, id) DO UPDATE SET
			text = excluded.text,
			credibility = excluded.credibility,
			clarity = excluded.clarity,
			extraction_confidence = excluded.extraction_confidence,
			reinforcement_count = excluded.reinforcement_count,
			decay_rate = excluded.decay_rate,
			created_at = excluded.created_at,
			last_seen_at = excluded.last_seen_at,
			prompt_ids = excluded.prompt_ids,
			embedding = excluded.embedding,
			is_active = excluded.is_active,
			deleted_by_user = excluded.deleted_by_user,
			deleted_at = excluded.deleted_at,
			report_reason = excluded.report_reason`,
		obs.ID, obs.UserID, obs.Text, obs.Credibility, obs.Clarity, obs.ExtractionConfidence,
		obs.ReinforcementCount, obs.DecayRate, formatTime(obs.CreatedAt), formatTime(obs.LastSeenAt),
		promptIDs, embedding, boolToInt(obs.IsActive), boolToInt(obs.DeletedByUser), deletedAt, obs.ReportReason,
	)
	if err != nil {
		return fmt.Errorf("corestore: put observation: %w", err)
	}
	return nil
}

func (r *sqliteObservationRepo) SoftDelete(ctx context.Context, userID, observationID string, at time.Time) error {
	var isActive int
	err := r.db.QueryRowContext(ctx,
		`SELECT is_active FROM observations WHERE user_id = ? AND id = ?`, userID, observationID).Scan(&isActive)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("corestore: soft delete lookup: %w", err)
	}
	if isActive == 0 {
		return ErrAlreadyDeleted
	}

	_, err = r.db.ExecContext(ctx, `
		UPDATE observations SET is_active = 0, deleted_by_user = 1, deleted_at = ?
		WHERE user_id = ? AND id = ?`, formatTime(at), userID, observationID)
	if err != nil {
		return fmt.Errorf("corestore: soft delete: %w", err)
	}
	return nil
}

func (r *sqliteObservationRepo) MarkReported(ctx context.Context, userID, observationID, reason string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE observations SET report_reason = ? WHERE user_id = ? AND id = ?`, reason, userID, observationID)
	if err != nil {
		return fmt.Errorf("corestore: mark reported: %w", err)
	}
	return checkAffected(res)
}

func (r *sqliteObservationRepo) Purge(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM observations WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("corestore: purge observations: %w", err)
	}
	return nil
}

// --- prompts ----------------------------------------------------------

type sqlitePromptRepo struct{ db *sql.DB }

func (r *sqlitePromptRepo) ListByIDs(ctx context.Context, promptIDs []string) ([]models.Prompt, error) {
	if len(promptIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]byte, 0, len(promptIDs)*2)
	args := make([]interface{}, len(promptIDs))
	for i, id := range promptIDs {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, text, timestamp FROM prompts WHERE id IN (`+string(placeholders)+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("corestore: list prompts: %w", err)
	}
	defer rows.Close()

	var out []models.Prompt
	for rows.Next() {
		var p models.Prompt
		var ts string
		if err := rows.Scan(&p.ID, &p.UserID, &p.Text, &ts); err != nil {
			return nil, fmt.Errorf("corestore: scan prompt: %w", err)
		}
		if p.Timestamp, err = parseTime(ts); err != nil {
			return nil, fmt.Errorf("corestore: parse prompt timestamp: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *sqlitePromptRepo) Put(ctx context.Context, p models.Prompt) error {
	if p.ID == "" {
		return fmt.Errorf("%w: prompt requires id", ErrValidation)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO prompts (id, user_id, text, timestamp) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET user_id = excluded.user_id, text = excluded.text, timestamp = excluded.timestamp`,
		p.ID, p.UserID, p.Text, formatTime(p.Timestamp))
	if err != nil {
		return fmt.Errorf("corestore: put prompt: %w", err)
	}
	return nil
}

func (r *sqlitePromptRepo) Purge(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM prompts WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("corestore: purge prompts: %w", err)
	}
	return nil
}

// --- profiles -----------------------------------------------------------

type sqliteProfileRepo struct{ db *sql.DB }

func (r *sqliteProfileRepo) Get(ctx context.Context, userID string) (*models.Profile, error) {
	var clustersJSON, settingsJSON, metadataJSON string
	var archetypeJSON sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT behavior_clusters, archetype, analysis_metadata, settings FROM profiles WHERE user_id = ?`, userID).
		Scan(&clustersJSON, &archetypeJSON, &metadataJSON, &settingsJSON)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("corestore: get profile: %w", err)
	}

	p := models.Profile{UserID: userID}
	if err := json.Unmarshal([]byte(clustersJSON), &p.BehaviorClusters); err != nil {
		return nil, fmt.Errorf("corestore: unmarshal behavior_clusters: %w", err)
	}
	if err := json.Unmarshal([]byte(metadataJSON), &p.AnalysisMetadata); err != nil {
		return nil, fmt.Errorf("corestore: unmarshal analysis_metadata: %w", err)
	}
	if err := json.Unmarshal([]byte(settingsJSON), &p.Settings); err != nil {
		return nil, fmt.Errorf("corestore: unmarshal settings: %w", err)
	}
	if archetypeJSON.Valid {
		var a models.Archetype
		if err := json.Unmarshal([]byte(archetypeJSON.String), &a); err != nil {
			return nil, fmt.Errorf("corestore: unmarshal archetype: %w", err)
		}
		p.Archetype = &a
	}
	return &p, nil
}

func (r *sqliteProfileRepo) Upsert(ctx context.Context, profile models.Profile) error {
	if profile.UserID == "" {
		return fmt.Errorf("%w: profile requires user_id", ErrValidation)
	}
	clustersJSON, err := json.Marshal(profile.BehaviorClusters)
	if err != nil {
		return fmt.Errorf("corestore: marshal behavior_clusters: %w", err)
	}
	metadataJSON, err := json.Marshal(profile.AnalysisMetadata)
	if err != nil {
		return fmt.Errorf("corestore: marshal analysis_metadata: %w", err)
	}
	settingsJSON, err := json.Marshal(profile.Settings)
	if err != nil {
		return fmt.Errorf("corestore: marshal settings: %w", err)
	}
	var archetypeJSON sql.NullString
	if profile.Archetype != nil {
		b, err := json.Marshal(profile.Archetype)
		if err != nil {
			return fmt.Errorf("corestore: marshal archetype: %w", err)
		}
		archetypeJSON = sql.NullString{String: string(b), Valid: true}
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO profiles (user_id, behavior_clusters, archetype, analysis_metadata, settings, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			behavior_clusters = excluded.behavior_clusters,
			archetype = excluded.archetype,
			analysis_metadata = excluded.analysis_metadata,
			settings = excluded.settings,
			updated_at = excluded.updated_at`,
		profile.UserID, string(clustersJSON), archetypeJSON, string(metadataJSON), string(settingsJSON), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("corestore: upsert profile: %w", err)
	}
	return nil
}

func (r *sqliteProfileRepo) UpdateClusterVisibility(ctx context.Context, userID, clusterIdentity string, hidden bool) error {
	profile, err := r.Get(ctx, userID)
	if err != nil {
		return err
	}

	found := false
	for i := range profile.BehaviorClusters {
		if profile.BehaviorClusters[i].Identity() == clusterIdentity {
			profile.BehaviorClusters[i].IsHidden = hidden
			found = true
		}
	}
	if !found {
		return ErrNotFound
	}
	profile.Settings.HiddenClusterIdentities = setHiddenIdentity(
		profile.Settings.HiddenClusterIdentities, clusterIdentity, hidden)

	return r.Upsert(ctx, *profile)
}

func (r *sqliteProfileRepo) UpdateSettings(ctx context.Context, userID string, settings models.Settings) error {
	profile, err := r.Get(ctx, userID)
	if err != nil {
		return err
	}
	profile.Settings = settings
	return r.Upsert(ctx, *profile)
}

func (r *sqliteProfileRepo) ScheduleDelete(ctx context.Context, userID, deletionID string, completeAt time.Time) error {
	profile, err := r.Get(ctx, userID)
	if err != nil {
		return err
	}
	now := completeAt
	profile.Settings.PendingDeletion = true
	profile.Settings.DeletionRequestedAt = &now
	if err := r.Upsert(ctx, *profile); err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO pending_deletions (user_id, deletion_id, complete_at) VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET deletion_id = excluded.deletion_id, complete_at = excluded.complete_at`,
		userID, deletionID, formatTime(completeAt))
	if err != nil {
		return fmt.Errorf("corestore: schedule delete: %w", err)
	}
	return nil
}

func (r *sqliteProfileRepo) CancelDelete(ctx context.Context, userID, deletionID string) error {
	var existing string
	err := r.db.QueryRowContext(ctx,
		`SELECT deletion_id FROM pending_deletions WHERE user_id = ?`, userID).Scan(&existing)
	if err == sql.ErrNoRows || (err == nil && existing != deletionID) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("corestore: cancel delete lookup: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM pending_deletions WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("corestore: cancel delete: %w", err)
	}

	profile, err := r.Get(ctx, userID)
	if err == ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	profile.Settings.PendingDeletion = false
	profile.Settings.DeletionRequestedAt = nil
	return r.Upsert(ctx, *profile)
}

func (r *sqliteProfileRepo) HardDelete(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM pending_deletions WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("corestore: hard delete pending: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM profiles WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("corestore: hard delete profile: %w", err)
	}
	return nil
}

func (r *sqliteProfileRepo) DuePendingDeletions(ctx context.Context, asOf time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM pending_deletions WHERE complete_at <= ?`, formatTime(asOf))
	if err != nil {
		return nil, fmt.Errorf("corestore: due pending deletions: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("corestore: scan pending deletion: %w", err)
		}
		out = append(out, userID)
	}
	return out, rows.Err()
}

func (r *sqliteProfileRepo) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT user_id FROM profiles`)
	if err != nil {
		return nil, fmt.Errorf("corestore: list user ids: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("corestore: scan user id: %w", err)
		}
		out = append(out, userID)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("corestore: rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
