package catalog

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// SyncState tracks when the catalog was last synchronized
type SyncState struct {
	LastFullSync  *time.Time
	LastDeltaSync *time.Time
}

// SyncStateRepository persists sync timestamps in a singleton row
type SyncStateRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSyncStateRepository creates a new sync state repository
func NewSyncStateRepository(db *sql.DB, log zerolog.Logger) *SyncStateRepository {
	return &SyncStateRepository{
		db:  db,
		log: log.With().Str("component", "sync_state_repository").Logger(),
	}
}

// Get reads the current sync state. Missing timestamps are nil.
func (r *SyncStateRepository) Get() (SyncState, error) {
	var full, delta sql.NullInt64
	err := r.db.QueryRow("SELECT last_full_sync, last_delta_sync FROM sync_state WHERE id = 1").Scan(&full, &delta)
	if err == sql.ErrNoRows {
		return SyncState{}, nil
	}
	if err != nil {
		return SyncState{}, fmt.Errorf("failed to read sync state: %w", err)
	}

	var state SyncState
	if full.Valid {
		t := time.Unix(full.Int64, 0).UTC()
		state.LastFullSync = &t
	}
	if delta.Valid {
		t := time.Unix(delta.Int64, 0).UTC()
		state.LastDeltaSync = &t
	}
	return state, nil
}

// MarkFullSync records a completed full sync at the given time
func (r *SyncStateRepository) MarkFullSync(at time.Time) error {
	return r.mark("last_full_sync", at)
}

// MarkDeltaSync records a completed delta sync at the given time
func (r *SyncStateRepository) MarkDeltaSync(at time.Time) error {
	return r.mark("last_delta_sync", at)
}

func (r *SyncStateRepository) mark(column string, at time.Time) error {
	query := fmt.Sprintf(`
		INSERT INTO sync_state (id, %s) VALUES (1, ?)
		ON CONFLICT (id) DO UPDATE SET %s = excluded.%s
	`, column, column, column)

	if _, err := r.db.Exec(query, at.Unix()); err != nil {
		return fmt.Errorf("failed to update %s: %w", column, err)
	}
	return nil
}
