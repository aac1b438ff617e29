package catalog

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/quotefeed/internal/domain"
)

// AssetRepository provides access to the assets table
type AssetRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewAssetRepository creates a new asset repository
func NewAssetRepository(db *sql.DB, log zerolog.Logger) *AssetRepository {
	return &AssetRepository{
		db:  db,
		log: log.With().Str("component", "asset_repository").Logger(),
	}
}

// Upsert inserts an asset or updates its mutable fields, keyed by
// (asset_type, symbol)
func (r *AssetRepository) Upsert(asset domain.Asset) error {
	query := `
		INSERT INTO assets (asset_type, symbol, name, currency, source_key)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (asset_type, symbol) DO UPDATE SET
			name = excluded.name,
			currency = excluded.currency,
			source_key = excluded.source_key
	`

	_, err := r.db.Exec(query, asset.Type, asset.Symbol, asset.Name, asset.Currency, "")
	if err != nil {
		return fmt.Errorf("failed to upsert asset %s/%s: %w", asset.Type, asset.Symbol, err)
	}
	return nil
}

// List returns assets, optionally filtered by type
func (r *AssetRepository) List(assetType string) ([]domain.Asset, error) {
	query := "SELECT id, asset_type, symbol, name, currency, created_at FROM assets"
	var args []interface{}
	if assetType != "" {
		query += " WHERE asset_type = ?"
		args = append(args, assetType)
	}
	query += " ORDER BY asset_type, symbol"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query assets: %w", err)
	}
	defer rows.Close()

	var assets []domain.Asset
	for rows.Next() {
		var a domain.Asset
		var createdUnix int64
		if err := rows.Scan(&a.ID, &a.Type, &a.Symbol, &a.Name, &a.Currency, &createdUnix); err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		a.CreatedAt = time.Unix(createdUnix, 0).UTC()
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

// Count returns the number of assets per asset type
func (r *AssetRepository) Count() (map[string]int, error) {
	rows, err := r.db.Query("SELECT asset_type, COUNT(*) FROM assets GROUP BY asset_type")
	if err != nil {
		return nil, fmt.Errorf("failed to count assets: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var assetType string
		var count int
		if err := rows.Scan(&assetType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[assetType] = count
	}
	return counts, rows.Err()
}
