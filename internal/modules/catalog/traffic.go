package catalog

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/quotefeed/internal/database"
	"github.com/aristath/quotefeed/internal/domain"
)

// TickerTraffic is one row of the query traffic ranking
type TickerTraffic struct {
	Ticker    string           `json:"ticker"`
	AssetType domain.AssetType `json:"asset_type"`
	Count     int64            `json:"count"`
}

// TrafficRepository persists per-ticker query counts. The counts drive
// which stock tickers the background refresh keeps warm.
type TrafficRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewTrafficRepository creates a new traffic repository
func NewTrafficRepository(db *sql.DB, log zerolog.Logger) *TrafficRepository {
	return &TrafficRepository{
		db:  db,
		log: log.With().Str("component", "traffic_repository").Logger(),
	}
}

// IncrementBatch adds the given deltas to the stored counts in one
// transaction. Keys that do not exist yet are created.
func (r *TrafficRepository) IncrementBatch(deltas map[domain.TrafficKey]int64) error {
	if len(deltas) == 0 {
		return nil
	}

	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO query_counts (ticker, asset_type, count)
			VALUES (?, ?, ?)
			ON CONFLICT (ticker, asset_type) DO UPDATE SET count = count + excluded.count
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for key, delta := range deltas {
			if _, err := stmt.Exec(key.Ticker, key.AssetType, delta); err != nil {
				return fmt.Errorf("failed to increment count for %s: %w", key.Ticker, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.log.Debug().Int("tickers", len(deltas)).Msg("Flushed query counts")
	return nil
}

// TopTickers returns the n most queried tickers of one asset type,
// most queried first
func (r *TrafficRepository) TopTickers(assetType domain.AssetType, n int) ([]string, error) {
	rows, err := r.db.Query(
		"SELECT ticker FROM query_counts WHERE asset_type = ? ORDER BY count DESC, ticker LIMIT ?",
		assetType, n,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query top tickers: %w", err)
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan ticker: %w", err)
		}
		tickers = append(tickers, t)
	}
	return tickers, rows.Err()
}

// All returns every traffic row, most queried first
func (r *TrafficRepository) All() ([]TickerTraffic, error) {
	rows, err := r.db.Query("SELECT ticker, asset_type, count FROM query_counts ORDER BY count DESC, ticker")
	if err != nil {
		return nil, fmt.Errorf("failed to query traffic: %w", err)
	}
	defer rows.Close()

	var traffic []TickerTraffic
	for rows.Next() {
		var row TickerTraffic
		if err := rows.Scan(&row.Ticker, &row.AssetType, &row.Count); err != nil {
			return nil, fmt.Errorf("failed to scan traffic row: %w", err)
		}
		traffic = append(traffic, row)
	}
	return traffic, rows.Err()
}
