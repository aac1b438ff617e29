package catalog

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/quotefeed/internal/database"
	"github.com/aristath/quotefeed/internal/domain"
)

// OHLCVRepository provides access to daily price history
type OHLCVRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewOHLCVRepository creates a new OHLCV repository
func NewOHLCVRepository(db *sql.DB, log zerolog.Logger) *OHLCVRepository {
	return &OHLCVRepository{
		db:  db,
		log: log.With().Str("component", "ohlcv_repository").Logger(),
	}
}

// UpsertBars writes bars for a ticker in one transaction. Existing
// (ticker, date) rows are replaced, which is what delta syncs rely on.
func (r *OHLCVRepository) UpsertBars(ticker string, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT OR REPLACE INTO ohlcv (ticker, price_date, open, high, low, close, volume)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, bar := range bars {
			volume := sql.NullFloat64{}
			if bar.Volume != nil {
				volume.Float64 = *bar.Volume
				volume.Valid = true
			}
			if _, err := stmt.Exec(ticker, bar.Date, bar.Open, bar.High, bar.Low, bar.Close, volume); err != nil {
				return fmt.Errorf("failed to insert bar for %s: %w", bar.Date, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.log.Debug().Str("ticker", ticker).Int("count", len(bars)).Msg("Upserted OHLCV bars")
	return nil
}

// Bars fetches the full daily history for a ticker, oldest first
func (r *OHLCVRepository) Bars(ticker string) ([]domain.Bar, error) {
	query := `
		SELECT price_date, open, high, low, close, volume
		FROM ohlcv
		WHERE ticker = ?
		ORDER BY price_date
	`

	rows, err := r.db.Query(query, ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to query bars: %w", err)
	}
	defer rows.Close()

	var bars []domain.Bar
	for rows.Next() {
		var bar domain.Bar
		var volume sql.NullFloat64
		if err := rows.Scan(&bar.Date, &bar.Open, &bar.High, &bar.Low, &bar.Close, &volume); err != nil {
			return nil, fmt.Errorf("failed to scan bar: %w", err)
		}
		if volume.Valid {
			bar.Volume = &volume.Float64
		}
		bars = append(bars, bar)
	}
	return bars, rows.Err()
}

// CloseSeries fetches the date-to-close mapping for a ticker. An unknown
// ticker yields an empty map, not an error.
func (r *OHLCVRepository) CloseSeries(ticker string) (map[string]float64, error) {
	rows, err := r.db.Query("SELECT price_date, close FROM ohlcv WHERE ticker = ? AND close IS NOT NULL", ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to query close series: %w", err)
	}
	defer rows.Close()

	series := make(map[string]float64)
	for rows.Next() {
		var date string
		var close float64
		if err := rows.Scan(&date, &close); err != nil {
			return nil, fmt.Errorf("failed to scan close price: %w", err)
		}
		series[date] = close
	}
	return series, rows.Err()
}

// Count returns the total number of stored bars
func (r *OHLCVRepository) Count() (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM ohlcv").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count bars: %w", err)
	}
	return count, nil
}

// DateRange returns the earliest and latest stored dates, empty strings
// when no history exists
func (r *OHLCVRepository) DateRange() (string, string, error) {
	var min, max sql.NullString
	err := r.db.QueryRow("SELECT MIN(price_date), MAX(price_date) FROM ohlcv").Scan(&min, &max)
	if err != nil {
		return "", "", fmt.Errorf("failed to query date range: %w", err)
	}
	return min.String, max.String, nil
}
