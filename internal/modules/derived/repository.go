package derived

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/quotefeed/internal/domain"
)

// Repository persists derived ticker definitions
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new derived ticker repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("component", "derived_repository").Logger(),
	}
}

// Get fetches one derived ticker definition. Returns nil if not found.
func (r *Repository) Get(ticker string) (*domain.DerivedTicker, error) {
	var dt domain.DerivedTicker
	err := r.db.QueryRow("SELECT ticker, formula FROM derived_tickers WHERE ticker = ?", ticker).
		Scan(&dt.Ticker, &dt.Formula)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get derived ticker: %w", err)
	}
	return &dt, nil
}

// Upsert inserts or replaces a derived ticker definition
func (r *Repository) Upsert(dt domain.DerivedTicker) error {
	query := `
		INSERT INTO derived_tickers (ticker, formula, updated_at)
		VALUES (?, ?, strftime('%s', 'now'))
		ON CONFLICT (ticker) DO UPDATE SET
			formula = excluded.formula,
			updated_at = excluded.updated_at
	`

	if _, err := r.db.Exec(query, dt.Ticker, dt.Formula); err != nil {
		return fmt.Errorf("failed to upsert derived ticker %s: %w", dt.Ticker, err)
	}
	return nil
}

// Delete removes a derived ticker definition. Returns whether a row
// was actually deleted.
func (r *Repository) Delete(ticker string) (bool, error) {
	result, err := r.db.Exec("DELETE FROM derived_tickers WHERE ticker = ?", ticker)
	if err != nil {
		return false, fmt.Errorf("failed to delete derived ticker %s: %w", ticker, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected > 0, nil
}

// List returns all derived ticker definitions ordered by ticker
func (r *Repository) List() ([]domain.DerivedTicker, error) {
	rows, err := r.db.Query("SELECT ticker, formula FROM derived_tickers ORDER BY ticker")
	if err != nil {
		return nil, fmt.Errorf("failed to list derived tickers: %w", err)
	}
	defer rows.Close()

	var defs []domain.DerivedTicker
	for rows.Next() {
		var dt domain.DerivedTicker
		if err := rows.Scan(&dt.Ticker, &dt.Formula); err != nil {
			return nil, fmt.Errorf("failed to scan derived ticker: %w", err)
		}
		defs = append(defs, dt)
	}
	return defs, rows.Err()
}

// Count returns the number of derived ticker definitions
func (r *Repository) Count() (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM derived_tickers").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count derived tickers: %w", err)
	}
	return count, nil
}
