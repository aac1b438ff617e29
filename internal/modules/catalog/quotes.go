// Package catalog persists the asset universe: assets, quote definitions,
// OHLCV history, derived tickers' traffic counters, and sync state.
package catalog

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aristath/quotefeed/internal/domain"
)

// QuoteRepository provides access to quote definitions
type QuoteRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewQuoteRepository creates a new quote definition repository
func NewQuoteRepository(db *sql.DB, log zerolog.Logger) *QuoteRepository {
	return &QuoteRepository{
		db:  db,
		log: log.With().Str("component", "quote_repository").Logger(),
	}
}

// Get fetches one quote definition by its logical ticker.
// Returns nil if not found (not an error).
func (r *QuoteRepository) Get(ticker string) (*domain.QuoteDefinition, error) {
	query := `
		SELECT ticker, asset_type, symbol, quote_currency, source_ticker, provider
		FROM quote_definitions
		WHERE ticker = ?
	`

	var qd domain.QuoteDefinition
	err := r.db.QueryRow(query, ticker).Scan(
		&qd.Ticker,
		&qd.AssetType,
		&qd.Symbol,
		&qd.QuoteCcy,
		&qd.SourceTicker,
		&qd.Provider,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get quote definition: %w", err)
	}
	return &qd, nil
}

// Upsert inserts or replaces a quote definition
func (r *QuoteRepository) Upsert(qd domain.QuoteDefinition) error {
	query := `
		INSERT OR REPLACE INTO quote_definitions
		(ticker, asset_type, symbol, quote_currency, source_ticker, provider, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, strftime('%s', 'now'))
	`

	_, err := r.db.Exec(query, qd.Ticker, qd.AssetType, qd.Symbol, qd.QuoteCcy, qd.SourceTicker, qd.Provider)
	if err != nil {
		return fmt.Errorf("failed to upsert quote definition %s: %w", qd.Ticker, err)
	}
	return nil
}

// SourceTickers maps logical tickers to their provider-side tickers,
// silently skipping unknown tickers
func (r *QuoteRepository) SourceTickers(tickers []string) (map[string]string, error) {
	if len(tickers) == 0 {
		return map[string]string{}, nil
	}

	placeholders := strings.Repeat("?,", len(tickers)-1) + "?"
	query := fmt.Sprintf(
		"SELECT ticker, source_ticker FROM quote_definitions WHERE ticker IN (%s)",
		placeholders,
	)

	args := make([]interface{}, len(tickers))
	for i, t := range tickers {
		args[i] = t
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query source tickers: %w", err)
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var ticker, sourceTicker string
		if err := rows.Scan(&ticker, &sourceTicker); err != nil {
			return nil, fmt.Errorf("failed to scan source ticker: %w", err)
		}
		result[ticker] = sourceTicker
	}
	return result, rows.Err()
}

// Search finds quote definitions whose ticker contains the query string,
// optionally restricted to one asset type, with limit/offset paging.
// Exact matches sort first, then prefix matches.
func (r *QuoteRepository) Search(query string, assetType string, limit, offset int) ([]domain.QuoteDefinition, error) {
	q := strings.ToUpper(strings.TrimSpace(query))

	sqlQuery := `
		SELECT ticker, asset_type, symbol, quote_currency, source_ticker, provider
		FROM quote_definitions
		WHERE ticker LIKE '%' || ? || '%'
	`
	args := []interface{}{q}

	if assetType != "" {
		sqlQuery += " AND asset_type = ?"
		args = append(args, assetType)
	}

	sqlQuery += `
		ORDER BY
			CASE WHEN ticker = ? THEN 0 WHEN ticker LIKE ? || '%' THEN 1 ELSE 2 END,
			ticker
		LIMIT ? OFFSET ?
	`
	args = append(args, q, q, limit, offset)

	rows, err := r.db.Query(sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search quote definitions: %w", err)
	}
	defer rows.Close()

	var defs []domain.QuoteDefinition
	for rows.Next() {
		var qd domain.QuoteDefinition
		if err := rows.Scan(&qd.Ticker, &qd.AssetType, &qd.Symbol, &qd.QuoteCcy, &qd.SourceTicker, &qd.Provider); err != nil {
			return nil, fmt.Errorf("failed to scan quote definition: %w", err)
		}
		defs = append(defs, qd)
	}
	return defs, rows.Err()
}

// TickersByType returns all logical tickers for one asset type
func (r *QuoteRepository) TickersByType(assetType domain.AssetType) ([]string, error) {
	rows, err := r.db.Query("SELECT ticker FROM quote_definitions WHERE asset_type = ? ORDER BY ticker", assetType)
	if err != nil {
		return nil, fmt.Errorf("failed to query tickers: %w", err)
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

// Count returns the number of quote definitions per asset type
func (r *QuoteRepository) Count() (map[string]int, error) {
	rows, err := r.db.Query("SELECT asset_type, COUNT(*) FROM quote_definitions GROUP BY asset_type")
	if err != nil {
		return nil, fmt.Errorf("failed to count quote definitions: %w", err)
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
