// Package domain contains the core types shared across modules.
package domain

import (
	"time"
)

// AssetType identifies which provider family serves an asset
type AssetType string

const (
	AssetStock    AssetType = "STOCK"
	AssetCrypto   AssetType = "CRYPTO"
	AssetCurrency AssetType = "CURRENCY"
)

// Provider names as stored in quote definitions
const (
	ProviderYahoo        = "yahoo"
	ProviderBinance      = "binance"
	ProviderAlphaVantage = "alphavantage"
)

// Asset is a tradeable instrument known to the catalog
type Asset struct {
	ID        int64     `json:"id"`
	Type      AssetType `json:"type"`
	Symbol    string    `json:"symbol"`
	Name      string    `json:"name"`
	Currency  string    `json:"currency,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// QuoteDefinition maps a logical ticker to a provider and the symbol the
// provider knows it by. Tickers are unique across the catalog.
type QuoteDefinition struct {
	Ticker       string    `json:"ticker"`
	AssetType    AssetType `json:"asset_type"`
	SourceTicker string    `json:"source_ticker"`
	Provider     string    `json:"provider"`
	Symbol       string    `json:"symbol"`
	QuoteCcy     string    `json:"quote_currency"`
}

// DerivedTicker is a synthetic ticker computed from a formula over other
// tickers (base or derived).
type DerivedTicker struct {
	Ticker  string `json:"ticker"`
	Formula string `json:"formula"`
}

// TrafficKey identifies one ticker in the query traffic counters
type TrafficKey struct {
	Ticker    string
	AssetType AssetType
}

// Bar is a daily OHLCV price point
type Bar struct {
	Date   string   `json:"date"` // YYYY-MM-DD
	Open   float64  `json:"open"`
	High   float64  `json:"high"`
	Low    float64  `json:"low"`
	Close  float64  `json:"close"`
	Volume *float64 `json:"volume,omitempty"`
}
