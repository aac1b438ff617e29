package database

// marketSchema is the single source of truth for the catalog database.
// All statements are idempotent so Migrate can run at every startup.
const marketSchema = `
CREATE TABLE IF NOT EXISTS assets (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    asset_type    TEXT NOT NULL CHECK (asset_type IN ('STOCK', 'CRYPTO', 'CURRENCY')),
    symbol        TEXT NOT NULL,
    name          TEXT NOT NULL DEFAULT '',
    currency      TEXT NOT NULL DEFAULT '',
    source_key    TEXT NOT NULL DEFAULT '',
    exchange      TEXT NOT NULL DEFAULT '',
    created_at    INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
    UNIQUE (asset_type, symbol)
);

CREATE TABLE IF NOT EXISTS quote_definitions (
    ticker         TEXT PRIMARY KEY,
    asset_type     TEXT NOT NULL CHECK (asset_type IN ('STOCK', 'CRYPTO', 'CURRENCY')),
    symbol         TEXT NOT NULL,
    quote_currency TEXT NOT NULL,
    source_ticker  TEXT NOT NULL,
    provider       TEXT NOT NULL,
    updated_at     INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);

CREATE INDEX IF NOT EXISTS idx_quote_definitions_symbol
    ON quote_definitions (asset_type, symbol);

CREATE TABLE IF NOT EXISTS ohlcv (
    ticker      TEXT NOT NULL REFERENCES quote_definitions (ticker) ON DELETE CASCADE,
    price_date  TEXT NOT NULL,
    open        REAL,
    high        REAL,
    low         REAL,
    close       REAL,
    volume      REAL,
    PRIMARY KEY (ticker, price_date)
);

CREATE TABLE IF NOT EXISTS derived_tickers (
    ticker     TEXT PRIMARY KEY,
    formula    TEXT NOT NULL,
    created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
    updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);

CREATE TABLE IF NOT EXISTS query_counts (
    ticker      TEXT NOT NULL,
    asset_type  TEXT NOT NULL,
    count       INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (ticker, asset_type)
);

CREATE TABLE IF NOT EXISTS sync_state (
    id              INTEGER PRIMARY KEY CHECK (id = 1),
    last_full_sync  INTEGER,
    last_delta_sync INTEGER
);
`
