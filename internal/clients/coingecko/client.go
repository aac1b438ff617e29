// Package coingecko provides a client for the CoinGecko markets endpoint,
// used to discover the crypto universe and its metadata. Prices come from
// the exchange, not from here.
package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/aristath/quotefeed/internal/clients/httpx"
)

const defaultBaseURL = "https://api.coingecko.com/api/v3"

const perPage = 250

// Coin is one market entry from /coins/markets
type Coin struct {
	ID            string   `json:"id"`
	Symbol        string   `json:"symbol"`
	Name          string   `json:"name"`
	Image         string   `json:"image"`
	MarketCapRank int      `json:"market_cap_rank"`
	ATH           *float64 `json:"ath"`
	ATL           *float64 `json:"atl"`
	TotalSupply   *float64 `json:"total_supply"`
	MaxSupply     *float64 `json:"max_supply"`
}

// Client calls the CoinGecko API
type Client struct {
	baseURL string
	http    *httpx.Client
	log     zerolog.Logger
}

// New creates a CoinGecko client
func New(http *httpx.Client, log zerolog.Logger) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		http:    http,
		log:     log.With().Str("client", "coingecko").Logger(),
	}
}

// SetBaseURL overrides the API base URL, for tests
func (c *Client) SetBaseURL(u string) {
	c.baseURL = u
}

// TopMarkets fetches the first page of coins ordered by market cap
func (c *Client) TopMarkets(ctx context.Context) ([]Coin, error) {
	u := fmt.Sprintf("%s/coins/markets?vs_currency=usd&order=market_cap_desc&per_page=%d&page=1&sparkline=false",
		c.baseURL, perPage)

	resp, err := c.http.Get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("coingecko markets request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coingecko returned status %d", resp.StatusCode)
	}

	var coins []Coin
	if err := json.Unmarshal(resp.Body, &coins); err != nil {
		return nil, fmt.Errorf("failed to parse markets response: %w", err)
	}

	c.log.Debug().Int("count", len(coins)).Msg("Fetched crypto market metadata")
	return coins, nil
}
