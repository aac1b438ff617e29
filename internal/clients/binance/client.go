// Package binance provides a client for the Binance spot REST API.
// It serves crypto latest prices (single symbol and the full ticker list)
// and daily kline history.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/quotefeed/internal/clients/httpx"
	"github.com/aristath/quotefeed/internal/domain"
)

const defaultBaseURL = "https://api.binance.com/api/v3"

// Unknown-symbol error codes in binance 400 bodies
const (
	codeBadSymbol     = -1100
	codeInvalidSymbol = -1121
)

const klineLimit = 1000

// Client calls the Binance spot API
type Client struct {
	baseURL string
	http    *httpx.Client
	log     zerolog.Logger
}

// New creates a Binance client
func New(http *httpx.Client, log zerolog.Logger) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		http:    http,
		log:     log.With().Str("client", "binance").Logger(),
	}
}

// SetBaseURL overrides the API base URL, for tests
func (c *Client) SetBaseURL(u string) {
	c.baseURL = u
}

type tickerPrice struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// LatestPrice fetches the current price for one symbol. An unknown symbol
// is a NotFound result, not an error.
func (c *Client) LatestPrice(ctx context.Context, symbol string) (domain.PriceResult, error) {
	u := fmt.Sprintf("%s/ticker/price?symbol=%s", c.baseURL, url.QueryEscape(symbol))

	resp, err := c.http.Get(ctx, u)
	if err != nil {
		return domain.PriceResult{}, fmt.Errorf("binance ticker price for %s: %w", symbol, err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		var tp tickerPrice
		if err := json.Unmarshal(resp.Body, &tp); err != nil {
			return domain.PriceResult{}, fmt.Errorf("failed to parse ticker price for %s: %w", symbol, err)
		}
		price, err := parsePrice(tp.Price)
		if err != nil {
			return domain.PriceResult{}, fmt.Errorf("invalid price %q for %s: %w", tp.Price, symbol, err)
		}
		return domain.Found(price), nil

	case http.StatusBadRequest:
		var apiErr apiError
		if err := json.Unmarshal(resp.Body, &apiErr); err == nil {
			if apiErr.Code == codeInvalidSymbol || apiErr.Code == codeBadSymbol {
				return domain.NotFound(), nil
			}
		}
		return domain.PriceResult{}, fmt.Errorf("binance rejected request for %s: %s", symbol, resp.Body)

	default:
		return domain.PriceResult{}, fmt.Errorf("binance returned status %d for %s", resp.StatusCode, symbol)
	}
}

// AllLatestPrices fetches current prices for every listed symbol in a
// single call. Used by the cache refresh job.
func (c *Client) AllLatestPrices(ctx context.Context) (map[string]float64, error) {
	u := c.baseURL + "/ticker/price"

	resp, err := c.http.Get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("binance all ticker prices: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("binance returned status %d for ticker list", resp.StatusCode)
	}

	var items []tickerPrice
	if err := json.Unmarshal(resp.Body, &items); err != nil {
		return nil, fmt.Errorf("failed to parse ticker list: %w", err)
	}

	prices := make(map[string]float64, len(items))
	for _, item := range items {
		price, err := parsePrice(item.Price)
		if err != nil {
			c.log.Warn().Str("symbol", item.Symbol).Str("price", item.Price).Msg("Skipping unparseable ticker price")
			continue
		}
		prices[item.Symbol] = price
	}
	return prices, nil
}

// Klines fetches daily bars for symbol between start and end, paging by
// the last returned open time. Binance caps each page at 1000 rows.
func (c *Client) Klines(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	startMs := start.UnixMilli()
	endMs := end.UnixMilli()

	var bars []domain.Bar
	current := startMs

	for current < endMs {
		u := fmt.Sprintf("%s/klines?symbol=%s&interval=1d&startTime=%d&endTime=%d&limit=%d",
			c.baseURL, url.QueryEscape(symbol), current, endMs, klineLimit)

		resp, err := c.http.Get(ctx, u)
		if err != nil {
			return nil, fmt.Errorf("binance klines for %s: %w", symbol, err)
		}
		if resp.StatusCode == http.StatusBadRequest {
			var apiErr apiError
			if json.Unmarshal(resp.Body, &apiErr) == nil &&
				(apiErr.Code == codeInvalidSymbol || apiErr.Code == codeBadSymbol) {
				// Unknown symbol: empty history
				return nil, nil
			}
			return nil, fmt.Errorf("binance rejected klines request for %s: %s", symbol, resp.Body)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("binance returned status %d for klines %s", resp.StatusCode, symbol)
		}

		var rows [][]interface{}
		if err := json.Unmarshal(resp.Body, &rows); err != nil {
			return nil, fmt.Errorf("failed to parse klines for %s: %w", symbol, err)
		}
		if len(rows) == 0 {
			break
		}

		var lastOpenTime int64
		for _, row := range rows {
			bar, openTime, err := parseKline(row)
			if err != nil {
				return nil, fmt.Errorf("bad kline row for %s: %w", symbol, err)
			}
			bars = append(bars, bar)
			lastOpenTime = openTime
		}

		next := lastOpenTime + 1
		if next <= current {
			break
		}
		current = next
	}

	return bars, nil
}

// parseKline decodes one kline row:
// [openTime, open, high, low, close, volume, closeTime, ...]
func parseKline(row []interface{}) (domain.Bar, int64, error) {
	if len(row) < 6 {
		return domain.Bar{}, 0, fmt.Errorf("kline row has %d fields, want at least 6", len(row))
	}

	openTimeMs, ok := row[0].(float64)
	if !ok {
		return domain.Bar{}, 0, fmt.Errorf("open time is not numeric")
	}

	values := make([]float64, 5)
	for i := 1; i <= 5; i++ {
		s, ok := row[i].(string)
		if !ok {
			return domain.Bar{}, 0, fmt.Errorf("field %d is not a string", i)
		}
		v, err := parsePrice(s)
		if err != nil {
			return domain.Bar{}, 0, err
		}
		values[i-1] = v
	}

	openTime := int64(openTimeMs)
	volume := values[4]
	bar := domain.Bar{
		Date:   time.UnixMilli(openTime).UTC().Format("2006-01-02"),
		Open:   values[0],
		High:   values[1],
		Low:    values[2],
		Close:  values[3],
		Volume: &volume,
	}
	return bar, openTime, nil
}

func parsePrice(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return v, nil
}
