// Package yahoo provides a client for Yahoo Finance quote and chart
// endpoints, serving equity latest prices (single and batched) and daily
// OHLCV history.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/quotefeed/internal/clients/httpx"
	"github.com/aristath/quotefeed/internal/domain"
)

const defaultBaseURL = "https://query1.finance.yahoo.com"

// Client calls Yahoo Finance endpoints
type Client struct {
	baseURL string
	http    *httpx.Client
	log     zerolog.Logger
}

// New creates a Yahoo Finance client
func New(http *httpx.Client, log zerolog.Logger) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		http:    http,
		log:     log.With().Str("client", "yahoo").Logger(),
	}
}

// SetBaseURL overrides the API base URL, for tests
func (c *Client) SetBaseURL(u string) {
	c.baseURL = u
}

// Quote is one instrument's snapshot from the quote endpoint
type Quote struct {
	Symbol             string   `json:"symbol"`
	RegularMarketPrice *float64 `json:"regularMarketPrice"`
	Currency           string   `json:"currency"`
	ShortName          string   `json:"shortName"`
	LongName           string   `json:"longName"`
	Exchange           string   `json:"exchange"`
	FullExchangeName   string   `json:"fullExchangeName"`
}

type quoteResponse struct {
	QuoteResponse struct {
		Result []Quote          `json:"result"`
		Error  *json.RawMessage `json:"error"`
	} `json:"quoteResponse"`
}

// Quotes fetches snapshots for up to a request's worth of symbols in one
// call. Symbols Yahoo does not know are simply absent from the result map;
// the caller decides whether that means not-found.
func (c *Client) Quotes(ctx context.Context, symbols []string) (map[string]Quote, error) {
	if len(symbols) == 0 {
		return map[string]Quote{}, nil
	}

	u := fmt.Sprintf("%s/v7/finance/quote?symbols=%s", c.baseURL, url.QueryEscape(strings.Join(symbols, ",")))

	resp, err := c.http.Get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("yahoo quote request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo quote endpoint returned status %d", resp.StatusCode)
	}

	var parsed quoteResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse quote response: %w", err)
	}

	quotes := make(map[string]Quote, len(parsed.QuoteResponse.Result))
	for _, q := range parsed.QuoteResponse.Result {
		quotes[q.Symbol] = q
	}
	return quotes, nil
}

// LatestPrice fetches the current price for one symbol. A symbol missing
// from the quote result is a NotFound result, not an error.
func (c *Client) LatestPrice(ctx context.Context, symbol string) (domain.PriceResult, error) {
	quotes, err := c.Quotes(ctx, []string{symbol})
	if err != nil {
		return domain.PriceResult{}, err
	}

	q, ok := quotes[symbol]
	if !ok || q.RegularMarketPrice == nil {
		return domain.NotFound(), nil
	}
	return domain.Found(*q.RegularMarketPrice), nil
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// DailyHistory fetches daily bars for symbol between start and end.
// An unknown symbol yields an empty history.
func (c *Client) DailyHistory(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?period1=%d&period2=%d&interval=1d",
		c.baseURL, url.PathEscape(symbol), start.Unix(), end.Unix())

	resp, err := c.http.Get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("yahoo chart request for %s: %w", symbol, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo chart endpoint returned status %d for %s", resp.StatusCode, symbol)
	}

	var parsed chartResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse chart response for %s: %w", symbol, err)
	}
	if parsed.Chart.Error != nil {
		if parsed.Chart.Error.Code == "Not Found" {
			return nil, nil
		}
		return nil, fmt.Errorf("yahoo chart error for %s: %s", symbol, parsed.Chart.Error.Description)
	}
	if len(parsed.Chart.Result) == 0 {
		return nil, nil
	}

	result := parsed.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, nil
	}
	quote := result.Indicators.Quote[0]

	bars := make([]domain.Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		// Yahoo pads with nulls for days without trades
		if i >= len(quote.Close) || quote.Close[i] == nil {
			continue
		}
		bar := domain.Bar{
			Date:  time.Unix(ts, 0).UTC().Format("2006-01-02"),
			Close: *quote.Close[i],
		}
		if i < len(quote.Open) && quote.Open[i] != nil {
			bar.Open = *quote.Open[i]
		}
		if i < len(quote.High) && quote.High[i] != nil {
			bar.High = *quote.High[i]
		}
		if i < len(quote.Low) && quote.Low[i] != nil {
			bar.Low = *quote.Low[i]
		}
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			bar.Volume = quote.Volume[i]
		}
		bars = append(bars, bar)
	}
	return bars, nil
}
