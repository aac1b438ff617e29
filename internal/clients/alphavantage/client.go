// Package alphavantage provides a client for the Alpha Vantage FX API,
// serving realtime currency exchange rates and daily FX history.
package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/aristath/quotefeed/internal/clients/httpx"
	"github.com/aristath/quotefeed/internal/domain"
)

const defaultBaseURL = "https://www.alphavantage.co/query"

// ErrRateLimitExceeded indicates the API daily/minute quota was hit
type ErrRateLimitExceeded struct{}

func (e ErrRateLimitExceeded) Error() string {
	return "alphavantage rate limit exceeded"
}

// ErrInvalidAPIKey indicates authentication failure
type ErrInvalidAPIKey struct{}

func (e ErrInvalidAPIKey) Error() string {
	return "alphavantage invalid API key"
}

// Client calls the Alpha Vantage API
type Client struct {
	baseURL string
	apiKey  string
	http    *httpx.Client
	log     zerolog.Logger
}

// New creates an Alpha Vantage client
func New(apiKey string, http *httpx.Client, log zerolog.Logger) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		http:    http,
		log:     log.With().Str("client", "alphavantage").Logger(),
	}
}

// SetBaseURL overrides the API base URL, for tests
func (c *Client) SetBaseURL(u string) {
	c.baseURL = u
}

// checkAPIError inspects the response body for Alpha Vantage's in-band
// error envelopes. The API returns 200 for everything; "Note" and
// "Information" are rate-limit notices, "Error Message" covers bad
// requests and unknown symbols.
func checkAPIError(body []byte) error {
	var envelope struct {
		Note         string `json:"Note"`
		Information  string `json:"Information"`
		ErrorMessage string `json:"Error Message"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil // not an error envelope
	}
	if envelope.Note != "" || envelope.Information != "" {
		return ErrRateLimitExceeded{}
	}
	if envelope.ErrorMessage != "" {
		return fmt.Errorf("alphavantage error: %s", envelope.ErrorMessage)
	}
	return nil
}

// ExchangeRate fetches the realtime rate for a currency pair. An unknown
// currency code is a NotFound result.
func (c *Client) ExchangeRate(ctx context.Context, from, to string) (domain.PriceResult, error) {
	u := fmt.Sprintf("%s?function=CURRENCY_EXCHANGE_RATE&from_currency=%s&to_currency=%s&apikey=%s",
		c.baseURL, url.QueryEscape(from), url.QueryEscape(to), url.QueryEscape(c.apiKey))

	resp, err := c.http.Get(ctx, u)
	if err != nil {
		return domain.PriceResult{}, fmt.Errorf("alphavantage exchange rate %s/%s: %w", from, to, err)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.PriceResult{}, fmt.Errorf("alphavantage returned status %d", resp.StatusCode)
	}

	var parsed struct {
		Rate struct {
			ExchangeRate string `json:"5. Exchange Rate"`
		} `json:"Realtime Currency Exchange Rate"`
	}
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return domain.PriceResult{}, fmt.Errorf("failed to parse exchange rate response: %w", err)
	}

	if parsed.Rate.ExchangeRate == "" {
		if apiErr := checkAPIError(resp.Body); apiErr != nil {
			if _, ok := apiErr.(ErrRateLimitExceeded); ok {
				return domain.PriceResult{}, apiErr
			}
			// "Error Message" for FX means the currency code is unknown
			return domain.NotFound(), nil
		}
		return domain.PriceResult{}, fmt.Errorf("empty exchange rate for %s/%s", from, to)
	}

	rate, err := strconv.ParseFloat(parsed.Rate.ExchangeRate, 64)
	if err != nil {
		return domain.PriceResult{}, fmt.Errorf("invalid exchange rate %q: %w", parsed.Rate.ExchangeRate, err)
	}
	return domain.Found(rate), nil
}

// FXDaily fetches the daily rate history for a currency pair, most recent
// first as the API returns it. The full output size reaches back years.
func (c *Client) FXDaily(ctx context.Context, from, to string, full bool) ([]domain.Bar, error) {
	outputSize := "compact"
	if full {
		outputSize = "full"
	}
	u := fmt.Sprintf("%s?function=FX_DAILY&from_symbol=%s&to_symbol=%s&outputsize=%s&apikey=%s",
		c.baseURL, url.QueryEscape(from), url.QueryEscape(to), outputSize, url.QueryEscape(c.apiKey))

	resp, err := c.http.Get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("alphavantage fx daily %s/%s: %w", from, to, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("alphavantage returned status %d", resp.StatusCode)
	}

	var parsed struct {
		Series map[string]struct {
			Open  string `json:"1. open"`
			High  string `json:"2. high"`
			Low   string `json:"3. low"`
			Close string `json:"4. close"`
		} `json:"Time Series FX (Daily)"`
	}
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse fx daily response: %w", err)
	}

	if len(parsed.Series) == 0 {
		if apiErr := checkAPIError(resp.Body); apiErr != nil {
			return nil, apiErr
		}
		return nil, nil
	}

	bars := make([]domain.Bar, 0, len(parsed.Series))
	for date, row := range parsed.Series {
		bar := domain.Bar{Date: date}
		var convErr error
		if bar.Open, convErr = strconv.ParseFloat(row.Open, 64); convErr != nil {
			continue
		}
		if bar.High, convErr = strconv.ParseFloat(row.High, 64); convErr != nil {
			continue
		}
		if bar.Low, convErr = strconv.ParseFloat(row.Low, 64); convErr != nil {
			continue
		}
		if bar.Close, convErr = strconv.ParseFloat(row.Close, 64); convErr != nil {
			continue
		}
		bars = append(bars, bar)
	}
	return bars, nil
}
