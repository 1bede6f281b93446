// Package price fetches quotes from the Yahoo Finance chart API, one symbol
// per call.
package price

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
)

const defaultBaseURL = "https://query1.finance.yahoo.com"

// Quote is the last traded price and its quote currency.
type Quote struct {
	Price    float64
	Currency string
}

// Point is one historical close, for charting.
type Point struct {
	Time  time.Time
	Close float64
}

type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient builds a quote client. The timeout caps every request on top of
// whatever context the caller passes in.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    defaultBaseURL,
	}
}

// NewClientWithBaseURL is used by tests to point the client at a fake server.
func NewClientWithBaseURL(baseURL string, timeout time.Duration) *Client {
	c := NewClient(timeout)
	c.baseURL = baseURL
	return c
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency           string  `json:"currency"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (c *Client) fetchChart(ctx context.Context, symbol, rng, interval string) (*chartResponse, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?range=%s&interval=%s",
		c.baseURL, url.PathEscape(symbol), rng, interval)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "could not build quote request")
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (vigia-telegram-bot)")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "quote request failed for %s", symbol)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("quote request for %s returned status %d", symbol, resp.StatusCode)
	}

	var decoded chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, errors.Wrapf(err, "could not parse quote response for %s", symbol)
	}
	if decoded.Chart.Error != nil {
		return nil, errors.Errorf("quote lookup for %s failed: %s", symbol, decoded.Chart.Error.Description)
	}
	if len(decoded.Chart.Result) == 0 {
		return nil, errors.Errorf("no quote data for %s", symbol)
	}
	return &decoded, nil
}

// GetPrice returns the last price and currency for a symbol. A context
// timeout is treated by callers the same as any other lookup failure.
func (c *Client) GetPrice(ctx context.Context, symbol string) (Quote, error) {
	decoded, err := c.fetchChart(ctx, symbol, "1d", "1d")
	if err != nil {
		return Quote{}, err
	}

	meta := decoded.Chart.Result[0].Meta
	if meta.RegularMarketPrice == 0 {
		return Quote{}, errors.Errorf("no market price for %s", symbol)
	}
	return Quote{Price: meta.RegularMarketPrice, Currency: meta.Currency}, nil
}

// History returns the closes for the given range and bar interval, skipping
// the null bars Yahoo reports for untraded hours.
func (c *Client) History(ctx context.Context, symbol, rng, interval string) ([]Point, string, error) {
	decoded, err := c.fetchChart(ctx, symbol, rng, interval)
	if err != nil {
		return nil, "", err
	}

	result := decoded.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, "", errors.Errorf("no history for %s", symbol)
	}

	closes := result.Indicators.Quote[0].Close
	var points []Point
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		points = append(points, Point{Time: time.Unix(ts, 0), Close: *closes[i]})
	}
	if len(points) == 0 {
		return nil, "", errors.Errorf("no history for %s", symbol)
	}
	return points, result.Meta.Currency, nil
}
