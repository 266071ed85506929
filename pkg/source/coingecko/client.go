// Package coingecko implements the CoinGecko market-data source.
package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	defaultBaseURL          = "https://api.coingecko.com/api/v3"
	defaultHTTPTimeout      = 10 * time.Second
	defaultMaxRetries       = 3
	defaultRetryBackoffBase = 150 * time.Millisecond

	apiKeyHeader = "x-cg-demo-api-key"
)

// Client wraps access to the CoinGecko REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxRetries int
}

// Option configures a new Client.
type Option func(*Client)

// WithHTTPClient injects a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithAPIKey sets the demo API key sent with every request.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithMaxRetries adjusts the retry budget.
func WithMaxRetries(max int) Option {
	return func(c *Client) {
		if max >= 0 {
			c.maxRetries = max
		}
	}
}

// NewClient constructs a CoinGecko API client.
func NewClient(opts ...Option) *Client {
	client := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		maxRetries: defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return client
}

// TopMarkets lists assets ordered by market capitalization, highest first.
func (c *Client) TopMarkets(ctx context.Context, limit int) ([]marketRow, error) {
	query := url.Values{}
	query.Set("vs_currency", "usd")
	query.Set("order", "market_cap_desc")
	query.Set("per_page", strconv.Itoa(limit))
	query.Set("page", "1")
	var rows []marketRow
	if err := c.doRequest(ctx, "/coins/markets", query, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// CoinTickers lists exchange tickers for the asset identified by coinID.
func (c *Client) CoinTickers(ctx context.Context, coinID string) ([]tickerRow, error) {
	var resp tickersResponse
	path := fmt.Sprintf("/coins/%s/tickers", url.PathEscape(coinID))
	if err := c.doRequest(ctx, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tickers, nil
}

// doRequest issues a GET and decodes the JSON response into result, retrying
// transport and non-2xx failures with exponential backoff.
func (c *Client) doRequest(ctx context.Context, path string, query url.Values, result interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	var lastErr error
	backoff := defaultRetryBackoffBase
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("coingecko: build request: %w", err)
		}
		httpReq.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			httpReq.Header.Set(apiKeyHeader, c.apiKey)
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
		} else {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if readErr != nil {
				lastErr = fmt.Errorf("coingecko: read response: %w", readErr)
			} else if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				lastErr = fmt.Errorf("coingecko: http status %d: %s", resp.StatusCode, string(body))
			} else {
				if result != nil {
					if err := json.Unmarshal(body, result); err != nil {
						return fmt.Errorf("coingecko: decode response: %w", err)
					}
				}
				return nil
			}
		}

		if attempt < c.maxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				backoff *= 2
			}
		}
	}
	return lastErr
}
