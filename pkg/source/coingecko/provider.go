package coingecko

import (
	"context"
	"net/http"
	"strings"
	"time"

	"pricefeed-api/pkg/source"
)

const defaultProviderTimeout = 8 * time.Second

// Provider adapts the CoinGecko client to the generic source.Provider contract.
type Provider struct {
	client  *Client
	timeout time.Duration
}

type providerConfig struct {
	timeout       time.Duration
	clientOptions []Option
}

// ProviderOption customises the CoinGecko provider.
type ProviderOption func(*providerConfig)

// WithTimeout overrides the default per-call timeout.
func WithTimeout(timeout time.Duration) ProviderOption {
	return func(cfg *providerConfig) {
		if timeout > 0 {
			cfg.timeout = timeout
		}
	}
}

// WithClientOptions passes options to the underlying client.
func WithClientOptions(options ...Option) ProviderOption {
	return func(cfg *providerConfig) {
		cfg.clientOptions = append(cfg.clientOptions, options...)
	}
}

// NewProvider constructs a CoinGecko market-data provider.
func NewProvider(opts ...ProviderOption) *Provider {
	cfg := &providerConfig{timeout: defaultProviderTimeout}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Provider{
		client:  NewClient(cfg.clientOptions...),
		timeout: cfg.timeout,
	}
}

func init() {
	source.RegisterProvider("coingecko", func(name string, cfg *source.ProviderConfig) (source.Provider, error) {
		opts := []ProviderOption{}
		clientOptions := []Option{}
		if cfg.Timeout > 0 {
			opts = append(opts, WithTimeout(cfg.Timeout))
		}
		if cfg.HTTPTimeout > 0 {
			clientOptions = append(clientOptions, WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}))
		}
		if cfg.BaseURL != "" {
			clientOptions = append(clientOptions, WithBaseURL(cfg.BaseURL))
		}
		if cfg.APIKey != "" {
			clientOptions = append(clientOptions, WithAPIKey(cfg.APIKey))
		}
		if cfg.MaxRetries > 0 {
			clientOptions = append(clientOptions, WithMaxRetries(cfg.MaxRetries))
		}
		if len(clientOptions) > 0 {
			opts = append(opts, WithClientOptions(clientOptions...))
		}
		return NewProvider(opts...), nil
	})
}

// TopAssets implements source.Provider.
func (p *Provider) TopAssets(ctx context.Context, limit int) ([]source.Asset, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	rows, err := p.client.TopMarkets(ctx, limit)
	if err != nil {
		return nil, err
	}
	assets := make([]source.Asset, 0, len(rows))
	for _, row := range rows {
		assets = append(assets, source.Asset{
			ID:     row.ID,
			Symbol: row.Symbol,
			Name:   row.Name,
		})
	}
	return assets, nil
}

// Tickers implements source.Provider.
func (p *Provider) Tickers(ctx context.Context, assetID string) ([]source.Ticker, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	rows, err := p.client.CoinTickers(ctx, assetID)
	if err != nil {
		return nil, err
	}
	tickers := make([]source.Ticker, 0, len(rows))
	for _, row := range rows {
		tickers = append(tickers, source.Ticker{
			Base:       row.Base,
			Quote:      strings.ToUpper(row.Target),
			Exchange:   row.Market.Name,
			Last:       row.Last,
			Volume:     row.Volume,
			TrustScore: row.TrustScore,
		})
	}
	return tickers, nil
}

func (p *Provider) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.timeout)
}
