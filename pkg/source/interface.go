package source

import "context"

// Provider exposes the upstream market-data operations the aggregation
// pipeline depends on.
type Provider interface {
	// TopAssets returns up to limit assets ordered by market capitalization,
	// highest first. Fewer entries than limit is not an error.
	TopAssets(ctx context.Context, limit int) ([]Asset, error)
	// Tickers returns the exchange-level tickers currently listed for the
	// asset identified by assetID.
	Tickers(ctx context.Context, assetID string) ([]Ticker, error)
}

// Asset identifies one listed asset.
type Asset struct {
	ID     string // provider-stable identifier, e.g. "bitcoin"
	Symbol string // ticker symbol, e.g. "btc"
	Name   string // display name, e.g. "Bitcoin"
}

// Ticker is a single exchange listing for an asset. Last and Volume are
// pointers because upstream payloads may omit them for stale markets.
type Ticker struct {
	Base       string   // traded asset symbol
	Quote      string   // quote currency symbol, e.g. "USDT"
	Exchange   string   // venue display name
	Last       *float64 // last traded price in the quote currency
	Volume     *float64 // reported trading volume
	TrustScore string   // data-quality tier assigned by the provider
}

// TrustTierGreen is the highest trust classification; only tickers in this
// tier are eligible for averaging.
const TrustTierGreen = "green"
