// Package aggregator turns raw multi-exchange ticker data into one robust
// per-asset average price.
package aggregator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/mr"

	"pricefeed-api/pkg/pricedata"
	"pricefeed-api/pkg/source"
)

const (
	defaultTopAssets     = 5
	defaultTopExchanges  = 3
	defaultQuoteSymbol   = "USDT"
	defaultStableAssetID = "tether"
)

// Aggregator samples the market-data source and assembles snapshots.
type Aggregator struct {
	source        source.Provider
	topAssets     int
	topExchanges  int
	quoteSymbol   string
	stableAssetID string
	now           func() time.Time
}

// Option customises an Aggregator.
type Option func(*Aggregator)

// WithTopAssets sets how many assets by market cap are sampled per run.
func WithTopAssets(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.topAssets = n
		}
	}
}

// WithTopExchanges sets how many venues contribute to each average.
func WithTopExchanges(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.topExchanges = n
		}
	}
}

// WithQuoteSymbol sets the quote currency tickers must be denominated in.
func WithQuoteSymbol(symbol string) Option {
	return func(a *Aggregator) {
		if strings.TrimSpace(symbol) != "" {
			a.quoteSymbol = strings.TrimSpace(symbol)
		}
	}
}

// WithStableAssetID sets the asset id treated as pegged 1:1 to the quote
// currency and therefore never sampled.
func WithStableAssetID(id string) Option {
	return func(a *Aggregator) {
		a.stableAssetID = strings.TrimSpace(id)
	}
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// New constructs an Aggregator over the given market-data source.
func New(src source.Provider, opts ...Option) *Aggregator {
	a := &Aggregator{
		source:        src,
		topAssets:     defaultTopAssets,
		topExchanges:  defaultTopExchanges,
		quoteSymbol:   defaultQuoteSymbol,
		stableAssetID: defaultStableAssetID,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Collect fetches the top assets and computes one PriceRecord per asset.
// Per-asset fetches run concurrently; any fetch failure fails the whole run.
// The snapshot timestamp is taken only after every record is assembled.
func (a *Aggregator) Collect(ctx context.Context) (*pricedata.Snapshot, error) {
	assets, err := a.source.TopAssets(ctx, a.topAssets)
	if err != nil {
		return nil, fmt.Errorf("aggregator: top assets: %w", err)
	}
	records := make([]pricedata.PriceRecord, len(assets))
	fns := make([]func() error, len(assets))
	for i := range assets {
		i, asset := i, assets[i]
		fns[i] = func() error {
			rec, err := a.recordFor(ctx, asset)
			if err != nil {
				return err
			}
			records[i] = rec
			return nil
		}
	}
	if err := mr.Finish(fns...); err != nil {
		return nil, err
	}
	return &pricedata.Snapshot{
		Timestamp: pricedata.Key(a.now()),
		Records:   records,
	}, nil
}

func (a *Aggregator) recordFor(ctx context.Context, asset source.Asset) (pricedata.PriceRecord, error) {
	rec := pricedata.PriceRecord{
		ID:        asset.ID,
		Symbol:    asset.Symbol,
		Name:      asset.Name,
		Exchanges: []string{},
		Prices:    []float64{},
	}
	// A stablecoin pegged to the quote currency needs no market sampling;
	// thin or stale markets would only add noise around 1.0.
	if a.stableAssetID != "" && asset.ID == a.stableAssetID {
		one := 1.0
		rec.Average = &one
		rec.Prices = []float64{1.0}
		return rec, nil
	}

	tickers, err := a.source.Tickers(ctx, asset.ID)
	if err != nil {
		return pricedata.PriceRecord{}, fmt.Errorf("aggregator: tickers for %s: %w", asset.ID, err)
	}

	eligible := make([]source.Ticker, 0, len(tickers))
	for _, t := range tickers {
		if !strings.EqualFold(t.Quote, a.quoteSymbol) {
			continue
		}
		if t.TrustScore != source.TrustTierGreen {
			continue
		}
		eligible = append(eligible, t)
	}
	// Stable sort keeps source order on equal volume; no further tie-break.
	sort.SliceStable(eligible, func(i, j int) bool {
		return volume(eligible[i]) > volume(eligible[j])
	})
	if len(eligible) > a.topExchanges {
		eligible = eligible[:a.topExchanges]
	}

	for _, t := range eligible {
		rec.Exchanges = append(rec.Exchanges, t.Exchange)
		if t.Last != nil && pricedata.IsFinite(*t.Last) {
			rec.Prices = append(rec.Prices, *t.Last)
		}
	}
	rec.Average = pricedata.Mean(rec.Prices)
	return rec, nil
}

func volume(t source.Ticker) float64 {
	if t.Volume == nil {
		return 0
	}
	return *t.Volume
}
