package pricedata

import (
	"math"
	"time"
)

// KeyLayout is the timestamp layout used as the ordered-log key. Fixed width
// and zero padded so lexicographic order on keys equals chronological order.
const KeyLayout = "2006-01-02T15:04:05.000Z"

// PriceRecord is one asset's aggregated price inside a snapshot.
type PriceRecord struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Name      string    `json:"name"`
	Average   *float64  `json:"average"`
	Exchanges []string  `json:"exchanges"`
	Prices    []float64 `json:"prices"`
}

// Snapshot is the complete result of one aggregation run, keyed by the
// timestamp it was taken at.
type Snapshot struct {
	Timestamp string        `json:"timestamp"`
	Records   []PriceRecord `json:"records"`
}

// Entry is a stored snapshot as returned by queries: the log key plus the
// (possibly pair-filtered) records written under it.
type Entry struct {
	Key     string        `json:"key"`
	Records []PriceRecord `json:"value"`
}

// Key formats an instant as an ordered-log key.
func Key(t time.Time) string {
	return t.UTC().Format(KeyLayout)
}

// KeyFromMillis converts an epoch-millisecond instant to the key representation.
func KeyFromMillis(ms int64) string {
	return Key(time.UnixMilli(ms))
}

// ParseKey converts an ordered-log key back to the instant it encodes.
func ParseKey(key string) (time.Time, error) {
	return time.Parse(KeyLayout, key)
}

// Mean returns the arithmetic mean of prices, or nil for an empty slice.
func Mean(prices []float64) *float64 {
	if len(prices) == 0 {
		return nil
	}
	var sum float64
	for _, p := range prices {
		sum += p
	}
	avg := sum / float64(len(prices))
	return &avg
}

// IsFinite reports whether v is a usable price value.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
