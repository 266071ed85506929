// Package query exposes the two read operations consumed by transport
// collaborators, adding input validation in front of the snapshot store.
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pricefeed-api/internal/store"
	"pricefeed-api/pkg/pricedata"
)

var (
	// ErrInvalidRange marks malformed start/end bounds. Surfaced to callers
	// as a client error, never silently coerced.
	ErrInvalidRange = errors.New("query: invalid range")
	// ErrInvalidPairs marks a pair list containing blank entries.
	ErrInvalidPairs = errors.New("query: invalid pair list")
)

// Service answers latest and range queries against the snapshot store.
type Service struct {
	store *store.SnapshotStore
}

// NewService constructs a query service.
func NewService(st *store.SnapshotStore) *Service {
	return &Service{store: st}
}

// GetLatest returns the freshest entry matching pairs, or (nil, nil) when no
// stored snapshot matches.
func (s *Service) GetLatest(ctx context.Context, pairs []string) (*pricedata.Entry, error) {
	normalized, err := normalizePairs(pairs)
	if err != nil {
		return nil, err
	}
	return s.store.GetLatestMatching(ctx, normalized)
}

// GetRange returns all entries with startMs <= key <= endMs matching pairs,
// oldest first. The result is empty, never nil, when nothing matches.
func (s *Service) GetRange(ctx context.Context, startMs, endMs int64, pairs []string) ([]pricedata.Entry, error) {
	if startMs < 0 || endMs < 0 {
		return nil, fmt.Errorf("%w: bounds must be non-negative", ErrInvalidRange)
	}
	if startMs > endMs {
		return nil, fmt.Errorf("%w: start %d after end %d", ErrInvalidRange, startMs, endMs)
	}
	normalized, err := normalizePairs(pairs)
	if err != nil {
		return nil, err
	}
	return s.store.GetRangeMatching(ctx, startMs, endMs, normalized)
}

func normalizePairs(pairs []string) ([]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(pairs))
	for _, p := range pairs {
		trimmed := strings.TrimSpace(p)
		if trimmed == "" {
			return nil, fmt.Errorf("%w: blank pair entry", ErrInvalidPairs)
		}
		out = append(out, trimmed)
	}
	return out, nil
}
