// Package store implements the ordered snapshot log on Postgres, with an
// optional Redis write-through cache for the newest entry.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/stores/redis"

	cachekeys "pricefeed-api/internal/cache"
	"pricefeed-api/internal/model"
	"pricefeed-api/pkg/pricedata"
)

// ErrStorageUnavailable marks read/write failures caused by the backing
// store being unreachable. Callers decide whether to retry; this layer never
// does.
var ErrStorageUnavailable = errors.New("snapshot store: storage unavailable")

const defaultScanBatch = 64

// SnapshotStore owns the ordered log of aggregation snapshots.
type SnapshotStore struct {
	snapshots model.PriceSnapshotsModel
	cache     *redis.Redis
	cacheTTL  time.Duration
	scanBatch int

	// cacheStale is set when a refresh after a durable write failed, so the
	// cached entry may be older than the newest row. The fast path stays off
	// until the next successful refresh.
	cacheStale atomic.Bool
}

// Option customises a SnapshotStore.
type Option func(*SnapshotStore)

// WithLatestCache enables the Redis cache holding the newest durable entry.
func WithLatestCache(r *redis.Redis, ttl time.Duration) Option {
	return func(s *SnapshotStore) {
		if r != nil && ttl > 0 {
			s.cache = r
			s.cacheTTL = ttl
		}
	}
}

// WithScanBatch overrides the page size used by reverse scans.
func WithScanBatch(n int) Option {
	return func(s *SnapshotStore) {
		if n > 0 {
			s.scanBatch = n
		}
	}
}

// New constructs a SnapshotStore over the given snapshot model.
func New(snapshots model.PriceSnapshotsModel, opts ...Option) *SnapshotStore {
	s := &SnapshotStore{
		snapshots: snapshots,
		scanBatch: defaultScanBatch,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// cachedEntry is the msgpack payload kept under the latest-snapshot key.
type cachedEntry struct {
	Key     string                  `msgpack:"key"`
	Records []pricedata.PriceRecord `msgpack:"records"`
}

// Put writes a snapshot under its timestamp key. Writing the same key twice
// overwrites, so retried runs with identical timestamps never error.
func (s *SnapshotStore) Put(ctx context.Context, snap *pricedata.Snapshot) error {
	if snap == nil || strings.TrimSpace(snap.Timestamp) == "" {
		return errors.New("snapshot store: snapshot without timestamp")
	}
	payload, err := json.Marshal(snap.Records)
	if err != nil {
		return fmt.Errorf("snapshot store: encode records: %w", err)
	}
	row := &model.PriceSnapshots{Key: snap.Timestamp, Records: string(payload)}
	if err := s.snapshots.Upsert(ctx, row); err != nil {
		return classify(fmt.Errorf("snapshot store: put %s: %w", snap.Timestamp, err))
	}
	s.cacheLatest(ctx, snap)
	return nil
}

// GetLatestMatching scans the log newest-first and returns the first entry
// whose records survive the pair filter. With an empty pair list the newest
// entry is returned as-is. Returns (nil, nil) when nothing matches.
func (s *SnapshotStore) GetLatestMatching(ctx context.Context, pairs []string) (*pricedata.Entry, error) {
	if len(pairs) == 0 {
		if entry := s.loadCachedLatest(ctx); entry != nil {
			return entry, nil
		}
	}
	beforeKey := ""
	for {
		rows, err := s.snapshots.FindPageDesc(ctx, beforeKey, s.scanBatch)
		if err != nil {
			return nil, classify(fmt.Errorf("snapshot store: latest scan: %w", err))
		}
		for _, row := range rows {
			records, err := decodeRecords(row)
			if err != nil {
				return nil, err
			}
			if len(pairs) == 0 {
				return &pricedata.Entry{Key: row.Key, Records: records}, nil
			}
			filtered := pricedata.FilterRecords(records, pairs)
			if len(filtered) > 0 {
				return &pricedata.Entry{Key: row.Key, Records: filtered}, nil
			}
		}
		if len(rows) < s.scanBatch {
			return nil, nil
		}
		beforeKey = rows[len(rows)-1].Key
	}
}

// GetRangeMatching returns entries whose key lies in the inclusive interval
// [startMs, endMs], oldest first. With a non-empty pair list only entries
// with a non-empty filtered record set are included. Never returns nil.
func (s *SnapshotStore) GetRangeMatching(ctx context.Context, startMs, endMs int64, pairs []string) ([]pricedata.Entry, error) {
	startKey := pricedata.KeyFromMillis(startMs)
	endKey := pricedata.KeyFromMillis(endMs)
	rows, err := s.snapshots.FindRangeAsc(ctx, startKey, endKey)
	if err != nil {
		return nil, classify(fmt.Errorf("snapshot store: range scan: %w", err))
	}
	entries := make([]pricedata.Entry, 0, len(rows))
	for _, row := range rows {
		records, err := decodeRecords(row)
		if err != nil {
			return nil, err
		}
		if len(pairs) == 0 {
			entries = append(entries, pricedata.Entry{Key: row.Key, Records: records})
			continue
		}
		filtered := pricedata.FilterRecords(records, pairs)
		if len(filtered) > 0 {
			entries = append(entries, pricedata.Entry{Key: row.Key, Records: filtered})
		}
	}
	return entries, nil
}

func decodeRecords(row *model.PriceSnapshots) ([]pricedata.PriceRecord, error) {
	var records []pricedata.PriceRecord
	if err := json.Unmarshal([]byte(row.Records), &records); err != nil {
		return nil, fmt.Errorf("snapshot store: decode records for %s: %w", row.Key, err)
	}
	return records, nil
}

// cacheLatest refreshes the Redis latest-entry cache after a durable write.
// A failed refresh marks the cache stale instead of erroring; the log remains
// the source of truth.
func (s *SnapshotStore) cacheLatest(ctx context.Context, snap *pricedata.Snapshot) {
	if s.cache == nil {
		return
	}
	payload, err := msgpack.Marshal(cachedEntry{Key: snap.Timestamp, Records: snap.Records})
	if err != nil {
		logx.WithContext(ctx).Errorf("store: encode latest cache: %v", err)
		s.invalidateCache(ctx)
		return
	}
	key := cachekeys.SnapshotLatestKey()
	seconds := int(s.cacheTTL / time.Second)
	if seconds <= 0 {
		return
	}
	if err := s.cache.SetexCtx(ctx, key, string(payload), seconds); err != nil {
		logx.WithContext(ctx).Errorf("store: set latest cache key=%s err=%v", key, err)
		s.invalidateCache(ctx)
		return
	}
	s.cacheStale.Store(false)
}

// invalidateCache disables the latest fast path and best-effort deletes the
// now-outdated key. If the delete also fails the key still expires within
// cacheTTL, bounding staleness for readers outside this process.
func (s *SnapshotStore) invalidateCache(ctx context.Context) {
	s.cacheStale.Store(true)
	key := cachekeys.SnapshotLatestKey()
	if _, err := s.cache.DelCtx(ctx, key); err != nil {
		logx.WithContext(ctx).Errorf("store: drop latest cache key=%s err=%v", key, err)
	}
}

func (s *SnapshotStore) loadCachedLatest(ctx context.Context) *pricedata.Entry {
	if s.cache == nil || s.cacheStale.Load() {
		return nil
	}
	key := cachekeys.SnapshotLatestKey()
	raw, err := s.cache.GetCtx(ctx, key)
	if err != nil || raw == "" {
		if err != nil {
			logx.WithContext(ctx).Errorf("store: get latest cache key=%s err=%v", key, err)
		}
		return nil
	}
	var entry cachedEntry
	if err := msgpack.Unmarshal([]byte(raw), &entry); err != nil {
		logx.WithContext(ctx).Errorf("store: decode latest cache key=%s err=%v", key, err)
		return nil
	}
	return &pricedata.Entry{Key: entry.Key, Records: entry.Records}
}

// classify wraps connectivity failures with ErrStorageUnavailable so callers
// can distinguish an unreachable store from a data problem.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08: connection exception. Class 57: operator intervention
		// (shutdown in progress and friends).
		if strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57") {
			return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return err
}
