package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"github.com/zeromicro/go-zero/core/stores/redis"

	"pricefeed-api/internal/model/modeltest"
	"pricefeed-api/pkg/pricedata"
)

func ptr(v float64) *float64 { return &v }

func record(id, symbol string, avg float64) pricedata.PriceRecord {
	return pricedata.PriceRecord{
		ID:        id,
		Symbol:    symbol,
		Name:      id,
		Average:   ptr(avg),
		Exchanges: []string{"Binance"},
		Prices:    []float64{avg},
	}
}

func mustPut(t *testing.T, s *SnapshotStore, key string, records ...pricedata.PriceRecord) {
	t.Helper()
	err := s.Put(context.Background(), &pricedata.Snapshot{Timestamp: key, Records: records})
	require.NoError(t, err)
}

func TestPutRoundTrip(t *testing.T) {
	s := New(modeltest.NewMemorySnapshotsModel())
	mustPut(t, s, "2024-01-01T00:00:00.000Z", record("bitcoin", "btc", 42000))

	entry, err := s.GetLatestMatching(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, "2024-01-01T00:00:00.000Z", entry.Key)
	require.Len(t, entry.Records, 1)
	require.Equal(t, "bitcoin", entry.Records[0].ID)
	require.InDelta(t, 42000.0, *entry.Records[0].Average, 1e-9)
}

func TestPutOverwritesSameKey(t *testing.T) {
	mem := modeltest.NewMemorySnapshotsModel()
	s := New(mem)
	mustPut(t, s, "2024-01-01T00:00:00.000Z", record("bitcoin", "btc", 42000))
	mustPut(t, s, "2024-01-01T00:00:00.000Z", record("bitcoin", "btc", 42100))

	require.Equal(t, 1, mem.Len())
	entry, err := s.GetLatestMatching(context.Background(), nil)
	require.NoError(t, err)
	require.InDelta(t, 42100.0, *entry.Records[0].Average, 1e-9)
}

func TestGetLatestMatchingEmptyLog(t *testing.T) {
	s := New(modeltest.NewMemorySnapshotsModel())

	entry, err := s.GetLatestMatching(context.Background(), nil)
	require.NoError(t, err)
	require.Nil(t, entry)
}

func TestGetLatestMatchingEmptyPairsReturnsNewest(t *testing.T) {
	s := New(modeltest.NewMemorySnapshotsModel())
	mustPut(t, s, "2024-01-01T00:00:00.000Z", record("bitcoin", "btc", 42000))
	mustPut(t, s, "2024-01-01T00:00:30.000Z", record("bitcoin", "btc", 42100))

	entry, err := s.GetLatestMatching(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, "2024-01-01T00:00:30.000Z", entry.Key)
}

func TestGetLatestMatchingSurfacesOlderSnapshot(t *testing.T) {
	// Only t1 contains eth; t2 and t3 exist but hold other assets. The
	// reverse scan must keep going past them and surface t1.
	s := New(modeltest.NewMemorySnapshotsModel())
	mustPut(t, s, "2024-01-01T00:00:00.000Z", record("ethereum", "eth", 2200))
	mustPut(t, s, "2024-01-01T00:00:30.000Z", record("bitcoin", "btc", 42000))
	mustPut(t, s, "2024-01-01T00:01:00.000Z", record("bitcoin", "btc", 42100))

	entry, err := s.GetLatestMatching(context.Background(), []string{"eth"})
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, "2024-01-01T00:00:00.000Z", entry.Key)
	require.Len(t, entry.Records, 1)
	require.Equal(t, "ethereum", entry.Records[0].ID)
}

func TestGetLatestMatchingAcrossScanBatches(t *testing.T) {
	// Batch size 2 forces the reverse scan to page at least twice before it
	// reaches the only matching snapshot.
	s := New(modeltest.NewMemorySnapshotsModel(), WithScanBatch(2))
	mustPut(t, s, "2024-01-01T00:00:00.000Z", record("ethereum", "eth", 2200))
	mustPut(t, s, "2024-01-01T00:00:30.000Z", record("bitcoin", "btc", 1))
	mustPut(t, s, "2024-01-01T00:01:00.000Z", record("bitcoin", "btc", 2))
	mustPut(t, s, "2024-01-01T00:01:30.000Z", record("bitcoin", "btc", 3))
	mustPut(t, s, "2024-01-01T00:02:00.000Z", record("bitcoin", "btc", 4))

	entry, err := s.GetLatestMatching(context.Background(), []string{"ETH"})
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, "2024-01-01T00:00:00.000Z", entry.Key)
}

func TestGetLatestMatchingNoMatchReturnsNil(t *testing.T) {
	s := New(modeltest.NewMemorySnapshotsModel())
	mustPut(t, s, "2024-01-01T00:00:00.000Z", record("bitcoin", "btc", 42000))

	entry, err := s.GetLatestMatching(context.Background(), []string{"doge"})
	require.NoError(t, err)
	require.Nil(t, entry)
}

func TestGetRangeMatchingInclusiveBounds(t *testing.T) {
	s := New(modeltest.NewMemorySnapshotsModel())
	keys := []string{
		"2024-01-01T00:00:00.000Z",
		"2024-01-01T00:00:30.000Z",
		"2024-01-01T00:01:00.000Z",
		"2024-01-01T00:01:30.000Z",
		"2024-01-01T00:02:00.000Z",
	}
	for i, key := range keys {
		mustPut(t, s, key, record("bitcoin", "btc", float64(42000+i)))
	}

	start := mustMillis(t, "2024-01-01T00:00:30.000Z")
	end := mustMillis(t, "2024-01-01T00:01:30.000Z")
	entries, err := s.GetRangeMatching(context.Background(), start, end, nil)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, keys[1], entries[0].Key)
	require.Equal(t, keys[2], entries[1].Key)
	require.Equal(t, keys[3], entries[2].Key)
}

func TestGetRangeMatchingFiltersPairs(t *testing.T) {
	s := New(modeltest.NewMemorySnapshotsModel())
	mustPut(t, s, "2024-01-01T00:00:00.000Z", record("bitcoin", "btc", 42000))
	mustPut(t, s, "2024-01-01T00:00:30.000Z",
		record("bitcoin", "btc", 42100),
		record("ethereum", "eth", 2200),
	)

	start := mustMillis(t, "2024-01-01T00:00:00.000Z")
	end := mustMillis(t, "2024-01-01T00:00:30.000Z")
	entries, err := s.GetRangeMatching(context.Background(), start, end, []string{"eth"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "2024-01-01T00:00:30.000Z", entries[0].Key)
	require.Len(t, entries[0].Records, 1)
	require.Equal(t, "ethereum", entries[0].Records[0].ID)
}

func TestGetRangeMatchingEmptyResultIsNotNil(t *testing.T) {
	s := New(modeltest.NewMemorySnapshotsModel())

	entries, err := s.GetRangeMatching(context.Background(), 0, 1000, nil)
	require.NoError(t, err)
	require.NotNil(t, entries)
	require.Empty(t, entries)
}

func TestPutRejectsMissingTimestamp(t *testing.T) {
	s := New(modeltest.NewMemorySnapshotsModel())
	err := s.Put(context.Background(), &pricedata.Snapshot{})
	require.Error(t, err)
}

func TestStoredPayloadIsRecordListJSON(t *testing.T) {
	mem := modeltest.NewMemorySnapshotsModel()
	s := New(mem)
	mustPut(t, s, "2024-01-01T00:00:00.000Z", record("bitcoin", "btc", 42000))

	row, err := mem.FindOne(context.Background(), "2024-01-01T00:00:00.000Z")
	require.NoError(t, err)

	var records []pricedata.PriceRecord
	require.NoError(t, json.Unmarshal([]byte(row.Records), &records))
	require.Len(t, records, 1)
	require.Equal(t, "btc", records[0].Symbol)
}

func newCachedStore(t *testing.T, mem *modeltest.MemorySnapshotsModel) (*miniredis.Miniredis, *SnapshotStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	rds := redis.MustNewRedis(redis.RedisConf{Host: mr.Addr(), Type: redis.NodeType})
	return mr, New(mem, WithLatestCache(rds, 10*time.Second))
}

func TestLatestFastPathServesCachedEntry(t *testing.T) {
	mem := modeltest.NewMemorySnapshotsModel()
	_, s := newCachedStore(t, mem)
	mustPut(t, s, "2024-01-01T00:00:00.000Z", record("bitcoin", "btc", 42000))

	// A broken model proves the unfiltered latest read never reaches it.
	mem.QueryErr = errors.New("db down")
	entry, err := s.GetLatestMatching(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, "2024-01-01T00:00:00.000Z", entry.Key)
	require.Equal(t, "bitcoin", entry.Records[0].ID)
}

func TestLatestFastPathDisabledAfterCacheWriteFailure(t *testing.T) {
	mem := modeltest.NewMemorySnapshotsModel()
	mr, s := newCachedStore(t, mem)
	mustPut(t, s, "2024-01-01T00:00:00.000Z", record("bitcoin", "btc", 42000))

	mr.SetError("cache down")
	mustPut(t, s, "2024-01-01T00:00:30.000Z", record("bitcoin", "btc", 42100))
	mr.SetError("")

	// The cache may still hold the older entry; the scan must answer until
	// a refresh succeeds again.
	entry, err := s.GetLatestMatching(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, "2024-01-01T00:00:30.000Z", entry.Key)
	require.InDelta(t, 42100.0, *entry.Records[0].Average, 1e-9)
}

func TestLatestFastPathRecoversAfterSuccessfulRefresh(t *testing.T) {
	mem := modeltest.NewMemorySnapshotsModel()
	mr, s := newCachedStore(t, mem)
	mustPut(t, s, "2024-01-01T00:00:00.000Z", record("bitcoin", "btc", 42000))

	mr.SetError("cache down")
	mustPut(t, s, "2024-01-01T00:00:30.000Z", record("bitcoin", "btc", 42100))
	mr.SetError("")
	mustPut(t, s, "2024-01-01T00:01:00.000Z", record("bitcoin", "btc", 42200))

	mem.QueryErr = errors.New("db down")
	entry, err := s.GetLatestMatching(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, "2024-01-01T00:01:00.000Z", entry.Key)
}

func mustMillis(t *testing.T, key string) int64 {
	t.Helper()
	ts, err := pricedata.ParseKey(key)
	require.NoError(t, err)
	return ts.UnixMilli()
}
