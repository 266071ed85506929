//go:build integration
// +build integration

package store_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/require"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	"pricefeed-api/internal/model"
	"pricefeed-api/internal/store"
	"pricefeed-api/pkg/pricedata"
)

// Requires a reachable Postgres with the price_snapshots table applied:
//
//	PRICEFEED_PG_DSN=postgres://... go test -tags integration ./internal/store/...
func newIntegrationStore(t *testing.T) *store.SnapshotStore {
	t.Helper()
	dsn := os.Getenv("PRICEFEED_PG_DSN")
	if dsn == "" {
		t.Skip("PRICEFEED_PG_DSN not set")
	}
	conn := sqlx.NewSqlConn("pgx", dsn)
	return store.New(model.NewPriceSnapshotsModel(conn))
}

func TestPostgresSnapshotRoundTrip(t *testing.T) {
	s := newIntegrationStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Distinct key per run keeps reruns from colliding with old rows.
	now := time.Now()
	key := pricedata.Key(now)
	avg := 42000.0
	snap := &pricedata.Snapshot{
		Timestamp: key,
		Records: []pricedata.PriceRecord{{
			ID:        fmt.Sprintf("itest-%d", now.UnixNano()),
			Symbol:    "itest",
			Name:      "Integration Test",
			Average:   &avg,
			Exchanges: []string{"Binance"},
			Prices:    []float64{42000},
		}},
	}
	require.NoError(t, s.Put(ctx, snap))

	entry, err := s.GetLatestMatching(ctx, []string{"itest"})
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, key, entry.Key)

	entries, err := s.GetRangeMatching(ctx, now.Add(-time.Second).UnixMilli(), now.Add(time.Second).UnixMilli(), []string{"itest"})
	require.NoError(t, err)
	require.NotEmpty(t, entries)
}
