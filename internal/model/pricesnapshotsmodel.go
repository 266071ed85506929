package model

import (
	"context"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = sqlx.ErrNotFound

var _ PriceSnapshotsModel = (*defaultPriceSnapshotsModel)(nil)

type (
	// PriceSnapshotsModel provides row-level access to the ordered snapshot
	// log. Keys are ISO-8601 UTC timestamps, so the key ordering used by the
	// paging queries is also chronological ordering.
	PriceSnapshotsModel interface {
		// Upsert writes a snapshot row, overwriting any row with the same key.
		Upsert(ctx context.Context, data *PriceSnapshots) error
		// FindOne fetches a single row by key.
		FindOne(ctx context.Context, key string) (*PriceSnapshots, error)
		// FindPageDesc pages through the log newest-first. An empty beforeKey
		// starts at the newest row; otherwise only rows with key < beforeKey
		// are returned.
		FindPageDesc(ctx context.Context, beforeKey string, limit int) ([]*PriceSnapshots, error)
		// FindRangeAsc returns rows with startKey <= key <= endKey in
		// ascending key order.
		FindRangeAsc(ctx context.Context, startKey, endKey string) ([]*PriceSnapshots, error)
	}

	defaultPriceSnapshotsModel struct {
		conn  sqlx.SqlConn
		table string
	}

	PriceSnapshots struct {
		Key       string    `db:"key"`
		Records   string    `db:"records"`
		CreatedAt time.Time `db:"created_at"`
	}
)

// NewPriceSnapshotsModel returns a model for the price_snapshots table.
func NewPriceSnapshotsModel(conn sqlx.SqlConn) PriceSnapshotsModel {
	return &defaultPriceSnapshotsModel{
		conn:  conn,
		table: `public.price_snapshots`,
	}
}

func (m *defaultPriceSnapshotsModel) Upsert(ctx context.Context, data *PriceSnapshots) error {
	query := fmt.Sprintf(`
INSERT INTO %s ("key", records, created_at)
VALUES ($1, $2, NOW())
ON CONFLICT ("key") DO UPDATE SET records = EXCLUDED.records`, m.table)
	_, err := m.conn.ExecCtx(ctx, query, data.Key, data.Records)
	return err
}

func (m *defaultPriceSnapshotsModel) FindOne(ctx context.Context, key string) (*PriceSnapshots, error) {
	query := fmt.Sprintf(`SELECT "key", records, created_at FROM %s WHERE "key" = $1 LIMIT 1`, m.table)
	var resp PriceSnapshots
	err := m.conn.QueryRowCtx(ctx, &resp, query, key)
	switch err {
	case nil:
		return &resp, nil
	case sqlx.ErrNotFound:
		return nil, ErrNotFound
	default:
		return nil, err
	}
}

func (m *defaultPriceSnapshotsModel) FindPageDesc(ctx context.Context, beforeKey string, limit int) ([]*PriceSnapshots, error) {
	var (
		query string
		args  []interface{}
	)
	if beforeKey == "" {
		query = fmt.Sprintf(`SELECT "key", records, created_at FROM %s ORDER BY "key" DESC LIMIT $1`, m.table)
		args = []interface{}{limit}
	} else {
		query = fmt.Sprintf(`SELECT "key", records, created_at FROM %s WHERE "key" < $1 ORDER BY "key" DESC LIMIT $2`, m.table)
		args = []interface{}{beforeKey, limit}
	}
	var rows []*PriceSnapshots
	if err := m.conn.QueryRowsCtx(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

func (m *defaultPriceSnapshotsModel) FindRangeAsc(ctx context.Context, startKey, endKey string) ([]*PriceSnapshots, error) {
	query := fmt.Sprintf(`SELECT "key", records, created_at FROM %s WHERE "key" >= $1 AND "key" <= $2 ORDER BY "key" ASC`, m.table)
	var rows []*PriceSnapshots
	if err := m.conn.QueryRowsCtx(ctx, &rows, query, startKey, endKey); err != nil {
		return nil, err
	}
	return rows, nil
}
