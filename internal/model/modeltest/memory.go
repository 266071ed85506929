// Package modeltest provides an in-memory PriceSnapshotsModel used by store,
// pipeline and query tests.
package modeltest

import (
	"context"
	"sort"
	"sync"

	"pricefeed-api/internal/model"
)

var _ model.PriceSnapshotsModel = (*MemorySnapshotsModel)(nil)

// MemorySnapshotsModel keeps snapshot rows in a map and serves the same
// ordered paging contract as the Postgres model.
type MemorySnapshotsModel struct {
	mu   sync.Mutex
	rows map[string]string

	// UpsertErr and QueryErr, when set, are returned by the corresponding
	// operations to simulate storage failures.
	UpsertErr error
	QueryErr  error
}

func NewMemorySnapshotsModel() *MemorySnapshotsModel {
	return &MemorySnapshotsModel{rows: make(map[string]string)}
}

func (m *MemorySnapshotsModel) Upsert(_ context.Context, data *model.PriceSnapshots) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpsertErr != nil {
		return m.UpsertErr
	}
	m.rows[data.Key] = data.Records
	return nil
}

func (m *MemorySnapshotsModel) FindOne(_ context.Context, key string) (*model.PriceSnapshots, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	records, ok := m.rows[key]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &model.PriceSnapshots{Key: key, Records: records}, nil
}

func (m *MemorySnapshotsModel) FindPageDesc(_ context.Context, beforeKey string, limit int) ([]*model.PriceSnapshots, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	keys := m.sortedKeysLocked()
	out := make([]*model.PriceSnapshots, 0, limit)
	for i := len(keys) - 1; i >= 0 && len(out) < limit; i-- {
		if beforeKey != "" && keys[i] >= beforeKey {
			continue
		}
		out = append(out, &model.PriceSnapshots{Key: keys[i], Records: m.rows[keys[i]]})
	}
	return out, nil
}

func (m *MemorySnapshotsModel) FindRangeAsc(_ context.Context, startKey, endKey string) ([]*model.PriceSnapshots, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	var out []*model.PriceSnapshots
	for _, key := range m.sortedKeysLocked() {
		if key < startKey || key > endKey {
			continue
		}
		out = append(out, &model.PriceSnapshots{Key: key, Records: m.rows[key]})
	}
	return out, nil
}

// Len reports the number of stored rows.
func (m *MemorySnapshotsModel) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func (m *MemorySnapshotsModel) sortedKeysLocked() []string {
	keys := make([]string, 0, len(m.rows))
	for key := range m.rows {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
