// Package pipeline orchestrates one aggregation cycle: collect, persist,
// publish the in-memory latest result.
package pipeline

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/metric"

	"pricefeed-api/internal/aggregator"
	"pricefeed-api/internal/store"
	"pricefeed-api/pkg/pricedata"
)

// ErrRunInProgress is returned when a trigger fires while a previous run is
// still active. Overlapping runs skip instead of interleaving writes.
var ErrRunInProgress = errors.New("pipeline: run already in progress")

var (
	metricPersistFailures = metric.NewCounterVec(&metric.CounterVecOpts{
		Namespace: "pricefeed",
		Subsystem: "pipeline",
		Name:      "persist_failures_total",
		Help:      "Snapshot writes swallowed because the store was unavailable.",
	})
	metricSkippedRuns = metric.NewCounterVec(&metric.CounterVecOpts{
		Namespace: "pricefeed",
		Subsystem: "pipeline",
		Name:      "skipped_runs_total",
		Help:      "Triggers skipped because a run was already in flight.",
	})
)

// Result is the caller-visible outcome of one pipeline invocation.
type Result struct {
	Success  bool                `json:"success"`
	Snapshot *pricedata.Snapshot `json:"snapshot,omitempty"`
	Error    string              `json:"error,omitempty"`
}

// Pipeline ties the aggregator to the snapshot store.
type Pipeline struct {
	agg      *aggregator.Aggregator
	store    *store.SnapshotStore
	inFlight atomic.Bool
	latest   atomic.Pointer[Result]
}

// New constructs a Pipeline.
func New(agg *aggregator.Aggregator, st *store.SnapshotStore) *Pipeline {
	return &Pipeline{agg: agg, store: st}
}

// Run executes one aggregation cycle. Aggregation failures are converted to
// a structured failed Result; a persistence failure is logged, counted and
// swallowed so an otherwise successful run still reports success. The only
// error ever returned is ErrRunInProgress.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	if !p.inFlight.CompareAndSwap(false, true) {
		metricSkippedRuns.Inc()
		return Result{}, ErrRunInProgress
	}
	defer p.inFlight.Store(false)

	snap, err := p.agg.Collect(ctx)
	if err != nil {
		logx.WithContext(ctx).Errorf("pipeline: aggregation failed: %v", err)
		return Result{Success: false, Error: err.Error()}, nil
	}

	result := Result{Success: true, Snapshot: snap}
	p.latest.Store(&result)

	if err := p.store.Put(ctx, snap); err != nil {
		// Swallowed on purpose: the in-memory latest result above still
		// serves this snapshot while the store is down.
		metricPersistFailures.Inc()
		logx.WithContext(ctx).Errorf("pipeline: persist snapshot %s: %v", snap.Timestamp, err)
	}
	return result, nil
}

// Latest returns the most recent successful result, or nil before the first
// successful run. This read path bypasses the store and supports no
// filtering.
func (p *Pipeline) Latest() *Result {
	return p.latest.Load()
}
