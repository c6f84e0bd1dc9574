// Package reconciler implements the background loop that merges a
// writelog.Log into a snapshot.ReadView: drain a batch, apply each
// entry to a cloned snapshot, publish the clone, and periodically
// flush to disk. It is the only writer of a given ReadView, which is
// what lets readers load lock-free.
package reconciler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sutra-engine/sutra-storage/concept"
	"github.com/sutra-engine/sutra-storage/snapshot"
	"github.com/sutra-engine/sutra-storage/writelog"
)

// FlushFunc persists a snapshot to durable storage. It is invoked from
// the reconciler goroutine; implementations must not block
// indefinitely since that stalls subsequent reconcile cycles.
type FlushFunc func(s *snapshot.GraphSnapshot) error

// AuditFunc mirrors one applied write-log entry to an external sink.
// It runs synchronously in the reconcile loop after the entry has been
// applied to next, before the batch's snapshot is published; a failure
// is logged and otherwise ignored, matching audit's best-effort role.
type AuditFunc func(entry writelog.Entry) error

// Config controls the reconcile loop's pacing and flush policy.
type Config struct {
	// Interval between drain attempts. Defaults to 10ms, matching the
	// documented default cycle.
	Interval time.Duration
	// MaxBatch bounds how many entries are drained per cycle.
	MaxBatch int
	// DiskFlushThreshold triggers Flush once ConceptCount reaches it.
	// 0 disables threshold-triggered flushing.
	DiskFlushThreshold int
}

// DefaultConfig returns the documented production defaults.
func DefaultConfig() Config {
	return Config{
		Interval:           10 * time.Millisecond,
		MaxBatch:           10000,
		DiskFlushThreshold: 0,
	}
}

// Stats is a point-in-time snapshot of reconciler activity counters.
type Stats struct {
	Cycles      uint64
	Applied     uint64
	FlushCount  uint64
	FlushErrors uint64
}

// Reconciler owns the background loop tying a Log to a ReadView.
type Reconciler struct {
	log    *writelog.Log
	view   *snapshot.ReadView
	cfg    Config
	flush  FlushFunc
	audit  AuditFunc
	logger *zap.Logger

	mu    sync.Mutex
	stats Stats

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New constructs a Reconciler. flush may be nil, in which case the
// reconciler persists nothing: threshold-triggered flushes are skipped
// and FlushNow returns without writing.
func New(log *writelog.Log, view *snapshot.ReadView, cfg Config, flush FlushFunc, logger *zap.Logger) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = DefaultConfig().MaxBatch
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		log:    log,
		view:   view,
		cfg:    cfg,
		flush:  flush,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// SetAudit installs fn as the reconciler's audit hook. Passing nil
// disables auditing; it is safe to call before Run starts but not
// concurrently with an in-flight RunOnce.
func (r *Reconciler) SetAudit(fn AuditFunc) {
	r.audit = fn
}

// Run blocks, executing the reconcile loop until ctx is cancelled or
// Stop is called. It is meant to be launched with `go reconciler.Run(ctx)`.
func (r *Reconciler) Run(ctx context.Context) {
	defer close(r.doneCh)
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.RunOnce()
		}
	}
}

// Stop signals Run to exit and blocks until it has returned.
func (r *Reconciler) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	<-r.doneCh
}

// RunOnce executes a single reconcile cycle synchronously: drain,
// apply, publish, and conditionally flush. It is exported so callers
// (notably clear() and explicit flush requests) can force an
// out-of-band cycle without waiting on the ticker.
func (r *Reconciler) RunOnce() {
	batch := r.log.DrainBatch(r.cfg.MaxBatch)
	if len(batch) == 0 {
		return
	}

	current := r.view.Load()
	next := current.Clone()

	for _, entry := range batch {
		Apply(next, entry)
		if r.audit != nil {
			if err := r.audit(entry); err != nil {
				r.logger.Warn("audit sink write failed", zap.Error(err))
			}
		}
	}
	next.RecomputeCounts()
	next.Sequence++
	next.Timestamp = concept.NowMicros()

	r.view.Publish(next)

	r.mu.Lock()
	r.stats.Cycles++
	r.stats.Applied += uint64(len(batch))
	r.mu.Unlock()

	if r.cfg.DiskFlushThreshold > 0 && next.ConceptCount >= r.cfg.DiskFlushThreshold {
		r.FlushNow(next)
	}
}

// FlushNow invokes the configured FlushFunc against s, logging and
// counting failures without propagating them: a flush error must never
// stop the reconcile loop.
func (r *Reconciler) FlushNow(s *snapshot.GraphSnapshot) {
	if r.flush == nil {
		return
	}
	if err := r.flush(s); err != nil {
		r.logger.Error("flush failed, prior storage.dat retained", zap.Error(err))
		r.mu.Lock()
		r.stats.FlushErrors++
		r.mu.Unlock()
		return
	}
	r.mu.Lock()
	r.stats.FlushCount++
	r.mu.Unlock()
}

// Stats returns a copy of the reconciler's activity counters.
func (r *Reconciler) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}
