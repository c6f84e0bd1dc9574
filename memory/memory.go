// Package memory implements ConcurrentMemory, the per-namespace public
// API unifying the write log, read view, reconciler, and HNSW index.
package memory

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/sutra-engine/sutra-storage/concept"
	"github.com/sutra-engine/sutra-storage/hnsw"
	"github.com/sutra-engine/sutra-storage/reconciler"
	"github.com/sutra-engine/sutra-storage/snapshot"
	"github.com/sutra-engine/sutra-storage/sterr"
	"github.com/sutra-engine/sutra-storage/writelog"
)

// Stats aggregates counters across the write log, reconciler, and
// current snapshot.
type Stats struct {
	WriteLog    writelog.Stats
	Reconciler  reconciler.Stats
	Sequence    uint64
	Timestamp   uint64
	ConceptCount int
	EdgeCount   int
}

// Memory is the per-namespace façade unifying the write log, read
// view, reconciler, and HNSW index behind one API.
type Memory struct {
	Namespace string

	log    *writelog.Log
	view   *snapshot.ReadView
	recon  *reconciler.Reconciler
	vec    *hnsw.Container
	logger *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Memory for one namespace. flush is invoked by the
// reconciler whenever the configured disk-flush threshold is reached,
// and by Flush. It may be nil, in which case nothing is persisted:
// neither the threshold nor an explicit Flush writes anything.
func New(namespace string, ringCapacity int64, reconCfg reconciler.Config, vecCfg hnsw.Config, basePath string, flush reconciler.FlushFunc, logger *zap.Logger) *Memory {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("namespace", namespace))

	log := writelog.NewBounded(ringCapacity)
	view := snapshot.NewReadView()
	vec := hnsw.New(basePath, vecCfg)
	recon := reconciler.New(log, view, reconCfg, flush, logger)

	m := &Memory{
		Namespace: namespace,
		log:       log,
		view:      view,
		recon:     recon,
		vec:       vec,
		logger:    logger,
	}
	return m
}

// Start launches the background reconcile loop. Call once per Memory.
func (m *Memory) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.recon.Run(ctx)
	}()
}

// SetAudit installs fn as the reconciler's audit hook; nil disables it.
func (m *Memory) SetAudit(fn reconciler.AuditFunc) {
	m.recon.SetAudit(fn)
}

// LoadSnapshot publishes snap as the memory's initial state and
// reloads (or rebuilds) the HNSW index from its embedded vectors. It
// must be called before Start, and at most once; calling it after
// Start races the reconcile loop's own publishes.
func (m *Memory) LoadSnapshot(snap *snapshot.GraphSnapshot) error {
	m.view.Publish(snap)

	vectors := make(map[concept.ID][]float32)
	snap.Ascend(func(node *concept.Node) bool {
		if node.Vector != nil {
			vectors[node.ID] = node.Vector
		}
		return true
	})
	return m.vec.LoadOrBuild(vectors)
}

// Stop halts the reconcile loop and waits for it to exit.
func (m *Memory) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.recon.Stop()
	m.wg.Wait()
}

// LearnConcept appends an AddConcept write entry, optionally indexing
// vector in the HNSW container when non-nil.
func (m *Memory) LearnConcept(id concept.ID, content []byte, vector []float32, strength, confidence float32, attrs map[string]string) (uint64, error) {
	return m.LearnConceptWithSemantic(id, content, vector, strength, confidence, attrs, nil)
}

// LearnConceptWithSemantic is LearnConcept plus classifier-supplied
// semantic metadata.
func (m *Memory) LearnConceptWithSemantic(id concept.ID, content []byte, vector []float32, strength, confidence float32, attrs map[string]string, semantic *concept.SemanticMetadata) (uint64, error) {
	if len(content) > concept.MaxContentBytes {
		return 0, sterr.Invalid("content exceeds maximum of %d bytes", concept.MaxContentBytes)
	}
	if len(vector) > concept.MaxVectorDimension {
		return 0, sterr.Invalid("vector dimension exceeds maximum of %d", concept.MaxVectorDimension)
	}
	seq, err := m.log.AppendConcept(id, content, vector, strength, confidence, attrs, semantic)
	if err != nil {
		return 0, err
	}
	if vector != nil {
		if err := m.vec.Insert(id, vector); err != nil {
			m.logger.Warn("hnsw insert failed", zap.Error(err))
		}
	}
	return seq, nil
}

// LearnAssociation appends an AddAssociation write entry.
func (m *Memory) LearnAssociation(source, target concept.ID, kind concept.AssociationType, confidence float32) (uint64, error) {
	rec := concept.NewAssociationRecord(source, target, kind, confidence)
	return m.log.AppendAssociation(rec)
}

// UpdateStrength appends an UpdateStrength write entry.
func (m *Memory) UpdateStrength(id concept.ID, strength float32) (uint64, error) {
	return m.log.AppendUpdateStrength(id, strength)
}

// RecordAccess appends a RecordAccess write entry.
func (m *Memory) RecordAccess(id concept.ID) (uint64, error) {
	return m.log.AppendRecordAccess(id)
}

// DeleteConcept appends a DeleteConcept write entry.
func (m *Memory) DeleteConcept(id concept.ID) (uint64, error) {
	return m.log.AppendDeleteConcept(id)
}

// Clear atomically swaps in an empty snapshot and drains any queued
// write entries, discarding them.
func (m *Memory) Clear() {
	m.log.DrainBatch(1 << 30)
	m.view.Publish(snapshot.NewEmpty())
}

// QueryConcept returns the node stored under id, if any.
func (m *Memory) QueryConcept(id concept.ID) (*concept.Node, bool) {
	return m.view.Load().GetConcept(id)
}

// QueryNeighbors returns id's outgoing neighbor ids.
func (m *Memory) QueryNeighbors(id concept.ID) []concept.ID {
	return m.view.Load().GetNeighbors(id)
}

// QueryNeighborsWeighted returns id's neighbors paired with confidence.
func (m *Memory) QueryNeighborsWeighted(id concept.ID) []snapshot.WeightedNeighbor {
	return m.view.Load().GetNeighborsWeighted(id)
}

// FindPath runs a bounded BFS from start to end on the current snapshot.
func (m *Memory) FindPath(start, end concept.ID, maxDepth int) ([]concept.ID, bool) {
	return m.view.Load().FindPath(start, end, maxDepth)
}

// Contains reports whether id exists in the current snapshot.
func (m *Memory) Contains(id concept.ID) bool {
	return m.view.Load().Contains(id)
}

// VectorSearch delegates to the HNSW container; an uninitialized or
// mis-dimensioned index yields an empty result rather than an error.
func (m *Memory) VectorSearch(query []float32, k, efSearch int) []hnsw.Result {
	return m.vec.Search(query, k, efSearch)
}

// GetSnapshot returns the currently published snapshot for callers
// (the semantic subsystem, autonomy loops) that need to traverse it
// directly.
func (m *Memory) GetSnapshot() *snapshot.GraphSnapshot {
	return m.view.Load()
}

// Flush forces an immediate reconcile cycle followed by a persistence
// flush of the resulting snapshot.
func (m *Memory) Flush() {
	m.recon.RunOnce()
	m.recon.FlushNow(m.view.Load())
}

// HnswStats returns the container's stats() contract.
func (m *Memory) HnswStats() hnsw.Stats {
	return m.vec.Stats()
}

// Stats aggregates write-log, reconciler, and snapshot counters.
func (m *Memory) Stats() Stats {
	snap := m.view.Load()
	return Stats{
		WriteLog:     m.log.Stats(),
		Reconciler:   m.recon.Stats(),
		Sequence:     snap.Sequence,
		Timestamp:    snap.Timestamp,
		ConceptCount: snap.ConceptCount,
		EdgeCount:    snap.EdgeCount,
	}
}

// Vector exposes the underlying HNSW container for load_or_build
// bootstrapping and the admin/server layers' direct access.
func (m *Memory) Vector() *hnsw.Container {
	return m.vec
}
