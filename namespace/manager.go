// Package namespace implements NamespaceManager: a registry mapping
// namespace names to their own ConcurrentMemory, created lazily on
// first use under a base storage directory.
package namespace

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/launix-de/NonLockingReadMap"

	"github.com/sutra-engine/sutra-storage/hnsw"
	"github.com/sutra-engine/sutra-storage/memory"
	"github.com/sutra-engine/sutra-storage/reconciler"
	"github.com/sutra-engine/sutra-storage/snapshot"
)

// Default is the reserved fallback namespace name.
const Default = "default"

// entry adapts a namespace's Memory for storage in a NonLockingReadMap,
// which is used here purely as a read-optimized registry (writes —
// namespace creation — happen rarely and only at first use, the access
// pattern the map is grounded on in writelog's design notes).
type entry struct {
	name string
	mem  *memory.Memory
}

// GetKey/ComputeSize use value receivers (not pointer) so that entry
// itself, not *entry, satisfies NonLockingReadMap's KeyGetter
// constraint — the map is parameterized on the element type and always
// traffics in *T itself.
func (e entry) GetKey() string    { return e.name }
func (e entry) ComputeSize() uint { return 0 }

// Config bundles the parameters every namespace's Memory is built with.
type Config struct {
	BasePath           string
	ReconcileInterval  time.Duration
	MaxBatchSize       int
	DiskFlushThreshold int
	VectorDimension    int
	RingCapacity       int64
}

// PersistFunc persists a namespace's snapshot to disk; it is invoked
// from the namespace's own reconciler goroutine.
type PersistFunc func(namespace string, basePath string) reconciler.FlushFunc

// AuditFunc builds a namespace's audit sink hook, invoked once at
// namespace creation time alongside PersistFunc; nil disables auditing.
type AuditFunc func(namespace string, basePath string) reconciler.AuditFunc

// LoadFunc loads a namespace's most recently persisted snapshot, if
// any, before its Memory starts. A nil snapshot with a nil error means
// nothing has been persisted yet for this namespace; Manager.Get then
// starts the namespace empty, same as if LoadFunc were nil.
type LoadFunc func(namespace string, basePath string) (*snapshot.GraphSnapshot, error)

// Manager is the namespace registry: one Memory per namespace, created
// lazily and started on first use.
type Manager struct {
	cfg     Config
	persist PersistFunc
	audit   AuditFunc
	load    LoadFunc
	logger  *zap.Logger

	registry NonLockingReadMap.NonLockingReadMap[entry, string]
	createMu sync.Mutex

	ctx context.Context
}

// New constructs a Manager. ctx governs the lifetime of every
// namespace's reconciler goroutine.
func New(ctx context.Context, cfg Config, persist PersistFunc, logger *zap.Logger) *Manager {
	return NewWithAudit(ctx, cfg, persist, nil, logger)
}

// NewWithAudit is New plus a per-namespace audit-sink factory.
func NewWithAudit(ctx context.Context, cfg Config, persist PersistFunc, audit AuditFunc, logger *zap.Logger) *Manager {
	return NewFull(ctx, cfg, persist, audit, nil, logger)
}

// NewFull is NewWithAudit plus a per-namespace snapshot-load factory,
// consulted once when a namespace is first created so a restarted
// process resumes from its last persisted state instead of starting
// empty.
func NewFull(ctx context.Context, cfg Config, persist PersistFunc, audit AuditFunc, load LoadFunc, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		cfg:      cfg,
		persist:  persist,
		audit:    audit,
		load:     load,
		logger:   logger,
		registry: NonLockingReadMap.New[entry, string](),
		ctx:      ctx,
	}
}

// Get returns the Memory for namespace, creating and starting it on
// first use. Concurrent first-use calls for the same namespace are
// serialized by createMu so exactly one Memory is ever started.
func (mgr *Manager) Get(namespace string) *memory.Memory {
	if namespace == "" {
		namespace = Default
	}
	if e := mgr.registry.Get(namespace); e != nil {
		return e.mem
	}

	mgr.createMu.Lock()
	defer mgr.createMu.Unlock()

	if e := mgr.registry.Get(namespace); e != nil {
		return e.mem
	}

	basePath := filepath.Join(mgr.cfg.BasePath, namespace)
	var flush reconciler.FlushFunc
	if mgr.persist != nil {
		flush = mgr.persist(namespace, basePath)
	}

	reconCfg := reconciler.Config{
		Interval:           mgr.cfg.ReconcileInterval,
		MaxBatch:           mgr.cfg.MaxBatchSize,
		DiskFlushThreshold: mgr.cfg.DiskFlushThreshold,
	}
	vecCfg := hnsw.DefaultConfig(mgr.cfg.VectorDimension)

	mem := memory.New(namespace, mgr.cfg.RingCapacity, reconCfg, vecCfg, basePath, flush, mgr.logger)

	if mgr.load != nil {
		snap, err := mgr.load(namespace, basePath)
		if err != nil {
			mgr.logger.Warn("namespace snapshot load failed, starting empty", zap.String("namespace", namespace), zap.Error(err))
		} else if snap != nil {
			if err := mem.LoadSnapshot(snap); err != nil {
				mgr.logger.Warn("namespace vector index build failed", zap.String("namespace", namespace), zap.Error(err))
			}
		}
	}

	if mgr.audit != nil {
		mem.SetAudit(mgr.audit(namespace, basePath))
	}
	mem.Start(mgr.ctx)

	mgr.registry.Set(&entry{name: namespace, mem: mem})
	mgr.logger.Info("namespace created", zap.String("namespace", namespace))
	return mem
}

// FlushAll forces a reconcile-and-persist cycle on every namespace.
func (mgr *Manager) FlushAll() {
	for _, e := range mgr.registry.GetAll() {
		e.mem.Flush()
	}
}

// ListNamespaces returns every namespace name created so far, sorted.
func (mgr *Manager) ListNamespaces() []string {
	entries := mgr.registry.GetAll()
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.name)
	}
	sort.Strings(names)
	return names
}

// StopAll stops every namespace's reconciler goroutine; used during
// graceful shutdown after a final FlushAll.
func (mgr *Manager) StopAll() {
	for _, e := range mgr.registry.GetAll() {
		e.mem.Stop()
	}
}
