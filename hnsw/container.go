// Package hnsw wraps github.com/coder/hnsw.Graph with a persistence and
// dirty-tracking contract: build-once, persist, incremental-update,
// and a bounded-time rebuild path when the persisted graph can't be
// trusted.
//
// Unlike the Rust original this was ported from — whose hnsw_container.rs
// documents that hnsw-rs's lifetime constraints prevented loading a
// persisted graph at all, forcing a full rebuild on every startup —
// coder/hnsw's Export/Import round-trip the live graph directly, so
// load_or_build here can skip the rebuild whenever the persisted vector
// count still matches.
package hnsw

import (
	"bytes"
	"encoding/gob"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	chnsw "github.com/coder/hnsw"
	"github.com/pierrec/lz4/v4"

	"github.com/sutra-engine/sutra-storage/concept"
	"github.com/sutra-engine/sutra-storage/sterr"
)

// Config holds the index's construction parameters.
type Config struct {
	Dimension      int
	M              int
	EfConstruction int
	EfSearch       int
	InitialCap     int
}

// DefaultConfig returns the documented production defaults.
func DefaultConfig(dimension int) Config {
	return Config{
		Dimension:      dimension,
		M:              16,
		EfConstruction: 200,
		EfSearch:       50,
		InitialCap:     100000,
	}
}

// Stats mirrors the container's stats() contract.
type Stats struct {
	NumVectors   int
	Dimension    int
	MaxNeighbors int
	Dirty        bool
	Initialized  bool
}

// Result is one scored match from Search.
type Result struct {
	ID         concept.ID
	Similarity float32
}

const (
	graphFileName = "storage.hnsw.graph"
	dataFileName  = "storage.hnsw.data"
	metaFileName  = "storage.hnsw.meta"
	metaVersion   = 1
)

type metadata struct {
	IDMapping map[string]concept.ID // hnsw key (hex) -> ConceptId, trivially reversible
	NextID    uint64
	Version   uint32
}

// Container is the per-namespace approximate nearest-neighbor index.
// It is safe for concurrent use: reads (Search, Stats) take an RLock,
// writes (Insert, load/build/save) take the exclusive Lock.
type Container struct {
	basePath string
	cfg      Config

	mu      sync.RWMutex
	graph   *chnsw.Graph[string]
	vectors map[concept.ID][]float32 // raw table, source of truth for rebuilds
	dirty   bool
}

// New constructs a Container rooted at basePath (the namespace's
// storage directory); the index is uninitialized until LoadOrBuild
// runs.
func New(basePath string, cfg Config) *Container {
	return &Container{basePath: basePath, cfg: cfg, vectors: make(map[concept.ID][]float32)}
}

func (c *Container) newGraph() *chnsw.Graph[string] {
	g := chnsw.NewGraph[string]()
	g.M = c.cfg.M
	g.EfSearch = c.cfg.EfSearch
	g.Distance = chnsw.CosineDistance
	return g
}

// LoadOrBuild tries to load a persisted graph + raw vector table; if
// absent, unreadable, or if the loaded vector count disagrees with
// vectors, it rebuilds from vectors using a bounded worker pool.
func (c *Container) LoadOrBuild(vectors map[concept.ID][]float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	loaded, err := c.tryLoadLocked()
	if err == nil && loaded && len(c.vectors) == len(vectors) {
		return nil
	}
	return c.buildFromLocked(vectors)
}

func (c *Container) tryLoadLocked() (bool, error) {
	graphPath := filepath.Join(c.basePath, graphFileName)
	dataPath := filepath.Join(c.basePath, dataFileName)
	metaPath := filepath.Join(c.basePath, metaFileName)

	if _, err := os.Stat(graphPath); err != nil {
		return false, nil
	}
	if _, err := os.Stat(dataPath); err != nil {
		return false, nil
	}

	meta, err := loadMeta(metaPath)
	if err != nil {
		return false, nil // missing/corrupt metadata forces a rebuild, not a hard failure
	}

	rawVectors, err := loadRawVectors(dataPath)
	if err != nil {
		return false, err
	}

	graphFile, err := os.Open(graphPath)
	if err != nil {
		return false, err
	}
	defer graphFile.Close()

	graph, err := chnsw.Import[string](graphFile)
	if err != nil {
		return false, err
	}

	c.graph = graph
	c.vectors = rawVectors
	_ = meta // id mapping is recoverable from rawVectors' keys; kept for forward compatibility
	c.dirty = false
	return true, nil
}

func (c *Container) buildFromLocked(vectors map[concept.ID][]float32) error {
	c.graph = c.newGraph()
	c.vectors = make(map[concept.ID][]float32, len(vectors))
	if len(vectors) == 0 {
		c.dirty = false
		return nil
	}

	ids := make([]concept.ID, 0, len(vectors))
	for id := range vectors {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })

	workers := runtime.GOMAXPROCS(0)
	if workers < 1 {
		workers = 1
	}
	nodes := make([]chnsw.Node[string], len(ids))
	chunk := (len(ids) + workers - 1) / workers
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if start >= len(ids) {
			break
		}
		if end > len(ids) {
			end = len(ids)
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				nodes[i] = chnsw.MakeNode(ids[i].Hex(), vectors[ids[i]])
			}
		}(start, end)
	}
	wg.Wait()

	c.graph.Add(nodes...)
	for _, id := range ids {
		c.vectors[id] = vectors[id]
	}
	c.dirty = true
	return nil
}

// Insert incrementally adds a single vector to the index, keyed by
// id's hex form. Re-inserting an id already present only refreshes the
// raw vector table, matching the "requires rebuild for efficient
// update" tradeoff noted in the original engine.
func (c *Container) Insert(id concept.ID, vector []float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.graph == nil {
		c.graph = c.newGraph()
	}
	if _, exists := c.vectors[id]; exists {
		c.vectors[id] = vector
		c.dirty = true
		return nil
	}

	c.graph.Add(chnsw.MakeNode(id.Hex(), vector))
	c.vectors[id] = vector
	c.dirty = true
	return nil
}

// Search returns up to k approximate nearest neighbors of query,
// ordered by decreasing similarity. efSearch is clamped to at least 50.
func (c *Container) Search(query []float32, k int, efSearch int) []Result {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.graph == nil {
		return nil
	}
	if c.cfg.Dimension > 0 && len(query) != c.cfg.Dimension {
		return nil
	}
	if efSearch < 50 {
		efSearch = 50
	}
	c.graph.EfSearch = efSearch

	matches := c.graph.Search(query, k)
	out := make([]Result, 0, len(matches))
	for _, m := range matches {
		id, err := concept.IDFromHex(m.Key)
		if err != nil {
			continue
		}
		dist := chnsw.CosineDistance(query, m.Value)
		if dist > 1 {
			dist = 1
		}
		out = append(out, Result{ID: id, Similarity: 1 - dist})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if len(out) > k {
		out = out[:k]
	}
	return out
}

// Save persists the graph, raw vector table, and metadata if the index
// is dirty; a clean index is a no-op.
func (c *Container) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saveLocked()
}

func (c *Container) saveLocked() error {
	if !c.dirty {
		return nil
	}
	if err := os.MkdirAll(c.basePath, 0o755); err != nil {
		return sterr.Wrap(sterr.IoError, "hnsw: mkdir failed", err)
	}

	graphPath := filepath.Join(c.basePath, graphFileName)
	f, err := os.Create(graphPath)
	if err != nil {
		return sterr.Wrap(sterr.IoError, "hnsw: create graph file failed", err)
	}
	if c.graph != nil {
		err = c.graph.Export(f)
	}
	closeErr := f.Close()
	if err != nil {
		return sterr.Wrap(sterr.IoError, "hnsw: export graph failed", err)
	}
	if closeErr != nil {
		return sterr.Wrap(sterr.IoError, "hnsw: close graph file failed", closeErr)
	}

	if err := saveRawVectors(filepath.Join(c.basePath, dataFileName), c.vectors); err != nil {
		return err
	}

	idMapping := make(map[string]concept.ID, len(c.vectors))
	for id := range c.vectors {
		idMapping[id.Hex()] = id
	}
	meta := metadata{IDMapping: idMapping, NextID: uint64(len(c.vectors)), Version: metaVersion}
	if err := saveMeta(filepath.Join(c.basePath, metaFileName), meta); err != nil {
		return err
	}

	c.dirty = false
	return nil
}

// Stats reports the container's current state.
func (c *Container) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		NumVectors:   len(c.vectors),
		Dimension:    c.cfg.Dimension,
		MaxNeighbors: c.cfg.M,
		Dirty:        c.dirty,
		Initialized:  c.graph != nil,
	}
}

func loadMeta(path string) (metadata, error) {
	var meta metadata
	raw, err := os.ReadFile(path)
	if err != nil {
		return meta, err
	}
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&meta); err != nil {
		return meta, err
	}
	return meta, nil
}

func saveMeta(path string, meta metadata) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(meta); err != nil {
		return sterr.Wrap(sterr.IoError, "hnsw: encode metadata failed", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return sterr.Wrap(sterr.IoError, "hnsw: write metadata failed", err)
	}
	return nil
}

// rawVectorRecord is the gob-encoded shape of one entry in the
// lz4-compressed raw vector table.
type rawVectorRecord struct {
	ID     concept.ID
	Vector []float32
}

func saveRawVectors(path string, vectors map[concept.ID][]float32) error {
	records := make([]rawVectorRecord, 0, len(vectors))
	for id, vec := range vectors {
		records = append(records, rawVectorRecord{ID: id, Vector: vec})
	}

	var plain bytes.Buffer
	if err := gob.NewEncoder(&plain).Encode(records); err != nil {
		return sterr.Wrap(sterr.IoError, "hnsw: encode raw vectors failed", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return sterr.Wrap(sterr.IoError, "hnsw: create data file failed", err)
	}
	defer f.Close()

	zw := lz4.NewWriter(f)
	if _, err := zw.Write(plain.Bytes()); err != nil {
		return sterr.Wrap(sterr.IoError, "hnsw: compress raw vectors failed", err)
	}
	if err := zw.Close(); err != nil {
		return sterr.Wrap(sterr.IoError, "hnsw: flush compressed raw vectors failed", err)
	}
	return nil
}

func loadRawVectors(path string) (map[concept.ID][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	zr := lz4.NewReader(f)
	plain, err := io.ReadAll(zr)
	if err != nil {
		return nil, sterr.Wrap(sterr.IoError, "hnsw: decompress raw vectors failed", err)
	}

	var records []rawVectorRecord
	if err := gob.NewDecoder(bytes.NewReader(plain)).Decode(&records); err != nil {
		return nil, sterr.Wrap(sterr.IoError, "hnsw: decode raw vectors failed", err)
	}

	out := make(map[concept.ID][]float32, len(records))
	for _, r := range records {
		out[r.ID] = r.Vector
	}
	return out, nil
}
