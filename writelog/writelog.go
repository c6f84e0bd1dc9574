// Package writelog implements the engine's write plane: a lock-free,
// single-consumer multi-producer append log that assigns each entry a
// monotonic sequence number and never blocks a writer.
//
// The queue is a Michael-Scott style linked list guarded by atomic
// CAS-retry loops on the producer side, in the same spirit as the
// optimistic-retry idiom the corpus's NonLockingReadMap uses for its
// read-optimized map (restart the operation on a failed CAS rather than
// taking a lock) — adapted here from a sorted slice to an append-only
// linked list, since the log has no keys to search by.
package writelog

import (
	"sync/atomic"

	"github.com/sutra-engine/sutra-storage/concept"
	"github.com/sutra-engine/sutra-storage/sterr"
)

type node struct {
	entry Entry
	next  atomic.Pointer[node]
}

// Stats is a point-in-time snapshot of the write log's counters.
type Stats struct {
	Written uint64
	Dropped uint64
	Pending uint64
}

// Log is the lock-free, append-only write log every namespace funnels
// its mutations through before a reconciler applies them.
type Log struct {
	head atomic.Pointer[node]
	tail atomic.Pointer[node]

	seq     atomic.Uint64
	written atomic.Uint64
	dropped atomic.Uint64
	pending atomic.Int64

	// RingCapacity bounds the queue when > 0; writers increment Dropped
	// instead of enqueueing once Pending reaches it. 0 means unbounded,
	// the default that preserves durability over backpressure.
	ringCapacity int64

	closed atomic.Bool
}

// New returns an unbounded write log.
func New() *Log {
	return NewBounded(0)
}

// NewBounded returns a write log that drops entries once Pending
// reaches ringCapacity. ringCapacity <= 0 means unbounded.
func NewBounded(ringCapacity int64) *Log {
	dummy := &node{}
	lg := &Log{ringCapacity: ringCapacity}
	lg.head.Store(dummy)
	lg.tail.Store(dummy)
	return lg
}

// ErrClosed is returned by Append once Close has been called.
var ErrClosed = sterr.New(sterr.Unavailable, "write log is closed")

// Close marks the log closed; further Append calls fail. Already
// enqueued entries remain available to Drain.
func (lg *Log) Close() {
	lg.closed.Store(true)
}

func (lg *Log) enqueue(e Entry) (uint64, error) {
	if lg.closed.Load() {
		return 0, ErrClosed
	}
	if lg.ringCapacity > 0 && lg.pending.Load() >= lg.ringCapacity {
		lg.dropped.Add(1)
		return 0, sterr.New(sterr.Unavailable, "write log is full")
	}

	seq := lg.seq.Add(1)
	e.Sequence = seq
	n := &node{entry: e}

	for {
		tail := lg.tail.Load()
		next := tail.next.Load()
		if tail != lg.tail.Load() {
			continue
		}
		if next == nil {
			if tail.next.CompareAndSwap(nil, n) {
				lg.tail.CompareAndSwap(tail, n)
				break
			}
		} else {
			lg.tail.CompareAndSwap(tail, next)
		}
	}

	lg.written.Add(1)
	lg.pending.Add(1)
	return seq, nil
}

// AppendConcept enqueues an AddConcept entry and returns its sequence.
func (lg *Log) AppendConcept(id concept.ID, content []byte, vector []float32, strength, confidence float32, attrs map[string]string, semantic *concept.SemanticMetadata) (uint64, error) {
	return lg.enqueue(Entry{
		Kind:       KindAddConcept,
		ID:         id,
		Content:    content,
		Vector:     vector,
		Strength:   strength,
		Confidence: confidence,
		Attributes: attrs,
		Semantic:   semantic,
		Timestamp:  concept.NowSeconds(),
	})
}

// AppendAssociation enqueues an AddAssociation entry.
func (lg *Log) AppendAssociation(rec concept.AssociationRecord) (uint64, error) {
	return lg.enqueue(Entry{Kind: KindAddAssociation, Association: rec})
}

// AppendUpdateStrength enqueues an UpdateStrength entry.
func (lg *Log) AppendUpdateStrength(id concept.ID, strength float32) (uint64, error) {
	return lg.enqueue(Entry{Kind: KindUpdateStrength, ID: id, Strength: strength})
}

// AppendRecordAccess enqueues a RecordAccess entry stamped with the
// current time in microseconds.
func (lg *Log) AppendRecordAccess(id concept.ID) (uint64, error) {
	return lg.enqueue(Entry{Kind: KindRecordAccess, ID: id, Timestamp: concept.NowMicros()})
}

// AppendDeleteConcept enqueues a DeleteConcept entry.
func (lg *Log) AppendDeleteConcept(id concept.ID) (uint64, error) {
	return lg.enqueue(Entry{Kind: KindDeleteConcept, ID: id})
}

// AppendBatchMarker enqueues a no-op marker reserved for coarse-grained
// transactional boundaries.
func (lg *Log) AppendBatchMarker() (uint64, error) {
	return lg.enqueue(Entry{Kind: KindBatchMarker})
}

// DrainBatch removes up to max of the oldest entries and returns them
// in insertion order. Only a single consumer (the reconciler) may call
// DrainBatch; concurrent drains would race on head advancement.
func (lg *Log) DrainBatch(max int) []Entry {
	if max <= 0 {
		return nil
	}
	out := make([]Entry, 0, max)
	for len(out) < max {
		head := lg.head.Load()
		next := head.next.Load()
		if next == nil {
			break
		}
		lg.head.Store(next)
		out = append(out, next.entry)
		lg.pending.Add(-1)
	}
	return out
}

// Stats returns a snapshot of the log's counters.
func (lg *Log) Stats() Stats {
	return Stats{
		Written: lg.written.Load(),
		Dropped: lg.dropped.Load(),
		Pending: uint64(lg.pending.Load()),
	}
}
