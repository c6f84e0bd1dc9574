// Package storagefile implements the v2 binary on-disk format for a
// namespace's concept graph and the pluggable Backend abstraction that
// persists it: a load-bearing local file backend plus best-effort S3
// and Ceph mirrors.
package storagefile

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/sutra-engine/sutra-storage/concept"
	"github.com/sutra-engine/sutra-storage/snapshot"
	"github.com/sutra-engine/sutra-storage/sterr"
)

const (
	magic         = "SUTRADAT"
	formatVersion = uint32(2)
	headerSize    = 64
)

// conceptRecord is the fixed-width prefix of one concept entry; Content
// follows immediately after in the stream.
type conceptRecord struct {
	ID          concept.ID
	ContentLen  uint32
	Strength    float32
	Confidence  float32
	AccessCount uint32
	Created     uint32 // seconds, lower 32 bits
}

type edgeRecord struct {
	Source     concept.ID
	Target     concept.ID
	Confidence float32
	Sequence   uint64
}

type vectorRecordHeader struct {
	ID        concept.ID
	Dimension uint32
}

// Encode serializes s into the v2 binary format and returns the exact
// bytes to write to storage.dat.
func Encode(s *snapshot.GraphSnapshot) ([]byte, error) {
	var concepts []conceptRecord
	var contents [][]byte
	var edges []edgeRecord
	var vectors []struct {
		id  concept.ID
		vec []float32
	}

	type edgeKey struct {
		source, target concept.ID
		sequence       uint64
	}
	seenEdge := make(map[edgeKey]bool)

	s.Ascend(func(node *concept.Node) bool {
		concepts = append(concepts, conceptRecord{
			ID:          node.ID,
			ContentLen:  uint32(len(node.Content)),
			Strength:    node.Strength,
			Confidence:  node.Confidence,
			AccessCount: node.AccessCount,
			Created:     uint32(node.Created),
		})
		contents = append(contents, node.Content)

		if node.Vector != nil {
			vectors = append(vectors, struct {
				id  concept.ID
				vec []float32
			}{node.ID, node.Vector})
		}

		// An edge is recorded on both endpoints with an identical
		// record; persist it once per write-log sequence rather than
		// once per (source, target) pair, so repeated LearnAssociation
		// calls on the same pair each survive as distinct edges.
		for _, assoc := range node.Associations {
			key := edgeKey{source: assoc.Source, target: assoc.Target, sequence: assoc.Sequence}
			if seenEdge[key] {
				continue
			}
			seenEdge[key] = true
			edges = append(edges, edgeRecord{Source: assoc.Source, Target: assoc.Target, Confidence: assoc.Confidence, Sequence: assoc.Sequence})
		}
		return true
	})

	var buf bytes.Buffer
	header := make([]byte, headerSize)
	copy(header[0:8], magic)
	binary.LittleEndian.PutUint32(header[8:12], formatVersion)
	binary.LittleEndian.PutUint32(header[12:16], uint32(len(concepts)))
	binary.LittleEndian.PutUint32(header[16:20], uint32(len(edges)))
	binary.LittleEndian.PutUint32(header[20:24], uint32(len(vectors)))
	binary.LittleEndian.PutUint64(header[24:32], s.Timestamp)
	buf.Write(header)

	for i, rec := range concepts {
		writeFixed(&buf, rec)
		buf.Write(contents[i])
	}
	for _, e := range edges {
		writeFixed(&buf, e)
	}
	for _, v := range vectors {
		writeFixed(&buf, vectorRecordHeader{ID: v.id, Dimension: uint32(len(v.vec))})
		writeFixed(&buf, v.vec)
	}

	return buf.Bytes(), nil
}

// Decode parses the v2 binary format, rejecting a mismatched magic or
// unsupported version. AssociationType is not persisted in v2 and
// defaults to Semantic for every reconstructed edge; semantic metadata
// is absent on every reconstructed node, since v2 doesn't persist it.
func Decode(data []byte) (*snapshot.GraphSnapshot, error) {
	if len(data) < headerSize {
		return nil, sterr.New(sterr.ProtocolError, "storagefile: truncated header")
	}
	if string(data[0:8]) != magic {
		return nil, sterr.New(sterr.ProtocolError, "storagefile: bad magic")
	}
	version := binary.LittleEndian.Uint32(data[8:12])
	if version != formatVersion {
		return nil, sterr.New(sterr.ProtocolError, "storagefile: unsupported version")
	}
	conceptCount := binary.LittleEndian.Uint32(data[12:16])
	edgeCount := binary.LittleEndian.Uint32(data[16:20])
	vectorCount := binary.LittleEndian.Uint32(data[20:24])
	timestamp := binary.LittleEndian.Uint64(data[24:32])

	r := bytes.NewReader(data[headerSize:])

	nodes := make(map[concept.ID]*concept.Node, conceptCount)
	order := make([]concept.ID, 0, conceptCount)
	for i := uint32(0); i < conceptCount; i++ {
		var rec conceptRecord
		if err := readFixed(r, &rec); err != nil {
			return nil, sterr.Wrap(sterr.ProtocolError, "storagefile: truncated concept record", err)
		}
		content := make([]byte, rec.ContentLen)
		if _, err := io.ReadFull(r, content); err != nil {
			return nil, sterr.Wrap(sterr.ProtocolError, "storagefile: truncated concept content", err)
		}
		node := concept.NewNode(rec.ID, content, nil, rec.Strength, rec.Confidence, uint64(rec.Created))
		node.AccessCount = rec.AccessCount
		nodes[rec.ID] = node
		order = append(order, rec.ID)
	}

	for i := uint32(0); i < edgeCount; i++ {
		var e edgeRecord
		if err := readFixed(r, &e); err != nil {
			return nil, sterr.Wrap(sterr.ProtocolError, "storagefile: truncated edge record", err)
		}
		rec := concept.AssociationRecord{Source: e.Source, Target: e.Target, Type: concept.Semantic, Confidence: e.Confidence, Sequence: e.Sequence}
		if src, ok := nodes[e.Source]; ok {
			nodes[e.Source] = src.WithEdge(e.Target, rec)
		}
		if dst, ok := nodes[e.Target]; ok {
			nodes[e.Target] = dst.WithEdge(e.Source, rec)
		}
	}

	for i := uint32(0); i < vectorCount; i++ {
		var h vectorRecordHeader
		if err := readFixed(r, &h); err != nil {
			return nil, sterr.Wrap(sterr.ProtocolError, "storagefile: truncated vector header", err)
		}
		vec := make([]float32, h.Dimension)
		if err := readFixed(r, vec); err != nil {
			return nil, sterr.Wrap(sterr.ProtocolError, "storagefile: truncated vector component", err)
		}
		if node, ok := nodes[h.ID]; ok {
			node.Vector = vec
		}
	}

	out := snapshot.NewEmpty()
	for _, id := range order {
		out.Set(nodes[id])
	}
	out.Timestamp = timestamp
	out.RecomputeCounts()
	return out, nil
}

// writeFixed/readFixed encode a fixed-width record (only primitive and
// [16]byte-array fields, so no padding surprises) in little-endian
// layout.
func writeFixed(buf *bytes.Buffer, v any) {
	_ = binary.Write(buf, binary.LittleEndian, v)
}

func readFixed(r io.Reader, v any) error {
	return binary.Read(r, binary.LittleEndian, v)
}
