package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sutra-engine/sutra-storage/namespace"
)

// watchEvent is one line pushed to a /watch subscriber whenever the
// polled namespace publishes a new snapshot sequence.
type watchEvent struct {
	Namespace    string `json:"namespace"`
	Sequence     uint64 `json:"sequence"`
	ConceptCount int    `json:"concept_count"`
	EdgeCount    int    `json:"edge_count"`
	Timestamp    uint64 `json:"timestamp"`
}

const watchPollInterval = 250 * time.Millisecond

var watchUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WatchHandler serves /watch: it upgrades to a websocket, polls the
// requested namespace's published snapshot every watchPollInterval, and
// pushes one JSON watchEvent on the first poll and on every later poll
// that sees a new sequence; several publishes between two polls yield a
// single event. There is no server-side event log to replay: the first
// event reports the snapshot current at connect time. A reader that does
// not take an event within one poll interval is disconnected rather than
// buffered without bound.
func (s *Server) WatchHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ns := r.URL.Query().Get("namespace")
		if ns == "" {
			ns = namespace.Default
		}

		conn, err := watchUpgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Debug("watch upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()

		mem := s.namespaces.Get(ns)
		ticker := time.NewTicker(watchPollInterval)
		defer ticker.Stop()

		var lastSeq uint64
		first := true
		for range ticker.C {
			snap := mem.GetSnapshot()
			if !first && snap.Sequence == lastSeq {
				continue
			}
			first = false
			lastSeq = snap.Sequence

			evt := watchEvent{
				Namespace:    ns,
				Sequence:     snap.Sequence,
				ConceptCount: snap.ConceptCount,
				EdgeCount:    snap.EdgeCount,
				Timestamp:    snap.Timestamp,
			}
			_ = conn.SetWriteDeadline(time.Now().Add(watchPollInterval))
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		}
	}
}
