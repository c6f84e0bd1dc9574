package server

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/sutra-engine/sutra-storage/namespace"
)

// Server is the TCP front end: one listener fanning out to
// per-namespace ConcurrentMemory instances through a namespace.Manager,
// speaking both a binary msgpack protocol and a line-oriented text
// protocol on the same port.
type Server struct {
	namespaces *namespace.Manager
	pipeline   Pipeline
	logger     *zap.Logger
	startedAt  time.Time

	listener net.Listener

	mu       sync.Mutex
	conns    map[net.Conn]struct{}
	draining bool

	wg sync.WaitGroup
}

// New constructs a Server. pipeline may be nil (see Pipeline's doc).
func New(namespaces *namespace.Manager, pipeline Pipeline, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		namespaces: namespaces,
		pipeline:   pipeline,
		logger:     logger,
		startedAt:  time.Now(),
		conns:      make(map[net.Conn]struct{}),
	}
}

func (s *Server) uptimeSeconds() uint64 {
	return uint64(time.Since(s.startedAt).Seconds())
}

// ListenAndServe binds addr and accepts connections until ctx is
// canceled, at which point it stops accepting, waits for in-flight
// connections to finish their current request, flushes every
// namespace, and returns.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.logger.Info("storage server listening", zap.String("addr", addr))

	acceptDone := make(chan struct{})
	go func() {
		defer close(acceptDone)
		for {
			conn, err := ln.Accept()
			if err != nil {
				if s.isDraining() {
					return
				}
				s.logger.Warn("accept error", zap.Error(err))
				return
			}
			s.trackConn(conn)
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				defer s.untrackConn(conn)
				if err := s.handleConn(ctx, conn); err != nil && !errors.Is(err, io.EOF) {
					s.logger.Debug("client connection ended", zap.Error(err))
				}
			}()
		}
	}()

	<-ctx.Done()
	s.shutdown()
	<-acceptDone
	return nil
}

func (s *Server) isDraining() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draining
}

func (s *Server) trackConn(c net.Conn) {
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrackConn(c net.Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

// shutdown stops accepting new connections, waits for in-flight
// requests to finish, then flushes every namespace.
func (s *Server) shutdown() {
	s.mu.Lock()
	s.draining = true
	// Unblock connections idling in Peek; a request already being handled
	// still writes its response before its next read fails.
	for c := range s.conns {
		_ = c.SetReadDeadline(time.Now())
	}
	s.mu.Unlock()

	if s.listener != nil {
		s.listener.Close()
	}
	s.logger.Info("shutdown signal received, draining connections")
	s.wg.Wait()

	s.namespaces.FlushAll()
	s.namespaces.StopAll()
	s.logger.Info("storage flushed, shutdown complete")
}

// handleConn services one connection until it disconnects or the
// framing is unrecoverably broken.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) error {
	defer conn.Close()
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}

	reader := bufio.NewReader(conn)
	for {
		first, err := reader.Peek(1)
		if err != nil {
			return err
		}

		if first[0] == 0x00 {
			if err := s.handleBinaryMessage(ctx, reader, conn); err != nil {
				return err
			}
			continue
		}
		if err := s.handleTextLine(ctx, reader, conn); err != nil {
			return err
		}
	}
}

func (s *Server) handleBinaryMessage(ctx context.Context, reader *bufio.Reader, conn net.Conn) error {
	var lenBuf [4]byte
	if _, err := io.ReadFull(reader, lenBuf[:]); err != nil {
		return err
	}
	length := binary.BigEndian.Uint32(lenBuf[:])

	if length > MaxMessageSize {
		resp := errorResponse("message too large: %d bytes (max %d)", length, MaxMessageSize)
		if _, err := io.CopyN(io.Discard, reader, int64(length)); err != nil {
			return err
		}
		return s.writeBinaryResponse(conn, resp)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(reader, payload); err != nil {
		return err
	}

	var req Request
	if err := msgpack.Unmarshal(payload, &req); err != nil {
		s.logger.Debug("msgpack decode failed", zap.Error(err))
		return s.writeBinaryResponse(conn, errorResponse("malformed request: %v", err))
	}

	resp := s.HandleRequest(ctx, req)
	return s.writeBinaryResponse(conn, resp)
}

func (s *Server) writeBinaryResponse(conn net.Conn, resp Response) error {
	body, err := msgpack.Marshal(resp)
	if err != nil {
		return err
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := conn.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err = conn.Write(body)
	return err
}

func (s *Server) handleTextLine(ctx context.Context, reader *bufio.Reader, conn net.Conn) error {
	line, err := reader.ReadString('\n')
	if err != nil {
		if line == "" {
			return err
		}
		// Fall through: process a final unterminated line, then report
		// the read error (usually EOF) to the caller on the next call.
	}

	req, parseErr := parseTextCommand(line)
	var resp Response
	if parseErr != nil {
		resp = errorResponse("%v", parseErr)
	} else {
		resp = s.HandleRequest(ctx, req)
	}

	out, marshalErr := encodeTextResponse(resp)
	if marshalErr != nil {
		out = []byte(`{"type":"Error","message":"failed to encode response"}`)
	}
	if _, werr := conn.Write(append(out, '\n')); werr != nil {
		return werr
	}
	if err != nil {
		return err
	}
	return nil
}
