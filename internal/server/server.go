// Package server wires the dispatcher to the network: a TCP accept loop
// handing each connection to its own goroutine, framed with internal/wire
// and tagged with a per-connection google/uuid session id carried through
// every log line, the way the teacher tags tenant identity through its
// own request lifecycle.
package server

import (
	"context"
	"net"
	"sync"

	"github.com/datacapsule-io/dcserver/internal/protocol"
	"github.com/datacapsule-io/dcserver/internal/wire"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Server accepts Datacapsule protocol connections on a TCP listener.
type Server struct {
	dispatcher *protocol.Dispatcher
	codec      wire.Codec
	log        *zap.SugaredLogger

	wg sync.WaitGroup
}

// New builds a Server over dispatcher, logging through log.
func New(dispatcher *protocol.Dispatcher, log *zap.SugaredLogger) *Server {
	return &Server{dispatcher: dispatcher, codec: wire.CBORCodec{}, log: log}
}

// Serve accepts connections on ln until ctx is canceled, at which point it
// stops accepting and waits for in-flight connections to drain (spec §10's
// graceful shutdown).
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				s.wg.Wait()
				return nil
			default:
				return err
			}
		}

		sessionID := uuid.New().String()
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer conn.Close()
			connCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			s.handleConn(connCtx, conn, sessionID)
		}()
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn, sessionID string) {
	log := s.log.With("session", sessionID, "remote", conn.RemoteAddr().String())
	log.Debug("connection accepted")

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	payload, err := wire.ReadFrame(conn)
	if err != nil {
		log.Debugw("failed to read init frame", "error", err)
		return
	}
	var env protocol.Envelope
	if err := s.codec.Decode(payload, &env); err != nil || env.Type != protocol.MsgInit || env.Init == nil {
		log.Debugw("malformed init message", "error", err)
		return
	}

	h := newConnHandler(ctx, s.dispatcher, s.codec, conn, log)
	if err := h.run(*env.Init); err != nil {
		log.Debugw("connection ended", "error", err)
	}
}
