package server

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/datacapsule-io/dcserver/internal/dchash"
	"github.com/datacapsule-io/dcserver/internal/protocol"
	"github.com/datacapsule-io/dcserver/internal/wire"
	"go.uber.org/zap"
)

// connHandler drives one accepted connection's per-role state machine
// (spec §4.8's dispatcher): decode a frame, invoke the role's transition,
// encode the response frame, repeat until the connection closes or a
// ProtocolError occurs.
type connHandler struct {
	ctx   context.Context
	d     *protocol.Dispatcher
	codec wire.Codec
	conn  net.Conn
	log   *zap.SugaredLogger
}

func newConnHandler(ctx context.Context, d *protocol.Dispatcher, codec wire.Codec, conn net.Conn, log *zap.SugaredLogger) *connHandler {
	return &connHandler{ctx: ctx, d: d, codec: codec, conn: conn, log: log}
}

func (h *connHandler) readEnvelope() (protocol.Envelope, error) {
	payload, err := wire.ReadFrame(h.conn)
	if err != nil {
		return protocol.Envelope{}, err
	}
	var env protocol.Envelope
	if err := h.codec.Decode(payload, &env); err != nil {
		return protocol.Envelope{}, err
	}
	return env, nil
}

func (h *connHandler) writeEnvelope(env protocol.Envelope) error {
	payload, err := h.codec.Encode(env)
	if err != nil {
		return err
	}
	return wire.WriteFrame(h.conn, payload)
}

func (h *connHandler) protocolError(msg string) error {
	_ = h.writeEnvelope(protocol.Envelope{Type: protocol.MsgProtocolError, Error: &protocol.ProtocolErrorMsg{Message: msg}})
	return errors.New("protocol: " + msg)
}

func (h *connHandler) run(init protocol.InitMsg) error {
	switch init.Role {
	case protocol.RoleCreator:
		return h.runCreator()
	case protocol.RoleWriter:
		return h.runWriter(init.Capsule)
	case protocol.RoleReader:
		return h.runReader(init.Capsule)
	case protocol.RoleSubscriber:
		return h.runSubscriber(init.Capsule)
	default:
		return h.protocolError("unknown role")
	}
}

func (h *connHandler) runCreator() error {
	env, err := h.readEnvelope()
	if err != nil {
		return err
	}
	if env.Type != protocol.MsgCreateRequest || env.CreateRequest == nil {
		return h.protocolError("expected CreateRequest")
	}
	resp, err := h.d.CreateDatacapsule(*env.CreateRequest)
	if err != nil {
		return err
	}
	return h.writeEnvelope(protocol.Envelope{Type: protocol.MsgCreateResponse, CreateResponse: &resp})
}

func (h *connHandler) runWriter(capsule dchash.Hash) error {
	w, err := h.d.OpenWriter(capsule)
	if err != nil {
		return err
	}
	defer w.Close()

	for {
		env, err := h.readEnvelope()
		if err != nil {
			return err
		}
		switch env.Type {
		case protocol.MsgWriteRequest:
			if env.WriteRequest == nil {
				return h.protocolError("malformed WriteRequest")
			}
			if err := w.Write(*env.WriteRequest); err != nil {
				return h.protocolError(err.Error())
			}
		case protocol.MsgCommitRequest:
			if env.CommitRequest == nil {
				return h.protocolError("malformed CommitRequest")
			}
			resp, err := w.Commit(*env.CommitRequest)
			if err != nil {
				return err
			}
			if err := h.writeEnvelope(protocol.Envelope{Type: protocol.MsgCommitResponse, CommitResponse: &resp}); err != nil {
				return err
			}
		default:
			return h.protocolError("operation not valid for writer role")
		}
	}
}

func (h *connHandler) runReader(capsule dchash.Hash) error {
	r, err := h.d.OpenReader(capsule)
	if err != nil {
		return err
	}

	for {
		env, err := h.readEnvelope()
		if err != nil {
			return err
		}
		switch env.Type {
		case protocol.MsgReadRequest:
			if env.ReadRequest == nil {
				return h.protocolError("malformed ReadRequest")
			}
			bytes, found, err := r.Read(env.ReadRequest.Hash)
			if err != nil {
				return err
			}
			resp := protocol.ReadResponse{Found: found, Bytes: bytes}
			if err := h.writeEnvelope(protocol.Envelope{Type: protocol.MsgReadResponse, ReadResponse: &resp}); err != nil {
				return err
			}
		case protocol.MsgProveRequest:
			if env.ProveRequest == nil {
				return h.protocolError("malformed ProveRequest")
			}
			if err := h.serveProve(r, env.ProveRequest.Hash); err != nil {
				return err
			}
		default:
			return h.protocolError("operation not valid for reader role")
		}
	}
}

func (h *connHandler) serveProve(r *protocol.ReaderSession, target dchash.Hash) error {
	stream, ok, err := r.Prove(target)
	if err != nil {
		return err
	}
	if stream.Root != nil {
		msg := protocol.SignedHashMsg{Hash: stream.Root.Hash, Sig: stream.Root.Sig}
		if err := h.writeEnvelope(protocol.Envelope{Type: protocol.MsgProveSignedHash, SignedHash: &msg}); err != nil {
			return err
		}
	}
	for _, blk := range stream.Blocks {
		msg := protocol.HashBlockMsg{Children: blk.Children}
		if err := h.writeEnvelope(protocol.Envelope{Type: protocol.MsgProveHashBlock, HashBlock: &msg}); err != nil {
			return err
		}
	}
	end := protocol.ProveEndMsg{OK: ok}
	return h.writeEnvelope(protocol.Envelope{Type: protocol.MsgProveEnd, ProveEnd: &end})
}

// waitAfter blocks on sub.WaitAfter while concurrently watching the raw
// connection for a peer-initiated close. The read loop isn't pumping the
// socket during a wait, so without this a disconnect mid-wait (spec
// §4.4.4, S5's second run) is never noticed until some unrelated event
// cancels h.ctx. The watcher's blocking Read is interrupted with a
// past read deadline once the wait resolves any other way, so it never
// races the next call to h.readEnvelope on the same connection.
func (h *connHandler) waitAfter(sub *protocol.SubscriberSession, seq uint64) (uint64, error) {
	waitCtx, cancel := context.WithCancel(h.ctx)
	defer cancel()

	watcherDone := make(chan struct{})
	go func() {
		defer close(watcherDone)
		var buf [1]byte
		if _, err := h.conn.Read(buf[:]); err != nil {
			cancel()
		}
	}()

	newSeq, err := sub.WaitAfter(waitCtx, seq)

	_ = h.conn.SetReadDeadline(time.Unix(0, 1))
	<-watcherDone
	_ = h.conn.SetReadDeadline(time.Time{})

	return newSeq, err
}

func (h *connHandler) runSubscriber(capsule dchash.Hash) error {
	sub, err := h.d.OpenSubscriber(capsule)
	if err != nil {
		return err
	}

	for {
		env, err := h.readEnvelope()
		if err != nil {
			return err
		}
		switch env.Type {
		case protocol.MsgGetLastNumRequest:
			resp := protocol.GetLastNumResponse{Seq: sub.GetLastNum()}
			if err := h.writeEnvelope(protocol.Envelope{Type: protocol.MsgGetLastNumResponse, GetLastNumResponse: &resp}); err != nil {
				return err
			}
		case protocol.MsgNameFromNumRequest:
			if env.NameFromNumRequest == nil {
				return h.protocolError("malformed NameFromNumRequest")
			}
			hash, found, err := sub.NameFromNum(env.NameFromNumRequest.Seq)
			if err != nil {
				return err
			}
			resp := protocol.NameFromNumResponse{Found: found, Hash: hash}
			if err := h.writeEnvelope(protocol.Envelope{Type: protocol.MsgNameFromNumResponse, NameFromNumResponse: &resp}); err != nil {
				return err
			}
		case protocol.MsgNumFromNameRequest:
			if env.NumFromNameRequest == nil {
				return h.protocolError("malformed NumFromNameRequest")
			}
			seq, found, err := sub.NumFromName(env.NumFromNameRequest.Hash)
			if err != nil {
				return err
			}
			resp := protocol.NumFromNameResponse{Found: found, Seq: seq}
			if err := h.writeEnvelope(protocol.Envelope{Type: protocol.MsgNumFromNameResponse, NumFromNameResponse: &resp}); err != nil {
				return err
			}
		case protocol.MsgWaitAfterRequest:
			if env.WaitAfterRequest == nil {
				return h.protocolError("malformed WaitAfterRequest")
			}
			newSeq, err := h.waitAfter(sub, env.WaitAfterRequest.Seq)
			if err != nil {
				// Connection-close cancellation releases the waiter
				// without a response (spec §4.4.4).
				return err
			}
			resp := protocol.WaitAfterResponse{NewLastSeq: newSeq}
			if err := h.writeEnvelope(protocol.Envelope{Type: protocol.MsgWaitAfterResponse, WaitAfterResponse: &resp}); err != nil {
				return err
			}
		default:
			return h.protocolError("operation not valid for subscriber role")
		}
	}
}
