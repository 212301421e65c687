package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/datacapsule-io/dcserver/internal/capsule"
	"github.com/datacapsule-io/dcserver/internal/dchash"
	"github.com/datacapsule-io/dcserver/internal/merkle"
	"github.com/datacapsule-io/dcserver/internal/protocol"
	"github.com/datacapsule-io/dcserver/internal/store"
	"github.com/datacapsule-io/dcserver/internal/wire"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startTestServer(t *testing.T) (net.Addr, func()) {
	t.Helper()
	st, err := store.Open(t.TempDir())
	require.NoError(t, err)

	serverSigner, err := dchash.GenerateSigner()
	require.NoError(t, err)

	cfg := protocol.Config{MerkleFanout: 2, HashCacheCapacity: 64, SigAvoidMaxExtraHashes: 4}
	dispatcher := protocol.NewDispatcher(cfg, st, capsule.NewRegistry(), serverSigner)

	logger := zap.NewNop().Sugar()
	srv := New(dispatcher, logger)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = srv.Serve(ctx, ln) }()

	cleanup := func() {
		cancel()
		_ = st.Close()
	}
	return ln.Addr(), cleanup
}

func dialAndInit(t *testing.T, addr net.Addr, init protocol.InitMsg) net.Conn {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr.String(), time.Second)
	require.NoError(t, err)
	sendEnvelope(t, conn, protocol.Envelope{Type: protocol.MsgInit, Init: &init})
	return conn
}

func sendEnvelope(t *testing.T, conn net.Conn, env protocol.Envelope) {
	t.Helper()
	var codec wire.CBORCodec
	payload, err := codec.Encode(env)
	require.NoError(t, err)
	require.NoError(t, wire.WriteFrame(conn, payload))
}

func recvEnvelope(t *testing.T, conn net.Conn) protocol.Envelope {
	t.Helper()
	payload, err := wire.ReadFrame(conn)
	require.NoError(t, err)
	var codec wire.CBORCodec
	var env protocol.Envelope
	require.NoError(t, codec.Decode(payload, &env))
	return env
}

func TestServerCreateWriteReadOverTCP(t *testing.T) {
	addr, cleanup := startTestServer(t)
	defer cleanup()

	creatorSigner, err := dchash.GenerateSigner()
	require.NoError(t, err)
	writerSigner, err := dchash.GenerateSigner()
	require.NoError(t, err)
	creatorPub, err := dchash.MarshalPublicKey(creatorSigner.PublicKey())
	require.NoError(t, err)
	writerPub, err := dchash.MarshalPublicKey(writerSigner.PublicKey())
	require.NoError(t, err)

	description := "over tcp"
	binding := dchash.H(append(append([]byte{}, writerPub...), []byte(description)...))
	creatorSig, err := creatorSigner.Sign(binding)
	require.NoError(t, err)

	createConn := dialAndInit(t, addr, protocol.InitMsg{Role: protocol.RoleCreator})
	defer createConn.Close()
	sendEnvelope(t, createConn, protocol.Envelope{
		Type: protocol.MsgCreateRequest,
		CreateRequest: &protocol.CreateRequest{
			CreatorPub:  creatorPub,
			WriterPub:   writerPub,
			Description: description,
			CreatorSig:  []byte(creatorSig),
		},
	})
	createResp := recvEnvelope(t, createConn)
	require.Equal(t, protocol.MsgCreateResponse, createResp.Type)
	require.True(t, createResp.CreateResponse.OK)
	capsuleName := createResp.CreateResponse.Capsule

	writerConn := dialAndInit(t, addr, protocol.InitMsg{Role: protocol.RoleWriter, Capsule: capsuleName})
	defer writerConn.Close()

	payload := []byte("hello over tcp")
	sendEnvelope(t, writerConn, protocol.Envelope{Type: protocol.MsgWriteRequest, WriteRequest: &protocol.WriteRequest{EncryptedBytes: payload, Seq: 0}})

	leaf := dchash.H(payload)
	tree, err := merkle.Build([]dchash.Hash{leaf}, 2, nil)
	require.NoError(t, err)
	clientSig, err := writerSigner.Sign(tree.Root())
	require.NoError(t, err)

	sendEnvelope(t, writerConn, protocol.Envelope{Type: protocol.MsgCommitRequest, CommitRequest: &protocol.CommitRequest{ClientRoot: tree.Root(), ClientSignedRoot: clientSig}})
	commitResp := recvEnvelope(t, writerConn)
	require.Equal(t, protocol.MsgCommitResponse, commitResp.Type)
	require.True(t, commitResp.CommitResponse.OK)

	readerConn := dialAndInit(t, addr, protocol.InitMsg{Role: protocol.RoleReader, Capsule: capsuleName})
	defer readerConn.Close()
	sendEnvelope(t, readerConn, protocol.Envelope{Type: protocol.MsgReadRequest, ReadRequest: &protocol.ReadRequest{Hash: leaf}})
	readResp := recvEnvelope(t, readerConn)
	require.Equal(t, protocol.MsgReadResponse, readResp.Type)
	require.True(t, readResp.ReadResponse.Found)
	require.Equal(t, payload, readResp.ReadResponse.Bytes)
}
