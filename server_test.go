package peerwire

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/Zereker/peerwire/message"
)

// mockHandler implements Handler for testing.
type mockHandler struct {
	mu       sync.Mutex
	conns    []*net.TCPConn
	handleCh chan *net.TCPConn
}

func newMockHandler() *mockHandler {
	return &mockHandler{
		handleCh: make(chan *net.TCPConn, 10),
	}
}

func (h *mockHandler) Handle(ctx context.Context, conn *net.TCPConn) {
	h.mu.Lock()
	h.conns = append(h.conns, conn)
	h.mu.Unlock()

	select {
	case h.handleCh <- conn:
	default:
	}
}

func newTestServer(t *testing.T, opts ...ServerOption) *Server {
	t.Helper()

	server, err := New(&net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0}, opts...)
	require.NoError(t, err)
	return server
}

func TestNew_InvalidAddr(t *testing.T) {
	server1 := newTestServer(t)
	defer server1.Close()

	_, err := New(server1.Addr().(*net.TCPAddr))
	require.Error(t, err, "port is already in use")
}

func TestServer_Serve(t *testing.T) {
	server := newTestServer(t)
	handler := newMockHandler()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- server.Serve(ctx, handler)
	}()

	clientConn, err := net.DialTCP("tcp", nil, server.Addr().(*net.TCPAddr))
	require.NoError(t, err)
	defer clientConn.Close()

	select {
	case conn := <-handler.handleCh:
		require.NotNil(t, conn)
		conn.Close()
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for handler")
	}

	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for Serve to return")
	}
	server.Wait()
}

func TestServer_Close(t *testing.T) {
	server := newTestServer(t, ServerShutdownTimeoutOption(time.Hour))

	done := make(chan error, 1)
	go func() {
		done <- server.Serve(context.Background(), newMockHandler())
	}()

	require.NoError(t, server.Close())

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for Serve to return")
	}
}

// TestServer_PeerPing serves framed connections and checks that a ping
// written by a client is answered with a matching pong.
func TestServer_PeerPing(t *testing.T) {
	server := newTestServer(t, ServerLoggerOption(&mockLogger{}))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := HandlerFunc(func(ctx context.Context, raw *net.TCPConn) {
		var conn *Conn
		conn, err := NewConn(raw,
			NetworkOption(wire.SimNet),
			OnMessageOption(func(msg message.Message) error {
				if ping, ok := msg.(*message.PingMessage); ok {
					return conn.WriteBlocking(ctx, message.NewPongMessage(ping))
				}
				return nil
			}),
		)
		if err != nil {
			raw.Close()
			return
		}
		_ = conn.Run(ctx)
	})
	go func() { _ = server.Serve(ctx, handler) }()

	client, err := net.DialTCP("tcp", nil, server.Addr().(*net.TCPAddr))
	require.NoError(t, err)
	defer client.Close()

	fc := NewFrameCodec(wire.SimNet)
	ping := &message.PingMessage{Nonce: 77}
	framed, err := fc.Encode(ping)
	require.NoError(t, err)
	_, err = client.Write(framed)
	require.NoError(t, err)

	require.NoError(t, client.SetReadDeadline(time.Now().Add(5*time.Second)))
	reply, err := fc.Decode(client)
	require.NoError(t, err)

	pong, ok := reply.(*message.PongMessage)
	require.True(t, ok, "reply is %T", reply)
	require.True(t, pong.Matches(ping))
}

// TestServer_ShutdownTimeoutKeepsPeers cancels the serve context and checks
// that handler contexts stay live for the shutdown timeout.
func TestServer_ShutdownTimeoutKeepsPeers(t *testing.T) {
	const grace = 300 * time.Millisecond
	server := newTestServer(t, ServerShutdownTimeoutOption(grace))

	started := make(chan struct{}, 1)
	peerDone := make(chan time.Time, 1)
	handler := HandlerFunc(func(ctx context.Context, conn *net.TCPConn) {
		defer conn.Close()
		started <- struct{}{}
		<-ctx.Done()
		peerDone <- time.Now()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- server.Serve(ctx, handler)
	}()

	client, err := net.DialTCP("tcp", nil, server.Addr().(*net.TCPAddr))
	require.NoError(t, err)
	defer client.Close()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for handler")
	}

	canceledAt := time.Now()
	cancel()

	select {
	case <-peerDone:
		t.Fatal("handler context canceled before the shutdown timeout")
	case <-time.After(grace / 3):
	}

	select {
	case at := <-peerDone:
		require.GreaterOrEqual(t, at.Sub(canceledAt), grace)
	case <-time.After(5 * time.Second):
		t.Fatal("handler context never canceled")
	}

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for Serve to return")
	}
	server.Wait()
}

func TestServer_CloseCancelsPeers(t *testing.T) {
	server := newTestServer(t, ServerShutdownTimeoutOption(time.Hour))

	started := make(chan struct{}, 1)
	handler := HandlerFunc(func(ctx context.Context, conn *net.TCPConn) {
		defer conn.Close()
		started <- struct{}{}
		<-ctx.Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = server.Serve(ctx, handler) }()

	client, err := net.DialTCP("tcp", nil, server.Addr().(*net.TCPAddr))
	require.NoError(t, err)
	defer client.Close()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for handler")
	}

	cancel()
	require.NoError(t, server.Close())

	waited := make(chan struct{})
	go func() {
		server.Wait()
		close(waited)
	}()

	select {
	case <-waited:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not end the shutdown timeout")
	}
}
