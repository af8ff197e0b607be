// Command responder accepts Bitcoin peers, completes the version handshake
// and answers pings.
package main

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/btcsuite/btcd/wire"

	"github.com/Zereker/peerwire"
	"github.com/Zereker/peerwire/message"
)

// peer tracks the handshake state of one inbound connection.
type peer struct {
	conn     *peerwire.Conn
	nonce    uint64
	height   int32
	verAcked bool
}

func (p *peer) onMessage(ctx context.Context) func(message.Message) error {
	return func(msg message.Message) error {
		switch m := msg.(type) {
		case *message.VersionMessage:
			if m.Nonce == p.nonce {
				return errors.New("connected to self")
			}
			slog.Info("peer version", "addr", p.conn.Addr(),
				"version", m.Version, "user_agent", m.UserAgent,
				"start_height", m.StartHeight, "relay", m.Relay)

			version, err := message.NewVersionMessage(time.Now().Unix(),
				p.conn, p.nonce, p.height)
			if err != nil {
				return err
			}
			if err := p.conn.WriteBlocking(ctx, version); err != nil {
				return err
			}
			return p.conn.WriteBlocking(ctx, message.NewVersionAckMessage())

		case *message.VersionAckMessage:
			p.verAcked = true
			slog.Info("handshake complete", "addr", p.conn.Addr())

		case *message.PingMessage:
			if !p.verAcked {
				return errors.New("ping before verack")
			}
			return p.conn.WriteBlocking(ctx, message.NewPongMessage(m))

		case *message.PongMessage:
			slog.Debug("pong", "addr", p.conn.Addr(), "nonce", m.Nonce)
		}
		return nil
	}
}

func handle(nonce uint64, height int32) peerwire.HandlerFunc {
	return func(ctx context.Context, conn *net.TCPConn) {
		p := &peer{nonce: nonce, height: height}

		newConn, err := peerwire.NewConn(conn,
			peerwire.NetworkOption(wire.SimNet),
			peerwire.ServicesOption(wire.SFNodeNetwork),
			peerwire.OnMessageOption(p.onMessage(ctx)),
			peerwire.OnErrorOption(func(err error) peerwire.ErrorAction {
				slog.Error("connection error", "error", err)
				return peerwire.Disconnect
			}),
		)
		if err != nil {
			slog.Error("failed to create conn", "error", err)
			_ = conn.Close()
			return
		}
		p.conn = newConn

		_ = newConn.Run(ctx)
	}
}

func main() {
	addr, err := net.ResolveTCPAddr("tcp", "127.0.0.1:18555")
	if err != nil {
		panic(err)
	}

	server, err := peerwire.New(addr)
	if err != nil {
		slog.Error("failed to create server", "error", err)
		return
	}

	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		slog.Error("failed to draw nonce", "error", err)
		return
	}
	nonce := binary.LittleEndian.Uint64(b[:])

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		slog.Info("shutting down server...")
		cancel()
	}()

	slog.Info("server start", "addr", addr.String())
	if err := server.Serve(ctx, handle(nonce, 0)); err != nil &&
		!errors.Is(err, context.Canceled) {

		slog.Error("server error", "error", err)
	}
	server.Wait()
}
