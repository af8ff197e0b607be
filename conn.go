// Package peerwire carries Bitcoin peer-to-peer messages over TCP. It frames
// the messages of the message package with the Bitcoin message header and
// runs asynchronous read and write loops per peer connection.
package peerwire

import (
	"bufio"
	"context"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/Zereker/peerwire/message"
)

// Errors returned by connection operations.
var (
	// ErrInvalidCodec is returned when no codec is provided.
	ErrInvalidCodec = errors.New("invalid codec callback")
	// ErrInvalidOnMessage is returned when no message handler is provided.
	ErrInvalidOnMessage = errors.New("invalid on message callback")
	// ErrMessageTooLarge is returned when a message exceeds the maximum allowed size.
	ErrMessageTooLarge = errors.New("message too large")
	// ErrNotConnected is returned when an address of the connection is not
	// a TCP address.
	ErrNotConnected = errors.New("connection has no tcp address")
)

// ErrConnectionClosed is returned when operating on a closed connection.
var ErrConnectionClosed = errors.New("connection closed")

// limitedReader wraps a reader and returns ErrMessageTooLarge when the limit is exceeded.
type limitedReader struct {
	r         io.Reader
	remaining int64
}

func newLimitedReader(r io.Reader, limit int64) *limitedReader {
	return &limitedReader{r: r, remaining: limit}
}

func (l *limitedReader) Read(p []byte) (n int, err error) {
	if l.remaining <= 0 {
		return 0, ErrMessageTooLarge
	}
	if int64(len(p)) > l.remaining {
		p = p[:l.remaining]
	}
	n, err = l.r.Read(p)
	l.remaining -= int64(n)
	return
}

// reset resets the limit counter for reuse with a new message.
func (l *limitedReader) reset(limit int64) {
	l.remaining = limit
}

// Conn is a connection to a Bitcoin peer. It decodes incoming frames into
// messages, queues outgoing messages, and reports the addresses and local
// identity a version message is built from.
type Conn struct {
	rawConn       *net.TCPConn
	reader        *bufio.Reader
	limitedReader *limitedReader
	logger        Logger

	opts options

	sendMsg chan []byte
	closed  atomic.Bool

	// done is canceled by Close and stops a running Run.
	done   context.Context
	cancel context.CancelFunc
}

// A compile time check to ensure Conn can build version messages.
var _ message.Transport = (*Conn)(nil)

// Default configuration values.
const (
	// defaultBufferSize is the default size of the message channel buffer.
	defaultBufferSize = 1
	// defaultMaxPackageLength is the default maximum size of a single
	// framed message, header included.
	defaultMaxPackageLength = wire.MessageHeaderSize + wire.MaxMessagePayload
	// defaultHeartbeat is the default heartbeat interval.
	defaultHeartbeat = 30 * time.Second
	// readBufferSize is the size of the buffered reader over the socket.
	readBufferSize = 64 * 1024
)

// NewConn creates a new connection wrapper around the given TCP connection.
// It applies the provided options and validates them before returning.
// Returns an error if required options (codec, onMessage) are missing.
func NewConn(conn *net.TCPConn, opt ...Option) (*Conn, error) {
	var opts options
	for _, o := range opt {
		o(&opts)
	}

	err := checkOptions(&opts)
	if err != nil {
		return nil, err
	}

	return newConnWithOptions(conn, opts), nil
}

// checkOptions validates and sets default values for connection options.
func checkOptions(opts *options) error {
	if opts.bufferSize <= 0 {
		opts.bufferSize = defaultBufferSize
	}

	if opts.maxReadLength <= 0 {
		opts.maxReadLength = defaultMaxPackageLength
	}

	if opts.onMessage == nil {
		return ErrInvalidOnMessage
	}

	if opts.heartbeat <= 0 {
		opts.heartbeat = defaultHeartbeat
	}

	if opts.codec == nil {
		return ErrInvalidCodec
	}

	if opts.onError == nil {
		opts.onError = func(err error) ErrorAction { return Disconnect }
	}

	if opts.logger == nil {
		opts.logger = defaultLogger()
	}

	if opts.userAgent == "" {
		opts.userAgent = DefaultUserAgent
	}

	return nil
}

// newConnWithOptions creates a new Conn with the given options.
func newConnWithOptions(c *net.TCPConn, opts options) *Conn {
	reader := bufio.NewReaderSize(c, readBufferSize)
	cc := &Conn{
		rawConn:       c,
		reader:        reader,
		limitedReader: newLimitedReader(reader, int64(opts.maxReadLength)),
		logger:        opts.logger,
		opts:          opts,
		sendMsg:       make(chan []byte, opts.bufferSize),
	}
	cc.done, cc.cancel = context.WithCancel(context.Background())

	return cc
}

// Run starts the connection's read and write loops.
// It creates two goroutines for concurrent reading and writing,
// and blocks until an error occurs or the context is canceled.
// The connection is automatically closed when Run returns.
func (c *Conn) Run(ctx context.Context) error {
	c.logger.Info("peer connected", "addr", c.Addr())
	c.logger.Debug("connection options", "addr", c.Addr(),
		"buffer_size", c.opts.bufferSize,
		"max_read_length", c.opts.maxReadLength,
		"heartbeat", c.opts.heartbeat,
		"services", c.opts.services,
		"user_agent", c.opts.userAgent)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stopOnClose := context.AfterFunc(c.done, cancel)
	defer stopOnClose()

	group, child := errgroup.WithContext(ctx)

	group.Go(func() error {
		return c.readLoop(child)
	})

	group.Go(func() error {
		return c.writeLoop(child)
	})

	// Unblock a pending read once either loop stops.
	stop := context.AfterFunc(child, func() {
		_ = c.rawConn.SetReadDeadline(time.Now())
	})
	defer stop()

	err := group.Wait()
	if ctx.Err() != nil {
		err = ctx.Err()
	}
	c.closeConn()

	if err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Info("peer disconnected with error", "addr", c.Addr(), "error", err)
	} else {
		c.logger.Info("peer disconnected", "addr", c.Addr())
	}

	return err
}

// Close gracefully closes the connection.
// It cancels the context and closes the underlying TCP connection.
// Safe to call multiple times.
func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil // already closed
	}
	c.cancel()
	return c.rawConn.Close()
}

// IsClosed returns true if the connection has been closed.
func (c *Conn) IsClosed() bool {
	return c.closed.Load()
}

// ErrBufferFull is returned when the send buffer is full and cannot accept more messages.
// This error indicates backpressure: the peer is not consuming messages fast enough.
var ErrBufferFull = errors.New("send buffer full")

// encode frames msg with the configured codec.
func (c *Conn) encode(msg message.Message) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrConnectionClosed
	}

	data, err := c.opts.codec.Encode(msg)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("send message", "addr", c.Addr(), "command", msg.Command(),
		"size", len(data))
	return data, nil
}

// Write queues a message without blocking (fire-and-forget).
//
// Returns:
//   - nil: message was successfully queued (not yet sent)
//   - ErrBufferFull: send buffer is full, message was NOT queued
//   - ErrConnectionClosed: connection is closed
//   - encoding error: if codec.Encode fails
func (c *Conn) Write(msg message.Message) error {
	data, err := c.encode(msg)
	if err != nil {
		return err
	}

	select {
	case c.sendMsg <- data:
		return nil
	default:
		return ErrBufferFull
	}
}

// WriteBlocking queues a message, blocking until there is room in the send
// buffer or the context is canceled. Handshake replies use this, since a
// dropped verack stalls the peer.
func (c *Conn) WriteBlocking(ctx context.Context, msg message.Message) error {
	data, err := c.encode(msg)
	if err != nil {
		return err
	}

	select {
	case c.sendMsg <- data:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WriteTimeout queues a message, waiting at most timeout for room in the
// send buffer. ErrBufferFull is returned when the timeout expires.
func (c *Conn) WriteTimeout(msg message.Message, timeout time.Duration) error {
	data, err := c.encode(msg)
	if err != nil {
		return err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case c.sendMsg <- data:
		return nil
	case <-timer.C:
		return ErrBufferFull
	}
}

// Addr returns the remote address of the connection.
func (c *Conn) Addr() net.Addr {
	return c.rawConn.RemoteAddr()
}

// ReceiverAddress returns the remote end of the connection as a version
// message address. The remote peer's services are unknown before its own
// version message arrives, so none are set.
func (c *Conn) ReceiverAddress() (message.NetAddress, error) {
	addr, ok := c.rawConn.RemoteAddr().(*net.TCPAddr)
	if !ok {
		return message.NetAddress{}, errors.Wrap(ErrNotConnected, "remote address")
	}
	return message.NewNetAddress(addr, 0), nil
}

// SenderAddress returns the local end of the connection as a version
// message address, advertising the local services.
func (c *Conn) SenderAddress() (message.NetAddress, error) {
	addr, ok := c.rawConn.LocalAddr().(*net.TCPAddr)
	if !ok {
		return message.NetAddress{}, errors.Wrap(ErrNotConnected, "local address")
	}
	return message.NewNetAddress(addr, c.opts.services), nil
}

// Services returns the services advertised by the local node.
func (c *Conn) Services() wire.ServiceFlag {
	return c.opts.services
}

// UserAgent returns the user agent advertised by the local node.
func (c *Conn) UserAgent() string {
	return c.opts.userAgent
}

// readLoop continuously reads from the connection and processes messages.
// It decodes incoming frames using the configured codec and calls the message handler.
// Returns when the context is canceled or an unrecoverable error occurs.
func (c *Conn) readLoop(ctx context.Context) error {
	for {
		_ = c.rawConn.SetReadDeadline(time.Now().Add(c.opts.heartbeat * 2))

		// Checked after the deadline is extended, so a stop that already
		// expired the deadline is never missed.
		if err := ctx.Err(); err != nil {
			return err
		}

		// Reset the limit for each message
		c.limitedReader.reset(int64(c.opts.maxReadLength))

		msg, err := c.opts.codec.Decode(c.limitedReader)
		if err != nil {
			c.logger.Debug("read error", "addr", c.Addr(), "error", err)
			if c.opts.onError(err) == Disconnect {
				return err
			}
			continue
		}

		c.logger.Debug("receive message", "addr", c.Addr(), "command", msg.Command())
		if err = c.opts.onMessage(msg); err != nil {
			return err
		}
	}
}

// writeLoop continuously sends messages from the send channel to the connection.
// Returns when the context is canceled or an unrecoverable error occurs.
func (c *Conn) writeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data := <-c.sendMsg:
			if err := c.write(data); err != nil {
				return err
			}
		}
	}
}

// write sends data to the connection with a deadline.
// If an error occurs and onError returns Disconnect, the error is propagated.
// Otherwise, the error is suppressed and writing continues.
func (c *Conn) write(data []byte) error {
	_ = c.rawConn.SetWriteDeadline(time.Now().Add(c.opts.heartbeat * 2))

	_, err := c.rawConn.Write(data)

	if err != nil {
		c.logger.Debug("write error", "addr", c.Addr(), "error", err)
		if c.opts.onError(err) == Disconnect {
			return err
		}
	}

	return nil
}

// closeConn marks the connection as closed and closes the underlying TCP connection.
func (c *Conn) closeConn() {
	c.closed.Store(true)
	c.cancel()
	c.rawConn.Close()
}
