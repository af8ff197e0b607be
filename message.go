package peerwire

import (
	"bytes"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"

	"github.com/Zereker/peerwire/codec"
	"github.com/Zereker/peerwire/message"
)

// Errors returned by FrameCodec.
var (
	// ErrBadMagic is returned when a frame belongs to another network.
	ErrBadMagic = errors.New("network magic mismatch")
	// ErrBadChecksum is returned when the payload does not match the
	// checksum in the frame header.
	ErrBadChecksum = errors.New("payload checksum mismatch")
	// ErrPayloadTooLarge is returned when a frame announces a payload over
	// the limit.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrInvalidCommand is returned when a command name does not fit the
	// header or is not NUL padded.
	ErrInvalidCommand = errors.New("invalid command name")
)

// Codec is the interface for message encoding and decoding.
//
// The Decode method reads from an io.Reader, which allows the codec to handle
// TCP stream reassembly by reading exactly the number of bytes needed for
// a complete message.
type Codec interface {
	// Decode reads and decodes a complete message from the reader.
	// The implementation should read exactly the bytes needed for one message.
	Decode(r io.Reader) (message.Message, error)
	// Encode encodes a Message into raw bytes for transmission.
	Encode(message.Message) ([]byte, error)
}

// command is the NUL padded command name of a frame header.
type command [wire.CommandSize]byte

func newCommand(name string) (command, error) {
	var c command
	if len(name) > wire.CommandSize {
		return c, errors.Wrapf(ErrInvalidCommand, "%q is longer than %d bytes",
			name, wire.CommandSize)
	}
	copy(c[:], name)
	return c, nil
}

// name returns the command name without its padding. It fails if a non-NUL
// byte follows the padding.
func (c *command) name() (string, error) {
	n := bytes.IndexByte(c[:], 0)
	if n < 0 {
		return string(c[:]), nil
	}
	if len(bytes.Trim(c[n:], "\x00")) != 0 {
		return "", errors.Wrapf(ErrInvalidCommand, "%q", c[:])
	}
	return string(c[:n]), nil
}

func (c *command) wireCodec() codec.Serializable {
	return codec.Newtype(codec.FixedBytes(c[:]))
}

// header is the 24 byte envelope preceding every payload.
type header struct {
	magic    wire.BitcoinNet
	command  command
	length   uint32
	checksum [4]byte
}

func (h *header) fields() codec.Fields {
	return codec.Fields{
		codec.Field("magic", codec.Uint32(&h.magic)),
		codec.Field("command", h.command.wireCodec()),
		codec.Field("length", codec.Uint32(&h.length)),
		codec.Field("checksum", codec.FixedBytes(h.checksum[:])),
	}
}

// FrameCodec frames messages with the Bitcoin message header: network magic,
// command name, payload length and a double SHA-256 checksum.
type FrameCodec struct {
	net        wire.BitcoinNet
	maxPayload uint32
}

// A compile time check to ensure FrameCodec implements Codec.
var _ Codec = (*FrameCodec)(nil)

// NewFrameCodec returns a codec for the given network.
func NewFrameCodec(net wire.BitcoinNet) *FrameCodec {
	return &FrameCodec{net: net, maxPayload: wire.MaxMessagePayload}
}

func checksum(payload []byte) [4]byte {
	var sum [4]byte
	copy(sum[:], chainhash.DoubleHashB(payload))
	return sum
}

// Encode returns the framed message.
func (f *FrameCodec) Encode(msg message.Message) ([]byte, error) {
	cmd, err := newCommand(msg.Command())
	if err != nil {
		return nil, err
	}

	payload := msg.Serialize()
	if uint64(len(payload)) > uint64(f.maxPayload) {
		return nil, errors.Wrapf(ErrPayloadTooLarge, "%s payload is %d bytes",
			msg.Command(), len(payload))
	}

	h := header{
		magic:    f.net,
		command:  cmd,
		length:   uint32(len(payload)),
		checksum: checksum(payload),
	}

	var buf bytes.Buffer
	buf.Grow(wire.MessageHeaderSize + len(payload))
	buf.Write(h.fields().Serialize())
	buf.Write(payload)
	return buf.Bytes(), nil
}

// Decode reads one framed message from r. The whole payload is read before
// it is decoded, so a malformed payload never leaves r mid-frame.
func (f *FrameCodec) Decode(r io.Reader) (message.Message, error) {
	var h header
	if err := h.fields().Deserialize(r); err != nil {
		return nil, errors.Wrap(err, "message header")
	}

	if h.magic != f.net {
		return nil, errors.Wrapf(ErrBadMagic, "got %v, want %v", h.magic, f.net)
	}
	if h.length > f.maxPayload {
		return nil, errors.Wrapf(ErrPayloadTooLarge, "%d bytes", h.length)
	}

	name, err := h.command.name()
	if err != nil {
		return nil, err
	}

	payload := make([]byte, h.length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, errors.Wrapf(err, "%s payload", name)
	}
	if checksum(payload) != h.checksum {
		return nil, errors.Wrapf(ErrBadChecksum, "%s payload", name)
	}

	msg, err := message.MakeEmptyMessage(name)
	if err != nil {
		return nil, err
	}
	if err := msg.Deserialize(bytes.NewReader(payload)); err != nil {
		return nil, errors.Wrapf(err, "decode %s", name)
	}

	return msg, nil
}
