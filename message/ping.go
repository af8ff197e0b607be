package message

import (
	"crypto/rand"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/Zereker/peerwire/codec"
)

// PingMessage checks that a connection is still alive. The peer answers with
// a PongMessage carrying the same nonce.
type PingMessage struct {
	// Nonce is echoed back in the matching pong.
	Nonce uint64
}

// A compile time check to ensure PingMessage implements Message.
var _ Message = (*PingMessage)(nil)

// NewPingMessage returns a ping with a random nonce.
func NewPingMessage() (*PingMessage, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return nil, errors.Wrap(err, "ping nonce")
	}
	return &PingMessage{Nonce: binary.LittleEndian.Uint64(b[:])}, nil
}

// Command returns the command name of the ping message.
func (PingMessage) Command() string {
	return CmdPing
}

func (p *PingMessage) fields() codec.Fields {
	return codec.Fields{
		codec.Field("nonce", codec.Uint64(&p.Nonce)),
	}
}

// Serialize returns the payload of the ping message.
func (p *PingMessage) Serialize() []byte {
	return p.fields().Serialize()
}

// Reader streams the payload of the ping message.
func (p *PingMessage) Reader() io.Reader {
	return p.fields().Reader()
}

// Deserialize decodes a ping message from r.
func (p *PingMessage) Deserialize(r io.Reader) error {
	return p.fields().Deserialize(r)
}

// PongMessage answers a PingMessage.
type PongMessage struct {
	// Nonce is the nonce of the ping being answered.
	Nonce uint64
}

// A compile time check to ensure PongMessage implements Message.
var _ Message = (*PongMessage)(nil)

// NewPongMessage returns the pong answering ping.
func NewPongMessage(ping *PingMessage) *PongMessage {
	return &PongMessage{Nonce: ping.Nonce}
}

// Command returns the command name of the pong message.
func (PongMessage) Command() string {
	return CmdPong
}

// Matches reports whether p answers ping.
func (p *PongMessage) Matches(ping *PingMessage) bool {
	return p.Nonce == ping.Nonce
}

func (p *PongMessage) fields() codec.Fields {
	return codec.Fields{
		codec.Field("nonce", codec.Uint64(&p.Nonce)),
	}
}

// Serialize returns the payload of the pong message.
func (p *PongMessage) Serialize() []byte {
	return p.fields().Serialize()
}

// Reader streams the payload of the pong message.
func (p *PongMessage) Reader() io.Reader {
	return p.fields().Reader()
}

// Deserialize decodes a pong message from r.
func (p *PongMessage) Deserialize(r io.Reader) error {
	return p.fields().Deserialize(r)
}
