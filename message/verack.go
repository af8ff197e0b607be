package message

import (
	"io"

	"github.com/Zereker/peerwire/codec"
)

// VersionAckMessage acknowledges a received version message. It has no
// payload.
type VersionAckMessage struct{}

// A compile time check to ensure VersionAckMessage implements Message.
var _ Message = (*VersionAckMessage)(nil)

// NewVersionAckMessage returns a new verack message.
func NewVersionAckMessage() *VersionAckMessage {
	return &VersionAckMessage{}
}

// Command returns the command name of the verack message.
func (VersionAckMessage) Command() string {
	return CmdVerAck
}

// Serialize returns the empty payload.
func (*VersionAckMessage) Serialize() []byte {
	return codec.Empty.Serialize()
}

// Reader returns a reader with no bytes.
func (*VersionAckMessage) Reader() io.Reader {
	return codec.Empty.Reader()
}

// Deserialize consumes nothing from r. Any bytes left over are the framing
// layer's concern.
func (*VersionAckMessage) Deserialize(r io.Reader) error {
	return codec.Empty.Deserialize(r)
}
