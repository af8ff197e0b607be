package message

import (
	"io"

	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"

	"github.com/Zereker/peerwire/codec"
)

// Transport is the connection a version message is built for. It supplies
// the addresses of both ends and the local node's advertised identity.
type Transport interface {
	// ReceiverAddress returns the address of the remote peer. It fails if
	// the transport is not connected.
	ReceiverAddress() (NetAddress, error)

	// SenderAddress returns the local address of the connection.
	SenderAddress() (NetAddress, error)

	// Services returns the services advertised by the local node.
	Services() wire.ServiceFlag

	// UserAgent returns the local node's software identifier.
	UserAgent() string
}

// VersionMessage is the first message sent on a new connection. It describes
// the sender's protocol version, services and chain height.
type VersionMessage struct {
	// Version is the protocol version of the sender.
	Version uint32

	// Services is the bitmask of services supported by the sender.
	Services wire.ServiceFlag

	// Timestamp is the time the message was sent, in seconds since the
	// epoch.
	Timestamp int64

	// Receiver is the address of the peer receiving the message.
	Receiver NetAddress

	// Sender is the address of the peer sending the message.
	Sender NetAddress

	// Nonce is a random value used to detect connections to self.
	Nonce uint64

	// UserAgent identifies the sender's software.
	UserAgent string

	// StartHeight is the height of the sender's best chain.
	StartHeight int32

	// Relay tells the receiver whether to relay transactions to the
	// sender. It is only on the wire when Version >= RelayVersion and
	// decodes as true when absent.
	Relay bool
}

// A compile time check to ensure VersionMessage implements Message.
var _ Message = (*VersionMessage)(nil)

// NewVersionMessage builds the version message for transport. It fails if
// the transport cannot report either address, which happens before the
// connection is established.
func NewVersionMessage(timestamp int64, transport Transport, nonce uint64,
	startHeight int32) (*VersionMessage, error) {

	receiver, err := transport.ReceiverAddress()
	if err != nil {
		return nil, errors.Wrap(err, "receiver address")
	}

	sender, err := transport.SenderAddress()
	if err != nil {
		return nil, errors.Wrap(err, "sender address")
	}

	// TODO: take relay from the local node's bloom filter support once
	// SFNodeBloom is advertised.
	return &VersionMessage{
		Version:     ProtocolVersion,
		Services:    transport.Services(),
		Timestamp:   timestamp,
		Receiver:    receiver,
		Sender:      sender,
		Nonce:       nonce,
		UserAgent:   transport.UserAgent(),
		StartHeight: startHeight,
		Relay:       false,
	}, nil
}

// Command returns the command name of the version message.
func (VersionMessage) Command() string {
	return CmdVersion
}

// HasRelay reports whether the relay flag is part of the encoding.
func (m *VersionMessage) HasRelay() bool {
	return m.Version >= RelayVersion
}

// headFields lists the fields that are always on the wire.
func (m *VersionMessage) headFields() codec.Fields {
	return codec.Fields{
		codec.Field("version", codec.Uint32(&m.Version)),
		codec.Field("services", codec.Uint64(&m.Services)),
		codec.Field("timestamp", codec.Int64(&m.Timestamp)),
		codec.Field("receiver", &m.Receiver),
		codec.Field("sender", &m.Sender),
		codec.Field("nonce", codec.Uint64(&m.Nonce)),
		codec.Field("user_agent", codec.VarString(&m.UserAgent)),
		codec.Field("start_height", codec.Int32(&m.StartHeight)),
	}
}

// fields lists the fields present in the encoding of m.
func (m *VersionMessage) fields() codec.Fields {
	fs := m.headFields()
	if m.HasRelay() {
		fs = append(fs, m.relayField()...)
	}
	return fs
}

func (m *VersionMessage) relayField() codec.Fields {
	return codec.Fields{codec.Field("relay", codec.Bool(&m.Relay))}
}

// Serialize returns the payload of the version message.
func (m *VersionMessage) Serialize() []byte {
	return m.fields().Serialize()
}

// Reader streams the payload of the version message.
func (m *VersionMessage) Reader() io.Reader {
	return m.fields().Reader()
}

// Deserialize decodes a version message from r. The relay flag is only read
// when the decoded version carries it.
func (m *VersionMessage) Deserialize(r io.Reader) error {
	if err := m.headFields().Deserialize(r); err != nil {
		return err
	}

	m.Relay = true
	if !m.HasRelay() {
		return nil
	}
	return m.relayField().Deserialize(r)
}
