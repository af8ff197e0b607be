// Package message defines the Bitcoin peer handshake and keepalive messages
// (version, verack, ping, pong) on top of the codec package.
package message

import (
	"fmt"

	"github.com/btcsuite/btcd/wire"

	"github.com/Zereker/peerwire/codec"
)

// Command names identifying each message type to the framing layer.
const (
	CmdVersion = "version"
	CmdVerAck  = "verack"
	CmdPing    = "ping"
	CmdPong    = "pong"
)

const (
	// ProtocolVersion is the protocol version advertised by locally built
	// version messages.
	ProtocolVersion uint32 = 70001

	// RelayVersion is the first protocol version whose version message
	// carries the relay flag (BIP 37).
	RelayVersion = wire.BIP0037Version
)

// Message is a Serializable value that the framing layer can route by its
// command name. Every instance of a given type returns the same name.
type Message interface {
	codec.Serializable

	// Command returns the command name of the message type.
	Command() string
}

// UnknownCommandError is returned when no message type is registered for a
// command name.
type UnknownCommandError struct {
	Command string
}

// Error returns a human readable string describing the error.
func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown message command %q", e.Command)
}

// MakeEmptyMessage returns a new zero value of the message type identified
// by command, ready to be decoded into.
func MakeEmptyMessage(command string) (Message, error) {
	var msg Message

	switch command {
	case CmdVersion:
		msg = &VersionMessage{}
	case CmdVerAck:
		msg = &VersionAckMessage{}
	case CmdPing:
		msg = &PingMessage{}
	case CmdPong:
		msg = &PongMessage{}
	default:
		return nil, &UnknownCommandError{Command: command}
	}

	return msg, nil
}
