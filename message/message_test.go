package message

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestMakeEmptyMessage(t *testing.T) {
	tests := []struct {
		command string
		want    Message
	}{
		{CmdVersion, &VersionMessage{}},
		{CmdVerAck, &VersionAckMessage{}},
		{CmdPing, &PingMessage{}},
		{CmdPong, &PongMessage{}},
	}

	for _, test := range tests {
		t.Run(test.command, func(t *testing.T) {
			msg, err := MakeEmptyMessage(test.command)
			require.NoError(t, err)
			require.IsType(t, test.want, msg)
			require.Equal(t, test.command, msg.Command())
		})
	}
}

func TestMakeEmptyMessageUnknown(t *testing.T) {
	_, err := MakeEmptyMessage("block")

	var unknown *UnknownCommandError
	require.True(t, errors.As(err, &unknown))
	require.Equal(t, "block", unknown.Command)
}

func TestCommandIsTypeLevel(t *testing.T) {
	// The zero value reports the same name as a populated one.
	require.Equal(t, CmdVersion, VersionMessage{}.Command())
	require.Equal(t, CmdVersion, (&VersionMessage{Version: 70002}).Command())
	require.Equal(t, CmdVerAck, VersionAckMessage{}.Command())
	require.Equal(t, CmdPing, PingMessage{Nonce: 1}.Command())
	require.Equal(t, CmdPong, PongMessage{}.Command())
}
