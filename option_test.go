package peerwire

import (
	"testing"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/Zereker/peerwire/message"
)

func TestNetworkOption(t *testing.T) {
	var opts options
	NetworkOption(wire.TestNet3)(&opts)

	fc, ok := opts.codec.(*FrameCodec)
	require.True(t, ok, "codec is %T", opts.codec)
	require.Equal(t, wire.TestNet3, fc.net)
	require.EqualValues(t, wire.MaxMessagePayload, fc.maxPayload)
}

func TestIdentityOptions(t *testing.T) {
	var opts options
	ServicesOption(wire.SFNodeNetwork | wire.SFNodeBloom)(&opts)
	UserAgentOption("/custom:1.0/")(&opts)

	require.Equal(t, wire.SFNodeNetwork|wire.SFNodeBloom, opts.services)
	require.Equal(t, "/custom:1.0/", opts.userAgent)
}

func TestOnMessageOption(t *testing.T) {
	called := false
	var opts options
	OnMessageOption(func(msg message.Message) error {
		called = true
		return nil
	})(&opts)

	require.NotNil(t, opts.onMessage)
	require.NoError(t, opts.onMessage(&message.PingMessage{}))
	require.True(t, called)
}

func TestOptions_MultipleOptions(t *testing.T) {
	codec := &mockCodec{}
	logger := &mockLogger{}
	onError := func(err error) ErrorAction { return Continue }

	var opts options
	for _, opt := range []Option{
		CustomCodecOption(codec),
		OnMessageOption(noopOnMessage),
		OnErrorOption(onError),
		HeartbeatOption(45 * time.Second),
		BufferSizeOption(50),
		MessageMaxSize(8192),
		LoggerOption(logger),
	} {
		opt(&opts)
	}

	require.Equal(t, codec, opts.codec)
	require.NotNil(t, opts.onMessage)
	require.Equal(t, Continue, opts.onError(nil))
	require.Equal(t, 45*time.Second, opts.heartbeat)
	require.Equal(t, 50, opts.bufferSize)
	require.Equal(t, 8192, opts.maxReadLength)
	require.Equal(t, logger, opts.logger)
}

func TestErrorAction(t *testing.T) {
	require.EqualValues(t, 0, Disconnect)
	require.EqualValues(t, 1, Continue)
}
