// Command wiredump decodes a hex encoded Bitcoin message payload, or a whole
// framed message, and dumps the decoded value.
package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/btcsuite/btcd/wire"
	"github.com/davecgh/go-spew/spew"
	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"

	"github.com/Zereker/peerwire"
	"github.com/Zereker/peerwire/codec"
	"github.com/Zereker/peerwire/message"
)

type config struct {
	Command string `short:"c" long:"command" description:"command name of the payload" default:"version"`
	Framed  bool   `short:"f" long:"framed" description:"input is a full message including the 24 byte header"`
	Network string `short:"n" long:"network" description:"network of a framed message" default:"mainnet" choice:"mainnet" choice:"testnet3" choice:"regtest" choice:"simnet"`
	Verify  bool   `long:"verify" description:"re-encode the decoded value and compare it to the input"`

	Args struct {
		Hex string `positional-arg-name:"hex" description:"hex encoded input"`
	} `positional-args:"yes" required:"yes"`
}

var networks = map[string]wire.BitcoinNet{
	"mainnet":  wire.MainNet,
	"testnet3": wire.TestNet3,
	"regtest":  wire.TestNet,
	"simnet":   wire.SimNet,
}

func decode(cfg *config, data []byte) (message.Message, error) {
	if cfg.Framed {
		return peerwire.NewFrameCodec(networks[cfg.Network]).Decode(
			bytes.NewReader(data),
		)
	}

	msg, err := message.MakeEmptyMessage(cfg.Command)
	if err != nil {
		return nil, err
	}
	if err := msg.Deserialize(bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return msg, nil
}

func verify(cfg *config, msg message.Message, data []byte) error {
	streamed, err := codec.Drain(msg)
	if err != nil {
		return err
	}
	encoded := msg.Serialize()
	if !bytes.Equal(encoded, streamed) {
		return errors.New("streamed encoding differs from serialized encoding")
	}

	if cfg.Framed {
		encoded, err = peerwire.NewFrameCodec(networks[cfg.Network]).Encode(msg)
		if err != nil {
			return err
		}
	}

	if !bytes.HasPrefix(data, encoded) {
		return errors.Errorf("re-encoded %x differs from input", encoded)
	}
	if len(data) > len(encoded) {
		fmt.Printf("%d trailing bytes not part of the %s message\n",
			len(data)-len(encoded), msg.Command())
	}
	return nil
}

func run(cfg *config) error {
	data, err := hex.DecodeString(strings.TrimSpace(cfg.Args.Hex))
	if err != nil {
		return errors.Wrap(err, "invalid hex input")
	}

	msg, err := decode(cfg, data)
	if err != nil {
		return err
	}

	fmt.Printf("command: %s\n", msg.Command())
	spew.Dump(msg)

	if !cfg.Verify {
		return nil
	}
	if err := verify(cfg, msg, data); err != nil {
		return err
	}
	fmt.Println("round trip ok")
	return nil
}

func main() {
	var cfg config
	if _, err := flags.Parse(&cfg); err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if err := run(&cfg); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
