package message

import (
	"fmt"
	"io"
	"net"

	"github.com/btcsuite/btcd/wire"

	"github.com/Zereker/peerwire/codec"
)

// NetAddress is a peer address as carried inside the version message: the
// services the peer advertises, its IPv6 (or IPv4-mapped) address and its
// port. The timestamp prefix used by addr messages is not part of this form.
type NetAddress struct {
	Services wire.ServiceFlag
	IP       [16]byte
	Port     uint16
}

// NewNetAddress builds a NetAddress from a TCP address.
func NewNetAddress(addr *net.TCPAddr, services wire.ServiceFlag) NetAddress {
	na := NetAddress{
		Services: services,
		Port:     uint16(addr.Port),
	}
	if ip := addr.IP.To16(); ip != nil {
		copy(na.IP[:], ip)
	}
	return na
}

// TCPAddr returns the address as a *net.TCPAddr.
func (a *NetAddress) TCPAddr() *net.TCPAddr {
	ip := make(net.IP, net.IPv6len)
	copy(ip, a.IP[:])
	return &net.TCPAddr{IP: ip, Port: int(a.Port)}
}

// String returns the host:port form of the address followed by its services.
func (a NetAddress) String() string {
	return fmt.Sprintf("%v (%v)", a.TCPAddr(), a.Services)
}

func (a *NetAddress) fields() codec.Fields {
	return codec.Fields{
		codec.Field("services", codec.Uint64(&a.Services)),
		codec.Field("ip", codec.FixedBytes(a.IP[:])),
		codec.Field("port", codec.Uint16BE(&a.Port)),
	}
}

// Serialize returns the 26 byte wire form of the address.
func (a *NetAddress) Serialize() []byte {
	return a.fields().Serialize()
}

// Reader streams the wire form of the address.
func (a *NetAddress) Reader() io.Reader {
	return a.fields().Reader()
}

// Deserialize reads an address from r.
func (a *NetAddress) Deserialize(r io.Reader) error {
	return a.fields().Deserialize(r)
}
