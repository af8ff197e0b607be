package codec

import (
	"bytes"
	"encoding/binary"
	"io"
	"strings"

	"github.com/btcsuite/btcd/wire"
)

// Integer is the set of fixed-width integer types, including named types
// defined over them.
type Integer interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64 | ~int8 | ~int16 | ~int32 | ~int64
}

// fixed encodes an integer in a fixed number of bytes.
type fixed[T Integer] struct {
	v     *T
	width int
	order binary.ByteOrder
}

// Uint8 returns a one byte codec for v.
func Uint8[T ~uint8](v *T) Serializable {
	return &fixed[T]{v: v, width: 1, order: binary.LittleEndian}
}

// Uint16 returns a little endian codec for v.
func Uint16[T ~uint16](v *T) Serializable {
	return &fixed[T]{v: v, width: 2, order: binary.LittleEndian}
}

// Uint16BE returns a big endian codec for v. Bitcoin uses network byte order
// for ports only.
func Uint16BE[T ~uint16](v *T) Serializable {
	return &fixed[T]{v: v, width: 2, order: binary.BigEndian}
}

// Uint32 returns a little endian codec for v.
func Uint32[T ~uint32](v *T) Serializable {
	return &fixed[T]{v: v, width: 4, order: binary.LittleEndian}
}

// Int32 returns a little endian two's complement codec for v.
func Int32[T ~int32](v *T) Serializable {
	return &fixed[T]{v: v, width: 4, order: binary.LittleEndian}
}

// Uint64 returns a little endian codec for v.
func Uint64[T ~uint64](v *T) Serializable {
	return &fixed[T]{v: v, width: 8, order: binary.LittleEndian}
}

// Int64 returns a little endian two's complement codec for v.
func Int64[T ~int64](v *T) Serializable {
	return &fixed[T]{v: v, width: 8, order: binary.LittleEndian}
}

func (f *fixed[T]) put(b []byte) {
	switch f.width {
	case 1:
		b[0] = uint8(*f.v)
	case 2:
		f.order.PutUint16(b, uint16(*f.v))
	case 4:
		f.order.PutUint32(b, uint32(*f.v))
	default:
		f.order.PutUint64(b, uint64(*f.v))
	}
}

func (f *fixed[T]) Serialize() []byte {
	b := make([]byte, f.width)
	f.put(b)
	return b
}

func (f *fixed[T]) Reader() io.Reader {
	return bytes.NewReader(f.Serialize())
}

func (f *fixed[T]) Deserialize(r io.Reader) error {
	var b [8]byte
	if err := readFull(r, b[:f.width]); err != nil {
		return err
	}

	switch f.width {
	case 1:
		*f.v = T(b[0])
	case 2:
		*f.v = T(f.order.Uint16(b[:2]))
	case 4:
		*f.v = T(f.order.Uint32(b[:4]))
	default:
		*f.v = T(f.order.Uint64(b[:8]))
	}
	return nil
}

type boolean struct {
	v *bool
}

// Bool returns a single byte codec for v. Any non-zero byte decodes as true.
func Bool(v *bool) Serializable {
	return boolean{v: v}
}

func (b boolean) Serialize() []byte {
	if *b.v {
		return []byte{1}
	}
	return []byte{0}
}

func (b boolean) Reader() io.Reader {
	return bytes.NewReader(b.Serialize())
}

func (b boolean) Deserialize(r io.Reader) error {
	var buf [1]byte
	if err := readFull(r, buf[:]); err != nil {
		return err
	}
	*b.v = buf[0] != 0
	return nil
}

type varInt[T ~uint64] struct {
	v *T
}

// VarInt returns a CompactSize codec for v. Non-canonical encodings are
// rejected on decode.
func VarInt[T ~uint64](v *T) Serializable {
	return varInt[T]{v: v}
}

func (c varInt[T]) Serialize() []byte {
	return compactSize(uint64(*c.v))
}

func (c varInt[T]) Reader() io.Reader {
	return bytes.NewReader(c.Serialize())
}

func (c varInt[T]) Deserialize(r io.Reader) error {
	n, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return truncated(err)
	}
	*c.v = T(n)
	return nil
}

type varString struct {
	v *string
}

// VarString returns a codec for a CompactSize length prefixed string.
func VarString(v *string) Serializable {
	return varString{v: v}
}

func (s varString) Serialize() []byte {
	var buf bytes.Buffer
	buf.Grow(wire.VarIntSerializeSize(uint64(len(*s.v))) + len(*s.v))
	_ = wire.WriteVarString(&buf, 0, *s.v)
	return buf.Bytes()
}

func (s varString) Reader() io.Reader {
	return io.MultiReader(
		bytes.NewReader(compactSize(uint64(len(*s.v)))),
		strings.NewReader(*s.v),
	)
}

func (s varString) Deserialize(r io.Reader) error {
	str, err := wire.ReadVarString(r, 0)
	if err != nil {
		return truncated(err)
	}
	*s.v = str
	return nil
}

type varBytes struct {
	v *[]byte
}

// VarBytes returns a codec for a CompactSize length prefixed byte string.
func VarBytes(v *[]byte) Serializable {
	return varBytes{v: v}
}

func (b varBytes) Serialize() []byte {
	var buf bytes.Buffer
	buf.Grow(wire.VarIntSerializeSize(uint64(len(*b.v))) + len(*b.v))
	_ = wire.WriteVarBytes(&buf, 0, *b.v)
	return buf.Bytes()
}

func (b varBytes) Reader() io.Reader {
	return io.MultiReader(
		bytes.NewReader(compactSize(uint64(len(*b.v)))),
		bytes.NewReader(*b.v),
	)
}

func (b varBytes) Deserialize(r io.Reader) error {
	data, err := wire.ReadVarBytes(r, 0, wire.MaxMessagePayload, "bytes")
	if err != nil {
		return truncated(err)
	}
	*b.v = data
	return nil
}

type fixedBytes []byte

// FixedBytes returns a codec for a fixed-length run of bytes. The slice
// aliases the caller's storage, typically an array field: decode fills it in
// place and never changes its length.
func FixedBytes(b []byte) Serializable {
	return fixedBytes(b)
}

func (b fixedBytes) Serialize() []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (b fixedBytes) Reader() io.Reader {
	return bytes.NewReader(b)
}

func (b fixedBytes) Deserialize(r io.Reader) error {
	return readFull(r, b)
}

func compactSize(n uint64) []byte {
	var buf bytes.Buffer
	buf.Grow(wire.VarIntSerializeSize(n))
	_ = wire.WriteVarInt(&buf, 0, n)
	return buf.Bytes()
}
