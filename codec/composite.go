package codec

import (
	"bytes"
	"io"
)

// F is a named field of a composite value.
type F struct {
	Name  string
	Value Serializable
}

// Field binds a declared field name to the codec of that field.
func Field(name string, value Serializable) F {
	return F{Name: name, Value: value}
}

// Fields describes a composite value as its fields in declared wire order.
// The wire form is the concatenation of the field encodings, and Fields is
// itself Serializable so composites nest.
//
// A composite type implements Serializable by building its Fields from
// pointers to its own members and delegating:
//
//	func (p *Ping) fields() codec.Fields {
//		return codec.Fields{
//			codec.Field("nonce", codec.Uint64(&p.Nonce)),
//		}
//	}
//
//	func (p *Ping) Serialize() []byte { return p.fields().Serialize() }
type Fields []F

// Serialize concatenates the encodings of all fields in order.
func (fs Fields) Serialize() []byte {
	var buf bytes.Buffer
	for _, f := range fs {
		buf.Write(f.Value.Serialize())
	}
	return buf.Bytes()
}

// Reader chains the lazy readers of all fields in order. A field's reader is
// only created once every field before it has been drained.
func (fs Fields) Reader() io.Reader {
	return &chainReader{fields: fs}
}

// Deserialize decodes every field in order from r. The first failure is
// returned annotated with the name of the field being read.
func (fs Fields) Deserialize(r io.Reader) error {
	for _, f := range fs {
		if err := f.Value.Deserialize(r); err != nil {
			return wrapField(f.Name, err)
		}
	}
	return nil
}

// chainReader reads each field's reader in turn, opening them lazily.
type chainReader struct {
	fields Fields
	cur    io.Reader
}

func (c *chainReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	for {
		if c.cur == nil {
			if len(c.fields) == 0 {
				return 0, io.EOF
			}
			c.cur = c.fields[0].Value.Reader()
			c.fields = c.fields[1:]
		}

		n, err := c.cur.Read(p)
		if err == io.EOF {
			c.cur = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

// newtype forwards every operation to the wrapped value.
type newtype struct {
	inner Serializable
}

// Newtype returns the codec of a single-field wrapper type. The wrapper's
// wire form is exactly its inner value's, so no field name is recorded on
// decode failures.
func Newtype(inner Serializable) Serializable {
	return newtype{inner: inner}
}

func (n newtype) Serialize() []byte {
	return n.inner.Serialize()
}

func (n newtype) Reader() io.Reader {
	return n.inner.Reader()
}

func (n newtype) Deserialize(r io.Reader) error {
	return n.inner.Deserialize(r)
}

// Empty is the codec of a value with no wire representation. Deserialize
// consumes nothing and never checks whether input remains.
var Empty Serializable = Fields(nil)

// Drain reads the lazy encoding of v into memory. Draining v.Reader() always
// yields v.Serialize().
func Drain(v Serializable) ([]byte, error) {
	return io.ReadAll(v.Reader())
}
