// Package codec implements the byte serialization contract used by the
// peer-to-peer wire messages. Every wire value can be encoded eagerly into a
// byte slice, streamed lazily through an io.Reader, and decoded from a shared
// byte cursor.
//
// Compound values are described as an ordered list of named fields (see
// Fields); their encoding is the concatenation of the field encodings with no
// padding, and decode failures are annotated with the failing field's name.
package codec

import (
	"io"
	"strings"

	"github.com/pkg/errors"
)

// ErrTruncated is returned when the input ends before a value has been fully
// read.
var ErrTruncated = errors.New("truncated input")

// Serializable is the interface implemented by every value that has a wire
// representation.
type Serializable interface {
	// Serialize returns the wire encoding of the value. It never fails and
	// always returns the same bytes for the same value.
	Serialize() []byte

	// Reader returns a reader that produces the same bytes as Serialize
	// without materializing the whole encoding up front. The value must not
	// be mutated while the reader is being drained.
	Reader() io.Reader

	// Deserialize reads exactly one encoded value from r into the receiver.
	// The cursor is left immediately after the value so that callers can
	// keep reading.
	Deserialize(r io.Reader) error
}

// FieldError is a decode failure annotated with the names of the fields that
// were being read, outermost first.
type FieldError struct {
	Path []string
	Err  error
}

// Error returns the dotted field path followed by the cause, e.g.
// "receiver.port: truncated input".
func (e *FieldError) Error() string {
	return strings.Join(e.Path, ".") + ": " + e.Err.Error()
}

// Unwrap returns the underlying cause.
func (e *FieldError) Unwrap() error {
	return e.Err
}

// Field returns the name of the innermost field that failed.
func (e *FieldError) Field() string {
	return e.Path[len(e.Path)-1]
}

// wrapField annotates err with the field name. An error that already carries
// a path gets the name prepended.
func wrapField(name string, err error) error {
	var fe *FieldError
	if errors.As(err, &fe) {
		path := make([]string, 0, len(fe.Path)+1)
		path = append(path, name)
		path = append(path, fe.Path...)
		return &FieldError{Path: path, Err: fe.Err}
	}

	return &FieldError{Path: []string{name}, Err: err}
}

// readFull reads len(buf) bytes from r, reporting a short stream as
// ErrTruncated.
func readFull(r io.Reader, buf []byte) error {
	_, err := io.ReadFull(r, buf)
	return truncated(err)
}

func truncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrTruncated
	}
	return err
}
