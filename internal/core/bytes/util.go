// Package bytes contains the primitives used to read and write message payload
// fields. Every multi-byte value on the wire is big endian and every string or
// blob is prefixed with its length as an int32.
package bytes

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrShortPayload is returned when a field is read past the end of a payload.
var ErrShortPayload = errors.New("payload ended before all fields were read")

// Writer accumulates payload fields in the order in which they are written.
type Writer struct {
	buf bytes.Buffer
}

func NewWriter() *Writer {
	return &Writer{}
}

func (w *Writer) WriteInt32(v int32) *Writer {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	w.buf.Write(b[:])
	return w
}

func (w *Writer) WriteInt64(v int64) *Writer {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	w.buf.Write(b[:])
	return w
}

func (w *Writer) WriteFloat32(v float32) *Writer {
	return w.WriteInt32(int32(math.Float32bits(v)))
}

func (w *Writer) WriteFloat64(v float64) *Writer {
	return w.WriteInt64(int64(math.Float64bits(v)))
}

func (w *Writer) WriteBool(v bool) *Writer {
	if v {
		w.buf.WriteByte(1)
	} else {
		w.buf.WriteByte(0)
	}
	return w
}

// WriteBytes writes b prefixed with its length.
func (w *Writer) WriteBytes(b []byte) *Writer {
	w.WriteInt32(int32(len(b)))
	w.buf.Write(b)
	return w
}

func (w *Writer) WriteString(s string) *Writer {
	return w.WriteBytes([]byte(s))
}

// WriteRaw appends b without a length prefix.
func (w *Writer) WriteRaw(b []byte) *Writer {
	w.buf.Write(b)
	return w
}

// Bytes returns the payload written so far.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// Reader consumes payload fields in order. The first failure is sticky: every
// read after it returns the zero value and Err reports the original problem,
// so callers can decode a whole message and check for an error once.
type Reader struct {
	data []byte
	pos  int
	err  error
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

func (r *Reader) next(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.data)-r.pos < n {
		r.err = fmt.Errorf("reading %d bytes at offset %d: %w", n, r.pos, ErrShortPayload)
		return nil
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *Reader) ReadInt32() int32 {
	b := r.next(4)
	if b == nil {
		return 0
	}
	return int32(binary.BigEndian.Uint32(b))
}

func (r *Reader) ReadInt64() int64 {
	b := r.next(8)
	if b == nil {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b))
}

func (r *Reader) ReadFloat32() float32 {
	return math.Float32frombits(uint32(r.ReadInt32()))
}

func (r *Reader) ReadFloat64() float64 {
	return math.Float64frombits(uint64(r.ReadInt64()))
}

func (r *Reader) ReadBool() bool {
	b := r.next(1)
	return b != nil && b[0] != 0
}

// ReadBytes reads a length-prefixed blob. The returned slice is a copy.
func (r *Reader) ReadBytes() []byte {
	n := r.ReadInt32()
	if r.err != nil {
		return nil
	}
	b := r.next(int(n))
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (r *Reader) ReadString() string {
	return string(r.ReadBytes())
}

// ReadRemaining returns every unread byte.
func (r *Reader) ReadRemaining() []byte {
	if r.err != nil {
		return nil
	}
	return r.next(len(r.data) - r.pos)
}

// Remaining reports how many bytes have not been read yet.
func (r *Reader) Remaining() int {
	return len(r.data) - r.pos
}

// Err returns the first error encountered while reading, if any.
func (r *Reader) Err() error {
	return r.err
}
