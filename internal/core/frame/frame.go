// Package frame implements the framing used on every client connection. A frame
// is an 8 byte header (message type followed by payload length, both big endian
// uint32s) and the payload itself.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/dcrodman/warpserver/internal/core"
)

const (
	// HeaderSize is the fixed length of every frame header.
	HeaderSize = 8
	// MaxMessageSize is the exclusive upper bound on a declared payload length.
	MaxMessageSize = 5 * 1024 * 1024
	// SplitMessageLength is the largest payload sent in a single frame. Anything
	// larger goes out as a split message.
	SplitMessageLength = 8192
)

var (
	// ErrIncomplete is returned by Decode when the buffer does not yet hold a whole frame.
	ErrIncomplete = errors.New("incomplete frame")
	// ErrOversize is wrapped by the protocol error returned for frames that declare
	// a length of MaxMessageSize or more.
	ErrOversize = errors.New("declared length exceeds maximum message size")
)

// Frame is a single message as it appears on the wire.
type Frame struct {
	Type    uint32
	Payload []byte
}

// Header is the decoded form of the first HeaderSize bytes of a frame.
type Header struct {
	Type   uint32
	Length uint32
}

// oversizeError keeps both the sentinel and the protocol error kind reachable
// through errors.Is/errors.As.
type oversizeError struct {
	*core.ProtocolError
}

func (e oversizeError) Unwrap() []error {
	return []error{e.ProtocolError, ErrOversize}
}

func checkLength(length uint32) error {
	if length >= MaxMessageSize {
		return oversizeError{&core.ProtocolError{
			Reason: fmt.Sprintf("Declared message length %d is too large", length),
		}}
	}
	return nil
}

// ParseHeader decodes a header, rejecting declared lengths that are too large.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, ErrIncomplete
	}
	h := Header{
		Type:   binary.BigEndian.Uint32(b[0:4]),
		Length: binary.BigEndian.Uint32(b[4:8]),
	}
	return h, checkLength(h.Length)
}

// Encode serializes a frame. It panics if the payload is too large to ever be
// accepted by a peer, since that can only be a programming error on our side.
func Encode(msgType uint32, payload []byte) []byte {
	if len(payload) >= MaxMessageSize {
		panic(fmt.Sprintf("frame.Encode(): payload of %d bytes exceeds MaxMessageSize", len(payload)))
	}
	out := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(out[0:4], msgType)
	binary.BigEndian.PutUint32(out[4:8], uint32(len(payload)))
	copy(out[HeaderSize:], payload)
	return out
}

// Bytes returns the wire representation of f.
func (f Frame) Bytes() []byte {
	return Encode(f.Type, f.Payload)
}

// Decode reads exactly one frame from the front of buf, returning the frame and
// the number of bytes it consumed. ErrIncomplete means more data is needed.
func Decode(buf []byte) (Frame, int, error) {
	h, err := ParseHeader(buf)
	if err != nil {
		return Frame{}, 0, err
	}
	total := HeaderSize + int(h.Length)
	if len(buf) < total {
		return Frame{}, 0, ErrIncomplete
	}
	payload := make([]byte, h.Length)
	copy(payload, buf[HeaderSize:total])
	return Frame{Type: h.Type, Payload: payload}, total, nil
}

// ReadFrame blocks until a whole frame has been read from r. The payload buffer
// is only allocated after the declared length has been validated.
func ReadFrame(r io.Reader) (Frame, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Frame{}, err
	}
	h, err := ParseHeader(header[:])
	if err != nil {
		return Frame{}, err
	}

	payload := make([]byte, h.Length)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return Frame{}, err
	}
	return Frame{Type: h.Type, Payload: payload}, nil
}

// WriteFrame writes the whole frame to w.
func WriteFrame(w io.Writer, f Frame) error {
	_, err := w.Write(f.Bytes())
	return err
}
