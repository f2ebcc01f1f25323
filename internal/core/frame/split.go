package frame

import (
	"encoding/binary"

	"github.com/dcrodman/warpserver/internal/core"
)

// Message type codes reserved for split messages. They are part of the shared
// message enumeration (see the packets package) but the codec owns them.
const (
	TypeSplitStart uint32 = 4
	TypeSplitChunk uint32 = 5
)

// splitStartHeaderSize is the length of the originalType and originalLength
// fields at the front of a split start payload.
const splitStartHeaderSize = 8

// IsSplitType reports whether t is one of the split message types.
func IsSplitType(t uint32) bool {
	return t == TypeSplitStart || t == TypeSplitChunk
}

// Split cuts a payload larger than SplitMessageLength into a split start frame
// followed by as many chunk frames as needed. Payloads that fit in a single
// frame are returned unchanged as one frame.
func Split(msgType uint32, payload []byte) []Frame {
	if len(payload) <= SplitMessageLength {
		return []Frame{{Type: msgType, Payload: payload}}
	}

	frames := make([]Frame, 0, len(payload)/SplitMessageLength+1)

	first := make([]byte, splitStartHeaderSize+SplitMessageLength)
	binary.BigEndian.PutUint32(first[0:4], msgType)
	binary.BigEndian.PutUint32(first[4:8], uint32(len(payload)))
	copy(first[splitStartHeaderSize:], payload[:SplitMessageLength])
	frames = append(frames, Frame{Type: TypeSplitStart, Payload: first})

	for offset := SplitMessageLength; offset < len(payload); offset += SplitMessageLength {
		end := offset + SplitMessageLength
		if end > len(payload) {
			end = len(payload)
		}
		chunk := make([]byte, end-offset)
		copy(chunk, payload[offset:end])
		frames = append(frames, Frame{Type: TypeSplitChunk, Payload: chunk})
	}
	return frames
}

// Reassembler rebuilds split messages for a single connection. Only one split
// message can be in flight at a time. The zero value is ready to use.
type Reassembler struct {
	msgType uint32
	buf     []byte
	filled  int
	active  bool
}

// InProgress reports whether a split message is partially received.
func (r *Reassembler) InProgress() bool {
	return r.active
}

// Feed consumes a split start or chunk frame. Once the declared number of bytes
// has been received, the reconstructed message is returned with done == true.
func (r *Reassembler) Feed(f Frame) (msg Frame, done bool, err error) {
	switch f.Type {
	case TypeSplitStart:
		if r.active {
			return Frame{}, false, core.Violationf("Received a split message start while another split message is incomplete")
		}
		if err := r.start(f.Payload); err != nil {
			return Frame{}, false, err
		}
	case TypeSplitChunk:
		if !r.active {
			return Frame{}, false, core.Violationf("Received a split message chunk without a split message start")
		}
		if len(f.Payload) > len(r.buf)-r.filled {
			return Frame{}, false, core.Violationf("Split message chunk overflows the declared length of %d", len(r.buf))
		}
		r.filled += copy(r.buf[r.filled:], f.Payload)
	default:
		return Frame{}, false, core.Violationf("Message type %d is not a split message", f.Type)
	}

	if r.filled < len(r.buf) {
		return Frame{}, false, nil
	}

	msg = Frame{Type: r.msgType, Payload: r.buf}
	r.reset()
	return msg, true, nil
}

func (r *Reassembler) start(payload []byte) error {
	if len(payload) < splitStartHeaderSize {
		return core.Violationf("Split message start is too short")
	}
	msgType := binary.BigEndian.Uint32(payload[0:4])
	length := binary.BigEndian.Uint32(payload[4:8])
	first := payload[splitStartHeaderSize:]

	if IsSplitType(msgType) {
		return core.Violationf("Split message cannot contain another split message")
	}
	if length <= SplitMessageLength || length >= MaxMessageSize {
		return core.Violationf("Split message declared an invalid length of %d", length)
	}
	if len(first) > int(length) {
		return core.Violationf("Split message first chunk overflows the declared length of %d", length)
	}

	r.msgType = msgType
	r.buf = make([]byte, length)
	r.filled = copy(r.buf, first)
	r.active = true
	return nil
}

func (r *Reassembler) reset() {
	r.msgType = 0
	r.buf = nil
	r.filled = 0
	r.active = false
}
