package bytes

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestWriter_Bytes(t *testing.T) {
	tests := []struct {
		name  string
		write func(w *Writer)
		want  []byte
	}{
		{
			name:  "int32 is big endian",
			write: func(w *Writer) { w.WriteInt32(0x01020304) },
			want:  []byte{0x01, 0x02, 0x03, 0x04},
		},
		{
			name:  "negative int32",
			write: func(w *Writer) { w.WriteInt32(-1) },
			want:  []byte{0xFF, 0xFF, 0xFF, 0xFF},
		},
		{
			name:  "int64 is big endian",
			write: func(w *Writer) { w.WriteInt64(0x0102030405060708) },
			want:  []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08},
		},
		{
			name:  "string is length prefixed",
			write: func(w *Writer) { w.WriteString("Bob") },
			want:  []byte{0x00, 0x00, 0x00, 0x03, 'B', 'o', 'b'},
		},
		{
			name:  "empty string",
			write: func(w *Writer) { w.WriteString("") },
			want:  []byte{0x00, 0x00, 0x00, 0x00},
		},
		{
			name:  "bools",
			write: func(w *Writer) { w.WriteBool(true).WriteBool(false) },
			want:  []byte{0x01, 0x00},
		},
		{
			name:  "raw bytes have no prefix",
			write: func(w *Writer) { w.WriteRaw([]byte{0xAA, 0xBB}) },
			want:  []byte{0xAA, 0xBB},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWriter()
			tt.write(w)
			if diff := cmp.Diff(tt.want, w.Bytes()); diff != "" {
				t.Errorf("Bytes() did not match expected; diff:\n%s", diff)
			}
		})
	}
}

func TestReader_ReadsFieldsInOrder(t *testing.T) {
	payload := NewWriter().
		WriteInt32(42).
		WriteString("Jebediah").
		WriteFloat64(1234.5).
		WriteFloat32(0.75).
		WriteInt64(math.MaxInt64).
		WriteBool(true).
		WriteBytes([]byte{1, 2, 3}).
		Bytes()

	r := NewReader(payload)
	if got := r.ReadInt32(); got != 42 {
		t.Errorf("ReadInt32() = %d, want 42", got)
	}
	if got := r.ReadString(); got != "Jebediah" {
		t.Errorf("ReadString() = %q, want Jebediah", got)
	}
	if got := r.ReadFloat64(); got != 1234.5 {
		t.Errorf("ReadFloat64() = %v, want 1234.5", got)
	}
	if got := r.ReadFloat32(); got != 0.75 {
		t.Errorf("ReadFloat32() = %v, want 0.75", got)
	}
	if got := r.ReadInt64(); got != math.MaxInt64 {
		t.Errorf("ReadInt64() = %d, want MaxInt64", got)
	}
	if got := r.ReadBool(); !got {
		t.Errorf("ReadBool() = false, want true")
	}
	if diff := cmp.Diff([]byte{1, 2, 3}, r.ReadBytes()); diff != "" {
		t.Errorf("ReadBytes() did not match; diff:\n%s", diff)
	}
	if r.Err() != nil {
		t.Fatalf("unexpected error: %v", r.Err())
	}
	if r.Remaining() != 0 {
		t.Errorf("Remaining() = %d, want 0", r.Remaining())
	}
}

func TestReader_ErrorIsSticky(t *testing.T) {
	r := NewReader([]byte{0x00, 0x00})
	if got := r.ReadInt32(); got != 0 {
		t.Errorf("ReadInt32() on a short payload = %d, want 0", got)
	}
	if !errors.Is(r.Err(), ErrShortPayload) {
		t.Fatalf("Err() = %v, want ErrShortPayload", r.Err())
	}
	// Subsequent reads must not panic or clear the error.
	_ = r.ReadString()
	if !errors.Is(r.Err(), ErrShortPayload) {
		t.Fatalf("error was cleared by a later read: %v", r.Err())
	}
}

func TestReader_RejectsBadLengthPrefix(t *testing.T) {
	tests := map[string][]byte{
		"negative length": {0xFF, 0xFF, 0xFF, 0xFF},
		"length too long": {0x00, 0x00, 0x00, 0x10, 'a'},
	}
	for name, payload := range tests {
		t.Run(name, func(t *testing.T) {
			r := NewReader(payload)
			if s := r.ReadString(); s != "" {
				t.Errorf("ReadString() = %q, want empty", s)
			}
			if r.Err() == nil {
				t.Fatal("expected an error")
			}
		})
	}
}
