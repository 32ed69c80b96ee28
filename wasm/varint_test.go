package wasm

import (
	"bytes"
	"errors"
	"testing"
)

func TestVarU32RoundTrip(t *testing.T) {
	values := []uint32{0, 1, 127, 128, 255, 624485, 1 << 20, 0xFFFFFFFF}

	for _, v := range values {
		enc := AppendVarU32(nil, v)
		got, err := ReadVarU32(bytes.NewReader(enc))
		if err != nil {
			t.Errorf("ReadVarU32(%d): %v", v, err)
			continue
		}
		if got != v {
			t.Errorf("round trip %d: got %d", v, got)
		}
	}
}

func TestVarU64RoundTrip(t *testing.T) {
	values := []uint64{0, 1 << 32, 1 << 40, ^uint64(0)}

	for _, v := range values {
		enc := AppendVarU64(nil, v)
		got, err := ReadVarU64(bytes.NewReader(enc))
		if err != nil || got != v {
			t.Errorf("round trip %d: got %d, %v", v, got, err)
		}
	}
}

func TestVarS32RoundTrip(t *testing.T) {
	values := []int32{0, 1, -1, 63, 64, -64, -65, 127, -128, 1 << 20, -(1 << 20), 2147483647, -2147483648}

	for _, v := range values {
		enc := AppendVarS32(nil, v)
		got, err := ReadVarS32(bytes.NewReader(enc))
		if err != nil {
			t.Errorf("ReadVarS32(%d): %v", v, err)
			continue
		}
		if got != v {
			t.Errorf("round trip %d: got %d", v, got)
		}
	}
}

func TestVarS64RoundTrip(t *testing.T) {
	values := []int64{0, -1, 1 << 40, -(1 << 40), 9223372036854775807, -9223372036854775808}

	for _, v := range values {
		enc := AppendVarS64(nil, v)
		got, err := ReadVarS64(bytes.NewReader(enc))
		if err != nil {
			t.Errorf("ReadVarS64(%d): %v", v, err)
			continue
		}
		if got != v {
			t.Errorf("round trip %d: got %d", v, got)
		}
	}
}

func TestVarU32KnownEncodings(t *testing.T) {
	tests := []struct {
		want []byte
		v    uint32
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x7f}, 127},
		{[]byte{0x80, 0x01}, 128},
		{[]byte{0xe5, 0x8e, 0x26}, 624485},
		{[]byte{0xff, 0xff, 0xff, 0xff, 0x0f}, 0xFFFFFFFF},
	}

	for _, tt := range tests {
		if got := AppendVarU32(nil, tt.v); !bytes.Equal(got, tt.want) {
			t.Errorf("AppendVarU32(%d) = %v, want %v", tt.v, got, tt.want)
		}
	}
}

func TestVarintTooLong(t *testing.T) {
	// Six bytes, the first five carrying the continuation bit, exceed the
	// five a 32-bit value may use.
	data := []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01}

	if _, err := ReadVarU32(bytes.NewReader(data)); !errors.Is(err, ErrVarintTooLong) {
		t.Errorf("unsigned: expected ErrVarintTooLong, got %v", err)
	}
	if _, err := ReadVarS32(bytes.NewReader(data)); !errors.Is(err, ErrVarintTooLong) {
		t.Errorf("signed: expected ErrVarintTooLong, got %v", err)
	}
}

func TestVarintTruncated(t *testing.T) {
	data := []byte{0x80, 0x80}
	if _, err := ReadVarU32(bytes.NewReader(data)); err == nil {
		t.Error("expected error for truncated varint")
	}
}

func TestFloatRoundTrip(t *testing.T) {
	enc := appendF32(nil, 3.5)
	enc = appendF64(enc, -1.25)

	c := newCursor(enc)
	f32, err := c.f32()
	if err != nil || f32 != 3.5 {
		t.Errorf("f32: %v, got %v", err, f32)
	}
	f64, err := c.f64()
	if err != nil || f64 != -1.25 {
		t.Errorf("f64: %v, got %v", err, f64)
	}
	if c.remaining() != 0 {
		t.Errorf("remaining = %d, want 0", c.remaining())
	}
}
