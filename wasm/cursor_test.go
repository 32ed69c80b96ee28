package wasm

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestCursorReadByte(t *testing.T) {
	c := newCursor([]byte{0x01, 0x02})

	for _, want := range []byte{0x01, 0x02} {
		b, err := c.ReadByte()
		if err != nil || b != want {
			t.Fatalf("ReadByte = 0x%02x, %v, want 0x%02x", b, err, want)
		}
	}
	if _, err := c.ReadByte(); !errors.Is(err, io.EOF) {
		t.Errorf("expected EOF, got %v", err)
	}
}

func TestCursorTake(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5}
	c := newCursor(data)

	got, err := c.take(3)
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if !bytes.Equal(got, []byte{1, 2, 3}) {
		t.Errorf("take = %v, want [1 2 3]", got)
	}

	// The result is a fresh slice, not a view of the input.
	got[0] = 99
	if data[0] != 1 {
		t.Error("take aliased the input")
	}

	if _, err := c.take(3); err == nil {
		t.Error("expected error for take past the end")
	}
}

func TestCursorView(t *testing.T) {
	c := newCursor([]byte{0x0A, 0x0B, 0x0C, 0x0D})

	sub, err := c.view(2)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if sub.remaining() != 2 {
		t.Errorf("sub remaining = %d, want 2", sub.remaining())
	}
	if b, _ := sub.ReadByte(); b != 0x0A {
		t.Errorf("sub first byte = 0x%02x, want 0x0A", b)
	}
	// The parent advanced past the viewed range.
	if b, _ := c.ReadByte(); b != 0x0C {
		t.Errorf("parent next byte = 0x%02x, want 0x0C", b)
	}
}

func TestCursorRest(t *testing.T) {
	c := newCursor([]byte{1, 2, 3})
	if _, err := c.ReadByte(); err != nil {
		t.Fatal(err)
	}

	rest := c.rest()
	if !bytes.Equal(rest, []byte{2, 3}) {
		t.Errorf("rest = %v, want [2 3]", rest)
	}
	if c.remaining() != 0 {
		t.Errorf("remaining after rest = %d, want 0", c.remaining())
	}
}

func TestCursorName(t *testing.T) {
	c := newCursor(append([]byte{0x05}, []byte("hello")...))
	name, err := c.name()
	if err != nil || name != "hello" {
		t.Errorf("name = %q, %v, want hello", name, err)
	}

	bad := newCursor([]byte{0x02, 0xff, 0xfe})
	if _, err := bad.name(); err == nil {
		t.Error("expected error for invalid UTF-8 name")
	}
}

func TestCursorU32LE(t *testing.T) {
	c := newCursor([]byte{0x00, 0x61, 0x73, 0x6D})
	v, err := c.u32le()
	if err != nil || v != Magic {
		t.Errorf("u32le = 0x%08x, %v, want magic", v, err)
	}
	if _, err := c.u32le(); err == nil {
		t.Error("expected error past the end")
	}
}

func TestCursorSkipVarint(t *testing.T) {
	c := newCursor([]byte{0xe5, 0x8e, 0x26, 0x07})
	if err := c.skipVarint(); err != nil {
		t.Fatalf("skipVarint: %v", err)
	}
	if b, _ := c.ReadByte(); b != 0x07 {
		t.Errorf("next byte = 0x%02x, want 0x07", b)
	}
}
