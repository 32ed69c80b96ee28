package wasm

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"unicode/utf8"
)

// cursor is a bounds-checked read position over a byte slice. It is the
// decoding substrate for module sections and instruction streams alike;
// view carves a section body out of the module bytes without copying,
// while take and rest hand out fresh slices safe to keep.
type cursor struct {
	data []byte
	pos  int
}

func newCursor(data []byte) *cursor {
	return &cursor{data: data}
}

func (c *cursor) remaining() int {
	return len(c.data) - c.pos
}

// ReadByte implements io.ByteReader for the varint decoders.
func (c *cursor) ReadByte() (byte, error) {
	if c.pos == len(c.data) {
		return 0, io.EOF
	}
	b := c.data[c.pos]
	c.pos++
	return b, nil
}

func (c *cursor) truncated(n int) error {
	return fmt.Errorf("wasm: truncated: need %d bytes at offset %d", n, c.pos)
}

// skip advances past n bytes.
func (c *cursor) skip(n int) error {
	if n < 0 || c.remaining() < n {
		return c.truncated(n)
	}
	c.pos += n
	return nil
}

// take consumes n bytes and returns them as a fresh slice.
func (c *cursor) take(n int) ([]byte, error) {
	if n < 0 || c.remaining() < n {
		return nil, c.truncated(n)
	}
	out := append([]byte(nil), c.data[c.pos:c.pos+n]...)
	c.pos += n
	return out, nil
}

// view consumes n bytes and returns a cursor over them, sharing the
// backing array.
func (c *cursor) view(n int) (*cursor, error) {
	if n < 0 || c.remaining() < n {
		return nil, c.truncated(n)
	}
	sub := &cursor{data: c.data[c.pos : c.pos+n]}
	c.pos += n
	return sub, nil
}

// rest consumes and returns a copy of everything left.
func (c *cursor) rest() []byte {
	out := append([]byte(nil), c.data[c.pos:]...)
	c.pos = len(c.data)
	return out
}

func (c *cursor) varU32() (uint32, error) { return ReadVarU32(c) }
func (c *cursor) varU64() (uint64, error) { return ReadVarU64(c) }
func (c *cursor) varS32() (int32, error)  { return ReadVarS32(c) }
func (c *cursor) varS64() (int64, error)  { return ReadVarS64(c) }

// skipVarint advances past one LEB128 value without decoding it.
func (c *cursor) skipVarint() error {
	for {
		b, err := c.ReadByte()
		if err != nil {
			return err
		}
		if b < 0x80 {
			return nil
		}
	}
}

// name reads a length-prefixed UTF-8 name.
func (c *cursor) name() (string, error) {
	n, err := c.varU32()
	if err != nil {
		return "", err
	}
	raw, err := c.take(int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("wasm: invalid UTF-8 in name at offset %d", c.pos)
	}
	return string(raw), nil
}

// u32le reads a fixed-width little-endian uint32.
func (c *cursor) u32le() (uint32, error) {
	if c.remaining() < 4 {
		return 0, c.truncated(4)
	}
	v := binary.LittleEndian.Uint32(c.data[c.pos:])
	c.pos += 4
	return v, nil
}

func (c *cursor) f32() (float32, error) {
	v, err := c.u32le()
	return math.Float32frombits(v), err
}

func (c *cursor) f64() (float64, error) {
	if c.remaining() < 8 {
		return 0, c.truncated(8)
	}
	v := binary.LittleEndian.Uint64(c.data[c.pos:])
	c.pos += 8
	return math.Float64frombits(v), nil
}
