package wasm

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
)

// LEB128 integer codec for the WebAssembly binary format, plus the
// fixed-width little-endian float forms. Decoders take the bit width as a
// parameter so one unsigned and one signed loop serve every integer width;
// encoders follow the
// append convention so callers can assemble byte slices directly.

// ErrVarintTooLong is returned when a varint runs past the byte count its
// bit width allows.
var ErrVarintTooLong = errors.New("wasm: varint exceeds bit width")

func readUvarint(r io.ByteReader, bits uint) (uint64, error) {
	maxBytes := int(bits+6) / 7
	var v uint64
	for i := 0; i < maxBytes; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		v |= uint64(b&0x7F) << (7 * uint(i))
		if b < 0x80 {
			return v, nil
		}
	}
	return 0, ErrVarintTooLong
}

func readSvarint(r io.ByteReader, bits uint) (int64, error) {
	maxBytes := int(bits+6) / 7
	var v int64
	var shift uint
	for i := 0; i < maxBytes; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		v |= int64(b&0x7F) << shift
		shift += 7
		if b < 0x80 {
			// Sign-extend from the final group.
			if shift < 64 && b&0x40 != 0 {
				v |= -1 << shift
			}
			return v, nil
		}
	}
	return 0, ErrVarintTooLong
}

// ReadVarU32 reads an unsigned 32-bit LEB128 value.
func ReadVarU32(r io.ByteReader) (uint32, error) {
	v, err := readUvarint(r, 32)
	return uint32(v), err
}

// ReadVarU64 reads an unsigned 64-bit LEB128 value.
func ReadVarU64(r io.ByteReader) (uint64, error) {
	return readUvarint(r, 64)
}

// ReadVarS32 reads a signed 32-bit LEB128 value.
func ReadVarS32(r io.ByteReader) (int32, error) {
	v, err := readSvarint(r, 32)
	return int32(v), err
}

// ReadVarS64 reads a signed 64-bit LEB128 value.
func ReadVarS64(r io.ByteReader) (int64, error) {
	return readSvarint(r, 64)
}

func appendUvarint(dst []byte, v uint64) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

func appendSvarint(dst []byte, v int64) []byte {
	for {
		b := byte(v) & 0x7F
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(dst, b)
		}
		dst = append(dst, b|0x80)
	}
}

// AppendVarU32 appends an unsigned 32-bit LEB128 value.
func AppendVarU32(dst []byte, v uint32) []byte {
	return appendUvarint(dst, uint64(v))
}

// AppendVarU64 appends an unsigned 64-bit LEB128 value.
func AppendVarU64(dst []byte, v uint64) []byte {
	return appendUvarint(dst, v)
}

// AppendVarS32 appends a signed 32-bit LEB128 value.
func AppendVarS32(dst []byte, v int32) []byte {
	return appendSvarint(dst, int64(v))
}

// AppendVarS64 appends a signed 64-bit LEB128 value.
func AppendVarS64(dst []byte, v int64) []byte {
	return appendSvarint(dst, v)
}

func appendF32(dst []byte, v float32) []byte {
	return binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
}

func appendF64(dst []byte, v float64) []byte {
	return binary.LittleEndian.AppendUint64(dst, math.Float64bits(v))
}
