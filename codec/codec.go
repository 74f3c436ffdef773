// Package codec provides bounds-checked, little-endian encode/decode
// helpers over a byte slice. These are the "codec helpers" external
// collaborator the storage core spec assumes is available: every fixed
// and variable width value that ends up in a slotted-page record passes
// through one of these functions.
package codec

import (
	"math"

	"github.com/malzahar/jindb/apperr"
)

// FixedStringLen is the width of the fixed-length string encoding used by
// ReadString256/WriteString256.
const FixedStringLen = 32

func checkBounds(n, offset, length int) error {
	if offset < 0 || length < 0 || offset+length > n {
		return apperr.Wrapf(apperr.ErrIoOverflow, "offset=%d length=%d bufLen=%d", offset, length, n)
	}
	return nil
}

// ReadBool reads a single byte at offset and interprets it as a boolean.
// Any byte other than 0 or 1 is a decode error.
func ReadBool(b []byte, offset int) (bool, error) {
	if err := checkBounds(len(b), offset, 1); err != nil {
		return false, err
	}
	switch b[offset] {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, apperr.Wrapf(apperr.ErrIoDecode, "expected 0 or 1 for bool, found %d", b[offset])
	}
}

// WriteBool writes a boolean at offset as a single 0/1 byte.
func WriteBool(b []byte, offset int, v bool) error {
	if err := checkBounds(len(b), offset, 1); err != nil {
		return err
	}
	if v {
		b[offset] = 1
	} else {
		b[offset] = 0
	}
	return nil
}

// ReadInt8 reads a signed 8-bit integer at offset.
func ReadInt8(b []byte, offset int) (int8, error) {
	if err := checkBounds(len(b), offset, 1); err != nil {
		return 0, err
	}
	return int8(b[offset]), nil
}

// WriteInt8 writes a signed 8-bit integer at offset.
func WriteInt8(b []byte, offset int, v int8) error {
	if err := checkBounds(len(b), offset, 1); err != nil {
		return err
	}
	b[offset] = byte(v)
	return nil
}

// ReadInt16 reads a little-endian signed 16-bit integer at offset.
func ReadInt16(b []byte, offset int) (int16, error) {
	if err := checkBounds(len(b), offset, 2); err != nil {
		return 0, err
	}
	return int16(uint16(b[offset]) | uint16(b[offset+1])<<8), nil
}

// WriteInt16 writes a little-endian signed 16-bit integer at offset.
func WriteInt16(b []byte, offset int, v int16) error {
	if err := checkBounds(len(b), offset, 2); err != nil {
		return err
	}
	u := uint16(v)
	b[offset] = byte(u)
	b[offset+1] = byte(u >> 8)
	return nil
}

// ReadUint32 reads a little-endian unsigned 32-bit integer at offset.
func ReadUint32(b []byte, offset int) (uint32, error) {
	if err := checkBounds(len(b), offset, 4); err != nil {
		return 0, err
	}
	return uint32(b[offset]) | uint32(b[offset+1])<<8 | uint32(b[offset+2])<<16 | uint32(b[offset+3])<<24, nil
}

// WriteUint32 writes a little-endian unsigned 32-bit integer at offset.
func WriteUint32(b []byte, offset int, v uint32) error {
	if err := checkBounds(len(b), offset, 4); err != nil {
		return err
	}
	b[offset] = byte(v)
	b[offset+1] = byte(v >> 8)
	b[offset+2] = byte(v >> 16)
	b[offset+3] = byte(v >> 24)
	return nil
}

// ReadInt32 reads a little-endian signed 32-bit integer at offset.
func ReadInt32(b []byte, offset int) (int32, error) {
	u, err := ReadUint32(b, offset)
	return int32(u), err
}

// WriteInt32 writes a little-endian signed 32-bit integer at offset.
func WriteInt32(b []byte, offset int, v int32) error {
	return WriteUint32(b, offset, uint32(v))
}

// ReadUint64 reads a little-endian unsigned 64-bit integer at offset.
func ReadUint64(b []byte, offset int) (uint64, error) {
	if err := checkBounds(len(b), offset, 8); err != nil {
		return 0, err
	}
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[offset+i]) << (8 * i)
	}
	return v, nil
}

// WriteUint64 writes a little-endian unsigned 64-bit integer at offset.
func WriteUint64(b []byte, offset int, v uint64) error {
	if err := checkBounds(len(b), offset, 8); err != nil {
		return err
	}
	for i := 0; i < 8; i++ {
		b[offset+i] = byte(v >> (8 * i))
	}
	return nil
}

// ReadInt64 reads a little-endian signed 64-bit integer at offset.
func ReadInt64(b []byte, offset int) (int64, error) {
	u, err := ReadUint64(b, offset)
	return int64(u), err
}

// WriteInt64 writes a little-endian signed 64-bit integer at offset.
func WriteInt64(b []byte, offset int, v int64) error {
	return WriteUint64(b, offset, uint64(v))
}

// ReadFloat32 reads a little-endian IEEE-754 single-precision float.
func ReadFloat32(b []byte, offset int) (float32, error) {
	u, err := ReadUint32(b, offset)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(u), nil
}

// WriteFloat32 writes a little-endian IEEE-754 single-precision float.
func WriteFloat32(b []byte, offset int, v float32) error {
	return WriteUint32(b, offset, math.Float32bits(v))
}

// ReadString reads a variable-length string of exactly length bytes at
// offset, trimming trailing NUL padding.
func ReadString(b []byte, offset, length int) (string, error) {
	if err := checkBounds(len(b), offset, length); err != nil {
		return "", err
	}
	end := offset + length
	trim := end
	for i := end - 1; i >= offset; i-- {
		if b[i] != 0 {
			trim = i + 1
			break
		}
		trim = offset
	}
	return string(b[offset:trim]), nil
}

// WriteString writes string bytes at offset. The caller is responsible
// for zeroing any padding beyond len(s) if the destination is reused.
func WriteString(b []byte, offset int, s string) error {
	if err := checkBounds(len(b), offset, len(s)); err != nil {
		return err
	}
	copy(b[offset:offset+len(s)], s)
	return nil
}

// ReadString256 reads a fixed 32-byte string field.
func ReadString256(b []byte, offset int) (string, error) {
	return ReadString(b, offset, FixedStringLen)
}

// WriteString256 writes s into a fixed 32-byte string field, zero-padding
// the remainder. Returns ErrIoOverflow if s does not fit.
func WriteString256(b []byte, offset int, s string) error {
	if len(s) > FixedStringLen {
		return apperr.Wrapf(apperr.ErrIoOverflow, "string of length %d exceeds fixed field of %d bytes", len(s), FixedStringLen)
	}
	if err := checkBounds(len(b), offset, FixedStringLen); err != nil {
		return err
	}
	n := copy(b[offset:offset+FixedStringLen], s)
	for i := offset + n; i < offset+FixedStringLen; i++ {
		b[i] = 0
	}
	return nil
}
