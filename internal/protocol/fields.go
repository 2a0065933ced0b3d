package protocol

import (
	"encoding/binary"
	"fmt"
)

const (
	SignedByteMin = -127
	SignedByteMax = 127
	signBit       = 0x80
)

// RangeError reports a value that cannot be carried in a sign-magnitude byte.
type RangeError struct {
	Value int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("protocol: value %d out of range [%d, %d]", e.Value, SignedByteMin, SignedByteMax)
}

func (e *RangeError) Unwrap() error { return ErrRange }

// EncodeSignedByte encodes v as sign-magnitude: bit 7 is the sign, bits 0-6
// the absolute value. -128 is not representable.
func EncodeSignedByte(v int) (byte, error) {
	if v < SignedByteMin || v > SignedByteMax {
		return 0, &RangeError{Value: v}
	}
	if v < 0 {
		return signBit | byte(-v), nil
	}
	return byte(v), nil
}

// DecodeSignedByte is the inverse of EncodeSignedByte. 0x80 decodes to 0.
func DecodeSignedByte(b byte) int {
	if b&signBit != 0 {
		return -int(b &^ signBit)
	}
	return int(b)
}

// PutUint16 writes v as a HIGH/LOW byte pair.
func PutUint16(dst []byte, v uint16) {
	binary.BigEndian.PutUint16(dst, v)
}

// Uint16 reads a HIGH/LOW byte pair.
func Uint16(b []byte) (uint16, error) {
	if len(b) < 2 {
		return 0, fmt.Errorf("protocol: invalid u16 length: %d", len(b))
	}
	return binary.BigEndian.Uint16(b), nil
}
