// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package codec

import (
	"errors"

	"github.com/luxfi/ids"

	"github.com/luxfi/jamnp/types"
)

var (
	// ErrInsufficientBytes is latched when a field runs past the end of
	// the input.
	ErrInsufficientBytes = errors.New("codec: insufficient bytes")
	// ErrTrailingBytes is returned by Done when input remains after the
	// last field.
	ErrTrailingBytes = errors.New("codec: trailing bytes")
)

// Unpacker deserializes fields from Bytes, advancing Offset. The first
// failure latches into Err; later calls return zero values.
type Unpacker struct {
	Bytes  []byte
	Offset int
	Err    error
}

// NewUnpacker returns an Unpacker over b.
func NewUnpacker(b []byte) *Unpacker {
	return &Unpacker{Bytes: b}
}

// Remaining returns the number of unread bytes.
func (u *Unpacker) Remaining() int {
	return len(u.Bytes) - u.Offset
}

// Done errors unless the input was consumed exactly.
func (u *Unpacker) Done() error {
	if u.Err != nil {
		return u.Err
	}
	if u.Offset != len(u.Bytes) {
		return ErrTrailingBytes
	}
	return nil
}

func (u *Unpacker) need(n int) bool {
	if u.Err != nil {
		return false
	}
	if u.Remaining() < n {
		u.Err = ErrInsufficientBytes
		return false
	}
	return true
}

func (u *Unpacker) UnpackByte() byte {
	if !u.need(1) {
		return 0
	}
	b := u.Bytes[u.Offset]
	u.Offset++
	return b
}

// UnpackShort reads 2 bytes little-endian.
func (u *Unpacker) UnpackShort() uint16 {
	if !u.need(2) {
		return 0
	}
	b := u.Bytes[u.Offset:]
	u.Offset += 2
	return uint16(b[0]) | uint16(b[1])<<8
}

// UnpackInt reads 4 bytes little-endian.
func (u *Unpacker) UnpackInt() uint32 {
	if !u.need(4) {
		return 0
	}
	b := u.Bytes[u.Offset:]
	u.Offset += 4
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// UnpackLong reads 8 bytes little-endian.
func (u *Unpacker) UnpackLong() uint64 {
	if !u.need(8) {
		return 0
	}
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(u.Bytes[u.Offset+i]) << (8 * i)
	}
	u.Offset += 8
	return v
}

// UnpackFixedBytes reads exactly n bytes. The returned slice aliases the
// input.
func (u *Unpacker) UnpackFixedBytes(n int) []byte {
	if n < 0 {
		u.Err = errBadLength
		return nil
	}
	if !u.need(n) {
		return nil
	}
	b := u.Bytes[u.Offset : u.Offset+n]
	u.Offset += n
	return b
}

// UnpackHash reads a 32-byte identifier.
func (u *Unpacker) UnpackHash() ids.ID {
	var h ids.ID
	copy(h[:], u.UnpackFixedBytes(len(h)))
	return h
}

// UnpackKey reads a 32-byte Ed25519 public key.
func (u *Unpacker) UnpackKey() types.Ed25519Key {
	var k types.Ed25519Key
	copy(k[:], u.UnpackFixedBytes(len(k)))
	return k
}

// UnpackNat reads one natural-number value.
func (u *Unpacker) UnpackNat() uint64 {
	if u.Err != nil {
		return 0
	}
	n, consumed, err := ConsumeNat(u.Bytes[u.Offset:])
	if err != nil {
		u.Err = err
		return 0
	}
	u.Offset += consumed
	return n
}

// UnpackBytes reads a natural length prefix and that many bytes. Lengths
// that exceed the remaining input fail immediately rather than allocating.
func (u *Unpacker) UnpackBytes() []byte {
	n := u.UnpackNat()
	if u.Err != nil {
		return nil
	}
	if n > uint64(u.Remaining()) {
		u.Err = errBadLength
		return nil
	}
	return u.UnpackFixedBytes(int(n))
}

// UnpackCount reads a natural sequence count and fails if it could not
// possibly fit in the remaining input given a minimum item size.
func (u *Unpacker) UnpackCount(minItemSize int) uint64 {
	n := u.UnpackNat()
	if u.Err != nil {
		return 0
	}
	if minItemSize > 0 && n > uint64(u.Remaining()/minItemSize) {
		u.Err = errBadLength
		return 0
	}
	return n
}
