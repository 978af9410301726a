// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package codec

import (
	"errors"
	"math/bits"
)

// Natural-number encoding: the count of leading one bits in the first byte
// selects how many little-endian tail bytes follow, and the remainder of
// the first byte carries the value's high bits. Values below 2^7 are a
// single byte; the 0xFF prefix carries a full 8-byte tail.

var (
	ErrNatTruncated  = errors.New("natural: insufficient bytes")
	ErrNatNonMinimal = errors.New("natural: non-minimal encoding")
)

// NatLen returns the encoded size of n in bytes.
func NatLen(n uint64) int {
	for l := 0; l < 8; l++ {
		if n < 1<<(7*(l+1)) {
			return l + 1
		}
	}
	return 9
}

// AppendNat appends the encoding of n to dst and returns the result.
func AppendNat(dst []byte, n uint64) []byte {
	if n < 1<<7 {
		return append(dst, byte(n))
	}
	for l := 1; l < 8; l++ {
		if n < 1<<(7*(l+1)) {
			prefix := byte(-(1 << (8 - l))) | byte(n>>(8*l))
			dst = append(dst, prefix)
			for i := 0; i < l; i++ {
				dst = append(dst, byte(n>>(8*i)))
			}
			return dst
		}
	}
	dst = append(dst, 0xFF)
	for i := 0; i < 8; i++ {
		dst = append(dst, byte(n>>(8*i)))
	}
	return dst
}

// ConsumeNat decodes one natural from the front of b, returning the value
// and the number of bytes consumed. Non-minimal encodings are rejected so
// that decode∘encode is the identity on accepted byte strings.
func ConsumeNat(b []byte) (uint64, int, error) {
	if len(b) == 0 {
		return 0, 0, ErrNatTruncated
	}
	first := b[0]
	l := bits.LeadingZeros8(^first)
	if l == 0 {
		return uint64(first), 1, nil
	}
	if len(b) < 1+l {
		return 0, 0, ErrNatTruncated
	}
	var n uint64
	if l < 8 {
		n = uint64(first&(0xFF>>(l+1))) << (8 * l)
	}
	for i := 0; i < l; i++ {
		n |= uint64(b[1+i]) << (8 * i)
	}
	if n < 1<<(7*l) {
		return 0, 0, ErrNatNonMinimal
	}
	return n, 1 + l, nil
}
