// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package codec implements the byte-exact wire encoding used by every
// stream payload: little-endian fixed-width integers, fixed-size byte
// fields, and natural-number length prefixes for variable sequences.
package codec

import (
	"errors"

	"github.com/luxfi/ids"

	"github.com/luxfi/jamnp/types"
)

var errBadLength = errors.New("codec: length field exceeds bound")

// MaxSaneItems is the sequence length above which callers are expected to
// log a warning; it is not a hard decode limit.
const MaxSaneItems = 1000

// Packer serializes fields into Bytes. The first failure latches into Err
// and turns every later call into a no-op, so call sites stay flat.
type Packer struct {
	Bytes []byte
	Err   error
}

// NewPacker returns a Packer with the given initial capacity.
func NewPacker(size int) *Packer {
	return &Packer{Bytes: make([]byte, 0, size)}
}

func (p *Packer) PackByte(b byte) {
	if p.Err != nil {
		return
	}
	p.Bytes = append(p.Bytes, b)
}

// PackShort packs v as 2 bytes little-endian.
func (p *Packer) PackShort(v uint16) {
	if p.Err != nil {
		return
	}
	p.Bytes = append(p.Bytes, byte(v), byte(v>>8))
}

// PackInt packs v as 4 bytes little-endian.
func (p *Packer) PackInt(v uint32) {
	if p.Err != nil {
		return
	}
	p.Bytes = append(p.Bytes, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

// PackLong packs v as 8 bytes little-endian.
func (p *Packer) PackLong(v uint64) {
	if p.Err != nil {
		return
	}
	for i := 0; i < 8; i++ {
		p.Bytes = append(p.Bytes, byte(v>>(8*i)))
	}
}

// PackFixedBytes packs b verbatim, with no length prefix.
func (p *Packer) PackFixedBytes(b []byte) {
	if p.Err != nil {
		return
	}
	p.Bytes = append(p.Bytes, b...)
}

// PackHash packs a 32-byte identifier.
func (p *Packer) PackHash(h ids.ID) {
	p.PackFixedBytes(h[:])
}

// PackKey packs a 32-byte Ed25519 public key.
func (p *Packer) PackKey(k types.Ed25519Key) {
	p.PackFixedBytes(k[:])
}

// PackNat packs n with the natural-number encoding.
func (p *Packer) PackNat(n uint64) {
	if p.Err != nil {
		return
	}
	p.Bytes = AppendNat(p.Bytes, n)
}

// PackBytes packs a natural length prefix followed by b.
func (p *Packer) PackBytes(b []byte) {
	p.PackNat(uint64(len(b)))
	p.PackFixedBytes(b)
}
