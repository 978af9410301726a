// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package types holds the domain types shared across the networking stack.
package types

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

// ValidatorIndex is a validator's position in an epoch's active set. It is
// stable within an epoch and reassigned at epoch transitions.
type ValidatorIndex uint32

// Ed25519Key is a raw Ed25519 public key. It is the only peer identity the
// networking layer knows about; everything else hangs off it.
type Ed25519Key [32]byte

// Ed25519KeyLen is the length of an Ed25519 public key in bytes.
const Ed25519KeyLen = 32

// Ed25519KeyFromBytes copies b into a key. Errors if b is not exactly 32
// bytes.
func Ed25519KeyFromBytes(b []byte) (Ed25519Key, error) {
	var k Ed25519Key
	if len(b) != Ed25519KeyLen {
		return k, fmt.Errorf("invalid ed25519 key length %d", len(b))
	}
	copy(k[:], b)
	return k, nil
}

// Bytes returns the key as a byte slice.
func (k Ed25519Key) Bytes() []byte {
	return k[:]
}

// IsZero returns true iff the key is all zeroes.
func (k Ed25519Key) IsZero() bool {
	return k == Ed25519Key{}
}

// Less orders keys lexicographically.
func (k Ed25519Key) Less(other Ed25519Key) bool {
	return bytes.Compare(k[:], other[:]) < 0
}

func (k Ed25519Key) String() string {
	return hex.EncodeToString(k[:8])
}

// ValidatorMetadata describes one validator of an epoch's set. The endpoint
// is nil for validators that have not published one.
type ValidatorMetadata struct {
	Ed25519      Ed25519Key
	Bandersnatch [32]byte
	Endpoint     *Endpoint
}

// Endpoint is a validator's published network address. Immutable once set.
type Endpoint struct {
	Host string
	Port uint16
	Key  Ed25519Key
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}
