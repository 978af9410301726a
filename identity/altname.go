// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package identity binds a node's Ed25519 key to its TLS presence: the
// AltName encoding carried in the certificate SAN, the self-signed
// certificate itself, and the ALPN string that scopes a connection to a
// chain and role.
package identity

import (
	"errors"
	"math/big"
	"strings"

	"github.com/luxfi/jamnp/types"
)

// altNameAlphabet maps base-32 digit d to alphabet[d+1]; index 0 is a
// placeholder that never appears in an encoded name.
const altNameAlphabet = "$abcdefghijklmnopqrstuvwxyz234567"

// altNameDigits is the fixed digit count: 52 base-32 digits cover 260 bits,
// the smallest multiple of 5 above 256.
const altNameDigits = 52

var (
	ErrAltNameLength   = errors.New("altname: wrong length")
	ErrAltNamePrefix   = errors.New("altname: missing 'e' prefix")
	ErrAltNameAlphabet = errors.New("altname: character outside alphabet")
)

// EncodeAltName renders a public key as the DNS-safe name placed in the
// certificate SAN: "e" followed by the key, read as a little-endian
// integer, in base 32 with the most significant digit first.
func EncodeAltName(key types.Ed25519Key) string {
	le := make([]byte, len(key))
	for i, b := range key {
		le[len(key)-1-i] = b
	}
	n := new(big.Int).SetBytes(le)

	var sb strings.Builder
	sb.Grow(1 + altNameDigits)
	sb.WriteByte('e')
	mask := big.NewInt(31)
	digit := new(big.Int)
	for i := altNameDigits - 1; i >= 0; i-- {
		digit.Rsh(n, uint(5*i))
		digit.And(digit, mask)
		sb.WriteByte(altNameAlphabet[digit.Int64()+1])
	}
	return sb.String()
}

// DecodeAltName is the exact inverse of EncodeAltName.
func DecodeAltName(name string) (types.Ed25519Key, error) {
	var key types.Ed25519Key
	if len(name) != 1+altNameDigits {
		return key, ErrAltNameLength
	}
	if name[0] != 'e' {
		return key, ErrAltNamePrefix
	}

	n := new(big.Int)
	for i := 1; i < len(name); i++ {
		idx := strings.IndexByte(altNameAlphabet, name[i])
		if idx < 1 {
			return key, ErrAltNameAlphabet
		}
		n.Lsh(n, 5)
		n.Or(n, big.NewInt(int64(idx-1)))
	}
	if n.BitLen() > 256 {
		return key, ErrAltNameAlphabet
	}

	le := n.FillBytes(make([]byte, len(key)))
	for i, b := range le {
		key[len(key)-1-i] = b
	}
	return key, nil
}
