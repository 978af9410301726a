// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/hex"
	"math/big"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/jamnp/types"
)

var altNameRE = regexp.MustCompile(`^e[a-z2-7]{52}$`)

func keyFromHex(t *testing.T, s string) types.Ed25519Key {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	key, err := types.Ed25519KeyFromBytes(b)
	require.NoError(t, err)
	return key
}

func TestAltNameVector(t *testing.T) {
	key := keyFromHex(t, "3b6a27bcceb6a42d62a3a8d02a6f0d73653215771de243a63ac048a18b59da29")
	name := EncodeAltName(key)
	require.Equal(t, "eako2lgf2csgahktehyq5o4ktezltbvxsvufiunrc3jfwz26co2r3", name)

	decoded, err := DecodeAltName(name)
	require.NoError(t, err)
	require.Equal(t, key, decoded)
}

func TestAltNameEdgeKeys(t *testing.T) {
	zero := types.Ed25519Key{}
	require.Equal(t, "e"+"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", EncodeAltName(zero))

	var ones types.Ed25519Key
	for i := range ones {
		ones[i] = 0xFF
	}
	require.Equal(t, "e"+"b777777777777777777777777777777777777777777777777777", EncodeAltName(ones))
}

func TestAltNameBijection(t *testing.T) {
	// Deterministic pseudo-random keys; every one must round-trip and
	// match the shape regex.
	state := uint64(0x9E3779B97F4A7C15)
	next := func() byte {
		state ^= state << 13
		state ^= state >> 7
		state ^= state << 17
		return byte(state)
	}
	for i := 0; i < 256; i++ {
		var key types.Ed25519Key
		for j := range key {
			key[j] = next()
		}
		name := EncodeAltName(key)
		require.Regexp(t, altNameRE, name)

		decoded, err := DecodeAltName(name)
		require.NoError(t, err)
		require.Equal(t, key, decoded)
	}
}

func TestAltNameDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		err  error
	}{
		{"empty", "", ErrAltNameLength},
		{"short", "eabc", ErrAltNameLength},
		{"no prefix", "x" + "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", ErrAltNamePrefix},
		{"bad char", "e" + "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", ErrAltNameAlphabet},
		{"placeholder char", "e" + "$aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", ErrAltNameAlphabet},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeAltName(tt.in)
			require.ErrorIs(t, err, tt.err)
		})
	}
}

func TestALPNProtocol(t *testing.T) {
	var chain [32]byte
	copy(chain[:], []byte{0xde, 0xad, 0xbe, 0xef, 0x01})
	proto := ALPNProtocol(RoleValidator, chain)
	require.Equal(t, "jamnp-s/v/deadbeef", proto)

	role, chainHex, err := ParseALPN(proto)
	require.NoError(t, err)
	require.Equal(t, RoleValidator, role)
	require.Equal(t, "deadbeef", chainHex)

	role, _, err = ParseALPN("jamnp-s/b/deadbeef")
	require.NoError(t, err)
	require.Equal(t, RoleBuilder, role)
}

func TestParseALPNRejects(t *testing.T) {
	for _, proto := range []string{
		"",
		"jamnp-s/v",
		"jamnp/v/deadbeef",
		"jamnp-s/x/deadbeef",
		"jamnp-s/v/DEADBEEF",
		"jamnp-s/v/dead",
		"jamnp-s/v/deadbeez",
	} {
		_, _, err := ParseALPN(proto)
		require.Error(t, err, "proto %q", proto)
	}
}

func TestCertificateRoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	tlsCert, err := NewTLSCertificate(priv)
	require.NoError(t, err)

	parsed, err := x509.ParseCertificate(tlsCert.Certificate[0])
	require.NoError(t, err)

	key, err := PeerKeyFromCert(parsed)
	require.NoError(t, err)
	require.Equal(t, []byte(pub), key.Bytes())

	// SAN carries the altname of the same key.
	require.Len(t, parsed.DNSNames, 1)
	require.Regexp(t, altNameRE, parsed.DNSNames[0])
}

func TestPeerKeyFromCertMismatch(t *testing.T) {
	// Certificate keyed by one key but naming another in its SAN.
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	otherPub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	otherKey, err := types.Ed25519KeyFromBytes(otherPub)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		DNSNames:     []string{EncodeAltName(otherKey)},
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, pub, priv)
	require.NoError(t, err)
	parsed, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	_, err = PeerKeyFromCert(parsed)
	require.ErrorIs(t, err, ErrCertSubjectMismatch)
}
