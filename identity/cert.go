// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"math/big"
	"time"

	"github.com/luxfi/jamnp/types"
)

var (
	ErrNoPeerCertificate   = errors.New("identity: peer presented no certificate")
	ErrCertNotEd25519      = errors.New("identity: certificate key is not ed25519")
	ErrCertNoAltName       = errors.New("identity: no decodable SAN entry")
	ErrCertSubjectMismatch = errors.New("identity: SAN key does not match certificate key")
)

const certValidity = 365 * 24 * time.Hour

// NewTLSCertificate creates the self-signed X.509 certificate a node
// presents on every connection. The SAN DNS entry is the AltName encoding
// of the node's public key, and the certificate is keyed by that same
// Ed25519 key.
func NewTLSCertificate(priv ed25519.PrivateKey) (tls.Certificate, error) {
	pub := priv.Public().(ed25519.PublicKey)
	key, err := types.Ed25519KeyFromBytes(pub)
	if err != nil {
		return tls.Certificate{}, err
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		return tls.Certificate{}, err
	}
	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serial,
		DNSNames:     []string{EncodeAltName(key)},
		NotBefore:    now.Add(-time.Hour),
		NotAfter:     now.Add(certValidity),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, pub, priv)
	if err != nil {
		return tls.Certificate{}, err
	}
	return tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  priv,
	}, nil
}

// PeerKeyFromCert extracts the peer's Ed25519 key from its certificate.
// The SAN name must decode and must name the same key the certificate is
// signed with; trust in the key itself is decided by the caller against
// the validator sets.
func PeerKeyFromCert(cert *x509.Certificate) (types.Ed25519Key, error) {
	pub, ok := cert.PublicKey.(ed25519.PublicKey)
	if !ok {
		return types.Ed25519Key{}, ErrCertNotEd25519
	}
	certKey, err := types.Ed25519KeyFromBytes(pub)
	if err != nil {
		return types.Ed25519Key{}, err
	}

	for _, name := range cert.DNSNames {
		sanKey, err := DecodeAltName(name)
		if err != nil {
			continue
		}
		if sanKey != certKey {
			return types.Ed25519Key{}, ErrCertSubjectMismatch
		}
		return sanKey, nil
	}
	return types.Ed25519Key{}, ErrCertNoAltName
}

// PeerKeyFromRawCerts runs PeerKeyFromCert over the raw handshake
// certificate list, as delivered by a tls.ConnectionState.
func PeerKeyFromRawCerts(rawCerts [][]byte) (types.Ed25519Key, error) {
	if len(rawCerts) == 0 {
		return types.Ed25519Key{}, ErrNoPeerCertificate
	}
	cert, err := x509.ParseCertificate(rawCerts[0])
	if err != nil {
		return types.Ed25519Key{}, err
	}
	return PeerKeyFromCert(cert)
}

// TLSConfig builds the mutual-TLS configuration both sides of a connection
// use. Chain verification is disabled: any syntactically valid self-signed
// certificate is accepted here, and the extracted SAN key is checked
// against the expected peer set after the handshake.
func TLSConfig(cert tls.Certificate, protocols []string) *tls.Config {
	return &tls.Config{
		MinVersion:         tls.VersionTLS13,
		Certificates:       []tls.Certificate{cert},
		NextProtos:         protocols,
		ClientAuth:         tls.RequireAnyClientCert,
		InsecureSkipVerify: true,
		VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			_, err := PeerKeyFromRawCerts(rawCerts)
			return err
		},
	}
}
