// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package identity

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Role distinguishes the two kinds of nodes a connection can be opened by.
type Role string

const (
	RoleValidator Role = "v"
	RoleBuilder   Role = "b"
)

const alpnPrefix = "jamnp-s"

// alpnChainHexLen is the number of lowercase-hex chain-hash characters
// carried in the protocol string.
const alpnChainHexLen = 8

var (
	ErrAlpnMalformed     = errors.New("alpn: malformed protocol string")
	ErrAlpnRole          = errors.New("alpn: unknown role")
	ErrAlpnChainMismatch = errors.New("alpn: chain hash mismatch")
)

// ALPNProtocol builds the protocol string negotiated on every connection:
// "jamnp-s/" + role + "/" + first 8 lowercase-hex chars of the chain hash.
func ALPNProtocol(role Role, chainHash [32]byte) string {
	return fmt.Sprintf("%s/%s/%s", alpnPrefix, role, hex.EncodeToString(chainHash[:alpnChainHexLen/2]))
}

// ParseALPN splits a negotiated protocol string into role and chain-hash
// prefix. The caller compares the prefix against its own chain.
func ParseALPN(proto string) (Role, string, error) {
	parts := strings.Split(proto, "/")
	if len(parts) != 3 || parts[0] != alpnPrefix {
		return "", "", ErrAlpnMalformed
	}
	role := Role(parts[1])
	if role != RoleValidator && role != RoleBuilder {
		return "", "", ErrAlpnRole
	}
	chain := parts[2]
	if len(chain) != alpnChainHexLen || strings.ToLower(chain) != chain {
		return "", "", ErrAlpnMalformed
	}
	if _, err := hex.DecodeString(chain); err != nil {
		return "", "", ErrAlpnMalformed
	}
	return role, chain, nil
}
