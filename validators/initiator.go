// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package validators

import (
	"github.com/luxfi/jamnp/types"
)

// InitiatorRole says which side of a peer pair dials.
type InitiatorRole uint8

const (
	// InitiatorLocal means this node dials the peer.
	InitiatorLocal InitiatorRole = iota
	// InitiatorRemote means this node waits for the peer to dial.
	InitiatorRemote
	// InitiatorNeither only arises for a key paired with itself.
	InitiatorNeither
)

func (r InitiatorRole) String() string {
	switch r {
	case InitiatorLocal:
		return "local"
	case InitiatorRemote:
		return "remote"
	default:
		return "neither"
	}
}

// PreferredInitiator deterministically picks which of two distinct keys
// opens the connection. Total and anti-symmetric over every ordered pair,
// which is what prevents simultaneous-open races.
func PreferredInitiator(a, b types.Ed25519Key) types.Ed25519Key {
	aHigh := a[31] > 127
	bHigh := b[31] > 127
	less := a.Less(b)
	if (aHigh != bHigh) != less {
		return a
	}
	return b
}

// RoleFor evaluates the initiator rule from the local node's perspective.
func RoleFor(local, remote types.Ed25519Key) InitiatorRole {
	if local == remote {
		return InitiatorNeither
	}
	if PreferredInitiator(local, remote) == local {
		return InitiatorLocal
	}
	return InitiatorRemote
}
