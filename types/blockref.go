// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"fmt"

	"github.com/luxfi/ids"
)

// BlockRef names one block by header hash and timeslot. It is the unit of
// the block-announcement handshake: the finalised pointer and each leaf
// are one BlockRef.
type BlockRef struct {
	Hash ids.ID
	Slot uint32
}

// BlockRefLen is the encoded size: a 32-byte hash and a 4-byte slot.
const BlockRefLen = 36

func (r BlockRef) String() string {
	return fmt.Sprintf("%s@%d", r.Hash, r.Slot)
}
