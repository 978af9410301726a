// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"encoding/hex"
	"errors"
	"fmt"
)

var errBadChainHash = errors.New("chain hash must be 64 hex characters")

func (c *Config) decodeChainHash() error {
	if c.Chain.ChainHashHex == "" {
		return nil
	}
	raw, err := hex.DecodeString(c.Chain.ChainHashHex)
	if err != nil || len(raw) != 32 {
		return fmt.Errorf("%w: %q", errBadChainHash, c.Chain.ChainHashHex)
	}
	copy(c.Chain.ChainHash[:], raw)
	return nil
}
