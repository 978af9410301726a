// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		err    error
	}{
		{"zero port", func(c *Config) { c.Transport.ListenPort = 0 }, ErrNoListenPort},
		{"zero connections", func(c *Config) { c.Transport.MaxConnections = 0 }, ErrBadMaxConnections},
		{"zero timeout", func(c *Config) { c.Transport.ConnectionTimeout = 0 }, ErrBadTimeout},
		{"zero epoch", func(c *Config) { c.Chain.SlotsPerEpoch = 0 }, ErrNoSlotsPerEpoch},
		{"zero cores", func(c *Config) { c.Chain.NumCores = 0 }, ErrNoCores},
		{"zero tickets", func(c *Config) { c.Chain.MaxTicketsPerExtrinsic = 0 }, ErrNoMaxTickets},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			require.ErrorIs(t, cfg.Validate(), tt.err)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
transport:
  listenPort: 41000
  connectionTimeout: 5s
chain:
  chainHash: "deadbeef00000000000000000000000000000000000000000000000000000000"
  slotsPerEpoch: 12
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, uint16(41000), cfg.Transport.ListenPort)
	require.Equal(t, 5*time.Second, cfg.Transport.ConnectionTimeout)
	// Unset fields keep defaults.
	require.Equal(t, 30*time.Second, cfg.Transport.MessageTimeout)
	require.Equal(t, uint32(12), cfg.Chain.SlotsPerEpoch)
	require.Equal(t, byte(0xde), cfg.Chain.ChainHash[0])
}

func TestLoadRejectsBadChainHash(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chain:\n  chainHash: \"xyz\"\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}
