// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	ErrNoListenPort      = errors.New("listen port must be set")
	ErrNoSlotsPerEpoch   = errors.New("slots per epoch must be >= 1")
	ErrNoCores           = errors.New("core count must be >= 1")
	ErrNoMaxTickets      = errors.New("max tickets per extrinsic must be >= 1")
	ErrBadTimeout        = errors.New("timeouts must be positive")
	ErrBadMaxConnections = errors.New("max connections must be >= 1")
)

// Transport configures the QUIC listener and dialer.
type Transport struct {
	ListenAddr        string        `yaml:"listenAddr"`
	ListenPort        uint16        `yaml:"listenPort"`
	MaxConnections    int           `yaml:"maxConnections"`
	ConnectionTimeout time.Duration `yaml:"connectionTimeout"`
	MessageTimeout    time.Duration `yaml:"messageTimeout"`
	MaxFrameSize      uint32        `yaml:"maxFrameSize"`
}

// ChainParams are the chain constants the networking layer needs.
type ChainParams struct {
	ChainHash              [32]byte      `yaml:"-"`
	ChainHashHex           string        `yaml:"chainHash"`
	SlotsPerEpoch          uint32        `yaml:"slotsPerEpoch"`
	SlotDuration           time.Duration `yaml:"slotDuration"`
	NumCores               uint32        `yaml:"numCores"`
	MaxTicketsPerExtrinsic uint8         `yaml:"maxTicketsPerExtrinsic"`
}

// Config is the whole node configuration.
type Config struct {
	Transport Transport   `yaml:"transport"`
	Chain     ChainParams `yaml:"chain"`
}

// DefaultTransport returns production transport defaults.
func DefaultTransport() Transport {
	return Transport{
		ListenAddr:        "0.0.0.0",
		ListenPort:        40000,
		MaxConnections:    1024,
		ConnectionTimeout: 10 * time.Second,
		MessageTimeout:    30 * time.Second,
		MaxFrameSize:      1 << 24,
	}
}

// DefaultChainParams returns the tiny-chain defaults used in local nets.
func DefaultChainParams() ChainParams {
	return ChainParams{
		SlotsPerEpoch:          600,
		SlotDuration:           6 * time.Second,
		NumCores:               341,
		MaxTicketsPerExtrinsic: 2,
	}
}

// Default returns a complete default configuration.
func Default() Config {
	return Config{
		Transport: DefaultTransport(),
		Chain:     DefaultChainParams(),
	}
}

// Validate checks the transport section.
func (t Transport) Validate() error {
	switch {
	case t.ListenPort == 0:
		return ErrNoListenPort
	case t.MaxConnections < 1:
		return ErrBadMaxConnections
	case t.ConnectionTimeout <= 0 || t.MessageTimeout <= 0:
		return ErrBadTimeout
	default:
		return nil
	}
}

// Validate checks the chain section.
func (c ChainParams) Validate() error {
	switch {
	case c.SlotsPerEpoch < 1:
		return ErrNoSlotsPerEpoch
	case c.NumCores < 1:
		return ErrNoCores
	case c.MaxTicketsPerExtrinsic < 1:
		return ErrNoMaxTickets
	default:
		return nil
	}
}

// Validate checks the whole configuration.
func (c Config) Validate() error {
	if err := c.Transport.Validate(); err != nil {
		return fmt.Errorf("transport: %w", err)
	}
	if err := c.Chain.Validate(); err != nil {
		return fmt.Errorf("chain: %w", err)
	}
	return nil
}

// Load reads a YAML config file over the defaults and validates it.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.decodeChainHash(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}
