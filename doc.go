// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package jamnp is the validator networking substrate for JAM-style
// chains: mutually-authenticated QUIC connections arranged by a square
// grid over the active validator set, epoch-driven membership, and a
// closed registry of stream protocols for blocks, tickets, work reports,
// availability shards, preimages, audits and judgments.
//
// The Node in this package assembles the stack; the chain, ticket,
// preimage and audit subsystems plug in through the interfaces in core
// and consume traffic from the event bus.
package jamnp
