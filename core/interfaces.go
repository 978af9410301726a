// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package core declares the services the networking layer consumes but
// does not implement. The node embedder wires real implementations; tests
// use the fakes next to each consumer.
package core

import (
	"context"
	"crypto"

	"github.com/luxfi/ids"

	"github.com/luxfi/jamnp/types"
)

// ChainManager imports announced headers and answers chain-head queries.
type ChainManager interface {
	// ImportHeader hands an announced block header to the chain for
	// validation and import.
	ImportHeader(ctx context.Context, header []byte, from types.Ed25519Key) error
	// HeaderHash computes the chain-spec hash of an encoded header.
	HeaderHash(header []byte) (ids.ID, error)
	// Finalized is the latest finalised block.
	Finalized() types.BlockRef
	// Leaves are the known chain tips descending from Finalized.
	Leaves() []types.BlockRef
}

// TicketService verifies Safrole tickets and derives their proxy.
type TicketService interface {
	// VerifyProof checks a Bandersnatch ring-VRF ticket proof.
	VerifyProof(ctx context.Context, epoch uint32, attempt uint8, proof []byte) error
	// ProxyIndex derives the responsible proxy validator from a proof:
	// the last four bytes of the VRF output, big-endian, modulo the
	// active-set size. Pure, so every receiver can recompute it.
	ProxyIndex(proof []byte, numValidators uint32) (types.ValidatorIndex, error)
}

// Entropy supplies randomness for jitter and serial numbers.
type Entropy interface {
	Entropy() ([32]byte, error)
}

// Keystore holds the node's own Ed25519 identity.
type Keystore interface {
	PublicKey() types.Ed25519Key
	Signer() crypto.Signer
}

// BlockStore serves block-request queries.
type BlockStore interface {
	// Blocks returns up to max encoded blocks walking from the given
	// header hash in the requested direction.
	Blocks(hash ids.ID, ascending bool, max uint32) ([][]byte, error)
	// State returns the boundary nodes and key/value pairs for a state
	// range query anchored at a header hash.
	State(hash ids.ID, startKey, endKey [32]byte, maxSize uint32) (boundary [][]byte, keys [][]byte, values [][]byte, err error)
}

// PreimageStore serves preimage lookups.
type PreimageStore interface {
	Preimage(hash ids.ID) ([]byte, bool)
}

// WorkReportStore serves work-report lookups.
type WorkReportStore interface {
	WorkReport(hash ids.ID) ([]byte, bool)
}

// ShardStore serves availability shards by erasure root.
type ShardStore interface {
	// Shard returns the bundle shard, exported-segment shards and
	// justification for one shard index under an erasure root.
	Shard(erasureRoot ids.ID, shardIndex uint32) (bundle []byte, segments [][]byte, justification []byte, err error)
	// SegmentShards returns the selected segment shards, and their
	// justifications when withJustification is set.
	SegmentShards(erasureRoot ids.ID, shardIndex uint32, segmentIndexes []uint16, withJustification bool) (segments [][]byte, justifications [][]byte, err error)
}

// Guarantor evaluates a shared work package and signs the resulting
// report. Only guarantor nodes wire one.
type Guarantor interface {
	EvaluateWorkPackage(ctx context.Context, coreIndex uint32, workPackage []byte) (reportHash ids.ID, signature [64]byte, err error)
}

// JudgmentStore records published judgments.
type JudgmentStore interface {
	PutJudgment(epoch uint32, validator types.ValidatorIndex, report ids.ID, judgment []byte) error
}
