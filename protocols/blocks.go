// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package protocols

import (
	"context"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/jamnp/codec"
	"github.com/luxfi/jamnp/core"
	"github.com/luxfi/jamnp/event"
	"github.com/luxfi/jamnp/types"
)

// Direction selects which way a block request walks the chain.
type Direction uint8

const (
	AscendingExclusive Direction = 0
	DescendingInclusive Direction = 1
)

// BlockRequest asks a peer for up to MaxBlocks blocks walking from
// HeaderHash.
type BlockRequest struct {
	HeaderHash ids.ID
	Direction  Direction
	MaxBlocks  uint32
}

func (r BlockRequest) Encode() []byte {
	p := codec.NewPacker(37)
	p.PackHash(r.HeaderHash)
	p.PackByte(byte(r.Direction))
	p.PackInt(r.MaxBlocks)
	return p.Bytes
}

func DecodeBlockRequest(b []byte) (BlockRequest, error) {
	u := codec.NewUnpacker(b)
	r := BlockRequest{
		HeaderHash: u.UnpackHash(),
		Direction:  Direction(u.UnpackByte()),
		MaxBlocks:  u.UnpackInt(),
	}
	return r, u.Done()
}

// BlocksResponse carries the returned blocks, each opaque to this layer.
type BlocksResponse struct {
	Blocks [][]byte
}

func (r BlocksResponse) Encode() []byte {
	p := codec.NewPacker(64)
	p.PackNat(uint64(len(r.Blocks)))
	for _, blk := range r.Blocks {
		p.PackBytes(blk)
	}
	return p.Bytes
}

func DecodeBlocksResponse(b []byte) (BlocksResponse, error) {
	u := codec.NewUnpacker(b)
	count := u.UnpackCount(1)
	r := BlocksResponse{}
	for i := uint64(0); i < count && u.Err == nil; i++ {
		r.Blocks = append(r.Blocks, u.UnpackBytes())
	}
	return r, u.Done()
}

type blockRequestHandler struct {
	log    log.Logger
	bus    *event.Bus
	blocks core.BlockStore
}

func newBlockRequestHandler(deps Dependencies) *blockRequestHandler {
	return &blockRequestHandler{
		log:    deps.Log,
		bus:    deps.Bus,
		blocks: deps.Blocks,
	}
}

func (*blockRequestHandler) Kind() types.StreamKind {
	return types.StreamKindBlockRequest
}

func (h *blockRequestHandler) RequestToken(frame []byte) (string, error) {
	req, err := DecodeBlockRequest(frame)
	if err != nil {
		return "", err
	}
	return req.HeaderHash.String(), nil
}

func (h *blockRequestHandler) HandleRequest(_ context.Context, peer types.Ed25519Key, frame []byte) ([][]byte, error) {
	req, err := DecodeBlockRequest(frame)
	if err != nil {
		return nil, err
	}
	h.bus.Publish(event.Event{Type: event.TypeBlocksRequested, Peer: peer, Payload: req})

	blocks, err := h.blocks.Blocks(req.HeaderHash, req.Direction == AscendingExclusive, req.MaxBlocks)
	if err != nil {
		return nil, err
	}
	return [][]byte{BlocksResponse{Blocks: blocks}.Encode()}, nil
}

func (h *blockRequestHandler) HandleResponse(_ context.Context, peer types.Ed25519Key, frame []byte) error {
	resp, err := DecodeBlocksResponse(frame)
	if err != nil {
		return err
	}
	if len(resp.Blocks) > codec.MaxSaneItems {
		h.log.Warn("oversized block response",
			log.Stringer("peer", peer),
			log.Int("blocks", len(resp.Blocks)))
	}
	h.bus.Publish(event.Event{Type: event.TypeBlocksReceived, Peer: peer, Payload: resp})
	return nil
}

// StateRequest asks for a state range under a given header.
type StateRequest struct {
	HeaderHash ids.ID
	StartKey   [32]byte
	EndKey     [32]byte
	MaxSize    uint32
}

func (r StateRequest) Encode() []byte {
	p := codec.NewPacker(100)
	p.PackHash(r.HeaderHash)
	p.PackFixedBytes(r.StartKey[:])
	p.PackFixedBytes(r.EndKey[:])
	p.PackInt(r.MaxSize)
	return p.Bytes
}

func DecodeStateRequest(b []byte) (StateRequest, error) {
	u := codec.NewUnpacker(b)
	r := StateRequest{HeaderHash: u.UnpackHash()}
	copy(r.StartKey[:], u.UnpackFixedBytes(32))
	copy(r.EndKey[:], u.UnpackFixedBytes(32))
	r.MaxSize = u.UnpackInt()
	return r, u.Done()
}

// StateKV is one key/value pair of a state response.
type StateKV struct {
	Key   []byte
	Value []byte
}

// StateResponse carries trie boundary nodes and the range's pairs.
type StateResponse struct {
	BoundaryNodes [][]byte
	Pairs         []StateKV
}

func (r StateResponse) Encode() []byte {
	p := codec.NewPacker(256)
	p.PackNat(uint64(len(r.BoundaryNodes)))
	for _, node := range r.BoundaryNodes {
		p.PackBytes(node)
	}
	p.PackNat(uint64(len(r.Pairs)))
	for _, kv := range r.Pairs {
		p.PackBytes(kv.Key)
		p.PackBytes(kv.Value)
	}
	return p.Bytes
}

func DecodeStateResponse(b []byte) (StateResponse, error) {
	u := codec.NewUnpacker(b)
	r := StateResponse{}
	nodes := u.UnpackCount(1)
	for i := uint64(0); i < nodes && u.Err == nil; i++ {
		r.BoundaryNodes = append(r.BoundaryNodes, u.UnpackBytes())
	}
	pairs := u.UnpackCount(2)
	for i := uint64(0); i < pairs && u.Err == nil; i++ {
		r.Pairs = append(r.Pairs, StateKV{
			Key:   u.UnpackBytes(),
			Value: u.UnpackBytes(),
		})
	}
	return r, u.Done()
}

type stateRequestHandler struct {
	log    log.Logger
	bus    *event.Bus
	blocks core.BlockStore
}

func newStateRequestHandler(deps Dependencies) *stateRequestHandler {
	return &stateRequestHandler{
		log:    deps.Log,
		bus:    deps.Bus,
		blocks: deps.Blocks,
	}
}

func (*stateRequestHandler) Kind() types.StreamKind {
	return types.StreamKindStateRequest
}

func (h *stateRequestHandler) RequestToken(frame []byte) (string, error) {
	req, err := DecodeStateRequest(frame)
	if err != nil {
		return "", err
	}
	return req.HeaderHash.String(), nil
}

func (h *stateRequestHandler) HandleRequest(_ context.Context, peer types.Ed25519Key, frame []byte) ([][]byte, error) {
	req, err := DecodeStateRequest(frame)
	if err != nil {
		return nil, err
	}
	h.bus.Publish(event.Event{Type: event.TypeStateRequested, Peer: peer, Payload: req})

	boundary, keys, values, err := h.blocks.State(req.HeaderHash, req.StartKey, req.EndKey, req.MaxSize)
	if err != nil {
		return nil, err
	}
	resp := StateResponse{BoundaryNodes: boundary}
	for i := range keys {
		resp.Pairs = append(resp.Pairs, StateKV{Key: keys[i], Value: values[i]})
	}
	return [][]byte{resp.Encode()}, nil
}

func (h *stateRequestHandler) HandleResponse(_ context.Context, peer types.Ed25519Key, frame []byte) error {
	resp, err := DecodeStateResponse(frame)
	if err != nil {
		return err
	}
	h.bus.Publish(event.Event{Type: event.TypeStateResponse, Peer: peer, Payload: resp})
	return nil
}
