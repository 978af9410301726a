// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package protocols

import (
	"context"
	"fmt"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/jamnp/codec"
	"github.com/luxfi/jamnp/core"
	"github.com/luxfi/jamnp/event"
	"github.com/luxfi/jamnp/networking/handler"
	"github.com/luxfi/jamnp/types"
)

// ShardRequest names one shard under an erasure root. It is the request
// of both the full-shard and the audit-shard kinds.
type ShardRequest struct {
	ErasureRoot ids.ID
	ShardIndex  uint32
}

func (r ShardRequest) Encode() []byte {
	p := codec.NewPacker(36)
	p.PackHash(r.ErasureRoot)
	p.PackInt(r.ShardIndex)
	return p.Bytes
}

func DecodeShardRequest(b []byte) (ShardRequest, error) {
	u := codec.NewUnpacker(b)
	r := ShardRequest{
		ErasureRoot: u.UnpackHash(),
		ShardIndex:  u.UnpackInt(),
	}
	return r, u.Done()
}

// token is the correlation key carried through the exchange context.
func (r ShardRequest) token() string {
	return fmt.Sprintf("%s/%d", r.ErasureRoot, r.ShardIndex)
}

// ShardResponse is the full shard: bundle shard, exported-segment shards
// and justification.
type ShardResponse struct {
	Bundle        []byte
	Segments      [][]byte
	Justification []byte
}

func (r ShardResponse) Encode() []byte {
	p := codec.NewPacker(64 + len(r.Bundle) + len(r.Justification))
	p.PackBytes(r.Bundle)
	p.PackNat(uint64(len(r.Segments)))
	for _, seg := range r.Segments {
		p.PackBytes(seg)
	}
	p.PackBytes(r.Justification)
	return p.Bytes
}

func DecodeShardResponse(b []byte) (ShardResponse, error) {
	u := codec.NewUnpacker(b)
	r := ShardResponse{Bundle: u.UnpackBytes()}
	count := u.UnpackCount(1)
	for i := uint64(0); i < count && u.Err == nil; i++ {
		r.Segments = append(r.Segments, u.UnpackBytes())
	}
	r.Justification = u.UnpackBytes()
	return r, u.Done()
}

// AuditShardResponse is the audit subset: bundle shard and justification
// only.
type AuditShardResponse struct {
	Bundle        []byte
	Justification []byte
}

func (r AuditShardResponse) Encode() []byte {
	p := codec.NewPacker(16 + len(r.Bundle) + len(r.Justification))
	p.PackBytes(r.Bundle)
	p.PackBytes(r.Justification)
	return p.Bytes
}

func DecodeAuditShardResponse(b []byte) (AuditShardResponse, error) {
	u := codec.NewUnpacker(b)
	r := AuditShardResponse{
		Bundle:        u.UnpackBytes(),
		Justification: u.UnpackBytes(),
	}
	return r, u.Done()
}

// SegmentShardSpec selects segment shards under one erasure root.
type SegmentShardSpec struct {
	ErasureRoot    ids.ID
	ShardIndex     uint32
	SegmentIndexes []uint16
}

// SegmentShardRequest batches specs across roots.
type SegmentShardRequest struct {
	Specs []SegmentShardSpec
}

func (r SegmentShardRequest) Encode() []byte {
	p := codec.NewPacker(64)
	p.PackNat(uint64(len(r.Specs)))
	for _, spec := range r.Specs {
		p.PackHash(spec.ErasureRoot)
		p.PackInt(spec.ShardIndex)
		p.PackNat(uint64(len(spec.SegmentIndexes)))
		for _, idx := range spec.SegmentIndexes {
			p.PackShort(idx)
		}
	}
	return p.Bytes
}

func DecodeSegmentShardRequest(b []byte) (SegmentShardRequest, error) {
	u := codec.NewUnpacker(b)
	r := SegmentShardRequest{}
	count := u.UnpackCount(37)
	for i := uint64(0); i < count && u.Err == nil; i++ {
		spec := SegmentShardSpec{
			ErasureRoot: u.UnpackHash(),
			ShardIndex:  u.UnpackInt(),
		}
		segs := u.UnpackCount(2)
		for j := uint64(0); j < segs && u.Err == nil; j++ {
			spec.SegmentIndexes = append(spec.SegmentIndexes, u.UnpackShort())
		}
		r.Specs = append(r.Specs, spec)
	}
	return r, u.Done()
}

func (r SegmentShardRequest) token() string {
	if len(r.Specs) == 0 {
		return ""
	}
	return fmt.Sprintf("%s/%d", r.Specs[0].ErasureRoot, r.Specs[0].ShardIndex)
}

// SegmentShardResponse carries the selected segment shards, plus their
// justifications on the justified kind.
type SegmentShardResponse struct {
	Segments       [][]byte
	Justifications [][]byte
}

func (r SegmentShardResponse) encode(withJustifications bool) []byte {
	p := codec.NewPacker(64)
	p.PackNat(uint64(len(r.Segments)))
	for _, seg := range r.Segments {
		p.PackBytes(seg)
	}
	if withJustifications {
		p.PackNat(uint64(len(r.Justifications)))
		for _, just := range r.Justifications {
			p.PackBytes(just)
		}
	}
	return p.Bytes
}

func decodeSegmentShardResponse(b []byte, withJustifications bool) (SegmentShardResponse, error) {
	u := codec.NewUnpacker(b)
	r := SegmentShardResponse{}
	count := u.UnpackCount(1)
	for i := uint64(0); i < count && u.Err == nil; i++ {
		r.Segments = append(r.Segments, u.UnpackBytes())
	}
	if withJustifications {
		justs := u.UnpackCount(1)
		for i := uint64(0); i < justs && u.Err == nil; i++ {
			r.Justifications = append(r.Justifications, u.UnpackBytes())
		}
	}
	return r, u.Done()
}

// shardDistHandler serves full-shard distribution to assurers.
type shardDistHandler struct {
	log    log.Logger
	bus    *event.Bus
	shards core.ShardStore
}

func newShardDistHandler(deps Dependencies) *shardDistHandler {
	return &shardDistHandler{log: deps.Log, bus: deps.Bus, shards: deps.Shards}
}

func (*shardDistHandler) Kind() types.StreamKind {
	return types.StreamKindShardDist
}

func (h *shardDistHandler) RequestToken(frame []byte) (string, error) {
	req, err := DecodeShardRequest(frame)
	if err != nil {
		return "", err
	}
	return req.token(), nil
}

func (h *shardDistHandler) HandleRequest(_ context.Context, peer types.Ed25519Key, frame []byte) ([][]byte, error) {
	req, err := DecodeShardRequest(frame)
	if err != nil {
		return nil, err
	}
	h.bus.Publish(event.Event{Type: event.TypeShardDistributionRequest, Peer: peer, Payload: req})

	bundle, segments, justification, err := h.shards.Shard(req.ErasureRoot, req.ShardIndex)
	if err != nil {
		return nil, err
	}
	resp := ShardResponse{Bundle: bundle, Segments: segments, Justification: justification}
	return [][]byte{resp.Encode()}, nil
}

func (h *shardDistHandler) HandleResponse(ctx context.Context, peer types.Ed25519Key, frame []byte) error {
	resp, err := DecodeShardResponse(frame)
	if err != nil {
		return err
	}
	token, _ := handler.CorrelationFromContext(ctx)
	h.bus.Publish(event.Event{
		Type: event.TypeShardDistributionResponse,
		Peer: peer,
		Payload: CorrelatedShardResponse{Request: token, Response: resp},
	})
	return nil
}

// CorrelatedShardResponse ties a shard response back to the request that
// asked for it.
type CorrelatedShardResponse struct {
	Request  string
	Response ShardResponse
}

// auditShardHandler serves the audit subset of a shard.
type auditShardHandler struct {
	log    log.Logger
	bus    *event.Bus
	shards core.ShardStore
}

func newAuditShardHandler(deps Dependencies) *auditShardHandler {
	return &auditShardHandler{log: deps.Log, bus: deps.Bus, shards: deps.Shards}
}

func (*auditShardHandler) Kind() types.StreamKind {
	return types.StreamKindAuditShardRequest
}

func (h *auditShardHandler) RequestToken(frame []byte) (string, error) {
	req, err := DecodeShardRequest(frame)
	if err != nil {
		return "", err
	}
	return req.token(), nil
}

func (h *auditShardHandler) HandleRequest(_ context.Context, peer types.Ed25519Key, frame []byte) ([][]byte, error) {
	req, err := DecodeShardRequest(frame)
	if err != nil {
		return nil, err
	}
	h.bus.Publish(event.Event{Type: event.TypeAuditShardRequest, Peer: peer, Payload: req})

	bundle, _, justification, err := h.shards.Shard(req.ErasureRoot, req.ShardIndex)
	if err != nil {
		return nil, err
	}
	resp := AuditShardResponse{Bundle: bundle, Justification: justification}
	return [][]byte{resp.Encode()}, nil
}

func (h *auditShardHandler) HandleResponse(ctx context.Context, peer types.Ed25519Key, frame []byte) error {
	resp, err := DecodeAuditShardResponse(frame)
	if err != nil {
		return err
	}
	token, _ := handler.CorrelationFromContext(ctx)
	h.bus.Publish(event.Event{
		Type: event.TypeAuditShardResponse,
		Peer: peer,
		Payload: CorrelatedAuditShardResponse{Request: token, Response: resp},
	})
	return nil
}

// CorrelatedAuditShardResponse ties an audit-shard response to its
// request.
type CorrelatedAuditShardResponse struct {
	Request  string
	Response AuditShardResponse
}

// segmentShardHandler serves both segment-shard kinds; the justified
// variant differs only in its response shape.
type segmentShardHandler struct {
	log       log.Logger
	bus       *event.Bus
	shards    core.ShardStore
	justified bool
}

func newSegmentShardHandler(deps Dependencies, justified bool) *segmentShardHandler {
	return &segmentShardHandler{
		log:       deps.Log,
		bus:       deps.Bus,
		shards:    deps.Shards,
		justified: justified,
	}
}

func (h *segmentShardHandler) Kind() types.StreamKind {
	if h.justified {
		return types.StreamKindSegmentShardRequestJ
	}
	return types.StreamKindSegmentShardRequest
}

func (h *segmentShardHandler) RequestToken(frame []byte) (string, error) {
	req, err := DecodeSegmentShardRequest(frame)
	if err != nil {
		return "", err
	}
	return req.token(), nil
}

func (h *segmentShardHandler) HandleRequest(_ context.Context, peer types.Ed25519Key, frame []byte) ([][]byte, error) {
	req, err := DecodeSegmentShardRequest(frame)
	if err != nil {
		return nil, err
	}
	h.bus.Publish(event.Event{Type: event.TypeSegmentShardRequest, Peer: peer, Payload: req})

	resp := SegmentShardResponse{}
	for _, spec := range req.Specs {
		segments, justifications, err := h.shards.SegmentShards(spec.ErasureRoot, spec.ShardIndex, spec.SegmentIndexes, h.justified)
		if err != nil {
			return nil, err
		}
		resp.Segments = append(resp.Segments, segments...)
		resp.Justifications = append(resp.Justifications, justifications...)
	}
	return [][]byte{resp.encode(h.justified)}, nil
}

func (h *segmentShardHandler) HandleResponse(ctx context.Context, peer types.Ed25519Key, frame []byte) error {
	resp, err := decodeSegmentShardResponse(frame, h.justified)
	if err != nil {
		return err
	}
	token, _ := handler.CorrelationFromContext(ctx)
	h.bus.Publish(event.Event{
		Type: event.TypeSegmentShardResponse,
		Peer: peer,
		Payload: CorrelatedSegmentShardResponse{Request: token, Response: resp},
	})
	return nil
}

// CorrelatedSegmentShardResponse ties a segment-shard response to its
// request.
type CorrelatedSegmentShardResponse struct {
	Request  string
	Response SegmentShardResponse
}
