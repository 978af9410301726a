// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package protocols

import (
	"context"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/jamnp/codec"
	"github.com/luxfi/jamnp/event"
	"github.com/luxfi/jamnp/types"
	"github.com/luxfi/jamnp/utils/math"
)

// AssuranceDistribution is an assurer's availability statement: one bit
// per core under an anchor block, signed.
type AssuranceDistribution struct {
	Anchor    ids.ID
	Bitfield  []byte
	Signature [64]byte
}

// assuranceBitfieldLen is the fixed bitfield width for a chain with
// numCores cores.
func assuranceBitfieldLen(numCores uint32) int {
	return math.CeilDiv(int(numCores), 8)
}

func (r AssuranceDistribution) Encode() []byte {
	p := codec.NewPacker(96 + len(r.Bitfield))
	p.PackHash(r.Anchor)
	p.PackFixedBytes(r.Bitfield)
	p.PackFixedBytes(r.Signature[:])
	return p.Bytes
}

// DecodeAssuranceDistribution needs the chain's core count: the bitfield
// is fixed-width, not length-prefixed.
func DecodeAssuranceDistribution(b []byte, numCores uint32) (AssuranceDistribution, error) {
	u := codec.NewUnpacker(b)
	r := AssuranceDistribution{Anchor: u.UnpackHash()}
	r.Bitfield = u.UnpackFixedBytes(assuranceBitfieldLen(numCores))
	copy(r.Signature[:], u.UnpackFixedBytes(64))
	return r, u.Done()
}

type assuranceHandler struct {
	log      log.Logger
	bus      *event.Bus
	numCores uint32
}

func newAssuranceHandler(deps Dependencies) *assuranceHandler {
	return &assuranceHandler{
		log:      deps.Log,
		bus:      deps.Bus,
		numCores: deps.Params.NumCores,
	}
}

func (*assuranceHandler) Kind() types.StreamKind {
	return types.StreamKindAssuranceDist
}

func (h *assuranceHandler) HandleRequest(_ context.Context, peer types.Ed25519Key, frame []byte) ([][]byte, error) {
	req, err := DecodeAssuranceDistribution(frame, h.numCores)
	if err != nil {
		return nil, err
	}
	h.bus.Publish(event.Event{Type: event.TypeAssuranceReceived, Peer: peer, Payload: req})
	return nil, nil
}

func (h *assuranceHandler) HandleResponse(context.Context, types.Ed25519Key, []byte) error {
	return nil
}
