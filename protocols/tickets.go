// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package protocols

import (
	"context"
	"fmt"

	"github.com/luxfi/log"

	"github.com/luxfi/jamnp/codec"
	"github.com/luxfi/jamnp/core"
	"github.com/luxfi/jamnp/epoch"
	"github.com/luxfi/jamnp/event"
	"github.com/luxfi/jamnp/types"
	"github.com/luxfi/jamnp/validators"
)

// TicketProofLen is the size of a Bandersnatch ring-VRF ticket proof.
const TicketProofLen = 784

// TicketDistribution is the payload of both ticket stream kinds: the
// epoch the ticket is for, its entry index, and the ring-VRF proof the
// proxy is derived from.
type TicketDistribution struct {
	Epoch   uint32
	Attempt uint8
	Proof   [TicketProofLen]byte
}

func (t TicketDistribution) Encode() []byte {
	p := codec.NewPacker(5 + TicketProofLen)
	p.PackInt(t.Epoch)
	p.PackByte(t.Attempt)
	p.PackFixedBytes(t.Proof[:])
	return p.Bytes
}

func DecodeTicketDistribution(b []byte) (TicketDistribution, error) {
	u := codec.NewUnpacker(b)
	t := TicketDistribution{
		Epoch:   u.UnpackInt(),
		Attempt: u.UnpackByte(),
	}
	copy(t.Proof[:], u.UnpackFixedBytes(TicketProofLen))
	return t, u.Done()
}

// ticketBase is the decode/verify path both ticket kinds share.
type ticketBase struct {
	log     log.Logger
	bus     *event.Bus
	tickets core.TicketService
	maxAttempts uint8
}

func (h *ticketBase) decodeAndVerify(ctx context.Context, frame []byte) (TicketDistribution, error) {
	t, err := DecodeTicketDistribution(frame)
	if err != nil {
		return t, err
	}
	if t.Attempt >= h.maxAttempts {
		return t, fmt.Errorf("%w: %d >= %d", ErrInvalidAttempt, t.Attempt, h.maxAttempts)
	}
	if err := h.tickets.VerifyProof(ctx, t.Epoch, t.Attempt, t.Proof[:]); err != nil {
		return t, fmt.Errorf("%w: %v", ErrInvalidTicket, err)
	}
	return t, nil
}

// ticketDistributionHandler serves the generator → proxy step. Receiving
// a ticket here asserts that this node is the ticket's proxy, and that
// assertion is recomputed from the proof before anything is stored.
type ticketDistributionHandler struct {
	ticketBase
	self types.Ed25519Key
	sets *validators.SetManager
}

func newTicketDistributionHandler(deps Dependencies) *ticketDistributionHandler {
	return &ticketDistributionHandler{
		ticketBase: ticketBase{
			log:         deps.Log,
			bus:         deps.Bus,
			tickets:     deps.Tickets,
			maxAttempts: deps.Params.MaxTicketsPerExtrinsic,
		},
		self: deps.Self,
		sets: deps.Sets,
	}
}

func (*ticketDistributionHandler) Kind() types.StreamKind {
	return types.StreamKindTicketDistribution
}

func (h *ticketDistributionHandler) HandleRequest(ctx context.Context, peer types.Ed25519Key, frame []byte) ([][]byte, error) {
	t, err := h.decodeAndVerify(ctx, frame)
	if err != nil {
		return nil, err
	}

	active := uint32(len(h.sets.Current()))
	proxy, err := h.tickets.ProxyIndex(t.Proof[:], active)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTicket, err)
	}
	selfIdx, ok := h.sets.CurrentIndex(h.self)
	if !ok || proxy != selfIdx {
		return nil, fmt.Errorf("%w: ticket names validator %d", ErrNotIntendedProxy, proxy)
	}

	h.bus.Publish(event.Event{Type: event.TypeTicketDistributionRequest, Peer: peer, Payload: t})
	return nil, nil
}

func (h *ticketDistributionHandler) HandleResponse(context.Context, types.Ed25519Key, []byte) error {
	// Fire-and-forget: the responder sends nothing.
	return nil
}

// ticketForwardingHandler serves the proxy → everyone step; receivers
// verify and store.
type ticketForwardingHandler struct {
	ticketBase
	epochs *epoch.Manager
}

func newTicketForwardingHandler(deps Dependencies) *ticketForwardingHandler {
	return &ticketForwardingHandler{
		ticketBase: ticketBase{
			log:         deps.Log,
			bus:         deps.Bus,
			tickets:     deps.Tickets,
			maxAttempts: deps.Params.MaxTicketsPerExtrinsic,
		},
		epochs: deps.Epochs,
	}
}

func (*ticketForwardingHandler) Kind() types.StreamKind {
	return types.StreamKindTicketForwarding
}

func (h *ticketForwardingHandler) HandleRequest(ctx context.Context, peer types.Ed25519Key, frame []byte) ([][]byte, error) {
	t, err := h.decodeAndVerify(ctx, frame)
	if err != nil {
		return nil, err
	}
	h.bus.Publish(event.Event{Type: event.TypeTicketDistributionRequest, Peer: peer, Payload: t})
	return nil, nil
}

func (h *ticketForwardingHandler) HandleResponse(context.Context, types.Ed25519Key, []byte) error {
	return nil
}
