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
	"github.com/luxfi/jamnp/networking/handler"
	"github.com/luxfi/jamnp/types"
)

// PreimageAnnouncement advertises that the sender holds a preimage a
// service requested.
type PreimageAnnouncement struct {
	ServiceID uint32
	Hash      ids.ID
	Length    uint32
}

func (r PreimageAnnouncement) Encode() []byte {
	p := codec.NewPacker(40)
	p.PackInt(r.ServiceID)
	p.PackHash(r.Hash)
	p.PackInt(r.Length)
	return p.Bytes
}

func DecodePreimageAnnouncement(b []byte) (PreimageAnnouncement, error) {
	u := codec.NewUnpacker(b)
	r := PreimageAnnouncement{
		ServiceID: u.UnpackInt(),
		Hash:      u.UnpackHash(),
		Length:    u.UnpackInt(),
	}
	return r, u.Done()
}

// PreimageRequest fetches a preimage by hash.
type PreimageRequest struct {
	Hash ids.ID
}

func (r PreimageRequest) Encode() []byte {
	p := codec.NewPacker(32)
	p.PackHash(r.Hash)
	return p.Bytes
}

func DecodePreimageRequest(b []byte) (PreimageRequest, error) {
	u := codec.NewUnpacker(b)
	r := PreimageRequest{Hash: u.UnpackHash()}
	return r, u.Done()
}

type preimageAnnouncementHandler struct {
	log log.Logger
	bus *event.Bus
}

func newPreimageAnnouncementHandler(deps Dependencies) *preimageAnnouncementHandler {
	return &preimageAnnouncementHandler{log: deps.Log, bus: deps.Bus}
}

func (*preimageAnnouncementHandler) Kind() types.StreamKind {
	return types.StreamKindPreimageAnnouncement
}

func (h *preimageAnnouncementHandler) HandleRequest(_ context.Context, peer types.Ed25519Key, frame []byte) ([][]byte, error) {
	req, err := DecodePreimageAnnouncement(frame)
	if err != nil {
		return nil, err
	}
	h.bus.Publish(event.Event{Type: event.TypePreimageAnnouncementReceived, Peer: peer, Payload: req})
	return nil, nil
}

func (h *preimageAnnouncementHandler) HandleResponse(context.Context, types.Ed25519Key, []byte) error {
	return nil
}

type preimageRequestHandler struct {
	log       log.Logger
	bus       *event.Bus
	preimages core.PreimageStore
}

func newPreimageRequestHandler(deps Dependencies) *preimageRequestHandler {
	return &preimageRequestHandler{
		log:       deps.Log,
		bus:       deps.Bus,
		preimages: deps.Preimages,
	}
}

func (*preimageRequestHandler) Kind() types.StreamKind {
	return types.StreamKindPreimageRequest
}

func (h *preimageRequestHandler) RequestToken(frame []byte) (string, error) {
	req, err := DecodePreimageRequest(frame)
	if err != nil {
		return "", err
	}
	return req.Hash.String(), nil
}

func (h *preimageRequestHandler) HandleRequest(_ context.Context, peer types.Ed25519Key, frame []byte) ([][]byte, error) {
	req, err := DecodePreimageRequest(frame)
	if err != nil {
		return nil, err
	}
	h.bus.Publish(event.Event{Type: event.TypePreimageRequested, Peer: peer, Payload: req})

	preimage, ok := h.preimages.Preimage(req.Hash)
	if !ok {
		return nil, ErrInsufficientData
	}
	return [][]byte{preimage}, nil
}

func (h *preimageRequestHandler) HandleResponse(ctx context.Context, peer types.Ed25519Key, frame []byte) error {
	token, _ := handler.CorrelationFromContext(ctx)
	h.bus.Publish(event.Event{
		Type: event.TypePreimageReceived,
		Peer: peer,
		Payload: PreimageReceived{
			Hash:     token,
			Preimage: frame,
		},
	})
	return nil
}

// PreimageReceived is the event payload for a fetched preimage.
type PreimageReceived struct {
	Hash     string
	Preimage []byte
}
