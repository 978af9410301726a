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

// ValidatorSignature is one guarantor's endorsement of a work report.
type ValidatorSignature struct {
	ValidatorIndex uint16
	Signature      [64]byte
}

// WorkReportDistribution pushes a guaranteed work report, its slot and the
// guarantors' signatures to a validator.
type WorkReportDistribution struct {
	WorkReport []byte
	Slot       uint32
	Signatures []ValidatorSignature
}

func (r WorkReportDistribution) Encode() []byte {
	p := codec.NewPacker(16 + len(r.WorkReport) + 66*len(r.Signatures))
	p.PackBytes(r.WorkReport)
	p.PackInt(r.Slot)
	p.PackNat(uint64(len(r.Signatures)))
	for _, s := range r.Signatures {
		p.PackShort(s.ValidatorIndex)
		p.PackFixedBytes(s.Signature[:])
	}
	return p.Bytes
}

func DecodeWorkReportDistribution(b []byte) (WorkReportDistribution, error) {
	u := codec.NewUnpacker(b)
	r := WorkReportDistribution{
		WorkReport: u.UnpackBytes(),
		Slot:       u.UnpackInt(),
	}
	count := u.UnpackCount(66)
	for i := uint64(0); i < count && u.Err == nil; i++ {
		var s ValidatorSignature
		s.ValidatorIndex = u.UnpackShort()
		copy(s.Signature[:], u.UnpackFixedBytes(64))
		r.Signatures = append(r.Signatures, s)
	}
	return r, u.Done()
}

// WorkReportRequest fetches a work report by hash.
type WorkReportRequest struct {
	WorkReportHash ids.ID
}

func (r WorkReportRequest) Encode() []byte {
	p := codec.NewPacker(32)
	p.PackHash(r.WorkReportHash)
	return p.Bytes
}

func DecodeWorkReportRequest(b []byte) (WorkReportRequest, error) {
	u := codec.NewUnpacker(b)
	r := WorkReportRequest{WorkReportHash: u.UnpackHash()}
	return r, u.Done()
}

type workReportDistHandler struct {
	log log.Logger
	bus *event.Bus
}

func newWorkReportDistHandler(deps Dependencies) *workReportDistHandler {
	return &workReportDistHandler{log: deps.Log, bus: deps.Bus}
}

func (*workReportDistHandler) Kind() types.StreamKind {
	return types.StreamKindWorkReportDist
}

func (h *workReportDistHandler) HandleRequest(_ context.Context, peer types.Ed25519Key, frame []byte) ([][]byte, error) {
	req, err := DecodeWorkReportDistribution(frame)
	if err != nil {
		return nil, err
	}
	h.bus.Publish(event.Event{Type: event.TypeWorkReportDistribution, Peer: peer, Payload: req})
	return nil, nil
}

func (h *workReportDistHandler) HandleResponse(context.Context, types.Ed25519Key, []byte) error {
	return nil
}

type workReportRequestHandler struct {
	log     log.Logger
	bus     *event.Bus
	reports core.WorkReportStore
}

func newWorkReportRequestHandler(deps Dependencies) *workReportRequestHandler {
	return &workReportRequestHandler{
		log:     deps.Log,
		bus:     deps.Bus,
		reports: deps.Reports,
	}
}

func (*workReportRequestHandler) Kind() types.StreamKind {
	return types.StreamKindWorkReportRequest
}

func (h *workReportRequestHandler) RequestToken(frame []byte) (string, error) {
	req, err := DecodeWorkReportRequest(frame)
	if err != nil {
		return "", err
	}
	return req.WorkReportHash.String(), nil
}

func (h *workReportRequestHandler) HandleRequest(_ context.Context, peer types.Ed25519Key, frame []byte) ([][]byte, error) {
	req, err := DecodeWorkReportRequest(frame)
	if err != nil {
		return nil, err
	}
	h.bus.Publish(event.Event{Type: event.TypeWorkReportRequest, Peer: peer, Payload: req})

	report, ok := h.reports.WorkReport(req.WorkReportHash)
	if !ok {
		return nil, ErrInsufficientData
	}
	// The response is the encoded report itself.
	return [][]byte{report}, nil
}

func (h *workReportRequestHandler) HandleResponse(ctx context.Context, peer types.Ed25519Key, frame []byte) error {
	token, _ := handler.CorrelationFromContext(ctx)
	h.bus.Publish(event.Event{
		Type: event.TypeWorkReportResponse,
		Peer: peer,
		Payload: WorkReportResponse{
			WorkReportHash: token,
			WorkReport:     frame,
		},
	})
	return nil
}

// WorkReportResponse is the event payload for a fetched report; the hash
// is the requested one, echoed from the exchange's correlation.
type WorkReportResponse struct {
	WorkReportHash string
	WorkReport     []byte
}
