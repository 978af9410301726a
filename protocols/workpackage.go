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

// WorkPackageSubmission is a builder handing a work package to a
// guarantor of the named core.
type WorkPackageSubmission struct {
	CoreIndex   uint32
	WorkPackage []byte
	Extrinsics  []byte
}

func (r WorkPackageSubmission) Encode() []byte {
	p := codec.NewPacker(8 + len(r.WorkPackage) + len(r.Extrinsics))
	p.PackInt(r.CoreIndex)
	p.PackBytes(r.WorkPackage)
	p.PackFixedBytes(r.Extrinsics)
	return p.Bytes
}

func DecodeWorkPackageSubmission(b []byte) (WorkPackageSubmission, error) {
	u := codec.NewUnpacker(b)
	r := WorkPackageSubmission{
		CoreIndex:   u.UnpackInt(),
		WorkPackage: u.UnpackBytes(),
	}
	r.Extrinsics = u.UnpackFixedBytes(u.Remaining())
	return r, u.Done()
}

// SegmentRootMapping pairs a work-package hash with its segment-tree
// root.
type SegmentRootMapping struct {
	WorkPackageHash ids.ID
	SegmentRoot     ids.ID
}

// WorkPackageSharing is guarantor-to-guarantor package exchange.
type WorkPackageSharing struct {
	CoreIndex   uint32
	Mappings    []SegmentRootMapping
	WorkPackage []byte
}

func (r WorkPackageSharing) Encode() []byte {
	p := codec.NewPacker(8 + 64*len(r.Mappings) + len(r.WorkPackage))
	p.PackInt(r.CoreIndex)
	p.PackNat(uint64(len(r.Mappings)))
	for _, m := range r.Mappings {
		p.PackHash(m.WorkPackageHash)
		p.PackHash(m.SegmentRoot)
	}
	p.PackFixedBytes(r.WorkPackage)
	return p.Bytes
}

func DecodeWorkPackageSharing(b []byte) (WorkPackageSharing, error) {
	u := codec.NewUnpacker(b)
	r := WorkPackageSharing{CoreIndex: u.UnpackInt()}
	count := u.UnpackCount(64)
	for i := uint64(0); i < count && u.Err == nil; i++ {
		r.Mappings = append(r.Mappings, SegmentRootMapping{
			WorkPackageHash: u.UnpackHash(),
			SegmentRoot:     u.UnpackHash(),
		})
	}
	r.WorkPackage = u.UnpackFixedBytes(u.Remaining())
	return r, u.Done()
}

// WorkPackageSharingResponse is the receiving guarantor's signature over
// the resulting work-report hash. Always exactly 96 bytes.
type WorkPackageSharingResponse struct {
	WorkReportHash ids.ID
	Signature      [64]byte
}

func (r WorkPackageSharingResponse) Encode() []byte {
	p := codec.NewPacker(96)
	p.PackHash(r.WorkReportHash)
	p.PackFixedBytes(r.Signature[:])
	return p.Bytes
}

func DecodeWorkPackageSharingResponse(b []byte) (WorkPackageSharingResponse, error) {
	u := codec.NewUnpacker(b)
	r := WorkPackageSharingResponse{WorkReportHash: u.UnpackHash()}
	copy(r.Signature[:], u.UnpackFixedBytes(64))
	return r, u.Done()
}

type workPackageSubmissionHandler struct {
	log log.Logger
	bus *event.Bus
}

func newWorkPackageSubmissionHandler(deps Dependencies) *workPackageSubmissionHandler {
	return &workPackageSubmissionHandler{log: deps.Log, bus: deps.Bus}
}

func (*workPackageSubmissionHandler) Kind() types.StreamKind {
	return types.StreamKindWorkPackageSubmission
}

func (h *workPackageSubmissionHandler) HandleRequest(_ context.Context, peer types.Ed25519Key, frame []byte) ([][]byte, error) {
	req, err := DecodeWorkPackageSubmission(frame)
	if err != nil {
		return nil, err
	}
	h.bus.Publish(event.Event{Type: event.TypeWorkPackageSharing, Peer: peer, Payload: req})
	return nil, nil
}

func (h *workPackageSubmissionHandler) HandleResponse(context.Context, types.Ed25519Key, []byte) error {
	return nil
}

type workPackageSharingHandler struct {
	log       log.Logger
	bus       *event.Bus
	guarantor core.Guarantor
}

func newWorkPackageSharingHandler(deps Dependencies) *workPackageSharingHandler {
	return &workPackageSharingHandler{
		log:       deps.Log,
		bus:       deps.Bus,
		guarantor: deps.Guarantor,
	}
}

func (*workPackageSharingHandler) Kind() types.StreamKind {
	return types.StreamKindWorkPackageSharing
}

func (h *workPackageSharingHandler) HandleRequest(ctx context.Context, peer types.Ed25519Key, frame []byte) ([][]byte, error) {
	req, err := DecodeWorkPackageSharing(frame)
	if err != nil {
		return nil, err
	}
	h.bus.Publish(event.Event{Type: event.TypeWorkPackageSharing, Peer: peer, Payload: req})

	// Non-guarantor nodes accept the package without signing.
	if h.guarantor == nil {
		return nil, nil
	}
	hash, sig, err := h.guarantor.EvaluateWorkPackage(ctx, req.CoreIndex, req.WorkPackage)
	if err != nil {
		return nil, err
	}
	resp := WorkPackageSharingResponse{WorkReportHash: hash, Signature: sig}
	return [][]byte{resp.Encode()}, nil
}

func (h *workPackageSharingHandler) HandleResponse(_ context.Context, peer types.Ed25519Key, frame []byte) error {
	resp, err := DecodeWorkPackageSharingResponse(frame)
	if err != nil {
		return err
	}
	h.bus.Publish(event.Event{Type: event.TypeWorkPackageSharingResponse, Peer: peer, Payload: resp})
	return nil
}
