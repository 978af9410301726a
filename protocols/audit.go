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

// CoreAnnouncement names one core's work report inside an audit
// announcement.
type CoreAnnouncement struct {
	CoreIndex      uint32
	WorkReportHash ids.ID
}

// AuditAnnouncement declares which reports the sender is auditing in a
// tranche, with its signature and any negative-judgment evidence.
type AuditAnnouncement struct {
	HeaderHash    ids.ID
	Tranche       uint32
	Announcements []CoreAnnouncement
	Signature     [64]byte
	Evidence      []byte
}

func (r AuditAnnouncement) Encode() []byte {
	p := codec.NewPacker(128 + 36*len(r.Announcements) + len(r.Evidence))
	p.PackHash(r.HeaderHash)
	p.PackInt(r.Tranche)
	p.PackNat(uint64(len(r.Announcements)))
	for _, a := range r.Announcements {
		p.PackInt(a.CoreIndex)
		p.PackHash(a.WorkReportHash)
	}
	p.PackFixedBytes(r.Signature[:])
	p.PackBytes(r.Evidence)
	return p.Bytes
}

func DecodeAuditAnnouncement(b []byte) (AuditAnnouncement, error) {
	u := codec.NewUnpacker(b)
	r := AuditAnnouncement{
		HeaderHash: u.UnpackHash(),
		Tranche:    u.UnpackInt(),
	}
	count := u.UnpackCount(36)
	for i := uint64(0); i < count && u.Err == nil; i++ {
		r.Announcements = append(r.Announcements, CoreAnnouncement{
			CoreIndex:      u.UnpackInt(),
			WorkReportHash: u.UnpackHash(),
		})
	}
	copy(r.Signature[:], u.UnpackFixedBytes(64))
	r.Evidence = u.UnpackBytes()
	return r, u.Done()
}

// JudgmentPublication publishes one validator's judgment on a work
// report.
type JudgmentPublication struct {
	Epoch          uint32
	ValidatorIndex uint32
	Validity       uint32
	WorkReportHash ids.ID
	Signature      [32]byte
}

func (r JudgmentPublication) Encode() []byte {
	p := codec.NewPacker(80)
	p.PackInt(r.Epoch)
	p.PackInt(r.ValidatorIndex)
	p.PackNat(uint64(r.Validity))
	p.PackHash(r.WorkReportHash)
	p.PackFixedBytes(r.Signature[:])
	return p.Bytes
}

func DecodeJudgmentPublication(b []byte) (JudgmentPublication, error) {
	u := codec.NewUnpacker(b)
	r := JudgmentPublication{
		Epoch:          u.UnpackInt(),
		ValidatorIndex: u.UnpackInt(),
		Validity:       uint32(u.UnpackNat()),
	}
	r.WorkReportHash = u.UnpackHash()
	copy(r.Signature[:], u.UnpackFixedBytes(32))
	return r, u.Done()
}

type auditAnnouncementHandler struct {
	log log.Logger
	bus *event.Bus
}

func newAuditAnnouncementHandler(deps Dependencies) *auditAnnouncementHandler {
	return &auditAnnouncementHandler{log: deps.Log, bus: deps.Bus}
}

func (*auditAnnouncementHandler) Kind() types.StreamKind {
	return types.StreamKindAuditAnnouncement
}

func (h *auditAnnouncementHandler) HandleRequest(_ context.Context, peer types.Ed25519Key, frame []byte) ([][]byte, error) {
	req, err := DecodeAuditAnnouncement(frame)
	if err != nil {
		return nil, err
	}
	if len(req.Announcements) > codec.MaxSaneItems {
		h.log.Warn("oversized audit announcement",
			log.Stringer("peer", peer),
			log.Int("cores", len(req.Announcements)))
	}
	h.bus.Publish(event.Event{Type: event.TypeAuditAnnouncementReceived, Peer: peer, Payload: req})
	return nil, nil
}

func (h *auditAnnouncementHandler) HandleResponse(context.Context, types.Ed25519Key, []byte) error {
	return nil
}

type judgmentHandler struct {
	log       log.Logger
	bus       *event.Bus
	judgments core.JudgmentStore
}

func newJudgmentHandler(deps Dependencies) *judgmentHandler {
	return &judgmentHandler{
		log:       deps.Log,
		bus:       deps.Bus,
		judgments: deps.Judgments,
	}
}

func (*judgmentHandler) Kind() types.StreamKind {
	return types.StreamKindJudgmentPublication
}

func (h *judgmentHandler) HandleRequest(_ context.Context, peer types.Ed25519Key, frame []byte) ([][]byte, error) {
	req, err := DecodeJudgmentPublication(frame)
	if err != nil {
		return nil, err
	}
	if h.judgments != nil {
		if err := h.judgments.PutJudgment(req.Epoch, types.ValidatorIndex(req.ValidatorIndex), req.WorkReportHash, frame); err != nil {
			return nil, err
		}
	}
	h.bus.Publish(event.Event{Type: event.TypeJudgmentReceived, Peer: peer, Payload: req})
	return nil, nil
}

func (h *judgmentHandler) HandleResponse(context.Context, types.Ed25519Key, []byte) error {
	return nil
}
