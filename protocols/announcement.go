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
	"github.com/luxfi/jamnp/utils/set"
)

// Handshake is the first frame each side of a fresh announcement stream
// sends: its finalised block and the leaves above it.
type Handshake struct {
	Final  types.BlockRef
	Leaves []types.BlockRef
}

// Announcement is every later frame: a chain-encoded header followed by
// the sender's finalised block.
type Announcement struct {
	Header []byte
	Final  types.BlockRef
}

func packBlockRef(p *codec.Packer, ref types.BlockRef) {
	p.PackHash(ref.Hash)
	p.PackInt(ref.Slot)
}

func unpackBlockRef(u *codec.Unpacker) types.BlockRef {
	return types.BlockRef{
		Hash: u.UnpackHash(),
		Slot: u.UnpackInt(),
	}
}

func (h Handshake) Encode() []byte {
	p := codec.NewPacker(types.BlockRefLen * (1 + len(h.Leaves)))
	packBlockRef(p, h.Final)
	p.PackNat(uint64(len(h.Leaves)))
	for _, leaf := range h.Leaves {
		packBlockRef(p, leaf)
	}
	return p.Bytes
}

// DecodeHandshake accepts only frames that are exactly a handshake; the
// caller uses the failure to fall back to announcement decoding.
func DecodeHandshake(b []byte) (Handshake, error) {
	u := codec.NewUnpacker(b)
	h := Handshake{Final: unpackBlockRef(u)}
	count := u.UnpackCount(types.BlockRefLen)
	for i := uint64(0); i < count && u.Err == nil; i++ {
		h.Leaves = append(h.Leaves, unpackBlockRef(u))
	}
	return h, u.Done()
}

func (a Announcement) Encode() []byte {
	p := codec.NewPacker(len(a.Header) + types.BlockRefLen)
	p.PackFixedBytes(a.Header)
	packBlockRef(p, a.Final)
	return p.Bytes
}

// DecodeAnnouncement splits a frame into header and trailing finalised
// pointer. The header is opaque, so it is everything before the final 36
// bytes.
func DecodeAnnouncement(b []byte) (Announcement, error) {
	if len(b) <= types.BlockRefLen {
		return Announcement{}, ErrInsufficientData
	}
	split := len(b) - types.BlockRefLen
	u := codec.NewUnpacker(b[split:])
	a := Announcement{
		Header: b[:split],
		Final:  unpackBlockRef(u),
	}
	return a, u.Done()
}

// announceState is what one stream remembers about its peer.
type announceState struct {
	handshaken bool
	final      types.BlockRef
	leaves     set.Set[ids.ID]
}

type announcementHandler struct {
	log   log.Logger
	bus   *event.Bus
	chain core.ChainManager
}

func newAnnouncementHandler(deps Dependencies) *announcementHandler {
	return &announcementHandler{
		log:   deps.Log,
		bus:   deps.Bus,
		chain: deps.Chain,
	}
}

func (*announcementHandler) Kind() types.StreamKind {
	return types.StreamKindBlockAnnouncement
}

// ServeStream runs the persistent protocol from either side: send our
// handshake, then consume the peer's frames until the stream dies.
func (h *announcementHandler) ServeStream(ctx context.Context, peer types.Ed25519Key, fs handler.FrameStream) error {
	own := Handshake{
		Final:  h.chain.Finalized(),
		Leaves: h.chain.Leaves(),
	}
	if err := fs.WriteFrame(own.Encode()); err != nil {
		return err
	}

	st := &announceState{leaves: set.NewSet[ids.ID](8)}
	for {
		frame, err := fs.ReadFrame()
		if err != nil {
			return err
		}
		if err := h.consume(peer, st, frame); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// consume applies one inbound frame to the stream state. Handshake decode
// is attempted first; anything that is not exactly a handshake must be an
// announcement.
func (h *announcementHandler) consume(peer types.Ed25519Key, st *announceState, frame []byte) error {
	if hs, err := DecodeHandshake(frame); err == nil && !st.handshaken {
		st.handshaken = true
		st.final = hs.Final
		for _, leaf := range hs.Leaves {
			st.leaves.Add(leaf.Hash)
		}
		h.bus.Publish(event.Event{Type: event.TypeBlockAnnouncementHandshake, Peer: peer, Payload: hs})
		return nil
	}

	ann, err := DecodeAnnouncement(frame)
	if err != nil {
		return err
	}
	if ann.Final.Slot > st.final.Slot {
		st.final = ann.Final
	}
	if hash, err := h.chain.HeaderHash(ann.Header); err == nil {
		st.leaves.Add(hash)
	}
	// The header always goes up, whatever we think of the pointer.
	h.bus.Publish(event.Event{Type: event.TypeBlockAnnouncementWithHeader, Peer: peer, Payload: ann})
	return nil
}

// HandleRequest covers the framework contract for the rare case of a
// single frame arriving outside ServeStream.
func (h *announcementHandler) HandleRequest(_ context.Context, peer types.Ed25519Key, frame []byte) ([][]byte, error) {
	st := &announceState{leaves: set.NewSet[ids.ID](1)}
	return nil, h.consume(peer, st, frame)
}

func (h *announcementHandler) HandleResponse(ctx context.Context, peer types.Ed25519Key, frame []byte) error {
	_, err := h.HandleRequest(ctx, peer, frame)
	return err
}
