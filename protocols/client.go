// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package protocols

import (
	"context"
	"errors"
	"fmt"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/jamnp/epoch"
	"github.com/luxfi/jamnp/networking/peers"
	"github.com/luxfi/jamnp/networking/router"
	"github.com/luxfi/jamnp/types"
	"github.com/luxfi/jamnp/validators"
)

var ErrPeerNotConnected = errors.New("protocols: peer not connected")

// Client opens exchanges toward other validators. One typed method per
// stream kind; responses come back through the event bus via the
// handlers.
type Client struct {
	log     log.Logger
	router  *router.Router
	peers   *peers.Manager
	sets    *validators.SetManager
	epochs  *epoch.Manager
	tickets interface {
		ProxyIndex(proof []byte, numValidators uint32) (types.ValidatorIndex, error)
	}
}

// NewClient wires a client over the running stack.
func NewClient(deps Dependencies, rt *router.Router, pm *peers.Manager) *Client {
	return &Client{
		log:     deps.Log,
		router:  rt,
		peers:   pm,
		sets:    deps.Sets,
		epochs:  deps.Epochs,
		tickets: deps.Tickets,
	}
}

func (c *Client) call(ctx context.Context, peer types.Ed25519Key, kind types.StreamKind, request []byte) error {
	conn, ok := c.peers.ConnectionTo(peer)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPeerNotConnected, peer)
	}
	return c.router.Call(ctx, conn, kind, request)
}

func (c *Client) notify(ctx context.Context, peer types.Ed25519Key, kind types.StreamKind, request []byte) error {
	conn, ok := c.peers.ConnectionTo(peer)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPeerNotConnected, peer)
	}
	return c.router.Notify(ctx, conn, kind, request)
}

// RequestBlocks asks one peer for blocks; the result arrives as a
// BlocksReceived event.
func (c *Client) RequestBlocks(ctx context.Context, peer types.Ed25519Key, req BlockRequest) error {
	return c.call(ctx, peer, types.StreamKindBlockRequest, req.Encode())
}

// RequestState runs a state range query.
func (c *Client) RequestState(ctx context.Context, peer types.Ed25519Key, req StateRequest) error {
	return c.call(ctx, peer, types.StreamKindStateRequest, req.Encode())
}

// SubmitTicket sends a generated ticket to its proxy, derived from the
// proof the same way the proxy itself will re-derive it.
func (c *Client) SubmitTicket(ctx context.Context, t TicketDistribution) error {
	active := uint32(len(c.sets.Current()))
	proxy, err := c.tickets.ProxyIndex(t.Proof[:], active)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTicket, err)
	}
	conn, ok := c.peers.ConnectionToIndex(proxy)
	if !ok {
		return fmt.Errorf("%w: proxy %d", ErrPeerNotConnected, proxy)
	}
	return c.router.Notify(ctx, conn, types.StreamKindTicketDistribution, t.Encode())
}

// ForwardTicket fans a proxied ticket out to every connected current
// validator. Only valid once the forwarding window is open.
func (c *Client) ForwardTicket(ctx context.Context, slot uint32, t TicketDistribution) error {
	if !c.epochs.InForwardingWindow(slot) {
		return ErrForwardingTooEarly
	}
	frame := t.Encode()
	var firstErr error
	for _, conn := range c.peers.CurrentConnections() {
		if err := c.router.Notify(ctx, conn, types.StreamKindTicketForwarding, frame); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// AnnounceBlock writes an announcement on every live grid-neighbour
// announcement stream.
func (c *Client) AnnounceBlock(ann Announcement) {
	frame := ann.Encode()
	for _, conn := range c.peers.NeighborConnections() {
		s, ok := conn.PersistentStream(types.StreamKindBlockAnnouncement)
		if !ok {
			continue
		}
		if err := s.WriteFrame(frame); err != nil {
			c.log.Debug("failed announcing block",
				log.Stringer("peer", conn.PeerKey()),
				log.Err(err))
		}
	}
}

// SubmitWorkPackage sends a work package to a guarantor.
func (c *Client) SubmitWorkPackage(ctx context.Context, guarantor types.Ed25519Key, req WorkPackageSubmission) error {
	return c.notify(ctx, guarantor, types.StreamKindWorkPackageSubmission, req.Encode())
}

// ShareWorkPackage shares a package with a co-guarantor and collects its
// signature via the WorkPackageSharingResponse event.
func (c *Client) ShareWorkPackage(ctx context.Context, guarantor types.Ed25519Key, req WorkPackageSharing) error {
	return c.call(ctx, guarantor, types.StreamKindWorkPackageSharing, req.Encode())
}

// DistributeWorkReport pushes a guaranteed report to one validator.
func (c *Client) DistributeWorkReport(ctx context.Context, peer types.Ed25519Key, req WorkReportDistribution) error {
	return c.notify(ctx, peer, types.StreamKindWorkReportDist, req.Encode())
}

// RequestWorkReport fetches a report by hash.
func (c *Client) RequestWorkReport(ctx context.Context, peer types.Ed25519Key, hash ids.ID) error {
	return c.call(ctx, peer, types.StreamKindWorkReportRequest, WorkReportRequest{WorkReportHash: hash}.Encode())
}

// RequestShard fetches a full availability shard.
func (c *Client) RequestShard(ctx context.Context, peer types.Ed25519Key, req ShardRequest) error {
	return c.call(ctx, peer, types.StreamKindShardDist, req.Encode())
}

// RequestAuditShard fetches the audit subset of a shard.
func (c *Client) RequestAuditShard(ctx context.Context, peer types.Ed25519Key, req ShardRequest) error {
	return c.call(ctx, peer, types.StreamKindAuditShardRequest, req.Encode())
}

// RequestSegmentShards fetches segment shards, optionally justified.
func (c *Client) RequestSegmentShards(ctx context.Context, peer types.Ed25519Key, req SegmentShardRequest, justified bool) error {
	kind := types.StreamKindSegmentShardRequest
	if justified {
		kind = types.StreamKindSegmentShardRequestJ
	}
	return c.call(ctx, peer, kind, req.Encode())
}

// DistributeAssurance sends an availability assurance to one validator.
func (c *Client) DistributeAssurance(ctx context.Context, peer types.Ed25519Key, req AssuranceDistribution) error {
	return c.notify(ctx, peer, types.StreamKindAssuranceDist, req.Encode())
}

// AnnouncePreimage advertises a held preimage.
func (c *Client) AnnouncePreimage(ctx context.Context, peer types.Ed25519Key, req PreimageAnnouncement) error {
	return c.notify(ctx, peer, types.StreamKindPreimageAnnouncement, req.Encode())
}

// RequestPreimage fetches a preimage by hash.
func (c *Client) RequestPreimage(ctx context.Context, peer types.Ed25519Key, hash ids.ID) error {
	return c.call(ctx, peer, types.StreamKindPreimageRequest, PreimageRequest{Hash: hash}.Encode())
}

// AnnounceAudit sends an audit announcement to a fellow auditor.
func (c *Client) AnnounceAudit(ctx context.Context, peer types.Ed25519Key, req AuditAnnouncement) error {
	return c.notify(ctx, peer, types.StreamKindAuditAnnouncement, req.Encode())
}

// PublishJudgment publishes a judgment to one validator.
func (c *Client) PublishJudgment(ctx context.Context, peer types.Ed25519Key, req JudgmentPublication) error {
	return c.notify(ctx, peer, types.StreamKindJudgmentPublication, req.Encode())
}
