// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package event is the seam between the networking layer and the
// subsystems above it. Protocol handlers publish; chain, ticket, preimage
// and audit services subscribe and drain from their own goroutines.
package event

import (
	"sync"

	"github.com/luxfi/log"

	"github.com/luxfi/jamnp/types"
)

// Type names one event stream.
type Type string

const (
	TypeBlocksRequested              Type = "BlocksRequested"
	TypeBlocksReceived               Type = "BlocksReceived"
	TypeStateRequested               Type = "StateRequested"
	TypeStateResponse                Type = "StateResponse"
	TypeTicketDistributionRequest    Type = "TicketDistributionRequest"
	TypeWorkReportRequest            Type = "WorkReportRequest"
	TypeWorkReportResponse           Type = "WorkReportResponse"
	TypeWorkReportDistribution       Type = "WorkReportDistribution"
	TypeShardDistributionRequest     Type = "ShardDistributionRequest"
	TypeShardDistributionResponse    Type = "ShardDistributionResponse"
	TypeAuditShardRequest            Type = "AuditShardRequest"
	TypeAuditShardResponse           Type = "AuditShardResponse"
	TypeSegmentShardRequest          Type = "SegmentShardRequest"
	TypeSegmentShardResponse         Type = "SegmentShardResponse"
	TypeAssuranceReceived            Type = "AssuranceReceived"
	TypePreimageAnnouncementReceived Type = "PreimageAnnouncementReceived"
	TypePreimageRequested            Type = "PreimageRequested"
	TypePreimageReceived             Type = "PreimageReceived"
	TypeBlockAnnouncementHandshake   Type = "BlockAnnouncementHandshake"
	TypeBlockAnnouncementWithHeader  Type = "BlockAnnouncementWithHeader"
	TypeWorkPackageSharing           Type = "WorkPackageSharing"
	TypeWorkPackageSharingResponse   Type = "WorkPackageSharingResponse"
	TypeAuditAnnouncementReceived    Type = "AuditAnnouncementReceived"
	TypeJudgmentReceived             Type = "JudgmentReceived"
)

// Event is one published occurrence. Payload is the decoded protocol
// message that caused it.
type Event struct {
	Type    Type
	Peer    types.Ed25519Key
	Payload any
}

// subscriberBuffer is how many events one subscriber may lag before
// publishes to it are dropped.
const subscriberBuffer = 256

// Bus is a typed publish/subscribe fan-out. Publish never blocks: a
// subscriber that stops draining loses events, with a warning, rather
// than stalling stream handling.
type Bus struct {
	mu   sync.RWMutex
	log  log.Logger
	subs map[Type][]chan Event
}

// NewBus returns an empty bus.
func NewBus(logger log.Logger) *Bus {
	return &Bus{
		log:  logger,
		subs: make(map[Type][]chan Event),
	}
}

// Subscribe returns a channel receiving every event of the given types.
func (b *Bus) Subscribe(events ...Type) <-chan Event {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range events {
		b.subs[t] = append(b.subs[t], ch)
	}
	return ch
}

// Publish enqueues ev to every subscriber of its type.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	subs := b.subs[ev.Type]
	b.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
			b.log.Warn("event dropped, subscriber not draining",
				log.String("type", string(ev.Type)),
				log.Stringer("peer", ev.Peer))
		}
	}
}
