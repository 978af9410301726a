// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package protocols implements every registered stream kind: the payload
// codecs, the per-kind handlers that decode, consult their services and
// publish events, and the typed client used to open exchanges. Handlers
// hold no state beyond response correlation.
package protocols

import (
	"errors"

	"github.com/luxfi/log"

	"github.com/luxfi/jamnp/config"
	"github.com/luxfi/jamnp/core"
	"github.com/luxfi/jamnp/epoch"
	"github.com/luxfi/jamnp/event"
	"github.com/luxfi/jamnp/networking/handler"
	"github.com/luxfi/jamnp/types"
	"github.com/luxfi/jamnp/validators"
)

var (
	ErrNotIntendedProxy   = errors.New("protocols: not the intended proxy")
	ErrInvalidTicket      = errors.New("protocols: invalid ticket")
	ErrInvalidAttempt     = errors.New("protocols: invalid attempt byte")
	ErrInsufficientData   = errors.New("protocols: insufficient data")
	ErrForwardingTooEarly = errors.New("protocols: ticket forwarding window not open")
)

// Dependencies are the services and shared components every handler may
// draw on. Guarantor and Judgments may be nil and are checked by their
// handlers; the other services are used without a nil check.
type Dependencies struct {
	Log        log.Logger
	Bus        *event.Bus
	Params     config.ChainParams
	Self       types.Ed25519Key
	Sets       *validators.SetManager
	Epochs     *epoch.Manager
	Correlator *handler.Correlator

	Chain     core.ChainManager
	Tickets   core.TicketService
	Guarantor core.Guarantor
	Blocks    core.BlockStore
	Preimages core.PreimageStore
	Reports   core.WorkReportStore
	Shards    core.ShardStore
	Judgments core.JudgmentStore
}

// NewRegistry builds the full handler registry, one handler per stream
// kind.
func NewRegistry(deps Dependencies) (*handler.Registry, error) {
	if deps.Correlator == nil {
		deps.Correlator = handler.NewCorrelator()
	}

	registry := handler.NewRegistry()
	for _, h := range []handler.Handler{
		newAnnouncementHandler(deps),
		newBlockRequestHandler(deps),
		newStateRequestHandler(deps),
		newTicketDistributionHandler(deps),
		newTicketForwardingHandler(deps),
		newWorkPackageSubmissionHandler(deps),
		newWorkPackageSharingHandler(deps),
		newWorkReportDistHandler(deps),
		newWorkReportRequestHandler(deps),
		newShardDistHandler(deps),
		newAuditShardHandler(deps),
		newSegmentShardHandler(deps, false),
		newSegmentShardHandler(deps, true),
		newAssuranceHandler(deps),
		newPreimageAnnouncementHandler(deps),
		newPreimageRequestHandler(deps),
		newAuditAnnouncementHandler(deps),
		newJudgmentHandler(deps),
	} {
		if err := registry.Register(h); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
