// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package jamnp

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/luxfi/jamnp/config"
	"github.com/luxfi/jamnp/core"
	"github.com/luxfi/jamnp/epoch"
	"github.com/luxfi/jamnp/event"
	"github.com/luxfi/jamnp/identity"
	"github.com/luxfi/jamnp/metrics"
	"github.com/luxfi/jamnp/networking/handler"
	"github.com/luxfi/jamnp/networking/peers"
	"github.com/luxfi/jamnp/networking/router"
	"github.com/luxfi/jamnp/networking/transport"
	"github.com/luxfi/jamnp/protocols"
	"github.com/luxfi/jamnp/types"
	"github.com/luxfi/jamnp/utils/wrappers"
	"github.com/luxfi/jamnp/validators"
)

var errNoPrivateKey = errors.New("node: an ed25519 private key is required")

// Services are the external subsystems a node consumes.
type Services struct {
	Chain      core.ChainManager
	Tickets    core.TicketService
	Guarantor  core.Guarantor
	Blocks     core.BlockStore
	Preimages  core.PreimageStore
	Reports    core.WorkReportStore
	Shards     core.ShardStore
	Judgments  core.JudgmentStore
	Validators epoch.ValidatorSource
}

// Options bundle everything needed to build a Node.
type Options struct {
	Config     config.Config
	Log        log.Logger
	PrivateKey ed25519.PrivateKey
	Role       identity.Role
	// GenesisValidators is the current set at startup.
	GenesisValidators validators.SetMap
	GenesisEpoch      uint32
	Services          Services
	Registerer        prometheus.Registerer
}

// Node is the assembled networking stack.
type Node struct {
	log     log.Logger
	cfg     config.Config
	self    types.Ed25519Key
	bus     *event.Bus
	sets    *validators.SetManager
	epochs  *epoch.Manager
	ticker  *epoch.Ticker
	metrics *metrics.Metrics

	transport *transport.Transport
	registry  *handler.Registry
	router    *router.Router
	peers     *peers.Manager
	client    *protocols.Client

	cancel context.CancelFunc
}

// NewNode wires the stack together. Nothing touches the network until
// Start.
func NewNode(opts Options) (*Node, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	if len(opts.PrivateKey) != ed25519.PrivateKeySize {
		return nil, errNoPrivateKey
	}
	logger := opts.Log
	if logger == nil {
		logger = log.NewNoOpLogger()
	}

	self, err := types.Ed25519KeyFromBytes(opts.PrivateKey.Public().(ed25519.PublicKey))
	if err != nil {
		return nil, err
	}

	var m *metrics.Metrics
	if opts.Registerer != nil {
		if m, err = metrics.New(opts.Registerer); err != nil {
			return nil, fmt.Errorf("registering metrics: %w", err)
		}
	}

	cert, err := identity.NewTLSCertificate(opts.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("building certificate: %w", err)
	}

	bus := event.NewBus(logger)
	sets := validators.NewSetManager(logger, opts.GenesisEpoch, opts.GenesisValidators)
	epochs := epoch.NewManager(logger, opts.Config.Chain.SlotsPerEpoch, sets, opts.Services.Validators)

	tr := transport.New(logger, opts.Config.Transport, cert, opts.Role, opts.Config.Chain.ChainHash, m)

	deps := protocols.Dependencies{
		Log:        logger,
		Bus:        bus,
		Params:     opts.Config.Chain,
		Self:       self,
		Sets:       sets,
		Epochs:     epochs,
		Correlator: handler.NewCorrelator(),
		Chain:      opts.Services.Chain,
		Tickets:    opts.Services.Tickets,
		Guarantor:  opts.Services.Guarantor,
		Blocks:     opts.Services.Blocks,
		Preimages:  opts.Services.Preimages,
		Reports:    opts.Services.Reports,
		Shards:     opts.Services.Shards,
		Judgments:  opts.Services.Judgments,
	}
	registry, err := protocols.NewRegistry(deps)
	if err != nil {
		return nil, err
	}

	rt := router.New(logger, registry, opts.Config.Transport.MessageTimeout, m)
	pm := peers.NewManager(logger, self, tr, sets, rt, m)
	epochs.OnConnectivityApply(pm.OnEpochApplied)

	return &Node{
		log:       logger,
		cfg:       opts.Config,
		self:      self,
		bus:       bus,
		sets:      sets,
		epochs:    epochs,
		metrics:   m,
		transport: tr,
		registry:  registry,
		router:    rt,
		peers:     pm,
		client:    protocols.NewClient(deps, rt, pm),
	}, nil
}

// Start binds the socket and begins the background cycles.
func (n *Node) Start(ctx context.Context) error {
	ctx, n.cancel = context.WithCancel(ctx)
	if err := n.transport.Start(ctx); err != nil {
		return err
	}
	n.peers.Start(ctx)

	n.log.Info("node started",
		log.Stringer("key", n.self),
		log.Uint32("epoch", n.sets.Epoch()))
	return nil
}

// StartSlotTicker derives slots from the wall clock; embedders that drive
// slots from consensus call OnSlot instead.
func (n *Node) StartSlotTicker(ctx context.Context, genesis time.Time) {
	n.ticker = epoch.NewTicker(n.log, n.epochs, genesis, n.cfg.Chain.SlotDuration)
	go n.ticker.Run(ctx)
}

// OnSlot advances the epoch clock.
func (n *Node) OnSlot(slot uint32) {
	n.epochs.OnSlot(slot)
}

// OnFirstBlockFinalized relays the chain's finality signal.
func (n *Node) OnFirstBlockFinalized() {
	n.epochs.OnFirstBlockFinalized()
}

// Bus is where subsystems subscribe for traffic.
func (n *Node) Bus() *event.Bus {
	return n.bus
}

// Client is the typed initiator API.
func (n *Node) Client() *protocols.Client {
	return n.client
}

// PublicKey is this node's identity.
func (n *Node) PublicKey() types.Ed25519Key {
	return n.self
}

// Stop shuts the stack down: stop listening, then close every
// connection.
func (n *Node) Stop() error {
	if n.cancel != nil {
		n.cancel()
	}
	errs := wrappers.Errs{}
	errs.Add(n.transport.Close())
	return errs.Err()
}
