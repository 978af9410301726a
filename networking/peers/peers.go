// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package peers decides who this node is connected to. It tracks one peer
// record per validator in the prev ∪ curr ∪ next union, dials the peers the
// initiator rule assigns to us, admits the ones it assigns to them, and
// re-drives dropped connections from its keepalive cycle.
package peers

import (
	"context"
	"sync"
	"time"

	"github.com/luxfi/log"

	"github.com/luxfi/jamnp/identity"
	"github.com/luxfi/jamnp/metrics"
	"github.com/luxfi/jamnp/networking/router"
	"github.com/luxfi/jamnp/networking/transport"
	"github.com/luxfi/jamnp/types"
	"github.com/luxfi/jamnp/validators"
)

const (
	// MaxConnectAttempts is how often a peer is dialed before it is
	// considered offline until membership changes again.
	MaxConnectAttempts = 3
	// RetryDelay is the minimum spacing between dials to one peer.
	RetryDelay = 60 * time.Second
	// KeepaliveInterval is the health-check cadence.
	KeepaliveInterval = 30 * time.Second
)

// State is one peer's position in the connect state machine.
type State uint8

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Peer is the tracked state for one validator identity.
type Peer struct {
	Index       types.ValidatorIndex
	Key         types.Ed25519Key
	Endpoint    *types.Endpoint
	State       State
	LastSeen    time.Time
	Attempts    int
	LastAttempt time.Time
	Initiator   validators.InitiatorRole

	conn *transport.Connection
}

// Manager owns the peer map. It is the sole writer of connection state;
// everyone else reads through its accessors.
type Manager struct {
	log       log.Logger
	self      types.Ed25519Key
	transport *transport.Transport
	sets      *validators.SetManager
	router    *router.Router
	metrics   *metrics.Metrics

	// clock is swappable for tests.
	clock func() time.Time

	mu    sync.RWMutex
	peers map[types.Ed25519Key]*Peer
	grid  *validators.Grid
}

// NewManager wires the manager and installs itself as the transport's
// connection sink.
func NewManager(
	logger log.Logger,
	self types.Ed25519Key,
	tr *transport.Transport,
	sets *validators.SetManager,
	rt *router.Router,
	m *metrics.Metrics,
) *Manager {
	mgr := &Manager{
		log:       logger,
		self:      self,
		transport: tr,
		sets:      sets,
		router:    rt,
		metrics:   m,
		clock:     time.Now,
		peers:     make(map[types.Ed25519Key]*Peer),
		grid:      validators.GridFromSet(sets.Current()),
	}
	tr.OnConnection = mgr.handleIncoming
	mgr.syncMembership()
	return mgr
}

// Start runs the keepalive/reconnect cycle until the context ends.
func (m *Manager) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(KeepaliveInterval)
		defer ticker.Stop()

		m.tick(ctx)
		for {
			select {
			case <-ctx.Done():
				m.closeAll()
				return
			case <-ticker.C:
				m.tick(ctx)
			}
		}
	}()
}

// OnEpochApplied is the connectivity hook fired by the epoch manager once
// per transition.
func (m *Manager) OnEpochApplied(epoch uint32) {
	m.metrics.CountEpochTransition()
	m.syncMembership()
	m.log.Info("peer set synchronised",
		log.Uint32("epoch", epoch),
		log.Int("peers", m.PeerCount()))
}

// member is one identity's resolved place in the set triple.
type member struct {
	index types.ValidatorIndex
	meta  types.ValidatorMetadata
}

// membershipByKey flattens the set triple onto peer identities. A
// validator that survives a transition can hold a different index in
// each set, so the index is resolved with current > previous > next
// precedence rather than taken from an index-keyed union.
func (m *Manager) membershipByKey() map[types.Ed25519Key]member {
	byKey := make(map[types.Ed25519Key]member)
	// Lowest precedence first; later sets overwrite.
	for _, set := range []validators.SetMap{m.sets.Next(), m.sets.Previous(), m.sets.Current()} {
		for idx, meta := range set {
			byKey[meta.Ed25519] = member{index: idx, meta: meta}
		}
	}
	return byKey
}

// syncMembership reconciles the peer map against the validator-set union
// and recomputes the grid for the current set.
func (m *Manager) syncMembership() {
	wanted := m.membershipByKey()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.grid = validators.GridFromSet(m.sets.Current())

	for key, mem := range wanted {
		if key == m.self {
			continue
		}

		if p, ok := m.peers[key]; ok {
			// Known peer: refresh index/endpoint and give it a fresh
			// dial budget for the new membership.
			p.Index = mem.index
			p.Endpoint = mem.meta.Endpoint
			if p.State == StateDisconnected {
				p.Attempts = 0
			}
			continue
		}
		m.peers[key] = &Peer{
			Index:     mem.index,
			Key:       key,
			Endpoint:  mem.meta.Endpoint,
			State:     StateDisconnected,
			Initiator: validators.RoleFor(m.self, key),
		}
	}

	for key, p := range m.peers {
		if _, ok := wanted[key]; ok {
			continue
		}
		if p.conn != nil {
			_ = p.conn.Close(transport.CodeShutdown, "peer left validator sets")
		}
		delete(m.peers, key)
	}
}

// tick is one keepalive pass: reap dead connections, then dial every
// LOCAL-initiator peer whose backoff allows it.
func (m *Manager) tick(ctx context.Context) {
	now := m.clock()

	m.mu.Lock()
	var dials []*Peer
	for _, p := range m.peers {
		if p.State == StateConnected && (p.conn == nil || !p.conn.Healthy()) {
			m.log.Debug("connection unhealthy, re-driving peer",
				log.Stringer("peer", p.Key))
			p.State = StateDisconnected
			p.conn = nil
		}

		if p.State != StateDisconnected || p.Initiator != validators.InitiatorLocal {
			continue
		}
		if p.Endpoint == nil {
			continue
		}
		if p.Attempts >= MaxConnectAttempts {
			continue
		}
		if !p.LastAttempt.IsZero() && now.Sub(p.LastAttempt) < RetryDelay {
			continue
		}
		p.State = StateConnecting
		p.Attempts++
		p.LastAttempt = now
		dials = append(dials, p)
	}
	m.mu.Unlock()

	for _, p := range dials {
		go m.dial(ctx, p)
	}
}

func (m *Manager) dial(ctx context.Context, p *Peer) {
	m.mu.RLock()
	endpoint := *p.Endpoint
	attempt := p.Attempts
	m.mu.RUnlock()

	conn, err := m.transport.Dial(ctx, endpoint)
	if err != nil {
		m.log.Debug("dial failed",
			log.Stringer("peer", p.Key),
			log.Int("attempt", attempt),
			log.Err(err))
		m.mu.Lock()
		p.State = StateDisconnected
		m.mu.Unlock()
		return
	}
	m.adopt(ctx, p, conn)
}

// handleIncoming admits a connection the transport accepted. Builders are
// served without a peer record; validators must be in the membership
// union under the key their certificate proved.
func (m *Manager) handleIncoming(conn *transport.Connection) {
	ctx := context.Background()

	if conn.Role() == identity.RoleBuilder {
		m.log.Debug("builder connected",
			log.Stringer("peer", conn.PeerKey()))
		go m.router.ServeConnection(ctx, conn)
		return
	}

	m.mu.RLock()
	p, known := m.peers[conn.PeerKey()]
	m.mu.RUnlock()
	if !known {
		m.log.Debug("dropping connection from key outside validator sets",
			log.Stringer("peer", conn.PeerKey()))
		_ = conn.Close(transport.CodePeerNotInSet, "not in validator sets")
		return
	}
	m.adopt(ctx, p, conn)
}

// adopt installs a live connection on a peer record and spins up its
// serving goroutines. A healthy existing connection wins over the new one.
func (m *Manager) adopt(ctx context.Context, p *Peer, conn *transport.Connection) {
	m.mu.Lock()
	if p.conn != nil && p.conn.Healthy() {
		m.mu.Unlock()
		_ = conn.Close(transport.CodeDuplicate, "duplicate connection")
		return
	}
	p.conn = conn
	p.State = StateConnected
	p.Attempts = 0
	p.LastSeen = m.clock()
	announce := m.isAnnouncementPeerLocked(p)
	m.mu.Unlock()

	m.log.Info("peer connected",
		log.Stringer("peer", p.Key),
		log.Uint32("index", uint32(p.Index)),
		log.String("direction", direction(conn)))

	go m.router.ServeConnection(ctx, conn)
	if announce && conn.IsInitiator() {
		go func() {
			if err := m.router.OpenAnnouncementStream(ctx, conn); err != nil && ctx.Err() == nil {
				m.log.Debug("announcement stream ended",
					log.Stringer("peer", p.Key),
					log.Err(err))
			}
		}()
	}
}

func direction(conn *transport.Connection) string {
	if conn.IsInitiator() {
		return "outbound"
	}
	return "inbound"
}

// isAnnouncementPeerLocked decides whether the UP0 stream should exist
// with this peer: grid neighbours in the current set, or the same index
// held across adjacent epochs.
func (m *Manager) isAnnouncementPeerLocked(p *Peer) bool {
	selfIdx, ok := m.sets.LookupKey(m.self)
	if !ok {
		return false
	}
	_, selfCurrent := m.sets.CurrentIndex(m.self)
	_, peerCurrent := m.sets.CurrentIndex(p.Key)
	if selfCurrent && peerCurrent {
		return m.grid.IsNeighbor(selfIdx, p.Index)
	}
	// Cross-epoch rule: the same seat in an adjacent epoch's set.
	return p.Index == selfIdx
}

func (m *Manager) closeAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.peers {
		if p.conn != nil {
			_ = p.conn.Close(transport.CodeShutdown, "shutting down")
			p.conn = nil
			p.State = StateDisconnected
		}
	}
}

// ConnectionTo returns the live connection to a peer key.
func (m *Manager) ConnectionTo(key types.Ed25519Key) (*transport.Connection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.peers[key]
	if !ok || p.conn == nil || !p.conn.Healthy() {
		return nil, false
	}
	return p.conn, true
}

// ConnectionToIndex returns the live connection to a current-set validator
// index.
func (m *Manager) ConnectionToIndex(idx types.ValidatorIndex) (*transport.Connection, bool) {
	current := m.sets.Current()
	meta, ok := current[idx]
	if !ok {
		return nil, false
	}
	return m.ConnectionTo(meta.Ed25519)
}

// CurrentConnections returns the live connections to every current-set
// validator, the fan-out set for ticket forwarding.
func (m *Manager) CurrentConnections() []*transport.Connection {
	current := m.sets.Current()

	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*transport.Connection, 0, len(current))
	for _, meta := range current {
		if meta.Ed25519 == m.self {
			continue
		}
		if p, ok := m.peers[meta.Ed25519]; ok && p.conn != nil && p.conn.Healthy() {
			out = append(out, p.conn)
		}
	}
	return out
}

// NeighborConnections returns the live connections to this node's grid
// neighbours, the fan-out set for block announcements.
func (m *Manager) NeighborConnections() []*transport.Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*transport.Connection
	for _, p := range m.peers {
		if p.conn == nil || !p.conn.Healthy() {
			continue
		}
		if m.isAnnouncementPeerLocked(p) {
			out = append(out, p.conn)
		}
	}
	return out
}

// PeerCount is the number of tracked peers.
func (m *Manager) PeerCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.peers)
}

// Snapshot returns a copy of one peer's record, for inspection.
func (m *Manager) Snapshot(key types.Ed25519Key) (Peer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.peers[key]
	if !ok {
		return Peer{}, false
	}
	out := *p
	out.conn = nil
	return out, true
}
