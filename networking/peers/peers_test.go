// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package peers

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/tls"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/log"

	"github.com/luxfi/jamnp/config"
	"github.com/luxfi/jamnp/identity"
	"github.com/luxfi/jamnp/networking/handler"
	"github.com/luxfi/jamnp/networking/router"
	"github.com/luxfi/jamnp/networking/transport"
	"github.com/luxfi/jamnp/types"
	"github.com/luxfi/jamnp/validators"
)

func tlsCertForTest(t *testing.T) tls.Certificate {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	cert, err := identity.NewTLSCertificate(priv)
	require.NoError(t, err)
	return cert
}

func fillKey(b byte) types.Ed25519Key {
	var k types.Ed25519Key
	for i := range k {
		k[i] = b
	}
	return k
}

func metaFor(key types.Ed25519Key, port uint16) types.ValidatorMetadata {
	return types.ValidatorMetadata{
		Ed25519: key,
		Endpoint: &types.Endpoint{
			Host: "127.0.0.1",
			Port: port,
			Key:  key,
		},
	}
}

// newTestManager builds a manager over an unstarted transport; dials fail
// immediately, which is what the backoff tests need.
func newTestManager(t *testing.T, self types.Ed25519Key, current validators.SetMap) (*Manager, *validators.SetManager) {
	t.Helper()
	logger := log.NewNoOpLogger()
	sets := validators.NewSetManager(logger, 0, current)
	tr := transport.New(logger, config.DefaultTransport(), tlsCertForTest(t), identity.RoleValidator, [32]byte{}, nil)
	rt := router.New(logger, handler.NewRegistry(), time.Second, nil)
	return NewManager(logger, self, tr, sets, rt, nil), sets
}

func TestMembershipTracksUnionMinusSelf(t *testing.T) {
	self := fillKey(0xFF)
	peerA := fillKey(0x01)
	peerB := fillKey(0x02)

	current := validators.SetMap{
		0: metaFor(self, 31000),
		1: metaFor(peerA, 31001),
		2: metaFor(peerB, 31002),
	}
	m, sets := newTestManager(t, self, current)
	require.Equal(t, 2, m.PeerCount())

	// The all-FF self key has its high bit set, both peers do not, and
	// self compares greater: self initiates toward both.
	p, ok := m.Snapshot(peerA)
	require.True(t, ok)
	require.Equal(t, validators.InitiatorLocal, p.Initiator)
	require.Equal(t, types.ValidatorIndex(1), p.Index)

	// Drop peerB in the next epoch; it must leave the map after apply.
	require.NoError(t, sets.PrepareTransition(1, validators.SetMap{
		0: metaFor(self, 31000),
		1: metaFor(peerA, 31001),
	}))
	// Staged but unapplied: previous still carries peerB, so it stays.
	m.OnEpochApplied(0)
	require.Equal(t, 2, m.PeerCount())

	require.NoError(t, sets.ApplyTransition())
	// One epoch later peerB leaves previous as well.
	require.NoError(t, sets.PrepareTransition(2, validators.SetMap{
		0: metaFor(self, 31000),
		1: metaFor(peerA, 31001),
	}))
	require.NoError(t, sets.ApplyTransition())
	m.OnEpochApplied(2)
	require.Equal(t, 1, m.PeerCount())
	_, ok = m.Snapshot(peerB)
	require.False(t, ok)
}

func TestSurvivingPeerTakesCurrentIndex(t *testing.T) {
	self := fillKey(0xFF)
	peer := fillKey(0x01)

	m, sets := newTestManager(t, self, validators.SetMap{
		0: metaFor(self, 31000),
		1: metaFor(peer, 31001),
	})
	p, _ := m.Snapshot(peer)
	require.Equal(t, types.ValidatorIndex(1), p.Index)

	// The peer survives the transition under a different seat. Previous
	// still lists it at index 1; the current set's index must win.
	require.NoError(t, sets.PrepareTransition(1, validators.SetMap{
		0: metaFor(self, 31000),
		5: metaFor(peer, 31001),
	}))
	require.NoError(t, sets.ApplyTransition())
	m.OnEpochApplied(1)

	p, _ = m.Snapshot(peer)
	require.Equal(t, types.ValidatorIndex(5), p.Index)
}

func TestRemotePeersAreNotDialed(t *testing.T) {
	self := fillKey(0x00)
	peer := fillKey(0xFF) // peer initiates toward us

	m, _ := newTestManager(t, self, validators.SetMap{
		0: metaFor(self, 31000),
		1: metaFor(peer, 31001),
	})

	p, ok := m.Snapshot(peer)
	require.True(t, ok)
	require.Equal(t, validators.InitiatorRemote, p.Initiator)

	m.tick(context.Background())
	p, _ = m.Snapshot(peer)
	require.Zero(t, p.Attempts)
	require.Equal(t, StateDisconnected, p.State)
}

func TestDialBackoff(t *testing.T) {
	self := fillKey(0xFF)
	peer := fillKey(0x01)

	m, _ := newTestManager(t, self, validators.SetMap{
		0: metaFor(self, 31000),
		1: metaFor(peer, 31001),
	})

	now := time.Unix(1000, 0)
	m.clock = func() time.Time { return now }
	ctx := context.Background()

	waitDisconnected := func() Peer {
		var p Peer
		require.Eventually(t, func() bool {
			var ok bool
			p, ok = m.Snapshot(peer)
			return ok && p.State == StateDisconnected
		}, time.Second, time.Millisecond)
		return p
	}

	// First pass dials once; the unstarted transport fails it immediately.
	m.tick(ctx)
	p := waitDisconnected()
	require.Equal(t, 1, p.Attempts)

	// Within the backoff window nothing new is attempted.
	now = now.Add(RetryDelay / 2)
	m.tick(ctx)
	p = waitDisconnected()
	require.Equal(t, 1, p.Attempts)

	// Each elapsed delay buys one more attempt, up to the cap.
	for want := 2; want <= MaxConnectAttempts; want++ {
		now = now.Add(RetryDelay)
		m.tick(ctx)
		p = waitDisconnected()
		require.Equal(t, want, p.Attempts)
	}

	// Cap reached: further ticks stop dialing.
	now = now.Add(10 * RetryDelay)
	m.tick(ctx)
	p = waitDisconnected()
	require.Equal(t, MaxConnectAttempts, p.Attempts)
}

func TestFreshDialBudgetOnMembershipChange(t *testing.T) {
	self := fillKey(0xFF)
	peer := fillKey(0x01)
	set := validators.SetMap{
		0: metaFor(self, 31000),
		1: metaFor(peer, 31001),
	}
	m, sets := newTestManager(t, self, set)

	now := time.Unix(1000, 0)
	m.clock = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < MaxConnectAttempts; i++ {
		m.tick(ctx)
		require.Eventually(t, func() bool {
			p, ok := m.Snapshot(peer)
			return ok && p.State == StateDisconnected
		}, time.Second, time.Millisecond)
		now = now.Add(RetryDelay)
	}
	p, _ := m.Snapshot(peer)
	require.Equal(t, MaxConnectAttempts, p.Attempts)

	// Next epoch keeps the peer; its budget resets.
	require.NoError(t, sets.PrepareTransition(1, set))
	require.NoError(t, sets.ApplyTransition())
	m.OnEpochApplied(1)

	p, _ = m.Snapshot(peer)
	require.Zero(t, p.Attempts)
}
