// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package epoch

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/log"

	"github.com/luxfi/jamnp/types"
	"github.com/luxfi/jamnp/validators"
)

type staticSource struct {
	sets map[uint32]validators.SetMap
}

func (s *staticSource) ValidatorsAt(epoch uint32) (validators.SetMap, error) {
	if set, ok := s.sets[epoch]; ok {
		return set, nil
	}
	return validators.SetMap{}, nil
}

func makeSet(indices ...types.ValidatorIndex) validators.SetMap {
	set := validators.SetMap{}
	for _, idx := range indices {
		var key types.Ed25519Key
		key[0] = byte(idx + 1)
		set[idx] = types.ValidatorMetadata{Ed25519: key}
	}
	return set
}

// E=60 gives applyThreshold=2, distribution offset 1, forwarding offset 3.
const testEpochLen = 60

func newTestManager(t *testing.T) (*Manager, *validators.SetManager) {
	t.Helper()
	sets := validators.NewSetManager(log.NewNoOpLogger(), 0, makeSet(0, 1, 2))
	source := &staticSource{sets: map[uint32]validators.SetMap{
		1: makeSet(1, 2, 3),
	}}
	return NewManager(log.NewNoOpLogger(), testEpochLen, sets, source), sets
}

func TestNoApplyBeforeBothConditions(t *testing.T) {
	m, sets := newTestManager(t)

	var applied []uint32
	m.OnConnectivityApply(func(epoch uint32) { applied = append(applied, epoch) })

	// Cross into epoch 1. The transition is staged, not applied.
	m.OnSlot(60)
	require.True(t, sets.TransitionPending())
	require.False(t, m.ConnectivityApplied())
	require.Equal(t, uint32(0), sets.Epoch())

	// Enough slots, but no finalised block yet.
	m.OnSlot(62)
	require.False(t, m.ConnectivityApplied())
	require.Empty(t, applied)

	// Both conditions now hold.
	m.OnFirstBlockFinalized()
	require.True(t, m.ConnectivityApplied())
	require.Equal(t, []uint32{1}, applied)
	require.Equal(t, uint32(1), sets.Epoch())
}

func TestFinalizedFirstThenSlots(t *testing.T) {
	m, sets := newTestManager(t)

	m.OnSlot(60)
	m.OnFirstBlockFinalized()
	// Threshold is max(60/30,1)=2 slots; slot 61 is one slot in.
	m.OnSlot(61)
	require.False(t, m.ConnectivityApplied())
	require.Equal(t, uint32(0), sets.Epoch())

	m.OnSlot(62)
	require.True(t, m.ConnectivityApplied())
	require.Equal(t, uint32(1), sets.Epoch())
}

func TestApplyIsIdempotent(t *testing.T) {
	m, sets := newTestManager(t)

	var count int
	m.OnConnectivityApply(func(uint32) { count++ })

	m.OnSlot(60)
	m.OnFirstBlockFinalized()
	m.OnSlot(62)
	m.OnSlot(63)
	m.OnFirstBlockFinalized()
	require.Equal(t, 1, count)
	require.Equal(t, uint32(1), sets.Epoch())
}

func TestDerivedSchedule(t *testing.T) {
	m, _ := newTestManager(t)

	m.OnSlot(60)
	m.OnFirstBlockFinalized()
	m.OnSlot(62)
	require.True(t, m.ConnectivityApplied())

	// Applied at slot 62: distribution opens one slot later, forwarding
	// three slots later.
	require.Equal(t, uint32(63), m.TicketDistributionStart())
	require.Equal(t, uint32(65), m.TicketForwardingStart())
	require.False(t, m.InForwardingWindow(64))
	require.True(t, m.InForwardingWindow(65))
}

func TestNextSetStagedFromSource(t *testing.T) {
	m, sets := newTestManager(t)

	// Crossing into epoch 1 stages the source's set for epoch 1: that is
	// what the apply promotes to current.
	m.OnSlot(60)
	require.Contains(t, sets.Next(), types.ValidatorIndex(3))

	m.OnFirstBlockFinalized()
	m.OnSlot(62)
	require.Equal(t, uint32(1), sets.Epoch())
	require.Contains(t, sets.Current(), types.ValidatorIndex(3))
	require.NotContains(t, sets.Current(), types.ValidatorIndex(0))
}
