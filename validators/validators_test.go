// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package validators

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/log"

	"github.com/luxfi/jamnp/types"
	"github.com/luxfi/jamnp/utils/math"
)

func testKey(b byte) types.Ed25519Key {
	var k types.Ed25519Key
	for i := range k {
		k[i] = b
	}
	return k
}

func testSet(indices ...types.ValidatorIndex) SetMap {
	set := SetMap{}
	for _, idx := range indices {
		set[idx] = types.ValidatorMetadata{
			Ed25519: testKey(byte(idx + 1)),
			Endpoint: &types.Endpoint{
				Host: "10.0.0.1",
				Port: 30000 + uint16(idx),
				Key:  testKey(byte(idx + 1)),
			},
		}
	}
	return set
}

func TestSetManagerTransition(t *testing.T) {
	m := NewSetManager(log.NewNoOpLogger(), 4, testSet(0, 1, 2))

	require.NoError(t, m.PrepareTransition(5, testSet(1, 2, 3)))
	require.True(t, m.TransitionPending())

	// Nesting is rejected.
	require.ErrorIs(t, m.PrepareTransition(6, testSet(9)), ErrTransitionPending)

	// Prepared but not applied: current is unchanged, epoch unchanged.
	require.Equal(t, uint32(4), m.Epoch())
	require.Len(t, m.Current(), 3)
	require.Contains(t, m.Current(), types.ValidatorIndex(0))

	require.NoError(t, m.ApplyTransition())
	require.Equal(t, uint32(5), m.Epoch())
	require.Contains(t, m.Current(), types.ValidatorIndex(3))
	require.Contains(t, m.Previous(), types.ValidatorIndex(0))
	require.Empty(t, m.Next())

	// A second apply without a prepare is rejected.
	require.ErrorIs(t, m.ApplyTransition(), ErrNoPendingTransition)
}

func TestGetAllConnectedPrecedence(t *testing.T) {
	m := NewSetManager(log.NewNoOpLogger(), 0, testSet(0, 1))

	// Stage a transition whose next set re-lists index 1 under a different
	// endpoint; previous={0,1} and next={1,2} both overlap current.
	next := testSet(1, 2)
	moved := next[1]
	moved.Endpoint = &types.Endpoint{Host: "10.9.9.9", Port: 1, Key: moved.Ed25519}
	next[1] = moved
	require.NoError(t, m.PrepareTransition(1, next))

	union := m.GetAllConnected()
	require.Len(t, union, 3)
	// Index 1 exists in current, previous and next; the current entry wins.
	require.Equal(t, "10.0.0.1", union[1].Endpoint.Host)
	require.Contains(t, union, types.ValidatorIndex(2))
}

func TestFindByEndpoint(t *testing.T) {
	m := NewSetManager(log.NewNoOpLogger(), 0, testSet(0, 1, 2))

	idx, meta, ok := m.FindByEndpoint("10.0.0.1", 30001)
	require.True(t, ok)
	require.Equal(t, types.ValidatorIndex(1), idx)
	require.Equal(t, testKey(2), meta.Ed25519)

	_, _, ok = m.FindByEndpoint("10.0.0.1", 40000)
	require.False(t, ok)
}

func TestLookupKey(t *testing.T) {
	m := NewSetManager(log.NewNoOpLogger(), 0, testSet(0, 1))

	idx, ok := m.LookupKey(testKey(2))
	require.True(t, ok)
	require.Equal(t, types.ValidatorIndex(1), idx)

	_, ok = m.LookupKey(testKey(0xEE))
	require.False(t, ok)
}

func TestGridForSix(t *testing.T) {
	g := NewGrid([]types.ValidatorIndex{5, 3, 1, 0, 2, 4})

	require.Equal(t, 2, g.Cols())
	require.Equal(t, 3, g.Rows())

	want := map[types.ValidatorIndex]Cell{
		0: {0, 0}, 1: {0, 1},
		2: {1, 0}, 3: {1, 1},
		4: {2, 0}, 5: {2, 1},
	}
	for idx, cell := range want {
		got, ok := g.Position(idx)
		require.True(t, ok)
		require.Equal(t, cell, got)
	}

	require.Equal(t, []types.ValidatorIndex{0, 3, 4}, g.Neighbors(2))
}

func TestGridProperty(t *testing.T) {
	for v := 1; v <= 1024; v++ {
		indices := make([]types.ValidatorIndex, v)
		for i := range indices {
			indices[i] = types.ValidatorIndex(i)
		}
		g := NewGrid(indices)

		cols := math.ISqrt(v)
		require.Equal(t, cols, g.Cols(), "V=%d", v)
		require.Equal(t, math.CeilDiv(v, cols), g.Rows(), "V=%d", v)

		// Every index has a unique cell.
		seen := map[Cell]types.ValidatorIndex{}
		for _, idx := range indices {
			cell, ok := g.Position(idx)
			require.True(t, ok)
			_, dup := seen[cell]
			require.False(t, dup, "V=%d cell reused", v)
			seen[cell] = idx
		}
	}
}

func TestGridNeighborCountWhenFull(t *testing.T) {
	// A perfectly full grid gives every validator (rows-1)+(cols-1)
	// neighbours.
	for _, v := range []int{1, 4, 9, 16, 100, 144} {
		indices := make([]types.ValidatorIndex, v)
		for i := range indices {
			indices[i] = types.ValidatorIndex(i)
		}
		g := NewGrid(indices)
		want := (g.Rows() - 1) + (g.Cols() - 1)
		for _, idx := range indices {
			require.Len(t, g.Neighbors(idx), want, "V=%d idx=%d", v, idx)
		}
	}
}

func TestPreferredInitiatorSeed(t *testing.T) {
	a := testKey(0x00)
	b := testKey(0xFF)

	// a31 low, b31 high, a < b: xor of the three predicates is even, so b
	// initiates, from both perspectives.
	require.Equal(t, b, PreferredInitiator(a, b))
	require.Equal(t, b, PreferredInitiator(b, a))

	require.Equal(t, InitiatorRemote, RoleFor(a, b))
	require.Equal(t, InitiatorLocal, RoleFor(b, a))
	require.Equal(t, InitiatorNeither, RoleFor(a, a))
}

func TestPreferredInitiatorAntiSymmetry(t *testing.T) {
	state := uint64(42)
	next := func() byte {
		state ^= state << 13
		state ^= state >> 7
		state ^= state << 17
		return byte(state)
	}
	keys := make([]types.Ed25519Key, 64)
	for i := range keys {
		for j := range keys[i] {
			keys[i][j] = next()
		}
	}
	for i, a := range keys {
		for j, b := range keys {
			if i == j {
				continue
			}
			p := PreferredInitiator(a, b)
			q := PreferredInitiator(b, a)
			require.Equal(t, p, q, "order must not matter")
			require.True(t, p == a || p == b)
		}
	}
}
