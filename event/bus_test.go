// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package event

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/log"

	"github.com/luxfi/jamnp/types"
)

func TestPublishSubscribe(t *testing.T) {
	bus := NewBus(log.NewNoOpLogger())

	blocks := bus.Subscribe(TypeBlocksRequested)
	both := bus.Subscribe(TypeBlocksRequested, TypeStateRequested)

	var peer types.Ed25519Key
	peer[0] = 7

	bus.Publish(Event{Type: TypeBlocksRequested, Peer: peer, Payload: "a"})
	bus.Publish(Event{Type: TypeStateRequested, Peer: peer, Payload: "b"})
	bus.Publish(Event{Type: TypeAssuranceReceived, Peer: peer, Payload: "c"})

	ev := <-blocks
	require.Equal(t, TypeBlocksRequested, ev.Type)
	require.Equal(t, peer, ev.Peer)
	require.Equal(t, "a", ev.Payload)
	require.Empty(t, blocks)

	require.Equal(t, "a", (<-both).Payload)
	require.Equal(t, "b", (<-both).Payload)
	require.Empty(t, both)
}

func TestPublishOrderPreserved(t *testing.T) {
	bus := NewBus(log.NewNoOpLogger())
	ch := bus.Subscribe(TypeBlocksReceived)

	for i := 0; i < 10; i++ {
		bus.Publish(Event{Type: TypeBlocksReceived, Payload: i})
	}
	for i := 0; i < 10; i++ {
		require.Equal(t, i, (<-ch).Payload)
	}
}

func TestPublishNeverBlocks(t *testing.T) {
	bus := NewBus(log.NewNoOpLogger())
	_ = bus.Subscribe(TypeBlocksReceived)

	// Nobody drains; the buffer fills and further publishes are dropped
	// without stalling.
	for i := 0; i < subscriberBuffer*2; i++ {
		bus.Publish(Event{Type: TypeBlocksReceived, Payload: i})
	}
}
