// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package protocols

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/jamnp/config"
	"github.com/luxfi/jamnp/epoch"
	"github.com/luxfi/jamnp/event"
	"github.com/luxfi/jamnp/types"
	"github.com/luxfi/jamnp/validators"
)

// fakeTicketService verifies everything and derives the proxy from the
// proof's first byte.
type fakeTicketService struct {
	verifyErr error
}

func (f *fakeTicketService) VerifyProof(context.Context, uint32, uint8, []byte) error {
	return f.verifyErr
}

func (f *fakeTicketService) ProxyIndex(proof []byte, numValidators uint32) (types.ValidatorIndex, error) {
	return types.ValidatorIndex(uint32(proof[0]) % numValidators), nil
}

type fakeChain struct {
	finalized types.BlockRef
	leaves    []types.BlockRef
}

func (f *fakeChain) ImportHeader(context.Context, []byte, types.Ed25519Key) error {
	return nil
}

func (f *fakeChain) HeaderHash(header []byte) (ids.ID, error) {
	var h ids.ID
	copy(h[:], header)
	return h, nil
}

func (f *fakeChain) Finalized() types.BlockRef  { return f.finalized }
func (f *fakeChain) Leaves() []types.BlockRef   { return f.leaves }

func keyOf(b byte) types.Ed25519Key {
	var k types.Ed25519Key
	k[0] = b
	return k
}

func setOf(keys ...types.Ed25519Key) validators.SetMap {
	set := validators.SetMap{}
	for i, k := range keys {
		set[types.ValidatorIndex(i)] = types.ValidatorMetadata{Ed25519: k}
	}
	return set
}

func depsForTickets(self types.Ed25519Key, sets *validators.SetManager, svc *fakeTicketService) Dependencies {
	return Dependencies{
		Log:     log.NewNoOpLogger(),
		Bus:     event.NewBus(log.NewNoOpLogger()),
		Params:  config.DefaultChainParams(),
		Self:    self,
		Sets:    sets,
		Tickets: svc,
	}
}

func TestTicketDistributionHappyPath(t *testing.T) {
	// Two validators; the proof's first byte selects validator 1 as
	// proxy, and validator 1 is us.
	generator := keyOf(0xAB)
	self := keyOf(2)
	sets := validators.NewSetManager(log.NewNoOpLogger(), 0, setOf(keyOf(1), self))

	deps := depsForTickets(self, sets, &fakeTicketService{})
	received := deps.Bus.Subscribe(event.TypeTicketDistributionRequest)
	h := newTicketDistributionHandler(deps)

	ticket := TicketDistribution{Epoch: 7, Attempt: 0}
	ticket.Proof[0] = 1 // 1 % 2 == 1 == our index

	responses, err := h.HandleRequest(context.Background(), generator, ticket.Encode())
	require.NoError(t, err)
	require.Empty(t, responses)

	ev := <-received
	require.Equal(t, ticket, ev.Payload)
	require.Equal(t, generator, ev.Peer)
}

func TestTicketDistributionWrongProxy(t *testing.T) {
	self := keyOf(2)
	sets := validators.NewSetManager(log.NewNoOpLogger(), 0, setOf(keyOf(1), self))

	deps := depsForTickets(self, sets, &fakeTicketService{})
	h := newTicketDistributionHandler(deps)

	ticket := TicketDistribution{Epoch: 7}
	ticket.Proof[0] = 0 // proxy is validator 0, not us

	_, err := h.HandleRequest(context.Background(), keyOf(9), ticket.Encode())
	require.ErrorIs(t, err, ErrNotIntendedProxy)
}

func TestTicketDistributionInvalidAttempt(t *testing.T) {
	self := keyOf(2)
	sets := validators.NewSetManager(log.NewNoOpLogger(), 0, setOf(self))

	deps := depsForTickets(self, sets, &fakeTicketService{})
	h := newTicketDistributionHandler(deps)

	ticket := TicketDistribution{Attempt: deps.Params.MaxTicketsPerExtrinsic}
	_, err := h.HandleRequest(context.Background(), keyOf(9), ticket.Encode())
	require.ErrorIs(t, err, ErrInvalidAttempt)
}

func TestTicketForwardingStoresOnly(t *testing.T) {
	deps := depsForTickets(keyOf(2), validators.NewSetManager(log.NewNoOpLogger(), 0, setOf(keyOf(2))), &fakeTicketService{})
	received := deps.Bus.Subscribe(event.TypeTicketDistributionRequest)
	h := newTicketForwardingHandler(deps)

	ticket := TicketDistribution{Epoch: 3, Attempt: 1}
	_, err := h.HandleRequest(context.Background(), keyOf(5), ticket.Encode())
	require.NoError(t, err)
	require.Equal(t, ticket, (<-received).Payload)
}

func TestAnnouncementHandshakeThenAnnouncements(t *testing.T) {
	chain := &fakeChain{}
	bus := event.NewBus(log.NewNoOpLogger())
	deps := Dependencies{Log: log.NewNoOpLogger(), Bus: bus, Chain: chain}
	h := newAnnouncementHandler(deps)

	handshakes := bus.Subscribe(event.TypeBlockAnnouncementHandshake)
	headers := bus.Subscribe(event.TypeBlockAnnouncementWithHeader)

	peer := keyOf(3)
	st := &announceState{}

	// The first frame decodes as a handshake: finalHash=0, slot 42, one
	// leaf at slot 43.
	hs := Handshake{
		Final:  types.BlockRef{Slot: 42},
		Leaves: []types.BlockRef{{Hash: hashOf(0x11), Slot: 43}},
	}
	require.NoError(t, h.consume(peer, st, hs.Encode()))
	require.True(t, st.handshaken)
	require.Equal(t, uint32(42), st.final.Slot)
	require.Equal(t, hs, (<-handshakes).Payload)

	// A later announcement with a higher final slot advances the pointer
	// and always surfaces the header.
	ann := Announcement{
		Header: []byte("hdr"),
		Final:  types.BlockRef{Hash: hashOf(0x11), Slot: 43},
	}
	require.NoError(t, h.consume(peer, st, ann.Encode()))
	require.Equal(t, uint32(43), st.final.Slot)
	require.Equal(t, ann, (<-headers).Payload)

	// A stale final pointer does not move ours backwards.
	stale := Announcement{
		Header: []byte("old"),
		Final:  types.BlockRef{Slot: 7},
	}
	require.NoError(t, h.consume(peer, st, stale.Encode()))
	require.Equal(t, uint32(43), st.final.Slot)
	require.Equal(t, stale, (<-headers).Payload)
}

func TestForwardingWindowGate(t *testing.T) {
	logger := log.NewNoOpLogger()
	sets := validators.NewSetManager(logger, 0, setOf(keyOf(1)))
	em := epoch.NewManager(logger, 60, sets, staticValidatorSource{})

	// The manager starts applied at slot 0; the window opens at
	// max(60/20,1)=3 slots past the apply slot.
	require.False(t, em.InForwardingWindow(2))
	require.True(t, em.InForwardingWindow(3))
}

type staticValidatorSource struct{}

func (staticValidatorSource) ValidatorsAt(uint32) (validators.SetMap, error) {
	return validators.SetMap{}, nil
}
