// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package epoch advances validator-set membership on slot ticks. A
// transition staged at an epoch boundary is applied only once the epoch's
// first block is finalised and enough slots have elapsed, so connections
// to the outgoing set are kept exactly as long as they are still needed.
package epoch

import (
	"sync"

	"github.com/luxfi/log"

	"github.com/luxfi/jamnp/utils/math"
	"github.com/luxfi/jamnp/validators"
)

// ValidatorSource supplies the validator set expected to be active in a
// given epoch. Implemented by the chain's state, consumed here.
type ValidatorSource interface {
	ValidatorsAt(epoch uint32) (validators.SetMap, error)
}

// Manager owns the slot → epoch accounting and drives the set manager's
// prepare/apply cycle. All methods are safe for concurrent use; apply runs
// under the manager's lock on the goroutine of whichever call, OnSlot or
// OnFirstBlockFinalized, completes the apply condition, so no reader
// observes a half-applied epoch.
type Manager struct {
	mu  sync.Mutex
	log log.Logger

	slotsPerEpoch uint32
	sets          *validators.SetManager
	source        ValidatorSource

	currentSlot    uint32
	epoch          uint32
	epochStart     uint32
	firstFinalized bool
	applied        bool
	applySlot      uint32

	onApply []func(epoch uint32)
}

// NewManager starts at the epoch the set manager currently holds, treating
// that epoch as already applied.
func NewManager(logger log.Logger, slotsPerEpoch uint32, sets *validators.SetManager, source ValidatorSource) *Manager {
	m := &Manager{
		log:            logger,
		slotsPerEpoch:  slotsPerEpoch,
		sets:           sets,
		source:         source,
		epoch:          sets.Epoch(),
		firstFinalized: true,
		applied:        true,
	}
	m.epochStart = m.epoch * slotsPerEpoch
	m.applySlot = m.epochStart
	return m
}

// OnConnectivityApply registers a callback fired once per epoch when the
// transition is applied. Callbacks run on the goroutine that triggered the
// apply (an OnSlot or OnFirstBlockFinalized caller), after the lock is
// released.
func (m *Manager) OnConnectivityApply(fn func(epoch uint32)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onApply = append(m.onApply, fn)
}

// applyThreshold is the number of slots past epoch start that must elapse
// before connectivity changes.
func (m *Manager) applyThreshold() uint32 {
	return math.Max(m.slotsPerEpoch/30, 1)
}

// OnSlot advances the clock. Crossing into a new epoch stages a transition
// and resets the per-epoch flags; each tick then re-checks the apply
// condition.
func (m *Manager) OnSlot(slot uint32) {
	m.mu.Lock()
	if slot <= m.currentSlot && slot != 0 {
		m.mu.Unlock()
		return
	}
	m.currentSlot = slot

	newEpoch := slot / m.slotsPerEpoch
	if newEpoch > m.epoch {
		m.epoch = newEpoch
		m.epochStart = newEpoch * m.slotsPerEpoch
		m.firstFinalized = false
		m.applied = false

		// The staged set is what ApplyTransition promotes to current for
		// newEpoch itself.
		next := validators.SetMap{}
		if m.source != nil {
			var err error
			if next, err = m.source.ValidatorsAt(newEpoch); err != nil {
				m.log.Warn("failed fetching next validator set",
					log.Uint32("epoch", newEpoch),
					log.Err(err))
				next = validators.SetMap{}
			}
		}
		if err := m.sets.PrepareTransition(newEpoch, next); err != nil {
			m.log.Error("failed staging validator transition",
				log.Uint32("epoch", newEpoch),
				log.Err(err))
		}
	}
	m.mu.Unlock()

	m.maybeApply()
}

// OnFirstBlockFinalized records that the first block of the current epoch
// has been finalised, one of the two apply conditions.
func (m *Manager) OnFirstBlockFinalized() {
	m.mu.Lock()
	m.firstFinalized = true
	m.mu.Unlock()

	m.maybeApply()
}

func (m *Manager) maybeApply() {
	m.mu.Lock()
	ready := !m.applied &&
		m.firstFinalized &&
		m.currentSlot-m.epochStart >= m.applyThreshold()
	if !ready {
		m.mu.Unlock()
		return
	}

	if err := m.sets.ApplyTransition(); err != nil {
		m.log.Error("failed applying validator transition",
			log.Uint32("epoch", m.epoch),
			log.Err(err))
		m.mu.Unlock()
		return
	}
	m.applied = true
	m.applySlot = m.currentSlot
	epoch := m.epoch
	callbacks := make([]func(uint32), len(m.onApply))
	copy(callbacks, m.onApply)
	m.mu.Unlock()

	m.log.Info("epoch connectivity applied",
		log.Uint32("epoch", epoch),
		log.Uint32("slot", m.currentSlot))
	for _, fn := range callbacks {
		fn(epoch)
	}
}

// Epoch returns the epoch of the current slot.
func (m *Manager) Epoch() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch
}

// ConnectivityApplied reports whether the current epoch's transition has
// been applied.
func (m *Manager) ConnectivityApplied() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applied
}

// TicketDistributionStart is the slot at which generators may start
// submitting tickets for the current epoch.
func (m *Manager) TicketDistributionStart() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applySlot + math.Max(m.slotsPerEpoch/60, 1)
}

// TicketForwardingStart is the slot at which proxies begin fanning tickets
// out to the full validator set.
func (m *Manager) TicketForwardingStart() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applySlot + math.Max(m.slotsPerEpoch/20, 1)
}

// InForwardingWindow reports whether the proxy fan-out may run at the
// given slot.
func (m *Manager) InForwardingWindow(slot uint32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applied && slot >= m.applySlot+math.Max(m.slotsPerEpoch/20, 1)
}
