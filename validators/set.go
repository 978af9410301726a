// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package validators tracks the previous, current and next validator sets,
// the grid they are arranged in, and the deterministic initiator rule that
// orders every pair of peers.
package validators

import (
	"errors"
	"sync"

	"github.com/luxfi/log"

	"github.com/luxfi/jamnp/types"
)

var (
	ErrNoPendingTransition = errors.New("validators: no pending transition")
	ErrTransitionPending   = errors.New("validators: transition already pending")
)

// SetMap is one epoch's validator set keyed by index.
type SetMap map[types.ValidatorIndex]types.ValidatorMetadata

// SetManager holds the three epoch-adjacent validator sets. A transition is
// staged with PrepareTransition and made visible atomically with
// ApplyTransition; readers never observe a half-updated triple.
type SetManager struct {
	mu  sync.RWMutex
	log log.Logger

	epoch    uint32
	previous SetMap
	current  SetMap
	next     SetMap

	transitionPending bool
}

// NewSetManager starts with the given genesis set as current.
func NewSetManager(logger log.Logger, epoch uint32, current SetMap) *SetManager {
	return &SetManager{
		log:      logger,
		epoch:    epoch,
		previous: SetMap{},
		current:  cloneSet(current),
		next:     SetMap{},
	}
}

func cloneSet(s SetMap) SetMap {
	out := make(SetMap, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Epoch returns the epoch index the current set belongs to.
func (m *SetManager) Epoch() uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.epoch
}

// Current returns a copy of the current set.
func (m *SetManager) Current() SetMap {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneSet(m.current)
}

// Previous returns a copy of the previous set.
func (m *SetManager) Previous() SetMap {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneSet(m.previous)
}

// Next returns a copy of the next set.
func (m *SetManager) Next() SetMap {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneSet(m.next)
}

// GetAllConnected returns the union of the three sets. Where an index
// appears in more than one set, current wins over previous over next.
func (m *SetManager) GetAllConnected() SetMap {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(SetMap, len(m.current)+len(m.previous)+len(m.next))
	for idx, meta := range m.next {
		out[idx] = meta
	}
	for idx, meta := range m.previous {
		out[idx] = meta
	}
	for idx, meta := range m.current {
		out[idx] = meta
	}
	return out
}

// PrepareTransition stages the membership change for [newEpoch]: the
// current set is snapshotted as previous and [next] becomes the staged
// next set. Staging twice without an apply is rejected.
func (m *SetManager) PrepareTransition(newEpoch uint32, next SetMap) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.transitionPending {
		return ErrTransitionPending
	}
	m.previous = m.current
	m.next = cloneSet(next)
	m.transitionPending = true
	m.log.Debug("validator transition staged",
		log.Uint32("epoch", newEpoch),
		log.Int("nextSetSize", len(next)))
	return nil
}

// ApplyTransition promotes the staged next set to current and advances the
// epoch. Fails if no transition is pending.
func (m *SetManager) ApplyTransition() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.transitionPending {
		return ErrNoPendingTransition
	}
	m.current = m.next
	m.next = SetMap{}
	m.epoch++
	m.transitionPending = false
	m.log.Info("validator transition applied",
		log.Uint32("epoch", m.epoch),
		log.Int("currentSetSize", len(m.current)))
	return nil
}

// TransitionPending reports whether a staged transition awaits apply.
func (m *SetManager) TransitionPending() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.transitionPending
}

// FindByEndpoint reverse-looks-up a validator by published address across
// the connected union, with the same current > previous > next precedence.
func (m *SetManager) FindByEndpoint(host string, port uint16) (types.ValidatorIndex, types.ValidatorMetadata, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, set := range []SetMap{m.current, m.previous, m.next} {
		for idx, meta := range set {
			if meta.Endpoint != nil && meta.Endpoint.Host == host && meta.Endpoint.Port == port {
				return idx, meta, true
			}
		}
	}
	return 0, types.ValidatorMetadata{}, false
}

// LookupKey resolves an Ed25519 key to a validator index across the
// connected union, current set first. This is how a certificate identity
// becomes a validator index.
func (m *SetManager) LookupKey(key types.Ed25519Key) (types.ValidatorIndex, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, set := range []SetMap{m.current, m.previous, m.next} {
		for idx, meta := range set {
			if meta.Ed25519 == key {
				return idx, true
			}
		}
	}
	return 0, false
}

// CurrentIndex resolves a key against the current set only.
func (m *SetManager) CurrentIndex(key types.Ed25519Key) (types.ValidatorIndex, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for idx, meta := range m.current {
		if meta.Ed25519 == key {
			return idx, true
		}
	}
	return 0, false
}
