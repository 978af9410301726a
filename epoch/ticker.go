// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package epoch

import (
	"context"
	"time"

	"github.com/luxfi/log"
)

// Ticker derives slot numbers from wall-clock time and feeds them to the
// manager. Only the embedding process needs it; tests drive OnSlot
// directly.
type Ticker struct {
	log     log.Logger
	manager *Manager

	genesis      time.Time
	slotDuration time.Duration
}

// NewTicker creates a slot ticker for a chain whose slot 0 began at
// [genesis].
func NewTicker(logger log.Logger, manager *Manager, genesis time.Time, slotDuration time.Duration) *Ticker {
	return &Ticker{
		log:          logger,
		manager:      manager,
		genesis:      genesis,
		slotDuration: slotDuration,
	}
}

// CurrentSlot returns the slot the wall clock is in right now.
func (t *Ticker) CurrentSlot() uint32 {
	elapsed := time.Since(t.genesis)
	if elapsed < 0 {
		return 0
	}
	return uint32(elapsed / t.slotDuration)
}

// Run ticks the manager once per slot until the context is cancelled.
func (t *Ticker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.slotDuration)
	defer ticker.Stop()

	t.manager.OnSlot(t.CurrentSlot())
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			slot := t.CurrentSlot()
			t.log.Debug("slot tick", log.Uint32("slot", slot))
			t.manager.OnSlot(slot)
		}
	}
}
