// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package handler defines the uniform contract every stream kind is served
// through, and the registry that holds exactly one handler per kind.
package handler

import (
	"context"
	"errors"
	"sync"

	"github.com/luxfi/jamnp/types"
)

var (
	ErrDuplicateStreamKind = errors.New("handler: stream kind already registered")
	ErrUnknownStreamKind   = errors.New("handler: unknown stream kind")
)

// Handler serves one request/response stream kind. Implementations are
// stateless beyond correlation bookkeeping: they decode, consult their
// services, emit events, and hand response frames back to the router.
// They never block on the event bus and never own retries or timeouts.
type Handler interface {
	Kind() types.StreamKind

	// HandleRequest processes one request frame from [peer] and returns
	// the response frames to write back, nil for fire-and-forget kinds.
	// An error closes the stream with an application error; the
	// connection survives.
	HandleRequest(ctx context.Context, peer types.Ed25519Key, frame []byte) ([][]byte, error)

	// HandleResponse processes one response frame of an exchange this
	// node initiated.
	HandleResponse(ctx context.Context, peer types.Ed25519Key, frame []byte) error
}

// StreamHandler is implemented in addition to Handler by persistent
// kinds, which own their stream for its whole life instead of a single
// exchange.
type StreamHandler interface {
	Handler

	// ServeStream runs the persistent protocol until the stream or
	// context ends.
	ServeStream(ctx context.Context, peer types.Ed25519Key, stream FrameStream) error
}

// FrameStream is the slice of a transport stream a persistent handler
// needs.
type FrameStream interface {
	WriteFrame(payload []byte) error
	ReadFrame() ([]byte, error)
}

// Registry maps each stream kind to its handler.
type Registry struct {
	mu       sync.RWMutex
	handlers map[types.StreamKind]Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[types.StreamKind]Handler)}
}

// Register adds a handler; a second handler for the same kind is refused.
func (r *Registry) Register(h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kind := h.Kind()
	if _, ok := r.handlers[kind]; ok {
		return ErrDuplicateStreamKind
	}
	r.handlers[kind] = h
	return nil
}

// Lookup resolves the handler for a kind.
func (r *Registry) Lookup(kind types.StreamKind) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[kind]
	return h, ok
}

// Kinds lists the registered kinds.
func (r *Registry) Kinds() []types.StreamKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]types.StreamKind, 0, len(r.handlers))
	for k := range r.handlers {
		kinds = append(kinds, k)
	}
	return kinds
}
