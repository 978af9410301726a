// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package handler

import (
	"context"
	"sync"

	"github.com/luxfi/jamnp/types"
)

type correlationKey struct {
	peer  types.Ed25519Key
	kind  types.StreamKind
	token string
}

// Correlator matches a response back to the request that caused it. The
// token is protocol-specific — kinds whose responses carry no request
// identifier put the request's distinguishing field (the erasure root,
// the report hash) into the token so concurrent exchanges with one peer
// cannot cross.
type Correlator struct {
	mu      sync.Mutex
	pending map[correlationKey]any
}

// NewCorrelator returns an empty correlator.
func NewCorrelator() *Correlator {
	return &Correlator{pending: make(map[correlationKey]any)}
}

// Put records context for an in-flight request.
func (c *Correlator) Put(peer types.Ed25519Key, kind types.StreamKind, token string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[correlationKey{peer, kind, token}] = v
}

// Take removes and returns the context for a finished request.
func (c *Correlator) Take(peer types.Ed25519Key, kind types.StreamKind, token string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := correlationKey{peer, kind, token}
	v, ok := c.pending[key]
	if ok {
		delete(c.pending, key)
	}
	return v, ok
}

// Tokener is implemented by handlers whose responses carry no request
// identifier of their own. The router derives the token from the request
// frame before sending it and delivers it to HandleResponse through the
// context.
type Tokener interface {
	RequestToken(frame []byte) (string, error)
}

type correlationCtxKey struct{}

// WithCorrelation attaches an exchange's correlation token to its context.
func WithCorrelation(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, correlationCtxKey{}, token)
}

// CorrelationFromContext retrieves the token WithCorrelation attached.
func CorrelationFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(correlationCtxKey{}).(string)
	return token, ok
}

// Peek returns the context without removing it, for protocols whose
// responses arrive as multiple frames.
func (c *Correlator) Peek(peer types.Ed25519Key, kind types.StreamKind, token string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.pending[correlationKey{peer, kind, token}]
	return v, ok
}
