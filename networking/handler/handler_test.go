// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package handler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/jamnp/types"
)

type nopHandler struct {
	kind types.StreamKind
}

func (h *nopHandler) Kind() types.StreamKind { return h.kind }

func (h *nopHandler) HandleRequest(context.Context, types.Ed25519Key, []byte) ([][]byte, error) {
	return nil, nil
}

func (h *nopHandler) HandleResponse(context.Context, types.Ed25519Key, []byte) error {
	return nil
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&nopHandler{kind: types.StreamKindBlockRequest}))
	require.ErrorIs(t, r.Register(&nopHandler{kind: types.StreamKindBlockRequest}), ErrDuplicateStreamKind)

	h, ok := r.Lookup(types.StreamKindBlockRequest)
	require.True(t, ok)
	require.Equal(t, types.StreamKindBlockRequest, h.Kind())

	_, ok = r.Lookup(types.StreamKindStateRequest)
	require.False(t, ok)
}

func TestCorrelator(t *testing.T) {
	c := NewCorrelator()
	var peerA, peerB types.Ed25519Key
	peerB[0] = 1

	c.Put(peerA, types.StreamKindShardDist, "root1", 10)
	c.Put(peerA, types.StreamKindShardDist, "root2", 20)
	c.Put(peerB, types.StreamKindShardDist, "root1", 30)

	// Same peer and kind, distinguished by token.
	v, ok := c.Peek(peerA, types.StreamKindShardDist, "root2")
	require.True(t, ok)
	require.Equal(t, 20, v)

	v, ok = c.Take(peerA, types.StreamKindShardDist, "root1")
	require.True(t, ok)
	require.Equal(t, 10, v)
	_, ok = c.Take(peerA, types.StreamKindShardDist, "root1")
	require.False(t, ok)

	// peerB's entry is untouched.
	v, ok = c.Take(peerB, types.StreamKindShardDist, "root1")
	require.True(t, ok)
	require.Equal(t, 30, v)
}
