// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/luxfi/jamnp/identity"
	"github.com/luxfi/jamnp/metrics"
	"github.com/luxfi/jamnp/types"
)

// ConnID identifies one connection for the lifetime of the process.
type ConnID uint64

// Connection is one authenticated QUIC connection to a peer. The peer's
// Ed25519 key is extracted from its certificate during admission; persistent
// streams are registered per kind so a peer gets at most one of each.
type Connection struct {
	id   ConnID
	qc   *quic.Conn
	peer types.Ed25519Key
	role identity.Role

	isInitiator bool
	maxFrame    uint32
	metrics     *metrics.Metrics

	state        atomic.Uint32
	lastActivity atomic.Int64

	mu         sync.Mutex
	persistent map[types.StreamKind]*Stream
}

func newConnection(
	id ConnID,
	qc *quic.Conn,
	peer types.Ed25519Key,
	role identity.Role,
	initiator bool,
	maxFrame uint32,
	m *metrics.Metrics,
) *Connection {
	c := &Connection{
		id:          id,
		qc:          qc,
		peer:        peer,
		role:        role,
		isInitiator: initiator,
		maxFrame:    maxFrame,
		metrics:     m,
		persistent:  make(map[types.StreamKind]*Stream),
	}
	c.state.Store(uint32(types.ConnConnected))
	c.touch()
	return c
}

func (c *Connection) ID() ConnID                { return c.id }
func (c *Connection) PeerKey() types.Ed25519Key { return c.peer }
func (c *Connection) Role() identity.Role       { return c.role }
func (c *Connection) IsInitiator() bool         { return c.isInitiator }
func (c *Connection) RemoteAddr() net.Addr      { return c.qc.RemoteAddr() }

func (c *Connection) State() types.ConnState {
	return types.ConnState(c.state.Load())
}

// Healthy reports whether the underlying QUIC connection is still alive.
func (c *Connection) Healthy() bool {
	return c.qc.Context().Err() == nil && c.State() == types.ConnConnected
}

// LastActivity is the time of the last frame in either direction.
func (c *Connection) LastActivity() time.Time {
	return time.Unix(0, c.lastActivity.Load())
}

func (c *Connection) touch() {
	c.lastActivity.Store(time.Now().UnixNano())
}

// OpenStream opens a bidirectional stream and writes the kind byte. For a
// persistent kind the stream is registered and an existing live stream is
// returned instead of opening a second one.
func (c *Connection) OpenStream(ctx context.Context, kind types.StreamKind) (*Stream, error) {
	if !c.Healthy() {
		return nil, ErrConnectionClosed
	}

	if kind.IsPersistent() {
		c.mu.Lock()
		if s, ok := c.persistent[kind]; ok && s.State() == types.StreamOpen {
			c.mu.Unlock()
			return s, nil
		}
		c.mu.Unlock()
	}

	qs, err := c.qc.OpenStreamSync(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionClosed, err)
	}
	if _, err := qs.Write([]byte{byte(kind)}); err != nil {
		qs.CancelWrite(StreamCodeProtocol)
		return nil, fmt.Errorf("writing stream kind: %w", err)
	}

	s := newStream(c, qs, kind, true)
	if kind.IsPersistent() {
		c.mu.Lock()
		c.persistent[kind] = s
		c.mu.Unlock()
	}
	c.metrics.CountStreamOpened()
	c.touch()
	return s, nil
}

// AcceptStream accepts the peer's next stream and reads its kind byte.
// The kind is not validated here; routing decides what an unknown kind
// means.
func (c *Connection) AcceptStream(ctx context.Context) (*Stream, error) {
	qs, err := c.qc.AcceptStream(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionClosed, err)
	}

	var kindByte [1]byte
	if _, err := qs.Read(kindByte[:]); err != nil {
		qs.CancelRead(StreamCodeProtocol)
		return nil, fmt.Errorf("reading stream kind: %w", err)
	}
	kind := types.StreamKind(kindByte[0])

	s := newStream(c, qs, kind, false)
	if kind.IsPersistent() {
		c.mu.Lock()
		c.persistent[kind] = s
		c.mu.Unlock()
	}
	c.metrics.CountStreamAccepted()
	c.touch()
	return s, nil
}

// PersistentStream returns the registered stream for a persistent kind.
func (c *Connection) PersistentStream(kind types.StreamKind) (*Stream, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.persistent[kind]
	return s, ok
}

// Close tears the connection down with an application error code. All of
// its streams die with it.
func (c *Connection) Close(code quic.ApplicationErrorCode, reason string) error {
	if !c.state.CompareAndSwap(uint32(types.ConnConnected), uint32(types.ConnDisconnecting)) {
		return nil
	}
	err := c.qc.CloseWithError(code, reason)
	c.state.Store(uint32(types.ConnDisconnected))
	c.metrics.DecConnections()
	return err
}
