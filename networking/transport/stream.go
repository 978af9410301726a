// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package transport

import (
	"sync/atomic"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/luxfi/jamnp/metrics"
	"github.com/luxfi/jamnp/types"
)

// Stream is one kind-tagged bidirectional QUIC stream. The initiator has
// already written the kind byte by the time a Stream exists on either
// side.
type Stream struct {
	kind        types.StreamKind
	qs          *quic.Stream
	conn        *Connection
	isInitiator bool
	state       atomic.Uint32
	maxFrame    uint32
	metrics     *metrics.Metrics
}

func newStream(conn *Connection, qs *quic.Stream, kind types.StreamKind, initiator bool) *Stream {
	s := &Stream{
		kind:        kind,
		qs:          qs,
		conn:        conn,
		isInitiator: initiator,
		maxFrame:    conn.maxFrame,
		metrics:     conn.metrics,
	}
	s.state.Store(uint32(types.StreamOpen))
	return s
}

// ID is the QUIC stream id, unique per connection.
func (s *Stream) ID() int64 {
	return int64(s.qs.StreamID())
}

func (s *Stream) Kind() types.StreamKind {
	return s.kind
}

func (s *Stream) IsInitiator() bool {
	return s.isInitiator
}

func (s *Stream) State() types.StreamState {
	return types.StreamState(s.state.Load())
}

// Conn returns the connection the stream belongs to.
func (s *Stream) Conn() *Connection {
	return s.conn
}

// WriteFrame sends one length-prefixed message.
func (s *Stream) WriteFrame(payload []byte) error {
	if st := s.State(); st != types.StreamOpen {
		return ErrStreamClosed
	}
	if err := WriteFrame(s.qs, payload); err != nil {
		s.state.Store(uint32(types.StreamError))
		return err
	}
	s.conn.touch()
	s.metrics.CountFrameSent(len(payload))
	return nil
}

// ReadFrame receives one length-prefixed message. io.EOF signals the
// remote finished cleanly on a frame boundary.
func (s *Stream) ReadFrame() ([]byte, error) {
	payload, err := ReadFrame(s.qs, s.maxFrame)
	if err != nil {
		return nil, err
	}
	s.conn.touch()
	s.metrics.CountFrameReceived(len(payload))
	return payload, nil
}

// SetDeadline bounds both directions of the stream.
func (s *Stream) SetDeadline(t time.Time) error {
	return s.qs.SetDeadline(t)
}

// CloseWrite half-closes the local write side; the remote stays readable
// until its own FIN.
func (s *Stream) CloseWrite() error {
	s.state.CompareAndSwap(uint32(types.StreamOpen), uint32(types.StreamClosing))
	return s.qs.Close()
}

// Close finishes the stream in both directions.
func (s *Stream) Close() error {
	err := s.qs.Close()
	s.qs.CancelRead(CodeToStreamCode(CodeShutdown))
	s.state.Store(uint32(types.StreamClosed))
	return err
}

// Abort resets the stream with an application error code.
func (s *Stream) Abort(code quic.StreamErrorCode) {
	s.qs.CancelWrite(code)
	s.qs.CancelRead(code)
	s.state.Store(uint32(types.StreamError))
}

// CodeToStreamCode maps a connection-level application code onto a stream
// error code.
func CodeToStreamCode(code quic.ApplicationErrorCode) quic.StreamErrorCode {
	return quic.StreamErrorCode(code)
}
