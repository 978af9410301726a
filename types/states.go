// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

// ConnState tracks the lifecycle of a connection to one peer.
type ConnState uint8

const (
	ConnInitial ConnState = iota
	ConnConnecting
	ConnConnected
	ConnDisconnecting
	ConnDisconnected
	ConnError
)

func (s ConnState) String() string {
	switch s {
	case ConnInitial:
		return "initial"
	case ConnConnecting:
		return "connecting"
	case ConnConnected:
		return "connected"
	case ConnDisconnecting:
		return "disconnecting"
	case ConnDisconnected:
		return "disconnected"
	case ConnError:
		return "error"
	default:
		return "invalid"
	}
}

// StreamState tracks the lifecycle of one stream.
type StreamState uint8

const (
	StreamInitial StreamState = iota
	StreamOpen
	StreamClosing
	StreamClosed
	StreamError
)

func (s StreamState) String() string {
	switch s {
	case StreamInitial:
		return "initial"
	case StreamOpen:
		return "open"
	case StreamClosing:
		return "closing"
	case StreamClosed:
		return "closed"
	case StreamError:
		return "error"
	default:
		return "invalid"
	}
}
