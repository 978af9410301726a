// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package transport

import (
	"errors"

	"github.com/quic-go/quic-go"
)

var (
	ErrBind             = errors.New("transport: failed binding listen socket")
	ErrTLS              = errors.New("transport: TLS handshake failed")
	ErrAlpnMismatch     = errors.New("transport: ALPN mismatch")
	ErrCertSubject      = errors.New("transport: certificate subject mismatch")
	ErrTimeout          = errors.New("transport: handshake timed out")
	ErrConnectionClosed = errors.New("transport: connection closed")
	ErrStreamClosed     = errors.New("transport: stream closed")
	ErrFrameTooLarge    = errors.New("transport: frame exceeds size limit")
)

// Application error codes carried on QUIC CONNECTION_CLOSE / RESET_STREAM
// frames.
const (
	CodeShutdown     quic.ApplicationErrorCode = 0
	CodeUnknownKind  quic.ApplicationErrorCode = 1
	CodeProtocol     quic.ApplicationErrorCode = 2
	CodePeerNotInSet quic.ApplicationErrorCode = 3
	CodeDuplicate    quic.ApplicationErrorCode = 4

	StreamCodeProtocol quic.StreamErrorCode = 2
)
