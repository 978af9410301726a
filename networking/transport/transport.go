// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package transport owns the QUIC layer: one UDP socket carrying both the
// listener and every outbound dial, mutual TLS with self-signed
// Ed25519-keyed certificates, ALPN scoping to chain and role, and
// kind-tagged framed streams.
package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/luxfi/log"
	"github.com/quic-go/quic-go"

	"github.com/luxfi/jamnp/config"
	"github.com/luxfi/jamnp/identity"
	"github.com/luxfi/jamnp/metrics"
	"github.com/luxfi/jamnp/types"
)

const keepAlivePeriod = 15 * time.Second

// Transport binds the UDP socket and originates/accepts QUIC connections.
// Admission checks identity only; whether a peer is welcome is the
// connection manager's decision, made in the OnConnection callback.
type Transport struct {
	log log.Logger
	cfg config.Transport

	role      identity.Role
	chainHex  string
	tlsServer *tls.Config
	tlsClient *tls.Config
	quicConf  *quic.Config

	metrics *metrics.Metrics

	// OnConnection is invoked from the accept loop for every admitted
	// inbound connection.
	OnConnection func(*Connection)

	mu       sync.Mutex
	udpConn  *net.UDPConn
	qt       *quic.Transport
	listener *quic.Listener
	started  bool
	closed   bool

	nextConnID atomic.Uint64
}

// New prepares a transport for a node presenting [cert] with the given
// role on the given chain.
func New(
	logger log.Logger,
	cfg config.Transport,
	cert tls.Certificate,
	role identity.Role,
	chainHash [32]byte,
	m *metrics.Metrics,
) *Transport {
	own := identity.ALPNProtocol(role, chainHash)
	// A validator accepts both roles; dials always present our own.
	serverProtos := []string{own}
	if role == identity.RoleValidator {
		serverProtos = []string{
			identity.ALPNProtocol(identity.RoleValidator, chainHash),
			identity.ALPNProtocol(identity.RoleBuilder, chainHash),
		}
	}
	_, chainHex, _ := identity.ParseALPN(own)

	return &Transport{
		log:       logger,
		cfg:       cfg,
		role:      role,
		chainHex:  chainHex,
		tlsServer: identity.TLSConfig(cert, serverProtos),
		tlsClient: identity.TLSConfig(cert, []string{own}),
		quicConf: &quic.Config{
			HandshakeIdleTimeout: cfg.ConnectionTimeout,
			MaxIdleTimeout:       4 * keepAlivePeriod,
			KeepAlivePeriod:      keepAlivePeriod,
		},
		metrics: m,
	}
}

// Start binds the socket and begins accepting. The accept loop runs until
// Close.
func (t *Transport) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return nil
	}

	addr := &net.UDPAddr{
		IP:   net.ParseIP(t.cfg.ListenAddr),
		Port: int(t.cfg.ListenPort),
	}
	udpConn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBind, err)
	}
	t.udpConn = udpConn
	t.qt = &quic.Transport{Conn: udpConn}

	listener, err := t.qt.Listen(t.tlsServer, t.quicConf)
	if err != nil {
		udpConn.Close()
		return fmt.Errorf("%w: %v", ErrTLS, err)
	}
	t.listener = listener
	t.started = true

	t.log.Info("transport listening",
		log.String("addr", addr.String()),
		log.String("role", string(t.role)))

	go t.acceptLoop(ctx)
	return nil
}

func (t *Transport) acceptLoop(ctx context.Context) {
	for {
		qc, err := t.listener.Accept(ctx)
		if err != nil {
			if ctx.Err() == nil && !t.isClosed() {
				t.log.Warn("accept failed", log.Err(err))
			}
			return
		}
		go t.admit(qc)
	}
}

// admit runs identity admission on an inbound connection and hands it to
// the owner. A connection that fails admission is closed before anyone
// else sees it.
func (t *Transport) admit(qc *quic.Conn) {
	state := qc.ConnectionState().TLS

	role, chainHex, err := identity.ParseALPN(state.NegotiatedProtocol)
	if err != nil || chainHex != t.chainHex {
		t.log.Debug("dropping connection with bad ALPN",
			log.String("proto", state.NegotiatedProtocol))
		_ = qc.CloseWithError(CodeProtocol, "alpn mismatch")
		return
	}

	if len(state.PeerCertificates) == 0 {
		_ = qc.CloseWithError(CodeProtocol, "no certificate")
		return
	}
	peer, err := identity.PeerKeyFromCert(state.PeerCertificates[0])
	if err != nil {
		t.log.Debug("dropping connection with bad certificate", log.Err(err))
		_ = qc.CloseWithError(CodeProtocol, "bad certificate")
		return
	}

	conn := newConnection(
		ConnID(t.nextConnID.Add(1)),
		qc,
		peer,
		role,
		false,
		t.cfg.MaxFrameSize,
		t.metrics,
	)
	t.metrics.IncConnections()
	t.log.Debug("accepted connection",
		log.Stringer("peer", peer),
		log.String("role", string(role)),
		log.String("remote", qc.RemoteAddr().String()))

	if t.OnConnection != nil {
		t.OnConnection(conn)
	}
}

// Dial connects to a validator endpoint and verifies the certificate the
// peer presents carries the key the endpoint promised.
func (t *Transport) Dial(ctx context.Context, endpoint types.Endpoint) (*Connection, error) {
	t.mu.Lock()
	qt := t.qt
	t.mu.Unlock()
	if qt == nil {
		return nil, ErrConnectionClosed
	}

	udpAddr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(endpoint.Host, strconv.Itoa(int(endpoint.Port))))
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", endpoint, err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, t.cfg.ConnectionTimeout)
	defer cancel()

	qc, err := qt.Dial(dialCtx, udpAddr, t.tlsClient, t.quicConf)
	if err != nil {
		t.metrics.CountDialFailure()
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", ErrTimeout, endpoint)
		}
		if strings.Contains(err.Error(), "no_application_protocol") {
			return nil, fmt.Errorf("%w: %s", ErrAlpnMismatch, endpoint)
		}
		return nil, fmt.Errorf("%w: %v", ErrTLS, err)
	}

	state := qc.ConnectionState().TLS
	peer, err := identity.PeerKeyFromCert(state.PeerCertificates[0])
	if err != nil {
		_ = qc.CloseWithError(CodeProtocol, "bad certificate")
		t.metrics.CountDialFailure()
		return nil, err
	}
	if peer != endpoint.Key {
		_ = qc.CloseWithError(CodeProtocol, "unexpected peer key")
		t.metrics.CountDialFailure()
		return nil, fmt.Errorf("%w: dialed %s, got %s", ErrCertSubject, endpoint.Key, peer)
	}

	conn := newConnection(
		ConnID(t.nextConnID.Add(1)),
		qc,
		peer,
		identity.RoleValidator,
		true,
		t.cfg.MaxFrameSize,
		t.metrics,
	)
	t.metrics.IncConnections()
	t.log.Debug("dialed peer",
		log.Stringer("peer", peer),
		log.String("remote", endpoint.String()))
	return conn, nil
}

func (t *Transport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Close stops listening. Connections already handed out are closed by
// their owner.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true

	var err error
	if t.listener != nil {
		err = t.listener.Close()
	}
	if t.udpConn != nil {
		_ = t.udpConn.Close()
	}
	return err
}
