// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package router moves frames between streams and protocol handlers: the
// accept side reads a stream's kind byte and dispatches, the initiator
// side runs the one-request half-close exchange.
package router

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/luxfi/log"

	"github.com/luxfi/jamnp/identity"
	"github.com/luxfi/jamnp/metrics"
	"github.com/luxfi/jamnp/networking/handler"
	"github.com/luxfi/jamnp/networking/transport"
	"github.com/luxfi/jamnp/types"
)

var ErrBuilderKind = errors.New("router: kind not open to builders")

// Router dispatches streams to handlers.
type Router struct {
	log      log.Logger
	registry *handler.Registry
	metrics  *metrics.Metrics

	// messageTimeout bounds one CE exchange end to end.
	messageTimeout time.Duration
}

// New builds a router over a filled registry.
func New(logger log.Logger, registry *handler.Registry, messageTimeout time.Duration, m *metrics.Metrics) *Router {
	return &Router{
		log:            logger,
		registry:       registry,
		metrics:        m,
		messageTimeout: messageTimeout,
	}
}

// ServeConnection accepts the peer's streams until the connection dies.
// Run on its own goroutine, one per connection.
func (r *Router) ServeConnection(ctx context.Context, conn *transport.Connection) {
	for {
		s, err := conn.AcceptStream(ctx)
		if err != nil {
			return
		}
		go r.serveStream(ctx, conn, s)
	}
}

func (r *Router) serveStream(ctx context.Context, conn *transport.Connection, s *transport.Stream) {
	peer := conn.PeerKey()
	kind := s.Kind()

	h, ok := r.registry.Lookup(kind)
	if !ok {
		r.metrics.CountUnknownKind()
		r.log.Debug("closing stream with unknown kind",
			log.Stringer("peer", peer),
			log.Uint32("kind", uint32(kind)))
		s.Abort(transport.CodeToStreamCode(transport.CodeUnknownKind))
		return
	}

	// Builders get exactly one capability.
	if conn.Role() == identity.RoleBuilder && kind != types.StreamKindWorkPackageSubmission {
		r.log.Debug("closing builder stream with restricted kind",
			log.Stringer("peer", peer),
			log.Stringer("kind", kind))
		s.Abort(transport.StreamCodeProtocol)
		return
	}

	if sh, ok := h.(handler.StreamHandler); ok && kind.IsPersistent() {
		if err := sh.ServeStream(ctx, peer, s); err != nil && ctx.Err() == nil {
			r.log.Debug("persistent stream ended",
				log.Stringer("peer", peer),
				log.Stringer("kind", kind),
				log.Err(err))
		}
		_ = s.Close()
		return
	}

	_ = s.SetDeadline(time.Now().Add(r.messageTimeout))

	frame, err := s.ReadFrame()
	if err != nil {
		r.log.Debug("failed reading request",
			log.Stringer("peer", peer),
			log.Stringer("kind", kind),
			log.Err(err))
		s.Abort(transport.StreamCodeProtocol)
		return
	}

	responses, err := h.HandleRequest(ctx, peer, frame)
	if err != nil {
		r.metrics.CountHandlerError()
		r.log.Debug("request handler failed",
			log.Stringer("peer", peer),
			log.Stringer("kind", kind),
			log.Err(err))
		s.Abort(transport.StreamCodeProtocol)
		return
	}

	for _, resp := range responses {
		if err := s.WriteFrame(resp); err != nil {
			r.log.Debug("failed writing response",
				log.Stringer("peer", peer),
				log.Stringer("kind", kind),
				log.Err(err))
			return
		}
	}
	_ = s.Close()
}

// Call runs one full request/response exchange as initiator: open the
// stream, send the request, half-close, and feed every response frame to
// the handler until the responder finishes.
func (r *Router) Call(ctx context.Context, conn *transport.Connection, kind types.StreamKind, request []byte) error {
	h, ok := r.registry.Lookup(kind)
	if !ok {
		return handler.ErrUnknownStreamKind
	}
	// Kinds whose responses carry no request identifier correlate through
	// a token derived from the request.
	if tokener, ok := h.(handler.Tokener); ok {
		token, err := tokener.RequestToken(request)
		if err != nil {
			return err
		}
		ctx = handler.WithCorrelation(ctx, token)
	}

	s, err := conn.OpenStream(ctx, kind)
	if err != nil {
		return err
	}
	_ = s.SetDeadline(time.Now().Add(r.messageTimeout))

	if err := s.WriteFrame(request); err != nil {
		s.Abort(transport.StreamCodeProtocol)
		return err
	}
	if err := s.CloseWrite(); err != nil {
		return err
	}

	peer := conn.PeerKey()
	for {
		frame, err := s.ReadFrame()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := h.HandleResponse(ctx, peer, frame); err != nil {
			r.metrics.CountHandlerError()
			s.Abort(transport.StreamCodeProtocol)
			return err
		}
	}
}

// Notify sends one fire-and-forget request: a single frame, then both
// halves close without waiting for anything back.
func (r *Router) Notify(ctx context.Context, conn *transport.Connection, kind types.StreamKind, request []byte) error {
	s, err := conn.OpenStream(ctx, kind)
	if err != nil {
		return err
	}
	_ = s.SetDeadline(time.Now().Add(r.messageTimeout))

	if err := s.WriteFrame(request); err != nil {
		s.Abort(transport.StreamCodeProtocol)
		return err
	}
	return s.Close()
}

// OpenAnnouncementStream opens the persistent UP0 stream on a fresh
// connection and runs its handler. Blocks until the stream or context
// ends; run on the connection's goroutine set.
func (r *Router) OpenAnnouncementStream(ctx context.Context, conn *transport.Connection) error {
	h, ok := r.registry.Lookup(types.StreamKindBlockAnnouncement)
	if !ok {
		return handler.ErrUnknownStreamKind
	}
	sh, ok := h.(handler.StreamHandler)
	if !ok {
		return handler.ErrUnknownStreamKind
	}

	s, err := conn.OpenStream(ctx, types.StreamKindBlockAnnouncement)
	if err != nil {
		return err
	}
	defer s.Close()
	return sh.ServeStream(ctx, conn.PeerKey(), s)
}
