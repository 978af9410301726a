// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts what the networking layer does. A zero-value *Metrics is
// valid and counts nothing, so components can run without a registry.
type Metrics struct {
	Connections      prometheus.Gauge
	DialFailures     prometheus.Counter
	StreamsOpened    prometheus.Counter
	StreamsAccepted  prometheus.Counter
	FramesSent       prometheus.Counter
	FramesReceived   prometheus.Counter
	BytesSent        prometheus.Counter
	BytesReceived    prometheus.Counter
	HandlerErrors    prometheus.Counter
	UnknownKinds     prometheus.Counter
	EpochTransitions prometheus.Counter
}

// New builds and registers the collector set.
func New(registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "jamnp_connections",
			Help: "Number of live peer connections",
		}),
		DialFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jamnp_dial_failures",
			Help: "Number of failed outbound connection attempts",
		}),
		StreamsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jamnp_streams_opened",
			Help: "Number of streams opened by this node",
		}),
		StreamsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jamnp_streams_accepted",
			Help: "Number of streams accepted from peers",
		}),
		FramesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jamnp_frames_sent",
			Help: "Number of message frames written",
		}),
		FramesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jamnp_frames_received",
			Help: "Number of message frames read",
		}),
		BytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jamnp_bytes_sent",
			Help: "Payload bytes written across all streams",
		}),
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jamnp_bytes_received",
			Help: "Payload bytes read across all streams",
		}),
		HandlerErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jamnp_handler_errors",
			Help: "Number of protocol handler failures",
		}),
		UnknownKinds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jamnp_unknown_stream_kinds",
			Help: "Number of streams closed for an unregistered kind byte",
		}),
		EpochTransitions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jamnp_epoch_transitions",
			Help: "Number of epoch connectivity transitions applied",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.Connections,
		m.DialFailures,
		m.StreamsOpened,
		m.StreamsAccepted,
		m.FramesSent,
		m.FramesReceived,
		m.BytesSent,
		m.BytesReceived,
		m.HandlerErrors,
		m.UnknownKinds,
		m.EpochTransitions,
	} {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// helpers tolerant of a nil receiver or unregistered collectors

func (m *Metrics) IncConnections() {
	if m != nil && m.Connections != nil {
		m.Connections.Inc()
	}
}

func (m *Metrics) DecConnections() {
	if m != nil && m.Connections != nil {
		m.Connections.Dec()
	}
}

func (m *Metrics) CountDialFailure() {
	if m != nil && m.DialFailures != nil {
		m.DialFailures.Inc()
	}
}

func (m *Metrics) CountStreamOpened() {
	if m != nil && m.StreamsOpened != nil {
		m.StreamsOpened.Inc()
	}
}

func (m *Metrics) CountStreamAccepted() {
	if m != nil && m.StreamsAccepted != nil {
		m.StreamsAccepted.Inc()
	}
}

func (m *Metrics) CountFrameSent(bytes int) {
	if m == nil {
		return
	}
	if m.FramesSent != nil {
		m.FramesSent.Inc()
	}
	if m.BytesSent != nil {
		m.BytesSent.Add(float64(bytes))
	}
}

func (m *Metrics) CountFrameReceived(bytes int) {
	if m == nil {
		return
	}
	if m.FramesReceived != nil {
		m.FramesReceived.Inc()
	}
	if m.BytesReceived != nil {
		m.BytesReceived.Add(float64(bytes))
	}
}

func (m *Metrics) CountHandlerError() {
	if m != nil && m.HandlerErrors != nil {
		m.HandlerErrors.Inc()
	}
}

func (m *Metrics) CountUnknownKind() {
	if m != nil && m.UnknownKinds != nil {
		m.UnknownKinds.Inc()
	}
}

func (m *Metrics) CountEpochTransition() {
	if m != nil && m.EpochTransitions != nil {
		m.EpochTransitions.Inc()
	}
}
