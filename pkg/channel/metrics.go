/*
 * Copyright 2025 SREDiag Authors
 * Copyright 2023 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package channel

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "github.com/srediag/shmipc/pkg/channel"

var (
	sentMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shmipc",
		Name:      "sent_messages_total",
		Help:      "Messages committed to a channel by this process.",
	}, []string{"channel"})
	sentBytes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shmipc",
		Name:      "sent_bytes_total",
		Help:      "Payload bytes committed to a channel by this process.",
	}, []string{"channel"})
	receivedMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shmipc",
		Name:      "received_messages_total",
		Help:      "Messages received from a channel by this process.",
	}, []string{"channel"})
	receivedBytes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shmipc",
		Name:      "received_bytes_total",
		Help:      "Payload bytes received from a channel by this process.",
	}, []string{"channel"})
	operationFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shmipc",
		Name:      "operation_failures_total",
		Help:      "Failed channel operations by operation and reason.",
	}, []string{"channel", "op", "reason"})
	attachedPeers = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "shmipc",
		Name:      "attached_peers",
		Help:      "Handles attached to a channel region, as last seen by this process.",
	}, []string{"channel"})

	collectors = []prometheus.Collector{
		sentMessages, sentBytes, receivedMessages, receivedBytes, operationFailures, attachedPeers,
	}
)

// registerCollectors registers the channel collectors once per registerer.
func registerCollectors(reg prometheus.Registerer) {
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				internalLogger.Warnf("register collector: %v", err)
			}
		}
	}
}

// metrics is the per-handle view of the Prometheus and OpenTelemetry instruments.
type metrics struct {
	name string

	sentMsgs  prometheus.Counter
	sentBytes prometheus.Counter
	recvMsgs  prometheus.Counter
	recvBytes prometheus.Counter
	peers     prometheus.Gauge

	otelSent metric.Int64Counter
	otelRecv metric.Int64Counter
	attrs    metric.MeasurementOption
	tracer   trace.Tracer
}

func newMetrics(name string, conf *Config) *metrics {
	reg := conf.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	registerCollectors(reg)

	meter := conf.Meter
	if meter == nil {
		meter = metricnoop.NewMeterProvider().Meter(instrumentationName)
	}
	tracer := conf.Tracer
	if tracer == nil {
		tracer = tracenoop.NewTracerProvider().Tracer(instrumentationName)
	}

	m := &metrics{
		name:      name,
		sentMsgs:  sentMessages.WithLabelValues(name),
		sentBytes: sentBytes.WithLabelValues(name),
		recvMsgs:  receivedMessages.WithLabelValues(name),
		recvBytes: receivedBytes.WithLabelValues(name),
		peers:     attachedPeers.WithLabelValues(name),
		attrs:     metric.WithAttributes(attribute.String("shmipc.channel", name)),
		tracer:    tracer,
	}
	var err error
	if m.otelSent, err = meter.Int64Counter("shmipc.messages.sent",
		metric.WithDescription("Messages committed to a channel."),
		metric.WithUnit("{message}")); err != nil {
		internalLogger.Warnf("create otel counter: %v", err)
		m.otelSent = metricnoop.Int64Counter{}
	}
	if m.otelRecv, err = meter.Int64Counter("shmipc.messages.received",
		metric.WithDescription("Messages received from a channel."),
		metric.WithUnit("{message}")); err != nil {
		internalLogger.Warnf("create otel counter: %v", err)
		m.otelRecv = metricnoop.Int64Counter{}
	}
	return m
}

func (m *metrics) startSpan(ctx context.Context, op string, kind trace.SpanKind, size int) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, "shmipc."+op,
		trace.WithSpanKind(kind),
		trace.WithAttributes(
			attribute.String("shmipc.channel", m.name),
			attribute.Int("shmipc.message.size", size),
		))
}

func (m *metrics) sent(ctx context.Context, n int) {
	m.sentMsgs.Inc()
	m.sentBytes.Add(float64(n))
	m.otelSent.Add(ctx, 1, m.attrs)
}

func (m *metrics) received(ctx context.Context, n int) {
	m.recvMsgs.Inc()
	m.recvBytes.Add(float64(n))
	m.otelRecv.Add(ctx, 1, m.attrs)
}

func (m *metrics) failed(span trace.Span, op string, err error) {
	operationFailures.WithLabelValues(m.name, op, failureReason(err)).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrCapacityExceeded):
		return "capacity"
	case errors.Is(err, ErrChannelClosed):
		return "closed"
	case errors.Is(err, ErrCorruptedState):
		return "corrupted"
	case errors.Is(err, ErrInvalidHandle):
		return "invalid_handle"
	case errors.Is(err, ErrEmptyMessage):
		return "empty_message"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	return "other"
}
