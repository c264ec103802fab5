// Package observe provides the OpenTelemetry metric instruments used across
// the announcer, plus a Prometheus exporter bridge so they can be scraped
// from /metrics.
//
// Every recording method is safe to call on a nil *Metrics, which keeps the
// instruments optional in tests and in components constructed without them.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all announcer metrics.
const meterName = "github.com/dgnsrekt/live-announcer"

// Metrics holds all metric instruments for the application.
type Metrics struct {
	// Enqueued counts accepted announcements by kind.
	Enqueued metric.Int64Counter

	// Dropped counts announcements that never reached the backend. Use with
	// attribute.String("reason", "muted"|"evicted"|"reset").
	Dropped metric.Int64Counter

	// DispatchDuration tracks backend call latency including cooldown.
	DispatchDuration metric.Float64Histogram

	// DispatchErrors counts failed backend calls by kind.
	DispatchErrors metric.Int64Counter

	// QueueDepth tracks the number of pending announcements.
	QueueDepth metric.Int64UpDownCounter

	// FeedEvents counts inbound feed events by type.
	FeedEvents metric.Int64Counter

	// SessionTransitions counts session state changes by target state.
	SessionTransitions metric.Int64Counter

	// Milestones counts like milestones announced.
	Milestones metric.Int64Counter
}

// dispatchBuckets are histogram boundaries in seconds for speech and clip
// playback, which run from a fraction of a second to tens of seconds.
var dispatchBuckets = []float64{
	0.1, 0.25, 0.5, 1, 1.5, 2.5, 5, 10, 20, 40,
}

// NewMetrics creates all instruments from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Enqueued, err = m.Int64Counter("announcer.announcements.enqueued",
		metric.WithDescription("Announcements accepted by the queue, by kind."),
	); err != nil {
		return nil, err
	}
	if met.Dropped, err = m.Int64Counter("announcer.announcements.dropped",
		metric.WithDescription("Announcements discarded before dispatch, by reason."),
	); err != nil {
		return nil, err
	}
	if met.DispatchDuration, err = m.Float64Histogram("announcer.dispatch.duration",
		metric.WithDescription("Time the audio output was held per announcement."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(dispatchBuckets...),
	); err != nil {
		return nil, err
	}
	if met.DispatchErrors, err = m.Int64Counter("announcer.dispatch.errors",
		metric.WithDescription("Failed audio backend calls, by kind."),
	); err != nil {
		return nil, err
	}
	if met.QueueDepth, err = m.Int64UpDownCounter("announcer.queue.depth",
		metric.WithDescription("Pending announcements."),
	); err != nil {
		return nil, err
	}
	if met.FeedEvents, err = m.Int64Counter("announcer.feed.events",
		metric.WithDescription("Inbound live feed events, by type."),
	); err != nil {
		return nil, err
	}
	if met.SessionTransitions, err = m.Int64Counter("announcer.session.transitions",
		metric.WithDescription("Feed session state transitions, by target state."),
	); err != nil {
		return nil, err
	}
	if met.Milestones, err = m.Int64Counter("announcer.likes.milestones",
		metric.WithDescription("Like milestones reached."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns a package-level instance built from the global
// meter provider. Call after InitProvider so it records into the exporter.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordEnqueued counts an accepted announcement.
func (m *Metrics) RecordEnqueued(kind string) {
	if m == nil {
		return
	}
	ctx := context.Background()
	m.Enqueued.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
	m.QueueDepth.Add(ctx, 1)
}

// RecordDequeued adjusts the queue depth after n items left the queue.
func (m *Metrics) RecordDequeued(n int) {
	if m == nil || n == 0 {
		return
	}
	m.QueueDepth.Add(context.Background(), -int64(n))
}

// RecordDropped counts n announcements discarded for reason.
func (m *Metrics) RecordDropped(reason string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.Dropped.Add(context.Background(), int64(n), metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordDispatch records one completed backend call.
func (m *Metrics) RecordDispatch(kind string, d time.Duration, err error) {
	if m == nil {
		return
	}
	ctx := context.Background()
	status := "ok"
	if err != nil {
		status = "error"
		m.DispatchErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
	}
	m.DispatchDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("status", status),
	))
}

// RecordFeedEvent counts one inbound feed event.
func (m *Metrics) RecordFeedEvent(eventType string) {
	if m == nil {
		return
	}
	m.FeedEvents.Add(context.Background(), 1, metric.WithAttributes(attribute.String("type", eventType)))
}

// RecordTransition counts a session state change.
func (m *Metrics) RecordTransition(state string) {
	if m == nil {
		return
	}
	m.SessionTransitions.Add(context.Background(), 1, metric.WithAttributes(attribute.String("state", state)))
}

// RecordMilestone counts a like milestone.
func (m *Metrics) RecordMilestone() {
	if m == nil {
		return
	}
	m.Milestones.Add(context.Background(), 1)
}
