package observe

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func sumInt(t *testing.T, m *metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s: expected Sum[int64], got %T", m.Name, m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordEnqueued("speech")
	m.RecordDequeued(1)
	m.RecordDropped("muted", 1)
	m.RecordDispatch("sound", time.Second, errors.New("boom"))
	m.RecordFeedEvent("chat")
	m.RecordTransition("connected")
	m.RecordMilestone()
}

func TestQueueDepthTracksEnqueueAndDequeue(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.RecordEnqueued("speech")
	m.RecordEnqueued("sound")
	m.RecordEnqueued("sound")
	m.RecordDequeued(2)

	rm := collect(t, reader)
	depth := findMetric(rm, "announcer.queue.depth")
	if depth == nil {
		t.Fatal("queue depth metric not found")
	}
	if got := sumInt(t, depth); got != 1 {
		t.Errorf("queue depth = %d, want 1", got)
	}

	enq := findMetric(rm, "announcer.announcements.enqueued")
	if enq == nil {
		t.Fatal("enqueued metric not found")
	}
	if got := sumInt(t, enq); got != 3 {
		t.Errorf("enqueued = %d, want 3", got)
	}
}

func TestDispatchErrorsCounted(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.RecordDispatch("speech", 200*time.Millisecond, nil)
	m.RecordDispatch("speech", 100*time.Millisecond, errors.New("engine failed"))

	rm := collect(t, reader)
	errs := findMetric(rm, "announcer.dispatch.errors")
	if errs == nil {
		t.Fatal("dispatch errors metric not found")
	}
	if got := sumInt(t, errs); got != 1 {
		t.Errorf("dispatch errors = %d, want 1", got)
	}

	hist := findMetric(rm, "announcer.dispatch.duration")
	if hist == nil {
		t.Fatal("dispatch duration metric not found")
	}
	h, ok := hist.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("expected Histogram[float64], got %T", hist.Data)
	}
	var count uint64
	for _, dp := range h.DataPoints {
		count += dp.Count
	}
	if count != 2 {
		t.Errorf("histogram count = %d, want 2", count)
	}
}
