package alerting

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nodebridge/rpc-gateway/internal/health"
)

func newTestNotifier() *Notifier {
	return NewNotifier("", "", slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestNotifier_FirstObservationIsNotATransition(t *testing.T) {
	n := newTestNotifier()
	n.Observe(context.Background(), health.Report{Chain: "ethereum", Status: health.StatusHealthy})

	count := testutilCounterTotal(n)
	if count != 0 {
		t.Errorf("notifications emitted on first observation = %d, want 0", count)
	}
}

func TestNotifier_TransitionIsDetected(t *testing.T) {
	n := newTestNotifier()
	ctx := context.Background()

	n.Observe(ctx, health.Report{Chain: "ethereum", Status: health.StatusHealthy})
	n.Observe(ctx, health.Report{Chain: "ethereum", Status: health.StatusUnhealthy})

	if testutilCounterTotal(n) != 1 {
		t.Errorf("notifications emitted after one transition = %d, want 1", testutilCounterTotal(n))
	}
}

func TestNotifier_RepeatedSameStatusIsNotATransition(t *testing.T) {
	n := newTestNotifier()
	ctx := context.Background()

	n.Observe(ctx, health.Report{Chain: "ethereum", Status: health.StatusHealthy})
	n.Observe(ctx, health.Report{Chain: "ethereum", Status: health.StatusHealthy})
	n.Observe(ctx, health.Report{Chain: "ethereum", Status: health.StatusHealthy})

	if testutilCounterTotal(n) != 0 {
		t.Errorf("notifications emitted with no transitions = %d, want 0", testutilCounterTotal(n))
	}
}

func testutilCounterTotal(n *Notifier) int {
	metricCh := make(chan prometheus.Metric, 8)
	n.notificationsTotal.Collect(metricCh)
	close(metricCh)

	total := 0
	for range metricCh {
		total++
	}
	return total
}
