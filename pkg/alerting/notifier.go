// Package alerting posts Slack notifications when a chain's health status
// transitions, adapted from the gateway's Slack integration conventions.
package alerting

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	goslack "github.com/slack-go/slack"

	"github.com/nodebridge/rpc-gateway/internal/health"
)

// Notifier posts chain health transitions to a Slack channel. If botToken or
// channel is empty it only logs transitions.
type Notifier struct {
	client  *goslack.Client
	channel string
	logger  *slog.Logger

	mu       sync.Mutex
	lastSeen map[string]health.Status

	notificationsTotal *prometheus.CounterVec
}

// NewNotifier creates a Notifier. If botToken is empty, the notifier logs
// transitions instead of posting to Slack.
func NewNotifier(botToken, channel string, logger *slog.Logger) *Notifier {
	var client *goslack.Client
	if botToken != "" {
		client = goslack.New(botToken)
	}
	return &Notifier{
		client:   client,
		channel:  channel,
		logger:   logger,
		lastSeen: make(map[string]health.Status),
		notificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rpc_gateway",
				Subsystem: "alerting",
				Name:      "notifications_total",
				Help:      "Total number of chain health transition notifications emitted.",
			},
			[]string{"chain", "status"},
		),
	}
}

// Collector exposes the notifier's Prometheus collector for registration.
func (n *Notifier) Collector() prometheus.Collector {
	return n.notificationsTotal
}

// IsEnabled returns true if the notifier will post to a real Slack channel.
func (n *Notifier) IsEnabled() bool {
	return n.client != nil && n.channel != ""
}

// Observe records a chain's latest health report and, if its overall status
// changed since the last observation, notifies. The first observation of a
// chain is never itself a transition.
func (n *Notifier) Observe(ctx context.Context, report health.Report) {
	n.mu.Lock()
	previous, seen := n.lastSeen[report.Chain]
	n.lastSeen[report.Chain] = report.Status
	n.mu.Unlock()

	if !seen || previous == report.Status {
		return
	}

	n.notificationsTotal.WithLabelValues(report.Chain, string(report.Status)).Inc()
	n.notifyTransition(ctx, report.Chain, previous, report.Status)
}

func (n *Notifier) notifyTransition(ctx context.Context, chain string, from, to health.Status) {
	text := fmt.Sprintf("%s chain %q health: %s -> %s", emoji(to), chain, from, to)

	if !n.IsEnabled() {
		n.logger.Info("chain health transition", "chain", chain, "from", from, "to", to)
		return
	}

	if _, _, err := n.client.PostMessageContext(ctx, n.channel, goslack.MsgOptionText(text, false)); err != nil {
		n.logger.Error("posting health transition to slack", "chain", chain, "error", err)
	}
}

func emoji(s health.Status) string {
	switch s {
	case health.StatusHealthy, health.StatusAvailable:
		return ":white_check_mark:"
	case health.StatusDegraded:
		return ":warning:"
	default:
		return ":rotating_light:"
	}
}
