package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// GatewayRequestsTotal counts every request handled at the gateway HTTP edge.
var GatewayRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "rpc_gateway",
		Name:      "requests_total",
		Help:      "Total number of requests received by the gateway edge.",
	},
	[]string{"user_id", "api_key", "path", "method", "status_code"},
)

// GatewayRequestDuration tracks end-to-end gateway request latency, from
// admission through proxying and response write.
var GatewayRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "rpc_gateway",
		Name:      "request_duration_seconds",
		Help:      "Gateway request duration in seconds, admission through response.",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	},
	[]string{"user_id", "api_key", "path", "method"},
)

// GatewayActiveConnections gauges requests currently being proxied upstream.
var GatewayActiveConnections = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "rpc_gateway",
		Name:      "active_connections",
		Help:      "Number of requests currently proxied to an upstream node.",
	},
)

// RPCRequestsTotal counts individual JSON-RPC/REST calls proxied upstream,
// labeled by rpc_method (execution JSON-RPC method, or "unknown"/"batch")
// and endpoint_type ("{chain}-execution" / "{chain}-consensus").
var RPCRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "rpc",
		Name:      "requests_total",
		Help:      "Total number of RPC calls proxied to upstream nodes.",
	},
	[]string{"user_id", "api_key", "rpc_method", "endpoint_type"},
)

// RPCRequestDuration tracks upstream call latency only (excludes admission
// and rate-limit overhead counted in GatewayRequestDuration).
var RPCRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "rpc",
		Name:      "request_duration_seconds",
		Help:      "Upstream RPC call duration in seconds.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	},
	[]string{"user_id", "api_key", "rpc_method", "endpoint_type"},
)

// GatewayRateLimitHitsTotal counts requests rejected by the token-bucket limiter.
var GatewayRateLimitHitsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "rpc_gateway",
		Subsystem: "rate_limit",
		Name:      "hits_total",
		Help:      "Total number of requests rejected by the per-app token bucket.",
	},
	[]string{"user_id", "api_key"},
)

// GatewayUserDailyRequests gauges each app's daily request counter as of the
// last admission check.
var GatewayUserDailyRequests = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "rpc_gateway",
		Name:      "user_daily_requests",
		Help:      "Current daily request count per app, reset at the daily boundary.",
	},
	[]string{"user_id", "api_key"},
)

// NewMetricsRegistry creates a Prometheus registry with Go/process
// collectors and every gateway metric, plus any extra service-specific
// collectors (e.g. pkg/alerting's notification counter).
func NewMetricsRegistry(extra ...prometheus.Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		GatewayRequestsTotal,
		GatewayRequestDuration,
		GatewayActiveConnections,
		RPCRequestsTotal,
		RPCRequestDuration,
		GatewayRateLimitHitsTotal,
		GatewayUserDailyRequests,
	)
	for _, c := range extra {
		reg.MustRegister(c)
	}
	return reg
}

// Handler returns the HTTP handler exposing reg in the Prometheus exposition
// format, mounted by internal/httpserver at config.MetricsPath.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
