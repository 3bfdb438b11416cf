// Package proxy implements the Reverse Proxy Engine (C5): the component
// that forwards an admitted, rate-limited request to the chain's selected
// execution or consensus upstream, and records per-call RPC metrics.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nodebridge/rpc-gateway/internal/admission"
	"github.com/nodebridge/rpc-gateway/internal/httpserver"
	"github.com/nodebridge/rpc-gateway/internal/telemetry"
	"github.com/nodebridge/rpc-gateway/pkg/chain"
)

const upstreamTimeout = 60 * time.Second

// section identifies which upstream URL set a request targets.
type section string

const (
	sectionExecution section = "exec"
	sectionConsensus section = "cons"
)

// Handler forwards proxied RPC traffic to chain upstreams.
type Handler struct {
	registry *chain.Registry
	logger   *slog.Logger
	client   *http.Client
}

// NewHandler creates a proxy Handler backed by the given chain Registry.
func NewHandler(registry *chain.Registry, logger *slog.Logger) *Handler {
	return &Handler{
		registry: registry,
		logger:   logger,
		client: &http.Client{
			Timeout: upstreamTimeout,
		},
	}
}

// ServeHTTP implements C5. It expects to be mounted under a route carrying
// {chain}, {section}, {key} URL params and a wildcard tail, with the
// admission and rate-limit middlewares already applied upstream.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	chainParam := strings.ToLower(chi.URLParam(r, "chain"))
	sectionParam := section(strings.ToLower(chi.URLParam(r, "section")))
	tail := chi.URLParam(r, "*")

	cfg, ok := h.registry.Get(chainParam)
	if !ok {
		httpserver.RespondError(w, http.StatusNotFound, "not_found", "unknown chain")
		return
	}

	var (
		target       string
		found        bool
		endpointType = fmt.Sprintf("%s-%s", chainParam, sectionName(sectionParam))
	)
	switch sectionParam {
	case sectionExecution:
		target, found = h.registry.PickExecution(chainParam)
	case sectionConsensus:
		target, found = h.registry.PickConsensus(chainParam)
	default:
		httpserver.RespondError(w, http.StatusNotFound, "not_found", "unknown endpoint section")
		return
	}
	if !found {
		httpserver.RespondError(w, http.StatusNotFound, "not_found", fmt.Sprintf("no %s upstream configured for %s", sectionName(sectionParam), cfg.Name))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "failed to read request body")
		return
	}
	rpcMethod := extractRPCMethod(body)

	telemetry.GatewayActiveConnections.Inc()
	defer telemetry.GatewayActiveConnections.Dec()

	upstreamURL := strings.TrimRight(target, "/") + "/" + strings.TrimLeft(tail, "/")
	if r.URL.RawQuery != "" {
		upstreamURL += "?" + r.URL.RawQuery
	}

	ctx, cancel := context.WithTimeout(r.Context(), upstreamTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, r.Method, upstreamURL, bytes.NewReader(body))
	if err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to build upstream request")
		return
	}
	req.Header = r.Header.Clone()

	resp, err := h.client.Do(req)
	duration := time.Since(start)

	userID, apiKey := labelsFromContext(r.Context())
	telemetry.RPCRequestsTotal.WithLabelValues(userID, apiKey, rpcMethod, endpointType).Inc()
	telemetry.RPCRequestDuration.WithLabelValues(userID, apiKey, rpcMethod, endpointType).Observe(duration.Seconds())

	if err != nil {
		h.logger.Warn("upstream request failed", "chain", chainParam, "section", sectionParam, "error", err)
		httpserver.Respond(w, http.StatusBadGateway, httpserver.ErrorResponse{
			Error:        "Bad Gateway",
			Message:      fmt.Sprintf("Failed to connect to the %s %s node", chainParam, sectionName(sectionParam)),
			EndpointType: endpointType,
		})
		return
	}
	defer resp.Body.Close()

	for key, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	w.Header().Set("X-RPC-Gateway", "NodeBridge")
	w.Header().Set("X-Endpoint-Type", endpointType)
	w.Header().Set("X-Response-Time", fmt.Sprintf("%.6fs", duration.Seconds()))

	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Warn("copying upstream response body", "error", err)
	}
}

// labelsFromContext returns the owner and api key of the admitted App for
// metrics labeling, or ("", "") if the proxy somehow ran without admission.
func labelsFromContext(ctx context.Context) (userID, apiKey string) {
	resolved, ok := admission.FromContext(ctx)
	if !ok {
		return "", ""
	}
	return resolved.OwnerUserID.String(), resolved.APIKey.String()
}

func sectionName(s section) string {
	switch s {
	case sectionExecution:
		return "execution"
	case sectionConsensus:
		return "consensus"
	default:
		return string(s)
	}
}

// rpcEnvelope captures just enough of a JSON-RPC request to classify it for
// metrics labeling; all other fields are forwarded verbatim and untouched.
type rpcEnvelope struct {
	Method string `json:"method"`
}

// extractRPCMethod returns the JSON-RPC method name for a single request,
// "batch" for a JSON array of requests, or "unknown" when the body can't be
// classified. The raw body is never mutated by this inspection.
func extractRPCMethod(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return "unknown"
	}
	if trimmed[0] == '[' {
		return "batch"
	}

	var env rpcEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil || env.Method == "" {
		return "unknown"
	}
	return env.Method
}
