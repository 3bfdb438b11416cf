// Package health implements the Health Aggregator (C7): parallel probes of
// every upstream configured for a chain, composed into a per-service and
// overall status.
package health

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nodebridge/rpc-gateway/pkg/chain"
)

// Status is a per-service-class or overall health status.
type Status string

const (
	StatusHealthy       Status = "healthy"
	StatusDegraded      Status = "degraded"
	StatusUnhealthy     Status = "unhealthy"
	StatusAvailable     Status = "available"
	StatusUnavailable   Status = "unavailable"
	StatusNotConfigured Status = "not_configured"
)

// NodeResult is the probe outcome for a single upstream URL.
type NodeResult struct {
	URL       string  `json:"url"`
	Healthy   bool    `json:"healthy"`
	IsSyncing *bool   `json:"isSyncing,omitempty"`
	HeadSlot  *int64  `json:"headSlot,omitempty"`
	Error     string  `json:"error,omitempty"`
	LatencyMs float64 `json:"latencyMs"`
}

// ServiceHealth is the composed status for one service class (execution,
// consensus, or prometheus) across all of its configured nodes.
type ServiceHealth struct {
	Status Status       `json:"status"`
	Nodes  []NodeResult `json:"nodes"`
}

// Report is the full health response for a chain.
type Report struct {
	Chain      string        `json:"chain"`
	Status     Status        `json:"status"`
	Execution  ServiceHealth `json:"execution"`
	Consensus  ServiceHealth `json:"consensus"`
	Prometheus ServiceHealth `json:"prometheus"`
	CheckedAt  time.Time     `json:"checkedAt"`
}

// Aggregator probes chain upstreams and caches results briefly in Redis to
// absorb bursts of health-check traffic without re-probing every node.
type Aggregator struct {
	registry *chain.Registry
	cache    *redis.Client
	cacheTTL time.Duration
	client   *http.Client
}

// NewAggregator creates an Aggregator. cache may be nil, in which case
// probing always runs fresh (no caching).
func NewAggregator(registry *chain.Registry, cache *redis.Client, cacheTTL time.Duration) *Aggregator {
	return &Aggregator{
		registry: registry,
		cache:    cache,
		cacheTTL: cacheTTL,
		client:   &http.Client{Timeout: 50 * time.Second},
	}
}

// Check returns the Report for the given chain, serving a cached result when
// available. ok is false if the chain is unknown.
func (a *Aggregator) Check(ctx context.Context, chainName string) (Report, bool) {
	cfg, ok := a.registry.Get(chainName)
	if !ok {
		return Report{}, false
	}

	cacheKey := "health:" + strings.ToLower(cfg.Name)
	if a.cache != nil {
		if cached, err := a.cache.Get(ctx, cacheKey).Bytes(); err == nil {
			var report Report
			if json.Unmarshal(cached, &report) == nil {
				return report, true
			}
		}
	}

	report := a.probe(ctx, cfg)

	if a.cache != nil {
		if data, err := json.Marshal(report); err == nil {
			a.cache.Set(ctx, cacheKey, data, a.cacheTTL)
		}
	}

	return report, true
}

func (a *Aggregator) probe(ctx context.Context, cfg chain.ChainConfig) Report {
	var wg sync.WaitGroup
	var execHealth, consHealth, promHealth ServiceHealth

	wg.Add(3)
	go func() {
		defer wg.Done()
		execHealth = a.probeExecution(ctx, cfg.ExecutionURLs)
	}()
	go func() {
		defer wg.Done()
		consHealth = a.probeConsensus(ctx, cfg.ConsensusURLs)
	}()
	go func() {
		defer wg.Done()
		promHealth = a.probePrometheus(ctx, cfg.PrometheusURLs)
	}()
	wg.Wait()

	return Report{
		Chain:      cfg.Name,
		Status:     overallStatus(execHealth.Status, consHealth.Status),
		Execution:  execHealth,
		Consensus:  consHealth,
		Prometheus: promHealth,
		CheckedAt:  time.Now().UTC(),
	}
}

// overallStatus composes the execution and consensus service statuses per
// the documented rule: healthy unless one is unhealthy; degraded for a
// single unhealthy class as long as the combined unhealthy+not_configured
// count stays below two; unhealthy otherwise; not_configured when both
// classes are not_configured.
func overallStatus(exec, cons Status) Status {
	if exec == StatusNotConfigured && cons == StatusNotConfigured {
		return StatusNotConfigured
	}

	unhealthyCount := 0
	absentCount := 0
	for _, s := range []Status{exec, cons} {
		switch s {
		case StatusUnhealthy, StatusUnavailable:
			unhealthyCount++
		case StatusNotConfigured:
			absentCount++
		}
	}

	switch {
	case unhealthyCount == 0:
		return StatusHealthy
	case unhealthyCount == 1 && unhealthyCount+absentCount < 2:
		return StatusDegraded
	default:
		return StatusUnhealthy
	}
}

func (a *Aggregator) probeExecution(ctx context.Context, urls []string) ServiceHealth {
	if len(urls) == 0 {
		return ServiceHealth{Status: StatusNotConfigured}
	}

	results := a.probeAll(ctx, urls, a.probeExecutionNode)
	return ServiceHealth{Status: nodeSetStatus(results, StatusHealthy, StatusUnhealthy), Nodes: results}
}

func (a *Aggregator) probeConsensus(ctx context.Context, urls []string) ServiceHealth {
	if len(urls) == 0 {
		return ServiceHealth{Status: StatusNotConfigured}
	}

	results := a.probeAll(ctx, urls, a.probeConsensusNode)
	return ServiceHealth{Status: nodeSetStatus(results, StatusHealthy, StatusUnhealthy), Nodes: results}
}

func (a *Aggregator) probePrometheus(ctx context.Context, urls []string) ServiceHealth {
	if len(urls) == 0 {
		return ServiceHealth{Status: StatusNotConfigured}
	}

	results := a.probeAll(ctx, urls, a.probePrometheusNode)
	return ServiceHealth{Status: nodeSetStatus(results, StatusAvailable, StatusUnavailable), Nodes: results}
}

func nodeSetStatus(results []NodeResult, up, down Status) Status {
	for _, r := range results {
		if r.Healthy {
			return up
		}
	}
	return down
}

func (a *Aggregator) probeAll(ctx context.Context, urls []string, probe func(context.Context, string) NodeResult) []NodeResult {
	results := make([]NodeResult, len(urls))
	var wg sync.WaitGroup
	wg.Add(len(urls))
	for i, u := range urls {
		go func(i int, u string) {
			defer wg.Done()
			results[i] = probe(ctx, u)
		}(i, u)
	}
	wg.Wait()
	return results
}

func (a *Aggregator) probeExecutionNode(ctx context.Context, url string) NodeResult {
	start := time.Now()
	payload := []byte(`{"jsonrpc":"2.0","method":"eth_syncing","params":[],"id":1}`)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return NodeResult{URL: url, Healthy: false, Error: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	latency := time.Since(start).Seconds() * 1000
	if err != nil {
		return NodeResult{URL: url, Healthy: false, Error: err.Error(), LatencyMs: latency}
	}
	defer resp.Body.Close()

	return NodeResult{URL: url, Healthy: resp.StatusCode >= 200 && resp.StatusCode < 300, LatencyMs: latency}
}

type consensusSyncingResponse struct {
	Data struct {
		IsSyncing bool   `json:"is_syncing"`
		HeadSlot  string `json:"head_slot"`
	} `json:"data"`
}

func (a *Aggregator) probeConsensusNode(ctx context.Context, url string) NodeResult {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	endpoint := strings.TrimRight(url, "/") + "/eth/v1/node/syncing"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return NodeResult{URL: url, Healthy: false, Error: err.Error()}
	}

	resp, err := a.client.Do(req)
	latency := time.Since(start).Seconds() * 1000
	if err != nil {
		return NodeResult{URL: url, Healthy: false, Error: err.Error(), LatencyMs: latency}
	}
	defer resp.Body.Close()

	result := NodeResult{URL: url, Healthy: resp.StatusCode >= 200 && resp.StatusCode < 300, LatencyMs: latency}

	var body consensusSyncingResponse
	if json.NewDecoder(resp.Body).Decode(&body) == nil {
		isSyncing := body.Data.IsSyncing
		result.IsSyncing = &isSyncing
		if slot, err := parseSlot(body.Data.HeadSlot); err == nil {
			result.HeadSlot = &slot
		}
	}

	return result
}

func parseSlot(s string) (int64, error) {
	var slot int64
	_, err := fmt.Sscanf(s, "%d", &slot)
	return slot, err
}

func (a *Aggregator) probePrometheusNode(ctx context.Context, url string) NodeResult {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	endpoint := strings.TrimRight(url, "/") + "/metrics"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return NodeResult{URL: url, Healthy: false, Error: err.Error()}
	}

	resp, err := a.client.Do(req)
	latency := time.Since(start).Seconds() * 1000
	if err != nil {
		return NodeResult{URL: url, Healthy: false, Error: err.Error(), LatencyMs: latency}
	}
	defer resp.Body.Close()

	return NodeResult{URL: url, Healthy: resp.StatusCode >= 200 && resp.StatusCode < 300, LatencyMs: latency}
}
