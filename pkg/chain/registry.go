package chain

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"os"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	suffixExecution  = "_EXECUTION_RPC_URL"
	suffixConsensus  = "_CONSENSUS_API_URL"
	suffixPrometheus = "_PROMETHEUS_URL"
)

// ChainConfig is the resolved, in-memory view of a configured chain: the
// shape C5 (proxy) and C7 (health) actually consume.
type ChainConfig struct {
	Name           string
	ChainID        string
	Enabled        bool
	ExecutionURLs  []string
	ConsensusURLs  []string
	PrometheusURLs []string
}

// Registry is the in-memory Chain lookup table (C1). It is rebuilt from
// environment variables and Chain records in the Store, keyed by lowercased
// chain name. Safe for concurrent use.
type Registry struct {
	pool   *pgxpool.Pool
	logger *slog.Logger

	mu     sync.RWMutex
	chains map[string]ChainConfig
}

// NewRegistry creates a Registry seeded from the current process environment.
// Call Reload to additionally merge Chain records from the database.
func NewRegistry(pool *pgxpool.Pool, logger *slog.Logger) *Registry {
	r := &Registry{pool: pool, logger: logger}
	r.chains = parseEnvChains(os.Environ())
	return r
}

// Reload rebuilds the registry from the environment and the Store, replacing
// the in-memory table atomically. DB-configured chains take precedence over
// an env-configured chain of the same name.
func (r *Registry) Reload(ctx context.Context) {
	merged := parseEnvChains(os.Environ())

	if r.pool != nil {
		store := NewStore(r.pool)
		dbChains, err := store.List(ctx)
		if err != nil {
			r.logger.Warn("chain registry: loading chains from database", "error", err)
		} else {
			for _, c := range dbChains {
				merged[strings.ToLower(c.Name)] = ChainConfig{
					Name:           strings.ToLower(c.Name),
					ChainID:        c.ChainID,
					Enabled:        c.Enabled,
					ExecutionURLs:  c.ExecutionURLs,
					ConsensusURLs:  c.ConsensusURLs,
					PrometheusURLs: c.PrometheusURLs,
				}
			}
		}
	}

	r.mu.Lock()
	r.chains = merged
	r.mu.Unlock()
}

// parseEnvChains scans environment key/value pairs for
// {CHAIN}_EXECUTION_RPC_URL / {CHAIN}_CONSENSUS_API_URL / {CHAIN}_PROMETHEUS_URL
// entries and groups them by lowercased chain name. Variables beginning with
// "DEFAULT_" are never treated as chain names.
func parseEnvChains(environ []string) map[string]ChainConfig {
	chains := make(map[string]ChainConfig)

	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || strings.HasPrefix(key, "DEFAULT_") {
			continue
		}

		var chainName, field string
		switch {
		case strings.HasSuffix(key, suffixExecution):
			chainName = strings.TrimSuffix(key, suffixExecution)
			field = "execution"
		case strings.HasSuffix(key, suffixConsensus):
			chainName = strings.TrimSuffix(key, suffixConsensus)
			field = "consensus"
		case strings.HasSuffix(key, suffixPrometheus):
			chainName = strings.TrimSuffix(key, suffixPrometheus)
			field = "prometheus"
		default:
			continue
		}
		if chainName == "" {
			continue
		}

		name := strings.ToLower(chainName)
		c := chains[name]
		c.Name = name
		c.Enabled = true

		urls := splitURLList(value)
		switch field {
		case "execution":
			c.ExecutionURLs = urls
		case "consensus":
			c.ConsensusURLs = urls
		case "prometheus":
			c.PrometheusURLs = urls
		}
		chains[name] = c
	}

	return chains
}

// splitURLList splits a comma-separated list of URLs, trimming whitespace
// and discarding empty tokens. An all-empty value yields nil, not [].
func splitURLList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Names returns the lowercased names of every chain currently configured,
// used by the health sampler to enumerate what to probe on each tick.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.chains))
	for name := range r.chains {
		names = append(names, name)
	}
	return names
}

// Get returns the ChainConfig for name, case-insensitive. ok is false for an
// unknown chain.
func (r *Registry) Get(name string) (ChainConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.chains[strings.ToLower(name)]
	return c, ok
}

// PickExecution returns a uniformly random execution URL for name, or false
// if the chain is unknown or has no execution URLs configured.
func (r *Registry) PickExecution(name string) (string, bool) {
	c, ok := r.Get(name)
	if !ok {
		return "", false
	}
	return pickRandom(c.ExecutionURLs)
}

// PickConsensus returns a uniformly random consensus URL for name, or false
// if the chain is unknown or has no consensus URLs configured.
func (r *Registry) PickConsensus(name string) (string, bool) {
	c, ok := r.Get(name)
	if !ok {
		return "", false
	}
	return pickRandom(c.ConsensusURLs)
}

func pickRandom(urls []string) (string, bool) {
	if len(urls) == 0 {
		return "", false
	}
	if len(urls) == 1 {
		return urls[0], true
	}
	return urls[rand.IntN(len(urls))], true
}
