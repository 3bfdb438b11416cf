// Package chain implements the chain registry: the catalog of upstream
// blockchain networks the gateway can proxy to, and the in-memory lookup
// table consulted on every proxied request.
package chain

import "time"

// Chain is a configured upstream blockchain network, persisted by the
// admin-managed Chain Registry API.
type Chain struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	ChainID        string    `json:"chainId"`
	Enabled        bool      `json:"enabled"`
	AdminNotes     string    `json:"adminNotes,omitempty"`
	ExecutionURLs  []string  `json:"executionUrls"`
	ConsensusURLs  []string  `json:"consensusUrls"`
	PrometheusURLs []string  `json:"prometheusUrls"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// CreateRequest is the JSON body for POST /admin/chains.
type CreateRequest struct {
	Name           string   `json:"name" validate:"required"`
	ChainID        string   `json:"chainId" validate:"required"`
	Enabled        *bool    `json:"enabled"`
	AdminNotes     string   `json:"adminNotes"`
	ExecutionURLs  []string `json:"executionUrls"`
	ConsensusURLs  []string `json:"consensusUrls"`
	PrometheusURLs []string `json:"prometheusUrls"`
}

// UpdateRequest is the JSON body for PUT /admin/chains/{id}.
type UpdateRequest struct {
	Enabled        *bool    `json:"enabled"`
	AdminNotes     *string  `json:"adminNotes"`
	ExecutionURLs  []string `json:"executionUrls"`
	ConsensusURLs  []string `json:"consensusUrls"`
	PrometheusURLs []string `json:"prometheusUrls"`
}
