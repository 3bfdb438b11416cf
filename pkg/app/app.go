// Package app implements the Credential & Quota Store (C2): the App entity
// that identifies a tenant on the gateway's hot path, plus the atomic
// admission and counter-reset operations the Admission middleware requires.
package app

import (
	"time"

	"github.com/google/uuid"
)

// CreateRequest is the JSON body for POST /apps.
type CreateRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	ChainName   string `json:"chainName" validate:"required"`
}

// UpdateRequest is the JSON body for PATCH /apps/{id}.
type UpdateRequest struct {
	Name               *string  `json:"name"`
	Description        *string  `json:"description"`
	Active             *bool    `json:"active"`
	MaxRps             *float64 `json:"maxRps"`
	DailyRequestsLimit *int64   `json:"dailyRequestsLimit"`
}

// Response is the public JSON representation of an App.
type Response struct {
	ID                 uuid.UUID `json:"id"`
	OwnerUserID        uuid.UUID `json:"ownerUserId"`
	Name               string    `json:"name"`
	Description        string    `json:"description"`
	APIKey             uuid.UUID `json:"apiKey"`
	ChainName          string    `json:"chainName"`
	ChainID            string    `json:"chainId"`
	MaxRps             float64   `json:"maxRps"`
	DailyRequestsLimit int64     `json:"dailyRequestsLimit"`
	TotalRequests      int64     `json:"totalRequests"`
	DailyRequests      int64     `json:"dailyRequests"`
	LastResetDate      time.Time `json:"lastResetDate"`
	Active             bool      `json:"active"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// AdmitReason explains why AdmitByApiKey refused a request.
type AdmitReason string

// InvalidOrInactive is returned when no App matches the key, or the
// matching App is not active.
const InvalidOrInactive AdmitReason = "invalid_or_inactive"

// AdmitResult is the outcome of an atomic admission attempt (C2.AdmitByApiKey).
type AdmitResult struct {
	App      Row
	Admitted bool
	Reason   AdmitReason
}
