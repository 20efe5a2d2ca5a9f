// Package connector defines the provider adapter contract: each external
// data provider (web analytics, CRM, ad platforms) is wrapped by a Connector
// that returns normalized, explicitly typed records or a typed failure.
package connector

import (
	"context"
	"fmt"
	"time"

	"github.com/sells-group/atlas-cli/internal/daterange"
)

// Known connector names. These form the fixed allow-list for report and
// funnel requests.
const (
	GA4      = "ga4"
	HubSpot  = "hubspot"
	LinkedIn = "linkedin"
	Reddit   = "reddit"
)

// ValidNames lists every connector the orchestrator accepts, in display order.
var ValidNames = []string{GA4, HubSpot, LinkedIn, Reddit}

// IsValidName reports whether name is a known connector.
func IsValidName(name string) bool {
	for _, n := range ValidNames {
		if n == name {
			return true
		}
	}
	return false
}

// TrafficRecord is one session row from the traffic provider, keyed by raw
// source/medium. Immutable once fetched.
type TrafficRecord struct {
	Source   string `json:"source"`
	Medium   string `json:"medium"`
	Campaign string `json:"campaign,omitempty"`
	Sessions int    `json:"sessions"`
	Users    int    `json:"users,omitempty"`
}

// EventRecord is one aggregated event count from the analytics provider.
type EventRecord struct {
	EventName  string `json:"eventName"`
	EventCount int    `json:"eventCount"`
}

// Deal is one CRM deal. Pointer fields distinguish absent values from
// legitimate zeros.
type Deal struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Amount      *float64   `json:"amount"`
	Stage       string     `json:"stage"`
	Source      string     `json:"source"`
	SourceData1 string     `json:"sourceData1"`
	SourceData2 string     `json:"sourceData2"`
	CreatedAt   *time.Time `json:"createdAt"`
	CloseDate   *time.Time `json:"closeDate"`
}

// AmountValue returns the deal amount, treating a missing amount as 0.
func (d Deal) AmountValue() float64 {
	if d.Amount == nil {
		return 0
	}
	return *d.Amount
}

// SourceDetail returns the secondary source field and whether one is
// present. Priority order: SourceData1, then SourceData2.
func (d Deal) SourceDetail() (string, bool) {
	if d.SourceData1 != "" {
		return d.SourceData1, true
	}
	if d.SourceData2 != "" {
		return d.SourceData2, true
	}
	return "", false
}

// AdRecord is one campaign row from an ad platform.
type AdRecord struct {
	Platform    string  `json:"platform"`
	Campaign    string  `json:"campaign"`
	Impressions int     `json:"impressions"`
	Clicks      int     `json:"clicks"`
	SpendUSD    float64 `json:"spendUsd"`
	Conversions int     `json:"conversions"`
}

// Payload is the normalized output of one connector fetch. Only the slices
// belonging to the connector's provider family are populated; downstream
// code switches on the populated family rather than reflecting over loose
// maps.
type Payload struct {
	Traffic []TrafficRecord
	Events  []EventRecord
	Deals   []Deal
	Ads     []AdRecord
}

// Connector adapts one external provider. Fetch is idempotent, has no side
// effects on shared state, and fails only with a *Error.
type Connector interface {
	Name() string
	Fetch(ctx context.Context, dr daterange.Range) (*Payload, error)
}

// Error is the typed failure for a single provider call.
type Error struct {
	Provider string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("connector %s: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err as a connector failure for the named provider.
func NewError(provider string, err error) *Error {
	return &Error{Provider: provider, Err: err}
}
