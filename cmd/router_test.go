package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/atlas-cli/internal/channel"
	"github.com/sells-group/atlas-cli/internal/connector"
	"github.com/sells-group/atlas-cli/internal/coordinator"
	"github.com/sells-group/atlas-cli/internal/daterange"
	"github.com/sells-group/atlas-cli/internal/funnel"
	"github.com/sells-group/atlas-cli/internal/orchestrator"
	"github.com/sells-group/atlas-cli/internal/store"
	"github.com/sells-group/atlas-cli/internal/usage"
)

type stubConnector struct {
	name    string
	payload *connector.Payload
	err     error
}

func (s *stubConnector) Name() string { return s.name }

func (s *stubConnector) Fetch(context.Context, daterange.Range) (*connector.Payload, error) {
	if s.err != nil {
		return nil, connector.NewError(s.name, s.err)
	}
	return s.payload, nil
}

func fv(v float64) *float64 { return &v }

func day(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func newTestEnv(t *testing.T) *appEnv {
	t.Helper()

	registry := map[string]connector.Connector{
		connector.GA4: &stubConnector{name: connector.GA4, payload: &connector.Payload{
			Traffic: []connector.TrafficRecord{
				{Source: "linkedin", Medium: "cpc", Sessions: 100},
				{Source: "google", Medium: "organic", Sessions: 300},
			},
			Events: []connector.EventRecord{{EventName: funnel.LeadEventName, EventCount: 40}},
		}},
		connector.HubSpot: &stubConnector{name: connector.HubSpot, payload: &connector.Payload{
			Deals: []connector.Deal{
				{ID: "1", Name: "Acme", Amount: fv(500), Stage: "closedwon", Source: "ORGANIC_SEARCH",
					CreatedAt: day("2024-03-02"), CloseDate: day("2024-03-04")},
			},
		}},
	}

	resolver := daterange.Resolver{Now: func() time.Time {
		return time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC)
	}}

	rec := usage.NewMemory()
	orc := orchestrator.New(
		resolver,
		registry,
		coordinator.New(time.Second),
		funnel.NewAggregator(channel.NewClassifier(), ""),
		nil,
		rec,
	)

	return &appEnv{Orchestrator: orc, Store: store.NewMemory(), Recorder: rec}
}

func doRequest(t *testing.T, env *appEnv, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	router := newRouter(env, []string{"*"})
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	w := doRequest(t, newTestEnv(t), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestFunnelEndpoint(t *testing.T) {
	w := doRequest(t, newTestEnv(t), http.MethodGet, "/funnel?startDate=2024-03-01&endDate=2024-03-05", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Funnel map[string]funnel.Stage `json:"funnel"`
		ConversionRates funnel.ConversionRates `json:"conversionRates"`
		Partial bool `json:"partial"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 400.0, resp.Funnel["level1"].Value)
	assert.Equal(t, 40.0, resp.Funnel["level2"].Value)
	assert.InDelta(t, 10.0, resp.ConversionRates.SessionToLead, 0.001)
	assert.False(t, resp.Partial)
}

func TestFunnelEndpoint_InvalidToken(t *testing.T) {
	w := doRequest(t, newTestEnv(t), http.MethodGet, "/funnel?startDate=lastTuesday", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "error")
}

func TestFunnelEndpoint_DegradedProvider(t *testing.T) {
	env := newTestEnv(t)
	// Replace GA4 with a failing stub via a fresh orchestrator.
	registry := map[string]connector.Connector{
		connector.GA4:     &stubConnector{name: connector.GA4, err: errors.New("upstream 500")},
		connector.HubSpot: &stubConnector{name: connector.HubSpot, payload: &connector.Payload{}},
	}
	env.Orchestrator = orchestrator.New(
		daterange.Resolver{Now: func() time.Time { return time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC) }},
		registry,
		coordinator.New(time.Second),
		funnel.NewAggregator(channel.NewClassifier(), ""),
		nil,
		env.Recorder,
	)

	w := doRequest(t, env, http.MethodGet, "/funnel?startDate=2024-03-01&endDate=2024-03-05", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Partial  bool     `json:"partial"`
		Degraded []string `json:"degraded"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Partial)
	assert.Equal(t, []string{"ga4"}, resp.Degraded)
}

func TestDealSourcesEndpoint(t *testing.T) {
	w := doRequest(t, newTestEnv(t), http.MethodGet, "/funnel/deal-sources?startDate=2024-03-01&endDate=2024-03-05", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp funnel.SourceReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.DealSources, 1)
	assert.Equal(t, "Organic Search", resp.DealSources[0].Source)
	assert.Equal(t, 1, resp.Summary.TotalDeals)
}

func TestGenerateReportEndpoint(t *testing.T) {
	env := newTestEnv(t)
	body := `{"startDate":"2024-03-01","endDate":"2024-03-05","connectors":["ga4","hubspot"]}`
	w := doRequest(t, env, http.MethodPost, "/reports/generate", body)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		ReportID string `json:"reportId"`
		Markdown string `json:"markdown"`
		Metadata orchestrator.Metadata `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, strings.HasPrefix(resp.ReportID, "report-"))
	assert.Contains(t, resp.Markdown, "# Marketing Funnel Report")
	assert.Equal(t, []string{"ga4", "hubspot"}, resp.Metadata.Connectors)

	// Generated report is persisted.
	stored, err := env.Store.GetReport(context.Background(), resp.ReportID)
	require.NoError(t, err)
	assert.Equal(t, resp.Markdown, stored.Markdown)
	assert.Equal(t, "2024-03-01", stored.StartDate)
}

func TestGenerateReportEndpoint_InvalidConnector(t *testing.T) {
	body := `{"startDate":"2024-03-01","endDate":"2024-03-05","connectors":["ga4","invalid"]}`
	w := doRequest(t, newTestEnv(t), http.MethodPost, "/reports/generate", body)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Invalid connectors: invalid", resp["error"])
}

func TestGenerateReportEndpoint_EmptyConnectors(t *testing.T) {
	body := `{"startDate":"2024-03-01","endDate":"2024-03-05","connectors":[]}`
	w := doRequest(t, newTestEnv(t), http.MethodPost, "/reports/generate", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerateReportEndpoint_BadBody(t *testing.T) {
	w := doRequest(t, newTestEnv(t), http.MethodPost, "/reports/generate", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetReportEndpoint_NotFound(t *testing.T) {
	w := doRequest(t, newTestEnv(t), http.MethodGet, "/reports/report-missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUsageEndpoint(t *testing.T) {
	env := newTestEnv(t)
	doRequest(t, env, http.MethodGet, "/funnel?startDate=2024-03-01&endDate=2024-03-05", "")
	doRequest(t, env, http.MethodGet, "/funnel/deal-sources?startDate=2024-03-01&endDate=2024-03-05", "")

	w := doRequest(t, env, http.MethodGet, "/metrics/usage", "")
	require.Equal(t, http.StatusOK, w.Code)

	var snap usage.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, 1, snap.Requests["funnel"])
	assert.Equal(t, 1, snap.Requests["deal_sources"])
}
