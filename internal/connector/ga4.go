package connector

import (
	"context"
	"net/url"

	"github.com/sells-group/atlas-cli/internal/daterange"
)

// ga4Connector fetches traffic (source/medium sessions) and event counts
// from the GA4 reporting gateway.
type ga4Connector struct {
	client *apiClient
}

// NewGA4 returns the GA4 connector. baseURL points at the reporting gateway
// that fronts the GA4 Data API.
func NewGA4(baseURL, apiKey string, rps float64) Connector {
	return &ga4Connector{client: newAPIClient(GA4, baseURL, apiKey, rps)}
}

func (g *ga4Connector) Name() string { return GA4 }

type ga4SourceMediumResponse struct {
	SourceMedium []struct {
		Source   string `json:"source"`
		Medium   string `json:"medium"`
		Campaign string `json:"campaign"`
		Sessions int    `json:"sessions"`
		Users    int    `json:"users"`
	} `json:"sourceMedium"`
}

type ga4EventsResponse struct {
	Events []struct {
		EventName  string `json:"eventName"`
		EventCount int    `json:"eventCount"`
	} `json:"events"`
}

func (g *ga4Connector) Fetch(ctx context.Context, dr daterange.Range) (*Payload, error) {
	params := rangeParams(dr)

	var sm ga4SourceMediumResponse
	if err := g.client.getJSON(ctx, "/ga4/source-medium", params, &sm); err != nil {
		return nil, err
	}

	var ev ga4EventsResponse
	if err := g.client.getJSON(ctx, "/ga4/events", params, &ev); err != nil {
		return nil, err
	}

	payload := &Payload{}
	for _, row := range sm.SourceMedium {
		payload.Traffic = append(payload.Traffic, TrafficRecord{
			Source:   row.Source,
			Medium:   row.Medium,
			Campaign: row.Campaign,
			Sessions: row.Sessions,
			Users:    row.Users,
		})
	}
	for _, e := range ev.Events {
		payload.Events = append(payload.Events, EventRecord{
			EventName:  e.EventName,
			EventCount: e.EventCount,
		})
	}
	return payload, nil
}

func rangeParams(dr daterange.Range) url.Values {
	return url.Values{
		"startDate": {dr.Start.Format("2006-01-02")},
		"endDate":   {dr.End.Format("2006-01-02")},
	}
}
