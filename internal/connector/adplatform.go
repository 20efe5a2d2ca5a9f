package connector

import (
	"context"

	"github.com/sells-group/atlas-cli/internal/daterange"
)

// adPlatformConnector fetches campaign rows from an ad platform reporting
// API. LinkedIn and Reddit share the same normalized shape.
type adPlatformConnector struct {
	platform string
	path     string
	client   *apiClient
}

// NewLinkedIn returns the LinkedIn ads connector.
func NewLinkedIn(baseURL, apiKey string, rps float64) Connector {
	return &adPlatformConnector{
		platform: LinkedIn,
		path:     "/linkedin/campaign-analytics",
		client:   newAPIClient(LinkedIn, baseURL, apiKey, rps),
	}
}

// NewReddit returns the Reddit ads connector.
func NewReddit(baseURL, apiKey string, rps float64) Connector {
	return &adPlatformConnector{
		platform: Reddit,
		path:     "/reddit/ads",
		client:   newAPIClient(Reddit, baseURL, apiKey, rps),
	}
}

func (a *adPlatformConnector) Name() string { return a.platform }

type adPlatformResponse struct {
	Campaigns []struct {
		Campaign    string  `json:"campaign"`
		Impressions int     `json:"impressions"`
		Clicks      int     `json:"clicks"`
		SpendUSD    float64 `json:"spendUsd"`
		Conversions int     `json:"conversions"`
	} `json:"campaigns"`
}

func (a *adPlatformConnector) Fetch(ctx context.Context, dr daterange.Range) (*Payload, error) {
	var resp adPlatformResponse
	if err := a.client.getJSON(ctx, a.path, rangeParams(dr), &resp); err != nil {
		return nil, err
	}

	payload := &Payload{}
	for _, c := range resp.Campaigns {
		payload.Ads = append(payload.Ads, AdRecord{
			Platform:    a.platform,
			Campaign:    c.Campaign,
			Impressions: c.Impressions,
			Clicks:      c.Clicks,
			SpendUSD:    c.SpendUSD,
			Conversions: c.Conversions,
		})
	}
	return payload, nil
}
