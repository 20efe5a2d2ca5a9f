package connector

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/atlas-cli/internal/daterange"
)

// hubspotConnector fetches CRM deals. The API returns the full deal set;
// temporal filtering happens downstream because the funnel joins the same
// set on two different date fields.
type hubspotConnector struct {
	client *apiClient
}

// NewHubSpot returns the HubSpot CRM connector.
func NewHubSpot(baseURL, apiKey string, rps float64) Connector {
	return &hubspotConnector{client: newAPIClient(HubSpot, baseURL, apiKey, rps)}
}

func (h *hubspotConnector) Name() string { return HubSpot }

type hubspotDealsResponse struct {
	Deals []struct {
		ID          string   `json:"id"`
		Name        string   `json:"name"`
		Amount      *float64 `json:"amount"`
		Stage       string   `json:"stage"`
		Source      string   `json:"source"`
		SourceData1 string   `json:"sourceData1"`
		SourceData2 string   `json:"sourceData2"`
		CreatedAt   string   `json:"createdAt"`
		CloseDate   string   `json:"closeDate"`
	} `json:"deals"`
}

func (h *hubspotConnector) Fetch(ctx context.Context, _ daterange.Range) (*Payload, error) {
	var resp hubspotDealsResponse
	if err := h.client.getJSON(ctx, "/crm/deals", nil, &resp); err != nil {
		return nil, err
	}

	payload := &Payload{}
	for _, d := range resp.Deals {
		deal := Deal{
			ID:          d.ID,
			Name:        d.Name,
			Amount:      d.Amount,
			Stage:       d.Stage,
			Source:      d.Source,
			SourceData1: d.SourceData1,
			SourceData2: d.SourceData2,
			CreatedAt:   parseDealTime(d.ID, "createdAt", d.CreatedAt),
			CloseDate:   parseDealTime(d.ID, "closeDate", d.CloseDate),
		}
		payload.Deals = append(payload.Deals, deal)
	}
	return payload, nil
}

// parseDealTime parses a deal timestamp, accepting RFC 3339 or a bare date.
// A malformed timestamp drops just that field, not the record and not the
// fetch.
func parseDealTime(dealID, field, raw string) *time.Time {
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return &t
		}
	}
	zap.L().Debug("connector: unparsable deal timestamp",
		zap.String("deal_id", dealID),
		zap.String("field", field),
		zap.String("raw", raw),
	)
	return nil
}
