// Package funnel assembles the four-stage marketing funnel (traffic → leads
// → deals created → closed-won revenue) from the settled connector outcomes
// of one aggregation request.
package funnel

import (
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/atlas-cli/internal/allocate"
	"github.com/sells-group/atlas-cli/internal/channel"
	"github.com/sells-group/atlas-cli/internal/connector"
	"github.com/sells-group/atlas-cli/internal/coordinator"
	"github.com/sells-group/atlas-cli/internal/daterange"
)

// LeadEventName is the distinguished analytics event that counts as a
// generated lead.
const LeadEventName = "Lead_Generated_All_Sites"

// Stage is one funnel level. Value is a count for stages 1-3 and a revenue
// sum for stage 4, where Count carries the parallel deal count.
type Stage struct {
	Label          string         `json:"label"`
	Value          float64        `json:"value"`
	Count          *int           `json:"count,omitempty"`
	Source         string         `json:"source"`
	Metric         string         `json:"metric"`
	ConversionRate *float64       `json:"conversionRate,omitempty"`
	Breakdown      channel.Bucket `json:"breakdown"`
}

// ConversionRates holds the three pairwise stage-to-stage rates, as
// percentages.
type ConversionRates struct {
	SessionToLead float64 `json:"sessionToLead"`
	LeadToDeal    float64 `json:"leadToDeal"`
	DealToClose   float64 `json:"dealToClose"`
}

// Funnel is the assembled four-stage result. Degraded lists providers whose
// fetch failed; their stages read zero. A zero stage with an empty Degraded
// list means the provider genuinely reported no activity.
type Funnel struct {
	Level1          Stage           `json:"level1"`
	Level2          Stage           `json:"level2"`
	Level3          Stage           `json:"level3"`
	Level4          Stage           `json:"level4"`
	ConversionRates ConversionRates `json:"conversionRates"`
	DateRange       daterange.Range `json:"dateRange"`
	Partial         bool            `json:"partial"`
	Degraded        []string        `json:"degraded,omitempty"`
}

// Stages returns the four stages in funnel order.
func (f *Funnel) Stages() [4]Stage {
	return [4]Stage{f.Level1, f.Level2, f.Level3, f.Level4}
}

// Aggregator computes funnels from settled connector outcomes.
type Aggregator struct {
	classifier *channel.Classifier
	leadEvent  string
}

// NewAggregator builds an Aggregator. leadEvent defaults to LeadEventName
// when empty.
func NewAggregator(classifier *channel.Classifier, leadEvent string) *Aggregator {
	if leadEvent == "" {
		leadEvent = LeadEventName
	}
	return &Aggregator{classifier: classifier, leadEvent: leadEvent}
}

// Aggregate assembles the funnel for one request. Failed providers
// contribute zero-valued stages; the computation itself never fails on
// provider degradation.
func (a *Aggregator) Aggregate(res *coordinator.Result, dr daterange.Range) *Funnel {
	traffic := res.Payload(connector.GA4)
	crm := res.Payload(connector.HubSpot)

	// Stage 1: total sessions, classified per channel.
	trafficByChannel := make(channel.Bucket)
	totalSessions := 0
	if traffic != nil {
		for _, rec := range traffic.Traffic {
			c := a.classifier.Classify(rec.Source, rec.Medium)
			trafficByChannel[c] += rec.Sessions
			totalSessions += rec.Sessions
		}
	}

	// Stage 2: the one distinguished lead event, exact name match.
	leads := 0
	if traffic != nil {
		for _, e := range traffic.Events {
			if e.EventName == a.leadEvent {
				leads = e.EventCount
				break
			}
		}
	}
	leadsByChannel := allocate.Proportional(leads, trafficByChannel)

	// Stages 3 and 4: two temporal joins over the same deal set. Stage 3
	// filters on creation date, stage 4 on close date plus a fuzzy
	// closed-won stage match; neither is a subset of the other.
	dealsCreated := 0
	closedWonCount := 0
	closedWonRevenue := 0.0
	if crm != nil {
		for _, d := range crm.Deals {
			if d.CreatedAt != nil && dr.Contains(*d.CreatedAt) {
				dealsCreated++
			}
			if d.CloseDate != nil && dr.Contains(*d.CloseDate) && isClosedWon(d.Stage) {
				closedWonCount++
				closedWonRevenue += d.AmountValue()
			}
		}
	}

	dealsByChannel := allocate.Proportional(dealsCreated, leadsByChannel)
	revenueByChannel := allocate.Revenue(dealsByChannel, dealsCreated, closedWonCount, closedWonRevenue)

	rates := ConversionRates{
		SessionToLead: pct(leads, totalSessions),
		LeadToDeal:    pct(dealsCreated, leads),
		DealToClose:   pct(closedWonCount, dealsCreated),
	}

	f := &Funnel{
		Level1: Stage{
			Label:     "Total Traffic",
			Value:     float64(totalSessions),
			Source:    "GA4",
			Metric:    "sessions",
			Breakdown: trafficByChannel,
		},
		Level2: Stage{
			Label:          "Leads Generated",
			Value:          float64(leads),
			Source:         "GA4",
			Metric:         a.leadEvent,
			ConversionRate: ptr(rates.SessionToLead),
			Breakdown:      leadsByChannel,
		},
		Level3: Stage{
			Label:          "Deals Created",
			Value:          float64(dealsCreated),
			Source:         "HubSpot",
			Metric:         "deals",
			ConversionRate: ptr(rates.LeadToDeal),
			Breakdown:      dealsByChannel,
		},
		Level4: Stage{
			Label:          "Closed-Won Revenue",
			Value:          closedWonRevenue,
			Count:          ptr(closedWonCount),
			Source:         "HubSpot",
			Metric:         "closedwon",
			ConversionRate: ptr(rates.DealToClose),
			Breakdown:      revenueByChannel,
		},
		ConversionRates: rates,
		DateRange:       dr,
		Partial:         res.Partial(),
		Degraded:        res.Degraded(),
	}

	if f.Partial {
		zap.L().Warn("funnel: assembled from partial data",
			zap.Strings("degraded", f.Degraded),
		)
	}
	return f
}

// isClosedWon matches the CRM's closed-won stage loosely: case-insensitive,
// trimmed, with or without the space.
func isClosedWon(stage string) bool {
	s := strings.ToLower(strings.TrimSpace(stage))
	return s == "closedwon" || s == "closed won"
}

// pct computes num/den as a percentage, 0 when the denominator is zero.
func pct(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den) * 100
}

func ptr[T any](v T) *T { return &v }
