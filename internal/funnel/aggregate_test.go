package funnel

import (
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/atlas-cli/internal/channel"
	"github.com/sells-group/atlas-cli/internal/connector"
	"github.com/sells-group/atlas-cli/internal/coordinator"
	"github.com/sells-group/atlas-cli/internal/daterange"
)

var marchRange = daterange.Range{
	Start: time.Date(2024, 3, 1, 0, 0, 0, 0, time.Local),
	End:   time.Date(2024, 3, 5, 23, 59, 59, 0, time.Local),
}

func newAgg() *Aggregator {
	return NewAggregator(channel.NewClassifier(), "")
}

func resultWith(outcomes ...coordinator.Outcome) *coordinator.Result {
	res := &coordinator.Result{Outcomes: make(map[string]coordinator.Outcome)}
	for _, o := range outcomes {
		res.Outcomes[o.Provider] = o
	}
	return res
}

func dt(day int) *time.Time {
	t := time.Date(2024, 3, day, 12, 0, 0, 0, time.Local)
	return &t
}

func amt(v float64) *float64 { return &v }

func ga4Outcome() coordinator.Outcome {
	return coordinator.Outcome{
		Provider: connector.GA4,
		Payload: &connector.Payload{
			Traffic: []connector.TrafficRecord{
				{Source: "linkedin", Medium: "cpc", Sessions: 100},
				{Source: "google", Medium: "organic", Sessions: 300},
			},
			Events: []connector.EventRecord{
				{EventName: "page_view", EventCount: 9000},
				{EventName: LeadEventName, EventCount: 40},
			},
		},
	}
}

func hubspotOutcome(deals ...connector.Deal) coordinator.Outcome {
	return coordinator.Outcome{
		Provider: connector.HubSpot,
		Payload:  &connector.Payload{Deals: deals},
	}
}

func TestAggregate_ScenarioA_ChannelAllocation(t *testing.T) {
	res := resultWith(ga4Outcome(), hubspotOutcome())

	f := newAgg().Aggregate(res, marchRange)

	assert.Equal(t, 400.0, f.Level1.Value)
	assert.Equal(t, channel.Bucket{channel.LinkedIn: 100, channel.Organic: 300}, f.Level1.Breakdown)

	assert.Equal(t, 40.0, f.Level2.Value)
	assert.Equal(t, 10, f.Level2.Breakdown[channel.LinkedIn])
	assert.Equal(t, 30, f.Level2.Breakdown[channel.Organic])

	assert.InDelta(t, 10.0, f.ConversionRates.SessionToLead, 1e-9)
	assert.False(t, f.Partial)
}

func TestAggregate_ScenarioB_TwoTemporalJoins(t *testing.T) {
	deal := connector.Deal{
		ID: "1", Name: "Acme", Amount: amt(500), Stage: "Closed Won",
		CreatedAt: dt(2), CloseDate: func() *time.Time {
			t := time.Date(2024, 3, 10, 12, 0, 0, 0, time.Local)
			return &t
		}(),
	}
	res := resultWith(ga4Outcome(), hubspotOutcome(deal))

	f := newAgg().Aggregate(res, marchRange)

	// Created in range: counted by stage 3.
	assert.Equal(t, 1.0, f.Level3.Value)
	// Closed outside the window: not counted by stage 4 despite the stage name.
	assert.Equal(t, 0.0, f.Level4.Value)
	require.NotNil(t, f.Level4.Count)
	assert.Equal(t, 0, *f.Level4.Count)
}

func TestAggregate_ClosedWonJoin(t *testing.T) {
	deals := []connector.Deal{
		{ID: "1", Name: "Won in range", Amount: amt(500), Stage: " closed won ", CreatedAt: dt(2), CloseDate: dt(4)},
		{ID: "2", Name: "Won no space", Amount: amt(250), Stage: "ClosedWon", CloseDate: dt(3)},
		{ID: "3", Name: "Lost", Stage: "closedlost", CreatedAt: dt(2), CloseDate: dt(4)},
		{ID: "4", Name: "Open", Stage: "appointmentscheduled", CreatedAt: dt(3)},
		{ID: "5", Name: "Nil amount won", Stage: "closedwon", CloseDate: dt(5)},
	}
	res := resultWith(ga4Outcome(), hubspotOutcome(deals...))

	f := newAgg().Aggregate(res, marchRange)

	// Created in range: deals 1, 3, 4.
	assert.Equal(t, 3.0, f.Level3.Value)
	// Closed-won in range: deals 1, 2, 5; nil amount counts as 0 revenue.
	assert.Equal(t, 750.0, f.Level4.Value)
	assert.Equal(t, 3, *f.Level4.Count)
	assert.InDelta(t, 100.0, f.ConversionRates.DealToClose, 1e-9)
}

func TestAggregate_ScenarioC_DegradedEvents(t *testing.T) {
	// GA4 failed entirely: stages 1 and 2 zero, deals still populated.
	res := resultWith(
		coordinator.Outcome{Provider: connector.GA4, Err: connector.NewError(connector.GA4, eris.New("quota"))},
		hubspotOutcome(connector.Deal{ID: "1", Name: "Acme", Amount: amt(100), Stage: "closedwon", CreatedAt: dt(2), CloseDate: dt(3)}),
	)

	f := newAgg().Aggregate(res, marchRange)

	assert.Equal(t, 0.0, f.Level1.Value)
	assert.Equal(t, 0.0, f.Level2.Value)
	assert.Equal(t, 1.0, f.Level3.Value)
	assert.Equal(t, 100.0, f.Level4.Value)

	assert.True(t, f.Partial)
	assert.Equal(t, []string{connector.GA4}, f.Degraded)
}

func TestAggregate_ZeroDenominatorsProduceZeroRates(t *testing.T) {
	res := resultWith(
		coordinator.Outcome{Provider: connector.GA4, Payload: &connector.Payload{}},
		hubspotOutcome(),
	)

	f := newAgg().Aggregate(res, marchRange)

	assert.Equal(t, 0.0, f.ConversionRates.SessionToLead)
	assert.Equal(t, 0.0, f.ConversionRates.LeadToDeal)
	assert.Equal(t, 0.0, f.ConversionRates.DealToClose)

	for _, s := range f.Stages() {
		assert.GreaterOrEqual(t, s.Value, 0.0)
		if s.ConversionRate != nil {
			assert.GreaterOrEqual(t, *s.ConversionRate, 0.0)
			assert.False(t, *s.ConversionRate != *s.ConversionRate, "conversion rate must not be NaN")
		}
	}
}

func TestAggregate_LeadEventExactMatch(t *testing.T) {
	out := ga4Outcome()
	out.Payload.Events = []connector.EventRecord{
		{EventName: "lead_generated_all_sites", EventCount: 99}, // wrong case: ignored
		{EventName: LeadEventName + "_v2", EventCount: 7},       // wrong name: ignored
	}
	res := resultWith(out, hubspotOutcome())

	f := newAgg().Aggregate(res, marchRange)
	assert.Equal(t, 0.0, f.Level2.Value)
}

func TestAggregate_MissingCreatedAtExcludedNotFatal(t *testing.T) {
	deals := []connector.Deal{
		{ID: "1", Name: "No dates", Stage: "closedwon"},
		{ID: "2", Name: "Good", CreatedAt: dt(2), Stage: "open"},
	}
	res := resultWith(ga4Outcome(), hubspotOutcome(deals...))

	f := newAgg().Aggregate(res, marchRange)
	assert.Equal(t, 1.0, f.Level3.Value)
}
