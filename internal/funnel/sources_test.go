package funnel

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/atlas-cli/internal/connector"
)

func TestBuildSourceReport(t *testing.T) {
	deals := []connector.Deal{
		{ID: "1", Name: "Acme", Source: "PAID_SOCIAL", SourceData1: "li-q1", CreatedAt: dt(2)},
		{ID: "2", Name: "Globex", Source: "PAID_SOCIAL", SourceData1: "li-q1", CreatedAt: dt(3)},
		{ID: "2b", Name: "Hooli", Source: "PAID_SOCIAL", SourceData1: "li-q1", CreatedAt: dt(3)},
		{ID: "3", Name: "Initech", Source: "ORGANIC_SEARCH", CreatedAt: dt(4)},
		{ID: "4", Name: "Umbrella", Source: "ORGANIC_SEARCH", Stage: "closedwon", Amount: amt(900), CreatedAt: dt(2), CloseDate: dt(5)},
		{ID: "5", Name: "Outside", Source: "OFFLINE", CreatedAt: nil},
	}

	report := BuildSourceReport(deals, marchRange)

	// Deal sources sorted by count descending.
	require.Len(t, report.DealSources, 3)
	assert.Equal(t, "Paid Social (li-q1)", report.DealSources[0].Source)
	assert.Equal(t, 3, report.DealSources[0].Count)
	assert.Equal(t, []string{"Acme", "Globex", "Hooli"}, report.DealSources[0].Deals)
	assert.Equal(t, "Organic Search", report.DealSources[1].Source)
	assert.Equal(t, 2, report.DealSources[1].Count)

	// Revenue: only the closed-won deal in range.
	require.Len(t, report.RevenueSources, 1)
	assert.Equal(t, "Organic Search", report.RevenueSources[0].Source)
	assert.Equal(t, 900.0, report.RevenueSources[0].Revenue)

	assert.Equal(t, 5, report.Summary.TotalDeals)
	assert.Equal(t, 1, report.Summary.TotalClosedWon)
	assert.Equal(t, 900.0, report.Summary.TotalRevenue)
	assert.Equal(t, 3, report.Summary.UniqueDealSources)
	assert.Equal(t, 1, report.Summary.UniqueRevenueSources)
}

func TestBuildSourceReport_DetailFallback(t *testing.T) {
	deals := []connector.Deal{
		{ID: "1", Name: "A", Source: "REFERRALS", SourceData2: "partner-x", CreatedAt: dt(2)},
		{ID: "2", Name: "B", Source: "REFERRALS", CreatedAt: dt(2)},
	}

	report := BuildSourceReport(deals, marchRange)

	require.Len(t, report.DealSources, 2)
	sources := []string{report.DealSources[0].Source, report.DealSources[1].Source}
	assert.Contains(t, sources, "Referral (partner-x)")
	assert.Contains(t, sources, "Referral")
}

func TestBuildSourceReport_CapsDealNames(t *testing.T) {
	var deals []connector.Deal
	for i := 0; i < 8; i++ {
		deals = append(deals, connector.Deal{
			ID: fmt.Sprintf("%d", i), Name: fmt.Sprintf("Deal %d", i),
			Source: "DIRECT_TRAFFIC", CreatedAt: dt(3),
		})
	}

	report := BuildSourceReport(deals, marchRange)

	require.Len(t, report.DealSources, 1)
	assert.Equal(t, 8, report.DealSources[0].Count)
	assert.Len(t, report.DealSources[0].Deals, 5)
}

func TestBuildSourceReport_Empty(t *testing.T) {
	report := BuildSourceReport(nil, marchRange)
	assert.Empty(t, report.DealSources)
	assert.Empty(t, report.RevenueSources)
	assert.Equal(t, 0, report.Summary.TotalDeals)
	assert.Equal(t, 0, report.Summary.UniqueDealSources)
}
