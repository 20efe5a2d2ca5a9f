package funnel

import (
	"sort"

	"github.com/sells-group/atlas-cli/internal/channel"
	"github.com/sells-group/atlas-cli/internal/connector"
	"github.com/sells-group/atlas-cli/internal/daterange"
)

// maxDealNamesPerSource caps the example deal names carried per source row.
const maxDealNamesPerSource = 5

// DealSource is one row of the deal-source report.
type DealSource struct {
	Source string   `json:"source"`
	Count  int      `json:"count"`
	Deals  []string `json:"deals"`
}

// RevenueSource is one row of the closed-won revenue source report.
type RevenueSource struct {
	Source  string   `json:"source"`
	Count   int      `json:"count"`
	Revenue float64  `json:"revenue"`
	Deals   []string `json:"deals"`
}

// SourceSummary totals the deal-source report.
type SourceSummary struct {
	TotalDeals           int     `json:"totalDeals"`
	TotalClosedWon       int     `json:"totalClosedWon"`
	TotalRevenue         float64 `json:"totalRevenue"`
	UniqueDealSources    int     `json:"uniqueDealSources"`
	UniqueRevenueSources int     `json:"uniqueRevenueSources"`
}

// SourceReport breaks deals created and closed-won revenue down by CRM
// source attribution.
type SourceReport struct {
	DealSources    []DealSource    `json:"dealSources"`
	RevenueSources []RevenueSource `json:"revenueSources"`
	Summary        SourceSummary   `json:"summary"`
	DateRange      daterange.Range `json:"dateRange"`
}

// sourceKey synthesizes the display key for a deal: the formatted source,
// with the secondary detail appended in parentheses when present.
func sourceKey(d connector.Deal) string {
	key := channel.FormatSource(d.Source)
	if detail, ok := d.SourceDetail(); ok {
		key += " (" + detail + ")"
	}
	return key
}

// BuildSourceReport aggregates deal and revenue sources over the resolved
// range. Deals use the creation-date join, revenue the close-date join with
// the closed-won stage predicate — the same two joins as funnel stages 3
// and 4.
func BuildSourceReport(deals []connector.Deal, dr daterange.Range) *SourceReport {
	type dealAgg struct {
		count   int
		revenue float64
		names   []string
	}
	bySourceCreated := make(map[string]*dealAgg)
	bySourceClosed := make(map[string]*dealAgg)

	summary := SourceSummary{}

	for _, d := range deals {
		if d.CreatedAt != nil && dr.Contains(*d.CreatedAt) {
			key := sourceKey(d)
			agg := bySourceCreated[key]
			if agg == nil {
				agg = &dealAgg{}
				bySourceCreated[key] = agg
			}
			agg.count++
			agg.names = append(agg.names, d.Name)
			summary.TotalDeals++
		}
		if d.CloseDate != nil && dr.Contains(*d.CloseDate) && isClosedWon(d.Stage) {
			key := sourceKey(d)
			agg := bySourceClosed[key]
			if agg == nil {
				agg = &dealAgg{}
				bySourceClosed[key] = agg
			}
			agg.count++
			agg.revenue += d.AmountValue()
			agg.names = append(agg.names, d.Name)
			summary.TotalClosedWon++
			summary.TotalRevenue += d.AmountValue()
		}
	}

	report := &SourceReport{Summary: summary, DateRange: dr}

	for key, agg := range bySourceCreated {
		report.DealSources = append(report.DealSources, DealSource{
			Source: key,
			Count:  agg.count,
			Deals:  capNames(agg.names),
		})
	}
	sort.Slice(report.DealSources, func(i, j int) bool {
		if report.DealSources[i].Count != report.DealSources[j].Count {
			return report.DealSources[i].Count > report.DealSources[j].Count
		}
		return report.DealSources[i].Source < report.DealSources[j].Source
	})

	for key, agg := range bySourceClosed {
		report.RevenueSources = append(report.RevenueSources, RevenueSource{
			Source:  key,
			Count:   agg.count,
			Revenue: agg.revenue,
			Deals:   capNames(agg.names),
		})
	}
	sort.Slice(report.RevenueSources, func(i, j int) bool {
		if report.RevenueSources[i].Revenue != report.RevenueSources[j].Revenue {
			return report.RevenueSources[i].Revenue > report.RevenueSources[j].Revenue
		}
		return report.RevenueSources[i].Source < report.RevenueSources[j].Source
	})

	report.Summary.UniqueDealSources = len(report.DealSources)
	report.Summary.UniqueRevenueSources = len(report.RevenueSources)

	return report
}

func capNames(names []string) []string {
	if len(names) > maxDealNamesPerSource {
		return names[:maxDealNamesPerSource]
	}
	return names
}
