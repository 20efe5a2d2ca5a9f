package orchestrator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sells-group/atlas-cli/internal/channel"
	"github.com/sells-group/atlas-cli/internal/connector"
	"github.com/sells-group/atlas-cli/internal/funnel"
	"github.com/sells-group/atlas-cli/internal/insights"
)

// platformLabels maps ad platform provider names to display labels.
var platformLabels = map[string]string{
	connector.LinkedIn: "LinkedIn",
	connector.Reddit:   "Reddit",
}

// renderMarkdown produces the data-driven markdown report. The ad platform
// and insights sections are omitted when there is nothing to show.
func renderMarkdown(f *funnel.Funnel, sources *funnel.SourceReport, ads []connector.AdRecord, ins *insights.Insights, connectors []string) string {
	var b strings.Builder

	start := f.DateRange.Start.Format("2006-01-02")
	end := f.DateRange.End.Format("2006-01-02")

	b.WriteString("# Marketing Funnel Report\n\n")
	fmt.Fprintf(&b, "**Period:** %s to %s\n\n", start, end)
	fmt.Fprintf(&b, "**Data sources:** %s\n\n", strings.Join(connectors, ", "))

	if f.Partial {
		fmt.Fprintf(&b, "> ⚠️ Partial data: the following providers failed and report as zero: %s\n\n",
			strings.Join(f.Degraded, ", "))
	}

	b.WriteString("## Funnel Overview\n\n")
	b.WriteString("| Stage | Value | Conversion |\n")
	b.WriteString("|---|---|---|\n")
	for _, st := range f.Stages() {
		value := formatStageValue(st)
		conv := "-"
		if st.ConversionRate != nil {
			conv = fmt.Sprintf("%.1f%%", *st.ConversionRate)
		}
		fmt.Fprintf(&b, "| %s | %s | %s |\n", st.Label, value, conv)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "**Conversion rates:** session → lead %.1f%%, lead → deal %.1f%%, deal → close %.1f%%\n\n",
		f.ConversionRates.SessionToLead, f.ConversionRates.LeadToDeal, f.ConversionRates.DealToClose)

	b.WriteString("## Channel Breakdown\n\n")
	for _, st := range f.Stages() {
		if len(st.Breakdown) == 0 {
			continue
		}
		fmt.Fprintf(&b, "### %s\n\n", st.Label)
		b.WriteString("| Channel | Value |\n")
		b.WriteString("|---|---|\n")
		for _, ch := range sortedChannels(st.Breakdown) {
			fmt.Fprintf(&b, "| %s | %d |\n", ch, st.Breakdown[ch])
		}
		b.WriteString("\n")
	}

	if sources != nil && (len(sources.DealSources) > 0 || len(sources.RevenueSources) > 0) {
		b.WriteString("## Deal Sources\n\n")
		if len(sources.DealSources) > 0 {
			b.WriteString("| Source | Deals | Example Deals |\n")
			b.WriteString("|---|---|---|\n")
			for _, ds := range sources.DealSources {
				fmt.Fprintf(&b, "| %s | %d | %s |\n", ds.Source, ds.Count, strings.Join(ds.Deals, "; "))
			}
			b.WriteString("\n")
		}
		if len(sources.RevenueSources) > 0 {
			b.WriteString("### Revenue by Source\n\n")
			b.WriteString("| Source | Revenue | Deals |\n")
			b.WriteString("|---|---|---|\n")
			for _, rs := range sources.RevenueSources {
				fmt.Fprintf(&b, "| %s | $%.2f | %d |\n", rs.Source, rs.Revenue, rs.Count)
			}
			b.WriteString("\n")
		}
	}

	if len(ads) > 0 {
		b.WriteString("## Ad Platform Performance\n\n")
		for _, platform := range sortedPlatforms(ads) {
			fmt.Fprintf(&b, "### %s Campaign Performance\n\n", platformLabel(platform))
			b.WriteString("| Campaign | Impressions | Clicks | CTR | Spend | Conversions |\n")
			b.WriteString("|---|---|---|---|---|---|\n")
			for _, ad := range ads {
				if ad.Platform != platform {
					continue
				}
				ctr := "-"
				if ad.Impressions > 0 {
					ctr = fmt.Sprintf("%.2f%%", float64(ad.Clicks)/float64(ad.Impressions)*100)
				}
				fmt.Fprintf(&b, "| %s | %d | %d | %s | $%.2f | %d |\n",
					ad.Campaign, ad.Impressions, ad.Clicks, ctr, ad.SpendUSD, ad.Conversions)
			}
			b.WriteString("\n")
		}
	}

	if ins != nil {
		b.WriteString("## Insights\n\n")
		b.WriteString(ins.Summary)
		b.WriteString("\n\n")

		if len(ins.KeyFindings) > 0 {
			b.WriteString("### Key Findings\n\n")
			for _, kf := range ins.KeyFindings {
				fmt.Fprintf(&b, "- **[%s]** %s (%s)\n", kf.Priority, kf.Finding, kf.Impact)
			}
			b.WriteString("\n")
		}

		if len(ins.CriticalIssues) > 0 {
			b.WriteString("### Critical Issues\n\n")
			for _, ci := range ins.CriticalIssues {
				fmt.Fprintf(&b, "- **[%s]** %s (%s). Recommended: %s\n", ci.Priority, ci.Issue, ci.Impact, ci.Recommendation)
			}
			b.WriteString("\n")
		}

		if len(ins.Recommendations) > 0 {
			b.WriteString("### Recommendations\n\n")
			for _, rec := range ins.Recommendations {
				fmt.Fprintf(&b, "- **[%s, %s]** %s\n", rec.Priority, rec.Timeframe, rec.Action)
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}

func formatStageValue(st funnel.Stage) string {
	if st.Count != nil {
		return fmt.Sprintf("$%.2f (%d deals)", st.Value, *st.Count)
	}
	return fmt.Sprintf("%.0f", st.Value)
}

func platformLabel(platform string) string {
	if label, ok := platformLabels[platform]; ok {
		return label
	}
	return platform
}

// sortedPlatforms lists the distinct platforms in ads, alphabetically.
func sortedPlatforms(ads []connector.AdRecord) []string {
	seen := make(map[string]bool)
	var platforms []string
	for _, ad := range ads {
		if !seen[ad.Platform] {
			seen[ad.Platform] = true
			platforms = append(platforms, ad.Platform)
		}
	}
	sort.Strings(platforms)
	return platforms
}

// sortedChannels orders breakdown keys by value descending, then name, so
// the report is deterministic.
func sortedChannels(b channel.Bucket) []string {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if b[keys[i]] != b[keys[j]] {
			return b[keys[i]] > b[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}
