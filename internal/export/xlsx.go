// Package export writes aggregated funnel data to spreadsheet files.
package export

import (
	"fmt"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/atlas-cli/internal/channel"
	"github.com/sells-group/atlas-cli/internal/funnel"
)

// WriteFunnelXLSX writes the funnel, its channel breakdowns and the deal
// source report (when present) to an .xlsx workbook at path.
func WriteFunnelXLSX(path string, f *funnel.Funnel, sources *funnel.SourceReport) error {
	wb := xlsx.NewFile()

	if err := addFunnelSheet(wb, f); err != nil {
		return err
	}
	if err := addChannelSheet(wb, f); err != nil {
		return err
	}
	if sources != nil {
		if err := addSourcesSheet(wb, sources); err != nil {
			return err
		}
	}

	if err := wb.Save(path); err != nil {
		return eris.Wrap(err, "export: save workbook")
	}
	return nil
}

func addFunnelSheet(wb *xlsx.File, f *funnel.Funnel) error {
	sheet, err := wb.AddSheet("Funnel")
	if err != nil {
		return eris.Wrap(err, "export: add funnel sheet")
	}

	meta := sheet.AddRow()
	meta.AddCell().SetString("Period")
	meta.AddCell().SetString(fmt.Sprintf("%s to %s",
		f.DateRange.Start.Format("2006-01-02"), f.DateRange.End.Format("2006-01-02")))

	if f.Partial {
		row := sheet.AddRow()
		row.AddCell().SetString("Degraded providers")
		for _, p := range f.Degraded {
			row.AddCell().SetString(p)
		}
	}

	sheet.AddRow() // spacer

	header := sheet.AddRow()
	for _, h := range []string{"Stage", "Value", "Deal Count", "Conversion %", "Source", "Metric"} {
		header.AddCell().SetString(h)
	}

	for _, st := range f.Stages() {
		row := sheet.AddRow()
		row.AddCell().SetString(st.Label)
		row.AddCell().SetFloat(st.Value)
		if st.Count != nil {
			row.AddCell().SetInt(*st.Count)
		} else {
			row.AddCell().SetString("")
		}
		if st.ConversionRate != nil {
			row.AddCell().SetFloat(*st.ConversionRate)
		} else {
			row.AddCell().SetString("")
		}
		row.AddCell().SetString(st.Source)
		row.AddCell().SetString(st.Metric)
	}

	sheet.AddRow()
	rates := sheet.AddRow()
	rates.AddCell().SetString("Session to Lead %")
	rates.AddCell().SetFloat(f.ConversionRates.SessionToLead)
	rates = sheet.AddRow()
	rates.AddCell().SetString("Lead to Deal %")
	rates.AddCell().SetFloat(f.ConversionRates.LeadToDeal)
	rates = sheet.AddRow()
	rates.AddCell().SetString("Deal to Close %")
	rates.AddCell().SetFloat(f.ConversionRates.DealToClose)

	return nil
}

func addChannelSheet(wb *xlsx.File, f *funnel.Funnel) error {
	sheet, err := wb.AddSheet("Channels")
	if err != nil {
		return eris.Wrap(err, "export: add channels sheet")
	}

	header := sheet.AddRow()
	header.AddCell().SetString("Channel")
	for _, st := range f.Stages() {
		header.AddCell().SetString(st.Label)
	}

	for _, ch := range channel.Labels {
		if !channelPresent(f, ch) {
			continue
		}
		row := sheet.AddRow()
		row.AddCell().SetString(ch)
		for _, st := range f.Stages() {
			row.AddCell().SetInt(st.Breakdown[ch])
		}
	}
	return nil
}

func channelPresent(f *funnel.Funnel, ch string) bool {
	for _, st := range f.Stages() {
		if st.Breakdown[ch] != 0 {
			return true
		}
	}
	return false
}

func addSourcesSheet(wb *xlsx.File, sources *funnel.SourceReport) error {
	sheet, err := wb.AddSheet("Deal Sources")
	if err != nil {
		return eris.Wrap(err, "export: add sources sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{"Source", "Deals Created", "Closed Deals", "Revenue"} {
		header.AddCell().SetString(h)
	}

	revenue := make(map[string]funnel.RevenueSource, len(sources.RevenueSources))
	for _, rs := range sources.RevenueSources {
		revenue[rs.Source] = rs
	}

	seen := make(map[string]bool)
	for _, ds := range sources.DealSources {
		seen[ds.Source] = true
		row := sheet.AddRow()
		row.AddCell().SetString(ds.Source)
		row.AddCell().SetInt(ds.Count)
		rs := revenue[ds.Source]
		row.AddCell().SetInt(rs.Count)
		row.AddCell().SetFloat(rs.Revenue)
	}

	// Revenue-only sources: closed in range but created earlier.
	extra := make([]string, 0)
	for _, rs := range sources.RevenueSources {
		if !seen[rs.Source] {
			extra = append(extra, rs.Source)
		}
	}
	sort.Strings(extra)
	for _, src := range extra {
		rs := revenue[src]
		row := sheet.AddRow()
		row.AddCell().SetString(src)
		row.AddCell().SetInt(0)
		row.AddCell().SetInt(rs.Count)
		row.AddCell().SetFloat(rs.Revenue)
	}

	return nil
}
