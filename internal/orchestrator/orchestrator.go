// Package orchestrator coordinates the report pipeline: connector fan-out,
// funnel aggregation, optional insight generation and markdown formatting,
// with per-phase wall-clock timing.
package orchestrator

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/atlas-cli/internal/connector"
	"github.com/sells-group/atlas-cli/internal/coordinator"
	"github.com/sells-group/atlas-cli/internal/daterange"
	"github.com/sells-group/atlas-cli/internal/funnel"
	"github.com/sells-group/atlas-cli/internal/insights"
	"github.com/sells-group/atlas-cli/internal/usage"
)

// funnelProviders are the connectors the funnel and deal-source paths read.
// Ad platform connectors participate in report generation only.
var funnelProviders = []string{connector.GA4, connector.HubSpot}

// adProviders are the connectors whose payloads carry campaign rows.
var adProviders = []string{connector.LinkedIn, connector.Reddit}

// Request describes one report-generation call.
type Request struct {
	StartDate  string   `json:"startDate"`
	EndDate    string   `json:"endDate"`
	Connectors []string `json:"connectors"`
}

// Breakdown is the per-phase timing of a generated report, in whole seconds.
type Breakdown struct {
	DataFetchTime         int `json:"dataFetchTime"`
	InsightGenerationTime int `json:"insightGenerationTime"`
	ReportFormattingTime  int `json:"reportFormattingTime"`
	TotalTime             int `json:"totalTime"`
}

// Metadata describes how a report was produced.
type Metadata struct {
	GeneratedAt          time.Time `json:"generatedAt"`
	ExecutionTimeSeconds float64   `json:"executionTimeSeconds"`
	Connectors           []string  `json:"connectors"`
	DateRange            string    `json:"dateRange"`
	Breakdown            Breakdown `json:"breakdown"`
}

// Report is the deliverable of GenerateReport.
type Report struct {
	ReportID string   `json:"reportId"`
	Markdown string   `json:"markdown"`
	Metadata Metadata `json:"metadata"`
	Partial  bool     `json:"partial"`
	Degraded []string `json:"degraded,omitempty"`

	// Funnel and Sources are the aggregated data behind the markdown,
	// kept for export and persistence.
	Funnel  *funnel.Funnel       `json:"-"`
	Sources *funnel.SourceReport `json:"-"`
}

// Orchestrator wires the pipeline stages together.
type Orchestrator struct {
	resolver daterange.Resolver
	registry map[string]connector.Connector
	coord    *coordinator.Coordinator
	agg      *funnel.Aggregator
	gen      insights.Generator
	recorder usage.Recorder
}

// New creates an Orchestrator. A nil recorder falls back to a no-op, a nil
// generator disables the insights phase.
func New(
	resolver daterange.Resolver,
	registry map[string]connector.Connector,
	coord *coordinator.Coordinator,
	agg *funnel.Aggregator,
	gen insights.Generator,
	recorder usage.Recorder,
) *Orchestrator {
	if recorder == nil {
		recorder = usage.Nop{}
	}
	if gen == nil {
		gen = insights.New("", "")
	}
	if coord == nil {
		coord = coordinator.New(0)
	}
	return &Orchestrator{
		resolver: resolver,
		registry: registry,
		coord:    coord,
		agg:      agg,
		gen:      gen,
		recorder: recorder,
	}
}

// ResolveRange turns start/end tokens into a concrete range. Invalid tokens
// surface as ValidationError.
func (o *Orchestrator) ResolveRange(startTok, endTok string, substituteToday bool) (daterange.Range, error) {
	r := o.resolver
	r.SubstituteToday = substituteToday
	dr, err := r.Resolve(startTok, endTok)
	if err != nil {
		return daterange.Range{}, &ValidationError{Message: fmt.Sprintf("invalid date range: %v", err)}
	}
	return dr, nil
}

// Funnel fetches the funnel providers and aggregates the four-stage funnel
// for the range. Provider failures degrade to zero-valued stages.
func (o *Orchestrator) Funnel(ctx context.Context, dr daterange.Range) (*funnel.Funnel, error) {
	conns := o.selectConnectors(funnelProviders)
	if len(conns) == 0 {
		return nil, &ValidationError{Message: "no funnel connectors configured"}
	}

	res := o.fetchPhase(ctx, conns, dr)
	f := o.agg.Aggregate(res, dr)
	return f, nil
}

// DealSources reports deal and revenue attribution grouped by raw CRM
// source for the range.
func (o *Orchestrator) DealSources(ctx context.Context, dr daterange.Range) (*funnel.SourceReport, error) {
	conns := o.selectConnectors([]string{connector.HubSpot})
	if len(conns) == 0 {
		return nil, &ValidationError{Message: "hubspot connector not configured"}
	}

	res := o.fetchPhase(ctx, conns, dr)
	var deals []connector.Deal
	if p := res.Payload(connector.HubSpot); p != nil {
		deals = p.Deals
	}
	return funnel.BuildSourceReport(deals, dr), nil
}

// GenerateReport runs the full pipeline: validate, fetch, aggregate,
// generate insights, format. Connector failures degrade the report rather
// than failing it; the Partial flag and Degraded list record what is
// missing.
func (o *Orchestrator) GenerateReport(ctx context.Context, req Request) (*Report, error) {
	if err := o.validateConnectors(req.Connectors); err != nil {
		return nil, err
	}

	dr, err := o.ResolveRange(req.StartDate, req.EndDate, false)
	if err != nil {
		return nil, err
	}

	log := zap.L().With(
		zap.String("start", dr.Start.Format("2006-01-02")),
		zap.String("end", dr.End.Format("2006-01-02")),
		zap.Strings("connectors", req.Connectors),
	)
	log.Info("orchestrator: starting report generation")

	totalStart := time.Now()
	var breakdown Breakdown

	// Phase 1: fetch and aggregate. The wire breakdown carries a single
	// bucket for both.
	conns := o.selectConnectors(req.Connectors)
	var f *funnel.Funnel
	var sources *funnel.SourceReport
	var ads []connector.AdRecord
	breakdown.DataFetchTime = o.trackPhase("fetch", func() {
		res := o.fetchPhase(ctx, conns, dr)
		f = o.agg.Aggregate(res, dr)
		if p := res.Payload(connector.HubSpot); p != nil {
			sources = funnel.BuildSourceReport(p.Deals, dr)
		}
		for _, name := range adProviders {
			if p := res.Payload(name); p != nil {
				ads = append(ads, p.Ads...)
			}
		}
	})

	// Phase 3: insights. A generation failure degrades to a data-only
	// report, matching the connector failure policy.
	var ins *insights.Insights
	breakdown.InsightGenerationTime = o.trackPhase("insights", func() {
		var insErr error
		ins, insErr = o.gen.Generate(ctx, insights.Input{
			Funnel:     f,
			Ads:        ads,
			DateRange:  dr,
			Connectors: req.Connectors,
		})
		if insErr != nil {
			zap.L().Warn("orchestrator: insight generation failed, continuing data-only", zap.Error(insErr))
			ins = nil
		}
	})

	// Phase 4: format.
	var markdown string
	breakdown.ReportFormattingTime = o.trackPhase("format", func() {
		markdown = renderMarkdown(f, sources, ads, ins, req.Connectors)
	})

	total := time.Since(totalStart)
	breakdown.TotalTime = roundSeconds(total)

	report := &Report{
		ReportID: "report-" + uuid.NewString(),
		Markdown: markdown,
		Metadata: Metadata{
			GeneratedAt:          time.Now().UTC(),
			ExecutionTimeSeconds: total.Seconds(),
			Connectors:           req.Connectors,
			DateRange:            fmt.Sprintf("%s to %s", dr.Start.Format("2006-01-02"), dr.End.Format("2006-01-02")),
			Breakdown:            breakdown,
		},
		Partial:  f.Partial,
		Degraded: f.Degraded,
		Funnel:   f,
		Sources:  sources,
	}

	log.Info("orchestrator: report generation complete",
		zap.String("report_id", report.ReportID),
		zap.Float64("elapsed_s", total.Seconds()),
		zap.Bool("partial", report.Partial),
	)
	return report, nil
}

// validateConnectors enforces the connector allow list.
func (o *Orchestrator) validateConnectors(names []string) error {
	if len(names) == 0 {
		return &ValidationError{Message: "connectors is required"}
	}
	var invalid []string
	for _, name := range names {
		if !connector.IsValidName(name) {
			invalid = append(invalid, name)
		}
	}
	if len(invalid) > 0 {
		return NewInvalidConnectors(invalid)
	}
	return nil
}

// selectConnectors returns the registered connectors for the given names,
// skipping names with no registration.
func (o *Orchestrator) selectConnectors(names []string) []connector.Connector {
	conns := make([]connector.Connector, 0, len(names))
	for _, name := range names {
		if c, ok := o.registry[name]; ok {
			conns = append(conns, c)
		}
	}
	return conns
}

// fetchPhase runs the coordinator and records degraded providers.
func (o *Orchestrator) fetchPhase(ctx context.Context, conns []connector.Connector, dr daterange.Range) *coordinator.Result {
	res := o.coord.FetchAll(ctx, conns, dr)
	for _, provider := range res.Degraded() {
		o.recorder.RecordDegraded(provider)
	}
	return res
}

// trackPhase times fn, records the phase with the usage recorder and
// returns the elapsed whole seconds for the wire breakdown.
func (o *Orchestrator) trackPhase(name string, fn func()) int {
	start := time.Now()
	fn()
	elapsed := time.Since(start)
	o.recorder.RecordPhase(name, elapsed)
	zap.L().Debug("orchestrator: phase complete",
		zap.String("phase", name),
		zap.Duration("elapsed", elapsed),
	)
	return roundSeconds(elapsed)
}

func roundSeconds(d time.Duration) int {
	return int(math.Round(d.Seconds()))
}
