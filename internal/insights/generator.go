// Package insights generates narrative analysis of aggregated funnel data
// using the Anthropic API. Generation is optional: when no API key is
// configured the pipeline falls back to a data-only report.
package insights

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/atlas-cli/internal/connector"
	"github.com/sells-group/atlas-cli/internal/daterange"
	"github.com/sells-group/atlas-cli/internal/funnel"
	"github.com/sells-group/atlas-cli/pkg/anthropic"
)

// DefaultModel is the model used for funnel analysis.
const DefaultModel = "claude-sonnet-4-5-20250929"

const defaultMaxTokens = 2048

// Finding is a single observation about the period.
type Finding struct {
	Finding  string `json:"finding"`
	Impact   string `json:"impact"`
	Priority string `json:"priority"` // critical, high, medium
}

// Issue is a problem that warrants a specific corrective action.
type Issue struct {
	Issue          string `json:"issue"`
	Impact         string `json:"impact"`
	Recommendation string `json:"recommendation"`
	Priority       string `json:"priority"`
}

// Recommendation is an action item with a timeframe.
type Recommendation struct {
	Action    string `json:"action"`
	Timeframe string `json:"timeframe"` // immediate, short-term, medium-term
	Priority  string `json:"priority"`
}

// Insights is the structured analysis returned by the generator.
type Insights struct {
	Summary         string           `json:"summary"`
	KeyFindings     []Finding        `json:"keyFindings"`
	CriticalIssues  []Issue          `json:"criticalIssues"`
	Recommendations []Recommendation `json:"recommendations"`
	TokensUsed      int64            `json:"-"`
}

// Input carries everything the generator needs to analyze a period. Ads
// holds the campaign rows fetched from the ad platforms; empty when no ad
// platform connector was requested.
type Input struct {
	Funnel     *funnel.Funnel
	Ads        []connector.AdRecord
	DateRange  daterange.Range
	Connectors []string
}

// Generator produces insights for a period. Implementations may return
// (nil, nil) to signal that generation is disabled.
type Generator interface {
	Generate(ctx context.Context, in Input) (*Insights, error)
}

// New returns a Claude-backed generator, or a disabled one when apiKey is
// empty.
func New(apiKey, model string) Generator {
	if apiKey == "" {
		return disabled{}
	}
	if model == "" {
		model = DefaultModel
	}
	return &claudeGenerator{client: anthropic.NewClient(apiKey), model: model}
}

// NewWithClient builds a generator around an existing client. Used by tests.
func NewWithClient(client anthropic.Client, model string) Generator {
	if model == "" {
		model = DefaultModel
	}
	return &claudeGenerator{client: client, model: model}
}

type disabled struct{}

func (disabled) Generate(context.Context, Input) (*Insights, error) {
	return nil, nil
}

type claudeGenerator struct {
	client anthropic.Client
	model  string
}

const systemPrompt = `You are a marketing analytics assistant for a B2B funnel dashboard.

Your job: analyze cross-channel funnel data and surface actionable insights.

Analysis framework:
1. Compare conversion rates between funnel stages
2. Flag anomalies and significant channel imbalances
3. Identify root causes for significant gaps
4. Create specific, actionable recommendations

For each insight, include:
- Finding: what changed or what the issue is
- Impact: quantified impact where possible
- Priority: critical, high, or medium
- Timeframe for recommendations: immediate (7 days), short-term (30 days), medium-term (90 days)

Return ONLY valid JSON with this exact structure (no markdown, no code blocks):
{
  "summary": "Brief 2-3 sentence overview of the period",
  "keyFindings": [
    {"finding": "...", "impact": "...", "priority": "critical|high|medium"}
  ],
  "criticalIssues": [
    {"issue": "...", "impact": "...", "recommendation": "...", "priority": "critical|high|medium"}
  ],
  "recommendations": [
    {"action": "...", "timeframe": "immediate|short-term|medium-term", "priority": "critical|high|medium"}
  ]
}`

func (g *claudeGenerator) Generate(ctx context.Context, in Input) (*Insights, error) {
	data, err := json.MarshalIndent(in.Funnel, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "insights: marshal funnel")
	}

	var sb strings.Builder
	sb.WriteString("Analyze the following funnel data for the period ")
	sb.WriteString(in.DateRange.Start.Format("2006-01-02"))
	sb.WriteString(" to ")
	sb.WriteString(in.DateRange.End.Format("2006-01-02"))
	sb.WriteString(":\n\nConnectors used: ")
	sb.WriteString(strings.Join(in.Connectors, ", "))
	sb.WriteString("\n\nData:\n")
	sb.Write(data)
	if len(in.Ads) > 0 {
		ads, err := json.MarshalIndent(in.Ads, "", "  ")
		if err != nil {
			return nil, eris.Wrap(err, "insights: marshal ads")
		}
		sb.WriteString("\n\nAd platform campaign performance:\n")
		sb.Write(ads)
	}
	sb.WriteString("\n\nGenerate insights, identify critical issues, and provide actionable recommendations.\nReturn ONLY the JSON object, no markdown, no code blocks, no explanations.")

	resp, err := g.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     g.model,
		MaxTokens: defaultMaxTokens,
		System:    []anthropic.SystemBlock{{Text: systemPrompt}},
		Messages:  []anthropic.Message{{Role: "user", Content: sb.String()}},
	})
	if err != nil {
		return nil, eris.Wrap(err, "insights: generate")
	}

	resp.Usage.LogCost(g.model, "insights")

	out := parseInsights(resp.Text())
	out.TokensUsed = resp.Usage.InputTokens + resp.Usage.OutputTokens
	return out, nil
}

var codeFenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// parseInsights decodes the model's JSON reply. Replies wrapped in markdown
// code fences are unwrapped first. A reply that cannot be parsed degrades to
// a summary-only result instead of failing the report.
func parseInsights(text string) *Insights {
	raw := text
	if m := codeFenceRe.FindStringSubmatch(text); m != nil {
		raw = m[1]
	}
	raw = strings.TrimSpace(raw)

	var out Insights
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		zap.L().Warn("insights: unparseable model reply, using summary fallback",
			zap.Error(err),
			zap.Int("reply_len", len(text)),
		)
		summary := strings.TrimSpace(text)
		if len(summary) > 300 {
			summary = summary[:300]
		}
		if summary == "" {
			summary = "Analysis completed for the selected period"
		}
		out = Insights{Summary: summary}
	}

	if out.KeyFindings == nil {
		out.KeyFindings = []Finding{}
	}
	if out.CriticalIssues == nil {
		out.CriticalIssues = []Issue{}
	}
	if out.Recommendations == nil {
		out.Recommendations = []Recommendation{}
	}
	if out.Summary == "" {
		out.Summary = "Analysis completed"
	}
	return &out
}
