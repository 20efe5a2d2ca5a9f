// Package channel classifies raw provider source/medium pairs into the fixed
// marketing channel taxonomy and formats CRM source enums for display.
package channel

import "strings"

// Channel labels. Every classification resolves to one of these; unknown
// pairs land in Other, never in an unmapped key.
const (
	LinkedIn  = "LinkedIn"
	Reddit    = "Reddit"
	GoogleAds = "Google Ads"
	Organic   = "Organic"
	Direct    = "Direct"
	Email     = "Email"
	Social    = "Social"
	Referral  = "Referral"
	Other     = "Other"
)

// Labels is the full taxonomy in rule-precedence order, plus the catch-all.
var Labels = []string{LinkedIn, Reddit, GoogleAds, Organic, Direct, Email, Social, Referral, Other}

// Match kinds for classification rules.
const (
	matchSourceContains = "source_contains"
	matchSourceEquals   = "source_equals"
	matchMediumEquals   = "medium_equals"
)

// Rule is one ordered classification rule. Rules are evaluated first match
// wins; the ordering is load-bearing (a LinkedIn paid-social session must
// classify as LinkedIn, not Social).
type Rule struct {
	Match   string   `yaml:"match"`
	Source  string   `yaml:"source,omitempty"`
	Mediums []string `yaml:"mediums,omitempty"`
	Channel string   `yaml:"channel"`
}

func (r Rule) matches(source, medium string) bool {
	switch r.Match {
	case matchSourceContains:
		return strings.Contains(source, r.Source)
	case matchSourceEquals:
		if source != r.Source {
			return false
		}
		return len(r.Mediums) == 0 || containsString(r.Mediums, medium)
	case matchMediumEquals:
		return containsString(r.Mediums, medium)
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// defaultRules encodes the taxonomy precedence. Direct is special-cased in
// Classifier.Classify because it matches on source OR medium.
var defaultRules = []Rule{
	{Match: matchSourceContains, Source: "linkedin", Channel: LinkedIn},
	{Match: matchSourceContains, Source: "reddit", Channel: Reddit},
	{Match: matchSourceEquals, Source: "google", Mediums: []string{"cpc", "paid"}, Channel: GoogleAds},
	{Match: matchMediumEquals, Mediums: []string{"organic"}, Channel: Organic},
	{Match: matchSourceEquals, Source: "(direct)", Channel: Direct},
	{Match: matchMediumEquals, Mediums: []string{"(none)"}, Channel: Direct},
	{Match: matchMediumEquals, Mediums: []string{"email"}, Channel: Email},
	{Match: matchMediumEquals, Mediums: []string{"social"}, Channel: Social},
	{Match: matchMediumEquals, Mediums: []string{"referral"}, Channel: Referral},
}

// Classifier maps (source, medium) pairs to channel labels using an ordered
// rule list. The zero value is not usable; construct with NewClassifier or
// LoadClassifier.
type Classifier struct {
	rules []Rule
}

// NewClassifier returns a classifier with the built-in taxonomy rules.
func NewClassifier() *Classifier {
	return &Classifier{rules: defaultRules}
}

// Classify returns the channel label for a raw source/medium pair.
// Matching is case-insensitive; anything unmatched is Other.
func (c *Classifier) Classify(source, medium string) string {
	source = strings.ToLower(strings.TrimSpace(source))
	medium = strings.ToLower(strings.TrimSpace(medium))

	for _, r := range c.rules {
		if r.matches(source, medium) {
			return r.Channel
		}
	}
	return Other
}

// Bucket is a per-channel count map. Keys are always taxonomy labels.
type Bucket map[string]int

// Total sums all counts in the bucket.
func (b Bucket) Total() int {
	n := 0
	for _, v := range b {
		n += v
	}
	return n
}
