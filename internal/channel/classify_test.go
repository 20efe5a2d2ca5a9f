package channel

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_Precedence(t *testing.T) {
	c := NewClassifier()

	tests := []struct {
		source, medium string
		want           string
	}{
		{"linkedin", "social", LinkedIn}, // LinkedIn wins over Social
		{"linkedin.com", "referral", LinkedIn},
		{"lnkd.in.linkedin", "cpc", LinkedIn},
		{"reddit", "social", Reddit},
		{"www.reddit.com", "referral", Reddit},
		{"google", "cpc", GoogleAds},
		{"google", "paid", GoogleAds},
		{"google", "organic", Organic},
		{"bing", "organic", Organic},
		{"(direct)", "(none)", Direct},
		{"(direct)", "", Direct},
		{"somesite", "(none)", Direct},
		{"newsletter", "email", Email},
		{"facebook", "social", Social},
		{"partner.com", "referral", Referral},
		{"mystery", "banner", Other},
		{"", "", Other},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, c.Classify(tt.source, tt.medium),
			"classify(%q, %q)", tt.source, tt.medium)
	}
}

func TestClassify_CaseInsensitive(t *testing.T) {
	c := NewClassifier()
	assert.Equal(t, LinkedIn, c.Classify("LinkedIn", "Social"))
	assert.Equal(t, GoogleAds, c.Classify("GOOGLE", "CPC"))
	assert.Equal(t, Organic, c.Classify("Google", " Organic "))
}

func TestClassify_UnknownNeverEscapesTaxonomy(t *testing.T) {
	c := NewClassifier()
	got := c.Classify("totally-unknown", "whatever")
	assert.Contains(t, Labels, got)
	assert.Equal(t, Other, got)
}

func TestBucket_Total(t *testing.T) {
	b := Bucket{LinkedIn: 100, Organic: 300}
	assert.Equal(t, 400, b.Total())
	assert.Equal(t, 0, Bucket{}.Total())
}

func TestLoadClassifier(t *testing.T) {
	yaml := `
channels:
  rules:
    - { match: source_contains, source: linkedin, channel: LinkedIn }
    - { match: medium_equals, mediums: [social], channel: Social }
`
	dir := t.TempDir()
	path := filepath.Join(dir, "channels.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	c, err := LoadClassifier(path)
	require.NoError(t, err)

	// File order preserved: linkedin beats social.
	assert.Equal(t, LinkedIn, c.Classify("linkedin", "social"))
	assert.Equal(t, Social, c.Classify("facebook", "social"))
	assert.Equal(t, Other, c.Classify("google", "organic"))
}

func TestLoadClassifier_UnknownChannel(t *testing.T) {
	yaml := `
channels:
  rules:
    - { match: medium_equals, mediums: [social], channel: Facebook }
`
	dir := t.TempDir()
	path := filepath.Join(dir, "channels.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	_, err := LoadClassifier(path)
	assert.Error(t, err)
}

func TestLoadClassifier_Missing(t *testing.T) {
	_, err := LoadClassifier("/nonexistent/channels.yaml")
	assert.Error(t, err)
}

func TestFormatSource(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"ORGANIC_SEARCH", "Organic Search"},
		{"PAID_SOCIAL", "Paid Social"},
		{"DIRECT_TRAFFIC", "Direct"},
		{"EMAIL_MARKETING", "Email"},
		{"", "Unknown"},
		{"PARTNER_PROGRAM", "Partner Program"}, // unmapped: title-cased
		{"WEBINAR", "Webinar"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatSource(tt.in), "FormatSource(%q)", tt.in)
	}
}
