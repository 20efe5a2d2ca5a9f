package channel

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// sourceDisplayNames maps CRM analytics-source enum values to display labels.
var sourceDisplayNames = map[string]string{
	"ORGANIC_SEARCH":  "Organic Search",
	"PAID_SEARCH":     "Paid Search",
	"DIRECT_TRAFFIC":  "Direct",
	"REFERRALS":       "Referral",
	"OTHER_CAMPAIGNS": "Campaign",
	"SOCIAL_MEDIA":    "Social Media",
	"EMAIL_MARKETING": "Email",
	"OFFLINE":         "Offline",
	"PAID_SOCIAL":     "Paid Social",
}

var titleCaser = cases.Title(language.English)

// FormatSource renders a raw CRM source enum as a display label. Unmapped
// values are title-cased with underscores replaced by spaces; an empty
// source is "Unknown".
func FormatSource(source string) string {
	if source == "" {
		return "Unknown"
	}
	if name, ok := sourceDisplayNames[source]; ok {
		return name
	}
	return titleCaser.String(strings.ToLower(strings.ReplaceAll(source, "_", " ")))
}
