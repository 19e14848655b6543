package intent

import (
	"strings"

	"github.com/dhruv1108git/pulse/internal/domain"
)

// typeSynonyms maps phrasing to a report type, checked in order so the more
// specific phrases win.
var typeSynonyms = []struct {
	phrase     string
	reportType string
}{
	{"fire", domain.TypeFire},
	{"blaze", domain.TypeFire},
	{"burning", domain.TypeFire},
	{"smoke", domain.TypeFire},
	{"crime", domain.TypeCrime},
	{"theft", domain.TypeCrime},
	{"robbery", domain.TypeCrime},
	{"assault", domain.TypeCrime},
	{"break-in", domain.TypeCrime},
	{"roadblock", domain.TypeRoadblock},
	{"road block", domain.TypeRoadblock},
	{"accident", domain.TypeRoadblock},
	{"crash", domain.TypeRoadblock},
	{"traffic", domain.TypeRoadblock},
	{"power outage", domain.TypePowerOutage},
	{"outage", domain.TypePowerOutage},
	{"blackout", domain.TypePowerOutage},
	{"no power", domain.TypePowerOutage},
	{"electricity", domain.TypePowerOutage},
}

var timePhrases = []struct {
	phrase string
	window domain.TimeWindow
}{
	{"today", domain.WindowToday},
	{"tonight", domain.WindowToday},
	{"yesterday", domain.WindowYesterday},
	{"last week", domain.WindowLastWeek},
	{"past week", domain.WindowLastWeek},
	{"this week", domain.WindowLastWeek},
	{"last month", domain.WindowLastMonth},
	{"past month", domain.WindowLastMonth},
}

var severityPhrases = []struct {
	phrase   string
	severity domain.SeverityHint
}{
	{"emergency", domain.SeverityCritical},
	{"urgent", domain.SeverityCritical},
	{"critical", domain.SeverityCritical},
	{"life-threatening", domain.SeverityCritical},
	{"serious", domain.SeverityHigh},
	{"dangerous", domain.SeverityHigh},
	{"major", domain.SeverityHigh},
	{"minor", domain.SeverityLow},
	{"small", domain.SeverityLow},
}

var stopwords = map[string]bool{
	"a": true, "an": true, "any": true, "are": true, "at": true, "in": true,
	"is": true, "me": true, "my": true, "near": true, "of": true, "on": true,
	"the": true, "there": true, "to": true, "was": true, "what": true,
	"where": true, "with": true,
}

// Heuristic is the keyword fallback used when the classifier is unavailable
// or returns garbage. The result is always marked Degraded.
func Heuristic(text string) domain.QueryIntent {
	lower := strings.ToLower(text)

	intent := domain.QueryIntent{
		TimeWindow: domain.WindowNone,
		Fuzzy:      true,
		Degraded:   true,
	}

	for _, s := range typeSynonyms {
		if strings.Contains(lower, s.phrase) {
			intent.TypeFilter = s.reportType
			break
		}
	}
	for _, p := range timePhrases {
		if strings.Contains(lower, p.phrase) {
			intent.TimeWindow = p.window
			break
		}
	}
	for _, p := range severityPhrases {
		if strings.Contains(lower, p.phrase) {
			intent.SeverityHint = p.severity
			break
		}
	}
	if strings.Contains(lower, "near me") || strings.Contains(lower, "nearby") ||
		strings.Contains(lower, "around here") {
		intent.LocationHint = "near_me"
	}

	for _, word := range strings.Fields(lower) {
		word = strings.Trim(word, ".,!?\"'")
		if len(word) < 2 || stopwords[word] {
			continue
		}
		intent.Keywords = append(intent.Keywords, word)
	}

	return intent
}
