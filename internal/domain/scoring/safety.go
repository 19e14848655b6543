package scoring

import (
	"sort"
	"time"

	"github.com/dhruv1108git/pulse/internal/domain"
)

// Per-incident penalty weights by report type. Unknown types use defaultPenalty.
var safetyPenalty = map[string]float64{
	domain.TypeCrime:       15,
	domain.TypeFire:        10,
	domain.TypeRoadblock:   5,
	domain.TypePowerOutage: 3,
}

const (
	defaultPenalty = 5.0
	// penaltyCap bounds the damage a single incident can do to the score.
	penaltyCap = 20.0
	// highRiskThreshold is the in-window occurrence count that flags a type.
	highRiskThreshold = 3
)

// SafetyReport is the aggregate safety picture for an area and time window.
type SafetyReport struct {
	// Score is 0-100, 100 safest.
	Score            int
	CountsByType     map[string]int
	CountsBySeverity map[string]int
	HighRiskTypes    []string
}

// ComputeAreaSafetyScore reduces a set of incidents to a single 0-100 score.
// Each in-window incident subtracts min(typeWeight * recencyFactor, cap),
// where recencyFactor decays linearly from 1.0 now to 0.0 at the window edge.
// An empty input yields 100 with empty breakdowns.
func ComputeAreaSafetyScore(incidents []domain.Incident, now time.Time, window time.Duration) SafetyReport {
	report := SafetyReport{
		Score:            100,
		CountsByType:     map[string]int{},
		CountsBySeverity: map[string]int{},
	}
	if len(incidents) == 0 || window <= 0 {
		return report
	}

	score := 100.0
	for _, inc := range incidents {
		age := now.Sub(inc.Timestamp)
		if age < 0 {
			age = 0
		}
		if age > window {
			continue
		}

		recency := 1.0 - float64(age)/float64(window)
		weight, ok := safetyPenalty[inc.ReportType]
		if !ok {
			weight = defaultPenalty
		}
		penalty := weight * recency
		if penalty > penaltyCap {
			penalty = penaltyCap
		}
		score -= penalty

		report.CountsByType[inc.ReportType]++
		report.CountsBySeverity[severityBucket(inc.Severity)]++
	}

	for typ, count := range report.CountsByType {
		if count >= highRiskThreshold {
			report.HighRiskTypes = append(report.HighRiskTypes, typ)
		}
	}
	sort.Strings(report.HighRiskTypes)

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	report.Score = int(score)
	return report
}

func severityBucket(severity int) string {
	switch {
	case severity >= 5:
		return string(domain.SeverityCritical)
	case severity == 4:
		return string(domain.SeverityHigh)
	case severity == 3:
		return string(domain.SeverityMedium)
	default:
		return string(domain.SeverityLow)
	}
}
