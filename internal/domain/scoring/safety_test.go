package scoring

import (
	"testing"
	"time"

	"github.com/dhruv1108git/pulse/internal/domain"
)

const week = 7 * 24 * time.Hour

func TestSafetyScore_EmptyInput(t *testing.T) {
	report := ComputeAreaSafetyScore(nil, testNow, week)
	if report.Score != 100 {
		t.Errorf("empty area must score 100, got %d", report.Score)
	}
	if len(report.CountsByType) != 0 || len(report.HighRiskTypes) != 0 {
		t.Errorf("empty area must have empty breakdown, got %+v", report)
	}
}

func TestSafetyScore_Bounds(t *testing.T) {
	// Enough fresh crime to drive the raw score well below zero.
	var incidents []domain.Incident
	for i := 0; i < 20; i++ {
		incidents = append(incidents, domain.Incident{
			ID: "c", ReportType: domain.TypeCrime, Severity: 5, Timestamp: testNow,
		})
	}
	report := ComputeAreaSafetyScore(incidents, testNow, week)
	if report.Score < 0 || report.Score > 100 {
		t.Fatalf("score out of bounds: %d", report.Score)
	}
	if report.Score != 0 {
		t.Errorf("20 fresh crimes should floor the score, got %d", report.Score)
	}
}

func TestSafetyScore_FreshCrimePenalty(t *testing.T) {
	incidents := []domain.Incident{
		{ID: "c1", ReportType: domain.TypeCrime, Severity: 4, Timestamp: testNow},
	}
	report := ComputeAreaSafetyScore(incidents, testNow, week)
	if report.Score != 85 {
		t.Errorf("one fresh crime = 15 penalty, expected 85, got %d", report.Score)
	}
}

func TestSafetyScore_RecencyDecaysPenalty(t *testing.T) {
	fresh := []domain.Incident{
		{ReportType: domain.TypeFire, Severity: 3, Timestamp: testNow},
	}
	stale := []domain.Incident{
		{ReportType: domain.TypeFire, Severity: 3, Timestamp: testNow.Add(-week / 2)},
	}
	freshReport := ComputeAreaSafetyScore(fresh, testNow, week)
	staleReport := ComputeAreaSafetyScore(stale, testNow, week)
	if staleReport.Score <= freshReport.Score {
		t.Errorf("older incident must penalize less: fresh=%d stale=%d",
			freshReport.Score, staleReport.Score)
	}
}

func TestSafetyScore_OutsideWindowIgnored(t *testing.T) {
	incidents := []domain.Incident{
		{ReportType: domain.TypeCrime, Severity: 5, Timestamp: testNow.Add(-2 * week)},
	}
	report := ComputeAreaSafetyScore(incidents, testNow, week)
	if report.Score != 100 {
		t.Errorf("incident beyond the window must not count, got %d", report.Score)
	}
	if len(report.CountsByType) != 0 {
		t.Errorf("out-of-window incidents must not appear in the breakdown: %+v", report.CountsByType)
	}
}

func TestSafetyScore_UnknownTypeUsesDefaultWeight(t *testing.T) {
	incidents := []domain.Incident{
		{ReportType: "flood", Severity: 3, Timestamp: testNow},
	}
	report := ComputeAreaSafetyScore(incidents, testNow, week)
	if report.Score != 95 {
		t.Errorf("unknown type uses default penalty 5, expected 95, got %d", report.Score)
	}
}

func TestSafetyScore_Breakdown(t *testing.T) {
	incidents := []domain.Incident{
		{ReportType: domain.TypeFire, Severity: 5, Timestamp: testNow.Add(-time.Hour)},
		{ReportType: domain.TypeFire, Severity: 4, Timestamp: testNow.Add(-2 * time.Hour)},
		{ReportType: domain.TypeFire, Severity: 3, Timestamp: testNow.Add(-3 * time.Hour)},
		{ReportType: domain.TypeRoadblock, Severity: 2, Timestamp: testNow.Add(-time.Hour)},
	}
	report := ComputeAreaSafetyScore(incidents, testNow, week)

	if report.CountsByType[domain.TypeFire] != 3 {
		t.Errorf("expected 3 fires, got %d", report.CountsByType[domain.TypeFire])
	}
	if report.CountsBySeverity["critical"] != 1 || report.CountsBySeverity["low"] != 1 {
		t.Errorf("unexpected severity buckets: %+v", report.CountsBySeverity)
	}
	if len(report.HighRiskTypes) != 1 || report.HighRiskTypes[0] != domain.TypeFire {
		t.Errorf("fire occurs 3 times and must be high-risk, got %v", report.HighRiskTypes)
	}
}
