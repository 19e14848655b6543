// Package safety aggregates recent incidents into an area safety report.
package safety

import (
	"context"
	"fmt"
	"time"

	"github.com/dhruv1108git/pulse/internal/domain"
	"github.com/dhruv1108git/pulse/internal/domain/geo"
	"github.com/dhruv1108git/pulse/internal/domain/scoring"
)

const (
	// DefaultRadiusKm bounds the report area when the caller gives none.
	DefaultRadiusKm = 5.0
	// DefaultWindow is the report lookback when the caller gives none.
	DefaultWindow = 7 * 24 * time.Hour
)

// Service computes area safety reports.
type Service struct {
	incidents IncidentReader
	now       func() time.Time
}

// New creates a safety service.
func New(incidents IncidentReader) *Service {
	return &Service{incidents: incidents, now: time.Now}
}

// WithClock overrides the report clock (tests).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Report scores the area around loc over the lookback window. A nil loc skips
// the radius filter and reports on all in-window incidents.
func (s *Service) Report(
	ctx context.Context, loc *domain.GeoPoint, radiusKm float64, window time.Duration,
) (scoring.SafetyReport, error) {
	if radiusKm <= 0 {
		radiusKm = DefaultRadiusKm
	}
	if window <= 0 {
		window = DefaultWindow
	}

	now := s.now()
	incidents, err := s.incidents.InWindow(ctx, now.Add(-window), now)
	if err != nil {
		return scoring.SafetyReport{}, fmt.Errorf("load incidents: %w", err)
	}

	if loc != nil {
		nearby := incidents[:0]
		for _, inc := range incidents {
			if inc.Location == nil {
				continue
			}
			distKm := geo.Haversine(loc.Lat, loc.Lon, inc.Location.Lat, inc.Location.Lon) / 1000
			if distKm <= radiusKm {
				nearby = append(nearby, inc)
			}
		}
		incidents = nearby
	}

	return scoring.ComputeAreaSafetyScore(incidents, now, window), nil
}
