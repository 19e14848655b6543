package safety

import (
	"context"
	"time"

	"github.com/dhruv1108git/pulse/internal/domain"
)

// IncidentReader loads incidents by time window.
type IncidentReader interface {
	InWindow(ctx context.Context, from, to time.Time) ([]domain.Incident, error)
}
