package health

import "context"

// StorePinger checks query/incident store availability.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// AIChecker checks AI provider availability.
type AIChecker interface {
	HealthCheck(ctx context.Context) error
}
