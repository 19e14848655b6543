package domain

import "context"

// DispatchRequest is the payload handed to the emergency notifier.
type DispatchRequest struct {
	IncidentType string
	// Severity is the declared 1-5 scale, 5 worst.
	Severity    int
	Location    *GeoPoint
	Description string
}

// DispatchReport describes the outcome of a notifier dispatch. A failed
// dispatch is a report with Delivered=false, not an error: the SOS record
// must complete either way.
type DispatchReport struct {
	Delivered bool
	Detail    string
	// ReferenceID identifies the dispatch attempt for followup.
	ReferenceID string
}

// Notifier forwards an SOS to the downstream alerting channel.
type Notifier interface {
	Dispatch(ctx context.Context, req DispatchRequest) (DispatchReport, error)
}
