package domain

import "time"

// Known incident report types. The store accepts arbitrary types; these are
// the ones the safety scoring weighs specially.
const (
	TypeCrime       = "crime"
	TypeFire        = "fire"
	TypeRoadblock   = "roadblock"
	TypePowerOutage = "power_outage"
)

// Incident is a read-only view of an indexed incident report.
// The document store owns these records; the core never mutates them.
type Incident struct {
	ID          string
	ReportType  string
	Title       string
	Description string
	Location    *GeoPoint
	// Severity is the declared 1-5 scale, 5 worst.
	Severity  int
	Timestamp time.Time
	// Embedding is the optional semantic vector; nil when the report was
	// indexed without one.
	Embedding []float32
}
