package domain

import "time"

// IncidentStatus is the lifecycle state of an incident.
type IncidentStatus string

const (
	IncidentOngoing  IncidentStatus = "ongoing"
	IncidentResolved IncidentStatus = "resolved"
)

// Incident is a contiguous outage window for a service. At most one ongoing
// incident exists per service; a resolved incident is never mutated again.
type Incident struct {
	ID          int64          `json:"id"`
	ServiceID   int64          `json:"service_id"`
	StartedAt   time.Time      `json:"started_at"`
	EndedAt     *time.Time     `json:"ended_at"` // nil while ongoing
	DurationSec *int           `json:"duration"` // whole seconds, nil while ongoing
	Status      IncidentStatus `json:"status"`
	Description string         `json:"description,omitempty"`
}

// Resolved reports whether the incident has been closed.
func (i Incident) Resolved() bool { return i.Status == IncidentResolved }

// Short reports whether the incident resolved in under the given cutoff.
// Short incidents are excluded from uptime penalty by the aggregator.
func (i Incident) Short(cutoff time.Duration) bool {
	return i.Resolved() && i.DurationSec != nil && time.Duration(*i.DurationSec)*time.Second < cutoff
}
