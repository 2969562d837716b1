package domain

import "time"

// Outcome is one recorded probe result for a service. Rows are append-only;
// only the retention sweep removes them.
type Outcome struct {
	ID        int64     `json:"id"`
	ServiceID int64     `json:"service_id"`
	Timestamp time.Time `json:"timestamp"`
	Status    Status    `json:"status"`
	LatencyMS *float64  `json:"response_time"` // nil when the probe never completed
	Code      *int      `json:"status_code"`   // nil on transport failure
	Error     string    `json:"error_message,omitempty"`
}
