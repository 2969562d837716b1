package domain

import (
	"strings"
	"time"
)

// Status classifies one probe outcome.
type Status string

const (
	StatusUp       Status = "up"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
	// StatusUnknown is never stored; it is reported for services that have
	// no recorded outcome yet.
	StatusUnknown Status = "unknown"
)

// Service is a monitored endpoint. Services are seeded from configuration;
// the monitoring engine only reads them.
type Service struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"` // unique
	URL            string    `json:"url"`
	CheckType      string    `json:"check_type"`
	ExpectedStatus string    `json:"expected_status"`
	Enabled        bool      `json:"enabled"`
	CreatedAt      time.Time `json:"created_at"`
	Domains        string    `json:"domains,omitempty"` // comma-separated tags, read-side filtering only
}

// HasDomain reports whether the service carries the given domain tag.
func (s Service) HasDomain(tag string) bool {
	if s.Domains == "" {
		return false
	}
	for _, d := range strings.Split(s.Domains, ",") {
		if strings.TrimSpace(d) == tag {
			return true
		}
	}
	return false
}
