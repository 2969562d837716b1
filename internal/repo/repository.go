package repo

import (
	"context"
	"time"

	"github.com/statuskeep/statusd/internal/domain"
)

// Ports (interfaces) — swap in any DB adapter later.

// ServiceStore reads and seeds the monitored service list.
type ServiceStore interface {
	ListServices(ctx context.Context) ([]domain.Service, error)
	ListEnabledServices(ctx context.Context) ([]domain.Service, error)
	// ServiceByURL returns nil, nil when no service has the given URL.
	ServiceByURL(ctx context.Context, url string) (*domain.Service, error)
	InsertService(ctx context.Context, s *domain.Service) error
	UpdateService(ctx context.Context, s domain.Service) error
}

// OutcomeStore reads recorded probe outcomes.
type OutcomeStore interface {
	// LatestOutcome returns nil, nil when the service has no outcomes yet.
	LatestOutcome(ctx context.Context, serviceID int64) (*domain.Outcome, error)
	// OutcomeHistory returns outcomes at or after since, newest first.
	OutcomeHistory(ctx context.Context, serviceID int64, since time.Time) ([]domain.Outcome, error)
	// CountOutcomes counts outcomes at or after since; status == "" counts all.
	CountOutcomes(ctx context.Context, serviceID int64, since time.Time, status domain.Status) (int, error)
	// CountNonUpOutcomesBetween counts outcomes with status != up inside
	// [from, to] inclusive.
	CountNonUpOutcomesBetween(ctx context.Context, serviceID int64, from, to time.Time) (int, error)
	// AvgLatency averages response times at or after since, ignoring rows
	// where latency is absent; returns nil when no such rows exist.
	AvgLatency(ctx context.Context, serviceID int64, since time.Time) (*float64, error)
}

// ListIncidentsOptions filters the incidents listing.
type ListIncidentsOptions struct {
	Since       time.Time
	OngoingOnly bool
	Limit       int
}

// IncidentWithService is an incident joined with its owning service's name,
// for the incidents listing.
type IncidentWithService struct {
	domain.Incident
	ServiceName string `json:"service_name"`
}

// IncidentStore reads incident records.
type IncidentStore interface {
	// LatestIncident returns the most recently started incident for the
	// service, or nil, nil when there is none.
	LatestIncident(ctx context.Context, serviceID int64) (*domain.Incident, error)
	// OngoingIncident returns the current ongoing incident, or nil, nil.
	OngoingIncident(ctx context.Context, serviceID int64) (*domain.Incident, error)
	// ListIncidents returns incidents started at or after opts.Since,
	// newest first.
	ListIncidents(ctx context.Context, opts ListIncidentsOptions) ([]IncidentWithService, error)
	// ShortIncidentsSince returns resolved incidents started at or after
	// since whose duration is below maxDuration.
	ShortIncidentsSince(ctx context.Context, serviceID int64, since time.Time, maxDuration time.Duration) ([]domain.Incident, error)
}

// Tx is one unit of work. All writes staged on a Tx become visible
// atomically at Commit; Rollback discards them. LatestIncident is exposed
// here as well so the incident tracker's read-before-write runs inside the
// same transaction, which is what keeps the "at most one ongoing incident
// per service" invariant safe if cycles ever overlap.
type Tx interface {
	LatestIncident(ctx context.Context, serviceID int64) (*domain.Incident, error)
	InsertOutcome(ctx context.Context, o *domain.Outcome) error
	InsertIncident(ctx context.Context, i *domain.Incident) error
	UpdateIncident(ctx context.Context, i domain.Incident) error
	// DeleteOutcomesBefore removes outcomes strictly older than cutoff and
	// returns how many were removed.
	DeleteOutcomesBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Commit() error
	Rollback() error
}

// TxBeginner opens units of work.
type TxBeginner interface {
	Begin(ctx context.Context) (Tx, error)
}

// Store groups every port a fully wired process needs.
type Store interface {
	ServiceStore
	OutcomeStore
	IncidentStore
	TxBeginner
}
