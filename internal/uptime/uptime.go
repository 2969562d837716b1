package uptime

import (
	"context"
	"fmt"
	"time"

	"github.com/statuskeep/statusd/internal/domain"
	"github.com/statuskeep/statusd/internal/repo"
)

// ShortIncidentCutoff is the duration under which a resolved incident counts
// as a blip: its non-up outcomes are re-credited when computing uptime.
const ShortIncidentCutoff = 60 * time.Second

// Aggregator computes uptime percentages and check statistics over trailing
// windows. It only reads from the store.
type Aggregator struct {
	outcomes  repo.OutcomeStore
	incidents repo.IncidentStore

	now func() time.Time
}

func New(outcomes repo.OutcomeStore, incidents repo.IncidentStore) *Aggregator {
	return &Aggregator{
		outcomes:  outcomes,
		incidents: incidents,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Uptime returns the percentage of outcomes in the trailing window that were
// up, after re-crediting non-up outcomes that fall inside short resolved
// incidents. A window with no outcomes at all reports 100: no data is
// treated as fully available, not as unknown.
func (a *Aggregator) Uptime(ctx context.Context, serviceID int64, window time.Duration) (float64, error) {
	since := a.now().Add(-window)

	total, err := a.outcomes.CountOutcomes(ctx, serviceID, since, "")
	if err != nil {
		return 0, fmt.Errorf("count outcomes: %w", err)
	}
	if total == 0 {
		return 100.0, nil
	}

	up, err := a.outcomes.CountOutcomes(ctx, serviceID, since, domain.StatusUp)
	if err != nil {
		return 0, fmt.Errorf("count up outcomes: %w", err)
	}

	shorts, err := a.incidents.ShortIncidentsSince(ctx, serviceID, since, ShortIncidentCutoff)
	if err != nil {
		return 0, fmt.Errorf("short incidents: %w", err)
	}

	// Re-credit exactly the non-up rows inside each short incident window.
	// The raw outcome rows stay untouched, so history remains auditable.
	compensation := 0
	for _, inc := range shorts {
		if inc.EndedAt == nil {
			continue
		}
		n, err := a.outcomes.CountNonUpOutcomesBetween(ctx, serviceID, inc.StartedAt, *inc.EndedAt)
		if err != nil {
			return 0, fmt.Errorf("count short-outage outcomes: %w", err)
		}
		compensation += n
	}

	adjusted := up + compensation
	return float64(adjusted) / float64(total) * 100, nil
}

// Stats is the simpler sibling of Uptime: raw counts and mean latency over
// a window, with an uncompensated uptime percentage. It deliberately does
// not apply the short-incident rule.
type Stats struct {
	Period              string   `json:"period"`
	UptimePercentage    float64  `json:"uptime_percentage"`
	TotalChecks         int      `json:"total_checks"`
	SuccessfulChecks    int      `json:"successful_checks"`
	FailedChecks        int      `json:"failed_checks"`
	AverageResponseTime *float64 `json:"average_response_time"`
}

func (a *Aggregator) Stats(ctx context.Context, serviceID int64, window time.Duration) (Stats, error) {
	since := a.now().Add(-window)

	total, err := a.outcomes.CountOutcomes(ctx, serviceID, since, "")
	if err != nil {
		return Stats{}, fmt.Errorf("count outcomes: %w", err)
	}
	successful, err := a.outcomes.CountOutcomes(ctx, serviceID, since, domain.StatusUp)
	if err != nil {
		return Stats{}, fmt.Errorf("count up outcomes: %w", err)
	}
	avg, err := a.outcomes.AvgLatency(ctx, serviceID, since)
	if err != nil {
		return Stats{}, fmt.Errorf("avg latency: %w", err)
	}

	pct := 100.0
	if total > 0 {
		pct = float64(successful) / float64(total) * 100
	}

	return Stats{
		Period:              fmt.Sprintf("%dh", int(window.Hours())),
		UptimePercentage:    pct,
		TotalChecks:         total,
		SuccessfulChecks:    successful,
		FailedChecks:        total - successful,
		AverageResponseTime: avg,
	}, nil
}
