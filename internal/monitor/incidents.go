package monitor

import (
	"context"

	"go.uber.org/zap"

	"github.com/statuskeep/statusd/internal/domain"
	"github.com/statuskeep/statusd/internal/repo"
)

// trackIncident applies one incident state transition for a service given
// its newest outcome status. The latest-incident read happens on the cycle's
// transaction, so read-then-write is serialized with the write that follows.
//
// Transitions:
//   - down with no incident, or latest resolved: open a new ongoing incident.
//   - down while ongoing: no-op, an incident is already open.
//   - up/degraded while ongoing: resolve it with end time and duration.
//   - up/degraded otherwise: no-op.
//
// Degraded never opens an incident; it is a softer signal than an outage.
func (e *Engine) trackIncident(ctx context.Context, tx repo.Tx, svc domain.Service, status domain.Status) error {
	latest, err := tx.LatestIncident(ctx, svc.ID)
	if err != nil {
		return err
	}

	if status == domain.StatusDown {
		if latest != nil && latest.Status == domain.IncidentOngoing {
			return nil
		}
		inc := &domain.Incident{
			ServiceID:   svc.ID,
			StartedAt:   e.now(),
			Status:      domain.IncidentOngoing,
			Description: svc.Name + " is down",
		}
		if err := tx.InsertIncident(ctx, inc); err != nil {
			return err
		}
		e.log.Warn("incident_opened", zap.String("service", svc.Name))
		return nil
	}

	if latest == nil || latest.Status != domain.IncidentOngoing {
		return nil
	}

	end := e.now()
	duration := int(end.Sub(latest.StartedAt).Seconds())
	latest.EndedAt = &end
	latest.DurationSec = &duration
	latest.Status = domain.IncidentResolved
	if err := tx.UpdateIncident(ctx, *latest); err != nil {
		return err
	}

	if duration >= 60 {
		e.log.Info("incident_resolved",
			zap.String("service", svc.Name),
			zap.Int("duration_sec", duration),
		)
	} else {
		// Short incidents stay on record but the uptime aggregator
		// re-credits their non-up outcomes.
		e.log.Info("short_incident_resolved",
			zap.String("service", svc.Name),
			zap.Int("duration_sec", duration),
		)
	}
	return nil
}
