package monitor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/statuskeep/statusd/internal/config"
	"github.com/statuskeep/statusd/internal/domain"
)

// SyncStore is the slice of the service port the config sync needs.
type SyncStore interface {
	ServiceByURL(ctx context.Context, url string) (*domain.Service, error)
	InsertService(ctx context.Context, s *domain.Service) error
	UpdateService(ctx context.Context, s domain.Service) error
}

// SyncServices upserts the configured endpoint list into the store. The URL
// is the identity: existing rows are updated in place when their name,
// check type or expected status drifted from the config, new URLs are
// inserted enabled, and rows for URLs no longer configured are left alone.
func SyncServices(ctx context.Context, log *zap.Logger, store SyncStore, specs []config.ServiceSpec) error {
	for _, spec := range specs {
		existing, err := store.ServiceByURL(ctx, spec.URL)
		if err != nil {
			return fmt.Errorf("lookup %s: %w", spec.URL, err)
		}

		if existing == nil {
			svc := &domain.Service{
				Name:           spec.Name,
				URL:            spec.URL,
				CheckType:      spec.CheckType,
				ExpectedStatus: spec.ExpectedStatus,
				Enabled:        true,
				Domains:        spec.Domains,
			}
			if err := store.InsertService(ctx, svc); err != nil {
				return fmt.Errorf("insert %s: %w", spec.Name, err)
			}
			log.Info("service_added", zap.String("name", spec.Name), zap.String("url", spec.URL))
			continue
		}

		updated := false
		if existing.Name != spec.Name {
			existing.Name = spec.Name
			updated = true
		}
		if existing.CheckType != spec.CheckType {
			existing.CheckType = spec.CheckType
			updated = true
		}
		if existing.ExpectedStatus != spec.ExpectedStatus {
			existing.ExpectedStatus = spec.ExpectedStatus
			updated = true
		}
		if existing.Domains != spec.Domains {
			existing.Domains = spec.Domains
			updated = true
		}
		if !updated {
			continue
		}
		if err := store.UpdateService(ctx, *existing); err != nil {
			return fmt.Errorf("update %s: %w", spec.Name, err)
		}
		log.Info("service_updated", zap.String("name", spec.Name), zap.String("url", spec.URL))
	}
	return nil
}
