package memory

import (
	"context"
	"testing"
	"time"

	"github.com/statuskeep/statusd/internal/domain"
	"github.com/statuskeep/statusd/internal/repo"
)

func TestMemoryStore_InsertAndListServices(t *testing.T) {
	ctx := context.Background()
	s := New()

	svc := &domain.Service{Name: "blog", URL: "https://blog.example.com", CheckType: "http", Enabled: true}
	if err := s.InsertService(ctx, svc); err != nil {
		t.Fatalf("InsertService: %v", err)
	}
	if svc.ID == 0 {
		t.Fatalf("expected service ID to be assigned")
	}

	disabled := &domain.Service{Name: "old", URL: "https://old.example.com", CheckType: "http", Enabled: false}
	if err := s.InsertService(ctx, disabled); err != nil {
		t.Fatalf("InsertService: %v", err)
	}

	all, err := s.ListServices(ctx)
	if err != nil {
		t.Fatalf("ListServices: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("want 2 services, got %d", len(all))
	}

	enabled, err := s.ListEnabledServices(ctx)
	if err != nil {
		t.Fatalf("ListEnabledServices: %v", err)
	}
	if len(enabled) != 1 || enabled[0].Name != "blog" {
		t.Fatalf("want only the enabled service, got %+v", enabled)
	}
}

func TestMemoryStore_DuplicateNameRejected(t *testing.T) {
	ctx := context.Background()
	s := New()

	if err := s.InsertService(ctx, &domain.Service{Name: "blog", URL: "https://a.example.com"}); err != nil {
		t.Fatalf("InsertService: %v", err)
	}
	if err := s.InsertService(ctx, &domain.Service{Name: "blog", URL: "https://b.example.com"}); err == nil {
		t.Fatalf("duplicate name should be rejected")
	}
}

func TestMemoryStore_TxCommitMakesWritesVisible(t *testing.T) {
	ctx := context.Background()
	s := New()
	svc := &domain.Service{Name: "api", URL: "https://api.example.com", Enabled: true}
	if err := s.InsertService(ctx, svc); err != nil {
		t.Fatalf("InsertService: %v", err)
	}

	tx, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	out := &domain.Outcome{ServiceID: svc.ID, Timestamp: time.Now().UTC(), Status: domain.StatusUp}
	if err := tx.InsertOutcome(ctx, out); err != nil {
		t.Fatalf("InsertOutcome: %v", err)
	}

	// staged write is invisible before commit
	if got, _ := s.LatestOutcome(ctx, svc.ID); got != nil {
		t.Fatalf("outcome should not be visible before commit, got %+v", got)
	}

	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	got, err := s.LatestOutcome(ctx, svc.ID)
	if err != nil {
		t.Fatalf("LatestOutcome: %v", err)
	}
	if got == nil || got.Status != domain.StatusUp {
		t.Fatalf("committed outcome should be visible, got %+v", got)
	}
}

func TestMemoryStore_TxRollbackDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	s := New()
	svc := &domain.Service{Name: "api", URL: "https://api.example.com", Enabled: true}
	if err := s.InsertService(ctx, svc); err != nil {
		t.Fatalf("InsertService: %v", err)
	}

	tx, _ := s.Begin(ctx)
	_ = tx.InsertOutcome(ctx, &domain.Outcome{ServiceID: svc.ID, Timestamp: time.Now().UTC(), Status: domain.StatusDown})
	_ = tx.InsertIncident(ctx, &domain.Incident{ServiceID: svc.ID, StartedAt: time.Now().UTC(), Status: domain.IncidentOngoing})
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	if got, _ := s.LatestOutcome(ctx, svc.ID); got != nil {
		t.Fatalf("rolled-back outcome should be gone, got %+v", got)
	}
	if got, _ := s.LatestIncident(ctx, svc.ID); got != nil {
		t.Fatalf("rolled-back incident should be gone, got %+v", got)
	}
}

func TestMemoryStore_TxLatestIncidentSeesStagedWrites(t *testing.T) {
	ctx := context.Background()
	s := New()
	svc := &domain.Service{Name: "api", URL: "https://api.example.com", Enabled: true}
	if err := s.InsertService(ctx, svc); err != nil {
		t.Fatalf("InsertService: %v", err)
	}

	tx, _ := s.Begin(ctx)
	staged := &domain.Incident{ServiceID: svc.ID, StartedAt: time.Now().UTC(), Status: domain.IncidentOngoing}
	if err := tx.InsertIncident(ctx, staged); err != nil {
		t.Fatalf("InsertIncident: %v", err)
	}

	got, err := tx.LatestIncident(ctx, svc.ID)
	if err != nil {
		t.Fatalf("LatestIncident: %v", err)
	}
	if got == nil || got.Status != domain.IncidentOngoing {
		t.Fatalf("staged incident should be visible inside its own tx, got %+v", got)
	}
	_ = tx.Rollback()
}

func TestMemoryStore_ListIncidentsNewestFirstWithLimit(t *testing.T) {
	ctx := context.Background()
	s := New()
	svc := &domain.Service{Name: "api", URL: "https://api.example.com", Enabled: true}
	if err := s.InsertService(ctx, svc); err != nil {
		t.Fatalf("InsertService: %v", err)
	}

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	tx, _ := s.Begin(ctx)
	for i := 0; i < 3; i++ {
		_ = tx.InsertIncident(ctx, &domain.Incident{
			ServiceID: svc.ID,
			StartedAt: base.Add(time.Duration(i) * time.Hour),
			Status:    domain.IncidentResolved,
		})
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	out, err := s.ListIncidents(ctx, repo.ListIncidentsOptions{Since: time.Time{}, Limit: 2})
	if err != nil {
		t.Fatalf("ListIncidents: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("want limit applied, got %d", len(out))
	}
	if !out[0].StartedAt.After(out[1].StartedAt) {
		t.Fatalf("want newest first, got %v then %v", out[0].StartedAt, out[1].StartedAt)
	}
	if out[0].ServiceName != "api" {
		t.Fatalf("want service name joined, got %q", out[0].ServiceName)
	}
}
