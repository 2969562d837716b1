package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/statuskeep/statusd/internal/domain"
	"github.com/statuskeep/statusd/internal/repo/memory"
	"github.com/statuskeep/statusd/internal/uptime"
)

// ---- test helpers ----

func setupServer(t *testing.T) (*memory.Store, *httptest.Server) {
	t.Helper()
	store := memory.New()
	srv := NewServer(zap.NewNop(), store, uptime.New(store, store), nil)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return store, ts
}

func addService(t *testing.T, store *memory.Store, name, domains string) domain.Service {
	t.Helper()
	svc := &domain.Service{
		Name:      name,
		URL:       "https://" + name + ".example.com",
		CheckType: "http",
		Enabled:   true,
		Domains:   domains,
	}
	if err := store.InsertService(context.Background(), svc); err != nil {
		t.Fatalf("InsertService: %v", err)
	}
	return *svc
}

func addOutcome(t *testing.T, store *memory.Store, serviceID int64, ts time.Time, status domain.Status) {
	t.Helper()
	ctx := context.Background()
	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	lat := 42.0
	o := &domain.Outcome{ServiceID: serviceID, Timestamp: ts, Status: status, LatencyMS: &lat}
	if status == domain.StatusDown {
		o.LatencyMS = nil
		o.Error = "Connection timeout"
	}
	if err := tx.InsertOutcome(ctx, o); err != nil {
		t.Fatalf("InsertOutcome: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
}

func addIncident(t *testing.T, store *memory.Store, inc domain.Incident) {
	t.Helper()
	ctx := context.Background()
	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := tx.InsertIncident(ctx, &inc); err != nil {
		t.Fatalf("InsertIncident: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
}

func getJSON(t *testing.T, url string, into any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: want 200, got %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
}

// ---- tests ----

func TestListServices_UnknownWithoutOutcomes(t *testing.T) {
	store, ts := setupServer(t)
	addService(t, store, "blog", "")

	var out []ServiceStatus
	getJSON(t, ts.URL+"/api/services", &out)

	if len(out) != 1 {
		t.Fatalf("want 1 service, got %d", len(out))
	}
	if out[0].Status != domain.StatusUnknown {
		t.Fatalf("want unknown status without outcomes, got %s", out[0].Status)
	}
	if out[0].Uptime24h != 100.0 || out[0].Uptime30d != 100.0 {
		t.Fatalf("no-data uptime should be 100, got %+v", out[0])
	}
	if out[0].LastCheck != nil || out[0].CurrentIncident != nil {
		t.Fatalf("want no last check or incident, got %+v", out[0])
	}
}

func TestListServices_StatusAndOngoingIncident(t *testing.T) {
	store, ts := setupServer(t)
	svc := addService(t, store, "api", "")
	now := time.Now().UTC()

	addOutcome(t, store, svc.ID, now.Add(-2*time.Minute), domain.StatusUp)
	addOutcome(t, store, svc.ID, now.Add(-time.Minute), domain.StatusDown)
	addIncident(t, store, domain.Incident{
		ServiceID:   svc.ID,
		StartedAt:   now.Add(-time.Minute),
		Status:      domain.IncidentOngoing,
		Description: "api is down",
	})

	var out []ServiceStatus
	getJSON(t, ts.URL+"/api/services", &out)

	if len(out) != 1 {
		t.Fatalf("want 1 service, got %d", len(out))
	}
	got := out[0]
	if got.Status != domain.StatusDown {
		t.Fatalf("status should come from the latest outcome, got %s", got.Status)
	}
	if got.LastCheck == nil {
		t.Fatalf("want last check timestamp")
	}
	if got.CurrentIncident == nil || got.CurrentIncident.Description != "api is down" {
		t.Fatalf("want ongoing incident summary, got %+v", got.CurrentIncident)
	}
	if got.Uptime24h != 50.0 {
		t.Fatalf("want uptime 50.0 (1 of 2 up), got %f", got.Uptime24h)
	}
}

func TestListServices_DomainFilter(t *testing.T) {
	store, ts := setupServer(t)
	addService(t, store, "blog", "example.com, other.net")
	addService(t, store, "api", "other.net")

	var out []ServiceStatus
	getJSON(t, ts.URL+"/api/services?domain=example.com", &out)

	if len(out) != 1 || out[0].Name != "blog" {
		t.Fatalf("want only the tagged service, got %+v", out)
	}
}

func TestServiceHistory_WindowedNewestFirst(t *testing.T) {
	store, ts := setupServer(t)
	svc := addService(t, store, "api", "")
	now := time.Now().UTC()

	addOutcome(t, store, svc.ID, now.Add(-30*time.Minute), domain.StatusUp)
	addOutcome(t, store, svc.ID, now.Add(-10*time.Minute), domain.StatusDegraded)
	addOutcome(t, store, svc.ID, now.Add(-3*time.Hour), domain.StatusDown) // outside 1h window

	var out []domain.Outcome
	getJSON(t, ts.URL+"/api/services/1/history?hours=1", &out)

	if len(out) != 2 {
		t.Fatalf("want 2 outcomes in the window, got %d", len(out))
	}
	if out[0].Status != domain.StatusDegraded || out[1].Status != domain.StatusUp {
		t.Fatalf("want newest first, got %s then %s", out[0].Status, out[1].Status)
	}
}

func TestServiceStats(t *testing.T) {
	store, ts := setupServer(t)
	svc := addService(t, store, "api", "")
	now := time.Now().UTC()

	for i := 0; i < 8; i++ {
		addOutcome(t, store, svc.ID, now.Add(-time.Duration(i+1)*time.Minute), domain.StatusUp)
	}
	addOutcome(t, store, svc.ID, now.Add(-20*time.Minute), domain.StatusDown)
	addOutcome(t, store, svc.ID, now.Add(-21*time.Minute), domain.StatusDown)

	var stats uptime.Stats
	getJSON(t, ts.URL+"/api/services/1/stats?hours=24", &stats)

	if stats.TotalChecks != 10 || stats.SuccessfulChecks != 8 || stats.FailedChecks != 2 {
		t.Fatalf("unexpected counts: %+v", stats)
	}
	if stats.UptimePercentage != 80.0 {
		t.Fatalf("want 80.0, got %f", stats.UptimePercentage)
	}
}

func TestServiceStats_BadID(t *testing.T) {
	_, ts := setupServer(t)
	resp, err := http.Get(ts.URL + "/api/services/nope/stats")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("want 400 for non-numeric id, got %d", resp.StatusCode)
	}
}

func TestListIncidents_OngoingOnly(t *testing.T) {
	store, ts := setupServer(t)
	svc := addService(t, store, "api", "")
	now := time.Now().UTC()

	end := now.Add(-time.Hour)
	dur := 300
	addIncident(t, store, domain.Incident{
		ServiceID: svc.ID, StartedAt: now.Add(-2 * time.Hour),
		EndedAt: &end, DurationSec: &dur,
		Status: domain.IncidentResolved, Description: "api is down",
	})
	addIncident(t, store, domain.Incident{
		ServiceID: svc.ID, StartedAt: now.Add(-10 * time.Minute),
		Status: domain.IncidentOngoing, Description: "api is down",
	})

	var all []map[string]any
	getJSON(t, ts.URL+"/api/incidents", &all)
	if len(all) != 2 {
		t.Fatalf("want 2 incidents, got %d", len(all))
	}
	if all[0]["service_name"] != "api" {
		t.Fatalf("want service name on each incident, got %+v", all[0])
	}

	var ongoing []map[string]any
	getJSON(t, ts.URL+"/api/incidents?ongoing_only=true", &ongoing)
	if len(ongoing) != 1 {
		t.Fatalf("want 1 ongoing incident, got %d", len(ongoing))
	}
	if ongoing[0]["status"] != string(domain.IncidentOngoing) {
		t.Fatalf("want ongoing status, got %v", ongoing[0]["status"])
	}
}

func TestHealthEndpoint(t *testing.T) {
	_, ts := setupServer(t)

	var out map[string]string
	getJSON(t, ts.URL+"/api/health", &out)
	if out["status"] != "healthy" {
		t.Fatalf("want healthy, got %+v", out)
	}
}
