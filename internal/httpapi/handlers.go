package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/statuskeep/statusd/internal/domain"
	"github.com/statuskeep/statusd/internal/repo"
)

// ServiceStatus is the per-service summary returned by /api/services.
type ServiceStatus struct {
	ID              int64            `json:"id"`
	Name            string           `json:"name"`
	Status          domain.Status    `json:"status"`
	ResponseTime    *float64         `json:"response_time"`
	Uptime24h       float64          `json:"uptime_24h"`
	Uptime7d        float64          `json:"uptime_7d"`
	Uptime30d       float64          `json:"uptime_30d"`
	LastCheck       *time.Time       `json:"last_check"`
	CurrentIncident *IncidentSummary `json:"current_incident"`
	Domains         string           `json:"domains,omitempty"`
}

// IncidentSummary is the compact ongoing-incident view embedded in a
// service status.
type IncidentSummary struct {
	ID          int64     `json:"id"`
	StartedAt   time.Time `json:"started_at"`
	Description string    `json:"description"`
}

func (s *Server) handleListServices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	domainTag := r.URL.Query().Get("domain")

	services, err := s.Services.ListServices(ctx)
	if err != nil {
		s.Logger.Error("list_services_failed", zap.Error(err))
		http.Error(w, "list error", http.StatusInternalServerError)
		return
	}

	out := make([]ServiceStatus, 0, len(services))
	for _, svc := range services {
		if domainTag != "" && !svc.HasDomain(domainTag) {
			continue
		}

		status, err := s.serviceStatus(r, svc)
		if err != nil {
			s.Logger.Error("service_status_failed",
				zap.String("service", svc.Name), zap.Error(err))
			http.Error(w, "status error", http.StatusInternalServerError)
			return
		}
		out = append(out, status)
	}

	writeJSON(w, out)
}

func (s *Server) serviceStatus(r *http.Request, svc domain.Service) (ServiceStatus, error) {
	ctx := r.Context()

	latest, err := s.Outcomes.LatestOutcome(ctx, svc.ID)
	if err != nil {
		return ServiceStatus{}, err
	}
	ongoing, err := s.Incidents.OngoingIncident(ctx, svc.ID)
	if err != nil {
		return ServiceStatus{}, err
	}

	up24, err := s.Aggregator.Uptime(ctx, svc.ID, 24*time.Hour)
	if err != nil {
		return ServiceStatus{}, err
	}
	up7d, err := s.Aggregator.Uptime(ctx, svc.ID, 7*24*time.Hour)
	if err != nil {
		return ServiceStatus{}, err
	}
	up30d, err := s.Aggregator.Uptime(ctx, svc.ID, 30*24*time.Hour)
	if err != nil {
		return ServiceStatus{}, err
	}

	status := ServiceStatus{
		ID:        svc.ID,
		Name:      svc.Name,
		Status:    domain.StatusUnknown,
		Uptime24h: up24,
		Uptime7d:  up7d,
		Uptime30d: up30d,
		Domains:   svc.Domains,
	}
	if latest != nil {
		status.Status = latest.Status
		status.ResponseTime = latest.LatencyMS
		ts := latest.Timestamp
		status.LastCheck = &ts
	}
	if ongoing != nil {
		status.CurrentIncident = &IncidentSummary{
			ID:          ongoing.ID,
			StartedAt:   ongoing.StartedAt,
			Description: ongoing.Description,
		}
	}
	return status, nil
}

func (s *Server) handleServiceHistory(w http.ResponseWriter, r *http.Request) {
	serviceID, ok := pathID(w, r)
	if !ok {
		return
	}
	hours := queryInt(r, "hours", 24)
	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)

	history, err := s.Outcomes.OutcomeHistory(r.Context(), serviceID, since)
	if err != nil {
		s.Logger.Error("history_failed", zap.Int64("service_id", serviceID), zap.Error(err))
		http.Error(w, "history error", http.StatusInternalServerError)
		return
	}
	if history == nil {
		history = []domain.Outcome{}
	}
	writeJSON(w, history)
}

func (s *Server) handleServiceStats(w http.ResponseWriter, r *http.Request) {
	serviceID, ok := pathID(w, r)
	if !ok {
		return
	}
	hours := queryInt(r, "hours", 24)

	stats, err := s.Aggregator.Stats(r.Context(), serviceID, time.Duration(hours)*time.Hour)
	if err != nil {
		s.Logger.Error("stats_failed", zap.Int64("service_id", serviceID), zap.Error(err))
		http.Error(w, "stats error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, stats)
}

func (s *Server) handleListIncidents(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 30)
	limit := queryInt(r, "limit", 50)
	ongoingOnly := r.URL.Query().Get("ongoing_only") == "true"

	incidents, err := s.Incidents.ListIncidents(r.Context(), repo.ListIncidentsOptions{
		Since:       time.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour),
		OngoingOnly: ongoingOnly,
		Limit:       limit,
	})
	if err != nil {
		s.Logger.Error("list_incidents_failed", zap.Error(err))
		http.Error(w, "incidents error", http.StatusInternalServerError)
		return
	}
	if incidents == nil {
		incidents = []repo.IncidentWithService{}
	}
	writeJSON(w, incidents)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "bad service id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
