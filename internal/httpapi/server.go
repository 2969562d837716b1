package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/statuskeep/statusd/internal/repo"
	"github.com/statuskeep/statusd/internal/uptime"
)

// Server exposes engine-derived data as JSON.
type Server struct {
	Logger     *zap.Logger
	Services   repo.ServiceStore
	Outcomes   repo.OutcomeStore
	Incidents  repo.IncidentStore
	Aggregator *uptime.Aggregator

	AllowedOrigins []string
}

func NewServer(l *zap.Logger, store repo.Store, agg *uptime.Aggregator, origins []string) *Server {
	return &Server{
		Logger:         l,
		Services:       store,
		Outcomes:       store,
		Incidents:      store,
		Aggregator:     agg,
		AllowedOrigins: origins,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	corsOpts := cors.Options{
		AllowedOrigins: s.AllowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}
	if len(corsOpts.AllowedOrigins) == 0 {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "healthy"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/api/services", s.handleListServices)
	r.Get("/api/services/{id}/history", s.handleServiceHistory)
	r.Get("/api/services/{id}/stats", s.handleServiceStats)
	r.Get("/api/incidents", s.handleListIncidents)

	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
