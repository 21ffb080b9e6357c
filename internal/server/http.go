// Package server exposes the read API, health probes, and the Prometheus
// scrape endpoint over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/baofinance/harbor-app-sub003/internal/observability"
	"github.com/baofinance/harbor-app-sub003/internal/query"
)

// Server is the HTTP query surface. All handlers read from Postgres via
// the query service; nothing here touches the engine.
type Server struct {
	svc     *query.Service
	health  *observability.HealthChecker
	metrics *observability.Metrics
	log     zerolog.Logger
}

func New(svc *query.Service, health *observability.HealthChecker, metrics *observability.Metrics) *Server {
	return &Server{
		svc:     svc,
		health:  health,
		metrics: metrics,
		log:     observability.NewLogger("server"),
	}
}

// Router builds the chi routing tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", s.health.LivenessHandler)
	r.Get("/readyz", s.health.ReadinessHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/users/{user}/marks", s.instrument("user_marks", s.handleUserMarks))
		r.Get("/users/{user}/campaigns", s.instrument("user_campaigns", s.handleUserCampaigns))
		r.Get("/users/{user}/positions", s.instrument("user_positions", s.handleUserPositions))
		r.Get("/users/{user}/positions/{token}/lots", s.instrument("position_lots", s.handlePositionLots))
		r.Get("/campaigns/{campaign}/status", s.instrument("campaign_status", s.handleCampaignStatus))
		r.Get("/windows", s.instrument("windows", s.handleWindows))
	})

	return r
}

func (s *Server) instrument(endpoint string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		h(ww, r)
		if s.metrics != nil {
			status := "ok"
			if ww.Status() >= 400 {
				status = "error"
			}
			s.metrics.QueryRequests.WithLabelValues(endpoint, status).Inc()
			s.metrics.QueryDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		}
	}
}

func (s *Server) handleUserMarks(w http.ResponseWriter, r *http.Request) {
	user := strings.ToLower(chi.URLParam(r, "user"))
	out, err := s.svc.UserMarks(r.Context(), user)
	s.respond(w, "user_marks", out, err)
}

func (s *Server) handleUserCampaigns(w http.ResponseWriter, r *http.Request) {
	user := strings.ToLower(chi.URLParam(r, "user"))
	out, err := s.svc.UserCampaigns(r.Context(), user)
	s.respond(w, "user_campaigns", out, err)
}

func (s *Server) handleUserPositions(w http.ResponseWriter, r *http.Request) {
	user := strings.ToLower(chi.URLParam(r, "user"))
	out, err := s.svc.UserSailPositions(r.Context(), user)
	s.respond(w, "user_positions", out, err)
}

func (s *Server) handlePositionLots(w http.ResponseWriter, r *http.Request) {
	user := strings.ToLower(chi.URLParam(r, "user"))
	token := strings.ToLower(chi.URLParam(r, "token"))
	out, err := s.svc.PositionLots(r.Context(), token, user)
	s.respond(w, "position_lots", out, err)
}

func (s *Server) handleCampaignStatus(w http.ResponseWriter, r *http.Request) {
	campaign := strings.ToLower(chi.URLParam(r, "campaign"))
	out, err := s.svc.CampaignStatus(r.Context(), campaign)
	s.respond(w, "campaign_status", out, err)
}

func (s *Server) handleWindows(w http.ResponseWriter, r *http.Request) {
	out, err := s.svc.Windows(r.Context())
	s.respond(w, "windows", out, err)
}

func (s *Server) respond(w http.ResponseWriter, endpoint string, payload interface{}, err error) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case errors.Is(err, query.ErrNotFound):
		if s.metrics != nil {
			s.metrics.QueryErrors.WithLabelValues(endpoint, "not_found").Inc()
		}
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "not found"})
	case err != nil:
		if s.metrics != nil {
			s.metrics.QueryErrors.WithLabelValues(endpoint, "internal").Inc()
		}
		s.log.Error().Err(err).Str("endpoint", endpoint).Msg("query failed")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "internal error"})
	default:
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(payload)
	}
}
