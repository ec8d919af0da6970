// Package api exposes the sync trigger boundary and minimal catalog read
// queries over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/snapetech/m3ucat/internal/database"
	"github.com/snapetech/m3ucat/internal/domain"
	"github.com/snapetech/m3ucat/internal/health"
	"github.com/snapetech/m3ucat/internal/safeurl"
	syncsvc "github.com/snapetech/m3ucat/internal/sync"
)

// Server handles the HTTP boundary. The sync trigger is fire-and-forget: the
// caller polls status instead of awaiting completion.
type Server struct {
	log      zerolog.Logger
	db       *database.DB
	sources  *database.SourceRepo
	channels *database.ChannelRepo
	series   *database.SeriesRepo
	syncs    *syncsvc.Service
}

// NewServer wires the API over the catalog store and sync service.
func NewServer(db *database.DB, syncs *syncsvc.Service, log zerolog.Logger) *Server {
	return &Server{
		log:      log.With().Str("module", "api").Logger(),
		db:       db,
		sources:  database.NewSourceRepo(db),
		channels: database.NewChannelRepo(db),
		series:   database.NewSeriesRepo(db),
		syncs:    syncs,
	}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/sources", func(r chi.Router) {
			r.Post("/", s.createSource)
			r.Get("/", s.listSources)
			r.Delete("/{id}", s.deleteSource)
			r.Post("/{id}/sync", s.startSync)
			r.Get("/{id}/sync", s.syncStatus)
			r.Get("/{id}/health", s.sourceHealth)
		})
		r.Route("/profiles/{profileID}", func(r chi.Router) {
			r.Get("/channels", s.listChannels)
			r.Get("/series", s.listSeries)
		})
	})

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

type createSourceRequest struct {
	URL       string `json:"url"`
	Name      string `json:"name"`
	ProfileID string `json:"profile_id"`
}

func (s *Server) createSource(w http.ResponseWriter, r *http.Request) {
	var req createSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !safeurl.IsHTTPOrHTTPS(req.URL) {
		s.respondError(w, http.StatusBadRequest, "url must be absolute http or https")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		s.respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	if strings.TrimSpace(req.ProfileID) == "" {
		s.respondError(w, http.StatusBadRequest, "profile_id is required")
		return
	}

	src := &domain.Source{
		URL:       req.URL,
		Name:      strings.TrimSpace(req.Name),
		ProfileID: strings.TrimSpace(req.ProfileID),
	}
	if err := s.sources.Insert(r.Context(), src); err != nil {
		s.log.Error().Err(err).Msg("create source failed")
		s.respondError(w, http.StatusInternalServerError, "could not create source")
		return
	}
	s.respondJSON(w, http.StatusCreated, src)
}

func (s *Server) listSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.sources.List(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("list sources failed")
		s.respondError(w, http.StatusInternalServerError, "could not list sources")
		return
	}
	if sources == nil {
		sources = []domain.Source{}
	}
	s.respondJSON(w, http.StatusOK, sources)
}

func (s *Server) deleteSource(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.sources.Delete(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "source not found")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Str("source_id", id).Msg("delete source failed")
		s.respondError(w, http.StatusInternalServerError, "could not delete source")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) startSync(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	jobID, err := s.syncs.StartSync(id)
	if errors.Is(err, syncsvc.ErrSourceNotFound) {
		s.respondError(w, http.StatusNotFound, "source not found")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Str("source_id", id).Msg("start sync failed")
		s.respondError(w, http.StatusInternalServerError, "could not start sync")
		return
	}
	s.respondJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

func (s *Server) syncStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	status, err := s.syncs.Status(r.Context(), id)
	if errors.Is(err, syncsvc.ErrSourceNotFound) {
		s.respondError(w, http.StatusNotFound, "source not found")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Str("source_id", id).Msg("sync status failed")
		s.respondError(w, http.StatusInternalServerError, "could not read sync status")
		return
	}
	s.respondJSON(w, http.StatusOK, status)
}

// sourceHealth probes the provider URL without running a sync.
func (s *Server) sourceHealth(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	src, err := s.sources.Get(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "source not found")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Str("source_id", id).Msg("source health lookup failed")
		s.respondError(w, http.StatusInternalServerError, "could not read source")
		return
	}
	if err := health.CheckProvider(r.Context(), src.URL); err != nil {
		s.respondJSON(w, http.StatusOK, map[string]string{"status": "unreachable", "error": err.Error()})
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listChannels(w http.ResponseWriter, r *http.Request) {
	profileID := chi.URLParam(r, "profileID")
	var contentType domain.ContentType
	switch t := r.URL.Query().Get("type"); t {
	case "":
	case string(domain.ContentLivestream), string(domain.ContentMovie):
		contentType = domain.ContentType(t)
	default:
		s.respondError(w, http.StatusBadRequest, "type must be livestream or movie")
		return
	}
	channels, err := s.channels.ListByProfile(r.Context(), profileID, contentType)
	if err != nil {
		s.log.Error().Err(err).Str("profile_id", profileID).Msg("list channels failed")
		s.respondError(w, http.StatusInternalServerError, "could not list channels")
		return
	}
	if channels == nil {
		channels = []domain.Channel{}
	}
	s.respondJSON(w, http.StatusOK, channels)
}

func (s *Server) listSeries(w http.ResponseWriter, r *http.Request) {
	profileID := chi.URLParam(r, "profileID")
	series, err := s.series.ListByProfile(r.Context(), profileID)
	if err != nil {
		s.log.Error().Err(err).Str("profile_id", profileID).Msg("list series failed")
		s.respondError(w, http.StatusInternalServerError, "could not list series")
		return
	}
	if series == nil {
		series = []domain.Series{}
	}
	s.respondJSON(w, http.StatusOK, series)
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(); err != nil {
		s.respondError(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("encode response failed")
	}
}

func (s *Server) respondError(w http.ResponseWriter, code int, msg string) {
	s.respondJSON(w, code, map[string]string{"error": msg})
}
