// Package api serves cached analysis results over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"runstream/internal/analysis"
	"runstream/internal/service"
	"runstream/internal/store"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Server exposes the read API and reprocess triggers
type Server struct {
	query    *service.QueryService
	analyzer *service.AnalysisService
	logger   *slog.Logger

	// reprocess jobs run outside the request; Wait drains them on shutdown
	jobs sync.WaitGroup
}

// NewServer creates the API server
func NewServer(query *service.QueryService, analyzer *service.AnalysisService, logger *slog.Logger) *Server {
	return &Server{
		query:    query,
		analyzer: analyzer,
		logger:   logger.With("component", "api"),
	}
}

// Router returns the HTTP handler
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.handleHealth())
	r.Route("/activities", func(r chi.Router) {
		r.Get("/", s.handleListActivities())
		r.Get("/{id}/analysis", s.handleGetAnalysis())
		r.Post("/{id}/reprocess", s.handleReprocess())
	})
	return r
}

// Wait blocks until background reprocess jobs have finished
func (s *Server) Wait() {
	s.jobs.Wait()
}

type activityJSON struct {
	ID         int64           `json:"id"`
	Name       string          `json:"name"`
	StartDate  time.Time       `json:"start_date"`
	DistanceM  float64         `json:"distance_m"`
	MovingS    int             `json:"moving_time_s"`
	Status     analysis.Status `json:"status"`
	InProgress bool            `json:"in_progress"`
	Tier       analysis.Tier   `json:"tier,omitempty"`
	Confidence *float64        `json:"confidence,omitempty"`
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":           "ok",
			"analysis_version": analysis.Version,
		})
	}
}

func (s *Server) handleListActivities() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := queryInt(r, "limit", defaultListLimit)
		if err != nil || limit <= 0 || limit > maxListLimit {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		offset, err := queryInt(r, "offset", 0)
		if err != nil || offset < 0 {
			writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}

		list, err := s.query.GetActivitiesList(r.Context(), limit, offset)
		if err != nil {
			s.internalError(w, r, err)
			return
		}

		out := make([]activityJSON, len(list))
		for i, a := range list {
			out[i] = activityJSON{
				ID:         a.Activity.ID,
				Name:       a.Activity.Name,
				StartDate:  a.Activity.StartDate,
				DistanceM:  a.Activity.Distance,
				MovingS:    a.Activity.MovingTime,
				Status:     a.Status,
				InProgress: a.Status.InProgress(),
				Tier:       a.Tier,
				Confidence: a.Confidence,
			}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) handleGetAnalysis() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := activityID(w, r)
		if !ok {
			return
		}

		view, err := s.query.GetAnalysis(r.Context(), id)
		if errors.Is(err, store.ErrActivityNotFound) {
			writeError(w, http.StatusNotFound, "activity not found")
			return
		}
		if err != nil {
			s.internalError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

// handleReprocess schedules a recomputation and returns immediately
func (s *Server) handleReprocess() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := activityID(w, r)
		if !ok {
			return
		}
		if _, err := s.query.GetAnalysis(r.Context(), id); errors.Is(err, store.ErrActivityNotFound) {
			writeError(w, http.StatusNotFound, "activity not found")
			return
		} else if err != nil {
			s.internalError(w, r, err)
			return
		}

		ctx := context.WithoutCancel(r.Context())
		s.jobs.Add(1)
		go func() {
			defer s.jobs.Done()
			if _, err := s.analyzer.Reprocess(ctx, id); err != nil {
				s.logger.Error("Reprocess failed", "activity_id", id, "error", err)
			}
		}()

		writeJSON(w, http.StatusAccepted, map[string]any{
			"activity_id": id,
			"status":      analysis.StatusPending,
			"in_progress": true,
		})
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("Request served",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("Request failed", "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func activityID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid activity id")
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
