package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/embedding"
	"github.com/hyperjump/kensaku/internal/keyword"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/storage"
	"github.com/hyperjump/kensaku/internal/vector"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidQuery),
		errors.Is(err, keyword.ErrInvalidTerm),
		errors.Is(err, embedding.ErrEmptyInput):
		return http.StatusBadRequest
	case errors.Is(err, vector.ErrNotReady),
		errors.Is(err, vector.ErrCacheMissing),
		errors.Is(err, keyword.ErrCacheMissing):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("search request",
		zap.String("query", query.Query),
		zap.Int("limit", query.Limit),
		zap.String("mode", string(query.Mode)))
	response, err := s.engine.Search(r.Context(), &query)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("search failed", zap.Error(err))
		}
		s.respondError(w, status, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleGetMovie(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "movie id must be an integer")
		return
	}
	movie, ok := s.engine.Movie(id)
	if !ok {
		s.respondError(w, http.StatusNotFound, "movie not found")
		return
	}
	s.respondJSON(w, http.StatusOK, movie)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"index": s.engine.Status(),
	}
	if len(s.diskPaths) > 0 {
		if n, err := storage.DiskUsageBytes(s.diskPaths...); err == nil {
			resp["disk_usage_bytes"] = n
		} else {
			s.logger.Warn("status: disk usage failed", zap.Error(err))
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	if s.rebuilder == nil {
		s.respondError(w, http.StatusNotImplemented, "rebuild not enabled")
		return
	}
	s.logger.Info("rebuild requested")
	if err := s.rebuilder.Rebuild(r.Context()); err != nil {
		s.logger.Error("rebuild failed", zap.Error(err))
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"status": "rebuilt", "index": s.engine.Status()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
