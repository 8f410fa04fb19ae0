package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/rankd/internal/models"
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("search request", zap.String("query", req.Query), zap.Int("limit", req.Limit))
	response, err := s.engine.Search(r.Context(), &req)
	if err != nil {
		s.respondFailure(w, "search failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

type trendingResponse struct {
	Kind      models.Kind            `json:"kind"`
	TimeRange models.TimeRange       `json:"time_range"`
	Items     []*models.TrendingItem `json:"items"`
}

func (s *Server) handleTrending(w http.ResponseWriter, r *http.Request) {
	kind, err := models.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		s.respondFailure(w, "trending failed", err)
		return
	}
	q := r.URL.Query()
	timeRange, err := models.ParseTimeRange(q.Get("range"))
	if err != nil {
		s.respondFailure(w, "trending failed", err)
		return
	}
	limit := 0
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			s.respondError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
	}
	var exclude []string
	for _, id := range strings.Split(q.Get("exclude"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			exclude = append(exclude, id)
		}
	}

	items, err := s.trending.ComputeTrending(r.Context(), kind, limit, timeRange, exclude)
	if err != nil {
		s.respondFailure(w, "trending failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, trendingResponse{Kind: kind, TimeRange: timeRange, Items: items})
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	kind, err := models.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		s.respondFailure(w, "insights failed", err)
		return
	}
	timeRange, err := models.ParseTimeRange(r.URL.Query().Get("range"))
	if err != nil {
		s.respondFailure(w, "insights failed", err)
		return
	}
	insights, err := s.trending.Insights(r.Context(), kind, chi.URLParam(r, "id"), timeRange)
	if err != nil {
		s.respondFailure(w, "insights failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, insights)
}

func (s *Server) handleRecompute(w http.ResponseWriter, r *http.Request) {
	if s.job == nil {
		s.respondError(w, http.StatusNotImplemented, "recompute not enabled")
		return
	}
	res, err := s.job.RecomputeNow(r.Context())
	if err != nil {
		s.respondFailure(w, "recompute failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

type invalidateRequest struct {
	Pattern string `json:"pattern"`
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		s.respondError(w, http.StatusNotImplemented, "cache not enabled")
		return
	}
	var req invalidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Pattern = strings.TrimSpace(req.Pattern)
	if req.Pattern == "" {
		s.respondError(w, http.StatusBadRequest, "pattern is required")
		return
	}
	s.logger.Debug("cache invalidate request", zap.String("pattern", req.Pattern))

	// A changed document also invalidates its cached embedding.
	if parts := strings.Split(req.Pattern, ":"); len(parts) == 3 && parts[1] == "detail" && models.ValidID(parts[2]) {
		s.engine.Forget(parts[2])
	}
	res, err := s.cache.Invalidate(r.Context(), req.Pattern)
	if err != nil {
		s.logger.Warn("cache invalidation incomplete", zap.String("pattern", req.Pattern), zap.Error(err))
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.logger.Error("health: store stats failed", zap.Error(err))
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	resp := map[string]interface{}{
		"status":          "ok",
		"documents":       stats.Documents,
		"events":          stats.Events,
		"trending_scores": stats.TrendingScores,
	}
	if stats.SizeBytes > 0 {
		resp["disk_usage_bytes"] = stats.SizeBytes
	}
	if s.job != nil {
		resp["recompute_running"] = s.job.IsRunning()
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// statusFor maps error sentinels to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (s *Server) respondFailure(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error(msg, zap.Error(err))
	} else {
		s.logger.Debug(msg, zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
