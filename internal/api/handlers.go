package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/visit-planner/internal/model"
)

const maxBodyBytes = 1 << 20

type decisionsRequest struct {
	Decisions []model.Decision `json:"decisions"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health.Ping(r.Context()); err != nil {
			zap.L().Warn("api: health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	rep, week, req, ok := parseRequest(w, r)
	if !ok {
		return
	}
	res, err := s.planner.Analyze(r.Context(), rep, week, req.Decisions...)
	if err != nil {
		zap.L().Error("api: analyze failed", zap.String("rep_id", rep), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "analyze failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	rep, week, req, ok := parseRequest(w, r)
	if !ok {
		return
	}
	res, err := s.planner.Execute(r.Context(), rep, week, req.Decisions)
	if err != nil {
		zap.L().Error("api: execute failed", zap.String("rep_id", rep), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "execute failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// parseRequest reads the path parameters and the optional decisions body.
// It writes the error response itself and reports whether to continue.
func parseRequest(w http.ResponseWriter, r *http.Request) (string, time.Time, decisionsRequest, bool) {
	var req decisionsRequest

	rep := strings.TrimSpace(chi.URLParam(r, "rep"))
	if rep == "" {
		writeError(w, http.StatusBadRequest, "rep is required")
		return "", time.Time{}, req, false
	}
	week, err := time.Parse(model.DateLayout, chi.URLParam(r, "week"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "week must be a YYYY-MM-DD date")
		return "", time.Time{}, req, false
	}

	if err := decodeDecisions(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", time.Time{}, req, false
	}
	return rep, week, req, true
}

func decodeDecisions(body io.Reader, req *decisionsRequest) error {
	dec := json.NewDecoder(io.LimitReader(body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(req); err != nil && !errors.Is(err, io.EOF) {
		return eris.New("invalid request body")
	}
	for i, d := range req.Decisions {
		if err := d.Validate(); err != nil {
			return eris.Errorf("decision %d %v", i+1, err)
		}
	}
	return nil
}
