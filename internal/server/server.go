// Package server exposes the analysis service over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"meeting-insights-go/internal/logger"
	"meeting-insights-go/internal/processor"
)

const maxBodyBytes = 4 << 20

// Analyzer is the service behind the handlers.
type Analyzer interface {
	Analyze(ctx context.Context, req processor.Request) (processor.Result, error)
	Reanalyze(ctx context.Context, subject, analysisID string, req processor.Request) (processor.Result, error)
	ParseDeadline(phrase string) *time.Time
}

type Server struct {
	svc Analyzer
	log *logger.Logger
	mux *http.ServeMux
}

func New(svc Analyzer, log *logger.Logger) *Server {
	s := &Server{svc: svc, log: log, mux: http.NewServeMux()}
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("POST /analyze", s.handleAnalyze)
	s.mux.HandleFunc("POST /analyses/{id}/reanalyze", s.handleReanalyze)
	s.mux.HandleFunc("POST /deadlines/parse", s.handleParseDeadline)
	s.mux.Handle("GET /metrics", promhttp.Handler())
	return s
}

func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := logger.RequestID(r)
		r.Header.Set("X-Request-ID", id)
		w.Header().Set("X-Request-ID", id)
		s.mux.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	fmt.Fprint(w, "ok")
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "analyze")

	var req processor.Request
	if !s.decode(w, r, reqLog, &req) {
		return
	}

	start := time.Now()
	res, err := s.svc.Analyze(r.Context(), req)
	reqLog = reqLog.WithField("duration_ms", time.Since(start).Milliseconds())
	if err != nil {
		s.writeError(w, reqLog, err)
		return
	}
	reqLog.WithField("analysis_id", res.AnalysisID).Info("analysis served")
	writeJSON(w, reqLog, http.StatusOK, res)
}

// handleReanalyze re-runs an analysis. The run guard is keyed by the caller
// (X-User-ID) when known, otherwise by the analysis id.
func (s *Server) handleReanalyze(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	reqLog := s.log.WithRequest(r).WithFields(logrus.Fields{"handler": "reanalyze", "analysis_id": id})

	var req processor.Request
	if !s.decode(w, r, reqLog, &req) {
		return
	}

	subject := "analysis:" + id
	if user := strings.TrimSpace(r.Header.Get("X-User-ID")); user != "" {
		subject = "user:" + user
	}

	res, err := s.svc.Reanalyze(r.Context(), subject, id, req)
	if err != nil {
		s.writeError(w, reqLog.WithField("subject", subject), err)
		return
	}
	reqLog.Info("re-analysis served")
	writeJSON(w, reqLog, http.StatusOK, res)
}

type parseDeadlineRequest struct {
	Phrase string `json:"phrase"`
}

type parseDeadlineResponse struct {
	Phrase   string     `json:"phrase"`
	Deadline *time.Time `json:"deadline"`
}

func (s *Server) handleParseDeadline(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "parse_deadline")

	var req parseDeadlineRequest
	if !s.decode(w, r, reqLog, &req) {
		return
	}
	if strings.TrimSpace(req.Phrase) == "" {
		writeJSON(w, reqLog, http.StatusBadRequest, errorBody{Error: "phrase is required", Code: "invalid_input"})
		return
	}
	writeJSON(w, reqLog, http.StatusOK, parseDeadlineResponse{Phrase: req.Phrase, Deadline: s.svc.ParseDeadline(req.Phrase)})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, log *logrus.Entry, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		log.WithField("error", err.Error()).Warn("bad request body")
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, log, status, errorBody{Error: "request body must be a JSON object: " + err.Error(), Code: "invalid_input"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, log *logrus.Entry, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.WithField("error", err.Error()).Error("failed to write response")
	}
}
