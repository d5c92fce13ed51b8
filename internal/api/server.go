package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"race-strategy-engine/internal/app"
	"race-strategy-engine/internal/db"
	"race-strategy-engine/internal/engine"
	"race-strategy-engine/internal/models"
	"race-strategy-engine/internal/parser"
	"race-strategy-engine/pkg/logger"
	"race-strategy-engine/pkg/metrics"

	"github.com/gorilla/mux"
)

// maxBodyBytes bounds request bodies; telemetry uploads are the largest.
const maxBodyBytes = 64 << 20

// Server represents the API server
type Server struct {
	svc     *app.Service
	router  *mux.Router
	log     logger.Logger
	metrics *metrics.Manager
}

// NewServer creates a new API server
func NewServer(svc *app.Service, log logger.Logger, m *metrics.Manager) *Server {
	if log == nil {
		log = logger.Nop()
	}
	if m == nil {
		m = metrics.Default()
	}
	s := &Server{
		svc:     svc,
		router:  mux.NewRouter(),
		log:     log,
		metrics: m,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")

	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	v1.Use(jsonMiddleware)

	// Analysis endpoints
	v1.HandleFunc("/analyze", s.handleAnalyze).Methods("POST")
	v1.HandleFunc("/evaluate", s.handleEvaluate).Methods("POST")
	v1.HandleFunc("/compounds", s.handleCompounds).Methods("GET")

	// Run endpoints
	v1.HandleFunc("/runs", s.handleListRuns).Methods("GET")
	v1.HandleFunc("/runs/{id}", s.handleGetRun).Methods("GET")
	v1.HandleFunc("/runs/{id}/laps", s.handleRunLaps).Methods("GET")
	v1.HandleFunc("/runs/{id}/strategies", s.handleRunStrategies).Methods("GET")

	v1.HandleFunc("/stats", s.handleStats).Methods("GET")

	s.router.Use(s.loggingMiddleware)
}

// Router returns the configured router
func (s *Server) Router() *mux.Router {
	return s.router
}

// statusRecorder captures the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tmpl, err := cur.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		s.metrics.RecordHTTPRequest(route, r.Method, strconv.Itoa(rec.status), float64(elapsed.Microseconds())/1000)
		s.log.Debug(r.Context(), "request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", rec.status),
			logger.Any("elapsed", elapsed))
	})
}

func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// Response helpers
type apiResponse struct {
	Success  bool             `json:"success"`
	Data     interface{}      `json:"data,omitempty"`
	Error    string           `json:"error,omitempty"`
	Warnings []models.Warning `json:"warnings,omitempty"`
	Meta     *meta            `json:"meta,omitempty"`
}

type meta struct {
	Total   int   `json:"total,omitempty"`
	Limit   int   `json:"limit,omitempty"`
	Offset  int   `json:"offset,omitempty"`
	QueryMs int64 `json:"query_ms,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiResponse{Success: true, Data: data})
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiResponse{Success: false, Error: message})
}

func respondWithWarnings(w http.ResponseWriter, status int, data interface{}, warnings []models.Warning) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiResponse{Success: true, Data: data, Warnings: warnings})
}

func respondWithMeta(w http.ResponseWriter, data interface{}, m *meta) {
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(apiResponse{Success: true, Data: data, Meta: m})
}

// statusFor maps domain errors onto HTTP statuses
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrConfiguration), errors.Is(err, parser.ErrMalformedInput):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrNoLaps):
		return http.StatusUnprocessableEntity
	case errors.Is(err, db.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, app.ErrNoStore):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Handlers
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

type analyzeRequest struct {
	Name       string            `json:"name"`
	Samples    json.RawMessage   `json:"samples"`
	Strategies []models.Strategy `json:"strategies,omitempty"`
	Persist    *bool             `json:"persist,omitempty"`
}

// handleAnalyze accepts either a JSON envelope or a raw processed CSV body
// (Content-Type text/csv, run name and persist flag in the query string).
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	req := app.AnalyzeRequest{
		Name:    r.URL.Query().Get("name"),
		Persist: r.URL.Query().Get("persist") != "false",
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "text/csv") {
		samples, err := parser.NewParser("csv", s.log).Parse(ctx, r.Body)
		if err != nil {
			respondError(w, statusFor(err), err.Error())
			return
		}
		req.Samples = samples
	} else {
		var body analyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			respondError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
		if len(body.Samples) == 0 {
			respondError(w, http.StatusBadRequest, "samples are required")
			return
		}
		samples, err := parser.NewParser("json", s.log).Parse(ctx, bytes.NewReader(body.Samples))
		if err != nil {
			respondError(w, statusFor(err), err.Error())
			return
		}
		req.Samples = samples
		req.Strategies = body.Strategies
		if body.Name != "" {
			req.Name = body.Name
		}
		if body.Persist != nil {
			req.Persist = *body.Persist
		}
	}

	if req.Name == "" {
		req.Name = "api-" + time.Now().UTC().Format("20060102T150405")
	}

	run, err := s.svc.Analyze(ctx, req)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondWithWarnings(w, http.StatusCreated, run, run.Report.Warnings)
}

type evaluateRequest struct {
	Model      models.DegradationModel `json:"model"`
	Strategies []models.Strategy       `json:"strategies"`
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.Strategies) == 0 {
		req.Strategies = s.svc.Engine().Candidates()
	}

	results, warnings, err := s.svc.Evaluate(r.Context(), req.Model, req.Strategies)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondWithWarnings(w, http.StatusOK, results, warnings)
}

type compoundEntry struct {
	Name string `json:"name"`
	models.CompoundProfile
}

func (s *Server) handleCompounds(w http.ResponseWriter, r *http.Request) {
	compounds := s.svc.Engine().Options().Compounds
	out := make([]compoundEntry, 0, len(compounds))
	for name, c := range compounds {
		out = append(out, compoundEntry{Name: name, CompoundProfile: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	limit, offset := 50, 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		offset, _ = strconv.Atoi(v)
	}

	runs, err := s.svc.Runs(limit, offset)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	respondWithMeta(w, runs, &meta{
		Total:   len(runs),
		Limit:   limit,
		Offset:  offset,
		QueryMs: time.Since(start).Milliseconds(),
	})
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) (*models.Run, bool) {
	run, err := s.svc.Run(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return nil, false
	}
	return run, true
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if run, ok := s.getRun(w, r); ok {
		respondJSON(w, http.StatusOK, run)
	}
}

func (s *Server) handleRunLaps(w http.ResponseWriter, r *http.Request) {
	if run, ok := s.getRun(w, r); ok {
		respondJSON(w, http.StatusOK, run.Report.Metrics)
	}
}

func (s *Server) handleRunStrategies(w http.ResponseWriter, r *http.Request) {
	if run, ok := s.getRun(w, r); ok {
		respondJSON(w, http.StatusOK, run.Report.Results)
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Stats()
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
