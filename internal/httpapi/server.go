// Package httpapi serves analyses over HTTP: submit inputs, fetch stored
// results and reports, health and metrics.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/joelkehle/basin-analysis/internal/archive"
	"github.com/joelkehle/basin-analysis/internal/basinanalysis"
	"github.com/joelkehle/basin-analysis/internal/telemetry"
)

// maxBodyBytes bounds a submitted analysis.
const maxBodyBytes = 1 << 20

// Analyzer runs one analysis. *basinanalysis.Pipeline satisfies it.
type Analyzer interface {
	Run(ctx context.Context, in basinanalysis.PipelineInputs) (basinanalysis.PipelineResult, error)
}

// Archive stores finished analyses. *archive.Store satisfies it.
type Archive interface {
	Save(ctx context.Context, res basinanalysis.PipelineResult) error
	Get(ctx context.Context, id string) (basinanalysis.PipelineResult, error)
	List(ctx context.Context, f archive.Filter) ([]archive.Summary, error)
	Fallback(ctx context.Context, id string) (*basinanalysis.Fallback, error)
	Delete(ctx context.Context, id string) error
}

type Options struct {
	Analyzer Analyzer
	Archive  Archive
	Metrics  *telemetry.Metrics
	Logger   *zap.Logger

	// RunTimeout bounds one synchronous analysis; zero means no bound beyond the request.
	RunTimeout time.Duration

	// MaxConcurrent bounds analyses in flight; further submissions get 503.
	MaxConcurrent int
}

type Server struct {
	analyzer Analyzer
	archive  Archive
	metrics  *telemetry.Metrics
	logger   *zap.Logger
	timeout  time.Duration
	slots    chan struct{}
	started  time.Time
}

func NewServer(opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = basinanalysis.DefaultBatchConcurrency
	}
	s := &Server{
		analyzer: opts.Analyzer,
		archive:  opts.Archive,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		timeout:  opts.RunTimeout,
		slots:    make(chan struct{}, opts.MaxConcurrent),
		started:  time.Now(),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/analyses", s.handleAnalyses)
	mux.HandleFunc("/v1/analyses/", s.handleAnalysis)
	mux.HandleFunc("/v1/health", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
	return s.instrument(mux)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	e := asError(err)
	writeJSON(w, e.Status, map[string]any{"ok": false, "error": e})
}

func methodOnly(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func parseInt(value string, def int) int {
	if strings.TrimSpace(value) == "" {
		return def
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return v
}

func (s *Server) handleAnalyses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.submit(w, r)
	case http.MethodGet:
		s.list(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// submit runs an analysis synchronously and archives it. A blocked analysis
// is still a 201: blocking is a result, not a request failure.
func (s *Server) submit(w http.ResponseWriter, r *http.Request) {
	var in basinanalysis.PipelineInputs
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		writeError(w, validationError(fmt.Errorf("invalid json: %w", err)))
		return
	}
	if err := basinanalysis.ValidateInputs(in); err != nil {
		writeError(w, validationError(err))
		return
	}
	if from := strings.TrimSpace(r.URL.Query().Get("fallback_from")); from != "" {
		if s.archive == nil {
			writeError(w, newError(CodeValidation, "fallback_from needs an archive", false))
			return
		}
		fb, err := s.archive.Fallback(r.Context(), from)
		if err != nil {
			writeError(w, err)
			return
		}
		in.Fallback = fb
	}

	select {
	case s.slots <- struct{}{}:
		defer func() { <-s.slots }()
	default:
		writeError(w, newError(CodeUnavailable, "too many analyses in flight", true))
		return
	}

	ctx := r.Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	res, err := s.analyzer.Run(ctx, in)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			writeError(w, newError(CodeTimeout, err.Error(), true))
			return
		}
		if errors.Is(err, context.Canceled) {
			writeError(w, newError(CodeUnavailable, err.Error(), true))
			return
		}
		writeError(w, validationError(err))
		return
	}
	if s.metrics != nil {
		s.metrics.ObserveAnalysis(string(res.Status))
	}
	if s.archive != nil {
		if err := s.archive.Save(r.Context(), res); err != nil {
			s.logger.Error("archive analysis", zap.String("analysis_id", res.ID), zap.Error(err))
			writeError(w, err)
			return
		}
	}
	w.Header().Set("Location", "/v1/analyses/"+res.ID)
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeError(w, newError(CodeUnavailable, "no archive configured", false))
		return
	}
	q := r.URL.Query()
	out, err := s.archive.List(r.Context(), archive.Filter{
		Basin:  q.Get("basin"),
		Status: basinanalysis.PipelineStatus(strings.ToUpper(q.Get("status"))),
		Limit:  parseInt(q.Get("limit"), 50),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"analyses": out})
}

// handleAnalysis serves /v1/analyses/{id} (GET, DELETE) and /v1/analyses/{id}/report.
func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodDelete {
		w.Header().Set("Allow", "GET, DELETE")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.archive == nil {
		writeError(w, newError(CodeUnavailable, "no archive configured", false))
		return
	}
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/analyses/"), "/")
	parts := strings.Split(rest, "/")
	if rest == "" || len(parts) > 2 || (len(parts) == 2 && parts[1] != "report") {
		writeError(w, newError(CodeNotFound, "no such resource: "+r.URL.Path, false))
		return
	}
	if r.Method == http.MethodDelete {
		if len(parts) != 1 {
			w.Header().Set("Allow", "GET")
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if err := s.archive.Delete(r.Context(), parts[0]); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}
	res, err := s.archive.Get(r.Context(), parts[0])
	if err != nil {
		writeError(w, err)
		return
	}
	if len(parts) == 1 {
		writeJSON(w, http.StatusOK, res)
		return
	}

	switch format := r.URL.Query().Get("format"); format {
	case "", "markdown", "md":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		_, _ = w.Write([]byte(basinanalysis.BuildMarkdown(res)))
	case "html":
		page, err := basinanalysis.RenderHTML(res)
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	default:
		writeError(w, newError(CodeValidation, fmt.Sprintf("unknown report format %q", format), false))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":             true,
		"archive":        s.archive != nil,
		"in_flight":      len(s.slots),
		"uptime_seconds": int(time.Since(s.started).Seconds()),
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		route := routeOf(r.URL.Path)
		if s.metrics != nil {
			s.metrics.ObserveRequest(route, rec.status)
		}
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

// routeOf collapses analysis IDs so metric labels stay bounded.
func routeOf(path string) string {
	switch {
	case strings.HasSuffix(path, "/report") && strings.HasPrefix(path, "/v1/analyses/"):
		return "/v1/analyses/{id}/report"
	case strings.HasPrefix(path, "/v1/analyses/"):
		return "/v1/analyses/{id}"
	case path == "/v1/analyses", path == "/v1/health", path == "/metrics":
		return path
	default:
		return "other"
	}
}
