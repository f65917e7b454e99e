// Package api exposes the HTTP interface for the winners service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/onthisday/racewinners/internal/browser"
	"github.com/onthisday/racewinners/internal/config"
	"github.com/onthisday/racewinners/internal/crawl"
	"github.com/onthisday/racewinners/internal/metrics"
)

// Runner executes one crawl per request.
type Runner interface {
	Run(ctx context.Context, target crawl.TargetDate, year int) (crawl.Report, error)
}

// Server wires HTTP handlers to the crawl orchestrator.
type Server struct {
	router chi.Router
	runner Runner
	cfg    config.Config
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(runner Runner, cfg config.Config, logger *zap.Logger) *Server {
	s := &Server{
		runner: runner,
		cfg:    cfg,
		logger: logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metricsMiddleware)
	// Grace on top of the crawl budget so the handler's own timeout error
	// reaches the client instead of the blunt TimeoutHandler page.
	r.Use(timeoutMiddleware(cfg.RequestBudget() + 5*time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/winners", s.getWinners)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	// No persistent downstreams; readiness equals liveness.
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) getWinners(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	day, err := time.Parse("2006-01-02", q.Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid or missing date, expected YYYY-MM-DD")
		return
	}

	year := day.Year()
	if raw := q.Get("year"); raw != "" {
		year, err = strconv.Atoi(raw)
		if err != nil || year < 1800 || year > 2200 {
			writeError(w, http.StatusBadRequest, "invalid year")
			return
		}
	}

	debug := q.Get("debug") == "1" || q.Get("debug") == "true"

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestBudget())
	defer cancel()

	report, err := s.runner.Run(ctx, crawl.NewTargetDate(day), year)
	if err != nil {
		s.writeRunError(w, report, err, debug)
		return
	}

	if !debug {
		// The per-URL diagnostics dwarf the results; only debug callers get
		// them.
		report.Meta.RaceLinksByCat = nil
		report.Meta.VisitedRaceURLs = nil
		report.Meta.CalendarLog = nil
		report.Meta.RaceFetchLog = nil
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) writeRunError(w http.ResponseWriter, report crawl.Report, err error, debug bool) {
	switch {
	case errors.Is(err, browser.ErrNoAutomation):
		// Configuration failure, not an internal one; the operator hint and
		// capability flags are always safe to return.
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{
			Error: err.Error(),
			Flags: &report.Meta.Flags,
		})
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "crawl did not finish within the request budget")
	default:
		s.logger.Error("crawl failed", zap.Error(err))
		msg := "internal server error"
		if debug && !s.cfg.Production() {
			msg = err.Error()
		}
		writeError(w, http.StatusInternalServerError, msg)
	}
}

type errorResponse struct {
	Error string       `json:"error"`
	Flags *crawl.Flags `json:"flags,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
