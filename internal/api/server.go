package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MikeSquared-Agency/nuance/internal/breaker"
	"github.com/MikeSquared-Agency/nuance/internal/breakdown"
	"github.com/MikeSquared-Agency/nuance/internal/intent"
	"github.com/MikeSquared-Agency/nuance/internal/limits"
	"github.com/MikeSquared-Agency/nuance/internal/router"
)

// Pipeline routes one message through classification and the matching
// handler.
type Pipeline interface {
	Route(ctx context.Context, text, userID, taskID, taskTitle string) (router.Response, error)
	RouteWithIntent(ctx context.Context, text string, in intent.Intent, userID, taskID, taskTitle string) (router.Response, error)
	RouteClassified(ctx context.Context, text, userID, taskID, taskTitle string, result intent.Result) (router.Response, error)
	StreamCoaching(ctx context.Context, text, userID, taskID, taskTitle string, onDelta func(string)) string
}

// Classifier decides which handler a message belongs to. The stream endpoint
// classifies before dispatching so it knows whether to stream chunks.
type Classifier interface {
	Classify(ctx context.Context, text string) intent.Result
}

// Breakdowner splits a task into small concrete steps.
type Breakdowner interface {
	Breakdown(ctx context.Context, taskTitle string) (breakdown.Result, error)
}

// counters tracks processed work for the status endpoint.
type counters struct {
	total      atomic.Int64
	captures   atomic.Int64
	coaching   atomic.Int64
	commands   atomic.Int64
	breakdowns atomic.Int64
	failures   atomic.Int64
}

func (c *counters) observe(responseType string) {
	c.total.Add(1)
	switch responseType {
	case "capture":
		c.captures.Add(1)
	case "coaching":
		c.coaching.Add(1)
	case "command":
		c.commands.Add(1)
	}
}

// Server is the HTTP surface for the routing pipeline.
type Server struct {
	router      *chi.Mux
	port        int
	pipeline    Pipeline
	classifier  Classifier
	breakdowner Breakdowner
	limiter     *limits.Limiter
	recorder    *Recorder
	circuit     *breaker.Breaker
	logger      *slog.Logger
	started     time.Time
	stats       counters
}

func NewServer(port int, pipeline Pipeline, classifier Classifier, breakdowner Breakdowner, limiter *limits.Limiter, recorder *Recorder, circuit *breaker.Breaker, logger *slog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	s := &Server{
		router:      r,
		port:        port,
		pipeline:    pipeline,
		classifier:  classifier,
		breakdowner: breakdowner,
		limiter:     limiter,
		recorder:    recorder,
		circuit:     circuit,
		logger:      logger,
		started:     time.Now(),
	}

	r.Get("/health", s.health)
	r.Get("/status", s.status)
	r.Post("/process", s.process)
	r.Post("/process/stream", s.processStream)
	r.Post("/breakdown", s.breakdown)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		s.writeError(w, req, http.StatusNotFound, codeNotFound, "Resource not found", nil)
	})

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	rpm, rpd := s.limiter.Limits()

	body := map[string]any{
		"service":        "nuance",
		"status":         "ok",
		"uptime_seconds": int(time.Since(s.started).Seconds()),
		"processed": map[string]int64{
			"total":      s.stats.total.Load(),
			"captures":   s.stats.captures.Load(),
			"coaching":   s.stats.coaching.Load(),
			"commands":   s.stats.commands.Load(),
			"breakdowns": s.stats.breakdowns.Load(),
			"failures":   s.stats.failures.Load(),
		},
		"rate_limits": map[string]int{
			"requests_per_minute": rpm,
			"requests_per_day":    rpd,
		},
	}
	if s.circuit != nil {
		body["breaker"] = s.circuit.Status()
	}
	if userID := r.URL.Query().Get("user_id"); userID != "" {
		body["user_rate_status"] = s.limiter.Status(userID)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(body)
}
