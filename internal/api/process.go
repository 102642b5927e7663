package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/MikeSquared-Agency/nuance/internal/anthropic"
	"github.com/MikeSquared-Agency/nuance/internal/intent"
	"github.com/MikeSquared-Agency/nuance/internal/router"
)

type processRequest struct {
	Text        string `json:"text"`
	UserID      string `json:"user_id"`
	TaskID      string `json:"task_id"`
	TaskTitle   string `json:"task_title"`
	ForceIntent string `json:"force_intent"`
}

type breakdownRequest struct {
	TaskTitle string `json:"task_title"`
	UserID    string `json:"user_id"`
}

// process handles POST /process: one message in, one routed response out.
func (s *Server) process(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, codeValidation, "invalid JSON body", nil)
		return
	}
	if req.UserID == "" {
		s.writeError(w, r, http.StatusBadRequest, codeValidation, "user_id is required", nil)
		return
	}

	forced, hasForced := intent.ParseIntent(req.ForceIntent)
	if req.ForceIntent != "" && !hasForced {
		s.writeError(w, r, http.StatusBadRequest, codeValidation,
			fmt.Sprintf("force_intent %q is not a known intent", req.ForceIntent), nil)
		return
	}

	if !s.allow(w, r, req.UserID) {
		return
	}

	var (
		resp router.Response
		err  error
	)
	if hasForced {
		resp, err = s.pipeline.RouteWithIntent(r.Context(), req.Text, forced, req.UserID, req.TaskID, req.TaskTitle)
	} else {
		resp, err = s.pipeline.Route(r.Context(), req.Text, req.UserID, req.TaskID, req.TaskTitle)
	}
	if err != nil {
		s.stats.failures.Add(1)
		s.routeError(w, r, err)
		return
	}

	s.stats.observe(resp.ResponseType)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)

	// After the client has its answer: audit log, persistence, announcements.
	// A canceled request context must not abort these.
	s.recorder.Record(context.Background(), middleware.GetReqID(r.Context()),
		req.UserID, req.Text, resp, time.Since(start))
}

// processStream handles POST /process/stream. Coaching replies stream as
// they are generated; every other intent resolves fully and arrives as a
// single result event.
func (s *Server) processStream(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, codeValidation, "invalid JSON body", nil)
		return
	}
	if req.UserID == "" {
		s.writeError(w, r, http.StatusBadRequest, codeValidation, "user_id is required", nil)
		return
	}

	forced, hasForced := intent.ParseIntent(req.ForceIntent)
	if req.ForceIntent != "" && !hasForced {
		s.writeError(w, r, http.StatusBadRequest, codeValidation,
			fmt.Sprintf("force_intent %q is not a known intent", req.ForceIntent), nil)
		return
	}

	if !s.allow(w, r, req.UserID) {
		return
	}

	// Classification happens before the stream opens so the dispatch branch
	// is known up front.
	trimmed := strings.TrimSpace(req.Text)
	var classified intent.Result
	switch {
	case hasForced:
		classified = intent.Result{Intent: forced, Confidence: 1.0, Reasoning: "Pre-classified intent"}
	case trimmed == "":
		classified = intent.Result{Intent: intent.Capture, Confidence: 0}
	default:
		classified = s.classifier.Classify(r.Context(), req.Text)
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, r, http.StatusInternalServerError, codeInternal, "streaming unsupported", nil)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if classified.Intent == intent.Coaching {
		reply := s.pipeline.StreamCoaching(r.Context(), req.Text, req.UserID, req.TaskID, req.TaskTitle, func(chunk string) {
			s.writeEvent(w, flusher, "message", map[string]string{"content": chunk})
		})
		s.writeEvent(w, flusher, "done", map[string]string{})

		s.stats.observe("coaching")
		s.recorder.Record(context.Background(), middleware.GetReqID(r.Context()),
			req.UserID, req.Text, router.Response{
				Intent:           intent.Coaching,
				IntentConfidence: classified.Confidence,
				ResponseType:     "coaching",
				CoachingResponse: reply,
			}, time.Since(start))
		return
	}

	var (
		resp router.Response
		err  error
	)
	if trimmed == "" {
		resp, err = s.pipeline.Route(r.Context(), req.Text, req.UserID, req.TaskID, req.TaskTitle)
	} else {
		resp, err = s.pipeline.RouteClassified(r.Context(), req.Text, req.UserID, req.TaskID, req.TaskTitle, classified)
	}
	if err != nil {
		s.stats.failures.Add(1)
		s.logger.Error("stream processing failed",
			"error", err,
			"request_id", middleware.GetReqID(r.Context()),
		)
		s.writeEvent(w, flusher, "error", map[string]string{"error": err.Error()})
		return
	}

	s.writeEvent(w, flusher, "result", resp)
	s.writeEvent(w, flusher, "done", map[string]string{})

	s.stats.observe(resp.ResponseType)
	s.recorder.Record(context.Background(), middleware.GetReqID(r.Context()),
		req.UserID, req.Text, resp, time.Since(start))
}

// breakdown handles POST /breakdown: split one task into tiny steps.
func (s *Server) breakdown(w http.ResponseWriter, r *http.Request) {
	var req breakdownRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, codeValidation, "invalid JSON body", nil)
		return
	}
	if req.UserID == "" {
		s.writeError(w, r, http.StatusBadRequest, codeValidation, "user_id is required", nil)
		return
	}
	if strings.TrimSpace(req.TaskTitle) == "" {
		s.writeError(w, r, http.StatusBadRequest, codeValidation, "task_title is required", nil)
		return
	}
	if !s.allow(w, r, req.UserID) {
		return
	}

	result, err := s.breakdowner.Breakdown(r.Context(), req.TaskTitle)
	if err != nil {
		s.stats.failures.Add(1)
		s.routeError(w, r, err)
		return
	}

	s.stats.breakdowns.Add(1)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(result)
}

// allow consumes one rate-limit slot, answering 429 on rejection.
func (s *Server) allow(w http.ResponseWriter, r *http.Request, userID string) bool {
	res := s.limiter.Check(userID)
	if res.Allowed {
		return true
	}

	w.Header().Set("Retry-After", strconv.Itoa(res.RetryAfterSeconds))
	s.writeError(w, r, http.StatusTooManyRequests, codeRateLimited,
		fmt.Sprintf("Rate limit exceeded for the %s window", res.LimitType),
		map[string]any{
			"retry_after_seconds": res.RetryAfterSeconds,
			"limit_type":          res.LimitType,
		})
	return false
}

func (s *Server) routeError(w http.ResponseWriter, r *http.Request, err error) {
	var perr *anthropic.ProviderError
	if errors.As(err, &perr) {
		s.writeError(w, r, http.StatusBadGateway, codeExternal, perr.Error(), nil)
		return
	}

	s.logger.Error("processing failed",
		"error", err,
		"request_id", middleware.GetReqID(r.Context()),
	)
	s.writeError(w, r, http.StatusInternalServerError, codeInternal, "An unexpected error occurred", nil)
}

func (s *Server) writeEvent(w http.ResponseWriter, flusher http.Flusher, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		s.logger.Error("failed to marshal sse event", "event", event, "error", err)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	flusher.Flush()
}
