// Package httpapi exposes the chat endpoint and the operational
// surface (health, readiness, metrics, latency snapshot).
package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/liurenke/renkebot/internal/apperr"
	"github.com/liurenke/renkebot/internal/observability"
)

// Responder runs one conversation turn.
type Responder interface {
	Respond(ctx context.Context, sessionID, query string) (reply, usedSessionID string, err error)
	Ready(ctx context.Context) error
}

// ChatRequest is the inbound chat payload.
type ChatRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatResponse is the reply payload. SessionID echoes the identifier
// used for the turn so clients can continue the conversation.
type ChatResponse struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type Server struct {
	engine  Responder
	metrics *observability.Metrics
}

func New(engine Responder, metrics *observability.Metrics) *Server {
	return &Server{engine: engine, metrics: metrics}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})
	r.Get("/v1/perf/latency", s.handlePerfLatency)

	r.Post("/v1/chat", s.handleChat)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.engine.Ready(ctx); err != nil {
		respondError(w, http.StatusServiceUnavailable, "store_unreachable", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (s *Server) handlePerfLatency(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.metrics.SnapshotTurnStages())
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		s.metrics.ChatRequests.WithLabelValues("bad_request").Inc()
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	reply, sessionID, err := s.engine.Respond(r.Context(), strings.TrimSpace(req.SessionID), req.Query)
	if err != nil {
		kind := apperr.KindOf(err)
		log.Printf("chat turn failed (session=%s kind=%s): %v", sessionID, kind, err)
		s.metrics.ChatRequests.WithLabelValues("error").Inc()
		respondError(w, apperr.Status(err), string(kind), err.Error())
		return
	}

	s.metrics.ChatRequests.WithLabelValues("ok").Inc()
	respondJSON(w, http.StatusOK, ChatResponse{Message: reply, SessionID: sessionID})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func decodeJSON(r *http.Request, out any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
