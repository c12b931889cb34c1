// Package server is the HTTP surface: health, the AI command endpoints
// (sync and SSE), CORS preflight, and the websocket route.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	mural "github.com/nevindra/mural"
	"github.com/nevindra/mural/agent"
	"github.com/nevindra/mural/hub"
	"github.com/nevindra/mural/observer"
	"github.com/nevindra/mural/room"
)

// streamTimeout is the wall-clock budget for one streamed AI command.
const streamTimeout = 60 * time.Second

const defaultBoardID = "default"

type Server struct {
	manager *room.Manager
	hub     *hub.Hub
	orch    *agent.Orchestrator
	logger  *slog.Logger
	inst    *observer.Instruments

	allowedOrigins string
	storeName      string
}

type Option func(*Server)

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

func WithInstruments(inst *observer.Instruments) Option {
	return func(s *Server) { s.inst = inst }
}

// WithAllowedOrigins sets the comma-separated CORS allow list.
func WithAllowedOrigins(list string) Option {
	return func(s *Server) { s.allowedOrigins = list }
}

// WithStoreName names the persistence backend for /health.
func WithStoreName(name string) Option {
	return func(s *Server) { s.storeName = name }
}

func New(manager *room.Manager, h *hub.Hub, orch *agent.Orchestrator, opts ...Option) *Server {
	s := &Server{
		manager:   manager,
		hub:       h,
		orch:      orch,
		logger:    slog.New(slog.DiscardHandler),
		storeName: "memory",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the route table. Non-API paths are websocket joins.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/ai", s.handleAI)
	mux.HandleFunc("POST /api/ai/stream", s.handleAIStream)
	mux.Handle("/", s.hub)
	return s.cors(mux)
}

// cors handles preflight and stamps allow headers on API responses.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && mural.OriginAllowed(origin, s.allowedOrigins) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"rooms":       s.manager.Len(),
		"persistence": s.storeName,
		"ai": map[string]any{
			"model_configured": s.orch.HasProvider(),
			"recipes_cached":   s.orch.CacheLen(),
		},
	})
}

type aiRequest struct {
	Message string `json:"message"`
	BoardID string `json:"boardId"`
}

// decodeAIRequest validates the body shared by both AI endpoints.
func (s *Server) decodeAIRequest(w http.ResponseWriter, r *http.Request) (aiRequest, bool) {
	var req aiRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return req, false
	}
	if !mural.ValidCommand(req.Message) {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("message must be 1-%d characters", mural.MaxCommandLen))
		return req, false
	}
	if req.BoardID == "" {
		req.BoardID = defaultBoardID
	}
	if !mural.ValidRoomName(req.BoardID) {
		writeError(w, http.StatusBadRequest, "invalid board id")
		return req, false
	}
	return req, true
}

func (s *Server) handleAI(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeAIRequest(w, r)
	if !ok {
		return
	}

	doc, err := s.manager.GetOrCreate(r.Context(), req.BoardID)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "board unavailable")
		return
	}

	start := time.Now()
	msg, actions, err := s.orch.Process(r.Context(), req.Message, doc)
	s.inst.RecordAIRequest(r.Context(), "sync", float64(time.Since(start).Milliseconds()), err != nil)
	if err != nil {
		s.logger.Warn("ai command failed", "board", req.BoardID, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if actions == nil {
		actions = []mural.ToolAction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": msg,
		"actions": actions,
	})
}

func (s *Server) handleAIStream(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeAIRequest(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), streamTimeout)
	defer cancel()

	doc, err := s.manager.GetOrCreate(ctx, req.BoardID)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "board unavailable")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events := make(chan mural.StreamEvent, 16)
	start := time.Now()
	go s.orch.ProcessStream(ctx, req.Message, doc, events)

	failed := false
	for ev := range events {
		if ev.Type == mural.EventError {
			failed = true
		}
		data, err := json.Marshal(ev)
		if err != nil {
			s.logger.Warn("stream event marshal failed", "error", err)
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}
	s.inst.RecordAIRequest(r.Context(), "stream", float64(time.Since(start).Milliseconds()), failed)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
