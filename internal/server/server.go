// Package server exposes the webhook and session surfaces over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/activepieces/activepieces-sub025/internal/logging"
	"github.com/activepieces/activepieces-sub025/pkg/domain"
	"github.com/activepieces/activepieces-sub025/pkg/mcpsession"
	"github.com/activepieces/activepieces-sub025/pkg/webhook"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server wires the coordinator and session manager into HTTP routes.
type Server struct {
	coordinator *webhook.Coordinator
	sessions    *mcpsession.Manager

	// newServerHandle builds the protocol server a fresh session fronts.
	newServerHandle func() mcpsession.ServerHandle

	logger *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger configures a logger for the Server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates the HTTP surface.
func New(coordinator *webhook.Coordinator, sessions *mcpsession.Manager, newServerHandle func() mcpsession.ServerHandle, opts ...Option) *Server {
	s := &Server{
		coordinator:     coordinator,
		sessions:        sessions,
		newServerHandle: newServerHandle,
		logger:          logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Handle("/v1/webhooks/{flowId}", http.HandlerFunc(s.handleWebhook))
	r.Post("/v1/mcp", s.handleSession)
	r.Delete("/v1/mcp", s.handleSessionClose)

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}

// handleWebhook accepts any method: webhook providers use whatever verb
// they please.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	flowID := chi.URLParam(r, "flowId")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	payload := &domain.WebhookPayload{
		Method:      r.Method,
		Headers:     make(map[string]string, len(r.Header)),
		QueryParams: make(map[string]string),
	}
	for name := range r.Header {
		payload.Headers[name] = r.Header.Get(name)
	}
	query := r.URL.Query()
	for name := range query {
		payload.QueryParams[name] = query.Get(name)
	}
	if len(body) > 0 {
		payload.Body = body
	}

	opts := domain.WebhookOptions{
		Async:          query.Get("async") == "true",
		SaveSampleData: query.Get("saveSampleData") == "true",
		Execute:        query.Get("execute") != "false",
		VersionPolicy:  domain.LockedFallbackToLatest,
	}
	if query.Get("flowVersionToRun") == "LATEST" {
		opts.VersionPolicy = domain.Latest
	}

	result := s.coordinator.Handle(r.Context(), flowID, payload, opts)

	for name, value := range result.Headers {
		w.Header().Set(name, value)
	}
	w.WriteHeader(result.Status)
	if len(result.Body) > 0 {
		_, _ = w.Write(result.Body)
	}
}

// handleSession speaks JSON-RPC over HTTP. The session id travels in
// the Mcp-Session-Id header; its absence is only valid on an
// initializing request.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	sessionID := r.Header.Get(mcpsession.HeaderSessionID)
	if sessionID == "" {
		s.initializeSession(w, r, body)
		return
	}

	resp, err := s.sessions.Route(r.Context(), sessionID, body)
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		writeJSONRPC(w, http.StatusBadRequest, mcpsession.NoSessionError())
		return
	case errors.Is(err, domain.ErrRelayTimeout):
		s.logger.Warn("session relay timed out", "session_id", sessionID)
		writeJSONRPC(w, http.StatusInternalServerError, internalError("session owner did not respond"))
		return
	case err != nil:
		s.logger.Error("session routing failed", "session_id", sessionID, "err", err)
		writeJSONRPC(w, http.StatusInternalServerError, internalError("session routing failed"))
		return
	}

	writeSessionResponse(w, sessionID, resp)
}

func (s *Server) initializeSession(w http.ResponseWriter, r *http.Request, body []byte) {
	var probe struct {
		Method string `json:"method"`
	}
	if err := json.Unmarshal(body, &probe); err != nil || probe.Method != "initialize" {
		writeJSONRPC(w, http.StatusBadRequest, mcpsession.NoSessionError())
		return
	}

	sess, err := s.sessions.Create(r.Context(), s.newServerHandle())
	if err != nil {
		s.logger.Error("session creation failed", "err", err)
		writeJSONRPC(w, http.StatusInternalServerError, internalError("session creation failed"))
		return
	}

	resp, err := sess.Apply(r.Context(), body)
	if err != nil {
		s.logger.Error("initialize failed", "session_id", sess.ID, "err", err)
		writeJSONRPC(w, http.StatusInternalServerError, internalError("initialize failed"))
		return
	}

	writeSessionResponse(w, sess.ID, resp)
}

func (s *Server) handleSessionClose(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(mcpsession.HeaderSessionID)
	if sessionID == "" {
		writeJSONRPC(w, http.StatusBadRequest, mcpsession.NoSessionError())
		return
	}
	if err := s.sessions.Remove(r.Context(), sessionID); err != nil {
		s.logger.Error("session close failed", "session_id", sessionID, "err", err)
		writeJSONRPC(w, http.StatusInternalServerError, internalError("session close failed"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeSessionResponse(w http.ResponseWriter, sessionID string, resp json.RawMessage) {
	w.Header().Set(mcpsession.HeaderSessionID, sessionID)
	if len(resp) == 0 || string(resp) == "null" {
		// Notification: nothing to return.
		w.WriteHeader(http.StatusAccepted)
		return
	}
	writeJSONRPC(w, http.StatusOK, resp)
}

func writeJSONRPC(w http.ResponseWriter, status int, payload json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

func internalError(msg string) json.RawMessage {
	data, _ := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"error":   map[string]any{"code": -32603, "message": msg},
		"id":      nil,
	})
	return data
}
