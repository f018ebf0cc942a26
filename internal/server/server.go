// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/hybridqa/internal/config"
	"github.com/jeranaias/hybridqa/internal/index"
	"github.com/jeranaias/hybridqa/internal/intent"
	"github.com/jeranaias/hybridqa/internal/llm"
	"github.com/jeranaias/hybridqa/internal/logging"
	"github.com/jeranaias/hybridqa/internal/router"
	"github.com/jeranaias/hybridqa/internal/storage"
	"github.com/jeranaias/hybridqa/internal/text2sql"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// Version is reported by GET / and GET /health.
	Version = "1.0.0"

	// Banner is the GET / message.
	Banner = "Hybrid QA API 서버가 실행 중입니다."

	// MaxK bounds the per-request passage count.
	MaxK = 20

	// healthTimeout bounds the backend check in GET /health.
	healthTimeout = 2 * time.Second
)

// ============================================================================
// SERVER STATS
// ============================================================================

// Stats counts requests by outcome. It is safe for concurrent use.
type Stats struct {
	total          atomic.Int64
	structured     atomic.Int64
	retrieval      atomic.Int64
	conversational atomic.Int64
	escalated      atomic.Int64
	failed         atomic.Int64
	start          time.Time
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	TotalRequests  int64 `json:"total_requests"`
	Structured     int64 `json:"structured"`
	Retrieval      int64 `json:"retrieval"`
	Conversational int64 `json:"conversational"`
	Escalated      int64 `json:"escalated"`
	Failed         int64 `json:"failed"`
	UptimeSeconds  int64 `json:"uptime_seconds"`
}

// NewStats creates zeroed Stats starting now.
func NewStats() *Stats {
	return &Stats{start: time.Now()}
}

// Record counts one routed request.
func (s *Stats) Record(d router.Decision, err error) {
	s.total.Add(1)
	if err != nil {
		s.failed.Add(1)
		return
	}
	if d.Escalated {
		s.escalated.Add(1)
	}
	switch d.Intent {
	case intent.Structured:
		s.structured.Add(1)
	case intent.Retrieval:
		s.retrieval.Add(1)
	default:
		s.conversational.Add(1)
	}
}

// Snapshot returns the current counts.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		TotalRequests:  s.total.Load(),
		Structured:     s.structured.Load(),
		Retrieval:      s.retrieval.Load(),
		Conversational: s.conversational.Load(),
		Escalated:      s.escalated.Load(),
		Failed:         s.failed.Load(),
		UptimeSeconds:  int64(time.Since(s.start).Seconds()),
	}
}

// ============================================================================
// SERVER
// ============================================================================

// Backend is checked by GET /health. *ollama.Client satisfies it.
type Backend interface {
	CheckRunning(ctx context.Context) error
}

// Server is the HTTP front end of the router.
type Server struct {
	cfg    config.ServerConfig
	router *router.Router
	mux    *http.ServeMux

	backend Backend
	chatlog *storage.ChatLog
	limiter *RateLimiter
	stats   *Stats
	logger  *zap.Logger

	mu     sync.Mutex
	server *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithBackend sets the backend checked by GET /health.
func WithBackend(b Backend) Option {
	return func(s *Server) { s.backend = b }
}

// WithChatLog records every routed request to l.
func WithChatLog(l *storage.ChatLog) Option {
	return func(s *Server) { s.chatlog = l }
}

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = logging.OrNop(l) }
}

// New creates a Server for rt.
func New(rt *router.Router, cfg config.ServerConfig, opts ...Option) *Server {
	s := &Server{
		cfg:    cfg,
		router: rt,
		mux:    http.NewServeMux(),
		stats:  NewStats(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.limiter = NewRateLimiter(cfg.RateLimit, cfg.RateBurst)
	s.setupRoutes()
	return s
}

// Stats returns the request counters.
func (s *Server) Stats() *Stats {
	return s.stats
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /{$}", s.handleRoot)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /stats", s.handleStats)
	s.mux.HandleFunc("POST /chat", s.handleChat)
}

// Handler returns the routes wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	return Chain(
		RecoveryMiddleware(s.logger),
		RequestIDMiddleware(),
		SecurityHeadersMiddleware(),
		LoggingMiddleware(s.logger),
		RateLimitMiddleware(s.limiter, s.logger),
		BodyLimitMiddleware(s.cfg.MaxBodyBytes),
	)(s.mux)
}

// ============================================================================
// ROOT AND HEALTH
// ============================================================================

// RootResponse is the GET / body.
type RootResponse struct {
	Message string `json:"message"`
	Version string `json:"version"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, RootResponse{Message: Banner, Version: Version})
}

// HealthResponse is the GET /health body.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	BackendStatus string `json:"backend_status"`
	Strategy      string `json:"strategy"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status:   "ok",
		Version:  Version,
		Strategy: s.router.Strategy().String(),
	}

	if s.backend == nil {
		health.BackendStatus = "not_configured"
		writeJSON(w, http.StatusOK, health)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := s.backend.CheckRunning(ctx); err != nil {
		s.logger.Warn("backend health check failed", zap.Error(err))
		health.Status = "degraded"
		health.BackendStatus = "unavailable"
		writeJSON(w, http.StatusServiceUnavailable, health)
		return
	}

	health.BackendStatus = "ok"
	writeJSON(w, http.StatusOK, health)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.stats.Snapshot())
}

// ============================================================================
// CHAT
// ============================================================================

// ChatRequest is the POST /chat body.
type ChatRequest struct {
	Query string `json:"query"`
	K     int    `json:"k,omitempty"`
}

// StructuredResponse answers a structured query.
type StructuredResponse struct {
	Mode    string         `json:"mode"`
	SQL     string         `json:"sql"`
	Rows    int            `json:"rows"`
	Data    []text2sql.Row `json:"data"`
	Columns []string       `json:"columns"`
	Message string         `json:"message"`
	Error   string         `json:"error,omitempty"`
}

// RetrievalResponse answers a document query.
type RetrievalResponse struct {
	Mode    string   `json:"mode"`
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
	Message string   `json:"message"`
}

// Source is a passage the retrieval answer was grounded on.
type Source struct {
	Source  string  `json:"source"`
	Page    int     `json:"page,omitempty"`
	Chunk   int     `json:"chunk"`
	Score   float64 `json:"score"`
	Content string  `json:"content"`
}

// ConversationalResponse answers everything else.
type ConversationalResponse struct {
	Mode    string `json:"mode"`
	Answer  string `json:"answer"`
	Message string `json:"message"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if req.K < 0 || req.K > MaxK {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("k must be between 0 and %d", MaxK))
		return
	}

	ctx := r.Context()
	if s.cfg.RequestTimeoutSecs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.cfg.RequestTimeoutSecs)*time.Second)
		defer cancel()
	}

	start := time.Now()
	res, decision, err := s.router.RouteTopK(ctx, req.Query, req.K)
	s.stats.Record(decision, err)
	s.record(r, req.Query, res, decision, err, time.Since(start))

	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("chat failed",
				zap.String("request_id", RequestID(r.Context())),
				zap.Int("status", status),
				zap.Error(err))
		}
		writeError(w, status, errorMessage(err))
		return
	}

	writeJSON(w, http.StatusOK, render(res))
}

// render converts a router result to its wire shape.
func render(res router.Result) any {
	switch v := res.(type) {
	case *router.StructuredResult:
		out := StructuredResponse{
			Mode:    v.Mode().String(),
			SQL:     string(v.Query),
			Rows:    v.RowCount,
			Data:    v.Rows,
			Columns: v.Columns,
			Message: fmt.Sprintf("%d개의 데이터 반환", v.RowCount),
		}
		if out.Data == nil {
			out.Data = []text2sql.Row{}
		}
		if out.Columns == nil {
			out.Columns = []string{}
		}
		if v.ExecErr != nil {
			out.Error = v.ExecErr.Error()
		}
		return out
	case *router.RetrievalResult:
		sources := make([]Source, 0, len(v.Passages))
		for _, p := range v.Passages {
			sources = append(sources, Source{
				Source:  p.Source,
				Page:    p.Page,
				Chunk:   p.Chunk,
				Score:   p.Score,
				Content: p.Content,
			})
		}
		return RetrievalResponse{
			Mode:    v.Mode().String(),
			Answer:  v.Answer,
			Sources: sources,
			Message: "문서 기반 답변 생성 완료",
		}
	case *router.ConversationalResult:
		return ConversationalResponse{
			Mode:    v.Mode().String(),
			Answer:  v.Answer,
			Message: "일반 대화 응답",
		}
	default:
		return ConversationalResponse{Mode: intent.Conversational.String()}
	}
}

// statusFor maps a routing error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, router.ErrEmptyQuery), errors.Is(err, router.ErrQueryTooLong):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, index.ErrIndexUnavailable), errors.Is(err, index.ErrDimensionMismatch):
		return http.StatusServiceUnavailable
	case errors.Is(err, llm.ErrGenerationUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage adds a remedy to errors an operator can fix.
func errorMessage(err error) string {
	if errors.Is(err, index.ErrDimensionMismatch) {
		return err.Error() + "; rebuild the index with the configured embedding model (hybridqa index)"
	}
	return err.Error()
}

// record appends the request to the chat log. Failures are logged and
// never affect the response.
func (s *Server) record(r *http.Request, query string, res router.Result, d router.Decision, err error, took time.Duration) {
	if s.chatlog == nil || errors.Is(err, router.ErrEmptyQuery) || errors.Is(err, router.ErrQueryTooLong) {
		return
	}

	e := storage.FromRoute(query, res, d, err, took)

	// The request context may already be past its deadline.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 5*time.Second)
	defer cancel()
	if _, rerr := s.chatlog.Record(ctx, e); rerr != nil {
		s.logger.Warn("chat log write failed", zap.Error(rerr))
	}
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// ListenAndServe serves on the configured address until Shutdown.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr(), err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown. It returns nil after a
// graceful shutdown.
func (s *Server) Serve(ln net.Listener) error {
	writeTimeout := 2 * time.Minute
	if s.cfg.RequestTimeoutSecs > 0 {
		writeTimeout = time.Duration(s.cfg.RequestTimeoutSecs)*time.Second + 10*time.Second
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       120 * time.Second,
		ErrorLog:          zap.NewStdLog(s.logger),
	}

	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()

	s.logger.Info("server started",
		zap.String("addr", ln.Addr().String()),
		zap.String("version", Version),
		zap.String("strategy", s.router.Strategy().String()))

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx
// is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()

	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	snap := s.stats.Snapshot()
	s.logger.Info("server shutting down",
		zap.Int64("requests", snap.TotalRequests),
		zap.Int64("failed", snap.Failed))

	return srv.Shutdown(ctx)
}

// ============================================================================
// HELPERS
// ============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failure.
type ErrorDetail struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Message: message, Code: status}})
}
