// Package server exposes the analysis pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ibeckermayer/xblueprint/internal/app"
	"github.com/ibeckermayer/xblueprint/internal/config"
	"github.com/ibeckermayer/xblueprint/internal/metrics"
	"github.com/ibeckermayer/xblueprint/internal/types"
)

const (
	maxBodyBytes = 64 << 10
	// DefaultClientKey is used when no proxy header names the caller
	DefaultClientKey = "127.0.0.1"

	CodeRateLimited = "RATE_LIMITED"
	CodeAIError     = "AI_ERROR"
	CodeInternal    = "INTERNAL_ERROR"
)

// Pipeline is the part of the application the HTTP surface calls
type Pipeline interface {
	Analyze(ctx context.Context, clientKey, rawHandle string) (*types.AnalyzeResponse, error)
	Chat(ctx context.Context, clientKey string, req types.ChatRequest) (string, error)
}

// Server routes HTTP requests to the pipeline
type Server struct {
	pipeline Pipeline
	metrics  *metrics.Metrics
	logger   *zap.Logger
	router   chi.Router
}

// New builds the router.
func New(pipeline Pipeline, m *metrics.Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{pipeline: pipeline, metrics: m, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/analyze", s.handleAnalyze)
		r.Post("/chat", s.handleChat)
	})

	s.router = r
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves on cfg.Server.Addr until ctx is done, then shuts down gracefully.
// The write timeout never falls below the analyze request budget.
func (s *Server) Run(ctx context.Context, cfg *config.Config) error {
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: cfg.WriteTimeout(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("[server] listening", zap.String("addr", cfg.Server.Addr), zap.Duration("write_timeout", srv.WriteTimeout))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("[server] shutting down")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", app.CodeInvalidRequest)
		return
	}

	raw, ok := body["username"].(string)
	if !ok {
		raw, _ = body["handle"].(string)
	}

	resp, err := s.pipeline.Analyze(r.Context(), ClientKey(r), raw)
	if err != nil {
		s.writePipelineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req types.ChatRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", app.CodeInvalidRequest)
		return
	}

	reply, err := s.pipeline.Chat(r.Context(), ClientKey(r), req)
	if err != nil {
		s.writePipelineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

// writePipelineError maps the error taxonomy onto status codes
func (s *Server) writePipelineError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation  *app.ValidationError
		limited     *app.RateLimitedError
		unavailable *app.GenerationUnavailableError
	)
	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, validation.Message, validation.Code)
	case errors.As(err, &limited):
		w.Header().Set("Retry-After", strconv.Itoa(limited.RetryAfter))
		writeError(w, http.StatusTooManyRequests, limited.Error(), CodeRateLimited)
	case errors.As(err, &unavailable):
		writeError(w, http.StatusServiceUnavailable, unavailable.Error(), CodeAIError)
	default:
		s.logger.Error("[server] unexpected error",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred.", CodeInternal)
	}
}

// ClientKey identifies the caller for rate limiting: the first
// X-Forwarded-For entry, then X-Real-IP, then a fixed local address.
func ClientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	return DefaultClientKey
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, types.ErrorResponse{Error: message, Code: code})
}

// logRequests logs one line per request with zap
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.logger.Info("[server] request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		}()
		next.ServeHTTP(ww, r)
	})
}
