// Package api serves the dice pipeline over HTTP: JSON endpoints under /api
// and operator pages under /debug.
package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/dice/internal/db"
	"github.com/banshee-data/dice/internal/grid"
	"github.com/banshee-data/dice/internal/httputil"
	"github.com/banshee-data/dice/internal/inference"
	"github.com/banshee-data/dice/internal/notes"
	"github.com/banshee-data/dice/internal/pipeline"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// EngineStatus reports the model lifecycle. *inference.Engine satisfies it.
type EngineStatus interface {
	State() inference.State
	LoadErr() error
}

// History lists recorded transforms, newest first. *db.DB satisfies it.
type History interface {
	RecentTransforms(ctx context.Context, limit int) ([]db.TransformRecord, error)
}

// ModelInfo describes the loaded model artifact.
type ModelInfo struct {
	Source      string `json:"source"`
	Placeholder bool   `json:"placeholder"`
}

// Option configures a Server.
type Option func(*Server)

// WithHistory enables /api/history.
func WithHistory(h History) Option {
	return func(s *Server) { s.history = h }
}

// WithModelInfo sets the artifact details reported by /api/status.
func WithModelInfo(m ModelInfo) Option {
	return func(s *Server) { s.model = m }
}

// WithNoteMapping replaces notes.DefaultMapping for /api/notes.
func WithNoteMapping(m notes.Mapping) Option {
	return func(s *Server) { s.mapping = m }
}

type Server struct {
	pipeline *pipeline.Pipeline
	engine   EngineStatus
	history  History
	model    ModelInfo
	mapping  notes.Mapping
	started  time.Time
}

func NewServer(p *pipeline.Pipeline, engine EngineStatus, opts ...Option) *Server {
	s := &Server{
		pipeline: p,
		engine:   engine,
		mapping:  notes.DefaultMapping,
		started:  time.Now(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/transform", s.handleTransform)
	mux.HandleFunc("/api/notes", s.handleNotes)
	mux.HandleFunc("/api/params", s.handleParams)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/status", s.handleStatus)
	return mux
}

// statusForError maps pipeline failures onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, grid.ErrInvalidEncoding),
		errors.Is(err, grid.ErrShapeMismatch),
		errors.Is(err, pipeline.ErrInvalidParams):
		return http.StatusBadRequest
	case errors.Is(err, inference.ErrNotInitialized):
		return http.StatusServiceUnavailable
	case errors.Is(err, inference.ErrTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		log.Printf("[API] request failed: %v", err)
	}
	httputil.WriteJSONError(w, status, err.Error())
}
