package web

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Deps are the collaborators behind the HTTP routes. Jobs is optional; when set,
// saveMetadata hands work to the queue instead of publishing in-process.
type Deps struct {
	Aggregator *Aggregator
	Publisher  *Publisher
	Deleter    *Deleter
	Uploader   Uploader
	Jobs       JobQueue

	ShortsTimeout    time.Duration
	UploadHostSuffix string
	MaxUploadBytes   int64
	Now              func() time.Time
}

type server struct {
	Deps

	mux *http.ServeMux
}

func NewServer(deps Deps) *server {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.ShortsTimeout <= 0 {
		deps.ShortsTimeout = 25 * time.Second
	}
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = 50 << 20
	}

	s := &server{Deps: deps, mux: http.NewServeMux()}
	s.mux.Handle("/api/shorts", cors("GET, OPTIONS", "Content-Type", s.handleShorts))
	s.mux.Handle("/api/upload", cors("POST, OPTIONS", "Content-Type", s.handleUpload))
	s.mux.Handle("/api/uploadProxy", cors("POST, OPTIONS",
		"Content-Type, X-Upload-Url, X-Upload-Token, X-File-Key, X-Content-Type", s.handleUploadProxy))
	s.mux.Handle("/api/saveMetadata", cors("POST, OPTIONS", "Content-Type", s.handleSaveMetadata))
	s.mux.Handle("/api/delete", cors("DELETE, OPTIONS", "Content-Type", s.handleDelete))
	return s
}

// Handler returns the routed handler with request logging applied.
func (s *server) Handler() http.Handler {
	return logRequests(s.mux)
}

func (s *server) Start(lis net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.Serve(lis)
}

// cors answers preflight requests and stamps the permissive headers every route
// shares.
func cors(methods, headers string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.Header().Set("Access-Control-Allow-Headers", headers)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		slog.Info("request",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

type apiErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Helper functions for JSON responses
func sendJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

func sendJSONError(w http.ResponseWriter, message, details string, status int) {
	sendJSON(w, apiErrorResponse{Error: message, Details: details}, status)
}
