package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/mikey/phish-detector/internal/core"
)

// DefaultMaxUploadBytes is the largest accepted .eml upload
const DefaultMaxUploadBytes = 5 * 1024 * 1024

var acceptedUploadTypes = map[string]bool{
	"message/rfc822":           true,
	"text/plain":               true,
	"application/octet-stream": true,
}

// AnalysisService is what the API needs from the core service
type AnalysisService interface {
	AnalyzeText(ctx context.Context, req core.TextRequest) (*core.AnalysisResult, error)
	AnalyzeFile(ctx context.Context, raw []byte) (*core.AnalysisResult, error)
}

// Options configures the router
type Options struct {
	AllowedOrigins []string
	MaxUploadBytes int64

	// StaticDir, when it holds an index.html, is served at / and /static
	StaticDir string
}

type Router struct {
	service AnalysisService
	logger  *zap.Logger
	opts    Options
}

// NewRouter builds the HTTP handler of the analysis API
func NewRouter(service AnalysisService, logger *zap.Logger, opts Options) http.Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	r := &Router{service: service, logger: logger, opts: opts}
	mux := chi.NewRouter()

	mux.Use(RequestID)
	mux.Use(Logger(logger))
	mux.Use(middleware.Recoverer)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	mux.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.Route("/api/analyze", func(rt chi.Router) {
		rt.Post("/text", r.wrap(r.handleAnalyzeText))
		rt.Post("/file", r.wrap(r.handleAnalyzeFile))
	})

	r.mountStatic(mux)
	return mux
}

// apiError is an error with an explicit HTTP status
type apiError struct {
	status int
	detail string
}

func (e *apiError) Error() string {
	return e.detail
}

func newAPIError(status int, format string, args ...any) *apiError {
	return &apiError{status: status, detail: fmt.Sprintf(format, args...)}
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}

		var apiErr *apiError
		switch {
		case errors.As(err, &apiErr):
			writeJSON(w, apiErr.status, errorBody{Detail: apiErr.detail})
		case errors.Is(err, core.ErrInvalidInput):
			writeJSON(w, http.StatusBadRequest, errorBody{Detail: err.Error()})
		default:
			r.logger.Error("Request failed",
				zap.String("request_id", GetRequestID(req.Context())),
				zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, errorBody{Detail: "internal server error"})
		}
	}
}

type errorBody struct {
	Detail string `json:"detail"`
}

// POST /api/analyze/text
// Body: {"subject": "...", "body": "...", "headers": "..."}
func (r *Router) handleAnalyzeText(w http.ResponseWriter, req *http.Request) error {
	var body core.TextRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, r.opts.MaxUploadBytes))
	if err := dec.Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return newAPIError(http.StatusRequestEntityTooLarge, "request exceeds the maximum allowed size of %d bytes", r.opts.MaxUploadBytes)
		}
		return newAPIError(http.StatusBadRequest, "malformed request body: %v", err)
	}

	result, err := r.service.AnalyzeText(req.Context(), body)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, result)
	return nil
}

// POST /api/analyze/file
// Multipart form with the message in field "file"
func (r *Router) handleAnalyzeFile(w http.ResponseWriter, req *http.Request) error {
	// Room for the multipart envelope around the file
	req.Body = http.MaxBytesReader(w, req.Body, r.opts.MaxUploadBytes+64*1024)

	file, header, err := req.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return newAPIError(http.StatusRequestEntityTooLarge, "file exceeds the maximum allowed size of %d bytes", r.opts.MaxUploadBytes)
		}
		return newAPIError(http.StatusBadRequest, "missing file upload: %v", err)
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	mediaType := "application/octet-stream"
	if contentType != "" {
		mediaType, _, err = mime.ParseMediaType(contentType)
		if err != nil {
			mediaType = contentType
		}
	}
	if !acceptedUploadTypes[mediaType] {
		return newAPIError(http.StatusUnsupportedMediaType, "unsupported content type: %s", contentType)
	}

	contents, err := io.ReadAll(io.LimitReader(file, r.opts.MaxUploadBytes+1))
	if err != nil {
		return fmt.Errorf("failed to read upload: %w", err)
	}
	if len(contents) == 0 {
		return newAPIError(http.StatusBadRequest, "uploaded file is empty")
	}
	if int64(len(contents)) > r.opts.MaxUploadBytes {
		return newAPIError(http.StatusRequestEntityTooLarge, "file exceeds the maximum allowed size of %d bytes", r.opts.MaxUploadBytes)
	}

	result, err := r.service.AnalyzeFile(req.Context(), contents)
	if err != nil {
		if errors.Is(err, core.ErrInvalidInput) {
			return newAPIError(http.StatusBadRequest, "failed to parse email message: %v", err)
		}
		return err
	}
	writeJSON(w, http.StatusCreated, result)
	return nil
}

func (r *Router) mountStatic(mux chi.Router) {
	if r.opts.StaticDir == "" {
		return
	}
	index := filepath.Join(r.opts.StaticDir, "index.html")
	if _, err := os.Stat(index); err != nil {
		r.logger.Warn("Static directory has no index.html, frontend disabled",
			zap.String("dir", r.opts.StaticDir))
		return
	}

	mux.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(r.opts.StaticDir))))
	mux.Get("/", func(w http.ResponseWriter, req *http.Request) {
		http.ServeFile(w, req, index)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
