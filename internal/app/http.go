package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"ideashare/api/internal/auth"
	"ideashare/api/internal/blob"
	"ideashare/api/internal/ideas"
	"ideashare/api/internal/validate"
)

// uploadSlack covers multipart framing and the text fields.
const uploadSlack = 1 << 20

// BlobOpener serves stored audio directly. Only the in-memory blob store
// implements it; object storage hands out presigned URLs instead.
type BlobOpener interface {
	Open(ref string) (io.ReadCloser, string, error)
}

type HTTPOptions struct {
	JWTSecret   []byte
	CORSOrigins []string
	Logger      *slog.Logger
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// Blobs serves /api/blobs/* when set.
	Blobs BlobOpener
}

type HTTPServer struct {
	service   *Service
	jwtSecret []byte
	origins   []string
	logger    *slog.Logger
	metrics   http.Handler
	blobs     BlobOpener
}

func NewHTTPServer(service *Service, opts HTTPOptions) *HTTPServer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &HTTPServer{
		service:   service,
		jwtSecret: opts.JWTSecret,
		origins:   origins,
		logger:    logger,
		metrics:   opts.Metrics,
		blobs:     opts.Blobs,
	}
}

func (s *HTTPServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(s.accessLog)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Device-ID", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	r.Get("/api/ready", s.handleReady)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	if s.blobs != nil {
		r.Get("/api/blobs/*", s.handleBlob)
	}

	r.Get("/api/embargo-options", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"options": ideas.EmbargoChoices()})
	})
	r.Get("/api/search", s.handleSearch)
	r.Get("/api/votes", s.handleVotes)

	r.Route("/api/ideas", func(r chi.Router) {
		r.Get("/", s.handleListPublic)
		r.Post("/", s.handleCreate)
		r.Get("/mine", s.handleListOwned)
		r.Delete("/{id}", s.handleDelete)
		r.Post("/{id}/release", s.handleRelease)
		r.Post("/{id}/vote", s.handleVote)
	})
	return r
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"store": map[string]any{"status": "ok"},
	}
	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["store"] = map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
	}
	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleListPublic(w http.ResponseWriter, r *http.Request) {
	items, err := s.service.ListPublic(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	viewer, _ := s.viewer(r)
	writeJSON(w, http.StatusOK, map[string]any{"ideas": s.service.Views(r.Context(), items, viewer)})
}

func (s *HTTPServer) handleListOwned(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.requireOwner(w, r)
	if !ok {
		return
	}
	items, err := s.service.ListOwned(r.Context(), owner)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ideas": s.service.Views(r.Context(), items, owner)})
}

func (s *HTTPServer) handleCreate(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.requireOwner(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, validate.MaxAudioBytes+uploadSlack)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, validate.ErrFileTooLarge.Code, validate.ErrFileTooLarge.Message, nil)
			return
		}
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "expected a multipart form", nil)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "AUDIO_REQUIRED", "an audio file is required", nil)
		return
	}
	defer file.Close()

	embargo, err := parseEmbargo(r.FormValue("embargoSeconds"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	idea, err := s.service.Create(r.Context(), CreateInput{
		OwnerID:        owner,
		Audio:          fileMetadata(header),
		Body:           file,
		Description:    r.FormValue("description"),
		BPM:            r.FormValue("bpm"),
		EmbargoSeconds: embargo,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"idea": s.service.View(r.Context(), idea, owner)})
}

func fileMetadata(header *multipart.FileHeader) validate.FileMetadata {
	return validate.FileMetadata{
		SizeBytes: header.Size,
		MimeType:  header.Header.Get("Content-Type"),
		Filename:  header.Filename,
	}
}

func parseEmbargo(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, withCause(ErrInvalidEmbargo, err)
	}
	return seconds, nil
}

func (s *HTTPServer) handleRelease(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.requireOwner(w, r)
	if !ok {
		return
	}
	idea, err := s.service.Release(r.Context(), chi.URLParam(r, "id"), owner)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"idea": s.service.View(r.Context(), idea, owner)})
}

func (s *HTTPServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.requireOwner(w, r)
	if !ok {
		return
	}
	if err := s.service.DeletePrivate(r.Context(), chi.URLParam(r, "id"), owner); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleVote(w http.ResponseWriter, r *http.Request) {
	device, ok := requireDevice(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	count, err := s.service.VoteByID(r.Context(), device, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "voteCount": count})
}

func (s *HTTPServer) handleVotes(w http.ResponseWriter, r *http.Request) {
	device, ok := requireDevice(w, r)
	if !ok {
		return
	}
	ids, err := s.service.Voted(r.Context(), device)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ideaIds": ids})
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	offset, _ := strconv.Atoi(query.Get("offset"))
	writeJSON(w, http.StatusOK, s.service.Search(r.Context(), query.Get("q"), limit, offset))
}

func (s *HTTPServer) handleBlob(w http.ResponseWriter, r *http.Request) {
	body, contentType, err := s.blobs.Open(chi.URLParam(r, "*"))
	if errors.Is(err, blob.ErrNotFound) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "audio not found", nil)
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer body.Close()
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, body)
}

// viewer returns the bearer subject when a valid token is present.
func (s *HTTPServer) viewer(r *http.Request) (string, bool) {
	token := bearerToken(r)
	if token == "" {
		return "", false
	}
	claims, err := auth.ParseToken(s.jwtSecret, token)
	if err != nil {
		return "", false
	}
	return claims.Sub, true
}

func (s *HTTPServer) requireOwner(w http.ResponseWriter, r *http.Request) (string, bool) {
	owner, ok := s.viewer(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, ErrOwnerRequired.Code, ErrOwnerRequired.Message, nil)
		return "", false
	}
	return owner, true
}

var deviceIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{8,128}$`)

func requireDevice(w http.ResponseWriter, r *http.Request) (string, bool) {
	device := strings.TrimSpace(r.Header.Get("X-Device-ID"))
	if !deviceIDPattern.MatchString(device) {
		writeError(w, http.StatusBadRequest, "DEVICE_ID_REQUIRED", "X-Device-ID header is missing or malformed", nil)
		return "", false
	}
	return device, true
}

func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"request_id", chimw.GetReqID(r.Context()),
			"path", r.URL.Path,
			"kind", string(KindOf(err)),
			"error", err,
		)
	}
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		writer.Header().Set("Cache-Control", "no-store")

		next.ServeHTTP(writer, r)

		s.logger.Info("request",
			"request_id", chimw.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", writer.status,
			"duration_ms", time.Since(started).Milliseconds(),
		)
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

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	var validationErr *validate.Error
	if errors.As(err, &validationErr) {
		return http.StatusUnprocessableEntity, validationErr.Code, validationErr.Message, nil
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
