package httpapi

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"noteforge/internal/config"
	"noteforge/internal/docgen"
	"noteforge/internal/model"
	"noteforge/internal/notes"
	"noteforge/internal/transcription"
	"noteforge/internal/upstream/elevenlabs"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

type TranscriptionService interface {
	Transcribe(ctx context.Context, file io.Reader, fileName, modelID string) (string, error)
}

type NotesService interface {
	Process(ctx context.Context, transcript string) notes.Result
}

type DocumentRenderer interface {
	Render(d docgen.Document, outputPath string) error
}

type MetricsObserver interface {
	ObserveHTTP(route, method string, status int, duration time.Duration)
}

type Dependencies struct {
	Transcription  TranscriptionService
	Notes          NotesService
	Renderer       DocumentRenderer
	Metrics        MetricsObserver
	MetricsHandler http.Handler
}

type server struct {
	cfg          config.Config
	logger       *slog.Logger
	transcriber  TranscriptionService
	notes        NotesService
	renderer     DocumentRenderer
	metrics      MetricsObserver
	metricsRoute http.Handler
}

type ctxKey string

const (
	requestIDHeader  = "X-Request-Id"
	requestIDContext = ctxKey("request_id")
	maxJSONBodyBytes = 4 << 20

	documentContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

func NewServer(cfg config.Config, logger *slog.Logger, deps Dependencies) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Transcription == nil || deps.Notes == nil || deps.Renderer == nil {
		panic("httpapi: all dependencies are required")
	}

	s := &server{
		cfg:          cfg,
		logger:       logger,
		transcriber:  deps.Transcription,
		notes:        deps.Notes,
		renderer:     deps.Renderer,
		metrics:      deps.Metrics,
		metricsRoute: deps.MetricsHandler,
	}

	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, http.StatusNotFound, "not_found", "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", nil)
	})

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	if s.metricsRoute != nil {
		r.Handle("/metrics", s.metricsRoute)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/notes", s.handleNotes)
		r.Post("/notes/process", s.handleProcess)
		r.Post("/notes/document", s.handleDocument)
	})

	return r
}

func (s *server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.HealthResponse{OK: true})
}

// handleReadyz reports configuration state. The inference API has no cheap
// probe endpoint, so readiness does not call upstream; remote generation
// being off is not an error, the pipeline runs fully local in that case.
func (s *server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.ReadyResponse{
		OK:               true,
		ServiceName:      "NoteForge",
		RemoteGeneration: s.cfg.RemoteGenerationConfigured(),
		Transcription:    s.cfg.ElevenLabsAPIKey != "",
	})
}

// handleNotes accepts two input modes: a multipart file upload, or a JSON
// body carrying a base64 microphone recording.
func (s *server) handleNotes(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		s.handleNotesRecording(w, r, started)
		return
	}

	file, header, form, err := s.readMultipartAudio(w, r)
	if err != nil {
		s.handleMultipartReadError(w, r, err)
		return
	}
	defer cleanupMultipartForm(form)
	defer func() { _ = file.Close() }()

	if !allowedAudioFile(header.Filename) {
		s.writeError(w, r, http.StatusBadRequest, "invalid_request",
			"invalid file type, use mp3/mp4/wav/webm/m4a/ogg", nil)
		return
	}

	s.produceNotes(w, r, started, file, header.Filename, strings.TrimSpace(r.FormValue("model_id")))
}

func (s *server) handleNotesRecording(w http.ResponseWriter, r *http.Request, started time.Time) {
	var req model.RecordingRequest
	if !s.decodeJSONBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.AudioBlob) == "" {
		s.writeError(w, r, http.StatusBadRequest, "invalid_request", "audio_blob is required", nil)
		return
	}
	audio, err := base64.StdEncoding.DecodeString(req.AudioBlob)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid_request", "audio_blob is not valid base64", nil)
		return
	}

	s.produceNotes(w, r, started, bytes.NewReader(audio), "mic_recording.webm", strings.TrimSpace(req.ModelID))
}

func (s *server) produceNotes(w http.ResponseWriter, r *http.Request, started time.Time, file io.Reader, fileName, modelID string) {
	transcript, err := s.transcriber.Transcribe(r.Context(), file, fileName, modelID)
	transcriptionDuration := time.Since(started)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}

	generationStarted := time.Now()
	result := s.notes.Process(r.Context(), transcript)
	generationDuration := time.Since(generationStarted)

	writeJSON(w, http.StatusOK, model.NotesResponse{
		Transcript:   transcript,
		NotesPayload: toNotesPayload(result),
		TimingsMS: model.NotesTimings{
			Transcription: transcriptionDuration.Milliseconds(),
			Generation:    generationDuration.Milliseconds(),
			Total:         time.Since(started).Milliseconds(),
		},
	})
}

func (s *server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req model.ProcessRequest
	if !s.decodeJSONBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Transcript) == "" {
		s.writeError(w, r, http.StatusBadRequest, "invalid_request", "transcript is required", nil)
		return
	}

	result := s.notes.Process(r.Context(), req.Transcript)
	writeJSON(w, http.StatusOK, model.ProcessResponse{NotesPayload: toNotesPayload(result)})
}

func (s *server) handleDocument(w http.ResponseWriter, r *http.Request) {
	var req model.DocumentRequest
	if !s.decodeJSONBody(w, r, &req) {
		return
	}

	tmp, err := os.CreateTemp("", "noteforge-*.docx")
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, "internal_error", "could not stage document", nil)
		return
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer func() { _ = os.Remove(tmpPath) }()

	doc := docgen.Document{
		Transcript: req.Transcript,
		Notes:      fromNotesPayload(req.NotesPayload),
	}
	if err := s.renderer.Render(doc, tmpPath); err != nil {
		s.logger.Error("document render failed", "request_id", requestIDFromContext(r.Context()), "error", err)
		s.writeError(w, r, http.StatusInternalServerError, "render_failed", "document generation failed", nil)
		return
	}

	data, err := os.ReadFile(tmpPath)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, "internal_error", "could not read document", nil)
		return
	}

	w.Header().Set("Content-Type", documentContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="lecture_notes.docx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *server) readMultipartAudio(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, *multipart.Form, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(minInt64(s.cfg.MaxUploadBytes, 8<<20)); err != nil {
		return nil, nil, nil, err
	}
	file, header, err := r.FormFile("audio")
	if err != nil {
		return nil, nil, r.MultipartForm, err
	}
	return file, header, r.MultipartForm, nil
}

func (s *server) decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	defer func() { _ = r.Body.Close() }()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		s.handleJSONDecodeError(w, r, err)
		return false
	}
	if err := ensureBodyFullyConsumed(decoder); err != nil {
		s.handleJSONDecodeError(w, r, err)
		return false
	}
	return true
}

func (s *server) handleMultipartReadError(w http.ResponseWriter, r *http.Request, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		s.writeError(w, r, http.StatusRequestEntityTooLarge, "request_too_large", fmt.Sprintf("request exceeds %d bytes", s.cfg.MaxUploadBytes), nil)
		return
	}
	if strings.Contains(strings.ToLower(err.Error()), "no such file") || strings.Contains(strings.ToLower(err.Error()), "missing") {
		s.writeError(w, r, http.StatusBadRequest, "invalid_request", "multipart field 'audio' is required", nil)
		return
	}
	s.writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid multipart form data", nil)
}

func (s *server) handleJSONDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		s.writeError(w, r, http.StatusRequestEntityTooLarge, "request_too_large", "JSON body too large", nil)
		return
	}
	s.writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON body", nil)
}

func (s *server) writeMappedError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"
	message := "request failed"
	details := detailsForError(err)

	var sttErr *elevenlabs.Error
	switch {
	case errors.Is(err, elevenlabs.ErrNoCredential):
		status = http.StatusServiceUnavailable
		code = "transcription_not_configured"
		message = "speech-to-text credential is not configured"
	case errors.Is(err, transcription.ErrEmptyTranscript):
		status = http.StatusBadGateway
		code = "transcription_empty"
		message = "transcription returned empty text"
	case errors.As(err, &sttErr):
		switch sttErr.StatusCode {
		case http.StatusUnauthorized:
			status = http.StatusBadGateway
			code = "transcription_credential_invalid"
			message = "speech-to-text credential was rejected"
		case http.StatusUnprocessableEntity:
			status = http.StatusUnprocessableEntity
			code = "unprocessable_audio"
			message = "speech-to-text backend rejected the audio file"
		default:
			status = http.StatusBadGateway
			code = "transcription_failed"
			message = "speech-to-text request failed"
		}
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
		code = "timeout"
		message = "request timed out"
	case errors.Is(err, context.Canceled):
		status = 499
		code = "canceled"
		message = "request canceled"
	}

	s.writeError(w, r, status, code, message, details)
}

func (s *server) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]any) {
	if rid := requestIDFromContext(r.Context()); rid != "" {
		w.Header().Set(requestIDHeader, rid)
	}
	writeJSON(w, status, model.ErrorResponse{
		Error:     model.APIError{Code: code, Message: message, Details: details},
		RequestID: requestIDFromContext(r.Context()),
	})
}

func (s *server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = newRequestID()
		}
		w.Header().Set(requestIDHeader, requestID)
		ctx := context.WithValue(r.Context(), requestIDContext, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		duration := time.Since(started)
		if s.metrics != nil {
			s.metrics.ObserveHTTP(route, r.Method, status, duration)
		}

		s.logger.Info("http_request",
			"request_id", requestIDFromContext(r.Context()),
			"method", r.Method,
			"route", route,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration_ms", duration.Milliseconds(),
		)
	})
}

func (s *server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", "request_id", requestIDFromContext(r.Context()), "panic", rec)
				s.writeError(w, r, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func allowedAudioFile(fileName string) bool {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), ".")) {
	case "mp3", "mp4", "wav", "webm", "m4a", "ogg":
		return true
	default:
		return false
	}
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func ensureBodyFullyConsumed(decoder *json.Decoder) error {
	var extra any
	if err := decoder.Decode(&extra); err != io.EOF {
		if err == nil {
			return fmt.Errorf("multiple JSON values")
		}
		return err
	}
	return nil
}

func cleanupMultipartForm(form *multipart.Form) {
	if form != nil {
		_ = form.RemoveAll()
	}
}

func requestIDFromContext(ctx context.Context) string {
	value, _ := ctx.Value(requestIDContext).(string)
	return value
}

func newRequestID() string {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("req-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}

func toNotesPayload(res notes.Result) model.NotesPayload {
	payload := model.NotesPayload{
		Summary:    res.Summary,
		Bullets:    res.Bullets,
		Quiz:       make([]model.QuizItem, 0, len(res.Quiz)),
		Flashcards: make([]model.FlashcardItem, 0, len(res.Flashcards)),
	}
	for _, qa := range res.Quiz {
		payload.Quiz = append(payload.Quiz, model.QuizItem{Question: qa.Question, Answer: qa.Answer})
	}
	for _, card := range res.Flashcards {
		payload.Flashcards = append(payload.Flashcards, model.FlashcardItem{Front: card.Front, Back: card.Back})
	}
	return payload
}

func fromNotesPayload(payload model.NotesPayload) notes.Result {
	res := notes.Result{
		Summary: payload.Summary,
		Bullets: payload.Bullets,
	}
	for _, item := range payload.Quiz {
		res.Quiz = append(res.Quiz, notes.QAPair{Question: item.Question, Answer: item.Answer})
	}
	for _, item := range payload.Flashcards {
		res.Flashcards = append(res.Flashcards, notes.Flashcard{Front: item.Front, Back: item.Back})
	}
	return res
}

func detailsForError(err error) map[string]any {
	if err == nil {
		return nil
	}
	details := map[string]any{"error": err.Error()}
	var sttErr *elevenlabs.Error
	if errors.As(err, &sttErr) {
		details["upstream_status"] = sttErr.StatusCode
		if sttErr.Body != "" {
			details["upstream_body"] = sttErr.Body
		}
	}
	return details
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
