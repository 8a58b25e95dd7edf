package transcribe

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/xaenox/moodlift-bot/internal/models"
)

// Path is where the transcription endpoint is mounted.
const Path = "/api/transcribe"

type response struct {
	Transcription string `json:"transcription,omitempty"`
	Error         string `json:"error,omitempty"`
}

type Handler struct {
	transcriber Transcriber
	maxBytes    int64
	logger      *zap.Logger
}

// NewHandler returns the endpoint handler. Uploads above maxBytes are
// rejected.
func NewHandler(t Transcriber, maxBytes int64, logger *zap.Logger) *Handler {
	return &Handler{transcriber: t, maxBytes: maxBytes, logger: logger}
}

// NewServer mounts the handler and a health check.
func NewServer(h *Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(Path, h)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return withLogging(mux, h.logger)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, response{Error: "method not allowed"})
		return
	}

	if h.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, response{Error: "Audio file too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, response{Error: "No audio file provided"})
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil || len(audio) == 0 {
		writeJSON(w, http.StatusBadRequest, response{Error: "No audio file provided"})
		return
	}

	lang := models.Language(r.FormValue("language"))
	if lang == "" {
		lang = models.English
	}

	text, err := h.transcriber.Transcribe(r.Context(), Clip{
		Audio:    audio,
		Filename: header.Filename,
		Language: lang,
	})
	if err != nil {
		h.logger.Error("Transcription error",
			zap.Error(err),
			zap.String("filename", header.Filename),
			zap.String("language", string(lang)))
		writeJSON(w, http.StatusInternalServerError, response{Error: "Failed to transcribe audio"})
		return
	}

	writeJSON(w, http.StatusOK, response{Transcription: text})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func withLogging(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)))
	})
}
