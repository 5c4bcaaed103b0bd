package runtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/loqalabs/voicedoc/internal/bus"
	"github.com/loqalabs/voicedoc/internal/history"
	"github.com/loqalabs/voicedoc/internal/protocol"
	"github.com/loqalabs/voicedoc/internal/stt"
	"github.com/loqalabs/voicedoc/internal/tts"
)

const maxSpeechBodyBytes = 1 << 20

// api serves the HTTP surface. bus and history may be nil.
type api struct {
	stt            *stt.Service
	tts            *tts.Service
	bus            *bus.Client
	history        *history.Store
	defaultVoice   string
	maxUploadBytes int64
	logger         *slog.Logger
	ready          func() bool
	newID          func() string
}

type speechRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
	Voice     string `json:"voice"`
}

type transcriptionResponse struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
	Language  string `json:"language,omitempty"`
}

type sessionResponse struct {
	SessionID string          `json:"session_id"`
	Events    []history.Event `json:"events"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (a *api) routes(metrics http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", a.handleHealth)
	mux.HandleFunc("GET /readyz", a.handleReady)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}
	mux.HandleFunc("GET /v1/voices", a.handleVoices)
	mux.HandleFunc("POST /v1/transcriptions", a.handleTranscription)
	mux.HandleFunc("POST /v1/speech", a.handleSpeech)
	mux.HandleFunc("GET /v1/sessions/{id}", a.handleSession)
	return mux
}

func (a *api) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (a *api) handleReady(w http.ResponseWriter, _ *http.Request) {
	if a.ready == nil || a.ready() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}

func (a *api) handleVoices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"default": a.defaultVoice,
		"voices":  tts.Voices(),
	})
}

func (a *api) handleTranscription(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.maxUploadBytes)
	if err := r.ParseMultipartForm(a.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", a.maxUploadBytes))
			return
		}
		writeError(w, http.StatusBadRequest, "expected multipart form with a file field")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()
	audio, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	if len(audio) == 0 {
		writeError(w, http.StatusBadRequest, "uploaded file is empty")
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(audio)
	}
	readBack, _ := strconv.ParseBool(r.FormValue("read_back"))
	req := protocol.TranscribeRequest{
		SessionID: a.sessionID(r.FormValue("session_id")),
		Audio:     audio,
		MimeType:  mimeType,
		Language:  r.FormValue("language"),
		ReadBack:  readBack,
		Voice:     r.FormValue("voice"),
	}
	if err := a.history.AppendSession(r.Context(), req.SessionID, "http"); err != nil {
		a.logger.Warn("failed to record session", slogError(err))
	}

	transcript, err := a.stt.Transcribe(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusBadGateway, stt.ErrTranscription.Error())
		return
	}
	if a.bus != nil {
		if err := a.bus.PublishJSON(protocol.SubjectTranscriptFinal, transcript); err != nil {
			a.logger.Warn("failed to publish transcript", slogError(err))
		}
	}
	writeJSON(w, http.StatusOK, transcriptionResponse{
		SessionID: transcript.SessionID,
		Text:      transcript.Text,
		Language:  transcript.Language,
	})
}

func (a *api) handleSpeech(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSpeechBodyBytes)
	var body speechRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(body.Text) == "" {
		writeError(w, http.StatusBadRequest, tts.ErrEmptyText.Error())
		return
	}
	sessionID := a.sessionID(body.SessionID)
	if err := a.history.AppendSession(r.Context(), sessionID, "http"); err != nil {
		a.logger.Warn("failed to record session", slogError(err))
	}

	audio, err := a.tts.Speak(r.Context(), protocol.TTSRequest{SessionID: sessionID, Text: body.Text, Voice: body.Voice})
	switch {
	case errors.Is(err, tts.ErrUnknownVoice), errors.Is(err, tts.ErrEmptyText):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusBadGateway, tts.ErrSynthesis.Error())
		return
	}

	wav, err := audio.WAV()
	if err != nil {
		a.logger.Warn("failed to encode wav", slogError(err))
		writeError(w, http.StatusBadGateway, tts.ErrSynthesis.Error())
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Length", strconv.Itoa(len(wav)))
	w.Header().Set("X-Session-ID", sessionID)
	w.Header().Set("X-Audio-Segments", strconv.Itoa(audio.Segments))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(wav)
}

func (a *api) handleSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	events, err := a.history.ListSessionEvents(r.Context(), id, limit)
	if err != nil {
		a.logger.Warn("failed to list session events", slogError(err))
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	if len(events) == 0 {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{SessionID: id, Events: events})
}

func (a *api) sessionID(requested string) string {
	if id := strings.TrimSpace(requested); id != "" {
		return id
	}
	if a.newID != nil {
		return a.newID()
	}
	return uuid.NewString()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
