package stt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/loqalabs/voicedoc/internal/bus"
	"github.com/loqalabs/voicedoc/internal/config"
	"github.com/loqalabs/voicedoc/internal/history"
	"github.com/loqalabs/voicedoc/internal/protocol"
)

const requestTimeout = 2 * time.Minute

// ErrEmptyTranscript is returned when a backend recognized no speech.
var ErrEmptyTranscript = fmt.Errorf("%w: empty transcript", ErrTranscription)

type Service struct {
	cfg         config.STTConfig
	bus         *bus.Client
	transcriber Transcriber
	history     *history.Store
	logger      *slog.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	sub         *nats.Subscription
	wg          sync.WaitGroup
}

// NewService wires a transcriber to the bus and the history store. busClient
// and store may be nil.
func NewService(parent context.Context, cfg config.STTConfig, busClient *bus.Client, transcriber Transcriber, store *history.Store, log *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	return &Service{
		cfg:         cfg,
		bus:         busClient,
		transcriber: transcriber,
		history:     store,
		logger:      log.With(slog.String("component", "stt-service")),
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (s *Service) Start() error {
	if !s.cfg.Enabled || s.bus == nil {
		return nil
	}
	sub, err := s.bus.Subscribe(protocol.SubjectSTTRequest, s.handleRequest)
	if err != nil {
		return fmt.Errorf("subscribe stt requests: %w", err)
	}
	s.sub = sub
	return nil
}

func (s *Service) Close() {
	s.cancel()
	if s.sub != nil {
		_ = s.sub.Drain()
	}
	s.wg.Wait()
}

func (s *Service) Healthy() bool {
	return !s.cfg.Enabled || s.bus == nil || s.sub != nil
}

// Transcribe runs one recording through the backend and records the outcome.
// Every returned error wraps ErrTranscription.
func (s *Service) Transcribe(ctx context.Context, req protocol.TranscribeRequest) (protocol.Transcript, error) {
	if !s.cfg.Enabled {
		return protocol.Transcript{}, fmt.Errorf("%w: stt is disabled", ErrTranscription)
	}
	if len(req.Audio) == 0 {
		return protocol.Transcript{}, fmt.Errorf("%w: audio is empty", ErrTranscription)
	}
	language := req.Language
	if language == "" {
		language = s.cfg.Language
	}

	start := time.Now()
	text, err := s.transcriber.Transcribe(ctx, TranscribeRequest{
		Audio:    req.Audio,
		MimeType: req.MimeType,
		Language: language,
	})
	if err == nil && strings.TrimSpace(text) == "" {
		err = ErrEmptyTranscript
	}
	if err != nil {
		if !errors.Is(err, ErrTranscription) {
			err = fmt.Errorf("%w: %w", ErrTranscription, err)
		}
		s.logger.Warn("transcription failed", slog.String("session_id", req.SessionID), slogError(err))
		if herr := s.history.RecordTranscribeFailure(ctx, req.SessionID, err.Error()); herr != nil {
			s.logger.Warn("failed to record transcription failure", slogError(herr))
		}
		return protocol.Transcript{}, err
	}

	text = strings.TrimSpace(text)
	record := history.Transcript{Text: text, Language: language, MimeType: req.MimeType, Bytes: len(req.Audio)}
	if herr := s.history.RecordTranscript(ctx, req.SessionID, record); herr != nil {
		s.logger.Warn("failed to record transcript", slogError(herr))
	}
	s.logger.Info("transcription complete",
		slog.String("session_id", req.SessionID),
		slog.Int("audio_bytes", len(req.Audio)),
		slog.Int("text_chars", len(text)),
		slog.Duration("latency", time.Since(start)))

	return protocol.Transcript{
		SessionID: req.SessionID,
		Text:      text,
		Language:  language,
		ReadBack:  req.ReadBack,
		Voice:     req.Voice,
		Timestamp: time.Now().UTC(),
	}, nil
}

func (s *Service) handleRequest(msg *nats.Msg) {
	var req protocol.TranscribeRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.logger.Warn("failed to decode stt request", slogError(err))
		return
	}
	if req.SessionID == "" {
		s.logger.Warn("stt request without session id dropped")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(s.ctx, requestTimeout)
		defer cancel()

		transcript, err := s.Transcribe(ctx, req)
		if err != nil {
			status := protocol.Status{SessionID: req.SessionID, Error: ErrTranscription.Error(), Timestamp: time.Now().UTC()}
			if perr := s.bus.PublishJSON(protocol.SubjectSTTError, status); perr != nil {
				s.logger.Warn("failed to publish stt error", slogError(perr))
			}
			return
		}
		if err := s.bus.PublishJSON(protocol.SubjectTranscriptFinal, transcript); err != nil {
			s.logger.Warn("failed to publish transcript", slogError(err))
		}
	}()
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
