package tts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/nats-io/nats.go"

	"github.com/loqalabs/voicedoc/internal/bus"
	"github.com/loqalabs/voicedoc/internal/config"
	"github.com/loqalabs/voicedoc/internal/history"
	"github.com/loqalabs/voicedoc/internal/protocol"
)

// ErrEmptyText is returned for requests with nothing to vocalize.
var ErrEmptyText = errors.New("text is empty")

type Service struct {
	cfg      config.TTSConfig
	bus      *bus.Client
	pipeline *Pipeline
	history  *history.Store
	voice    Voice
	timeout  time.Duration
	sub      *nats.Subscription
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	logger   *slog.Logger
}

// NewService wires a synthesizer to the bus and the history store. busClient
// and store may be nil.
func NewService(parent context.Context, cfg config.TTSConfig, busClient *bus.Client, synth Synthesizer, store *history.Store, log *slog.Logger) (*Service, error) {
	voice, err := ParseVoice(cfg.Voice)
	if err != nil {
		return nil, fmt.Errorf("tts.voice: %w", err)
	}
	timeout := time.Duration(cfg.RequestTimeoutS) * time.Second
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	pipeline := NewPipeline(synth, log,
		WithMaxChars(cfg.MaxSegmentChars),
		WithFormat(FormatFromConfig(cfg)))
	ctx, cancel := context.WithCancel(parent)
	return &Service{
		cfg:      cfg,
		bus:      busClient,
		pipeline: pipeline,
		history:  store,
		voice:    voice,
		timeout:  timeout,
		ctx:      ctx,
		cancel:   cancel,
		logger:   log.With(slog.String("component", "tts-service")),
	}, nil
}

func (s *Service) Start() error {
	if !s.cfg.Enabled || s.bus == nil {
		return nil
	}
	sub, err := s.bus.Subscribe(protocol.SubjectTTSRequest, s.handleRequest)
	if err != nil {
		return fmt.Errorf("subscribe tts requests: %w", err)
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

func (s *Service) Healthy() bool { return !s.cfg.Enabled || s.bus == nil || s.sub != nil }

// Speak synthesizes req.Text with the requested voice, falling back to the
// configured default, and records the outcome. Backend failures wrap
// ErrSynthesis; bad input returns ErrEmptyText or ErrUnknownVoice.
func (s *Service) Speak(ctx context.Context, req protocol.TTSRequest) (Audio, error) {
	if !s.cfg.Enabled {
		return Audio{}, fmt.Errorf("%w: tts is disabled", ErrSynthesis)
	}
	voice := s.voice
	if req.Voice != "" {
		v, err := ParseVoice(req.Voice)
		if err != nil {
			return Audio{}, err
		}
		voice = v
	}
	if strings.TrimSpace(req.Text) == "" {
		return Audio{}, ErrEmptyText
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	record := history.Speech{Voice: string(voice), TextChars: utf8.RuneCountInString(req.Text)}
	audio, err := s.pipeline.Synthesize(ctx, SynthRequest{SessionID: req.SessionID, Text: req.Text, Voice: voice})
	if err != nil {
		record.Error = err.Error()
	} else {
		record.Segments = audio.Segments
		record.Bytes = len(audio.PCM)
		record.DurationMS = audio.Duration().Milliseconds()
	}
	if herr := s.history.RecordSpeech(context.WithoutCancel(ctx), req.SessionID, record); herr != nil {
		s.logger.Warn("failed to record speech", slogError(herr))
	}
	return audio, err
}

func (s *Service) handleRequest(msg *nats.Msg) {
	var req protocol.TTSRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.logger.Warn("failed to decode tts request", slogError(err))
		return
	}
	if req.SessionID == "" {
		s.logger.Warn("tts request without session id dropped")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		audio, err := s.Speak(s.ctx, req)
		if err != nil {
			s.logger.Warn("tts request failed", slog.String("session_id", req.SessionID), slogError(err))
			s.publishStatus(protocol.SubjectTTSError, req.SessionID, publicError(err))
			return
		}
		wav, err := audio.WAV()
		if err != nil {
			s.logger.Warn("failed to encode wav", slogError(err))
			s.publishStatus(protocol.SubjectTTSError, req.SessionID, ErrSynthesis.Error())
			return
		}
		packet := protocol.SpeechAudio{
			SessionID:  req.SessionID,
			SampleRate: audio.Format.SampleRate,
			Channels:   audio.Format.Channels,
			Segments:   audio.Segments,
			WAV:        wav,
		}
		if err := s.bus.PublishJSON(protocol.SubjectTTSAudio, packet); err != nil {
			s.logger.Warn("failed to publish tts audio", slogError(err))
			s.publishStatus(protocol.SubjectTTSError, req.SessionID, "audio exceeds bus payload limit")
			return
		}
		s.publishStatus(protocol.SubjectTTSDone, req.SessionID, "")
	}()
}

func (s *Service) publishStatus(subject, sessionID, reason string) {
	status := protocol.Status{
		SessionID: sessionID,
		Completed: reason == "",
		Error:     reason,
		Timestamp: time.Now().UTC(),
	}
	if err := s.bus.PublishJSON(subject, status); err != nil {
		s.logger.Warn("failed to publish tts status", slog.String("subject", subject), slogError(err))
	}
}

// publicError maps a failure to a message safe to hand to clients; backend
// detail stays in the logs.
func publicError(err error) string {
	switch {
	case errors.Is(err, ErrUnknownVoice), errors.Is(err, ErrEmptyText):
		return err.Error()
	default:
		return ErrSynthesis.Error()
	}
}
