package readback

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/loqalabs/voicedoc/internal/bus"
	"github.com/loqalabs/voicedoc/internal/config"
	"github.com/loqalabs/voicedoc/internal/protocol"
)

// Service forwards final transcripts flagged for read-back to the TTS
// service, so a dictated document can be heard before it is saved.
type Service struct {
	cfg    config.ReadbackConfig
	bus    *bus.Client
	logger *slog.Logger
	sub    *nats.Subscription
}

func NewService(cfg config.ReadbackConfig, busClient *bus.Client, logger *slog.Logger) *Service {
	return &Service{
		cfg:    cfg,
		bus:    busClient,
		logger: logger.With(slog.String("component", "readback")),
	}
}

func (s *Service) Start() error {
	if !s.cfg.Enabled || s.bus == nil {
		return nil
	}
	sub, err := s.bus.Subscribe(protocol.SubjectTranscriptFinal, s.handleTranscript)
	if err != nil {
		return fmt.Errorf("subscribe transcripts: %w", err)
	}
	s.sub = sub
	return nil
}

func (s *Service) Close() {
	if s.sub != nil {
		_ = s.sub.Drain()
	}
}

func (s *Service) Healthy() bool {
	return !s.cfg.Enabled || s.bus == nil || s.sub != nil
}

func (s *Service) handleTranscript(msg *nats.Msg) {
	var transcript protocol.Transcript
	if err := json.Unmarshal(msg.Data, &transcript); err != nil {
		s.logger.Warn("readback failed to decode transcript", slogError(err))
		return
	}
	if !transcript.ReadBack || strings.TrimSpace(transcript.Text) == "" {
		return
	}

	voice := transcript.Voice
	if voice == "" {
		voice = s.cfg.DefaultVoice
	}
	req := protocol.TTSRequest{
		SessionID: transcript.SessionID,
		Text:      transcript.Text,
		Voice:     voice,
	}
	if err := s.bus.PublishJSON(protocol.SubjectTTSRequest, req); err != nil {
		s.logger.Warn("readback failed to publish tts request", slogError(err))
		return
	}
	s.logger.Debug("transcript queued for read-back", slog.String("session_id", transcript.SessionID))
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
