package stt

import (
	"context"
	"errors"
	"fmt"

	"github.com/loqalabs/voicedoc/internal/config"
	"github.com/loqalabs/voicedoc/internal/gemini"
)

// ErrTranscription is wrapped by every transcription failure reported to callers.
var ErrTranscription = errors.New("transcription failed")

// TranscribeRequest carries one recording to transcribe.
type TranscribeRequest struct {
	Audio    []byte
	MimeType string
	Language string
}

// Transcriber abstracts STT backends.
type Transcriber interface {
	Transcribe(ctx context.Context, req TranscribeRequest) (string, error)
}

// NewTranscriber selects the backend named by cfg.Mode. client is only
// required for mode=gemini.
func NewTranscriber(cfg config.STTConfig, client *gemini.Client) (Transcriber, error) {
	switch cfg.Mode {
	case "", "mock":
		return NewMockTranscriber(), nil
	case "exec":
		return NewExecTranscriber(cfg)
	case "gemini":
		return NewGeminiTranscriber(client)
	default:
		return nil, fmt.Errorf("unsupported stt mode %q", cfg.Mode)
	}
}
