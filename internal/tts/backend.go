package tts

import (
	"fmt"

	"github.com/loqalabs/voicedoc/internal/config"
	"github.com/loqalabs/voicedoc/internal/gemini"
)

// FormatFromConfig returns the PCM format configured for synthesis.
func FormatFromConfig(cfg config.TTSConfig) Format {
	f := DefaultFormat
	if cfg.SampleRate > 0 {
		f.SampleRate = cfg.SampleRate
	}
	if cfg.Channels > 0 {
		f.Channels = cfg.Channels
	}
	return f
}

// NewSynthesizer selects the backend named by cfg.Mode. client is only
// required for mode=gemini.
func NewSynthesizer(cfg config.TTSConfig, client *gemini.Client) (Synthesizer, error) {
	format := FormatFromConfig(cfg)
	switch cfg.Mode {
	case "", "mock":
		return NewMockSynth(format), nil
	case "exec":
		return NewExecSynth(cfg.Command, format)
	case "gemini":
		return NewGeminiSynth(client)
	default:
		return nil, fmt.Errorf("unsupported tts mode %q", cfg.Mode)
	}
}
