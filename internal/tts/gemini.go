package tts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/loqalabs/voicedoc/internal/gemini"
)

// GeminiSynth synthesizes speech with the hosted Gemini TTS model. The API
// returns base64 inline audio which the client decodes to raw PCM.
type GeminiSynth struct {
	client *gemini.Client
}

func NewGeminiSynth(client *gemini.Client) (*GeminiSynth, error) {
	if client == nil {
		return nil, errors.New("gemini client is nil")
	}
	return &GeminiSynth{client: client}, nil
}

func (g *GeminiSynth) Synthesize(ctx context.Context, req SynthRequest) ([]byte, error) {
	voice := req.Voice
	if voice == "" {
		voice = DefaultVoice
	}
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: string(voice)},
			},
		},
	}
	resp, err := g.client.Generate(ctx, g.client.SpeechModel(), genai.Text(req.Text), cfg)
	if err != nil {
		return nil, err
	}
	blob := gemini.InlineData(resp)
	if blob == nil {
		return nil, nil
	}
	if blob.MIMEType != "" && !strings.HasPrefix(strings.ToLower(blob.MIMEType), "audio/") {
		return nil, fmt.Errorf("unexpected inline data type %q", blob.MIMEType)
	}
	return blob.Data, nil
}
