package stt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/loqalabs/voicedoc/internal/gemini"
)

const transcribePrompt = "Transcribe this audio recording verbatim. The spoken language is %s. " +
	"Return only the transcript text, with punctuation and paragraph breaks, and no commentary."

// GeminiTranscriber sends the recording inline to a multimodal Gemini model.
type GeminiTranscriber struct {
	client *gemini.Client
}

func NewGeminiTranscriber(client *gemini.Client) (*GeminiTranscriber, error) {
	if client == nil {
		return nil, errors.New("gemini client is nil")
	}
	return &GeminiTranscriber{client: client}, nil
}

func (g *GeminiTranscriber) Transcribe(ctx context.Context, req TranscribeRequest) (string, error) {
	if len(req.Audio) == 0 {
		return "", errors.New("audio is empty")
	}
	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = "audio/wav"
	}
	language := req.Language
	if language == "" {
		language = "en"
	}

	parts := []*genai.Part{
		genai.NewPartFromText(fmt.Sprintf(transcribePrompt, language)),
		genai.NewPartFromBytes(req.Audio, mimeType),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := g.client.Generate(ctx, g.client.TranscribeModel(), contents, nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text()), nil
}
