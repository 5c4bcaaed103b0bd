// Package gemini wraps the hosted Gemini API client shared by the
// transcription and speech backends.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/loqalabs/voicedoc/internal/config"
)

const (
	defaultTranscribeModel = "gemini-2.5-flash"
	defaultSpeechModel     = "gemini-2.5-flash-preview-tts"
	defaultRequestTimeout  = 120 * time.Second
)

// Client is an explicitly constructed handle to the hosted API. It is safe
// for concurrent use.
type Client struct {
	models          *genai.Models
	limiter         *rate.Limiter
	transcribeModel string
	speechModel     string
}

// New builds a client from configuration. The API key is required.
func New(ctx context.Context, cfg config.GeminiConfig) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	timeout := defaultRequestTimeout
	if cfg.RequestTimeoutMS > 0 {
		timeout = time.Duration(cfg.RequestTimeoutMS) * time.Millisecond
	}

	clientConfig := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: timeout},
	}
	if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		clientConfig.HTTPOptions.BaseURL = base
	}
	if cfg.APIVersion != "" {
		clientConfig.HTTPOptions.APIVersion = cfg.APIVersion
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	c := &Client{
		models:          client.Models,
		transcribeModel: coalesce(cfg.TranscribeModel, defaultTranscribeModel),
		speechModel:     coalesce(cfg.SpeechModel, defaultSpeechModel),
	}
	if cfg.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	return c, nil
}

func (c *Client) TranscribeModel() string { return c.transcribeModel }

func (c *Client) SpeechModel() string { return c.speechModel }

// Generate issues one generateContent call, waiting on the request limiter
// first when one is configured.
func (c *Client) Generate(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("gemini rate limiter: %w", err)
		}
	}
	resp, err := c.models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("gemini request failed (status=%d): %s", apiErr.Code, strings.TrimSpace(apiErr.Message))
		}
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	return resp, nil
}

// InlineData returns the first inline blob of the first candidate, or nil
// when the response carries none.
func InlineData(resp *genai.GenerateContentResponse) *genai.Blob {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil
	}
	content := resp.Candidates[0].Content
	if content == nil {
		return nil
	}
	for _, part := range content.Parts {
		if part != nil && part.InlineData != nil {
			return part.InlineData
		}
	}
	return nil
}

func coalesce(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}
