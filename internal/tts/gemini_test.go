package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loqalabs/voicedoc/internal/config"
	"github.com/loqalabs/voicedoc/internal/gemini"
)

func newTestGeminiClient(t *testing.T, handler http.HandlerFunc) *gemini.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := gemini.New(context.Background(), config.GeminiConfig{
		APIKey:      "test-key",
		BaseURL:     server.URL,
		SpeechModel: "speech-model",
	})
	require.NoError(t, err)
	return client
}

func audioResponse(pcm []byte) string {
	return fmt.Sprintf(`{
		"candidates":[{
			"content":{"role":"model","parts":[{"inlineData":{"mimeType":"audio/L16;codec=pcm;rate=24000","data":%q}}]},
			"finishReason":"STOP"
		}]
	}`, base64.StdEncoding.EncodeToString(pcm))
}

func TestGeminiSynthDecodesInlineAudio(t *testing.T) {
	var (
		requestPath string
		requestBody map[string]any
	)
	client := newTestGeminiClient(t, func(w http.ResponseWriter, r *http.Request) {
		requestPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&requestBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(audioResponse([]byte{1, 2, 3, 4})))
	})
	synth, err := NewGeminiSynth(client)
	require.NoError(t, err)

	pcm, err := synth.Synthesize(context.Background(), SynthRequest{Text: "Read this aloud.", Voice: VoiceCharon})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, pcm)
	assert.Equal(t, "/v1beta/models/speech-model:generateContent", requestPath)

	genCfg, ok := requestBody["generationConfig"].(map[string]any)
	require.True(t, ok, "generationConfig missing: %v", requestBody)
	assert.Equal(t, []any{"AUDIO"}, genCfg["responseModalities"])
	speech := genCfg["speechConfig"].(map[string]any)
	voice := speech["voiceConfig"].(map[string]any)["prebuiltVoiceConfig"].(map[string]any)
	assert.Equal(t, "Charon", voice["voiceName"])
}

func TestGeminiSynthEmptyResponseIsEmptyPayload(t *testing.T) {
	client := newTestGeminiClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[]},"finishReason":"OTHER"}]}`))
	})
	synth, err := NewGeminiSynth(client)
	require.NoError(t, err)

	pcm, err := synth.Synthesize(context.Background(), SynthRequest{Text: "Hi."})
	require.NoError(t, err)
	assert.Empty(t, pcm)
}

func TestGeminiSynthAPIErrorFailsPipeline(t *testing.T) {
	client := newTestGeminiClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"bad voice","status":"INVALID_ARGUMENT"}}`))
	})
	synth, err := NewGeminiSynth(client)
	require.NoError(t, err)

	_, err = NewPipeline(synth, testLogger()).Synthesize(context.Background(), SynthRequest{Text: "Hi."})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSynthesis)
	assert.Contains(t, err.Error(), "status=400")
}

func TestNewGeminiSynthRequiresClient(t *testing.T) {
	_, err := NewGeminiSynth(nil)
	assert.Error(t, err)
}
