package stt

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loqalabs/voicedoc/internal/config"
	"github.com/loqalabs/voicedoc/internal/gemini"
)

func TestNewTranscriberModes(t *testing.T) {
	tr, err := NewTranscriber(config.STTConfig{Mode: "mock"}, nil)
	require.NoError(t, err)
	text, err := tr.Transcribe(context.Background(), TranscribeRequest{Audio: []byte{1, 2, 3}, MimeType: "audio/wav"})
	require.NoError(t, err)
	assert.Equal(t, "[transcript of 3 bytes of audio/wav]", text)

	_, err = NewTranscriber(config.STTConfig{Mode: "gemini"}, nil)
	assert.Error(t, err)

	_, err = NewTranscriber(config.STTConfig{Mode: "whisper"}, nil)
	assert.ErrorContains(t, err, "unsupported stt mode")
}

func TestExecTranscriber(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}
	script := filepath.Join(t.TempDir(), "stt.sh")
	body := `#!/bin/sh
[ "$1" = "--audio" ] || exit 3
[ -s "$2" ] || exit 4
printf '{"text":"heard %s in %s"}' "$4" "$6"
`
	require.NoError(t, os.WriteFile(script, []byte(body), 0o755))

	tr, err := NewExecTranscriber(config.STTConfig{Command: script, Language: "en"})
	require.NoError(t, err)

	text, err := tr.Transcribe(context.Background(), TranscribeRequest{Audio: []byte("RIFF"), MimeType: "audio/wav", Language: "de"})
	require.NoError(t, err)
	assert.Equal(t, "heard audio/wav in de", text)
}

func TestExecTranscriberCommandFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}
	script := filepath.Join(t.TempDir(), "stt.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho 'model missing' >&2\nexit 1\n"), 0o755))

	tr, err := NewExecTranscriber(config.STTConfig{Command: script})
	require.NoError(t, err)
	_, err = tr.Transcribe(context.Background(), TranscribeRequest{Audio: []byte{1}})
	assert.ErrorContains(t, err, "model missing")
}

func TestGeminiTranscriber(t *testing.T) {
	var (
		requestPath string
		requestBody map[string]any
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&requestBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"  Dear team, the launch moves to Friday.\n"}]},"finishReason":"STOP"}]}`))
	}))
	defer server.Close()

	client, err := gemini.New(context.Background(), config.GeminiConfig{
		APIKey:          "test-key",
		BaseURL:         server.URL,
		TranscribeModel: "listen-model",
	})
	require.NoError(t, err)
	tr, err := NewGeminiTranscriber(client)
	require.NoError(t, err)

	audio := []byte{0x52, 0x49, 0x46, 0x46}
	text, err := tr.Transcribe(context.Background(), TranscribeRequest{Audio: audio, MimeType: "audio/ogg", Language: "en"})
	require.NoError(t, err)
	assert.Equal(t, "Dear team, the launch moves to Friday.", text)
	assert.Equal(t, "/v1beta/models/listen-model:generateContent", requestPath)

	contents := requestBody["contents"].([]any)
	require.Len(t, contents, 1)
	parts := contents[0].(map[string]any)["parts"].([]any)
	require.Len(t, parts, 2)
	assert.Contains(t, parts[0].(map[string]any)["text"], "verbatim")
	inline := parts[1].(map[string]any)["inlineData"].(map[string]any)
	assert.Equal(t, "audio/ogg", inline["mimeType"])
	assert.Equal(t, base64.StdEncoding.EncodeToString(audio), inline["data"])
}

func TestGeminiTranscriberRejectsEmptyAudio(t *testing.T) {
	client, err := gemini.New(context.Background(), config.GeminiConfig{APIKey: "k"})
	require.NoError(t, err)
	tr, err := NewGeminiTranscriber(client)
	require.NoError(t, err)
	_, err = tr.Transcribe(context.Background(), TranscribeRequest{})
	assert.Error(t, err)
}
