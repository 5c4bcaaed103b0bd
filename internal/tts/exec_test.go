package tts

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "backend.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestExecSynthConcatenatesChunks(t *testing.T) {
	script := writeScript(t, `cat >/dev/null
echo '{"pcm_base64":"AQID"}'
echo ''
echo '{"pcm_base64":"BAU="}'
`)
	synth, err := NewExecSynth(script, DefaultFormat)
	require.NoError(t, err)

	pcm, err := synth.Synthesize(context.Background(), SynthRequest{Text: "hello", Voice: VoiceKore})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, pcm)
}

func TestExecSynthReceivesRequest(t *testing.T) {
	out := filepath.Join(t.TempDir(), "request.json")
	script := writeScript(t, `cat > "$1"
echo '{"pcm_base64":"AAA="}'
`)
	synth, err := NewExecSynth(script+" "+out, DefaultFormat)
	require.NoError(t, err)

	_, err = synth.Synthesize(context.Background(), SynthRequest{Text: "hello", Voice: VoiceAoede})
	require.NoError(t, err)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"hello","voice":"Aoede","sample_rate":24000,"channels":1}`, string(data))
}

func TestExecSynthFailures(t *testing.T) {
	bad := writeScript(t, `cat >/dev/null
echo 'not json'
`)
	synth, err := NewExecSynth(bad, DefaultFormat)
	require.NoError(t, err)
	_, err = synth.Synthesize(context.Background(), SynthRequest{Text: "x"})
	assert.ErrorContains(t, err, "decode tts response")

	failing := writeScript(t, `cat >/dev/null
echo boom >&2
exit 2
`)
	synth, err = NewExecSynth(failing, DefaultFormat)
	require.NoError(t, err)
	_, err = synth.Synthesize(context.Background(), SynthRequest{Text: "x"})
	assert.ErrorContains(t, err, "boom")

	_, err = NewExecSynth("", DefaultFormat)
	assert.Error(t, err)
}
