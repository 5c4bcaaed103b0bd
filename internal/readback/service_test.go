package readback

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loqalabs/voicedoc/internal/bus"
	"github.com/loqalabs/voicedoc/internal/config"
	"github.com/loqalabs/voicedoc/internal/natsserver"
	"github.com/loqalabs/voicedoc/internal/protocol"
)

func setup(t *testing.T) (*bus.Client, chan *nats.Msg) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ns, err := natsserver.Start(config.BusConfig{Embedded: true, Port: -1}, logger)
	require.NoError(t, err)
	t.Cleanup(ns.Shutdown)
	client, err := bus.Connect("readback-test", config.BusConfig{Servers: []string{ns.ClientURL()}, ConnectTimeout: 2000}, logger)
	require.NoError(t, err)
	t.Cleanup(client.Close)

	svc := NewService(config.ReadbackConfig{Enabled: true, DefaultVoice: "Aoede"}, client, logger)
	require.NoError(t, svc.Start())
	t.Cleanup(svc.Close)
	require.True(t, svc.Healthy())

	requests := make(chan *nats.Msg, 4)
	sub, err := client.Conn().ChanSubscribe(protocol.SubjectTTSRequest, requests)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Unsubscribe() })
	return client, requests
}

func TestReadbackForwardsFlaggedTranscripts(t *testing.T) {
	client, requests := setup(t)

	require.NoError(t, client.PublishJSON(protocol.SubjectTranscriptFinal, protocol.Transcript{
		SessionID: "s1", Text: "Dear diary.", ReadBack: true,
	}))
	require.NoError(t, client.PublishJSON(protocol.SubjectTranscriptFinal, protocol.Transcript{
		SessionID: "s2", Text: "Second entry.", ReadBack: true, Voice: "Puck",
	}))

	var got []protocol.TTSRequest
	for len(got) < 2 {
		select {
		case msg := <-requests:
			var req protocol.TTSRequest
			require.NoError(t, json.Unmarshal(msg.Data, &req))
			got = append(got, req)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out; got %v", got)
		}
	}
	assert.Equal(t, protocol.TTSRequest{SessionID: "s1", Text: "Dear diary.", Voice: "Aoede"}, got[0])
	assert.Equal(t, protocol.TTSRequest{SessionID: "s2", Text: "Second entry.", Voice: "Puck"}, got[1])
}

func TestReadbackIgnoresUnflaggedTranscripts(t *testing.T) {
	client, requests := setup(t)

	require.NoError(t, client.PublishJSON(protocol.SubjectTranscriptFinal, protocol.Transcript{SessionID: "s1", Text: "quiet"}))
	require.NoError(t, client.PublishJSON(protocol.SubjectTranscriptFinal, protocol.Transcript{SessionID: "s2", Text: "  ", ReadBack: true}))
	require.NoError(t, client.Conn().Flush())

	select {
	case msg := <-requests:
		t.Fatalf("unexpected tts request: %s", msg.Data)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestReadbackDisabled(t *testing.T) {
	svc := NewService(config.ReadbackConfig{}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, svc.Start())
	assert.True(t, svc.Healthy())
	svc.Close()
}
