package tts

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loqalabs/voicedoc/internal/bus"
	"github.com/loqalabs/voicedoc/internal/config"
	"github.com/loqalabs/voicedoc/internal/history"
	"github.com/loqalabs/voicedoc/internal/natsserver"
	"github.com/loqalabs/voicedoc/internal/protocol"
)

func serviceConfig() config.TTSConfig {
	return config.TTSConfig{
		Enabled:         true,
		Mode:            "mock",
		Voice:           "Kore",
		SampleRate:      24000,
		Channels:        1,
		MaxSegmentChars: 3000,
		RequestTimeoutS: 5,
	}
}

func startTestBus(t *testing.T) *bus.Client {
	t.Helper()
	ns, err := natsserver.Start(config.BusConfig{Embedded: true, Port: -1}, testLogger())
	require.NoError(t, err)
	t.Cleanup(ns.Shutdown)
	client, err := bus.Connect("tts-test", config.BusConfig{Servers: []string{ns.ClientURL()}, ConnectTimeout: 2000}, testLogger())
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func TestServiceSpeakRecordsHistory(t *testing.T) {
	store, err := history.Open(context.Background(), config.HistoryConfig{
		Path:          filepath.Join(t.TempDir(), "history.db"),
		RetentionMode: "session",
	}, testLogger())
	require.NoError(t, err)
	defer store.Close()

	synth := &scriptedSynth{outputs: [][]byte{fill(480, 0)}}
	svc, err := NewService(context.Background(), serviceConfig(), nil, synth, store, testLogger())
	require.NoError(t, err)
	defer svc.Close()

	audio, err := svc.Speak(context.Background(), protocol.TTSRequest{SessionID: "s1", Text: "Hello.", Voice: "deep"})
	require.NoError(t, err)
	assert.Len(t, audio.PCM, 480)
	assert.Equal(t, VoiceCharon, synth.calls[0].Voice)

	events, err := store.ListSessionEvents(context.Background(), "s1", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, history.EventSpeech, events[0].Type)
	var sp history.Speech
	require.NoError(t, json.Unmarshal(events[0].Payload, &sp))
	assert.Equal(t, "Charon", sp.Voice)
	assert.Equal(t, 1, sp.Segments)
	assert.Equal(t, int64(10), sp.DurationMS)

	synth.errs = map[int]error{1: errors.New("boom")}
	_, err = svc.Speak(context.Background(), protocol.TTSRequest{SessionID: "s1", Text: "Again."})
	require.ErrorIs(t, err, ErrSynthesis)
	events, err = store.ListSessionEvents(context.Background(), "s1", 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, history.EventSpeechFailed, events[1].Type)
}

func TestServiceSpeakRejectsBadInput(t *testing.T) {
	svc, err := NewService(context.Background(), serviceConfig(), nil, &scriptedSynth{}, nil, testLogger())
	require.NoError(t, err)
	defer svc.Close()

	_, err = svc.Speak(context.Background(), protocol.TTSRequest{Text: "hi", Voice: "robot"})
	assert.ErrorIs(t, err, ErrUnknownVoice)
	_, err = svc.Speak(context.Background(), protocol.TTSRequest{Text: " \n "})
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestNewServiceRejectsUnknownDefaultVoice(t *testing.T) {
	cfg := serviceConfig()
	cfg.Voice = "Nobody"
	_, err := NewService(context.Background(), cfg, nil, &scriptedSynth{}, nil, testLogger())
	assert.ErrorIs(t, err, ErrUnknownVoice)
}

func TestServiceBusPublishesWAVThenDone(t *testing.T) {
	client := startTestBus(t)
	svc, err := NewService(context.Background(), serviceConfig(), client, &scriptedSynth{outputs: [][]byte{fill(96, 0)}}, nil, testLogger())
	require.NoError(t, err)
	require.NoError(t, svc.Start())
	defer svc.Close()

	msgs := make(chan *nats.Msg, 4)
	sub, err := client.Conn().ChanSubscribe("tts.>", msgs)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, client.PublishJSON(protocol.SubjectTTSRequest, protocol.TTSRequest{SessionID: "bus-1", Text: "Hello."}))

	var subjects []string
	deadline := time.After(5 * time.Second)
	for len(subjects) < 3 {
		select {
		case msg := <-msgs:
			subjects = append(subjects, msg.Subject)
			switch msg.Subject {
			case protocol.SubjectTTSAudio:
				var packet protocol.SpeechAudio
				require.NoError(t, json.Unmarshal(msg.Data, &packet))
				assert.Equal(t, "bus-1", packet.SessionID)
				assert.Equal(t, 24000, packet.SampleRate)
				assert.Len(t, packet.WAV, 44+96)
				assert.Equal(t, "RIFF", string(packet.WAV[:4]))
			case protocol.SubjectTTSDone:
				var status protocol.Status
				require.NoError(t, json.Unmarshal(msg.Data, &status))
				assert.True(t, status.Completed)
			}
		case <-deadline:
			t.Fatalf("timed out; saw %v", subjects)
		}
	}
	assert.Equal(t, []string{protocol.SubjectTTSRequest, protocol.SubjectTTSAudio, protocol.SubjectTTSDone}, subjects)
}

func TestServiceBusPublishesGenericError(t *testing.T) {
	client := startTestBus(t)
	synth := &scriptedSynth{errs: map[int]error{0: errors.New("api key leaked here")}}
	svc, err := NewService(context.Background(), serviceConfig(), client, synth, nil, testLogger())
	require.NoError(t, err)
	require.NoError(t, svc.Start())
	defer svc.Close()

	failures := make(chan *nats.Msg, 1)
	sub, err := client.Conn().ChanSubscribe(protocol.SubjectTTSError, failures)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, client.PublishJSON(protocol.SubjectTTSRequest, protocol.TTSRequest{SessionID: "bus-2", Text: "Hello."}))

	select {
	case msg := <-failures:
		var status protocol.Status
		require.NoError(t, json.Unmarshal(msg.Data, &status))
		assert.Equal(t, "bus-2", status.SessionID)
		assert.Equal(t, ErrSynthesis.Error(), status.Error)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for tts error")
	}
}
