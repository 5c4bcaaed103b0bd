package tts

import (
	"context"
	"time"
	"unicode/utf8"
)

// mockCharDuration is the amount of silence produced per input character.
const mockCharDuration = 20 * time.Millisecond

type mockSynth struct {
	format Format
	delay  time.Duration
}

// NewMockSynth returns silence proportional to the segment length.
func NewMockSynth(format Format) Synthesizer {
	return &mockSynth{format: format, delay: 10 * time.Millisecond}
}

func (m *mockSynth) Synthesize(ctx context.Context, req SynthRequest) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(m.delay):
	}
	frame := m.format.Channels * m.format.BitDepth / 8
	samples := utf8.RuneCountInString(req.Text) * int(mockCharDuration/time.Millisecond) * m.format.SampleRate / 1000
	return make([]byte, samples*frame), nil
}
