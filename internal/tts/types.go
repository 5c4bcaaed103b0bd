package tts

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// MaxSegmentChars keeps each synthesis call under the hosted service's input ceiling.
const MaxSegmentChars = 3000

var (
	// ErrSynthesis is wrapped by every pipeline failure.
	ErrSynthesis = errors.New("speech synthesis failed")
	// ErrNoAudio is returned when no segment produced any audio bytes.
	ErrNoAudio = fmt.Errorf("%w: no audio produced", ErrSynthesis)
)

// SynthRequest contains parameters to synthesize speech for one piece of text.
type SynthRequest struct {
	SessionID string
	Text      string
	Voice     Voice
}

// Synthesizer is the contract for producing raw PCM for a single segment.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthRequest) ([]byte, error)
}

// Format describes uncompressed PCM audio.
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// DefaultFormat is the output of the hosted speech model: 24 kHz mono signed 16-bit.
var DefaultFormat = Format{SampleRate: 24000, Channels: 1, BitDepth: 16}

func (f Format) bytesPerSecond() int {
	return f.SampleRate * f.Channels * f.BitDepth / 8
}

// Audio is the combined result of a synthesis run. The caller owns PCM.
type Audio struct {
	Format   Format
	PCM      []byte
	Segments int
}

// Duration reports the playback length of the PCM data.
func (a Audio) Duration() time.Duration {
	bps := a.Format.bytesPerSecond()
	if bps <= 0 {
		return 0
	}
	return time.Duration(len(a.PCM)) * time.Second / time.Duration(bps)
}
