package tts

import (
	"errors"
	"fmt"
	"strings"
)

// Voice is a prebuilt voice name passed verbatim to the synthesis backend.
type Voice string

const (
	VoiceKore     Voice = "Kore"
	VoiceCharon   Voice = "Charon"
	VoiceAoede    Voice = "Aoede"
	VoicePuck     Voice = "Puck"
	VoiceAchernar Voice = "Achernar"
)

// DefaultVoice is used when a request does not name one.
const DefaultVoice = VoiceKore

var ErrUnknownVoice = errors.New("unknown voice")

// VoiceInfo pairs a voice with the archetype it is offered as.
type VoiceInfo struct {
	Name      Voice  `json:"name"`
	Archetype string `json:"archetype"`
}

var voices = []VoiceInfo{
	{Name: VoiceKore, Archetype: "neutral"},
	{Name: VoiceCharon, Archetype: "deep"},
	{Name: VoiceAoede, Archetype: "calm"},
	{Name: VoicePuck, Archetype: "energetic"},
	{Name: VoiceAchernar, Archetype: "soft"},
}

// Voices lists the supported voices in display order.
func Voices() []VoiceInfo {
	out := make([]VoiceInfo, len(voices))
	copy(out, voices)
	return out
}

// ParseVoice accepts a voice name or archetype, case-insensitively.
// An empty string selects DefaultVoice.
func ParseVoice(s string) (Voice, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultVoice, nil
	}
	for _, v := range voices {
		if strings.EqualFold(s, string(v.Name)) || strings.EqualFold(s, v.Archetype) {
			return v.Name, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownVoice, s)
}
