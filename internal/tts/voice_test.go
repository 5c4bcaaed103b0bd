package tts

import (
	"errors"
	"testing"
)

func TestParseVoice(t *testing.T) {
	cases := map[string]Voice{
		"":          DefaultVoice,
		"Kore":      VoiceKore,
		"charon":    VoiceCharon,
		" AOEDE ":   VoiceAoede,
		"energetic": VoicePuck,
		"Soft":      VoiceAchernar,
		"deep":      VoiceCharon,
	}
	for input, want := range cases {
		got, err := ParseVoice(input)
		if err != nil {
			t.Fatalf("ParseVoice(%q): %v", input, err)
		}
		if got != want {
			t.Fatalf("ParseVoice(%q) = %s, want %s", input, got, want)
		}
	}
}

func TestParseVoiceUnknown(t *testing.T) {
	_, err := ParseVoice("Robot")
	if !errors.Is(err, ErrUnknownVoice) {
		t.Fatalf("expected ErrUnknownVoice, got %v", err)
	}
}

func TestVoicesReturnsCopy(t *testing.T) {
	list := Voices()
	if len(list) != 5 {
		t.Fatalf("expected 5 voices, got %d", len(list))
	}
	list[0].Name = "changed"
	if Voices()[0].Name != VoiceKore {
		t.Fatalf("Voices exposed internal slice")
	}
}
