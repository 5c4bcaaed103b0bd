package tts

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSegmentShortTextIsSingleSegment(t *testing.T) {
	got := Segment("  Hello there. How are you?  ", 3000)
	if len(got) != 1 || got[0] != "Hello there. How are you?" {
		t.Fatalf("unexpected segments: %q", got)
	}
}

func TestSegmentEmptyText(t *testing.T) {
	got := Segment("", 3000)
	if len(got) != 1 || got[0] != "" {
		t.Fatalf("expected one empty segment, got %q", got)
	}
}

func TestSegmentRespectsBudget(t *testing.T) {
	sentence := "The quick brown fox jumps over the lazy dog. "
	text := strings.Repeat(sentence, 200)
	for _, max := range []int{10, 45, 100, 3000} {
		for i, seg := range Segment(text, max) {
			if n := utf8.RuneCountInString(seg); n > max {
				t.Fatalf("max=%d: segment %d has %d chars", max, i, n)
			}
		}
	}
}

func TestSegmentPreservesOrderAndContent(t *testing.T) {
	text := "One. Two! Three? Four\nFive. Six seven eight nine ten."
	segments := Segment(text, 12)
	joined := strings.Join(strings.Fields(strings.Join(segments, " ")), " ")
	want := strings.Join(strings.Fields(text), " ")
	if joined != want {
		t.Fatalf("content changed:\n got %q\nwant %q", joined, want)
	}
}

func TestSegmentBreaksAfterSentences(t *testing.T) {
	got := Segment("First sentence. Second one. Third.", 20)
	want := []string{"First sentence.", "Second one. Third."}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestSegmentHardCutWithoutWhitespace(t *testing.T) {
	got := Segment(strings.Repeat("a", 5000), 3000)
	if len(got) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(got))
	}
	if len(got[0]) != 3000 || len(got[1]) != 2000 {
		t.Fatalf("unexpected lengths %d and %d", len(got[0]), len(got[1]))
	}
}

func TestSegmentSplitsLongSentenceAtWhitespace(t *testing.T) {
	got := Segment("alpha beta gamma delta", 12)
	want := []string{"alpha beta", "gamma delta"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestSegmentCountsRunesNotBytes(t *testing.T) {
	text := strings.Repeat("ü", 10)
	got := Segment(text, 10)
	if len(got) != 1 || got[0] != text {
		t.Fatalf("multibyte text within budget was split: %q", got)
	}
	got = Segment(strings.Repeat("日本語。", 5), 8)
	for i, seg := range got {
		if !utf8.ValidString(seg) {
			t.Fatalf("segment %d is not valid UTF-8", i)
		}
		if n := utf8.RuneCountInString(seg); n > 8 {
			t.Fatalf("segment %d has %d runes", i, n)
		}
	}
}

func TestSegmentBlankRunBecomesEmptySegment(t *testing.T) {
	got := Segment("Hello.\n\n\nWorld.", 6)
	want := []string{"Hello.", "", "World."}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("got %q, want %q", got, want)
	}
}
