package tts

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Segment splits text into trimmed pieces of at most maxChars characters,
// breaking after sentence punctuation or newlines where possible and at
// whitespace (or a hard cut) inside longer runs. Segments may be empty;
// callers drop those before synthesis.
func Segment(text string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = MaxSegmentChars
	}
	if utf8.RuneCountInString(text) <= maxChars {
		return []string{strings.TrimSpace(text)}
	}

	var (
		segments []string
		buf      []rune
	)
	emit := func(r []rune) {
		segments = append(segments, strings.TrimSpace(string(r)))
	}

	for _, unit := range splitUnits(text) {
		switch {
		case len(unit) > maxChars:
			if len(buf) > 0 {
				emit(buf)
				buf = nil
			}
			for len(unit) > maxChars {
				cut := breakPoint(unit, maxChars)
				emit(unit[:cut])
				unit = unit[cut:]
			}
			buf = append(buf, unit...)
		case len(buf)+len(unit) > maxChars:
			emit(buf)
			buf = append([]rune(nil), unit...)
		default:
			buf = append(buf, unit...)
		}
	}
	if len(buf) > 0 {
		emit(buf)
	}
	return segments
}

// splitUnits cuts text after each sentence terminator or newline, keeping the
// delimiter and any whitespace that follows it with the preceding unit.
func splitUnits(text string) [][]rune {
	runes := []rune(text)
	var units [][]rune
	start := 0
	for i := 0; i < len(runes); i++ {
		if !isUnitBreak(runes[i]) {
			continue
		}
		j := i + 1
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		units = append(units, runes[start:j])
		start = j
		i = j - 1
	}
	if start < len(runes) {
		units = append(units, runes[start:])
	}
	return units
}

func isUnitBreak(r rune) bool {
	switch r {
	case '.', '!', '?', '\n':
		return true
	}
	return false
}

// breakPoint returns the cut index for a run longer than limit: just past the
// last whitespace within the first limit characters, or limit itself.
func breakPoint(r []rune, limit int) int {
	for i := limit - 1; i > 0; i-- {
		if unicode.IsSpace(r[i]) {
			return i + 1
		}
	}
	return limit
}
