// Package metrics derives size features from turn text without retaining it.
package metrics

import (
	"strings"
	"unicode/utf8"

	"github.com/petasbytes/llamachat/internal/transcript"
)

// Features holds basic local text features derived from an input string.
type Features struct {
	Bytes int
	Runes int
	Words int
	Lines int
}

// CountFeatures computes and returns byte, rune, word, and line counts for the input string.
func CountFeatures(s string) Features {
	return Features{
		Bytes: len(s),
		Runes: utf8.RuneCountInString(s),
		Words: len(strings.Fields(s)),
		Lines: countLines(s),
	}
}

// countLines returns 0 for empty strings; otherwise 1 plus the number of '\n' runes.
func countLines(s string) int {
	if s == "" {
		return 0
	}
	return 1 + strings.Count(s, "\n")
}

// TranscriptSummary aggregates a transcript.
type TranscriptSummary struct {
	Turns  int
	ByRole map[string]int
	Bytes  int
	Open   int
}

// SummarizeTurns counts turns per role and total content bytes.
func SummarizeTurns(turns []transcript.Turn) TranscriptSummary {
	s := TranscriptSummary{Turns: len(turns), ByRole: make(map[string]int, 4)}
	for _, t := range turns {
		s.ByRole[string(t.Role)]++
		s.Bytes += len(t.Content)
		if t.Open() {
			s.Open++
		}
	}
	return s
}
