package subtitles

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// SplitMethod selects how long cues are broken up.
type SplitMethod string

const (
	// SplitModest breaks over-long cues at sentence and clause punctuation.
	SplitModest SplitMethod = "modest"
	// SplitAggressive breaks every cue at each whitespace run and CJK
	// punctuation mark.
	SplitAggressive SplitMethod = "aggressive"
)

// ParseSplitMethod validates a split method name.
func ParseSplitMethod(value string) (SplitMethod, error) {
	switch SplitMethod(strings.ToLower(strings.TrimSpace(value))) {
	case SplitModest:
		return SplitModest, nil
	case SplitAggressive:
		return SplitAggressive, nil
	default:
		return "", fmt.Errorf("unknown split method %q (want modest or aggressive)", value)
	}
}

const defaultMaxLineWidth = 42

// Split returns a new cue list where cues are broken according to method.
// Timing of each fragment is proportional to its rune count and the last
// fragment always ends at the original end time.
func Split(cues []Cue, method SplitMethod, maxWidth int) []Cue {
	if maxWidth <= 0 {
		maxWidth = defaultMaxLineWidth
	}
	out := make([]Cue, 0, len(cues))
	for _, cue := range cues {
		var parts []string
		switch method {
		case SplitAggressive:
			parts = aggressiveParts(cue.Text)
		default:
			parts = modestParts(cue.Text, maxWidth)
		}
		if len(parts) <= 1 {
			out = append(out, cue)
			continue
		}
		out = append(out, distribute(cue, parts)...)
	}
	return Renumber(out)
}

func isClauseBreak(r rune) bool {
	switch r {
	case '。', '！', '？', '，', '、', '；', '：', '.', ',', '!', '?', ';':
		return true
	}
	return false
}

func isCJKBreak(r rune) bool {
	switch r {
	case '。', '！', '？', '，', '、', '；', '：':
		return true
	}
	return false
}

func modestParts(text string, maxWidth int) []string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= maxWidth {
		return []string{text}
	}
	pieces := splitAfter(text, isClauseBreak)

	var (
		parts   []string
		current strings.Builder
	)
	for _, piece := range pieces {
		candidate := current.String() + piece
		if current.Len() > 0 && utf8.RuneCountInString(strings.TrimSpace(candidate)) > maxWidth {
			parts = append(parts, strings.TrimSpace(current.String()))
			current.Reset()
		}
		current.WriteString(piece)
	}
	if rest := strings.TrimSpace(current.String()); rest != "" {
		parts = append(parts, rest)
	}
	return parts
}

func aggressiveParts(text string) []string {
	var parts []string
	for _, field := range strings.Fields(text) {
		for _, piece := range splitAfter(field, isCJKBreak) {
			if piece = strings.TrimSpace(piece); piece != "" {
				parts = append(parts, piece)
			}
		}
	}
	return parts
}

// splitAfter cuts text after every rune matching isBreak, keeping the break
// rune on the left fragment.
func splitAfter(text string, isBreak func(rune) bool) []string {
	var (
		pieces []string
		start  int
	)
	for i, r := range text {
		if isBreak(r) {
			end := i + utf8.RuneLen(r)
			pieces = append(pieces, text[start:end])
			start = end
		}
	}
	if start < len(text) {
		pieces = append(pieces, text[start:])
	}
	return pieces
}

func visibleRunes(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

func distribute(cue Cue, parts []string) []Cue {
	total := 0
	for _, p := range parts {
		total += visibleRunes(p)
	}
	if total == 0 {
		return []Cue{cue}
	}
	span := cue.Duration()
	out := make([]Cue, 0, len(parts))
	start := cue.Start
	consumed := 0
	for i, p := range parts {
		consumed += visibleRunes(p)
		end := cue.Start + time.Duration(int64(span)*int64(consumed)/int64(total))
		if i == len(parts)-1 {
			end = cue.End
		}
		out = append(out, Cue{Start: start, End: end, Text: p})
		start = end
	}
	return out
}
