package subtitles

import (
	"strings"
	"time"
)

// Cue is a single timed text unit.
type Cue struct {
	Index int
	Start time.Duration
	End   time.Duration
	Text  string
}

// Duration returns the cue display length.
func (c Cue) Duration() time.Duration {
	if c.End < c.Start {
		return 0
	}
	return c.End - c.Start
}

// Document is an ordered list of cues plus the metadata written into styled
// output.
type Document struct {
	Title    string
	Language string
	Cues     []Cue
}

// Renumber assigns sequential 1-based indices in list order.
func Renumber(cues []Cue) []Cue {
	for i := range cues {
		cues[i].Index = i + 1
	}
	return cues
}

// Texts returns each cue's text in order.
func (d Document) Texts() []string {
	out := make([]string, len(d.Cues))
	for i, cue := range d.Cues {
		out[i] = cue.Text
	}
	return out
}

// WithTexts returns a copy of the document whose cue texts are replaced by
// texts, preserving timing and order. len(texts) must equal len(d.Cues).
func (d Document) WithTexts(texts []string) Document {
	clone := Document{Title: d.Title, Language: d.Language, Cues: make([]Cue, len(d.Cues))}
	copy(clone.Cues, d.Cues)
	for i := range clone.Cues {
		clone.Cues[i].Text = strings.TrimSpace(texts[i])
	}
	return clone
}
