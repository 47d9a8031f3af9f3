package subtitles

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"subgen/internal/fileutil"
	langpkg "subgen/internal/language"
)

// Style controls the single "Default" style written to ASS output.
type Style struct {
	FontName string
	FontSize int
	Outline  int
	MarginV  int
}

// DefaultStyle returns the burn-in style used for generated subtitles.
func DefaultStyle() Style {
	return Style{FontName: "Arial", FontSize: 64, Outline: 3, MarginV: 40}
}

const assEventFormat = "Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text"

var assOverrideTag = regexp.MustCompile(`\{[^}]*\}`)

// ReadASS parses the dialogue events of an ASS/SSA file in file order.
func ReadASS(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read ass: %w", err)
	}
	return ParseASS(string(data))
}

// ParseASS parses ASS content. Only Dialogue events are returned; override
// tags are stripped and \N line breaks become newlines.
func ParseASS(content string) (Document, error) {
	content = strings.TrimPrefix(content, "\ufeff")
	content = strings.ReplaceAll(content, "\r\n", "\n")

	var (
		doc     Document
		section string
		fields  []string
	)
	for lineNo, raw := range strings.Split(content, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.ToLower(line)
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch section {
		case "[script info]":
			switch key {
			case "Title":
				doc.Title = value
			case "Language":
				doc.Language = value
			}
		case "[events]":
			switch key {
			case "Format":
				fields = splitFormat(value)
			case "Dialogue":
				if len(fields) == 0 {
					fields = splitFormat(assEventFormat)
				}
				cue, err := parseDialogue(value, fields)
				if err != nil {
					return Document{}, fmt.Errorf("ass line %d: %w", lineNo+1, err)
				}
				doc.Cues = append(doc.Cues, cue)
			}
		}
	}
	doc.Cues = Renumber(doc.Cues)
	return doc, nil
}

func splitFormat(value string) []string {
	parts := strings.Split(value, ",")
	for i := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(parts[i]))
	}
	return parts
}

func parseDialogue(value string, fields []string) (Cue, error) {
	values := strings.SplitN(value, ",", len(fields))
	if len(values) != len(fields) {
		return Cue{}, fmt.Errorf("dialogue has %d fields, want %d", len(values), len(fields))
	}
	var cue Cue
	for i, name := range fields {
		v := values[i]
		switch name {
		case "start":
			d, err := parseASSTimestamp(v)
			if err != nil {
				return Cue{}, err
			}
			cue.Start = d
		case "end":
			d, err := parseASSTimestamp(v)
			if err != nil {
				return Cue{}, err
			}
			cue.End = d
		case "text":
			cue.Text = decodeASSText(v)
		}
	}
	return cue, nil
}

func decodeASSText(text string) string {
	text = assOverrideTag.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, `\N`, "\n")
	text = strings.ReplaceAll(text, `\n`, "\n")
	text = strings.ReplaceAll(text, `\h`, " ")
	return strings.TrimSpace(text)
}

func encodeASSText(text string) string {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	return strings.ReplaceAll(text, "\n", `\N`)
}

// FormatASS renders doc with the given style.
func FormatASS(doc Document, style Style) string {
	if style.FontName == "" {
		style = DefaultStyle()
	}
	title := doc.Title
	switch {
	case title != "":
	case doc.Language != "":
		title = langpkg.DisplayName(doc.Language) + " subtitles"
	default:
		title = "subgen"
	}

	var b strings.Builder
	b.WriteString("[Script Info]\n")
	b.WriteString("; Script generated by subgen\n")
	fmt.Fprintf(&b, "Title: %s\n", title)
	b.WriteString("ScriptType: v4.00+\n")
	b.WriteString("WrapStyle: 0\n")
	b.WriteString("ScaledBorderAndShadow: yes\n")
	b.WriteString("PlayResX: 1920\n")
	b.WriteString("PlayResY: 1080\n")
	if doc.Language != "" {
		fmt.Fprintf(&b, "Language: %s\n", doc.Language)
	}
	b.WriteString("\n[V4+ Styles]\n")
	b.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")
	fmt.Fprintf(&b, "Style: Default,%s,%d,&H00FFFFFF,&H000000FF,&H00000000,&H80000000,0,0,0,0,100,100,0,0,1,%d,1,2,40,40,%d,1\n",
		style.FontName, style.FontSize, style.Outline, style.MarginV)
	b.WriteString("\n[Events]\n")
	b.WriteString("Format: " + assEventFormat + "\n")
	for _, cue := range doc.Cues {
		fmt.Fprintf(&b, "Dialogue: 0,%s,%s,Default,,0,0,0,,%s\n",
			formatASSTimestamp(cue.Start), formatASSTimestamp(cue.End), encodeASSText(cue.Text))
	}
	return b.String()
}

// WriteASS atomically writes doc to path.
func WriteASS(path string, doc Document, style Style) error {
	if err := fileutil.WriteFileAtomic(path, []byte(FormatASS(doc, style)), 0o644); err != nil {
		return fmt.Errorf("write ass: %w", err)
	}
	return nil
}

// parseASSTimestamp accepts H:MM:SS.cc.
func parseASSTimestamp(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	hms := strings.Split(value, ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("invalid ass timestamp %q", value)
	}
	secPart, fracPart, _ := strings.Cut(hms[2], ".")
	hours, errH := strconv.Atoi(hms[0])
	minutes, errM := strconv.Atoi(hms[1])
	seconds, errS := strconv.Atoi(secPart)
	if errH != nil || errM != nil || errS != nil {
		return 0, fmt.Errorf("invalid ass timestamp %q", value)
	}
	var frac time.Duration
	if fracPart != "" {
		n, err := strconv.Atoi(fracPart)
		if err != nil {
			return 0, fmt.Errorf("invalid ass timestamp %q", value)
		}
		// Fraction digits are positional: ".5" is 500ms, ".05" is 50ms.
		scale := time.Second
		for range fracPart {
			scale /= 10
		}
		frac = time.Duration(n) * scale
	}
	return time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second + frac, nil
}

func formatASSTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	cs := (d + 5*time.Millisecond) / (10 * time.Millisecond)
	return fmt.Sprintf("%d:%02d:%02d.%02d", cs/360_000, (cs/6000)%60, (cs/100)%60, cs%100)
}
