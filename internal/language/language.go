package language

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

type entry struct {
	code2   string // ISO 639-1
	code3   string // ISO 639-2/T
	display string // English name
}

var supported = []string{
	"en", "es", "fr", "de", "it", "pt", "ja", "ko", "zh",
	"ru", "ar", "hi", "nl", "pl", "sv", "da", "no", "fi",
}

// ISO 639-2/B codes that x/text does not canonicalize.
var bibliographic = map[string]string{
	"fre": "fr",
	"ger": "de",
	"chi": "zh",
	"dut": "nl",
}

// Labels accepted from the legacy form and config files.
var labels = map[string]string{
	"中文": "zh",
	"日文": "ja",
	"英文": "en",
}

var index map[string]*entry

func init() {
	englishNames := display.English.Languages()
	index = make(map[string]*entry, len(supported)*5)
	for _, code := range supported {
		tag := language.MustParse(code)
		base, _ := tag.Base()
		e := &entry{
			code2:   base.String(),
			code3:   base.ISO3(),
			display: englishNames.Name(tag),
		}
		index[e.code2] = e
		index[e.code3] = e
		index[strings.ToLower(e.display)] = e
		if native := display.Self.Name(tag); native != "" {
			index[strings.ToLower(native)] = e
		}
	}
	for alias, code := range bibliographic {
		index[alias] = index[code]
	}
	for label, code := range labels {
		index[label] = index[code]
	}
}

func lookup(code string) *entry {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return nil
	}
	if e, ok := index[code]; ok {
		return e
	}
	if tag, err := language.Parse(code); err == nil {
		if base, conf := tag.Base(); conf != language.No {
			if e, ok := index[base.String()]; ok {
				return e
			}
		}
	}
	return nil
}

// ToISO2 converts any recognized language code, English name, native name or
// legacy label to ISO 639-1. Unknown 2-letter input passes through; anything
// else unknown yields "".
func ToISO2(code string) string {
	if e := lookup(code); e != nil {
		return e.code2
	}
	code = strings.ToLower(strings.TrimSpace(code))
	if len(code) == 2 {
		return code
	}
	return ""
}

// ToISO3 converts a recognized language to ISO 639-2. Unknown 3-letter codes
// pass through; other unknown input becomes "und".
func ToISO3(code string) string {
	if e := lookup(code); e != nil {
		return e.code3
	}
	code = strings.ToLower(strings.TrimSpace(code))
	if len(code) == 3 {
		return code
	}
	return "und"
}

// DisplayName returns the English name for a recognized language, "Unknown"
// for empty input, or the uppercased input otherwise.
func DisplayName(code string) string {
	if strings.TrimSpace(code) == "" {
		return "Unknown"
	}
	if e := lookup(code); e != nil {
		return e.display
	}
	return strings.ToUpper(strings.TrimSpace(code))
}

// Known reports whether code resolves to a supported language.
func Known(code string) bool {
	return lookup(code) != nil
}
