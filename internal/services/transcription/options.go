package transcription

import (
	"fmt"
	"strings"

	"subgen/internal/services"
	"subgen/internal/subtitles"
)

// Language is a supported transcription language.
type Language string

const (
	LanguageChinese  Language = "zh"
	LanguageJapanese Language = "ja"
	LanguageEnglish  Language = "en"
)

// ParseLanguage accepts the ISO code or the legacy labels shown by older
// front-ends.
func ParseLanguage(value string) (Language, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "zh", "中文":
		return LanguageChinese, nil
	case "ja", "日文":
		return LanguageJapanese, nil
	case "en", "英文":
		return LanguageEnglish, nil
	}
	return "", services.Wrap(services.KindInput, stageName, "parse language",
		fmt.Sprintf("unsupported language %q (want zh, ja or en)", value), nil)
}

// Device selects the compute device of the engine.
type Device string

const (
	DeviceCPU  Device = "cpu"
	DeviceCUDA Device = "cuda"
)

// ParseDevice validates a device name.
func ParseDevice(value string) (Device, error) {
	switch Device(strings.ToLower(strings.TrimSpace(value))) {
	case DeviceCPU:
		return DeviceCPU, nil
	case DeviceCUDA:
		return DeviceCUDA, nil
	}
	return "", services.Wrap(services.KindInput, stageName, "parse device",
		fmt.Sprintf("unsupported device %q (want cpu or cuda)", value), nil)
}

// KnownModels lists the model identifiers accepted without a local path.
var KnownModels = []string{
	"tiny", "base", "small", "medium", "large-v2", "large-v3",
	"tiny.en", "base.en", "small.en", "medium.en",
}

// IsKnownModel reports whether id is in KnownModels.
func IsKnownModel(id string) bool {
	for _, known := range KnownModels {
		if known == id {
			return true
		}
	}
	return false
}

// Options controls a single transcription.
type Options struct {
	Language  Language
	VADFilter bool
	// MinSilenceDurationMs is only sent to the engine when VADFilter is set.
	MinSilenceDurationMs *int
	TextSplit            bool
	// SplitMethod is only applied when TextSplit is set.
	SplitMethod   subtitles.SplitMethod
	InitialPrompt string
}

// Validate checks enumerated fields and ranges.
func (o Options) Validate() error {
	switch o.Language {
	case LanguageChinese, LanguageJapanese, LanguageEnglish:
	default:
		return services.Wrap(services.KindInput, stageName, "validate options",
			fmt.Sprintf("unsupported language %q", o.Language), nil)
	}
	if o.VADFilter && o.MinSilenceDurationMs != nil && *o.MinSilenceDurationMs < 0 {
		return services.Wrap(services.KindInput, stageName, "validate options",
			"min silence duration must be >= 0", nil)
	}
	if o.TextSplit {
		if _, err := subtitles.ParseSplitMethod(string(o.SplitMethod)); err != nil {
			return services.Wrap(services.KindInput, stageName, "validate options", err.Error(), nil)
		}
	}
	return nil
}

// request converts validated options to what the engine receives.
func (o Options) request() Request {
	req := Request{
		Language:      string(o.Language),
		VADFilter:     o.VADFilter,
		InitialPrompt: strings.TrimSpace(o.InitialPrompt),
	}
	if o.VADFilter && o.MinSilenceDurationMs != nil {
		value := *o.MinSilenceDurationMs
		req.MinSilenceDurationMs = &value
	}
	return req
}
