package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable. Provider credentials are not
// checked here; the translation adapter reports missing fields when the
// provider is activated.
func (c *Config) Validate() error {
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateSeparation(); err != nil {
		return err
	}
	if err := c.validateTranslation(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateTranscription() error {
	t := c.Transcription
	if err := ensureOneOf("transcription.device", t.Device, "cpu", "cuda"); err != nil {
		return err
	}
	if err := ensureOneOf("transcription.language", t.Language, "zh", "ja", "en"); err != nil {
		return err
	}
	if err := ensureOneOf("transcription.split_method", t.SplitMethod, "modest", "aggressive"); err != nil {
		return err
	}
	if t.MinSilenceDurationMs < 0 || t.MinSilenceDurationMs > 10000 {
		return errors.New("transcription.min_silence_duration_ms must be between 0 and 10000")
	}
	if strings.ContainsAny(t.ModelPrefix, `/\`) {
		return errors.New("transcription.model_prefix must not contain path separators")
	}
	return nil
}

func (c *Config) validateSeparation() error {
	if c.Separation.SampleRate <= 0 {
		return errors.New("separation.sample_rate must be positive")
	}
	return nil
}

func (c *Config) validateTranslation() error {
	if err := ensureOneOf("translation.provider", c.Translation.Provider, "none", "gpt", "baidu", "tencent"); err != nil {
		return err
	}
	if len(c.Translation.TargetLanguage) < 2 {
		return errors.New("translation.target_language must be an ISO 639-1 code")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}

func ensureOneOf(key, value string, allowed ...string) error {
	for _, candidate := range allowed {
		if value == candidate {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s (got %q)", key, strings.Join(allowed, ", "), value)
}
