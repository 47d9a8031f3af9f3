package translation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"subgen/internal/config"
	langpkg "subgen/internal/language"
	"subgen/internal/logging"
	"subgen/internal/services"
	"subgen/internal/subtitles"
)

const stageName = "translation"

// Kind names a translation back-end.
type Kind string

const (
	KindNone    Kind = "none"
	KindGPT     Kind = "gpt"
	KindBaidu   Kind = "baidu"
	KindTencent Kind = "tencent"
)

// ParseKind validates a provider name. Blank means none.
func ParseKind(value string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(value))) {
	case "", KindNone:
		return KindNone, nil
	case KindGPT:
		return KindGPT, nil
	case KindBaidu:
		return KindBaidu, nil
	case KindTencent:
		return KindTencent, nil
	}
	return "", services.Wrap(services.KindInput, stageName, "parse provider",
		fmt.Sprintf("unknown provider %q (want none, gpt, baidu or tencent)", value), nil)
}

// Credentials holds the settings of every provider variant; only the fields
// of the selected kind are required.
type Credentials struct {
	ChatURL          string
	ChatKey          string
	ChatModel        string
	BaiduAppID       string
	BaiduAppKey      string
	TencentSecretID  string
	TencentSecretKey string
	TencentRegion    string
	TargetLanguage   string
	Timeout          time.Duration
}

// CredentialsFromConfig maps the translation config section.
func CredentialsFromConfig(cfg config.Translation) Credentials {
	return Credentials{
		ChatURL:          cfg.ChatURL,
		ChatKey:          cfg.ChatKey,
		ChatModel:        cfg.ChatModelName,
		BaiduAppID:       cfg.BaiduAppID,
		BaiduAppKey:      cfg.BaiduAppKey,
		TencentSecretID:  cfg.TencentAppID,
		TencentSecretKey: cfg.TencentSecretKey,
		TencentRegion:    cfg.TencentRegion,
		TargetLanguage:   cfg.TargetLanguage,
		Timeout:          time.Duration(cfg.TimeoutSeconds) * time.Second,
	}
}

// MissingFields lists the config keys kind requires that creds leaves blank.
func MissingFields(kind Kind, creds Credentials) []string {
	var missing []string
	need := func(value, key string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, key)
		}
	}
	switch kind {
	case KindGPT:
		need(creds.ChatURL, "chat_url")
		need(creds.ChatKey, "chat_key")
		need(creds.ChatModel, "chat_model_name")
	case KindBaidu:
		need(creds.BaiduAppID, "baidu_appid")
		need(creds.BaiduAppKey, "baidu_appkey")
	case KindTencent:
		need(creds.TencentSecretID, "tencent_appid")
		need(creds.TencentSecretKey, "tencent_secret_key")
		need(creds.TencentRegion, "tencent_region")
	}
	return missing
}

// Provider translates a single line of text.
type Provider interface {
	Kind() Kind
	Translate(ctx context.Context, text, target string) (string, error)
}

// Result is the pair of translated subtitle files.
type Result struct {
	ASSPath string
	SRTPath string
}

// Translator translates whole subtitle documents through one provider.
type Translator struct {
	provider Provider
	target   string
	style    subtitles.Style
	logger   *slog.Logger
}

// New validates creds for kind and builds a translator. KindNone returns a
// nil translator and no error. No network calls are made.
func New(kind Kind, creds Credentials, logger *slog.Logger, opts ...Option) (*Translator, error) {
	if kind == KindNone || kind == "" {
		return nil, nil
	}
	if missing := MissingFields(kind, creds); len(missing) > 0 {
		return nil, services.WithHint(
			services.Wrap(services.KindConfig, stageName, "configure provider",
				fmt.Sprintf("%s provider is missing %s", kind, strings.Join(missing, ", ")), nil),
			"set the missing keys in the [translation] config section",
		)
	}

	target := langpkg.ToISO2(strings.TrimSpace(creds.TargetLanguage))
	if target == "" {
		target = "zh"
	}
	t := newTransport(creds.Timeout, opts...)

	var provider Provider
	switch kind {
	case KindGPT:
		gpt, err := newGPTProvider(creds.ChatURL, strings.TrimSpace(creds.ChatKey), strings.TrimSpace(creds.ChatModel), t)
		if err != nil {
			return nil, services.Wrap(services.KindConfig, stageName, "configure provider", "invalid chat_url", err)
		}
		provider = gpt
	case KindBaidu:
		provider = newBaiduProvider(strings.TrimSpace(creds.BaiduAppID), strings.TrimSpace(creds.BaiduAppKey), t)
	case KindTencent:
		provider = newTencentProvider(strings.TrimSpace(creds.TencentSecretID), strings.TrimSpace(creds.TencentSecretKey), strings.TrimSpace(creds.TencentRegion), t)
	default:
		return nil, services.Wrap(services.KindInput, stageName, "configure provider",
			fmt.Sprintf("unknown provider %q", kind), nil)
	}
	return NewWithProvider(provider, target, logger), nil
}

// NewWithProvider wraps an already constructed provider.
func NewWithProvider(provider Provider, target string, logger *slog.Logger) *Translator {
	return &Translator{
		provider: provider,
		target:   target,
		style:    subtitles.DefaultStyle(),
		logger:   logging.NewComponentLogger(logger, stageName),
	}
}

// Kind reports the provider kind.
func (t *Translator) Kind() Kind {
	if t == nil || t.provider == nil {
		return KindNone
	}
	return t.provider.Kind()
}

// Target returns the target language code.
func (t *Translator) Target() string {
	if t == nil {
		return ""
	}
	return t.target
}

// OutputPaths returns where TranslateDocument writes for assPath.
func (t *Translator) OutputPaths(assPath string) Result {
	dir := filepath.Dir(assPath)
	base := strings.TrimSuffix(filepath.Base(assPath), filepath.Ext(assPath))
	return Result{
		ASSPath: filepath.Join(dir, base+"."+t.target+".ass"),
		SRTPath: filepath.Join(dir, base+"."+t.target+".srt"),
	}
}

// TranslateDocument translates every cue of the styled subtitle at assPath
// and writes <base>.<target>.ass then <base>.<target>.srt. Nothing is
// written unless every cue translated.
func (t *Translator) TranslateDocument(ctx context.Context, assPath string) (Result, error) {
	if t == nil || t.provider == nil {
		return Result{}, services.Wrap(services.KindPrecondition, stageName, "translate", "no translation provider active", nil)
	}
	doc, err := subtitles.ReadASS(assPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Result{}, services.Wrap(services.KindNotFound, stageName, "translate", assPath, err)
		}
		return Result{}, services.Wrap(services.KindInput, stageName, "translate", "read styled subtitle", err)
	}

	texts := doc.Texts()
	translated := make([]string, len(texts))
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		out, err := t.provider.Translate(ctx, text, t.target)
		if err != nil {
			return Result{}, services.Wrap(services.KindInference, stageName, "translate",
				fmt.Sprintf("%s failed on cue %d", t.provider.Kind(), doc.Cues[i].Index), err)
		}
		translated[i] = out
	}

	result := t.OutputPaths(assPath)
	out := doc.WithTexts(translated)
	out.Language = t.target
	out.Title = ""
	if err := subtitles.WriteASS(result.ASSPath, out, t.style); err != nil {
		return Result{}, services.Wrap(services.KindStorage, stageName, "write ass", result.ASSPath, err)
	}
	if err := subtitles.WriteSRT(result.SRTPath, out.Cues); err != nil {
		_ = os.Remove(result.ASSPath)
		return Result{}, services.Wrap(services.KindStorage, stageName, "write srt", result.SRTPath, err)
	}
	t.logger.Info("subtitles translated",
		logging.String(logging.FieldEventType, "translation_complete"),
		logging.String("provider", string(t.provider.Kind())),
		logging.String("target", t.target),
		logging.Int("cues", len(out.Cues)),
		logging.String("ass", result.ASSPath),
	)
	return result, nil
}
