package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkspaceDir string `toml:"workspace_dir"`
	ModelsDir    string `toml:"models_dir"`
	StateDir     string `toml:"state_dir"`
	WatchDir     string `toml:"watch_dir"`
}

// Transcription contains speech-to-text engine settings and the default
// transcription options.
type Transcription struct {
	ModelName            string `toml:"model_name"`
	Device               string `toml:"device"`
	CustomModelPath      string `toml:"custom_model_path"`
	ModelPrefix          string `toml:"model_prefix"`
	ComputeType          string `toml:"compute_type"`
	Language             string `toml:"language"`
	VADFilter            bool   `toml:"vad_filter"`
	MinSilenceDurationMs int    `toml:"min_silence_duration_ms"`
	TextSplit            bool   `toml:"text_split"`
	SplitMethod          string `toml:"split_method"`
	MaxLineWidth         int    `toml:"max_line_width"`
	InitialPrompt        string `toml:"initial_prompt"`
}

// Separation contains background-removal engine settings.
type Separation struct {
	ModelsDir     string   `toml:"models_dir"`
	SampleRate    int      `toml:"sample_rate"`
	DefaultModels []string `toml:"default_models"`
}

// Translation contains translation provider credentials. Provider selects the
// active back-end: none, gpt, baidu or tencent.
type Translation struct {
	Provider         string `toml:"provider"`
	TargetLanguage   string `toml:"target_language"`
	ChatURL          string `toml:"chat_url"`
	ChatKey          string `toml:"chat_key"`
	ChatModelName    string `toml:"chat_model_name"`
	BaiduAppID       string `toml:"baidu_appid"`
	BaiduAppKey      string `toml:"baidu_appkey"`
	TencentAppID     string `toml:"tencent_appid"`
	TencentSecretKey string `toml:"tencent_secret_key"`
	TencentRegion    string `toml:"tencent_region"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
}

// Output contains packaging settings.
type Output struct {
	RenderVideo bool `toml:"render_video"`
}

// Tools names the external executables the engines shell out to.
type Tools struct {
	FFmpeg           string `toml:"ffmpeg"`
	FFprobe          string `toml:"ffprobe"`
	UVX              string `toml:"uvx"`
	WhisperPackage   string `toml:"whisper_package"`
	SeparatorPackage string `toml:"separator_package"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Notifications configures ntfy delivery of watch-mode events. A blank
// topic disables notifications.
type Notifications struct {
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Config encapsulates all configuration values for subgen.
//
// Configuration sections by subsystem:
//   - Paths: workspace, model and state directories
//   - Transcription: model selection and default transcription options
//   - Separation: background-removal model directory and fallbacks
//   - Translation: provider selection and credentials
//   - Output: packaging behaviour
//   - Tools: external executables
//   - Notifications: ntfy topic for watch mode
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Transcription Transcription `toml:"transcription"`
	Separation    Separation    `toml:"separation"`
	Translation   Translation   `toml:"translation"`
	Output        Output        `toml:"output"`
	Tools         Tools         `toml:"tools"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/subgen/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		info, err := os.Stat(expanded)
		if err != nil {
			if os.IsNotExist(err) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		if info.IsDir() {
			return "", false, fmt.Errorf("config path %q is a directory", expanded)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("subgen.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the workspace, model and state directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkspaceDir, c.Paths.StateDir, c.Paths.ModelsDir, c.Separation.ModelsDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SessionDBPath returns the location of the session database.
func (c *Config) SessionDBPath() string {
	return filepath.Join(c.Paths.StateDir, "session.db")
}

// LogPath returns the location of the log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.StateDir, "subgen.log")
}

// FFmpegBinary returns the ffmpeg executable name.
func (c *Config) FFmpegBinary() string {
	if v := strings.TrimSpace(c.Tools.FFmpeg); v != "" {
		return v
	}
	return defaultFFmpeg
}

// FFprobeBinary returns the ffprobe executable name.
func (c *Config) FFprobeBinary() string {
	if v := strings.TrimSpace(c.Tools.FFprobe); v != "" {
		return v
	}
	return defaultFFprobe
}

// UVXBinary returns the uvx executable used to launch the Python engines.
func (c *Config) UVXBinary() string {
	if v := strings.TrimSpace(c.Tools.UVX); v != "" {
		return v
	}
	return defaultUVX
}

// Save writes the configuration as TOML.
func (c *Config) Save(path string) error {
	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	encoder.SetIndentTables(true)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
