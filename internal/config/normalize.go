package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeTranscription(); err != nil {
		return err
	}
	if err := c.normalizeSeparation(); err != nil {
		return err
	}
	c.normalizeTranslation()
	c.normalizeTools()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkspaceDir) == "" {
		c.Paths.WorkspaceDir = defaultWorkspaceDir
	}
	if c.Paths.WorkspaceDir, err = expandPath(c.Paths.WorkspaceDir); err != nil {
		return fmt.Errorf("paths.workspace_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ModelsDir) == "" {
		c.Paths.ModelsDir = defaultModelsDir
	}
	if c.Paths.ModelsDir, err = expandPath(c.Paths.ModelsDir); err != nil {
		return fmt.Errorf("paths.models_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.WatchDir, err = expandPath(strings.TrimSpace(c.Paths.WatchDir)); err != nil {
		return fmt.Errorf("paths.watch_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTranscription() error {
	t := &c.Transcription
	t.ModelName = strings.TrimSpace(t.ModelName)
	if t.ModelName == "" {
		t.ModelName = defaultModelName
	}
	t.Device = strings.ToLower(strings.TrimSpace(t.Device))
	if t.Device == "" {
		t.Device = defaultDevice
	}
	t.ModelPrefix = strings.TrimSpace(t.ModelPrefix)
	if t.ModelPrefix == "" {
		t.ModelPrefix = defaultModelPrefix
	}
	t.ComputeType = strings.ToLower(strings.TrimSpace(t.ComputeType))
	if t.ComputeType == "" {
		t.ComputeType = defaultComputeType
	}
	t.Language = strings.ToLower(strings.TrimSpace(t.Language))
	if t.Language == "" {
		t.Language = defaultLanguage
	}
	t.SplitMethod = strings.ToLower(strings.TrimSpace(t.SplitMethod))
	if t.SplitMethod == "" {
		t.SplitMethod = defaultSplitMethod
	}
	if t.MaxLineWidth <= 0 {
		t.MaxLineWidth = defaultMaxLineWidth
	}
	t.InitialPrompt = strings.TrimSpace(t.InitialPrompt)
	if custom := strings.TrimSpace(t.CustomModelPath); custom != "" {
		expanded, err := expandPath(custom)
		if err != nil {
			return fmt.Errorf("transcription.custom_model_path: %w", err)
		}
		t.CustomModelPath = expanded
	}
	return nil
}

func (c *Config) normalizeSeparation() error {
	var err error
	if strings.TrimSpace(c.Separation.ModelsDir) == "" {
		c.Separation.ModelsDir = defaultSeparationModelsDir
	}
	if c.Separation.ModelsDir, err = expandPath(c.Separation.ModelsDir); err != nil {
		return fmt.Errorf("separation.models_dir: %w", err)
	}
	if c.Separation.SampleRate == 0 {
		c.Separation.SampleRate = defaultSampleRate
	}
	models := c.Separation.DefaultModels[:0]
	for _, name := range c.Separation.DefaultModels {
		if name = strings.TrimSpace(name); name != "" {
			models = append(models, name)
		}
	}
	c.Separation.DefaultModels = models
	if len(c.Separation.DefaultModels) == 0 {
		c.Separation.DefaultModels = append([]string(nil), DefaultSeparationModels...)
	}
	return nil
}

func (c *Config) normalizeTranslation() {
	t := &c.Translation
	t.Provider = strings.ToLower(strings.TrimSpace(t.Provider))
	if t.Provider == "" {
		t.Provider = defaultProvider
	}
	t.TargetLanguage = strings.ToLower(strings.TrimSpace(t.TargetLanguage))
	if t.TargetLanguage == "" {
		t.TargetLanguage = defaultTargetLanguage
	}
	t.ChatURL = strings.TrimRight(strings.TrimSpace(t.ChatURL), "/")
	if t.ChatURL == "" {
		t.ChatURL = defaultChatURL
	}
	t.ChatKey = strings.TrimSpace(t.ChatKey)
	if t.ChatKey == "" {
		if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			t.ChatKey = strings.TrimSpace(value)
		}
	}
	t.ChatModelName = strings.TrimSpace(t.ChatModelName)
	if t.ChatModelName == "" {
		t.ChatModelName = defaultChatModelName
	}
	t.BaiduAppID = strings.TrimSpace(t.BaiduAppID)
	t.BaiduAppKey = strings.TrimSpace(t.BaiduAppKey)
	t.TencentAppID = strings.TrimSpace(t.TencentAppID)
	t.TencentSecretKey = strings.TrimSpace(t.TencentSecretKey)
	t.TencentRegion = strings.TrimSpace(t.TencentRegion)
	if t.TencentRegion == "" {
		t.TencentRegion = defaultTencentRegion
	}
	if t.TimeoutSeconds <= 0 {
		t.TimeoutSeconds = defaultTranslationTimeout
	}
}

func (c *Config) normalizeTools() {
	if strings.TrimSpace(c.Tools.FFmpeg) == "" {
		c.Tools.FFmpeg = defaultFFmpeg
	}
	if strings.TrimSpace(c.Tools.FFprobe) == "" {
		c.Tools.FFprobe = defaultFFprobe
	}
	if strings.TrimSpace(c.Tools.UVX) == "" {
		c.Tools.UVX = defaultUVX
	}
	if strings.TrimSpace(c.Tools.WhisperPackage) == "" {
		c.Tools.WhisperPackage = defaultWhisperPackage
	}
	if strings.TrimSpace(c.Tools.SeparatorPackage) == "" {
		c.Tools.SeparatorPackage = defaultSeparatorPackage
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
