package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LegacyDocument is the flat settings document the web front-end exported.
// JSON documents are valid YAML, so both formats decode through yaml.v3.
// Unknown keys are ignored.
type LegacyDocument struct {
	ModelName        *string `yaml:"model_name"`
	ChatURL          *string `yaml:"chat_url"`
	ChatKey          *string `yaml:"chat_key"`
	ChatModelName    *string `yaml:"chat_model_name"`
	BaiduAppID       *string `yaml:"baidu_appid"`
	BaiduAppKey      *string `yaml:"baidu_appkey"`
	TencentAppID     *string `yaml:"tencent_appid"`
	TencentSecretKey *string `yaml:"tencent_secretKey"`
}

// ReadLegacy parses a legacy settings document from disk.
func ReadLegacy(path string) (LegacyDocument, error) {
	var doc LegacyDocument
	data, err := os.ReadFile(path)
	if err != nil {
		return doc, fmt.Errorf("read legacy config: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return doc, nil
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("parse legacy config: %w", err)
	}
	return doc, nil
}

// ApplyLegacy overlays the keys present in doc onto the configuration and
// returns the names of the keys that were applied. Missing keys keep their
// current values.
func (c *Config) ApplyLegacy(doc LegacyDocument) []string {
	var applied []string
	set := func(key string, src *string, dst *string) {
		if src == nil {
			return
		}
		*dst = strings.TrimSpace(*src)
		applied = append(applied, key)
	}
	set("model_name", doc.ModelName, &c.Transcription.ModelName)
	set("chat_url", doc.ChatURL, &c.Translation.ChatURL)
	set("chat_key", doc.ChatKey, &c.Translation.ChatKey)
	set("chat_model_name", doc.ChatModelName, &c.Translation.ChatModelName)
	set("baidu_appid", doc.BaiduAppID, &c.Translation.BaiduAppID)
	set("baidu_appkey", doc.BaiduAppKey, &c.Translation.BaiduAppKey)
	set("tencent_appid", doc.TencentAppID, &c.Translation.TencentAppID)
	set("tencent_secretKey", doc.TencentSecretKey, &c.Translation.TencentSecretKey)
	return applied
}

// ImportLegacy reads a legacy document, applies it and re-normalizes the
// configuration.
func (c *Config) ImportLegacy(path string) ([]string, error) {
	doc, err := ReadLegacy(path)
	if err != nil {
		return nil, err
	}
	applied := c.ApplyLegacy(doc)
	if err := c.normalize(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return applied, nil
}
