package config_test

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"subgen/internal/config"
)

func TestImportLegacyJSONIgnoresUnknownKeys(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
  "model_name": "medium",
  "chat_url": "https://proxy.example.com/v1",
  "chat_key": "sk-abc",
  "chat_model_name": "gpt-4",
  "baidu_appid": "2024",
  "baidu_appkey": "bk",
  "tencent_appid": "AKID",
  "tencent_secretKey": "tsk",
  "theme": "ocean"
}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write legacy: %v", err)
	}

	cfg := config.Default()
	applied, err := cfg.ImportLegacy(path)
	if err != nil {
		t.Fatalf("ImportLegacy returned error: %v", err)
	}
	if len(applied) != 8 {
		t.Fatalf("expected 8 applied keys, got %v", applied)
	}
	if slices.Contains(applied, "theme") {
		t.Fatal("unknown key should not be applied")
	}
	if cfg.Transcription.ModelName != "medium" {
		t.Fatalf("unexpected model: %q", cfg.Transcription.ModelName)
	}
	if cfg.Translation.ChatKey != "sk-abc" || cfg.Translation.ChatModelName != "gpt-4" {
		t.Fatalf("unexpected chat settings: %+v", cfg.Translation)
	}
	if cfg.Translation.TencentSecretKey != "tsk" || cfg.Translation.BaiduAppKey != "bk" {
		t.Fatalf("unexpected provider credentials: %+v", cfg.Translation)
	}
}

func TestImportLegacyMissingKeysKeepDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("OPENAI_API_KEY", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("chat_key: sk-yaml\n"), 0o644); err != nil {
		t.Fatalf("write legacy: %v", err)
	}
	cfg := config.Default()
	applied, err := cfg.ImportLegacy(path)
	if err != nil {
		t.Fatalf("ImportLegacy returned error: %v", err)
	}
	if len(applied) != 1 || applied[0] != "chat_key" {
		t.Fatalf("unexpected applied keys: %v", applied)
	}
	if cfg.Transcription.ModelName != "large-v2" {
		t.Fatalf("expected default model retained, got %q", cfg.Transcription.ModelName)
	}
	if cfg.Translation.ChatURL != "https://api.openai.com/v1" {
		t.Fatalf("expected default chat url retained, got %q", cfg.Translation.ChatURL)
	}
}

func TestReadLegacyRejectsMalformedDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, []byte("{\"model_name\": [unterminated"), 0o644); err != nil {
		t.Fatalf("write legacy: %v", err)
	}
	if _, err := config.ReadLegacy(path); err == nil {
		t.Fatal("expected parse error")
	}
}
