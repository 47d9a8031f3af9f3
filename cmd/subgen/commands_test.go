package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"subgen/internal/config"
	"subgen/internal/services"
)

func TestStagesPersistAcrossInvocations(t *testing.T) {
	env := setupCLITestEnv(t)
	src := env.source(t, "episode.wav")

	out := env.mustRun(t, "upload", src)
	requireContains(t, out, "Uploaded episode.wav (audio)")

	out = env.mustRun(t, "model", "load", "small", "--device", "cpu")
	requireContains(t, out, "Loaded model small on cpu")

	out = env.mustRun(t, "transcribe")
	requireContains(t, out, filepath.Join(env.cfg.Paths.WorkspaceDir, "episode.srt"))

	out = env.mustRun(t, "package", "--render=false")
	bundle := filepath.Join(env.cfg.Paths.WorkspaceDir, "episode.zip")
	requireContains(t, out, bundle)
	if _, err := os.Stat(bundle); err != nil {
		t.Fatalf("bundle missing: %v", err)
	}

	out = env.mustRun(t, "status")
	requireContains(t, out, "packaged")
	requireContains(t, out, "small (loaded on next transcribe)")

	out = env.mustRun(t, "history", "--limit", "10")
	for _, op := range []string{"upload", "load_model", "transcribe", "package"} {
		requireContains(t, out, op)
	}

	models := env.loadedModels()
	if len(models) != 2 || models[1].Name != "small" {
		t.Fatalf("expected model reloaded in the transcribe invocation, got %+v", models)
	}
}

func TestRunFullPass(t *testing.T) {
	env := setupCLITestEnv(t)
	src := env.source(t, "movie.mkv")

	out := env.mustRun(t, "run", src, "--clean", "--model", "base", "--device", "cpu", "--render")
	requireContains(t, out, "Package ready")
	requireContains(t, out, filepath.Join(env.cfg.Paths.WorkspaceDir, "movie_output.mp4"))

	models := env.loadedModels()
	if len(models) != 1 || models[0].Name != "base" {
		t.Fatalf("unexpected models %+v", models)
	}
}

func TestRunRejectsUnknownExtension(t *testing.T) {
	env := setupCLITestEnv(t)
	src := env.source(t, "notes.txt")

	_, err := env.run(t, "run", src)
	if services.KindOf(err) != services.KindInput {
		t.Fatalf("expected input error, got %v", err)
	}
	if !strings.Contains(services.Describe(err), "--kind") {
		t.Fatalf("expected --kind hint, got %q", services.Describe(err))
	}
}

func TestTranscribeWithoutUploadIsPrecondition(t *testing.T) {
	env := setupCLITestEnv(t)
	_, err := env.run(t, "transcribe")
	if !errors.Is(err, services.ErrPrecondition) {
		t.Fatalf("expected precondition error, got %v", err)
	}
}

func TestTranscribeRejectsBadLanguage(t *testing.T) {
	env := setupCLITestEnv(t)
	_, err := env.run(t, "transcribe", "--language", "fr")
	if services.KindOf(err) != services.KindInput {
		t.Fatalf("expected input error, got %v", err)
	}
}

func TestTranslateSetMissingCredentialsKeepsNone(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, err := env.run(t, "translate", "set", "baidu"); err == nil {
		t.Fatal("expected missing credentials error")
	}
	out := env.mustRun(t, "status")
	requireContains(t, out, "none")

	out = env.mustRun(t, "translate", "set", "none")
	requireContains(t, out, "Translation disabled")
}

func TestTranslateTargetSurvivesInvocations(t *testing.T) {
	env := setupCLITestEnv(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": "こんにちは"}}},
		})
	}))
	t.Cleanup(server.Close)
	env.cfg.Translation.TargetLanguage = "zh"
	env.cfg.Translation.ChatURL = server.URL + "/v1"
	env.cfg.Translation.ChatKey = "secret"
	env.writeConfig(t)

	out := env.mustRun(t, "translate", "set", "gpt", "--target", "ja")
	requireContains(t, out, "Translation provider set to gpt (target ja)")

	src := env.source(t, "ep.wav")
	env.mustRun(t, "upload", src)
	env.mustRun(t, "model", "load", "small", "--device", "cpu")
	env.mustRun(t, "transcribe")
	env.mustRun(t, "package", "--render=false")

	ws := env.cfg.Paths.WorkspaceDir
	if _, err := os.Stat(filepath.Join(ws, "ep.ja.srt")); err != nil {
		t.Fatalf("expected translation in the persisted target: %v", err)
	}
	if _, err := os.Stat(filepath.Join(ws, "ep.zh.srt")); !os.IsNotExist(err) {
		t.Fatalf("config target should not replace the selected one, stat err=%v", err)
	}

	out = env.mustRun(t, "status")
	requireContains(t, out, "gpt -> ja")

	out = env.mustRun(t, "upload", src)
	requireContains(t, out, "Uploaded ep.wav")
	out = env.mustRun(t, "translate", "set", "gpt")
	requireContains(t, out, "(target zh)")
}

func TestClearResetsSession(t *testing.T) {
	env := setupCLITestEnv(t)
	env.mustRun(t, "upload", env.source(t, "song.mp3"))
	out := env.mustRun(t, "clear")
	requireContains(t, out, "cleared")

	entries, err := os.ReadDir(env.cfg.Paths.WorkspaceDir)
	if err != nil {
		t.Fatalf("read workspace: %v", err)
	}
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".wav") {
			t.Fatalf("workspace still holds %s", entry.Name())
		}
	}
	out = env.mustRun(t, "status")
	requireContains(t, out, "idle")
}

func TestModelListMarksConfiguredModel(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.WriteFile(filepath.Join(env.cfg.Separation.ModelsDir, "HP2_all_vocals.pth"), []byte("w"), 0o644); err != nil {
		t.Fatal(err)
	}
	out := env.mustRun(t, "model", "list")
	requireContains(t, out, "large-v2")
	requireContains(t, out, "HP2_all_vocals.pth")
}

func TestConfigShowMasksSecrets(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Translation.ChatKey = "sk-very-secret"
	env.writeConfig(t)

	out := env.mustRun(t, "config", "show")
	if strings.Contains(out, "sk-very-secret") {
		t.Fatalf("secret leaked: %s", out)
	}
	requireContains(t, out, secretMask)

	out = env.mustRun(t, "config", "show", "--reveal")
	requireContains(t, out, "sk-very-secret")
}

func TestConfigInitRefusesOverwrite(t *testing.T) {
	env := setupCLITestEnv(t)
	target := filepath.Join(t.TempDir(), "conf", "subgen.toml")

	out := env.mustRun(t, "config", "init", "--path", target)
	requireContains(t, out, "Wrote sample configuration")
	if _, err := env.run(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected existing file error")
	}
	env.mustRun(t, "config", "init", "--path", target, "--overwrite")
}

func TestConfigImportLegacy(t *testing.T) {
	env := setupCLITestEnv(t)
	legacy := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(legacy, []byte(`{"chat_key": "abc123", "model_name": "medium", "unused": 1}`), 0o644); err != nil {
		t.Fatal(err)
	}

	out := env.mustRun(t, "config", "import", legacy)
	requireContains(t, out, "chat_key")

	cfg, _, _, err := config.Load(env.configPath)
	if err != nil {
		t.Fatalf("reload config: %v", err)
	}
	if cfg.Translation.ChatKey != "abc123" || cfg.Transcription.ModelName != "medium" {
		t.Fatalf("legacy settings not applied: %+v %+v", cfg.Translation, cfg.Transcription)
	}
}

func TestDoctorListsChecks(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _ := env.run(t, "doctor")
	requireContains(t, out, "FFmpeg")
	requireContains(t, out, "Transcription model")
	requireContains(t, out, "Translation")
}

func TestWatchRequiresDirectory(t *testing.T) {
	env := setupCLITestEnv(t)
	_, err := env.run(t, "watch")
	if services.KindOf(err) != services.KindConfig {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestDoctorSendsTestNotification(t *testing.T) {
	var titles []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		titles = append(titles, r.Header.Get("Title"))
	}))
	defer srv.Close()

	env := setupCLITestEnv(t)
	env.cfg.Notifications.NtfyTopic = srv.URL
	env.writeConfig(t)

	out, _ := env.run(t, "doctor", "--notify")
	requireContains(t, out, "Test notification sent")
	if len(titles) != 1 || titles[0] != "subgen - Test" {
		t.Fatalf("unexpected notifications %v", titles)
	}
}
