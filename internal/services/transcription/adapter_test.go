package transcription

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"subgen/internal/services"
	"subgen/internal/subtitles"
)

type fakeEngine struct {
	spec     ModelSpec
	cues     []subtitles.Cue
	err      error
	requests []Request
	closed   bool
}

func (f *fakeEngine) Transcribe(_ context.Context, _ string, _ string, req Request) ([]subtitles.Cue, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return append([]subtitles.Cue(nil), f.cues...), nil
}

func (f *fakeEngine) Close() error {
	f.closed = true
	return nil
}

type recordingFactory struct {
	engines []*fakeEngine
	cues    []subtitles.Cue
	err     error
}

func (r *recordingFactory) factory(_ context.Context, spec ModelSpec) (Engine, error) {
	if r.err != nil {
		return nil, r.err
	}
	engine := &fakeEngine{spec: spec, cues: r.cues}
	r.engines = append(r.engines, engine)
	return engine, nil
}

func sampleCues() []subtitles.Cue {
	return []subtitles.Cue{
		{Index: 1, Start: 0, End: 2 * time.Second, Text: "hello there"},
		{Index: 2, Start: 2 * time.Second, End: 4 * time.Second, Text: "general kenobi"},
	}
}

func writeAudio(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("RIFF"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestResolveModelOrder(t *testing.T) {
	modelsDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(modelsDir, "faster-whisper-small"), 0o755); err != nil {
		t.Fatal(err)
	}
	custom := filepath.Join(t.TempDir(), "my-finetune")
	if err := os.MkdirAll(custom, 0o755); err != nil {
		t.Fatal(err)
	}
	adapter := NewAdapter(nil, Config{ModelsDir: modelsDir}, nil)

	spec, err := adapter.ResolveModel("small", DeviceCPU, custom)
	if err != nil {
		t.Fatalf("custom: %v", err)
	}
	if spec.Path != custom || spec.Name != "my-finetune" {
		t.Fatalf("custom path should win, got %+v", spec)
	}

	spec, err = adapter.ResolveModel("small", DeviceCPU, "")
	if err != nil {
		t.Fatalf("local: %v", err)
	}
	if spec.Path != filepath.Join(modelsDir, "faster-whisper-small") {
		t.Fatalf("expected local model dir, got %+v", spec)
	}

	spec, err = adapter.ResolveModel("large-v3", DeviceCUDA, "")
	if err != nil {
		t.Fatalf("remote: %v", err)
	}
	if spec.Path != "" || spec.Source() != "large-v3" {
		t.Fatalf("expected remote name, got %+v", spec)
	}
}

func TestResolveModelRejectsUnknownAndMissingPath(t *testing.T) {
	adapter := NewAdapter(nil, Config{}, nil)
	if _, err := adapter.ResolveModel("huge-v9", DeviceCPU, ""); !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected input error, got %v", err)
	}
	if _, err := adapter.ResolveModel("", DeviceCPU, filepath.Join(t.TempDir(), "absent")); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLoadReleasesPreviousEngine(t *testing.T) {
	rf := &recordingFactory{}
	adapter := NewAdapter(rf.factory, Config{}, nil)
	ctx := context.Background()

	if _, err := adapter.Load(ctx, "base", DeviceCPU, ""); err != nil {
		t.Fatalf("first load: %v", err)
	}
	if _, err := adapter.Load(ctx, "medium", DeviceCUDA, ""); err != nil {
		t.Fatalf("second load: %v", err)
	}
	if len(rf.engines) != 2 {
		t.Fatalf("expected two engines, got %d", len(rf.engines))
	}
	if !rf.engines[0].closed {
		t.Fatal("first engine should be closed before replacement")
	}
	spec, ok := adapter.Model()
	if !ok || spec.Name != "medium" || spec.Device != DeviceCUDA {
		t.Fatalf("unexpected resident model %+v (loaded=%v)", spec, ok)
	}
}

func TestLoadInvalidDevice(t *testing.T) {
	adapter := NewAdapter((&recordingFactory{}).factory, Config{}, nil)
	if _, err := adapter.Load(context.Background(), "base", Device("tpu"), ""); !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected input error, got %v", err)
	}
}

func TestLoadFactoryFailure(t *testing.T) {
	rf := &recordingFactory{err: errors.New("uvx not found")}
	adapter := NewAdapter(rf.factory, Config{}, nil)
	_, err := adapter.Load(context.Background(), "base", DeviceCPU, "")
	if !errors.Is(err, services.ErrEngineInit) {
		t.Fatalf("expected engine init error, got %v", err)
	}
	if adapter.Loaded() {
		t.Fatal("adapter should have no engine after a failed load")
	}
}

func TestTranscribeWithoutModel(t *testing.T) {
	adapter := NewAdapter(nil, Config{}, nil)
	_, err := adapter.Transcribe(context.Background(), "a.wav", Options{Language: LanguageEnglish})
	if !errors.Is(err, services.ErrPrecondition) {
		t.Fatalf("expected precondition error, got %v", err)
	}
}

func TestTranscribeWritesArtifacts(t *testing.T) {
	dir := t.TempDir()
	audio := writeAudio(t, dir, "talk.wav")
	rf := &recordingFactory{cues: sampleCues()}
	adapter := NewAdapter(rf.factory, Config{}, nil)
	if _, err := adapter.Load(context.Background(), "base", DeviceCPU, ""); err != nil {
		t.Fatal(err)
	}

	silence := 700
	result, err := adapter.Transcribe(context.Background(), audio, Options{
		Language:             LanguageEnglish,
		MinSilenceDurationMs: &silence,
		InitialPrompt:        "   ",
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if result.SRTPath != filepath.Join(dir, "talk.srt") || result.ASSPath != filepath.Join(dir, "talk.ass") {
		t.Fatalf("unexpected paths %+v", result)
	}
	cues, err := subtitles.ReadSRT(result.SRTPath)
	if err != nil || len(cues) != 2 {
		t.Fatalf("expected 2 srt cues, got %d (%v)", len(cues), err)
	}
	doc, err := subtitles.ReadASS(result.ASSPath)
	if err != nil || len(doc.Cues) != 2 {
		t.Fatalf("expected 2 ass cues, got %+v (%v)", doc, err)
	}

	req := rf.engines[0].requests[0]
	if req.MinSilenceDurationMs != nil {
		t.Fatal("silence duration must not be sent without VAD")
	}
	if req.InitialPrompt != "" {
		t.Fatalf("blank prompt should be dropped, got %q", req.InitialPrompt)
	}
	if req.Language != "en" {
		t.Fatalf("unexpected language %q", req.Language)
	}
}

func TestTranscribeSendsSilenceOnlyWithVAD(t *testing.T) {
	dir := t.TempDir()
	audio := writeAudio(t, dir, "talk.wav")
	rf := &recordingFactory{cues: sampleCues()}
	adapter := NewAdapter(rf.factory, Config{}, nil)
	if _, err := adapter.Load(context.Background(), "base", DeviceCPU, ""); err != nil {
		t.Fatal(err)
	}
	silence := 500
	if _, err := adapter.Transcribe(context.Background(), audio, Options{
		Language:             LanguageJapanese,
		VADFilter:            true,
		MinSilenceDurationMs: &silence,
	}); err != nil {
		t.Fatal(err)
	}
	req := rf.engines[0].requests[0]
	if req.MinSilenceDurationMs == nil || *req.MinSilenceDurationMs != 500 {
		t.Fatalf("expected silence duration with VAD, got %+v", req)
	}
}

func TestTranscribeAppliesSplitOnlyWhenEnabled(t *testing.T) {
	dir := t.TempDir()
	audio := writeAudio(t, dir, "talk.wav")
	rf := &recordingFactory{cues: sampleCues()}
	adapter := NewAdapter(rf.factory, Config{}, nil)
	if _, err := adapter.Load(context.Background(), "base", DeviceCPU, ""); err != nil {
		t.Fatal(err)
	}

	// An invalid split method is ignored when splitting is off.
	result, err := adapter.Transcribe(context.Background(), audio, Options{
		Language:    LanguageEnglish,
		SplitMethod: "bogus",
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	cues, _ := subtitles.ReadSRT(result.SRTPath)
	if len(cues) != 2 {
		t.Fatalf("expected unsplit cues, got %d", len(cues))
	}

	result, err = adapter.Transcribe(context.Background(), audio, Options{
		Language:    LanguageEnglish,
		TextSplit:   true,
		SplitMethod: subtitles.SplitAggressive,
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	cues, _ = subtitles.ReadSRT(result.SRTPath)
	if len(cues) != 4 {
		t.Fatalf("expected 4 word cues, got %d", len(cues))
	}
}

func TestTranscribeValidation(t *testing.T) {
	dir := t.TempDir()
	audio := writeAudio(t, dir, "talk.wav")
	rf := &recordingFactory{cues: sampleCues()}
	adapter := NewAdapter(rf.factory, Config{}, nil)
	if _, err := adapter.Load(context.Background(), "base", DeviceCPU, ""); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if _, err := adapter.Transcribe(ctx, audio, Options{Language: "fr"}); !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected input error for language, got %v", err)
	}
	if _, err := adapter.Transcribe(ctx, audio, Options{Language: LanguageEnglish, TextSplit: true, SplitMethod: "bogus"}); !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected input error for split method, got %v", err)
	}
	if _, err := adapter.Transcribe(ctx, filepath.Join(dir, "none.wav"), Options{Language: LanguageEnglish}); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestTranscribeEngineFailureKeepsAdapterUsable(t *testing.T) {
	dir := t.TempDir()
	audio := writeAudio(t, dir, "talk.wav")
	rf := &recordingFactory{cues: sampleCues()}
	adapter := NewAdapter(rf.factory, Config{}, nil)
	if _, err := adapter.Load(context.Background(), "base", DeviceCPU, ""); err != nil {
		t.Fatal(err)
	}
	rf.engines[0].err = errors.New("cuda out of memory")
	if _, err := adapter.Transcribe(context.Background(), audio, Options{Language: LanguageEnglish}); !errors.Is(err, services.ErrInference) {
		t.Fatalf("expected inference error, got %v", err)
	}
	rf.engines[0].err = nil
	if _, err := adapter.Transcribe(context.Background(), audio, Options{Language: LanguageEnglish}); err != nil {
		t.Fatalf("adapter should recover: %v", err)
	}
}

func TestParseLanguageAcceptsLegacyLabels(t *testing.T) {
	cases := map[string]Language{"中文": LanguageChinese, "日文": LanguageJapanese, "EN": LanguageEnglish}
	for in, want := range cases {
		got, err := ParseLanguage(in)
		if err != nil || got != want {
			t.Fatalf("ParseLanguage(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseLanguage("klingon"); !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected input error, got %v", err)
	}
}

func TestCLIEngineArgsAndSegments(t *testing.T) {
	dir := t.TempDir()
	audio := writeAudio(t, dir, "talk.wav")
	var captured []string
	run := func(_ context.Context, name string, args ...string) ([]byte, error) {
		if name != "uvx" {
			t.Fatalf("unexpected binary %s", name)
		}
		for i, arg := range args {
			if arg == "--output_dir" {
				captured = args
				payload := `{"segments":[{"start":0.0,"end":1.25,"text":" hi "},{"start":1.25,"end":2,"text":"  "},{"start":2,"end":3.5,"text":"bye"}]}`
				if err := os.WriteFile(filepath.Join(args[i+1], "talk.json"), []byte(payload), 0o644); err != nil {
					t.Fatal(err)
				}
			}
		}
		return nil, nil
	}
	engine, err := NewCLIFactory(CLIOptions{Run: run})(context.Background(), ModelSpec{Name: "base", Device: DeviceCPU, ComputeType: "int8"})
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	silence := 300
	cues, err := engine.Transcribe(context.Background(), audio, dir, Request{
		Language:             "ja",
		VADFilter:            true,
		MinSilenceDurationMs: &silence,
		InitialPrompt:        "anime",
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(cues) != 2 || cues[0].End != 1250*time.Millisecond || cues[1].Index != 2 {
		t.Fatalf("unexpected cues %+v", cues)
	}
	joined := strings.Join(captured, " ")
	for _, want := range []string{"--model base", "--compute_type int8", "--language ja", "--vad_filter True", "--vad_min_silence_duration_ms 300", "--initial_prompt anime"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("missing %q in %s", want, joined)
		}
	}
	entries, _ := os.ReadDir(dir)
	for _, entry := range entries {
		if entry.IsDir() {
			t.Fatalf("engine scratch dir %s should be removed", entry.Name())
		}
	}
}
