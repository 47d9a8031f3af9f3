package pipeline_test

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"subgen/internal/config"
	"subgen/internal/pipeline"
	"subgen/internal/services"
	"subgen/internal/services/separation"
	"subgen/internal/services/transcription"
	"subgen/internal/services/translation"
	"subgen/internal/session"
	"subgen/internal/subtitles"
	"subgen/internal/testsupport"
	"subgen/internal/workspace"
)

type fakeExtractor struct {
	calls int
	err   error
}

func (f *fakeExtractor) Extract(_ context.Context, _ string, outAudioPath string) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(outAudioPath, []byte("RIFF-extracted"), 0o644)
}

type fakeMuxer struct {
	calls    int
	subtitle string
	err      error
}

func (f *fakeMuxer) BurnSubtitles(_ context.Context, _ string, subtitlePath, outVideoPath string) error {
	f.calls++
	f.subtitle = subtitlePath
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(outVideoPath, []byte("video"), 0o644)
}

type fakeBackend struct{}

func (fakeBackend) LoadModel(context.Context, string) error { return nil }

func (fakeBackend) Separate(_ context.Context, audioPath string) (string, string, error) {
	dir := filepath.Dir(audioPath)
	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	primary := filepath.Join(dir, base+"_(Instrumental).wav")
	secondary := filepath.Join(dir, base+"_(Vocals).wav")
	for _, p := range []string{primary, secondary} {
		if err := os.WriteFile(p, []byte("stem"), 0o644); err != nil {
			return "", "", err
		}
	}
	return primary, secondary, nil
}

func (fakeBackend) Close() error { return nil }

type fakeEngine struct {
	mu     sync.Mutex
	inputs []string
}

func (f *fakeEngine) Transcribe(_ context.Context, audioPath, _ string, _ transcription.Request) ([]subtitles.Cue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, audioPath)
	return []subtitles.Cue{
		{Index: 1, Start: 0, End: 2 * time.Second, Text: "hello there"},
		{Index: 2, Start: 2 * time.Second, End: 4 * time.Second, Text: "general kenobi"},
	}, nil
}

func (f *fakeEngine) Close() error { return nil }

type harness struct {
	t         *testing.T
	cfg       *config.Config
	store     *session.Store
	extractor *fakeExtractor
	muxer     *fakeMuxer
	engine    *fakeEngine
	specs     []transcription.ModelSpec
	sepCalls  int
	sepErr    error
	trOpts    []translation.Option
	sourceDir string
	orch      *pipeline.Orchestrator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	h := &harness{
		t:         t,
		cfg:       cfg,
		store:     testsupport.MustOpenStore(t, cfg),
		extractor: &fakeExtractor{},
		muxer:     &fakeMuxer{},
		engine:    &fakeEngine{},
		sourceDir: t.TempDir(),
	}
	h.orch = h.open()
	return h
}

func (h *harness) deps() pipeline.Dependencies {
	ws, err := workspace.New(h.cfg.Paths.WorkspaceDir, nil)
	if err != nil {
		h.t.Fatalf("workspace.New: %v", err)
	}
	return pipeline.Dependencies{
		Workspace: ws,
		Store:     h.store,
		Extractor: h.extractor,
		Muxer:     h.muxer,
		SeparationFactory: func(context.Context, separation.BackendConfig) (separation.Backend, error) {
			h.sepCalls++
			if h.sepErr != nil {
				return nil, h.sepErr
			}
			return fakeBackend{}, nil
		},
		TranscriptionFactory: func(_ context.Context, spec transcription.ModelSpec) (transcription.Engine, error) {
			h.specs = append(h.specs, spec)
			return h.engine, nil
		},
		TranslationOptions: h.trOpts,
	}
}

func (h *harness) open() *pipeline.Orchestrator {
	h.t.Helper()
	orch, err := pipeline.New(context.Background(), h.cfg, h.deps())
	if err != nil {
		h.t.Fatalf("pipeline.New: %v", err)
	}
	h.t.Cleanup(func() { _ = orch.Close() })
	return orch
}

func (h *harness) source(name, content string) string {
	h.t.Helper()
	path := filepath.Join(h.sourceDir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		h.t.Fatal(err)
	}
	return path
}

func (h *harness) wsPath(name string) string {
	return filepath.Join(h.cfg.Paths.WorkspaceDir, name)
}

func (h *harness) upload(name string, kind session.MediaKind) {
	h.t.Helper()
	if err := h.orch.Upload(context.Background(), h.source(name, "source-bytes"), kind); err != nil {
		h.t.Fatalf("Upload: %v", err)
	}
}

func (h *harness) loadModel() {
	h.t.Helper()
	if _, err := h.orch.LoadModel(context.Background(), session.ModelSelection{Name: "small", Device: "cpu"}); err != nil {
		h.t.Fatalf("LoadModel: %v", err)
	}
}

func (h *harness) transcribe() session.Transcript {
	h.t.Helper()
	out, err := h.orch.Transcribe(context.Background(), transcription.Options{Language: transcription.LanguageJapanese})
	if err != nil {
		h.t.Fatalf("Transcribe: %v", err)
	}
	return out
}

func bundleEntries(t *testing.T, path string) []string {
	t.Helper()
	r, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open bundle: %v", err)
	}
	defer r.Close()
	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	slices.Sort(names)
	return names
}

func gptServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": "译文"}}},
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func gptCredentials(server *httptest.Server) translation.Credentials {
	return translation.Credentials{
		ChatURL:        server.URL + "/v1",
		ChatKey:        "secret",
		ChatModel:      "gpt-4-turbo",
		TargetLanguage: "zh",
	}
}

func TestUploadVideoCopiesAndExtracts(t *testing.T) {
	h := newHarness(t)
	h.upload("talk.mp4", session.MediaVideo)

	state := h.orch.Status().State
	if state.VideoPath != h.wsPath("talk_temp.mp4") || state.VideoName != "talk" {
		t.Fatalf("unexpected video handles %+v", state)
	}
	if state.AudioPath != h.wsPath("talk.wav") || state.Stage != session.StageMediaLoaded {
		t.Fatalf("unexpected audio handle %+v", state)
	}
	if data, err := os.ReadFile(state.VideoPath); err != nil || string(data) != "source-bytes" {
		t.Fatalf("video copy missing: %q %v", data, err)
	}
	if h.extractor.calls != 1 {
		t.Fatalf("expected one extraction, got %d", h.extractor.calls)
	}

	h.upload("talk.mp4", session.MediaVideo)
	if h.extractor.calls != 1 {
		t.Fatalf("cached audio should be reused, extractor ran %d times", h.extractor.calls)
	}
}

func TestUploadAudioClearsVideoHandle(t *testing.T) {
	h := newHarness(t)
	h.upload("talk.mp4", session.MediaVideo)
	h.upload("song.mp3", session.MediaAudio)

	state := h.orch.Status().State
	if state.VideoPath != "" || state.VideoName != "" {
		t.Fatalf("video handle should be cleared: %+v", state)
	}
	if state.AudioPath != h.wsPath("song.wav") || state.Kind != session.MediaAudio {
		t.Fatalf("unexpected audio handle %+v", state)
	}
	if data, _ := os.ReadFile(state.AudioPath); string(data) != "source-bytes" {
		t.Fatalf("audio should be copied verbatim, got %q", data)
	}
}

func TestUploadRejectsBadInput(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.orch.Upload(ctx, "  ", session.MediaVideo); !errors.Is(err, services.ErrInput) {
		t.Fatalf("blank source: expected input error, got %v", err)
	}
	if err := h.orch.Upload(ctx, h.source("a.mp4", "x"), session.MediaKind("image")); !errors.Is(err, services.ErrInput) {
		t.Fatalf("bad kind: expected input error, got %v", err)
	}
	if err := h.orch.Upload(ctx, filepath.Join(h.sourceDir, "missing.mp4"), session.MediaVideo); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("missing source: expected not found, got %v", err)
	}
	if stage := h.orch.Status().State.Stage; stage != session.StageIdle {
		t.Fatalf("failed uploads must not move the session, stage=%s", stage)
	}
}

func TestUploadExtractionFailureKeepsPreviousState(t *testing.T) {
	h := newHarness(t)
	h.upload("first.mp3", session.MediaAudio)
	h.extractor.err = services.Wrap(services.KindInference, "media", "extract", "ffmpeg failed", nil)

	err := h.orch.Upload(context.Background(), h.source("second.mp4", "x"), session.MediaVideo)
	if !errors.Is(err, services.ErrInference) {
		t.Fatalf("expected inference error, got %v", err)
	}
	if state := h.orch.Status().State; state.AudioPath != h.wsPath("first.wav") {
		t.Fatalf("previous upload should remain current: %+v", state)
	}
}

func TestNewUploadResetsDerivedHandles(t *testing.T) {
	h := newHarness(t)
	h.upload("talk.mp3", session.MediaAudio)
	if err := h.orch.Clean(context.Background()); err != nil {
		t.Fatalf("Clean: %v", err)
	}
	h.loadModel()
	h.transcribe()

	h.upload("other.mp3", session.MediaAudio)
	state := h.orch.Status().State
	if state.CleanedAudioPath != "" || state.Transcript != nil || state.Bundle != "" {
		t.Fatalf("derived handles should reset on upload: %+v", state)
	}
	if state.Model == nil || state.Model.Name != "small" {
		t.Fatalf("model selection should survive an upload: %+v", state.Model)
	}
}

func TestCleanRequiresAudio(t *testing.T) {
	h := newHarness(t)
	before := h.orch.Status().State
	err := h.orch.Clean(context.Background())
	if !errors.Is(err, services.ErrPrecondition) {
		t.Fatalf("expected precondition error, got %v", err)
	}
	if h.sepCalls != 0 {
		t.Fatal("separation engine should not be built without audio")
	}
	if after := h.orch.Status().State; !reflect.DeepEqual(before, after) {
		t.Fatalf("state changed by a rejected clean:\nbefore %+v\nafter  %+v", before, after)
	}
	persisted, err := h.store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if persisted.Stage != session.StageIdle || persisted.CleanedAudioPath != "" {
		t.Fatalf("persisted state changed by a rejected clean: %+v", persisted)
	}
}

func TestCleanStoresSecondaryStemAndReusesEngine(t *testing.T) {
	h := newHarness(t)
	h.upload("talk.mp3", session.MediaAudio)
	ctx := context.Background()

	for range 2 {
		if err := h.orch.Clean(ctx); err != nil {
			t.Fatalf("Clean: %v", err)
		}
	}
	state := h.orch.Status().State
	if state.CleanedAudioPath != h.wsPath("talk_(Vocals).wav") {
		t.Fatalf("unexpected cleaned audio %s", state.CleanedAudioPath)
	}
	if state.AudioPath != h.wsPath("talk.wav") || state.Stage != session.StageAudioCleaned {
		t.Fatalf("original audio should stay addressable: %+v", state)
	}
	if h.sepCalls != 1 {
		t.Fatalf("engine should be built once, got %d", h.sepCalls)
	}
	if status := h.orch.Status(); status.SeparationState != "ready" || status.SeparationModel == "" {
		t.Fatalf("unexpected separation status %+v", status)
	}
}

func TestCleanInitFailureLeavesEngineAbsent(t *testing.T) {
	h := newHarness(t)
	h.upload("talk.mp3", session.MediaAudio)
	h.sepErr = errors.New("python runtime missing")

	err := h.orch.Clean(context.Background())
	if !errors.Is(err, services.ErrEngineInit) {
		t.Fatalf("expected engine init error, got %v", err)
	}
	if status := h.orch.Status(); status.SeparationState != "uninitialized" || status.State.CleanedAudioPath != "" {
		t.Fatalf("engine should stay absent: %+v", status)
	}

	h.sepErr = nil
	if err := h.orch.Clean(context.Background()); err != nil {
		t.Fatalf("retry Clean: %v", err)
	}
	if h.sepCalls != 2 {
		t.Fatalf("expected construction retry, got %d calls", h.sepCalls)
	}
}

func TestTranscribePreconditions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	opts := transcription.Options{Language: transcription.LanguageJapanese}

	if _, err := h.orch.Transcribe(ctx, opts); !errors.Is(err, services.ErrPrecondition) {
		t.Fatalf("no audio: expected precondition, got %v", err)
	}
	h.upload("talk.mp3", session.MediaAudio)
	if _, err := h.orch.Transcribe(ctx, opts); !errors.Is(err, services.ErrPrecondition) {
		t.Fatalf("no model: expected precondition, got %v", err)
	}
	if stage := h.orch.Status().State.Stage; stage != session.StageMediaLoaded {
		t.Fatalf("stage should stay media_loaded, got %s", stage)
	}
}

func TestTranscribePrefersCleanedAudio(t *testing.T) {
	h := newHarness(t)
	h.upload("talk.mp3", session.MediaAudio)
	h.loadModel()

	h.transcribe()
	if err := h.orch.Clean(context.Background()); err != nil {
		t.Fatalf("Clean: %v", err)
	}
	out := h.transcribe()

	want := []string{h.wsPath("talk.wav"), h.wsPath("talk_(Vocals).wav")}
	if !slices.Equal(h.engine.inputs, want) {
		t.Fatalf("unexpected engine inputs %v", h.engine.inputs)
	}
	if out.SRTPath != h.wsPath("talk_(Vocals).srt") {
		t.Fatalf("unexpected transcript %+v", out)
	}
	if h.orch.Status().State.Stage != session.StageTranscribed {
		t.Fatal("stage should be transcribed")
	}
}

func TestTranscribeInvalidOptionsRejected(t *testing.T) {
	h := newHarness(t)
	h.upload("talk.mp3", session.MediaAudio)
	h.loadModel()
	_, err := h.orch.Transcribe(context.Background(), transcription.Options{Language: "fr"})
	if !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected input error, got %v", err)
	}
}

func TestLoadModelRejectsUnknownModel(t *testing.T) {
	h := newHarness(t)
	_, err := h.orch.LoadModel(context.Background(), session.ModelSelection{Name: "huge-v9", Device: "cpu"})
	if !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected input error, got %v", err)
	}
	if h.orch.Status().State.Model != nil {
		t.Fatal("failed load must not record a selection")
	}
}

func TestPersistedModelRestoredInLaterProcess(t *testing.T) {
	h := newHarness(t)
	h.upload("talk.mp3", session.MediaAudio)
	h.loadModel()
	if err := h.orch.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	h.orch = h.open()
	if h.orch.Status().ModelLoaded {
		t.Fatal("new process should start without a resident engine")
	}
	h.transcribe()
	if len(h.specs) != 2 || h.specs[1].Name != "small" || h.specs[1].Device != transcription.DeviceCPU {
		t.Fatalf("expected model restored from session, specs=%+v", h.specs)
	}
}

func TestPackageRequiresTranscript(t *testing.T) {
	h := newHarness(t)
	h.upload("talk.mp3", session.MediaAudio)
	_, err := h.orch.Package(context.Background(), pipeline.PackageOptions{})
	if !errors.Is(err, services.ErrPrecondition) {
		t.Fatalf("expected precondition error, got %v", err)
	}
}

func TestPackageWithoutProviderBundlesTranscript(t *testing.T) {
	h := newHarness(t)
	h.upload("talk.mp3", session.MediaAudio)
	h.loadModel()
	h.transcribe()

	out, err := h.orch.Package(context.Background(), pipeline.PackageOptions{RenderVideo: true})
	if err != nil {
		t.Fatalf("Package: %v", err)
	}
	if out.Bundle != h.wsPath("talk.zip") || out.Translated != nil {
		t.Fatalf("unexpected result %+v", out)
	}
	if got := bundleEntries(t, out.Bundle); !slices.Equal(got, []string{"talk.ass", "talk.srt"}) {
		t.Fatalf("unexpected bundle entries %v", got)
	}
	if out.RenderedVideo != "" || h.muxer.calls != 0 {
		t.Fatal("audio-only sessions never render video")
	}
	if h.orch.Status().State.Stage != session.StagePackaged {
		t.Fatal("stage should be packaged")
	}
}

func TestPackageTranslatesWithActiveProvider(t *testing.T) {
	h := newHarness(t)
	server := gptServer(t)
	ctx := context.Background()
	h.upload("talk.mp3", session.MediaAudio)
	h.loadModel()
	h.transcribe()

	if err := h.orch.SetTranslationProvider(ctx, translation.KindGPT, gptCredentials(server)); err != nil {
		t.Fatalf("SetTranslationProvider: %v", err)
	}
	out, err := h.orch.Package(ctx, pipeline.PackageOptions{})
	if err != nil {
		t.Fatalf("Package: %v", err)
	}
	if out.Translated == nil || out.Translated.ASSPath != h.wsPath("talk.zh.ass") {
		t.Fatalf("unexpected translated handle %+v", out.Translated)
	}
	want := []string{"talk.ass", "talk.srt", "talk.zh.ass", "talk.zh.srt"}
	if got := bundleEntries(t, out.Bundle); !slices.Equal(got, want) {
		t.Fatalf("unexpected bundle entries %v", got)
	}
	cues, err := subtitles.ReadSRT(out.Translated.SRTPath)
	if err != nil || len(cues) != 2 || cues[0].Text != "译文" {
		t.Fatalf("unexpected translated cues %+v %v", cues, err)
	}

	if err := h.orch.SetTranslationProvider(ctx, translation.KindNone, translation.Credentials{}); err != nil {
		t.Fatalf("clear provider: %v", err)
	}
	if h.orch.Status().State.Translated == nil {
		t.Fatal("clearing the provider must not touch existing translations")
	}
	out, err = h.orch.Package(ctx, pipeline.PackageOptions{})
	if err != nil {
		t.Fatalf("second Package: %v", err)
	}
	if got := bundleEntries(t, out.Bundle); !slices.Equal(got, []string{"talk.ass", "talk.srt"}) {
		t.Fatalf("stale translations should leave the bundle, got %v", got)
	}
	if _, err := os.Stat(h.wsPath("talk.zh.ass")); err != nil {
		t.Fatalf("translated file should remain on disk: %v", err)
	}
}

func TestSetProviderMissingCredentialsKeepsPrevious(t *testing.T) {
	h := newHarness(t)
	server := gptServer(t)
	ctx := context.Background()
	if err := h.orch.SetTranslationProvider(ctx, translation.KindGPT, gptCredentials(server)); err != nil {
		t.Fatalf("SetTranslationProvider: %v", err)
	}
	err := h.orch.SetTranslationProvider(ctx, translation.KindBaidu, translation.Credentials{BaiduAppID: "id"})
	if !errors.Is(err, services.ErrConfig) || !strings.Contains(err.Error(), "baidu_appkey") {
		t.Fatalf("expected config error naming baidu_appkey, got %v", err)
	}
	status := h.orch.Status()
	if status.Provider != translation.KindGPT || status.State.Provider != "gpt" {
		t.Fatalf("previous provider should stay active: %+v", status)
	}
}

func TestPackageRendersVideo(t *testing.T) {
	h := newHarness(t)
	h.upload("talk.mp4", session.MediaVideo)
	h.loadModel()
	transcript := h.transcribe()

	out, err := h.orch.Package(context.Background(), pipeline.PackageOptions{RenderVideo: true})
	if err != nil {
		t.Fatalf("Package: %v", err)
	}
	if out.RenderedVideo != h.wsPath("talk_output.mp4") || h.muxer.subtitle != transcript.ASSPath {
		t.Fatalf("unexpected render %+v (muxer got %s)", out, h.muxer.subtitle)
	}
	if out.Bundle != h.wsPath("talk.zip") {
		t.Fatalf("unexpected bundle path %s", out.Bundle)
	}
	if got := bundleEntries(t, out.Bundle); !slices.Equal(got, []string{"talk.ass", "talk.srt"}) {
		t.Fatalf("unexpected bundle entries %v", got)
	}
}

func TestPackageProviderFailureKeepsStateAndBundle(t *testing.T) {
	h := newHarness(t)
	_ = h.orch.Close()
	h.trOpts = []translation.Option{
		translation.WithRetryMaxAttempts(1),
		translation.WithSleeper(func(time.Duration) {}),
	}
	h.orch = h.open()
	ctx := context.Background()

	h.upload("talk.mp3", session.MediaAudio)
	h.loadModel()
	h.transcribe()
	first, err := h.orch.Package(ctx, pipeline.PackageOptions{})
	if err != nil {
		t.Fatalf("first Package: %v", err)
	}
	previous, err := os.ReadFile(first.Bundle)
	if err != nil {
		t.Fatal(err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)
	if err := h.orch.SetTranslationProvider(ctx, translation.KindGPT, gptCredentials(server)); err != nil {
		t.Fatalf("SetTranslationProvider: %v", err)
	}
	before := h.orch.Status().State

	if _, err := h.orch.Package(ctx, pipeline.PackageOptions{}); err == nil {
		t.Fatal("expected provider failure to fail packaging")
	}
	if after := h.orch.Status().State; !reflect.DeepEqual(before, after) {
		t.Fatalf("state changed by a failed package:\nbefore %+v\nafter  %+v", before, after)
	}
	persisted, err := h.store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if persisted.Translated != nil || persisted.Bundle != first.Bundle || persisted.Stage != session.StagePackaged {
		t.Fatalf("persisted state changed by a failed package: %+v", persisted)
	}
	current, err := os.ReadFile(first.Bundle)
	if err != nil {
		t.Fatalf("previous bundle removed: %v", err)
	}
	if !slices.Equal(previous, current) {
		t.Fatal("previous bundle rewritten by a failed package")
	}
	for _, name := range []string{"talk.zh.ass", "talk.zh.srt"} {
		if _, err := os.Stat(h.wsPath(name)); !os.IsNotExist(err) {
			t.Fatalf("%s written by a failed translation, stat err=%v", name, err)
		}
	}
}

func TestPackageRenderFailureIsNotFatal(t *testing.T) {
	h := newHarness(t)
	h.muxer.err = errors.New("encoder crashed")
	h.upload("talk.mp4", session.MediaVideo)
	h.loadModel()
	h.transcribe()

	out, err := h.orch.Package(context.Background(), pipeline.PackageOptions{RenderVideo: true})
	if err != nil {
		t.Fatalf("render failure must not fail packaging: %v", err)
	}
	if out.RenderedVideo != "" || out.Bundle == "" {
		t.Fatalf("unexpected result %+v", out)
	}
}

func TestRunFullPassRecordsHistory(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	out, err := h.orch.Run(ctx, pipeline.RunRequest{
		Source:  h.source("talk.mp4", "x"),
		Kind:    session.MediaVideo,
		Clean:   true,
		Model:   session.ModelSelection{Name: "base", Device: "cpu"},
		Options: transcription.Options{Language: transcription.LanguageEnglish},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Bundle != h.wsPath("talk.zip") {
		t.Fatalf("unexpected bundle %s", out.Bundle)
	}
	if got := h.engine.inputs; len(got) != 1 || got[0] != h.wsPath("talk_(Vocals).wav") {
		t.Fatalf("run should transcribe cleaned audio, got %v", got)
	}

	runs, err := h.orch.History(ctx, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(runs) != 1 || runs[0].Operation != "run" || runs[0].Status != session.RunSucceeded {
		t.Fatalf("unexpected history %+v", runs)
	}
	if !slices.Contains(runs[0].Artifacts, out.Bundle) {
		t.Fatalf("run artifacts should include the bundle: %v", runs[0].Artifacts)
	}
}

func TestFailedOperationRecordedWithKind(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_ = h.orch.Clean(ctx)

	runs, err := h.orch.History(ctx, 1)
	if err != nil || len(runs) != 1 {
		t.Fatalf("History: %v %v", runs, err)
	}
	if runs[0].Status != session.RunFailed || runs[0].ErrorKind != string(services.KindPrecondition) {
		t.Fatalf("unexpected failed run %+v", runs[0])
	}
}

func TestClearWorkspaceResetsMedia(t *testing.T) {
	h := newHarness(t)
	server := gptServer(t)
	ctx := context.Background()
	if err := h.orch.SetTranslationProvider(ctx, translation.KindGPT, gptCredentials(server)); err != nil {
		t.Fatal(err)
	}
	h.upload("talk.mp3", session.MediaAudio)

	if err := h.orch.ClearWorkspace(ctx); err != nil {
		t.Fatalf("ClearWorkspace: %v", err)
	}
	if _, err := os.Stat(h.wsPath("talk.wav")); !os.IsNotExist(err) {
		t.Fatalf("workspace file should be removed, stat err=%v", err)
	}
	state := h.orch.Status().State
	if state.HasAudio() || state.Stage != session.StageIdle || state.Provider != "gpt" {
		t.Fatalf("unexpected state after clear %+v", state)
	}
}

func TestSecondOrchestratorIsLockedOut(t *testing.T) {
	h := newHarness(t)
	_, err := pipeline.New(context.Background(), h.cfg, h.deps())
	if !errors.Is(err, services.ErrPrecondition) {
		t.Fatalf("expected precondition error while locked, got %v", err)
	}
}

func TestProviderRestoredFromConfig(t *testing.T) {
	h := newHarness(t)
	server := gptServer(t)
	if err := h.orch.SetTranslationProvider(context.Background(), translation.KindGPT, gptCredentials(server)); err != nil {
		t.Fatal(err)
	}
	_ = h.orch.Close()

	h.cfg.Translation.ChatURL = server.URL + "/v1"
	h.cfg.Translation.ChatKey = "secret"
	h.orch = h.open()
	if got := h.orch.Status().Provider; got != translation.KindGPT {
		t.Fatalf("expected provider restored from config, got %s", got)
	}

	_ = h.orch.Close()
	h.cfg.Translation.ChatKey = ""
	h.orch = h.open()
	if got := h.orch.Status().Provider; got != translation.KindNone {
		t.Fatalf("provider without credentials should fall back to none, got %s", got)
	}
}

func TestTranslationTargetRestoredInLaterProcess(t *testing.T) {
	h := newHarness(t)
	server := gptServer(t)
	creds := gptCredentials(server)
	creds.TargetLanguage = "ja"
	if err := h.orch.SetTranslationProvider(context.Background(), translation.KindGPT, creds); err != nil {
		t.Fatal(err)
	}
	_ = h.orch.Close()

	h.cfg.Translation.ChatURL = server.URL + "/v1"
	h.cfg.Translation.ChatKey = "secret"
	h.cfg.Translation.TargetLanguage = "zh"
	h.orch = h.open()
	status := h.orch.Status()
	if status.TargetLanguage != "ja" || status.State.TargetLanguage != "ja" {
		t.Fatalf("selected target should win over config, got %q (state %q)", status.TargetLanguage, status.State.TargetLanguage)
	}

	h.upload("talk.mp3", session.MediaAudio)
	if got := h.orch.Status().State.TargetLanguage; got != "ja" {
		t.Fatalf("upload should keep the selected target, got %q", got)
	}
	h.loadModel()
	h.transcribe()
	out, err := h.orch.Package(context.Background(), pipeline.PackageOptions{})
	if err != nil {
		t.Fatalf("Package: %v", err)
	}
	if out.Translated == nil || out.Translated.SRTPath != h.wsPath("talk.ja.srt") {
		t.Fatalf("unexpected translated handle %+v", out.Translated)
	}
}
