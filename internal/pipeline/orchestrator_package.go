package pipeline

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"subgen/internal/fileutil"
	"subgen/internal/logging"
	"subgen/internal/services"
	"subgen/internal/session"
	"subgen/internal/workspace"
)

// Package translates the transcript when a provider is active, writes a fresh
// <audio base>.zip and, for uploaded videos, optionally burns the subtitles
// into <video name>_output.mp4. A rendering failure is logged and the result
// carries no video.
func (o *Orchestrator) Package(ctx context.Context, opts PackageOptions) (PackageResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out PackageResult
	err := o.track(ctx, "package", func(ctx context.Context) ([]string, error) {
		var err error
		out, err = o.pack(ctx, opts)
		return out.artifacts(), err
	})
	return out, err
}

func (r PackageResult) artifacts() []string {
	files := []string{r.Bundle}
	files = append(files, r.Transcript.Paths()...)
	files = append(files, r.Translated.Paths()...)
	return append(files, r.RenderedVideo)
}

func (o *Orchestrator) pack(ctx context.Context, opts PackageOptions) (PackageResult, error) {
	if o.state.Transcript == nil {
		return PackageResult{}, precondition("package", "package", "no transcript available", "run `subgen transcribe` first")
	}
	logger := logging.WithContext(ctx, o.logger)
	next := o.state.Clone()

	next.Translated = nil
	if o.engines.Translator != nil {
		res, err := o.engines.Translator.TranslateDocument(ctx, next.Transcript.ASSPath)
		if err != nil {
			return PackageResult{}, err
		}
		next.Translated = &session.Transcript{SRTPath: res.SRTPath, ASSPath: res.ASSPath}
	}

	bundle := o.ws.ResolvePath(next.AudioPath, workspace.SuffixBundle)
	if next.AudioPath == "" {
		bundle = o.ws.ResolvePath(next.Transcript.SRTPath, workspace.SuffixBundle)
	}
	files := append(next.Transcript.Paths(), next.Translated.Paths()...)
	if err := writeBundle(bundle, files); err != nil {
		return PackageResult{}, services.Wrap(services.KindStorage, "package", "write bundle", bundle, err)
	}
	next.Bundle = bundle

	next.RenderedVideo = ""
	if opts.RenderVideo && next.VideoPath != "" {
		next.RenderedVideo = o.render(ctx, logger, next)
	}

	next.Stage = session.StagePackaged
	if err := o.commit(ctx, next); err != nil {
		return PackageResult{}, err
	}
	return PackageResult{
		Bundle:        next.Bundle,
		Transcript:    *next.Transcript,
		Translated:    next.Translated,
		RenderedVideo: next.RenderedVideo,
	}, nil
}

// render returns the rendered video path, or "" when burning failed.
func (o *Orchestrator) render(ctx context.Context, logger *slog.Logger, state session.State) string {
	out := filepath.Join(o.ws.Dir(), state.VideoName+workspace.SuffixRendered)
	if o.muxer == nil {
		logging.WarnWithContext(logger, "video rendering skipped", "render_skipped",
			logging.String("reason", "no muxer configured"),
			logging.String(logging.FieldImpact, "bundle produced without rendered video"),
		)
		return ""
	}
	if err := o.muxer.BurnSubtitles(ctx, state.VideoPath, state.Transcript.ASSPath, out); err != nil {
		logging.WarnWithContext(logger, "video rendering failed", "render_failed",
			logging.Error(err),
			logging.String("video", state.VideoPath),
			logging.String(logging.FieldErrorHint, services.Describe(err)),
			logging.String(logging.FieldImpact, "bundle produced without rendered video"),
		)
		return ""
	}
	logger.Info("video rendered",
		logging.String(logging.FieldEventType, "video_rendered"),
		logging.String("output", out),
	)
	return out
}

// writeBundle zips files flat into path, replacing any previous archive.
func writeBundle(path string, files []string) (err error) {
	tmp, err := fileutil.CreateTemp(path)
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	zw := zip.NewWriter(tmp)
	for _, file := range files {
		if err = addToBundle(zw, file); err != nil {
			return err
		}
	}
	if err = zw.Close(); err != nil {
		return fmt.Errorf("finish archive: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("commit archive: %w", err)
	}
	return nil
}

func addToBundle(zw *zip.Writer, path string) error {
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer src.Close()
	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", filepath.Base(path), err)
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("archive header %s: %w", filepath.Base(path), err)
	}
	header.Name = filepath.Base(path)
	header.Method = zip.Deflate
	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("archive entry %s: %w", header.Name, err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("archive %s: %w", header.Name, err)
	}
	return nil
}
