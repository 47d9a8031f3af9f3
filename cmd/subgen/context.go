package main

import (
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"subgen/internal/config"
	"subgen/internal/deps"
	"subgen/internal/logging"
	"subgen/internal/media"
	"subgen/internal/pipeline"
	"subgen/internal/services/separation"
	"subgen/internal/services/transcription"
	"subgen/internal/session"
	"subgen/internal/workspace"
)

// dependencyBuilder returns the engines and media tools an orchestrator runs
// with. Workspace, store and logger are filled in by withSession.
type dependencyBuilder func(cfg *config.Config, logger *slog.Logger) pipeline.Dependencies

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	buildDeps dependencyBuilder
	logger    *slog.Logger
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		buildDeps:  defaultDependencies,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

func (c *commandContext) sessionLogger(cfg *config.Config) (*slog.Logger, error) {
	if c.logger != nil {
		return c.logger, nil
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	c.logger = logger
	return logger, nil
}

// withSession opens the persisted session, takes the workspace lock and hands
// an orchestrator to fn. Everything is released when fn returns.
func (c *commandContext) withSession(cmd *cobra.Command, fn func(*pipeline.Orchestrator) error) (err error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.sessionLogger(cfg)
	if err != nil {
		return err
	}
	store, err := session.Open(cfg.SessionDBPath())
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, store.Close()) }()

	ws, err := workspace.New(cfg.Paths.WorkspaceDir, logger)
	if err != nil {
		return err
	}

	dependencies := c.buildDeps(cfg, logger)
	dependencies.Workspace = ws
	dependencies.Store = store
	dependencies.Logger = logger

	orch, err := pipeline.New(cmd.Context(), cfg, dependencies)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, orch.Close()) }()
	return fn(orch)
}

func defaultDependencies(cfg *config.Config, logger *slog.Logger) pipeline.Dependencies {
	ffmpeg := media.NewFFmpeg(cfg.FFmpegBinary(), deps.ResolveFFprobe(cfg.FFmpegBinary(), cfg.FFprobeBinary()), logger)
	return pipeline.Dependencies{
		Extractor: ffmpeg,
		Muxer:     ffmpeg,
		SeparationFactory: separation.NewCLIFactory(separation.CLIOptions{
			UVX:     cfg.UVXBinary(),
			Package: cfg.Tools.SeparatorPackage,
		}),
		TranscriptionFactory: transcription.NewCLIFactory(transcription.CLIOptions{
			UVX:     cfg.UVXBinary(),
			Package: cfg.Tools.WhisperPackage,
		}),
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
