package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"subgen/internal/logging"
	"subgen/internal/notifications"
	"subgen/internal/pipeline"
	"subgen/internal/preflight"
	"subgen/internal/services"
	"subgen/internal/session"
	"subgen/internal/watch"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var (
		clean    bool
		render   bool
		debounce time.Duration
		flags    transcribeFlags
	)
	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Run the full pipeline for every media file dropped into a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			dir := cfg.Paths.WatchDir
			if len(args) == 1 {
				dir = args[0]
			}
			if strings.TrimSpace(dir) == "" {
				return services.WithHint(
					services.Wrap(services.KindConfig, "watch", "start", "no watch directory", nil),
					"pass a directory or set paths.watch_dir",
				)
			}
			opts, err := flags.options(cmd, cfg.Transcription)
			if err != nil {
				return err
			}
			packageOpts := pipeline.PackageOptions{RenderVideo: cfg.Output.RenderVideo}
			if cmd.Flags().Changed("render") {
				packageOpts.RenderVideo = render
			}

			out := cmd.OutOrStdout()
			if failed := preflight.Failed(preflight.RunAll(cmd.Context(), cfg)); len(failed) > 0 {
				colorize := shouldColorize(cmd.ErrOrStderr())
				for _, result := range failed {
					printLines(cmd.ErrOrStderr(), renderStatusLine(result.Name, statusWarn, result.Detail, colorize))
				}
			}

			logger, err := ctx.sessionLogger(cfg)
			if err != nil {
				return err
			}
			notifier := notifications.NewService(cfg.Notifications)
			notify := func(err error) {
				if err != nil {
					logging.WarnWithContext(logger, "notification not delivered", "notify_failed",
						logging.Error(err),
						logging.String(logging.FieldImpact, "ntfy subscribers miss this event"),
					)
				}
			}
			return ctx.withSession(cmd, func(orch *pipeline.Orchestrator) error {
				handle := func(runCtx context.Context, path string, kind session.MediaKind) error {
					req := pipeline.RunRequest{
						Source:  path,
						Kind:    kind,
						Clean:   clean,
						Options: opts,
						Package: packageOpts,
					}
					if orch.Status().State.Model == nil {
						req.Model = session.ModelSelection{
							Name:       cfg.Transcription.ModelName,
							Device:     cfg.Transcription.Device,
							CustomPath: cfg.Transcription.CustomModelPath,
						}
					}
					result, err := orch.Run(runCtx, req)
					if err != nil {
						notify(notifier.NotifyFailed(runCtx, path, err))
						return err
					}
					fmt.Fprintf(out, "Packaged %s -> %s\n", path, result.Bundle)
					notify(notifier.NotifyPackaged(runCtx, path, result.Bundle))
					return nil
				}
				watcher := watch.New(dir, handle, logging.NewComponentLogger(logger, "watch"), watch.WithDebounce(debounce))
				fmt.Fprintf(out, "Watching %s (Ctrl+C to stop)\n", dir)
				started := time.Now()
				if err := watcher.Run(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(out, "Stopped: %d processed, %d failed\n", watcher.Processed(), watcher.Failed())
				stopCtx, cancel := context.WithTimeout(context.WithoutCancel(cmd.Context()), 10*time.Second)
				defer cancel()
				notify(notifier.NotifyWatchStopped(stopCtx, watcher.Processed(), watcher.Failed(), time.Since(started)))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&clean, "clean", false, "Remove background audio before transcribing")
	cmd.Flags().BoolVar(&render, "render", false, "Burn subtitles into uploaded videos (default from config)")
	cmd.Flags().DurationVar(&debounce, "debounce", 2*time.Second, "Quiet period before a new file is processed")
	flags.register(cmd)
	return cmd
}
