package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"subgen/internal/pipeline"
	"subgen/internal/services"
	"subgen/internal/services/translation"
	"subgen/internal/session"
	"subgen/internal/watch"
)

func newUploadCommand(ctx *commandContext) *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Copy a video or audio file into the workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mediaKind, err := resolveKind(args[0], kind)
			if err != nil {
				return err
			}
			return ctx.withSession(cmd, func(orch *pipeline.Orchestrator) error {
				if err := orch.Upload(cmd.Context(), args[0], mediaKind); err != nil {
					return err
				}
				state := orch.Status().State
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Uploaded %s (%s)\n", state.SourceName, state.Kind)
				printLines(out, renderValueLine("Audio", state.AudioPath))
				if state.VideoPath != "" {
					printLines(out, renderValueLine("Video", state.VideoPath))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&kind, "kind", "k", "", "Media kind: video or audio (default from file extension)")
	return cmd
}

// resolveKind parses an explicit kind or infers one from the extension.
func resolveKind(path, explicit string) (session.MediaKind, error) {
	if strings.TrimSpace(explicit) != "" {
		return session.ParseMediaKind(explicit)
	}
	if kind, ok := watch.KindFor(path); ok {
		return kind, nil
	}
	return "", services.WithHint(
		services.Wrap(services.KindInput, "upload", "detect media kind",
			fmt.Sprintf("cannot tell whether %s is video or audio", path), nil),
		"pass --kind video or --kind audio",
	)
}

func newCleanCommand(ctx *commandContext) *cobra.Command {
	var model string
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove background music and noise from the uploaded audio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(orch *pipeline.Orchestrator) error {
				if strings.TrimSpace(model) != "" {
					if err := orch.SetSeparationModel(cmd.Context(), model); err != nil {
						return err
					}
				}
				if err := orch.Clean(cmd.Context()); err != nil {
					return err
				}
				status := orch.Status()
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, "Audio cleaned")
				printLines(out,
					renderValueLine("Cleaned audio", status.State.CleanedAudioPath),
					renderValueLine("Separation model", status.SeparationModel),
				)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&model, "model", "m", "", "Separation weights to switch to before cleaning")
	return cmd
}

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	var flags transcribeFlags
	cmd := &cobra.Command{
		Use:   "transcribe",
		Short: "Transcribe the cleaned or uploaded audio into SRT and ASS subtitles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			opts, err := flags.options(cmd, cfg.Transcription)
			if err != nil {
				return err
			}
			return ctx.withSession(cmd, func(orch *pipeline.Orchestrator) error {
				transcript, err := orch.Transcribe(cmd.Context(), opts)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, "Transcription complete")
				printLines(out,
					renderValueLine("SRT", transcript.SRTPath),
					renderValueLine("ASS", transcript.ASSPath),
				)
				return nil
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newTranslateCommand(ctx *commandContext) *cobra.Command {
	translateCmd := &cobra.Command{
		Use:   "translate",
		Short: "Manage the translation provider used when packaging",
	}

	var target string
	setCmd := &cobra.Command{
		Use:   "set <none|gpt|baidu|tencent>",
		Short: "Select the translation provider; credentials come from the config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			kind, err := translation.ParseKind(args[0])
			if err != nil {
				return err
			}
			creds := translation.CredentialsFromConfig(cfg.Translation)
			if cmd.Flags().Changed("target") {
				creds.TargetLanguage = target
			}
			return ctx.withSession(cmd, func(orch *pipeline.Orchestrator) error {
				if err := orch.SetTranslationProvider(cmd.Context(), kind, creds); err != nil {
					return err
				}
				status := orch.Status()
				if status.Provider == translation.KindNone {
					fmt.Fprintln(cmd.OutOrStdout(), "Translation disabled")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Translation provider set to %s (target %s)\n", status.Provider, status.TargetLanguage)
				return nil
			})
		},
	}
	setCmd.Flags().StringVarP(&target, "target", "t", "", "Target language code (default from config)")
	translateCmd.AddCommand(setCmd)
	return translateCmd
}

func newPackageCommand(ctx *commandContext) *cobra.Command {
	var render bool
	cmd := &cobra.Command{
		Use:   "package",
		Short: "Translate when a provider is set and bundle the subtitles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			opts := pipeline.PackageOptions{RenderVideo: cfg.Output.RenderVideo}
			if cmd.Flags().Changed("render") {
				opts.RenderVideo = render
			}
			return ctx.withSession(cmd, func(orch *pipeline.Orchestrator) error {
				result, err := orch.Package(cmd.Context(), opts)
				if err != nil {
					return err
				}
				printPackageResult(cmd, result)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&render, "render", false, "Burn subtitles into the uploaded video (default from config)")
	return cmd
}

func printPackageResult(cmd *cobra.Command, result pipeline.PackageResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Package ready")
	lines := []string{
		renderValueLine("Bundle", result.Bundle),
		renderValueLine("Subtitles", result.Transcript.SRTPath),
	}
	if result.Translated != nil {
		lines = append(lines, renderValueLine("Translated", result.Translated.SRTPath))
	}
	if result.RenderedVideo != "" {
		lines = append(lines, renderValueLine("Rendered video", result.RenderedVideo))
	}
	printLines(out, lines...)
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		kind   string
		clean  bool
		render bool
		model  modelFlags
		flags  transcribeFlags
	)
	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Upload, optionally clean, transcribe and package a file in one pass",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			mediaKind, err := resolveKind(args[0], kind)
			if err != nil {
				return err
			}
			opts, err := flags.options(cmd, cfg.Transcription)
			if err != nil {
				return err
			}
			req := pipeline.RunRequest{
				Source:  args[0],
				Kind:    mediaKind,
				Clean:   clean,
				Options: opts,
				Package: pipeline.PackageOptions{RenderVideo: cfg.Output.RenderVideo},
			}
			if cmd.Flags().Changed("render") {
				req.Package.RenderVideo = render
			}
			return ctx.withSession(cmd, func(orch *pipeline.Orchestrator) error {
				// A model chosen in an earlier session wins over the config default.
				if model.explicit(cmd, "model") || orch.Status().State.Model == nil {
					req.Model = model.selection(cmd, "model", cfg.Transcription)
				}
				result, err := orch.Run(cmd.Context(), req)
				if err != nil {
					return err
				}
				printPackageResult(cmd, result)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&kind, "kind", "k", "", "Media kind: video or audio (default from file extension)")
	cmd.Flags().BoolVar(&clean, "clean", false, "Remove background audio before transcribing")
	cmd.Flags().BoolVar(&render, "render", false, "Burn subtitles into the uploaded video (default from config)")
	model.register(cmd, "model")
	flags.register(cmd)
	return cmd
}

func newClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every file in the workspace and reset the session media",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(orch *pipeline.Orchestrator) error {
				if err := orch.ClearWorkspace(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Workspace %s cleared\n", orch.Status().WorkspaceDir)
				return nil
			})
		},
	}
}
