package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"subgen/internal/pipeline"
	"subgen/internal/services/separation"
	"subgen/internal/services/transcription"
)

func newModelCommand(ctx *commandContext) *cobra.Command {
	modelCmd := &cobra.Command{
		Use:   "model",
		Short: "Load and list transcription models",
	}
	modelCmd.AddCommand(newModelLoadCommand(ctx))
	modelCmd.AddCommand(newModelListCommand(ctx))
	return modelCmd
}

func newModelLoadCommand(ctx *commandContext) *cobra.Command {
	var flags modelFlags
	cmd := &cobra.Command{
		Use:   "load [name]",
		Short: "Load a transcription model and remember it for later sessions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			selection := flags.selection(cmd, "name", cfg.Transcription)
			if len(args) == 1 {
				selection.Name = args[0]
				if !cmd.Flags().Changed("path") {
					selection.CustomPath = ""
				}
			}
			return ctx.withSession(cmd, func(orch *pipeline.Orchestrator) error {
				spec, err := orch.LoadModel(cmd.Context(), selection)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Loaded model %s on %s\n", spec.Name, spec.Device)
				if spec.Path != "" {
					printLines(cmd.OutOrStdout(), renderValueLine("Local path", spec.Path))
				}
				return nil
			})
		},
	}
	flags.register(cmd, "name")
	return cmd
}

func newModelListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List known transcription models and local separation weights",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(transcription.KnownModels))
			for _, name := range transcription.KnownModels {
				source := "download"
				local := filepath.Join(cfg.Paths.ModelsDir, cfg.Transcription.ModelPrefix+"-"+name)
				if info, err := os.Stat(local); err == nil && info.IsDir() {
					source = local
				}
				marker := ""
				if name == cfg.Transcription.ModelName {
					marker = "*"
				}
				rows = append(rows, []string{marker, "transcription", name, source})
			}
			weights, err := separation.LocalModels(cfg.Separation.ModelsDir)
			if err != nil {
				return err
			}
			for _, name := range weights {
				rows = append(rows, []string{"", "separation", name, filepath.Join(cfg.Separation.ModelsDir, name)})
			}
			if len(weights) == 0 {
				rows = append(rows, []string{"", "separation", strings.Join(cfg.Separation.DefaultModels, ", "), "download"})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"", "Kind", "Model", "Source"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
}
