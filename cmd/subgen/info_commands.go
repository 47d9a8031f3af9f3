package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"subgen/internal/pipeline"
	"subgen/internal/preflight"
	"subgen/internal/session"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the session stage, loaded engines and workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(orch *pipeline.Orchestrator) error {
				printStatus(cmd, orch.Status())
				return nil
			})
		},
	}
}

func printStatus(cmd *cobra.Command, status pipeline.Status) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	state := status.State

	lines := renderSectionHeader("Session", colorize)
	lines = append(lines,
		renderStatusLine("Stage", stageKind(state.Stage), string(state.Stage), colorize),
		renderValueLine("Source", state.SourceName),
		renderValueLine("Audio", state.AudioPath),
		renderValueLine("Cleaned audio", state.CleanedAudioPath),
		renderValueLine("Video", state.VideoPath),
	)
	if state.Transcript != nil {
		lines = append(lines, renderValueLine("Subtitles", state.Transcript.SRTPath))
	}
	if state.Translated != nil {
		lines = append(lines, renderValueLine("Translated", state.Translated.SRTPath))
	}
	lines = append(lines, renderValueLine("Bundle", state.Bundle))
	if state.RenderedVideo != "" {
		lines = append(lines, renderValueLine("Rendered video", state.RenderedVideo))
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Engines", colorize)...)
	switch {
	case status.ModelLoaded:
		lines = append(lines, renderStatusLine("Transcription", statusOK, status.Model.Name+" on "+string(status.Model.Device), colorize))
	case state.Model != nil:
		lines = append(lines, renderStatusLine("Transcription", statusInfo, state.Model.Name+" (loaded on next transcribe)", colorize))
	default:
		lines = append(lines, renderStatusLine("Transcription", statusWarn, "no model selected", colorize))
	}
	sepKind := statusInfo
	if status.SeparationModel != "" {
		sepKind = statusOK
	}
	lines = append(lines,
		renderStatusLine("Separation", sepKind, status.SeparationState, colorize),
		renderValueLine("Translation", providerLabel(status)),
	)

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Workspace", colorize)...)
	lines = append(lines,
		renderValueLine("Directory", status.WorkspaceDir),
		renderValueLine("Free space", preflight.FormatBytes(status.FreeBytes)),
	)
	printLines(out, lines...)
}

func stageKind(stage session.Stage) statusKind {
	switch stage {
	case session.StagePackaged:
		return statusOK
	case session.StageIdle:
		return statusWarn
	default:
		return statusInfo
	}
}

func providerLabel(status pipeline.Status) string {
	if status.TargetLanguage == "" {
		return string(status.Provider)
	}
	return fmt.Sprintf("%s -> %s", status.Provider, status.TargetLanguage)
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent pipeline operations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(orch *pipeline.Orchestrator) error {
				runs, err := orch.History(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if len(runs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No operations recorded")
					return nil
				}
				rows := make([][]string, 0, len(runs))
				for _, run := range runs {
					rows = append(rows, historyRow(run))
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Operation", "Status", "Started", "Duration", "Artifacts", "Error"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of operations to show")
	return cmd
}

func historyRow(run session.Run) []string {
	id := run.ID
	if len(id) > 8 {
		id = id[:8]
	}
	duration := "-"
	if !run.FinishedAt.IsZero() {
		duration = run.Duration().Round(time.Millisecond).String()
	}
	errText := ""
	if run.ErrorMessage != "" {
		errText = fmt.Sprintf("%s: %s", run.ErrorKind, run.ErrorMessage)
	}
	return []string{
		id,
		run.Operation,
		string(run.Status),
		run.StartedAt.Local().Format("2006-01-02 15:04:05"),
		duration,
		strconv.Itoa(len(run.Artifacts)),
		errText,
	}
}
