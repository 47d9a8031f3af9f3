package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"subgen/internal/deps"
	"subgen/internal/notifications"
	"subgen/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var sendTest bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check external tools, directories, models and translation settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			statuses := preflight.CheckSystemDeps(cfg)
			depRows := make([][]string, 0, len(statuses))
			for _, status := range statuses {
				state := "ok"
				switch {
				case !status.Available && status.Optional:
					state = "optional"
				case !status.Available:
					state = "missing"
				}
				depRows = append(depRows, []string{status.Name, status.Command, state, status.Detail})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Tool", "Command", "Status", "Detail"},
				depRows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
			))

			results := preflight.RunAll(cmd.Context(), cfg)
			checkRows := make([][]string, 0, len(results))
			for _, result := range results {
				checkRows = append(checkRows, []string{result.Name, passLabel(result.Passed), result.Detail})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Check", "Status", "Detail"},
				checkRows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft},
			))

			var problems []error
			if sendTest {
				if cfg.Notifications.NtfyTopic == "" {
					problems = append(problems, errors.New("notifications: no ntfy_topic configured"))
				} else if err := notifications.NewService(cfg.Notifications).TestNotification(cmd.Context()); err != nil {
					problems = append(problems, fmt.Errorf("notifications: %w", err))
				} else {
					fmt.Fprintln(out, "Test notification sent")
				}
			}
			if missing := deps.Missing(statuses); len(missing) > 0 {
				problems = append(problems, fmt.Errorf("missing tools: %s", strings.Join(missing, ", ")))
			}
			for _, failed := range preflight.Failed(results) {
				problems = append(problems, fmt.Errorf("%s: %s", failed.Name, failed.Detail))
			}
			if len(problems) > 0 {
				return fmt.Errorf("doctor found %d problem(s): %w", len(problems), errors.Join(problems...))
			}
			fmt.Fprintln(out, "All checks passed")
			return nil
		},
	}
	cmd.Flags().BoolVar(&sendTest, "notify", false, "Also send a test notification to the configured ntfy topic")
	return cmd
}

func passLabel(passed bool) string {
	if passed {
		return "pass"
	}
	return "FAIL"
}
