package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"overdub/internal/deps"
	"overdub/internal/pipeline"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	var targetLanguage string

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check that every pipeline stage is ready to run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			controller, err := ctx.controller()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			binaries := deps.CheckBinaries(deps.Requirements(cfg))
			binaryRows := make([][]string, 0, len(binaries))
			for _, status := range binaries {
				detail := status.Description
				if !status.Available {
					detail = status.Detail
				}
				binaryRows = append(binaryRows, []string{status.Name, yesNo(status.Available), detail})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Binary", "Found", "Detail"},
				binaryRows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft},
			))

			checks := controller.HealthChecks(cmd.Context(), pipeline.RunOptions{TargetLanguage: targetLanguage})
			rows := make([][]string, 0, len(checks))
			failures := 0
			for _, check := range checks {
				status := "ready"
				if !check.Ready {
					status = "not ready"
					failures++
				}
				rows = append(rows, []string{check.Name, status, check.Detail})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Stage", "Status", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft},
			))
			if failures > 0 {
				return fmt.Errorf("%d stage(s) not ready", failures)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetLanguage, "to", "t", "Spanish", "Target language used to build the stage set")
	return cmd
}
