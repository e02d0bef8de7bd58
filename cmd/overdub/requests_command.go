package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"overdub/internal/fileutil"
	"overdub/internal/state"
)

func newRequestsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:     "requests <media-file>",
		Aliases: []string{"log"},
		Short:   "Show recent provider requests for a media file",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			controller, err := ctx.controller()
			if err != nil {
				return err
			}

			layout := state.Layout{Root: controller.WorkDirFor(args[0])}
			if !fileutil.NonEmptyFile(layout.RequestLog()) {
				fmt.Fprintln(cmd.OutOrStdout(), "No requests recorded for this file")
				return nil
			}

			log, err := state.OpenRequestLog(layout.RequestLog())
			if err != nil {
				return fmt.Errorf("open request log: %w", err)
			}
			defer log.Close()

			requests, err := log.Recent(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list requests: %w", err)
			}
			if len(requests) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No requests recorded for this file")
				return nil
			}

			rows := make([][]string, 0, len(requests))
			for _, req := range requests {
				detail := req.Model
				if detail == "" {
					detail = req.Provider
				}
				outcome := req.Status
				if req.ErrorKind != "" {
					outcome = fmt.Sprintf("%s (%s)", req.Status, req.ErrorKind)
				}
				rows = append(rows, []string{
					req.CreatedAt.Local().Format(time.TimeOnly),
					req.Stage,
					detail,
					req.Credential,
					req.Duration.Round(timeRounding).String(),
					outcome,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Time", "Stage", "Provider", "Credential", "Duration", "Outcome"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 25, "Maximum number of requests to show")
	return cmd
}
