package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"overdub/internal/fileutil"
	"overdub/internal/state"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status <media-file>",
		Short: "Show pipeline progress for a media file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			controller, err := ctx.controller()
			if err != nil {
				return err
			}

			workDir := controller.WorkDirFor(args[0])
			layout := state.Layout{Root: workDir}
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "Working directory: %s\n", workDir)
			fmt.Fprintf(out, "Next stage: %s\n", controller.DetectState(args[0]))

			cp := state.LoadCheckpoint(layout.Checkpoint())
			if cp.RunID == "" {
				fmt.Fprintln(out, "No run recorded for this file")
				return nil
			}

			fmt.Fprintf(out, "Run: %s (checkpoint stage %s)\n", cp.RunID, cp.Stage)
			if cp.LastError != "" {
				fmt.Fprintf(out, "Last error: %s\n", cp.LastError)
			}
			if cp.CompletedAt != nil {
				fmt.Fprintf(out, "Completed: %s\n", cp.CompletedAt.Local().Format(time.RFC1123))
			}

			rows := make([][]string, 0, len(state.Stages))
			for _, name := range state.Stages {
				rows = append(rows, []string{
					name,
					strconv.Itoa(cp.AttemptCount(name)),
					yesNo(stageArtifactPresent(layout, name)),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Stage", "Attempts", "Artifact"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft},
			))

			return printRequestStats(cmd, layout)
		},
	}
}

func stageArtifactPresent(layout state.Layout, stage string) bool {
	switch stage {
	case state.StageRecognition:
		return fileutil.NonEmptyFile(layout.Transcript())
	case state.StageTranslation:
		return fileutil.NonEmptyFile(layout.Translation())
	case state.StageSynthesis:
		return fileutil.NonEmptyFile(layout.ChunkPlan())
	case state.StageAssembly:
		return fileutil.NonEmptyFile(layout.DubbedAudio())
	default:
		return false
	}
}

func printRequestStats(cmd *cobra.Command, layout state.Layout) error {
	if !fileutil.NonEmptyFile(layout.RequestLog()) {
		return nil
	}
	log, err := state.OpenRequestLog(layout.RequestLog())
	if err != nil {
		return fmt.Errorf("open request log: %w", err)
	}
	defer log.Close()

	stats, err := log.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("request stats: %w", err)
	}
	if len(stats) == 0 {
		return nil
	}

	rows := make([][]string, 0, len(stats))
	for _, s := range stats {
		rows = append(rows, []string{
			s.Stage,
			strconv.Itoa(s.Total),
			strconv.Itoa(s.Failed),
			fmt.Sprintf("%.0f%%", s.SuccessRate*100),
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"Stage", "Requests", "Failed", "Success"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight},
	))
	return nil
}
