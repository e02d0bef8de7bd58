package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"overdub/internal/pipeline"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var targetLanguage string
	var sourceLanguage string
	var translationFile string
	var force bool

	cmd := &cobra.Command{
		Use:   "run <media-file>",
		Short: "Dub a media file into the target language",
		Long: "Runs the full dubbing pipeline: speech recognition, translation,\n" +
			"speech synthesis, and audio assembly. Interrupted runs resume from\n" +
			"the last completed stage unless --force is given.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(ctx, cmd, pipeline.RunOptions{
				Source:          args[0],
				SourceLanguage:  sourceLanguage,
				TargetLanguage:  targetLanguage,
				TranslationFile: translationFile,
				Force:           force,
			}, false)
		},
	}

	cmd.Flags().StringVarP(&targetLanguage, "to", "t", "", "Target language (name or ISO code)")
	cmd.Flags().StringVar(&sourceLanguage, "from", "", "Source language hint for recognition and stream selection")
	cmd.Flags().StringVar(&translationFile, "translation", "", "Use a prepared translation file instead of calling a model")
	cmd.Flags().BoolVar(&force, "force", false, "Discard existing artifacts and start over")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newResumeCommand(ctx *commandContext) *cobra.Command {
	var targetLanguage string
	var sourceLanguage string
	var translationFile string

	cmd := &cobra.Command{
		Use:   "resume <media-file>",
		Short: "Resume an interrupted run from its last completed stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(ctx, cmd, pipeline.RunOptions{
				Source:          args[0],
				SourceLanguage:  sourceLanguage,
				TargetLanguage:  targetLanguage,
				TranslationFile: translationFile,
			}, true)
		},
	}

	cmd.Flags().StringVarP(&targetLanguage, "to", "t", "", "Target language (name or ISO code)")
	cmd.Flags().StringVar(&sourceLanguage, "from", "", "Source language hint for recognition and stream selection")
	cmd.Flags().StringVar(&translationFile, "translation", "", "Use a prepared translation file instead of calling a model")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func runPipeline(ctx *commandContext, cmd *cobra.Command, opts pipeline.RunOptions, resume bool) error {
	out := cmd.OutOrStdout()
	controller, err := ctx.controller(pipeline.WithProgress(progressPrinter(out)))
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run := controller.Run
	if resume {
		run = controller.Resume
	}
	result, err := run(runCtx, opts)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Run %s finished in %s (started from %s)\n", result.RunID, result.Duration.Round(timeRounding), result.StartedFrom)
	fmt.Fprintf(out, "Dubbed audio: %s\n", result.DubbedAudio)
	if result.OutputVideo != "" {
		fmt.Fprintf(out, "Dubbed video: %s\n", result.OutputVideo)
	}
	if len(result.Degradations) > 0 {
		fmt.Fprintln(out, "Completed with degraded results:")
		for _, note := range result.Degradations {
			fmt.Fprintf(out, "  - %s\n", note)
		}
	}
	return nil
}

func progressPrinter(out io.Writer) func(fraction float64, status string) {
	return func(fraction float64, status string) {
		fmt.Fprintf(out, "[%3.0f%%] %s\n", fraction*100, status)
	}
}
