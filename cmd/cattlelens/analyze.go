package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/oukeidos/cattlelens/internal/batch"
	"github.com/oukeidos/cattlelens/internal/gemini"
	"github.com/oukeidos/cattlelens/internal/logger"
	"github.com/oukeidos/cattlelens/internal/prompt"
	"github.com/spf13/cobra"
)

const previewGraphemes = 80

var newConfirmer = prompt.DefaultConfirmer

type analyzeOptions struct {
	clientOptions
	outputPath string
	yes        bool
}

func newAnalyzeCmd() *cobra.Command {
	opts := analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze <image>...",
		Short: "Analyze cattle or buffalo images",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_ = cmd.Usage()
				return fmt.Errorf("at least one image is required")
			}
			return runAnalyze(cmd, args, &opts)
		},
		SilenceUsage: true,
	}

	cmd.SetUsageTemplate(subcommandUsageTemplate)
	addAnalyzeFlags(cmd, &opts)
	return cmd
}

func addAnalyzeFlags(cmd *cobra.Command, opts *analyzeOptions) {
	addClientFlags(cmd, &opts.clientOptions)
	cmd.Flags().StringVarP(&opts.outputPath, "output", "o", "", "Write the JSON run report to this path")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Overwrite the report file without asking")
}

func runAnalyze(cmd *cobra.Command, args []string, opts *analyzeOptions) error {
	settings, err := loadSettings(cmd, &opts.clientOptions)
	if err != nil {
		return err
	}
	if err := setupLogging(settings.LogLevel, opts.logFilePath); err != nil {
		return err
	}

	analyzer, err := buildAnalyzer(settings, &opts.clientOptions)
	if err != nil {
		return err
	}

	inputs := make([]batch.Input, 0, len(args))
	for _, path := range args {
		inputs = append(inputs, batch.FileInput(path))
	}

	out := cmd.OutOrStdout()
	ctx, stop := runContext()
	defer stop()
	report, runErr := batch.Run(ctx, analyzer, inputs, batch.Config{
		Model:     settings.Model,
		Task:      settings.Task,
		Options:   settings.AnalyzeOptions(),
		MaxImages: settings.MaxImages,
		OnProgress: func(p batch.Progress) {
			if p.State == batch.StateStarted {
				logger.Info("Analyzing image", "file", p.Name, "index", p.Index+1, "total", p.Total)
				return
			}
			printResult(out, p.Index+1, p.Total, p.Name, p.Outcome)
		},
	})

	if opts.outputPath != "" {
		if err := saveReport(cmd, opts, report); err != nil {
			logger.Error("Failed to save report", "error", err)
			if runErr == nil {
				runErr = err
			}
		}
	}

	// Always print stats (even on partial success)
	printUsageStats(out, report)

	if runErr != nil {
		if ctx.Err() != nil {
			logger.Warn("Analysis canceled", "error", runErr)
			return fmt.Errorf("analysis canceled after %d of %d images: %w", len(report.Results), len(inputs), runErr)
		}
		return runErr
	}
	return reportStatusError(report)
}

func printResult(w io.Writer, index, total int, name string, o *gemini.Outcome) {
	if o == nil {
		return
	}
	fmt.Fprintf(w, "\n[%d/%d] %s\n", index, total, name)
	if !o.Success {
		fmt.Fprintf(w, "  FAILED (%s, attempts %d): %s\n", o.Kind, o.Attempts, o.Error)
		return
	}
	source := fmt.Sprintf("attempts %d, tokens %d", o.Attempts, o.TokensUsed)
	if o.Cached {
		source = "cached"
	}
	fmt.Fprintf(w, "  OK (%s, %s): %s\n", o.ModelUsed, source, preview(o.Analysis, previewGraphemes))
	if o.Analysis != "" {
		fmt.Fprintf(w, "\n%s\n", o.Analysis)
	}
}

func saveReport(cmd *cobra.Command, opts *analyzeOptions, report *batch.Report) error {
	overwrite := opts.yes
	if !overwrite {
		if _, err := os.Stat(opts.outputPath); err == nil {
			confirmed, err := newConfirmer().ConfirmOverwrite(opts.outputPath, false)
			if err != nil && !errors.Is(err, prompt.ErrNonInteractive) {
				return err
			}
			overwrite = confirmed
		}
	}
	path, err := batch.SaveReport(opts.outputPath, report, overwrite)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\nReport saved: %s\n", path)
	return nil
}

func reportStatusError(r *batch.Report) error {
	switch r.Status {
	case batch.StatusSuccess:
		return nil
	case batch.StatusPartialSuccess, batch.StatusFailure:
		return fmt.Errorf("analysis finished with status: %s (%d of %d images failed)", r.Status, r.Failed, len(r.Results))
	case batch.StatusEmpty:
		return fmt.Errorf("no images were analyzed")
	default:
		return fmt.Errorf("analysis finished with unknown status: %q", r.Status)
	}
}
