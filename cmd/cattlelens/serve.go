package main

import (
	"github.com/oukeidos/cattlelens/internal/config"
	"github.com/oukeidos/cattlelens/internal/logger"
	"github.com/oukeidos/cattlelens/internal/metrics"
	"github.com/oukeidos/cattlelens/internal/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

type serveOptions struct {
	clientOptions
	listen         string
	maxUploadBytes int64
}

func newServeCmd() *cobra.Command {
	opts := serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the image analysis HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, &opts)
		},
		SilenceUsage: true,
	}

	cmd.SetUsageTemplate(subcommandUsageTemplate)
	addClientFlags(cmd, &opts.clientOptions)
	d := config.Default()
	cmd.Flags().StringVar(&opts.listen, "listen", d.Listen, "Address to listen on")
	cmd.Flags().Int64Var(&opts.maxUploadBytes, "max-upload-bytes", d.MaxUploadBytes, "Maximum size of one analyze request body")
	return cmd
}

func runServe(cmd *cobra.Command, opts *serveOptions) error {
	settings, err := loadSettings(cmd, &opts.clientOptions)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("listen") {
		settings.Listen = opts.listen
	}
	if cmd.Flags().Changed("max-upload-bytes") {
		settings.MaxUploadBytes = opts.maxUploadBytes
		if err := settings.Validate(); err != nil {
			return err
		}
	}
	if err := setupLogging(settings.LogLevel, opts.logFilePath); err != nil {
		return err
	}

	analyzer, err := buildAnalyzer(settings, &opts.clientOptions)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	srv := server.New(server.Config{
		Analyzer:       metrics.Instrument(analyzer, m),
		Model:          settings.Model,
		Task:           settings.Task,
		Options:        settings.AnalyzeOptions(),
		MaxImages:      settings.MaxImages,
		MaxUploadBytes: settings.MaxUploadBytes,
		Gatherer:       reg,
	})

	ctx, stop := signalContext()
	defer stop()
	logger.Info("Starting cattlelens server", "listen", settings.Listen, "model", settings.Model, "task", settings.Task)
	return srv.Run(ctx, settings.Listen)
}
