package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/oldmaps/internal/config"
	"github.com/nao1215/oldmaps/internal/model"
	"github.com/nao1215/oldmaps/internal/pipeline"
)

// NewPlanCmd creates the plan command.
func NewPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show calibration and tile ranges without rendering",
		Long: `Plan calibrates every map and computes the rectified canvas, the geographic
bounding box and the covering tile range for each zoom level. Only image
headers are read, so plan is fast even for very large scans.

Use plan to check anchor positions before a long tile run: a large anchor c
residual or an unexpected rotation usually means a mistyped coordinate.

Examples:
  # Plan zoom 17 for every map in ./oldmaps.yaml
  oldmaps plan

  # Plan zoom levels 12 to 18 as Markdown
  oldmaps plan --zoom 12-18 --markdown`,
		Args: cobra.NoArgs,
		RunE: runPlanCmd,
	}

	addProjectFlags(cmd)
	return cmd
}

func runPlanCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger, closer, err := setupLogger(cmd.ErrOrStderr(), cfg.Verbose, cfg.LogFile)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer closer.Close()
	slog.SetDefault(logger)

	ctx, cancel := signalContext(logger)
	defer cancel()

	return runPlan(ctx, cfg, logger, cmd.OutOrStdout())
}

// runPlan computes the geometry of every selected map at every zoom level.
func runPlan(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout io.Writer) error {
	ref, maps, skipped, err := selectMaps(cfg, logger)
	if err != nil {
		return err
	}
	jobs := pipeline.Jobs(maps, cfg.Zooms)

	bp := pipeline.NewBatchProcessor(
		func() *pipeline.Pipeline {
			return pipeline.PlanPipeline(cfg, ref, logger)
		},
		pipeline.WithConcurrency(cfg.Jobs),
		pipeline.WithBatchLogger(logger),
	)

	started := time.Now()
	if _, err := bp.ProcessBatch(ctx, jobs); err != nil {
		return err
	}

	summary := model.NewRunSummary(model.ModePlan, started, jobs)
	for _, err := range skipped {
		summary.AddConfigError(err)
	}
	if err := outputReport(cfg, summary, stdout); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if summary.HasFailures() {
		return fmt.Errorf("%w: %d failed, %d maps skipped",
			ErrJobsFailed, summary.FailedCount, len(summary.ConfigErrors))
	}
	return nil
}
