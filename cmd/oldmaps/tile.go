package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/oldmaps/internal/config"
	"github.com/nao1215/oldmaps/internal/database"
	applog "github.com/nao1215/oldmaps/internal/log"
	"github.com/nao1215/oldmaps/internal/model"
	"github.com/nao1215/oldmaps/internal/pipeline"
	"github.com/nao1215/oldmaps/internal/raster"
	"github.com/nao1215/oldmaps/internal/report"
	"github.com/nao1215/oldmaps/internal/tilestore"
)

// ErrJobsFailed is returned by tile and plan when at least one job did not
// complete. The report has already been written at that point.
var ErrJobsFailed = errors.New("not every job completed")

// NewTileCmd creates the tile command.
func NewTileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tile",
		Short: "Rectify every map and write slippy-map tiles",
		Long: `Tile calibrates every map of the project document against the reference
anchors, scales and rotates it into the Web Mercator grid of each zoom level
and writes 256x256 PNG tiles.

Output layout:
  {output}/{slug}/{zoom}/{x}/{y}.png   (--format dir, default)
  {output}/{slug}.mbtiles              (--format mbtiles)
  {output}/manifest.json               (maps available to the viewer)

Every finished job is recorded in the render catalog so that 'oldmaps
compare' can show which tiles changed between two runs.

Examples:
  # Render zoom 17 using ./oldmaps.yaml
  oldmaps tile

  # Render zoom levels 14 to 17 into /srv/tiles
  oldmaps tile --zoom 14-17 -o /srv/tiles

  # Render one map into an MBTiles file
  oldmaps tile --map oakland-1912 --format mbtiles

  # Write a Markdown report
  oldmaps tile --markdown --report report.md`,
		Args: cobra.NoArgs,
		RunE: runTileCmd,
	}

	addProjectFlags(cmd)

	cmd.Flags().StringP("output", "o", config.DefaultOutputDir,
		"Tile root directory")
	cmd.Flags().StringP("format", "f", string(tilestore.FormatDir),
		"Tile store: dir or mbtiles")
	cmd.Flags().IntP("tile-workers", "w", config.DefaultTileWorkers,
		"Number of tiles cropped and encoded concurrently per job")
	cmd.Flags().Duration("job-timeout", 0,
		"Cancel a single (map, zoom) job after this duration (0 disables)")
	cmd.Flags().Bool("rectified", true,
		"Save the rectified image next to the source as {name}-{zoom}.png")
	cmd.Flags().Bool("skip-empty", false,
		"Do not write fully transparent tiles")
	cmd.Flags().Bool("no-db", false,
		"Do not record renders in the catalog")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the render catalog")

	return cmd
}

// addProjectFlags registers the flags shared by tile and plan.
func addProjectFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("config", "c", "",
		"Project document (default: oldmaps.yaml in the current or XDG config directory)")
	cmd.Flags().StringP("zoom", "z", "",
		`Zoom levels: "17", "15,17" or "14-17" (default 17)`)
	cmd.Flags().Int("min-zoom", config.DefaultZoom,
		"Lowest zoom level to render (with --max-zoom)")
	cmd.Flags().Int("max-zoom", config.DefaultZoom,
		"Highest zoom level to render (with --min-zoom)")
	cmd.Flags().StringSliceP("map", "M", nil,
		"Only process maps with this slug or name (repeatable)")
	cmd.Flags().StringP("resample", "r", string(raster.DefaultKernel),
		"Resampling kernel: nearest, bilinear or catmullrom")
	cmd.Flags().IntP("jobs", "J", config.DefaultJobs,
		"Number of (map, zoom) jobs processed concurrently")
	cmd.Flags().Float64("residual-warn", config.DefaultResidualWarnMeters,
		"Warn when anchor c is predicted further than this many meters off")

	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().String("report", "",
		"Write the report to this file instead of stdout (creates directories if needed)")
}

func runTileCmd(cmd *cobra.Command, _ []string) error {
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

	return runTile(ctx, cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// getLogFileFlag retrieves the log-file flag from the command or its parent.
func getLogFileFlag(cmd *cobra.Command) string {
	path, err := cmd.Flags().GetString("log-file")
	if err != nil {
		path, err = cmd.Root().PersistentFlags().GetString("log-file")
		if err != nil {
			return ""
		}
	}
	return path
}

// buildConfig creates a Config from cobra command flags and the project
// document. Flags registered only by tile are skipped for plan.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	cfg.ConfigFilePath, err = flags.GetString("config")
	if err != nil {
		return nil, err
	}

	if err := applyZoomFlags(cmd, cfg); err != nil {
		return nil, err
	}

	cfg.Maps, err = flags.GetStringSlice("map")
	if err != nil {
		return nil, err
	}

	resample, err := flags.GetString("resample")
	if err != nil {
		return nil, err
	}
	if cfg.Resample, err = raster.ParseKernel(resample); err != nil {
		return nil, err
	}

	cfg.Jobs, err = flags.GetInt("jobs")
	if err != nil {
		return nil, err
	}
	cfg.ResidualWarnMeters, err = flags.GetFloat64("residual-warn")
	if err != nil {
		return nil, err
	}
	cfg.JSONReport, err = flags.GetBool("json")
	if err != nil {
		return nil, err
	}
	cfg.MarkdownReport, err = flags.GetBool("markdown")
	if err != nil {
		return nil, err
	}
	cfg.ReportFile, err = flags.GetString("report")
	if err != nil {
		return nil, err
	}
	cfg.Verbose = getVerboseFlag(cmd)
	cfg.LogFile = getLogFileFlag(cmd)

	if flags.Lookup("output") != nil {
		if err := applyTileFlags(cmd, cfg); err != nil {
			return nil, err
		}
	} else {
		cfg.SaveToDB = false
		cfg.WriteRectified = false
	}

	// An explicitly named document must exist. Otherwise the search falls
	// back to the working directory and the XDG config directory.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath == "" && cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	case configPath == "":
		return nil, fmt.Errorf("%w: no %s in the current directory or %s (run 'oldmaps init' to create one)",
			config.ErrConfigNotFound, config.DefaultConfigFile, config.XDGConfigDir())
	}

	cfg.ConfigFilePath = configPath
	cfg.Project, err = config.LoadConfigFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load project document %s: %w", configPath, err)
	}
	if err := cfg.ApplyDefaults(cfg.Project.Defaults, flags); err != nil {
		return nil, fmt.Errorf("invalid defaults in %s: %w", configPath, err)
	}

	return cfg, nil
}

// applyZoomFlags sets cfg.Zooms from --zoom or --min-zoom/--max-zoom.
// When only one bound is given the range has a single level.
func applyZoomFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	zoomSet := flags.Changed("zoom")
	minSet, maxSet := flags.Changed("min-zoom"), flags.Changed("max-zoom")

	if zoomSet && (minSet || maxSet) {
		return errors.New("use either --zoom or --min-zoom/--max-zoom, not both")
	}

	if zoomSet {
		spec, err := flags.GetString("zoom")
		if err != nil {
			return err
		}
		zooms, err := config.ParseZooms(spec)
		if err != nil {
			return err
		}
		cfg.Zooms = zooms
		return nil
	}

	if !minSet && !maxSet {
		return nil
	}
	minZoom, err := flags.GetInt("min-zoom")
	if err != nil {
		return err
	}
	maxZoom, err := flags.GetInt("max-zoom")
	if err != nil {
		return err
	}
	switch {
	case !minSet:
		minZoom = maxZoom
	case !maxSet:
		maxZoom = minZoom
	}
	zooms, err := config.ZoomRange(minZoom, maxZoom)
	if err != nil {
		return err
	}
	cfg.Zooms = zooms
	return nil
}

func applyTileFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	var err error
	cfg.OutputDir, err = flags.GetString("output")
	if err != nil {
		return err
	}
	format, err := flags.GetString("format")
	if err != nil {
		return err
	}
	if cfg.Format, err = tilestore.ParseFormat(format); err != nil {
		return err
	}
	cfg.TileWorkers, err = flags.GetInt("tile-workers")
	if err != nil {
		return err
	}
	cfg.JobTimeout, err = flags.GetDuration("job-timeout")
	if err != nil {
		return err
	}
	cfg.WriteRectified, err = flags.GetBool("rectified")
	if err != nil {
		return err
	}
	cfg.SkipEmpty, err = flags.GetBool("skip-empty")
	if err != nil {
		return err
	}
	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return err
	}
	cfg.SaveToDB = !noDB
	cfg.DBDir, err = flags.GetString("db-dir")
	return err
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// setupLogger creates a structured logger based on verbosity setting.
// With a log file, records are also written there as JSON.
func setupLogger(console io.Writer, verbose bool, logFile string) (*slog.Logger, io.Closer, error) {
	if logFile == "" {
		return applog.NewLogger(console, verbose), nopCloser{}, nil
	}
	return applog.NewFileLogger(console, logFile, verbose)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// selectMaps validates the project's maps and applies the --map filter.
// Problems with a map skip that map. A problem with the reference anchors
// skips every selected map, so the run still reports them; it is returned
// directly only when the document lists no maps at all.
func selectMaps(cfg *config.Config, logger *slog.Logger) (model.ReferenceAnchors, []model.SourceMap, []error, error) {
	maps, mapErrs := cfg.Project.SourceMaps()

	ref, refErr := cfg.Project.ReferenceAnchors()
	if refErr != nil && len(maps) == 0 && len(mapErrs) == 0 {
		return nil, nil, nil, fmt.Errorf("configuration error: %w", refErr)
	}

	selected := make([]model.SourceMap, 0, len(maps))
	for _, m := range maps {
		if cfg.Selected(m.Slug, m.Name) {
			selected = append(selected, m)
		}
	}

	var skipped []error
	for _, err := range mapErrs {
		var ce *config.ConfigurationError
		if errors.As(err, &ce) && !cfg.Selected(ce.Map, ce.Map) {
			continue
		}
		logger.Error("skipping map", "error", err)
		skipped = append(skipped, err)
	}

	if refErr != nil {
		for _, m := range selected {
			err := &config.ConfigurationError{Map: m.Label(), Err: refErr}
			logger.Error("skipping map", "error", err)
			skipped = append(skipped, err)
		}
		selected = nil
	}

	if len(selected) == 0 && len(skipped) == 0 {
		return nil, nil, nil, config.ErrNoMaps
	}
	return ref, selected, skipped, nil
}

// runTile renders every selected map at every zoom level.
func runTile(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout, progress io.Writer) error {
	ref, maps, skipped, err := selectMaps(cfg, logger)
	if err != nil {
		return err
	}
	jobs := pipeline.Jobs(maps, cfg.Zooms)

	logger.Info("starting tile run",
		"project", cfg.ConfigFilePath,
		"maps", len(maps),
		"zooms", cfg.Zooms,
		"output", cfg.OutputDir,
		"format", cfg.Format,
		"jobs", cfg.Jobs,
	)

	var db *database.RenderDB
	if cfg.SaveToDB {
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open render catalog: %w", err)
		}
		defer db.Close()
		logger.Info("render catalog opened", "path", db.Path())
	}

	stores := tilestore.NewSet(cfg.Format, cfg.OutputDir)
	bp := pipeline.NewBatchProcessor(
		func() *pipeline.Pipeline {
			return pipeline.TilePipeline(cfg, ref, stores, logger)
		},
		pipeline.WithConcurrency(cfg.Jobs),
		pipeline.WithJobTimeout(cfg.JobTimeout),
		pipeline.WithBatchLogger(logger),
	)

	started := time.Now()
	fmt.Fprintf(progress, "Rendering %d maps at zoom %v (%d jobs, concurrency %d)...\n",
		len(maps), cfg.Zooms, len(jobs), cfg.Jobs)

	var (
		mu   sync.Mutex
		done int
	)
	batchErr := bp.ProcessBatchWithCallback(ctx, jobs, func(job *model.Job, _ int) {
		mu.Lock()
		defer mu.Unlock()

		done++
		fmt.Fprintf(progress, "[%d/%d] %s zoom %d: %s, %d tiles\n",
			done, len(jobs), job.Map.Slug, job.Zoom, job.Status, job.TileCount())

		if job.Status != model.JobCompleted {
			return
		}
		if err := saveRender(ctx, db, job, logger); err != nil {
			logger.Error("failed to save render", "map", job.Map.Slug, "zoom", job.Zoom, "error", err)
		}
	})

	closeErr := stores.Close()
	if closeErr != nil {
		logger.Error("failed to close tile stores", "error", closeErr)
	}

	if _, err := report.UpdateManifest(cfg.OutputDir, jobs); err != nil {
		logger.Error("failed to update manifest", "error", err)
	}

	summary := model.NewRunSummary(model.ModeTile, started, jobs)
	summary.OutputDir = cfg.OutputDir
	summary.Format = string(cfg.Format)
	for _, err := range skipped {
		summary.AddConfigError(err)
	}

	if err := outputReport(cfg, summary, stdout); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	switch {
	case batchErr != nil:
		return batchErr
	case closeErr != nil:
		return closeErr
	case summary.HasFailures():
		return fmt.Errorf("%w: %d failed, %d cancelled, %d maps skipped",
			ErrJobsFailed, summary.FailedCount, summary.CancelledCount, len(summary.ConfigErrors))
	}
	return nil
}

// saveRender records a completed job in the render catalog.
// If db is nil, this function is a no-op.
func saveRender(ctx context.Context, db *database.RenderDB, job *model.Job, logger *slog.Logger) error {
	if db == nil {
		return nil
	}
	id, err := db.SaveRender(ctx, job)
	if err != nil {
		return err
	}
	logger.Info("render saved to catalog", "map", job.Map.Slug, "zoom", job.Zoom, "id", id)
	return nil
}

// outputReport writes the run summary in the requested format.
func outputReport(cfg *config.Config, summary *model.RunSummary, stdout io.Writer) error {
	output := stdout
	if cfg.ReportFile != "" {
		if dir := filepath.Dir(cfg.ReportFile); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return fmt.Errorf("failed to create report directory: %w", err)
			}
		}
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			return fmt.Errorf("failed to create report file: %w", err)
		}
		defer f.Close()
		output = f
	}

	var w report.Writer
	switch {
	case cfg.JSONReport:
		w = report.NewJSONWriter(output, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case cfg.MarkdownReport:
		w = report.NewMarkdownWriter(output)
	default:
		w = report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}
	_, err := w.Write(summary)
	return err
}
