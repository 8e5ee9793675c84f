package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/oldmaps/internal/model"
)

// DefaultConcurrency is the number of jobs run at once when
// WithConcurrency is not given.
const DefaultConcurrency = 2

// BatchProcessor runs independent (map, zoom) jobs concurrently.
// It uses errgroup to bound the number of goroutines. A failing job never
// cancels the others; its error is stored in the job.
type BatchProcessor struct {
	// pipelineFactory creates a new pipeline for each job.
	pipelineFactory func() *Pipeline

	// concurrency is the maximum number of concurrent jobs.
	concurrency int

	// jobTimeout bounds a single job. Zero means no limit.
	jobTimeout time.Duration

	// logger is used for batch-level logging.
	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent jobs.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithJobTimeout cancels each job that runs longer than d.
// The timeout applies per job, never to the whole batch.
func WithJobTimeout(d time.Duration) BatchOption {
	return func(b *BatchProcessor) {
		if d > 0 {
			b.jobTimeout = d
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
//
// The pipelineFactory function is called for each job so that step state
// never leaks between jobs.
func NewBatchProcessor(pipelineFactory func() *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     DefaultConcurrency,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch runs every job and returns them in input order.
// The error is non-nil only if ctx was cancelled; per-job failures are
// recorded in the jobs.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, jobs []*model.Job) ([]*model.Job, error) {
	err := bp.ProcessBatchWithCallback(ctx, jobs, nil)
	return jobs, err
}

// ProcessBatchWithCallback runs every job and calls callback as each one
// finishes. The callback receives the job and its index in jobs. It is
// called from the job's goroutine, so it must be safe for concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	jobs []*model.Job,
	callback func(job *model.Job, index int),
) error {
	bp.logger.Info("starting batch processing",
		"total_jobs", len(jobs),
		"concurrency", bp.concurrency,
		"job_timeout", bp.jobTimeout,
	)

	startTime := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, job := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				job.Fail(err)
				job.SetStatus(model.JobCancelled)
				if callback != nil {
					callback(job, i)
				}
				return err
			}

			bp.run(gctx, job, i, len(jobs))
			if callback != nil {
				callback(job, i)
			}
			// A job failure is recorded in the job and must not cancel
			// the other jobs.
			return nil
		})
	}

	err := g.Wait()

	bp.logger.Info("batch processing complete",
		"total_jobs", len(jobs),
		"elapsed", time.Since(startTime),
	)

	return err
}

func (bp *BatchProcessor) run(ctx context.Context, job *model.Job, index, total int) {
	if bp.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, bp.jobTimeout)
		defer cancel()
	}

	bp.logger.Info("processing job",
		"map", job.Map.Slug,
		"zoom", job.Zoom,
		"index", index+1,
		"total", total,
	)

	if err := bp.pipelineFactory().Execute(ctx, job); err != nil {
		bp.logger.Warn("job failed",
			"map", job.Map.Slug,
			"zoom", job.Zoom,
			"error", err,
		)
		// Rasters of failed jobs are not needed for reporting.
		job.ReleaseRaster()
		return
	}

	bp.logger.Info("job completed",
		"map", job.Map.Slug,
		"zoom", job.Zoom,
		"tiles", job.TileCount(),
		"elapsed", job.Elapsed,
	)
}
