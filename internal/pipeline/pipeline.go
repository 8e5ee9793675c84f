package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nao1215/oldmaps/internal/model"
)

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, each one reading what the previous
// steps stored in the job.
type Step interface {
	// Do executes the pipeline step.
	// Non-fatal observations are recorded with job.AddWarning; a returned
	// error ends the job.
	Do(ctx context.Context, job *model.Job) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
// It maintains a list of steps and executes them in order.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger

	// continueOnError determines whether to continue executing steps
	// after one fails. If false, the pipeline stops on first error.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
// If not set, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to continue execution
// even when a step fails. Every step of the tile pipeline depends on the
// previous one, so this is only useful for custom pipelines.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps:           make([]Step, 0),
		continueOnError: false,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
// Steps are executed in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all pipeline steps in sequence and sets the job's final
// status. Cancellation is checked before each step; steps observe ctx
// themselves while they run.
//
// Returns the first error encountered if continueOnError is false.
func (p *Pipeline) Execute(ctx context.Context, job *model.Job) error {
	job.Started = time.Now()
	defer func() {
		job.Elapsed = time.Since(job.Started)
	}()

	var firstErr error
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"map", job.Map.Slug,
				"zoom", job.Zoom,
				"reason", err,
			)
			job.Fail(err)
			job.SetStatus(model.JobCancelled)
			return err
		}

		p.logger.Info("executing step",
			"step", step.Name(),
			"map", job.Map.Slug,
			"zoom", job.Zoom,
		)

		if err := step.Do(ctx, job); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"map", job.Map.Slug,
				"zoom", job.Zoom,
				"error", err,
			)

			job.Fail(err)
			if firstErr == nil {
				firstErr = err
			}
			if !p.continueOnError {
				job.SetStatus(statusFor(err))
				return err
			}
		} else {
			p.logger.Debug("step completed",
				"step", step.Name(),
				"map", job.Map.Slug,
				"zoom", job.Zoom,
			)
		}

		job.PerformedSteps = append(job.PerformedSteps, step.Name())
	}

	if firstErr != nil {
		job.SetStatus(statusFor(firstErr))
		return firstErr
	}
	job.SetStatus(model.JobCompleted)
	return nil
}

func statusFor(err error) model.JobStatus {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return model.JobCancelled
	}
	return model.JobFailed
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
