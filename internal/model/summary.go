package model

import "time"

// Run modes recorded in a RunSummary.
const (
	ModeTile = "tile"
	ModePlan = "plan"
)

// RunSummary condenses the jobs of one invocation for the report writers.
type RunSummary struct {
	// Mode is ModeTile or ModePlan.
	Mode string `json:"mode"`

	// Started is when the run began.
	Started time.Time `json:"started"`

	// Elapsed is the wall-clock duration of the run.
	Elapsed time.Duration `json:"elapsed"`

	// OutputDir is the tile root.
	OutputDir string `json:"output_dir,omitempty"`

	// Format is the tile store format.
	Format string `json:"format,omitempty"`

	CompletedCount int `json:"completed_count"`
	FailedCount    int `json:"failed_count"`
	CancelledCount int `json:"cancelled_count"`

	// TileCount is the number of tiles written, or planned in ModePlan.
	TileCount int `json:"tile_count"`

	// WarningCount is the number of job warnings.
	WarningCount int `json:"warning_count"`

	// ConfigErrors lists maps skipped because of configuration problems.
	ConfigErrors []string `json:"config_errors,omitempty"`

	// Jobs lists every job in map, then zoom order.
	Jobs []*Job `json:"jobs"`
}

// NewRunSummary counts the outcome of jobs.
func NewRunSummary(mode string, started time.Time, jobs []*Job) *RunSummary {
	s := &RunSummary{
		Mode:    mode,
		Started: started,
		Elapsed: time.Since(started),
		Jobs:    jobs,
	}
	for _, j := range jobs {
		switch j.Status {
		case JobCompleted:
			s.CompletedCount++
		case JobFailed:
			s.FailedCount++
		case JobCancelled:
			s.CancelledCount++
		}
		s.WarningCount += len(j.Warnings)
		switch {
		case mode == ModePlan && j.Tiles != nil:
			s.TileCount += j.Tiles.Count()
		default:
			s.TileCount += j.TileCount()
		}
	}
	return s
}

// AddConfigError records a map that was skipped before any job ran.
func (s *RunSummary) AddConfigError(err error) {
	s.ConfigErrors = append(s.ConfigErrors, err.Error())
}

// HasFailures reports whether any job did not complete or any map was
// skipped.
func (s *RunSummary) HasFailures() bool {
	return s.FailedCount > 0 || s.CancelledCount > 0 || len(s.ConfigErrors) > 0
}

// TotalJobs returns the number of jobs.
func (s *RunSummary) TotalJobs() int {
	return len(s.Jobs)
}
