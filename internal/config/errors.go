package config

import (
	"errors"
	"fmt"
)

// Configuration validation errors.
// These errors are returned by Config.Validate and the project document
// checks, and callers match them with errors.Is.
var (
	// ErrNoZoom is returned when no zoom level is selected.
	ErrNoZoom = errors.New("no zoom level specified: use --zoom or --min-zoom/--max-zoom")

	// ErrInvalidZoom is returned for zoom levels outside 0..22 or malformed
	// zoom lists.
	ErrInvalidZoom = errors.New("invalid zoom level: must be between 0 and 22")

	// ErrNoOutputDir is returned when the tile root is empty.
	ErrNoOutputDir = errors.New("no output directory specified")

	// ErrInvalidJobs is returned when the job concurrency is not positive.
	ErrInvalidJobs = errors.New("invalid job concurrency: must be positive")

	// ErrInvalidTileWorkers is returned when the tile worker count is not positive.
	ErrInvalidTileWorkers = errors.New("invalid tile worker count: must be positive")

	// ErrInvalidJobTimeout is returned when the job timeout is negative.
	ErrInvalidJobTimeout = errors.New("invalid job timeout: must be non-negative")

	// ErrInvalidResidualThreshold is returned when the residual warning
	// threshold is negative.
	ErrInvalidResidualThreshold = errors.New("invalid residual threshold: must be non-negative")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrNoMaps is returned when the project document lists no maps, or
	// the --map filter matches none.
	ErrNoMaps = errors.New("no maps to process")

	// ErrMissingAnchor is returned when anchor a, b or c is absent.
	ErrMissingAnchor = errors.New("missing anchor")

	// ErrInvalidAnchor is returned when an anchor is not a pair of finite
	// numbers, or a reference anchor lies outside latitude/longitude range.
	ErrInvalidAnchor = errors.New("invalid anchor")

	// ErrCollinearAnchors is returned when the three anchors lie on one line.
	ErrCollinearAnchors = errors.New("anchors are collinear")

	// ErrMissingFile is returned when a map's raster file is not set or
	// does not exist.
	ErrMissingFile = errors.New("missing map file")

	// ErrDuplicateSlug is returned when two maps would write to the same
	// tile directory.
	ErrDuplicateSlug = errors.New("duplicate map slug")
)

// ConfigurationError reports a problem in the project document.
// Map is empty for errors in the reference anchor set.
type ConfigurationError struct {
	Map string
	Err error
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Map == "" {
		return fmt.Sprintf("reference anchors: %v", e.Err)
	}
	return fmt.Sprintf("map %q: %v", e.Map, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}
