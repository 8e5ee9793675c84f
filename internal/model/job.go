package model

import (
	"sort"
	"strconv"
	"time"
)

// JobStatus describes where a job ended up.
type JobStatus int

const (
	// JobPending means the job has not run yet.
	JobPending JobStatus = iota

	// JobCompleted means every step succeeded.
	JobCompleted

	// JobFailed means a step returned an error.
	JobFailed

	// JobCancelled means the job was interrupted by its context.
	JobCancelled
)

// String returns a human-readable representation of the status.
func (s JobStatus) String() string {
	switch s {
	case JobPending:
		return "PENDING"
	case JobCompleted:
		return "COMPLETED"
	case JobFailed:
		return "FAILED"
	case JobCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// TileRecord describes one tile written by the slicer.
type TileRecord struct {
	Address TileAddress `json:"address"`

	// Digest is the hex SHA3-256 of the encoded PNG.
	Digest string `json:"digest"`

	// Bytes is the encoded size.
	Bytes int `json:"bytes"`
}

// TileRange is the inclusive range of tiles covering a bounding box.
type TileRange struct {
	UpperLeft  TileAddress `json:"upper_left"`
	LowerRight TileAddress `json:"lower_right"`
}

// Columns returns the number of tile columns in the range.
func (r TileRange) Columns() int {
	return r.LowerRight.X - r.UpperLeft.X + 1
}

// Rows returns the number of tile rows in the range.
func (r TileRange) Rows() int {
	return r.LowerRight.Y - r.UpperLeft.Y + 1
}

// Count returns the number of tiles in the range.
func (r TileRange) Count() int {
	return r.Columns() * r.Rows()
}

// Job is one (map, zoom) unit of work. Pipeline steps fill it in order:
// calibration, rectification, extent, slicing.
type Job struct {
	// Map is the source map being processed.
	Map SourceMap `json:"map"`

	// Zoom is the target zoom level.
	Zoom int `json:"zoom"`

	// Started is when the first step began.
	Started time.Time `json:"started"`

	// Elapsed is the total time spent in the pipeline.
	Elapsed time.Duration `json:"elapsed"`

	// Transform is set by the calibration step.
	Transform *CalibratedTransform `json:"transform,omitempty"`

	// ResidualMeters is the distance between anchor c's configured position
	// and the position predicted by the transform. Negative when unknown.
	ResidualMeters float64 `json:"residual_meters"`

	// Raster is set by the rectification step.
	Raster *RectifiedRaster `json:"raster,omitempty"`

	// RectifiedPath is where the full rectified image was saved, if at all.
	RectifiedPath string `json:"rectified_path,omitempty"`

	// BoundingBox is set by the extent step.
	BoundingBox *GeoBoundingBox `json:"bounding_box,omitempty"`

	// Center is the geographic centre of the rectified raster.
	Center LatLong `json:"center"`

	// Tiles is the covering tile range, set by the slicing step.
	Tiles *TileRange `json:"tiles,omitempty"`

	// TileRecords lists every tile written, sorted by address.
	TileRecords []TileRecord `json:"-"`

	// Digest is a digest over all tile digests, independent of write order.
	Digest string `json:"digest,omitempty"`

	// Status is the final state of the job.
	Status JobStatus `json:"-"`

	// StatusText mirrors Status for JSON output.
	StatusText string `json:"status"`

	// Warnings collects non-fatal observations.
	Warnings []string `json:"warnings,omitempty"`

	// PerformedSteps lists the names of steps that ran.
	PerformedSteps []string `json:"performed_steps,omitempty"`

	// Error is the first step error, if any.
	Error error `json:"-"`

	// ErrorMessage mirrors Error for JSON output.
	ErrorMessage string `json:"error,omitempty"`
}

// NewJob creates a pending job for the given map and zoom.
func NewJob(m SourceMap, zoom int) *Job {
	return &Job{
		Map:            m,
		Zoom:           zoom,
		ResidualMeters: -1,
		Status:         JobPending,
		StatusText:     JobPending.String(),
	}
}

// AddWarning records a non-fatal observation.
func (j *Job) AddWarning(msg string) {
	j.Warnings = append(j.Warnings, msg)
}

// Fail records err as the job error.
func (j *Job) Fail(err error) {
	if j.Error != nil {
		return
	}
	j.Error = err
	j.ErrorMessage = err.Error()
}

// SetStatus updates Status and StatusText together.
func (j *Job) SetStatus(s JobStatus) {
	j.Status = s
	j.StatusText = s.String()
}

// TileCount returns the number of tiles written.
func (j *Job) TileCount() int {
	return len(j.TileRecords)
}

// SortTileRecords orders the records by row, then column.
func (j *Job) SortTileRecords() {
	sort.Slice(j.TileRecords, func(a, b int) bool {
		ra, rb := j.TileRecords[a].Address, j.TileRecords[b].Address
		if ra.Y != rb.Y {
			return ra.Y < rb.Y
		}
		return ra.X < rb.X
	})
}

// ReleaseRaster drops the pixel buffer once the tiles are written.
func (j *Job) ReleaseRaster() {
	if j.Raster != nil {
		j.Raster.Image = nil
	}
}

// Key returns "slug@zoom", unique within a run.
func (j *Job) Key() string {
	return j.Map.Slug + "@" + strconv.Itoa(j.Zoom)
}
