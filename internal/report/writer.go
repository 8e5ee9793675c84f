package report

import (
	"fmt"
	"io"

	"github.com/nao1215/oldmaps/internal/model"
)

// Writer defines the interface for report output.
// Implementations render a run summary in one format.
type Writer interface {
	// Write outputs the summary to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(summary *model.RunSummary) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the summary to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(summary *model.RunSummary) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(summary)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// Column helpers shared by the text and Markdown writers.

func formatScale(j *model.Job) string {
	if j.Transform == nil {
		return "-"
	}
	return fmt.Sprintf("%.3f x %.3f", j.Transform.ScaleX, j.Transform.ScaleY)
}

func formatRotation(j *model.Job) string {
	if j.Transform == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f°", j.Transform.RotationDegrees)
}

func formatResidual(j *model.Job) string {
	if j.ResidualMeters < 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f m", j.ResidualMeters)
}

func formatCanvas(j *model.Job) string {
	if j.Raster == nil {
		return "-"
	}
	return fmt.Sprintf("%dx%d", j.Raster.Width, j.Raster.Height)
}

func formatRange(j *model.Job) string {
	if j.Tiles == nil {
		return "-"
	}
	r := j.Tiles
	return fmt.Sprintf("x %d-%d, y %d-%d", r.UpperLeft.X, r.LowerRight.X, r.UpperLeft.Y, r.LowerRight.Y)
}

func formatBoundingBox(j *model.Job) string {
	if j.BoundingBox == nil {
		return "-"
	}
	return j.BoundingBox.String()
}

// tileCount is the number of tiles written, or planned in plan mode.
func tileCount(mode string, j *model.Job) int {
	if mode == model.ModePlan {
		if j.Tiles == nil {
			return 0
		}
		return j.Tiles.Count()
	}
	return j.TileCount()
}
