package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/nao1215/oldmaps/internal/model"
)

// SimpleWriter outputs human-readable text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether the warning and error sections are shown
	// when they have nothing to list.
	showEmpty bool

	// verbose adds per-job step lists and tile digests.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the summary in human-readable format.
func (w *SimpleWriter) Write(summary *model.RunSummary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, summary)
	w.writeJobs(&sb, summary)
	w.writeWarnings(&sb, summary)
	w.writeErrors(&sb, summary)
	w.writeFooter(&sb, summary)

	return w.output.Write([]byte(sb.String()))
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, s *model.RunSummary) {
	title := "OLDMAPS TILE REPORT"
	if s.Mode == model.ModePlan {
		title = "OLDMAPS TILE PLAN"
	}

	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString(centered(title, 70))
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Started:    %s\n", s.Started.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Elapsed:    %s\n", s.Elapsed.Round(time.Millisecond))
	if s.OutputDir != "" {
		fmt.Fprintf(sb, "Output:     %s (%s)\n", s.OutputDir, s.Format)
	}
	fmt.Fprintf(sb, "Jobs:       %d completed, %d failed, %d cancelled\n",
		s.CompletedCount, s.FailedCount, s.CancelledCount)
	if s.Mode == model.ModePlan {
		fmt.Fprintf(sb, "Tiles:      %d planned\n", s.TileCount)
	} else {
		fmt.Fprintf(sb, "Tiles:      %d written\n", s.TileCount)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeJobs(sb *strings.Builder, s *model.RunSummary) {
	writeSection(sb, "JOBS")

	if len(s.Jobs) == 0 {
		sb.WriteString("  No jobs\n\n")
		return
	}

	tw := tabwriter.NewWriter(sb, 0, 0, 2, ' ', 0)
	if s.Mode == model.ModePlan {
		fmt.Fprintln(tw, "  MAP\tZOOM\tSTATUS\tCANVAS\tTILES\tRANGE\tBOUNDS")
		for _, j := range s.Jobs {
			fmt.Fprintf(tw, "  %s\t%d\t%s\t%s\t%d\t%s\t%s\n",
				truncateString(j.Map.Slug, 24), j.Zoom, j.Status, formatCanvas(j),
				tileCount(s.Mode, j), formatRange(j), formatBoundingBox(j))
		}
	} else {
		fmt.Fprintln(tw, "  MAP\tZOOM\tSTATUS\tTILES\tSCALE\tROTATION\tRESIDUAL")
		for _, j := range s.Jobs {
			fmt.Fprintf(tw, "  %s\t%d\t%s\t%d\t%s\t%s\t%s\n",
				truncateString(j.Map.Slug, 24), j.Zoom, j.Status, tileCount(s.Mode, j),
				formatScale(j), formatRotation(j), formatResidual(j))
		}
	}
	_ = tw.Flush()
	sb.WriteString("\n")

	if !w.verbose {
		return
	}
	for _, j := range s.Jobs {
		fmt.Fprintf(sb, "  %s (%s)\n", j.Key(), j.Map.File)
		if len(j.PerformedSteps) > 0 {
			fmt.Fprintf(sb, "    Steps:    %s\n", strings.Join(j.PerformedSteps, ", "))
		}
		if j.RectifiedPath != "" {
			fmt.Fprintf(sb, "    Image:    %s\n", j.RectifiedPath)
		}
		if j.Digest != "" {
			fmt.Fprintf(sb, "    Digest:   %s\n", j.Digest)
		}
		fmt.Fprintf(sb, "    Elapsed:  %s\n", j.Elapsed.Round(time.Millisecond))
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeWarnings(sb *strings.Builder, s *model.RunSummary) {
	if s.WarningCount == 0 && !w.showEmpty {
		return
	}
	writeSection(sb, "WARNINGS")
	if s.WarningCount == 0 {
		sb.WriteString("  No warnings\n\n")
		return
	}
	for _, j := range s.Jobs {
		for _, msg := range j.Warnings {
			fmt.Fprintf(sb, "  [!] %s: %s\n", j.Key(), msg)
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeErrors(sb *strings.Builder, s *model.RunSummary) {
	failed := s.FailedCount + s.CancelledCount
	if failed == 0 && len(s.ConfigErrors) == 0 && !w.showEmpty {
		return
	}
	writeSection(sb, "ERRORS")
	if failed == 0 && len(s.ConfigErrors) == 0 {
		sb.WriteString("  No errors\n\n")
		return
	}
	for _, msg := range s.ConfigErrors {
		fmt.Fprintf(sb, "  [-] skipped %s\n", msg)
	}
	for _, j := range s.Jobs {
		if j.ErrorMessage == "" {
			continue
		}
		fmt.Fprintf(sb, "  [x] %s: %s\n", j.Key(), j.ErrorMessage)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder, _ *model.RunSummary) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by oldmaps\n")
	sb.WriteString("https://github.com/nao1215/oldmaps\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}

func writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

func centered(s string, width int) string {
	pad := (width - len(s)) / 2
	if pad <= 0 {
		return s
	}
	return strings.Repeat(" ", pad) + s
}

// truncateString shortens s to maxLen runes, marking the cut with "...".
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
