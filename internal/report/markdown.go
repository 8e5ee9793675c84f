package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/oldmaps/internal/model"
)

// MarkdownWriter outputs run summaries in Markdown format.
// The output renders on GitHub, including the job status pie chart.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the summary in Markdown format.
func (w *MarkdownWriter) Write(summary *model.RunSummary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeStatus(md, summary)
	w.writeJobs(md, summary)
	w.writeProblems(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, s *model.RunSummary) {
	if s.Mode == model.ModePlan {
		md.H1("oldmaps Tile Plan")
	} else {
		md.H1("oldmaps Tile Report")
	}
	md.PlainText("")

	rows := [][]string{
		{"Started", s.Started.Format("2006-01-02 15:04:05 MST")},
		{"Elapsed", s.Elapsed.Round(time.Millisecond).String()},
	}
	if s.OutputDir != "" {
		rows = append(rows,
			[]string{"Output", "`" + s.OutputDir + "`"},
			[]string{"Format", s.Format},
		)
	}
	tilesLabel := "Tiles written"
	if s.Mode == model.ModePlan {
		tilesLabel = "Tiles planned"
	}
	rows = append(rows, []string{tilesLabel, strconv.Itoa(s.TileCount)})

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeStatus(md *markdown.Markdown, s *model.RunSummary) {
	md.H2("Job Status")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Status", "Count"},
		Rows: [][]string{
			{"✅ Completed", strconv.Itoa(s.CompletedCount)},
			{"❌ Failed", strconv.Itoa(s.FailedCount)},
			{"⏹️ Cancelled", strconv.Itoa(s.CancelledCount)},
			{"⚠️ Skipped maps", strconv.Itoa(len(s.ConfigErrors))},
			{"**Total jobs**", "**" + strconv.Itoa(s.TotalJobs()) + "**"},
		},
	})
	md.PlainText("")

	if s.TotalJobs() > 0 {
		w.writePieChart(md, s)
	}
	w.writeAlert(md, s)
}

// writePieChart writes a mermaid pie chart of job outcomes.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, s *model.RunSummary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Job Outcomes"),
		piechart.WithShowData(true),
	)

	if s.CompletedCount > 0 {
		chart.LabelAndIntValue("Completed", uint64(s.CompletedCount))
	}
	if s.FailedCount > 0 {
		chart.LabelAndIntValue("Failed", uint64(s.FailedCount))
	}
	if s.CancelledCount > 0 {
		chart.LabelAndIntValue("Cancelled", uint64(s.CancelledCount))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, s *model.RunSummary) {
	switch {
	case s.FailedCount > 0 || len(s.ConfigErrors) > 0:
		md.Cautionf("%d job(s) failed and %d map(s) were skipped.", s.FailedCount, len(s.ConfigErrors))
	case s.CancelledCount > 0:
		md.Importantf("%d job(s) were cancelled before finishing.", s.CancelledCount)
	case s.WarningCount > 0:
		md.Warningf("All jobs completed with %d warning(s). Check the calibration residuals.", s.WarningCount)
	case s.TotalJobs() == 0:
		md.Note("No jobs were run.")
	default:
		md.Tip("All jobs completed without warnings.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeJobs(md *markdown.Markdown, s *model.RunSummary) {
	md.H2("Jobs")
	md.PlainText("")

	if len(s.Jobs) == 0 {
		md.PlainText("No jobs.")
		md.PlainText("")
		return
	}

	var set markdown.TableSet
	if s.Mode == model.ModePlan {
		set.Header = []string{"Map", "Zoom", "Status", "Canvas", "Tiles", "Range", "Bounds"}
		for _, j := range s.Jobs {
			set.Rows = append(set.Rows, []string{
				"`" + truncateString(j.Map.Slug, 40) + "`",
				strconv.Itoa(j.Zoom),
				j.Status.String(),
				formatCanvas(j),
				strconv.Itoa(tileCount(s.Mode, j)),
				formatRange(j),
				formatBoundingBox(j),
			})
		}
	} else {
		set.Header = []string{"Map", "Zoom", "Status", "Tiles", "Scale", "Rotation", "Residual"}
		for _, j := range s.Jobs {
			set.Rows = append(set.Rows, []string{
				"`" + truncateString(j.Map.Slug, 40) + "`",
				strconv.Itoa(j.Zoom),
				j.Status.String(),
				strconv.Itoa(tileCount(s.Mode, j)),
				formatScale(j),
				formatRotation(j),
				formatResidual(j),
			})
		}
	}
	md.Table(set)
	md.PlainText("")

	for _, j := range s.Jobs {
		if j.Map.Attribution != "" {
			md.Details(j.Key(), j.Map.Attribution)
		}
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeProblems(md *markdown.Markdown, s *model.RunSummary) {
	var warnings, errs []string
	for _, j := range s.Jobs {
		for _, msg := range j.Warnings {
			warnings = append(warnings, j.Key()+": "+msg)
		}
		if j.ErrorMessage != "" {
			errs = append(errs, j.Key()+": "+j.ErrorMessage)
		}
	}
	for _, msg := range s.ConfigErrors {
		errs = append(errs, "skipped "+msg)
	}

	if len(warnings) > 0 {
		md.H2("Warnings")
		md.PlainText("")
		md.BulletList(warnings...)
		md.PlainText("")
	}
	if len(errs) > 0 {
		md.H2("Errors")
		md.PlainText("")
		md.BulletList(errs...)
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [oldmaps](https://github.com/nao1215/oldmaps)*")
}
