package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"

	"github.com/nao1215/oldmaps/internal/config"
	"github.com/nao1215/oldmaps/internal/database"
	"github.com/nao1215/oldmaps/internal/model"
)

// maxListedTiles caps the tile addresses printed per section in text and
// Markdown output. JSON output always lists every address.
const maxListedTiles = 20

// NewCompareCmd creates the compare command.
// This command compares renders stored in the render catalog.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [map-slug]",
		Short: "Compare the tiles of two renders of a map",
		Long: `Compare shows which tiles changed between two renders of the same map at
the same zoom level. Every 'oldmaps tile' run records the SHA3-256 digest of
each tile it writes; identical inputs always produce identical tiles, so any
difference comes from a changed source image, anchor or option.

By default the latest render is compared with the render before it at the
same zoom level.

Examples:
  # Compare the latest two renders of a map
  oldmaps compare oakland-1912

  # Compare at a specific zoom level
  oldmaps compare --zoom 16 oakland-1912

  # List the render history of a map
  oldmaps compare --list oakland-1912

  # Compare the latest render with render 5
  oldmaps compare --with-id 5 oakland-1912

  # List all maps in the catalog
  oldmaps compare --list-maps`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCompareCmd,
	}

	cmd.Flags().BoolP("list", "l", false,
		"List render history for the specified map")
	cmd.Flags().BoolP("list-maps", "L", false,
		"List all maps in the render catalog")

	cmd.Flags().IntP("zoom", "z", -1,
		"Zoom level to compare (default: zoom of the latest render)")
	cmd.Flags().Int64P("with-id", "i", 0,
		"Compare the latest render with this render ID (use --list to see IDs)")

	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison result in Markdown format")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the render catalog")

	return cmd
}

func runCompareCmd(cmd *cobra.Command, args []string) error {
	listMaps, err := cmd.Flags().GetBool("list-maps")
	if err != nil {
		return err
	}

	// Validate arguments before opening the database.
	var slug string
	if !listMaps {
		if len(args) == 0 {
			return errors.New("map slug is required (use --list-maps to see available maps)")
		}
		slug = args[0]
	}

	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	if jsonOutput && markdownOutput {
		return config.ErrConflictingReportFormats
	}

	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open render catalog: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	out := cmd.OutOrStdout()

	if listMaps {
		return listRenderedMaps(ctx, out, db)
	}

	zoom, err := cmd.Flags().GetInt("zoom")
	if err != nil {
		return err
	}

	listHistory, err := cmd.Flags().GetBool("list")
	if err != nil {
		return err
	}
	if listHistory {
		return listRenderHistory(ctx, out, db, slug, zoom)
	}

	withID, err := cmd.Flags().GetInt64("with-id")
	if err != nil {
		return err
	}

	result, err := runComparison(ctx, db, slug, zoom, withID)
	if err != nil {
		return err
	}

	switch {
	case jsonOutput:
		return outputComparisonJSON(out, result)
	case markdownOutput:
		return outputComparisonMarkdown(out, result)
	default:
		return outputComparisonText(out, result)
	}
}

func listRenderedMaps(ctx context.Context, out io.Writer, db *database.RenderDB) error {
	slugs, err := db.ListSlugs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list maps: %w", err)
	}

	if len(slugs) == 0 {
		fmt.Fprintln(out, "No renders found in the catalog.")
		fmt.Fprintln(out, "\nUse 'oldmaps tile' to render maps.")
		return nil
	}

	fmt.Fprintf(out, "Rendered maps (%d):\n\n", len(slugs))
	for _, s := range slugs {
		fmt.Fprintf(out, "  • %s\n", s)
	}
	fmt.Fprintln(out, "\nUse 'oldmaps compare --list <slug>' to see the render history of a map.")
	return nil
}

func listRenderHistory(ctx context.Context, out io.Writer, db *database.RenderDB, slug string, zoom int) error {
	renders, err := db.ListRenders(ctx, slug, zoom, 0)
	if err != nil {
		return fmt.Errorf("failed to get render history: %w", err)
	}

	if len(renders) == 0 {
		fmt.Fprintf(out, "No render history found for %s\n", slug)
		return nil
	}

	fmt.Fprintf(out, "Render history for %s (%d renders):\n\n", slug, len(renders))
	fmt.Fprintf(out, "  %-6s  %-20s  %-4s  %-7s  %-9s  %s\n", "ID", "Date", "Zoom", "Tiles", "Rotation", "Digest")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 72))
	for _, r := range renders {
		fmt.Fprintf(out, "  %-6d  %-20s  %-4d  %-7d  %-9s  %s\n",
			r.ID, r.Timestamp.Format("2006-01-02 15:04:05"), r.Zoom, r.TileCount,
			fmt.Sprintf("%.2f°", r.Rotation), shortDigest(r.Digest))
	}
	return nil
}

// ComparisonResult holds the result of comparing two renders.
type ComparisonResult struct {
	// Map is the map slug.
	Map string `json:"map"`

	// Zoom is the zoom level of both renders.
	Zoom int `json:"zoom"`

	Previous RenderMetadata `json:"previous"`
	Current  RenderMetadata `json:"current"`

	// Added lists tiles only the current render wrote, as "zoom/x/y".
	Added []string `json:"added,omitempty"`

	// Removed lists tiles only the previous render wrote.
	Removed []string `json:"removed,omitempty"`

	// Changed lists tiles whose content differs.
	Changed []string `json:"changed,omitempty"`

	// UnchangedCount is the number of byte-identical tiles.
	UnchangedCount int `json:"unchanged_count"`

	// Identical reports whether both renders wrote the same tiles.
	Identical bool `json:"identical"`

	Calibration CalibrationChange `json:"calibration"`
}

// RenderMetadata summarises one render for comparison display.
type RenderMetadata struct {
	ID             int64     `json:"id"`
	Date           time.Time `json:"date"`
	SourceFile     string    `json:"source_file"`
	TileCount      int       `json:"tile_count"`
	Digest         string    `json:"digest"`
	ScaleX         float64   `json:"scale_x"`
	ScaleY         float64   `json:"scale_y"`
	Rotation       float64   `json:"rotation_degrees"`
	ResidualMeters float64   `json:"residual_meters"`
}

// CalibrationChange holds current minus previous calibration values.
type CalibrationChange struct {
	ScaleXDelta   float64 `json:"scale_x_delta"`
	ScaleYDelta   float64 `json:"scale_y_delta"`
	RotationDelta float64 `json:"rotation_delta"`
}

// runComparison picks the two renders to compare and diffs their tiles.
func runComparison(ctx context.Context, db *database.RenderDB, slug string, zoom int, withID int64) (*ComparisonResult, error) {
	renders, err := db.ListRenders(ctx, slug, zoom, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to get render history: %w", err)
	}
	if len(renders) == 0 {
		return nil, fmt.Errorf("no render history found for %s", slug)
	}

	// Latest render is always the current one.
	current := renders[0]

	var previousID int64
	if withID > 0 {
		previous, err := db.GetRender(ctx, withID)
		if err != nil {
			return nil, fmt.Errorf("failed to get render with ID %d: %w", withID, err)
		}
		if previous.Slug != slug {
			return nil, fmt.Errorf("render ID %d belongs to %s, not %s", withID, previous.Slug, slug)
		}
		if previous.ID == current.ID {
			return nil, fmt.Errorf("render ID %d is the latest render; pick an older one", withID)
		}
		previousID = previous.ID
	} else {
		for _, r := range renders[1:] {
			if r.Zoom == current.Zoom {
				previousID = r.ID
				break
			}
		}
		if previousID == 0 {
			return nil, fmt.Errorf("at least 2 renders of %s at zoom %d are required for comparison", slug, current.Zoom)
		}
	}

	diff, err := db.CompareRenders(ctx, previousID, current.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to compare renders: %w", err)
	}
	return buildComparison(diff), nil
}

func buildComparison(diff *database.Diff) *ComparisonResult {
	return &ComparisonResult{
		Map:            diff.New.Slug,
		Zoom:           diff.New.Zoom,
		Previous:       renderMetadata(diff.Old),
		Current:        renderMetadata(diff.New),
		Added:          addressStrings(diff.Added),
		Removed:        addressStrings(diff.Removed),
		Changed:        addressStrings(diff.Changed),
		UnchangedCount: diff.Unchanged,
		Identical:      diff.Identical(),
		Calibration: CalibrationChange{
			ScaleXDelta:   diff.New.ScaleX - diff.Old.ScaleX,
			ScaleYDelta:   diff.New.ScaleY - diff.Old.ScaleY,
			RotationDelta: diff.New.Rotation - diff.Old.Rotation,
		},
	}
}

func renderMetadata(r *database.Render) RenderMetadata {
	return RenderMetadata{
		ID:             r.ID,
		Date:           r.Timestamp,
		SourceFile:     r.SourceFile,
		TileCount:      r.TileCount,
		Digest:         r.Digest,
		ScaleX:         r.ScaleX,
		ScaleY:         r.ScaleY,
		Rotation:       r.Rotation,
		ResidualMeters: r.ResidualMeters,
	}
}

func addressStrings(addrs []model.TileAddress) []string {
	if len(addrs) == 0 {
		return nil
	}
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.String()
	}
	return out
}

func outputComparisonJSON(out io.Writer, result *ComparisonResult) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func outputComparisonMarkdown(out io.Writer, result *ComparisonResult) error {
	md := markdown.NewMarkdown(out)

	md.H1(fmt.Sprintf("Render Comparison: %s (zoom %d)", result.Map, result.Zoom))
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Previous", "Current", "Change"},
		Rows: [][]string{
			{"Render ID", strconv.FormatInt(result.Previous.ID, 10), strconv.FormatInt(result.Current.ID, 10), "-"},
			{"Date", result.Previous.Date.Format("2006-01-02 15:04"), result.Current.Date.Format("2006-01-02 15:04"), "-"},
			{"Tiles", strconv.Itoa(result.Previous.TileCount), strconv.Itoa(result.Current.TileCount),
				formatDelta(result.Current.TileCount - result.Previous.TileCount)},
			{"Scale X", formatFloat(result.Previous.ScaleX), formatFloat(result.Current.ScaleX), formatFloatDelta(result.Calibration.ScaleXDelta)},
			{"Scale Y", formatFloat(result.Previous.ScaleY), formatFloat(result.Current.ScaleY), formatFloatDelta(result.Calibration.ScaleYDelta)},
			{"Rotation", formatFloat(result.Previous.Rotation), formatFloat(result.Current.Rotation), formatFloatDelta(result.Calibration.RotationDelta)},
		},
	})
	md.PlainText("")

	if result.Identical {
		md.Tip("Both renders wrote identical tiles.")
		md.PlainText("")
		return md.Build()
	}

	md.Importantf("%d added, %d removed, %d changed, %d unchanged.",
		len(result.Added), len(result.Removed), len(result.Changed), result.UnchangedCount)
	md.PlainText("")

	for _, section := range []struct {
		title string
		tiles []string
	}{
		{"Added Tiles", result.Added},
		{"Removed Tiles", result.Removed},
		{"Changed Tiles", result.Changed},
	} {
		if len(section.tiles) == 0 {
			continue
		}
		md.H2(fmt.Sprintf("%s (%d)", section.title, len(section.tiles)))
		md.PlainText("")
		md.BulletList(limitTiles(section.tiles)...)
		md.PlainText("")
	}
	return md.Build()
}

func outputComparisonText(out io.Writer, result *ComparisonResult) error {
	fmt.Fprintf(out, "Render Comparison: %s (zoom %d)\n", result.Map, result.Zoom)
	fmt.Fprintln(out, strings.Repeat("=", 60))

	if result.Identical {
		fmt.Fprintln(out, "\nStatus: IDENTICAL")
	} else {
		fmt.Fprintln(out, "\nStatus: CHANGED")
	}

	fmt.Fprintf(out, "\nPrevious render: #%d %s\n", result.Previous.ID, result.Previous.Date.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Current render:  #%d %s\n", result.Current.ID, result.Current.Date.Format("2006-01-02 15:04:05"))

	fmt.Fprintln(out, "\nCalibration:")
	fmt.Fprintf(out, "  %-10s  %-12s  %-12s  %-12s\n", "Value", "Previous", "Current", "Change")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 52))
	fmt.Fprintf(out, "  %-10s  %-12s  %-12s  %-12s\n", "Scale X",
		formatFloat(result.Previous.ScaleX), formatFloat(result.Current.ScaleX), formatFloatDelta(result.Calibration.ScaleXDelta))
	fmt.Fprintf(out, "  %-10s  %-12s  %-12s  %-12s\n", "Scale Y",
		formatFloat(result.Previous.ScaleY), formatFloat(result.Current.ScaleY), formatFloatDelta(result.Calibration.ScaleYDelta))
	fmt.Fprintf(out, "  %-10s  %-12s  %-12s  %-12s\n", "Rotation",
		formatFloat(result.Previous.Rotation), formatFloat(result.Current.Rotation), formatFloatDelta(result.Calibration.RotationDelta))
	fmt.Fprintf(out, "  %-10s  %-12d  %-12d  %-12s\n", "Tiles",
		result.Previous.TileCount, result.Current.TileCount, formatDelta(result.Current.TileCount-result.Previous.TileCount))

	for _, section := range []struct {
		title, marker string
		tiles         []string
	}{
		{"Added", "+", result.Added},
		{"Removed", "-", result.Removed},
		{"Changed", "~", result.Changed},
	} {
		if len(section.tiles) == 0 {
			continue
		}
		fmt.Fprintf(out, "\n%s Tiles (%d):\n", section.title, len(section.tiles))
		for _, tile := range limitTiles(section.tiles) {
			fmt.Fprintf(out, "  [%s] %s\n", section.marker, tile)
		}
	}

	if result.UnchangedCount > 0 {
		fmt.Fprintf(out, "\nUnchanged: %d tiles\n", result.UnchangedCount)
	}
	return nil
}

// limitTiles truncates a tile list to maxListedTiles, noting the rest.
func limitTiles(tiles []string) []string {
	if len(tiles) <= maxListedTiles {
		return tiles
	}
	out := append([]string{}, tiles[:maxListedTiles]...)
	return append(out, fmt.Sprintf("... and %d more", len(tiles)-maxListedTiles))
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func formatFloatDelta(v float64) string {
	if v > 0 {
		return "+" + formatFloat(v)
	}
	return formatFloat(v)
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}
