package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/oldmaps/internal/projection"
	"github.com/nao1215/oldmaps/internal/raster"
	"github.com/nao1215/oldmaps/internal/tilestore"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "oldmaps"

	// DefaultZoom is rendered when neither flags nor the project document
	// name a zoom. Level 17 resolves individual street blocks.
	DefaultZoom = 17

	// DefaultOutputDir is the tile root relative to the working directory.
	DefaultOutputDir = "tiles"

	// DefaultJobs is the number of (map, zoom) jobs processed concurrently.
	// Each job holds a full rectified raster in memory, so this stays low.
	DefaultJobs = 2

	// DefaultTileWorkers is the number of goroutines slicing one raster.
	DefaultTileWorkers = 4

	// DefaultResidualWarnMeters is the anchor c residual above which a
	// calibration is reported as suspect.
	DefaultResidualWarnMeters = 50.0
)

// Config holds the run options of a tile or plan invocation.
// It is built from CLI flags, completed with the project document's
// defaults, and passed by value into the pipeline constructors.
type Config struct {
	// ConfigFilePath is the project document to load. When empty,
	// FindConfigFile searches the working directory and the XDG config dir.
	ConfigFilePath string

	// Project is the loaded project document.
	Project *File

	// Zooms lists the zoom levels to render, ascending and unique.
	Zooms []int

	// Maps restricts the run to maps whose slug or name is listed.
	// Empty means every map in the document.
	Maps []string

	// OutputDir is the tile root.
	OutputDir string

	// Format selects the tile store.
	Format tilestore.Format

	// Resample selects the interpolation kernel used for scale and rotate.
	Resample raster.Kernel

	// Jobs bounds the number of concurrent (map, zoom) jobs.
	Jobs int

	// TileWorkers bounds the number of concurrent tile crops inside a job.
	TileWorkers int

	// JobTimeout cancels a single job after the given duration.
	// Zero disables the timeout.
	JobTimeout time.Duration

	// WriteRectified saves the rectified raster next to the source image
	// as {basename}-{zoom}.png.
	WriteRectified bool

	// SkipEmpty drops fully transparent tiles instead of writing them.
	SkipEmpty bool

	// ResidualWarnMeters is the anchor c residual warning threshold.
	ResidualWarnMeters float64

	// Verbose enables debug logging.
	Verbose bool

	// LogFile additionally writes JSON logs to a rotated file.
	LogFile string

	// ReportFile writes the run report to a file instead of stdout.
	ReportFile string

	// JSONReport selects the JSON report format.
	JSONReport bool

	// MarkdownReport selects the Markdown report format.
	MarkdownReport bool

	// DBDir is the directory of the render catalog.
	DBDir string

	// SaveToDB records every finished job in the render catalog.
	SaveToDB bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Zooms:              []int{DefaultZoom},
		OutputDir:          DefaultOutputDir,
		Format:             tilestore.FormatDir,
		Resample:           raster.DefaultKernel,
		Jobs:               DefaultJobs,
		TileWorkers:        DefaultTileWorkers,
		WriteRectified:     true,
		ResidualWarnMeters: DefaultResidualWarnMeters,
		DBDir:              XDGDataDir(),
		SaveToDB:           true,
	}
}

// XDGDataDir returns the XDG data directory for oldmaps.
// On Linux: ~/.local/share/oldmaps
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for oldmaps.
// On Linux: ~/.config/oldmaps
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// FlagSet reports which flags the user set explicitly.
// *pflag.FlagSet satisfies it.
type FlagSet interface {
	Changed(name string) bool
}

// ApplyDefaults fills options the user did not set on the command line
// from the project document's defaults section.
func (c *Config) ApplyDefaults(d Defaults, flags FlagSet) error {
	changed := func(names ...string) bool {
		if flags == nil {
			return false
		}
		for _, n := range names {
			if flags.Changed(n) {
				return true
			}
		}
		return false
	}

	if d.Zooms != "" && !changed("zoom", "min-zoom", "max-zoom") {
		zooms, err := ParseZooms(d.Zooms)
		if err != nil {
			return err
		}
		c.Zooms = zooms
	}
	if d.Format != "" && !changed("format") {
		f, err := tilestore.ParseFormat(d.Format)
		if err != nil {
			return err
		}
		c.Format = f
	}
	if d.Resample != "" && !changed("resample") {
		k, err := raster.ParseKernel(d.Resample)
		if err != nil {
			return err
		}
		c.Resample = k
	}
	if d.Output != "" && !changed("output") {
		c.OutputDir = d.Output
		if c.Project != nil && !filepath.IsAbs(c.OutputDir) {
			c.OutputDir = c.Project.resolve(c.OutputDir)
		}
	}
	return nil
}

// Validate checks if the configuration is valid.
// It returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Zooms) == 0 {
		return ErrNoZoom
	}
	for _, z := range c.Zooms {
		if z < projection.MinZoom || z > projection.MaxZoom {
			return ErrInvalidZoom
		}
	}
	if c.OutputDir == "" {
		return ErrNoOutputDir
	}
	if _, err := tilestore.ParseFormat(string(c.Format)); err != nil {
		return err
	}
	if _, err := raster.ParseKernel(string(c.Resample)); err != nil {
		return err
	}
	if c.Jobs <= 0 {
		return ErrInvalidJobs
	}
	if c.TileWorkers <= 0 {
		return ErrInvalidTileWorkers
	}
	if c.JobTimeout < 0 {
		return ErrInvalidJobTimeout
	}
	if c.ResidualWarnMeters < 0 {
		return ErrInvalidResidualThreshold
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	return nil
}

// Selected reports whether a map passes the Maps filter.
func (c *Config) Selected(slug, name string) bool {
	if len(c.Maps) == 0 {
		return true
	}
	for _, want := range c.Maps {
		if want == slug || want == name {
			return true
		}
	}
	return false
}
