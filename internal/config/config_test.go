package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/oldmaps/internal/raster"
	"github.com/nao1215/oldmaps/internal/tilestore"
)

// TestNewConfig verifies that NewConfig returns a Config with all expected default values.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default zoom is 17", func(t *testing.T) {
		t.Parallel()
		if len(cfg.Zooms) != 1 || cfg.Zooms[0] != 17 {
			t.Errorf("expected Zooms to be [17], got %v", cfg.Zooms)
		}
	})

	t.Run("default output is tiles in dir format", func(t *testing.T) {
		t.Parallel()
		if cfg.OutputDir != "tiles" {
			t.Errorf("expected OutputDir to be 'tiles', got %q", cfg.OutputDir)
		}
		if cfg.Format != tilestore.FormatDir {
			t.Errorf("expected Format to be dir, got %q", cfg.Format)
		}
	})

	t.Run("default resample is bilinear", func(t *testing.T) {
		t.Parallel()
		if cfg.Resample != raster.KernelBilinear {
			t.Errorf("expected Resample to be bilinear, got %q", cfg.Resample)
		}
	})

	t.Run("rectified output and catalog are on", func(t *testing.T) {
		t.Parallel()
		if !cfg.WriteRectified {
			t.Error("expected WriteRectified to be true")
		}
		if !cfg.SaveToDB {
			t.Error("expected SaveToDB to be true")
		}
	})

	t.Run("default residual threshold is 50 meters", func(t *testing.T) {
		t.Parallel()
		if cfg.ResidualWarnMeters != 50 {
			t.Errorf("expected ResidualWarnMeters to be 50, got %v", cfg.ResidualWarnMeters)
		}
	})

	t.Run("defaults are valid", func(t *testing.T) {
		t.Parallel()
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})
}

// TestConfigValidate tests the Validate method with various configurations.
// Each test case breaks one validation rule.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{name: "no zoom", modify: func(c *Config) { c.Zooms = nil }, want: ErrNoZoom},
		{name: "zoom above 22", modify: func(c *Config) { c.Zooms = []int{14, 23} }, want: ErrInvalidZoom},
		{name: "negative zoom", modify: func(c *Config) { c.Zooms = []int{-1} }, want: ErrInvalidZoom},
		{name: "empty output", modify: func(c *Config) { c.OutputDir = "" }, want: ErrNoOutputDir},
		{name: "unknown format", modify: func(c *Config) { c.Format = "zip" }, want: tilestore.ErrUnknownFormat},
		{name: "unknown kernel", modify: func(c *Config) { c.Resample = "lanczos" }, want: raster.ErrUnknownKernel},
		{name: "zero jobs", modify: func(c *Config) { c.Jobs = 0 }, want: ErrInvalidJobs},
		{name: "zero tile workers", modify: func(c *Config) { c.TileWorkers = 0 }, want: ErrInvalidTileWorkers},
		{name: "negative timeout", modify: func(c *Config) { c.JobTimeout = -time.Second }, want: ErrInvalidJobTimeout},
		{name: "negative residual", modify: func(c *Config) { c.ResidualWarnMeters = -1 }, want: ErrInvalidResidualThreshold},
		{
			name: "json and markdown",
			modify: func(c *Config) {
				c.JSONReport = true
				c.MarkdownReport = true
			},
			want: ErrConflictingReportFormats,
		},
		{name: "markdown only", modify: func(c *Config) { c.MarkdownReport = true }},
		{name: "mbtiles", modify: func(c *Config) { c.Format = tilestore.FormatMBTiles }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := NewConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.want == nil {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

type changedFlags map[string]bool

func (c changedFlags) Changed(name string) bool { return c[name] }

func TestApplyDefaults(t *testing.T) {
	t.Parallel()

	d := Defaults{Zooms: "15-16", Format: "mbtiles", Resample: "nearest", Output: "out"}

	t.Run("fills unset options", func(t *testing.T) {
		t.Parallel()
		cfg := NewConfig()
		cfg.Project = &File{dir: "/project"}

		if err := cfg.ApplyDefaults(d, changedFlags{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(cfg.Zooms) != 2 || cfg.Zooms[0] != 15 || cfg.Zooms[1] != 16 {
			t.Errorf("Zooms = %v, want [15 16]", cfg.Zooms)
		}
		if cfg.Format != tilestore.FormatMBTiles {
			t.Errorf("Format = %q, want mbtiles", cfg.Format)
		}
		if cfg.Resample != raster.KernelNearest {
			t.Errorf("Resample = %q, want nearest", cfg.Resample)
		}
		if want := filepath.Join("/project", "out"); cfg.OutputDir != want {
			t.Errorf("OutputDir = %q, want %q", cfg.OutputDir, want)
		}
	})

	t.Run("flags win", func(t *testing.T) {
		t.Parallel()
		cfg := NewConfig()
		cfg.Zooms = []int{12}
		cfg.OutputDir = "mine"

		flags := changedFlags{"max-zoom": true, "format": true, "resample": true, "output": true}
		if err := cfg.ApplyDefaults(d, flags); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(cfg.Zooms) != 1 || cfg.Zooms[0] != 12 {
			t.Errorf("Zooms = %v, want [12]", cfg.Zooms)
		}
		if cfg.Format != tilestore.FormatDir || cfg.Resample != raster.KernelBilinear || cfg.OutputDir != "mine" {
			t.Errorf("flag values were overwritten: %+v", cfg)
		}
	})

	t.Run("bad defaults are reported", func(t *testing.T) {
		t.Parallel()
		cfg := NewConfig()
		err := cfg.ApplyDefaults(Defaults{Zooms: "30"}, nil)
		if !errors.Is(err, ErrInvalidZoom) {
			t.Errorf("expected ErrInvalidZoom, got %v", err)
		}
	})
}

func TestSelected(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	if !cfg.Selected("oakland-1912", "Oakland 1912") {
		t.Error("empty filter should select every map")
	}

	cfg.Maps = []string{"Oakland 1912", "berkeley"}
	tests := []struct {
		slug, name string
		want       bool
	}{
		{"oakland-1912", "Oakland 1912", true},
		{"berkeley", "", true},
		{"alameda", "Alameda", false},
	}
	for _, tt := range tests {
		if got := cfg.Selected(tt.slug, tt.name); got != tt.want {
			t.Errorf("Selected(%q, %q) = %v, want %v", tt.slug, tt.name, got, tt.want)
		}
	}
}

// TestLoadConfigFile tests the LoadConfigFile function.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrConfigNotFound for non-existent file", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfigFile("/nonexistent/path/oldmaps.yaml")
		if !errors.Is(err, ErrConfigNotFound) {
			t.Fatalf("expected ErrConfigNotFound, got: %v", err)
		}
		if cfg != nil {
			t.Error("expected nil config when file not found")
		}
	})

	t.Run("loads valid YAML config", func(t *testing.T) {
		t.Parallel()
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "oldmaps.yaml")

		content := `anchors:
  a: [37.8066432, -122.2894024]
  b: [37.8043284, -122.273357]
  c: [37.795114, -122.2717142]
maps:
  - file: oakland.jpg
    name: Oakland 1912
    attribution: David Rumsey Map Collection
    anchors:
      a: [1250, 1100]
      b: [2560, 1480]
      c: [2790, 2705]
defaults:
  zooms: "16,17"
`
		if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		cfg, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := cfg.Anchors["b"]; len(got) != 2 || got[0] != 37.8043284 {
			t.Errorf("anchor b = %v", got)
		}
		if len(cfg.Maps) != 1 || cfg.Maps[0].Name != "Oakland 1912" {
			t.Fatalf("maps = %+v", cfg.Maps)
		}
		if got := cfg.Maps[0].Anchors["c"]; len(got) != 2 || got[1] != 2705 {
			t.Errorf("map anchor c = %v", got)
		}
		if cfg.Defaults.Zooms != "16,17" {
			t.Errorf("defaults.zooms = %q", cfg.Defaults.Zooms)
		}
		if cfg.Dir() != tmpDir {
			t.Errorf("Dir() = %q, want %q", cfg.Dir(), tmpDir)
		}
	})

	t.Run("loads JSON config", func(t *testing.T) {
		t.Parallel()
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "oldmaps.json")

		content := `{"anchors": {"a": [1, 2], "b": [3, 4], "c": [5, 7]},
 "maps": [{"file": "x.png", "anchors": {"a": [0, 0], "b": [10, 0], "c": [0, 10]}}]}`
		if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		cfg, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(cfg.Anchors) != 3 || len(cfg.Maps) != 1 {
			t.Errorf("unexpected document: %+v", cfg)
		}
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		t.Parallel()
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "oldmaps.yaml")

		content := `invalid: yaml: content: [}`
		if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		_, err := LoadConfigFile(configPath)
		if err == nil {
			t.Fatal("expected error for invalid YAML")
		}
		if !strings.Contains(err.Error(), configPath) {
			t.Errorf("error should name the file: %v", err)
		}
	})

	t.Run("initializes nil Anchors map", func(t *testing.T) {
		t.Parallel()
		cfg, err := ParseConfig([]byte("maps: []\n"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Anchors == nil {
			t.Error("expected Anchors map to be initialized")
		}
	})
}

// TestFindConfigFile tests the FindConfigFile function.
func TestFindConfigFile(t *testing.T) {
	t.Run("returns explicit path if exists", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "custom.yaml")

		if err := os.WriteFile(configPath, []byte("maps: []"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		result := FindConfigFile(configPath)
		if result != configPath {
			t.Errorf("expected %q, got %q", configPath, result)
		}
	})

	t.Run("returns empty for non-existent explicit path", func(t *testing.T) {
		result := FindConfigFile("/nonexistent/path/config.yaml")
		if result != "" {
			t.Errorf("expected empty string, got %q", result)
		}
	})

	t.Run("prefers yaml over json in one directory", func(t *testing.T) {
		tmpDir := t.TempDir()
		for _, name := range []string{"oldmaps.json", "oldmaps.yaml"} {
			if err := os.WriteFile(filepath.Join(tmpDir, name), []byte("maps: []"), 0600); err != nil {
				t.Fatalf("failed to write test config: %v", err)
			}
		}

		got := findIn(tmpDir)
		if want := filepath.Join(tmpDir, "oldmaps.yaml"); got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	})

	t.Run("ignores directories", func(t *testing.T) {
		tmpDir := t.TempDir()
		if err := os.Mkdir(filepath.Join(tmpDir, "oldmaps.yaml"), 0o750); err != nil {
			t.Fatal(err)
		}
		if got := findIn(tmpDir); got != "" {
			t.Errorf("expected empty string, got %q", got)
		}
	})
}

// TestXDGDirs tests XDG directory functions.
func TestXDGDirs(t *testing.T) {
	t.Parallel()

	for name, dir := range map[string]string{
		"XDGDataDir":   XDGDataDir(),
		"XDGConfigDir": XDGConfigDir(),
	} {
		if filepath.Base(dir) != AppName {
			t.Errorf("%s = %q, want a path ending in %q", name, dir, AppName)
		}
	}
}
