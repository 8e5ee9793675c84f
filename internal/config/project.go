package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/nao1215/oldmaps/internal/model"
)

// File represents the project document: the reference anchors, the maps
// calibrated against them and optional run defaults.
type File struct {
	// Anchors maps anchor names to [latitude, longitude] in degrees.
	Anchors map[string][]float64 `yaml:"anchors"`

	// Maps lists the historical map images to render.
	Maps []MapEntry `yaml:"maps"`

	// Defaults supplies run options not given on the command line.
	Defaults Defaults `yaml:"defaults,omitempty"`

	// dir is the directory relative map paths are resolved against.
	dir string
}

// MapEntry is one map of the project document.
type MapEntry struct {
	File        string `yaml:"file"`
	Name        string `yaml:"name,omitempty"`
	Attribution string `yaml:"attribution,omitempty"`
	Slug        string `yaml:"slug,omitempty"`

	// Anchors maps anchor names to [x, y] pixel positions on the raster.
	Anchors map[string][]float64 `yaml:"anchors"`
}

// Defaults holds run options that the command line overrides.
type Defaults struct {
	// Zooms uses the --zoom syntax: "17", "14,15" or "12-16".
	Zooms    string `yaml:"zooms,omitempty"`
	Format   string `yaml:"format,omitempty"`
	Resample string `yaml:"resample,omitempty"`
	Output   string `yaml:"output,omitempty"`
}

// Dir returns the directory the document was loaded from.
func (cf *File) Dir() string {
	return cf.dir
}

func (cf *File) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || cf.dir == "" {
		return path
	}
	return filepath.Join(cf.dir, path)
}

// ReferenceAnchors validates and returns the real-world anchor positions.
// Any error is a *ConfigurationError with an empty Map; no map can be
// calibrated against an invalid reference set.
func (cf *File) ReferenceAnchors() (model.ReferenceAnchors, error) {
	ref := make(model.ReferenceAnchors, len(model.AnchorNames))
	for _, name := range model.AnchorNames {
		v, ok := cf.Anchors[name]
		if !ok {
			return nil, &ConfigurationError{Err: fmt.Errorf("%w %q", ErrMissingAnchor, name)}
		}
		if len(v) != 2 || !finite(v...) {
			return nil, &ConfigurationError{Err: fmt.Errorf("%w %q: want [latitude, longitude]", ErrInvalidAnchor, name)}
		}
		ll := model.LatLong{Lat: v[0], Long: v[1]}
		if math.Abs(ll.Lat) > 90 || math.Abs(ll.Long) > 180 {
			return nil, &ConfigurationError{Err: fmt.Errorf("%w %q: %s out of range", ErrInvalidAnchor, name, ll)}
		}
		ref[name] = ll
	}

	// Collinearity is judged on a local equirectangular plane so that
	// degrees of longitude and latitude are comparable.
	k := math.Cos(ref[model.AnchorA].Lat * math.Pi / 180)
	pts := make([][2]float64, 0, len(model.AnchorNames))
	for _, name := range model.AnchorNames {
		ll := ref[name]
		pts = append(pts, [2]float64{ll.Long * k, ll.Lat})
	}
	if collinear(pts[0], pts[1], pts[2]) {
		return nil, &ConfigurationError{Err: ErrCollinearAnchors}
	}
	return ref, nil
}

// SourceMaps converts the document's maps into model.SourceMap values.
// Maps with problems are skipped and reported as *ConfigurationError in
// the second result; the remaining maps can still be processed.
func (cf *File) SourceMaps() ([]model.SourceMap, []error) {
	var (
		maps []model.SourceMap
		errs []error
	)
	seen := make(map[string]string)

	for i, entry := range cf.Maps {
		m, err := cf.sourceMap(i, entry)
		label := m.Label()
		if label == "" {
			label = fmt.Sprintf("#%d", i+1)
		}
		if err != nil {
			errs = append(errs, &ConfigurationError{Map: label, Err: err})
			continue
		}
		if prev, ok := seen[m.Slug]; ok {
			errs = append(errs, &ConfigurationError{
				Map: label,
				Err: fmt.Errorf("%w %q (also used by %q)", ErrDuplicateSlug, m.Slug, prev),
			})
			continue
		}
		seen[m.Slug] = label
		maps = append(maps, m)
	}
	return maps, errs
}

func (cf *File) sourceMap(index int, entry MapEntry) (model.SourceMap, error) {
	m := model.SourceMap{
		File:        cf.resolve(entry.File),
		Name:        entry.Name,
		Attribution: entry.Attribution,
		Slug:        entry.Slug,
		Anchors:     make(map[string]model.Pixel, len(model.AnchorNames)),
	}

	if entry.File == "" {
		return m, ErrMissingFile
	}
	m.Slug = model.SlugForMap(m)
	if m.Slug == "" {
		m.Slug = fmt.Sprintf("map-%d", index+1)
	}

	info, err := os.Stat(m.File)
	if err != nil || info.IsDir() {
		return m, fmt.Errorf("%w: %s", ErrMissingFile, m.File)
	}

	for _, name := range model.AnchorNames {
		v, ok := entry.Anchors[name]
		if !ok {
			return m, fmt.Errorf("%w %q", ErrMissingAnchor, name)
		}
		if len(v) != 2 || !finite(v...) {
			return m, fmt.Errorf("%w %q: want [x, y]", ErrInvalidAnchor, name)
		}
		m.Anchors[name] = model.Pixel{X: v[0], Y: v[1]}
	}

	a, b, c := m.Anchors[model.AnchorA], m.Anchors[model.AnchorB], m.Anchors[model.AnchorC]
	if collinear([2]float64{a.X, a.Y}, [2]float64{b.X, b.Y}, [2]float64{c.X, c.Y}) {
		return m, ErrCollinearAnchors
	}
	return m, nil
}

// collinear reports whether three points lie on one line, or two coincide.
// The cross product is normalised so the test is independent of units.
func collinear(a, b, c [2]float64) bool {
	ux, uy := b[0]-a[0], b[1]-a[1]
	vx, vy := c[0]-a[0], c[1]-a[1]
	lu, lv := math.Hypot(ux, uy), math.Hypot(vx, vy)
	if lu == 0 || lv == 0 || math.Hypot(c[0]-b[0], c[1]-b[1]) == 0 {
		return true
	}
	return math.Abs(ux*vy-uy*vx)/(lu*lv) < 1e-6
}

func finite(v ...float64) bool {
	for _, f := range v {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
