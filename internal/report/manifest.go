package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/nao1215/oldmaps/internal/model"
)

// ManifestFile is the name of the manifest written at the tile root.
const ManifestFile = "manifest.json"

// Manifest lists the tile sets available under a tile root. The viewer
// reads it to build its layer switcher.
type Manifest struct {
	Maps []ManifestEntry `json:"maps"`
}

// ManifestEntry describes one tile set.
type ManifestEntry struct {
	// Path is the map slug, the directory holding {zoom}/{x}/{y}.png.
	Path        string `json:"path"`
	Name        string `json:"name"`
	Attribution string `json:"attribution"`
}

// BuildManifest returns one entry per map with at least one completed job,
// in the order the maps first appear in jobs.
func BuildManifest(jobs []*model.Job) *Manifest {
	m := &Manifest{Maps: []ManifestEntry{}}
	seen := make(map[string]bool)
	for _, j := range jobs {
		if j.Status != model.JobCompleted || seen[j.Map.Slug] {
			continue
		}
		seen[j.Map.Slug] = true
		m.Maps = append(m.Maps, ManifestEntry{
			Path:        j.Map.Slug,
			Name:        j.Map.Label(),
			Attribution: j.Map.Attribution,
		})
	}
	return m
}

// Merge adds the entries of other, replacing entries with the same path
// in place.
func (m *Manifest) Merge(other *Manifest) {
	index := make(map[string]int, len(m.Maps))
	for i, e := range m.Maps {
		index[e.Path] = i
	}
	for _, e := range other.Maps {
		if i, ok := index[e.Path]; ok {
			m.Maps[i] = e
			continue
		}
		index[e.Path] = len(m.Maps)
		m.Maps = append(m.Maps, e)
	}
}

// Find returns the entry with the given path.
func (m *Manifest) Find(path string) (ManifestEntry, bool) {
	for _, e := range m.Maps {
		if e.Path == path {
			return e, true
		}
	}
	return ManifestEntry{}, false
}

// LoadManifest reads {root}/manifest.json. A missing file yields an empty
// manifest.
func LoadManifest(root string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(filepath.Clean(root), ManifestFile))
	if errors.Is(err, fs.ErrNotExist) {
		return &Manifest{Maps: []ManifestEntry{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if m.Maps == nil {
		m.Maps = []ManifestEntry{}
	}
	return &m, nil
}

// WriteManifest writes m to {root}/manifest.json.
func WriteManifest(root string, m *Manifest) error {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return fmt.Errorf("create tile root: %w", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(filepath.Join(root, ManifestFile), data, 0o600); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// UpdateManifest merges the completed maps of jobs into the manifest at
// root, keeping entries written by earlier runs.
func UpdateManifest(root string, jobs []*model.Job) (*Manifest, error) {
	m, err := LoadManifest(root)
	if err != nil {
		return nil, err
	}
	m.Merge(BuildManifest(jobs))
	if err := WriteManifest(root, m); err != nil {
		return nil, err
	}
	return m, nil
}
