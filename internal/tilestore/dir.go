package tilestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nao1215/oldmaps/internal/model"
)

// DirStore writes tiles as {root}/{slug}/{z}/{x}/{y}.png.
type DirStore struct {
	root string
	slug string
}

// NewDirStore creates the map directory and returns a DirStore.
func NewDirStore(root, slug string) (*DirStore, error) {
	if slug == "" {
		return nil, fmt.Errorf("tilestore: empty map slug")
	}
	if err := os.MkdirAll(filepath.Join(root, slug), 0o750); err != nil {
		return nil, fmt.Errorf("tilestore: create map directory: %w", err)
	}
	return &DirStore{root: root, slug: slug}, nil
}

// WriteTile writes png to the tile's path through a temporary file, so a
// reader never sees a partial tile.
func (s *DirStore) WriteTile(ctx context.Context, addr model.TileAddress, png []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := addr.Path(s.root, s.slug)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("tilestore: create tile directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tile-*.png")
	if err != nil {
		return fmt.Errorf("tilestore: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(png); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("tilestore: write %s: %w", addr, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("tilestore: close %s: %w", addr, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil { //nolint:gosec // tiles are public web content
		_ = os.Remove(tmpName)
		return fmt.Errorf("tilestore: chmod %s: %w", addr, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("tilestore: rename %s: %w", addr, err)
	}
	return nil
}

// Location returns the map directory.
func (s *DirStore) Location() string {
	return filepath.Join(s.root, s.slug)
}

// Close is a no-op.
func (s *DirStore) Close() error {
	return nil
}
