package tilestore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/oldmaps/internal/model"
)

// MBTilesStore writes tiles into {root}/{slug}.mbtiles. Rows use the TMS
// scheme, so tile_row is flipped relative to the slippy-map y.
type MBTilesStore struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
	meta Metadata

	minZoom, maxZoom int
	seen             bool
	readOnly         bool
}

// OpenMBTiles creates or opens the MBTiles file of slug under root.
func OpenMBTiles(root, slug string, meta Metadata) (*MBTilesStore, error) {
	if slug == "" {
		return nil, fmt.Errorf("tilestore: empty map slug")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("tilestore: create output directory: %w", err)
	}
	path := filepath.Join(root, slug+".mbtiles")

	db, err := sql.Open("sqlite", path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("tilestore: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	schema := `
	CREATE TABLE IF NOT EXISTS metadata (name TEXT PRIMARY KEY, value TEXT);
	CREATE TABLE IF NOT EXISTS tiles (
		zoom_level INTEGER NOT NULL,
		tile_column INTEGER NOT NULL,
		tile_row INTEGER NOT NULL,
		tile_data BLOB NOT NULL,
		PRIMARY KEY (zoom_level, tile_column, tile_row)
	);
	`
	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("tilestore: create schema: %w", err)
	}

	return &MBTilesStore{db: db, path: path, meta: meta}, nil
}

// OpenMBTilesReader opens an existing MBTiles file of slug under root for
// reading. Close leaves its metadata untouched.
func OpenMBTilesReader(root, slug string) (*MBTilesStore, error) {
	path := filepath.Join(root, slug+".mbtiles")
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("tilestore: open %s: %w", path, err)
	}
	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("tilestore: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	return &MBTilesStore{db: db, path: path, readOnly: true}, nil
}

// WriteTile inserts or replaces one tile.
func (s *MBTilesStore) WriteTile(ctx context.Context, addr model.TileAddress, png []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readOnly {
		return fmt.Errorf("tilestore: %s is open read-only", s.path)
	}

	_, err := s.db.ExecContext(ctx, `
	INSERT INTO tiles (zoom_level, tile_column, tile_row, tile_data) VALUES (?, ?, ?, ?)
	ON CONFLICT(zoom_level, tile_column, tile_row) DO UPDATE SET tile_data = excluded.tile_data
	`, addr.Zoom, addr.X, addr.FlipY(), png)
	if err != nil {
		return fmt.Errorf("tilestore: insert tile %s: %w", addr, err)
	}

	if !s.seen || addr.Zoom < s.minZoom {
		s.minZoom = addr.Zoom
	}
	if !s.seen || addr.Zoom > s.maxZoom {
		s.maxZoom = addr.Zoom
	}
	s.seen = true
	return nil
}

// ReadTile returns the PNG bytes stored at addr.
func (s *MBTilesStore) ReadTile(ctx context.Context, addr model.TileAddress) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var data []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT tile_data FROM tiles WHERE zoom_level = ? AND tile_column = ? AND tile_row = ?",
		addr.Zoom, addr.X, addr.FlipY(),
	).Scan(&data)
	if err != nil {
		return nil, fmt.Errorf("tilestore: read tile %s: %w", addr, err)
	}
	return data, nil
}

// ReadMetadata returns the name/value pairs of the metadata table.
func (s *MBTilesStore) ReadMetadata(ctx context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, "SELECT name, value FROM metadata")
	if err != nil {
		return nil, fmt.Errorf("tilestore: read metadata: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("tilestore: read metadata: %w", err)
		}
		values[name] = value
	}
	return values, rows.Err()
}

// Location returns the MBTiles file path.
func (s *MBTilesStore) Location() string {
	return s.path
}

// Close writes the tileset metadata and closes the database.
func (s *MBTilesStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readOnly {
		return s.db.Close()
	}
	if err := s.writeMetadata(); err != nil {
		_ = s.db.Close()
		return err
	}
	return s.db.Close()
}

func (s *MBTilesStore) writeMetadata() error {
	values := map[string]string{
		"name":    s.meta.Name,
		"format":  "png",
		"type":    "overlay",
		"version": "1.3",
		"scheme":  "tms",
	}
	if s.meta.Attribution != "" {
		values["attribution"] = s.meta.Attribution
	}
	if s.meta.Description != "" {
		values["description"] = s.meta.Description
	}

	minZoom, maxZoom := s.meta.MinZoom, s.meta.MaxZoom
	if s.seen {
		minZoom, maxZoom = s.minZoom, s.maxZoom
	}
	values["minzoom"] = strconv.Itoa(minZoom)
	values["maxzoom"] = strconv.Itoa(maxZoom)

	if s.meta.Bounds != nil {
		b := s.meta.Bounds.Bound()
		values["bounds"] = fmt.Sprintf("%f,%f,%f,%f", b.Left(), b.Bottom(), b.Right(), b.Top())
		c := b.Center()
		values["center"] = fmt.Sprintf("%f,%f,%d", c.Lon(), c.Lat(), minZoom)
	}

	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("tilestore: begin metadata transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for name, value := range values {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO metadata (name, value) VALUES (?, ?) ON CONFLICT(name) DO UPDATE SET value = excluded.value",
			name, value,
		); err != nil {
			return fmt.Errorf("tilestore: write metadata %s: %w", name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("tilestore: commit metadata: %w", err)
	}
	return nil
}

// SetBounds records the geographic bounds written on Close. A store fed by
// several jobs keeps the union of their boxes.
func (s *MBTilesStore) SetBounds(b model.GeoBoundingBox) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.meta.Bounds == nil {
		s.meta.Bounds = &b
		return
	}
	merged := model.BoundingBoxOf(s.meta.Bounds.UpperLeft, s.meta.Bounds.LowerRight, b.UpperLeft, b.LowerRight)
	s.meta.Bounds = &merged
}
