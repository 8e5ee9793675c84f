package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/oldmaps/internal/model"
)

// FileName is the catalog file name inside the database directory.
const FileName = "oldmaps.db"

// ErrNotFound is returned when a requested render does not exist.
var ErrNotFound = errors.New("render not found")

// RenderDB stores render history.
type RenderDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures RenderDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the catalog in dbDir.
func Open(dbDir string, opts Options) (*RenderDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	rdb := &RenderDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := rdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return rdb, nil
}

// Path returns the database file path.
func (r *RenderDB) Path() string {
	return r.dbPath
}

// Close closes the database connection.
func (r *RenderDB) Close() error {
	return r.db.Close()
}

func (r *RenderDB) createTables() error {
	schema := `
	-- One row per completed (map, zoom) job
	CREATE TABLE IF NOT EXISTS renders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		slug TEXT NOT NULL,
		map_name TEXT,
		zoom INTEGER NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		source_file TEXT,
		scale_x REAL,
		scale_y REAL,
		rotation REAL,
		residual_meters REAL,
		ul_lat REAL,
		ul_long REAL,
		lr_lat REAL,
		lr_long REAL,
		tile_count INTEGER NOT NULL,
		digest TEXT NOT NULL,
		job_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_renders_slug_zoom ON renders(slug, zoom);

	-- Per-tile content digests of each render
	CREATE TABLE IF NOT EXISTS render_tiles (
		render_id INTEGER NOT NULL REFERENCES renders(id) ON DELETE CASCADE,
		zoom INTEGER NOT NULL,
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		digest TEXT NOT NULL,
		bytes INTEGER NOT NULL,
		PRIMARY KEY (render_id, zoom, x, y)
	);
	`

	_, err := r.db.ExecContext(context.Background(), schema)
	return err
}

// Render is the stored summary of one job.
type Render struct {
	ID             int64
	Slug           string
	MapName        string
	Zoom           int
	Timestamp      time.Time
	SourceFile     string
	ScaleX         float64
	ScaleY         float64
	Rotation       float64
	ResidualMeters float64
	BoundingBox    model.GeoBoundingBox
	TileCount      int
	Digest         string
}

// SaveRender records a completed job and its tile digests in one transaction.
// It returns the new render ID.
func (r *RenderDB) SaveRender(ctx context.Context, job *model.Job) (int64, error) {
	if job.Transform == nil || job.BoundingBox == nil {
		return 0, errors.New("failed to save render: job has no transform or bounding box")
	}

	jobJSON, err := json.Marshal(job)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize job: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
	INSERT INTO renders (slug, map_name, zoom, source_file, scale_x, scale_y, rotation, residual_meters,
		ul_lat, ul_long, lr_lat, lr_long, tile_count, digest, job_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		job.Map.Slug,
		job.Map.Name,
		job.Zoom,
		job.Map.File,
		job.Transform.ScaleX,
		job.Transform.ScaleY,
		job.Transform.RotationDegrees,
		job.ResidualMeters,
		job.BoundingBox.UpperLeft.Lat,
		job.BoundingBox.UpperLeft.Long,
		job.BoundingBox.LowerRight.Lat,
		job.BoundingBox.LowerRight.Long,
		job.TileCount(),
		job.Digest,
		string(jobJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert render: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read render id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO render_tiles (render_id, zoom, x, y, digest, bytes) VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare tile insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, rec := range job.TileRecords {
		if _, err := stmt.ExecContext(ctx, id, rec.Address.Zoom, rec.Address.X, rec.Address.Y, rec.Digest, rec.Bytes); err != nil {
			return 0, fmt.Errorf("failed to insert tile %s: %w", rec.Address, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit render: %w", err)
	}
	return id, nil
}

const renderColumns = `id, slug, map_name, zoom, timestamp, source_file, scale_x, scale_y, rotation,
	residual_meters, ul_lat, ul_long, lr_lat, lr_long, tile_count, digest`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRender(row rowScanner) (*Render, error) {
	var (
		rec       Render
		timestamp string
		name      sql.NullString
		source    sql.NullString
	)
	err := row.Scan(
		&rec.ID,
		&rec.Slug,
		&name,
		&rec.Zoom,
		&timestamp,
		&source,
		&rec.ScaleX,
		&rec.ScaleY,
		&rec.Rotation,
		&rec.ResidualMeters,
		&rec.BoundingBox.UpperLeft.Lat,
		&rec.BoundingBox.UpperLeft.Long,
		&rec.BoundingBox.LowerRight.Lat,
		&rec.BoundingBox.LowerRight.Long,
		&rec.TileCount,
		&rec.Digest,
	)
	if err != nil {
		return nil, err
	}
	rec.MapName = name.String
	rec.SourceFile = source.String
	rec.Timestamp = parseTimestamp(timestamp)
	return &rec, nil
}

// GetRender returns the render with the given ID.
func (r *RenderDB) GetRender(ctx context.Context, id int64) (*Render, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+renderColumns+" FROM renders WHERE id = ?", id)
	rec, err := scanRender(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get render: %w", err)
	}
	return rec, nil
}

// ListRenders returns renders newest first, filtered by slug and zoom when
// they are non-empty and non-negative respectively. limit <= 0 means all.
func (r *RenderDB) ListRenders(ctx context.Context, slug string, zoom, limit int) ([]Render, error) {
	query := "SELECT " + renderColumns + " FROM renders WHERE 1=1"
	args := make([]any, 0, 3)

	if slug != "" {
		query += " AND slug = ?"
		args = append(args, slug)
	}
	if zoom >= 0 {
		query += " AND zoom = ?"
		args = append(args, zoom)
	}
	query += " ORDER BY id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list renders: %w", err)
	}
	defer rows.Close()

	var results []Render
	for rows.Next() {
		rec, err := scanRender(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan render: %w", err)
		}
		results = append(results, *rec)
	}
	return results, rows.Err()
}

// ListSlugs returns every map slug with at least one render.
func (r *RenderDB) ListSlugs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT DISTINCT slug FROM renders ORDER BY slug")
	if err != nil {
		return nil, fmt.Errorf("failed to list maps: %w", err)
	}
	defer rows.Close()

	var slugs []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan slug: %w", err)
		}
		slugs = append(slugs, s)
	}
	return slugs, rows.Err()
}

// TileDigests returns the tile digests of a render keyed by address.
func (r *RenderDB) TileDigests(ctx context.Context, renderID int64) (map[model.TileAddress]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT zoom, x, y, digest FROM render_tiles WHERE render_id = ?", renderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get tile digests: %w", err)
	}
	defer rows.Close()

	out := make(map[model.TileAddress]string)
	for rows.Next() {
		var (
			addr   model.TileAddress
			digest string
		)
		if err := rows.Scan(&addr.Zoom, &addr.X, &addr.Y, &digest); err != nil {
			return nil, fmt.Errorf("failed to scan tile digest: %w", err)
		}
		out[addr] = digest
	}
	return out, rows.Err()
}

// Diff lists how the tiles of two renders differ.
type Diff struct {
	Old, New  *Render
	Added     []model.TileAddress
	Removed   []model.TileAddress
	Changed   []model.TileAddress
	Unchanged int
}

// Identical reports whether both renders produced the same tiles.
func (d *Diff) Identical() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// CompareRenders diffs the tiles of two renders.
func (r *RenderDB) CompareRenders(ctx context.Context, oldID, newID int64) (*Diff, error) {
	oldRender, err := r.GetRender(ctx, oldID)
	if err != nil {
		return nil, err
	}
	newRender, err := r.GetRender(ctx, newID)
	if err != nil {
		return nil, err
	}
	oldTiles, err := r.TileDigests(ctx, oldID)
	if err != nil {
		return nil, err
	}
	newTiles, err := r.TileDigests(ctx, newID)
	if err != nil {
		return nil, err
	}

	diff := &Diff{Old: oldRender, New: newRender}
	for addr, digest := range newTiles {
		prev, ok := oldTiles[addr]
		switch {
		case !ok:
			diff.Added = append(diff.Added, addr)
		case prev != digest:
			diff.Changed = append(diff.Changed, addr)
		default:
			diff.Unchanged++
		}
	}
	for addr := range oldTiles {
		if _, ok := newTiles[addr]; !ok {
			diff.Removed = append(diff.Removed, addr)
		}
	}
	sortAddresses(diff.Added)
	sortAddresses(diff.Removed)
	sortAddresses(diff.Changed)
	return diff, nil
}

// CompareLatest diffs the two most recent renders of slug at zoom.
func (r *RenderDB) CompareLatest(ctx context.Context, slug string, zoom int) (*Diff, error) {
	renders, err := r.ListRenders(ctx, slug, zoom, 2)
	if err != nil {
		return nil, err
	}
	if len(renders) < 2 {
		return nil, fmt.Errorf("%w: need two renders of %s at zoom %d, found %d", ErrNotFound, slug, zoom, len(renders))
	}
	return r.CompareRenders(ctx, renders[1].ID, renders[0].ID)
}

func sortAddresses(addrs []model.TileAddress) {
	sort.Slice(addrs, func(i, j int) bool {
		a, b := addrs[i], addrs[j]
		if a.Zoom != b.Zoom {
			return a.Zoom < b.Zoom
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})
}

// timestampFormats contains the timestamp formats that SQLite may return.
var timestampFormats = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999",
}

// parseTimestamp tries each known format and returns the zero time if none
// matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
