package tiler

import (
	"context"
	"encoding/hex"
	"fmt"
	"image"
	"log/slog"
	"time"

	"golang.org/x/crypto/sha3"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/oldmaps/internal/model"
	"github.com/nao1215/oldmaps/internal/raster"
)

// Sink receives encoded tiles. Implementations must be safe for concurrent
// use when Slice runs with more than one worker.
type Sink interface {
	WriteTile(ctx context.Context, addr model.TileAddress, png []byte) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, addr model.TileAddress, png []byte) error

// WriteTile calls f.
func (f SinkFunc) WriteTile(ctx context.Context, addr model.TileAddress, png []byte) error {
	return f(ctx, addr, png)
}

// Result summarises one Slice call.
type Result struct {
	// Records lists every written tile ordered by row, then column.
	Records []model.TileRecord

	// Skipped counts fully transparent tiles left out by WithSkipEmpty.
	Skipped int

	// Digest is the SHA3-256 over all tile digests in address order. It does
	// not depend on the number of workers.
	Digest string

	Elapsed time.Duration
}

// Slicer crops rasters into tiles.
type Slicer struct {
	workers   int
	skipEmpty bool
	logger    *slog.Logger
}

// Option configures a Slicer.
type Option func(*Slicer)

// WithWorkers sets how many tiles are cropped and encoded concurrently.
// Default is 1.
func WithWorkers(n int) Option {
	return func(s *Slicer) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithSkipEmpty drops tiles without a single visible pixel.
func WithSkipEmpty(skip bool) Option {
	return func(s *Slicer) {
		s.skipEmpty = skip
	}
}

// WithLogger sets the logger for slicing events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Slicer) {
		s.logger = logger
	}
}

// NewSlicer creates a Slicer.
func NewSlicer(opts ...Option) *Slicer {
	s := &Slicer{workers: 1}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Slice crops every tile of plan out of img, encodes it as PNG and writes it
// to sink. Tiles reaching past the raster are padded with transparency.
// img is only read.
func (s *Slicer) Slice(ctx context.Context, img *image.RGBA, plan *Plan, sink Sink) (*Result, error) {
	start := time.Now()
	addrs := plan.Addresses()
	records := make([]model.TileRecord, len(addrs))
	written := make([]bool, len(addrs))

	s.logger.Debug("slicing tiles",
		"zoom", plan.Zoom,
		"tiles", len(addrs),
		"offset_x", plan.OffsetX,
		"offset_y", plan.OffsetY,
		"workers", s.workers,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, addr := range addrs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			x, y := plan.Origin(addr)
			tile, err := raster.Crop(img, image.Rect(x, y, x+model.TileSize, y+model.TileSize))
			if err != nil {
				return fmt.Errorf("tile %s: %w", addr, err)
			}
			if s.skipEmpty && raster.IsTransparent(tile) {
				return nil
			}

			data, err := raster.PNGBytes(tile)
			if err != nil {
				return fmt.Errorf("tile %s: %w", addr, err)
			}
			if err := sink.WriteTile(gctx, addr, data); err != nil {
				return fmt.Errorf("tile %s: %w", addr, err)
			}

			records[i] = model.TileRecord{Address: addr, Digest: Digest(data), Bytes: len(data)}
			written[i] = true
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{Records: make([]model.TileRecord, 0, len(addrs)), Elapsed: time.Since(start)}
	for i := range records {
		if written[i] {
			res.Records = append(res.Records, records[i])
		} else {
			res.Skipped++
		}
	}
	res.Digest = CombinedDigest(res.Records)
	return res, nil
}

// Digest returns the hex SHA3-256 of data.
func Digest(data []byte) string {
	sum := sha3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// CombinedDigest hashes "z/x/y digest" lines of records. Callers pass
// records in address order.
func CombinedDigest(records []model.TileRecord) string {
	h := sha3.New256()
	for _, r := range records {
		_, _ = fmt.Fprintf(h, "%s %s\n", r.Address, r.Digest)
	}
	return hex.EncodeToString(h.Sum(nil))
}
