package tiler

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"github.com/paulmach/orb/maptile"

	"github.com/nao1215/oldmaps/internal/extent"
	"github.com/nao1215/oldmaps/internal/model"
	"github.com/nao1215/oldmaps/internal/projection"
	"github.com/nao1215/oldmaps/internal/raster"
)

// memorySink collects tiles in memory.
type memorySink struct {
	mu    sync.Mutex
	tiles map[model.TileAddress][]byte
}

func newMemorySink() *memorySink {
	return &memorySink{tiles: make(map[model.TileAddress][]byte)}
}

func (m *memorySink) WriteTile(_ context.Context, addr model.TileAddress, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tiles[addr] = append([]byte(nil), data...)
	return nil
}

// resolvedRaster plans a rotated raster anchored near Oakland and returns its
// geometry and extent.
func resolvedRaster(t *testing.T, w, h int, rotation float64, zoom int) (*model.RectifiedRaster, *extent.Extent) {
	t.Helper()

	tr := &model.CalibratedTransform{ScaleX: 0.9, ScaleY: 0.9, RotationDegrees: rotation}
	r, err := raster.PlanGeometry(w, h, tr)
	if err != nil {
		t.Fatal(err)
	}
	ext, err := extent.Resolve(r, tr, extent.Reference{
		Map:     "test",
		Pixel:   model.Pixel{X: float64(w) / 3, Y: float64(h) / 4},
		LatLong: model.LatLong{Lat: 37.806645, Long: -122.287200},
	}, zoom)
	if err != nil {
		t.Fatal(err)
	}
	return r, ext
}

func solidImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 180, 150, 90, 255
	}
	return img
}

func TestNewPlan(t *testing.T) {
	t.Parallel()

	t.Run("box aligned with a tile has no offset", func(t *testing.T) {
		t.Parallel()

		ul := projection.UpperLeftLatLongForTile(2626, 6330, 14)
		lr := projection.UpperLeftLatLongForTile(2628, 6332, 14)
		// Pull the lower-right corner just inside the last tile.
		lr.Lat += 1e-7
		lr.Long -= 1e-7

		p, err := NewPlan(model.GeoBoundingBox{UpperLeft: ul, LowerRight: lr}, 14)
		if err != nil {
			t.Fatal(err)
		}
		if p.OffsetX != 0 || p.OffsetY != 0 {
			t.Errorf("expected zero offset, got (%d, %d)", p.OffsetX, p.OffsetY)
		}
		if p.UpperLeft != (model.TileAddress{Zoom: 14, X: 2626, Y: 6330}) {
			t.Errorf("unexpected first tile %s", p.UpperLeft)
		}
		if p.Columns != 2 || p.Rows != 2 || p.Count() != 4 {
			t.Errorf("expected 2x2 tiles, got %dx%d", p.Columns, p.Rows)
		}
	})

	t.Run("offset matches the projected position", func(t *testing.T) {
		t.Parallel()

		_, ext := resolvedRaster(t, 1500, 1100, 8, 14)
		p, err := NewPlan(ext.BoundingBox, 14)
		if err != nil {
			t.Fatal(err)
		}
		g := projection.GlobalPixel(ext.BoundingBox.UpperLeft, 14)
		wantX := g.X - float64(model.TileSize*p.UpperLeft.X)
		wantY := g.Y - float64(model.TileSize*p.UpperLeft.Y)
		if diff := float64(p.OffsetX) - wantX; diff > 1 || diff < -1 {
			t.Errorf("OffsetX %d, projected %f", p.OffsetX, wantX)
		}
		if diff := float64(p.OffsetY) - wantY; diff > 1 || diff < -1 {
			t.Errorf("OffsetY %d, projected %f", p.OffsetY, wantY)
		}
		if p.OffsetX < 0 || p.OffsetX > model.TileSize || p.OffsetY < 0 || p.OffsetY > model.TileSize {
			t.Errorf("offset (%d, %d) outside the first tile", p.OffsetX, p.OffsetY)
		}
	})

	t.Run("first and last tiles agree with maptile", func(t *testing.T) {
		t.Parallel()

		_, ext := resolvedRaster(t, 2000, 2000, -20, 15)
		p, err := NewPlan(ext.BoundingBox, 15)
		if err != nil {
			t.Fatal(err)
		}
		ul := maptile.At(ext.BoundingBox.UpperLeft.Point(), 15)
		lr := maptile.At(ext.BoundingBox.LowerRight.Point(), 15)
		if p.UpperLeft.MapTile() != ul || p.LowerRight.MapTile() != lr {
			t.Errorf("plan %s..%s, maptile %v..%v", p.UpperLeft, p.LowerRight, ul, lr)
		}
	})

	t.Run("invalid input", func(t *testing.T) {
		t.Parallel()

		box := model.GeoBoundingBox{
			UpperLeft:  model.LatLong{Lat: 37.7, Long: -122.2},
			LowerRight: model.LatLong{Lat: 37.8, Long: -122.3},
		}
		if _, err := NewPlan(box, 14); !errors.Is(err, model.ErrDegenerateGeometry) {
			t.Errorf("expected ErrDegenerateGeometry for inverted box, got %v", err)
		}
		if _, err := NewPlan(model.GeoBoundingBox{}, 23); !errors.Is(err, projection.ErrInvalidZoom) {
			t.Errorf("expected ErrInvalidZoom, got %v", err)
		}
	})
}

// TestPlanCoverage checks that the planned tiles cover the bounding box
// without gaps, geographically and in raster pixels.
func TestPlanCoverage(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		zoom     int
		rotation float64
	}{
		{zoom: 12, rotation: 0},
		{zoom: 14, rotation: 2.1},
		{zoom: 14, rotation: -35},
		{zoom: 16, rotation: 90},
	} {
		r, ext := resolvedRaster(t, 2000, 1400, tc.rotation, tc.zoom)
		p, err := NewPlan(ext.BoundingBox, tc.zoom)
		if err != nil {
			t.Fatal(err)
		}

		addrs := p.Addresses()
		if len(addrs) != p.Count() {
			t.Fatalf("zoom %d: %d addresses for %d tiles", tc.zoom, len(addrs), p.Count())
		}

		union := addrs[0].MapTile().Bound()
		for _, a := range addrs[1:] {
			union = union.Union(a.MapTile().Bound())
		}
		box := ext.BoundingBox.Bound()
		if !union.Contains(box.Min) || !union.Contains(box.Max) {
			t.Errorf("zoom %d rotation %f: tiles %v do not cover %v", tc.zoom, tc.rotation, union, box)
		}

		// Neighbouring tiles share edges.
		for _, a := range addrs {
			if a.X == p.LowerRight.X || a.Y == p.LowerRight.Y {
				continue
			}
			here := projection.TileBounds(a)
			right := projection.TileBounds(model.TileAddress{Zoom: a.Zoom, X: a.X + 1, Y: a.Y})
			below := projection.TileBounds(model.TileAddress{Zoom: a.Zoom, X: a.X, Y: a.Y + 1})
			if here.LowerRight.Long != right.UpperLeft.Long || here.LowerRight.Lat != below.UpperLeft.Lat {
				t.Fatalf("gap after tile %s", a)
			}
		}

		// The crop windows cover every raster pixel.
		x0, y0 := p.Origin(p.UpperLeft)
		x1, y1 := p.Origin(p.LowerRight)
		if x0 > 0 || y0 > 0 || x1+model.TileSize < r.Width || y1+model.TileSize < r.Height {
			t.Errorf("zoom %d rotation %f: crops [%d,%d]-[%d,%d] miss a %dx%d raster",
				tc.zoom, tc.rotation, x0, y0, x1+model.TileSize, y1+model.TileSize, r.Width, r.Height)
		}
	}
}

func TestSlice(t *testing.T) {
	t.Parallel()

	r, ext := resolvedRaster(t, 900, 700, 0, 14)
	img := solidImage(r.Width, r.Height)
	p, err := NewPlan(ext.BoundingBox, 14)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("writes every tile as 256x256 PNG", func(t *testing.T) {
		t.Parallel()

		sink := newMemorySink()
		res, err := NewSlicer().Slice(context.Background(), img, p, sink)
		if err != nil {
			t.Fatal(err)
		}
		if len(res.Records) != p.Count() || len(sink.tiles) != p.Count() {
			t.Fatalf("expected %d tiles, got %d records and %d files", p.Count(), len(res.Records), len(sink.tiles))
		}
		for addr, data := range sink.tiles {
			decoded, err := png.Decode(bytes.NewReader(data))
			if err != nil {
				t.Fatalf("tile %s: %v", addr, err)
			}
			if decoded.Bounds().Dx() != model.TileSize || decoded.Bounds().Dy() != model.TileSize {
				t.Errorf("tile %s is %v", addr, decoded.Bounds())
			}
		}

		// The first tile starts OffsetX pixels left of the raster, so its
		// top-left pixel is padding unless the offset is zero.
		first, err := png.Decode(bytes.NewReader(sink.tiles[p.UpperLeft]))
		if err != nil {
			t.Fatal(err)
		}
		if p.OffsetX < model.TileSize && p.OffsetY < model.TileSize {
			if _, _, _, a := first.At(p.OffsetX, p.OffsetY).RGBA(); a == 0 {
				t.Error("expected the raster origin to be opaque in the first tile")
			}
		}
		if p.OffsetX > 0 && p.OffsetY > 0 {
			if _, _, _, a := first.At(0, 0).RGBA(); a != 0 {
				t.Error("expected padding before the raster origin")
			}
		}
	})

	t.Run("output does not depend on worker count", func(t *testing.T) {
		t.Parallel()

		one, err := NewSlicer(WithWorkers(1)).Slice(context.Background(), img, p, newMemorySink())
		if err != nil {
			t.Fatal(err)
		}
		many, err := NewSlicer(WithWorkers(6)).Slice(context.Background(), img, p, newMemorySink())
		if err != nil {
			t.Fatal(err)
		}
		if one.Digest != many.Digest {
			t.Errorf("digest differs: %s vs %s", one.Digest, many.Digest)
		}
		for i := range one.Records {
			if one.Records[i] != many.Records[i] {
				t.Fatalf("record %d differs: %+v vs %+v", i, one.Records[i], many.Records[i])
			}
		}
	})

	t.Run("sink errors stop slicing", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("disk full")
		sink := SinkFunc(func(context.Context, model.TileAddress, []byte) error { return boom })
		if _, err := NewSlicer(WithWorkers(3)).Slice(context.Background(), img, p, sink); !errors.Is(err, boom) {
			t.Errorf("expected sink error, got %v", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := NewSlicer().Slice(ctx, img, p, newMemorySink()); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestSliceSkipEmpty(t *testing.T) {
	t.Parallel()

	r, ext := resolvedRaster(t, 1600, 1600, 45, 14)
	p, err := NewPlan(ext.BoundingBox, 14)
	if err != nil {
		t.Fatal(err)
	}

	// Only a diamond is opaque after a 45 degree turn; draw one.
	img := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	cx, cy := r.Width/2, r.Height/2
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			if abs(x-cx)+abs(y-cy) < r.Width/2 {
				img.SetRGBA(x, y, color.RGBA{R: 200, A: 255})
			}
		}
	}

	all, err := NewSlicer().Slice(context.Background(), img, p, newMemorySink())
	if err != nil {
		t.Fatal(err)
	}
	sink := newMemorySink()
	some, err := NewSlicer(WithSkipEmpty(true), WithWorkers(4)).Slice(context.Background(), img, p, sink)
	if err != nil {
		t.Fatal(err)
	}
	if len(all.Records) != p.Count() {
		t.Errorf("expected %d tiles without skipping, got %d", p.Count(), len(all.Records))
	}
	if some.Skipped == 0 || len(some.Records)+some.Skipped != p.Count() {
		t.Errorf("expected some skipped tiles, got %d written and %d skipped of %d", len(some.Records), some.Skipped, p.Count())
	}
	if len(sink.tiles) != len(some.Records) {
		t.Errorf("sink holds %d tiles, result lists %d", len(sink.tiles), len(some.Records))
	}
}

func TestCombinedDigest(t *testing.T) {
	t.Parallel()

	a := []model.TileRecord{{Address: model.TileAddress{Zoom: 1, X: 0, Y: 0}, Digest: Digest([]byte("a"))}}
	b := []model.TileRecord{{Address: model.TileAddress{Zoom: 1, X: 0, Y: 0}, Digest: Digest([]byte("b"))}}
	if CombinedDigest(a) == CombinedDigest(b) {
		t.Error("expected different digests for different content")
	}
	if CombinedDigest(a) != CombinedDigest(a) {
		t.Error("expected a stable digest")
	}
	if len(Digest(nil)) != 64 {
		t.Errorf("expected 64 hex characters, got %d", len(Digest(nil)))
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
