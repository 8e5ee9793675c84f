package model

import (
	"math"
	"path/filepath"
	"testing"
)

func TestBoundingBoxOf(t *testing.T) {
	t.Parallel()

	t.Run("extracts min and max over all points", func(t *testing.T) {
		t.Parallel()

		// A rotated rectangle: the northmost point is not corner 0.
		box := BoundingBoxOf(
			LatLong{Lat: 37.80, Long: -122.29},
			LatLong{Lat: 37.81, Long: -122.27},
			LatLong{Lat: 37.79, Long: -122.26},
			LatLong{Lat: 37.78, Long: -122.28},
		)

		if box.UpperLeft.Lat != 37.81 || box.UpperLeft.Long != -122.29 {
			t.Errorf("unexpected upper left: %v", box.UpperLeft)
		}
		if box.LowerRight.Lat != 37.78 || box.LowerRight.Long != -122.26 {
			t.Errorf("unexpected lower right: %v", box.LowerRight)
		}
		if !box.Valid() {
			t.Error("expected normalized box to be valid")
		}
	})

	t.Run("empty input returns zero box", func(t *testing.T) {
		t.Parallel()

		if box := BoundingBoxOf(); box != (GeoBoundingBox{}) {
			t.Errorf("expected zero box, got %v", box)
		}
	})
}

func TestGeoBoundingBoxValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		box  GeoBoundingBox
		want bool
	}{
		{
			name: "normalized box",
			box:  GeoBoundingBox{UpperLeft: LatLong{Lat: 2, Long: 1}, LowerRight: LatLong{Lat: 1, Long: 2}},
			want: true,
		},
		{
			name: "inverted latitude",
			box:  GeoBoundingBox{UpperLeft: LatLong{Lat: 1, Long: 1}, LowerRight: LatLong{Lat: 2, Long: 2}},
			want: false,
		},
		{
			name: "inverted longitude",
			box:  GeoBoundingBox{UpperLeft: LatLong{Lat: 2, Long: 2}, LowerRight: LatLong{Lat: 1, Long: 1}},
			want: false,
		},
		{
			name: "NaN component",
			box:  GeoBoundingBox{UpperLeft: LatLong{Lat: math.NaN(), Long: 1}, LowerRight: LatLong{Lat: 1, Long: 2}},
			want: false,
		},
		{
			name: "infinite component",
			box:  GeoBoundingBox{UpperLeft: LatLong{Lat: 2, Long: 1}, LowerRight: LatLong{Lat: 1, Long: math.Inf(1)}},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.box.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGeoBoundingBoxBound(t *testing.T) {
	t.Parallel()

	box := GeoBoundingBox{
		UpperLeft:  LatLong{Lat: 37.81, Long: -122.29},
		LowerRight: LatLong{Lat: 37.79, Long: -122.27},
	}
	b := box.Bound()

	if b.Min.X() != -122.29 || b.Min.Y() != 37.79 {
		t.Errorf("unexpected min: %v", b.Min)
	}
	if b.Max.X() != -122.27 || b.Max.Y() != 37.81 {
		t.Errorf("unexpected max: %v", b.Max)
	}
}

func TestTileAddress(t *testing.T) {
	t.Parallel()

	t.Run("valid range", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			addr TileAddress
			want bool
		}{
			{TileAddress{Zoom: 0, X: 0, Y: 0}, true},
			{TileAddress{Zoom: 1, X: 1, Y: 1}, true},
			{TileAddress{Zoom: 1, X: 2, Y: 0}, false},
			{TileAddress{Zoom: 14, X: -1, Y: 0}, false},
			{TileAddress{Zoom: -1, X: 0, Y: 0}, false},
			{TileAddress{Zoom: 14, X: 16383, Y: 16383}, true},
			{TileAddress{Zoom: 14, X: 0, Y: 16384}, false},
			{TileAddress{Zoom: 31, X: 0, Y: 0}, false},
			{TileAddress{Zoom: 2, X: 1 << 30, Y: 0}, false},
		}
		for _, tt := range tests {
			if got := tt.addr.Valid(); got != tt.want {
				t.Errorf("%v.Valid() = %v, want %v", tt.addr, got, tt.want)
			}
		}
	})

	t.Run("path layout is root/slug/zoom/x/y.png", func(t *testing.T) {
		t.Parallel()

		got := TileAddress{Zoom: 14, X: 2621, Y: 6331}.Path("tiles", "oakland-1868")
		want := filepath.Join("tiles", "oakland-1868", "14", "2621", "6331.png")
		if got != want {
			t.Errorf("Path() = %q, want %q", got, want)
		}
	})

	t.Run("flip y for TMS", func(t *testing.T) {
		t.Parallel()

		if got := (TileAddress{Zoom: 2, X: 0, Y: 0}).FlipY(); got != 3 {
			t.Errorf("FlipY() = %d, want 3", got)
		}
		if got := (TileAddress{Zoom: 2, X: 0, Y: 3}).FlipY(); got != 0 {
			t.Errorf("FlipY() = %d, want 0", got)
		}
	})

	t.Run("converts to maptile", func(t *testing.T) {
		t.Parallel()

		mt := TileAddress{Zoom: 14, X: 2621, Y: 6331}.MapTile()
		if mt.X != 2621 || mt.Y != 6331 || mt.Z != 14 {
			t.Errorf("unexpected maptile: %+v", mt)
		}
	})
}

func TestPixelDistance(t *testing.T) {
	t.Parallel()

	if d := (Pixel{X: 0, Y: 0}).Distance(Pixel{X: 3, Y: 4}); d != 5 {
		t.Errorf("Distance() = %v, want 5", d)
	}
}
