package model

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// TileSize is the edge length in pixels of every output tile.
const TileSize = 256

// LatLong is a geographic position in degrees.
type LatLong struct {
	Lat  float64 `json:"lat"`
	Long float64 `json:"long"`
}

// Sub returns the component-wise difference l - o.
func (l LatLong) Sub(o LatLong) LatLong {
	return LatLong{Lat: l.Lat - o.Lat, Long: l.Long - o.Long}
}

// IsFinite reports whether both components are finite numbers.
func (l LatLong) IsFinite() bool {
	return isFinite(l.Lat) && isFinite(l.Long)
}

// Point converts l to an orb.Point, which stores longitude first.
func (l LatLong) Point() orb.Point {
	return orb.Point{l.Long, l.Lat}
}

// String returns l formatted as "lat,long".
func (l LatLong) String() string {
	return strconv.FormatFloat(l.Lat, 'f', 7, 64) + "," + strconv.FormatFloat(l.Long, 'f', 7, 64)
}

// Pixel is a position in a raster, x to the right and y downwards.
type Pixel struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p + o.
func (p Pixel) Add(o Pixel) Pixel {
	return Pixel{X: p.X + o.X, Y: p.Y + o.Y}
}

// Sub returns p - o.
func (p Pixel) Sub(o Pixel) Pixel {
	return Pixel{X: p.X - o.X, Y: p.Y - o.Y}
}

// Scale returns p with x multiplied by sx and y by sy.
func (p Pixel) Scale(sx, sy float64) Pixel {
	return Pixel{X: p.X * sx, Y: p.Y * sy}
}

// Distance returns the Euclidean distance between p and o.
func (p Pixel) Distance(o Pixel) float64 {
	return math.Hypot(o.X-p.X, o.Y-p.Y)
}

// IsFinite reports whether both components are finite numbers.
func (p Pixel) IsFinite() bool {
	return isFinite(p.X) && isFinite(p.Y)
}

// GeoBoundingBox is the geographic extent of a rectified raster.
// A valid box satisfies UpperLeft.Lat >= LowerRight.Lat and
// UpperLeft.Long <= LowerRight.Long.
type GeoBoundingBox struct {
	UpperLeft  LatLong `json:"upper_left"`
	LowerRight LatLong `json:"lower_right"`
}

// BoundingBoxOf returns the normalized box enclosing all points.
// It returns the zero box when points is empty.
func BoundingBoxOf(points ...LatLong) GeoBoundingBox {
	if len(points) == 0 {
		return GeoBoundingBox{}
	}
	maxLat, minLat := points[0].Lat, points[0].Lat
	minLong, maxLong := points[0].Long, points[0].Long
	for _, p := range points[1:] {
		maxLat = math.Max(maxLat, p.Lat)
		minLat = math.Min(minLat, p.Lat)
		minLong = math.Min(minLong, p.Long)
		maxLong = math.Max(maxLong, p.Long)
	}
	return GeoBoundingBox{
		UpperLeft:  LatLong{Lat: maxLat, Long: minLong},
		LowerRight: LatLong{Lat: minLat, Long: maxLong},
	}
}

// Valid reports whether the box is finite and normalized.
func (b GeoBoundingBox) Valid() bool {
	if !b.UpperLeft.IsFinite() || !b.LowerRight.IsFinite() {
		return false
	}
	return b.UpperLeft.Lat >= b.LowerRight.Lat && b.UpperLeft.Long <= b.LowerRight.Long
}

// Bound converts the box to an orb.Bound.
func (b GeoBoundingBox) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.UpperLeft.Long, b.LowerRight.Lat},
		Max: orb.Point{b.LowerRight.Long, b.UpperLeft.Lat},
	}
}

// String returns the box as "ul_lat,ul_long -> lr_lat,lr_long".
func (b GeoBoundingBox) String() string {
	return b.UpperLeft.String() + " -> " + b.LowerRight.String()
}

// TileAddress identifies one output tile in the slippy-map scheme.
type TileAddress struct {
	Zoom int `json:"zoom"`
	X    int `json:"x"`
	Y    int `json:"y"`
}

// maxTileIndex bounds tile indices at the deepest zoom Valid accepts.
const maxTileIndex = 1 << 30

// Valid reports whether x and y lie in [0, 2^zoom).
func (t TileAddress) Valid() bool {
	if t.Zoom < 0 || t.Zoom > 30 {
		return false
	}
	if t.X < 0 || t.Y < 0 || t.X >= maxTileIndex || t.Y >= maxTileIndex {
		return false
	}
	return t.MapTile().Valid()
}

// Path returns the on-disk location {root}/{slug}/{zoom}/{x}/{y}.png.
func (t TileAddress) Path(root, slug string) string {
	return filepath.Join(root, slug, strconv.Itoa(t.Zoom), strconv.Itoa(t.X), strconv.Itoa(t.Y)+".png")
}

// MapTile converts the address to a maptile.Tile.
func (t TileAddress) MapTile() maptile.Tile {
	return maptile.New(uint32(t.X), uint32(t.Y), maptile.Zoom(t.Zoom)) //nolint:gosec // validated tile indices
}

// FlipY returns the TMS row index used by MBTiles.
func (t TileAddress) FlipY() int {
	mt := t.MapTile()
	return int(uint32(1)<<uint32(mt.Z)) - 1 - int(mt.Y)
}

// String returns the address as "zoom/x/y".
func (t TileAddress) String() string {
	return fmt.Sprintf("%d/%d/%d", t.Zoom, t.X, t.Y)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
