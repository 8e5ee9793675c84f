package projection

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/nao1215/oldmaps/internal/model"
)

// Zoom range supported by the tiler.
const (
	MinZoom = 0
	MaxZoom = 22
)

// tileEpsilon snaps points lying exactly on a tile boundary into the
// following tile.
const tileEpsilon = 1e-14

// EarthRadius is the sphere radius in meters used for ground distances.
const EarthRadius = orb.EarthRadius

const degToRad = math.Pi / 180

// ErrInvalidZoom is returned for zoom levels outside [MinZoom, MaxZoom].
var ErrInvalidZoom = errors.New("invalid zoom level")

// ValidateZoom checks that zoom is within the supported range.
func ValidateZoom(zoom int) error {
	if zoom < MinZoom || zoom > MaxZoom {
		return fmt.Errorf("%w: %d (supported %d-%d)", ErrInvalidZoom, zoom, MinZoom, MaxZoom)
	}
	return nil
}

// worldScale returns S = (256 / 2π) · 2^zoom.
func worldScale(zoom int) float64 {
	return model.TileSize / (2 * math.Pi) * math.Exp2(float64(zoom))
}

// mercatorX projects a longitude in degrees to a world-pixel x.
func mercatorX(long float64, zoom int) float64 {
	return worldScale(zoom) * (math.Pi + long*degToRad)
}

// mercatorY projects a latitude in degrees to a world-pixel y.
func mercatorY(lat float64, zoom int) float64 {
	phi := lat * degToRad
	return worldScale(zoom) * (math.Pi - math.Log(math.Tan(math.Pi/4+phi/2)))
}

// PixelsPerDegreeLatitude returns how many world pixels one degree of
// latitude spans around lat, by finite difference over lat±0.5°.
func PixelsPerDegreeLatitude(lat float64, zoom int) float64 {
	return math.Abs(mercatorY(lat+0.5, zoom) - mercatorY(lat-0.5, zoom))
}

// PixelsPerDegreeLongitude returns how many world pixels one degree of
// longitude spans. Mercator longitude scaling does not depend on latitude.
func PixelsPerDegreeLongitude(_ float64, zoom int) float64 {
	return math.Abs(mercatorX(1, zoom) - mercatorX(0, zoom))
}

// MetersPerDegreeLatitude returns the haversine ground distance covered by
// one degree of latitude centred on lat.
func MetersPerDegreeLatitude(lat float64) float64 {
	return geo.DistanceHaversine(orb.Point{0, lat - 0.5}, orb.Point{0, lat + 0.5})
}

// MetersPerDegreeLongitude returns the haversine ground distance covered by
// one degree of longitude along the parallel at lat.
func MetersPerDegreeLongitude(lat float64) float64 {
	return geo.DistanceHaversine(orb.Point{0, lat}, orb.Point{1, lat})
}

// MetersPerPixelLatitude returns the north-south ground size of one world
// pixel at lat.
func MetersPerPixelLatitude(lat float64, zoom int) float64 {
	return MetersPerDegreeLatitude(lat) / PixelsPerDegreeLatitude(lat, zoom)
}

// MetersPerPixelLongitude returns the east-west ground size of one world
// pixel at lat.
func MetersPerPixelLongitude(lat float64, zoom int) float64 {
	return MetersPerDegreeLongitude(lat) / PixelsPerDegreeLongitude(lat, zoom)
}

// Distance returns the haversine distance in meters between two positions.
func Distance(a, b model.LatLong) float64 {
	return geo.DistanceHaversine(a.Point(), b.Point())
}
