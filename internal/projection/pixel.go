package projection

import (
	"math"

	"github.com/nao1215/oldmaps/internal/model"
)

// GlobalPixel projects ll to world-pixel coordinates at zoom.
func GlobalPixel(ll model.LatLong, zoom int) model.Pixel {
	return model.Pixel{X: mercatorX(ll.Long, zoom), Y: mercatorY(ll.Lat, zoom)}
}

// LatLongForGlobalPixel is the exact inverse of GlobalPixel.
func LatLongForGlobalPixel(p model.Pixel, zoom int) model.LatLong {
	s := worldScale(zoom)
	long := (p.X/s - math.Pi) / degToRad
	lat := (2*math.Atan(math.Exp(math.Pi-p.Y/s)) - math.Pi/2) / degToRad
	return model.LatLong{Lat: lat, Long: long}
}

// LatLongForPixel converts a pixel of a north-up, projection-aligned raster
// to a geographic position, given one raster pixel whose position is known.
func LatLongForPixel(p, anchorPixel model.Pixel, anchor model.LatLong, zoom int) model.LatLong {
	origin := GlobalPixel(anchor, zoom)
	return LatLongForGlobalPixel(origin.Add(p.Sub(anchorPixel)), zoom)
}

// PixelForLatLong is the inverse of LatLongForPixel.
func PixelForLatLong(ll model.LatLong, anchorPixel model.Pixel, anchor model.LatLong, zoom int) model.Pixel {
	return GlobalPixel(ll, zoom).Sub(GlobalPixel(anchor, zoom)).Add(anchorPixel)
}
