package projection

import (
	"math"

	"github.com/nao1215/oldmaps/internal/model"
)

// TileForLatLong returns the tile containing ll at zoom.
// Points exactly on a tile boundary belong to the tile to their right or
// below; indices are clamped to the grid.
func TileForLatLong(ll model.LatLong, zoom int) model.TileAddress {
	n := math.Exp2(float64(zoom))

	x := math.Floor((ll.Long/360 + 0.5 + tileEpsilon) * n)

	sinPhi := math.Sin(ll.Lat * degToRad)
	yFrac := 0.5 - math.Log((1+sinPhi)/(1-sinPhi))/(4*math.Pi)
	y := math.Floor((yFrac + tileEpsilon) * n)

	maxIndex := n - 1
	return model.TileAddress{
		Zoom: zoom,
		X:    int(clamp(x, 0, maxIndex)),
		Y:    int(clamp(y, 0, maxIndex)),
	}
}

// UpperLeftLatLongForTile returns the geographic position of the top-left
// pixel of tile (x, y) at zoom.
func UpperLeftLatLongForTile(x, y, zoom int) model.LatLong {
	n := math.Exp2(float64(zoom))
	long := float64(x)/n*360 - 180
	lat := math.Atan(math.Sinh(math.Pi*(1-2*float64(y)/n))) / degToRad
	return model.LatLong{Lat: lat, Long: long}
}

// TileBounds returns the geographic box covered by tile t.
func TileBounds(t model.TileAddress) model.GeoBoundingBox {
	return model.GeoBoundingBox{
		UpperLeft:  UpperLeftLatLongForTile(t.X, t.Y, t.Zoom),
		LowerRight: UpperLeftLatLongForTile(t.X+1, t.Y+1, t.Zoom),
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
