package tiler

import (
	"fmt"
	"math"

	"github.com/nao1215/oldmaps/internal/model"
	"github.com/nao1215/oldmaps/internal/projection"
)

// Plan is the tile grid covering one bounding box at one zoom level.
type Plan struct {
	Zoom int `json:"zoom"`

	// UpperLeft and LowerRight are the first and last tiles, inclusive.
	UpperLeft  model.TileAddress `json:"upper_left"`
	LowerRight model.TileAddress `json:"lower_right"`

	// OffsetX and OffsetY locate the bounding box's upper-left corner inside
	// the first tile, in pixels. The first tile's top-left pixel sits at
	// raster coordinate (-OffsetX, -OffsetY).
	OffsetX int `json:"offset_x"`
	OffsetY int `json:"offset_y"`

	Columns int `json:"columns"`
	Rows    int `json:"rows"`
}

// NewPlan computes the covering tile range for bbox at zoom.
func NewPlan(bbox model.GeoBoundingBox, zoom int) (*Plan, error) {
	if err := projection.ValidateZoom(zoom); err != nil {
		return nil, err
	}
	if !bbox.Valid() {
		return nil, fmt.Errorf("%w: bounding box %s", model.ErrDegenerateGeometry, bbox)
	}

	ul := projection.TileForLatLong(bbox.UpperLeft, zoom)
	lr := projection.TileForLatLong(bbox.LowerRight, zoom)

	ulTile := projection.UpperLeftLatLongForTile(ul.X, ul.Y, zoom)
	delta := bbox.UpperLeft.Sub(ulTile)

	lat := bbox.UpperLeft.Lat
	offsetX := math.Round(delta.Long * projection.PixelsPerDegreeLongitude(lat, zoom))
	offsetY := math.Round(-delta.Lat * projection.PixelsPerDegreeLatitude(lat, zoom))

	return &Plan{
		Zoom:       zoom,
		UpperLeft:  ul,
		LowerRight: lr,
		OffsetX:    int(offsetX),
		OffsetY:    int(offsetY),
		Columns:    lr.X - ul.X + 1,
		Rows:       lr.Y - ul.Y + 1,
	}, nil
}

// Count returns the number of tiles in the plan.
func (p *Plan) Count() int {
	return p.Columns * p.Rows
}

// Range returns the plan's tile range.
func (p *Plan) Range() model.TileRange {
	return model.TileRange{UpperLeft: p.UpperLeft, LowerRight: p.LowerRight}
}

// Addresses lists every tile of the plan, row by row.
func (p *Plan) Addresses() []model.TileAddress {
	out := make([]model.TileAddress, 0, p.Count())
	for y := p.UpperLeft.Y; y <= p.LowerRight.Y; y++ {
		for x := p.UpperLeft.X; x <= p.LowerRight.X; x++ {
			out = append(out, model.TileAddress{Zoom: p.Zoom, X: x, Y: y})
		}
	}
	return out
}

// Origin returns the raster coordinate of the top-left pixel of tile t.
func (p *Plan) Origin(t model.TileAddress) (int, int) {
	return -p.OffsetX + model.TileSize*(t.X-p.UpperLeft.X),
		-p.OffsetY + model.TileSize*(t.Y-p.UpperLeft.Y)
}
