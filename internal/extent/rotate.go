package extent

import (
	"math"

	"github.com/nao1215/oldmaps/internal/model"
)

// RotateAround rotates p around origin by degrees in y-down pixel space.
// Positive angles turn counter-clockwise on screen, matching raster.Rotate,
// so a point rotated here lands where the same pixel lands when the whole
// image is rotated.
func RotateAround(p, origin model.Pixel, degrees float64) model.Pixel {
	sin, cos := math.Sincos(degrees * math.Pi / 180)
	dx, dy := p.X-origin.X, p.Y-origin.Y
	return model.Pixel{
		X: origin.X + dx*cos + dy*sin,
		Y: origin.Y - dx*sin + dy*cos,
	}
}

// AnchorInRectified returns the position of a source-map pixel on the
// rectified canvas: scaled by the effective per-axis scale, shifted by the
// canvas expansion, then rotated around the canvas centre.
func AnchorInRectified(mapAnchor model.Pixel, r *model.RectifiedRaster, t *model.CalibratedTransform) model.Pixel {
	sx, sy := r.EffectiveScale()
	p := mapAnchor.Scale(sx, sy).Add(r.ExpandDelta)
	return RotateAround(p, r.Center(), t.RotationDegrees)
}
