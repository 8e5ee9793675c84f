package model

import "image"

// CalibratedTransform holds the scale and rotation that align one map with
// the projection at one zoom level.
type CalibratedTransform struct {
	// ScaleX and ScaleY are the source-to-rectified pixel ratios per axis.
	ScaleX float64 `json:"scale_x"`
	ScaleY float64 `json:"scale_y"`

	// RotationDegrees is the image rotation. Positive values turn the image
	// counter-clockwise on screen.
	RotationDegrees float64 `json:"rotation_degrees"`

	// AnchorRotationDegrees is the bearing of the a->b baseline in
	// geographic space, latitude as the y axis.
	AnchorRotationDegrees float64 `json:"anchor_rotation_degrees"`

	// MapRotationDegrees is the bearing of the a->b baseline in pixel space.
	MapRotationDegrees float64 `json:"map_rotation_degrees"`

	// MetersPerPixel is the ground resolution of the source raster.
	MetersPerPixel float64 `json:"meters_per_pixel"`
}

// RectifiedRaster is a source image after scaling and rotation.
// It is owned by the job that produced it and is read-only once built.
type RectifiedRaster struct {
	// Image is the rectified pixel buffer. It is nil when only the
	// geometry was planned.
	Image *image.RGBA `json:"-"`

	// Width and Height are the dimensions of the expanded canvas.
	Width  int `json:"width"`
	Height int `json:"height"`

	// SourceWidth and SourceHeight are the dimensions before scaling.
	SourceWidth  int `json:"source_width"`
	SourceHeight int `json:"source_height"`

	// ScaledWidth and ScaledHeight are the dimensions after scaling and
	// before rotation.
	ScaledWidth  int `json:"scaled_width"`
	ScaledHeight int `json:"scaled_height"`

	// ExpandDelta is half the growth of the canvas in each dimension.
	ExpandDelta Pixel `json:"expand_delta"`
}

// Center returns the centre of the expanded canvas.
func (r *RectifiedRaster) Center() Pixel {
	return Pixel{X: float64(r.Width) / 2, Y: float64(r.Height) / 2}
}

// EffectiveScale returns the scale actually applied after rounding the
// scaled dimensions to whole pixels.
func (r *RectifiedRaster) EffectiveScale() (float64, float64) {
	if r.SourceWidth == 0 || r.SourceHeight == 0 {
		return 0, 0
	}
	return float64(r.ScaledWidth) / float64(r.SourceWidth), float64(r.ScaledHeight) / float64(r.SourceHeight)
}

// Corners returns the four canvas corners clockwise from the top left.
func (r *RectifiedRaster) Corners() [4]Pixel {
	w, h := float64(r.Width), float64(r.Height)
	return [4]Pixel{{X: 0, Y: 0}, {X: w, Y: 0}, {X: w, Y: h}, {X: 0, Y: h}}
}
