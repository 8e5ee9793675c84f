package raster

import (
	"fmt"
	"image"
	"math"

	"github.com/nao1215/oldmaps/internal/model"
)

// PlanGeometry returns the geometry Rectify will produce for a srcW×srcH
// source under t, without touching pixels. The returned raster has no image.
func PlanGeometry(srcW, srcH int, t *model.CalibratedTransform) (*model.RectifiedRaster, error) {
	if srcW <= 0 || srcH <= 0 {
		return nil, fmt.Errorf("raster: plan: %w: source is %dx%d", ErrEmpty, srcW, srcH)
	}
	sw := scaledLength(srcW, t.ScaleX)
	sh := scaledLength(srcH, t.ScaleY)
	if sw <= 0 || sh <= 0 {
		return nil, fmt.Errorf("raster: plan: %w: scale (%g, %g) gives %dx%d", ErrEmpty, t.ScaleX, t.ScaleY, sw, sh)
	}
	nw, nh := RotatedSize(sw, sh, t.RotationDegrees)
	if int64(nw)*int64(nh) > MaxPixels || int64(sw)*int64(sh) > MaxPixels {
		return nil, fmt.Errorf("raster: plan: %w: %dx%d", ErrTooLarge, nw, nh)
	}
	return &model.RectifiedRaster{
		Width:        nw,
		Height:       nh,
		SourceWidth:  srcW,
		SourceHeight: srcH,
		ScaledWidth:  sw,
		ScaledHeight: sh,
		ExpandDelta: model.Pixel{
			X: float64(nw-sw) / 2,
			Y: float64(nh-sh) / 2,
		},
	}, nil
}

// Rectify scales img by (ScaleX, ScaleY) and rotates the result by
// RotationDegrees with canvas expansion.
func Rectify(img image.Image, t *model.CalibratedTransform, k Kernel) (*model.RectifiedRaster, error) {
	b := img.Bounds()
	r, err := PlanGeometry(b.Dx(), b.Dy(), t)
	if err != nil {
		return nil, err
	}
	scaled, err := Resize(img, r.ScaledWidth, r.ScaledHeight, k)
	if err != nil {
		return nil, err
	}
	rotated, err := rotateInto(scaled, t.RotationDegrees, r.Width, r.Height, k)
	if err != nil {
		return nil, err
	}
	r.Image = rotated
	return r, nil
}

func scaledLength(n int, scale float64) int {
	if math.IsNaN(scale) || math.IsInf(scale, 0) || scale <= 0 {
		return 0
	}
	v := math.Round(float64(n) * scale)
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	return max(int(v), 1)
}
