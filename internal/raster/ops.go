package raster

import (
	"errors"
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// MaxPixels bounds the size of any raster this package allocates.
const MaxPixels = 1 << 28

// ErrTooLarge is returned when an operation would allocate more than
// MaxPixels pixels.
var ErrTooLarge = errors.New("raster too large")

// ErrEmpty is returned for zero-sized inputs.
var ErrEmpty = errors.New("empty raster")

func newCanvas(w, h int) (*image.RGBA, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrEmpty, w, h)
	}
	if int64(w)*int64(h) > MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrTooLarge, w, h, MaxPixels)
	}
	return image.NewRGBA(image.Rect(0, 0, w, h)), nil
}

// Resize returns a w×h resampled copy of img.
func Resize(img image.Image, w, h int, k Kernel) (*image.RGBA, error) {
	dst, err := newCanvas(w, h)
	if err != nil {
		return nil, fmt.Errorf("raster: resize: %w", err)
	}
	k.interpolator().Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst, nil
}

// RotatedSize returns the smallest canvas that holds a w×h image rotated by
// degrees around its centre.
func RotatedSize(w, h int, degrees float64) (int, int) {
	sin, cos := math.Sincos(degrees * math.Pi / 180)
	sin, cos = math.Abs(sin), math.Abs(cos)
	fw, fh := float64(w), float64(h)
	// The tolerance keeps exact right angles from growing by one pixel
	// because of rounding in Sincos.
	nw := int(math.Ceil(fw*cos + fh*sin - 1e-9))
	nh := int(math.Ceil(fw*sin + fh*cos - 1e-9))
	return max(nw, 1), max(nh, 1)
}

// Rotate rotates img around its centre by degrees, positive counter-clockwise
// on screen. The canvas grows to the minimal bounding box of the rotated
// image and uncovered pixels are transparent.
func Rotate(img image.Image, degrees float64, k Kernel) (*image.RGBA, error) {
	b := img.Bounds()
	nw, nh := RotatedSize(b.Dx(), b.Dy(), degrees)
	return rotateInto(img, degrees, nw, nh, k)
}

func rotateInto(img image.Image, degrees float64, nw, nh int, k Kernel) (*image.RGBA, error) {
	dst, err := newCanvas(nw, nh)
	if err != nil {
		return nil, fmt.Errorf("raster: rotate: %w", err)
	}
	b := img.Bounds()
	if math.Mod(degrees, 360) == 0 && nw == b.Dx() && nh == b.Dy() {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
		return dst, nil
	}

	sin, cos := math.Sincos(degrees * math.Pi / 180)
	// Source and destination centres in continuous coordinates.
	csx := float64(b.Min.X) + float64(b.Dx())/2
	csy := float64(b.Min.Y) + float64(b.Dy())/2
	cdx, cdy := float64(nw)/2, float64(nh)/2

	// Source-to-destination affine map: translate the source centre to the
	// origin, rotate, translate to the destination centre.
	s2d := f64.Aff3{
		cos, sin, cdx - cos*csx - sin*csy,
		-sin, cos, cdy + sin*csx - cos*csy,
	}
	k.interpolator().Transform(dst, s2d, img, b, draw.Src, nil)
	return dst, nil
}

// Crop extracts r from img into a new r.Dx()×r.Dy() image whose origin is
// r.Min. Parts of r outside img are transparent.
func Crop(img image.Image, r image.Rectangle) (*image.RGBA, error) {
	dst, err := newCanvas(r.Dx(), r.Dy())
	if err != nil {
		return nil, fmt.Errorf("raster: crop: %w", err)
	}
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst, nil
}

// IsTransparent reports whether every pixel of img has zero alpha.
func IsTransparent(img *image.RGBA) bool {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):img.PixOffset(b.Max.X, y)]
		for i := 3; i < len(row); i += 4 {
			if row[i] != 0 {
				return false
			}
		}
	}
	return true
}
