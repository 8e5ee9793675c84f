package extent

import (
	"errors"
	"fmt"
	"math"

	"github.com/nao1215/oldmaps/internal/model"
	"github.com/nao1215/oldmaps/internal/projection"
)

// ErrUnsupportedRegion marks boxes outside the northern hemisphere, across
// the anti-meridian or beyond the Mercator latitude limit. Tiles are still
// produced but may be misplaced.
var ErrUnsupportedRegion = errors.New("unsupported region")

// mercatorLimit is the latitude of the top edge of tile (0, 0, 0).
const mercatorLimit = 85.0511287798066

// Reference ties a source map to the ground through its anchor a.
type Reference struct {
	// Map identifies the source map in errors.
	Map string

	// Pixel is anchor a on the source raster.
	Pixel model.Pixel

	// LatLong is anchor a's known position.
	LatLong model.LatLong
}

// Extent is the geographic footprint of a rectified raster.
type Extent struct {
	// BoundingBox encloses the four canvas corners. Raster pixel (0, 0) is
	// its upper-left corner.
	BoundingBox model.GeoBoundingBox

	// Center is the position of the canvas centre.
	Center model.LatLong

	// Anchor is anchor a on the rectified canvas.
	Anchor model.Pixel

	// Corners are the canvas corners clockwise from the top left.
	Corners [4]model.LatLong
}

// Resolve computes the extent of r at zoom.
func Resolve(r *model.RectifiedRaster, t *model.CalibratedTransform, ref Reference, zoom int) (*Extent, error) {
	if r.Width <= 0 || r.Height <= 0 {
		return nil, model.NewDegenerateGeometryError(ref.Map, zoom,
			fmt.Sprintf("rectified canvas is %dx%d", r.Width, r.Height))
	}

	anchor := AnchorInRectified(ref.Pixel, r, t)
	if !anchor.IsFinite() {
		return nil, model.NewDegenerateGeometryError(ref.Map, zoom, "rectified anchor is not finite")
	}

	ext := &Extent{Anchor: anchor}
	corners := r.Corners()
	for i, c := range corners {
		ll := projection.LatLongForPixel(c, anchor, ref.LatLong, zoom)
		if !ll.IsFinite() {
			return nil, model.NewDegenerateGeometryError(ref.Map, zoom,
				fmt.Sprintf("corner %d maps to a non-finite position", i))
		}
		ext.Corners[i] = ll
	}

	ext.BoundingBox = model.BoundingBoxOf(ext.Corners[:]...)
	if !ext.BoundingBox.Valid() ||
		ext.BoundingBox.UpperLeft.Lat == ext.BoundingBox.LowerRight.Lat ||
		ext.BoundingBox.UpperLeft.Long == ext.BoundingBox.LowerRight.Long {
		return nil, model.NewDegenerateGeometryError(ref.Map, zoom,
			"bounding box "+ext.BoundingBox.String()+" is empty or inverted")
	}
	ext.Center = projection.LatLongForPixel(r.Center(), anchor, ref.LatLong, zoom)
	return ext, nil
}

// CheckRegion reports boxes the tiler does not handle correctly. The
// returned error wraps ErrUnsupportedRegion and is meant as a warning.
func CheckRegion(b model.GeoBoundingBox) error {
	var problems []error
	if b.LowerRight.Lat < 0 {
		problems = append(problems, fmt.Errorf("%w: extends into the southern hemisphere (lat %.6f)",
			ErrUnsupportedRegion, b.LowerRight.Lat))
	}
	if b.UpperLeft.Long < -180 || b.LowerRight.Long > 180 {
		problems = append(problems, fmt.Errorf("%w: crosses the anti-meridian (long %.6f to %.6f)",
			ErrUnsupportedRegion, b.UpperLeft.Long, b.LowerRight.Long))
	}
	if math.Abs(b.UpperLeft.Lat) > mercatorLimit || math.Abs(b.LowerRight.Lat) > mercatorLimit {
		problems = append(problems, fmt.Errorf("%w: exceeds the Mercator latitude limit", ErrUnsupportedRegion))
	}
	return errors.Join(problems...)
}
