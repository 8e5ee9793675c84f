package calibrate

import (
	"errors"
	"fmt"
	"math"

	"github.com/nao1215/oldmaps/internal/extent"
	"github.com/nao1215/oldmaps/internal/model"
	"github.com/nao1215/oldmaps/internal/projection"
)

// ErrAnchorNotFound is returned when a required anchor is absent from the
// reference set or from a map.
var ErrAnchorNotFound = errors.New("anchor not found")

// Calibrate computes the transform for map m at zoom.
func Calibrate(ref model.ReferenceAnchors, m model.SourceMap, zoom int) (*model.CalibratedTransform, error) {
	if err := projection.ValidateZoom(zoom); err != nil {
		return nil, err
	}
	scaleX, scaleY, mpp, err := Scale(ref, m, zoom)
	if err != nil {
		return nil, err
	}
	total, anchorDeg, mapDeg, err := Rotation(ref, m)
	if err != nil {
		return nil, err
	}
	if !isFinite(total) {
		return nil, model.NewDegenerateGeometryError(m.Label(), zoom, "rotation is not finite")
	}
	return &model.CalibratedTransform{
		ScaleX:                scaleX,
		ScaleY:                scaleY,
		RotationDegrees:       total,
		AnchorRotationDegrees: anchorDeg,
		MapRotationDegrees:    mapDeg,
		MetersPerPixel:        mpp,
	}, nil
}

// Scale returns the per-axis scale factors that bring the source raster to
// the pixel density of zoom, together with the source's ground resolution
// in meters per pixel.
func Scale(ref model.ReferenceAnchors, m model.SourceMap, zoom int) (scaleX, scaleY, metersPerPixel float64, err error) {
	refA, refB, pxA, pxB, err := baseline(ref, m)
	if err != nil {
		return 0, 0, 0, err
	}

	meters := projection.Distance(refA, refB)
	if meters == 0 || !isFinite(meters) {
		return 0, 0, 0, model.NewDegenerateGeometryError(m.Label(), zoom, "reference anchors a and b coincide")
	}
	pixels := pxA.Distance(pxB)
	if pixels == 0 || !isFinite(pixels) {
		return 0, 0, 0, model.NewDegenerateGeometryError(m.Label(), zoom, "map anchors a and b coincide")
	}

	metersPerPixel = meters / pixels
	scaleX = metersPerPixel / projection.MetersPerPixelLongitude(refA.Lat, zoom)
	scaleY = metersPerPixel / projection.MetersPerPixelLatitude(refA.Lat, zoom)
	if !isFinite(scaleX) || !isFinite(scaleY) || scaleX <= 0 || scaleY <= 0 {
		return 0, 0, 0, model.NewDegenerateGeometryError(m.Label(), zoom,
			fmt.Sprintf("scale (%g, %g) is not a positive finite number", scaleX, scaleY))
	}
	return scaleX, scaleY, metersPerPixel, nil
}

// Rotation returns the rotation in degrees to apply to the map, positive
// counter-clockwise on screen, and its two components: the bearing of the
// a->b baseline in geographic space and in pixel space. The pixel y axis
// points down, so the two bearings add.
func Rotation(ref model.ReferenceAnchors, m model.SourceMap) (total, anchorDegrees, mapDegrees float64, err error) {
	refA, refB, pxA, pxB, err := baseline(ref, m)
	if err != nil {
		return 0, 0, 0, err
	}
	anchorDegrees = toDegrees(math.Atan2(refB.Lat-refA.Lat, refB.Long-refA.Long))
	mapDegrees = toDegrees(math.Atan2(pxB.Y-pxA.Y, pxB.X-pxA.X))
	return anchorDegrees + mapDegrees, anchorDegrees, mapDegrees, nil
}

// PredictAnchor maps the pixel position of the named anchor through t and
// returns where it lands geographically, pivoting on anchor a.
func PredictAnchor(ref model.ReferenceAnchors, m model.SourceMap, t *model.CalibratedTransform, zoom int, name string) (model.LatLong, error) {
	refA, ok := ref[model.AnchorA]
	if !ok {
		return model.LatLong{}, fmt.Errorf("%w: reference %q", ErrAnchorNotFound, model.AnchorA)
	}
	pxA, ok := m.Anchors[model.AnchorA]
	if !ok {
		return model.LatLong{}, fmt.Errorf("%w: map %q anchor %q", ErrAnchorNotFound, m.Label(), model.AnchorA)
	}
	px, ok := m.Anchors[name]
	if !ok {
		return model.LatLong{}, fmt.Errorf("%w: map %q anchor %q", ErrAnchorNotFound, m.Label(), name)
	}

	offset := px.Sub(pxA).Scale(t.ScaleX, t.ScaleY)
	rotated := extent.RotateAround(offset, model.Pixel{}, t.RotationDegrees)
	return projection.LatLongForPixel(rotated, model.Pixel{}, refA, zoom), nil
}

// AnchorResidual returns the distance in meters between anchor c's reference
// position and the position the transform predicts for it.
func AnchorResidual(ref model.ReferenceAnchors, m model.SourceMap, t *model.CalibratedTransform, zoom int) (float64, error) {
	want, ok := ref[model.AnchorC]
	if !ok {
		return 0, fmt.Errorf("%w: reference %q", ErrAnchorNotFound, model.AnchorC)
	}
	got, err := PredictAnchor(ref, m, t, zoom, model.AnchorC)
	if err != nil {
		return 0, err
	}
	d := projection.Distance(want, got)
	if !isFinite(d) {
		return 0, model.NewDegenerateGeometryError(m.Label(), zoom, "anchor c residual is not finite")
	}
	return d, nil
}

func baseline(ref model.ReferenceAnchors, m model.SourceMap) (refA, refB model.LatLong, pxA, pxB model.Pixel, err error) {
	var ok bool
	if refA, ok = ref[model.AnchorA]; !ok {
		return refA, refB, pxA, pxB, fmt.Errorf("%w: reference %q", ErrAnchorNotFound, model.AnchorA)
	}
	if refB, ok = ref[model.AnchorB]; !ok {
		return refA, refB, pxA, pxB, fmt.Errorf("%w: reference %q", ErrAnchorNotFound, model.AnchorB)
	}
	if pxA, ok = m.Anchors[model.AnchorA]; !ok {
		return refA, refB, pxA, pxB, fmt.Errorf("%w: map %q anchor %q", ErrAnchorNotFound, m.Label(), model.AnchorA)
	}
	if pxB, ok = m.Anchors[model.AnchorB]; !ok {
		return refA, refB, pxA, pxB, fmt.Errorf("%w: map %q anchor %q", ErrAnchorNotFound, m.Label(), model.AnchorB)
	}
	return refA, refB, pxA, pxB, nil
}

func toDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
