package model

// Anchor names shared by the reference set and every map.
const (
	AnchorA = "a"
	AnchorB = "b"
	AnchorC = "c"
)

// AnchorNames lists the anchors every configuration must provide, in order.
var AnchorNames = []string{AnchorA, AnchorB, AnchorC}

// ReferenceAnchors maps anchor names to their real-world positions.
// It is loaded once per run and shared read-only by every map.
type ReferenceAnchors map[string]LatLong

// SourceMap is one historical map image and its control points.
type SourceMap struct {
	// File is the path of the raster image.
	File string `json:"file"`

	// Name is the display name shown in the viewer.
	Name string `json:"name"`

	// Attribution credits the map's publisher or archive.
	Attribution string `json:"attribution"`

	// Slug names the output directory for the map's tiles.
	Slug string `json:"slug"`

	// Anchors maps anchor names to pixel positions on the raster.
	Anchors map[string]Pixel `json:"anchors"`
}

// Label returns the most descriptive identifier available for log and error output.
func (m SourceMap) Label() string {
	switch {
	case m.Name != "":
		return m.Name
	case m.Slug != "":
		return m.Slug
	default:
		return m.File
	}
}
