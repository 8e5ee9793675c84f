package model

import (
	"errors"
	"fmt"
)

// ErrDegenerateGeometry is the sentinel wrapped by every DegenerateGeometryError.
var ErrDegenerateGeometry = errors.New("degenerate geometry")

// DegenerateGeometryError reports a calibration or extent computation that
// would otherwise divide by zero or produce a non-finite value.
// It is fatal for one (map, zoom) pair only.
type DegenerateGeometryError struct {
	// Map identifies the offending map.
	Map string

	// Zoom is the zoom level being processed.
	Zoom int

	// Reason describes which quantity degenerated.
	Reason string
}

// NewDegenerateGeometryError builds a DegenerateGeometryError.
func NewDegenerateGeometryError(mapLabel string, zoom int, reason string) *DegenerateGeometryError {
	return &DegenerateGeometryError{Map: mapLabel, Zoom: zoom, Reason: reason}
}

// Error implements error.
func (e *DegenerateGeometryError) Error() string {
	return fmt.Sprintf("degenerate geometry for map %q at zoom %d: %s", e.Map, e.Zoom, e.Reason)
}

// Unwrap returns ErrDegenerateGeometry so errors.Is matches the sentinel.
func (e *DegenerateGeometryError) Unwrap() error {
	return ErrDegenerateGeometry
}
