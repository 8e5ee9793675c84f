// Package model defines the core data structures used throughout oldmaps.
//
// This package contains the following main types:
//   - LatLong, Pixel: points in geographic and pixel space
//   - ReferenceAnchors, SourceMap: the configured control points and maps
//   - CalibratedTransform: scale and rotation derived for one (map, zoom)
//   - RectifiedRaster: the scaled and rotated pixel buffer
//   - GeoBoundingBox, TileAddress: the geographic extent and its tiles
//   - Job: one (map, zoom) unit of work carried through the pipeline
//
// Models live in their own package because the projection, calibration,
// tiling, storage and reporting packages all share them.
package model
