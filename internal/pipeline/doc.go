// Package pipeline runs (map, zoom) jobs through a sequence of steps.
//
// The tile pipeline reads EXIF metadata, calibrates the map against the
// reference anchors, rectifies the raster, resolves its geographic extent
// and slices it into tiles. The plan pipeline stops after computing the
// tile range and never decodes pixels. BatchProcessor runs many jobs
// concurrently with errgroup; a failing job never affects the others.
package pipeline
