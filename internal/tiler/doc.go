// Package tiler partitions a rectified raster into 256×256 slippy-map tiles.
//
// Plan computes the covering tile range of a bounding box and where the
// first tile starts relative to the raster origin. Slice crops, encodes and
// hands every tile of the plan to a Sink, optionally on several goroutines.
package tiler
